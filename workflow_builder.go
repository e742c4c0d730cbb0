package taskflow

// WorkflowBuilder provides a fluent interface for assembling a Workflow's nodes
// and edges by hand, useful for tests and demos that don't want to go through
// the full planner pipeline to exercise the executor.
//
// Example usage:
//
//	wf := NewWorkflowBuilder().
//	    AddNode(Node{ID: "ST1", Executor: ExecutorLLM, Task: "draft a summary"}).
//	    AddNode(Node{ID: "ST2", Executor: ExecutorTool, Tool: "search"}).
//	    AddNode(Node{ID: "ST3", Executor: ExecutorLLM, Task: "merge results"}).
//	    Direct("ST1", "ST3").
//	    Direct("ST2", "ST3").
//	    Build()
type WorkflowBuilder struct {
	nodes []Node
	edges []Edge
}

// NewWorkflowBuilder creates an empty WorkflowBuilder.
func NewWorkflowBuilder() *WorkflowBuilder {
	return &WorkflowBuilder{}
}

// AddNode appends n to the workflow under construction.
func (b *WorkflowBuilder) AddNode(n Node) *WorkflowBuilder {
	b.nodes = append(b.nodes, n)
	return b
}

// Direct adds a one-to-one edge: to waits for from.
func (b *WorkflowBuilder) Direct(from, to string) *WorkflowBuilder {
	b.edges = append(b.edges, Edge{Source: []string{from}, Target: []string{to}})
	return b
}

// FanOut adds a one-to-many edge: every id in to waits for from, each
// independently — this is what lets parallel branches start together.
func (b *WorkflowBuilder) FanOut(from string, to ...string) *WorkflowBuilder {
	b.edges = append(b.edges, Edge{Source: []string{from}, Target: to})
	return b
}

// FanIn adds a many-to-one join edge: to waits for every id in from to finish
// before it becomes eligible to run.
func (b *WorkflowBuilder) FanIn(from []string, to string) *WorkflowBuilder {
	b.edges = append(b.edges, Edge{Source: from, Target: []string{to}})
	return b
}

// Build returns the constructed Workflow.
func (b *WorkflowBuilder) Build() *Workflow {
	return &Workflow{Nodes: b.nodes, Edges: b.edges}
}

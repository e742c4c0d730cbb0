package domain

import "encoding/json"

// EndpointOverride is a node-level override of the ambient LLM endpoint: any field
// left zero falls back to whichever client the caller would otherwise have used.
type EndpointOverride struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// Node is one step of a workflow graph: either a planner-produced task node ("ST<n>")
// or an injector-produced parameter guard ("GUARD<n>").
type Node struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	Executor    ExecutorType `json:"executor"`
	Task        string       `json:"task,omitempty"`
	Tool        string       `json:"tool,omitempty"`
	// Source and Target are denormalized source/target id hints, semantically
	// equivalent to the edge set. On the wire each may be a single id string or a
	// list; UnmarshalJSON normalizes either form to a list.
	Source []string       `json:"source,omitempty"`
	Target []string       `json:"target,omitempty"`
	Input  map[string]any `json:"input,omitempty"`
	// Output is a free-text description of the expected output; never enforced.
	Output string `json:"output,omitempty"`
	// LLMConfig overrides the ambient endpoint for this node only, per field.
	LLMConfig *EndpointOverride `json:"llm_config,omitempty"`
	// GuardFor is set only on GUARD nodes: the id of the downstream consumer node this
	// guard shapes output for.
	GuardFor string `json:"guard_for,omitempty"`
	// GuardSources is set only on GUARD nodes: the ids of every upstream node whose
	// output this guard reshapes, in deterministic (sorted) order. A guard always
	// collapses every triggering predecessor of its consumer into one node, so this
	// may hold more than one id.
	GuardSources []string `json:"guard_sources,omitempty"`
}

// UnmarshalJSON accepts both the canonical list form and a bare-string shorthand for
// source/target, the same normalization Edge applies.
func (n *Node) UnmarshalJSON(data []byte) error {
	type alias Node
	var raw struct {
		alias
		Source json.RawMessage `json:"source"`
		Target json.RawMessage `json:"target"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	src, err := normalizeIDList(raw.Source)
	if err != nil {
		return err
	}
	tgt, err := normalizeIDList(raw.Target)
	if err != nil {
		return err
	}
	*n = Node(raw.alias)
	n.Source = src
	n.Target = tgt
	return nil
}

// Family returns the id family (ST or GUARD) and numeric suffix of this node.
func (n Node) Family() (IDFamily, int, error) {
	return FamilyOf(n.ID)
}

// IsGuard reports whether n is a param_guard node injected between a producer and a
// consumer.
func (n Node) IsGuard() bool {
	return n.Executor == ExecutorParamGuard
}

// PrimaryGuardSource returns the first (and, for a single-source guard, the only)
// upstream node id this guard reshapes output from, used where the executor only
// needs "the" primary source (e.g. Param-Guard Evaluator's target_input_template
// resolution against source_nodes[0]).
func (n Node) PrimaryGuardSource() (string, bool) {
	if len(n.GuardSources) == 0 {
		return "", false
	}
	return n.GuardSources[0], true
}

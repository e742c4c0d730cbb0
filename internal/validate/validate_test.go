package validate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagtask/planrunner/internal/domain"
	"github.com/dagtask/planrunner/internal/toolregistry"
)

func TestValidatePassesForWellFormedWorkflow(t *testing.T) {
	w := &domain.Workflow{
		Nodes: []domain.Node{
			{ID: "ST1", Executor: domain.ExecutorLLM},
			{ID: "ST2", Executor: domain.ExecutorLLM, Input: map[string]any{"x": "{ST1.output}"}},
		},
		Edges: []domain.Edge{{Source: []string{"ST1"}, Target: []string{"ST2"}}},
	}

	result := Validate(w, Options{})
	assert.False(t, result.Failed())
	assert.Empty(t, result.Errors)
}

func TestValidateDetectsGapInDenseNumbering(t *testing.T) {
	w := &domain.Workflow{Nodes: []domain.Node{{ID: "ST1"}, {ID: "ST3"}}}

	result := Validate(w, Options{})
	assert.True(t, result.Failed())
	assert.Len(t, result.Errors, 1)
}

func TestValidateDetectsCycle(t *testing.T) {
	w := &domain.Workflow{
		Nodes: []domain.Node{{ID: "ST1", Executor: domain.ExecutorLLM}, {ID: "ST2", Executor: domain.ExecutorLLM}},
		Edges: []domain.Edge{
			{Source: []string{"ST1"}, Target: []string{"ST2"}},
			{Source: []string{"ST2"}, Target: []string{"ST1"}},
		},
	}

	result := Validate(w, Options{})
	require.True(t, result.Failed())
	assert.Contains(t, result.Errors[0], "cycle detected")
}

func TestValidateNoWarningWhenEveryNodeIsItsOwnRoot(t *testing.T) {
	w := &domain.Workflow{
		Nodes: []domain.Node{
			{ID: "ST1", Executor: domain.ExecutorLLM},
			{ID: "ST2", Executor: domain.ExecutorLLM},
		},
	}
	result := Validate(w, Options{})
	assert.False(t, result.Failed())
	assert.Empty(t, result.Warnings)
}

func TestValidateWarnsOnNodeUnreachableFromAnyRoot(t *testing.T) {
	// ST1 and ST2 form a cycle, so neither has indegree 0 and there is no root to
	// reach anything from; ST3 hangs off ST1 and is unreachable for the same reason.
	w := &domain.Workflow{
		Nodes: []domain.Node{
			{ID: "ST1", Executor: domain.ExecutorLLM},
			{ID: "ST2", Executor: domain.ExecutorLLM},
			{ID: "ST3", Executor: domain.ExecutorLLM},
		},
		Edges: []domain.Edge{
			{Source: []string{"ST1"}, Target: []string{"ST2"}},
			{Source: []string{"ST2"}, Target: []string{"ST1"}},
			{Source: []string{"ST1"}, Target: []string{"ST3"}},
		},
	}
	result := Validate(w, Options{})
	assert.ElementsMatch(t, []string{"ST1", "ST2", "ST3"}, unreachableIDs(result.Warnings))
}

func unreachableIDs(warnings []string) []string {
	var ids []string
	for _, w := range warnings {
		for _, id := range []string{"ST1", "ST2", "ST3"} {
			if strings.Contains(w, `"`+id+`"`) {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func TestValidateErrorsOnReferenceToUnknownNode(t *testing.T) {
	w := &domain.Workflow{
		Nodes: []domain.Node{
			{ID: "ST1", Executor: domain.ExecutorLLM, Input: map[string]any{"x": "{ST9.output}"}},
		},
	}

	result := Validate(w, Options{})
	require.True(t, result.Failed())
	assert.Contains(t, result.Errors[0], "unknown node")
}

func TestValidateWarnsOnReferenceWithoutDeclaredEdge(t *testing.T) {
	w := &domain.Workflow{
		Nodes: []domain.Node{
			{ID: "ST1", Executor: domain.ExecutorLLM},
			{ID: "ST2", Executor: domain.ExecutorLLM, Input: map[string]any{"x": "{ST1.output}"}},
		},
	}

	result := Validate(w, Options{})
	assert.False(t, result.Failed())
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "without a declared edge")
}

func TestValidateToolAvailabilityChecksRegistryWhenProvided(t *testing.T) {
	reg := toolregistry.NewInMemory()
	reg.Register(toolregistry.Descriptor{Name: "known_tool"}, func(ctx context.Context, args map[string]any) (any, error) { return nil, nil })

	w := &domain.Workflow{
		Nodes: []domain.Node{{ID: "ST1", Executor: domain.ExecutorTool, Tool: "unknown_tool"}},
	}

	result := Validate(w, Options{ToolRegistry: reg})
	require.True(t, result.Failed())
	assert.Contains(t, result.Errors[0], "unknown tool")
}

func TestValidateSkipsToolAvailabilityWhenRegistryNil(t *testing.T) {
	w := &domain.Workflow{
		Nodes: []domain.Node{{ID: "ST1", Executor: domain.ExecutorTool, Tool: "whatever"}},
	}

	result := Validate(w, Options{})
	assert.False(t, result.Failed())
}

func TestValidateErrorsOnEdgeReferencingUnknownNode(t *testing.T) {
	w := &domain.Workflow{
		Nodes: []domain.Node{{ID: "ST1", Executor: domain.ExecutorLLM}},
		Edges: []domain.Edge{{Source: []string{"ST1"}, Target: []string{"ST9"}}},
	}

	result := Validate(w, Options{})
	require.True(t, result.Failed())
	assert.Contains(t, strings.Join(result.Errors, "\n"), `unknown node "ST9"`)
}

func TestValidatePassesWhenEveryEdgeEndpointIsADeclaredNode(t *testing.T) {
	w := &domain.Workflow{
		Nodes: []domain.Node{{ID: "ST1", Executor: domain.ExecutorLLM}, {ID: "ST2", Executor: domain.ExecutorLLM}},
		Edges: []domain.Edge{{Source: []string{"ST1"}, Target: []string{"ST2"}}},
	}

	result := Validate(w, Options{})
	assert.NotContains(t, strings.Join(result.Errors, "\n"), "edge references unknown node")
}

func TestValidateErrorsOnToolNodeBypassingItsGuard(t *testing.T) {
	w := &domain.Workflow{
		Nodes: []domain.Node{
			{ID: "ST1", Executor: domain.ExecutorLLM},
			{ID: "ST2", Executor: domain.ExecutorTool, Tool: "save_excel", Input: map[string]any{"data": "{ST1.output}"}},
		},
		Edges: []domain.Edge{{Source: []string{"ST1"}, Target: []string{"ST2"}}},
	}

	result := Validate(w, Options{})
	require.True(t, result.Failed())
	assert.Contains(t, strings.Join(result.Errors, "\n"), "instead of through a param guard")
}

func TestValidatePassesWhenToolNodeConsumesViaGuardSentinel(t *testing.T) {
	w := &domain.Workflow{
		Nodes: []domain.Node{
			{ID: "ST1", Executor: domain.ExecutorLLM},
			{ID: "GUARD1", Executor: domain.ExecutorParamGuard, GuardFor: "ST2", GuardSources: []string{"ST1"}},
			{ID: "ST2", Executor: domain.ExecutorTool, Tool: "save_excel", Input: map[string]any{"__from_guard__": "GUARD1"}},
		},
		Edges: []domain.Edge{
			{Source: []string{"ST1"}, Target: []string{"GUARD1"}},
			{Source: []string{"GUARD1"}, Target: []string{"ST2"}},
		},
	}

	result := Validate(w, Options{})
	assert.NotContains(t, strings.Join(result.Errors, "\n"), "instead of through a param guard")
}

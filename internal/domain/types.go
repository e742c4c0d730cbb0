// Package domain holds the workflow intermediate representation (IR) shared by the
// planner, guard injector, validator, and executor: nodes, edges, run state, and trace
// entries.
package domain

import "fmt"

// ExecutorType identifies how a node is carried out at execution time.
type ExecutorType string

const (
	// ExecutorLLM sends the node's resolved input straight to the LLM endpoint.
	ExecutorLLM ExecutorType = "llm"
	// ExecutorTool invokes a named tool through the tool registry.
	ExecutorTool ExecutorType = "tool"
	// ExecutorParamGuard shapes upstream output into a schema-valid tool input.
	ExecutorParamGuard ExecutorType = "param_guard"
)

// IsValid reports whether et is one of the three known executor kinds.
func (et ExecutorType) IsValid() bool {
	switch et {
	case ExecutorLLM, ExecutorTool, ExecutorParamGuard:
		return true
	default:
		return false
	}
}

func (et ExecutorType) String() string { return string(et) }

// TraceStatus is the lifecycle status of one node execution attempt.
type TraceStatus string

const (
	TraceRunning TraceStatus = "running"
	TraceSuccess TraceStatus = "success"
	TraceFailed  TraceStatus = "failed"
)

func (s TraceStatus) String() string { return string(s) }

// IDFamily distinguishes planner-produced nodes from injector-produced guards.
type IDFamily string

const (
	FamilyST    IDFamily = "ST"
	FamilyGuard IDFamily = "GUARD"
)

// FamilyOf returns the id family and numeric suffix an id belongs to, or an error if it
// matches neither the "ST<n>" nor the "GUARD<n>" shape (invariant I3 of the data model).
func FamilyOf(id string) (IDFamily, int, error) {
	if n, ok := parseNumberedID(id, string(FamilyST)); ok {
		return FamilyST, n, nil
	}
	if n, ok := parseNumberedID(id, string(FamilyGuard)); ok {
		return FamilyGuard, n, nil
	}
	return "", 0, fmt.Errorf("id %q does not match ^ST\\d+$ or ^GUARD\\d+$", id)
}

func parseNumberedID(id, prefix string) (int, bool) {
	if len(id) <= len(prefix) || id[:len(prefix)] != prefix {
		return 0, false
	}
	rest := id[len(prefix):]
	n := 0
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

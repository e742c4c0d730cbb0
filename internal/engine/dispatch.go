// Package engine implements the DAG Executor: a wavefront scheduler that runs a
// workflow's nodes according to their dependency edges, dispatching each node to the
// executor registered for its ExecutorType.
package engine

import (
	"context"

	"github.com/dagtask/planrunner/internal/domain"
)

// NodeExecutor carries out one node given its resolved input. Implementations must be
// safe for concurrent use: the scheduler may invoke Execute for independent nodes from
// multiple goroutines at once.
type NodeExecutor interface {
	Execute(ctx context.Context, node domain.Node, input map[string]any) (any, error)
}

// Registry is a small dispatch table from ExecutorType to the NodeExecutor that
// carries it out, mirroring the registerDefaultExecutors pattern: executors are
// registered once at construction and looked up by type on every node.
type Registry struct {
	executors map[domain.ExecutorType]NodeExecutor
}

// NewRegistry creates an empty dispatch table.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[domain.ExecutorType]NodeExecutor)}
}

// Register binds an ExecutorType to the NodeExecutor that carries it out.
func (r *Registry) Register(et domain.ExecutorType, ex NodeExecutor) {
	r.executors[et] = ex
}

// Lookup returns the executor registered for et, if any.
func (r *Registry) Lookup(et domain.ExecutorType) (NodeExecutor, bool) {
	ex, ok := r.executors[et]
	return ex, ok
}

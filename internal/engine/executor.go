package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dagtask/planrunner/internal/domain"
	"github.com/dagtask/planrunner/internal/engine/resolve"
)

// nodeStatus is the terminal or in-flight state of one node during a run.
type nodeStatus int

const (
	statusPending nodeStatus = iota
	statusSuccess
	statusFailed
	statusSkipped
)

// TraceSink receives a TraceEntry each time a node execution starts or finishes. It is
// the hook ambient observers (metrics, websocket trace streaming) attach to; a nil
// sink is valid and simply drops entries.
type TraceSink func(domain.TraceEntry)

// Executor is the DAG Executor: a wavefront scheduler over a workflow's nodes, bounded
// by a per-wave worker pool, that resolves each node's input against prior outputs,
// dispatches to the registered NodeExecutor for its type, and isolates a node's
// failure to its dependents while independent branches keep running.
type Executor struct {
	registry    *Registry
	logger      zerolog.Logger
	limits      TruncationLimits
	maxParallel int
	trace       TraceSink
}

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithMaxParallel bounds how many nodes within one wave run concurrently. The default
// is unbounded (one goroutine per node in the wave).
func WithMaxParallel(n int) Option {
	return func(e *Executor) { e.maxParallel = n }
}

// WithTraceSink attaches a callback invoked on every node trace event.
func WithTraceSink(sink TraceSink) Option {
	return func(e *Executor) { e.trace = sink }
}

// WithTruncationLimits overrides the default (unbounded) truncation limits.
func WithTruncationLimits(limits TruncationLimits) Option {
	return func(e *Executor) { e.limits = limits }
}

// New creates an Executor dispatching to registry, logging through logger.
func New(registry *Registry, logger zerolog.Logger, opts ...Option) *Executor {
	e := &Executor{registry: registry, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes every node of w in wavefront order against a fresh RunState for runID
// and task, returning the final state. Run never returns an error for individual node
// failures — those are recorded in the state's Errors and as skip/fail node statuses;
// it returns an error for a structural problem (a cycle, a dangling edge) that
// makes the workflow unschedulable, and returns ctx.Err() together with the state so
// far when the context is cancelled before a wave starts.
func (e *Executor) Run(ctx context.Context, w *domain.Workflow, runID, task string) (*domain.RunState, error) {
	plan, err := buildWavePlan(w)
	if err != nil {
		return nil, fmt.Errorf("engine: cannot schedule workflow: %w", err)
	}

	state := domain.NewRunState(runID, task)
	statuses := make(map[string]nodeStatus, len(w.Nodes))
	var mu sync.Mutex

	nodesByID := make(map[string]domain.Node, len(w.Nodes))
	for _, n := range w.Nodes {
		nodesByID[n.ID] = n
	}

	for _, wave := range plan.waves {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		default:
		}
		e.runWave(ctx, wave, nodesByID, plan, state, statuses, &mu)
	}

	return state, nil
}

func (e *Executor) runWave(
	ctx context.Context,
	wave []string,
	nodesByID map[string]domain.Node,
	plan *wavePlan,
	state *domain.RunState,
	statuses map[string]nodeStatus,
	mu *sync.Mutex,
) {
	maxParallel := len(wave)
	if e.maxParallel > 0 && e.maxParallel < maxParallel {
		maxParallel = e.maxParallel
	}
	if maxParallel == 0 {
		return
	}
	sem := make(chan struct{}, maxParallel)

	var wg sync.WaitGroup
	for _, id := range wave {
		wg.Add(1)
		go func(nodeID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			e.runNode(ctx, nodesByID[nodeID], plan, state, statuses, mu)
		}(id)
	}
	wg.Wait()
}

func (e *Executor) runNode(
	ctx context.Context,
	node domain.Node,
	plan *wavePlan,
	state *domain.RunState,
	statuses map[string]nodeStatus,
	mu *sync.Mutex,
) {
	if blocked, reason := e.blockedByPredecessor(node.ID, plan, statuses, mu); blocked {
		mu.Lock()
		statuses[node.ID] = statusSkipped
		mu.Unlock()
		state.AppendMessage(fmt.Sprintf("node %s skipped: %s", node.ID, reason))
		e.emitTrace(domain.TraceEntry{
			ID: uuid.NewString(), RunID: state.RunID, NodeID: node.ID,
			Executor: node.Executor, Status: domain.TraceFailed, StartedAt: time.Now(),
			Error: reason,
		})
		return
	}

	input := e.resolveInput(node, state)

	entry := domain.TraceEntry{
		ID: uuid.NewString(), RunID: state.RunID, NodeID: node.ID,
		Executor: node.Executor, Status: domain.TraceRunning,
		StartedAt: time.Now(), Input: input,
	}
	e.emitTrace(entry)

	executor, ok := e.registry.Lookup(node.Executor)
	if !ok {
		e.failNode(node, state, statuses, mu, &entry, fmt.Errorf("engine: no executor registered for type %q", node.Executor))
		return
	}

	output, err := executor.Execute(ctx, node, input)
	if err != nil {
		e.failNode(node, state, statuses, mu, &entry, err)
		return
	}

	stored := TruncateForStorage(node.Executor, output, e.limits.NodeOutputMaxChars)
	state.SetOutput(node.ID, stored)
	mu.Lock()
	statuses[node.ID] = statusSuccess
	mu.Unlock()

	now := time.Now()
	entry.Finish(domain.TraceSuccess, now)
	entry.Output = stored
	e.emitTrace(entry)
}

func (e *Executor) failNode(
	node domain.Node,
	state *domain.RunState,
	statuses map[string]nodeStatus,
	mu *sync.Mutex,
	entry *domain.TraceEntry,
	err error,
) {
	mu.Lock()
	statuses[node.ID] = statusFailed
	mu.Unlock()

	detail := err.Error()
	state.AppendError(fmt.Sprintf("node %s failed: %s", node.ID, detail))
	e.logger.Error().Str("node_id", node.ID).Err(err).Msg("node execution failed")

	now := time.Now()
	entry.Finish(domain.TraceFailed, now)
	entry.Error = detail
	e.emitTrace(*entry)
}

// blockedByPredecessor reports whether node id cannot run because one of its
// predecessors failed or was itself skipped — the partial-failure isolation rule:
// a failed node's dependents are skipped, but independent branches continue.
func (e *Executor) blockedByPredecessor(id string, plan *wavePlan, statuses map[string]nodeStatus, mu *sync.Mutex) (bool, string) {
	mu.Lock()
	defer mu.Unlock()
	for _, pred := range plan.preds[id] {
		switch statuses[pred] {
		case statusFailed:
			return true, fmt.Sprintf("predecessor %s failed", pred)
		case statusSkipped:
			return true, fmt.Sprintf("predecessor %s was skipped", pred)
		}
	}
	return false, ""
}

// resolveInput substitutes every "{<id>.output...}" reference in node's input
// template against the run's recorded outputs. A node whose input was rewritten by
// the guard injector to "__from_guard__"/"__from_guards__" bypasses that substitution
// entirely: its input becomes the referenced param_guard's shaped output verbatim,
// not the raw upstream value the guard was inserted to hide.
func (e *Executor) resolveInput(node domain.Node, state *domain.RunState) map[string]any {
	if node.Input == nil {
		return nil
	}
	if resolved, ok := resolveGuardSentinel(node.Input, state); ok {
		return resolved
	}
	lookup := func(nodeID string) (any, bool) { return state.Output(nodeID) }
	resolved := make(map[string]any, len(node.Input))
	for k, v := range node.Input {
		resolved[k] = resolveAny(v, lookup)
	}
	return resolved
}

// resolveGuardSentinel recognizes a tool node's input rewritten by the guard
// injector and resolves it to the named param_guard node's shaped output, merging
// multiple guards' outputs in list order when a consumer has more than one
// triggering predecessor.
func resolveGuardSentinel(input map[string]any, state *domain.RunState) (map[string]any, bool) {
	if len(input) != 1 {
		return nil, false
	}
	if raw, ok := input["__from_guard__"]; ok {
		guardID, ok := raw.(string)
		if !ok {
			return nil, false
		}
		return guardOutputAsMap(guardID, state), true
	}
	if raw, ok := input["__from_guards__"]; ok {
		ids, ok := asStringSlice(raw)
		if !ok {
			return nil, false
		}
		merged := make(map[string]any)
		for _, id := range ids {
			for k, v := range guardOutputAsMap(id, state) {
				merged[k] = v
			}
		}
		return merged, true
	}
	return nil, false
}

// guardOutputAsMap returns a guard node's recorded output as a map suitable for use
// as a downstream node's input. The Param-Guard Evaluator always shapes output as an
// argument map; a non-map result (or a missing output, e.g. the guard itself failed)
// falls back to an empty/wrapped form rather than panicking.
func guardOutputAsMap(guardID string, state *domain.RunState) map[string]any {
	out, ok := state.Output(guardID)
	if !ok {
		return nil
	}
	if m, ok := out.(map[string]any); ok {
		return m
	}
	return map[string]any{"value": out}
}

func asStringSlice(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return val, true
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func resolveAny(v any, lookup resolve.OutputLookup) any {
	switch val := v.(type) {
	case string:
		return resolve.Resolve(val, lookup)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = resolveAny(e, lookup)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = resolveAny(e, lookup)
		}
		return out
	default:
		return v
	}
}

func (e *Executor) emitTrace(entry domain.TraceEntry) {
	if e.trace != nil {
		e.trace(entry)
	}
}

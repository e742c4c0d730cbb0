// Package taskflow is the public façade over the task-to-workflow planner and
// executor: it re-exports the domain types callers need and wires the planner
// pipeline, DAG executor, and run archive into one Service.
package taskflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dagtask/planrunner/internal/archive"
	"github.com/dagtask/planrunner/internal/domain"
	"github.com/dagtask/planrunner/internal/engine"
	"github.com/dagtask/planrunner/internal/planner"
)

// Node executor type constants.
const (
	ExecutorLLM        = domain.ExecutorLLM
	ExecutorTool       = domain.ExecutorTool
	ExecutorParamGuard = domain.ExecutorParamGuard
)

// Workflow is the planner's output IR: the node/edge graph the executor runs.
type Workflow = domain.Workflow

// Node is one step of a workflow graph.
type Node = domain.Node

// Edge is a directed dependency between nodes.
type Edge = domain.Edge

// ExecutorType identifies how a node is carried out at execution time.
type ExecutorType = domain.ExecutorType

// RunState is the executor's shared mutable state for one run.
type RunState = domain.RunState

// TraceEntry records one node execution attempt.
type TraceEntry = domain.TraceEntry

// TraceStatus is the lifecycle status of one node execution attempt.
type TraceStatus = domain.TraceStatus

// LastRun is the planner pipeline's full diagnostic trail for one Plan call.
type LastRun = planner.LastRun

// ArchiveStore persists run diagnostics, the final workflow, and its result.
type ArchiveStore = archive.Store

// ArchiveMeta is the summary record archive.Store.List returns.
type ArchiveMeta = archive.Meta

// ArchiveRecord is one run's full persisted record.
type ArchiveRecord = archive.Record

// ErrRunNotFound is returned by an ArchiveStore when a run id is unknown.
var ErrRunNotFound = archive.ErrNotFound

// RunResult is what a Service.Run call returns: the run id, the planned workflow,
// the planner's diagnostics, and the executor's final state.
type RunResult struct {
	RunID    string
	Workflow *Workflow
	LastRun  *LastRun
	State    *RunState
}

// ExecutorFactory builds the DAG Executor for one concrete workflow. It exists
// because a param_guard node's executor needs the workflow it belongs to (to look
// up the guarded consumer's tool), so the dispatch table can only be assembled
// once a workflow has been planned, not once at Service construction time.
type ExecutorFactory func(workflow *Workflow) *engine.Executor

// Service wires together one Planner Pipeline and one DAG Executor factory
// sharing a tool registry and archive, the top-level operation callers drive:
// plan a task into a workflow, run it, and persist the outcome.
type Service struct {
	pipeline *planner.Pipeline
	newExec  ExecutorFactory
	store    archive.Store
	logger   zerolog.Logger
}

// NewService creates a Service over an already-wired pipeline and executor
// factory. Use NewServiceFromConfig to build both from a Config in one call.
func NewService(pipeline *planner.Pipeline, newExec ExecutorFactory, store archive.Store, logger zerolog.Logger) *Service {
	return &Service{pipeline: pipeline, newExec: newExec, store: store, logger: logger}
}

// Run plans task into a workflow, executes it, and persists the full record to the
// archive under a fresh run id. A planning failure is persisted with no workflow or
// result and returned as-is; an execution failure is persisted with the workflow and
// partial result and returned as-is. Either way the archive record is saved before
// Run returns, so callers can inspect a failed run the same way they inspect a
// successful one.
func (s *Service) Run(ctx context.Context, task string) (*RunResult, error) {
	runID := uuid.NewString()
	started := time.Now()

	workflow, lastRun, err := s.pipeline.Plan(ctx, task)
	if err != nil {
		s.save(ctx, runID, task, started, nil, lastRun, nil, err)
		return &RunResult{RunID: runID, LastRun: lastRun}, fmt.Errorf("taskflow: planning failed: %w", err)
	}

	exec := s.newExec(workflow)
	state, err := exec.Run(ctx, workflow, runID, task)
	s.save(ctx, runID, task, started, workflow, lastRun, state, err)
	result := &RunResult{RunID: runID, Workflow: workflow, LastRun: lastRun, State: state}
	if err != nil {
		return result, fmt.Errorf("taskflow: execution failed: %w", err)
	}
	return result, nil
}

func (s *Service) save(ctx context.Context, runID, task string, started time.Time, workflow *Workflow, lastRun *LastRun, state *RunState, runErr error) {
	if s.store == nil {
		return
	}
	meta := archive.Meta{RunID: runID, Task: task, StartedAt: started, EndedAt: time.Now(), Status: "success"}
	if runErr != nil {
		meta.Status = "failed"
	}
	rec := archive.Record{Meta: meta, Graph: lastRun, Workflow: workflow, Result: state}
	if runErr != nil {
		rec.ErrMsg = runErr.Error()
	}
	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.Error().Str("run_id", runID).Err(err).Msg("failed to archive run")
	}
}

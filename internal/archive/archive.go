// Package archive persists the artifacts of a planning-and-execution run: the
// planner's graph diagnostics, the final workflow, the execution result, run
// metadata, and (when the run failed) the error that ended it.
package archive

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no record exists for a run id.
var ErrNotFound = errors.New("archive: run not found")

// Meta is the run-level metadata stored alongside a run's artifacts.
type Meta struct {
	RunID     string
	Task      string
	StartedAt time.Time
	EndedAt   time.Time
	Status    string // "success", "failed", "running"
}

// Record is everything archived for one run. Any field may be nil if that
// stage of the run never produced it (e.g. Result is nil for a run that
// failed during planning).
type Record struct {
	Meta     Meta
	Graph    any // planner.LastRun, the planning diagnostics trail
	Workflow any // *domain.Workflow, the final workflow
	Result   any // *domain.RunState, the execution result
	ErrMsg   string
}

// Store persists and retrieves Records by run id.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, runID string) (Record, error)
	List(ctx context.Context) ([]Meta, error)
}

package domain

import "time"

// TraceEntry records one node execution attempt: its timing, input, output, and
// outcome. For each node it executes, the DAG Executor emits a running entry and then a
// terminal (success or failed) entry to the trace broadcast hook.
type TraceEntry struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id"`
	NodeID    string         `json:"node_id"`
	Executor  ExecutorType   `json:"executor"`
	Status    TraceStatus    `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	Output    any            `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Finish marks the trace entry complete with the given status at t.
func (t *TraceEntry) Finish(status TraceStatus, t2 time.Time) {
	t.Status = status
	t.EndedAt = &t2
}

// Duration returns the elapsed time between start and end, or zero if the entry hasn't
// finished yet.
func (t TraceEntry) Duration() time.Duration {
	if t.EndedAt == nil {
		return 0
	}
	return t.EndedAt.Sub(t.StartedAt)
}

package domain

import "sync"

// RunState is the DAG Executor's shared mutable state for one run, threaded through
// every node execution. Outputs is single-writer-per-id (each node id is written by
// exactly one goroutine); Messages and Errors are appended to across concurrently
// completing nodes, while CurrentTask is overwritten by each SetCurrentTask call.
type RunState struct {
	mu sync.RWMutex

	RunID       string
	Task        string
	CurrentTask string
	Outputs     map[string]any
	Messages    []string
	Errors      []string
}

// NewRunState creates an empty run state for the given run id and original task.
func NewRunState(runID, task string) *RunState {
	return &RunState{
		RunID:       runID,
		Task:        task,
		CurrentTask: task,
		Outputs:     make(map[string]any),
	}
}

// SetOutput records node id's output. Each node id must be written at most once.
func (s *RunState) SetOutput(nodeID string, output any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Outputs[nodeID] = output
}

// Output returns node id's recorded output, if any.
func (s *RunState) Output(nodeID string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.Outputs[nodeID]
	return v, ok
}

// AppendMessage merges a message into the run's message log.
func (s *RunState) AppendMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, msg)
}

// AppendError merges an error string into the run's error log.
func (s *RunState) AppendError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, msg)
}

// SetCurrentTask updates the run's notion of the current task, e.g. after the
// optimization stage rewrites the original task string.
func (s *RunState) SetCurrentTask(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentTask = task
}

// Snapshot returns a point-in-time copy of the outputs map, safe to range over
// without holding the run state's lock.
func (s *RunState) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.Outputs))
	for k, v := range s.Outputs {
		out[k] = v
	}
	return out
}

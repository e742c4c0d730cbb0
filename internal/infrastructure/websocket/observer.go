package websocket

import (
	"github.com/dagtask/planrunner/internal/domain"
)

// TraceBroadcaster adapts a Broadcaster into an engine.TraceSink so every node
// trace event produced by a run is pushed to subscribed WebSocket clients as
// it happens.
type TraceBroadcaster struct {
	hub Broadcaster
}

// NewTraceBroadcaster wraps hub as a trace sink.
func NewTraceBroadcaster(hub Broadcaster) *TraceBroadcaster {
	return &TraceBroadcaster{hub: hub}
}

// Sink is assignable to engine.TraceSink.
func (b *TraceBroadcaster) Sink(entry domain.TraceEntry) {
	event := &WSEvent{
		Timestamp: entry.StartedAt,
		RunID:     entry.RunID,
		NodeID:    entry.NodeID,
		Executor:  string(entry.Executor),
		Output:    entry.Output,
		Error:     entry.Error,
	}

	switch entry.Status {
	case domain.TraceRunning:
		event.Type = EventNodeRunning
	case domain.TraceSuccess:
		event.Type = EventNodeSuccess
		event.DurationMs = entry.Duration().Milliseconds()
	case domain.TraceFailed:
		event.Type = EventNodeFailed
		event.DurationMs = entry.Duration().Milliseconds()
	default:
		return
	}

	b.hub.Broadcast(entry.RunID, event)
}

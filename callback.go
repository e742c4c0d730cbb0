package taskflow

import (
	"github.com/dagtask/planrunner/internal/domain"
	"github.com/dagtask/planrunner/internal/infrastructure/monitoring"
	"github.com/dagtask/planrunner/internal/infrastructure/websocket"
)

// CombineSinks fans one trace event out to every sink in sinks, in order. A nil
// entry in sinks is skipped, so callers can build the slice conditionally (e.g.
// omit the websocket sink when no transport is configured) without filtering it
// themselves.
func CombineSinks(sinks ...TraceSink) TraceSink {
	return func(entry domain.TraceEntry) {
		for _, sink := range sinks {
			if sink != nil {
				sink(entry)
			}
		}
	}
}

// MetricsCollector accumulates workflow, node, and AI usage metrics across runs.
type MetricsCollector = monitoring.MetricsCollector

// NewMetricsCollector creates an empty MetricsCollector.
func NewMetricsCollector() *MetricsCollector {
	return monitoring.NewMetricsCollector()
}

// NewMetricsSink adapts collector into a TraceSink that records every node's
// duration and outcome as it finishes, returning the underlying adapter too so
// callers can invoke its RecordRun once a Service.Run call returns (run-level
// metrics aren't node events, so they're not captured by the sink itself).
func NewMetricsSink(collector *MetricsCollector) (TraceSink, *monitoring.TraceMetricsSink) {
	adapter := monitoring.NewTraceMetricsSink(collector)
	return adapter.Sink, adapter
}

// Broadcaster pushes a WebSocket event to every client subscribed to a run id.
type Broadcaster = websocket.Broadcaster

// NewTraceBroadcastSink adapts hub into a TraceSink that streams every node trace
// event to subscribed WebSocket clients as the run progresses.
func NewTraceBroadcastSink(hub Broadcaster) TraceSink {
	b := websocket.NewTraceBroadcaster(hub)
	return b.Sink
}

package monitoring

import (
	"time"

	"github.com/dagtask/planrunner/internal/domain"
)

// TraceMetricsSink adapts a MetricsCollector into an engine.TraceSink, feeding
// per-node metrics from each node's trace entry as the run progresses.
// Run-level metrics aren't node events, so callers record those separately
// with RecordRun once a run.Run call returns.
type TraceMetricsSink struct {
	collector *MetricsCollector
}

// NewTraceMetricsSink builds a sink backed by collector.
func NewTraceMetricsSink(collector *MetricsCollector) *TraceMetricsSink {
	return &TraceMetricsSink{collector: collector}
}

// Sink is assignable to engine.TraceSink.
func (s *TraceMetricsSink) Sink(entry domain.TraceEntry) {
	if entry.Status != domain.TraceSuccess && entry.Status != domain.TraceFailed {
		return
	}
	s.collector.RecordNodeExecution(entry.NodeID, string(entry.Executor), entry.NodeID, entry.Duration(), entry.Status == domain.TraceSuccess, false)
}

// RecordRun records run-level metrics once a run has finished.
func (s *TraceMetricsSink) RecordRun(runID string, duration time.Duration, success bool) {
	s.collector.RecordWorkflowExecution(runID, duration, success)
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stream terminal outcomes, used as the "outcome" label value.
const (
	OutcomeCompleted  = "completed"
	OutcomeTerminated = "terminated"
	OutcomeFailed     = "failed"
)

// StreamMetrics instruments the stream policy engine.
type StreamMetrics struct {
	streamsStarted  prometheus.Counter
	streamsFinished *prometheus.CounterVec
	streamDuration  *prometheus.HistogramVec
	chunksReceived  prometheus.Counter
	chunksForwarded prometheus.Counter
	blocksCompleted *prometheus.CounterVec
	hookErrors      *prometheus.CounterVec
	terminations    prometheus.Counter
	idleTimeouts    prometheus.Counter
	backpressure    prometheus.Counter
	silentDrops     prometheus.Counter
}

// NewStreamMetrics creates and registers the stream collectors with reg.
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	m := &StreamMetrics{
		streamsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "luthien",
			Subsystem: "stream",
			Name:      "started_total",
			Help:      "Total number of policy streams started.",
		}),
		streamsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luthien",
			Subsystem: "stream",
			Name:      "finished_total",
			Help:      "Total number of policy streams finished, by terminal outcome.",
		}, []string{"outcome"}),
		streamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "luthien",
			Subsystem: "stream",
			Name:      "duration_seconds",
			Help:      "Stream duration from start to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"outcome"}),
		chunksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "luthien",
			Subsystem: "stream",
			Name:      "chunks_received_total",
			Help:      "Total upstream chunks received by the engine.",
		}),
		chunksForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "luthien",
			Subsystem: "stream",
			Name:      "chunks_forwarded_total",
			Help:      "Total approved chunks forwarded to clients.",
		}),
		blocksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luthien",
			Subsystem: "stream",
			Name:      "blocks_completed_total",
			Help:      "Total semantic blocks completed, by block type.",
		}, []string{"type"}),
		hookErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luthien",
			Subsystem: "policy",
			Name:      "hook_errors_total",
			Help:      "Total unexpected policy hook failures, by hook.",
		}, []string{"hook"}),
		terminations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "luthien",
			Subsystem: "policy",
			Name:      "terminations_total",
			Help:      "Total graceful policy-initiated stream terminations.",
		}),
		idleTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "luthien",
			Subsystem: "stream",
			Name:      "idle_timeouts_total",
			Help:      "Total streams cancelled by the idle timeout.",
		}),
		backpressure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "luthien",
			Subsystem: "stream",
			Name:      "backpressure_trips_total",
			Help:      "Total sends aborted because the outbound channel stayed full.",
		}),
		silentDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "luthien",
			Subsystem: "stream",
			Name:      "silent_drops_total",
			Help:      "Total streams that reached a terminal state without sending output.",
		}),
	}

	reg.MustRegister(
		m.streamsStarted,
		m.streamsFinished,
		m.streamDuration,
		m.chunksReceived,
		m.chunksForwarded,
		m.blocksCompleted,
		m.hookErrors,
		m.terminations,
		m.idleTimeouts,
		m.backpressure,
		m.silentDrops,
	)

	return m
}

// StreamStarted records a new stream.
func (m *StreamMetrics) StreamStarted() {
	if m == nil {
		return
	}
	m.streamsStarted.Inc()
}

// StreamFinished records a stream reaching a terminal state.
func (m *StreamMetrics) StreamFinished(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.streamsFinished.WithLabelValues(outcome).Inc()
	m.streamDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ChunkReceived records one upstream chunk entering the engine.
func (m *StreamMetrics) ChunkReceived() {
	if m == nil {
		return
	}
	m.chunksReceived.Inc()
}

// ChunkForwarded records one approved chunk leaving the engine.
func (m *StreamMetrics) ChunkForwarded() {
	if m == nil {
		return
	}
	m.chunksForwarded.Inc()
}

// BlockCompleted records a completed semantic block.
func (m *StreamMetrics) BlockCompleted(blockType string) {
	if m == nil {
		return
	}
	m.blocksCompleted.WithLabelValues(blockType).Inc()
}

// HookError records an unexpected policy hook failure.
func (m *StreamMetrics) HookError(hook string) {
	if m == nil {
		return
	}
	m.hookErrors.WithLabelValues(hook).Inc()
}

// Termination records a graceful policy-initiated termination.
func (m *StreamMetrics) Termination() {
	if m == nil {
		return
	}
	m.terminations.Inc()
}

// IdleTimeout records a stream cancelled by the idle timeout.
func (m *StreamMetrics) IdleTimeout() {
	if m == nil {
		return
	}
	m.idleTimeouts.Inc()
}

// BackpressureTrip records a send aborted by the bounded-wait circuit breaker.
func (m *StreamMetrics) BackpressureTrip() {
	if m == nil {
		return
	}
	m.backpressure.Inc()
}

// SilentDrop records a stream that ended without sending any output.
func (m *StreamMetrics) SilentDrop() {
	if m == nil {
		return
	}
	m.silentDrops.Inc()
}

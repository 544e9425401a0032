package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Severity classifies an event's importance.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is a single observability event recorded during stream processing.
type Event struct {
	// ID is the unique event identifier.
	ID string

	// StreamID identifies the stream this event belongs to.
	StreamID string

	// Type is a short machine-readable event type
	// (e.g., "stream_started", "tool_call_blocked").
	Type string

	// Summary is a one-line human-readable description.
	Summary string

	// Details contains structured event-specific fields.
	Details map[string]any

	// Severity classifies the event.
	Severity Severity

	// Timestamp is when the event was recorded.
	Timestamp time.Time
}

// New constructs an event with a fresh ID and the current time.
func New(streamID, eventType, summary string, details map[string]any, severity Severity) Event {
	return Event{
		ID:        uuid.NewString(),
		StreamID:  streamID,
		Type:      eventType,
		Summary:   summary,
		Details:   details,
		Severity:  severity,
		Timestamp: time.Now(),
	}
}

// Sink receives events. Implementations must not block the caller; sinks
// that perform I/O are expected to buffer and drop under pressure rather
// than stall a live stream.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// NopSink discards all events.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(context.Context, Event) {}

// LogSink writes events to a slog logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging to the given logger, or slog.Default()
// if nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "events")}
}

// Emit implements Sink.
func (s *LogSink) Emit(ctx context.Context, ev Event) {
	level := slog.LevelInfo
	switch ev.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, ev.Summary,
		"event_id", ev.ID,
		"stream_id", ev.StreamID,
		"event_type", ev.Type,
		"details", ev.Details,
	)
}

// MultiSink fans an event out to several sinks.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// SpanSink attaches events to the active trace span, if any. Events emitted
// outside a recording span are dropped.
type SpanSink struct{}

// Emit implements Sink.
func (SpanSink) Emit(ctx context.Context, ev Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(ev.Type, trace.WithAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.stream_id", ev.StreamID),
		attribute.String("event.summary", ev.Summary),
		attribute.String("event.severity", string(ev.Severity)),
	))
}

package stream

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// streamContext is the engine's implementation of policy.Context. One
// instance exists per stream; hooks receive it on every invocation.
//
// Fatal conditions raised inside Send (backpressure, cancelled client) are
// recorded here in addition to being returned, so a hook that ignores the
// error return cannot keep the stream alive.
type streamContext struct {
	streamID string
	pump     *outputPump
	sink     events.Sink
	logger   *slog.Logger

	// lastActivity is the unix-nano timestamp of the most recent upstream
	// chunk or Keepalive call, read by the idle watchdog.
	lastActivity atomic.Int64

	// terminated is set by Terminate; reason holds the first reason given.
	terminated atomic.Bool
	reason     atomic.Pointer[string]

	// fatal holds the first unrecoverable error raised through this context.
	fatal atomic.Pointer[error]
}

func newStreamContext(streamID string, pump *outputPump, sink events.Sink, logger *slog.Logger) *streamContext {
	sc := &streamContext{
		streamID: streamID,
		pump:     pump,
		sink:     sink,
		logger:   logger,
	}
	sc.touch()
	return sc
}

// StreamID implements policy.Context.
func (sc *streamContext) StreamID() string {
	return sc.streamID
}

// Send implements policy.Context.
func (sc *streamContext) Send(ctx context.Context, chunk *providers.Chunk) error {
	if sc.terminated.Load() {
		return policy.ErrSendAfterTermination
	}
	if err := sc.pump.send(ctx, chunk); err != nil {
		sc.recordFatal(err)
		return err
	}
	return nil
}

// Terminate implements policy.Context.
func (sc *streamContext) Terminate(reason string) {
	if sc.terminated.CompareAndSwap(false, true) {
		sc.reason.Store(&reason)
	}
}

// Keepalive implements policy.Context.
func (sc *streamContext) Keepalive() {
	sc.touch()
}

// Emit implements policy.Context.
func (sc *streamContext) Emit(ctx context.Context, eventType, summary string, details map[string]any, severity events.Severity) {
	sc.sink.Emit(ctx, events.New(sc.streamID, eventType, summary, details, severity))
}

// touch resets the inactivity deadline.
func (sc *streamContext) touch() {
	sc.lastActivity.Store(time.Now().UnixNano())
}

// idleSince returns the time elapsed since the last recorded activity.
func (sc *streamContext) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, sc.lastActivity.Load()))
}

// isTerminated reports whether Terminate has been called.
func (sc *streamContext) isTerminated() bool {
	return sc.terminated.Load()
}

// terminationReason returns the reason passed to the first Terminate call.
func (sc *streamContext) terminationReason() string {
	if r := sc.reason.Load(); r != nil {
		return *r
	}
	return ""
}

// recordFatal stores the first unrecoverable error raised through the
// context, so the engine sees it even if the hook swallows the return.
func (sc *streamContext) recordFatal(err error) {
	sc.fatal.CompareAndSwap(nil, &err)
}

// fatalError returns the recorded unrecoverable error, if any.
func (sc *streamContext) fatalError() error {
	if p := sc.fatal.Load(); p != nil {
		return *p
	}
	return nil
}

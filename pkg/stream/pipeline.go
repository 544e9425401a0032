package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/telemetry/metrics"
)

// Source supplies normalized chunks from an upstream provider. Next blocks
// until a chunk is available, returns io.EOF when the upstream stream ends
// cleanly, and returns any other error for an upstream failure.
type Source interface {
	Next(ctx context.Context) (*providers.Chunk, error)
}

// Config holds the tunable limits of the engine.
type Config struct {
	// IdleTimeout is the maximum inactivity window: if neither an upstream
	// chunk nor a policy Keepalive arrives within it, the stream fails with
	// a TimeoutError. Defaults to 30s.
	IdleTimeout time.Duration

	// ChannelCapacity is the buffer size of the outbound channel.
	// Defaults to 64.
	ChannelCapacity int

	// SendTimeout is the bounded wait for placing a chunk on a full
	// outbound channel before the backpressure breaker trips.
	// Defaults to 10s.
	SendTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = 64
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// Pipeline runs one policy over upstream chunk streams. It is safe for
// concurrent use; each Run call creates an independent stream.
type Pipeline struct {
	pol     policy.Policy
	cfg     Config
	sink    events.Sink
	metrics *metrics.StreamMetrics
	logger  *slog.Logger
}

// NewPipeline creates a pipeline driving the given policy. sink, m, and
// logger may each be nil for uninstrumented use.
func NewPipeline(pol policy.Policy, cfg Config, sink events.Sink, m *metrics.StreamMetrics, logger *slog.Logger) *Pipeline {
	if sink == nil {
		sink = events.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		pol:     pol,
		cfg:     cfg.withDefaults(),
		sink:    sink,
		metrics: m,
		logger:  logger,
	}
}

// Stream is a running policy-mediated stream. Consume approved chunks from
// Chunks until it closes, then check Err for the stream outcome.
type Stream struct {
	id   string
	out  chan *providers.Chunk
	done chan struct{}
	err  error

	terminated  bool
	terminateBy string
}

// ID returns the stream's unique identifier.
func (s *Stream) ID() string { return s.id }

// Chunks returns the channel of approved chunks. It closes exactly once,
// when the stream reaches a terminal state.
func (s *Stream) Chunks() <-chan *providers.Chunk { return s.out }

// Err blocks until the stream reaches a terminal state and returns its
// outcome: nil for normal completion or a graceful policy termination, the
// failing error otherwise.
func (s *Stream) Err() error {
	<-s.done
	return s.err
}

// Terminated blocks until the stream reaches a terminal state and reports
// whether a policy terminated it, with the reason given.
func (s *Stream) Terminated() (reason string, ok bool) {
	<-s.done
	return s.terminateBy, s.terminated
}

// Run starts a stream that pulls chunks from source, drives the policy
// hooks, and forwards approved output. It returns immediately; processing
// runs until the source ends, a policy stops the stream, the idle timeout
// fires, or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, source Source) *Stream {
	pump := newOutputPump(p.cfg.ChannelCapacity, p.cfg.SendTimeout, p.metrics)
	s := &Stream{
		id:   uuid.NewString(),
		out:  pump.out,
		done: make(chan struct{}),
	}
	go p.run(ctx, source, pump, s)
	return s
}

// inboundResult is one read from the source feeder goroutine.
type inboundResult struct {
	chunk *providers.Chunk
	err   error
}

func (p *Pipeline) run(ctx context.Context, source Source, pump *outputPump, s *Stream) {
	start := time.Now()
	p.metrics.StreamStarted()

	sc := newStreamContext(s.id, pump, p.sink, p.logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := newRuntime(p.pol, sc, p.metrics, p.logger)
	if err != nil {
		p.finish(ctx, nil, sc, pump, s, start, err)
		return
	}

	var finalErr error
	defer func() {
		p.finish(ctx, rt, sc, pump, s, start, finalErr)
	}()

	if err := rt.streamStarted(ctx); err != nil {
		if err != errTerminated {
			finalErr = err
		}
		return
	}

	// The feeder decouples the blocking source read from the select loop so
	// the idle watchdog and cancellation stay responsive.
	inbound := make(chan inboundResult)
	go func() {
		defer close(inbound)
		for {
			chunk, err := source.Next(ctx)
			select {
			case inbound <- inboundResult{chunk: chunk, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	timer := time.NewTimer(p.cfg.IdleTimeout)
	defer timer.Stop()

	for {
		select {
		case res, ok := <-inbound:
			if !ok {
				// The feeder exits without delivering a result only when the
				// context was cancelled mid-handoff.
				finalErr = ctx.Err()
				return
			}
			if res.err != nil {
				if !errors.Is(res.err, io.EOF) {
					finalErr = res.err
				}
				return
			}

			sc.touch()
			p.metrics.ChunkReceived()

			if err := rt.processChunk(ctx, res.chunk); err != nil {
				if err != errTerminated {
					finalErr = err
				}
				return
			}

		case now := <-timer.C:
			// Keepalives reset the deadline without waking this loop, so
			// re-check actual inactivity before declaring a timeout.
			idle := sc.idleSince(now)
			if idle < p.cfg.IdleTimeout {
				timer.Reset(p.cfg.IdleTimeout - idle)
				continue
			}
			p.metrics.IdleTimeout()
			finalErr = &TimeoutError{Idle: p.cfg.IdleTimeout}
			return

		case <-ctx.Done():
			finalErr = ctx.Err()
			return
		}
	}
}

// finish is the single terminal path: it runs the stream-level cleanup
// hooks, enforces the no-silent-drop invariant, records the outcome, and
// closes the outbound channel.
func (p *Pipeline) finish(ctx context.Context, rt *runtime, sc *streamContext, pump *outputPump, s *Stream, start time.Time, finalErr error) {
	// Cleanup hooks run against a fresh context: the stream context may
	// already be cancelled, and resource release must still happen.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}

	if rt != nil {
		if finalErr != nil {
			rt.streamError(ctx, finalErr)
		}
		rt.streamClosed(ctx)
	}

	terminated := sc.isTerminated()
	s.terminated = terminated
	s.terminateBy = sc.terminationReason()
	if terminated {
		p.metrics.Termination()
		p.sink.Emit(ctx, events.New(s.id, "stream.terminated", sc.terminationReason(), nil, events.SeverityInfo))
	}

	if finalErr == nil && !pump.sentAnything() {
		finalErr = &SilentDropError{StreamID: s.id}
		p.metrics.SilentDrop()
	}

	outcome := metrics.OutcomeCompleted
	switch {
	case finalErr != nil:
		outcome = metrics.OutcomeFailed
	case terminated:
		outcome = metrics.OutcomeTerminated
	}
	p.metrics.StreamFinished(outcome, time.Since(start))

	if finalErr != nil {
		p.logger.Warn("stream finished with error",
			"stream_id", s.id,
			"policy", p.pol.Name(),
			"error", finalErr,
		)
		p.sink.Emit(ctx, events.New(s.id, "stream.failed", finalErr.Error(), nil, events.SeverityError))
	}

	s.err = finalErr
	pump.close()
	close(s.done)
}

package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/telemetry/metrics"
)

// runtime drives the fixed hook sequence of one policy over one stream. It
// owns the aggregator and the per-stream policy state, and funnels every
// hook invocation through a single wrapper that normalizes panics,
// terminations, and fatal context errors.
type runtime struct {
	pol     policy.Policy
	st      policy.State
	sc      *streamContext
	agg     *Aggregator
	metrics *metrics.StreamMetrics
	logger  *slog.Logger
}

func newRuntime(pol policy.Policy, sc *streamContext, m *metrics.StreamMetrics, logger *slog.Logger) (*runtime, error) {
	st, err := pol.NewState()
	if err != nil {
		return nil, &PolicyError{Policy: pol.Name(), Hook: "NewState", Cause: err}
	}
	return &runtime{
		pol:     pol,
		st:      st,
		sc:      sc,
		agg:     NewAggregator(),
		metrics: m,
		logger:  logger,
	}, nil
}

// invoke runs one hook with the engine's uniform error discipline: a panic
// becomes a PolicyError, a Termination (returned or raised via the context)
// becomes errTerminated, a fatal context error (backpressure, cancelled
// client) takes precedence over whatever the hook returned, and any other
// non-nil error becomes a PolicyError.
func (r *runtime) invoke(hook string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.HookError(hook)
			err = &PolicyError{
				Policy: r.pol.Name(),
				Hook:   hook,
				Cause:  fmt.Errorf("panic: %v", rec),
			}
		}
	}()

	hookErr := fn()

	if fatal := r.sc.fatalError(); fatal != nil {
		return fatal
	}

	if hookErr != nil {
		if t, ok := policy.AsTermination(hookErr); ok {
			r.sc.Terminate(t.Reason)
			return errTerminated
		}
		r.metrics.HookError(hook)
		return &PolicyError{Policy: r.pol.Name(), Hook: hook, Cause: hookErr}
	}

	if r.sc.isTerminated() {
		return errTerminated
	}
	return nil
}

// streamStarted runs the OnStreamStarted hook.
func (r *runtime) streamStarted(ctx context.Context) error {
	return r.invoke("OnStreamStarted", func() error {
		return r.pol.OnStreamStarted(ctx, r.sc, r.st)
	})
}

// processChunk ingests one chunk and drives the full per-chunk hook
// sequence. The aggregator runs first: a malformed chunk fails the stream
// before any hook sees it. Any hook stopping the stream (termination or
// failure) skips the remaining hooks for this chunk.
func (r *runtime) processChunk(ctx context.Context, chunk *providers.Chunk) error {
	blockEvents, err := r.agg.Ingest(chunk)
	if err != nil {
		return err
	}

	if err := r.invoke("OnChunkStarted", func() error {
		return r.pol.OnChunkStarted(ctx, r.sc, r.st, chunk)
	}); err != nil {
		return err
	}

	if chunk.Role != "" {
		if err := r.invoke("OnRoleDelta", func() error {
			return r.pol.OnRoleDelta(ctx, r.sc, r.st, chunk.Role)
		}); err != nil {
			return err
		}
	}

	if chunk.ContentDelta != nil && *chunk.ContentDelta != "" {
		if err := r.invoke("OnContentDelta", func() error {
			return r.pol.OnContentDelta(ctx, r.sc, r.st, *chunk.ContentDelta)
		}); err != nil {
			return err
		}
	}

	for _, d := range chunk.ToolCallDeltas {
		delta := d
		if err := r.invoke("OnToolCallDelta", func() error {
			return r.pol.OnToolCallDelta(ctx, r.sc, r.st, delta)
		}); err != nil {
			return err
		}
	}

	if chunk.Usage != nil {
		usage := *chunk.Usage
		if err := r.invoke("OnUsageDelta", func() error {
			return r.pol.OnUsageDelta(ctx, r.sc, r.st, usage)
		}); err != nil {
			return err
		}
	}

	if chunk.FinishReason != "" {
		if err := r.invoke("OnFinishReason", func() error {
			return r.pol.OnFinishReason(ctx, r.sc, r.st, chunk.FinishReason)
		}); err != nil {
			return err
		}
	}

	for _, ev := range blockEvents {
		if ev.Kind != BlockCompleted {
			continue
		}
		if err := r.blockCompleted(ctx, ev.Block); err != nil {
			return err
		}
	}

	if chunk.FinishReason != "" {
		if err := r.invoke("OnMessageCompleted", func() error {
			return r.pol.OnMessageCompleted(ctx, r.sc, r.st, r.agg.State())
		}); err != nil {
			return err
		}
	}

	return r.invoke("OnChunkFinished", func() error {
		return r.pol.OnChunkFinished(ctx, r.sc, r.st, chunk)
	})
}

// blockCompleted runs the completion hooks for one block: OnBlockCompleted
// always, then OnToolCallCompleted for tool call blocks.
func (r *runtime) blockCompleted(ctx context.Context, block *policy.Block) error {
	r.metrics.BlockCompleted(string(block.Type))

	if err := r.invoke("OnBlockCompleted", func() error {
		return r.pol.OnBlockCompleted(ctx, r.sc, r.st, block)
	}); err != nil {
		return err
	}

	if block.Type != policy.BlockTypeToolCall {
		return nil
	}
	return r.invoke("OnToolCallCompleted", func() error {
		return r.pol.OnToolCallCompleted(ctx, r.sc, r.st, block)
	})
}

// streamError runs the OnStreamError hook. A failure inside the hook is
// logged but does not replace the original stream error.
func (r *runtime) streamError(ctx context.Context, streamErr error) {
	if err := r.invoke("OnStreamError", func() error {
		return r.pol.OnStreamError(ctx, r.sc, r.st, streamErr)
	}); err != nil && err != errTerminated {
		r.logger.Error("stream error hook failed",
			"stream_id", r.sc.StreamID(),
			"policy", r.pol.Name(),
			"error", err,
		)
	}
}

// streamClosed runs the OnStreamClosed hook. A failure inside the hook is
// logged; by this point the stream outcome is already decided.
func (r *runtime) streamClosed(ctx context.Context) {
	if err := r.invoke("OnStreamClosed", func() error {
		return r.pol.OnStreamClosed(ctx, r.sc, r.st)
	}); err != nil && err != errTerminated {
		r.logger.Error("stream close hook failed",
			"stream_id", r.sc.StreamID(),
			"policy", r.pol.Name(),
			"error", err,
		)
	}
}

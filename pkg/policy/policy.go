package policy

import (
	"context"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// State is opaque per-stream mutable state owned by policy hooks. It is
// created once per stream by the policy's NewState factory and threaded
// through every hook call for that stream.
type State any

// Policy is the fixed hook interface invoked by the stream engine. For every
// chunk the engine calls, in order: OnChunkStarted, OnRoleDelta (if a role
// marker is present), OnContentDelta (if a text delta is present),
// OnToolCallDelta (once per fragment, in wire order), OnUsageDelta (if usage
// is present), OnFinishReason (if a finish reason is present), then the
// completion hooks for any block that just completed (in block sequence
// order), then OnChunkFinished.
//
// At the stream level, OnStreamStarted runs once before the first chunk;
// OnStreamClosed runs exactly once on every exit path; OnStreamError runs
// only for unexpected failures, before OnStreamClosed, and is skipped for a
// graceful Termination.
//
// Any hook may stop the stream by returning a Termination or calling
// Context.Terminate. Any other non-nil error is an unexpected policy failure
// and fails the stream.
type Policy interface {
	// Name returns the policy's registered name.
	Name() string

	// NewState creates the per-stream state threaded through every hook.
	NewState() (State, error)

	OnStreamStarted(ctx context.Context, sc Context, st State) error
	OnChunkStarted(ctx context.Context, sc Context, st State, chunk *providers.Chunk) error
	OnRoleDelta(ctx context.Context, sc Context, st State, role string) error
	OnContentDelta(ctx context.Context, sc Context, st State, delta string) error
	OnToolCallDelta(ctx context.Context, sc Context, st State, delta providers.ToolCallDelta) error
	OnUsageDelta(ctx context.Context, sc Context, st State, usage providers.Usage) error
	OnFinishReason(ctx context.Context, sc Context, st State, reason string) error

	// OnBlockCompleted fires once for every block that just completed, in
	// block sequence order.
	OnBlockCompleted(ctx context.Context, sc Context, st State, block *Block) error

	// OnToolCallCompleted fires for tool_call blocks, immediately after
	// OnBlockCompleted for the same block.
	OnToolCallCompleted(ctx context.Context, sc Context, st State, block *Block) error

	// OnMessageCompleted fires once when the finish reason closes the
	// message, after all block completion hooks.
	OnMessageCompleted(ctx context.Context, sc Context, st State, state *StreamState) error

	OnChunkFinished(ctx context.Context, sc Context, st State, chunk *providers.Chunk) error

	// OnStreamError runs for unexpected failures only, before
	// OnStreamClosed. A graceful Termination skips it.
	OnStreamError(ctx context.Context, sc Context, st State, streamErr error) error

	// OnStreamClosed runs exactly once on every exit path: normal
	// completion, termination, error, timeout, or client disconnect. It is
	// the place to release per-stream resources held in State.
	OnStreamClosed(ctx context.Context, sc Context, st State) error
}

// Base provides no-op implementations of every hook and a nil state factory,
// so concrete policies override only what they need. Embedders must provide
// Name.
type Base struct{}

// NewState returns nil state; policies without per-stream state keep this.
func (Base) NewState() (State, error) { return nil, nil }

func (Base) OnStreamStarted(context.Context, Context, State) error { return nil }

func (Base) OnChunkStarted(context.Context, Context, State, *providers.Chunk) error { return nil }

func (Base) OnRoleDelta(context.Context, Context, State, string) error { return nil }

func (Base) OnContentDelta(context.Context, Context, State, string) error { return nil }

func (Base) OnToolCallDelta(context.Context, Context, State, providers.ToolCallDelta) error {
	return nil
}

func (Base) OnUsageDelta(context.Context, Context, State, providers.Usage) error { return nil }

func (Base) OnFinishReason(context.Context, Context, State, string) error { return nil }

func (Base) OnBlockCompleted(context.Context, Context, State, *Block) error { return nil }

func (Base) OnToolCallCompleted(context.Context, Context, State, *Block) error { return nil }

func (Base) OnMessageCompleted(context.Context, Context, State, *StreamState) error { return nil }

func (Base) OnChunkFinished(context.Context, Context, State, *providers.Chunk) error { return nil }

func (Base) OnStreamError(context.Context, Context, State, error) error { return nil }

func (Base) OnStreamClosed(context.Context, Context, State) error { return nil }

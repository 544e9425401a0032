package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// Context is the only surface through which hook code may affect a stream.
// Hooks never receive the underlying channels, so policy code structurally
// cannot double-close the output, drop a termination signal, or reorder
// emission; the engine enforces those invariants centrally.
type Context interface {
	// StreamID returns the unique identifier of this stream.
	StreamID() string

	// Send enqueues an approved chunk for delivery to the client. It fails
	// with ErrSendAfterTermination once the stream has been terminated, and
	// with a fatal backpressure error if the outbound channel cannot accept
	// the chunk within the configured wait.
	Send(ctx context.Context, chunk *providers.Chunk) error

	// Terminate requests a graceful stop of the stream. The engine checks
	// the flag as soon as the current hook returns: remaining hooks for the
	// current chunk are skipped, queued output is flushed, and the stream
	// closes through the normal cleanup path. Equivalent to returning a
	// Termination error from the hook.
	Terminate(reason string)

	// Keepalive resets the stream's inactivity deadline without producing
	// client-visible output. Hooks doing out-of-band work that may outlast
	// the idle timeout (e.g., a scoring call to another model) must invoke
	// it periodically.
	Keepalive()

	// Emit records an observability event. Delivery is fire-and-forget and
	// never blocks the stream.
	Emit(ctx context.Context, eventType, summary string, details map[string]any, severity events.Severity)
}

// ErrSendAfterTermination is returned by Context.Send once the stream has
// been terminated. No output may follow a termination.
var ErrSendAfterTermination = errors.New("send rejected: stream already terminated")

// Termination is the distinguished signal a hook returns (or raises via
// Context.Terminate) to stop a stream gracefully. It is not an error
// condition: the engine skips the error hook and routes straight to stream
// close.
type Termination struct {
	// Reason describes why the policy stopped the stream.
	Reason string
}

// Error implements the error interface so hooks can return a Termination
// through their ordinary error result.
func (t *Termination) Error() string {
	return fmt.Sprintf("stream terminated by policy: %s", t.Reason)
}

// Terminate returns a Termination signal with the given reason, for use as
// a hook return value.
func Terminate(reason string) error {
	return &Termination{Reason: reason}
}

// AsTermination reports whether err is (or wraps) a Termination, returning
// the signal when it is.
func AsTermination(err error) (*Termination, bool) {
	var t *Termination
	if errors.As(err, &t) {
		return t, true
	}
	return nil, false
}

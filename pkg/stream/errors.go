package stream

import (
	"errors"
	"fmt"
	"time"
)

// errTerminated is the internal short-circuit signal for a graceful,
// policy-initiated termination. It never escapes the pipeline.
var errTerminated = errors.New("stream terminated by policy")

// DataError indicates a malformed or unexpected chunk shape from the
// upstream. It is fatal for the whole stream and never retried: a retry
// after partial output risks re-emitting content the client already
// received, and under-forwarding promised content is less safe than
// failing loudly.
type DataError struct {
	// Message describes the malformation.
	Message string

	// Cause is the underlying error (if any).
	Cause error
}

// Error implements the error interface.
func (e *DataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed upstream chunk: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("malformed upstream chunk: %s", e.Message)
}

// Unwrap returns the underlying cause.
func (e *DataError) Unwrap() error {
	return e.Cause
}

// PolicyError indicates an unexpected failure raised from a policy hook
// (an error return other than a Termination, or a panic). The stream fails
// and the error propagates to the caller, which decides the client-facing
// behavior; the engine never falls back to unfiltered passthrough.
type PolicyError struct {
	// Policy is the name of the failing policy.
	Policy string

	// Hook is the hook method that failed.
	Hook string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy %q hook %s failed: %v", e.Policy, e.Hook, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *PolicyError) Unwrap() error {
	return e.Cause
}

// TimeoutError indicates that neither an upstream chunk nor a keepalive
// arrived within the configured idle window. It is handled like a policy
// error for cleanup purposes: OnStreamError runs, then OnStreamClosed.
type TimeoutError struct {
	// Idle is the configured inactivity window that elapsed.
	Idle time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("stream idle timeout: no activity within %s", e.Idle)
}

// BackpressureError indicates a Send could not place a chunk on the
// outbound channel within the configured wait. A consumer this far behind
// is treated as a tripped circuit breaker, not an indefinite stall.
type BackpressureError struct {
	// Wait is the bounded wait that elapsed.
	Wait time.Duration
}

// Error implements the error interface.
func (e *BackpressureError) Error() string {
	return fmt.Sprintf("outbound channel blocked for %s: backpressure limit exceeded", e.Wait)
}

// SilentDropError indicates a stream reached a terminal state without a
// single Send. An unexpectedly empty response is a safety-relevant defect,
// not a benign outcome, so it propagates as a failure rather than
// resolving into an empty success.
type SilentDropError struct {
	// StreamID identifies the offending stream.
	StreamID string
}

// Error implements the error interface.
func (e *SilentDropError) Error() string {
	return fmt.Sprintf("stream %s completed without sending any output", e.StreamID)
}

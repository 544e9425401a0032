// Package stream implements the streaming policy execution engine: the
// subsystem that consumes a live chunk stream from an upstream provider,
// reconstructs semantic blocks from raw deltas, drives the policy hook
// sequence over them, and forwards approved output through a bounded
// outbound channel to the client serializer.
//
// The engine guarantees, on every exit path (completion, policy-initiated
// termination, hook failure, idle timeout, client disconnect):
//
//   - the policy's OnStreamClosed hook runs exactly once,
//   - the outbound channel closes exactly once,
//   - OnStreamError runs only for unexpected failures, never for a
//     graceful termination,
//   - a stream that ends having forwarded nothing surfaces a
//     SilentDropError instead of an empty success.
//
// Per-stream processing is single-goroutine: chunks are handled strictly in
// arrival order and hooks for one chunk always run in the fixed order
// documented on policy.Policy.
package stream

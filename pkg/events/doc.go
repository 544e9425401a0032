// Package events defines the observability event model for the proxy and
// the Sink interface that delivery backends implement.
//
// Policy hooks record events through the stream context's Emit method, and
// the stream pipeline records lifecycle events of its own. The contract at
// the emission site is fire-and-forget: Emit must not block the stream, so
// sinks that perform I/O buffer internally (see the store subpackage).
package events

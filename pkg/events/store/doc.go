// Package store persists observability events to SQLite. Writes go through
// an asynchronous sink so that event recording never blocks a live stream:
// the sink buffers in memory and a full buffer drops events rather than
// applying backpressure to the policy engine.
package store

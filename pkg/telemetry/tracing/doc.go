// Package tracing configures OpenTelemetry span export over OTLP gRPC.
//
// Tracing is opt-in. When disabled the Tracer hands out noop spans so call
// sites never branch on whether export is configured.
package tracing

// Package metrics provides Prometheus instrumentation for the proxy's
// stream policy engine and exposes the /metrics HTTP handler.
//
// All methods on the collectors are nil-receiver safe, so components can
// run uninstrumented (tests, embedded use) without guarding every call.
package metrics

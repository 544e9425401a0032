// Package middleware provides the HTTP middleware chain: request ID
// propagation, structured request logging, panic recovery, and per-client
// rate limiting.
package middleware

// Package handlers implements the HTTP handlers behind the proxy's routes:
// chat completions (streaming and non-streaming, both policy-mediated),
// health probes, and policy introspection.
package handlers

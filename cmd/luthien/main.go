// Luthien is a policy-enforcing proxy for LLM API traffic.
//
// It sits between clients and upstream LLM providers, exposing an
// OpenAI-compatible API while every request and response, streaming or
// not, passes through a configurable policy before reaching the client:
//   - Streaming policy execution with per-chunk hooks
//   - Tool call vetting before tool fragments reach the client
//   - Content redaction and output rate limiting
//   - Hot policy reload without dropping in-flight streams
//   - Durable event log of policy decisions
//
// Usage:
//
//	# Start the proxy with default configuration
//	luthien run
//
//	# Start with a custom configuration file
//	luthien run --config /etc/luthien/config.yaml
//
//	# Validate configuration without starting
//	luthien validate
//
//	# List available policies
//	luthien policies
package main

func main() {
	Execute()
}

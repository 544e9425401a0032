// Package providers defines the provider-agnostic data model for LLM
// traffic flowing through the proxy.
//
// Every upstream wire format (OpenAI's content-first chunk stream,
// Anthropic's block-event stream) is normalized by a provider adapter into
// the Chunk shape defined here before it reaches the policy engine. The
// policy engine and the client serializer only ever see this normalized
// model, never raw provider payloads.
//
// The package also provides UpstreamClient, the shared HTTP client used by
// the adapters to talk to provider endpoints.
package providers

// Package openai adapts OpenAI's chat completions API to the proxy's
// provider-agnostic vocabulary: requests transform into the OpenAI wire
// format, and both streamed SSE chunks and complete responses normalize
// into providers.Chunk and providers.Response.
package openai

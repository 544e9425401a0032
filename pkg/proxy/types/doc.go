// Package types defines the OpenAI-compatible wire types the proxy speaks
// to its clients: chat completion requests, responses, stream chunks, and
// error payloads. These match the OpenAI Chat Completions API so existing
// SDKs work unchanged against the proxy.
package types

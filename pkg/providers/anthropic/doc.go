// Package anthropic adapts Anthropic's messages API to the proxy's
// provider-agnostic vocabulary. The streaming adapter folds Anthropic's
// block-structured SSE events (content_block_start, content_block_delta,
// message_delta, ...) into flat normalized chunks, mapping tool_use blocks
// onto sequential tool call indexes.
package anthropic

package policy

import "github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"

// BlockType identifies the kind of semantic unit a Block aggregates.
type BlockType string

const (
	// BlockTypeContent is the single text content block of a message.
	BlockTypeContent BlockType = "content"

	// BlockTypeToolCall is one tool/function call.
	BlockTypeToolCall BlockType = "tool_call"
)

// Block is an aggregated semantic unit of a streaming response: either the
// message's text content or one tool call, built incrementally from chunk
// deltas by the aggregator.
type Block struct {
	// ID identifies the block: the tool call id for tool_call blocks, or a
	// synthetic id for the content block.
	ID string

	// Type is the block kind.
	Type BlockType

	// Index is the block's position in the stream's block sequence. The
	// content block, when present, is always index 0.
	Index int

	// Text is the accumulated content text (content blocks only).
	Text string

	// ToolName is the function name (tool_call blocks only).
	ToolName string

	// Arguments is the accumulated JSON argument text (tool_call blocks only).
	Arguments string

	// Completed is true once the block can no longer grow.
	Completed bool
}

// ToolCall converts a completed tool_call block to the provider tool call
// shape, for policies that reuse full-response judgment logic on streamed
// calls.
func (b *Block) ToolCall() providers.ToolCall {
	return providers.ToolCall{
		ID:        b.ID,
		Name:      b.ToolName,
		Arguments: b.Arguments,
	}
}

// StreamState is the ordered collection of blocks aggregated so far for one
// stream, plus message-level fields.
//
// Invariants maintained by the aggregator: at most one block is open at a
// time; the content block, if present, is first and is implicitly closed by
// the first tool call delta or by the finish reason; tool call blocks never
// interleave.
type StreamState struct {
	// Role is the message role from the opening chunk.
	Role string

	// Blocks holds all blocks in sequence order.
	Blocks []*Block

	// FinishReason is the terminal finish reason, empty until the message
	// completes.
	FinishReason string

	// Usage is the most recent usage report from the upstream, nil until
	// one arrives.
	Usage *providers.Usage
}

// ContentBlock returns the content block, or nil if the stream produced none.
func (s *StreamState) ContentBlock() *Block {
	if len(s.Blocks) > 0 && s.Blocks[0].Type == BlockTypeContent {
		return s.Blocks[0]
	}
	return nil
}

// ToolCallBlocks returns the tool call blocks in sequence order.
func (s *StreamState) ToolCallBlocks() []*Block {
	var out []*Block
	for _, b := range s.Blocks {
		if b.Type == BlockTypeToolCall {
			out = append(out, b)
		}
	}
	return out
}

// OpenBlock returns the currently open block, or nil if none is open.
func (s *StreamState) OpenBlock() *Block {
	if n := len(s.Blocks); n > 0 && !s.Blocks[n-1].Completed {
		return s.Blocks[n-1]
	}
	return nil
}

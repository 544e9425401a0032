package stream

import (
	"context"
	"errors"
	"io"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// sliceSource replays a fixed chunk sequence, then reports a clean end.
type sliceSource struct {
	chunks []*providers.Chunk
	pos    int
}

func (s *sliceSource) Next(ctx context.Context) (*providers.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

// ProcessResponse applies the pipeline's policy to a complete, non-streamed
// response by replaying it as a single synthetic chunk through the same
// engine the streaming path uses. The two paths therefore share hook
// ordering, termination handling, and the no-silent-drop invariant exactly.
//
// The result is the response reassembled from the chunks the policy
// approved. A graceful termination yields a nil response and a nil error
// with terminated reporting the reason.
func (p *Pipeline) ProcessResponse(ctx context.Context, resp *providers.Response) (out *providers.Response, terminated string, err error) {
	s := p.Run(ctx, &sliceSource{chunks: []*providers.Chunk{responseChunk(resp)}})

	agg := NewAggregator()
	var aggErr error
	for chunk := range s.Chunks() {
		if aggErr != nil {
			continue
		}
		if _, err := agg.Ingest(chunk); err != nil {
			aggErr = err
		}
	}

	if err := s.Err(); err != nil {
		var silent *SilentDropError
		if reason, ok := s.Terminated(); ok && errors.As(err, &silent) {
			return nil, reason, nil
		}
		return nil, "", err
	}
	if aggErr != nil {
		return nil, "", aggErr
	}
	if reason, ok := s.Terminated(); ok && agg.State().FinishReason == "" {
		return nil, reason, nil
	}

	state := agg.State()
	result := &providers.Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Role:         state.Role,
		FinishReason: state.FinishReason,
		Usage:        state.Usage,
	}
	if block := state.ContentBlock(); block != nil {
		result.Content = block.Text
	}
	for _, block := range state.ToolCallBlocks() {
		result.ToolCalls = append(result.ToolCalls, block.ToolCall())
	}
	return result, "", nil
}

// responseChunk flattens a complete response into the one chunk that
// replays it through the streaming engine.
func responseChunk(resp *providers.Response) *providers.Chunk {
	chunk := &providers.Chunk{
		Role:         resp.Role,
		FinishReason: resp.FinishReason,
	}
	if resp.Content != "" {
		chunk.ContentDelta = providers.Text(resp.Content)
	}
	for i, call := range resp.ToolCalls {
		chunk.ToolCallDeltas = append(chunk.ToolCallDeltas, providers.ToolCallDelta{
			Index:          i,
			ID:             call.ID,
			Name:           call.Name,
			ArgumentsDelta: call.Arguments,
		})
	}
	if resp.Usage != nil {
		u := *resp.Usage
		chunk.Usage = &u
	}
	if chunk.FinishReason == "" {
		chunk.FinishReason = providers.FinishReasonStop
	}
	return chunk
}

package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// Anthropic SSE event types.

// StreamEvent is one event in Anthropic's SSE stream.
type StreamEvent struct {
	Type string `json:"type"`

	// message_start
	Message *Response `json:"message,omitempty"`

	// content_block_start / content_block_delta / content_block_stop
	Index        int           `json:"index"`
	ContentBlock *ContentBlock `json:"content_block,omitempty"`
	Delta        *EventDelta   `json:"delta,omitempty"`

	// message_delta
	Usage *Usage `json:"usage,omitempty"`
}

// EventDelta is the polymorphic delta payload: text or argument JSON for
// content_block_delta events, stop reason for message_delta events.
type EventDelta struct {
	Type        string `json:"type"` // "text_delta" or "input_json_delta"
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`

	StopReason string `json:"stop_reason,omitempty"`
}

// streamReader reads Anthropic's SSE stream and flattens the block event
// structure into normalized chunks.
type streamReader struct {
	provider string
	body     io.ReadCloser
	scanner  *bufio.Scanner
	closed   bool

	// Anthropic content block index -> normalized tool call sequence index.
	toolIndex map[int]int
	toolCount int
	roleSent  bool
	role      string
}

func newStreamReader(provider string, body io.ReadCloser) *streamReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &streamReader{
		provider:  provider,
		body:      body,
		scanner:   scanner,
		toolIndex: make(map[int]int),
	}
}

// Next returns the next normalized chunk. Events that carry nothing
// policy-visible (pings, block boundaries for text) are skipped.
func (s *streamReader) Next(ctx context.Context) (*providers.Chunk, error) {
	if s.closed {
		return nil, io.EOF
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		event, err := s.readEvent()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &providers.StreamError{
				Provider: s.provider,
				Message:  "failed to read stream",
				Cause:    err,
			}
		}

		chunk, err := s.transformEvent(event)
		if err != nil {
			return nil, &providers.ParseError{
				Provider: s.provider,
				Cause:    err,
			}
		}
		if event.Type == "message_stop" {
			return nil, io.EOF
		}
		if chunk == nil {
			continue
		}
		return chunk, nil
	}
}

// transformEvent folds one SSE event into at most one normalized chunk.
func (s *streamReader) transformEvent(event *StreamEvent) (*providers.Chunk, error) {
	switch event.Type {
	case "message_start":
		if event.Message != nil {
			s.role = event.Message.Role
		}
		return nil, nil

	case "content_block_start":
		if event.ContentBlock == nil || event.ContentBlock.Type != "tool_use" {
			return nil, nil
		}
		// A tool_use block opens a new tool call; its id and name arrive
		// here, argument JSON follows as input_json_delta events.
		seq := s.toolCount
		s.toolIndex[event.Index] = seq
		s.toolCount++
		return s.withRole(&providers.Chunk{
			ToolCallDeltas: []providers.ToolCallDelta{{
				Index: seq,
				ID:    event.ContentBlock.ID,
				Name:  event.ContentBlock.Name,
			}},
		}), nil

	case "content_block_delta":
		if event.Delta == nil {
			return nil, nil
		}
		switch event.Delta.Type {
		case "text_delta":
			if event.Delta.Text == "" {
				return nil, nil
			}
			return s.withRole(&providers.Chunk{
				ContentDelta: providers.Text(event.Delta.Text),
			}), nil
		case "input_json_delta":
			seq, ok := s.toolIndex[event.Index]
			if !ok {
				return nil, fmt.Errorf("input_json_delta for unknown block %d", event.Index)
			}
			if event.Delta.PartialJSON == "" {
				return nil, nil
			}
			return s.withRole(&providers.Chunk{
				ToolCallDeltas: []providers.ToolCallDelta{{
					Index:          seq,
					ArgumentsDelta: event.Delta.PartialJSON,
				}},
			}), nil
		default:
			return nil, nil
		}

	case "content_block_stop":
		return nil, nil

	case "message_delta":
		chunk := &providers.Chunk{}
		if event.Delta != nil {
			chunk.FinishReason = normalizeStopReason(event.Delta.StopReason)
		}
		if event.Usage != nil {
			chunk.Usage = &providers.Usage{
				PromptTokens:     event.Usage.InputTokens,
				CompletionTokens: event.Usage.OutputTokens,
				TotalTokens:      event.Usage.InputTokens + event.Usage.OutputTokens,
			}
		}
		if chunk.IsEmpty() {
			return nil, nil
		}
		return s.withRole(chunk), nil

	case "message_stop", "ping":
		return nil, nil

	default:
		// Unknown event types are skipped, not failed: Anthropic adds event
		// types without versioning the stream.
		return nil, nil
	}
}

// withRole stamps the role marker onto the first emitted chunk.
func (s *streamReader) withRole(chunk *providers.Chunk) *providers.Chunk {
	if !s.roleSent {
		s.roleSent = true
		if s.role == "" {
			s.role = providers.RoleAssistant
		}
		chunk.Role = s.role
	}
	return chunk
}

// readEvent reads one complete SSE event.
func (s *streamReader) readEvent() (*StreamEvent, error) {
	var eventType string
	var dataLines []string

	for s.scanner.Scan() {
		line := s.scanner.Text()

		// Blank line terminates the event.
		if line == "" {
			if eventType != "" || len(dataLines) > 0 {
				break
			}
			continue
		}

		if value, ok := strings.CutPrefix(line, "event: "); ok {
			eventType = value
		} else if value, ok := strings.CutPrefix(line, "data: "); ok {
			dataLines = append(dataLines, value)
		}
		// Ignore other SSE fields (id, retry) and comments.
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	if eventType == "" && len(dataLines) == 0 {
		return nil, io.EOF
	}

	var event StreamEvent
	if len(dataLines) > 0 {
		if err := json.Unmarshal([]byte(strings.Join(dataLines, "\n")), &event); err != nil {
			return nil, fmt.Errorf("parse stream event: %w", err)
		}
	}
	if event.Type == "" {
		event.Type = eventType
	}
	return &event, nil
}

// Close releases the underlying response body.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

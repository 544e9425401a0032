package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// Anthropic messages API wire types.

// Request is an Anthropic messages request.
type Request struct {
	Model         string    `json:"model"`
	Messages      []Message `json:"messages"`
	System        string    `json:"system,omitempty"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   float64   `json:"temperature,omitempty"`
	TopP          float64   `json:"top_p,omitempty"`
	Stream        bool      `json:"stream,omitempty"`
	Tools         []Tool    `json:"tools,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
}

// Message is a conversation message in Anthropic format.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []ContentBlock
}

// ContentBlock is one block of structured message content.
type ContentBlock struct {
	Type string `json:"type"` // "text", "tool_use", or "tool_result"
	Text string `json:"text,omitempty"`

	// tool_use fields
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result fields
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// Tool is a tool definition in Anthropic format.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// Response is an Anthropic messages response.
type Response struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// Usage is token usage in Anthropic format.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// defaultMaxTokens is used when the caller does not set a limit; the
// Anthropic API requires max_tokens on every request.
const defaultMaxTokens = 4096

// transformRequest converts the provider-agnostic request to Anthropic
// format. System messages move to the dedicated system field.
func transformRequest(req *providers.CompletionRequest) (*Request, error) {
	out := &Request{
		Model:         req.Model,
		Messages:      make([]Message, 0, len(req.Messages)),
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Stream:        req.Stream,
		StopSequences: req.Stop,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = defaultMaxTokens
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case providers.RoleSystem:
			out.System = msg.Content
		case providers.RoleTool:
			out.Messages = append(out.Messages, Message{
				Role: providers.RoleUser,
				Content: []ContentBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})
		default:
			if len(msg.ToolCalls) > 0 {
				blocks, err := toolUseBlocks(msg)
				if err != nil {
					return nil, err
				}
				out.Messages = append(out.Messages, Message{Role: msg.Role, Content: blocks})
				continue
			}
			out.Messages = append(out.Messages, Message{Role: msg.Role, Content: msg.Content})
		}
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}
	return out, nil
}

// toolUseBlocks renders an assistant turn that made tool calls as content
// blocks, decoding each call's argument JSON into the structured input the
// Anthropic API expects.
func toolUseBlocks(msg providers.Message) ([]ContentBlock, error) {
	var blocks []ContentBlock
	if msg.Content != "" {
		blocks = append(blocks, ContentBlock{Type: "text", Text: msg.Content})
	}
	for _, call := range msg.ToolCalls {
		var input map[string]any
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &input); err != nil {
				return nil, fmt.Errorf("tool call %q arguments: %w", call.ID, err)
			}
		}
		blocks = append(blocks, ContentBlock{
			Type:  "tool_use",
			ID:    call.ID,
			Name:  call.Name,
			Input: input,
		})
	}
	return blocks, nil
}

// transformResponse normalizes an Anthropic response.
func transformResponse(resp *Response) (*providers.Response, error) {
	out := &providers.Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Role:         resp.Role,
		FinishReason: normalizeStopReason(resp.StopReason),
		Usage: &providers.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			args, err := json.Marshal(block.Input)
			if err != nil {
				return nil, fmt.Errorf("marshal tool input: %w", err)
			}
			out.ToolCalls = append(out.ToolCalls, providers.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(args),
			})
		}
	}
	return out, nil
}

// normalizeStopReason maps Anthropic stop reasons onto the normalized
// finish reason vocabulary.
func normalizeStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return providers.FinishReasonStop
	case "max_tokens":
		return providers.FinishReasonLength
	case "tool_use":
		return providers.FinishReasonToolCalls
	default:
		return reason
	}
}

package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/proxy/types"
)

// maxRequestBody caps the accepted request body size.
const maxRequestBody = 10 << 20

// RequestError is a request parsing or validation failure. It carries the
// field that failed so the error response can name it.
type RequestError struct {
	Message string
	Param   string
	Code    string
}

// Error returns the failure message.
func (e *RequestError) Error() string {
	return e.Message
}

// ParseChatCompletionRequest reads and validates an OpenAI-compatible chat
// completion request from the HTTP request body.
func ParseChatCompletionRequest(r *http.Request) (*types.ChatCompletionRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return nil, &RequestError{
			Message: "failed to read request body",
			Code:    types.CodeInvalidJSON,
		}
	}
	if len(body) > maxRequestBody {
		return nil, &RequestError{
			Message: "request body exceeds the 10MB limit",
			Code:    types.CodeInvalidValue,
		}
	}

	var req types.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &RequestError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
			Code:    types.CodeInvalidJSON,
		}
	}

	if req.Model == "" {
		return nil, &RequestError{
			Message: "model is required",
			Param:   "model",
			Code:    types.CodeMissingField,
		}
	}
	if len(req.Messages) == 0 {
		return nil, &RequestError{
			Message: "messages must contain at least one message",
			Param:   "messages",
			Code:    types.CodeMissingField,
		}
	}
	for i, msg := range req.Messages {
		switch msg.Role {
		case "system", "user", "assistant", "tool":
		default:
			return nil, &RequestError{
				Message: fmt.Sprintf("unknown role %q", msg.Role),
				Param:   fmt.Sprintf("messages[%d].role", i),
				Code:    types.CodeInvalidValue,
			}
		}
	}

	return &req, nil
}

// ToCompletionRequest converts a parsed client request into the neutral
// provider format.
func ToCompletionRequest(req *types.ChatCompletionRequest) *providers.CompletionRequest {
	out := &providers.CompletionRequest{
		Model:    req.Model,
		Messages: make([]providers.Message, 0, len(req.Messages)),
		Stream:   req.Stream,
		Stop:     req.Stop,
	}

	for _, msg := range req.Messages {
		converted := providers.Message{
			Role:       msg.Role,
			Content:    flattenContent(msg.Content),
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, providers.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		out.Messages = append(out.Messages, converted)
	}

	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		out.TopP = *req.TopP
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, providers.Tool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  tool.Function.Parameters,
		})
	}

	return out
}

// flattenContent reduces message content to plain text. Multimodal content
// arrays keep their text parts; other part types are dropped.
func flattenContent(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		var parts []string
		for _, part := range v {
			m, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if m["type"] == "text" {
				if text, ok := m["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprintf("%v", content)
	}
}

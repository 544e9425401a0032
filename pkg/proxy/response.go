package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/proxy/types"
)

// FormatChatCompletionResponse converts a normalized response to OpenAI
// chat completion format.
func FormatChatCompletionResponse(resp *providers.Response, requestedModel string) *types.ChatCompletionResponse {
	out := &types.ChatCompletionResponse{
		ID:      fmt.Sprintf("chatcmpl-%s", resp.ID),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   requestedModel,
		Choices: []types.Choice{{
			Index: 0,
			Message: types.Message{
				Role:      providers.RoleAssistant,
				Content:   resp.Content,
				ToolCalls: formatToolCalls(resp.ToolCalls),
			},
			FinishReason: resp.FinishReason,
		}},
	}
	if resp.Usage != nil {
		out.Usage = types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out
}

// FormatStreamChunk converts a normalized chunk to OpenAI stream chunk
// format for SSE delivery.
func FormatStreamChunk(chunk *providers.Chunk, requestedModel, responseID string) *types.ChatCompletionStreamChunk {
	out := &types.ChatCompletionStreamChunk{
		ID:      responseID,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   requestedModel,
		Choices: []types.StreamChoice{{
			Index: 0,
			Delta: types.Delta{
				Role:    chunk.Role,
				Content: chunk.ContentDelta,
			},
		}},
	}

	for _, tc := range chunk.ToolCallDeltas {
		delta := types.ToolCallDelta{
			Index: tc.Index,
			ID:    tc.ID,
		}
		if tc.ID != "" {
			delta.Type = "function"
		}
		if tc.Name != "" || tc.ArgumentsDelta != "" {
			delta.Function = &types.FunctionCallDelta{
				Name:      tc.Name,
				Arguments: tc.ArgumentsDelta,
			}
		}
		out.Choices[0].Delta.ToolCalls = append(out.Choices[0].Delta.ToolCalls, delta)
	}

	if chunk.FinishReason != "" {
		reason := chunk.FinishReason
		out.Choices[0].FinishReason = &reason
	}
	if chunk.Usage != nil {
		out.Usage = &types.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}
	return out
}

func formatToolCalls(toolCalls []providers.ToolCall) []types.ToolCall {
	if len(toolCalls) == 0 {
		return nil
	}
	out := make([]types.ToolCall, len(toolCalls))
	for i, tc := range toolCalls {
		out[i] = types.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: types.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		}
	}
	return out
}

// WriteJSONResponse writes a JSON response with the given status code.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// WriteErrorResponse writes an OpenAI-compatible error with the status code
// implied by its type.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	return WriteJSONResponse(w, errResp.Error.HTTPStatusCode(), errResp)
}

// SetSSEHeaders prepares the response for server-sent events.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteSSEChunk writes one chunk as an SSE data event and flushes it.
func WriteSSEChunk(w http.ResponseWriter, chunk *types.ChatCompletionStreamChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write SSE chunk: %w", err)
	}
	flush(w)
	return nil
}

// WriteSSEDone writes the terminal "[DONE]" marker.
func WriteSSEDone(w http.ResponseWriter) error {
	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("failed to write SSE done marker: %w", err)
	}
	flush(w)
	return nil
}

// WriteSSEError writes an error payload mid-stream.
func WriteSSEError(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	data, err := json.Marshal(map[string]any{"error": errResp.Error})
	if err != nil {
		return fmt.Errorf("failed to marshal SSE error: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write SSE error: %w", err)
	}
	flush(w)
	return nil
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

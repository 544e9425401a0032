package proxy

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/proxy/types"
)

func parseBody(t *testing.T, body string) (*types.ChatCompletionRequest, error) {
	t.Helper()
	r := httptest.NewRequest("POST", "/v1/chat/completions", bytes.NewBufferString(body))
	return ParseChatCompletionRequest(r)
}

func TestParseChatCompletionRequest(t *testing.T) {
	req, err := parseBody(t, `{
		"model": "gpt-4o",
		"messages": [{"role": "user", "content": "hi"}],
		"stream": true
	}`)
	if err != nil {
		t.Fatal(err)
	}
	if req.Model != "gpt-4o" || !req.Stream || len(req.Messages) != 1 {
		t.Errorf("req = %+v", req)
	}
}

func TestParseChatCompletionRequestErrors(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		param string
	}{
		{"invalid json", `{not json`, ""},
		{"missing model", `{"messages":[{"role":"user","content":"hi"}]}`, "model"},
		{"empty messages", `{"model":"gpt-4o","messages":[]}`, "messages"},
		{"bad role", `{"model":"gpt-4o","messages":[{"role":"robot","content":"hi"}]}`, "messages[0].role"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseBody(t, tc.body)
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("got %v, want RequestError", err)
			}
			if reqErr.Param != tc.param {
				t.Errorf("param = %q, want %q", reqErr.Param, tc.param)
			}
		})
	}
}

func TestToCompletionRequest(t *testing.T) {
	maxTokens := 256
	req := &types.ChatCompletionRequest{
		Model: "gpt-4o",
		Messages: []types.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: []any{
				map[string]any{"type": "text", "text": "describe"},
				map[string]any{"type": "image_url", "image_url": map[string]any{"url": "http://x"}},
				map[string]any{"type": "text", "text": "this"},
			}},
			{Role: "assistant", ToolCalls: []types.ToolCall{{
				ID: "call_0", Type: "function",
				Function: types.FunctionCall{Name: "get_weather", Arguments: `{"city":"Paris"}`},
			}}},
			{Role: "tool", Content: "sunny", ToolCallID: "call_0"},
		},
		MaxTokens: &maxTokens,
		Tools: []types.Tool{{
			Type:     "function",
			Function: types.FunctionDefinition{Name: "get_weather", Parameters: map[string]any{"type": "object"}},
		}},
	}

	out := ToCompletionRequest(req)
	if out.Model != "gpt-4o" || out.MaxTokens != 256 {
		t.Errorf("out = %+v", out)
	}
	if out.Messages[1].Content != "describe this" {
		t.Errorf("multimodal content = %q", out.Messages[1].Content)
	}
	if len(out.Messages[2].ToolCalls) != 1 || out.Messages[2].ToolCalls[0].Name != "get_weather" {
		t.Errorf("tool calls = %+v", out.Messages[2].ToolCalls)
	}
	if out.Messages[3].ToolCallID != "call_0" {
		t.Errorf("tool call id = %q", out.Messages[3].ToolCallID)
	}
	if len(out.Tools) != 1 || out.Tools[0].Name != "get_weather" {
		t.Errorf("tools = %+v", out.Tools)
	}
}

func TestFormatStreamChunk(t *testing.T) {
	chunk := &providers.Chunk{
		Role:         providers.RoleAssistant,
		ContentDelta: providers.Text("Hello"),
	}
	out := FormatStreamChunk(chunk, "gpt-4o", "chatcmpl-abc")
	if out.ID != "chatcmpl-abc" || out.Object != "chat.completion.chunk" {
		t.Errorf("chunk = %+v", out)
	}
	if out.Choices[0].Delta.Role != providers.RoleAssistant {
		t.Errorf("role = %q", out.Choices[0].Delta.Role)
	}
	if *out.Choices[0].Delta.Content != "Hello" {
		t.Errorf("content = %q", *out.Choices[0].Delta.Content)
	}
	if out.Choices[0].FinishReason != nil {
		t.Error("finish reason should be absent")
	}
}

func TestFormatStreamChunkToolCall(t *testing.T) {
	chunk := &providers.Chunk{
		ToolCallDeltas: []providers.ToolCallDelta{{
			Index: 0, ID: "call_0", Name: "get_weather",
		}},
	}
	out := FormatStreamChunk(chunk, "gpt-4o", "chatcmpl-abc")
	tc := out.Choices[0].Delta.ToolCalls[0]
	if tc.ID != "call_0" || tc.Type != "function" || tc.Function.Name != "get_weather" {
		t.Errorf("tool call delta = %+v", tc)
	}
}

func TestFormatChatCompletionResponse(t *testing.T) {
	resp := &providers.Response{
		ID:           "abc",
		Content:      "hello",
		FinishReason: providers.FinishReasonStop,
		Usage:        &providers.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}
	out := FormatChatCompletionResponse(resp, "gpt-4o")
	if out.ID != "chatcmpl-abc" || out.Object != "chat.completion" {
		t.Errorf("resp = %+v", out)
	}
	if out.Choices[0].Message.Content != "hello" || out.Usage.TotalTokens != 5 {
		t.Errorf("choice = %+v usage = %+v", out.Choices[0], out.Usage)
	}
}

package openai

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

func TestTransformRequest(t *testing.T) {
	req := &providers.CompletionRequest{
		Model: "gpt-4o",
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "be brief"},
			{Role: providers.RoleUser, Content: "hi"},
		},
		Tools: []providers.Tool{
			{Name: "get_weather", Description: "weather lookup", Parameters: map[string]any{"type": "object"}},
		},
		Stream: true,
	}

	wire := transformRequest(req)
	if wire.Model != "gpt-4o" || len(wire.Messages) != 2 {
		t.Errorf("wire = %+v", wire)
	}
	if len(wire.Tools) != 1 || wire.Tools[0].Type != "function" || wire.Tools[0].Function.Name != "get_weather" {
		t.Errorf("tools = %+v", wire.Tools)
	}
	if wire.StreamOptions == nil || !wire.StreamOptions.IncludeUsage {
		t.Error("streaming request missing stream_options.include_usage")
	}
}

func TestTransformResponse(t *testing.T) {
	resp := &Response{
		ID:    "chatcmpl-1",
		Model: "gpt-4o",
		Choices: []Choice{{
			Message: Message{
				Role:    "assistant",
				Content: "hello",
				ToolCalls: []ToolCall{{
					ID:       "call_0",
					Type:     "function",
					Function: FunctionCall{Name: "get_weather", Arguments: `{"city":"Paris"}`},
				}},
			},
			FinishReason: "tool_calls",
		}},
		Usage: &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}

	out := transformResponse(resp)
	if out.Content != "hello" || out.FinishReason != providers.FinishReasonToolCalls {
		t.Errorf("out = %+v", out)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].Name != "get_weather" {
		t.Errorf("tool calls = %+v", out.ToolCalls)
	}
	if out.Usage == nil || out.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", out.Usage)
	}
}

const sseStream = `data: {"id":"chatcmpl-1","choices":[{"index":0,"delta":{"role":"assistant","content":""}}]}

data: {"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":"Hi"}}]}

data: {"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_0","type":"function","function":{"name":"get_weather","arguments":""}}]}}]}

data: {"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":\"Paris\"}"}}]}}]}

data: {"id":"chatcmpl-1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}

data: {"id":"chatcmpl-1","choices":[],"usage":{"prompt_tokens":10,"completion_tokens":7,"total_tokens":17}}

data: [DONE]

`

func TestStreamReader(t *testing.T) {
	r := newStreamReader("openai", io.NopCloser(strings.NewReader(sseStream)))
	defer r.Close()

	var chunks []*providers.Chunk
	for {
		chunk, err := r.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) != 6 {
		t.Fatalf("got %d chunks, want 6", len(chunks))
	}
	if chunks[0].Role != providers.RoleAssistant {
		t.Errorf("first chunk role = %q", chunks[0].Role)
	}
	if chunks[1].ContentDelta == nil || *chunks[1].ContentDelta != "Hi" {
		t.Errorf("content chunk = %+v", chunks[1])
	}
	if len(chunks[2].ToolCallDeltas) != 1 || chunks[2].ToolCallDeltas[0].Name != "get_weather" {
		t.Errorf("tool start chunk = %+v", chunks[2])
	}
	if chunks[3].ToolCallDeltas[0].ArgumentsDelta != `{"city":"Paris"}` {
		t.Errorf("tool args chunk = %+v", chunks[3])
	}
	if chunks[4].FinishReason != providers.FinishReasonToolCalls {
		t.Errorf("finish chunk = %+v", chunks[4])
	}
	if chunks[5].Usage == nil || chunks[5].Usage.TotalTokens != 17 {
		t.Errorf("usage chunk = %+v", chunks[5])
	}
}

func TestStreamReaderMalformedPayload(t *testing.T) {
	r := newStreamReader("openai", io.NopCloser(strings.NewReader("data: {not json}\n\n")))
	defer r.Close()

	_, err := r.Next(context.Background())
	if _, ok := err.(*providers.ParseError); !ok {
		t.Fatalf("got %v, want ParseError", err)
	}
}

func TestStreamReaderEOFWithoutDone(t *testing.T) {
	r := newStreamReader("openai", io.NopCloser(strings.NewReader("")))
	defer r.Close()

	if _, err := r.Next(context.Background()); err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

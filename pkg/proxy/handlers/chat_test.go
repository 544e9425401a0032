package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy/registry"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/proxy/types"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/stream"
)

type fakeReader struct {
	chunks []*providers.Chunk
	pos    int
}

func (f *fakeReader) Next(ctx context.Context) (*providers.Chunk, error) {
	if f.pos >= len(f.chunks) {
		return nil, io.EOF
	}
	chunk := f.chunks[f.pos]
	f.pos++
	return chunk, nil
}

func (f *fakeReader) Close() error { return nil }

type fakeProvider struct {
	name     string
	chunks   []*providers.Chunk
	response *providers.Response
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.Response, error) {
	return f.response, nil
}

func (f *fakeProvider) Stream(ctx context.Context, req *providers.CompletionRequest) (providers.StreamReader, error) {
	return &fakeReader{chunks: f.chunks}, nil
}

func newTestHandler(t *testing.T, fake *fakeProvider, policyName string, settings map[string]any) *ChatHandler {
	t.Helper()

	set := NewProviderSet()
	set.Add("upstream", "openai", fake)

	reg := registry.NewWithBuiltins()
	if err := reg.Activate(policyName, settings); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewChatHandler(set, reg, stream.Config{}, nil, nil, logger)
}

func sseDataLines(body string) []string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			lines = append(lines, data)
		}
	}
	return lines
}

func TestChatHandlerNonStreaming(t *testing.T) {
	fake := &fakeProvider{
		name: "upstream",
		response: &providers.Response{
			ID:           "abc",
			Role:         providers.RoleAssistant,
			Content:      "hello there",
			FinishReason: providers.FinishReasonStop,
			Usage:        &providers.Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5},
		},
	}
	handler := newTestHandler(t, fake, "passthrough", nil)

	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(
		`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`,
	))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp types.ChatCompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Object != "chat.completion" {
		t.Errorf("object = %q", resp.Object)
	}
	if resp.Choices[0].Message.Content != "hello there" {
		t.Errorf("content = %v", resp.Choices[0].Message.Content)
	}
	if resp.Usage.TotalTokens != 5 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestChatHandlerStreaming(t *testing.T) {
	fake := &fakeProvider{
		name: "upstream",
		chunks: []*providers.Chunk{
			{Role: providers.RoleAssistant, ContentDelta: providers.Text("Hel")},
			{ContentDelta: providers.Text("lo")},
			{FinishReason: providers.FinishReasonStop},
		},
	}
	handler := newTestHandler(t, fake, "passthrough", nil)

	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(
		`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"stream":true}`,
	))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}

	lines := sseDataLines(rec.Body.String())
	if len(lines) == 0 || lines[len(lines)-1] != "[DONE]" {
		t.Fatalf("stream missing [DONE]: %v", lines)
	}

	var content strings.Builder
	var sawFinish bool
	for _, line := range lines[:len(lines)-1] {
		var chunk types.ChatCompletionStreamChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			t.Fatalf("bad chunk %q: %v", line, err)
		}
		if chunk.Object != "chat.completion.chunk" {
			t.Errorf("object = %q", chunk.Object)
		}
		if delta := chunk.Choices[0].Delta.Content; delta != nil {
			content.WriteString(*delta)
		}
		if chunk.Choices[0].FinishReason != nil {
			sawFinish = true
		}
	}
	if content.String() != "Hello" {
		t.Errorf("assembled content = %q", content.String())
	}
	if !sawFinish {
		t.Error("no chunk carried a finish reason")
	}
}

func TestChatHandlerStreamingTermination(t *testing.T) {
	fake := &fakeProvider{
		name: "upstream",
		chunks: []*providers.Chunk{
			{Role: providers.RoleAssistant, ToolCallDeltas: []providers.ToolCallDelta{
				{Index: 0, ID: "call_0", Name: "delete_everything", ArgumentsDelta: "{}"},
			}},
			{FinishReason: providers.FinishReasonToolCalls},
		},
	}
	handler := newTestHandler(t, fake, "tool_guard", map[string]any{
		"deny_tools": []any{"delete_everything"},
	})

	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(
		`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"stream":true}`,
	))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	lines := sseDataLines(rec.Body.String())
	if len(lines) != 2 {
		t.Fatalf("lines = %v, want error payload and [DONE]", lines)
	}

	var payload struct {
		Error types.ErrorDetail `json:"error"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Error.Code != types.CodePolicyTerminated {
		t.Errorf("code = %q", payload.Error.Code)
	}
	if lines[1] != "[DONE]" {
		t.Errorf("last line = %q", lines[1])
	}
}

func TestChatHandlerNonStreamingTermination(t *testing.T) {
	fake := &fakeProvider{
		name: "upstream",
		response: &providers.Response{
			ID:   "abc",
			Role: providers.RoleAssistant,
			ToolCalls: []providers.ToolCall{
				{ID: "call_0", Name: "delete_everything", Arguments: "{}"},
			},
			FinishReason: providers.FinishReasonToolCalls,
		},
	}
	handler := newTestHandler(t, fake, "tool_guard", map[string]any{
		"deny_tools": []any{"delete_everything"},
	})

	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(
		`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`,
	))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Error types.ErrorDetail `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Error.Code != types.CodePolicyTerminated {
		t.Errorf("code = %q", payload.Error.Code)
	}
}

func TestChatHandlerRejectsInvalidRequest(t *testing.T) {
	handler := newTestHandler(t, &fakeProvider{name: "upstream"}, "passthrough", nil)

	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(
		`{"messages":[{"role":"user","content":"hi"}]}`,
	))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestChatHandlerRejectsGet(t *testing.T) {
	handler := newTestHandler(t, &fakeProvider{name: "upstream"}, "passthrough", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/chat/completions", nil))

	if rec.Code != 400 {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProviderSetRouting(t *testing.T) {
	openaiProv := &fakeProvider{name: "oa"}
	anthropicProv := &fakeProvider{name: "an"}

	set := NewProviderSet()
	set.Add("oa", "openai", openaiProv)
	set.Add("an", "anthropic", anthropicProv)

	cases := map[string]string{
		"gpt-4o":          "oa",
		"claude-sonnet-4": "an",
		"unknown-model":   "oa", // falls back to first registered
	}
	for model, want := range cases {
		p, err := set.ForModel(model)
		if err != nil {
			t.Fatal(err)
		}
		if p.Name() != want {
			t.Errorf("ForModel(%q) = %q, want %q", model, p.Name(), want)
		}
	}
}

func TestProviderSetEmpty(t *testing.T) {
	if _, err := NewProviderSet().ForModel("gpt-4o"); err == nil {
		t.Fatal("expected error for empty set")
	}
}

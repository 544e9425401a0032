package types

// ChatCompletionResponse is an OpenAI-compatible non-streaming response.
type ChatCompletionResponse struct {
	// ID uniquely identifies the completion (format: "chatcmpl-<id>").
	ID string `json:"id"`

	// Object is always "chat.completion".
	Object string `json:"object"`

	// Created is the Unix timestamp of response creation.
	Created int64 `json:"created"`

	// Model is the model that produced the completion.
	Model string `json:"model"`

	// Choices holds the generated completion. The proxy always returns
	// exactly one choice.
	Choices []Choice `json:"choices"`

	// Usage reports token consumption.
	Usage Usage `json:"usage"`
}

// Choice is one generated completion.
type Choice struct {
	// Index is the choice's position, always 0.
	Index int `json:"index"`

	// Message is the generated assistant message.
	Message Message `json:"message"`

	// FinishReason is why generation stopped: "stop", "length",
	// "tool_calls", or "content_filter".
	FinishReason string `json:"finish_reason"`
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionStreamChunk is one SSE chunk of a streaming response.
type ChatCompletionStreamChunk struct {
	// ID is shared by every chunk of one completion.
	ID string `json:"id"`

	// Object is always "chat.completion.chunk".
	Object string `json:"object"`

	// Created is the Unix timestamp of stream creation.
	Created int64 `json:"created"`

	// Model is the model producing the stream.
	Model string `json:"model"`

	// Choices holds the incremental delta.
	Choices []StreamChoice `json:"choices"`

	// Usage is present only on the final usage chunk.
	Usage *Usage `json:"usage,omitempty"`
}

// StreamChoice is the delta portion of one stream chunk.
type StreamChoice struct {
	// Index is the choice's position, always 0.
	Index int `json:"index"`

	// Delta carries the incremental content.
	Delta Delta `json:"delta"`

	// FinishReason is set only on the terminal chunk.
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Delta is the incremental payload of one stream chunk.
type Delta struct {
	// Role is set on the first chunk of the stream.
	Role string `json:"role,omitempty"`

	// Content is an incremental text fragment.
	Content *string `json:"content,omitempty"`

	// ToolCalls carries incremental tool call fragments.
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is an incremental fragment of one tool call.
type ToolCallDelta struct {
	// Index identifies which tool call the fragment extends.
	Index int `json:"index"`

	// ID is set on the first fragment of the call.
	ID string `json:"id,omitempty"`

	// Type is "function" on the first fragment.
	Type string `json:"type,omitempty"`

	// Function carries the name or argument fragment.
	Function *FunctionCallDelta `json:"function,omitempty"`
}

// FunctionCallDelta is the function portion of a tool call fragment.
type FunctionCallDelta struct {
	// Name is set on the first fragment of the call.
	Name string `json:"name,omitempty"`

	// Arguments is an incremental argument JSON fragment.
	Arguments string `json:"arguments,omitempty"`
}

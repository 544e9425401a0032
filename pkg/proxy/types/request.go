package types

// ChatCompletionRequest is an OpenAI-compatible chat completion request.
type ChatCompletionRequest struct {
	// Model is the ID of the model to use (e.g., "gpt-4o", "claude-sonnet-4-5").
	Model string `json:"model"`

	// Messages is the conversation history.
	Messages []Message `json:"messages"`

	// Temperature controls randomness (0.0 to 2.0). Optional.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens caps the generated token count. Optional.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0). Optional.
	TopP *float64 `json:"top_p,omitempty"`

	// Stream enables server-sent events streaming. Optional.
	Stream bool `json:"stream,omitempty"`

	// Stop lists sequences that end generation. Optional.
	Stop []string `json:"stop,omitempty"`

	// Tools lists functions the model may call. Optional.
	Tools []Tool `json:"tools,omitempty"`

	// User is an end-user identifier, used as the rate limit key when the
	// client does not authenticate. Optional.
	User string `json:"user,omitempty"`
}

// Message is a single message in a conversation.
type Message struct {
	// Role is the author: "system", "user", "assistant", or "tool".
	Role string `json:"role"`

	// Content is the text content. Multimodal content arrays are reduced
	// to their text parts at parse time.
	Content any `json:"content"`

	// ToolCalls lists tool calls made by the assistant. Optional.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID names the tool call a tool-role message responds to.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Tool is a function the model can call.
type Tool struct {
	// Type is always "function".
	Type string `json:"type"`

	// Function describes the callable function.
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a callable function.
type FunctionDefinition struct {
	// Name is the function name.
	Name string `json:"name"`

	// Description explains what the function does.
	Description string `json:"description,omitempty"`

	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]any `json:"parameters"`
}

// ToolCall is a completed function call made by the model.
type ToolCall struct {
	// ID uniquely identifies the tool call.
	ID string `json:"id"`

	// Type is always "function".
	Type string `json:"type"`

	// Function holds the name and argument JSON.
	Function FunctionCall `json:"function"`
}

// FunctionCall is the function name and serialized arguments.
type FunctionCall struct {
	// Name is the function name.
	Name string `json:"name"`

	// Arguments is the argument object as a JSON string.
	Arguments string `json:"arguments"`
}

package providers

// Message is one conversation turn in the provider-agnostic request format.
type Message struct {
	// Role is one of the Role* constants.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// ToolCalls carries the calls made by a prior assistant turn.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Tool describes a function the model may call.
type Tool struct {
	// Name is the function name.
	Name string `json:"name"`

	// Description tells the model what the function does.
	Description string `json:"description,omitempty"`

	// Parameters is the JSON Schema of the function arguments.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// CompletionRequest is the provider-agnostic completion request. Adapters
// transform it into their wire format.
type CompletionRequest struct {
	// Model is the upstream model identifier.
	Model string `json:"model"`

	// Messages is the conversation history, oldest first.
	Messages []Message `json:"messages"`

	// MaxTokens caps the completion length. Zero lets the adapter choose.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls sampling randomness.
	Temperature float64 `json:"temperature,omitempty"`

	// TopP controls nucleus sampling.
	TopP float64 `json:"top_p,omitempty"`

	// Stop lists sequences that end generation.
	Stop []string `json:"stop,omitempty"`

	// Tools lists the functions the model may call.
	Tools []Tool `json:"tools,omitempty"`

	// Stream requests incremental delivery.
	Stream bool `json:"stream,omitempty"`
}

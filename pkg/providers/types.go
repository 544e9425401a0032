package providers

// Chunk is one raw increment of a streaming response, normalized from the
// provider wire format. A chunk is transient: it is owned by the pipeline
// for one processing step and must not be retained by policy code.
type Chunk struct {
	// Role is the role marker opening the message ("assistant"), present
	// only on the first chunk of a stream.
	Role string `json:"role,omitempty"`

	// ContentDelta is the incremental text content. A nil pointer means the
	// field was absent from the chunk; an empty string is a present but
	// empty delta. The distinction matters: providers keep emitting empty
	// content deltas after tool calls begin, and those must be treated as
	// no-ops rather than as new content.
	ContentDelta *string `json:"content_delta,omitempty"`

	// ToolCallDeltas contains incremental tool call fragments, in wire
	// order. Fragments for the same call share a sequence index.
	ToolCallDeltas []ToolCallDelta `json:"tool_call_deltas,omitempty"`

	// FinishReason is set on the terminal chunk to indicate why generation
	// stopped (stop, length, tool_calls, content_filter).
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage contains token consumption, included by most providers on the
	// final chunk only.
	Usage *Usage `json:"usage,omitempty"`
}

// ToolCallDelta is one incremental fragment of a tool call.
//
// The first fragment for a given Index carries the call's ID and function
// Name and establishes the index-to-call mapping; subsequent fragments for
// that index carry only ArgumentsDelta text to concatenate.
type ToolCallDelta struct {
	// Index is the per-stream sequence index of the tool call this fragment
	// belongs to. Present on every fragment.
	Index int `json:"index"`

	// ID is the unique tool call identifier, present on the first fragment.
	ID string `json:"id,omitempty"`

	// Name is the function name, present on the first fragment.
	Name string `json:"name,omitempty"`

	// ArgumentsDelta is a fragment of the JSON-encoded argument text.
	ArgumentsDelta string `json:"arguments_delta,omitempty"`
}

// Usage tracks token consumption for a request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ToolCall is a complete tool/function call extracted from a full response.
type ToolCall struct {
	// ID is the unique identifier for this tool call.
	ID string `json:"id"`

	// Name is the function name to call.
	Name string `json:"name"`

	// Arguments is the complete JSON-encoded argument text.
	Arguments string `json:"arguments"`
}

// Response is a complete, non-streaming provider response normalized to the
// same vocabulary as Chunk. The full-response policy path consumes this
// shape so that streaming and non-streaming traffic trigger identical
// policy decisions.
type Response struct {
	// ID is the provider-assigned response identifier.
	ID string `json:"id"`

	// Model is the model that generated the response.
	Model string `json:"model"`

	// Role is the message role, normally "assistant".
	Role string `json:"role"`

	// Content is the complete text content.
	Content string `json:"content"`

	// ToolCalls contains any complete tool calls made by the model.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// FinishReason indicates why generation stopped.
	FinishReason string `json:"finish_reason"`

	// Usage contains token consumption information, when the provider
	// reported it.
	Usage *Usage `json:"usage,omitempty"`
}

// IsEmpty reports whether the chunk carries no deltas at all. Providers send
// such chunks as keepalives; they produce no policy-visible events but still
// count as upstream liveness.
func (c *Chunk) IsEmpty() bool {
	return c.Role == "" &&
		c.ContentDelta == nil &&
		len(c.ToolCallDeltas) == 0 &&
		c.FinishReason == "" &&
		c.Usage == nil
}

// Clone returns a deep copy of the chunk. Policies that transform a chunk
// before forwarding it should clone first; the original is shared with the
// aggregator.
func (c *Chunk) Clone() *Chunk {
	out := &Chunk{
		Role:         c.Role,
		FinishReason: c.FinishReason,
	}
	if c.ContentDelta != nil {
		s := *c.ContentDelta
		out.ContentDelta = &s
	}
	if len(c.ToolCallDeltas) > 0 {
		out.ToolCallDeltas = make([]ToolCallDelta, len(c.ToolCallDeltas))
		copy(out.ToolCallDeltas, c.ToolCallDeltas)
	}
	if c.Usage != nil {
		u := *c.Usage
		out.Usage = &u
	}
	return out
}

// Text returns a pointer to s, for building chunks with a present
// ContentDelta.
func Text(s string) *string {
	return &s
}

// Message role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reason constants.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonContentFilter = "content_filter"
)

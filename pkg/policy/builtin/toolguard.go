package builtin

import (
	"context"
	"fmt"
	"regexp"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// ToolGuard vets tool calls before the client ever sees them. From the first
// tool call fragment on, chunks are held back; each call is checked against
// the deny list and argument patterns as it completes. A denied call
// terminates the stream with nothing leaked. When the message completes with
// every call allowed, the held chunks flush to the client in order.
//
// Settings:
//
//	deny_tools: list of tool names to block
//	deny_args:  list of regular expressions matched against the complete
//	            argument text of every call
type ToolGuard struct {
	policy.Base

	denyTools map[string]bool
	denyArgs  []*regexp.Regexp
}

// NewToolGuard builds a ToolGuard from its settings.
func NewToolGuard(settings map[string]any) (policy.Policy, error) {
	tools, err := stringSlice(settings, "deny_tools")
	if err != nil {
		return nil, err
	}
	patterns, err := stringSlice(settings, "deny_args")
	if err != nil {
		return nil, err
	}

	g := &ToolGuard{denyTools: make(map[string]bool, len(tools))}
	for _, name := range tools {
		g.denyTools[name] = true
	}
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("deny_args pattern %q: %w", pattern, err)
		}
		g.denyArgs = append(g.denyArgs, re)
	}
	return g, nil
}

// Name implements policy.Policy.
func (*ToolGuard) Name() string { return "tool_guard" }

// toolGuardState buffers chunks while tool calls are being assembled.
type toolGuardState struct {
	holding bool
	held    []*providers.Chunk
}

// NewState implements policy.Policy.
func (*ToolGuard) NewState() (policy.State, error) {
	return &toolGuardState{}, nil
}

// OnToolCallDelta marks the stream as holding: from the first fragment on,
// chunks are buffered instead of forwarded.
func (*ToolGuard) OnToolCallDelta(_ context.Context, _ policy.Context, st policy.State, _ providers.ToolCallDelta) error {
	st.(*toolGuardState).holding = true
	return nil
}

// OnToolCallCompleted vets the finished call and stops the stream on a
// denial. Held chunks stay buffered: later calls in the same message still
// need vetting.
func (g *ToolGuard) OnToolCallCompleted(ctx context.Context, sc policy.Context, st policy.State, block *policy.Block) error {
	if reason := g.vet(block); reason != "" {
		sc.Emit(ctx, "tool_guard.denied", reason, map[string]any{
			"tool":      block.ToolName,
			"arguments": block.Arguments,
		}, events.SeverityWarning)
		st.(*toolGuardState).held = nil
		return policy.Terminate(reason)
	}

	sc.Emit(ctx, "tool_guard.allowed", "tool call allowed", map[string]any{
		"tool": block.ToolName,
	}, events.SeverityInfo)
	return nil
}

// OnMessageCompleted flushes the held chunks once every call in the message
// has passed vetting.
func (*ToolGuard) OnMessageCompleted(ctx context.Context, sc policy.Context, st policy.State, _ *policy.StreamState) error {
	state := st.(*toolGuardState)
	for _, chunk := range state.held {
		if err := sc.Send(ctx, chunk); err != nil {
			return err
		}
	}
	state.held = nil
	state.holding = false
	return nil
}

// OnChunkFinished forwards immediately before any tool call starts and
// buffers afterwards.
func (*ToolGuard) OnChunkFinished(ctx context.Context, sc policy.Context, st policy.State, chunk *providers.Chunk) error {
	state := st.(*toolGuardState)
	if state.holding {
		state.held = append(state.held, chunk.Clone())
		return nil
	}
	return sc.Send(ctx, chunk)
}

// vet returns a denial reason, or empty when the call is allowed.
func (g *ToolGuard) vet(block *policy.Block) string {
	if g.denyTools[block.ToolName] {
		return fmt.Sprintf("tool %q is denied by policy", block.ToolName)
	}
	for _, re := range g.denyArgs {
		if re.MatchString(block.Arguments) {
			return fmt.Sprintf("tool %q arguments match denied pattern %q", block.ToolName, re.String())
		}
	}
	return ""
}

package stream

import (
	"errors"
	"testing"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

func textChunks() []*providers.Chunk {
	return []*providers.Chunk{
		{Role: providers.RoleAssistant, ContentDelta: providers.Text("Hi")},
		{ContentDelta: providers.Text(" there")},
		{FinishReason: providers.FinishReasonStop},
	}
}

func toolCallChunks() []*providers.Chunk {
	return []*providers.Chunk{
		{Role: providers.RoleAssistant},
		{ToolCallDeltas: []providers.ToolCallDelta{{Index: 0, ID: "call_0", Name: "get_weather"}}},
		{ToolCallDeltas: []providers.ToolCallDelta{{Index: 0, ArgumentsDelta: `{"city":`}}},
		{ToolCallDeltas: []providers.ToolCallDelta{{Index: 0, ArgumentsDelta: `"Paris"}`}}},
		{ToolCallDeltas: []providers.ToolCallDelta{{Index: 1, ID: "call_1", Name: "get_time", ArgumentsDelta: `{}`}}},
		{FinishReason: providers.FinishReasonToolCalls},
	}
}

func ingestAll(t *testing.T, agg *Aggregator, chunks []*providers.Chunk) []BlockEvent {
	t.Helper()
	var all []BlockEvent
	for i, chunk := range chunks {
		evs, err := agg.Ingest(chunk)
		if err != nil {
			t.Fatalf("chunk %d: unexpected error: %v", i, err)
		}
		all = append(all, evs...)
	}
	return all
}

func TestAggregatorContentStream(t *testing.T) {
	agg := NewAggregator()
	ingestAll(t, agg, textChunks())

	state := agg.State()
	if state.Role != providers.RoleAssistant {
		t.Errorf("role = %q, want %q", state.Role, providers.RoleAssistant)
	}
	if len(state.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(state.Blocks))
	}
	block := state.Blocks[0]
	if block.Type != policy.BlockTypeContent {
		t.Errorf("block type = %q, want %q", block.Type, policy.BlockTypeContent)
	}
	if block.Text != "Hi there" {
		t.Errorf("block text = %q, want %q", block.Text, "Hi there")
	}
	if !block.Completed {
		t.Error("block not completed after finish reason")
	}
	if got := len(state.ToolCallBlocks()); got != 0 {
		t.Errorf("got %d tool call blocks, want 0", got)
	}
	if state.FinishReason != providers.FinishReasonStop {
		t.Errorf("finish reason = %q, want %q", state.FinishReason, providers.FinishReasonStop)
	}
}

func TestAggregatorToolCallStream(t *testing.T) {
	agg := NewAggregator()
	ingestAll(t, agg, toolCallChunks())

	state := agg.State()
	blocks := state.ToolCallBlocks()
	if len(blocks) != 2 {
		t.Fatalf("got %d tool call blocks, want 2", len(blocks))
	}

	first, second := blocks[0], blocks[1]
	if first.ToolName != "get_weather" {
		t.Errorf("first tool name = %q, want get_weather", first.ToolName)
	}
	if first.Arguments != `{"city":"Paris"}` {
		t.Errorf("first arguments = %q", first.Arguments)
	}
	if second.ToolName != "get_time" || second.Arguments != `{}` {
		t.Errorf("second block = %q %q", second.ToolName, second.Arguments)
	}
	if !first.Completed || !second.Completed {
		t.Error("tool call blocks not completed after finish reason")
	}
	if first.Index >= second.Index {
		t.Errorf("block indexes out of order: %d >= %d", first.Index, second.Index)
	}
}

func TestAggregatorContentThenToolCalls(t *testing.T) {
	agg := NewAggregator()
	chunks := []*providers.Chunk{
		{Role: providers.RoleAssistant, ContentDelta: providers.Text("Checking.")},
		{ToolCallDeltas: []providers.ToolCallDelta{{Index: 0, ID: "call_0", Name: "lookup", ArgumentsDelta: `{}`}}},
		{FinishReason: providers.FinishReasonToolCalls},
	}
	events := ingestAll(t, agg, chunks)

	state := agg.State()
	if len(state.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(state.Blocks))
	}
	content := state.ContentBlock()
	if content == nil || !content.Completed {
		t.Fatal("content block missing or not completed")
	}

	// The content block must complete before the tool call block starts.
	var contentCompleted, toolStarted int = -1, -1
	for i, ev := range events {
		if ev.Block.Type == policy.BlockTypeContent && ev.Kind == BlockCompleted {
			contentCompleted = i
		}
		if ev.Block.Type == policy.BlockTypeToolCall && ev.Kind == BlockStarted && toolStarted < 0 {
			toolStarted = i
		}
	}
	if contentCompleted < 0 || toolStarted < 0 || contentCompleted > toolStarted {
		t.Errorf("content completed at %d, tool started at %d", contentCompleted, toolStarted)
	}
}

func TestAggregatorCompletionOrder(t *testing.T) {
	agg := NewAggregator()
	events := ingestAll(t, agg, toolCallChunks())

	last := -1
	for _, ev := range events {
		if ev.Kind != BlockCompleted {
			continue
		}
		if ev.Block.Index <= last {
			t.Errorf("completion order violated: block %d after block %d", ev.Block.Index, last)
		}
		last = ev.Block.Index
	}
}

func TestAggregatorDeterminism(t *testing.T) {
	a := NewAggregator()
	b := NewAggregator()
	chunks := append(textChunks()[:2], toolCallChunks()[1:]...)
	for _, chunk := range chunks {
		evA, errA := a.Ingest(chunk)
		evB, errB := b.Ingest(chunk)
		if (errA == nil) != (errB == nil) {
			t.Fatalf("aggregators diverged on errors: %v vs %v", errA, errB)
		}
		if len(evA) != len(evB) {
			t.Fatalf("aggregators diverged on event counts: %d vs %d", len(evA), len(evB))
		}
	}

	sa, sb := a.State(), b.State()
	if sa.Role != sb.Role || sa.FinishReason != sb.FinishReason || len(sa.Blocks) != len(sb.Blocks) {
		t.Fatal("aggregated states diverged")
	}
	for i := range sa.Blocks {
		x, y := sa.Blocks[i], sb.Blocks[i]
		if *x != *y {
			t.Errorf("block %d diverged: %+v vs %+v", i, x, y)
		}
	}
}

func TestAggregatorKeepaliveChunk(t *testing.T) {
	agg := NewAggregator()
	events, err := agg.Ingest(&providers.Chunk{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("empty chunk produced %d events, want 0", len(events))
	}
	if len(agg.State().Blocks) != 0 {
		t.Error("empty chunk created a block")
	}
}

func TestAggregatorEmptyTextAfterToolCalls(t *testing.T) {
	agg := NewAggregator()
	ingestAll(t, agg, toolCallChunks()[:2])

	events, err := agg.Ingest(&providers.Chunk{ContentDelta: providers.Text("")})
	if err != nil {
		t.Fatalf("empty text delta after tool calls: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("empty text delta produced %d events, want 0", len(events))
	}
}

func TestAggregatorRejectsTextAfterToolCalls(t *testing.T) {
	agg := NewAggregator()
	ingestAll(t, agg, toolCallChunks()[:2])

	_, err := agg.Ingest(&providers.Chunk{ContentDelta: providers.Text("oops")})
	var dataErr *DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("got %v, want DataError", err)
	}
}

func TestAggregatorRejectsOutOfOrderToolCall(t *testing.T) {
	agg := NewAggregator()
	_, err := agg.Ingest(&providers.Chunk{
		ToolCallDeltas: []providers.ToolCallDelta{{Index: 1, ID: "call_1", Name: "skip"}},
	})
	var dataErr *DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("got %v, want DataError", err)
	}
}

func TestAggregatorRejectsAnonymousFirstFragment(t *testing.T) {
	agg := NewAggregator()
	_, err := agg.Ingest(&providers.Chunk{
		ToolCallDeltas: []providers.ToolCallDelta{{Index: 0, ArgumentsDelta: `{}`}},
	})
	var dataErr *DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("got %v, want DataError", err)
	}
}

func TestAggregatorRejectsDuplicateFinishReason(t *testing.T) {
	agg := NewAggregator()
	ingestAll(t, agg, textChunks())

	_, err := agg.Ingest(&providers.Chunk{FinishReason: providers.FinishReasonStop})
	var dataErr *DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("got %v, want DataError", err)
	}
}

func TestAggregatorRejectsDeltaAfterFinish(t *testing.T) {
	agg := NewAggregator()
	ingestAll(t, agg, textChunks())

	_, err := agg.Ingest(&providers.Chunk{ContentDelta: providers.Text("more")})
	var dataErr *DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("got %v, want DataError", err)
	}
}

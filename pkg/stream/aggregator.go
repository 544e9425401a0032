package stream

import (
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// syntheticContentBlockID identifies the single content block of a stream.
// It is deterministic so that identical chunk sequences aggregate to
// identical states.
const syntheticContentBlockID = "content"

// BlockEventKind classifies a block transition reported by the aggregator.
type BlockEventKind int

const (
	// BlockStarted is reported when a block is created.
	BlockStarted BlockEventKind = iota

	// BlockDelta is reported when a block accumulates new text.
	BlockDelta

	// BlockCompleted is reported when a block transitions to completed.
	BlockCompleted
)

// String returns the event kind name.
func (k BlockEventKind) String() string {
	switch k {
	case BlockStarted:
		return "started"
	case BlockDelta:
		return "delta"
	case BlockCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// BlockEvent is one block transition produced by ingesting a chunk.
type BlockEvent struct {
	Block *policy.Block
	Kind  BlockEventKind
}

// Aggregator classifies raw chunks into an ordered sequence of semantic
// blocks: at most one content block first, then zero or more tool call
// blocks, never interleaved. It is deterministic: feeding the same chunk
// sequence to two independent aggregators yields identical states.
//
// Aggregator is not safe for concurrent use; each stream owns one.
type Aggregator struct {
	state        *policy.StreamState
	toolBlocks   map[int]*policy.Block // tool call sequence index -> block
	toolCount    int
	toolsStarted bool
}

// NewAggregator creates an aggregator with empty state.
func NewAggregator() *Aggregator {
	return &Aggregator{
		state:      &policy.StreamState{},
		toolBlocks: make(map[int]*policy.Block),
	}
}

// State returns the aggregated stream state. The returned value is live and
// must not be mutated by callers.
func (a *Aggregator) State() *policy.StreamState {
	return a.state
}

// Ingest folds one chunk into the state and reports the block transitions
// it caused, in block sequence order. An empty chunk (a keepalive) produces
// no events. A chunk whose shape violates the stream invariants returns a
// DataError, which is fatal for the stream.
func (a *Aggregator) Ingest(chunk *providers.Chunk) ([]BlockEvent, error) {
	if chunk == nil {
		return nil, &DataError{Message: "nil chunk"}
	}

	var events []BlockEvent

	if chunk.Role != "" && a.state.Role == "" {
		a.state.Role = chunk.Role
	}

	if chunk.ContentDelta != nil {
		evs, err := a.ingestContent(*chunk.ContentDelta)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}

	for _, d := range chunk.ToolCallDeltas {
		evs, err := a.ingestToolCall(d)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}

	if chunk.Usage != nil {
		u := *chunk.Usage
		a.state.Usage = &u
	}

	if chunk.FinishReason != "" {
		if a.state.FinishReason != "" {
			return nil, &DataError{Message: "finish reason reported twice"}
		}
		a.state.FinishReason = chunk.FinishReason
		if open := a.state.OpenBlock(); open != nil {
			open.Completed = true
			events = append(events, BlockEvent{Block: open, Kind: BlockCompleted})
		}
	}

	return events, nil
}

// ingestContent extends the content block with a text delta, creating it
// lazily on the first non-empty delta. Empty deltas are no-ops: providers
// keep emitting them after tool calls begin, and they must never reopen the
// content block.
func (a *Aggregator) ingestContent(delta string) ([]BlockEvent, error) {
	if delta == "" {
		return nil, nil
	}

	if a.toolsStarted {
		return nil, &DataError{Message: "text delta after tool calls started"}
	}
	if a.state.FinishReason != "" {
		return nil, &DataError{Message: "text delta after finish reason"}
	}

	var events []BlockEvent
	block := a.state.ContentBlock()
	if block == nil {
		block = &policy.Block{
			ID:    syntheticContentBlockID,
			Type:  policy.BlockTypeContent,
			Index: 0,
		}
		a.state.Blocks = append(a.state.Blocks, block)
		events = append(events, BlockEvent{Block: block, Kind: BlockStarted})
	}
	if block.Completed {
		return nil, &DataError{Message: "text delta for completed content block"}
	}

	block.Text += delta
	events = append(events, BlockEvent{Block: block, Kind: BlockDelta})
	return events, nil
}

// ingestToolCall routes one tool call fragment by its sequence index. The
// first fragment of a call must carry its id or name and must arrive in
// strict index order; it implicitly completes whatever block was open.
func (a *Aggregator) ingestToolCall(d providers.ToolCallDelta) ([]BlockEvent, error) {
	if d.Index < 0 {
		return nil, &DataError{Message: "negative tool call index"}
	}
	if a.state.FinishReason != "" {
		return nil, &DataError{Message: "tool call delta after finish reason"}
	}

	// Continuation of the call currently being built.
	if block, ok := a.toolBlocks[d.Index]; ok {
		if block.Completed {
			return nil, &DataError{Message: "tool call delta for completed call"}
		}
		if d.ArgumentsDelta == "" {
			return nil, nil
		}
		block.Arguments += d.ArgumentsDelta
		return []BlockEvent{{Block: block, Kind: BlockDelta}}, nil
	}

	// First fragment of a new call.
	if d.Index != a.toolCount {
		return nil, &DataError{
			Message: "tool call index out of order",
		}
	}
	if d.ID == "" && d.Name == "" {
		return nil, &DataError{Message: "first tool call fragment carries neither id nor name"}
	}

	var events []BlockEvent
	if open := a.state.OpenBlock(); open != nil {
		open.Completed = true
		events = append(events, BlockEvent{Block: open, Kind: BlockCompleted})
	}
	a.toolsStarted = true

	block := &policy.Block{
		ID:        d.ID,
		Type:      policy.BlockTypeToolCall,
		Index:     len(a.state.Blocks),
		ToolName:  d.Name,
		Arguments: d.ArgumentsDelta,
	}
	a.state.Blocks = append(a.state.Blocks, block)
	a.toolBlocks[d.Index] = block
	a.toolCount++

	events = append(events, BlockEvent{Block: block, Kind: BlockStarted})
	if d.ArgumentsDelta != "" {
		events = append(events, BlockEvent{Block: block, Kind: BlockDelta})
	}
	return events, nil
}

package stream

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// blockingSource never produces a chunk until released or cancelled.
type blockingSource struct {
	release chan *providers.Chunk
}

func (s *blockingSource) Next(ctx context.Context) (*providers.Chunk, error) {
	select {
	case chunk, ok := <-s.release:
		if !ok {
			return nil, io.EOF
		}
		return chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestPipelineForwardsApprovedChunks(t *testing.T) {
	pol := &recordingPolicy{onChunkFinished: forwardingChunkFinished}
	p := NewPipeline(pol, Config{}, nil, nil, nil)

	s := p.Run(context.Background(), &sliceSource{chunks: textChunks()})
	out := drain(t, s)
	if err := s.Err(); err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("forwarded %d chunks, want 3", len(out))
	}
	if _, ok := s.Terminated(); ok {
		t.Error("clean stream reported as terminated")
	}
}

func TestPipelineTerminationOnToolCallSkipsErrorHook(t *testing.T) {
	// A policy that terminates on the first tool call delta, before any
	// send: the error hook stays silent, close runs once, and the stream
	// surfaces the empty output as a failure.
	pol := &recordingPolicy{
		onToolCallDelta: func(context.Context, policy.Context, providers.ToolCallDelta) error {
			return policy.Terminate("tool call rejected")
		},
	}
	p := NewPipeline(pol, Config{}, nil, nil, nil)

	s := p.Run(context.Background(), &sliceSource{chunks: toolCallChunks()})
	out := drain(t, s)
	if len(out) != 0 {
		t.Errorf("terminated stream forwarded %d chunks, want 0", len(out))
	}

	var silent *SilentDropError
	if !errors.As(s.Err(), &silent) {
		t.Fatalf("got %v, want SilentDropError", s.Err())
	}
	if reason, ok := s.Terminated(); !ok || reason != "tool call rejected" {
		t.Errorf("termination = %q, %v", reason, ok)
	}

	got := pol.Trace()
	if count(got, "OnStreamError") != 0 {
		t.Error("OnStreamError ran for a graceful termination")
	}
	if count(got, "OnStreamClosed") != 1 {
		t.Errorf("OnStreamClosed ran %d times, want 1", count(got, "OnStreamClosed"))
	}
	// The termination short-circuited the rest of the chunk's hooks.
	if count(got, "OnChunkFinished") != count(got, "OnChunkStarted")-1 {
		t.Errorf("terminating chunk still reached OnChunkFinished: %v", got)
	}
}

func TestPipelineTerminationAfterSendIsClean(t *testing.T) {
	sent := false
	pol := &recordingPolicy{
		onContentDelta: func(ctx context.Context, sc policy.Context, delta string) error {
			if !sent {
				sent = true
				if err := sc.Send(ctx, &providers.Chunk{ContentDelta: providers.Text(delta)}); err != nil {
					return err
				}
			}
			return policy.Terminate("enough")
		},
	}
	p := NewPipeline(pol, Config{}, nil, nil, nil)

	s := p.Run(context.Background(), &sliceSource{chunks: textChunks()})
	out := drain(t, s)
	if err := s.Err(); err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("forwarded %d chunks, want the one queued before termination", len(out))
	}
	if reason, ok := s.Terminated(); !ok || reason != "enough" {
		t.Errorf("termination = %q, %v", reason, ok)
	}
	if count(pol.Trace(), "OnStreamError") != 0 {
		t.Error("OnStreamError ran for a graceful termination")
	}
}

func TestPipelineSendAfterTerminationRejected(t *testing.T) {
	var sendErr error
	pol := &recordingPolicy{
		onContentDelta: func(ctx context.Context, sc policy.Context, delta string) error {
			sc.Terminate("stop now")
			sendErr = sc.Send(ctx, &providers.Chunk{ContentDelta: providers.Text(delta)})
			return nil
		},
	}
	p := NewPipeline(pol, Config{}, nil, nil, nil)

	s := p.Run(context.Background(), &sliceSource{chunks: textChunks()})
	drain(t, s)
	s.Err()

	if !errors.Is(sendErr, policy.ErrSendAfterTermination) {
		t.Errorf("send after terminate returned %v, want ErrSendAfterTermination", sendErr)
	}
}

func TestPipelineSilentDrop(t *testing.T) {
	// A policy that never sends: the stream must fail loudly instead of
	// resolving into an empty success.
	pol := &recordingPolicy{}
	p := NewPipeline(pol, Config{}, nil, nil, nil)

	s := p.Run(context.Background(), &sliceSource{chunks: textChunks()})
	drain(t, s)

	var silent *SilentDropError
	if !errors.As(s.Err(), &silent) {
		t.Fatalf("got %v, want SilentDropError", s.Err())
	}
	if silent.StreamID != s.ID() {
		t.Errorf("silent drop stream id = %q, want %q", silent.StreamID, s.ID())
	}
}

func TestPipelineIdleTimeout(t *testing.T) {
	pol := &recordingPolicy{onChunkFinished: forwardingChunkFinished}
	p := NewPipeline(pol, Config{IdleTimeout: 30 * time.Millisecond}, nil, nil, nil)

	src := &blockingSource{release: make(chan *providers.Chunk)}
	s := p.Run(context.Background(), src)
	drain(t, s)

	var timeout *TimeoutError
	if !errors.As(s.Err(), &timeout) {
		t.Fatalf("got %v, want TimeoutError", s.Err())
	}

	got := pol.Trace()
	if count(got, "OnStreamError") != 1 {
		t.Errorf("OnStreamError ran %d times, want 1", count(got, "OnStreamError"))
	}
	if count(got, "OnStreamClosed") != 1 {
		t.Errorf("OnStreamClosed ran %d times, want 1", count(got, "OnStreamClosed"))
	}
}

func TestPipelineKeepaliveDefersTimeout(t *testing.T) {
	// A hook doing slow out-of-band work keeps the stream alive by calling
	// Keepalive from another goroutine while the upstream stays quiet.
	var sc policy.Context
	started := make(chan struct{})
	pol := &recordingPolicy{}
	pol.onContentDelta = func(_ context.Context, c policy.Context, _ string) error {
		sc = c
		close(started)
		return nil
	}
	pol.onChunkFinished = forwardingChunkFinished

	p := NewPipeline(pol, Config{IdleTimeout: 60 * time.Millisecond}, nil, nil, nil)

	src := &blockingSource{release: make(chan *providers.Chunk, 3)}
	src.release <- &providers.Chunk{Role: providers.RoleAssistant, ContentDelta: providers.Text("Hi")}

	s := p.Run(context.Background(), src)

	go func() {
		<-started
		for i := 0; i < 5; i++ {
			time.Sleep(40 * time.Millisecond)
			sc.Keepalive()
		}
		src.release <- &providers.Chunk{FinishReason: providers.FinishReasonStop}
		close(src.release)
	}()

	drain(t, s)
	if err := s.Err(); err != nil {
		t.Fatalf("stream failed despite keepalives: %v", err)
	}
}

func TestPipelineCancelledContextFailsStream(t *testing.T) {
	pol := &recordingPolicy{onChunkFinished: forwardingChunkFinished}
	p := NewPipeline(pol, Config{}, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	src := &blockingSource{release: make(chan *providers.Chunk)}
	s := p.Run(ctx, src)
	cancel()
	drain(t, s)

	if !errors.Is(s.Err(), context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", s.Err())
	}
	if count(pol.Trace(), "OnStreamClosed") != 1 {
		t.Error("cleanup did not run exactly once after cancellation")
	}
}

func TestPipelineBackpressureFailsStream(t *testing.T) {
	pol := &recordingPolicy{onChunkFinished: forwardingChunkFinished}
	p := NewPipeline(pol, Config{
		ChannelCapacity: 1,
		SendTimeout:     20 * time.Millisecond,
	}, nil, nil, nil)

	// Nobody drains the output channel.
	s := p.Run(context.Background(), &sliceSource{chunks: textChunks()})
	err := s.Err()

	var bp *BackpressureError
	if !errors.As(err, &bp) {
		t.Fatalf("got %v, want BackpressureError", err)
	}
	if count(pol.Trace(), "OnStreamClosed") != 1 {
		t.Error("cleanup did not run exactly once after backpressure trip")
	}
	drain(t, s)
}

func TestPipelineUpstreamErrorPropagates(t *testing.T) {
	pol := &recordingPolicy{onChunkFinished: forwardingChunkFinished}
	p := NewPipeline(pol, Config{}, nil, nil, nil)

	upstream := errors.New("connection reset")
	src := &errorSource{chunks: textChunks()[:1], err: upstream}
	s := p.Run(context.Background(), src)
	drain(t, s)

	if !errors.Is(s.Err(), upstream) {
		t.Fatalf("got %v, want upstream error", s.Err())
	}
	got := pol.Trace()
	if count(got, "OnStreamError") != 1 || count(got, "OnStreamClosed") != 1 {
		t.Errorf("cleanup hooks miscounted: %v", got)
	}
}

// errorSource yields its chunks then a terminal error.
type errorSource struct {
	chunks []*providers.Chunk
	err    error
	pos    int
}

func (s *errorSource) Next(ctx context.Context) (*providers.Chunk, error) {
	if s.pos >= len(s.chunks) {
		return nil, s.err
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

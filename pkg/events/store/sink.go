package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events"
)

// AsyncSink decouples event emission from persistence. Emit enqueues onto a
// bounded buffer and returns immediately; a background writer drains the
// buffer into the store. When the buffer is full the event is dropped and
// counted, never blocked on.
type AsyncSink struct {
	store  *Store
	logger *slog.Logger

	buf     chan events.Event
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	dropped int64
}

// NewAsyncSink starts the background writer. capacity defaults to 1024
// when zero.
func NewAsyncSink(store *Store, capacity int, logger *slog.Logger) *AsyncSink {
	if capacity <= 0 {
		capacity = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &AsyncSink{
		store:  store,
		logger: logger.With("component", "events.sink"),
		buf:    make(chan events.Event, capacity),
		done:   make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Emit implements events.Sink.
func (s *AsyncSink) Emit(_ context.Context, ev events.Event) {
	select {
	case s.buf <- ev:
	default:
		s.mu.Lock()
		s.dropped++
		n := s.dropped
		s.mu.Unlock()
		if n%100 == 1 {
			s.logger.Warn("event buffer full, dropping events", "dropped_total", n)
		}
	}
}

// Dropped returns how many events were discarded due to a full buffer.
func (s *AsyncSink) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops accepting events, flushes the buffer, and waits for the
// writer to finish.
func (s *AsyncSink) Close() {
	s.once.Do(func() {
		close(s.buf)
		<-s.done
	})
}

func (s *AsyncSink) writeLoop() {
	defer close(s.done)
	for ev := range s.buf {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.Insert(ctx, ev); err != nil {
			s.logger.Error("event write failed", "event_type", ev.Type, "error", err)
		}
		cancel()
	}
}

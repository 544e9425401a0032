package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(Config{Path: filepath.Join(t.TempDir(), "events.db")}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreInsertAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ev := events.New("stream-1", "tool_guard.denied", "tool blocked",
		map[string]any{"tool": "delete_files"}, events.SeverityWarning)
	if err := s.Insert(ctx, ev); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.ByStream(ctx, "stream-1", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Type != "tool_guard.denied" || got[0].Severity != events.SeverityWarning {
		t.Errorf("event = %+v", got[0])
	}
	if got[0].Details["tool"] != "delete_files" {
		t.Errorf("details = %v", got[0].Details)
	}
}

func TestStoreByStreamOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, typ := range []string{"stream.started", "chunk.received", "stream.closed"} {
		ev := events.New("stream-2", typ, "", nil, events.SeverityInfo)
		ev.Timestamp = time.Unix(0, int64(i))
		if err := s.Insert(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ByStream(ctx, "stream-2", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if got[0].Type != "stream.started" || got[2].Type != "stream.closed" {
		t.Errorf("ordering wrong: %v, %v", got[0].Type, got[2].Type)
	}
}

func TestStoreDeleteOlderThan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	cutoff := time.Now()

	old := events.New("s", "old", "", nil, events.SeverityInfo)
	old.Timestamp = cutoff.Add(-time.Hour)
	fresh := events.New("s", "fresh", "", nil, events.SeverityInfo)
	fresh.Timestamp = cutoff.Add(time.Hour)

	for _, ev := range []events.Event{old, fresh} {
		if err := s.Insert(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := s.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d, want 1", deleted)
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestAsyncSinkPersists(t *testing.T) {
	s := openTestStore(t)
	sink := NewAsyncSink(s, 16, nil)

	for i := 0; i < 5; i++ {
		sink.Emit(context.Background(), events.New("stream-3", "tick", "", nil, events.SeverityInfo))
	}
	sink.Close()

	got, err := s.ByStream(context.Background(), "stream-3", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Errorf("persisted %d events, want 5", len(got))
	}
	if sink.Dropped() != 0 {
		t.Errorf("dropped = %d, want 0", sink.Dropped())
	}
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	stream_id  TEXT NOT NULL,
	type       TEXT NOT NULL,
	summary    TEXT NOT NULL,
	details    TEXT,
	severity   TEXT NOT NULL,
	timestamp  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream_id);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
`

// Config holds SQLite settings for the event store.
type Config struct {
	// Path is the database file path. ":memory:" keeps the store in memory.
	Path string `yaml:"path"`

	// MaxOpenConns caps open connections. Defaults to 10.
	MaxOpenConns int `yaml:"max_open_conns"`

	// BusyTimeout is how long a locked database is retried.
	// Defaults to 5s.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = "data/events.db"
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
	return c
}

// Store is the SQLite-backed event store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the database and initializes the schema.
func NewStore(cfg Config, logger *slog.Logger) (*Store, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "events.store")

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger.Info("event store opened", "path", cfg.Path)
	return &Store{db: db, logger: logger}, nil
}

// Insert persists one event.
func (s *Store) Insert(ctx context.Context, ev events.Event) error {
	var details []byte
	if ev.Details != nil {
		var err error
		details, err = json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("marshal event details: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, stream_id, type, summary, details, severity, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.StreamID, ev.Type, ev.Summary, nullable(details), string(ev.Severity), ev.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ByStream returns the events recorded for one stream, oldest first,
// capped at limit (0 means no cap).
func (s *Store) ByStream(ctx context.Context, streamID string, limit int) ([]events.Event, error) {
	query := `SELECT id, stream_id, type, summary, details, severity, timestamp
		FROM events WHERE stream_id = ? ORDER BY timestamp ASC`
	args := []any{streamID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// Recent returns the newest events across all streams, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.query(ctx,
		`SELECT id, stream_id, type, summary, details, severity, timestamp
		 FROM events ORDER BY timestamp DESC LIMIT ?`, limit)
}

// DeleteOlderThan removes events recorded before cutoff and returns how
// many were deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM events WHERE timestamp < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the total number of stored events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			ev       events.Event
			details  sql.NullString
			severity string
			ts       int64
		)
		if err := rows.Scan(&ev.ID, &ev.StreamID, &ev.Type, &ev.Summary, &details, &severity, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &ev.Details); err != nil {
				return nil, fmt.Errorf("unmarshal event details: %w", err)
			}
		}
		ev.Severity = events.Severity(severity)
		ev.Timestamp = time.Unix(0, ts)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

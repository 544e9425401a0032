package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Deleter is the slice of the event store the pruner needs.
type Deleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config controls what gets pruned and when.
type Config struct {
	// RetentionDays is the event age limit. Zero disables pruning.
	RetentionDays int `yaml:"retention_days"`

	// Schedule is a standard cron expression. Defaults to daily at 3 AM.
	Schedule string `yaml:"schedule"`
}

// Pruner deletes events older than the retention period, either on demand
// or on its cron schedule.
type Pruner struct {
	store  Deleter
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner creates a pruner over the given store.
func NewPruner(store Deleter, cfg Config, logger *slog.Logger) *Pruner {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 3 * * *"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "events.retention"),
	}
}

// Prune deletes events older than the retention period and returns how
// many were removed. With retention disabled it is a no-op.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -p.cfg.RetentionDays)
	return p.store.DeleteOlderThan(ctx, cutoff)
}

// Start schedules automatic pruning. It returns immediately; jobs run on
// the cron schedule until Stop is called or ctx is cancelled. With
// retention disabled it does nothing.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.RetentionDays <= 0 {
		p.logger.Info("event retention disabled, pruner not scheduled")
		return nil
	}
	if p.running {
		return fmt.Errorf("pruner already running")
	}

	if _, err := cron.ParseStandard(p.cfg.Schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.cfg.Schedule, err)
	}

	p.cron = cron.New()
	if _, err := p.cron.AddFunc(p.cfg.Schedule, func() {
		deleted, err := p.Prune(ctx)
		if err != nil {
			p.logger.Error("scheduled prune failed", "error", err)
			return
		}
		if deleted > 0 {
			p.logger.Info("scheduled prune completed", "deleted", deleted)
		}
	}); err != nil {
		return fmt.Errorf("schedule prune job: %w", err)
	}

	p.cron.Start()
	p.running = true
	p.logger.Info("event pruner started",
		"schedule", p.cfg.Schedule,
		"retention_days", p.cfg.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop halts scheduled pruning and waits for a running job to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil && p.running {
		<-p.cron.Stop().Done()
		p.running = false
		p.logger.Info("event pruner stopped")
	}
}

// NextRun returns the next scheduled prune time, or the zero time when the
// pruner is not running.
func (p *Pruner) NextRun() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron == nil || !p.running {
		return time.Time{}
	}
	entries := p.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Package retention enforces the usage record retention policy by deleting
// records older than the configured window, optionally on a cron schedule.
package retention

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/janus/pkg/usage"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain usage records.
	// 0 means keep records forever (no pruning).
	RetentionDays int

	// PruneSchedule is a cron expression for scheduled pruning.
	// Example: "0 3 * * *" (daily at 3 AM). Empty disables scheduling;
	// Prune can still be called manually.
	PruneSchedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 0,
		PruneSchedule: "0 3 * * *",
	}
}

// Pruner deletes usage records past the retention window.
type Pruner struct {
	storage   usage.Storage
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewPruner creates a new retention pruner.
func NewPruner(storage usage.Storage, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	pruner := &Pruner{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "usage.retention"),
	}
	pruner.scheduler = NewScheduler(pruner)

	return pruner
}

// Prune deletes usage records older than the retention period and returns
// the number deleted. With RetentionDays of zero it is a no-op.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -p.config.RetentionDays)

	deleted, err := p.storage.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, usage.NewRetentionError(p.config.RetentionDays, err)
	}

	if deleted > 0 {
		p.logger.Info("pruned usage records",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
			"cutoff", cutoff,
		)
	} else {
		p.logger.Debug("no usage records pruned",
			"retention_days", p.config.RetentionDays,
		)
	}

	return deleted, nil
}

// Scheduler returns the pruner's scheduler.
func (p *Pruner) Scheduler() *Scheduler {
	return p.scheduler
}

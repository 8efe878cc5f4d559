package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/schedule"
)

// Pruner deletes journal records older than the retention period.
type Pruner struct {
	journal   core.Journal
	retention time.Duration
	schedule  schedule.Schedule
	logger    *slog.Logger
	now       func() time.Time
}

// NewPruner creates a Pruner. A non-positive retention disables pruning.
func NewPruner(j core.Journal, retention time.Duration, s schedule.Schedule, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		journal:   j,
		retention: retention,
		schedule:  s,
		logger:    logger,
		now:       time.Now,
	}
}

// PruneNow deletes every record older than the retention period.
func (p *Pruner) PruneNow(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	return p.journal.Prune(ctx, p.now().Add(-p.retention))
}

// Run prunes on every tick of the schedule until ctx is cancelled.
func (p *Pruner) Run(ctx context.Context) {
	if p.schedule == nil || p.retention <= 0 {
		return
	}

	for {
		now := p.now()
		timer := time.NewTimer(p.schedule.Next(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		n, err := p.PruneNow(ctx)
		if err != nil {
			p.logger.Error("failed to prune call journal", "error", err)
			continue
		}
		if n > 0 {
			p.logger.Info("pruned call journal", "deleted", n, "retention", p.retention)
		}
	}
}

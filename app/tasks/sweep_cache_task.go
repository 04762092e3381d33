package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/hn-comb/app/cache"
	"github.com/lysyi3m/hn-comb/app/database"
)

type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepCacheTask purges expired page records and the journal rows that
// describe them. Serve mode runs it daily.
type SweepCacheTask struct {
	Task
	cache   Sweeper
	journal database.FetchJournal // optional
	logger  *slog.Logger
}

func NewSweepCacheTask(dir string, sweeper Sweeper, journal database.FetchJournal, logger *slog.Logger) *SweepCacheTask {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepCacheTask{
		Task:    NewTask(TaskTypeSweepCache, dir),
		cache:   sweeper,
		journal: journal,
		logger:  logger,
	}
}

func (t *SweepCacheTask) Execute(ctx context.Context) error {
	removed, err := t.cache.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep page cache: %w", err)
	}

	var pruned int64
	if t.journal != nil {
		pruned, err = t.journal.DeleteFetchesBefore(ctx, time.Now().Add(-cache.Expiry))
		if err != nil {
			return fmt.Errorf("failed to prune fetch journal: %w", err)
		}
	}

	t.logger.Info("Task completed",
		"type", "SweepCache",
		"dir", t.Target,
		"duration", t.GetDuration(),
		"removed", removed,
		"journal_pruned", pruned)

	return nil
}

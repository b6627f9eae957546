package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prudhvinik1/numberwatch/internal/repositories"
)

type Syncer interface {
	Sync(ctx context.Context, accountID uuid.UUID, force bool) SyncResult
}

// Scheduler periodically syncs every active account with bounded concurrency.
type Scheduler struct {
	accounts repositories.AccountRepository
	syncer   Syncer
	interval time.Duration
	workers  int
	logger   *zap.Logger
}

func NewScheduler(accounts repositories.AccountRepository, syncer Syncer, interval time.Duration, workers int, logger *zap.Logger) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{
		accounts: accounts,
		syncer:   syncer,
		interval: interval,
		workers:  workers,
		logger:   logger.Named("scheduler"),
	}
}

// Run syncs immediately and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled sync round failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce syncs all active accounts that are not blocked on re-registration or
// configuration. Results are in account order.
func (s *Scheduler) RunOnce(ctx context.Context) ([]SyncResult, error) {
	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	results := make([]SyncResult, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, account := range accounts {
		i, account := i, account
		if blocked, ok := blockedResult(account); ok {
			results[i] = blocked
			continue
		}
		g.Go(func() error {
			results[i] = s.syncer.Sync(gctx, account.ID, false)
			return nil
		})
	}
	_ = g.Wait()

	var completed, skipped, failed int
	for _, res := range results {
		switch res.Status {
		case SyncCompleted:
			completed++
		case SyncSkipped:
			skipped++
		case SyncFailed:
			failed++
		}
	}
	s.logger.Info("sync round finished",
		zap.Int("accounts", len(accounts)),
		zap.Int("completed", completed),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed))

	return results, nil
}

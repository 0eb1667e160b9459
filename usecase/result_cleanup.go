package usecase

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/repositories"
)

// ResultCleanupService periodically deletes results older than the retention
type ResultCleanupService struct {
	results   repositories.GameResultRepository
	retention time.Duration
	interval  time.Duration
	clock     clock.Clock
	logger    *zap.Logger
}

// NewResultCleanupService creates a cleanup service. A zero retention
// disables cleanup.
func NewResultCleanupService(results repositories.GameResultRepository, retention, interval time.Duration, clk clock.Clock, logger *zap.Logger) *ResultCleanupService {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &ResultCleanupService{
		results:   results,
		retention: retention,
		interval:  interval,
		clock:     clk,
		logger:    logger,
	}
}

// Run cleans up once immediately and then every interval until ctx is done
func (s *ResultCleanupService) Run(ctx context.Context) error {
	if s.retention <= 0 {
		s.logger.Info("Result cleanup disabled")
		return nil
	}

	s.logger.Info("Result cleanup service started",
		zap.Duration("retention", s.retention),
		zap.Duration("interval", s.interval))

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	s.runCleanup(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Result cleanup service stopped")
			return nil
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *ResultCleanupService) runCleanup(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("Failed to delete expired results", zap.Error(err))
	}
}

// RunOnce deletes results that finished before now minus the retention
func (s *ResultCleanupService) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	cutoff := s.clock.Now().Add(-s.retention)
	deleted, err := s.results.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("Expired results deleted", zap.Int64("count", deleted), zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}

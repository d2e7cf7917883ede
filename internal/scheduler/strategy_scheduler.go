package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/batchflow/batchflow/internal/strategist"
)

// StrategyScheduler periodically retunes the pipeline: it has the
// coordinator recompute budget zone and forecast risk and push fresh
// parameters. Strategy transitions are pull-based, so the cadence bounds
// how stale the active profile can be after ledger writes.
type StrategyScheduler struct {
	coordinator    *strategist.Coordinator
	logger         *slog.Logger
	stopChan       chan struct{}
	retuneInterval time.Duration
}

// NewStrategyScheduler creates a new strategy scheduler.
func NewStrategyScheduler(coordinator *strategist.Coordinator, retuneInterval time.Duration, logger *slog.Logger) *StrategyScheduler {
	if retuneInterval <= 0 {
		retuneInterval = 1 * time.Minute
	}
	return &StrategyScheduler{
		coordinator:    coordinator,
		logger:         logger,
		stopChan:       make(chan struct{}),
		retuneInterval: retuneInterval,
	}
}

// Start begins the scheduler loop
func (s *StrategyScheduler) Start(ctx context.Context) {
	s.logger.Info("starting strategy scheduler", "retune_interval", s.retuneInterval)
	ticker := time.NewTicker(s.retuneInterval)
	defer ticker.Stop()

	// Run once immediately on start
	s.retune(ctx)

	for {
		select {
		case <-ticker.C:
			s.retune(ctx)
		case <-s.stopChan:
			s.logger.Info("strategy scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("strategy scheduler stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the scheduler
func (s *StrategyScheduler) Stop() {
	close(s.stopChan)
}

func (s *StrategyScheduler) retune(ctx context.Context) {
	if err := s.coordinator.UpdateComponentParameters(ctx); err != nil {
		s.logger.Error("failed to update component parameters", "error", err)
	}
}

package strategist

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/batchflow/batchflow/internal/models"
)

// BudgetSource supplies the current budget zone.
type BudgetSource interface {
	Status(ctx context.Context) (models.BudgetState, error)
}

// ForecastSource supplies forecast risk levels.
type ForecastSource interface {
	Forecast(ctx context.Context, h models.Horizon) (models.ForecastResult, error)
}

// Configurable receives the derived batch config; satisfied by the
// batching pipeline.
type Configurable interface {
	SetConfig(cfg models.BatchConfig) error
}

// ParameterConsumer receives the full strategy; satisfied by sibling
// components such as a response cache or model selector.
type ParameterConsumer interface {
	ApplyStrategy(strategy models.OptimizationStrategy)
}

// Coordinator selects an optimization profile from the budget zone and
// forecast risk, derives concrete parameter sets, and distributes them to
// the batching pipeline and any registered consumers. Each recomputation
// publishes a fresh immutable snapshot atomically.
type Coordinator struct {
	budget    BudgetSource
	forecast  ForecastSource
	pipeline  Configurable
	consumers []ParameterConsumer
	logger    *slog.Logger

	current  atomic.Pointer[models.OptimizationStrategy]
	override atomic.Pointer[models.Profile]
}

// NewCoordinator constructs a coordinator starting on the balanced profile.
func NewCoordinator(budget BudgetSource, forecast ForecastSource, pipeline Configurable, logger *slog.Logger, consumers ...ParameterConsumer) *Coordinator {
	c := &Coordinator{
		budget:    budget,
		forecast:  forecast,
		pipeline:  pipeline,
		consumers: consumers,
		logger:    logger,
	}
	initial := buildStrategy(models.ProfileBalanced, "initial")
	c.current.Store(&initial)
	return c
}

// CurrentStrategy returns the last published strategy snapshot.
func (c *Coordinator) CurrentStrategy() models.OptimizationStrategy {
	return *c.current.Load()
}

// SetOverride pins the profile manually. This is the only way to select
// max performance, which forgoes savings entirely and is never
// auto-selected.
func (c *Coordinator) SetOverride(p models.Profile) error {
	switch p {
	case models.ProfileMaxSavings, models.ProfileBalanced, models.ProfileMaxPerformance:
	default:
		return fmt.Errorf("unknown profile: %s", p)
	}
	c.override.Store(&p)
	c.logger.Info("strategy override set", "profile", p)
	return nil
}

// ClearOverride returns profile selection to automatic.
func (c *Coordinator) ClearOverride() {
	c.override.Store(nil)
	c.logger.Info("strategy override cleared")
}

// Recompute selects the profile from the current zone and risk level and
// publishes a fresh strategy snapshot. Forecaster or ledger malfunction
// degrades to the balanced profile rather than failing.
func (c *Coordinator) Recompute(ctx context.Context) models.OptimizationStrategy {
	strategy := c.selectStrategy(ctx)
	c.current.Store(&strategy)
	return strategy
}

// UpdateComponentParameters recomputes the strategy and distributes the
// derived parameter sets to the pipeline and registered consumers.
func (c *Coordinator) UpdateComponentParameters(ctx context.Context) error {
	strategy := c.Recompute(ctx)

	if err := c.pipeline.SetConfig(strategy.BatchConfig); err != nil {
		return fmt.Errorf("apply batch config: %w", err)
	}
	for _, consumer := range c.consumers {
		consumer.ApplyStrategy(strategy)
	}

	c.logger.Info("component parameters updated",
		"profile", strategy.Profile,
		"reason", strategy.Reason,
		"max_batch_size", strategy.BatchConfig.MaxBatchSize,
		"max_wait_time_ms", strategy.BatchConfig.MaxWaitTime.Milliseconds())
	return nil
}

func (c *Coordinator) selectStrategy(ctx context.Context) models.OptimizationStrategy {
	if p := c.override.Load(); p != nil {
		return buildStrategy(*p, "manual override")
	}

	state, err := c.budget.Status(ctx)
	if err != nil {
		c.logger.Error("budget status unavailable, degrading to balanced", "error", err)
		return buildStrategy(models.ProfileBalanced, "degraded: budget monitor unavailable")
	}

	risk := models.RiskLow
	forecast, err := c.forecast.Forecast(ctx, models.HorizonMedium)
	if err != nil {
		c.logger.Error("forecast unavailable, using budget zone only", "error", err)
	} else {
		risk = forecast.RiskLevel
	}

	switch {
	case state.Zone == models.ZoneEmergency || risk == models.RiskHigh:
		return buildStrategy(models.ProfileMaxSavings,
			fmt.Sprintf("zone=%s risk=%s", state.Zone, risk))
	case state.Zone.AtLeast(models.ZoneWarning) || risk == models.RiskMedium:
		return buildStrategy(models.ProfileBalanced,
			fmt.Sprintf("zone=%s risk=%s", state.Zone, risk))
	default:
		return buildStrategy(models.ProfileBalanced,
			fmt.Sprintf("default (zone=%s risk=%s)", state.Zone, risk))
	}
}

// buildStrategy derives the concrete parameter sets for a profile.
func buildStrategy(p models.Profile, reason string) models.OptimizationStrategy {
	strategy := models.OptimizationStrategy{
		Profile:    p,
		ComputedAt: time.Now(),
		Reason:     reason,
	}

	switch p {
	case models.ProfileMaxSavings:
		// Largest batches and longest tolerable wait; min kept low so
		// small batches are still admitted under severe pressure.
		strategy.BatchConfig = models.BatchConfig{
			MaxBatchSize:   50,
			MinBatchSize:   2,
			MaxWaitTime:    2 * time.Minute,
			PriorityBypass: false,
		}
		strategy.CacheParams = models.CacheParams{SimilarityThreshold: 0.80, TTL: 24 * time.Hour}
		strategy.SelectorParams = models.SelectorParams{PreferEconomy: true, QualityFloor: 0.6}
	case models.ProfileMaxPerformance:
		strategy.BatchConfig = models.BatchConfig{
			MaxBatchSize:   5,
			MinBatchSize:   1,
			MaxWaitTime:    2 * time.Second,
			PriorityBypass: true,
		}
		strategy.CacheParams = models.CacheParams{SimilarityThreshold: 0.98, TTL: time.Hour}
		strategy.SelectorParams = models.SelectorParams{PreferEconomy: false, QualityFloor: 0.9}
	default:
		strategy.BatchConfig = models.BatchConfig{
			MaxBatchSize:   20,
			MinBatchSize:   2,
			MaxWaitTime:    30 * time.Second,
			PriorityBypass: true,
		}
		strategy.CacheParams = models.CacheParams{SimilarityThreshold: 0.90, TTL: 6 * time.Hour}
		strategy.SelectorParams = models.SelectorParams{PreferEconomy: false, QualityFloor: 0.75}
	}
	return strategy
}

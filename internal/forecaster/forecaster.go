package forecaster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/batchflow/batchflow/internal/models"
)

// SpendHistory supplies the daily spend series from the ledger.
type SpendHistory interface {
	DailySpend(ctx context.Context, days int) ([]models.DailySpend, error)
}

// BudgetSource supplies the current budget state for risk grading.
type BudgetSource interface {
	Status(ctx context.Context) (models.BudgetState, error)
}

// Projection is a strategy's fitted cost projection over a horizon:
// total projected spend with a confidence interval and the fit's error
// metric (RMSE of residuals).
type Projection struct {
	PointEstimate float64
	Low           float64
	High          float64
	ErrorMetric   float64
}

// Strategy fits a history window and projects total spend over
// horizonDays. Any model satisfying this contract can be plugged in.
type Strategy interface {
	Name() string
	Fit(history []models.DailySpend, horizonDays int) (Projection, error)
}

// Engine produces point + confidence-interval cost projections over
// short, medium, and long horizons from ledger history.
type Engine struct {
	history    SpendHistory
	budget     BudgetSource
	strategies map[models.Horizon]Strategy
	logger     *slog.Logger
}

// NewEngine constructs an engine with the default strategy per horizon:
// linear trend for the short horizon, seasonal decomposition for medium
// and long where weekly patterns dominate.
func NewEngine(history SpendHistory, budget BudgetSource, logger *slog.Logger) *Engine {
	return &Engine{
		history: history,
		budget:  budget,
		strategies: map[models.Horizon]Strategy{
			models.HorizonShort:  NewLinearTrend(),
			models.HorizonMedium: NewSeasonal(),
			models.HorizonLong:   NewSeasonal(),
		},
		logger: logger,
	}
}

// SetStrategy replaces the strategy for a horizon.
func (e *Engine) SetStrategy(h models.Horizon, s Strategy) {
	e.strategies[h] = s
}

// Forecast projects spend over the horizon and grades the exhaustion risk
// against the current budget state.
func (e *Engine) Forecast(ctx context.Context, h models.Horizon) (models.ForecastResult, error) {
	strategy, ok := e.strategies[h]
	if !ok {
		return models.ForecastResult{}, fmt.Errorf("no strategy for horizon %q", h)
	}

	windowDays := h.Days()
	history, err := e.history.DailySpend(ctx, windowDays)
	if err != nil {
		return models.ForecastResult{}, fmt.Errorf("load spend history: %w", err)
	}

	proj, err := strategy.Fit(history, h.Days())
	if err != nil {
		return models.ForecastResult{}, fmt.Errorf("fit %s strategy: %w", strategy.Name(), err)
	}

	state, err := e.budget.Status(ctx)
	if err != nil {
		return models.ForecastResult{}, fmt.Errorf("budget status: %w", err)
	}

	result := models.ForecastResult{
		Horizon:       h,
		PointEstimate: proj.PointEstimate,
		ConfidenceInterval: models.ConfidenceInterval{
			Low:  proj.Low,
			High: proj.High,
		},
		ErrorMetric: proj.ErrorMetric,
		RiskLevel:   riskLevel(proj, h, state),
		Strategy:    strategy.Name(),
	}

	e.logger.Debug("forecast computed",
		"horizon", h,
		"strategy", strategy.Name(),
		"point_estimate", result.PointEstimate,
		"risk", result.RiskLevel)

	return result, nil
}

// ForecastExhaustion extrapolates the recent burn rate and returns the
// projected exhaustion date for the remaining budget, or nil when
// exhaustion is not projected within the long forecast horizon.
func (e *Engine) ForecastExhaustion(ctx context.Context, remainingBudget float64) (*time.Time, error) {
	history, err := e.history.DailySpend(ctx, models.HorizonShort.Days())
	if err != nil {
		return nil, fmt.Errorf("load spend history: %w", err)
	}

	var total float64
	for _, d := range history {
		total += d.Cost
	}
	if len(history) == 0 {
		return nil, nil
	}

	dailyRate := total / float64(len(history))
	if dailyRate <= 0 || remainingBudget <= 0 {
		if remainingBudget <= 0 {
			now := time.Now()
			return &now, nil
		}
		return nil, nil
	}

	daysToExhaustion := remainingBudget / dailyRate
	if daysToExhaustion > float64(models.HorizonLong.Days()) {
		return nil, nil
	}

	exhaustion := time.Now().Add(time.Duration(daysToExhaustion * 24 * float64(time.Hour)))
	return &exhaustion, nil
}

// riskLevel thresholds the projection against the remaining budget over
// the days left in the period: high when the point estimate alone exhausts
// it, medium when the interval's upper bound does, low otherwise.
func riskLevel(proj Projection, h models.Horizon, state models.BudgetState) models.RiskLevel {
	if state.Remaining <= 0 {
		return models.RiskHigh
	}
	if state.DaysRemaining <= 0 {
		return models.RiskLow
	}

	horizonDays := float64(h.Days())
	pointRate := proj.PointEstimate / horizonDays
	highRate := proj.High / horizonDays

	if pointRate*state.DaysRemaining >= state.Remaining {
		return models.RiskHigh
	}
	if highRate*state.DaysRemaining >= state.Remaining {
		return models.RiskMedium
	}
	return models.RiskLow
}

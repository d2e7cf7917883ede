package budget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/batchflow/batchflow/internal/models"
)

// Zone thresholds as fractions of the rolling budget.
const (
	warningThreshold   = 0.65
	criticalThreshold  = 0.85
	emergencyThreshold = 1.0

	// Burn-rate overshoot factors above the ideal linear rate.
	mediumOvershoot = 1.2
	highOvershoot   = 1.5
)

// SpendSource supplies cumulative spend from the ledger.
type SpendSource interface {
	TotalSince(ctx context.Context, from time.Time) (float64, error)
}

// Monitor tracks cumulative spend against a rolling budget and classifies
// the system into a zone. It performs no side effects beyond computation:
// it is queried, not subscribed to.
type Monitor struct {
	spend       SpendSource
	totalBudget float64
	periodDays  int
	logger      *slog.Logger

	mu          sync.Mutex
	periodStart time.Time
}

// NewMonitor constructs a monitor over a rolling period of periodDays
// starting at periodStart.
func NewMonitor(spend SpendSource, totalBudget float64, periodDays int, periodStart time.Time, logger *slog.Logger) (*Monitor, error) {
	if totalBudget <= 0 {
		return nil, fmt.Errorf("total budget must be positive")
	}
	if periodDays < 1 {
		return nil, fmt.Errorf("period must be at least one day")
	}
	if periodStart.IsZero() {
		periodStart = time.Now()
	}

	return &Monitor{
		spend:       spend,
		totalBudget: totalBudget,
		periodDays:  periodDays,
		periodStart: periodStart,
		logger:      logger,
	}, nil
}

// Status recomputes the budget state from the ledger. The consumption
// ratio is non-decreasing within a period and zones only move forward;
// both reset at period rollover.
func (m *Monitor) Status(ctx context.Context) (models.BudgetState, error) {
	now := time.Now()
	start, end := m.currentPeriod(now)

	spent, err := m.spend.TotalSince(ctx, start)
	if err != nil {
		return models.BudgetState{}, fmt.Errorf("compute spend: %w", err)
	}

	ratio := spent / m.totalBudget
	daysElapsed := now.Sub(start).Hours() / 24
	daysRemaining := end.Sub(now).Hours() / 24
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	state := models.BudgetState{
		TotalBudget:      m.totalBudget,
		Spent:            spent,
		Remaining:        m.totalBudget - spent,
		ConsumptionRatio: ratio,
		DaysElapsed:      daysElapsed,
		DaysRemaining:    daysRemaining,
		PeriodStart:      start,
		PeriodEnd:        end,
		Zone:             zoneFor(ratio),
		Alerts:           m.alerts(ratio, daysElapsed, now),
	}
	return state, nil
}

// currentPeriod rolls the period start forward past any completed periods.
func (m *Monitor) currentPeriod(now time.Time) (time.Time, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	periodLen := time.Duration(m.periodDays) * 24 * time.Hour
	for !now.Before(m.periodStart.Add(periodLen)) {
		m.periodStart = m.periodStart.Add(periodLen)
		m.logger.Info("budget period rolled over", "period_start", m.periodStart)
	}
	return m.periodStart, m.periodStart.Add(periodLen)
}

func zoneFor(ratio float64) models.BudgetZone {
	switch {
	case ratio >= emergencyThreshold:
		return models.ZoneEmergency
	case ratio >= criticalThreshold:
		return models.ZoneCritical
	case ratio >= warningThreshold:
		return models.ZoneWarning
	default:
		return models.ZoneNormal
	}
}

// alerts compares the observed consumption rate against the ideal linear
// rate for the period and raises a medium alert above +20% and a high
// alert above +50%.
func (m *Monitor) alerts(ratio, daysElapsed float64, now time.Time) []models.BudgetAlert {
	idealRate := daysElapsed / float64(m.periodDays)
	if idealRate <= 0 {
		return nil
	}

	overshoot := ratio / idealRate
	var alerts []models.BudgetAlert

	switch {
	case overshoot > highOvershoot:
		alerts = append(alerts, models.BudgetAlert{
			Severity: models.SeverityHigh,
			Message: fmt.Sprintf("consumption rate is %.0f%% of the ideal linear rate",
				overshoot*100),
			Recommendations: []string{
				"switch to the max savings profile",
				"increase batching aggressiveness",
				"raise cache similarity threshold",
				"route non-critical tasks to economy models",
			},
			RaisedAt: now,
		})
	case overshoot > mediumOvershoot:
		alerts = append(alerts, models.BudgetAlert{
			Severity: models.SeverityMedium,
			Message: fmt.Sprintf("consumption rate is %.0f%% of the ideal linear rate",
				overshoot*100),
			Recommendations: []string{
				"increase batching",
				"raise cache similarity threshold",
			},
			RaisedAt: now,
		})
	}
	return alerts
}

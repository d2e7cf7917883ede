package models

import "time"

// BudgetZone classifies how much of the rolling budget has been consumed.
type BudgetZone string

const (
	ZoneNormal    BudgetZone = "normal"    // below 65% consumption
	ZoneWarning   BudgetZone = "warning"   // 65-85%
	ZoneCritical  BudgetZone = "critical"  // 85-100%
	ZoneEmergency BudgetZone = "emergency" // at or above 100%
)

// rank orders zones so transitions within a period only move forward.
func (z BudgetZone) rank() int {
	switch z {
	case ZoneWarning:
		return 1
	case ZoneCritical:
		return 2
	case ZoneEmergency:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether z is the same as or further along than other.
func (z BudgetZone) AtLeast(other BudgetZone) bool {
	return z.rank() >= other.rank()
}

// AlertSeverity grades budget alerts.
type AlertSeverity string

const (
	SeverityMedium AlertSeverity = "medium"
	SeverityHigh   AlertSeverity = "high"
)

// BudgetAlert is raised when the observed consumption rate runs ahead of
// the ideal linear rate for the period.
type BudgetAlert struct {
	Severity        AlertSeverity `json:"severity"`
	Message         string        `json:"message"`
	Recommendations []string      `json:"recommendations"`
	RaisedAt        time.Time     `json:"raised_at"`
}

// BudgetState is a point-in-time view of spend against the rolling budget.
// It is recomputed on demand from the ledger, never persisted.
type BudgetState struct {
	TotalBudget      float64       `json:"total_budget"`
	Spent            float64       `json:"spent"`
	Remaining        float64       `json:"remaining"`
	ConsumptionRatio float64       `json:"consumption_ratio"`
	DaysElapsed      float64       `json:"days_elapsed"`
	DaysRemaining    float64       `json:"days_remaining"`
	PeriodStart      time.Time     `json:"period_start"`
	PeriodEnd        time.Time     `json:"period_end"`
	Zone             BudgetZone    `json:"zone"`
	Alerts           []BudgetAlert `json:"alerts"`
}

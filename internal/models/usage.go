package models

import (
	"fmt"
	"time"
)

// UsageRecord is one completed work item's cost accounting entry.
// Records are immutable once written; the ledger is append-only.
type UsageRecord struct {
	ID                   int64     `json:"id,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
	Key                  string    `json:"key"`
	InputUnits           int       `json:"input_units"`
	OutputUnits          int       `json:"output_units"`
	CostUSD              float64   `json:"cost_usd"`
	TaskType             string    `json:"task_type"`
	OptimizationsApplied []string  `json:"optimizations_applied"`
}

// Timeframe selects the aggregation window for usage statistics.
type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
)

// Window returns the start time of the timeframe relative to now.
func (t Timeframe) Window(now time.Time) (time.Time, error) {
	switch t {
	case TimeframeDay:
		return now.Add(-24 * time.Hour), nil
	case TimeframeWeek:
		return now.Add(-7 * 24 * time.Hour), nil
	case TimeframeMonth:
		return now.Add(-30 * 24 * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unknown timeframe: %s", t)
	}
}

// UsageStatistics aggregates ledger entries over a timeframe.
// Statistics are computed on read, not cached.
type UsageStatistics struct {
	Timeframe  Timeframe          `json:"timeframe"`
	TotalCost  float64            `json:"total_cost"`
	Records    int                `json:"records"`
	ByKey      map[string]float64 `json:"by_key"`
	ByTaskType map[string]float64 `json:"by_task_type"`
}

// DailySpend is one day's aggregated cost, the input series for the
// forecasting strategies.
type DailySpend struct {
	Date time.Time `json:"date"`
	Cost float64   `json:"cost"`
}

package forecaster

import (
	"fmt"
	"math"

	"github.com/batchflow/batchflow/internal/models"
)

// ciMultiplier widens the interval to roughly 95% coverage assuming
// normally distributed residuals.
const ciMultiplier = 1.96

// LinearTrend fits an ordinary least-squares line through the daily spend
// series and projects it forward.
type LinearTrend struct{}

// NewLinearTrend constructs the linear trend strategy.
func NewLinearTrend() *LinearTrend {
	return &LinearTrend{}
}

// Name implements Strategy.
func (*LinearTrend) Name() string { return "linear_trend" }

// Fit implements Strategy.
func (*LinearTrend) Fit(history []models.DailySpend, horizonDays int) (Projection, error) {
	n := len(history)
	if n == 0 {
		return Projection{}, fmt.Errorf("empty spend history")
	}

	// Least squares over day index -> cost.
	var sumX, sumY, sumXY, sumXX float64
	for i, d := range history {
		x := float64(i)
		sumX += x
		sumY += d.Cost
		sumXY += x * d.Cost
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX

	var slope, intercept float64
	if denom != 0 {
		slope = (fn*sumXY - sumX*sumY) / denom
		intercept = (sumY - slope*sumX) / fn
	} else {
		intercept = sumY / fn
	}

	rmse := residualRMSE(history, func(i int) float64 {
		return intercept + slope*float64(i)
	})

	// Sum the fitted line over the projection window.
	var point float64
	for i := 0; i < horizonDays; i++ {
		daily := intercept + slope*float64(n+i)
		if daily < 0 {
			daily = 0
		}
		point += daily
	}

	spread := ciMultiplier * rmse * math.Sqrt(float64(horizonDays))
	return Projection{
		PointEstimate: point,
		Low:           math.Max(0, point-spread),
		High:          point + spread,
		ErrorMetric:   rmse,
	}, nil
}

// Seasonal decomposes the series into a linear trend plus day-of-week
// factors, capturing weekly usage patterns.
type Seasonal struct {
	trend *LinearTrend
}

// NewSeasonal constructs the seasonal decomposition strategy.
func NewSeasonal() *Seasonal {
	return &Seasonal{trend: NewLinearTrend()}
}

// Name implements Strategy.
func (*Seasonal) Name() string { return "seasonal" }

// Fit implements Strategy.
func (s *Seasonal) Fit(history []models.DailySpend, horizonDays int) (Projection, error) {
	n := len(history)
	if n < 14 {
		// Not enough data for weekly factors; fall back to the trend.
		return s.trend.Fit(history, horizonDays)
	}

	var mean float64
	for _, d := range history {
		mean += d.Cost
	}
	mean /= float64(n)
	if mean == 0 {
		return Projection{ErrorMetric: 0}, nil
	}

	// Multiplicative day-of-week factors around the series mean.
	factorSum := make([]float64, 7)
	factorCount := make([]int, 7)
	for _, d := range history {
		dow := int(d.Date.Weekday())
		factorSum[dow] += d.Cost / mean
		factorCount[dow]++
	}
	factors := make([]float64, 7)
	for i := range factors {
		if factorCount[i] > 0 {
			factors[i] = factorSum[i] / float64(factorCount[i])
		} else {
			factors[i] = 1
		}
	}

	rmse := residualRMSE(history, func(i int) float64 {
		return mean * factors[int(history[i].Date.Weekday())]
	})

	lastDate := history[n-1].Date
	var point float64
	for i := 1; i <= horizonDays; i++ {
		dow := int(lastDate.AddDate(0, 0, i).Weekday())
		point += mean * factors[dow]
	}

	spread := ciMultiplier * rmse * math.Sqrt(float64(horizonDays))
	return Projection{
		PointEstimate: point,
		Low:           math.Max(0, point-spread),
		High:          point + spread,
		ErrorMetric:   rmse,
	}, nil
}

// residualRMSE computes the root-mean-square error of fitted vs observed.
func residualRMSE(history []models.DailySpend, fitted func(i int) float64) float64 {
	if len(history) == 0 {
		return 0
	}

	var sumSq float64
	for i, d := range history {
		diff := d.Cost - fitted(i)
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(history)))
}

package models

// Horizon selects the projection window for a cost forecast.
type Horizon string

const (
	HorizonShort  Horizon = "short"  // 7 days
	HorizonMedium Horizon = "medium" // 30 days
	HorizonLong   Horizon = "long"   // 90 days
)

// Days returns the number of days the horizon projects over.
func (h Horizon) Days() int {
	switch h {
	case HorizonMedium:
		return 30
	case HorizonLong:
		return 90
	default:
		return 7
	}
}

// RiskLevel grades how likely the forecast is to exhaust the remaining
// budget before the period ends.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ConfidenceInterval bounds a forecast's point estimate.
type ConfidenceInterval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// ForecastResult is a cost projection over one horizon.
type ForecastResult struct {
	Horizon            Horizon            `json:"horizon"`
	PointEstimate      float64            `json:"point_estimate"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	ErrorMetric        float64            `json:"error_metric"`
	RiskLevel          RiskLevel          `json:"risk_level"`
	Strategy           string             `json:"strategy"`
}

package forecaster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/batchflow/batchflow/internal/models"
)

type stubHistory struct {
	series []models.DailySpend
	err    error
}

func (s stubHistory) DailySpend(ctx context.Context, days int) ([]models.DailySpend, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.series) > days {
		return s.series[len(s.series)-days:], nil
	}
	return s.series, nil
}

type stubBudget struct {
	state models.BudgetState
	err   error
}

func (s stubBudget) Status(ctx context.Context) (models.BudgetState, error) {
	return s.state, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEngine_Forecast(t *testing.T) {
	// $2/day steady, $200 remaining over 20 days: projected spend stays
	// comfortably inside the budget.
	budget := stubBudget{state: models.BudgetState{
		TotalBudget:   300,
		Spent:         100,
		Remaining:     200,
		DaysRemaining: 20,
	}}
	engine := NewEngine(stubHistory{series: flatHistory(30, 2.0)}, budget, testLogger())

	result, err := engine.Forecast(context.Background(), models.HorizonShort)
	if err != nil {
		t.Fatalf("Forecast() returned error: %v", err)
	}
	if result.Horizon != models.HorizonShort {
		t.Errorf("Horizon = %v, want short", result.Horizon)
	}
	if result.Strategy != "linear_trend" {
		t.Errorf("Strategy = %q, want linear_trend for the short horizon", result.Strategy)
	}
	if result.PointEstimate < 13.9 || result.PointEstimate > 14.1 {
		t.Errorf("PointEstimate = %v, want about 14 over 7 days", result.PointEstimate)
	}
	if result.RiskLevel != models.RiskLow {
		t.Errorf("RiskLevel = %v, want low", result.RiskLevel)
	}
	if result.ConfidenceInterval.Low > result.PointEstimate || result.ConfidenceInterval.High < result.PointEstimate {
		t.Errorf("interval [%v, %v] does not bracket the point estimate %v",
			result.ConfidenceInterval.Low, result.ConfidenceInterval.High, result.PointEstimate)
	}
}

func TestEngine_ForecastMediumUsesSeasonal(t *testing.T) {
	budget := stubBudget{state: models.BudgetState{Remaining: 1000, DaysRemaining: 20}}
	engine := NewEngine(stubHistory{series: flatHistory(30, 2.0)}, budget, testLogger())

	result, err := engine.Forecast(context.Background(), models.HorizonMedium)
	if err != nil {
		t.Fatalf("Forecast() returned error: %v", err)
	}
	if result.Strategy != "seasonal" {
		t.Errorf("Strategy = %q, want seasonal for the medium horizon", result.Strategy)
	}
}

func TestEngine_ForecastRiskLevels(t *testing.T) {
	tests := []struct {
		name      string
		dailyCost float64
		remaining float64
		want      models.RiskLevel
	}{
		{"Comfortable margin", 1.0, 500, models.RiskLow},
		{"Point estimate exhausts budget", 10.0, 100, models.RiskHigh},
		{"Budget already gone", 1.0, 0, models.RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			budget := stubBudget{state: models.BudgetState{
				Remaining:     tt.remaining,
				DaysRemaining: 20,
			}}
			engine := NewEngine(stubHistory{series: flatHistory(30, tt.dailyCost)}, budget, testLogger())

			result, err := engine.Forecast(context.Background(), models.HorizonShort)
			if err != nil {
				t.Fatalf("Forecast() returned error: %v", err)
			}
			if result.RiskLevel != tt.want {
				t.Errorf("RiskLevel = %v, want %v", result.RiskLevel, tt.want)
			}
		})
	}
}

func TestEngine_ForecastPropagatesFailures(t *testing.T) {
	budget := stubBudget{state: models.BudgetState{Remaining: 100, DaysRemaining: 10}}

	engine := NewEngine(stubHistory{err: errors.New("store down")}, budget, testLogger())
	if _, err := engine.Forecast(context.Background(), models.HorizonShort); err == nil {
		t.Error("Forecast() swallowed the history error")
	}

	engine = NewEngine(stubHistory{series: flatHistory(7, 1)}, stubBudget{err: errors.New("monitor down")}, testLogger())
	if _, err := engine.Forecast(context.Background(), models.HorizonShort); err == nil {
		t.Error("Forecast() swallowed the budget error")
	}
}

func TestEngine_SetStrategy(t *testing.T) {
	budget := stubBudget{state: models.BudgetState{Remaining: 1000, DaysRemaining: 10}}
	engine := NewEngine(stubHistory{series: flatHistory(30, 1)}, budget, testLogger())

	engine.SetStrategy(models.HorizonShort, NewSeasonal())
	result, err := engine.Forecast(context.Background(), models.HorizonShort)
	if err != nil {
		t.Fatalf("Forecast() returned error: %v", err)
	}
	if result.Strategy != "seasonal" {
		t.Errorf("Strategy = %q after SetStrategy, want seasonal", result.Strategy)
	}
}

func TestEngine_ForecastExhaustion(t *testing.T) {
	budget := stubBudget{}

	t.Run("Projected within horizon", func(t *testing.T) {
		engine := NewEngine(stubHistory{series: flatHistory(7, 10.0)}, budget, testLogger())
		// $10/day against $50 remaining exhausts in about 5 days.
		at, err := engine.ForecastExhaustion(context.Background(), 50)
		if err != nil {
			t.Fatalf("ForecastExhaustion() returned error: %v", err)
		}
		if at == nil {
			t.Fatal("ForecastExhaustion() = nil, want a projected date")
		}
		days := time.Until(*at).Hours() / 24
		if days < 4.5 || days > 5.5 {
			t.Errorf("exhaustion in %.1f days, want about 5", days)
		}
	})

	t.Run("Beyond long horizon", func(t *testing.T) {
		engine := NewEngine(stubHistory{series: flatHistory(7, 0.01)}, budget, testLogger())
		at, err := engine.ForecastExhaustion(context.Background(), 1000)
		if err != nil {
			t.Fatalf("ForecastExhaustion() returned error: %v", err)
		}
		if at != nil {
			t.Errorf("ForecastExhaustion() = %v, want nil beyond the long horizon", at)
		}
	})

	t.Run("Already exhausted", func(t *testing.T) {
		engine := NewEngine(stubHistory{series: flatHistory(7, 1.0)}, budget, testLogger())
		at, err := engine.ForecastExhaustion(context.Background(), 0)
		if err != nil {
			t.Fatalf("ForecastExhaustion() returned error: %v", err)
		}
		if at == nil {
			t.Fatal("ForecastExhaustion() = nil for an exhausted budget, want now")
		}
		if time.Until(*at) > time.Minute {
			t.Errorf("exhaustion date %v, want approximately now", at)
		}
	})

	t.Run("No spend", func(t *testing.T) {
		engine := NewEngine(stubHistory{series: flatHistory(7, 0)}, budget, testLogger())
		at, err := engine.ForecastExhaustion(context.Background(), 100)
		if err != nil {
			t.Fatalf("ForecastExhaustion() returned error: %v", err)
		}
		if at != nil {
			t.Errorf("ForecastExhaustion() = %v with zero burn rate, want nil", at)
		}
	})
}

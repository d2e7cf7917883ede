package budget

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/batchflow/batchflow/internal/models"
)

type stubSpend struct {
	total float64
	err   error
}

func (s stubSpend) TotalSince(ctx context.Context, from time.Time) (float64, error) {
	return s.total, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewMonitor_Validation(t *testing.T) {
	tests := []struct {
		name       string
		budget     float64
		periodDays int
		wantErr    bool
	}{
		{"Valid", 500, 30, false},
		{"Zero budget", 0, 30, true},
		{"Negative budget", -10, 30, true},
		{"Zero period", 500, 0, true},
		{"One day period", 500, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMonitor(stubSpend{}, tt.budget, tt.periodDays, time.Now(), testLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMonitor() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMonitor_Zones(t *testing.T) {
	tests := []struct {
		name  string
		spent float64
		want  models.BudgetZone
	}{
		{"Fresh budget", 0, models.ZoneNormal},
		{"Just under warning", 64.9, models.ZoneNormal},
		{"Warning boundary", 65, models.ZoneWarning},
		{"Mid warning", 75, models.ZoneWarning},
		{"Critical boundary", 85, models.ZoneCritical},
		{"Just under emergency", 99.9, models.ZoneCritical},
		{"Emergency boundary", 100, models.ZoneEmergency},
		{"Over budget", 140, models.ZoneEmergency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMonitor(stubSpend{total: tt.spent}, 100, 30, time.Now().Add(-15*24*time.Hour), testLogger())
			if err != nil {
				t.Fatalf("NewMonitor() returned error: %v", err)
			}
			state, err := m.Status(context.Background())
			if err != nil {
				t.Fatalf("Status() returned error: %v", err)
			}
			if state.Zone != tt.want {
				t.Errorf("Zone = %v (ratio %.3f), want %v", state.Zone, state.ConsumptionRatio, tt.want)
			}
		})
	}
}

func TestMonitor_StateFields(t *testing.T) {
	start := time.Now().Add(-10 * 24 * time.Hour)
	m, err := NewMonitor(stubSpend{total: 30}, 100, 30, start, testLogger())
	if err != nil {
		t.Fatalf("NewMonitor() returned error: %v", err)
	}

	state, err := m.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() returned error: %v", err)
	}
	if state.Spent != 30 {
		t.Errorf("Spent = %v, want 30", state.Spent)
	}
	if state.Remaining != 70 {
		t.Errorf("Remaining = %v, want 70", state.Remaining)
	}
	if state.ConsumptionRatio != 0.3 {
		t.Errorf("ConsumptionRatio = %v, want 0.3", state.ConsumptionRatio)
	}
	if state.DaysElapsed < 9.9 || state.DaysElapsed > 10.1 {
		t.Errorf("DaysElapsed = %v, want about 10", state.DaysElapsed)
	}
	if state.DaysRemaining < 19.9 || state.DaysRemaining > 20.1 {
		t.Errorf("DaysRemaining = %v, want about 20", state.DaysRemaining)
	}
	if !state.PeriodEnd.Equal(state.PeriodStart.Add(30 * 24 * time.Hour)) {
		t.Errorf("PeriodEnd = %v, want period start plus 30 days", state.PeriodEnd)
	}
}

func TestMonitor_BurnRateAlerts(t *testing.T) {
	// 15 days into a 30-day period: ideal consumption is 50%.
	start := time.Now().Add(-15 * 24 * time.Hour)

	tests := []struct {
		name         string
		spent        float64
		wantAlerts   int
		wantSeverity models.AlertSeverity
	}{
		{"On pace", 50, 0, ""},
		{"Slightly ahead but under 1.2x", 55, 0, ""},
		{"Medium overshoot", 65, 1, models.SeverityMedium},
		{"High overshoot", 80, 1, models.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMonitor(stubSpend{total: tt.spent}, 100, 30, start, testLogger())
			if err != nil {
				t.Fatalf("NewMonitor() returned error: %v", err)
			}
			state, err := m.Status(context.Background())
			if err != nil {
				t.Fatalf("Status() returned error: %v", err)
			}
			if len(state.Alerts) != tt.wantAlerts {
				t.Fatalf("alerts = %d, want %d", len(state.Alerts), tt.wantAlerts)
			}
			if tt.wantAlerts > 0 {
				alert := state.Alerts[0]
				if alert.Severity != tt.wantSeverity {
					t.Errorf("alert severity = %v, want %v", alert.Severity, tt.wantSeverity)
				}
				if len(alert.Recommendations) == 0 {
					t.Error("alert carries no recommendations")
				}
			}
		})
	}
}

func TestMonitor_PeriodRollover(t *testing.T) {
	// Period started 45 days ago with a 30-day length: we are 15 days into
	// the second period.
	start := time.Now().Add(-45 * 24 * time.Hour)
	m, err := NewMonitor(stubSpend{total: 10}, 100, 30, start, testLogger())
	if err != nil {
		t.Fatalf("NewMonitor() returned error: %v", err)
	}

	state, err := m.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() returned error: %v", err)
	}
	if !state.PeriodStart.Equal(start.Add(30 * 24 * time.Hour)) {
		t.Errorf("PeriodStart = %v, want rolled forward one period", state.PeriodStart)
	}
	if state.DaysElapsed < 14.9 || state.DaysElapsed > 15.1 {
		t.Errorf("DaysElapsed = %v, want about 15 after rollover", state.DaysElapsed)
	}
}

func TestMonitor_SpendSourceFailure(t *testing.T) {
	m, err := NewMonitor(stubSpend{err: errors.New("store down")}, 100, 30, time.Now(), testLogger())
	if err != nil {
		t.Fatalf("NewMonitor() returned error: %v", err)
	}
	if _, err := m.Status(context.Background()); err == nil {
		t.Error("Status() swallowed the spend source error")
	}
}

func TestBudgetZone_AtLeast(t *testing.T) {
	if !models.ZoneCritical.AtLeast(models.ZoneWarning) {
		t.Error("critical should be at least warning")
	}
	if models.ZoneNormal.AtLeast(models.ZoneWarning) {
		t.Error("normal should not be at least warning")
	}
	if !models.ZoneEmergency.AtLeast(models.ZoneEmergency) {
		t.Error("a zone should be at least itself")
	}
}

package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/batchflow/batchflow/internal/models"
)

// Store persists usage records. Append is the only mutation; there are no
// updates or deletes.
type Store interface {
	Append(ctx context.Context, rec models.UsageRecord) error
	Since(ctx context.Context, from time.Time) ([]models.UsageRecord, error)
}

// Forwarder forwards records to an external accounting system. Forwarding
// is best-effort and runs off the record path.
type Forwarder interface {
	Forward(ctx context.Context, rec models.UsageRecord) error
}

// Ledger is the append-only record of completed work items. Statistics are
// computed on read, not cached; callers needing repeated reads may memoize
// externally.
type Ledger struct {
	store     Store
	forwarder Forwarder
	logger    *slog.Logger
}

// New constructs a ledger over the given store. forwarder may be nil.
func New(store Store, forwarder Forwarder, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:     store,
		forwarder: forwarder,
		logger:    logger,
	}
}

// Record appends a usage entry. Forwarding to the external accounting sink
// happens asynchronously so it can never delay the caller.
func (l *Ledger) Record(ctx context.Context, rec models.UsageRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	if err := l.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("append usage record: %w", err)
	}

	if l.forwarder != nil {
		go func() {
			if err := l.forwarder.Forward(context.Background(), rec); err != nil {
				l.logger.Error("failed to forward usage record",
					"key", rec.Key,
					"error", err)
			}
		}()
	}
	return nil
}

// Query aggregates total cost, per-key distribution, and per-task-type
// distribution over the timeframe.
func (l *Ledger) Query(ctx context.Context, tf models.Timeframe) (models.UsageStatistics, error) {
	now := time.Now()
	from, err := tf.Window(now)
	if err != nil {
		return models.UsageStatistics{}, err
	}

	records, err := l.store.Since(ctx, from)
	if err != nil {
		return models.UsageStatistics{}, fmt.Errorf("query usage records: %w", err)
	}

	stats := models.UsageStatistics{
		Timeframe:  tf,
		ByKey:      make(map[string]float64),
		ByTaskType: make(map[string]float64),
	}
	for _, rec := range records {
		stats.TotalCost += rec.CostUSD
		stats.Records++
		stats.ByKey[rec.Key] += rec.CostUSD
		if rec.TaskType != "" {
			stats.ByTaskType[rec.TaskType] += rec.CostUSD
		}
	}
	return stats, nil
}

// TotalSince sums spend from the given time, the budget monitor's input.
func (l *Ledger) TotalSince(ctx context.Context, from time.Time) (float64, error) {
	records, err := l.store.Since(ctx, from)
	if err != nil {
		return 0, fmt.Errorf("query usage records: %w", err)
	}

	var total float64
	for _, rec := range records {
		total += rec.CostUSD
	}
	return total, nil
}

// DailySpend buckets the last `days` of spend by calendar day, oldest
// first, the forecasting strategies' input series. Days with no records
// appear with zero cost so the series has no gaps.
func (l *Ledger) DailySpend(ctx context.Context, days int) ([]models.DailySpend, error) {
	if days < 1 {
		return nil, fmt.Errorf("days must be at least 1")
	}

	now := time.Now()
	start := now.AddDate(0, 0, -(days - 1)).Truncate(24 * time.Hour)

	records, err := l.store.Since(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("query usage records: %w", err)
	}

	buckets := make(map[time.Time]float64, days)
	for _, rec := range records {
		day := rec.Timestamp.Truncate(24 * time.Hour)
		buckets[day] += rec.CostUSD
	}

	series := make([]models.DailySpend, 0, days)
	for d := start; !d.After(now); d = d.AddDate(0, 0, 1) {
		series = append(series, models.DailySpend{Date: d, Cost: buckets[d]})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}

// MemoryStore is the default in-memory append-only store.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.UsageRecord
	nextID  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Append adds a record. Records are immutable once written.
func (s *MemoryStore) Append(ctx context.Context, rec models.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextID
	s.nextID++
	s.records = append(s.records, rec)
	return nil
}

// Since returns all records at or after from, in insertion order.
func (s *MemoryStore) Since(ctx context.Context, from time.Time) ([]models.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.UsageRecord, 0, len(s.records))
	for _, rec := range s.records {
		if !rec.Timestamp.Before(from) {
			out = append(out, rec)
		}
	}
	return out, nil
}

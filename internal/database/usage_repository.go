package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/batchflow/batchflow/internal/models"
)

// UsageRepository is the Postgres-backed append-only usage store. It
// satisfies the ledger's Store interface so the in-memory store can be
// swapped out when durable history is wanted.
type UsageRepository struct {
	db *sql.DB
}

// NewUsageRepository creates a new repository.
func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// EnsureSchema creates the usage_records table if it does not exist.
func (r *UsageRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS usage_records (
			id BIGSERIAL PRIMARY KEY,
			recorded_at TIMESTAMPTZ NOT NULL,
			key TEXT NOT NULL,
			input_units INTEGER NOT NULL,
			output_units INTEGER NOT NULL,
			cost_usd DOUBLE PRECISION NOT NULL,
			task_type TEXT NOT NULL DEFAULT '',
			optimizations TEXT[] NOT NULL DEFAULT '{}'
		);
		CREATE INDEX IF NOT EXISTS idx_usage_records_recorded_at
			ON usage_records (recorded_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure usage_records schema: %w", err)
	}
	return nil
}

// Append inserts a usage record. Append is the only mutation; there are
// no updates or deletes.
func (r *UsageRepository) Append(ctx context.Context, rec models.UsageRecord) error {
	query := `
		INSERT INTO usage_records (
			recorded_at, key, input_units, output_units, cost_usd, task_type, optimizations
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.Timestamp,
		rec.Key,
		rec.InputUnits,
		rec.OutputUnits,
		rec.CostUSD,
		rec.TaskType,
		pq.Array(rec.OptimizationsApplied),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// Since returns all records at or after from, oldest first.
func (r *UsageRepository) Since(ctx context.Context, from time.Time) ([]models.UsageRecord, error) {
	query := `
		SELECT id, recorded_at, key, input_units, output_units, cost_usd, task_type, optimizations
		FROM usage_records
		WHERE recorded_at >= $1
		ORDER BY recorded_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		var optimizations pq.StringArray
		if err := rows.Scan(
			&rec.ID,
			&rec.Timestamp,
			&rec.Key,
			&rec.InputUnits,
			&rec.OutputUnits,
			&rec.CostUSD,
			&rec.TaskType,
			&optimizations,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.OptimizationsApplied = optimizations
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage records: %w", err)
	}
	return records, nil
}

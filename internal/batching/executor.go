package batching

import (
	"context"
	"log/slog"
	"time"

	"github.com/batchflow/batchflow/internal/metrics"
	"github.com/batchflow/batchflow/internal/models"
)

// DefaultBatchDiscount is the provider's bulk discount applied to batched
// work relative to standard per-unit pricing.
const DefaultBatchDiscount = 0.5

// Collaborator is the injected external batch-processing call. The result
// list should align positionally with the payload list; the executor
// tolerates a shorter result list.
type Collaborator interface {
	Execute(ctx context.Context, key string, payloads [][]byte) ([]Response, error)
}

// Recorder is the usage ledger's append entry point.
type Recorder interface {
	Record(ctx context.Context, rec models.UsageRecord) error
}

// CostTable maps a key to its standard (undiscounted) per-item unit cost.
type CostTable interface {
	UnitCost(key string) float64
}

// BatchExecutor invokes the collaborator for a drained batch, fans results
// back out to each item's handle, and reports outcomes to the ledger.
// Every handle is resolved exactly once on every code path.
type BatchExecutor struct {
	collaborator Collaborator
	ledger       Recorder
	costs        CostTable
	discount     float64
	logger       *slog.Logger
	metrics      *metrics.Collector
}

// NewBatchExecutor constructs an executor. A discount <= 0 or >= 1 falls
// back to DefaultBatchDiscount.
func NewBatchExecutor(collaborator Collaborator, ledger Recorder, costs CostTable, discount float64, logger *slog.Logger, collector *metrics.Collector) *BatchExecutor {
	if discount <= 0 || discount >= 1 {
		discount = DefaultBatchDiscount
	}
	return &BatchExecutor{
		collaborator: collaborator,
		ledger:       ledger,
		costs:        costs,
		discount:     discount,
		logger:       logger,
		metrics:      collector,
	}
}

// Run executes one batch. Collaborator failure resolves every item with a
// BatchExecutionError; a short result list resolves the unmatched trailing
// items with MissingResultError. Ledger writes are best-effort and never
// delay or fail result delivery.
func (e *BatchExecutor) Run(ctx context.Context, key string, batch []pendingItem) {
	payloads := make([][]byte, len(batch))
	for i, pi := range batch {
		payloads[i] = pi.item.Payload
	}

	start := time.Now()
	responses, err := e.collaborator.Execute(ctx, key, payloads)
	if err != nil {
		e.logger.Error("batch execution failed",
			"key", key,
			"size", len(batch),
			"error", err)
		failure := &BatchExecutionError{Key: key, Err: err}
		for _, pi := range batch {
			pi.result.resolve(Response{}, failure)
			e.metrics.ItemResolved(key, "batch_failed")
		}
		return
	}

	if len(responses) < len(batch) {
		e.logger.Warn("collaborator returned short result list",
			"key", key,
			"expected", len(batch),
			"returned", len(responses))
	}

	processed := make([]pendingItem, 0, len(batch))
	for i, pi := range batch {
		if i < len(responses) {
			pi.result.resolve(responses[i], nil)
			e.metrics.ItemResolved(key, "success")
			processed = append(processed, pi)
			continue
		}
		pi.result.resolve(Response{}, &MissingResultError{
			ItemID:   pi.item.ID,
			Position: i,
			Returned: len(responses),
		})
		e.metrics.ItemResolved(key, "missing_result")
	}

	e.logger.Debug("batch completed",
		"key", key,
		"size", len(batch),
		"processed", len(processed),
		"duration_ms", time.Since(start).Milliseconds())

	e.record(ctx, key, processed, responses)
}

// record writes one usage entry per successfully processed item. The batch
// discount is applied against the key's standard unit cost.
func (e *BatchExecutor) record(ctx context.Context, key string, processed []pendingItem, responses []Response) {
	if e.ledger == nil || len(processed) == 0 {
		return
	}

	unitCost := e.costs.UnitCost(key)
	perItemCost := unitCost * (1 - e.discount)
	now := time.Now()

	for i, pi := range processed {
		rec := models.UsageRecord{
			Timestamp:            now,
			Key:                  key,
			InputUnits:           responses[i].InputUnits,
			OutputUnits:          responses[i].OutputUnits,
			CostUSD:              perItemCost,
			TaskType:             pi.item.TaskType,
			OptimizationsApplied: []string{"batch_discount"},
		}
		if err := e.ledger.Record(ctx, rec); err != nil {
			// Cost accounting is best-effort; callers already have results.
			e.logger.Error("failed to record usage",
				"key", key,
				"item_id", pi.item.ID,
				"error", err)
			continue
		}
		e.metrics.SpendRecorded(key, perItemCost)
	}
}

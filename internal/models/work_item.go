package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkItem represents a single latency-tolerant request waiting to be
// aggregated into a provider batch under its key.
type WorkItem struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"` // batching group, e.g. model name
	Payload    []byte    `json:"payload"`
	TaskType   string    `json:"task_type"`
	Priority   int       `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewWorkItem creates a work item with a fresh ID and enqueue timestamp.
func NewWorkItem(key string, payload []byte, taskType string, priority int) WorkItem {
	return WorkItem{
		ID:         uuid.New().String(),
		Key:        key,
		Payload:    payload,
		TaskType:   taskType,
		Priority:   priority,
		EnqueuedAt: time.Now(),
	}
}

// Age returns how long the item has been waiting since enqueue.
func (w WorkItem) Age(now time.Time) time.Duration {
	return now.Sub(w.EnqueuedAt)
}

// BatchConfig is an immutable snapshot of the scheduler parameters for a
// batching pipeline. A new snapshot is published atomically; readers never
// observe a partially updated config.
type BatchConfig struct {
	MaxBatchSize   int           `json:"max_batch_size"`
	MinBatchSize   int           `json:"min_batch_size"`
	MaxWaitTime    time.Duration `json:"max_wait_time"`
	PriorityBypass bool          `json:"priority_bypass"`
}

// Validate checks the config invariants. A config that fails validation
// must be rejected and the previously active config kept in effect.
func (c BatchConfig) Validate() error {
	if c.MaxBatchSize < 1 {
		return &ConfigInvalidError{Reason: "max_batch_size must be at least 1"}
	}
	if c.MinBatchSize < 1 {
		return &ConfigInvalidError{Reason: "min_batch_size must be at least 1"}
	}
	if c.MinBatchSize > c.MaxBatchSize {
		return &ConfigInvalidError{Reason: "min_batch_size must not exceed max_batch_size"}
	}
	if c.MaxWaitTime <= 0 {
		return &ConfigInvalidError{Reason: "max_wait_time must be positive"}
	}
	return nil
}

// ConfigInvalidError reports a rejected BatchConfig.
type ConfigInvalidError struct {
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return "invalid batch config: " + e.Reason
}

// QueueStat describes one key's pending queue for observability.
type QueueStat struct {
	Count           int   `json:"count"`
	OldestItemAgeMs int64 `json:"oldest_item_age_ms"`
}

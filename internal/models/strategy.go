package models

import "time"

// Profile names an optimization strategy bundling concrete scheduler and
// sibling-component parameters.
type Profile string

const (
	ProfileMaxSavings     Profile = "max_savings"
	ProfileBalanced       Profile = "balanced"
	ProfileMaxPerformance Profile = "max_performance"
)

// CacheParams tunes the response cache consumer. The cache itself lives
// outside this subsystem; the coordinator only publishes its parameters.
type CacheParams struct {
	SimilarityThreshold float64       `json:"similarity_threshold"`
	TTL                 time.Duration `json:"ttl"`
}

// SelectorParams tunes the model selector consumer.
type SelectorParams struct {
	PreferEconomy bool    `json:"prefer_economy"`
	QualityFloor  float64 `json:"quality_floor"`
}

// OptimizationStrategy is the coordinator's published parameter set.
// Invariant: BatchConfig.MinBatchSize <= MaxBatchSize and MaxWaitTime > 0.
type OptimizationStrategy struct {
	Profile        Profile        `json:"profile"`
	BatchConfig    BatchConfig    `json:"batch_config"`
	CacheParams    CacheParams    `json:"cache_params"`
	SelectorParams SelectorParams `json:"selector_params"`
	ComputedAt     time.Time      `json:"computed_at"`
	Reason         string         `json:"reason"`
}

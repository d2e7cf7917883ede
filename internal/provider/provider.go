// Package provider implements the execution collaborators that process
// flushed batches, one per upstream model provider, plus a mock for tests
// and local runs.
package provider

// StaticCostTable maps keys to standard (undiscounted) per-item unit
// costs in USD, with a fallback for unknown keys.
type StaticCostTable struct {
	costs       map[string]float64
	defaultCost float64
}

// NewStaticCostTable builds a cost table with rough per-request estimates
// for common models.
func NewStaticCostTable() *StaticCostTable {
	return &StaticCostTable{
		costs: map[string]float64{
			"gpt-4o":                     0.02,
			"gpt-4o-mini":                0.002,
			"gpt-4-turbo":                0.04,
			"gpt-3.5-turbo":              0.002,
			"claude-3-opus-20240229":     0.06,
			"claude-3-5-sonnet-20240620": 0.015,
			"claude-3-haiku-20240307":    0.001,
		},
		defaultCost: 0.01,
	}
}

// UnitCost returns the standard per-item cost for a key.
func (t *StaticCostTable) UnitCost(key string) float64 {
	if cost, ok := t.costs[key]; ok {
		return cost
	}
	return t.defaultCost
}

// Set overrides the unit cost for a key.
func (t *StaticCostTable) Set(key string, cost float64) {
	t.costs[key] = cost
}

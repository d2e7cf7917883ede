package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/batchflow/batchflow/internal/batching"
)

// MockExecutor is an in-process collaborator for tests and local runs.
// It echoes payloads back after an optional simulated latency and can be
// programmed to fail or return short result lists.
type MockExecutor struct {
	mu        sync.Mutex
	latency   time.Duration
	failWith  error
	truncate  int // when > 0, return at most this many results
	batches   [][]int
	callCount int
}

// NewMockExecutor creates a mock that echoes payloads immediately.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

// WithLatency sets a simulated per-batch latency.
func (m *MockExecutor) WithLatency(d time.Duration) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
	return m
}

// FailWith makes subsequent Execute calls return err.
func (m *MockExecutor) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// TruncateResults makes Execute return at most n results per batch.
func (m *MockExecutor) TruncateResults(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.truncate = n
}

// Calls returns the number of Execute invocations.
func (m *MockExecutor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// BatchSizes returns the size of every batch received, in order.
func (m *MockExecutor) BatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sizes := make([]int, len(m.batches))
	for i, b := range m.batches {
		sizes[i] = b[0]
	}
	return sizes
}

// Execute implements batching.Collaborator.
func (m *MockExecutor) Execute(ctx context.Context, key string, payloads [][]byte) ([]batching.Response, error) {
	m.mu.Lock()
	m.callCount++
	m.batches = append(m.batches, []int{len(payloads)})
	latency := m.latency
	failWith := m.failWith
	truncate := m.truncate
	m.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if failWith != nil {
		return nil, failWith
	}

	n := len(payloads)
	if truncate > 0 && truncate < n {
		n = truncate
	}

	responses := make([]batching.Response, n)
	for i := 0; i < n; i++ {
		responses[i] = batching.Response{
			Content:     []byte(fmt.Sprintf("echo(%s): %s", key, payloads[i])),
			InputUnits:  len(payloads[i]),
			OutputUnits: len(payloads[i]),
		}
	}
	return responses, nil
}

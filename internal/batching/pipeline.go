package batching

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/batchflow/batchflow/internal/metrics"
	"github.com/batchflow/batchflow/internal/models"
)

// Pipeline is the request admission queue and batch scheduler. Callers
// enqueue work items under a key; the pipeline aggregates them into batches
// bounded by the active BatchConfig and hands each batch to the executor.
//
// Each key's queue is guarded by its own lock so that draining a batch is
// atomic with respect to concurrent enqueues and the deadline timer: a
// flush swaps the pending items out under the key lock, and whichever of
// the size trigger or the timer loses the race observes nothing to flush.
type Pipeline struct {
	config   atomic.Pointer[models.BatchConfig]
	executor *BatchExecutor
	logger   *slog.Logger
	metrics  *metrics.Collector

	mu     sync.Mutex
	states map[string]*queueState
	closed bool

	inflight sync.WaitGroup
}

// pendingItem pairs a queued work item with its unresolved result handle.
type pendingItem struct {
	item   models.WorkItem
	result *Result
}

// queueState is one key's FIFO of pending items plus its deadline timer.
// Created lazily on first enqueue, reaped once empty with no timer armed.
type queueState struct {
	key string

	mu       sync.Mutex
	items    []pendingItem
	timer    *time.Timer
	timerGen uint64 // invalidates superseded timer callbacks
	seq      uint64 // flush generations, diagnostics only
	reaped   bool
}

// NewPipeline constructs a pipeline with the given initial config.
func NewPipeline(cfg models.BatchConfig, executor *BatchExecutor, logger *slog.Logger, collector *metrics.Collector) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		executor: executor,
		logger:   logger,
		metrics:  collector,
		states:   make(map[string]*queueState),
	}
	p.config.Store(&cfg)
	return p, nil
}

// Config returns the active config snapshot.
func (p *Pipeline) Config() models.BatchConfig {
	return *p.config.Load()
}

// SetConfig atomically replaces the active config. An invalid config is
// rejected and the previous config remains in effect. In-flight batches
// are unaffected; the new config applies to subsequent enqueue and flush
// decisions.
func (p *Pipeline) SetConfig(cfg models.BatchConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.config.Store(&cfg)
	p.logger.Info("batch config updated",
		"max_batch_size", cfg.MaxBatchSize,
		"min_batch_size", cfg.MinBatchSize,
		"max_wait_time_ms", cfg.MaxWaitTime.Milliseconds(),
		"priority_bypass", cfg.PriorityBypass)
	return nil
}

// Enqueue admits a work item and returns its result handle. Items with
// priority > 0 bypass queueing as a singleton batch when the active config
// allows it. Reaching MaxBatchSize triggers a synchronous flush; the first
// item in an empty queue arms the key's deadline timer.
func (p *Pipeline) Enqueue(ctx context.Context, item models.WorkItem) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrShutdown
	}
	p.mu.Unlock()

	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}

	cfg := p.Config()
	res := NewResult()
	pending := pendingItem{item: item, result: res}

	p.metrics.ItemEnqueued(item.Key)

	if item.Priority > 0 && cfg.PriorityBypass {
		p.dispatch(item.Key, []pendingItem{pending}, "bypass")
		return res, nil
	}

	for {
		qs := p.state(item.Key)
		if qs == nil {
			// Shutdown won the race after the admission check.
			return nil, ErrShutdown
		}
		qs.mu.Lock()
		if qs.reaped {
			// Lost a race with the reaper; the registry entry is gone.
			qs.mu.Unlock()
			continue
		}

		qs.items = append(qs.items, pending)

		var batch []pendingItem
		trigger := ""
		if len(qs.items) >= cfg.MaxBatchSize {
			p.cancelTimerLocked(qs)
			batch = p.drainLocked(qs, cfg.MaxBatchSize)
			trigger = "size"
			p.armResidualLocked(qs, cfg)
		} else if len(qs.items) == 1 {
			p.armTimerLocked(qs, cfg.MaxWaitTime)
		}

		depth := len(qs.items)
		empty := depth == 0 && qs.timer == nil
		qs.mu.Unlock()

		p.metrics.SetQueueDepth(item.Key, depth)
		if empty {
			p.reap(qs)
		}
		if batch != nil {
			p.dispatch(item.Key, batch, trigger)
		}
		return res, nil
	}
}

// Cancel withdraws a still-queued item, resolving its handle with
// ErrCancelled. Items already drained to the executor can no longer be
// cancelled; Cancel reports whether the item was found in its queue.
func (p *Pipeline) Cancel(key, itemID string) bool {
	p.mu.Lock()
	qs, ok := p.states[key]
	p.mu.Unlock()
	if !ok {
		return false
	}

	qs.mu.Lock()
	idx := -1
	for i, pi := range qs.items {
		if pi.item.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		qs.mu.Unlock()
		return false
	}

	cancelled := qs.items[idx]
	qs.items = append(qs.items[:idx:idx], qs.items[idx+1:]...)
	if len(qs.items) == 0 {
		p.cancelTimerLocked(qs)
	}
	depth := len(qs.items)
	empty := depth == 0
	qs.mu.Unlock()

	cancelled.result.resolve(Response{}, ErrCancelled)
	p.metrics.ItemResolved(key, "cancelled")
	p.metrics.SetQueueDepth(key, depth)
	if empty {
		p.reap(qs)
	}
	return true
}

// QueueStats reports pending item counts and oldest-item ages per key.
func (p *Pipeline) QueueStats() map[string]models.QueueStat {
	p.mu.Lock()
	snapshot := make([]*queueState, 0, len(p.states))
	for _, qs := range p.states {
		snapshot = append(snapshot, qs)
	}
	p.mu.Unlock()

	now := time.Now()
	stats := make(map[string]models.QueueStat, len(snapshot))
	for _, qs := range snapshot {
		qs.mu.Lock()
		if len(qs.items) > 0 {
			stats[qs.key] = models.QueueStat{
				Count:           len(qs.items),
				OldestItemAgeMs: now.Sub(qs.items[0].item.EnqueuedAt).Milliseconds(),
			}
		}
		qs.mu.Unlock()
	}
	return stats
}

// Shutdown stops admission, cancels all armed timers, resolves every
// still-queued item with ErrShutdown, and waits for in-flight batches.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	snapshot := make([]*queueState, 0, len(p.states))
	for _, qs := range p.states {
		snapshot = append(snapshot, qs)
	}
	p.mu.Unlock()

	for _, qs := range snapshot {
		qs.mu.Lock()
		p.cancelTimerLocked(qs)
		remaining := qs.items
		qs.items = nil
		qs.mu.Unlock()

		for _, pi := range remaining {
			pi.result.resolve(Response{}, ErrShutdown)
			p.metrics.ItemResolved(qs.key, "cancelled")
		}
		p.reap(qs)
	}

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onDeadline is the single flush entry point for the timer path. A timer
// whose generation has been superseded (cancelled or re-armed) observes
// nothing and returns.
func (p *Pipeline) onDeadline(qs *queueState, gen uint64) {
	cfg := p.Config()

	qs.mu.Lock()
	if qs.reaped || gen != qs.timerGen {
		qs.mu.Unlock()
		return
	}
	qs.timer = nil

	if len(qs.items) == 0 {
		qs.mu.Unlock()
		p.reap(qs)
		return
	}

	oldestAge := time.Since(qs.items[0].item.EnqueuedAt)
	if len(qs.items) < cfg.MinBatchSize && oldestAge < cfg.MaxWaitTime {
		// Under-sized and the oldest item still has wait budget left:
		// defer the flush for the residual wait.
		p.armTimerLocked(qs, cfg.MaxWaitTime-oldestAge)
		qs.mu.Unlock()
		return
	}

	trigger := "deadline"
	if len(qs.items) < cfg.MinBatchSize {
		trigger = "forced"
	}
	batch := p.drainLocked(qs, cfg.MaxBatchSize)
	p.armResidualLocked(qs, cfg)
	depth := len(qs.items)
	empty := depth == 0 && qs.timer == nil
	qs.mu.Unlock()

	p.metrics.SetQueueDepth(qs.key, depth)
	if empty {
		p.reap(qs)
	}
	p.dispatch(qs.key, batch, trigger)
}

// state returns the queue for key, creating it on first enqueue. Returns
// nil once the pipeline is closed so no queue outlives the shutdown sweep.
func (p *Pipeline) state(key string) *queueState {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	qs, ok := p.states[key]
	if !ok {
		qs = &queueState{key: key}
		p.states[key] = qs
	}
	return qs
}

// reap removes an empty queue with no armed timer from the registry.
func (p *Pipeline) reap(qs *queueState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	qs.mu.Lock()
	defer qs.mu.Unlock()

	if qs.reaped || len(qs.items) > 0 || qs.timer != nil {
		return
	}
	qs.reaped = true
	delete(p.states, qs.key)
}

// drainLocked swaps up to max oldest items out of the queue. Caller holds
// qs.mu; ownership of the drained items' resolution passes to the caller.
func (p *Pipeline) drainLocked(qs *queueState, max int) []pendingItem {
	n := len(qs.items)
	if n > max {
		n = max
	}
	if n == 0 {
		return nil
	}

	batch := qs.items[:n:n]
	qs.items = append([]pendingItem(nil), qs.items[n:]...)
	qs.seq++
	return batch
}

// armTimerLocked arms the deadline timer, invalidating any prior timer
// generation. Caller holds qs.mu.
func (p *Pipeline) armTimerLocked(qs *queueState, d time.Duration) {
	if d < 0 {
		d = 0
	}
	qs.timerGen++
	gen := qs.timerGen
	qs.timer = time.AfterFunc(d, func() {
		p.onDeadline(qs, gen)
	})
}

// armResidualLocked re-arms the timer after a drain that left items behind
// so no item is stranded. Caller holds qs.mu.
func (p *Pipeline) armResidualLocked(qs *queueState, cfg models.BatchConfig) {
	if len(qs.items) == 0 {
		return
	}
	residual := cfg.MaxWaitTime - time.Since(qs.items[0].item.EnqueuedAt)
	p.armTimerLocked(qs, residual)
}

// cancelTimerLocked disarms the timer if armed. Bumping the generation
// makes an already-fired callback a no-op. Caller holds qs.mu.
func (p *Pipeline) cancelTimerLocked(qs *queueState) {
	if qs.timer != nil {
		qs.timer.Stop()
		qs.timer = nil
	}
	qs.timerGen++
}

// dispatch hands a drained batch to the executor on its own goroutine.
func (p *Pipeline) dispatch(key string, batch []pendingItem, trigger string) {
	if len(batch) == 0 {
		return
	}

	p.metrics.BatchFlushed(key, trigger, len(batch))
	p.logger.Debug("flushing batch",
		"key", key,
		"size", len(batch),
		"trigger", trigger)

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.executor.Run(context.Background(), key, batch)
	}()
}

package batching

import (
	"context"
	"sync/atomic"
)

// Response is the per-item success payload fanned back out of a batch.
type Response struct {
	Content     []byte
	InputUnits  int
	OutputUnits int
}

// Result is a single-assignment future for one work item. It is resolved
// exactly once, by exactly one writer: either the executor after flush, or
// the queue on cancellation. Ownership of resolution transfers to the
// executor the moment the item is drained.
type Result struct {
	resolved atomic.Bool
	ch       chan outcome
}

type outcome struct {
	resp Response
	err  error
}

// NewResult creates an unresolved handle.
func NewResult() *Result {
	return &Result{ch: make(chan outcome, 1)}
}

// resolve delivers the outcome. Resolving twice signals a double-flush bug
// in the pipeline and panics.
func (r *Result) resolve(resp Response, err error) {
	if !r.resolved.CompareAndSwap(false, true) {
		panic("batching: result handle resolved twice")
	}
	r.ch <- outcome{resp: resp, err: err}
}

// Resolved reports whether the handle has been assigned an outcome.
func (r *Result) Resolved() bool {
	return r.resolved.Load()
}

// Wait blocks until the item's outcome is delivered or ctx expires.
// The outcome remains available to later Wait calls.
func (r *Result) Wait(ctx context.Context) (Response, error) {
	select {
	case out := <-r.ch:
		// Re-buffer so Wait is safe to call more than once.
		r.ch <- out
		return out.resp, out.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

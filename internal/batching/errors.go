package batching

import (
	"errors"
	"fmt"
)

// ErrCancelled resolves a work item withdrawn by its caller before flush.
var ErrCancelled = errors.New("work item cancelled before flush")

// ErrShutdown resolves work items still queued when the pipeline stops.
var ErrShutdown = errors.New("pipeline shut down before flush")

// MissingResultError resolves a work item whose batch succeeded but whose
// position fell past the end of the collaborator's result list.
type MissingResultError struct {
	ItemID   string
	Position int
	Returned int
}

func (e *MissingResultError) Error() string {
	return fmt.Sprintf("collaborator returned %d results, item %s at position %d unmatched",
		e.Returned, e.ItemID, e.Position)
}

// BatchExecutionError resolves every item of a batch whose collaborator
// call failed outright. Non-fatal to the system, fatal to the batch.
type BatchExecutionError struct {
	Key string
	Err error
}

func (e *BatchExecutionError) Error() string {
	return fmt.Sprintf("batch execution failed for key %q: %v", e.Key, e.Err)
}

func (e *BatchExecutionError) Unwrap() error {
	return e.Err
}

// IsMissingResult reports whether err is a per-item missing result failure.
func IsMissingResult(err error) bool {
	var m *MissingResultError
	return errors.As(err, &m)
}

// IsBatchExecutionFailed reports whether err is a whole-batch collaborator
// failure.
func IsBatchExecutionFailed(err error) bool {
	var b *BatchExecutionError
	return errors.As(err, &b)
}

package ledger

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested row doesn't exist.
type ErrNotFound struct {
	Entity string
	ID     int64
}

func (e ErrNotFound) Error() string {
	if e.ID == 0 {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ErrStaleCursor is returned by Consolidate when the conversation's cursor
// already advanced to or past the unit's current message id, i.e. a
// concurrent consolidation committed first. The losing unit has no effects.
type ErrStaleCursor struct {
	ConversationID   int64
	CursorID         int64
	CurrentMessageID int64
}

func (e ErrStaleCursor) Error() string {
	return fmt.Sprintf("stale consolidation for conversation %d: cursor %d already >= %d",
		e.ConversationID, e.CursorID, e.CurrentMessageID)
}

// retryable marks storage errors callers may retry (connection-level
// failures, lock contention) as opposed to structural faults such as
// constraint violations.
type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err is a transient storage failure. Structural
// errors (constraint violations) return false and should be treated as
// logic bugs by the caller.
func IsRetryable(err error) bool {
	var r retryable
	return errors.As(err, &r) && r.Retryable()
}

// StorageError wraps a driver error with its retryability classification.
type StorageError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Retryable implements the classification probed by IsRetryable.
func (e *StorageError) Retryable() bool { return e.Transient }

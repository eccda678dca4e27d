// Package errs holds the errors the coordination services report to their callers.
// Use errors.Is to check for them, the services wrap them with context.
package errs

import "errors"

var (
	// ErrTooManyConcurrentRequests is returned when a lock could not be acquired
	// within the configured number of attempts
	ErrTooManyConcurrentRequests = errors.New("too many concurrent requests")
	// ErrLockStateUnavailable is returned when the coordination store could not be reached
	ErrLockStateUnavailable = errors.New("lock state unavailable")
	// ErrBackendUnknown is returned for unexpected backend errors and interrupted waits
	ErrBackendUnknown = errors.New("unknown backend error")
	// ErrCellAccessConflict is returned when a cell is still referenced after waiting for it
	ErrCellAccessConflict = errors.New("cell access conflict")
	// ErrCellBulkDeletion is returned when a cell can't be entered because it is being bulk deleted
	ErrCellBulkDeletion = errors.New("cell is under bulk deletion")
)

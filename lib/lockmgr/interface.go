package lockmgr

import (
	"context"
	"time"

	"github.com/ValentinKolb/dCoord/lib/clock"
)

// Lock is a held lock. It is stored as JSON under its key and has no TTL.
type Lock struct {
	Key       string `json:"key"`
	CreatedAt int64  `json:"createdAt"` // unix milliseconds
}

// ILockManager defines the interface for a lock provider.
type ILockManager interface {
	// Acquire acquires the lock for the scoped key of category and scopeIDs.
	// It tries up to Options.MaxRetries times and waits Options.RetryInterval between attempts.
	//
	// Errors:
	//   - errs.ErrTooManyConcurrentRequests if every attempt found the lock held
	//   - errs.ErrLockStateUnavailable if the store could not be reached, no further attempts are made
	//   - errs.ErrBackendUnknown for other store errors or if ctx is done while waiting
	Acquire(ctx context.Context, category string, scopeIDs ...string) (*Lock, error)

	// Release deletes the lock. Releasing a lock twice or a nil lock is not an error.
	Release(lock *Lock) error
}

// Options configure the retry loop of a lock manager
type Options struct {
	// MaxRetries is the number of acquire attempts, values below 1 mean a single attempt
	MaxRetries int
	// RetryInterval is the wait between two attempts
	RetryInterval time.Duration
	// Clock is used for the lock timestamp and the wait, nil means clock.Real
	Clock clock.Clock
}

// DefaultOptions returns 50 attempts with 100ms between them
func DefaultOptions() Options {
	return Options{
		MaxRetries:    50,
		RetryInterval: 100 * time.Millisecond,
		Clock:         clock.Real{},
	}
}

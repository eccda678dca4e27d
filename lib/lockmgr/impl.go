package lockmgr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dCoord/lib/clock"
	"github.com/ValentinKolb/dCoord/lib/errs"
	"github.com/ValentinKolb/dCoord/lib/keys"
	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("lockmgr")

type lockMgrImpl struct {
	store store.IStore
	opts  Options
}

// NewLockManager creates a lock manager on top of the given store
func NewLockManager(store store.IStore, opts Options) ILockManager {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.RetryInterval < 0 {
		opts.RetryInterval = 0
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &lockMgrImpl{
		store: store,
		opts:  opts,
	}
}

func (lm *lockMgrImpl) Acquire(ctx context.Context, category string, scopeIDs ...string) (*Lock, error) {
	key, err := keys.TryCompose(category, scopeIDs...)
	if err != nil {
		return nil, err
	}

	start := lm.opts.Clock.Now()
	for attempt := 1; ; attempt++ {
		lock := &Lock{Key: key, CreatedAt: clock.NowMillis(lm.opts.Clock)}
		value, err := json.Marshal(lock)
		if err != nil {
			return nil, err
		}

		acquireAttempts.Inc()
		stored, err := lm.store.PutIfAbsent(key, value, 0)
		switch {
		case errors.Is(err, store.ErrBackendUnavailable):
			acquireUnavailable.Inc()
			return nil, fmt.Errorf("acquire %s: %w: %w", key, errs.ErrLockStateUnavailable, err)
		case err != nil:
			acquireError.Inc()
			return nil, fmt.Errorf("acquire %s: %w: %w", key, errs.ErrBackendUnknown, err)
		case stored:
			acquireAcquired.Inc()
			lockWait.Update(lm.opts.Clock.Now().Sub(start).Seconds())
			return lock, nil
		}

		if attempt >= lm.opts.MaxRetries {
			break
		}

		Logger.Debugf("lock %s is held, attempt %d/%d", key, attempt, lm.opts.MaxRetries)
		select {
		case <-ctx.Done():
			acquireInterrupted.Inc()
			return nil, fmt.Errorf("acquire %s: wait interrupted: %w: %w", key, errs.ErrBackendUnknown, ctx.Err())
		case <-lm.opts.Clock.After(lm.opts.RetryInterval):
		}
	}

	acquireContended.Inc()
	return nil, fmt.Errorf("acquire %s: lock still held after %d attempts: %w", key, lm.opts.MaxRetries, errs.ErrTooManyConcurrentRequests)
}

func (lm *lockMgrImpl) Release(lock *Lock) error {
	if lock == nil {
		return nil
	}
	if err := lm.store.Delete(lock.Key); err != nil {
		if errors.Is(err, store.ErrBackendUnavailable) {
			return fmt.Errorf("release %s: %w: %w", lock.Key, errs.ErrLockStateUnavailable, err)
		}
		return fmt.Errorf("release %s: %w: %w", lock.Key, errs.ErrBackendUnknown, err)
	}
	return nil
}

// WithLock runs fn while holding the lock for category and scopeIDs.
// The lock is released after fn returns, also if fn fails or panics.
func WithLock(ctx context.Context, lm ILockManager, category string, scopeIDs []string, fn func() error) (err error) {
	lock, err := lm.Acquire(ctx, category, scopeIDs...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, lm.Release(lock))
	}()
	return fn()
}

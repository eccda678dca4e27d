// Package lockout counts failed logins per account and reports an account as
// locked once the count reaches a threshold.
//
// The counter lives under account-lock:<accountID> with a TTL of Options.LockTime.
// Every failure resets the TTL, so the lock lapses LockTime after the last failure.
// A successful login (or an administrator) clears the counter with ReleaseAccountLock.
//
// The package only reports the lock state, rejecting the login is up to the caller.
package lockout

import (
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dCoord/lib/keys"
	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("lockout")

var failedTotal = metrics.NewCounter(`dcoord_account_failed_total`)

// Options configure the lockout policy
type Options struct {
	// LockCount is the number of failures that lock an account, values <= 0 disable the lockout
	LockCount int64
	// LockTime is how long the failures are remembered after the last one, it is rounded up to seconds
	LockTime time.Duration
}

// DefaultOptions locks an account for 60 seconds after 5 failures
func DefaultOptions() Options {
	return Options{LockCount: 5, LockTime: 60 * time.Second}
}

// Tracker tracks failed logins
type Tracker struct {
	store store.IStore
	opts  Options
}

// NewTracker creates a lockout tracker on top of the given store
func NewTracker(store store.IStore, opts Options) *Tracker {
	return &Tracker{store: store, opts: opts}
}

// ttl is LockTime in whole seconds, at least 1 if LockTime is set
func (t *Tracker) ttl() uint64 {
	if t.opts.LockTime <= 0 {
		return 0
	}
	return uint64((t.opts.LockTime + time.Second - 1) / time.Second)
}

// CountupFailedCount records a failed login and returns the number of failures in the current window
func (t *Tracker) CountupFailedCount(accountID string) (int64, error) {
	count, err := t.store.Increment(keys.Compose(keys.CategoryAccountLock, accountID), t.ttl())
	if err != nil {
		return 0, err
	}
	failedTotal.Inc()
	if t.opts.LockCount > 0 && count == t.opts.LockCount {
		Logger.Debugf("account %s locked after %d failures", accountID, count)
	}
	return count, nil
}

// GetFailedCount returns the number of failures in the current window, or -1 if there are none
func (t *Tracker) GetFailedCount(accountID string) (int64, error) {
	raw, ok, err := t.store.Get(keys.Compose(keys.CategoryAccountLock, accountID))
	if err != nil {
		return 0, err
	}
	if !ok {
		return -1, nil
	}
	count, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, store.NewError(store.RetCInvalidOperation, "failed count of "+accountID+" is not a number")
	}
	return count, nil
}

// IsLockedAccount reports whether the account reached the failure threshold
func (t *Tracker) IsLockedAccount(accountID string) (bool, error) {
	if t.opts.LockCount <= 0 {
		return false, nil
	}
	count, err := t.GetFailedCount(accountID)
	if err != nil {
		return false, err
	}
	return count >= t.opts.LockCount, nil
}

// ReleaseAccountLock forgets all failures of the account
func (t *Tracker) ReleaseAccountLock(accountID string) error {
	return t.store.Delete(keys.Compose(keys.CategoryAccountLock, accountID))
}

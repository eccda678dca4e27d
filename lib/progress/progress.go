// Package progress keeps the status records of asynchronous jobs (e.g. box installs)
// that clients poll. A record expires after Options.Lifetime.
//
// The meaning of the record's value belongs to the job runner, this package only
// stores it. All store errors are reported as errs.ErrLockStateUnavailable.
package progress

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ValentinKolb/dCoord/lib/clock"
	"github.com/ValentinKolb/dCoord/lib/errs"
	"github.com/ValentinKolb/dCoord/lib/keys"
	"github.com/ValentinKolb/dCoord/lib/store"
)

// Progress is the status record of a job
type Progress struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	CreatedAt int64  `json:"createdAt"` // unix milliseconds
}

// BoxKey returns the progress key of a box install
func BoxKey(boxID string) string {
	return "box-" + boxID
}

// Options configure the progress tracker
type Options struct {
	// Lifetime is how long a record is kept, it is rounded up to seconds
	Lifetime time.Duration
	// Clock is used for CreatedAt, nil means clock.Real
	Clock clock.Clock
}

// DefaultOptions keeps records for one day
func DefaultOptions() Options {
	return Options{Lifetime: 24 * time.Hour, Clock: clock.Real{}}
}

// Tracker stores progress records
type Tracker struct {
	store store.IStore
	opts  Options
}

// NewTracker creates a progress tracker on top of the given store.
// DeleteAllProgress clears the whole store, so it should not share it with locks.
func NewTracker(store store.IStore, opts Options) *Tracker {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Tracker{store: store, opts: opts}
}

func (t *Tracker) ttl() uint64 {
	if t.opts.Lifetime <= 0 {
		return 0
	}
	return uint64((t.opts.Lifetime + time.Second - 1) / time.Second)
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%s progress %s: %w: %w", op, key, errs.ErrLockStateUnavailable, err)
}

// PutProgress creates or replaces the record of key
func (t *Tracker) PutProgress(key, value string) (*Progress, error) {
	p := &Progress{Key: key, Value: value, CreatedAt: clock.NowMillis(t.opts.Clock)}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if err := t.store.Put(keys.Compose(keys.CategoryBulkProgress, key), raw, t.ttl()); err != nil {
		return nil, unavailable("put", key, err)
	}
	return p, nil
}

// GetProgress returns the record of key. The boolean return value indicates whether a record was found.
func (t *Tracker) GetProgress(key string) (*Progress, bool, error) {
	raw, ok, err := t.store.Get(keys.Compose(keys.CategoryBulkProgress, key))
	if err != nil {
		return nil, false, unavailable("get", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	var p Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, unavailable("decode", key, err)
	}
	return &p, true, nil
}

// DeleteProgress removes the record of key, a missing record is not an error
func (t *Tracker) DeleteProgress(key string) error {
	if err := t.store.Delete(keys.Compose(keys.CategoryBulkProgress, key)); err != nil {
		return unavailable("delete", key, err)
	}
	return nil
}

// DeleteAllProgress clears the store of the tracker
func (t *Tracker) DeleteAllProgress() error {
	if err := t.store.Clear(); err != nil {
		return fmt.Errorf("clear progress: %w: %w", errs.ErrLockStateUnavailable, err)
	}
	return nil
}

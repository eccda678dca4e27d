package cellmgr

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dCoord/lib/clock"
	"github.com/ValentinKolb/dCoord/lib/errs"
	"github.com/ValentinKolb/dCoord/lib/keys"
	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("cellmgr")

// CellStatus is the lifecycle status of a cell
type CellStatus int64

const (
	StatusNormal       CellStatus = 0
	StatusBulkDeletion CellStatus = 1
)

func (s CellStatus) String() string {
	switch s {
	case StatusNormal:
		return "NORMAL"
	case StatusBulkDeletion:
		return "BULK_DELETION"
	default:
		return "UNKNOWN(" + strconv.FormatInt(int64(s), 10) + ")"
	}
}

// Options configure how long WaitCellAccessible waits
type Options struct {
	// RetryTimes is the number of reference count polls
	RetryTimes int
	// RetryInterval is the wait between two polls
	RetryInterval time.Duration
	// Clock is used for the wait, nil means clock.Real
	Clock clock.Clock
}

// DefaultOptions returns 50 polls with 100ms between them
func DefaultOptions() Options {
	return Options{
		RetryTimes:    50,
		RetryInterval: 100 * time.Millisecond,
		Clock:         clock.Real{},
	}
}

// CellManager keeps the reference counts and statuses of cells
type CellManager struct {
	store store.IStore
	opts  Options
}

// NewCellManager creates a cell manager on top of the given store
func NewCellManager(store store.IStore, opts Options) *CellManager {
	if opts.RetryTimes < 1 {
		opts.RetryTimes = 1
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &CellManager{store: store, opts: opts}
}

// --------------------------------------------------------------------------
// Reference Count
// --------------------------------------------------------------------------

// IncrementReferenceCount increments the reference count of the cell and returns the new value.
// A missing counter is created with 1.
func (cm *CellManager) IncrementReferenceCount(cellID string) (int64, error) {
	return cm.store.Increment(keys.Compose(keys.CategoryCellRefCount, cellID), 0)
}

// DecrementReferenceCount decrements the reference count of the cell and returns the new value.
// A missing counter returns 0 and is not created, a counter that reaches 0 is deleted.
func (cm *CellManager) DecrementReferenceCount(cellID string) (int64, error) {
	return cm.store.Decrement(keys.Compose(keys.CategoryCellRefCount, cellID))
}

// GetReferenceCount returns the reference count of the cell, or -1 if there is none
func (cm *CellManager) GetReferenceCount(cellID string) (int64, error) {
	return getCounter(cm.store, keys.Compose(keys.CategoryCellRefCount, cellID), -1)
}

// --------------------------------------------------------------------------
// Status
// --------------------------------------------------------------------------

// SetBulkDeletionStatus marks the cell as being bulk deleted
func (cm *CellManager) SetBulkDeletionStatus(cellID string) (bool, error) {
	return cm.setStatus(cellID, StatusBulkDeletion)
}

// ResetBulkDeletionStatus marks the cell as normal again
func (cm *CellManager) ResetBulkDeletionStatus(cellID string) (bool, error) {
	return cm.setStatus(cellID, StatusNormal)
}

// GetCellStatus returns the status of the cell, StatusNormal if none was set
func (cm *CellManager) GetCellStatus(cellID string) (CellStatus, error) {
	v, err := getCounter(cm.store, keys.Compose(keys.CategoryCellStatus, cellID), int64(StatusNormal))
	return CellStatus(v), err
}

func (cm *CellManager) setStatus(cellID string, status CellStatus) (bool, error) {
	key := keys.Compose(keys.CategoryCellStatus, cellID)
	if err := cm.store.Put(key, []byte(strconv.FormatInt(int64(status), 10)), 0); err != nil {
		return false, err
	}
	Logger.Debugf("status of cell %s is %s", cellID, status)
	return true, nil
}

// --------------------------------------------------------------------------
// Access Guard
// --------------------------------------------------------------------------

// Enter registers a request on the cell. The returned leave function must be called
// once the request is done, it may be called more than once and concurrently.
// A cell that is being bulk deleted is rejected with errs.ErrCellBulkDeletion.
//
// The reference is counted before the status is read. A request that sees NORMAL is
// therefore always visible to a concurrent WaitCellAccessible.
func (cm *CellManager) Enter(cellID string) (leave func() error, err error) {
	if _, err := cm.IncrementReferenceCount(cellID); err != nil {
		return nil, err
	}

	status, err := cm.GetCellStatus(cellID)
	if err == nil && status == StatusBulkDeletion {
		err = fmt.Errorf("enter cell %s: %w", cellID, errs.ErrCellBulkDeletion)
	}
	if err != nil {
		if _, decErr := cm.DecrementReferenceCount(cellID); decErr != nil {
			err = errors.Join(err, decErr)
		}
		return nil, err
	}

	var (
		once     sync.Once
		leaveErr error
	)
	return func() error {
		once.Do(func() {
			_, leaveErr = cm.DecrementReferenceCount(cellID)
		})
		return leaveErr
	}, nil
}

// WaitCellAccessible waits until at most one reference to the cell is left, which is the caller's own.
// It polls Options.RetryTimes times and returns errs.ErrCellAccessConflict if the cell is still in use.
func (cm *CellManager) WaitCellAccessible(ctx context.Context, cellID string) error {
	for attempt := 1; ; attempt++ {
		count, err := cm.GetReferenceCount(cellID)
		if err != nil {
			return err
		}
		if count <= 1 {
			return nil
		}
		if attempt >= cm.opts.RetryTimes {
			return fmt.Errorf("cell %s still has %d references: %w", cellID, count, errs.ErrCellAccessConflict)
		}

		Logger.Debugf("cell %s has %d references, poll %d/%d", cellID, count, attempt, cm.opts.RetryTimes)
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for cell %s: %w: %w", cellID, errs.ErrBackendUnknown, ctx.Err())
		case <-cm.opts.Clock.After(cm.opts.RetryInterval):
		}
	}
}

// BulkDelete marks the cell as being bulk deleted, waits until no other request
// uses it and runs fn. The status is reset afterward, also if fn fails.
func (cm *CellManager) BulkDelete(ctx context.Context, cellID string, fn func() error) (err error) {
	if _, err := cm.SetBulkDeletionStatus(cellID); err != nil {
		return err
	}
	defer func() {
		_, resetErr := cm.ResetBulkDeletionStatus(cellID)
		err = errors.Join(err, resetErr)
	}()

	if err := cm.WaitCellAccessible(ctx, cellID); err != nil {
		return err
	}
	return fn()
}

// getCounter reads a decimal counter, missing is returned if the key does not exist
func getCounter(s store.IStore, key string, missing int64) (int64, error) {
	raw, ok, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return missing, nil
	}
	// memcached pads decremented counters with spaces
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s holds %q: %w", key, raw, store.ErrInvalidOperation)
	}
	return v, nil
}

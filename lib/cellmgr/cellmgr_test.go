package cellmgr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dCoord/lib/clock"
	"github.com/ValentinKolb/dCoord/lib/db"
	"github.com/ValentinKolb/dCoord/lib/db/engines/maple"
	"github.com/ValentinKolb/dCoord/lib/errs"
	"github.com/ValentinKolb/dCoord/lib/keys"
	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/ValentinKolb/dCoord/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, opts Options) (*CellManager, store.IStore) {
	t.Helper()
	s := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, lstore.WithClock(opts.Clock))
	return NewCellManager(s, opts), s
}

func TestReferenceCount(t *testing.T) {
	cm, s := newManager(t, Options{})

	count, err := cm.GetReferenceCount("r")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), count, "untouched cell")

	count, err = cm.DecrementReferenceCount("r")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	count, err = cm.GetReferenceCount("r")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), count, "decrement of a missing counter does not create it")

	for _, want := range []int64{1, 2} {
		count, err = cm.IncrementReferenceCount("r")
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}
	for _, want := range []int64{1, 0, 0} {
		count, err = cm.DecrementReferenceCount("r")
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	count, err = cm.GetReferenceCount("r")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), count, "counter is removed at 0")

	_, ok, err := s.Get("cell-refcount:r")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCellStatus(t *testing.T) {
	cm, _ := newManager(t, Options{})

	status, err := cm.GetCellStatus("r")
	require.NoError(t, err)
	assert.Equal(t, StatusNormal, status)

	ok, err := cm.SetBulkDeletionStatus("r")
	require.NoError(t, err)
	assert.True(t, ok)
	status, err = cm.GetCellStatus("r")
	require.NoError(t, err)
	assert.Equal(t, StatusBulkDeletion, status)
	assert.Equal(t, "BULK_DELETION", status.String())

	ok, err = cm.ResetBulkDeletionStatus("r")
	require.NoError(t, err)
	assert.True(t, ok)
	status, err = cm.GetCellStatus("r")
	require.NoError(t, err)
	assert.Equal(t, StatusNormal, status)
}

func TestCorruptCounter(t *testing.T) {
	cm, s := newManager(t, Options{})
	require.NoError(t, s.Put("cell-refcount:r", []byte("abc"), 0))

	_, err := cm.GetReferenceCount("r")
	assert.ErrorIs(t, err, store.ErrInvalidOperation)
}

func TestEnter(t *testing.T) {
	cm, _ := newManager(t, Options{})

	leave, err := cm.Enter("r")
	require.NoError(t, err)
	count, _ := cm.GetReferenceCount("r")
	assert.Equal(t, int64(1), count)

	require.NoError(t, leave())
	require.NoError(t, leave())
	count, _ = cm.GetReferenceCount("r")
	assert.Equal(t, int64(-1), count)

	_, err = cm.SetBulkDeletionStatus("r")
	require.NoError(t, err)
	_, err = cm.Enter("r")
	assert.ErrorIs(t, err, errs.ErrCellBulkDeletion)
	count, _ = cm.GetReferenceCount("r")
	assert.Equal(t, int64(-1), count, "a rejected request holds no reference")
}

// statusGateStore holds back the first status read after it was armed until the
// status of the cell has been written
type statusGateStore struct {
	store.IStore
	statusKey string
	armed     atomic.Bool
	paused    chan struct{}
	statusSet chan struct{}
	setOnce   sync.Once
}

func (s *statusGateStore) Get(key string) ([]byte, bool, error) {
	value, ok, err := s.IStore.Get(key)
	if key == s.statusKey && s.armed.CompareAndSwap(true, false) {
		close(s.paused)
		<-s.statusSet
	}
	return value, ok, err
}

func (s *statusGateStore) Put(key string, value []byte, ttl uint64) error {
	err := s.IStore.Put(key, value, ttl)
	if key == s.statusKey {
		s.setOnce.Do(func() { close(s.statusSet) })
	}
	return err
}

func TestEnterDuringBulkDeletion(t *testing.T) {
	gate := &statusGateStore{
		IStore:    lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }),
		statusKey: keys.Compose(keys.CategoryCellStatus, "r"),
		paused:    make(chan struct{}),
		statusSet: make(chan struct{}),
	}
	cm := NewCellManager(gate, Options{RetryTimes: 1000, RetryInterval: 5 * time.Millisecond, Clock: clock.Real{}})

	// the deleting request holds its own reference
	_, err := cm.IncrementReferenceCount("r")
	require.NoError(t, err)

	// a second request read NORMAL but has not returned from Enter yet
	gate.armed.Store(true)
	type entered struct {
		leave func() error
		err   error
	}
	enterResult := make(chan entered, 1)
	go func() {
		leave, err := cm.Enter("r")
		enterResult <- entered{leave, err}
	}()
	<-gate.paused

	var fnRunning atomic.Bool
	deleteResult := make(chan error, 1)
	go func() {
		deleteResult <- cm.BulkDelete(context.Background(), "r", func() error {
			fnRunning.Store(true)
			return nil
		})
	}()

	res := <-enterResult
	require.NoError(t, res.err)
	assert.False(t, fnRunning.Load(), "request admitted while the cell is deleted")

	// the deletion waits for the admitted request
	assert.Never(t, fnRunning.Load, 50*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, res.leave())
	require.NoError(t, <-deleteResult)
	assert.True(t, fnRunning.Load())
}

func TestLeaveIsIdempotentUnderConcurrency(t *testing.T) {
	cm, _ := newManager(t, Options{})

	_, err := cm.Enter("r")
	require.NoError(t, err)
	leave, err := cm.Enter("r")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, leave())
		}()
	}
	wg.Wait()

	count, err := cm.GetReferenceCount("r")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "only the first leave decrements")
}

func TestWaitCellAccessible(t *testing.T) {
	c := clock.NewManual(time.Unix(1_700_000_000, 0))
	cm, _ := newManager(t, Options{RetryTimes: 3, RetryInterval: time.Second, Clock: c})

	// the caller's own reference
	_, err := cm.IncrementReferenceCount("r")
	require.NoError(t, err)
	require.NoError(t, cm.WaitCellAccessible(context.Background(), "r"))

	// a second request is still running
	_, err = cm.IncrementReferenceCount("r")
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() { result <- cm.WaitCellAccessible(context.Background(), "r") }()

	require.Eventually(t, func() bool { return c.Waiters() == 1 }, time.Second, time.Millisecond)
	_, err = cm.DecrementReferenceCount("r")
	require.NoError(t, err)
	c.Advance(time.Second)
	require.NoError(t, <-result)
}

func TestWaitCellAccessibleConflict(t *testing.T) {
	c := clock.NewManual(time.Unix(1_700_000_000, 0))
	cm, _ := newManager(t, Options{RetryTimes: 3, RetryInterval: 0, Clock: c})

	for i := 0; i < 2; i++ {
		_, err := cm.IncrementReferenceCount("r")
		require.NoError(t, err)
	}
	err := cm.WaitCellAccessible(context.Background(), "r")
	assert.ErrorIs(t, err, errs.ErrCellAccessConflict)
}

func TestBulkDelete(t *testing.T) {
	cm, _ := newManager(t, Options{RetryTimes: 1})

	var during CellStatus
	err := cm.BulkDelete(context.Background(), "r", func() error {
		during, _ = cm.GetCellStatus("r")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusBulkDeletion, during)

	status, _ := cm.GetCellStatus("r")
	assert.Equal(t, StatusNormal, status)

	// status is reset when the cell is busy or fn fails
	for i := 0; i < 2; i++ {
		_, err = cm.IncrementReferenceCount("r")
		require.NoError(t, err)
	}
	err = cm.BulkDelete(context.Background(), "r", func() error { return nil })
	assert.ErrorIs(t, err, errs.ErrCellAccessConflict)
	status, _ = cm.GetCellStatus("r")
	assert.Equal(t, StatusNormal, status)

	fail := errors.New("fail")
	_, _ = cm.DecrementReferenceCount("r")
	err = cm.BulkDelete(context.Background(), "r", func() error { return fail })
	assert.ErrorIs(t, err, fail)
	status, _ = cm.GetCellStatus("r")
	assert.Equal(t, StatusNormal, status)
}

package lockmgr

import (
	"context"
	"encoding/json"
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

var start = time.Unix(1_700_000_000, 0)

func newStore(c clock.Clock) store.IStore {
	return lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, lstore.WithClock(c))
}

// countingStore counts PutIfAbsent calls and can fail them
type countingStore struct {
	store.IStore
	puts atomic.Int64
	err  error
}

func (s *countingStore) PutIfAbsent(key string, value []byte, ttl uint64) (bool, error) {
	s.puts.Add(1)
	if s.err != nil {
		return false, s.err
	}
	return s.IStore.PutIfAbsent(key, value, ttl)
}

func (s *countingStore) Delete(key string) error {
	if s.err != nil {
		return s.err
	}
	return s.IStore.Delete(key)
}

func TestAcquireRelease(t *testing.T) {
	c := clock.NewManual(start)
	s := newStore(c)
	lm := NewLockManager(s, Options{MaxRetries: 3, Clock: c})

	lock, err := lm.Acquire(context.Background(), keys.CategoryODataWrite, "cell1")
	require.NoError(t, err)
	assert.Equal(t, "odata-write:cell1", lock.Key)
	assert.Equal(t, start.UnixMilli(), lock.CreatedAt)

	raw, ok, err := s.Get(lock.Key)
	require.NoError(t, err)
	require.True(t, ok)
	var stored Lock
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, *lock, stored)

	_, err = lm.Acquire(context.Background(), keys.CategoryODataWrite, "cell1")
	assert.ErrorIs(t, err, errs.ErrTooManyConcurrentRequests)

	require.NoError(t, lm.Release(lock))
	again, err := lm.Acquire(context.Background(), keys.CategoryODataWrite, "cell1")
	require.NoError(t, err)
	require.NoError(t, lm.Release(again))
}

func TestReleaseIsIdempotent(t *testing.T) {
	lm := NewLockManager(newStore(clock.Real{}), Options{})

	lock, err := lm.Acquire(context.Background(), keys.CategoryDav, "cell1", "box1")
	require.NoError(t, err)
	require.NoError(t, lm.Release(lock))
	require.NoError(t, lm.Release(lock))
	require.NoError(t, lm.Release(nil))
	require.NoError(t, lm.Release(&Lock{Key: "dav:never-acquired"}))
}

func TestNamespaceIsolation(t *testing.T) {
	lm := NewLockManager(newStore(clock.Real{}), Options{MaxRetries: 1})

	a, err := lm.Acquire(context.Background(), keys.CategoryODataWrite, "k")
	require.NoError(t, err)
	b, err := lm.Acquire(context.Background(), keys.CategoryDav, "k")
	require.NoError(t, err)
	assert.NotEqual(t, a.Key, b.Key)

	// "a/b" as one id and "a","b" as two ids are different locks
	_, err = lm.Acquire(context.Background(), keys.CategoryDav, "a/b")
	require.NoError(t, err)
	_, err = lm.Acquire(context.Background(), keys.CategoryDav, "a", "b")
	require.NoError(t, err)
}

func TestExhaustedAttempts(t *testing.T) {
	c := clock.NewManual(start)
	s := &countingStore{IStore: newStore(c)}
	lm := NewLockManager(s, Options{MaxRetries: 4, RetryInterval: 0, Clock: c})

	_, err := lm.Acquire(context.Background(), keys.CategoryODataWrite, "cell1")
	require.NoError(t, err)
	s.puts.Store(0)

	_, err = lm.Acquire(context.Background(), keys.CategoryODataWrite, "cell1")
	assert.ErrorIs(t, err, errs.ErrTooManyConcurrentRequests)
	assert.Equal(t, int64(4), s.puts.Load())
}

func TestWaitsForRelease(t *testing.T) {
	c := clock.NewManual(start)
	lm := NewLockManager(newStore(c), Options{MaxRetries: 5, RetryInterval: time.Second, Clock: c})

	held, err := lm.Acquire(context.Background(), keys.CategoryODataWrite, "cell1")
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() {
		_, err := lm.Acquire(context.Background(), keys.CategoryODataWrite, "cell1")
		result <- err
	}()

	require.Eventually(t, func() bool { return c.Waiters() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, lm.Release(held))
	c.Advance(time.Second)

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("acquire did not return after the lock was released")
	}
}

func TestBackendUnavailable(t *testing.T) {
	s := &countingStore{IStore: newStore(clock.Real{}), err: store.Unavailable("connection refused")}
	lm := NewLockManager(s, Options{MaxRetries: 10})
	unavailableBefore := acquireUnavailable.Get()

	_, err := lm.Acquire(context.Background(), keys.CategoryODataWrite, "cell1")
	assert.ErrorIs(t, err, errs.ErrLockStateUnavailable)
	assert.Equal(t, unavailableBefore+1, acquireUnavailable.Get())
	assert.ErrorIs(t, err, store.ErrBackendUnavailable)
	assert.Equal(t, int64(1), s.puts.Load(), "no retries against an unavailable backend")

	err = lm.Release(&Lock{Key: "odata-write:cell1"})
	assert.ErrorIs(t, err, errs.ErrLockStateUnavailable)
}

func TestBackendUnknown(t *testing.T) {
	s := &countingStore{IStore: newStore(clock.Real{}), err: errors.New("boom")}
	lm := NewLockManager(s, Options{MaxRetries: 10})
	unavailableBefore, errorBefore := acquireUnavailable.Get(), acquireError.Get()

	_, err := lm.Acquire(context.Background(), keys.CategoryODataWrite, "cell1")
	assert.ErrorIs(t, err, errs.ErrBackendUnknown)
	assert.Equal(t, int64(1), s.puts.Load())

	// counted as an error, not as an unavailable backend
	assert.Equal(t, errorBefore+1, acquireError.Get())
	assert.Equal(t, unavailableBefore, acquireUnavailable.Get())
}

func TestInterruptedWait(t *testing.T) {
	c := clock.NewManual(start)
	lm := NewLockManager(newStore(c), Options{MaxRetries: 5, RetryInterval: time.Minute, Clock: c})

	_, err := lm.Acquire(context.Background(), keys.CategoryODataWrite, "cell1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := lm.Acquire(ctx, keys.CategoryODataWrite, "cell1")
		result <- err
	}()

	require.Eventually(t, func() bool { return c.Waiters() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, errs.ErrBackendUnknown)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("acquire did not return after ctx was cancelled")
	}
}

func TestAtMostOneHolder(t *testing.T) {
	lm := NewLockManager(newStore(clock.Real{}), Options{MaxRetries: 1})

	var wg sync.WaitGroup
	var acquired atomic.Int64
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := lm.Acquire(context.Background(), keys.CategoryODataWrite, "cell1"); err == nil {
				acquired.Add(1)
			} else {
				assert.ErrorIs(t, err, errs.ErrTooManyConcurrentRequests)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), acquired.Load())
}

func TestWithLock(t *testing.T) {
	s := newStore(clock.Real{})
	lm := NewLockManager(s, Options{MaxRetries: 1})
	fail := errors.New("fail")

	err := WithLock(context.Background(), lm, keys.CategoryDav, []string{"cell1"}, func() error {
		_, ok, err := s.Get("dav:cell1")
		require.NoError(t, err)
		assert.True(t, ok, "lock is held while fn runs")
		return fail
	})
	assert.ErrorIs(t, err, fail)

	_, ok, err := s.Get("dav:cell1")
	require.NoError(t, err)
	assert.False(t, ok, "lock is released after fn")
}

func TestInvalidCategory(t *testing.T) {
	lm := NewLockManager(newStore(clock.Real{}), Options{})
	_, err := lm.Acquire(context.Background(), "Not Valid", "x")
	assert.Error(t, err)
}

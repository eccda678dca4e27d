package lockout

import (
	"testing"
	"time"

	"github.com/ValentinKolb/dCoord/lib/clock"
	"github.com/ValentinKolb/dCoord/lib/db"
	"github.com/ValentinKolb/dCoord/lib/db/engines/maple"
	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/ValentinKolb/dCoord/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(opts Options) (*Tracker, *clock.Manual, store.IStore) {
	c := clock.NewManual(time.Unix(1_700_000_000, 0))
	s := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, lstore.WithClock(c))
	return NewTracker(s, opts), c, s
}

func TestThreshold(t *testing.T) {
	tr, _, _ := newTracker(DefaultOptions())

	count, err := tr.GetFailedCount("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), count)

	for i := int64(1); i <= 4; i++ {
		count, err := tr.CountupFailedCount("alice")
		require.NoError(t, err)
		assert.Equal(t, i, count)

		locked, err := tr.IsLockedAccount("alice")
		require.NoError(t, err)
		assert.False(t, locked, "locked after %d failures", i)
	}

	_, err = tr.CountupFailedCount("alice")
	require.NoError(t, err)
	locked, err := tr.IsLockedAccount("alice")
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = tr.IsLockedAccount("bob")
	require.NoError(t, err)
	assert.False(t, locked, "accounts are independent")
}

func TestRelease(t *testing.T) {
	tr, _, _ := newTracker(DefaultOptions())
	for i := 0; i < 5; i++ {
		_, err := tr.CountupFailedCount("alice")
		require.NoError(t, err)
	}

	require.NoError(t, tr.ReleaseAccountLock("alice"))
	require.NoError(t, tr.ReleaseAccountLock("alice"))

	count, err := tr.GetFailedCount("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), count)
	locked, err := tr.IsLockedAccount("alice")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestWindowExpires(t *testing.T) {
	tr, c, _ := newTracker(DefaultOptions())
	for i := 0; i < 5; i++ {
		_, err := tr.CountupFailedCount("alice")
		require.NoError(t, err)
	}

	c.Advance(61 * time.Second)

	count, err := tr.GetFailedCount("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), count)
	locked, err := tr.IsLockedAccount("alice")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestEveryFailureExtendsTheWindow(t *testing.T) {
	tr, c, _ := newTracker(DefaultOptions())

	for i := 0; i < 5; i++ {
		_, err := tr.CountupFailedCount("alice")
		require.NoError(t, err)
		c.Advance(40 * time.Second)
	}

	// 40s since the last failure, 200s since the first
	count, err := tr.GetFailedCount("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	c.Advance(21 * time.Second)
	count, err = tr.GetFailedCount("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), count)
}

func TestDisabled(t *testing.T) {
	tr, _, _ := newTracker(Options{LockCount: 0, LockTime: time.Minute})
	for i := 0; i < 10; i++ {
		_, err := tr.CountupFailedCount("alice")
		require.NoError(t, err)
	}
	locked, err := tr.IsLockedAccount("alice")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestCorruptCounter(t *testing.T) {
	tr, _, s := newTracker(DefaultOptions())
	require.NoError(t, s.Put("account-lock:alice", []byte("x"), 0))

	_, err := tr.GetFailedCount("alice")
	assert.ErrorIs(t, err, store.ErrInvalidOperation)
}

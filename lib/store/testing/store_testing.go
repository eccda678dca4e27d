package testing

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dCoord/lib/store"
)

// Harness describes the store implementation under test
type Harness struct {
	// New returns a fresh, empty store for the (sub)test t
	New func(t *testing.T) store.IStore
	// Advance moves the store's clock forward. TTL tests are skipped if nil.
	Advance func(d time.Duration)
}

// RunIStoreTests runs the conformance suite every store.IStore implementation must pass.
func RunIStoreTests(t *testing.T, name string, h Harness) {
	t.Run(name, func(t *testing.T) {
		t.Run("Get&Put", func(t *testing.T) {
			testGetPut(t, open(t, h))
		})

		t.Run("PutIfAbsent", func(t *testing.T) {
			testPutIfAbsent(t, open(t, h))
		})

		t.Run("ConcurrentPutIfAbsent", func(t *testing.T) {
			testConcurrentPutIfAbsent(t, open(t, h))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, open(t, h))
		})

		t.Run("Counter", func(t *testing.T) {
			testCounter(t, open(t, h))
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, open(t, h))
		})

		t.Run("TTL", func(t *testing.T) {
			if h.Advance == nil {
				t.Skip("no clock control")
			}
			testTTL(t, open(t, h), h.Advance)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// open creates a store and closes it when the test ends (if it is an io.Closer)
func open(t *testing.T, h Harness) store.IStore {
	s := h.New(t)
	if c, ok := s.(io.Closer); ok {
		t.Cleanup(func() { _ = c.Close() })
	}
	return s
}

func mustGet(t *testing.T, s store.IStore, key string) ([]byte, bool) {
	t.Helper()
	val, ok, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return val, ok
}

func expectAbsent(t *testing.T, s store.IStore, key string) {
	t.Helper()
	if val, ok := mustGet(t, s, key); ok {
		t.Errorf("expected %q to be absent, got %q", key, val)
	}
}

func expectValue(t *testing.T, s store.IStore, key string, want string) {
	t.Helper()
	val, ok := mustGet(t, s, key)
	if !ok {
		t.Errorf("expected %q = %q, got absent", key, want)
		return
	}
	if !bytes.Equal(val, []byte(want)) {
		t.Errorf("expected %q = %q, got %q", key, want, val)
	}
}

func expectCount(t *testing.T, got int64, err error, want int64) {
	t.Helper()
	if err != nil {
		t.Fatalf("counter operation failed: %v", err)
	}
	if got != want {
		t.Errorf("expected counter value %d, got %d", want, got)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testGetPut(t *testing.T, s store.IStore) {
	expectAbsent(t, s, "key")

	if err := s.Put("key", []byte("value1"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	expectValue(t, s, "key", "value1")

	if err := s.Put("key", []byte("value2"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	expectValue(t, s, "key", "value2")
}

func testPutIfAbsent(t *testing.T, s store.IStore) {
	ok, err := s.PutIfAbsent("lock", []byte("first"), 0)
	if err != nil || !ok {
		t.Fatalf("first PutIfAbsent = (%v, %v), expected (true, nil)", ok, err)
	}

	ok, err = s.PutIfAbsent("lock", []byte("second"), 0)
	if err != nil || ok {
		t.Fatalf("second PutIfAbsent = (%v, %v), expected (false, nil)", ok, err)
	}
	expectValue(t, s, "lock", "first")

	if err := s.Delete("lock"); err != nil {
		t.Fatal(err)
	}
	ok, err = s.PutIfAbsent("lock", []byte("third"), 0)
	if err != nil || !ok {
		t.Fatalf("PutIfAbsent after delete = (%v, %v), expected (true, nil)", ok, err)
	}
}

func testConcurrentPutIfAbsent(t *testing.T, s store.IStore) {
	const workers = 32
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			ok, err := s.PutIfAbsent("contended", []byte(fmt.Sprint(i)), 0)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", winners.Load())
	}
}

func testDelete(t *testing.T, s store.IStore) {
	if err := s.Put("key", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Delete("key"); err != nil {
			t.Fatalf("Delete #%d failed: %v", i+1, err)
		}
	}
	expectAbsent(t, s, "key")

	if err := s.Delete("never-written"); err != nil {
		t.Errorf("Delete of a missing key must not fail: %v", err)
	}
}

func testCounter(t *testing.T, s store.IStore) {
	// decrement of a missing key
	n, err := s.Decrement("refs")
	expectCount(t, n, err, 0)
	expectAbsent(t, s, "refs")

	n, err = s.Increment("refs", 0)
	expectCount(t, n, err, 1)
	n, err = s.Increment("refs", 0)
	expectCount(t, n, err, 2)
	expectValue(t, s, "refs", "2")

	n, err = s.Decrement("refs")
	expectCount(t, n, err, 1)
	n, err = s.Decrement("refs")
	expectCount(t, n, err, 0)
	expectAbsent(t, s, "refs")

	// past zero
	n, err = s.Decrement("refs")
	expectCount(t, n, err, 0)
	expectAbsent(t, s, "refs")
}

func testClear(t *testing.T, s store.IStore) {
	for i := 0; i < 10; i++ {
		if err := s.Put(fmt.Sprintf("key-%d", i), []byte("v"), 0); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Increment("counter", 0); err != nil {
		t.Fatal(err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		expectAbsent(t, s, fmt.Sprintf("key-%d", i))
	}
	expectAbsent(t, s, "counter")
}

func testTTL(t *testing.T, s store.IStore, advance func(time.Duration)) {
	if err := s.Put("session", []byte("v"), 10); err != nil {
		t.Fatal(err)
	}
	if ok, err := s.PutIfAbsent("lease", []byte("v"), 10); err != nil || !ok {
		t.Fatalf("PutIfAbsent = (%v, %v)", ok, err)
	}
	if err := s.Put("forever", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}

	advance(9 * time.Second)
	expectValue(t, s, "session", "v")
	expectValue(t, s, "lease", "v")

	advance(2 * time.Second)
	expectAbsent(t, s, "session")
	expectAbsent(t, s, "lease")
	expectValue(t, s, "forever", "v")

	// an expired key is free for PutIfAbsent
	if ok, err := s.PutIfAbsent("lease", []byte("w"), 0); err != nil || !ok {
		t.Errorf("PutIfAbsent after expiry = (%v, %v), expected (true, nil)", ok, err)
	}

	// increments with ttl slide the window
	n, err := s.Increment("fails", 10)
	expectCount(t, n, err, 1)
	advance(8 * time.Second)
	n, err = s.Increment("fails", 10)
	expectCount(t, n, err, 2)
	advance(8 * time.Second)
	expectValue(t, s, "fails", "2")
	advance(3 * time.Second)
	expectAbsent(t, s, "fails")

	n, err = s.Increment("fails", 10)
	expectCount(t, n, err, 1)
}

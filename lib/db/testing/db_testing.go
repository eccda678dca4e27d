package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dCoord/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("PutIfAbsent", func(t *testing.T) {
			testPutIfAbsent(t, factory())
		})

		t.Run("ConcurrentPutIfAbsent", func(t *testing.T) {
			testConcurrentPutIfAbsent(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("KeyExpiry", func(t *testing.T) {
			testKeyExpiry(t, factory())
		})

		t.Run("Counter", func(t *testing.T) {
			testCounter(t, factory())
		})

		t.Run("CounterExpiry", func(t *testing.T) {
			testCounterExpiry(t, factory())
		})

		t.Run("ConcurrentCounter", func(t *testing.T) {
			testConcurrentCounter(t, factory())
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory())
		})

		t.Run("WriteIndex", func(t *testing.T) {
			testWriteIndex(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func expectValue(t testing.TB, database db.KVDB, key string, idx uint64, want []byte) {
	t.Helper()
	got, ok := database.Get(key, idx)
	if want == nil {
		if ok {
			t.Errorf("Get(%q) at %d: expected absent, got %q", key, idx, got)
		}
		return
	}
	if !ok {
		t.Errorf("Get(%q) at %d: expected %q, got absent", key, idx, want)
		return
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Get(%q) at %d: expected %q, got %q", key, idx, want, got)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, database db.KVDB) {
	requireFeature(t, database, db.FeaturePut|db.FeatureGet)
	defer database.Close()

	database.Put("key1", []byte("value1"), 1, 0)
	expectValue(t, database, "key1", 1, []byte("value1"))

	// overwrite
	database.Put("key1", []byte("value2"), 2, 0)
	expectValue(t, database, "key1", 2, []byte("value2"))

	// missing key
	expectValue(t, database, "missing", 2, nil)

	// empty value is a value
	database.Put("empty", []byte{}, 3, 0)
	expectValue(t, database, "empty", 3, []byte{})

	// the returned slice must be a copy
	got, _ := database.Get("key1", 3)
	got[0] = 'X'
	expectValue(t, database, "key1", 3, []byte("value2"))

	// the stored slice must be a copy too
	input := []byte("input")
	database.Put("key2", input, 4, 0)
	input[0] = 'X'
	expectValue(t, database, "key2", 4, []byte("input"))
}

func testPutIfAbsent(t *testing.T, database db.KVDB) {
	requireFeature(t, database, db.FeaturePutIfAbsent|db.FeatureGet)
	defer database.Close()

	if !database.PutIfAbsent("key", []byte("first"), 1, 0) {
		t.Fatal("PutIfAbsent on a missing key must store")
	}
	if database.PutIfAbsent("key", []byte("second"), 2, 0) {
		t.Error("PutIfAbsent on a present key must not store")
	}
	expectValue(t, database, "key", 2, []byte("first"))

	// an expired entry counts as absent
	if !database.PutIfAbsent("ttl", []byte("a"), 10, 5) {
		t.Fatal("PutIfAbsent on a missing key must store")
	}
	if database.PutIfAbsent("ttl", []byte("b"), 14, 5) {
		t.Error("PutIfAbsent before expiry must not store")
	}
	if !database.PutIfAbsent("ttl", []byte("c"), 15, 0) {
		t.Error("PutIfAbsent after expiry must store")
	}
	expectValue(t, database, "ttl", 100, []byte("c"))

	// after a delete the key is free again
	database.Delete("key", 101)
	if !database.PutIfAbsent("key", []byte("third"), 102, 0) {
		t.Error("PutIfAbsent after delete must store")
	}
}

func testConcurrentPutIfAbsent(t *testing.T, database db.KVDB) {
	requireFeature(t, database, db.FeaturePutIfAbsent)
	defer database.Close()

	const workers = 64
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			if database.PutIfAbsent("contended", []byte(fmt.Sprintf("worker-%d", i)), uint64(i+1), 0) {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", winners.Load())
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	requireFeature(t, database, db.FeatureDelete|db.FeaturePut|db.FeatureGet)
	defer database.Close()

	database.Put("key", []byte("value"), 1, 0)
	database.Delete("key", 2)
	expectValue(t, database, "key", 2, nil)

	// deleting twice or deleting a missing key is a no-op
	database.Delete("key", 3)
	database.Delete("never-written", 4)
	expectValue(t, database, "never-written", 4, nil)
}

func testKeyExpiry(t *testing.T, database db.KVDB) {
	requireFeature(t, database, db.FeaturePut|db.FeatureGet)
	defer database.Close()

	database.Put("short", []byte("v"), 100, 10)
	database.Put("long", []byte("v"), 100, 1000)
	database.Put("forever", []byte("v"), 100, 0)

	expectValue(t, database, "short", 109, []byte("v"))
	expectValue(t, database, "short", 110, nil)
	expectValue(t, database, "long", 110, []byte("v"))

	// overwriting resets the ttl
	database.Put("long", []byte("w"), 200, 0)
	expectValue(t, database, "long", 5000, []byte("w"))
	expectValue(t, database, "forever", 5000, []byte("v"))

	// a put with ttl on an entry without one sets it
	database.Put("forever", []byte("x"), 5001, 1)
	expectValue(t, database, "forever", 5002, nil)
}

func testCounter(t *testing.T, database db.KVDB) {
	requireFeature(t, database, db.FeatureCounter|db.FeatureGet)
	defer database.Close()

	add := func(key string, delta int64, idx uint64, want int64) {
		t.Helper()
		got, err := database.AddInt(key, delta, idx, 0)
		if err != nil {
			t.Fatalf("AddInt(%q, %d) returned error: %v", key, delta, err)
		}
		if got != want {
			t.Errorf("AddInt(%q, %d) = %d, expected %d", key, delta, got, want)
		}
	}

	// decrementing a missing key returns 0 and does not create it
	add("c", -1, 1, 0)
	expectValue(t, database, "c", 1, nil)

	// incrementing a missing key creates it at delta
	add("c", 1, 2, 1)
	add("c", 1, 3, 2)
	expectValue(t, database, "c", 3, []byte("2"))

	// reaching zero deletes the key
	add("c", -1, 4, 1)
	add("c", -1, 5, 0)
	expectValue(t, database, "c", 5, nil)
	add("c", -1, 6, 0)
	expectValue(t, database, "c", 6, nil)

	// going below zero also deletes the key
	add("d", 3, 7, 3)
	add("d", -10, 8, 0)
	expectValue(t, database, "d", 8, nil)

	// a counter written with Put is usable
	database.Put("e", []byte("41"), 9, 0)
	add("e", 1, 10, 42)

	// non numeric values are rejected and left unchanged
	database.Put("text", []byte("abc"), 11, 0)
	if _, err := database.AddInt("text", 1, 12, 0); !errors.Is(err, db.ErrNotANumber) {
		t.Errorf("expected ErrNotANumber, got %v", err)
	}
	expectValue(t, database, "text", 12, []byte("abc"))
}

func testCounterExpiry(t *testing.T, database db.KVDB) {
	requireFeature(t, database, db.FeatureCounter|db.FeatureGet)
	defer database.Close()

	// every increment with a ttl slides the window
	if _, err := database.AddInt("fails", 1, 100, 50); err != nil {
		t.Fatal(err)
	}
	if _, err := database.AddInt("fails", 1, 140, 50); err != nil {
		t.Fatal(err)
	}
	expectValue(t, database, "fails", 160, []byte("2"))
	expectValue(t, database, "fails", 190, nil)

	// an expired counter restarts at delta
	got, err := database.AddInt("fails", 1, 191, 50)
	if err != nil || got != 1 {
		t.Errorf("AddInt after expiry = (%d, %v), expected (1, nil)", got, err)
	}

	// ttl=0 keeps the existing expiry
	if _, err := database.AddInt("fails", 1, 200, 0); err != nil {
		t.Fatal(err)
	}
	expectValue(t, database, "fails", 240, []byte("2"))
	expectValue(t, database, "fails", 241, nil)

	// decrement keeps the existing expiry
	if _, err := database.AddInt("dec", 5, 300, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := database.AddInt("dec", -1, 305, 0); err != nil {
		t.Fatal(err)
	}
	expectValue(t, database, "dec", 309, []byte("4"))
	expectValue(t, database, "dec", 310, nil)
}

func testConcurrentCounter(t *testing.T, database db.KVDB) {
	requireFeature(t, database, db.FeatureCounter|db.FeatureGet)
	defer database.Close()

	const (
		workers = 32
		perWork = 100
	)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWork; j++ {
				if _, err := database.AddInt("refs", 1, 1, 0); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	expectValue(t, database, "refs", 1, []byte(fmt.Sprint(workers*perWork)))
}

func testClear(t *testing.T, database db.KVDB) {
	requireFeature(t, database, db.FeatureClear|db.FeaturePut|db.FeatureGet)
	defer database.Close()

	for i := 0; i < 100; i++ {
		database.Put(fmt.Sprintf("key-%d", i), []byte("v"), uint64(i+1), uint64(i%3))
	}
	database.Clear(200)

	for i := 0; i < 100; i++ {
		expectValue(t, database, fmt.Sprintf("key-%d", i), 200, nil)
	}

	// usable after clear
	if !database.PutIfAbsent("key-1", []byte("new"), 201, 0) {
		t.Error("PutIfAbsent after Clear must store")
	}
}

func testWriteIndex(t *testing.T, database db.KVDB) {
	defer database.Close()

	database.SetWriteIdx(10)
	if database.WriteIdx() != 10 {
		t.Errorf("expected write index 10, got %d", database.WriteIdx())
	}

	// never moves backwards
	database.SetWriteIdx(5)
	if database.WriteIdx() != 10 {
		t.Errorf("write index moved backwards to %d", database.WriteIdx())
	}

	// an older index on a write uses the current one for the ttl
	database.Put("k", []byte("v"), 1, 5)
	expectValue(t, database, "k", 14, []byte("v"))
	expectValue(t, database, "k", 15, nil)
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	source := factory()
	defer source.Close()
	requireFeature(t, source, db.FeatureSave|db.FeatureLoad)

	source.Put("plain", []byte("value"), 1, 0)
	source.Put("ttl", []byte("value"), 2, 100)
	source.Put("expired", []byte("value"), 3, 1)
	if _, err := source.AddInt("counter", 7, 4, 0); err != nil {
		t.Fatal(err)
	}
	source.SetWriteIdx(10)

	var buf bytes.Buffer
	if err := source.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	target := factory()
	defer target.Close()
	target.Put("stale", []byte("gone"), 1, 0)

	if err := target.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if target.WriteIdx() != 10 {
		t.Errorf("expected restored write index 10, got %d", target.WriteIdx())
	}
	expectValue(t, target, "plain", 10, []byte("value"))
	expectValue(t, target, "ttl", 10, []byte("value"))
	expectValue(t, target, "counter", 10, []byte("7"))
	expectValue(t, target, "expired", 10, nil)
	expectValue(t, target, "stale", 10, nil)

	// the ttl survives the snapshot
	expectValue(t, target, "ttl", 102, nil)

	// garbage input is rejected
	if err := target.Load(bytes.NewReader([]byte("not a snapshot"))); err == nil {
		t.Error("Load of invalid data must fail")
	}
}

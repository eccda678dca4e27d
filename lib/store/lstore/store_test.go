package lstore

import (
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/dCoord/lib/clock"
	"github.com/ValentinKolb/dCoord/lib/db"
	"github.com/ValentinKolb/dCoord/lib/db/engines/maple"
	"github.com/ValentinKolb/dCoord/lib/store"
	storetesting "github.com/ValentinKolb/dCoord/lib/store/testing"
)

func TestLocalStore(t *testing.T) {
	var manual *clock.Manual
	storetesting.RunIStoreTests(t, "lstore", storetesting.Harness{
		New: func(*testing.T) store.IStore {
			manual = clock.NewManual(time.Unix(1_700_000_000, 0))
			return NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, WithClock(manual))
		},
		Advance: func(d time.Duration) { manual.Advance(d) },
	})
}

func TestLocalStoreRealClock(t *testing.T) {
	s := NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
	defer s.(*storeImpl).Close()

	ok, err := s.PutIfAbsent("k", []byte("v"), 1)
	if err != nil || !ok {
		t.Fatalf("PutIfAbsent = (%v, %v)", ok, err)
	}
	if _, loaded, _ := s.Get("k"); !loaded {
		t.Error("value must be readable right after the write")
	}
}

func TestInvalidCounterValue(t *testing.T) {
	s := NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
	defer s.(*storeImpl).Close()

	if err := s.Put("text", []byte("abc"), 0); err != nil {
		t.Fatal(err)
	}
	_, err := s.Increment("text", 0)
	if !errors.Is(err, store.ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
}

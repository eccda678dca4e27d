package mstore

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dCoord/lib/clock"
	"github.com/ValentinKolb/dCoord/lib/store"
	storetesting "github.com/ValentinKolb/dCoord/lib/store/testing"
)

func newTestStore(t *testing.T, c *clock.Manual) store.IStore {
	t.Helper()
	f := startFakeMemcached(t, c)
	s, err := NewMemcachedStore(Config{Servers: []string{f.addr()}, Timeout: time.Second}, WithClock(c))
	if err != nil {
		t.Fatalf("NewMemcachedStore failed: %v", err)
	}
	return s
}

func TestMemcachedStore(t *testing.T) {
	var manual *clock.Manual
	storetesting.RunIStoreTests(t, "mstore", storetesting.Harness{
		New: func(t *testing.T) store.IStore {
			manual = clock.NewManual(time.Unix(1_700_000_000, 0))
			return newTestStore(t, manual)
		},
		Advance: func(d time.Duration) { manual.Advance(d) },
	})
}

func TestInvalidCounter(t *testing.T) {
	s := newTestStore(t, clock.NewManual(time.Unix(1_700_000_000, 0)))

	if err := s.Put("text", []byte("abc"), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Increment("text", 0); !errors.Is(err, store.ErrInvalidOperation) {
		t.Errorf("Increment: expected ErrInvalidOperation, got %v", err)
	}
	if _, err := s.Decrement("text"); !errors.Is(err, store.ErrInvalidOperation) {
		t.Errorf("Decrement: expected ErrInvalidOperation, got %v", err)
	}
}

func TestMalformedKey(t *testing.T) {
	s := newTestStore(t, clock.NewManual(time.Unix(1_700_000_000, 0)))

	_, err := s.PutIfAbsent("has space", []byte("v"), 0)
	if !errors.Is(err, store.ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
	_, _, err = s.Get(strings.Repeat("k", 251))
	if !errors.Is(err, store.ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestLongTTLIsAbsolute(t *testing.T) {
	c := clock.NewManual(time.Unix(1_700_000_000, 0))
	s := newTestStore(t, c)

	ttl := uint64(60 * 24 * 60 * 60)
	if err := s.Put("k", []byte("v"), ttl); err != nil {
		t.Fatal(err)
	}

	c.Advance(59 * 24 * time.Hour)
	if _, ok, _ := s.Get("k"); !ok {
		t.Error("key expired too early")
	}
	c.Advance(2 * 24 * time.Hour)
	if _, ok, _ := s.Get("k"); ok {
		t.Error("key did not expire")
	}
}

func TestServerDown(t *testing.T) {
	c := clock.NewManual(time.Unix(1_700_000_000, 0))
	f := startFakeMemcached(t, c)
	s, err := NewMemcachedStore(Config{Servers: []string{f.addr()}, Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	_ = f.ln.Close()

	_, _, err = s.Get("k")
	if !errors.Is(err, store.ErrBackendUnavailable) {
		t.Errorf("Get: expected ErrBackendUnavailable, got %v", err)
	}
	_, err = s.PutIfAbsent("k", []byte("v"), 0)
	if !errors.Is(err, store.ErrBackendUnavailable) {
		t.Errorf("PutIfAbsent: expected ErrBackendUnavailable, got %v", err)
	}
	_, err = s.Increment("k", 0)
	if !errors.Is(err, store.ErrBackendUnavailable) {
		t.Errorf("Increment: expected ErrBackendUnavailable, got %v", err)
	}
}

func TestNoServers(t *testing.T) {
	if _, err := NewMemcachedStore(Config{}); err == nil {
		t.Error("expected an error without servers")
	}
}

package estore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dCoord/lib/store"
	storetesting "github.com/ValentinKolb/dCoord/lib/store/testing"
)

// The tests need a running etcd, e.g.
//
//	docker run -p 2379:2379 quay.io/coreos/etcd:v3.5.17 etcd \
//	  --listen-client-urls http://0.0.0.0:2379 --advertise-client-urls http://localhost:2379
//	DCOORD_TEST_ETCD=localhost:2379 go test ./lib/store/estore
func endpoints(t *testing.T) []string {
	env := os.Getenv("DCOORD_TEST_ETCD")
	if env == "" {
		t.Skip("DCOORD_TEST_ETCD not set")
	}
	return strings.Split(env, ",")
}

// testPrefix returns a namespace no other test run uses
func testPrefix(t *testing.T) string {
	return fmt.Sprintf("/dcoord-test/%d/%s", time.Now().UnixNano(), t.Name())
}

func TestEtcdStore(t *testing.T) {
	eps := endpoints(t)
	storetesting.RunIStoreTests(t, "etcd", storetesting.Harness{
		New: func(t *testing.T) store.IStore {
			s, err := NewEtcdStore(Config{Endpoints: eps, Prefix: testPrefix(t), OpTimeout: 5 * time.Second})
			if err != nil {
				t.Fatalf("NewEtcdStore failed: %v", err)
			}
			return s
		},
	})
}

func TestClearIsScopedToThePrefix(t *testing.T) {
	eps := endpoints(t)
	base := testPrefix(t)

	a, err := NewEtcdStore(Config{Endpoints: eps, Prefix: base + "/a"})
	if err != nil {
		t.Fatal(err)
	}
	defer a.(io.Closer).Close()
	b, err := NewEtcdStore(Config{Endpoints: eps, Prefix: base + "/ab"})
	if err != nil {
		t.Fatal(err)
	}
	defer b.(io.Closer).Close()

	if err := a.Put("k", []byte("1"), 0); err != nil {
		t.Fatal(err)
	}
	if err := b.Put("k", []byte("2"), 0); err != nil {
		t.Fatal(err)
	}
	if err := a.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := a.Get("k"); ok {
		t.Error("key of a survived Clear")
	}
	if _, ok, _ := b.Get("k"); !ok {
		t.Error("Clear of a removed the key of b")
	}
	_ = b.Clear()
}

func TestUnreachable(t *testing.T) {
	s, err := NewEtcdStore(Config{
		Endpoints:   []string{"127.0.0.1:1"},
		DialTimeout: 100 * time.Millisecond,
		OpTimeout:   200 * time.Millisecond,
	})
	if err != nil {
		if !errors.Is(err, store.ErrBackendUnavailable) {
			t.Fatalf("expected ErrBackendUnavailable, got %v", err)
		}
		return
	}
	defer s.(io.Closer).Close()

	_, _, err = s.Get("k")
	if !errors.Is(err, store.ErrBackendUnavailable) {
		t.Errorf("Get: expected ErrBackendUnavailable, got %v", err)
	}
	_, err = s.PutIfAbsent("k", []byte("v"), 0)
	if !errors.Is(err, store.ErrBackendUnavailable) {
		t.Errorf("PutIfAbsent: expected ErrBackendUnavailable, got %v", err)
	}
	_, err = s.Increment("k", 10)
	if !errors.Is(err, store.ErrBackendUnavailable) {
		t.Errorf("Increment: expected ErrBackendUnavailable, got %v", err)
	}
}

func TestNoEndpoints(t *testing.T) {
	if _, err := NewEtcdStore(Config{}); err == nil {
		t.Error("expected an error without endpoints")
	}
}

package client_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dCoord/lib/clock"
	"github.com/ValentinKolb/dCoord/lib/db"
	"github.com/ValentinKolb/dCoord/lib/db/engines/maple"
	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/ValentinKolb/dCoord/lib/store/lstore"
	storetesting "github.com/ValentinKolb/dCoord/lib/store/testing"
	"github.com/ValentinKolb/dCoord/rpc/client"
	"github.com/ValentinKolb/dCoord/rpc/common"
	"github.com/ValentinKolb/dCoord/rpc/serializer"
	"github.com/ValentinKolb/dCoord/rpc/server"
	"github.com/ValentinKolb/dCoord/rpc/transport"
)

// memTransport is a server and client transport in one, requests are passed to the handler directly
type memTransport struct {
	handler transport.ServerHandleFunc
	ready   chan struct{}
	done    chan struct{}
	once    sync.Once
	fail    bool
}

func newMemTransport() *memTransport {
	return &memTransport{ready: make(chan struct{}), done: make(chan struct{})}
}

func (m *memTransport) RegisterHandler(handler transport.ServerHandleFunc) { m.handler = handler }

func (m *memTransport) Listen(common.ServerConfig) error {
	close(m.ready)
	<-m.done
	return nil
}

func (m *memTransport) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *memTransport) Connect(common.ClientConfig) error { return nil }

func (m *memTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	if m.fail {
		return nil, errors.New("connection refused")
	}
	select {
	case <-m.ready:
	case <-time.After(5 * time.Second):
		return nil, errors.New("server not ready")
	}
	return m.handler(shardId, req), nil
}

// startServer serves a local store on shard 100 and returns a client for it
func startServer(t *testing.T, ser serializer.IRPCSerializer, c clock.Clock) (store.IStore, *memTransport) {
	t.Helper()
	mem := newMemTransport()
	srv := server.NewRPCServer(common.ServerConfig{}, mem, ser)
	srv.AddShard(100, lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, lstore.WithClock(c)))

	go func() {
		if err := srv.Serve(); err != nil {
			t.Errorf("Serve failed: %v", err)
		}
	}()
	t.Cleanup(func() { _ = srv.Close() })

	s, err := client.NewRPCStore(100, common.ClientConfig{}, mem, ser)
	if err != nil {
		t.Fatalf("NewRPCStore failed: %v", err)
	}
	return s, mem
}

func TestRPCStore(t *testing.T) {
	serializers := map[string]func() serializer.IRPCSerializer{
		"binary": serializer.NewBinarySerializer,
		"json":   serializer.NewJSONSerializer,
		"gob":    serializer.NewGOBSerializer,
	}
	for name, factory := range serializers {
		var manual *clock.Manual
		storetesting.RunIStoreTests(t, "rpc-"+name, storetesting.Harness{
			New: func(t *testing.T) store.IStore {
				manual = clock.NewManual(time.Unix(1_700_000_000, 0))
				s, _ := startServer(t, factory(), manual)
				return s
			},
			Advance: func(d time.Duration) { manual.Advance(d) },
		})
	}
}

func TestServerErrorsKeepTheirCode(t *testing.T) {
	s, _ := startServer(t, serializer.NewBinarySerializer(), clock.Real{})

	if err := s.Put("text", []byte("abc"), 0); err != nil {
		t.Fatal(err)
	}
	_, err := s.Increment("text", 0)
	if !errors.Is(err, store.ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestTransportErrorsAreUnavailable(t *testing.T) {
	s, mem := startServer(t, serializer.NewBinarySerializer(), clock.Real{})
	mem.fail = true

	_, _, err := s.Get("k")
	if !errors.Is(err, store.ErrBackendUnavailable) {
		t.Errorf("Get: expected ErrBackendUnavailable, got %v", err)
	}
	_, err = s.PutIfAbsent("k", []byte("v"), 0)
	if !errors.Is(err, store.ErrBackendUnavailable) {
		t.Errorf("PutIfAbsent: expected ErrBackendUnavailable, got %v", err)
	}
}

func TestUnknownShard(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	_, mem := startServer(t, ser, clock.Real{})

	other, err := client.NewRPCStore(999, common.ClientConfig{}, mem, ser)
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = other.Get("k")
	if err == nil || errors.Is(err, store.ErrBackendUnavailable) {
		t.Errorf("expected a server error for an unknown shard, got %v", err)
	}
}

func TestGetDBInfo(t *testing.T) {
	s, _ := startServer(t, serializer.NewJSONSerializer(), clock.Real{})

	if err := s.Put("a", []byte("1"), 0); err != nil {
		t.Fatal(err)
	}
	info, err := s.GetDBInfo()
	if err != nil {
		t.Fatalf("GetDBInfo failed: %v", err)
	}
	if info.DbType != db.ImplMaple {
		t.Errorf("expected db type %s, got %s", db.ImplMaple, info.DbType)
	}
	if info.Keys != 1 {
		t.Errorf("expected 1 key, got %d", info.Keys)
	}
}

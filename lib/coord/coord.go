package coord

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/ValentinKolb/dCoord/lib/cellmgr"
	"github.com/ValentinKolb/dCoord/lib/clock"
	"github.com/ValentinKolb/dCoord/lib/db"
	"github.com/ValentinKolb/dCoord/lib/db/engines/maple"
	"github.com/ValentinKolb/dCoord/lib/lockmgr"
	"github.com/ValentinKolb/dCoord/lib/lockout"
	"github.com/ValentinKolb/dCoord/lib/progress"
	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/ValentinKolb/dCoord/lib/store/estore"
	"github.com/ValentinKolb/dCoord/lib/store/lstore"
	"github.com/ValentinKolb/dCoord/lib/store/mstore"
	"github.com/ValentinKolb/dCoord/rpc/client"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("coord")

// Coordinator holds the coordination services of one process.
// Locks, cell guards and the lockout share the lock store, progress records have their own store.
type Coordinator struct {
	Locks    lockmgr.ILockManager
	Cells    *cellmgr.CellManager
	Lockout  *lockout.Tracker
	Progress *progress.Tracker

	lockStore  store.IStore
	cacheStore store.IStore
}

// New opens the stores of the configured backend and creates the services on them
func New(cfg Config) (*Coordinator, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	lockStore, cacheStore, err := openStores(cfg)
	if err != nil {
		return nil, err
	}
	Logger.Infof("using the %s coordination backend", cfg.Backend)
	return NewWithStores(lockStore, cacheStore, cfg), nil
}

// NewWithStores creates the services on existing stores. Only the service options of cfg are used.
func NewWithStores(lockStore, cacheStore store.IStore, cfg Config) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	cfg.Lock.Clock = cfg.Clock
	cfg.Cell.Clock = cfg.Clock
	cfg.Progress.Clock = cfg.Clock

	return &Coordinator{
		Locks:      lockmgr.NewLockManager(lockStore, cfg.Lock),
		Cells:      cellmgr.NewCellManager(lockStore, cfg.Cell),
		Lockout:    lockout.NewTracker(lockStore, cfg.Lockout),
		Progress:   progress.NewTracker(cacheStore, cfg.Progress),
		lockStore:  lockStore,
		cacheStore: cacheStore,
	}
}

// LockStore returns the store of the locks, cell guards and the lockout
func (c *Coordinator) LockStore() store.IStore { return c.lockStore }

// CacheStore returns the store of the progress records
func (c *Coordinator) CacheStore() store.IStore { return c.cacheStore }

// Close closes both stores
func (c *Coordinator) Close() error {
	var errs []error
	for _, s := range []store.IStore{c.lockStore, c.cacheStore} {
		if closer, ok := s.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

// openStores creates the lock and the cache store of the backend
func openStores(cfg Config) (lockStore, cacheStore store.IStore, err error) {
	if cfg.Backend != BackendLocal && len(cfg.Endpoints) == 0 {
		return nil, nil, fmt.Errorf("backend %s needs at least one endpoint", cfg.Backend)
	}

	switch cfg.Backend {
	case BackendLocal:
		factory := func() db.KVDB { return maple.NewMapleDB(nil) }
		return lstore.NewLocalStore(factory, lstore.WithClock(cfg.Clock)), lstore.NewLocalStore(factory, lstore.WithClock(cfg.Clock)), nil

	case BackendRPC:
		open := func(shardID uint64) (store.IStore, error) {
			t, err := client.NewTransport(cfg.RPC.Transport)
			if err != nil {
				return nil, err
			}
			ser, err := client.NewSerializer(cfg.RPC.Serializer)
			if err != nil {
				return nil, err
			}
			clientCfg := cfg.RPC.Client
			clientCfg.Transport.Endpoints = cfg.Endpoints
			return client.NewRPCStore(shardID, clientCfg, t, ser)
		}
		return openPair(func() (store.IStore, error) { return open(cfg.RPC.LockShard) }, func() (store.IStore, error) { return open(cfg.RPC.CacheShard) })

	case BackendEtcd:
		open := func(ns string) (store.IStore, error) {
			return estore.NewEtcdStore(estore.Config{
				Endpoints: cfg.Endpoints,
				Prefix:    strings.TrimSuffix(cfg.EtcdPrefix, "/") + "/" + ns,
				OpTimeout: cfg.OpTimeout,
			})
		}
		return openPair(func() (store.IStore, error) { return open("locks") }, func() (store.IStore, error) { return open("cache") })

	case BackendMemcached:
		cacheServers := cfg.cacheEndpoints()
		if slices.Equal(cacheServers, cfg.Endpoints) {
			Logger.Warningf("locks and progress records share the memcached servers %v, DeleteAllProgress will also remove all locks", cfg.Endpoints)
		}
		open := func(servers []string) (store.IStore, error) {
			return mstore.NewMemcachedStore(mstore.Config{Servers: servers, Timeout: cfg.OpTimeout}, mstore.WithClock(cfg.Clock))
		}
		return openPair(func() (store.IStore, error) { return open(cfg.Endpoints) }, func() (store.IStore, error) { return open(cacheServers) })

	default:
		return nil, nil, fmt.Errorf("invalid backend %q", cfg.Backend)
	}
}

// openPair opens both stores and closes the first if the second fails
func openPair(openLock, openCache func() (store.IStore, error)) (store.IStore, store.IStore, error) {
	lockStore, err := openLock()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open lock store: %w", err)
	}
	cacheStore, err := openCache()
	if err != nil {
		if c, ok := lockStore.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, nil, fmt.Errorf("failed to open cache store: %w", err)
	}
	return lockStore, cacheStore, nil
}

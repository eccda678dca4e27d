package estore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dCoord/lib/db"
	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var log = logger.GetLogger("store")

// maxCASAttempts bounds the read-modify-write loop of the counters
const maxCASAttempts = 64

// Config configures the connection to etcd
type Config struct {
	Endpoints   []string
	DialTimeout time.Duration
	// Prefix is the namespace of the store, a trailing '/' is added if missing
	Prefix string
	// OpTimeout bounds every single etcd request
	OpTimeout time.Duration
}

type storeImpl struct {
	client  *clientv3.Client
	kv      clientv3.KV
	lease   clientv3.Lease
	prefix  string
	timeout time.Duration
}

// NewEtcdStore connects to etcd and returns a store in the configured namespace.
// The returned store implements io.Closer and closes the client.
func NewEtcdStore(cfg Config) (store.IStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("estore: no endpoints configured")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, store.Unavailable("estore: connect to %v: %v", cfg.Endpoints, err)
	}
	return NewEtcdStoreFromClient(client, cfg.Prefix, cfg.OpTimeout), nil
}

// NewEtcdStoreFromClient uses an existing client, Close closes it
func NewEtcdStoreFromClient(client *clientv3.Client, prefix string, timeout time.Duration) store.IStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &storeImpl{
		client:  client,
		kv:      clientv3.NewKV(client),
		lease:   clientv3.NewLease(client),
		prefix:  prefix,
		timeout: timeout,
	}
}

func (s *storeImpl) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *storeImpl) key(key string) string {
	return s.prefix + key
}

func unavailable(op, key string, err error) error {
	return store.Unavailable("etcd %s %s: %v", op, key, err)
}

// leaseOpts grants a lease for ttl seconds, no options are returned for ttl 0
func (s *storeImpl) leaseOpts(ctx context.Context, ttl uint64) ([]clientv3.OpOption, clientv3.LeaseID, error) {
	if ttl == 0 {
		return nil, clientv3.NoLease, nil
	}
	resp, err := s.lease.Grant(ctx, int64(ttl))
	if err != nil {
		return nil, clientv3.NoLease, err
	}
	return []clientv3.OpOption{clientv3.WithLease(resp.ID)}, resp.ID, nil
}

// revoke drops a lease that ended up unused
func (s *storeImpl) revoke(id clientv3.LeaseID) {
	if id == clientv3.NoLease {
		return
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if _, err := s.lease.Revoke(ctx, id); err != nil {
		log.Debugf("failed to revoke unused lease %x: %v", id, err)
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	resp, err := s.kv.Get(ctx, s.key(key))
	if err != nil {
		return nil, false, unavailable("get", key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	return resp.Kvs[0].Value, true, nil
}

func (s *storeImpl) PutIfAbsent(key string, value []byte, ttl uint64) (bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	opts, leaseID, err := s.leaseOpts(ctx, ttl)
	if err != nil {
		return false, unavailable("lease", key, err)
	}

	k := s.key(key)
	resp, err := s.kv.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(k), "=", 0)).
		Then(clientv3.OpPut(k, string(value), opts...)).
		Commit()
	if err != nil {
		s.revoke(leaseID)
		return false, unavailable("put-if-absent", key, err)
	}
	if !resp.Succeeded {
		s.revoke(leaseID)
	}
	return resp.Succeeded, nil
}

func (s *storeImpl) Put(key string, value []byte, ttl uint64) error {
	ctx, cancel := s.ctx()
	defer cancel()

	opts, leaseID, err := s.leaseOpts(ctx, ttl)
	if err != nil {
		return unavailable("lease", key, err)
	}
	if _, err := s.kv.Put(ctx, s.key(key), string(value), opts...); err != nil {
		s.revoke(leaseID)
		return unavailable("put", key, err)
	}
	return nil
}

func (s *storeImpl) Delete(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	if _, err := s.kv.Delete(ctx, s.key(key)); err != nil {
		return unavailable("delete", key, err)
	}
	return nil
}

func (s *storeImpl) Increment(key string, ttl uint64) (int64, error) {
	return s.addOne(key, 1, ttl)
}

func (s *storeImpl) Decrement(key string) (int64, error) {
	return s.addOne(key, -1, 0)
}

// addOne is a compare-and-swap loop on the mod revision of the key
func (s *storeImpl) addOne(key string, delta int64, ttl uint64) (int64, error) {
	k := s.key(key)
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		result, done, err := s.tryAdd(k, key, delta, ttl)
		if err != nil || done {
			return result, err
		}
		log.Debugf("etcd counter %s changed concurrently, attempt %d", key, attempt+1)
	}
	return 0, store.NewError(store.RetCInternalError, fmt.Sprintf("etcd counter %s: too many concurrent updates", key))
}

func (s *storeImpl) tryAdd(k, key string, delta int64, ttl uint64) (result int64, done bool, err error) {
	ctx, cancel := s.ctx()
	defer cancel()

	resp, err := s.kv.Get(ctx, k)
	if err != nil {
		return 0, false, unavailable("get", key, err)
	}

	var (
		curr int64
		cmp  clientv3.Cmp
	)
	if len(resp.Kvs) == 0 {
		// a missing counter is only created by an increment
		if delta <= 0 {
			return 0, true, nil
		}
		cmp = clientv3.Compare(clientv3.CreateRevision(k), "=", 0)
	} else {
		kv := resp.Kvs[0]
		if curr, err = strconv.ParseInt(strings.TrimSpace(string(kv.Value)), 10, 64); err != nil {
			return 0, true, store.NewError(store.RetCInvalidOperation, "cannot increment or decrement non-numeric value of "+key)
		}
		cmp = clientv3.Compare(clientv3.ModRevision(k), "=", kv.ModRevision)
	}

	result = curr + delta
	var op clientv3.Op
	leaseID := clientv3.NoLease
	switch {
	case result <= 0:
		result = 0
		op = clientv3.OpDelete(k)
	case ttl > 0:
		var opts []clientv3.OpOption
		if opts, leaseID, err = s.leaseOpts(ctx, ttl); err != nil {
			return 0, false, unavailable("lease", key, err)
		}
		op = clientv3.OpPut(k, strconv.FormatInt(result, 10), opts...)
	case len(resp.Kvs) == 0:
		op = clientv3.OpPut(k, strconv.FormatInt(result, 10))
	default:
		op = clientv3.OpPut(k, strconv.FormatInt(result, 10), clientv3.WithIgnoreLease())
	}

	txn, err := s.kv.Txn(ctx).If(cmp).Then(op).Commit()
	if err != nil {
		s.revoke(leaseID)
		return 0, false, unavailable("update counter", key, err)
	}
	if !txn.Succeeded {
		s.revoke(leaseID)
		return 0, false, nil
	}
	return result, true, nil
}

func (s *storeImpl) Clear() error {
	ctx, cancel := s.ctx()
	defer cancel()

	if _, err := s.kv.Delete(ctx, s.prefix, clientv3.WithPrefix()); err != nil {
		return unavailable("clear", s.prefix, err)
	}
	return nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	resp, err := s.kv.Get(ctx, s.prefix, clientv3.WithPrefix(), clientv3.WithCountOnly())
	if err != nil {
		return db.DatabaseInfo{}, unavailable("count", s.prefix, err)
	}
	return db.DatabaseInfo{
		Keys:   int(resp.Count),
		DbType: db.ImplEtcd,
		SupportedFeatures: []db.Feature{
			db.FeaturePut, db.FeaturePutIfAbsent, db.FeatureGet, db.FeatureDelete, db.FeatureCounter, db.FeatureClear,
		},
		Metadata: map[string]any{
			"prefix":    s.prefix,
			"endpoints": s.client.Endpoints(),
			"revision":  resp.Header.GetRevision(),
		},
	}, nil
}

// Close closes the etcd client
func (s *storeImpl) Close() error {
	return s.client.Close()
}

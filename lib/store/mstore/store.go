package mstore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/dCoord/lib/clock"
	"github.com/ValentinKolb/dCoord/lib/db"
	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/bradfitz/gomemcache/memcache"
)

const (
	// memcached reads expirations above 30 days as unix timestamps
	maxRelativeExpiration = 30 * 24 * 60 * 60

	// maxAddAttempts bounds the incr / add loop of a missing counter
	maxAddAttempts = 16
)

// Config configures the memcache client
type Config struct {
	Servers      []string
	Timeout      time.Duration
	MaxIdleConns int
}

// Option configures the memcached store
type Option func(*storeImpl)

// WithClock sets the clock used for expirations longer than 30 days (default: clock.Real)
func WithClock(c clock.Clock) Option {
	return func(s *storeImpl) { s.clock = c }
}

type storeImpl struct {
	client  *memcache.Client
	servers []string
	clock   clock.Clock
}

// NewMemcachedStore creates a store on the given memcached servers
func NewMemcachedStore(cfg Config, opts ...Option) (store.IStore, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("mstore: no servers configured")
	}

	client := memcache.New(cfg.Servers...)
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}
	if cfg.MaxIdleConns > 0 {
		client.MaxIdleConns = cfg.MaxIdleConns
	}

	s := &storeImpl{
		client:  client,
		servers: cfg.Servers,
		clock:   clock.Real{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// expiration converts a ttl in seconds into a memcached expiration
func (s *storeImpl) expiration(ttl uint64) int32 {
	if ttl <= maxRelativeExpiration {
		return int32(ttl)
	}
	return int32(s.clock.Now().Unix() + int64(ttl))
}

func mapErr(op, key string, err error) error {
	switch {
	case errors.Is(err, memcache.ErrMalformedKey):
		return store.NewError(store.RetCInvalidOperation, fmt.Sprintf("memcached %s: invalid key %q", op, key))
	case strings.Contains(err.Error(), "non-numeric"):
		return store.NewError(store.RetCInvalidOperation, "cannot increment or decrement non-numeric value of "+key)
	default:
		return store.Unavailable("memcached %s %s: %v", op, key, err)
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	item, err := s.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, mapErr("get", key, err)
	}
	return item.Value, true, nil
}

func (s *storeImpl) PutIfAbsent(key string, value []byte, ttl uint64) (bool, error) {
	err := s.client.Add(&memcache.Item{Key: key, Value: value, Expiration: s.expiration(ttl)})
	if errors.Is(err, memcache.ErrNotStored) {
		return false, nil
	}
	if err != nil {
		return false, mapErr("add", key, err)
	}
	return true, nil
}

func (s *storeImpl) Put(key string, value []byte, ttl uint64) error {
	if err := s.client.Set(&memcache.Item{Key: key, Value: value, Expiration: s.expiration(ttl)}); err != nil {
		return mapErr("set", key, err)
	}
	return nil
}

func (s *storeImpl) Delete(key string) error {
	if err := s.client.Delete(key); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return mapErr("delete", key, err)
	}
	return nil
}

func (s *storeImpl) Increment(key string, ttl uint64) (int64, error) {
	exp := s.expiration(ttl)
	for attempt := 0; attempt < maxAddAttempts; attempt++ {
		n, err := s.client.Increment(key, 1)
		switch {
		case err == nil:
			if ttl > 0 {
				if err := s.client.Touch(key, exp); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
					return 0, mapErr("touch", key, err)
				}
			}
			return int64(n), nil

		case errors.Is(err, memcache.ErrCacheMiss):
			err = s.client.Add(&memcache.Item{Key: key, Value: []byte("1"), Expiration: exp})
			if err == nil {
				return 1, nil
			}
			if !errors.Is(err, memcache.ErrNotStored) {
				return 0, mapErr("add", key, err)
			}
			// created concurrently, increment that counter

		default:
			return 0, mapErr("incr", key, err)
		}
	}
	return 0, store.NewError(store.RetCInternalError, fmt.Sprintf("memcached counter %s: too many concurrent updates", key))
}

func (s *storeImpl) Decrement(key string) (int64, error) {
	n, err := s.client.Decrement(key, 1)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, mapErr("decr", key, err)
	}
	if n == 0 {
		if err := s.Delete(key); err != nil {
			return 0, err
		}
	}
	return int64(n), nil
}

func (s *storeImpl) Clear() error {
	if err := s.client.FlushAll(); err != nil {
		return mapErr("flush_all", "", err)
	}
	return nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return db.DatabaseInfo{
		Keys:   -1, // memcached can't count keys
		DbType: db.ImplMemcached,
		SupportedFeatures: []db.Feature{
			db.FeaturePut, db.FeaturePutIfAbsent, db.FeatureGet, db.FeatureDelete, db.FeatureCounter, db.FeatureClear,
		},
		Metadata: map[string]any{
			"servers": s.servers,
			"timeout": s.client.Timeout.String(),
		},
	}, nil
}

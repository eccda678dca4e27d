package lstore

import (
	"errors"

	"github.com/ValentinKolb/dCoord/lib/clock"
	"github.com/ValentinKolb/dCoord/lib/db"
	"github.com/ValentinKolb/dCoord/lib/store"
)

type storeImpl struct {
	db    db.KVDB
	clock clock.Clock
}

// Option configures the local store
type Option func(*storeImpl)

// WithClock sets the clock used to derive write indices (default: clock.Real)
func WithClock(c clock.Clock) Option {
	return func(s *storeImpl) { s.clock = c }
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// The write index of the engine is the wall clock in milliseconds, so TTLs expire in real time.
func NewLocalStore(factory store.DBFactory, opts ...Option) store.IStore {
	s := &storeImpl{
		db:    factory(),
		clock: clock.Real{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// index returns the write index for the next operation
func (s *storeImpl) index() uint64 {
	return uint64(clock.NowMillis(s.clock))
}

// ttl converts seconds to index units
func ttl(seconds uint64) uint64 {
	return seconds * 1000
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	val, ok := s.db.Get(key, s.index())
	return val, ok, nil
}

func (s *storeImpl) PutIfAbsent(key string, value []byte, ttlSeconds uint64) (bool, error) {
	if !s.db.SupportsFeature(db.FeaturePutIfAbsent) {
		return false, store.NewError(store.RetCUnsupportedOperation, "PutIfAbsent operation is not supported")
	}
	return s.db.PutIfAbsent(key, value, s.index(), ttl(ttlSeconds)), nil
}

func (s *storeImpl) Put(key string, value []byte, ttlSeconds uint64) error {
	if !s.db.SupportsFeature(db.FeaturePut) {
		return store.NewError(store.RetCUnsupportedOperation, "Put operation is not supported")
	}
	s.db.Put(key, value, s.index(), ttl(ttlSeconds))
	return nil
}

func (s *storeImpl) Delete(key string) error {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	s.db.Delete(key, s.index())
	return nil
}

func (s *storeImpl) Increment(key string, ttlSeconds uint64) (int64, error) {
	return s.add(key, 1, ttlSeconds)
}

func (s *storeImpl) Decrement(key string) (int64, error) {
	return s.add(key, -1, 0)
}

func (s *storeImpl) add(key string, delta int64, ttlSeconds uint64) (int64, error) {
	if !s.db.SupportsFeature(db.FeatureCounter) {
		return 0, store.NewError(store.RetCUnsupportedOperation, "counter operations are not supported")
	}
	val, err := s.db.AddInt(key, delta, s.index(), ttl(ttlSeconds))
	if errors.Is(err, db.ErrNotANumber) {
		return 0, store.NewError(store.RetCInvalidOperation, "cannot increment or decrement non-numeric value of "+key)
	}
	return val, err
}

func (s *storeImpl) Clear() error {
	if !s.db.SupportsFeature(db.FeatureClear) {
		return store.NewError(store.RetCUnsupportedOperation, "Clear operation is not supported")
	}
	s.db.Clear(s.index())
	return nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

// Close stops the engine's background work
func (s *storeImpl) Close() error {
	return s.db.Close()
}

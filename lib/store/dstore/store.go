package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dCoord/lib/clock"
	"github.com/ValentinKolb/dCoord/lib/db"
	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/ValentinKolb/dCoord/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the concrete implementation of the IStore interface.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
	clock   clock.Clock
}

// Option configures the distributed store
type Option func(*storeImpl)

// WithClock sets the clock used to timestamp commands (default: clock.Real)
func WithClock(c clock.Clock) Option {
	return func(s *storeImpl) { s.clock = c }
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration, opts ...Option) store.IStore {
	s := &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      nh.GetNoOPSession(shardID),
		timeout: timeout,
		clock:   clock.Real{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *storeImpl) now() uint64 {
	return uint64(clock.NowMillis(s.clock))
}

// mapNodeHostError converts dragonboat errors. Errors of a shard that can't reach a quorum are
// reported as unavailable backend, everything else as internal error.
func mapNodeHostError(err error) error {
	var se *store.Error
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, dragonboat.ErrTimeout),
		errors.Is(err, dragonboat.ErrShardNotReady),
		errors.Is(err, dragonboat.ErrShardNotFound),
		errors.Is(err, dragonboat.ErrShardClosed),
		errors.Is(err, dragonboat.ErrClosed),
		errors.Is(err, context.DeadlineExceeded):
		return store.Unavailable("raft shard: %v", err)
	default:
		return store.NewError(store.RetCInternalError, err.Error())
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write serializes a Command and sends it via SyncPropose.
// It returns the result of the state machine or a *store.Error.
func (s *storeImpl) write(cmd internal.Command) (sm.Result, error) {
	cmd.Timestamp = s.now()
	data := cmd.Serialize()
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)

		res, err := s.nh.SyncPropose(ctx, s.cs, data)
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return res, mapNodeHostError(err)
		}
		if res.Value != uint64(store.RetCSuccess) {
			return res, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return res, nil
	}
	return sm.Result{}, store.Unavailable("system busy after %d retries", retries)
}

// read is a generic helper function queries the statemachine
// and attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragenboat) by default to Query the state machine.
// If linearizability is not required, the stale parameter can be set to true to use the faster StaleRead function.
//
// Is the read operation fails due to a system busy error, the function retries up to 5 times.
//
// It returns the response of type R and a error (nil on success).
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	q.Timestamp = r.now()
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		// Query the standmaschine, use StaleRead if stale is set otherwise use SyncRead (default)
		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			return zero, mapNodeHostError(err)
		}

		// The state machine is expected to return the response in the expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.Unavailable("system busy after %d retries", retries)
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	res, err := read[internal.QueryResult](s, internal.Query{
		Type: internal.QueryTGet,
		Key:  key,
	}, false)
	if err != nil {
		return nil, false, err
	}
	return res.Value, res.Ok, nil
}

func (s *storeImpl) PutIfAbsent(key string, value []byte, ttlSeconds uint64) (bool, error) {
	res, err := s.write(internal.Command{
		Type:  internal.CommandTPutIfAbsent,
		Key:   key,
		Value: value,
		TTL:   ttlSeconds * 1000,
	})
	if err != nil {
		return false, err
	}
	return len(res.Data) == 1 && res.Data[0] == 1, nil
}

func (s *storeImpl) Put(key string, value []byte, ttlSeconds uint64) error {
	_, err := s.write(internal.Command{
		Type:  internal.CommandTPut,
		Key:   key,
		Value: value,
		TTL:   ttlSeconds * 1000,
	})
	return err
}

func (s *storeImpl) Delete(key string) error {
	_, err := s.write(internal.Command{
		Type: internal.CommandTDelete,
		Key:  key,
	})
	return err
}

func (s *storeImpl) Increment(key string, ttlSeconds uint64) (int64, error) {
	return s.count(internal.Command{
		Type: internal.CommandTIncrement,
		Key:  key,
		TTL:  ttlSeconds * 1000,
	})
}

func (s *storeImpl) Decrement(key string) (int64, error) {
	return s.count(internal.Command{
		Type: internal.CommandTDecrement,
		Key:  key,
	})
}

func (s *storeImpl) count(cmd internal.Command) (int64, error) {
	res, err := s.write(cmd)
	if err != nil {
		return 0, err
	}
	val, err := decodeInt(res.Data)
	if err != nil {
		return 0, store.NewError(store.RetCInternalError, err.Error())
	}
	return val, nil
}

func (s *storeImpl) Clear() error {
	_, err := s.write(internal.Command{Type: internal.CommandTClear})
	return err
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](
		s,
		internal.Query{
			Type: internal.QueryTGetDBInfo,
		},
		true, // Note: allow for stale reads
	)
}

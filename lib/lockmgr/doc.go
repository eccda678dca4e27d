// Package lockmgr implements a locking mechanism using
// key-value stores that implement the store.IStore interface. It provides
// a simple way to coordinate access to shared resources across
// multiple processes or nodes.
//
// The lock manager only ever stores in the provided IStore and has no other internal
// state. Therefore it is safe to be created multiple times on the same store.
// As long as the same store is used every time, all locks will work as expected.
//
// Core Functionality:
//   - Lock acquisition with a bounded number of attempts
//   - Idempotent release
//   - Scoped lock keys, so the same id in two categories are two different locks
//
// Implementation Approach:
//
//	Locks are implemented by leveraging the atomic PutIfAbsent operation
//	of the underlying store. Specifically:
//
//	- Lock Acquisition: Attempts to create the scoped key using PutIfAbsent, which
//	  guarantees that only one requester can successfully create the key.
//	  The value is the JSON encoded Lock. If the key exists, the manager waits
//	  RetryInterval and tries again, up to MaxRetries attempts.
//
//	- No Timeouts: Locks are stored without a TTL. A lock is held until it is released.
//
//	- Release: The Release operation deletes the key without checking who holds it.
//
//	- Fairness: There is no queue. Any waiter may win the next attempt, so a waiter
//	  can starve under sustained contention.
//
// Error Handling:
//
//	Acquire reports errs.ErrTooManyConcurrentRequests once all attempts are used up.
//	A store that can't be reached ends the loop at once with errs.ErrLockStateUnavailable,
//	any other store error and a cancelled ctx end it with errs.ErrBackendUnknown.
//
// Distributed Considerations:
//
//	When used with a shared store implementation (rpc, etcd or memcached), the
//	lock manager provides locking across processes. The at-most-one-holder guarantee
//	is exactly as strong as the PutIfAbsent of the store.
//
// Usage Example:
//
//	// Create a lock manager with a store backend
//	lm := lockmgr.NewLockManager(store, lockmgr.DefaultOptions())
//
//	lock, err := lm.Acquire(ctx, keys.CategoryODataWrite, cellID)
//	if err != nil {
//	    // Handle error, errs.ErrTooManyConcurrentRequests maps to 503
//	}
//	defer lm.Release(lock)
//
//	// or
//	err = lockmgr.WithLock(ctx, lm, keys.CategoryDav, []string{cellID, boxID}, func() error {
//	    // Use the resource safely
//	    return nil
//	})
//
// Performance Impact:
//
//	Lock operations require one store operation per attempt:
//	- Acquire: One PutIfAbsent per attempt, blocking at most MaxRetries * RetryInterval
//	- Release: One Delete
package lockmgr

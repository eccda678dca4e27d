// Package mstore implements the store.IStore interface on top of memcached.
//
// Every operation maps onto one native memcached command, so atomicity is
// provided by the memcached server:
//
//   - PutIfAbsent is add
//   - Put is set
//   - Increment is incr. A missing counter is created with add "1", if that
//     loses against a concurrent add the incr is repeated. With a TTL the counter
//     is touched after every increment.
//   - Decrement is decr. A counter that reaches 0 is deleted.
//   - Clear is flush_all and removes every key of the memcached servers, so locks
//     and progress records should live on different servers.
//
// Cache misses are reported as missing keys. Every other error of the memcache
// client is reported as store.ErrBackendUnavailable, except keys memcached can't
// store and counters that hold text, which are reported as store.ErrInvalidOperation.
package mstore

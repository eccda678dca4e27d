// Package store defines IStore, the coordination store every higher level
// service (locks, reference counters, lockout, progress) is built on, together
// with its error taxonomy.
//
// Key Components:
//
//   - IStore Interface: Get, PutIfAbsent, Put, Delete, Increment, Decrement and
//     Clear. PutIfAbsent is the one operation whose atomicity the lock service
//     relies on for its at-most-one-holder guarantee.
//
//   - Error System: *Error carries a RetCode. Errors match the exported
//     sentinels (ErrBackendUnavailable, ErrBackendUnknown, ...) by code through
//     errors.Is, which keeps the classification intact across the RPC wire.
//
//   - DBFactory: abstracts the creation of the db.KVDB engine used by the
//     local and the replicated store.
//
// Implementations:
//
//   - lstore: in-process store backed by a db.KVDB engine and the wall clock.
//   - dstore: a shard replicated with the Dragonboat RAFT library. It is hosted
//     by the dcoord server and reached by clients through rpc/client.
//   - rpc/client: network store talking to a dcoord server.
//   - estore: network store on top of etcd.
//   - mstore: network store on top of memcached.
//
// The testing subpackage provides RunIStoreTests, the conformance suite all
// implementations are checked against.
package store

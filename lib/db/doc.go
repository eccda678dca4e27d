// Package db defines the KVDB interface implemented by the storage engines
// behind the coordination store.
//
// Key Components:
//
//   - KVDB Interface: Put, PutIfAbsent, Delete, AddInt and Clear on the write
//     side, Get on the read side, plus Save/Load for snapshots.
//
//   - Feature Flags: engines advertise what they support through SupportsFeature.
//
//   - DatabaseInfo: size and implementation specific metadata, used by the
//     server's info endpoint.
//
// Note on Time-Based Operations:
//   - Every operation takes an index that serves as a logical timestamp. The
//     in-process store passes wall clock milliseconds, the replicated store
//     passes the timestamp carried by the RAFT command.
//   - Engines advance their index to max(current, given) on each call, so a
//     caller handing in an older index never moves time backwards. TTLs are
//     always computed relative to the advanced index.
//   - An entry whose expiry index has been reached is logically absent: Get
//     must not return it and PutIfAbsent/AddInt must treat it as missing, even
//     if the engine has not physically removed it yet.
//
// The engines/maple package provides the in-memory implementation. The testing
// package provides RunKVDBTests, a conformance suite for any implementation.
package db

// Package maple implements db.KVDB as an in-memory engine built for the
// coordination store: atomic create-if-absent, decimal counters and TTLs.
//
// Key Components:
//
//   - mapleImpl: the engine. Keys are spread over shards by an FNV-1a hash
//     with a per-instance seed. Every write runs inside xsync's MapOf.Compute,
//     which makes the read-modify-write of a single key atomic without a global
//     lock. The engine does not own a clock; callers hand in a write index
//     (milliseconds for the local store, the command timestamp for RAFT) and
//     the engine keeps it monotonic.
//
//   - Shard: a partition holding the data map and an expiry queue
//     (util.MapHeap keyed by the key string).
//
// Expiry:
//
//   - An entry carries ExpireAt, an absolute index. It is absent as soon as
//     the write index reaches ExpireAt, regardless of whether it was removed yet.
//   - Get removes expired entries it runs into (lazy eviction).
//   - A background goroutine pops the expiry queue every GCInterval and removes
//     what is due. Entries refreshed after they were queued are re-queued.
//
// Persistence:
//
//   - Save writes the live entries and the write index in a little endian
//     binary format, Load restores it. Both are used for RAFT snapshots.
package maple

// Package lstore implements the in-process coordination store: a thin wrapper
// around a db.KVDB engine, scoped to one running instance.
//
// Implementation Details:
//
//   - Write Index: every operation passes the current wall clock in
//     milliseconds (from an injectable clock.Clock) as the engine's write
//     index. TTLs in seconds are converted to milliseconds, so expiry happens
//     in real time and is evaluated lazily on access.
//
//   - Atomicity: PutIfAbsent, Increment and Decrement are single engine calls
//     that run under the engine's per-key compute lock.
//
//   - Feature Detection: operations check SupportsFeature first and return
//     RetCUnsupportedOperation errors for engines lacking a feature.
//
// Usage Example:
//
//	factory := func() db.KVDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	ok, err := s.PutIfAbsent("dav:box-1", lockJSON, 0)
//	n, err := s.Increment("account-lock:alice", 60)
//
// Tests use lstore.WithClock(clock.NewManual(...)) to step through TTL windows.
package lstore

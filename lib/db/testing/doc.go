// Package testing checks db.KVDB implementations against the behavior the stores
// rely on: TTLs measured on the write index, counters kept as decimal text and
// PutIfAbsent on expired entries.
//
//	dbtesting.RunKVDBTests(t, "maple", func() db.KVDB { return maple.NewMapleDB(nil) })
//	dbtesting.RunKVDBBenchmarks(b, "maple", func() db.KVDB { return maple.NewMapleDB(nil) })
package testing

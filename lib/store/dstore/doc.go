// Package dstore replicates a coordination store shard over several nodes with the
// Dragonboat RAFT library. Locks, cell guards and login failures on a dstore shard
// survive the loss of a minority of the nodes.
//
// Components:
//
//   - storeImpl implements store.IStore. Writes are encoded as internal.Command and
//     proposed with SyncPropose, reads are encoded as internal.Query and served with
//     SyncRead (linearizable) or StaleRead (GetDBInfo only).
//
//   - stateMachine is a Dragonboat IConcurrentStateMachine around a db.KVDB. It applies
//     committed commands in log order and serves queries and snapshots.
//
// Time and expiry:
//
//	Every command carries the wall clock of the proposing node in milliseconds. The
//	state machine uses it as the write index of the database and never moves the index
//	backwards. All replicas therefore expire a lock counter or a progress record at the
//	same log position, even when the clocks of the proposers drift apart.
//
// Conditional writes:
//
//	PutIfAbsent and the counters are decided inside the state machine, so two nodes
//	racing for the same lock key get exactly one "stored" answer between them.
//
// Errors:
//
//	ErrSystemBusy is retried with a short delay. A timeout or a missing quorum is returned
//	as a store error with code store.RetCBackendUnavailable, which the services map to
//	errs.ErrLockStateUnavailable.
//
// Snapshots:
//
//	Snapshots are fuzzy: db.KVDB.Save runs without stopping writes. A restarted node
//	loads the latest snapshot and then replays the log entries committed after it.
//
// Example:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	if err != nil { ... }
//
//	err = nh.StartConcurrentReplica(members, false,
//	    dstore.CreateStateMaschineFactory(func() db.KVDB { return maple.NewMapleDB(nil) }),
//	    shardConfig)
//	if err != nil { ... }
//
//	s := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
//
// Run an odd number of replicas. A write needs the leader and a majority, so a shard of
// three nodes tolerates one failure. Use lstore when a single process is enough.
package dstore

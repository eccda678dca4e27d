// Package estore implements the store.IStore interface on top of an etcd v3 cluster.
//
// All keys are stored below a namespace prefix, so several stores can share one
// cluster and Clear only removes the keys of its own store.
//
// Implementation Approach:
//
//   - PutIfAbsent is a transaction that only writes if the create revision of the key is 0.
//   - TTLs are leases, every write with a TTL grants a new lease.
//   - Increment and Decrement read the counter and write it back in a transaction
//     that compares the mod revision of the key, the loop retries on conflicts.
//     Decrement keeps the lease of the key (WithIgnoreLease).
//   - Clear deletes all keys with the namespace prefix.
//
// Every error of the etcd client is reported as store.ErrBackendUnavailable.
//
// Usage Example:
//
//	s, err := estore.NewEtcdStore(estore.Config{
//		Endpoints: []string{"localhost:2379"},
//		Prefix:    "/dcoord/locks",
//		OpTimeout: 5 * time.Second,
//	})
//	if err != nil {
//		// Handle error
//	}
//	defer s.Close()
package estore

// Package coord wires the coordination services to a backend.
//
// The backend is chosen once from a Config and passed to every service, there is
// no global state. Each backend provides two stores: the lock store holds locks,
// cell reference counts, cell statuses and failed login counters, the cache store
// holds progress records. DeleteAllProgress clears the cache store only.
//
//	| Backend   | Lock store                     | Cache store                     |
//	|-----------|--------------------------------|---------------------------------|
//	| local     | in-process engine              | second in-process engine        |
//	| rpc       | shard RPC.LockShard            | shard RPC.CacheShard            |
//	| etcd      | <EtcdPrefix>/locks/            | <EtcdPrefix>/cache/             |
//	| memcached | Endpoints                      | CacheEndpoints                  |
//
// Usage Example:
//
//	cfg := coord.DefaultConfig()
//	cfg.Backend = coord.BackendEtcd
//	cfg.Endpoints = []string{"localhost:2379"}
//
//	c, err := coord.New(cfg)
//	if err != nil {
//		// Handle error
//	}
//	defer c.Close()
//
//	lock, err := c.Locks.Acquire(ctx, keys.CategoryODataWrite, cellID)
package coord

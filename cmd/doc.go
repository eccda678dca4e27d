// Package cmd implements the command-line interface of dCoord. It provides a
// hierarchical command structure with operations for running the server and
// using the coordination services as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a dcoord server hosting local or replicated store shards
//   - kv: Raw store operations (get, put, incr, ...) and a load test
//   - lock: Acquire and release locks, lock benchmark
//   - cell: Reference counts and bulk deletion status of cells
//   - account: Failed login counters
//   - progress: Job progress records
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as an environment variable DCOORD_<FLAG>, e.g.
// DCOORD_BACKEND=etcd. .env and .env.local files are loaded on start.
//
// See dcoord -help for a list of all commands.
package cmd

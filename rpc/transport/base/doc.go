// Package base implements the socket transports (tcp, unix) on top of a small
// connector interface. A connector only dials or listens and applies socket options,
// everything else happens here.
//
// Framing:
//
//	Each message is one frame: shard id (8 bytes), request id (8 bytes), payload length
//	(4 bytes), all big endian, followed by the payload. Frames larger than MaxFrameSize
//	are rejected before any buffer is allocated.
//
// Client:
//
//	The client keeps ConnectionsPerEndpoint connections to every endpoint and picks one
//	round robin per request. Requests are pipelined: responses are matched to waiting
//	callers by request id, so a slow lock acquire does not block a counter update on
//	the same connection. A broken connection fails all of its pending requests and is
//	redialed in the background. Failed requests are retried with exponential backoff.
//
// Server:
//
//	The server reads frames on one goroutine per connection and processes them on a
//	fixed number of workers per connection. Read buffers come from a sync.Pool.
//
// Transport counters are exported with the VictoriaMetrics metrics package under the
// dcoord_transport_ prefix.
package base

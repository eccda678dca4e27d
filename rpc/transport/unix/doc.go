// Package unix connects RPC clients to a dcoord server on the same host through a
// Unix domain socket. Framing, pipelining and reconnects come from package base.
//
// The endpoint is the socket path. The server removes a stale socket file before it
// listens. Buffers default to 64 KB.
package unix

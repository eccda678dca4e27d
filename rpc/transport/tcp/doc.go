// Package tcp connects RPC clients to a dcoord server over TCP. Framing, pipelining
// and reconnects come from package base, this package only dials, listens and sets
// the socket options of common.TCPConf (no delay, keepalive, linger).
//
// The server buffers default to 512 KB.
package tcp

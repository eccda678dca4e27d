// Package transport defines how encoded messages travel between RPC clients and
// the dcoord server.
//
// IRPCClientTransport connects to a list of endpoints and sends a request to a shard.
// IRPCServerTransport listens on one endpoint and hands each request to a
// ServerHandleFunc together with its shard id.
//
// Implementations live in the subpackages http, tcp and unix. The socket based ones
// share the framing and connection handling of package base.
package transport

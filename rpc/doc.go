// Package rpc lets several processes share one coordination store. A dcoord server
// hosts store shards and clients reach them with store.IStore implementations that
// forward every call over the network.
//
// Subpackages:
//
//   - common: the Message type of requests and responses, configuration and the
//     logger setup shared by server and clients.
//   - serializer: encodes messages as binary, JSON or gob.
//   - transport: moves encoded messages between client and server over HTTP, TCP or
//     Unix sockets.
//   - client: NewRPCStore, the remote store.IStore.
//   - server: RPCServer, which dispatches requests to its shards.
//
// Server side store errors keep their return code on the wire. Failures of the
// transport itself surface as store.ErrBackendUnavailable on the client.
package rpc

// Package server implements the dcoord server. One RPCServer hosts any number of
// shards, each an independent store.IStore, and answers the requests of
// client.NewRPCStore.
//
// A shard is either
//
//   - lstore: an in-process store, lost when the server stops, or
//   - dstore: a RAFT replicated store. The server then also runs a Dragonboat node
//     host and needs DataDir, ReplicaID and ClusterMembers in its config.
//
// Requests for an unknown shard are answered with an error message, not dropped.
// The adapter returned by NewIStoreServerAdapter turns messages into store calls and
// keeps the return code of store errors.
//
// Every request is counted per shard and message type. If MetricsEndpoint is set the
// counters are served in the prometheus text format.
//
//	s := server.NewRPCServer(common.ServerConfig{
//	    Shards:    []common.ServerShard{{ShardID: 100, Type: common.ShardTypeLocalIStore}},
//	    Transport: common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	}, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer())
//	log.Fatal(s.Serve())
//
// Serve must be called once. Close stops the transport and the node host.
package server

// Package client implements the RPC client of the coordination store.
// It provides an implementation of the store.IStore interface that forwards
// every operation to a remote server via RPC.
//
// The package focuses on:
//   - Transparent RPC access to a remote store shard
//   - Integration with the transport and serialization layers
//   - Converting response codes back into store errors
//
// Key Components:
//
//   - NewRPCStore: Factory function that creates a client implementing the store.IStore
//     interface. This client forwards all operations to the server via the configured
//     transport layer. The returned store implements io.Closer.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//		TimeoutSecond: 5,
//		Transport: common.ClientTransportConfig{
//			Endpoints:              []string{"localhost:8080"},
//			RetryCount:             3,
//			ConnectionsPerEndpoint: 1,
//		},
//	}
//
//	// Create store client
//	s, _ := client.NewRPCStore(200, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//
//	// Use the store
//	stored, _ := s.PutIfAbsent("odata-write:cell1", []byte("{}"), 60)
//	n, _ := s.Increment("cell-refcount:cell1", 0)
//
// Error Handling:
//
// Errors reported by the server keep their code, so errors.Is(err, store.ErrInvalidOperation)
// works on the client side. Transport failures and undecodable responses are
// returned as store.ErrBackendUnavailable.
//
// Thread Safety:
//
//	All client implementations are thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client

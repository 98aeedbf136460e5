// Package client implements the RPC client for the object store. It forwards
// database lifecycle, read, write and index operations to a remote server via
// the configured transport and serializer.
//
// The package focuses on:
//   - Transparent remote access to the typed object store operations
//   - Integration with the transport and serialization layers
//   - Parsing wire errors back into the odb error taxonomy
//
// Key Components:
//
//   - NewRPCClient: Factory function that creates a client bound to one shard
//     of a remote server. All operations address a database and collection by
//     name; keys and ranges travel in their tagged JSON wire form.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:              []string{"localhost:5000"},
//	  TimeoutSecond:          5,
//	  RetryCount:             3,
//	  ConnectionsPerEndpoint: 1,
//	}
//
//	c, _ := client.NewRPCClient(
//	  server.ObjectStoreShardID,
//	  config,
//	  tcp.NewTCPClientTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	// Open a database and write to it
//	c.Open(schema)
//	c.PutAt("app", "todos", key.Int(1), []byte(`{"id":1}`))
//	value, found, _ := c.Get("app", "todos", key.Int(1))
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing
//     ConnectionsPerEndpoint can improve throughput by allowing parallel
//     requests.
//
//   - For small messages, a single connection per endpoint is often more
//     efficient due to reduced connection overhead.
//
//   - The choice of serializer significantly affects performance. The binary
//     serializer provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	The client is thread-safe and can be used concurrently from multiple
//	goroutines without additional synchronization.
package client

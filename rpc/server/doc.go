// Package server implements the RPC server for the object store. It provides
// the adapter that serves object store requests against a database registry,
// along with the core server implementation that manages shards and request
// routing.
//
// The package focuses on:
//   - Server-side RPC request handling for database lifecycle, reads, writes
//     and index queries
//   - Adapter pattern to decouple the typed store facade from RPC mechanisms
//   - Shard-based routing so additional services can share one server
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server
//     adapters, with the Handle method that processes incoming messages.
//
//   - NewObjectStoreAdapter: Factory function creating the adapter that
//     translates RPC messages into calls on the odb facade. Keys and ranges
//     arrive in their tagged JSON wire form; errors leave in the wire error
//     taxonomy.
//
//   - NewRPCServer: Factory function creating a configured server with the
//     specified transport and serializer. The server owns the storage engine
//     and mounts the object store adapter on shard 0.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  DataDir: "/var/lib/odb",
//	  Endpoint: "0.0.0.0:8080",
//	  TimeoutSecond: 5,
//	  LogLevel: "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent
//	requests across multiple connections. Each request is processed
//	independently. The Serve method is not thread-safe and should be called
//	only once.
package server

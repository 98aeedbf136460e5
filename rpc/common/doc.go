// Package common provides core data structures and utilities shared across
// the object store's RPC system. It defines fundamental types, configuration
// structures, and protocol elements used by other packages.
//
// The package focuses on:
//   - Message protocol definition for client/server communication
//   - Configuration structures for client and server components
//   - Structured logging setup shared by server, client and transports
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between
//     components, with a flexible structure that adapts to different operation
//     types. Keys and ranges travel in their tagged JSON wire form, record
//     batches as positional key/value lists. Includes factory methods for
//     creating the various request and response messages.
//
//   - MessageType: Enumeration defining all supported operation types,
//     categorized into database lifecycle, reads, writes per key
//     configuration, deletes and index queries.
//
//   - ServerConfig: Configuration for the server, including storage
//     settings, network configuration and TCP tuning.
//
//   - ClientConfig: Configuration for client components, controlling
//     connection parameters, timeouts, and retry behavior.
//
//   - NewLogger/MustLogger: Constructors for the zap loggers used across the
//     RPC system, configured from a textual log level.
package common

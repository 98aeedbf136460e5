// Package cmd implements the command-line interface for the oDB object
// store. It provides a hierarchical command structure with operations for
// running the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - db: Commands for database and record operations (open, get, put, query, etc.)
//   - serve: Commands for starting and configuring the oDB server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See odb -help for a list of all commands.
package cmd

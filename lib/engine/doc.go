// Package engine defines the boundary between oDB's typed core and the
// physical storage engine.
//
// An Engine opens named databases at a declared schema version, running all
// structural changes (collection and index creation or removal) inside a
// single upgrade transaction. A Connection hands out transactions scoped to
// one collection; every operation on a transaction is an asynchronous
// Request that settles exactly once, and the transaction itself exposes a
// completion signal that fires only after all of its requests have settled.
//
// Implementations must provide ACID transactions, bytewise-ordered range
// scans over native keys, and secondary index lookups. The bolt subpackage
// implements this contract on bbolt; the enginetest subpackage holds a
// reusable conformance suite for further implementations.
package engine

// Package odb is the typed access layer over the storage engine. It owns
// schema declaration and reconciliation, the process-wide connection
// registry, the transaction orchestration that gives batch writes
// all-or-nothing semantics, and the capability-split operation facade
// (explicit, inline and generated key configurations each expose only the
// writes that are legal for them).
//
// All failures surface as *Error carrying one of four tags: AlreadyExists,
// QuotaExceeded, TransactionError and DatabaseError. Engine-native errors
// never escape this package.
package odb

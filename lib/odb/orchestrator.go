package odb

import (
	"github.com/JonasWeidner/oDB/lib/engine"
	"github.com/JonasWeidner/oDB/lib/key"
)

// --------------------------------------------------------------------------
// Db Handle
// --------------------------------------------------------------------------

// DB is a handle to one open database. It holds no connection itself;
// every operation resolves the name through the registry, so a handle
// kept around after Close or DeleteDatabase fails cleanly with a
// DatabaseError instead of touching a dead connection.
type DB struct {
	name string
	reg  *Registry
}

// Name returns the database name this handle is bound to.
func (db *DB) Name() string { return db.name }

// Close closes the underlying connection and unregisters it.
func (db *DB) Close() error { return db.reg.Close(db.name) }

// --------------------------------------------------------------------------
// Transaction Orchestration
// --------------------------------------------------------------------------

// run executes one logical operation inside exactly one transaction on one
// collection: it resolves the connection, begins a transaction with the
// given mode, lets issue queue its requests, commits, and waits for the
// transaction to settle.
//
// Requests settle before the transaction's Done fires, so issue may keep
// the returned *engine.Request values and the caller may Await them after
// run returns. The transaction-level error wins: if the transaction
// aborted, run reports the abort cause even for requests that succeeded
// individually, and none of the writes are durable.
func (db *DB) run(collection string, mode engine.Mode, issue func(txn engine.Txn)) *Error {
	conn, lerr := db.reg.lookup(db.name)
	if lerr != nil {
		return lerr
	}

	txn, err := conn.Begin(collection, mode)
	if err != nil {
		return Normalize(err)
	}

	issue(txn)
	txn.Commit()
	<-txn.Done()

	return Normalize(txn.Err())
}

// --------------------------------------------------------------------------
// Result Decoding
// --------------------------------------------------------------------------

// Record pairs a typed key with its raw value.
type Record struct {
	Key   key.Key
	Value []byte
}

// awaitKey resolves a settled request to the typed key it reported.
func awaitKey(req *engine.Request) (key.Key, *Error) {
	v, err := req.Await()
	if err != nil {
		return nil, Normalize(err)
	}
	nk, ok := v.([]byte)
	if !ok || nk == nil {
		return nil, NewDatabaseError("engine reported no key for a write")
	}
	return decodeKey(nk)
}

// awaitValue resolves a settled request to the raw value, reporting
// presence separately (a missing key is not an error).
func awaitValue(req *engine.Request) ([]byte, bool, *Error) {
	v, err := req.Await()
	if err != nil {
		return nil, false, Normalize(err)
	}
	if v == nil {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

// awaitCount resolves a settled request to its uint64 result.
func awaitCount(req *engine.Request) (uint64, *Error) {
	v, err := req.Await()
	if err != nil {
		return 0, Normalize(err)
	}
	if v == nil {
		return 0, nil
	}
	return v.(uint64), nil
}

// awaitRecords resolves a settled request to decoded records.
func awaitRecords(req *engine.Request) ([]Record, *Error) {
	v, err := req.Await()
	if err != nil {
		return nil, Normalize(err)
	}
	raw, _ := v.([]engine.Record)

	out := make([]Record, 0, len(raw))
	for _, r := range raw {
		k, derr := decodeKey(r.Key)
		if derr != nil {
			return nil, derr
		}
		out = append(out, Record{Key: k, Value: r.Value})
	}
	return out, nil
}

// awaitKeys resolves a settled request to decoded keys.
func awaitKeys(req *engine.Request) ([]key.Key, *Error) {
	v, err := req.Await()
	if err != nil {
		return nil, Normalize(err)
	}
	raw, _ := v.([][]byte)

	out := make([]key.Key, 0, len(raw))
	for _, nk := range raw {
		k, derr := decodeKey(nk)
		if derr != nil {
			return nil, derr
		}
		out = append(out, k)
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Codec Bridging
// --------------------------------------------------------------------------

func encodeKey(k key.Key) ([]byte, *Error) {
	if k == nil {
		return nil, NewDatabaseError("key must not be nil")
	}
	nk, err := key.Encode(k)
	if err != nil {
		return nil, NewDatabaseError("%v", err)
	}
	return nk, nil
}

func decodeKey(nk []byte) (key.Key, *Error) {
	k, err := key.Decode(nk)
	if err != nil {
		return nil, NewDatabaseError("%v", err)
	}
	return k, nil
}

func encodeRange(r key.Range) (key.EncodedRange, *Error) {
	enc, err := key.EncodeRange(r)
	if err != nil {
		return key.EncodedRange{}, NewDatabaseError("%v", err)
	}
	return enc, nil
}

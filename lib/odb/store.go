package odb

import (
	"github.com/JonasWeidner/oDB/lib/engine"
	"github.com/JonasWeidner/oDB/lib/key"
)

// --------------------------------------------------------------------------
// Capability Accessors
// --------------------------------------------------------------------------

// The write operations a collection supports depend on its key
// configuration, so each configuration gets its own store type carrying
// only the writes that are legal for it. The accessors below verify the
// stored configuration at lookup time; asking for the wrong capability is
// a DatabaseError, not a later surprise at write time.

// Explicit returns the store for an explicit-keyed collection.
func (db *DB) Explicit(collection string) (*ExplicitStore, error) {
	s, err := db.storeFor(collection, engine.KeyExplicit)
	if err != nil {
		return nil, err
	}
	return &ExplicitStore{store: s}, nil
}

// Inline returns the store for an inline-keyed collection.
func (db *DB) Inline(collection string) (*InlineStore, error) {
	s, err := db.storeFor(collection, engine.KeyInline)
	if err != nil {
		return nil, err
	}
	return &InlineStore{store: s}, nil
}

// Generated returns the store for a generated-keyed collection.
func (db *DB) Generated(collection string) (*GeneratedStore, error) {
	s, err := db.storeFor(collection, engine.KeyGenerated)
	if err != nil {
		return nil, err
	}
	return &GeneratedStore{store: s}, nil
}

// Collection returns the operations every key configuration supports:
// reads, counts, deletes and index queries. Use it when the key
// configuration is not known to the caller, for example when serving
// requests on behalf of a remote peer.
func (db *DB) Collection(collection string) (*CollectionStore, error) {
	conn, lerr := db.reg.lookup(db.name)
	if lerr != nil {
		return nil, lerr
	}
	if _, ok := conn.CollectionConfig(collection); !ok {
		return nil, NewDatabaseError("database %q has no collection %q", db.name, collection)
	}
	return &CollectionStore{store: store{db: db, collection: collection}}, nil
}

// CollectionStore carries the configuration-independent operations.
type CollectionStore struct {
	store
}

func (db *DB) storeFor(collection string, want engine.KeyConfig) (store, error) {
	conn, lerr := db.reg.lookup(db.name)
	if lerr != nil {
		return store{}, lerr
	}
	cfg, ok := conn.CollectionConfig(collection)
	if !ok {
		return store{}, NewDatabaseError("database %q has no collection %q", db.name, collection)
	}
	if cfg.Key != want {
		return store{}, NewDatabaseError("collection %q is %s-keyed, not %s-keyed",
			collection, cfg.Key, want)
	}
	return store{db: db, collection: collection}, nil
}

// --------------------------------------------------------------------------
// Common Read Operations
// --------------------------------------------------------------------------

// store carries the operations every key configuration supports: reads,
// counts and key-addressed deletes. The typed store variants embed it.
type store struct {
	db         *DB
	collection string
}

// Collection returns the collection name this store operates on.
func (s store) Collection() string { return s.collection }

// Get returns the raw value stored under k. A missing key is reported via
// the boolean, not as an error.
func (s store) Get(k key.Key) ([]byte, bool, error) {
	nk, kerr := encodeKey(k)
	if kerr != nil {
		return nil, false, kerr
	}

	var req *engine.Request
	if err := s.db.run(s.collection, engine.ReadOnly, func(txn engine.Txn) {
		req = txn.Get(nk)
	}); err != nil {
		return nil, false, err
	}

	value, found, aerr := awaitValue(req)
	if aerr != nil {
		return nil, false, aerr
	}
	return value, found, nil
}

// GetAll returns the raw values of every record in the range, in ascending
// key order. The zero range matches the whole collection.
func (s store) GetAll(r key.Range) ([][]byte, error) {
	records, err := s.GetAllRecords(r)
	if err != nil {
		return nil, err
	}
	values := make([][]byte, len(records))
	for i, rec := range records {
		values[i] = rec.Value
	}
	return values, nil
}

// GetAllKeys returns the typed keys of every record in the range.
func (s store) GetAllKeys(r key.Range) ([]key.Key, error) {
	enc, rerr := encodeRange(r)
	if rerr != nil {
		return nil, rerr
	}

	var req *engine.Request
	if err := s.db.run(s.collection, engine.ReadOnly, func(txn engine.Txn) {
		req = txn.GetAllKeys(enc)
	}); err != nil {
		return nil, err
	}

	keys, aerr := awaitKeys(req)
	if aerr != nil {
		return nil, aerr
	}
	return keys, nil
}

// GetAllRecords returns keys and values together. Both are requested
// against the same transaction and recombined positionally, so the result
// is one consistent snapshot.
func (s store) GetAllRecords(r key.Range) ([]Record, error) {
	enc, rerr := encodeRange(r)
	if rerr != nil {
		return nil, rerr
	}

	var keysReq, recsReq *engine.Request
	if err := s.db.run(s.collection, engine.ReadOnly, func(txn engine.Txn) {
		keysReq = txn.GetAllKeys(enc)
		recsReq = txn.GetAll(enc)
	}); err != nil {
		return nil, err
	}

	keys, aerr := awaitKeys(keysReq)
	if aerr != nil {
		return nil, aerr
	}
	records, aerr := awaitRecords(recsReq)
	if aerr != nil {
		return nil, aerr
	}
	if len(keys) != len(records) {
		return nil, NewDatabaseError("inconsistent snapshot: %d keys for %d records",
			len(keys), len(records))
	}
	for i := range records {
		records[i].Key = keys[i]
	}
	return records, nil
}

// Count returns the number of records in the range.
func (s store) Count(r key.Range) (uint64, error) {
	enc, rerr := encodeRange(r)
	if rerr != nil {
		return 0, rerr
	}

	var req *engine.Request
	if err := s.db.run(s.collection, engine.ReadOnly, func(txn engine.Txn) {
		req = txn.Count(enc)
	}); err != nil {
		return 0, err
	}

	n, aerr := awaitCount(req)
	if aerr != nil {
		return 0, aerr
	}
	return n, nil
}

// Delete removes the record stored under k. Deleting an absent key is not
// an error.
func (s store) Delete(k key.Key) error {
	nk, kerr := encodeKey(k)
	if kerr != nil {
		return kerr
	}
	if err := s.db.run(s.collection, engine.ReadWrite, func(txn engine.Txn) {
		txn.Delete(nk)
	}); err != nil {
		return err
	}
	return nil
}

// DeleteMany removes every record in the range inside one transaction.
func (s store) DeleteMany(r key.Range) error {
	enc, rerr := encodeRange(r)
	if rerr != nil {
		return rerr
	}
	if err := s.db.run(s.collection, engine.ReadWrite, func(txn engine.Txn) {
		txn.DeleteRange(enc)
	}); err != nil {
		return err
	}
	return nil
}

// Clear removes every record in the collection.
func (s store) Clear() error {
	if err := s.db.run(s.collection, engine.ReadWrite, func(txn engine.Txn) {
		txn.Clear()
	}); err != nil {
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Index Reads
// --------------------------------------------------------------------------

// GetByIndex returns the records whose index key under the named index
// falls in the range, ordered by index key. An unknown index name is a
// DatabaseError.
func (s store) GetByIndex(index string, r key.Range) ([]Record, error) {
	enc, rerr := encodeRange(r)
	if rerr != nil {
		return nil, rerr
	}

	var req *engine.Request
	if err := s.db.run(s.collection, engine.ReadOnly, func(txn engine.Txn) {
		req = txn.IndexGetAll(index, enc)
	}); err != nil {
		return nil, err
	}

	records, aerr := awaitRecords(req)
	if aerr != nil {
		return nil, aerr
	}
	return records, nil
}

// GetKeysByIndex returns the primary keys of the matching records, ordered
// by index key.
func (s store) GetKeysByIndex(index string, r key.Range) ([]key.Key, error) {
	enc, rerr := encodeRange(r)
	if rerr != nil {
		return nil, rerr
	}

	var req *engine.Request
	if err := s.db.run(s.collection, engine.ReadOnly, func(txn engine.Txn) {
		req = txn.IndexGetKeys(index, enc)
	}); err != nil {
		return nil, err
	}

	keys, aerr := awaitKeys(req)
	if aerr != nil {
		return nil, aerr
	}
	return keys, nil
}

// CountByIndex returns the number of index entries in the range.
func (s store) CountByIndex(index string, r key.Range) (uint64, error) {
	enc, rerr := encodeRange(r)
	if rerr != nil {
		return 0, rerr
	}

	var req *engine.Request
	if err := s.db.run(s.collection, engine.ReadOnly, func(txn engine.Txn) {
		req = txn.IndexCount(index, enc)
	}); err != nil {
		return 0, err
	}

	n, aerr := awaitCount(req)
	if aerr != nil {
		return 0, aerr
	}
	return n, nil
}

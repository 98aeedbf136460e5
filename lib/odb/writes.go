package odb

import (
	"github.com/JonasWeidner/oDB/lib/engine"
	"github.com/JonasWeidner/oDB/lib/key"
)

// --------------------------------------------------------------------------
// Explicit Keys
// --------------------------------------------------------------------------

// ExplicitStore operates on a collection whose keys are supplied by the
// caller on every write.
type ExplicitStore struct {
	store
}

// PutAt upserts value under k.
func (s *ExplicitStore) PutAt(k key.Key, value []byte) error {
	nk, kerr := encodeKey(k)
	if kerr != nil {
		return kerr
	}
	if err := s.db.run(s.collection, engine.ReadWrite, func(txn engine.Txn) {
		txn.Put(nk, value)
	}); err != nil {
		return err
	}
	return nil
}

// AddAt inserts value under k, failing with AlreadyExists if the key is
// already present.
func (s *ExplicitStore) AddAt(k key.Key, value []byte) error {
	nk, kerr := encodeKey(k)
	if kerr != nil {
		return kerr
	}
	if err := s.db.run(s.collection, engine.ReadWrite, func(txn engine.Txn) {
		txn.Add(nk, value)
	}); err != nil {
		return err
	}
	return nil
}

// PutManyAt upserts all records inside one transaction. If any write
// fails, none of them persist.
func (s *ExplicitStore) PutManyAt(records []Record) error {
	nks := make([][]byte, len(records))
	for i, rec := range records {
		nk, kerr := encodeKey(rec.Key)
		if kerr != nil {
			return kerr
		}
		nks[i] = nk
	}
	if err := s.db.run(s.collection, engine.ReadWrite, func(txn engine.Txn) {
		for i, rec := range records {
			txn.Put(nks[i], rec.Value)
		}
	}); err != nil {
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Inline Keys
// --------------------------------------------------------------------------

// InlineStore operates on a collection whose keys are extracted by the
// engine from a declared path inside the value. Callers never supply a
// key; every write reports the key the engine extracted.
type InlineStore struct {
	store
}

// Put upserts value and returns the key extracted from it.
func (s *InlineStore) Put(value []byte) (key.Key, error) {
	return s.writeOne(value, false)
}

// Add inserts value and returns the extracted key, failing with
// AlreadyExists if a record with that key is already present.
func (s *InlineStore) Add(value []byte) (key.Key, error) {
	return s.writeOne(value, true)
}

// PutMany upserts all values inside one transaction and returns the
// extracted keys in input order.
func (s *InlineStore) PutMany(values [][]byte) ([]key.Key, error) {
	return s.writeMany(values, false)
}

func (s *InlineStore) writeOne(value []byte, insert bool) (key.Key, error) {
	var req *engine.Request
	if err := s.db.run(s.collection, engine.ReadWrite, func(txn engine.Txn) {
		if insert {
			req = txn.Add(nil, value)
		} else {
			req = txn.Put(nil, value)
		}
	}); err != nil {
		return nil, err
	}

	k, aerr := awaitKey(req)
	if aerr != nil {
		return nil, aerr
	}
	return k, nil
}

func (s *InlineStore) writeMany(values [][]byte, insert bool) ([]key.Key, error) {
	reqs := make([]*engine.Request, len(values))
	if err := s.db.run(s.collection, engine.ReadWrite, func(txn engine.Txn) {
		for i, value := range values {
			if insert {
				reqs[i] = txn.Add(nil, value)
			} else {
				reqs[i] = txn.Put(nil, value)
			}
		}
	}); err != nil {
		return nil, err
	}

	// input order, not completion order
	keys := make([]key.Key, len(reqs))
	for i, req := range reqs {
		k, aerr := awaitKey(req)
		if aerr != nil {
			return nil, aerr
		}
		keys[i] = k
	}
	return keys, nil
}

// --------------------------------------------------------------------------
// Generated Keys
// --------------------------------------------------------------------------

// GeneratedStore operates on a collection whose keys come from the
// engine's auto-increment counter. Callers never supply a key on
// creation, only on a subsequent Replace.
type GeneratedStore struct {
	store
}

// Insert stores value under a freshly generated key and returns that key.
func (s *GeneratedStore) Insert(value []byte) (key.Key, error) {
	var req *engine.Request
	if err := s.db.run(s.collection, engine.ReadWrite, func(txn engine.Txn) {
		req = txn.Add(nil, value)
	}); err != nil {
		return nil, err
	}

	k, aerr := awaitKey(req)
	if aerr != nil {
		return nil, aerr
	}
	return k, nil
}

// Replace upserts value under a previously generated key.
func (s *GeneratedStore) Replace(k key.Key, value []byte) error {
	nk, kerr := encodeKey(k)
	if kerr != nil {
		return kerr
	}
	if err := s.db.run(s.collection, engine.ReadWrite, func(txn engine.Txn) {
		txn.Put(nk, value)
	}); err != nil {
		return err
	}
	return nil
}

// InsertMany stores all values inside one transaction and returns the
// generated keys in input order. If any insert fails, none persist.
func (s *GeneratedStore) InsertMany(values [][]byte) ([]key.Key, error) {
	reqs := make([]*engine.Request, len(values))
	if err := s.db.run(s.collection, engine.ReadWrite, func(txn engine.Txn) {
		for i, value := range values {
			reqs[i] = txn.Add(nil, value)
		}
	}); err != nil {
		return nil, err
	}

	keys := make([]key.Key, len(reqs))
	for i, req := range reqs {
		k, aerr := awaitKey(req)
		if aerr != nil {
			return nil, aerr
		}
		keys[i] = k
	}
	return keys, nil
}

// ReplaceMany upserts all records inside one transaction.
func (s *GeneratedStore) ReplaceMany(records []Record) error {
	nks := make([][]byte, len(records))
	for i, rec := range records {
		nk, kerr := encodeKey(rec.Key)
		if kerr != nil {
			return kerr
		}
		nks[i] = nk
	}
	if err := s.db.run(s.collection, engine.ReadWrite, func(txn engine.Txn) {
		for i, rec := range records {
			txn.Put(nks[i], rec.Value)
		}
	}); err != nil {
		return err
	}
	return nil
}

package bolt

import (
	"fmt"

	"github.com/JonasWeidner/oDB/lib/engine"
	"github.com/JonasWeidner/oDB/lib/key"
	bbolt "go.etcd.io/bbolt"
)

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

func (t *boltTxn) Get(k []byte) *engine.Request {
	return t.issue(func(x *txnExec) (any, error) {
		if v := x.records.Get(k); v != nil {
			return cloned(v), nil
		}
		return nil, nil
	})
}

func (t *boltTxn) GetAll(r key.EncodedRange) *engine.Request {
	return t.issue(func(x *txnExec) (any, error) {
		var out []engine.Record
		err := scanRecords(x.records, r, func(nk, v []byte) error {
			out = append(out, engine.Record{Key: cloned(nk), Value: cloned(v)})
			return nil
		})
		return out, err
	})
}

func (t *boltTxn) GetAllKeys(r key.EncodedRange) *engine.Request {
	return t.issue(func(x *txnExec) (any, error) {
		var out [][]byte
		err := scanRecords(x.records, r, func(nk, _ []byte) error {
			out = append(out, cloned(nk))
			return nil
		})
		return out, err
	})
}

func (t *boltTxn) Count(r key.EncodedRange) *engine.Request {
	return t.issue(func(x *txnExec) (any, error) {
		var n uint64
		err := scanRecords(x.records, r, func(_, _ []byte) error {
			n++
			return nil
		})
		return n, err
	})
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (t *boltTxn) Put(k, value []byte) *engine.Request {
	return t.issue(func(x *txnExec) (any, error) {
		return x.write(k, value, false)
	})
}

func (t *boltTxn) Add(k, value []byte) *engine.Request {
	return t.issue(func(x *txnExec) (any, error) {
		return x.write(k, value, true)
	})
}

func (t *boltTxn) Delete(k []byte) *engine.Request {
	return t.issue(func(x *txnExec) (any, error) {
		if err := x.requireWritable(); err != nil {
			return nil, err
		}
		return nil, x.deleteRecord(k)
	})
}

func (t *boltTxn) DeleteRange(r key.EncodedRange) *engine.Request {
	return t.issue(func(x *txnExec) (any, error) {
		if err := x.requireWritable(); err != nil {
			return nil, err
		}
		var victims [][]byte
		err := scanRecords(x.records, r, func(nk, _ []byte) error {
			victims = append(victims, cloned(nk))
			return nil
		})
		if err != nil {
			return nil, err
		}
		for _, nk := range victims {
			if err := x.deleteRecord(nk); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
}

func (t *boltTxn) Clear() *engine.Request {
	return t.issue(func(x *txnExec) (any, error) {
		if err := x.requireWritable(); err != nil {
			return nil, err
		}
		var victims [][]byte
		err := scanRecords(x.records, key.EncodedRange{}, func(nk, _ []byte) error {
			victims = append(victims, cloned(nk))
			return nil
		})
		if err != nil {
			return nil, err
		}
		for _, nk := range victims {
			if err := x.deleteRecord(nk); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
}

// --------------------------------------------------------------------------
// Index Operations
// --------------------------------------------------------------------------

func (t *boltTxn) IndexGetAll(index string, r key.EncodedRange) *engine.Request {
	return t.issue(func(x *txnExec) (any, error) {
		idx, err := x.index(index)
		if err != nil {
			return nil, err
		}
		var out []engine.Record
		err = scanIndex(idx, r, func(_, primary []byte) error {
			v := x.records.Get(primary)
			if v == nil {
				return fmt.Errorf("bolt: index %q references missing record", index)
			}
			out = append(out, engine.Record{Key: cloned(primary), Value: cloned(v)})
			return nil
		})
		return out, err
	})
}

func (t *boltTxn) IndexGetKeys(index string, r key.EncodedRange) *engine.Request {
	return t.issue(func(x *txnExec) (any, error) {
		idx, err := x.index(index)
		if err != nil {
			return nil, err
		}
		var out [][]byte
		err = scanIndex(idx, r, func(_, primary []byte) error {
			out = append(out, cloned(primary))
			return nil
		})
		return out, err
	})
}

func (t *boltTxn) IndexCount(index string, r key.EncodedRange) *engine.Request {
	return t.issue(func(x *txnExec) (any, error) {
		idx, err := x.index(index)
		if err != nil {
			return nil, err
		}
		var n uint64
		err = scanIndex(idx, r, func(_, _ []byte) error {
			n++
			return nil
		})
		return n, err
	})
}

// --------------------------------------------------------------------------
// Executor Helpers
// --------------------------------------------------------------------------

func (x *txnExec) requireWritable() error {
	if x.mode != engine.ReadWrite {
		return fmt.Errorf("bolt: write operation on readonly transaction")
	}
	return nil
}

func (x *txnExec) index(name string) (*bbolt.Bucket, error) {
	if idx := x.indexes.Bucket([]byte(name)); idx != nil {
		return idx, nil
	}
	return nil, fmt.Errorf("bolt: no such index %q on collection %q", name, x.cfg.Name)
}

// write upserts (or, for insert, adds) one record and returns the
// effective native key. A nil native key asks for derivation per the
// collection's key configuration.
func (x *txnExec) write(nk, value []byte, insert bool) (any, error) {
	if err := x.requireWritable(); err != nil {
		return nil, err
	}

	var err error
	if nk, err = x.effectiveKey(nk, value); err != nil {
		return nil, err
	}

	old := x.records.Get(nk)
	if insert && old != nil {
		return nil, fmt.Errorf("bolt: collection %q: %w", x.cfg.Name, engine.ErrKeyExists)
	}

	if old != nil {
		if err := x.unindex(nk, old); err != nil {
			return nil, err
		}
	}
	if err := x.records.Put(nk, value); err != nil {
		return nil, fmt.Errorf("bolt: write record: %w", err)
	}
	for _, def := range x.cfg.Indexes {
		idx, err := x.index(def.Name)
		if err != nil {
			return nil, err
		}
		if err := addIndexEntries(idx, def, nk, value); err != nil {
			return nil, err
		}
	}
	return cloned(nk), nil
}

// effectiveKey resolves the native key to write under.
func (x *txnExec) effectiveKey(nk, value []byte) ([]byte, error) {
	switch x.cfg.Key {
	case engine.KeyExplicit:
		if nk == nil {
			return nil, fmt.Errorf("bolt: collection %q requires an explicit key", x.cfg.Name)
		}
		return nk, nil
	case engine.KeyInline:
		if nk != nil {
			return nil, fmt.Errorf("bolt: collection %q derives its key from the value", x.cfg.Name)
		}
		k, err := extractKey(value, x.cfg.KeyPath)
		if err != nil {
			return nil, err
		}
		return key.Encode(k)
	case engine.KeyGenerated:
		if nk != nil {
			// replace of a previously generated key
			return nk, nil
		}
		seq, err := x.records.NextSequence()
		if err != nil {
			return nil, fmt.Errorf("bolt: next sequence on %q: %w", x.cfg.Name, err)
		}
		return key.Encode(key.Int(seq))
	default:
		return nil, fmt.Errorf("bolt: collection %q has unknown key configuration", x.cfg.Name)
	}
}

func (x *txnExec) deleteRecord(nk []byte) error {
	old := x.records.Get(nk)
	if old == nil {
		return nil // absent is not an error
	}
	if err := x.unindex(nk, old); err != nil {
		return err
	}
	if err := x.records.Delete(nk); err != nil {
		return fmt.Errorf("bolt: delete record: %w", err)
	}
	return nil
}

func (x *txnExec) unindex(nk, old []byte) error {
	for _, def := range x.cfg.Indexes {
		idx, err := x.index(def.Name)
		if err != nil {
			return err
		}
		if err := removeIndexEntries(idx, def, nk, old); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Scan Helpers
// --------------------------------------------------------------------------

// scanRecords walks the record bucket in ascending native key order,
// restricted to r.
func scanRecords(records *bbolt.Bucket, r key.EncodedRange, visit func(nk, v []byte) error) error {
	c := records.Cursor()

	var nk, v []byte
	if seek := r.SeekTo(); seek != nil {
		nk, v = c.Seek(seek)
	} else {
		nk, v = c.First()
	}

	for ; nk != nil; nk, v = c.Next() {
		if r.Beyond(nk) {
			return nil
		}
		if !r.Contains(nk) {
			continue
		}
		if err := visit(nk, v); err != nil {
			return err
		}
	}
	return nil
}

// cloned copies bytes out of bbolt-owned memory, which is only valid for
// the lifetime of the transaction.
func cloned(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

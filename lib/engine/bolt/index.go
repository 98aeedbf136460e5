package bolt

import (
	"bytes"
	"fmt"

	"github.com/JonasWeidner/oDB/lib/engine"
	"github.com/JonasWeidner/oDB/lib/key"
	bbolt "go.etcd.io/bbolt"
)

// --------------------------------------------------------------------------
// Index Entry Maintenance
// --------------------------------------------------------------------------

// Index entries live in one bucket per index. The entry key is the encoded
// index key followed by the encoded primary key (both self-delimiting), the
// entry value is the encoded primary key alone. Bytewise order over entry
// keys is therefore (index key, primary key) order, which is exactly the
// scan order index reads must produce.

// addIndexEntries indexes one record under def. Shared between live writes
// and the backfill run by CreateIndex.
func addIndexEntries(idx *bbolt.Bucket, def engine.IndexDef, primary, value []byte) error {
	for _, ik := range extractIndexKeys(value, def) {
		encIk, err := key.Encode(ik)
		if err != nil {
			return fmt.Errorf("bolt: encode index key for %q: %w", def.Name, err)
		}
		if def.Unique {
			if err := checkUnique(idx, def.Name, encIk, primary); err != nil {
				return err
			}
		}
		entry := append(append([]byte{}, encIk...), primary...)
		if err := idx.Put(entry, primary); err != nil {
			return fmt.Errorf("bolt: write index entry for %q: %w", def.Name, err)
		}
	}
	return nil
}

// removeIndexEntries drops the entries the given record contributed.
func removeIndexEntries(idx *bbolt.Bucket, def engine.IndexDef, primary, value []byte) error {
	for _, ik := range extractIndexKeys(value, def) {
		encIk, err := key.Encode(ik)
		if err != nil {
			return fmt.Errorf("bolt: encode index key for %q: %w", def.Name, err)
		}
		entry := append(append([]byte{}, encIk...), primary...)
		if err := idx.Delete(entry); err != nil {
			return fmt.Errorf("bolt: delete index entry for %q: %w", def.Name, err)
		}
	}
	return nil
}

// checkUnique fails with engine.ErrKeyExists if another record already
// holds an entry for the same index key.
func checkUnique(idx *bbolt.Bucket, indexName string, encIk, primary []byte) error {
	c := idx.Cursor()
	for ek, pv := c.Seek(encIk); ek != nil; ek, pv = c.Next() {
		part, err := splitEntryKey(ek)
		if err != nil {
			return err
		}
		if !bytes.Equal(part, encIk) {
			return nil
		}
		if !bytes.Equal(pv, primary) {
			return fmt.Errorf("bolt: unique index %q: %w", indexName, engine.ErrKeyExists)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Index Scans
// --------------------------------------------------------------------------

// scanIndex walks the index entries falling into r in ascending (index
// key, primary key) order and calls visit with each entry's index key part
// and primary key.
func scanIndex(idx *bbolt.Bucket, r key.EncodedRange, visit func(encIk, primary []byte) error) error {
	c := idx.Cursor()

	var ek, pv []byte
	if seek := r.SeekTo(); seek != nil {
		ek, pv = c.Seek(seek)
	} else {
		ek, pv = c.First()
	}

	for ; ek != nil; ek, pv = c.Next() {
		encIk, err := splitEntryKey(ek)
		if err != nil {
			return err
		}
		if r.Beyond(encIk) {
			return nil
		}
		if !r.Contains(encIk) {
			continue
		}
		if err := visit(encIk, pv); err != nil {
			return err
		}
	}
	return nil
}

// splitEntryKey returns the index key portion of an entry key.
func splitEntryKey(entry []byte) ([]byte, error) {
	_, rest, err := key.Consume(entry)
	if err != nil {
		return nil, fmt.Errorf("bolt: corrupt index entry: %w", err)
	}
	return entry[:len(entry)-len(rest)], nil
}

// Package bolt implements the oDB storage engine contract on bbolt.
//
// Every database name maps to one bbolt file below the configured
// directory. Inside a file, three root buckets hold everything:
//
//	meta   - schema version and one JSON config document per collection
//	data   - one nested bucket per collection (native key -> raw value)
//	index  - one nested bucket per collection, containing one nested
//	         bucket per index (index key ++ primary key -> primary key)
//
// Record values are JSON documents. Inline key paths and index paths are
// dot-separated paths into the document; a path may resolve to a JSON
// string or number, or to a tagged wire key object for the remaining key
// variants (posix timestamps, compound keys).
//
// Each transaction is owned by a single worker goroutine that executes the
// queued requests in submission order against one bbolt transaction. The
// first failing request rolls the transaction back, which gives batch
// writes their all-or-nothing semantics.
package bolt

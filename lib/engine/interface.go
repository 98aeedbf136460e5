package engine

import (
	"github.com/JonasWeidner/oDB/lib/key"
)

// --------------------------------------------------------------------------
// Structural Types
// --------------------------------------------------------------------------

// Mode is the access mode of a transaction.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "readwrite"
	}
	return "readonly"
}

// KeyConfig is the policy governing how a record's primary key is
// determined. It is immutable once a collection has been created.
type KeyConfig uint8

const (
	// KeyExplicit keys are supplied by the caller on every write.
	KeyExplicit KeyConfig = iota
	// KeyInline keys are extracted by the engine from a path inside the
	// record value.
	KeyInline
	// KeyGenerated keys are produced by the engine's per-collection
	// auto-increment counter.
	KeyGenerated
)

func (c KeyConfig) String() string {
	switch c {
	case KeyExplicit:
		return "explicit"
	case KeyInline:
		return "inline"
	case KeyGenerated:
		return "generated"
	default:
		return "unknown"
	}
}

// IndexDef declares a secondary index over a path inside record values.
type IndexDef struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Unique     bool   `json:"unique"`
	MultiEntry bool   `json:"multi_entry"`
}

// CollectionConfig is the stored structural description of one collection.
type CollectionConfig struct {
	Name    string     `json:"name"`
	Key     KeyConfig  `json:"key"`
	KeyPath string     `json:"key_path,omitempty"`
	Indexes []IndexDef `json:"indexes,omitempty"`
}

// SameKeyConfig reports whether two configs agree on how records are keyed.
// Index definitions are not part of the comparison; they are reconciled
// separately.
func (c CollectionConfig) SameKeyConfig(other CollectionConfig) bool {
	return c.Key == other.Key && c.KeyPath == other.KeyPath
}

// Record pairs a native key with its raw value.
type Record struct {
	Key   []byte
	Value []byte
}

// --------------------------------------------------------------------------
// Engine Interface
// --------------------------------------------------------------------------

// Engine manages named databases within one storage location.
type Engine interface {
	// Open opens (or creates) the named database at the given schema
	// version. If version exceeds the stored version, upgrade is invoked
	// inside a single writable upgrade transaction; if upgrade returns an
	// error the transaction is rolled back and no structural change is
	// persisted. A version below the stored one is an error.
	Open(name string, version uint64, upgrade func(UpgradeTxn) error) (Connection, error)

	// DeleteDatabase removes the named database and all of its data.
	// Deleting a database that does not exist is not an error.
	DeleteDatabase(name string) error
}

// Connection is a live handle to one opened database.
type Connection interface {
	// Name returns the database name.
	Name() string

	// Version returns the stored schema version.
	Version() uint64

	// CollectionConfig returns the stored config of a collection.
	CollectionConfig(collection string) (CollectionConfig, bool)

	// Begin opens a transaction scoped to exactly one collection.
	Begin(collection string, mode Mode) (Txn, error)

	// Close releases the connection. In-flight transactions settle first.
	Close() error
}

// UpgradeTxn is the structural surface available inside an upgrade
// transaction. All mutations become durable only if the upgrade callback
// returns nil.
type UpgradeTxn interface {
	// StoredVersion returns the version on disk before this upgrade.
	StoredVersion() uint64

	// Collections lists the names of all existing collections.
	Collections() []string

	// CollectionConfig returns the stored config of an existing collection.
	CollectionConfig(name string) (CollectionConfig, bool)

	// CreateCollection creates a collection with the given key
	// configuration. Declared indexes are created separately via
	// CreateIndex.
	CreateCollection(cfg CollectionConfig) error

	// DeleteCollection drops a collection with all its data and indexes.
	DeleteCollection(name string) error

	// Indexes lists the index names of an existing collection.
	Indexes(collection string) ([]string, error)

	// CreateIndex creates an index and backfills it from existing records.
	CreateIndex(collection string, def IndexDef) error

	// DeleteIndex drops an index.
	DeleteIndex(collection, index string) error
}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

// Txn is a transaction scoped to one collection. Operations return
// immediately with a pending Request; requests are executed in submission
// order. The first failing request aborts the whole transaction: its
// changes are rolled back, later requests settle with the abort error and
// Done fires with Err set to the first failure.
//
// Commit signals that no further requests follow. Done fires exactly once,
// after every issued request has settled and the transaction has either
// committed or rolled back.
type Txn interface {
	// Mode returns the access mode the transaction was opened with.
	Mode() Mode

	// Get resolves to the raw value for a native key, or nil if absent.
	Get(k []byte) *Request

	// GetAll resolves to []Record for all records in the range, in
	// ascending native key order.
	GetAll(r key.EncodedRange) *Request

	// GetAllKeys resolves to [][]byte of native keys in the range.
	GetAllKeys(r key.EncodedRange) *Request

	// Count resolves to the uint64 number of records in the range.
	Count(r key.EncodedRange) *Request

	// Put upserts a record and resolves to the effective native key.
	// A nil k asks the engine to derive the key (inline path extraction
	// or the auto-increment counter, per the collection's key config).
	Put(k []byte, value []byte) *Request

	// Add inserts a record and resolves to the effective native key,
	// failing with ErrKeyExists if the key is already present.
	Add(k []byte, value []byte) *Request

	// Delete removes the record with the given native key. Deleting an
	// absent key is not an error.
	Delete(k []byte) *Request

	// DeleteRange removes every record in the range.
	DeleteRange(r key.EncodedRange) *Request

	// Clear removes every record in the collection.
	Clear() *Request

	// IndexGetAll resolves to []Record of the primary records whose index
	// entry falls in the range, ordered by index key.
	IndexGetAll(index string, r key.EncodedRange) *Request

	// IndexGetKeys resolves to [][]byte of primary native keys, ordered
	// by index key.
	IndexGetKeys(index string, r key.EncodedRange) *Request

	// IndexCount resolves to the uint64 number of index entries in range.
	IndexCount(index string, r key.EncodedRange) *Request

	// Commit closes the request queue and settles the transaction.
	Commit()

	// Done fires after the transaction has committed or rolled back.
	Done() <-chan struct{}

	// Err returns the abort cause, or nil after a clean commit. Only
	// valid after Done has fired.
	Err() error
}

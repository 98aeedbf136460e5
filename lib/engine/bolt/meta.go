package bolt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/JonasWeidner/oDB/lib/engine"
	bbolt "go.etcd.io/bbolt"
)

// --------------------------------------------------------------------------
// Bucket Layout
// --------------------------------------------------------------------------

var (
	bucketMeta        = []byte("meta")
	bucketCollections = []byte("collections")
	bucketData        = []byte("data")
	bucketIndex       = []byte("index")

	keyVersion = []byte("version")
)

// ensureRootBuckets creates the three root buckets of a database file.
func ensureRootBuckets(tx *bbolt.Tx) error {
	meta, err := tx.CreateBucketIfNotExists(bucketMeta)
	if err != nil {
		return fmt.Errorf("bolt: create meta bucket: %w", err)
	}
	if _, err := meta.CreateBucketIfNotExists(bucketCollections); err != nil {
		return fmt.Errorf("bolt: create collections bucket: %w", err)
	}
	if _, err := tx.CreateBucketIfNotExists(bucketData); err != nil {
		return fmt.Errorf("bolt: create data bucket: %w", err)
	}
	if _, err := tx.CreateBucketIfNotExists(bucketIndex); err != nil {
		return fmt.Errorf("bolt: create index bucket: %w", err)
	}
	return nil
}

func readVersion(db *bbolt.DB) (uint64, error) {
	var version uint64
	err := db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return nil // fresh file
		}
		if raw := meta.Get(keyVersion); len(raw) == 8 {
			version = binary.BigEndian.Uint64(raw)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("bolt: read stored version: %w", err)
	}
	return version, nil
}

func readConfigs(db *bbolt.DB) (map[string]engine.CollectionConfig, error) {
	configs := make(map[string]engine.CollectionConfig)
	err := db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return nil
		}
		cols := meta.Bucket(bucketCollections)
		if cols == nil {
			return nil
		}
		return cols.ForEach(func(name, raw []byte) error {
			var cfg engine.CollectionConfig
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return fmt.Errorf("bolt: corrupt config for collection %q: %w", name, err)
			}
			configs[string(name)] = cfg
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return configs, nil
}

// --------------------------------------------------------------------------
// Upgrade Transaction
// --------------------------------------------------------------------------

// upgradeTxn exposes the structural surface of one writable bbolt
// transaction. All mutations keep the in-memory config map and the meta
// bucket in agreement; rollback discards both together with the data.
type upgradeTxn struct {
	tx      *bbolt.Tx
	stored  uint64
	configs map[string]engine.CollectionConfig
}

func newUpgradeTxn(tx *bbolt.Tx, stored uint64) (*upgradeTxn, error) {
	if err := ensureRootBuckets(tx); err != nil {
		return nil, err
	}
	configs := make(map[string]engine.CollectionConfig)
	cols := tx.Bucket(bucketMeta).Bucket(bucketCollections)
	err := cols.ForEach(func(name, raw []byte) error {
		var cfg engine.CollectionConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("bolt: corrupt config for collection %q: %w", name, err)
		}
		configs[string(name)] = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &upgradeTxn{tx: tx, stored: stored, configs: configs}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see engine.UpgradeTxn)
// --------------------------------------------------------------------------

func (u *upgradeTxn) StoredVersion() uint64 {
	return u.stored
}

func (u *upgradeTxn) Collections() []string {
	names := make([]string, 0, len(u.configs))
	for name := range u.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (u *upgradeTxn) CollectionConfig(name string) (engine.CollectionConfig, bool) {
	cfg, ok := u.configs[name]
	return cfg, ok
}

func (u *upgradeTxn) CreateCollection(cfg engine.CollectionConfig) error {
	if _, exists := u.configs[cfg.Name]; exists {
		return fmt.Errorf("bolt: collection %q already exists", cfg.Name)
	}
	if _, err := u.tx.Bucket(bucketData).CreateBucket([]byte(cfg.Name)); err != nil {
		return fmt.Errorf("bolt: create collection %q: %w", cfg.Name, err)
	}
	if _, err := u.tx.Bucket(bucketIndex).CreateBucket([]byte(cfg.Name)); err != nil {
		return fmt.Errorf("bolt: create index space for %q: %w", cfg.Name, err)
	}
	cfg.Indexes = nil // indexes are reconciled one by one
	return u.putConfig(cfg)
}

func (u *upgradeTxn) DeleteCollection(name string) error {
	if _, exists := u.configs[name]; !exists {
		return fmt.Errorf("bolt: no such collection %q", name)
	}
	if err := u.tx.Bucket(bucketData).DeleteBucket([]byte(name)); err != nil {
		return fmt.Errorf("bolt: drop collection %q: %w", name, err)
	}
	if err := u.tx.Bucket(bucketIndex).DeleteBucket([]byte(name)); err != nil {
		return fmt.Errorf("bolt: drop index space for %q: %w", name, err)
	}
	if err := u.tx.Bucket(bucketMeta).Bucket(bucketCollections).Delete([]byte(name)); err != nil {
		return fmt.Errorf("bolt: drop config for %q: %w", name, err)
	}
	delete(u.configs, name)
	return nil
}

func (u *upgradeTxn) Indexes(collection string) ([]string, error) {
	cfg, ok := u.configs[collection]
	if !ok {
		return nil, fmt.Errorf("bolt: no such collection %q", collection)
	}
	names := make([]string, 0, len(cfg.Indexes))
	for _, def := range cfg.Indexes {
		names = append(names, def.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (u *upgradeTxn) CreateIndex(collection string, def engine.IndexDef) error {
	cfg, ok := u.configs[collection]
	if !ok {
		return fmt.Errorf("bolt: no such collection %q", collection)
	}
	for _, existing := range cfg.Indexes {
		if existing.Name == def.Name {
			return fmt.Errorf("bolt: index %q already exists on %q", def.Name, collection)
		}
	}

	space := u.tx.Bucket(bucketIndex).Bucket([]byte(collection))
	idx, err := space.CreateBucket([]byte(def.Name))
	if err != nil {
		return fmt.Errorf("bolt: create index %q on %q: %w", def.Name, collection, err)
	}

	// backfill from existing records
	records := u.tx.Bucket(bucketData).Bucket([]byte(collection))
	err = records.ForEach(func(nk, value []byte) error {
		return addIndexEntries(idx, def, nk, value)
	})
	if err != nil {
		return err
	}

	cfg.Indexes = append(cfg.Indexes, def)
	return u.putConfig(cfg)
}

func (u *upgradeTxn) DeleteIndex(collection, index string) error {
	cfg, ok := u.configs[collection]
	if !ok {
		return fmt.Errorf("bolt: no such collection %q", collection)
	}
	kept := cfg.Indexes[:0]
	found := false
	for _, def := range cfg.Indexes {
		if def.Name == index {
			found = true
			continue
		}
		kept = append(kept, def)
	}
	if !found {
		return fmt.Errorf("bolt: no such index %q on %q", index, collection)
	}
	if err := u.tx.Bucket(bucketIndex).Bucket([]byte(collection)).DeleteBucket([]byte(index)); err != nil {
		return fmt.Errorf("bolt: drop index %q on %q: %w", index, collection, err)
	}
	cfg.Indexes = kept
	return u.putConfig(cfg)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (u *upgradeTxn) putConfig(cfg engine.CollectionConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("bolt: marshal config for %q: %w", cfg.Name, err)
	}
	if err := u.tx.Bucket(bucketMeta).Bucket(bucketCollections).Put([]byte(cfg.Name), raw); err != nil {
		return fmt.Errorf("bolt: store config for %q: %w", cfg.Name, err)
	}
	u.configs[cfg.Name] = cfg
	return nil
}

// finish persists the new schema version. Called after the upgrade callback
// succeeded, still inside the upgrade transaction.
func (u *upgradeTxn) finish(version uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], version)
	if err := u.tx.Bucket(bucketMeta).Put(keyVersion, buf[:]); err != nil {
		return fmt.Errorf("bolt: store version: %w", err)
	}
	return nil
}

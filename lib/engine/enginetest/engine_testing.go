package enginetest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/JonasWeidner/oDB/lib/engine"
	"github.com/JonasWeidner/oDB/lib/key"
)

// EngineFactory creates a fresh, empty engine instance for one test.
type EngineFactory func(t testing.TB) engine.Engine

// RunEngineTests runs the conformance suite for an engine implementation.
func RunEngineTests(t *testing.T, name string, factory EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("OpenCreatesCollections", func(t *testing.T) { testOpenCreates(t, factory(t)) })
		t.Run("VersionDowngrade", func(t *testing.T) { testVersionDowngrade(t, factory(t)) })
		t.Run("UpgradeRollback", func(t *testing.T) { testUpgradeRollback(t, factory(t)) })
		t.Run("PutGetDelete", func(t *testing.T) { testPutGetDelete(t, factory(t)) })
		t.Run("AddConflict", func(t *testing.T) { testAddConflict(t, factory(t)) })
		t.Run("InlineKeyExtraction", func(t *testing.T) { testInlineKey(t, factory(t)) })
		t.Run("GeneratedKeys", func(t *testing.T) { testGeneratedKeys(t, factory(t)) })
		t.Run("RangeScans", func(t *testing.T) { testRangeScans(t, factory(t)) })
		t.Run("BatchAbort", func(t *testing.T) { testBatchAbort(t, factory(t)) })
		t.Run("IndexScans", func(t *testing.T) { testIndexScans(t, factory(t)) })
		t.Run("UniqueIndex", func(t *testing.T) { testUniqueIndex(t, factory(t)) })
		t.Run("MultiEntryIndex", func(t *testing.T) { testMultiEntryIndex(t, factory(t)) })
		t.Run("ReadonlyWriteFails", func(t *testing.T) { testReadonlyWrite(t, factory(t)) })
		t.Run("InactiveTxn", func(t *testing.T) { testInactiveTxn(t, factory(t)) })
		t.Run("DeleteDatabase", func(t *testing.T) { testDeleteDatabase(t, factory(t)) })
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// openWith opens a database and reconciles it to the given collections by
// hand (the schema reconciler proper lives above the engine boundary).
func openWith(t testing.TB, e engine.Engine, name string, version uint64, cfgs ...engine.CollectionConfig) engine.Connection {
	t.Helper()

	conn, err := e.Open(name, version, func(up engine.UpgradeTxn) error {
		for _, cfg := range cfgs {
			indexes := cfg.Indexes
			cfg.Indexes = nil
			if _, exists := up.CollectionConfig(cfg.Name); !exists {
				if err := up.CreateCollection(cfg); err != nil {
					return err
				}
			}
			for _, def := range indexes {
				if err := up.CreateIndex(cfg.Name, def); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Open(%q, %d) failed: %v", name, version, err)
	}
	return conn
}

// inTxn runs issue inside one transaction, commits, and returns the
// transaction error.
func inTxn(t testing.TB, conn engine.Connection, collection string, mode engine.Mode, issue func(txn engine.Txn)) error {
	t.Helper()

	txn, err := conn.Begin(collection, mode)
	if err != nil {
		t.Fatalf("Begin(%q, %v) failed: %v", collection, mode, err)
	}
	issue(txn)
	txn.Commit()
	<-txn.Done()
	return txn.Err()
}

func mustEncode(t testing.TB, k key.Key) []byte {
	t.Helper()
	enc, err := key.Encode(k)
	if err != nil {
		t.Fatalf("Encode(%v) failed: %v", k, err)
	}
	return enc
}

func putOne(t testing.TB, conn engine.Connection, collection string, k key.Key, value string) {
	t.Helper()
	var nk []byte
	if k != nil {
		nk = mustEncode(t, k)
	}
	err := inTxn(t, conn, collection, engine.ReadWrite, func(txn engine.Txn) {
		txn.Put(nk, []byte(value))
	})
	if err != nil {
		t.Fatalf("put %v failed: %v", k, err)
	}
}

func getOne(t testing.TB, conn engine.Connection, collection string, k key.Key) []byte {
	t.Helper()
	var req *engine.Request
	err := inTxn(t, conn, collection, engine.ReadOnly, func(txn engine.Txn) {
		req = txn.Get(mustEncode(t, k))
	})
	if err != nil {
		t.Fatalf("get %v failed: %v", k, err)
	}
	if v, _ := req.Await(); v != nil {
		return v.([]byte)
	}
	return nil
}

func explicitCfg(name string) engine.CollectionConfig {
	return engine.CollectionConfig{Name: name, Key: engine.KeyExplicit}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testOpenCreates(t *testing.T, e engine.Engine) {
	conn := openWith(t, e, "testdb", 1,
		explicitCfg("alpha"),
		engine.CollectionConfig{Name: "beta", Key: engine.KeyInline, KeyPath: "id"},
	)
	defer conn.Close()

	if conn.Version() != 1 {
		t.Errorf("expected version 1, got %d", conn.Version())
	}
	cfg, ok := conn.CollectionConfig("beta")
	if !ok {
		t.Fatal("expected collection beta to exist")
	}
	if cfg.Key != engine.KeyInline || cfg.KeyPath != "id" {
		t.Errorf("unexpected stored config %+v", cfg)
	}
	if _, ok := conn.CollectionConfig("missing"); ok {
		t.Error("unexpected config for undeclared collection")
	}
}

func testVersionDowngrade(t *testing.T, e engine.Engine) {
	conn := openWith(t, e, "testdb", 3, explicitCfg("alpha"))
	conn.Close()

	if _, err := e.Open("testdb", 2, func(engine.UpgradeTxn) error { return nil }); err == nil {
		t.Error("expected error opening below the stored version")
	}
}

func testUpgradeRollback(t *testing.T, e engine.Engine) {
	boom := errors.New("upgrade rejected")
	_, err := e.Open("testdb", 1, func(up engine.UpgradeTxn) error {
		if err := up.CreateCollection(explicitCfg("alpha")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected upgrade error, got %v", err)
	}

	// nothing persisted: the next open still sees stored version 0
	var sawStored uint64 = 99
	conn, err := e.Open("testdb", 1, func(up engine.UpgradeTxn) error {
		sawStored = up.StoredVersion()
		if len(up.Collections()) != 0 {
			t.Errorf("expected no collections after rollback, got %v", up.Collections())
		}
		return up.CreateCollection(explicitCfg("alpha"))
	})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer conn.Close()

	if sawStored != 0 {
		t.Errorf("expected stored version 0 after rollback, got %d", sawStored)
	}
}

func testPutGetDelete(t *testing.T, e engine.Engine) {
	conn := openWith(t, e, "testdb", 1, explicitCfg("alpha"))
	defer conn.Close()

	putOne(t, conn, "alpha", key.String("k1"), `{"n":1}`)

	if got := getOne(t, conn, "alpha", key.String("k1")); !bytes.Equal(got, []byte(`{"n":1}`)) {
		t.Errorf("unexpected value %s", got)
	}
	if got := getOne(t, conn, "alpha", key.String("nope")); got != nil {
		t.Errorf("expected absent key to read as nil, got %s", got)
	}

	err := inTxn(t, conn, "alpha", engine.ReadWrite, func(txn engine.Txn) {
		txn.Delete(mustEncode(t, key.String("k1")))
	})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if got := getOne(t, conn, "alpha", key.String("k1")); got != nil {
		t.Errorf("expected deleted key to read as nil, got %s", got)
	}

	// deleting an absent key is not an error
	err = inTxn(t, conn, "alpha", engine.ReadWrite, func(txn engine.Txn) {
		txn.Delete(mustEncode(t, key.String("k1")))
	})
	if err != nil {
		t.Errorf("deleting absent key failed: %v", err)
	}
}

func testAddConflict(t *testing.T, e engine.Engine) {
	conn := openWith(t, e, "testdb", 1, explicitCfg("alpha"))
	defer conn.Close()

	putOne(t, conn, "alpha", key.Int(1), `{"v":"old"}`)

	err := inTxn(t, conn, "alpha", engine.ReadWrite, func(txn engine.Txn) {
		txn.Add(mustEncode(t, key.Int(1)), []byte(`{"v":"new"}`))
	})
	if !errors.Is(err, engine.ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}

	if got := getOne(t, conn, "alpha", key.Int(1)); !bytes.Equal(got, []byte(`{"v":"old"}`)) {
		t.Errorf("conflicting add must not overwrite, got %s", got)
	}
}

func testInlineKey(t *testing.T, e engine.Engine) {
	conn := openWith(t, e, "testdb", 1,
		engine.CollectionConfig{Name: "todos", Key: engine.KeyInline, KeyPath: "id"})
	defer conn.Close()

	var req *engine.Request
	err := inTxn(t, conn, "todos", engine.ReadWrite, func(txn engine.Txn) {
		req = txn.Add(nil, []byte(`{"id":1,"text":"a"}`))
	})
	if err != nil {
		t.Fatalf("inline add failed: %v", err)
	}
	var reported []byte
	if v, _ := req.Await(); v != nil {
		reported = v.([]byte)
	}
	if !bytes.Equal(reported, mustEncode(t, key.Int(1))) {
		t.Errorf("expected reported key Int(1), got %x", reported)
	}

	if got := getOne(t, conn, "todos", key.Int(1)); !bytes.Equal(got, []byte(`{"id":1,"text":"a"}`)) {
		t.Errorf("unexpected value %s", got)
	}

	// missing key path is a structural failure
	err = inTxn(t, conn, "todos", engine.ReadWrite, func(txn engine.Txn) {
		txn.Add(nil, []byte(`{"text":"keyless"}`))
	})
	if err == nil {
		t.Error("expected error for value without key path")
	}
}

func testGeneratedKeys(t *testing.T, e engine.Engine) {
	conn := openWith(t, e, "testdb", 1,
		engine.CollectionConfig{Name: "events", Key: engine.KeyGenerated})
	defer conn.Close()

	var reqs []*engine.Request
	err := inTxn(t, conn, "events", engine.ReadWrite, func(txn engine.Txn) {
		reqs = []*engine.Request{
			txn.Add(nil, []byte(`{"n":1}`)),
			txn.Add(nil, []byte(`{"n":2}`)),
			txn.Add(nil, []byte(`{"n":3}`)),
		}
	})
	if err != nil {
		t.Fatalf("generated adds failed: %v", err)
	}
	var keys [][]byte
	for _, req := range reqs {
		if v, _ := req.Await(); v != nil {
			keys = append(keys, v.([]byte))
		}
	}

	if len(keys) != 3 {
		t.Fatalf("expected 3 generated keys, got %d", len(keys))
	}
	for i, nk := range keys {
		dec, err := key.Decode(nk)
		if err != nil {
			t.Fatalf("decode generated key: %v", err)
		}
		if !key.Equal(dec, key.Int(int64(i+1))) {
			t.Errorf("expected generated key %d, got %v", i+1, dec)
		}
	}
}

func testRangeScans(t *testing.T, e engine.Engine) {
	conn := openWith(t, e, "testdb", 1, explicitCfg("alpha"))
	defer conn.Close()

	for i := 1; i <= 9; i++ {
		putOne(t, conn, "alpha", key.Int(int64(i)), fmt.Sprintf(`{"n":%d}`, i))
	}

	bound, err := key.Bound(key.Int(3), key.Int(7), false, true)
	if err != nil {
		t.Fatalf("Bound failed: %v", err)
	}
	encRange, err := key.EncodeRange(bound)
	if err != nil {
		t.Fatalf("EncodeRange failed: %v", err)
	}

	var all, cnt *engine.Request
	err = inTxn(t, conn, "alpha", engine.ReadOnly, func(txn engine.Txn) {
		all = txn.GetAll(encRange)
		cnt = txn.Count(encRange)
	})
	if err != nil {
		t.Fatalf("range scan failed: %v", err)
	}
	var (
		records []engine.Record
		count   uint64
	)
	if v, _ := all.Await(); v != nil {
		records = v.([]engine.Record)
	}
	if v, _ := cnt.Await(); v != nil {
		count = v.(uint64)
	}

	if count != 4 {
		t.Errorf("expected count 4 for [3,7), got %d", count)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	for i, rec := range records {
		dec, err := key.Decode(rec.Key)
		if err != nil {
			t.Fatalf("decode scanned key: %v", err)
		}
		if !key.Equal(dec, key.Int(int64(i+3))) {
			t.Errorf("expected ascending key %d, got %v", i+3, dec)
		}
	}
}

func testBatchAbort(t *testing.T, e engine.Engine) {
	conn := openWith(t, e, "testdb", 1, explicitCfg("alpha"))
	defer conn.Close()

	putOne(t, conn, "alpha", key.Int(3), `{"existing":true}`)

	// the 3rd of 6 adds collides; nothing of the batch may survive
	err := inTxn(t, conn, "alpha", engine.ReadWrite, func(txn engine.Txn) {
		for i := 1; i <= 6; i++ {
			txn.Add(mustEncode(t, key.Int(int64(i))), []byte(`{"batch":true}`))
		}
	})
	if !errors.Is(err, engine.ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists abort, got %v", err)
	}

	var req *engine.Request
	err = inTxn(t, conn, "alpha", engine.ReadOnly, func(txn engine.Txn) {
		req = txn.Count(key.EncodedRange{})
	})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	var count uint64
	if v, _ := req.Await(); v != nil {
		count = v.(uint64)
	}
	if count != 1 {
		t.Errorf("expected only the pre-existing record after abort, got %d", count)
	}
}

func testIndexScans(t *testing.T, e engine.Engine) {
	conn := openWith(t, e, "testdb", 1,
		engine.CollectionConfig{
			Name: "events", Key: engine.KeyGenerated,
			Indexes: []engine.IndexDef{{Name: "by_ts", Path: "at"}},
		})
	defer conn.Close()

	// insert out of chronological order
	for _, ts := range []int64{300, 100, 200} {
		err := inTxn(t, conn, "events", engine.ReadWrite, func(txn engine.Txn) {
			txn.Add(nil, []byte(fmt.Sprintf(`{"at":{"type":"posix","value":%d}}`, ts)))
		})
		if err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	bound, err := key.Bound(key.Time(100), key.Time(300), false, false)
	if err != nil {
		t.Fatalf("Bound failed: %v", err)
	}
	encRange, err := key.EncodeRange(bound)
	if err != nil {
		t.Fatalf("EncodeRange failed: %v", err)
	}

	var scan *engine.Request
	err = inTxn(t, conn, "events", engine.ReadOnly, func(txn engine.Txn) {
		scan = txn.IndexGetAll("by_ts", encRange)
	})
	if err != nil {
		t.Fatalf("index scan failed: %v", err)
	}
	var records []engine.Record
	if v, _ := scan.Await(); v != nil {
		records = v.([]engine.Record)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	var prev int64 = -1
	for _, rec := range records {
		var doc struct {
			At struct {
				Value int64 `json:"value"`
			} `json:"at"`
		}
		if err := json.Unmarshal(rec.Value, &doc); err != nil {
			t.Fatalf("unmarshal record: %v", err)
		}
		if doc.At.Value <= prev {
			t.Errorf("index scan not in ascending timestamp order: %d after %d", doc.At.Value, prev)
		}
		prev = doc.At.Value
	}

	// exact match on the middle timestamp
	encOnly, err := key.EncodeRange(key.Only(key.Time(200)))
	if err != nil {
		t.Fatalf("EncodeRange failed: %v", err)
	}
	var onlyReq *engine.Request
	err = inTxn(t, conn, "events", engine.ReadOnly, func(txn engine.Txn) {
		onlyReq = txn.IndexGetAll("by_ts", encOnly)
	})
	if err != nil {
		t.Fatalf("index only scan failed: %v", err)
	}
	var only []engine.Record
	if v, _ := onlyReq.Await(); v != nil {
		only = v.([]engine.Record)
	}
	if len(only) != 1 {
		t.Errorf("expected exactly the middle record, got %d", len(only))
	}

	// unknown index name fails
	err = inTxn(t, conn, "events", engine.ReadOnly, func(txn engine.Txn) {
		txn.IndexCount("nope", key.EncodedRange{})
	})
	if err == nil {
		t.Error("expected error for unknown index")
	}
}

func testUniqueIndex(t *testing.T, e engine.Engine) {
	conn := openWith(t, e, "testdb", 1,
		engine.CollectionConfig{
			Name: "users", Key: engine.KeyGenerated,
			Indexes: []engine.IndexDef{{Name: "by_mail", Path: "mail", Unique: true}},
		})
	defer conn.Close()

	err := inTxn(t, conn, "users", engine.ReadWrite, func(txn engine.Txn) {
		txn.Add(nil, []byte(`{"mail":"a@example.org"}`))
	})
	if err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	err = inTxn(t, conn, "users", engine.ReadWrite, func(txn engine.Txn) {
		txn.Add(nil, []byte(`{"mail":"a@example.org"}`))
	})
	if !errors.Is(err, engine.ErrKeyExists) {
		t.Errorf("expected ErrKeyExists on unique index collision, got %v", err)
	}
}

func testMultiEntryIndex(t *testing.T, e engine.Engine) {
	conn := openWith(t, e, "testdb", 1,
		engine.CollectionConfig{
			Name: "posts", Key: engine.KeyGenerated,
			Indexes: []engine.IndexDef{{Name: "by_tag", Path: "tags", MultiEntry: true}},
		})
	defer conn.Close()

	err := inTxn(t, conn, "posts", engine.ReadWrite, func(txn engine.Txn) {
		txn.Add(nil, []byte(`{"tags":["go","db"]}`))
		txn.Add(nil, []byte(`{"tags":["db"]}`))
	})
	if err != nil {
		t.Fatalf("adds failed: %v", err)
	}

	encOnly, err := key.EncodeRange(key.Only(key.String("db")))
	if err != nil {
		t.Fatalf("EncodeRange failed: %v", err)
	}
	var req *engine.Request
	err = inTxn(t, conn, "posts", engine.ReadOnly, func(txn engine.Txn) {
		req = txn.IndexCount("by_tag", encOnly)
	})
	if err != nil {
		t.Fatalf("index count failed: %v", err)
	}
	var count uint64
	if v, _ := req.Await(); v != nil {
		count = v.(uint64)
	}
	if count != 2 {
		t.Errorf("expected 2 entries for tag db, got %d", count)
	}
}

func testReadonlyWrite(t *testing.T, e engine.Engine) {
	conn := openWith(t, e, "testdb", 1, explicitCfg("alpha"))
	defer conn.Close()

	err := inTxn(t, conn, "alpha", engine.ReadOnly, func(txn engine.Txn) {
		txn.Put(mustEncode(t, key.Int(1)), []byte(`{}`))
	})
	if err == nil {
		t.Error("expected write on readonly transaction to fail")
	}
}

func testInactiveTxn(t *testing.T, e engine.Engine) {
	conn := openWith(t, e, "testdb", 1, explicitCfg("alpha"))
	defer conn.Close()

	txn, err := conn.Begin("alpha", engine.ReadOnly)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	txn.Commit()
	<-txn.Done()

	req := txn.Get(mustEncode(t, key.Int(1)))
	if _, err := req.Await(); !errors.Is(err, engine.ErrTxnInactive) {
		t.Errorf("expected ErrTxnInactive, got %v", err)
	}
}

func testDeleteDatabase(t *testing.T, e engine.Engine) {
	conn := openWith(t, e, "testdb", 1, explicitCfg("alpha"))
	putOne(t, conn, "alpha", key.Int(1), `{}`)
	conn.Close()

	if err := e.DeleteDatabase("testdb"); err != nil {
		t.Fatalf("DeleteDatabase failed: %v", err)
	}

	// a fresh open starts from scratch
	var sawStored uint64 = 99
	conn, err := e.Open("testdb", 1, func(up engine.UpgradeTxn) error {
		sawStored = up.StoredVersion()
		return up.CreateCollection(explicitCfg("alpha"))
	})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer conn.Close()
	if sawStored != 0 {
		t.Errorf("expected fresh database after delete, got stored version %d", sawStored)
	}

	// deleting a database that does not exist is fine
	if err := e.DeleteDatabase("never-existed"); err != nil {
		t.Errorf("deleting missing database failed: %v", err)
	}
}

package odb_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/JonasWeidner/oDB/lib/engine"
	"github.com/JonasWeidner/oDB/lib/engine/bolt"
	"github.com/JonasWeidner/oDB/lib/key"
	"github.com/JonasWeidner/oDB/lib/odb"
)

func newRegistry(t testing.TB) *odb.Registry {
	t.Helper()
	e, err := bolt.New(bolt.DefaultOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return odb.NewRegistry(e, nil)
}

func wantTag(t testing.TB, err error, tag odb.ErrorTag) {
	t.Helper()
	var e *odb.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *odb.Error, got %v (%T)", err, err)
	}
	if e.Tag != tag {
		t.Fatalf("expected tag %d, got %d (%v)", tag, e.Tag, err)
	}
}

// --------------------------------------------------------------------------
// Schema Validation
// --------------------------------------------------------------------------

func TestSchemaValidation(t *testing.T) {
	reg := newRegistry(t)

	tests := []struct {
		name   string
		schema odb.Schema
	}{
		{"empty database name", odb.Schema{Version: 1}},
		{"zero version", odb.Schema{Name: "db"}},
		{"duplicate collection", odb.Schema{Name: "db", Version: 1, Collections: []odb.Collection{
			{Name: "a", Key: engine.KeyExplicit},
			{Name: "a", Key: engine.KeyExplicit},
		}}},
		{"inline without path", odb.Schema{Name: "db", Version: 1, Collections: []odb.Collection{
			{Name: "a", Key: engine.KeyInline},
		}}},
		{"path on explicit", odb.Schema{Name: "db", Version: 1, Collections: []odb.Collection{
			{Name: "a", Key: engine.KeyExplicit, KeyPath: "id"},
		}}},
		{"duplicate index", odb.Schema{Name: "db", Version: 1, Collections: []odb.Collection{
			{Name: "a", Key: engine.KeyExplicit, Indexes: []engine.IndexDef{
				{Name: "i", Path: "x"},
				{Name: "i", Path: "y"},
			}},
		}}},
		{"index without path", odb.Schema{Name: "db", Version: 1, Collections: []odb.Collection{
			{Name: "a", Key: engine.KeyExplicit, Indexes: []engine.IndexDef{{Name: "i"}}},
		}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Open(tc.schema)
			if err == nil {
				t.Fatal("expected open to fail")
			}
			wantTag(t, err, odb.TagDatabaseError)
		})
	}
}

// --------------------------------------------------------------------------
// Inline Keys (todos scenario)
// --------------------------------------------------------------------------

func TestInlineKeyedCollection(t *testing.T) {
	reg := newRegistry(t)

	db, err := reg.Open(odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "todos", Key: engine.KeyInline, KeyPath: "id"},
		},
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	todos, err := db.Inline("todos")
	if err != nil {
		t.Fatalf("inline store failed: %v", err)
	}

	k, err := todos.Add([]byte(`{"id":1,"text":"a"}`))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !key.Equal(k, key.Int(1)) {
		t.Errorf("expected extracted key Int(1), got %v", k)
	}

	// same id again violates the primary key
	_, err = todos.Add([]byte(`{"id":1,"text":"b"}`))
	wantTag(t, err, odb.TagAlreadyExists)

	value, found, err := todos.Get(key.Int(1))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found || !bytes.Equal(value, []byte(`{"id":1,"text":"a"}`)) {
		t.Errorf("unexpected value %s (found=%v)", value, found)
	}

	if err := todos.Delete(key.Int(1)); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, found, err := todos.Get(key.Int(1)); err != nil || found {
		t.Errorf("expected deleted key to be absent without error, got found=%v err=%v", found, err)
	}
}

// --------------------------------------------------------------------------
// Generated Keys + Index (events scenario)
// --------------------------------------------------------------------------

func TestGeneratedKeysWithTimestampIndex(t *testing.T) {
	reg := newRegistry(t)

	db, err := reg.Open(odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "events", Key: engine.KeyGenerated, Indexes: []engine.IndexDef{
				{Name: "by_timestamp", Path: "ts"},
			}},
		},
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	events, err := db.Generated("events")
	if err != nil {
		t.Fatalf("generated store failed: %v", err)
	}

	t1, t2, t3 := key.Time(1000), key.Time(2000), key.Time(3000)
	event := func(ts key.Time, name string) []byte {
		return []byte(fmt.Sprintf(`{"ts":{"type":"posix","value":%d},"name":%q}`, int64(ts), name))
	}

	// inserted out of chronological order on purpose
	keys, err := events.InsertMany([][]byte{
		event(t2, "second"),
		event(t1, "first"),
		event(t3, "third"),
	})
	if err != nil {
		t.Fatalf("insertMany failed: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 generated keys, got %d", len(keys))
	}
	for i, k := range keys {
		if !key.Equal(k, key.Int(int64(i+1))) {
			t.Errorf("expected generated key %d at position %d, got %v", i+1, i, k)
		}
	}

	between, err := key.Bound(t1, t3, false, false)
	if err != nil {
		t.Fatalf("bound failed: %v", err)
	}
	records, err := events.GetByIndex("by_timestamp", between)
	if err != nil {
		t.Fatalf("getByIndex failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, name := range []string{"first", "second", "third"} {
		if !bytes.Contains(records[i].Value, []byte(name)) {
			t.Errorf("expected record %d to be %q, got %s", i, name, records[i].Value)
		}
	}

	middle, err := events.GetByIndex("by_timestamp", key.Only(t2))
	if err != nil {
		t.Fatalf("getByIndex only failed: %v", err)
	}
	if len(middle) != 1 || !bytes.Contains(middle[0].Value, []byte("second")) {
		t.Errorf("expected exactly the middle record, got %v", middle)
	}

	n, err := events.CountByIndex("by_timestamp", between)
	if err != nil || n != 3 {
		t.Errorf("expected index count 3, got %d (err=%v)", n, err)
	}

	_, err = events.GetByIndex("no_such_index", between)
	wantTag(t, err, odb.TagDatabaseError)
}

// --------------------------------------------------------------------------
// Batch Atomicity
// --------------------------------------------------------------------------

func TestBatchAtomicity(t *testing.T) {
	reg := newRegistry(t)

	db, err := reg.Open(odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "users", Key: engine.KeyGenerated, Indexes: []engine.IndexDef{
				{Name: "by_email", Path: "email", Unique: true},
			}},
		},
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	users, err := db.Generated("users")
	if err != nil {
		t.Fatalf("generated store failed: %v", err)
	}

	const n = 6
	values := make([][]byte, n)
	for i := range values {
		values[i] = []byte(fmt.Sprintf(`{"email":"user%d@example.com"}`, i))
	}
	values[n/2] = values[0] // unique index violation mid-batch

	_, err = users.InsertMany(values)
	wantTag(t, err, odb.TagAlreadyExists)

	// all-or-nothing: not even the records before the violation persisted
	count, err := users.Count(key.Range{})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty collection after aborted batch, got %d records", count)
	}
}

// --------------------------------------------------------------------------
// Migration
// --------------------------------------------------------------------------

func TestMigrationKeyConfigMismatch(t *testing.T) {
	reg := newRegistry(t)

	db, err := reg.Open(odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "items", Key: engine.KeyExplicit},
		},
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	items, err := db.Explicit("items")
	if err != nil {
		t.Fatalf("explicit store failed: %v", err)
	}
	if err := items.PutAt(key.String("a"), []byte(`{"v":1}`)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// redeclaring items with a different key configuration must fail
	_, err = reg.Open(odb.Schema{
		Name:    "app",
		Version: 2,
		Collections: []odb.Collection{
			{Name: "items", Key: engine.KeyInline, KeyPath: "id"},
		},
	})
	wantTag(t, err, odb.TagDatabaseError)

	// the failed upgrade left data and configuration unchanged
	db, err = reg.Open(odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "items", Key: engine.KeyExplicit},
		},
	})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	items, err = db.Explicit("items")
	if err != nil {
		t.Fatalf("explicit store failed: %v", err)
	}
	if _, found, err := items.Get(key.String("a")); err != nil || !found {
		t.Errorf("expected record to survive the failed migration, found=%v err=%v", found, err)
	}
}

func TestMigrationDropsUndeclaredCollections(t *testing.T) {
	reg := newRegistry(t)

	schema := func(version uint64, colls ...odb.Collection) odb.Schema {
		return odb.Schema{Name: "app", Version: version, Collections: colls}
	}
	keep := odb.Collection{Name: "keep", Key: engine.KeyExplicit}
	drop := odb.Collection{Name: "drop", Key: engine.KeyExplicit}

	db, err := reg.Open(schema(1, keep, drop))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	store, _ := db.Explicit("keep")
	if err := store.PutAt(key.Int(1), []byte(`{}`)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	db.Close()

	db, err = reg.Open(schema(2, keep))
	if err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}
	defer db.Close()

	if _, err := db.Explicit("drop"); err == nil {
		t.Error("expected dropped collection to be gone")
	}
	store, err = db.Explicit("keep")
	if err != nil {
		t.Fatalf("explicit store failed: %v", err)
	}
	if _, found, err := store.Get(key.Int(1)); err != nil || !found {
		t.Errorf("expected surviving collection to keep its data, found=%v err=%v", found, err)
	}
}

func TestSameVersionIsIdempotent(t *testing.T) {
	reg := newRegistry(t)

	schema := odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "items", Key: engine.KeyExplicit, Indexes: []engine.IndexDef{
				{Name: "by_tag", Path: "tag"},
			}},
		},
	}

	db, err := reg.Open(schema)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	items, _ := db.Explicit("items")
	if err := items.PutAt(key.Int(1), []byte(`{"tag":"x"}`)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	db.Close()

	db, err = reg.Open(schema)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	items, err = db.Explicit("items")
	if err != nil {
		t.Fatalf("explicit store failed: %v", err)
	}
	if _, found, err := items.Get(key.Int(1)); err != nil || !found {
		t.Errorf("expected data untouched by same-version open, found=%v err=%v", found, err)
	}
	if n, err := items.CountByIndex("by_tag", key.Only(key.String("x"))); err != nil || n != 1 {
		t.Errorf("expected index untouched by same-version open, got %d (err=%v)", n, err)
	}
}

// --------------------------------------------------------------------------
// Registry Guard
// --------------------------------------------------------------------------

func TestDoubleOpenConflict(t *testing.T) {
	reg := newRegistry(t)

	schema := odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "items", Key: engine.KeyExplicit},
		},
	}

	db, err := reg.Open(schema)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	defer db.Close()

	_, err = reg.Open(schema)
	wantTag(t, err, odb.TagDatabaseError)
}

func TestOperationsAfterClose(t *testing.T) {
	reg := newRegistry(t)

	db, err := reg.Open(odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "items", Key: engine.KeyExplicit},
		},
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	items, err := db.Explicit("items")
	if err != nil {
		t.Fatalf("explicit store failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	_, _, err = items.Get(key.Int(1))
	wantTag(t, err, odb.TagDatabaseError)

	if err := db.Close(); err == nil {
		t.Error("expected second close to fail")
	}
}

func TestDeleteDatabase(t *testing.T) {
	reg := newRegistry(t)

	db, err := reg.Open(odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "items", Key: engine.KeyExplicit},
		},
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	items, _ := db.Explicit("items")
	if err := items.PutAt(key.Int(1), []byte(`{}`)); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	// delete closes the open connection first
	if err := reg.DeleteDatabase("app"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	// deleting again is not an error
	if err := reg.DeleteDatabase("app"); err != nil {
		t.Errorf("deleting an absent database failed: %v", err)
	}

	// a fresh open starts from scratch
	db, err = reg.Open(odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "items", Key: engine.KeyExplicit},
		},
	})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()
	items, _ = db.Explicit("items")
	if n, err := items.Count(key.Range{}); err != nil || n != 0 {
		t.Errorf("expected empty database after delete, got %d (err=%v)", n, err)
	}
}

// --------------------------------------------------------------------------
// Capability Split
// --------------------------------------------------------------------------

func TestCapabilityMismatch(t *testing.T) {
	reg := newRegistry(t)

	db, err := reg.Open(odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "todos", Key: engine.KeyInline, KeyPath: "id"},
		},
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	if _, err := db.Explicit("todos"); err == nil {
		t.Error("expected explicit access to an inline collection to fail")
	} else {
		wantTag(t, err, odb.TagDatabaseError)
	}
	if _, err := db.Generated("todos"); err == nil {
		t.Error("expected generated access to an inline collection to fail")
	}
	if _, err := db.Inline("missing"); err == nil {
		t.Error("expected access to an unknown collection to fail")
	}
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

func TestRangeReads(t *testing.T) {
	reg := newRegistry(t)

	db, err := reg.Open(odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "items", Key: engine.KeyExplicit},
		},
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	items, _ := db.Explicit("items")
	records := make([]odb.Record, 5)
	for i := range records {
		records[i] = odb.Record{
			Key:   key.Int(int64(i + 1)),
			Value: []byte(fmt.Sprintf(`{"n":%d}`, i+1)),
		}
	}
	if err := items.PutManyAt(records); err != nil {
		t.Fatalf("putManyAt failed: %v", err)
	}

	between, err := key.Bound(key.Int(2), key.Int(4), false, true)
	if err != nil {
		t.Fatalf("bound failed: %v", err)
	}
	got, err := items.GetAllRecords(between)
	if err != nil {
		t.Fatalf("getAllRecords failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected keys 2 and 3, got %d records", len(got))
	}
	for i, want := range []int64{2, 3} {
		if !key.Equal(got[i].Key, key.Int(want)) {
			t.Errorf("expected key %d at position %d, got %v", want, i, got[i].Key)
		}
	}

	keys, err := items.GetAllKeys(key.LowerBound(key.Int(4), false))
	if err != nil {
		t.Fatalf("getAllKeys failed: %v", err)
	}
	if len(keys) != 2 || !key.Equal(keys[0], key.Int(4)) || !key.Equal(keys[1], key.Int(5)) {
		t.Errorf("unexpected keys %v", keys)
	}

	if err := items.DeleteMany(key.UpperBound(key.Int(3), false)); err != nil {
		t.Fatalf("deleteMany failed: %v", err)
	}
	if n, _ := items.Count(key.Range{}); n != 2 {
		t.Errorf("expected 2 records after deleteMany, got %d", n)
	}

	if err := items.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if n, _ := items.Count(key.Range{}); n != 0 {
		t.Errorf("expected empty collection after clear, got %d", n)
	}

	// mismatched bound variants fail before any engine call
	if _, err := key.Bound(key.Int(1), key.String("x"), false, false); err == nil {
		t.Error("expected mixed bound variants to fail")
	}
}

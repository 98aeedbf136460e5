package server

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/JonasWeidner/oDB/lib/engine"
	"github.com/JonasWeidner/oDB/lib/engine/bolt"
	"github.com/JonasWeidner/oDB/lib/key"
	"github.com/JonasWeidner/oDB/lib/odb"
	"github.com/JonasWeidner/oDB/rpc/common"
)

// newTestAdapter creates an adapter over a fresh bolt engine in a temp dir
func newTestAdapter(t *testing.T) IRPCServerAdapter {
	t.Helper()
	eng, err := bolt.New(bolt.DefaultOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return NewObjectStoreAdapter(odb.NewRegistry(eng, nil))
}

// openDatabase sends an Open request for the given schema and fails the test
// on any error
func openDatabase(t *testing.T, a IRPCServerAdapter, schema odb.Schema) {
	t.Helper()
	data, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("Failed to marshal schema: %v", err)
	}
	resp := a.Handle(common.NewOpenRequest(schema.Name, data))
	if resp.Err != "" {
		t.Fatalf("Open failed: %s", resp.Err)
	}
}

func mustWireKey(t *testing.T, k key.Key) []byte {
	t.Helper()
	wk, err := key.EncodeJSON(k)
	if err != nil {
		t.Fatalf("Failed to encode key: %v", err)
	}
	return wk
}

func TestAdapterExplicitRoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	openDatabase(t, a, odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "items", Key: engine.KeyExplicit},
		},
	})

	// Write two records
	for i, value := range []string{`{"n":1}`, `{"n":2}`} {
		resp := a.Handle(common.NewKeyRequest(common.MsgTPutAt, "app", "items",
			mustWireKey(t, key.Int(int64(i+1))), []byte(value)))
		if resp.Err != "" {
			t.Fatalf("PutAt failed: %s", resp.Err)
		}
	}

	// Read one back
	resp := a.Handle(common.NewKeyRequest(common.MsgTGet, "app", "items",
		mustWireKey(t, key.Int(1)), nil))
	if resp.Err != "" {
		t.Fatalf("Get failed: %s", resp.Err)
	}
	if !resp.Found || string(resp.Value) != `{"n":1}` {
		t.Errorf("Get returned found=%v value=%s", resp.Found, resp.Value)
	}

	// Count over the whole collection (absent range)
	resp = a.Handle(common.NewRangeRequest(common.MsgTCount, "app", "items", nil))
	if resp.Err != "" || resp.Count != 2 {
		t.Errorf("Count returned count=%d err=%q", resp.Count, resp.Err)
	}

	// Keys come back in wire form, in key order
	resp = a.Handle(common.NewRangeRequest(common.MsgTGetAllKeys, "app", "items", nil))
	if resp.Err != "" || len(resp.Keys) != 2 {
		t.Fatalf("GetAllKeys returned %d keys, err=%q", len(resp.Keys), resp.Err)
	}
	first, err := key.DecodeJSON(resp.Keys[0])
	if err != nil || !key.Equal(first, key.Int(1)) {
		t.Errorf("First key = %v (err %v), want Int(1)", first, err)
	}

	// Delete and verify absence
	resp = a.Handle(common.NewKeyRequest(common.MsgTDelete, "app", "items",
		mustWireKey(t, key.Int(1)), nil))
	if resp.Err != "" {
		t.Fatalf("Delete failed: %s", resp.Err)
	}
	resp = a.Handle(common.NewKeyRequest(common.MsgTGet, "app", "items",
		mustWireKey(t, key.Int(1)), nil))
	if resp.Err != "" || resp.Found {
		t.Errorf("Get after delete returned found=%v err=%q", resp.Found, resp.Err)
	}
}

func TestAdapterInlineAndGeneratedWrites(t *testing.T) {
	a := newTestAdapter(t)
	openDatabase(t, a, odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "todos", Key: engine.KeyInline, KeyPath: "id"},
			{Name: "events", Key: engine.KeyGenerated},
		},
	})

	// Inline: the extracted key is reported back
	resp := a.Handle(common.NewValueRequest(common.MsgTAdd, "app", "todos",
		[]byte(`{"id":7,"text":"a"}`)))
	if resp.Err != "" {
		t.Fatalf("Add failed: %s", resp.Err)
	}
	k, err := key.DecodeJSON(resp.Key)
	if err != nil || !key.Equal(k, key.Int(7)) {
		t.Errorf("Add reported key %v (err %v), want Int(7)", k, err)
	}

	// Duplicate insert is a bare constraint violation on the wire
	resp = a.Handle(common.NewValueRequest(common.MsgTAdd, "app", "todos",
		[]byte(`{"id":7,"text":"b"}`)))
	if resp.Err != "ALREADY_EXISTS" {
		t.Errorf("Duplicate Add returned err=%q, want ALREADY_EXISTS", resp.Err)
	}

	// Generated: keys count up from 1, batches report input order
	resp = a.Handle(common.NewValueRequest(common.MsgTInsert, "app", "events",
		[]byte(`{"kind":"first"}`)))
	if resp.Err != "" {
		t.Fatalf("Insert failed: %s", resp.Err)
	}
	k, err = key.DecodeJSON(resp.Key)
	if err != nil || !key.Equal(k, key.Int(1)) {
		t.Errorf("Insert reported key %v (err %v), want Int(1)", k, err)
	}

	resp = a.Handle(common.NewValuesRequest(common.MsgTInsertMany, "app", "events",
		[][]byte{[]byte(`{"kind":"second"}`), []byte(`{"kind":"third"}`)}))
	if resp.Err != "" || len(resp.Keys) != 2 {
		t.Fatalf("InsertMany returned %d keys, err=%q", len(resp.Keys), resp.Err)
	}
	for i, want := range []int64{2, 3} {
		k, err := key.DecodeJSON(resp.Keys[i])
		if err != nil || !key.Equal(k, key.Int(want)) {
			t.Errorf("InsertMany key %d = %v (err %v), want Int(%d)", i, k, err, want)
		}
	}

	// Writes through the wrong capability are rejected
	resp = a.Handle(common.NewKeyRequest(common.MsgTPutAt, "app", "todos",
		mustWireKey(t, key.Int(9)), []byte(`{"id":9}`)))
	if !strings.HasPrefix(resp.Err, "DATABASE_ERROR:") {
		t.Errorf("PutAt on inline collection returned err=%q, want DATABASE_ERROR", resp.Err)
	}
}

func TestAdapterIndexQueries(t *testing.T) {
	a := newTestAdapter(t)
	openDatabase(t, a, odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{
				Name: "events",
				Key:  engine.KeyGenerated,
				Indexes: []engine.IndexDef{
					{Name: "by_n", Path: "n"},
				},
			},
		},
	})

	// Insert out of index order
	resp := a.Handle(common.NewValuesRequest(common.MsgTInsertMany, "app", "events",
		[][]byte{[]byte(`{"n":3}`), []byte(`{"n":1}`), []byte(`{"n":2}`)}))
	if resp.Err != "" {
		t.Fatalf("InsertMany failed: %s", resp.Err)
	}

	// Whole-index query comes back ordered by index key
	resp = a.Handle(common.NewIndexRequest(common.MsgTGetByIndex, "app", "events", "by_n", nil))
	if resp.Err != "" {
		t.Fatalf("GetByIndex failed: %s", resp.Err)
	}
	if len(resp.Values) != 3 {
		t.Fatalf("GetByIndex returned %d records, want 3", len(resp.Values))
	}
	for i, want := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		if string(resp.Values[i]) != want {
			t.Errorf("Record %d = %s, want %s", i, resp.Values[i], want)
		}
	}

	// Bounded query in wire form
	wireRange := []byte(`{"type":"bound","lower":{"type":"int","value":2},"upper":{"type":"int","value":3}}`)
	resp = a.Handle(common.NewIndexRequest(common.MsgTCountByIndex, "app", "events", "by_n", wireRange))
	if resp.Err != "" || resp.Count != 2 {
		t.Errorf("CountByIndex returned count=%d err=%q, want 2", resp.Count, resp.Err)
	}

	// Unknown index names are database errors
	resp = a.Handle(common.NewIndexRequest(common.MsgTCountByIndex, "app", "events", "nope", nil))
	if !strings.HasPrefix(resp.Err, "DATABASE_ERROR:") {
		t.Errorf("Unknown index returned err=%q, want DATABASE_ERROR", resp.Err)
	}
}

func TestAdapterLifecycleAndErrors(t *testing.T) {
	a := newTestAdapter(t)
	schema := odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "items", Key: engine.KeyExplicit},
		},
	}
	openDatabase(t, a, schema)

	// Operations on a closed database fail with a database error
	resp := a.Handle(common.NewCloseRequest("app"))
	if resp.Err != "" {
		t.Fatalf("Close failed: %s", resp.Err)
	}
	resp = a.Handle(common.NewKeyRequest(common.MsgTGet, "app", "items",
		mustWireKey(t, key.Int(1)), nil))
	if !strings.HasPrefix(resp.Err, "DATABASE_ERROR:") {
		t.Errorf("Get on closed database returned err=%q, want DATABASE_ERROR", resp.Err)
	}

	// Reopening works
	openDatabase(t, a, schema)

	// Malformed schemas are rejected
	resp = a.Handle(common.NewOpenRequest("other", []byte(`{not json`)))
	if !strings.HasPrefix(resp.Err, "DATABASE_ERROR:") {
		t.Errorf("Malformed schema returned err=%q, want DATABASE_ERROR", resp.Err)
	}

	// Mismatched batches are rejected before anything is written
	resp = a.Handle(common.NewRecordsRequest(common.MsgTPutManyAt, "app", "items",
		[][]byte{mustWireKey(t, key.Int(1)), mustWireKey(t, key.Int(2))},
		[][]byte{[]byte(`{"n":1}`)}))
	if !strings.HasPrefix(resp.Err, "DATABASE_ERROR:") {
		t.Errorf("Mismatched batch returned err=%q, want DATABASE_ERROR", resp.Err)
	}

	// Unsupported message types are errors, not panics
	resp = a.Handle(&common.Message{MsgType: common.MsgTSuccess})
	if resp.MsgType != common.MsgTError || !strings.HasPrefix(resp.Err, "DATABASE_ERROR:") {
		t.Errorf("Unsupported type returned type=%s err=%q", resp.MsgType, resp.Err)
	}

	// DeleteDatabase closes and removes everything
	resp = a.Handle(common.NewDeleteDatabaseRequest("app"))
	if resp.Err != "" {
		t.Fatalf("DeleteDatabase failed: %s", resp.Err)
	}
	openDatabase(t, a, schema)
	resp = a.Handle(common.NewRangeRequest(common.MsgTCount, "app", "items", nil))
	if resp.Err != "" || resp.Count != 0 {
		t.Errorf("Count after delete returned count=%d err=%q, want 0", resp.Count, resp.Err)
	}
}

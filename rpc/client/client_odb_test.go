package client

import (
	"errors"
	"testing"

	"github.com/JonasWeidner/oDB/lib/engine"
	"github.com/JonasWeidner/oDB/lib/engine/bolt"
	"github.com/JonasWeidner/oDB/lib/key"
	"github.com/JonasWeidner/oDB/lib/odb"
	"github.com/JonasWeidner/oDB/rpc/common"
	"github.com/JonasWeidner/oDB/rpc/serializer"
	"github.com/JonasWeidner/oDB/rpc/server"
)

// loopbackTransport routes requests straight into a server adapter without
// a network connection, exercising the full serialize/deserialize path
type loopbackTransport struct {
	adapter    server.IRPCServerAdapter
	serializer serializer.IRPCSerializer
}

func (t *loopbackTransport) Connect(_ common.ClientConfig) error { return nil }
func (t *loopbackTransport) Close() error                        { return nil }

func (t *loopbackTransport) Send(_ uint64, req []byte) ([]byte, error) {
	var msg common.Message
	if err := t.serializer.Deserialize(req, &msg); err != nil {
		return nil, err
	}
	return t.serializer.Serialize(*t.adapter.Handle(&msg))
}

// newTestClient creates a client wired to an adapter over a fresh bolt
// engine in a temp dir
func newTestClient(t *testing.T) *RPCClient {
	t.Helper()
	eng, err := bolt.New(bolt.DefaultOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	s := serializer.NewBinarySerializer()
	c, err := NewRPCClient(0, common.ClientConfig{}, &loopbackTransport{
		adapter:    server.NewObjectStoreAdapter(odb.NewRegistry(eng, nil)),
		serializer: s,
	}, s)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestClientRoundTrip(t *testing.T) {
	c := newTestClient(t)

	err := c.Open(odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "items", Key: engine.KeyExplicit},
			{Name: "events", Key: engine.KeyGenerated},
		},
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// Explicit writes and reads
	if err := c.PutAt("app", "items", key.String("a"), []byte(`{"n":1}`)); err != nil {
		t.Fatalf("PutAt failed: %v", err)
	}
	if err := c.PutAt("app", "items", key.String("b"), []byte(`{"n":2}`)); err != nil {
		t.Fatalf("PutAt failed: %v", err)
	}

	value, found, err := c.Get("app", "items", key.String("a"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || string(value) != `{"n":1}` {
		t.Errorf("Get returned found=%v value=%s", found, value)
	}

	// Missing key is absent, not an error
	_, found, err = c.Get("app", "items", key.String("missing"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Expected missing key to be absent")
	}

	// Typed keys survive the wire round trip in order
	keys, err := c.GetAllKeys("app", "items", key.Range{})
	if err != nil {
		t.Fatalf("GetAllKeys failed: %v", err)
	}
	if len(keys) != 2 || !key.Equal(keys[0], key.String("a")) || !key.Equal(keys[1], key.String("b")) {
		t.Errorf("GetAllKeys returned %v", keys)
	}

	// Generated keys come back typed
	k, err := c.Insert("app", "events", []byte(`{"e":1}`))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !key.Equal(k, key.Int(1)) {
		t.Errorf("Insert returned key %v, expected Int(1)", k)
	}

	// Batch insert preserves input order
	generated, err := c.InsertMany("app", "events", [][]byte{[]byte(`{"e":2}`), []byte(`{"e":3}`)})
	if err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}
	if len(generated) != 2 || !key.Equal(generated[0], key.Int(2)) || !key.Equal(generated[1], key.Int(3)) {
		t.Errorf("InsertMany returned %v", generated)
	}

	if err := c.Delete("app", "items", key.String("a")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	count, err := c.Count("app", "items", key.Range{})
	if err != nil || count != 1 {
		t.Errorf("Count returned count=%d err=%v", count, err)
	}
}

func TestClientErrorReconstruction(t *testing.T) {
	c := newTestClient(t)

	err := c.Open(odb.Schema{
		Name:    "app",
		Version: 1,
		Collections: []odb.Collection{
			{Name: "items", Key: engine.KeyExplicit},
		},
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// Duplicate AddAt crosses the wire as the AlreadyExists taxonomy error
	if err := c.AddAt("app", "items", key.Int(1), []byte(`{}`)); err != nil {
		t.Fatalf("AddAt failed: %v", err)
	}
	err = c.AddAt("app", "items", key.Int(1), []byte(`{}`))
	if !errors.Is(err, odb.NewAlreadyExists()) {
		t.Errorf("Expected AlreadyExists, got %v", err)
	}

	// Wrong operation for the key configuration is a DatabaseError
	_, err = c.Insert("app", "items", []byte(`{}`))
	if !errors.Is(err, odb.NewDatabaseError("")) {
		t.Errorf("Expected DatabaseError, got %v", err)
	}

	// Unknown database too
	_, _, err = c.Get("nope", "items", key.Int(1))
	if !errors.Is(err, odb.NewDatabaseError("")) {
		t.Errorf("Expected DatabaseError, got %v", err)
	}
}

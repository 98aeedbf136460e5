package bolt

import (
	"errors"
	"testing"

	"github.com/JonasWeidner/oDB/lib/engine"
	"github.com/JonasWeidner/oDB/lib/engine/enginetest"
	"github.com/JonasWeidner/oDB/lib/key"
)

func newTestEngine(t testing.TB) engine.Engine {
	t.Helper()
	e, err := New(DefaultOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return e
}

func TestBoltEngine(t *testing.T) {
	enginetest.RunEngineTests(t, "bolt", newTestEngine)
}

// --------------------------------------------------------------------------
// Bolt-specific tests
// --------------------------------------------------------------------------

func TestInvalidDatabaseName(t *testing.T) {
	e := newTestEngine(t)

	for _, name := range []string{"", "a/b", `a\b`} {
		if _, err := e.Open(name, 1, func(engine.UpgradeTxn) error { return nil }); err == nil {
			t.Errorf("expected Open(%q) to fail", name)
		}
	}
}

func TestReopenPersistence(t *testing.T) {
	dir := t.TempDir()
	e, err := New(DefaultOptions(dir))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	cfg := engine.CollectionConfig{Name: "alpha", Key: engine.KeyExplicit}
	conn := mustOpen(t, e, "persist", 1, cfg)

	nk, err := key.Encode(key.String("k"))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	txn, err := conn.Begin("alpha", engine.ReadWrite)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	txn.Put(nk, []byte(`{"v":1}`))
	txn.Commit()
	<-txn.Done()
	if err := txn.Err(); err != nil {
		t.Fatalf("put txn failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// a fresh engine over the same directory sees version, config and data
	e2, err := New(DefaultOptions(dir))
	if err != nil {
		t.Fatalf("failed to recreate engine: %v", err)
	}
	conn2, err := e2.Open("persist", 1, func(engine.UpgradeTxn) error {
		t.Error("upgrade must not run when versions match")
		return nil
	})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer conn2.Close()

	if conn2.Version() != 1 {
		t.Errorf("expected version 1 after reopen, got %d", conn2.Version())
	}
	if _, ok := conn2.CollectionConfig("alpha"); !ok {
		t.Fatal("expected collection alpha to survive reopen")
	}

	txn2, err := conn2.Begin("alpha", engine.ReadOnly)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	req := txn2.Get(nk)
	txn2.Commit()
	<-txn2.Done()
	if err := txn2.Err(); err != nil {
		t.Fatalf("get txn failed: %v", err)
	}
	if v, _ := req.Await(); v == nil {
		t.Error("expected record to survive reopen")
	}
}

func TestQuotaAbort(t *testing.T) {
	e, err := New(&Options{Dir: t.TempDir(), QuotaBytes: 8 * 1024})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	conn := mustOpen(t, e, "quota", 1, engine.CollectionConfig{Name: "blobs", Key: engine.KeyExplicit})
	defer conn.Close()

	// a write far beyond the quota must abort at commit time
	big := make([]byte, 64*1024)
	nk, _ := key.Encode(key.Int(1))

	txn, err := conn.Begin("blobs", engine.ReadWrite)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	txn.Put(nk, big)
	txn.Commit()
	<-txn.Done()

	if !errors.Is(txn.Err(), engine.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", txn.Err())
	}

	// nothing persisted
	txn2, err := conn.Begin("blobs", engine.ReadOnly)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	req := txn2.Get(nk)
	txn2.Commit()
	<-txn2.Done()
	if v, _ := req.Await(); v != nil {
		t.Error("expected aborted write to leave no record behind")
	}
}

func mustOpen(t testing.TB, e engine.Engine, name string, version uint64, cfgs ...engine.CollectionConfig) engine.Connection {
	t.Helper()
	conn, err := e.Open(name, version, func(up engine.UpgradeTxn) error {
		for _, cfg := range cfgs {
			indexes := cfg.Indexes
			cfg.Indexes = nil
			if err := up.CreateCollection(cfg); err != nil {
				return err
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
		t.Fatalf("open %q failed: %v", name, err)
	}
	return conn
}

package bolt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonasWeidner/oDB/lib/engine"
	"github.com/VictoriaMetrics/metrics"
	bbolt "go.etcd.io/bbolt"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// file suffix for database files below the engine directory
	fileSuffix = ".odb"

	// how long Open waits for the file lock before giving up
	defaultOpenTimeout = 5 * time.Second
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures the bolt engine.
type Options struct {
	// Dir is the directory holding one file per database. Created if
	// missing.
	Dir string

	// QuotaBytes caps the size of one database file. Transactions whose
	// commit would exceed the quota abort with engine.ErrQuotaExceeded.
	// Zero means unlimited.
	QuotaBytes int64

	// OpenTimeout bounds the wait for the bbolt file lock (0 = default).
	OpenTimeout time.Duration
}

// DefaultOptions returns the default engine options for a data directory.
func DefaultOptions(dir string) *Options {
	return &Options{
		Dir:         dir,
		OpenTimeout: defaultOpenTimeout,
	}
}

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

type boltEngine struct {
	opts Options
}

// metrics for all engine instances in this process
var (
	metricOpens   = metrics.NewCounter(`odb_engine_opens_total`)
	metricCommits = metrics.NewCounter(`odb_engine_txn_commits_total`)
	metricAborts  = metrics.NewCounter(`odb_engine_txn_aborts_total`)
	metricReqs    = metrics.NewCounter(`odb_engine_requests_total`)
)

// New creates a bolt-backed engine rooted at opts.Dir.
func New(opts *Options) (engine.Engine, error) {
	if opts == nil || opts.Dir == "" {
		return nil, fmt.Errorf("bolt: engine directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("bolt: create engine directory: %w", err)
	}
	resolved := *opts
	if resolved.OpenTimeout <= 0 {
		resolved.OpenTimeout = defaultOpenTimeout
	}
	return &boltEngine{opts: resolved}, nil
}

func (e *boltEngine) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("bolt: invalid database name %q", name)
	}
	return filepath.Join(e.opts.Dir, name+fileSuffix), nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see engine.Engine)
// --------------------------------------------------------------------------

func (e *boltEngine) Open(name string, version uint64, upgrade func(engine.UpgradeTxn) error) (engine.Connection, error) {
	path, err := e.path(name)
	if err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: e.opts.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("bolt: open database %q: %w", name, err)
	}

	stored, err := readVersion(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if version < stored {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: requested version %d is below stored version %d for database %q",
			version, stored, name)
	}

	if version > stored {
		err = db.Update(func(tx *bbolt.Tx) error {
			up, err := newUpgradeTxn(tx, stored)
			if err != nil {
				return err
			}
			if err := upgrade(up); err != nil {
				return err
			}
			return up.finish(version)
		})
		if err != nil {
			// rolled back, nothing persisted
			_ = db.Close()
			return nil, err
		}
	}

	configs, err := readConfigs(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	metricOpens.Inc()
	return &connection{
		engine:  e,
		name:    name,
		version: version,
		db:      db,
		configs: configs,
	}, nil
}

func (e *boltEngine) DeleteDatabase(name string) error {
	path, err := e.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("bolt: delete database %q: %w", name, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

type connection struct {
	engine  *boltEngine
	name    string
	version uint64
	db      *bbolt.DB
	configs map[string]engine.CollectionConfig
}

func (c *connection) Name() string    { return c.name }
func (c *connection) Version() uint64 { return c.version }

func (c *connection) CollectionConfig(collection string) (engine.CollectionConfig, bool) {
	cfg, ok := c.configs[collection]
	return cfg, ok
}

func (c *connection) Begin(collection string, mode engine.Mode) (engine.Txn, error) {
	cfg, ok := c.configs[collection]
	if !ok {
		return nil, fmt.Errorf("bolt: no such collection %q in database %q", collection, c.name)
	}
	return newTxn(c, cfg, mode), nil
}

func (c *connection) Close() error {
	// bbolt blocks until in-flight transactions have settled
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("bolt: close database %q: %w", c.name, err)
	}
	return nil
}

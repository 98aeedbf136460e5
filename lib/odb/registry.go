package odb

import (
	"github.com/JonasWeidner/oDB/lib/engine"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// --------------------------------------------------------------------------
// Connection Registry
// --------------------------------------------------------------------------

// Registry owns every live database connection of one engine instance.
// At most one live connection per database name is permitted; a second
// Open of the same name fails with a conflict DatabaseError instead of
// racing the engine's own file lock.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	engine engine.Engine
	logger *zap.Logger

	conns *xsync.MapOf[string, engine.Connection]

	// opening guards names with an Open in flight, so two concurrent
	// opens of the same name cannot both reach the engine
	opening *xsync.MapOf[string, struct{}]
}

// NewRegistry creates a registry over the given engine. A nil logger
// disables logging.
func NewRegistry(e engine.Engine, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		engine:  e,
		logger:  logger,
		conns:   xsync.NewMapOf[string, engine.Connection](),
		opening: xsync.NewMapOf[string, struct{}](),
	}
}

// Open validates the schema, opens (or creates) the database and
// reconciles it to the schema inside one upgrade transaction. On success
// the connection is registered under the schema's database name and a
// handle bound to this registry is returned.
func (r *Registry) Open(schema Schema) (*DB, error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}

	if _, inFlight := r.opening.LoadOrStore(schema.Name, struct{}{}); inFlight {
		return nil, NewDatabaseError("database %q is already being opened", schema.Name)
	}
	defer r.opening.Delete(schema.Name)

	if _, open := r.conns.Load(schema.Name); open {
		return nil, NewDatabaseError("database %q is already open", schema.Name)
	}

	conn, err := r.engine.Open(schema.Name, schema.Version, func(up engine.UpgradeTxn) error {
		return reconcile(up, schema)
	})
	if err != nil {
		return nil, Normalize(err)
	}

	r.conns.Store(schema.Name, conn)
	r.logger.Info("database opened",
		zap.String("database", schema.Name),
		zap.Uint64("version", schema.Version),
		zap.Int("collections", len(schema.Collections)),
	)
	return &DB{name: schema.Name, reg: r}, nil
}

// Close closes the named database's connection and removes it from the
// registry. Closing a database that is not open is an error.
func (r *Registry) Close(name string) error {
	conn, open := r.conns.LoadAndDelete(name)
	if !open {
		return NewDatabaseError("database %q is not open", name)
	}
	if err := conn.Close(); err != nil {
		return Normalize(err)
	}
	r.logger.Info("database closed", zap.String("database", name))
	return nil
}

// DeleteDatabase removes the named database and all of its data. An open
// connection is closed first; deleting a database that does not exist is
// not an error.
func (r *Registry) DeleteDatabase(name string) error {
	if conn, open := r.conns.LoadAndDelete(name); open {
		if err := conn.Close(); err != nil {
			return Normalize(err)
		}
	}
	if err := r.engine.DeleteDatabase(name); err != nil {
		return Normalize(err)
	}
	r.logger.Info("database deleted", zap.String("database", name))
	return nil
}

// lookup resolves a database name to its live connection.
func (r *Registry) lookup(name string) (engine.Connection, *Error) {
	conn, open := r.conns.Load(name)
	if !open {
		return nil, NewDatabaseError("database %q is not open", name)
	}
	return conn, nil
}

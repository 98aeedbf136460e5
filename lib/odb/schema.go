package odb

import (
	"github.com/JonasWeidner/oDB/lib/engine"
)

// --------------------------------------------------------------------------
// Schema Declaration
// --------------------------------------------------------------------------

// Schema declares the full structure one database should have: its name,
// a monotonically increasing version, and every collection with its key
// configuration and indexes. Schemas are immutable inputs, evaluated once
// per Open call.
type Schema struct {
	Name        string       `json:"name"`
	Version     uint64       `json:"version"`
	Collections []Collection `json:"collections"`
}

// Collection declares one collection inside a schema.
type Collection struct {
	Name string `json:"name"`

	// Key selects how records are keyed. Immutable once the collection
	// exists on disk.
	Key engine.KeyConfig `json:"key"`

	// KeyPath is the dot-separated path into the record value the key is
	// extracted from. Required for inline keys, forbidden otherwise.
	KeyPath string `json:"key_path,omitempty"`

	Indexes []engine.IndexDef `json:"indexes,omitempty"`
}

// config maps the declaration to the engine's stored form, without indexes
// (those are reconciled separately).
func (c Collection) config() engine.CollectionConfig {
	return engine.CollectionConfig{Name: c.Name, Key: c.Key, KeyPath: c.KeyPath}
}

// --------------------------------------------------------------------------
// Validation
// --------------------------------------------------------------------------

// validate checks a schema for caller errors before anything reaches the
// engine. All findings are DatabaseErrors.
func (s Schema) validate() *Error {
	if s.Name == "" {
		return NewDatabaseError("schema has no database name")
	}
	if s.Version == 0 {
		return NewDatabaseError("schema %q: version must be at least 1", s.Name)
	}

	seen := make(map[string]struct{}, len(s.Collections))
	for _, c := range s.Collections {
		if c.Name == "" {
			return NewDatabaseError("schema %q: collection with empty name", s.Name)
		}
		if _, dup := seen[c.Name]; dup {
			return NewDatabaseError("schema %q: duplicate collection %q", s.Name, c.Name)
		}
		seen[c.Name] = struct{}{}

		if err := c.validate(s.Name); err != nil {
			return err
		}
	}
	return nil
}

func (c Collection) validate(schemaName string) *Error {
	switch c.Key {
	case engine.KeyInline:
		if c.KeyPath == "" {
			return NewDatabaseError("schema %q: collection %q: inline keys require a key path",
				schemaName, c.Name)
		}
	case engine.KeyExplicit, engine.KeyGenerated:
		if c.KeyPath != "" {
			return NewDatabaseError("schema %q: collection %q: key path is only valid for inline keys",
				schemaName, c.Name)
		}
	default:
		return NewDatabaseError("schema %q: collection %q: unknown key configuration",
			schemaName, c.Name)
	}

	seen := make(map[string]struct{}, len(c.Indexes))
	for _, def := range c.Indexes {
		if def.Name == "" {
			return NewDatabaseError("schema %q: collection %q: index with empty name",
				schemaName, c.Name)
		}
		if _, dup := seen[def.Name]; dup {
			return NewDatabaseError("schema %q: collection %q: duplicate index %q",
				schemaName, c.Name, def.Name)
		}
		seen[def.Name] = struct{}{}

		if def.Path == "" {
			return NewDatabaseError("schema %q: collection %q: index %q has no path",
				schemaName, c.Name, def.Name)
		}
	}
	return nil
}

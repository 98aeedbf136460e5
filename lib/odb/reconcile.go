package odb

import (
	"github.com/JonasWeidner/oDB/lib/engine"
)

// --------------------------------------------------------------------------
// Schema Reconciliation
// --------------------------------------------------------------------------

// reconcile brings the structural metadata inside one upgrade transaction
// into agreement with the declared schema:
//
//  1. collections on disk but absent from the schema are dropped with
//     their data,
//  2. declared collections missing on disk are created with their key
//     configuration as declared,
//  3. declared collections that already exist must match the stored key
//     configuration, a mismatch aborts the whole upgrade,
//  4. indexes are reconciled by presence only; an index that exists under
//     a declared name keeps its stored definition even if the declared
//     flags differ.
//
// Any error return rolls the upgrade transaction back, so a failed
// reconciliation never persists a partial migration.
func reconcile(up engine.UpgradeTxn, schema Schema) error {
	declared := make(map[string]Collection, len(schema.Collections))
	for _, c := range schema.Collections {
		declared[c.Name] = c
	}

	for _, name := range up.Collections() {
		if _, keep := declared[name]; !keep {
			if err := up.DeleteCollection(name); err != nil {
				return err
			}
		}
	}

	for _, c := range schema.Collections {
		stored, exists := up.CollectionConfig(c.Name)
		if !exists {
			if err := up.CreateCollection(c.config()); err != nil {
				return err
			}
		} else if !stored.SameKeyConfig(c.config()) {
			return NewDatabaseError(
				"collection %q is stored with key configuration %s (path %q) but declared as %s (path %q)",
				c.Name, stored.Key, stored.KeyPath, c.Key, c.KeyPath)
		}

		if err := reconcileIndexes(up, c); err != nil {
			return err
		}
	}
	return nil
}

func reconcileIndexes(up engine.UpgradeTxn, c Collection) error {
	existing, err := up.Indexes(c.Name)
	if err != nil {
		return err
	}

	declared := make(map[string]struct{}, len(c.Indexes))
	for _, def := range c.Indexes {
		declared[def.Name] = struct{}{}
	}

	present := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		present[name] = struct{}{}
		if _, keep := declared[name]; !keep {
			if err := up.DeleteIndex(c.Name, name); err != nil {
				return err
			}
		}
	}

	for _, def := range c.Indexes {
		if _, ok := present[def.Name]; ok {
			continue
		}
		if err := up.CreateIndex(c.Name, def); err != nil {
			return err
		}
	}
	return nil
}

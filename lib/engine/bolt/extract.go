package bolt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonasWeidner/oDB/lib/engine"
	"github.com/JonasWeidner/oDB/lib/key"
)

// --------------------------------------------------------------------------
// Key Extraction from JSON Values
// --------------------------------------------------------------------------

// extractKey resolves an inline key path inside a record value. The value
// must be a JSON document; the path must resolve to something that can be
// a key.
func extractKey(value []byte, path string) (key.Key, error) {
	node, err := lookupPath(value, path)
	if err != nil {
		return nil, err
	}
	k, ok := jsonToKey(node)
	if !ok {
		return nil, fmt.Errorf("bolt: value at key path %q is not a valid key", path)
	}
	return k, nil
}

// extractIndexKeys resolves an index path inside a record value. Records
// where the path is missing or does not yield a valid key are simply not
// indexed. MultiEntry indexes fan a JSON array out into one key per valid
// element; without multiEntry an array becomes a single compound key.
func extractIndexKeys(value []byte, def engine.IndexDef) []key.Key {
	node, err := lookupPath(value, def.Path)
	if err != nil {
		return nil
	}

	if arr, isArray := node.([]any); isArray && def.MultiEntry {
		keys := make([]key.Key, 0, len(arr))
		for _, elem := range arr {
			if k, ok := jsonToKey(elem); ok {
				keys = append(keys, k)
			}
		}
		return keys
	}

	if k, ok := jsonToKey(node); ok {
		return []key.Key{k}
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// lookupPath walks a dot-separated path through a JSON document.
func lookupPath(value []byte, path string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("bolt: record value is not valid JSON: %v", err)
	}

	node := doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("bolt: key path %q does not resolve to a value", path)
		}
		if node, ok = obj[part]; !ok {
			return nil, fmt.Errorf("bolt: key path %q does not resolve to a value", path)
		}
	}
	return node, nil
}

// jsonToKey maps a decoded JSON node to a key. Strings and numbers map
// directly (integral numbers to Int, others to Float); arrays become
// compound keys; a tagged wire key object ({"type": ..., "value": ...})
// covers the remaining variants, posix timestamps in particular.
func jsonToKey(node any) (key.Key, bool) {
	switch v := node.(type) {
	case string:
		return key.String(v), true
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return key.Int(i), true
		}
		if f, err := v.Float64(); err == nil {
			return key.Float(f), true
		}
		return nil, false
	case []any:
		comp := make(key.Compound, 0, len(v))
		for _, elem := range v {
			k, ok := jsonToKey(elem)
			if !ok {
				return nil, false
			}
			comp = append(comp, k)
		}
		return comp, true
	case map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		k, err := key.DecodeJSON(raw)
		if err != nil {
			return nil, false
		}
		return k, true
	default:
		return nil, false
	}
}

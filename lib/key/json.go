package key

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Tagged JSON Wire Form
// --------------------------------------------------------------------------

// Keys cross the rpc boundary as tagged objects:
//
//	{"type": "string",   "value": "a"}
//	{"type": "int",      "value": 42}
//	{"type": "float",    "value": 1.5}
//	{"type": "posix",    "value": 1712345678901}
//	{"type": "compound", "value": [ ...keys... ]}
//
// Ranges as:
//
//	{"type": "only",       "value": K}
//	{"type": "lowerBound", "value": K, "open": false}
//	{"type": "upperBound", "value": K, "open": false}
//	{"type": "bound", "lower": K, "upper": K, "lowerOpen": false, "upperOpen": false}

type wireKey struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type wireRange struct {
	Type      string          `json:"type"`
	Value     json.RawMessage `json:"value,omitempty"`
	Open      bool            `json:"open,omitempty"`
	Lower     json.RawMessage `json:"lower,omitempty"`
	Upper     json.RawMessage `json:"upper,omitempty"`
	LowerOpen bool            `json:"lowerOpen,omitempty"`
	UpperOpen bool            `json:"upperOpen,omitempty"`
}

// EncodeJSON renders a key in its tagged wire form.
func EncodeJSON(k Key) (json.RawMessage, error) {
	if k == nil {
		return nil, fmt.Errorf("key: cannot encode nil key")
	}
	var (
		value any
		err   error
	)
	switch v := k.(type) {
	case String:
		value = string(v)
	case Int:
		value = int64(v)
	case Float:
		value = float64(v)
	case Time:
		value = int64(v)
	case Compound:
		elems := make([]json.RawMessage, len(v))
		for i, c := range v {
			if elems[i], err = EncodeJSON(c); err != nil {
				return nil, err
			}
		}
		value = elems
	default:
		return nil, fmt.Errorf("key: unknown key variant %T", k)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireKey{Type: k.Kind().String(), Value: raw})
}

// DecodeJSON parses a key from its tagged wire form.
func DecodeJSON(data json.RawMessage) (Key, error) {
	var w wireKey
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("key: malformed wire key: %v", err)
	}
	switch w.Type {
	case "string":
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, fmt.Errorf("key: malformed string key: %v", err)
		}
		return String(s), nil
	case "int":
		var i int64
		if err := json.Unmarshal(w.Value, &i); err != nil {
			return nil, fmt.Errorf("key: malformed int key: %v", err)
		}
		return Int(i), nil
	case "float":
		var f float64
		if err := json.Unmarshal(w.Value, &f); err != nil {
			return nil, fmt.Errorf("key: malformed float key: %v", err)
		}
		return Float(f), nil
	case "posix":
		var ms int64
		if err := json.Unmarshal(w.Value, &ms); err != nil {
			return nil, fmt.Errorf("key: malformed posix key: %v", err)
		}
		return Time(ms), nil
	case "compound":
		var elems []json.RawMessage
		if err := json.Unmarshal(w.Value, &elems); err != nil {
			return nil, fmt.Errorf("key: malformed compound key: %v", err)
		}
		out := make(Compound, len(elems))
		for i, e := range elems {
			k, err := DecodeJSON(e)
			if err != nil {
				return nil, err
			}
			out[i] = k
		}
		return out, nil
	default:
		return nil, fmt.Errorf("key: unknown wire key type %q", w.Type)
	}
}

// EncodeRangeJSON renders a range in its tagged wire form. Exact ranges
// (equal closed bounds) serialize as "only".
func EncodeRangeJSON(r Range) (json.RawMessage, error) {
	switch {
	case r.Lower != nil && r.Upper != nil && !r.LowerOpen && !r.UpperOpen && Equal(r.Lower, r.Upper):
		v, err := EncodeJSON(r.Lower)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireRange{Type: "only", Value: v})
	case r.Lower != nil && r.Upper != nil:
		lo, err := EncodeJSON(r.Lower)
		if err != nil {
			return nil, err
		}
		hi, err := EncodeJSON(r.Upper)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireRange{
			Type: "bound", Lower: lo, Upper: hi,
			LowerOpen: r.LowerOpen, UpperOpen: r.UpperOpen,
		})
	case r.Lower != nil:
		v, err := EncodeJSON(r.Lower)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireRange{Type: "lowerBound", Value: v, Open: r.LowerOpen})
	case r.Upper != nil:
		v, err := EncodeJSON(r.Upper)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireRange{Type: "upperBound", Value: v, Open: r.UpperOpen})
	default:
		return nil, fmt.Errorf("key: cannot encode unbounded range")
	}
}

// DecodeRangeJSON parses a range from its tagged wire form, re-validating
// the bound-variant invariant for "bound" ranges.
func DecodeRangeJSON(data json.RawMessage) (Range, error) {
	var w wireRange
	if err := json.Unmarshal(data, &w); err != nil {
		return Range{}, fmt.Errorf("key: malformed wire range: %v", err)
	}
	switch w.Type {
	case "only":
		k, err := DecodeJSON(w.Value)
		if err != nil {
			return Range{}, err
		}
		return Only(k), nil
	case "lowerBound":
		k, err := DecodeJSON(w.Value)
		if err != nil {
			return Range{}, err
		}
		return LowerBound(k, w.Open), nil
	case "upperBound":
		k, err := DecodeJSON(w.Value)
		if err != nil {
			return Range{}, err
		}
		return UpperBound(k, w.Open), nil
	case "bound":
		lo, err := DecodeJSON(w.Lower)
		if err != nil {
			return Range{}, err
		}
		hi, err := DecodeJSON(w.Upper)
		if err != nil {
			return Range{}, err
		}
		return Bound(lo, hi, w.LowerOpen, w.UpperOpen)
	default:
		return Range{}, fmt.Errorf("key: unknown wire range type %q", w.Type)
	}
}

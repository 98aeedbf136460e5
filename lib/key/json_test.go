package key

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONWireRoundTrip(t *testing.T) {
	keys := []Key{
		String("todo"),
		Int(-5),
		Float(2.75),
		Time(1712345678901),
		Compound{Int(1), Compound{String("nested")}},
	}

	for _, k := range keys {
		raw, err := EncodeJSON(k)
		if err != nil {
			t.Fatalf("EncodeJSON(%v) failed: %v", k, err)
		}
		dec, err := DecodeJSON(raw)
		if err != nil {
			t.Fatalf("DecodeJSON(%s) failed: %v", raw, err)
		}
		if !Equal(k, dec) {
			t.Errorf("wire round trip mismatch: %v became %v", k, dec)
		}
	}
}

func TestJSONWireTags(t *testing.T) {
	raw, err := EncodeJSON(Time(99))
	if err != nil {
		t.Fatalf("EncodeJSON failed: %v", err)
	}
	if !strings.Contains(string(raw), `"type":"posix"`) {
		t.Errorf("expected posix tag in %s", raw)
	}

	raw, err = EncodeRangeJSON(Only(Int(7)))
	if err != nil {
		t.Fatalf("EncodeRangeJSON failed: %v", err)
	}
	if !strings.Contains(string(raw), `"type":"only"`) {
		t.Errorf("expected only tag in %s", raw)
	}
}

func TestJSONRangeRoundTrip(t *testing.T) {
	bound, err := Bound(Time(100), Time(300), false, true)
	if err != nil {
		t.Fatalf("Bound failed: %v", err)
	}

	ranges := []Range{
		Only(String("x")),
		LowerBound(Int(3), true),
		UpperBound(Float(9.5), false),
		bound,
	}

	for _, r := range ranges {
		raw, err := EncodeRangeJSON(r)
		if err != nil {
			t.Fatalf("EncodeRangeJSON failed: %v", err)
		}
		dec, err := DecodeRangeJSON(raw)
		if err != nil {
			t.Fatalf("DecodeRangeJSON(%s) failed: %v", raw, err)
		}
		if !Equal(r.Lower, dec.Lower) || !Equal(r.Upper, dec.Upper) ||
			r.LowerOpen != dec.LowerOpen || r.UpperOpen != dec.UpperOpen {
			t.Errorf("range round trip mismatch: %+v became %+v", r, dec)
		}
	}
}

func TestJSONRejectsUnknownShapes(t *testing.T) {
	bad := []string{
		`{"type":"binary","value":"AA=="}`,
		`{"type":"int","value":"not-a-number"}`,
		`{"no":"type"}`,
	}
	for _, in := range bad {
		if _, err := DecodeJSON(json.RawMessage(in)); err == nil {
			t.Errorf("expected error decoding %s", in)
		}
	}

	if _, err := DecodeRangeJSON(json.RawMessage(`{"type":"bound","lower":{"type":"int","value":1},"upper":{"type":"string","value":"z"}}`)); err == nil {
		t.Error("expected error for mixed-variant wire bound")
	}
}

package key

import (
	"bytes"
	"math"
	"testing"
	"time"
)

func roundTrip(t *testing.T, k Key) {
	t.Helper()

	enc, err := Encode(k)
	if err != nil {
		t.Fatalf("Encode(%v) failed: %v", k, err)
	}

	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode(Encode(%v)) failed: %v", k, err)
	}

	if !Equal(k, dec) {
		t.Errorf("round trip mismatch: encoded %v, decoded %v", k, dec)
	}
}

func TestRoundTrip(t *testing.T) {
	keys := []Key{
		String(""),
		String("hello"),
		String("with\x00zero\x00bytes"),
		String("ünicode"),
		Int(0),
		Int(-1),
		Int(42),
		Int(-9223372036854775808),
		Int(9223372036854775807),
		Float(0),
		Float(-0.0),
		Float(3.14159),
		Float(-273.15),
		Time(0),
		FromTime(time.Date(2024, 4, 5, 12, 30, 0, 0, time.UTC)),
		Compound{},
		Compound{Int(1), String("a")},
		Compound{String("outer"), Compound{Int(2), Compound{Float(0.5)}}},
	}

	for _, k := range keys {
		roundTrip(t, k)
	}
}

func TestTimeDecodesAsTimestamp(t *testing.T) {
	at := time.Date(2023, 11, 9, 8, 15, 30, 500*int(time.Millisecond), time.UTC)

	enc, err := Encode(FromTime(at))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	tk, ok := dec.(Time)
	if !ok {
		t.Fatalf("expected Time key, got %T", dec)
	}
	if !tk.Time().Equal(at) {
		t.Errorf("expected %v, got %v", at, tk.Time())
	}
}

// encodeOrFail is a test helper for the ordering tests below.
func encodeOrFail(t *testing.T, k Key) []byte {
	t.Helper()
	enc, err := Encode(k)
	if err != nil {
		t.Fatalf("Encode(%v) failed: %v", k, err)
	}
	return enc
}

func TestOrderingWithinVariant(t *testing.T) {
	// each slice is in ascending semantic order; the native encodings
	// must sort the same way bytewise
	orderings := [][]Key{
		{Int(-9223372036854775808), Int(-7), Int(-1), Int(0), Int(1), Int(512), Int(9223372036854775807)},
		{Float(-1e300), Float(-2.5), Float(-0.0), Float(0), Float(1e-10), Float(2.5), Float(1e300)},
		{Time(-1000), Time(0), Time(1700000000000), Time(1700000000001)},
		{String(""), String("a"), String("a\x00"), String("a\x00b"), String("ab"), String("b")},
		{
			Compound{Int(1)},
			Compound{Int(1), Int(1)},
			Compound{Int(1), Int(2)},
			Compound{Int(2)},
		},
	}

	for _, keys := range orderings {
		for i := 0; i+1 < len(keys); i++ {
			a := encodeOrFail(t, keys[i])
			b := encodeOrFail(t, keys[i+1])
			if bytes.Compare(a, b) >= 0 {
				t.Errorf("expected %v < %v in native order", keys[i], keys[i+1])
			}
		}
	}
}

func TestChronologicalOrdering(t *testing.T) {
	t1 := FromTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	t2 := FromTime(time.Date(2024, 1, 1, 0, 0, 0, int(time.Millisecond), time.UTC))

	if bytes.Compare(encodeOrFail(t, t1), encodeOrFail(t, t2)) >= 0 {
		t.Errorf("expected %v to sort before %v", t1, t2)
	}
}

func TestConsumeSplitsConcatenation(t *testing.T) {
	first := encodeOrFail(t, Compound{String("idx\x00val"), Int(3)})
	second := encodeOrFail(t, Int(99))

	k, rest, err := Consume(append(append([]byte{}, first...), second...))
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if !Equal(k, Compound{String("idx\x00val"), Int(3)}) {
		t.Errorf("unexpected first key %v", k)
	}
	if !bytes.Equal(rest, second) {
		t.Errorf("unexpected remainder after Consume")
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	cases := map[string][]byte{
		"empty":                {},
		"unknown tag":          {0xAB, 0x01},
		"truncated int":        {tagInt, 0x01, 0x02},
		"unterminated string":  {tagString, 'a', 'b'},
		"unterminated comp":    {tagCompound, tagInt, 0, 0, 0, 0, 0, 0, 0, 1},
		"trailing bytes":       append(encodeOrFailStatic(Int(1)), 0x07),
		"garbage after string": append(encodeOrFailStatic(String("x")), 0xAB),
	}

	for name, in := range cases {
		if _, err := Decode(in); err == nil {
			t.Errorf("%s: expected decode error, got none", name)
		}
	}
}

func encodeOrFailStatic(k Key) []byte {
	enc, err := Encode(k)
	if err != nil {
		panic(err)
	}
	return enc
}

func TestEncodeRejectsNaN(t *testing.T) {
	if _, err := Encode(Float(math.NaN())); err == nil {
		t.Error("expected error when encoding NaN")
	}
}

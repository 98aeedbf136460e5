package key

import (
	"testing"
)

func TestBoundRejectsMixedVariants(t *testing.T) {
	if _, err := Bound(Int(1), String("z"), false, false); err == nil {
		t.Error("expected error for mixed bound variants")
	}
	if _, err := Bound(nil, Int(1), false, false); err == nil {
		t.Error("expected error for missing bound")
	}
	if _, err := Bound(Int(1), Int(10), false, false); err != nil {
		t.Errorf("expected same-variant bound to succeed, got %v", err)
	}
}

func TestEncodedRangeContains(t *testing.T) {
	r, err := Bound(Int(10), Int(20), false, true)
	if err != nil {
		t.Fatalf("Bound failed: %v", err)
	}
	enc, err := EncodeRange(r)
	if err != nil {
		t.Fatalf("EncodeRange failed: %v", err)
	}

	cases := []struct {
		k    Key
		want bool
	}{
		{Int(9), false},
		{Int(10), true},
		{Int(15), true},
		{Int(19), true},
		{Int(20), false}, // upper bound open
		{Int(21), false},
	}

	for _, c := range cases {
		nk := encodeOrFailStatic(c.k)
		if got := enc.Contains(nk); got != c.want {
			t.Errorf("Contains(%v) = %v, want %v", c.k, got, c.want)
		}
	}
}

func TestEncodedRangeOpenLower(t *testing.T) {
	enc, err := EncodeRange(LowerBound(Int(5), true))
	if err != nil {
		t.Fatalf("EncodeRange failed: %v", err)
	}

	if enc.Contains(encodeOrFailStatic(Int(5))) {
		t.Error("open lower bound must exclude the bound itself")
	}
	if !enc.Contains(encodeOrFailStatic(Int(6))) {
		t.Error("open lower bound must include keys above it")
	}
	if enc.Beyond(encodeOrFailStatic(Int(1000000))) {
		t.Error("unbounded upper must never report Beyond")
	}
}

func TestOnlyMatchesSingleKey(t *testing.T) {
	enc, err := EncodeRange(Only(String("a")))
	if err != nil {
		t.Fatalf("EncodeRange failed: %v", err)
	}

	if !enc.Contains(encodeOrFailStatic(String("a"))) {
		t.Error("Only must contain its key")
	}
	if enc.Contains(encodeOrFailStatic(String("b"))) {
		t.Error("Only must not contain other keys")
	}
}

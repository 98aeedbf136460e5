package key

import (
	"bytes"
	"fmt"
)

// --------------------------------------------------------------------------
// Range Type
// --------------------------------------------------------------------------

// Range specifies a contiguous subset of the key ordering. A nil bound is
// unbounded on that side. Construct ranges with Only, LowerBound,
// UpperBound or Bound; the zero Range matches every key.
type Range struct {
	Lower     Key
	Upper     Key
	LowerOpen bool
	UpperOpen bool
}

// Only matches exactly one key.
func Only(k Key) Range {
	return Range{Lower: k, Upper: k}
}

// LowerBound matches every key at or above k (above only, if open).
func LowerBound(k Key, open bool) Range {
	return Range{Lower: k, LowerOpen: open}
}

// UpperBound matches every key at or below k (below only, if open).
func UpperBound(k Key, open bool) Range {
	return Range{Upper: k, UpperOpen: open}
}

// Bound matches every key between lower and upper. Both bounds must be of
// the same key variant; the type system cannot express that, so it is
// checked here before anything reaches the engine.
func Bound(lower, upper Key, lowerOpen, upperOpen bool) (Range, error) {
	if lower == nil || upper == nil {
		return Range{}, fmt.Errorf("key: bound range requires both bounds")
	}
	if lower.Kind() != upper.Kind() {
		return Range{}, fmt.Errorf("key: bound range mixes %s and %s keys",
			lower.Kind(), upper.Kind())
	}
	return Range{Lower: lower, Upper: upper, LowerOpen: lowerOpen, UpperOpen: upperOpen}, nil
}

// --------------------------------------------------------------------------
// Encoded Ranges
// --------------------------------------------------------------------------

// EncodedRange is a Range mapped to native key bounds. The engine scans
// with plain bytewise comparisons against it.
type EncodedRange struct {
	Lower     []byte
	Upper     []byte
	LowerOpen bool
	UpperOpen bool
}

// EncodeRange encodes both bounds of r, forwarding the exclusivity flags
// verbatim.
func EncodeRange(r Range) (EncodedRange, error) {
	var (
		enc EncodedRange
		err error
	)
	if r.Lower != nil {
		if enc.Lower, err = Encode(r.Lower); err != nil {
			return EncodedRange{}, err
		}
		enc.LowerOpen = r.LowerOpen
	}
	if r.Upper != nil {
		if enc.Upper, err = Encode(r.Upper); err != nil {
			return EncodedRange{}, err
		}
		enc.UpperOpen = r.UpperOpen
	}
	return enc, nil
}

// Contains reports whether the native key nk falls inside the range.
func (r EncodedRange) Contains(nk []byte) bool {
	if r.Lower != nil {
		if c := bytes.Compare(nk, r.Lower); c < 0 || (c == 0 && r.LowerOpen) {
			return false
		}
	}
	return !r.Beyond(nk)
}

// Beyond reports whether nk lies above the upper bound. Scans in ascending
// native order can stop at the first key for which this is true.
func (r EncodedRange) Beyond(nk []byte) bool {
	if r.Upper == nil {
		return false
	}
	c := bytes.Compare(nk, r.Upper)
	return c > 0 || (c == 0 && r.UpperOpen)
}

// SeekTo returns the native key an ascending scan should seek to first.
// A nil result means the scan starts at the beginning.
func (r EncodedRange) SeekTo() []byte {
	return r.Lower
}

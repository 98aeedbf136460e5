package key

import (
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Key Variants
// --------------------------------------------------------------------------

// Kind identifies the variant of a Key.
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
	KindTime
	KindString
	KindCompound
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTime:
		return "posix"
	case KindString:
		return "string"
	case KindCompound:
		return "compound"
	default:
		return "unknown"
	}
}

// Key is the closed union over all key variants. The concrete types are
// String, Int, Float, Time and Compound.
type Key interface {
	// Kind returns the variant tag of the key.
	Kind() Kind
	fmt.Stringer
}

// String is a lexicographically ordered text key.
type String string

// Int is a numerically ordered 64-bit integer key.
type Int int64

// Float is a numerically ordered 64-bit float key.
type Float float64

// Time is a chronologically ordered timestamp key with millisecond
// precision, stored as posix milliseconds.
type Time int64

// Compound is a componentwise ordered list of keys. Components may be of
// mixed variants and may themselves be compound.
type Compound []Key

func (String) Kind() Kind   { return KindString }
func (Int) Kind() Kind      { return KindInt }
func (Float) Kind() Kind    { return KindFloat }
func (Time) Kind() Kind     { return KindTime }
func (Compound) Kind() Kind { return KindCompound }

func (k String) String() string { return fmt.Sprintf("%q", string(k)) }
func (k Int) String() string    { return fmt.Sprintf("%d", int64(k)) }
func (k Float) String() string  { return fmt.Sprintf("%g", float64(k)) }
func (k Time) String() string   { return k.Time().UTC().Format(time.RFC3339Nano) }

func (k Compound) String() string {
	parts := make([]string, len(k))
	for i, c := range k {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// --------------------------------------------------------------------------
// Constructors and Conversions
// --------------------------------------------------------------------------

// FromTime creates a Time key from a time.Time, truncating to millisecond
// precision so that the codec round-trip law holds.
func FromTime(t time.Time) Time {
	return Time(t.UnixMilli())
}

// Time converts the key back to a time.Time (UTC).
func (k Time) Time() time.Time {
	return time.UnixMilli(int64(k)).UTC()
}

// --------------------------------------------------------------------------
// Equality
// --------------------------------------------------------------------------

// Equal reports whether two keys are structurally identical: same variant
// and same value, comparing compound keys componentwise.
func Equal(a, b Key) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	if a.Kind() != KindCompound {
		return a == b
	}
	ca, cb := a.(Compound), b.(Compound)
	if len(ca) != len(cb) {
		return false
	}
	for i := range ca {
		if !Equal(ca[i], cb[i]) {
			return false
		}
	}
	return true
}

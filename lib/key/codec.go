package key

import (
	"encoding/binary"
	"fmt"
	"math"
)

// --------------------------------------------------------------------------
// Native Encoding Constants
// --------------------------------------------------------------------------

// Variant tags. Tag order fixes the total order between different variants
// (int < float < posix < string < compound); within one variant the encoded
// payload is order preserving on its own.
const (
	tagInt      byte = 0x01
	tagFloat    byte = 0x02
	tagTime     byte = 0x03
	tagString   byte = 0x04
	tagCompound byte = 0x05

	// terminator for string payloads and compound element lists; sorts
	// before every tag and every escaped content byte
	terminator byte = 0x00

	// a bare 0x00 inside a string payload is escaped as 0x00 0xFF
	escapeMark byte = 0xFF

	signBit uint64 = 1 << 63
)

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Encode maps a key to its native byte representation. The result is
// self-delimiting, so encodings can be concatenated (compound keys, index
// entries) and still be split apart again.
func Encode(k Key) ([]byte, error) {
	return appendKey(nil, k)
}

func appendKey(dst []byte, k Key) ([]byte, error) {
	switch v := k.(type) {
	case Int:
		dst = append(dst, tagInt)
		return appendOrderedUint64(dst, uint64(v)^signBit), nil
	case Float:
		if math.IsNaN(float64(v)) {
			return nil, fmt.Errorf("key: NaN has no ordered encoding")
		}
		bits := math.Float64bits(float64(v))
		if bits&signBit != 0 {
			bits = ^bits
		} else {
			bits |= signBit
		}
		dst = append(dst, tagFloat)
		return appendOrderedUint64(dst, bits), nil
	case Time:
		dst = append(dst, tagTime)
		return appendOrderedUint64(dst, uint64(int64(v))^signBit), nil
	case String:
		dst = append(dst, tagString)
		for i := 0; i < len(v); i++ {
			if v[i] == terminator {
				dst = append(dst, terminator, escapeMark)
			} else {
				dst = append(dst, v[i])
			}
		}
		return append(dst, terminator), nil
	case Compound:
		dst = append(dst, tagCompound)
		var err error
		for _, c := range v {
			if dst, err = appendKey(dst, c); err != nil {
				return nil, err
			}
		}
		return append(dst, terminator), nil
	case nil:
		return nil, fmt.Errorf("key: cannot encode nil key")
	default:
		return nil, fmt.Errorf("key: unknown key variant %T", k)
	}
}

func appendOrderedUint64(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// Decode reconstructs a key from its native representation. Unknown tags,
// truncated payloads and trailing bytes all fail; the engine never hands
// back a shape the codec silently coerces.
func Decode(b []byte) (Key, error) {
	k, rest, err := Consume(b)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("key: %d trailing bytes after encoded key", len(rest))
	}
	return k, nil
}

// Consume decodes the first key in b and returns the unconsumed remainder.
// Used by the engine to split concatenated index entry keys.
func Consume(b []byte) (Key, []byte, error) {
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("key: empty native key")
	}
	switch b[0] {
	case tagInt:
		v, rest, err := consumeOrderedUint64(b[1:])
		if err != nil {
			return nil, nil, err
		}
		return Int(int64(v ^ signBit)), rest, nil
	case tagFloat:
		bits, rest, err := consumeOrderedUint64(b[1:])
		if err != nil {
			return nil, nil, err
		}
		if bits&signBit != 0 {
			bits &^= signBit
		} else {
			bits = ^bits
		}
		return Float(math.Float64frombits(bits)), rest, nil
	case tagTime:
		v, rest, err := consumeOrderedUint64(b[1:])
		if err != nil {
			return nil, nil, err
		}
		return Time(int64(v ^ signBit)), rest, nil
	case tagString:
		var s []byte
		i := 1
		for {
			if i >= len(b) {
				return nil, nil, fmt.Errorf("key: unterminated string key")
			}
			if b[i] != terminator {
				s = append(s, b[i])
				i++
				continue
			}
			if i+1 < len(b) && b[i+1] == escapeMark {
				s = append(s, terminator)
				i += 2
				continue
			}
			return String(s), b[i+1:], nil
		}
	case tagCompound:
		var elems Compound
		rest := b[1:]
		for {
			if len(rest) == 0 {
				return nil, nil, fmt.Errorf("key: unterminated compound key")
			}
			if rest[0] == terminator {
				return elems, rest[1:], nil
			}
			var (
				elem Key
				err  error
			)
			if elem, rest, err = Consume(rest); err != nil {
				return nil, nil, err
			}
			elems = append(elems, elem)
		}
	default:
		return nil, nil, fmt.Errorf("key: unsupported native key tag 0x%02x", b[0])
	}
}

func consumeOrderedUint64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, fmt.Errorf("key: truncated numeric key payload")
	}
	return binary.BigEndian.Uint64(b[:8]), b[8:], nil
}

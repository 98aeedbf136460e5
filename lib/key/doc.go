// Package key implements the typed key model of oDB and its codec.
//
// A Key is one of five variants: String, Int, Float, Time (posix
// milliseconds) and Compound (a list of keys). The codec maps every variant
// to a native byte representation whose bytewise ordering equals the
// semantic ordering of the variant: lexicographic for strings, numeric for
// ints and floats, chronological for times and componentwise for compound
// keys. This lets the underlying B-tree engine compare and range over keys
// without knowing their types.
//
// The package also defines key ranges (exact, half-bounded and bounded) and
// the tagged JSON wire form used by the rpc layer.
package key

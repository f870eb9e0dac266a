package ivalue

import (
	"math/big"

	"lukechampine.com/uint128"
)

// Int128 is a fixed 128-bit signed integer. It stores its value biased
// by 2^127 in a lukechampine.com/uint128.Uint128 so that comparing two
// Int128 values is a single unsigned Uint128.Cmp call and the canonical
// byte encoding (spec.md section 6: "Ints: biased to preserve signed
// order") falls straight out of the bias.
type Int128 struct {
	biased uint128.Uint128
}

var (
	bias128    = new(big.Int).Lsh(big.NewInt(1), 127)
	int128Min  = new(big.Int).Neg(bias128)
	int128Max  = new(big.Int).Sub(bias128, big.NewInt(1))
	int128Mask = new(big.Int).Lsh(big.NewInt(1), 128)
)

// Int128FromBig converts an arbitrary-precision integer into an Int128.
// It reports ok=false if v does not fit in [-2^127, 2^127-1].
func Int128FromBig(v *big.Int) (Int128, bool) {
	if v.Cmp(int128Min) < 0 || v.Cmp(int128Max) > 0 {
		return Int128{}, false
	}
	biased := new(big.Int).Add(v, bias128)
	return Int128{biased: uint128.FromBig(biased)}, true
}

// Int128FromI64 converts a native int64.
func Int128FromI64(v int64) Int128 {
	out, _ := Int128FromBig(big.NewInt(v))
	return out
}

// Big returns the two's-complement-free arbitrary precision value.
func (v Int128) Big() *big.Int {
	b := v.biased.Big()
	return new(big.Int).Sub(b, bias128)
}

// Cmp compares two Int128 values; this is exactly the canonical signed
// ordering because both sides carry the same bias.
func (v Int128) Cmp(o Int128) int { return v.biased.Cmp(o.biased) }

// CanonicalBytes returns the 16-byte big-endian biased representation
// used for RawKey/index-component/cursor-slot encoding.
func (v Int128) CanonicalBytes() [16]byte {
	hi := v.biased.Hi
	lo := v.biased.Lo
	var out [16]byte
	for i := 0; i < 8; i++ {
		out[7-i] = byte(hi >> (8 * i))
		out[15-i] = byte(lo >> (8 * i))
	}
	return out
}

// Int128FromCanonicalBytes decodes the 16-byte big-endian biased form.
func Int128FromCanonicalBytes(b [16]byte) Int128 {
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(b[i])
	}
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(b[i])
	}
	return Int128{biased: uint128.Uint128{Lo: lo, Hi: hi}}
}

// Uint128CanonicalBytes returns the 16-byte big-endian unsigned form
// used for the Uint128 Value variant.
func Uint128CanonicalBytes(v uint128.Uint128) [16]byte {
	var out [16]byte
	for i := 0; i < 8; i++ {
		out[7-i] = byte(v.Hi >> (8 * i))
		out[15-i] = byte(v.Lo >> (8 * i))
	}
	return out
}

// Uint128FromCanonicalBytes decodes the 16-byte big-endian unsigned form.
func Uint128FromCanonicalBytes(b [16]byte) uint128.Uint128 {
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(b[i])
	}
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(b[i])
	}
	return uint128.Uint128{Lo: lo, Hi: hi}
}

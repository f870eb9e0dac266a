package ivalue

import (
	"fmt"
	"math/big"
	"strings"
)

// MaxDecimalScale is the highest base-10 scale a Decimal may carry
// (spec.md section 3).
const MaxDecimalScale = 28

// DefaultDivisionScale is the scale used for Decimal division results
// when the caller does not pin one explicitly (spec.md section 4.8,
// sum_by/avg_by).
const DefaultDivisionScale = 18

// Decimal is a fixed-point number: an Int128 mantissa and a base-10
// scale. The value is mantissa * 10^-scale. This type, and the
// division-rounding rule below, stand in for the decimal-arithmetic
// library spec.md section 1 calls out as an external collaborator —
// no such library appears anywhere in the retrieved corpus, so the
// arithmetic here is implemented directly on math/big.Int (see
// DESIGN.md).
type Decimal struct {
	Mantissa Int128
	Scale    uint32
}

// NewDecimal builds a Decimal, rejecting scales above MaxDecimalScale.
func NewDecimal(mantissa Int128, scale uint32) (Decimal, error) {
	if scale > MaxDecimalScale {
		return Decimal{}, fmt.Errorf("decimal scale %d exceeds maximum %d", scale, MaxDecimalScale)
	}
	return Decimal{Mantissa: mantissa, Scale: scale}, nil
}

func pow10(n uint32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// rescale returns a's mantissa expressed at scale `to`, which must be >= a.Scale.
func rescale(a Decimal, to uint32) *big.Int {
	m := a.Mantissa.Big()
	if to == a.Scale {
		return m
	}
	return new(big.Int).Mul(m, pow10(to-a.Scale))
}

// Add returns a+b at the larger of the two scales.
func Add(a, b Decimal) (Decimal, error) {
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	sum := new(big.Int).Add(rescale(a, scale), rescale(b, scale))
	m, ok := Int128FromBig(sum)
	if !ok {
		return Decimal{}, fmt.Errorf("decimal addition overflow")
	}
	return Decimal{Mantissa: m, Scale: scale}, nil
}

// Sub returns a-b at the larger of the two scales.
func Sub(a, b Decimal) (Decimal, error) {
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	diff := new(big.Int).Sub(rescale(a, scale), rescale(b, scale))
	m, ok := Int128FromBig(diff)
	if !ok {
		return Decimal{}, fmt.Errorf("decimal subtraction overflow")
	}
	return Decimal{Mantissa: m, Scale: scale}, nil
}

// Neg returns -a.
func Neg(a Decimal) Decimal {
	m, _ := Int128FromBig(new(big.Int).Neg(a.Mantissa.Big()))
	return Decimal{Mantissa: m, Scale: a.Scale}
}

// Mul returns a*b at scale a.Scale+b.Scale.
func Mul(a, b Decimal) (Decimal, error) {
	scale := a.Scale + b.Scale
	prod := new(big.Int).Mul(a.Mantissa.Big(), b.Mantissa.Big())
	m, ok := Int128FromBig(prod)
	if !ok {
		return Decimal{}, fmt.Errorf("decimal multiplication overflow")
	}
	return Decimal{Mantissa: m, Scale: scale}, nil
}

// Div divides a by b, rounding half-away-from-zero at the requested
// result scale (callers with no scale of their own pass
// DefaultDivisionScale).
func Div(a, b Decimal, resultScale uint32) (Decimal, error) {
	if b.Mantissa.Big().Sign() == 0 {
		return Decimal{}, fmt.Errorf("decimal division by zero")
	}
	// a/b = (a.mantissa / 10^a.scale) / (b.mantissa / 10^b.scale)
	//     = a.mantissa * 10^(b.scale - a.scale + resultScale) / b.mantissa, at resultScale
	shift := int64(b.Scale) - int64(a.Scale) + int64(resultScale)
	num := a.Mantissa.Big()
	den := b.Mantissa.Big()
	if shift >= 0 {
		num = new(big.Int).Mul(num, pow10(uint32(shift)))
	} else {
		den = new(big.Int).Mul(den, pow10(uint32(-shift)))
	}
	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	quo = roundHalfAwayFromZero(quo, rem, den)
	m, ok := Int128FromBig(quo)
	if !ok {
		return Decimal{}, fmt.Errorf("decimal division overflow")
	}
	return Decimal{Mantissa: m, Scale: resultScale}, nil
}

// roundHalfAwayFromZero adjusts a truncated quotient (quo, remainder
// rem, divisor den) to the half-away-from-zero rounded result.
func roundHalfAwayFromZero(quo, rem, den *big.Int) *big.Int {
	if rem.Sign() == 0 {
		return quo
	}
	twiceRem := new(big.Int).Mul(new(big.Int).Abs(rem), big.NewInt(2))
	absDen := new(big.Int).Abs(den)
	cmp := twiceRem.Cmp(absDen)
	if cmp < 0 {
		return quo
	}
	one := big.NewInt(1)
	// rem carries the dividend's sign; the quotient is negative when
	// that differs from the divisor's sign.
	if rem.Sign() != den.Sign() {
		one = new(big.Int).Neg(one)
	}
	return new(big.Int).Add(quo, one)
}

// Cmp compares two decimals by true numeric value regardless of scale.
func Cmp(a, b Decimal) int {
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	return rescale(a, scale).Cmp(rescale(b, scale))
}

// String renders the decimal in human-readable form, e.g. "12.340".
func (d Decimal) String() string {
	m := d.Mantissa.Big()
	neg := m.Sign() < 0
	m = new(big.Int).Abs(m)
	s := m.String()
	if d.Scale == 0 {
		if neg {
			return "-" + s
		}
		return s
	}
	for uint32(len(s)) <= d.Scale {
		s = "0" + s
	}
	intPart := s[:len(s)-int(d.Scale)]
	fracPart := s[len(s)-int(d.Scale):]
	out := intPart + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// CanonicalBytes returns the 20-byte binary payload (16-byte big-endian
// biased mantissa + 4-byte big-endian scale) spec.md section 6 names.
func (d Decimal) CanonicalBytes() [20]byte {
	var out [20]byte
	mb := d.Mantissa.CanonicalBytes()
	copy(out[:16], mb[:])
	out[16] = byte(d.Scale >> 24)
	out[17] = byte(d.Scale >> 16)
	out[18] = byte(d.Scale >> 8)
	out[19] = byte(d.Scale)
	return out
}

// DecimalFromCanonicalBytes decodes the 20-byte binary payload.
func DecimalFromCanonicalBytes(b [20]byte) Decimal {
	var mb [16]byte
	copy(mb[:], b[:16])
	scale := uint32(b[16])<<24 | uint32(b[17])<<16 | uint32(b[18])<<8 | uint32(b[19])
	return Decimal{Mantissa: Int128FromCanonicalBytes(mb), Scale: scale}
}

// ParseDecimal parses a human-readable decimal string such as "12.340".
func ParseDecimal(s string) (Decimal, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	digits := intPart + fracPart
	scale := uint32(0)
	if hasFrac {
		scale = uint32(len(fracPart))
	}
	if digits == "" {
		digits = "0"
	}
	m, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal{}, fmt.Errorf("invalid decimal literal %q", s)
	}
	if neg {
		m.Neg(m)
	}
	mantissa, ok := Int128FromBig(m)
	if !ok {
		return Decimal{}, fmt.Errorf("decimal literal %q overflows mantissa", s)
	}
	return NewDecimal(mantissa, scale)
}

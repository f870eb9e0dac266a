package ivalue

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/big"
)

// CompareCanonical is the total order spec.md section 3 requires:
// deterministic across platforms, total within a coercion family.
// Cross-family comparisons (reached only when sorting mixed-Kind
// collections such as AccessPlan union children) fall back to
// comparing Family, so the order is still total and deterministic.
// Numeric values of different kinds compare by numeric value.
func CompareCanonical(a, b Value) int {
	fa, fb := FamilyOf(a.kind), FamilyOf(b.kind)
	if fa != fb {
		return cmpU8(uint8(fa), uint8(fb))
	}
	switch fa {
	case FamilyNumeric:
		return numericRat(a).Cmp(numericRat(b))
	case FamilyBool:
		return cmpBool(a.b, b.b)
	case FamilyUnit:
		return 0
	case FamilyDate, FamilyDuration, FamilyTimestamp:
		return cmpI64(a.i64, b.i64)
	case FamilyUlid:
		return bytes.Compare(a.ulid[:], b.ulid[:])
	case FamilyPrincipal:
		return bytes.Compare(a.principal, b.principal)
	case FamilySubaccount:
		return bytes.Compare(a.subaccount[:], b.subaccount[:])
	case FamilyAccount:
		if c := bytes.Compare(a.account.Owner, b.account.Owner); c != 0 {
			return c
		}
		return cmpOptionalSubaccount(a.account.Subaccount, b.account.Subaccount)
	case FamilyBlob:
		return bytes.Compare(a.blob, b.blob)
	case FamilyText, FamilyEnum:
		return cmpStr(a.text, b.text)
	case FamilyList:
		return cmpValueSlice(a.list, b.list)
	case FamilySet:
		return cmpValueSlice(a.set, b.set)
	case FamilyMap:
		return cmpMap(a.m, b.m)
	default:
		return 0
	}
}

func cmpU8(a, b uint8) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func cmpI64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpStr(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func cmpOptionalSubaccount(a, b *Subaccount) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	return bytes.Compare(a[:], b[:])
}

func cmpValueSlice(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := CompareCanonical(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpI64(int64(len(a)), int64(len(b)))
}

func cmpMap(a, b []MapEntry) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := CompareCanonical(a[i].Key, b[i].Key); c != 0 {
			return c
		}
		if c := CompareCanonical(a[i].Value, b[i].Value); c != 0 {
			return c
		}
	}
	return cmpI64(int64(len(a)), int64(len(b)))
}

// numericRat maps any numeric-family Value to an exact rational so that
// NumericWiden comparisons are correct regardless of the concrete
// numeric Kind on either side.
func numericRat(v Value) *big.Rat {
	switch v.kind {
	case KindUint:
		return new(big.Rat).SetUint64(v.u64)
	case KindInt:
		return new(big.Rat).SetInt64(v.i64)
	case KindUint128:
		return new(big.Rat).SetInt(v.u128.Big())
	case KindInt128:
		return new(big.Rat).SetInt(v.i128.Big())
	case KindUintBig, KindIntBig:
		return new(big.Rat).SetInt(v.big)
	case KindFloat32:
		return new(big.Rat).SetFloat64(float64(v.f32))
	case KindFloat64:
		return new(big.Rat).SetFloat64(v.f64)
	case KindDecimal:
		num := v.dec.Mantissa.Big()
		den := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(v.dec.Scale)), nil)
		return new(big.Rat).SetFrac(num, den)
	case KindE8s:
		return new(big.Rat).SetFrac(new(big.Int).SetUint64(v.u64), big.NewInt(1e8))
	case KindE18s:
		den := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
		return new(big.Rat).SetFrac(new(big.Int).SetUint64(v.u64), den)
	default:
		return new(big.Rat)
	}
}

// EncodeCanonical returns the deterministic byte representation used
// for RawKey construction, index components, continuation slots and
// fingerprints (spec.md section 6). Every variant has exactly one tag
// byte followed by its canonical payload.
func EncodeCanonical(v Value) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(v.kind))
	switch v.kind {
	case KindBool:
		if v.b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case KindUnit:
	case KindUint:
		writeU64(buf, v.u64)
	case KindInt:
		writeU64(buf, biasI64(v.i64))
	case KindUint128:
		b := Uint128CanonicalBytes(v.u128)
		buf.Write(b[:])
	case KindInt128:
		b := v.i128.CanonicalBytes()
		buf.Write(b[:])
	case KindUintBig:
		writeBigUnsigned(buf, v.big)
	case KindIntBig:
		writeBigSigned(buf, v.big)
	case KindFloat32:
		writeU32(buf, biasF32(v.f32))
	case KindFloat64:
		writeU64(buf, biasF64(v.f64))
	case KindDecimal:
		b := v.dec.CanonicalBytes()
		buf.Write(b[:])
	case KindDate, KindDuration, KindTimestamp:
		writeU64(buf, biasI64(v.i64))
	case KindE8s, KindE18s:
		writeU64(buf, v.u64)
	case KindUlid:
		buf.Write(v.ulid[:])
	case KindPrincipal:
		writeLenPrefixed(buf, v.principal)
	case KindAccount:
		writeLenPrefixed(buf, v.account.Owner)
		if v.account.Subaccount != nil {
			buf.WriteByte(1)
			buf.Write(v.account.Subaccount[:])
		} else {
			buf.WriteByte(0)
		}
	case KindSubaccount:
		buf.Write(v.subaccount[:])
	case KindBlob:
		writeLenPrefixed(buf, v.blob)
	case KindText, KindEnum:
		writeLenPrefixed(buf, []byte(v.text))
	case KindList:
		writeU32Len(buf, len(v.list))
		for _, e := range v.list {
			child := EncodeCanonical(e)
			writeU32Len(buf, len(child))
			buf.Write(child)
		}
	case KindSet:
		writeU32Len(buf, len(v.set))
		for _, e := range v.set {
			child := EncodeCanonical(e)
			writeU32Len(buf, len(child))
			buf.Write(child)
		}
	case KindMap:
		writeU32Len(buf, len(v.m))
		for _, e := range v.m {
			k := EncodeCanonical(e.Key)
			val := EncodeCanonical(e.Value)
			writeU32Len(buf, len(k))
			buf.Write(k)
			writeU32Len(buf, len(val))
			buf.Write(val)
		}
	}
	return buf.Bytes()
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU32Len(buf *bytes.Buffer, n int) { writeU32(buf, uint32(n)) }

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(b)))
	buf.Write(l[:])
	buf.Write(b)
}

// biasI64 maps a signed int64 into the unsigned range so big-endian
// byte comparison matches numeric order (spec.md section 6).
func biasI64(v int64) uint64 { return uint64(v) ^ (1 << 63) }

// biasF32/biasF64 map IEEE-754 bits into an order-preserving unsigned
// representation: for non-negative floats flip the sign bit, for
// negative floats flip every bit.
func biasF64(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

func biasF32(f float32) uint32 {
	bits := math.Float32bits(f)
	if bits&(1<<31) != 0 {
		return ^bits
	}
	return bits | (1 << 31)
}

func writeBigUnsigned(buf *bytes.Buffer, v *big.Int) {
	b := v.Bytes()
	writeU32Len(buf, len(b))
	buf.Write(b)
}

func writeBigSigned(buf *bytes.Buffer, v *big.Int) {
	// Sign-magnitude with an explicit sign byte keeps ordering simple:
	// negative values sort before positive, magnitude compared directly
	// within a sign (negative magnitudes are emitted ones'-complemented
	// so that byte-lexicographic order still matches numeric order).
	if v.Sign() < 0 {
		buf.WriteByte(0)
		mag := new(big.Int).Abs(v)
		b := mag.Bytes()
		inv := make([]byte, len(b))
		for i, c := range b {
			inv[i] = ^c
		}
		writeU32Len(buf, len(inv))
		buf.Write(inv)
	} else {
		buf.WriteByte(1)
		writeBigUnsigned(buf, v)
	}
}

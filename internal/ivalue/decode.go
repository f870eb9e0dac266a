package ivalue

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
)

// DecodeCanonical is the exact inverse of EncodeCanonical: it reads one
// tagged value from the front of b and returns it along with the
// number of bytes consumed. Used by internal/icursor to decode
// continuation-token boundary slots and by internal/istore to decode
// RawKey/RawIndexKey components.
func DecodeCanonical(b []byte) (Value, int, error) {
	if len(b) < 1 {
		return Value{}, 0, fmt.Errorf("ivalue: empty canonical payload")
	}
	kind := Kind(b[0])
	rest := b[1:]
	switch kind {
	case KindBool:
		if len(rest) < 1 {
			return Value{}, 0, fmt.Errorf("ivalue: truncated bool")
		}
		return Bool(rest[0] != 0), 2, nil
	case KindUnit:
		return Unit(), 1, nil
	case KindUint:
		u, n, err := readU64(rest)
		return Uint(u), 1 + n, err
	case KindInt:
		u, n, err := readU64(rest)
		return Int(unbiasI64(u)), 1 + n, err
	case KindUint128:
		var arr [16]byte
		if len(rest) < 16 {
			return Value{}, 0, fmt.Errorf("ivalue: truncated uint128")
		}
		copy(arr[:], rest[:16])
		return Uint128V(Uint128FromCanonicalBytes(arr)), 17, nil
	case KindInt128:
		var arr [16]byte
		if len(rest) < 16 {
			return Value{}, 0, fmt.Errorf("ivalue: truncated int128")
		}
		copy(arr[:], rest[:16])
		return Int128V(Int128FromCanonicalBytes(arr)), 17, nil
	case KindUintBig:
		v, n, err := readBigUnsigned(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return UintBig(v), 1 + n, nil
	case KindIntBig:
		v, n, err := readBigSigned(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return IntBig(v), 1 + n, nil
	case KindFloat32:
		u, n, err := readU32(rest)
		if err != nil {
			return Value{}, 0, err
		}
		f, ferr := Float32V(unbiasF32ToFloat(u))
		return f, 1 + n, ferr
	case KindFloat64:
		u, n, err := readU64(rest)
		if err != nil {
			return Value{}, 0, err
		}
		f, ferr := Float64V(unbiasF64ToFloat(u))
		return f, 1 + n, ferr
	case KindDecimal:
		var arr [20]byte
		if len(rest) < 20 {
			return Value{}, 0, fmt.Errorf("ivalue: truncated decimal")
		}
		copy(arr[:], rest[:20])
		return DecimalV(DecimalFromCanonicalBytes(arr)), 21, nil
	case KindDate:
		u, n, err := readU64(rest)
		return Date(int32(unbiasI64(u))), 1 + n, err
	case KindDuration:
		u, n, err := readU64(rest)
		return Duration(unbiasI64(u)), 1 + n, err
	case KindTimestamp:
		u, n, err := readU64(rest)
		return Timestamp(unbiasI64(u)), 1 + n, err
	case KindE8s:
		u, n, err := readU64(rest)
		return E8s(u), 1 + n, err
	case KindE18s:
		u, n, err := readU64(rest)
		return E18s(u), 1 + n, err
	case KindUlid:
		if len(rest) < 16 {
			return Value{}, 0, fmt.Errorf("ivalue: truncated ulid")
		}
		var u Ulid
		copy(u[:], rest[:16])
		return UlidV(u), 17, nil
	case KindPrincipal:
		p, n, err := readLenPrefixed(rest)
		return PrincipalV(Principal(p)), 1 + n, err
	case KindAccount:
		owner, n1, err := readLenPrefixed(rest)
		if err != nil {
			return Value{}, 0, err
		}
		off := n1
		if off >= len(rest) {
			return Value{}, 0, fmt.Errorf("ivalue: truncated account")
		}
		hasSub := rest[off] != 0
		off++
		var sub *Subaccount
		if hasSub {
			if len(rest)-off < 32 {
				return Value{}, 0, fmt.Errorf("ivalue: truncated account subaccount")
			}
			var s Subaccount
			copy(s[:], rest[off:off+32])
			sub = &s
			off += 32
		}
		return AccountV(Account{Owner: owner, Subaccount: sub}), 1 + off, nil
	case KindSubaccount:
		if len(rest) < 32 {
			return Value{}, 0, fmt.Errorf("ivalue: truncated subaccount")
		}
		var s Subaccount
		copy(s[:], rest[:32])
		return SubaccountV(s), 33, nil
	case KindBlob:
		b2, n, err := readLenPrefixed(rest)
		return Blob(b2), 1 + n, err
	case KindText:
		b2, n, err := readLenPrefixed(rest)
		return Text(string(b2)), 1 + n, err
	case KindEnum:
		b2, n, err := readLenPrefixed(rest)
		return Enum(string(b2)), 1 + n, err
	case KindList:
		items, n, err := readValueSlice(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return List(items), 1 + n, nil
	case KindSet:
		items, n, err := readValueSlice(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Set(items), 1 + n, nil
	case KindMap:
		count, n, err := readU32(rest)
		if err != nil {
			return Value{}, 0, err
		}
		off := n
		entries := make([]MapEntry, 0, count)
		for i := uint32(0); i < count; i++ {
			kLen, kn, err := readU32(rest[off:])
			if err != nil {
				return Value{}, 0, err
			}
			off += kn
			if uint32(len(rest)-off) < kLen {
				return Value{}, 0, fmt.Errorf("ivalue: truncated map key")
			}
			k, _, err := DecodeCanonical(rest[off : off+int(kLen)])
			if err != nil {
				return Value{}, 0, err
			}
			off += int(kLen)

			vLen, vn, err := readU32(rest[off:])
			if err != nil {
				return Value{}, 0, err
			}
			off += vn
			if uint32(len(rest)-off) < vLen {
				return Value{}, 0, fmt.Errorf("ivalue: truncated map value")
			}
			val, _, err := DecodeCanonical(rest[off : off+int(vLen)])
			if err != nil {
				return Value{}, 0, err
			}
			off += int(vLen)

			entries = append(entries, MapEntry{Key: k, Value: val})
		}
		return Map(entries), 1 + off, nil
	default:
		return Value{}, 0, fmt.Errorf("ivalue: unknown canonical kind tag %d", kind)
	}
}

func readU64(b []byte) (uint64, int, error) {
	if len(b) < 8 {
		return 0, 0, fmt.Errorf("ivalue: truncated u64")
	}
	return binary.BigEndian.Uint64(b[:8]), 8, nil
}

func readU32(b []byte) (uint32, int, error) {
	if len(b) < 4 {
		return 0, 0, fmt.Errorf("ivalue: truncated u32")
	}
	return binary.BigEndian.Uint32(b[:4]), 4, nil
}

func readLenPrefixed(b []byte) ([]byte, int, error) {
	if len(b) < 2 {
		return nil, 0, fmt.Errorf("ivalue: truncated length prefix")
	}
	l := int(binary.BigEndian.Uint16(b[:2]))
	if len(b)-2 < l {
		return nil, 0, fmt.Errorf("ivalue: truncated payload")
	}
	return append([]byte{}, b[2:2+l]...), 2 + l, nil
}

func readBigUnsigned(b []byte) (*big.Int, int, error) {
	l, n, err := readU32(b)
	if err != nil {
		return nil, 0, err
	}
	if uint32(len(b)-n) < l {
		return nil, 0, fmt.Errorf("ivalue: truncated big unsigned")
	}
	v := new(big.Int).SetBytes(b[n : n+int(l)])
	return v, n + int(l), nil
}

func readBigSigned(b []byte) (*big.Int, int, error) {
	if len(b) < 1 {
		return nil, 0, fmt.Errorf("ivalue: truncated big signed sign byte")
	}
	neg := b[0] == 0
	l, n, err := readU32(b[1:])
	if err != nil {
		return nil, 0, err
	}
	off := 1 + n
	if uint32(len(b)-off) < l {
		return nil, 0, fmt.Errorf("ivalue: truncated big signed magnitude")
	}
	raw := b[off : off+int(l)]
	if !neg {
		return new(big.Int).SetBytes(raw), off + int(l), nil
	}
	inv := make([]byte, len(raw))
	for i, c := range raw {
		inv[i] = ^c
	}
	mag := new(big.Int).SetBytes(inv)
	return new(big.Int).Neg(mag), off + int(l), nil
}

func readValueSlice(b []byte) ([]Value, int, error) {
	count, n, err := readU32(b)
	if err != nil {
		return nil, 0, err
	}
	off := n
	items := make([]Value, 0, count)
	for i := uint32(0); i < count; i++ {
		l, ln, err := readU32(b[off:])
		if err != nil {
			return nil, 0, err
		}
		off += ln
		if uint32(len(b)-off) < l {
			return nil, 0, fmt.Errorf("ivalue: truncated element")
		}
		v, _, err := DecodeCanonical(b[off : off+int(l)])
		if err != nil {
			return nil, 0, err
		}
		off += int(l)
		items = append(items, v)
	}
	return items, off, nil
}

func unbiasI64(u uint64) int64 { return int64(u ^ (1 << 63)) }

func unbiasF64ToFloat(u uint64) float64 {
	if u&(1<<63) != 0 {
		return math.Float64frombits(u &^ (1 << 63))
	}
	return math.Float64frombits(^u)
}

func unbiasF32ToFloat(u uint32) float32 {
	if u&(1<<31) != 0 {
		return math.Float32frombits(u &^ (1 << 31))
	}
	return math.Float32frombits(^u)
}

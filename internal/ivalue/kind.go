// Package ivalue implements the canonical Value sum type that flows
// through the whole query pipeline: predicates, index components,
// cursor slots and fingerprints all encode down to this one type
// (spec.md section 3).
package ivalue

// Kind tags the variant carried by a Value. The set is closed. Values
// of different kinds are ordered by CompareCanonical through their
// Family (see FamilyOf), not through Kind.
type Kind uint8

const (
	KindBool Kind = iota
	KindUnit
	KindUint
	KindInt
	KindUint128
	KindInt128
	KindUintBig
	KindIntBig
	KindFloat32
	KindFloat64
	KindDecimal
	KindDate
	KindDuration
	KindTimestamp
	KindE8s
	KindE18s
	KindUlid
	KindPrincipal
	KindAccount
	KindSubaccount
	KindBlob
	KindText
	KindEnum
	KindList
	KindSet
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindUnit:
		return "Unit"
	case KindUint:
		return "Uint"
	case KindInt:
		return "Int"
	case KindUint128:
		return "Uint128"
	case KindInt128:
		return "Int128"
	case KindUintBig:
		return "UintBig"
	case KindIntBig:
		return "IntBig"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindDecimal:
		return "Decimal"
	case KindDate:
		return "Date"
	case KindDuration:
		return "Duration"
	case KindTimestamp:
		return "Timestamp"
	case KindE8s:
		return "E8s"
	case KindE18s:
		return "E18s"
	case KindUlid:
		return "Ulid"
	case KindPrincipal:
		return "Principal"
	case KindAccount:
		return "Account"
	case KindSubaccount:
		return "Subaccount"
	case KindBlob:
		return "Blob"
	case KindText:
		return "Text"
	case KindEnum:
		return "Enum"
	case KindList:
		return "List"
	case KindSet:
		return "Set"
	case KindMap:
		return "Map"
	default:
		return "Unknown"
	}
}

// Family groups kinds for CoercionSpec applicability (spec.md 3).
type Family uint8

const (
	FamilyBool Family = iota
	FamilyUnit
	FamilyNumeric
	FamilyDate
	FamilyDuration
	FamilyTimestamp
	FamilyUlid
	FamilyPrincipal
	FamilyAccount
	FamilySubaccount
	FamilyBlob
	FamilyText
	FamilyEnum
	FamilyList
	FamilySet
	FamilyMap
)

// FamilyOf returns the coercion family a Kind belongs to.
func FamilyOf(k Kind) Family {
	switch k {
	case KindBool:
		return FamilyBool
	case KindUnit:
		return FamilyUnit
	case KindUint, KindInt, KindUint128, KindInt128, KindUintBig, KindIntBig,
		KindFloat32, KindFloat64, KindDecimal, KindE8s, KindE18s:
		return FamilyNumeric
	case KindDate:
		return FamilyDate
	case KindDuration:
		return FamilyDuration
	case KindTimestamp:
		return FamilyTimestamp
	case KindUlid:
		return FamilyUlid
	case KindPrincipal:
		return FamilyPrincipal
	case KindAccount:
		return FamilyAccount
	case KindSubaccount:
		return FamilySubaccount
	case KindBlob:
		return FamilyBlob
	case KindText:
		return FamilyText
	case KindEnum:
		return FamilyEnum
	case KindList:
		return FamilyList
	case KindSet:
		return FamilySet
	case KindMap:
		return FamilyMap
	default:
		return FamilyUnit
	}
}

// IsNumeric reports whether k belongs to the numeric family.
func IsNumeric(k Kind) bool { return FamilyOf(k) == FamilyNumeric }

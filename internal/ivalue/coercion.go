package ivalue

import "strings"

// CoercionID identifies how a Compare predicate's literal is related to
// the field it targets (spec.md section 3).
type CoercionID uint8

const (
	CoercionStrict CoercionID = iota
	CoercionNumericWiden
	CoercionTextCasefold
	CoercionCollectionElement
)

func (c CoercionID) String() string {
	switch c {
	case CoercionStrict:
		return "Strict"
	case CoercionNumericWiden:
		return "NumericWiden"
	case CoercionTextCasefold:
		return "TextCasefold"
	case CoercionCollectionElement:
		return "CollectionElement"
	default:
		return "Unknown"
	}
}

// CoercionSpec is carried by every compare predicate node.
type CoercionSpec struct {
	ID CoercionID
}

// CompareWithCoercion compares literal against field using the rules
// the CoercionSpec names. It assumes the pair has already passed
// validation (ipredicate handles applicability checks); this function
// only performs the comparison itself.
func CompareWithCoercion(field, literal Value, spec CoercionSpec) int {
	switch spec.ID {
	case CoercionTextCasefold:
		return cmpStr(strings.ToLower(field.text), strings.ToLower(literal.text))
	case CoercionNumericWiden:
		return numericRat(field).Cmp(numericRat(literal))
	default: // Strict, CollectionElement (element-level compare is Strict)
		return CompareCanonical(field, literal)
	}
}

// EqualWithCoercion is CompareWithCoercion == 0, used by Eq/Ne and by
// collection-containment checks.
func EqualWithCoercion(field, literal Value, spec CoercionSpec) bool {
	return CompareWithCoercion(field, literal, spec) == 0
}

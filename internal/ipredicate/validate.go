package ipredicate

import (
	"github.com/dragginzgame/icydb-sub000/internal/ierrkit"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
)

// ValidationErrorKind is the closed set of validator failure reasons
// (spec.md section 4.2), carried on every validation *ierrkit.Error via
// the Message prefix so callers can match on it.
type ValidationErrorKind string

const (
	ErrUnknownField      ValidationErrorKind = "unknown field"
	ErrUnsupportedField  ValidationErrorKind = "unsupported field type"
	ErrInvalidOperator   ValidationErrorKind = "invalid operator"
	ErrInvalidCoercion   ValidationErrorKind = "invalid coercion"
	ErrInvalidLiteral    ValidationErrorKind = "invalid literal"
)

func fail(kind ValidationErrorKind, field string) error {
	return ierrkit.Unsupportedf(ierrkit.OriginQuery, "%s: %s", kind, field)
}

// Validate walks a (typically already-normalized) predicate tree once
// against schema, checking field existence, operator/type
// compatibility and coercion applicability (spec.md section 4.2).
func Validate(schema *ischema.SchemaInfo, n Node) error {
	switch t := n.(type) {
	case True, False:
		return nil
	case And:
		for _, c := range t.Children {
			if err := Validate(schema, c); err != nil {
				return err
			}
		}
		return nil
	case Or:
		for _, c := range t.Children {
			if err := Validate(schema, c); err != nil {
				return err
			}
		}
		return nil
	case Not:
		return Validate(schema, t.Child)
	case Compare:
		return validateCompare(schema, t)
	case IsNull:
		return validatePresenceField(schema, t.Field)
	case IsMissing:
		return validatePresenceField(schema, t.Field)
	case IsEmpty:
		return validateEmptinessField(schema, t.Field)
	case IsNotEmpty:
		return validateEmptinessField(schema, t.Field)
	case TextContains:
		return validateTextContains(schema, t.Field)
	case TextContainsCi:
		return validateTextContains(schema, t.Field)
	case MapContainsKey:
		return validateMapContains(schema, t.Field, &t.Key, nil)
	case MapContainsValue:
		return validateMapContains(schema, t.Field, nil, &t.Value)
	case MapContainsEntry:
		return validateMapContains(schema, t.Field, &t.Key, &t.Value)
	default:
		return ierrkit.Internal(ierrkit.OriginQuery, "unknown predicate node kind")
	}
}

func fieldType(schema *ischema.SchemaInfo, field string) (ischema.FieldType, error) {
	ft, ok := schema.Field(field)
	if !ok {
		return ischema.FieldType{}, fail(ErrUnknownField, field)
	}
	return ft, nil
}

// validatePresenceField allows Unsupported fields (spec.md 4.2: "Is*:
// presence predicates allow Unsupported fields").
func validatePresenceField(schema *ischema.SchemaInfo, field string) error {
	if _, ok := schema.Field(field); !ok {
		return fail(ErrUnknownField, field)
	}
	return nil
}

// validateEmptinessField requires text or collection (spec.md 4.2).
func validateEmptinessField(schema *ischema.SchemaInfo, field string) error {
	ft, err := fieldType(schema, field)
	if err != nil {
		return err
	}
	switch ft.Kind {
	case ischema.FieldTypeList, ischema.FieldTypeSet:
		return nil
	case ischema.FieldTypeScalar:
		if ft.Scalar.Kind == ivalue.KindText {
			return nil
		}
	}
	return fail(ErrUnsupportedField, field)
}

func validateTextContains(schema *ischema.SchemaInfo, field string) error {
	ft, err := fieldType(schema, field)
	if err != nil {
		return err
	}
	if ft.Kind != ischema.FieldTypeScalar || ft.Scalar.Kind != ivalue.KindText {
		return fail(ErrUnsupportedField, field)
	}
	return nil
}

func validateMapContains(schema *ischema.SchemaInfo, field string, key, value *ivalue.Value) error {
	ft, err := fieldType(schema, field)
	if err != nil {
		return err
	}
	if ft.Kind != ischema.FieldTypeMap {
		return fail(ErrUnsupportedField, field)
	}
	if key != nil && key.Kind() != ft.MapKey.Kind {
		return fail(ErrInvalidLiteral, field)
	}
	if value != nil && value.Kind() != ft.MapElem.Kind {
		return fail(ErrInvalidLiteral, field)
	}
	// TextCasefold forbidden on MapContains*: these nodes carry no
	// CoercionSpec at all, so there is nothing further to check here.
	return nil
}

func validateCompare(schema *ischema.SchemaInfo, c Compare) error {
	ft, err := fieldType(schema, c.Field)
	if err != nil {
		return err
	}
	if ft.Kind == ischema.FieldTypeUnsupported {
		return fail(ErrUnsupportedField, c.Field)
	}

	switch c.Op {
	case OpEq, OpNe:
		return validateEqCoercion(ft, c)
	case OpLt, OpLte, OpGt, OpGte:
		return validateRangeOp(ft, c)
	case OpIn, OpNotIn:
		return validateInOp(ft, c)
	case OpContains:
		return validateContainsOp(ft, c)
	case OpStartsWith, OpEndsWith:
		return validateAffixOp(ft, c)
	default:
		return fail(ErrInvalidOperator, c.Field)
	}
}

func validateEqCoercion(ft ischema.FieldType, c Compare) error {
	switch c.Coercion.ID {
	case ivalue.CoercionStrict:
		if ft.Kind != ischema.FieldTypeScalar || !ft.Scalar.MatchesValue(c.Value) {
			return fail(ErrInvalidLiteral, c.Field)
		}
	case ivalue.CoercionNumericWiden:
		if ft.Kind != ischema.FieldTypeScalar || !ivalue.IsNumeric(ft.Scalar.Kind) || !ivalue.IsNumeric(c.Value.Kind()) {
			return fail(ErrInvalidCoercion, c.Field)
		}
	case ivalue.CoercionTextCasefold:
		if ft.Kind != ischema.FieldTypeScalar || ft.Scalar.Kind != ivalue.KindText {
			return fail(ErrInvalidCoercion, c.Field)
		}
	case ivalue.CoercionCollectionElement:
		elem, ok := ft.ElementType()
		if !ok || !elem.MatchesValue(c.Value) {
			return fail(ErrInvalidCoercion, c.Field)
		}
	default:
		return fail(ErrInvalidCoercion, c.Field)
	}
	return nil
}

func validateRangeOp(ft ischema.FieldType, c Compare) error {
	if ft.Kind != ischema.FieldTypeScalar || !ft.Scalar.SupportsOrdering() {
		return fail(ErrInvalidOperator, c.Field)
	}
	return validateEqCoercion(ft, c)
}

func validateInOp(ft ischema.FieldType, c Compare) error {
	if c.Value.Kind() != ivalue.KindList {
		return fail(ErrInvalidLiteral, c.Field)
	}
	for _, elem := range c.Value.AsList() {
		probe := Compare{Field: c.Field, Op: OpEq, Value: elem, Coercion: c.Coercion}
		if err := validateEqCoercion(ft, probe); err != nil {
			return err
		}
	}
	return nil
}

func validateContainsOp(ft ischema.FieldType, c Compare) error {
	if ft.Kind != ischema.FieldTypeList && ft.Kind != ischema.FieldTypeSet {
		return fail(ErrInvalidOperator, c.Field)
	}
	elem, _ := ft.ElementType()
	if c.Coercion.ID != ivalue.CoercionCollectionElement || !elem.MatchesValue(c.Value) {
		return fail(ErrInvalidCoercion, c.Field)
	}
	return nil
}

func validateAffixOp(ft ischema.FieldType, c Compare) error {
	if ft.Kind != ischema.FieldTypeScalar || ft.Scalar.Kind != ivalue.KindText {
		return fail(ErrInvalidOperator, c.Field)
	}
	if c.Value.Kind() != ivalue.KindText {
		return fail(ErrInvalidLiteral, c.Field)
	}
	return nil
}

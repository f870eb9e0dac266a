package ipredicate

import (
	"strings"

	"github.com/dragginzgame/icydb-sub000/internal/irow"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
)

// Evaluate walks a (normalized or raw) predicate tree against a
// decoded row (spec.md section 4.1). Missing and explicit-null fields
// both fail Compare/TextContains*/MapContains* predicates — a field
// that was never assigned a value can never satisfy a comparison — and
// only IsNull/IsMissing/IsEmpty/IsNotEmpty observe the distinction.
func Evaluate(n Node, row irow.Row) bool {
	if n == nil {
		return true
	}
	switch t := n.(type) {
	case True:
		return true
	case False:
		return false
	case And:
		for _, c := range t.Children {
			if !Evaluate(c, row) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range t.Children {
			if Evaluate(c, row) {
				return true
			}
		}
		return false
	case Not:
		return !Evaluate(t.Child, row)
	case Compare:
		return evalCompare(t, row)
	case IsNull:
		return row.Get(t.Field).State == irow.FieldNull
	case IsMissing:
		return row.Get(t.Field).State == irow.FieldMissing
	case IsEmpty:
		c := row.Get(t.Field)
		return c.State == irow.FieldPresent && isEmptyValue(c.Value)
	case IsNotEmpty:
		c := row.Get(t.Field)
		return c.State == irow.FieldPresent && !isEmptyValue(c.Value)
	case TextContains:
		c := row.Get(t.Field)
		return c.State == irow.FieldPresent && strings.Contains(c.Value.AsText(), t.Value)
	case TextContainsCi:
		c := row.Get(t.Field)
		return c.State == irow.FieldPresent && strings.Contains(strings.ToLower(c.Value.AsText()), strings.ToLower(t.Value))
	case MapContainsKey:
		c := row.Get(t.Field)
		if c.State != irow.FieldPresent {
			return false
		}
		for _, e := range c.Value.AsMap() {
			if ivalue.Equal(e.Key, t.Key) {
				return true
			}
		}
		return false
	case MapContainsValue:
		c := row.Get(t.Field)
		if c.State != irow.FieldPresent {
			return false
		}
		for _, e := range c.Value.AsMap() {
			if ivalue.Equal(e.Value, t.Value) {
				return true
			}
		}
		return false
	case MapContainsEntry:
		c := row.Get(t.Field)
		if c.State != irow.FieldPresent {
			return false
		}
		for _, e := range c.Value.AsMap() {
			if ivalue.Equal(e.Key, t.Key) && ivalue.Equal(e.Value, t.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func isEmptyValue(v ivalue.Value) bool {
	switch v.Kind() {
	case ivalue.KindText:
		return v.AsText() == ""
	case ivalue.KindBlob:
		return len(v.AsBlob()) == 0
	case ivalue.KindList:
		return len(v.AsList()) == 0
	case ivalue.KindSet:
		return len(v.AsSet()) == 0
	case ivalue.KindMap:
		return len(v.AsMap()) == 0
	default:
		return false
	}
}

func evalCompare(c Compare, row irow.Row) bool {
	cell := row.Get(c.Field)
	if cell.State != irow.FieldPresent {
		return false
	}
	switch c.Op {
	case OpEq:
		return ivalue.EqualWithCoercion(cell.Value, c.Value, c.Coercion)
	case OpNe:
		return !ivalue.EqualWithCoercion(cell.Value, c.Value, c.Coercion)
	case OpLt:
		return ivalue.CompareWithCoercion(cell.Value, c.Value, c.Coercion) < 0
	case OpLte:
		return ivalue.CompareWithCoercion(cell.Value, c.Value, c.Coercion) <= 0
	case OpGt:
		return ivalue.CompareWithCoercion(cell.Value, c.Value, c.Coercion) > 0
	case OpGte:
		return ivalue.CompareWithCoercion(cell.Value, c.Value, c.Coercion) >= 0
	case OpIn:
		for _, item := range c.Value.AsList() {
			if ivalue.EqualWithCoercion(cell.Value, item, c.Coercion) {
				return true
			}
		}
		return false
	case OpNotIn:
		for _, item := range c.Value.AsList() {
			if ivalue.EqualWithCoercion(cell.Value, item, c.Coercion) {
				return false
			}
		}
		return true
	case OpContains:
		for _, item := range cell.Value.AsSet() {
			if ivalue.EqualWithCoercion(item, c.Value, c.Coercion) {
				return true
			}
		}
		for _, item := range cell.Value.AsList() {
			if ivalue.EqualWithCoercion(item, c.Value, c.Coercion) {
				return true
			}
		}
		return false
	case OpStartsWith:
		return strings.HasPrefix(cell.Value.AsText(), c.Value.AsText())
	case OpEndsWith:
		return strings.HasSuffix(cell.Value.AsText(), c.Value.AsText())
	default:
		return false
	}
}

// Package ischema carries the schema surface the planner and validator
// consume: scalar type lowering, field types, entity models and index
// models (spec.md section 3). It is grounded on the shape of
// sqldef/schema.go's small DDL type (a struct describing one persisted
// thing plus an accessor) but replaces SQL-diffing with a static,
// already-resolved model.
package ischema

import (
	"fmt"

	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
)

// ScalarFamily mirrors ivalue.Family but is the name surfaced on
// ScalarType so the schema package does not need to expose ivalue's
// internal Kind directly to callers that only care about a field type.
type ScalarFamily = ivalue.Family

// ScalarType describes one leaf (non-collection, non-map) field type.
type ScalarType struct {
	Kind ivalue.Kind
}

func (s ScalarType) Family() ScalarFamily { return ivalue.FamilyOf(s.Kind) }

// MatchesValue reports whether v's Kind is exactly s.Kind (Strict
// coercion's definition of "matches").
func (s ScalarType) MatchesValue(v ivalue.Value) bool { return v.Kind() == s.Kind }

// SupportsOrdering reports whether <, <=, >, >= are meaningful. Every
// scalar kind we carry has a total order under ivalue.CompareCanonical;
// only Unit (a single value) is excluded, because ordering it has no
// meaningful use.
func (s ScalarType) SupportsOrdering() bool {
	switch s.Kind {
	case ivalue.KindUnit:
		return false
	default:
		return true
	}
}

// IsKeyable reports whether this scalar can serve as a primary key or
// index component. Collections, maps, floats (to avoid imprecise key
// ordering drift) and Unit are excluded.
func (s ScalarType) IsKeyable() bool {
	switch s.Kind {
	case ivalue.KindFloat32, ivalue.KindFloat64, ivalue.KindUnit:
		return false
	default:
		return true
	}
}

// SupportsArithmetic reports whether sum_by/avg_by may target this
// field (spec.md section 4.8: numeric family required).
func (s ScalarType) SupportsArithmetic() bool { return ivalue.IsNumeric(s.Kind) }

// FieldTypeKind distinguishes the shape of a FieldType.
type FieldTypeKind uint8

const (
	FieldTypeScalar FieldTypeKind = iota
	FieldTypeList
	FieldTypeSet
	FieldTypeMap
	FieldTypeUnsupported
)

// FieldType is the lowered form of a schema field (spec.md section 3).
type FieldType struct {
	Kind    FieldTypeKind
	Scalar  ScalarType   // valid when Kind == FieldTypeScalar or the element type of List/Set
	MapKey  ScalarType   // valid when Kind == FieldTypeMap
	MapElem ScalarType   // valid when Kind == FieldTypeMap
}

func Scalar(k ivalue.Kind) FieldType {
	return FieldType{Kind: FieldTypeScalar, Scalar: ScalarType{Kind: k}}
}

func ListOf(elem ivalue.Kind) FieldType {
	return FieldType{Kind: FieldTypeList, Scalar: ScalarType{Kind: elem}}
}

func SetOf(elem ivalue.Kind) FieldType {
	return FieldType{Kind: FieldTypeSet, Scalar: ScalarType{Kind: elem}}
}

func MapOf(key, elem ivalue.Kind) FieldType {
	return FieldType{Kind: FieldTypeMap, MapKey: ScalarType{Kind: key}, MapElem: ScalarType{Kind: elem}}
}

func Unsupported() FieldType { return FieldType{Kind: FieldTypeUnsupported} }

// ElementType returns the scalar element type of a List/Set field type,
// used by CollectionElement coercion validation.
func (f FieldType) ElementType() (ScalarType, bool) {
	if f.Kind == FieldTypeList || f.Kind == FieldTypeSet {
		return f.Scalar, true
	}
	return ScalarType{}, false
}

// RelationStrength names how strictly a relation field must resolve.
type RelationStrength uint8

const (
	RelationWeak RelationStrength = iota
	RelationStrong
)

// Relation describes a field whose value names an id in another
// entity's store (spec.md section 9, "Cyclic and back-references").
type Relation struct {
	TargetPath   string
	TargetEntity string
	KeyKind      ivalue.Kind
	Strength     RelationStrength
	// IsSet marks a relation field that is a Set of ids rather than a
	// single id (spec.md section 4.10: "each element of Set targets").
	IsSet bool
}

// FieldKind is a field's full declared kind: its lowered FieldType plus
// an optional Relation annotation.
type FieldKind struct {
	Type     FieldType
	Relation *Relation
}

// IndexModel describes one secondary index.
type IndexModel struct {
	Name      string
	StorePath string
	Fields    []string
	Unique    bool
}

// EntityModel is the source-of-truth schema definition for one entity
// (spec.md section 3).
type EntityModel struct {
	EntityName string
	PrimaryKey string
	Fields     map[string]FieldKind
	Indexes    []IndexModel
}

// SchemaInfo is the field-name -> FieldType map the planner and
// validator consume, derived from an EntityModel.
type SchemaInfo struct {
	model   *EntityModel
	fields  map[string]FieldType
}

// BuildSchemaInfo validates model invariants (spec.md section 3) and
// derives the field-type map.
func BuildSchemaInfo(model *EntityModel) (*SchemaInfo, error) {
	if model == nil {
		return nil, fmt.Errorf("entity model must not be nil")
	}
	if _, ok := model.Fields[model.PrimaryKey]; !ok {
		return nil, fmt.Errorf("primary key %q is not one of the entity's fields", model.PrimaryKey)
	}
	pk := model.Fields[model.PrimaryKey]
	if pk.Type.Kind == FieldTypeUnsupported {
		return nil, fmt.Errorf("primary key %q has an unsupported field type", model.PrimaryKey)
	}
	if pk.Type.Kind != FieldTypeScalar || !pk.Type.Scalar.IsKeyable() {
		return nil, fmt.Errorf("primary key %q must be a keyable scalar", model.PrimaryKey)
	}

	fields := make(map[string]FieldType, len(model.Fields))
	for name, fk := range model.Fields {
		fields[name] = fk.Type
	}

	seenIndexNames := map[string]bool{}
	for _, idx := range model.Indexes {
		if seenIndexNames[idx.Name] {
			return nil, fmt.Errorf("duplicate index name %q", idx.Name)
		}
		seenIndexNames[idx.Name] = true

		seenFields := map[string]bool{}
		for _, f := range idx.Fields {
			ft, ok := fields[f]
			if !ok {
				return nil, fmt.Errorf("index %q references unknown field %q", idx.Name, f)
			}
			if ft.Kind == FieldTypeUnsupported {
				return nil, fmt.Errorf("index %q references unsupported field %q", idx.Name, f)
			}
			if seenFields[f] {
				return nil, fmt.Errorf("index %q references field %q more than once", idx.Name, f)
			}
			seenFields[f] = true
		}
	}

	return &SchemaInfo{model: model, fields: fields}, nil
}

// Field looks up a field's lowered type.
func (s *SchemaInfo) Field(name string) (FieldType, bool) {
	ft, ok := s.fields[name]
	return ft, ok
}

// FieldKind returns the full field kind (type + relation annotation).
func (s *SchemaInfo) FieldKind(name string) (FieldKind, bool) {
	fk, ok := s.model.Fields[name]
	return fk, ok
}

func (s *SchemaInfo) PrimaryKey() string { return s.model.PrimaryKey }

func (s *SchemaInfo) PrimaryKeyType() FieldType {
	ft, _ := s.Field(s.model.PrimaryKey)
	return ft
}

func (s *SchemaInfo) EntityName() string { return s.model.EntityName }

func (s *SchemaInfo) Indexes() []IndexModel { return s.model.Indexes }

// IndexByName finds an index by its name.
func (s *SchemaInfo) IndexByName(name string) (IndexModel, bool) {
	for _, idx := range s.model.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexModel{}, false
}

// IndexesWithLeadingField returns every index whose first field is
// `field`, used by the planner's equality-prefix selection (spec.md
// section 4.3).
func (s *SchemaInfo) IndexesWithLeadingField(field string) []IndexModel {
	var out []IndexModel
	for _, idx := range s.model.Indexes {
		if len(idx.Fields) > 0 && idx.Fields[0] == field {
			out = append(out, idx)
		}
	}
	return out
}

// SingleFieldIndexesOn returns every index whose sole field is `field`.
func (s *SchemaInfo) SingleFieldIndexesOn(field string) []IndexModel {
	var out []IndexModel
	for _, idx := range s.model.Indexes {
		if len(idx.Fields) == 1 && idx.Fields[0] == field {
			out = append(out, idx)
		}
	}
	return out
}

// Package irow defines the decoded-row shape the execution kernel,
// aggregate engine, and save pipeline operate on. Row decoding itself
// is an external collaborator (spec.md section 1: "the entity codec is
// out of scope") — irow only names the Codec contract and the
// three-state field representation (missing / explicit null / present)
// that the predicate evaluator and aggregate terminals need.
package irow

import "github.com/dragginzgame/icydb-sub000/internal/ivalue"

// FieldState distinguishes a field that was never set on the entity
// from one explicitly set to null, from one carrying a value. Compare
// and containment predicates treat both Missing and Null as "absent"
// for the purposes of spec.md section 4.1's IsNull/IsMissing split.
type FieldState uint8

const (
	FieldMissing FieldState = iota
	FieldNull
	FieldPresent
)

// Cell is one field's decoded state.
type Cell struct {
	State FieldState
	Value ivalue.Value
}

func Missing() Cell            { return Cell{State: FieldMissing} }
func Null() Cell               { return Cell{State: FieldNull} }
func Present(v ivalue.Value) Cell { return Cell{State: FieldPresent, Value: v} }

// Row is a decoded entity, keyed by field name.
type Row map[string]Cell

// Get returns the cell for field, defaulting to Missing when the field
// is entirely absent from the row (rather than explicitly recorded).
func (r Row) Get(field string) Cell {
	if c, ok := r[field]; ok {
		return c
	}
	return Missing()
}

// Codec decodes/encodes the opaque row payload stored in a DataStore.
// Its concrete implementation (the entity wire format) is out of scope
// for this module; callers supply one.
type Codec interface {
	Decode(raw []byte) (Row, error)
	Encode(row Row) ([]byte, error)
	// PrimaryKey extracts the primary-key value from a decoded row,
	// used by the save pipeline to confirm an entity's own key matches
	// the RawKey it is being stored under.
	PrimaryKey(row Row, pkField string) (ivalue.Value, bool)
}

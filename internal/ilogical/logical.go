// Package ilogical attaches the logical-plan options (ordering,
// distinct, pagination, delete limits, consistency, grouping) to a
// planned access shape (spec.md section 4.4, 4.9).
package ilogical

import (
	"github.com/dragginzgame/icydb-sub000/internal/iaccess"
	"github.com/dragginzgame/icydb-sub000/internal/ierrkit"
	"github.com/dragginzgame/icydb-sub000/internal/ipredicate"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
)

// Direction is an order field's sort direction.
type Direction uint8

const (
	Asc Direction = iota
	Desc
)

// OrderField is one ORDER BY clause entry.
type OrderField struct {
	Field     string
	Direction Direction
}

// Consistency names the policy for dangling index entries (spec.md
// section 4.4); it is explicit on every plan and never inferred from
// access shape. It feeds the executable plan's fingerprint and
// continuation signature; internal/iexec skips a dangling index entry
// under both values and raises no corruption error for Strict.
type Consistency uint8

const (
	MissingOk Consistency = iota
	Strict
)

// ModeKind distinguishes Load from Delete.
type ModeKind uint8

const (
	ModeLoad ModeKind = iota
	ModeDelete
)

// Mode carries the Load{limit,offset} or Delete{limit} window.
type Mode struct {
	Kind   ModeKind
	Limit  *uint64
	Offset uint64
}

func Load(limit *uint64, offset uint64) Mode { return Mode{Kind: ModeLoad, Limit: limit, Offset: offset} }
func Delete(limit *uint64) Mode              { return Mode{Kind: ModeDelete, Limit: limit} }

// Page carries the caller-supplied continuation token bytes for a Load
// mode; nil Cursor means "first page".
type Page struct {
	Cursor []byte
}

// ScalarPlan is spec.md section 3's `ScalarPlan`.
type ScalarPlan struct {
	Mode        Mode
	Predicate   ipredicate.Node // nil means "match all"
	Order       []OrderField
	Distinct    bool
	Page        *Page
	DeleteLimit *uint64
	Consistency Consistency
}

// GroupSpec carries the grouping fields and the hard resource budgets
// enforced continuously during grouped execution (spec.md section 4.9).
type GroupSpec struct {
	GroupFields   []string
	Aggregates    []string
	MaxGroups     uint64
	MaxGroupBytes uint64
}

// GroupPlan is spec.md section 3's `GroupPlan`: a ScalarPlan base
// stream plus a GroupSpec. Grouped plans forbid cursor pagination.
type GroupPlan struct {
	Scalar ScalarPlan
	Group  GroupSpec
}

// LogicalKind distinguishes a Scalar logical plan from a Group one.
type LogicalKind uint8

const (
	LogicalScalar LogicalKind = iota
	LogicalGroup
)

// LogicalPlan is the closed sum of ScalarPlan | GroupPlan.
type LogicalPlan struct {
	Kind   LogicalKind
	Scalar *ScalarPlan
	Group  *GroupPlan
}

func ScalarLogical(p ScalarPlan) LogicalPlan { return LogicalPlan{Kind: LogicalScalar, Scalar: &p} }
func GroupLogical(p GroupPlan) LogicalPlan   { return LogicalPlan{Kind: LogicalGroup, Group: &p} }

// AccessPlannedQuery pairs a LogicalPlan with the AccessPlan the
// planner produced for its predicate (spec.md section 3).
type AccessPlannedQuery struct {
	Logical LogicalPlan
	Access  iaccess.Plan
}

// Validate checks spec.md section 4.4's invariants: order fields
// resolve in schema, DESC only applies to orderable fields, distinct
// requires an order by, and grouped plans forbid cursor pagination.
func Validate(schema *ischema.SchemaInfo, lp LogicalPlan) error {
	switch lp.Kind {
	case LogicalScalar:
		return validateScalar(schema, *lp.Scalar)
	case LogicalGroup:
		if lp.Group.Scalar.Page != nil {
			return ierrkit.InvariantViolation(ierrkit.OriginQuery, "grouped plans forbid cursor pagination")
		}
		if len(lp.Group.Group.GroupFields) == 0 {
			return ierrkit.InvariantViolation(ierrkit.OriginQuery, "grouped plan requires at least one group field")
		}
		for _, f := range lp.Group.Group.GroupFields {
			if _, ok := schema.Field(f); !ok {
				return ierrkit.Unsupportedf(ierrkit.OriginQuery, "group field %q does not resolve in schema", f)
			}
		}
		return validateScalar(schema, *lp.Group.Scalar)
	default:
		return ierrkit.Internal(ierrkit.OriginQuery, "unknown logical plan kind")
	}
}

func validateScalar(schema *ischema.SchemaInfo, sp ScalarPlan) error {
	for _, of := range sp.Order {
		ft, ok := schema.Field(of.Field)
		if !ok {
			return ierrkit.Unsupportedf(ierrkit.OriginQuery, "order field %q does not resolve in schema", of.Field)
		}
		if of.Direction == Desc {
			if ft.Kind != ischema.FieldTypeScalar || !ft.Scalar.SupportsOrdering() {
				return ierrkit.Unsupportedf(ierrkit.OriginQuery, "order field %q does not support DESC ordering", of.Field)
			}
		}
	}
	if sp.Distinct && len(sp.Order) == 0 {
		return ierrkit.InvariantViolation(ierrkit.OriginQuery, "distinct requires an order by")
	}
	return nil
}

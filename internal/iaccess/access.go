// Package iaccess defines the access-path and access-plan data model
// the planner produces and the executor consumes (spec.md sections 3
// and 4.3).
package iaccess

import "github.com/dragginzgame/icydb-sub000/internal/ivalue"

// PathKind tags the concrete AccessPath variant.
type PathKind uint8

const (
	PathByKey PathKind = iota
	PathByKeys
	PathKeyRange
	PathIndexPrefix
	PathIndexRange
	PathFullScan
)

// Bound is one side of a range; Value is meaningless when Inclusive
// and Unbounded disagree — Unbounded always wins.
type Bound struct {
	Value     ivalue.Value
	Inclusive bool
	Unbounded bool
}

func Open() Bound                         { return Bound{Unbounded: true} }
func Inclusive(v ivalue.Value) Bound      { return Bound{Value: v, Inclusive: true} }
func Exclusive(v ivalue.Value) Bound      { return Bound{Value: v, Inclusive: false} }

// Path is one leaf access path (spec.md section 2, "Access Model").
type Path struct {
	Kind PathKind

	// PathByKey
	Key ivalue.Value

	// PathByKeys
	Keys []ivalue.Value

	// PathKeyRange
	KeyLow, KeyHigh Bound

	// PathIndexPrefix / PathIndexRange
	IndexName string
	// Values pins a leading equality prefix of the index's fields.
	Values []ivalue.Value
	// RangeLow/RangeHigh bound the field immediately after Values, only
	// meaningful for PathIndexRange.
	RangeLow, RangeHigh Bound
}

// ByKey builds a PathByKey access path.
func ByKey(k ivalue.Value) Path { return Path{Kind: PathByKey, Key: k} }

// ByKeys builds a PathByKeys access path. Canonicalization (sort+dedup)
// happens in iplanner, not here, matching spec.md section 4.3's rule
// that normalization produces already-sorted/deduped In lists.
func ByKeys(ks []ivalue.Value) Path { return Path{Kind: PathByKeys, Keys: ks} }

func KeyRange(low, high Bound) Path { return Path{Kind: PathKeyRange, KeyLow: low, KeyHigh: high} }

func IndexPrefix(indexName string, values []ivalue.Value) Path {
	return Path{Kind: PathIndexPrefix, IndexName: indexName, Values: values}
}

func IndexRange(indexName string, values []ivalue.Value, low, high Bound) Path {
	return Path{Kind: PathIndexRange, IndexName: indexName, Values: values, RangeLow: low, RangeHigh: high}
}

func FullScan() Path { return Path{Kind: PathFullScan} }

// PlanKind tags the concrete AccessPlan variant.
type PlanKind uint8

const (
	PlanPath PlanKind = iota
	PlanUnion
	PlanIntersection
)

// Plan is the tree spec.md section 3 names: Path(AccessPath),
// Union(children), Intersection(children).
type Plan struct {
	Kind     PlanKind
	Leaf     Path
	Children []Plan
}

func PathPlan(p Path) Plan { return Plan{Kind: PlanPath, Leaf: p} }

func UnionPlan(children ...Plan) Plan { return Plan{Kind: PlanUnion, Children: children} }

func IntersectionPlan(children ...Plan) Plan { return Plan{Kind: PlanIntersection, Children: children} }

// IsFullScan reports whether p is exactly a single FullScan leaf.
func (p Plan) IsFullScan() bool {
	return p.Kind == PlanPath && p.Leaf.Kind == PathFullScan
}

// SingleIndexPrefix reports whether p is exactly one IndexPrefix leaf,
// returning it. Used by ipushdown's eligibility check.
func (p Plan) SingleIndexPrefix() (Path, bool) {
	if p.Kind == PlanPath && p.Leaf.Kind == PathIndexPrefix {
		return p.Leaf, true
	}
	return Path{}, false
}

// SingleIndexRange reports whether p is exactly one IndexRange leaf.
func (p Plan) SingleIndexRange() (Path, bool) {
	if p.Kind == PlanPath && p.Leaf.Kind == PathIndexRange {
		return p.Leaf, true
	}
	return Path{}, false
}

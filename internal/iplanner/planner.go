// Package iplanner implements the deterministic, rule-based planner:
// normalized predicate + schema -> canonical AccessPlan<Value>
// (spec.md section 4.3). The planner never touches storage.
package iplanner

import (
	"sort"

	"github.com/dragginzgame/icydb-sub000/internal/iaccess"
	"github.com/dragginzgame/icydb-sub000/internal/ipredicate"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
)

// Plan is the planner's entry point. A nil predicate means "no
// predicate" (rule 1: emits FullScan).
func Plan(schema *ischema.SchemaInfo, predicate ipredicate.Node) iaccess.Plan {
	var raw iaccess.Plan
	if predicate == nil {
		raw = iaccess.PathPlan(iaccess.FullScan())
	} else {
		raw = planNode(schema, predicate)
	}
	return iaccess.Canonicalize(raw)
}

func planNode(schema *ischema.SchemaInfo, n ipredicate.Node) iaccess.Plan {
	switch t := n.(type) {
	case ipredicate.True, ipredicate.False, ipredicate.Not,
		ipredicate.IsNull, ipredicate.IsMissing, ipredicate.IsEmpty, ipredicate.IsNotEmpty,
		ipredicate.TextContains, ipredicate.TextContainsCi,
		ipredicate.MapContainsKey, ipredicate.MapContainsValue, ipredicate.MapContainsEntry:
		return iaccess.PathPlan(iaccess.FullScan())
	case ipredicate.Compare:
		return planCompare(schema, t)
	case ipredicate.And:
		return planAnd(schema, t)
	case ipredicate.Or:
		return planOr(schema, t)
	default:
		return iaccess.PathPlan(iaccess.FullScan())
	}
}

func fullScan() iaccess.Plan { return iaccess.PathPlan(iaccess.FullScan()) }

func planCompare(schema *ischema.SchemaInfo, c ipredicate.Compare) iaccess.Plan {
	if c.Coercion.ID != ivalue.CoercionStrict {
		return fullScan()
	}
	pk := schema.PrimaryKey()

	if c.Field == pk {
		switch c.Op {
		case ipredicate.OpEq:
			pkType := schema.PrimaryKeyType()
			if pkType.Kind == ischema.FieldTypeScalar && pkType.Scalar.MatchesValue(c.Value) {
				return iaccess.PathPlan(iaccess.ByKey(c.Value))
			}
			return fullScan()
		case ipredicate.OpIn:
			if c.Value.Kind() == ivalue.KindList {
				pkType := schema.PrimaryKeyType()
				ok := pkType.Kind == ischema.FieldTypeScalar
				for _, e := range c.Value.AsList() {
					if !pkType.Scalar.MatchesValue(e) {
						ok = false
						break
					}
				}
				if ok {
					return iaccess.PathPlan(iaccess.ByKeys(c.Value.AsList()))
				}
			}
			return fullScan()
		}
	}

	switch {
	case c.Op == ipredicate.OpEq:
		var paths []iaccess.Plan
		for _, idx := range schema.IndexesWithLeadingField(c.Field) {
			paths = append(paths, iaccess.PathPlan(iaccess.IndexPrefix(idx.Name, []ivalue.Value{c.Value})))
		}
		if len(paths) == 0 {
			return fullScan()
		}
		return iaccess.UnionPlan(paths...)
	case c.Op.IsRangeOp():
		var paths []iaccess.Plan
		for _, idx := range schema.SingleFieldIndexesOn(c.Field) {
			low, high := boundsForOp(c.Op, c.Value)
			paths = append(paths, iaccess.PathPlan(iaccess.IndexRange(idx.Name, nil, low, high)))
		}
		if len(paths) == 0 {
			return fullScan()
		}
		return iaccess.UnionPlan(paths...)
	default:
		return fullScan()
	}
}

func boundsForOp(op ipredicate.CompareOp, v ivalue.Value) (low, high iaccess.Bound) {
	switch op {
	case ipredicate.OpGt:
		return iaccess.Exclusive(v), iaccess.Open()
	case ipredicate.OpGte:
		return iaccess.Inclusive(v), iaccess.Open()
	case ipredicate.OpLt:
		return iaccess.Open(), iaccess.Exclusive(v)
	case ipredicate.OpLte:
		return iaccess.Open(), iaccess.Inclusive(v)
	default:
		return iaccess.Open(), iaccess.Open()
	}
}

func planOr(schema *ischema.SchemaInfo, o ipredicate.Or) iaccess.Plan {
	children := make([]iaccess.Plan, len(o.Children))
	for i, c := range o.Children {
		children[i] = planNode(schema, c)
	}
	return iaccess.UnionPlan(children...)
}

func planAnd(schema *ischema.SchemaInfo, a ipredicate.And) iaccess.Plan {
	if p, ok := tryCompositeRange(schema, a); ok {
		return p
	}

	children := make([]iaccess.Plan, len(a.Children))
	for i, c := range a.Children {
		children[i] = planNode(schema, c)
	}

	if prefix, ok := bestEqualityPrefixIndex(schema, a); ok {
		children = append(children, iaccess.PathPlan(prefix))
	}

	return iaccess.IntersectionPlan(children...)
}

// eqCompare/rangeCompare classify direct Compare children for the
// composite-range and equality-prefix heuristics. Only Strict-coercion
// top-level compares participate; anything else is left to the
// residual filter at execution time.
type eqCompare struct {
	field string
	value ivalue.Value
}

type rangeCompare struct {
	field string
	op    ipredicate.CompareOp
	value ivalue.Value
}

func classifyChildren(a ipredicate.And) (eqs []eqCompare, ranges []rangeCompare) {
	for _, c := range a.Children {
		cmp, ok := c.(ipredicate.Compare)
		if !ok || cmp.Coercion.ID != ivalue.CoercionStrict {
			continue
		}
		switch {
		case cmp.Op == ipredicate.OpEq:
			eqs = append(eqs, eqCompare{field: cmp.Field, value: cmp.Value})
		case cmp.Op.IsRangeOp():
			ranges = append(ranges, rangeCompare{field: cmp.Field, op: cmp.Op, value: cmp.Value})
		}
	}
	return eqs, ranges
}

// tryCompositeRange implements spec.md section 4.3 rule 4's first
// attempt: find an index with a contiguous leading Eq prefix and
// exactly one following bounded-range slot.
func tryCompositeRange(schema *ischema.SchemaInfo, a ipredicate.And) (iaccess.Plan, bool) {
	eqs, ranges := classifyChildren(a)
	if len(ranges) == 0 {
		return iaccess.Plan{}, false
	}
	eqByField := map[string]ivalue.Value{}
	for _, e := range eqs {
		eqByField[e.field] = e.value
	}
	rangesByField := map[string][]rangeCompare{}
	for _, r := range ranges {
		rangesByField[r.field] = append(rangesByField[r.field], r)
	}

	type candidate struct {
		idx       ischema.IndexModel
		prefixLen int
		low, high iaccess.Bound
	}
	var best *candidate

	for _, idx := range schema.Indexes() {
		prefixLen := 0
		for prefixLen < len(idx.Fields) {
			if _, ok := eqByField[idx.Fields[prefixLen]]; !ok {
				break
			}
			prefixLen++
		}
		if prefixLen >= len(idx.Fields) {
			continue // no slot left for a range
		}
		rangeField := idx.Fields[prefixLen]
		rs, ok := rangesByField[rangeField]
		if !ok {
			continue
		}
		low, high, ok := combineBounds(rs)
		if !ok {
			continue
		}
		if !intervalNonEmpty(low, high) {
			continue
		}
		cand := candidate{idx: idx, prefixLen: prefixLen, low: low, high: high}
		if best == nil || isBetterCandidate(cand.prefixLen, cand.idx.Name, best.prefixLen, best.idx.Name) {
			best = &cand
		}
	}
	if best == nil {
		return iaccess.Plan{}, false
	}
	values := make([]ivalue.Value, best.prefixLen)
	for i := 0; i < best.prefixLen; i++ {
		values[i] = eqByField[best.idx.Fields[i]]
	}
	return iaccess.PathPlan(iaccess.IndexRange(best.idx.Name, values, best.low, best.high)), true
}

func isBetterCandidate(prefixA int, nameA string, prefixB int, nameB string) bool {
	if prefixA != prefixB {
		return prefixA > prefixB
	}
	return nameA < nameB
}

// combineBounds merges the (at most two, one Lt/Lte and one Gt/Gte)
// range compares on a single field into a low/high bound pair, and
// rejects mixing numeric kinds across the two bounds (spec.md section
// 4.3: "reject cross-numeric-variant intervals").
func combineBounds(rs []rangeCompare) (low, high iaccess.Bound, ok bool) {
	low, high = iaccess.Open(), iaccess.Open()
	for _, r := range rs {
		l, h := boundsForOp(r.op, r.value)
		if !l.Unbounded {
			if !low.Unbounded {
				return low, high, false // duplicate lower bound on same field
			}
			low = l
		}
		if !h.Unbounded {
			if !high.Unbounded {
				return low, high, false
			}
			high = h
		}
	}
	if !low.Unbounded && !high.Unbounded && low.Value.Kind() != high.Value.Kind() {
		return low, high, false
	}
	return low, high, true
}

func intervalNonEmpty(low, high iaccess.Bound) bool {
	if low.Unbounded || high.Unbounded {
		return true
	}
	c := ivalue.CompareCanonical(low.Value, high.Value)
	if c < 0 {
		return true
	}
	if c == 0 {
		return low.Inclusive && high.Inclusive
	}
	return false
}

// bestEqualityPrefixIndex implements spec.md section 4.3 rule 4's
// second attempt: the index with the longest Eq-prefix over the And's
// pinned Eq children, ties broken by exact-length > partial, then
// lexicographic index name.
func bestEqualityPrefixIndex(schema *ischema.SchemaInfo, a ipredicate.And) (iaccess.Path, bool) {
	eqs, _ := classifyChildren(a)
	if len(eqs) == 0 {
		return iaccess.Path{}, false
	}
	eqByField := map[string]ivalue.Value{}
	for _, e := range eqs {
		eqByField[e.field] = e.value
	}

	type candidate struct {
		idx       ischema.IndexModel
		prefixLen int
	}
	var candidates []candidate
	for _, idx := range schema.Indexes() {
		prefixLen := 0
		for prefixLen < len(idx.Fields) {
			if _, ok := eqByField[idx.Fields[prefixLen]]; !ok {
				break
			}
			prefixLen++
		}
		if prefixLen > 0 {
			candidates = append(candidates, candidate{idx: idx, prefixLen: prefixLen})
		}
	}
	if len(candidates) == 0 {
		return iaccess.Path{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.prefixLen != cj.prefixLen {
			return ci.prefixLen > cj.prefixLen
		}
		exactI := ci.prefixLen == len(ci.idx.Fields)
		exactJ := cj.prefixLen == len(cj.idx.Fields)
		if exactI != exactJ {
			return exactI
		}
		return ci.idx.Name < cj.idx.Name
	})
	best := candidates[0]
	values := make([]ivalue.Value, best.prefixLen)
	for i := 0; i < best.prefixLen; i++ {
		values[i] = eqByField[best.idx.Fields[i]]
	}
	return iaccess.IndexPrefix(best.idx.Name, values), true
}

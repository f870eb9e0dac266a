// Package igroup implements grouped execution (spec.md section 4.9):
// rows are streamed through the base scalar plan and materialized into
// groups keyed by the canonical encoding of their grouping-field
// projection, subject to continuously enforced max_groups/
// max_group_bytes budgets. Grouped plans forbid cursor pagination
// (enforced upstream by internal/ilogical.Validate).
package igroup

import (
	"github.com/dragginzgame/icydb-sub000/internal/iaggregate"
	"github.com/dragginzgame/icydb-sub000/internal/ierrkit"
	"github.com/dragginzgame/icydb-sub000/internal/ilogical"
	"github.com/dragginzgame/icydb-sub000/internal/irow"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
)

// Group is one materialized group: its key projection and the rows
// that fell into it, in the order the base plan produced them.
type Group struct {
	Key  []ivalue.Value
	Rows []iaggregate.Row
}

// Budget carries the GroupSpec's enforced limits.
type Budget struct {
	MaxGroups     uint64
	MaxGroupBytes uint64
}

// estimateRowBytes is a conservative per-row size estimate used to
// enforce max_group_bytes without requiring a concrete entity codec
// here; it sums each field's canonical-encoding length.
func estimateRowBytes(row irow.Row) uint64 {
	var total uint64
	for _, cell := range row {
		if cell.State != irow.FieldPresent {
			continue
		}
		total += uint64(len(ivalue.EncodeCanonical(cell.Value)))
	}
	return total
}

// Materialize groups rows by the canonical encoding of their projection
// onto groupFields, enforcing budget continuously: the first row that
// would exceed MaxGroups (by starting a new group) or MaxGroupBytes
// (by growing an existing group's estimated size) fails the whole
// operation with a Budget error (spec.md section 4.9/5).
func Materialize(groupFields []string, rows []iaggregate.Row, budget Budget) ([]Group, error) {
	index := map[string]int{}
	groups := make([]Group, 0, 8)
	groupBytes := map[string]uint64{}

	for _, r := range rows {
		key := make([]ivalue.Value, len(groupFields))
		for i, f := range groupFields {
			cell := r.Row.Get(f)
			if cell.State == irow.FieldPresent {
				key[i] = cell.Value
			} else {
				key[i] = ivalue.Unit()
			}
		}
		keyBytes := encodeGroupKey(key)

		gi, ok := index[keyBytes]
		if !ok {
			if budget.MaxGroups > 0 && uint64(len(groups)) >= budget.MaxGroups {
				return nil, ierrkit.Budget(ierrkit.OriginExecutor, "grouped execution exceeded max_groups")
			}
			gi = len(groups)
			groups = append(groups, Group{Key: key})
			index[keyBytes] = gi
		}

		rowBytes := estimateRowBytes(r.Row)
		newTotal := groupBytes[keyBytes] + rowBytes
		if budget.MaxGroupBytes > 0 && newTotal > budget.MaxGroupBytes {
			return nil, ierrkit.Budget(ierrkit.OriginExecutor, "grouped execution exceeded max_group_bytes")
		}
		groupBytes[keyBytes] = newTotal
		groups[gi].Rows = append(groups[gi].Rows, r)
	}

	return groups, nil
}

func encodeGroupKey(key []ivalue.Value) string {
	buf := make([]byte, 0, 32)
	for _, v := range key {
		buf = append(buf, ivalue.EncodeCanonical(v)...)
	}
	return string(buf)
}

// GroupAggregateSpec names one aggregate to compute per group (spec.md
// section 4.9's GroupSpec.aggregates); the concrete terminal is run
// through internal/iaggregate for each materialized group.
type GroupAggregateSpec struct {
	Alias string
	Field string
	Kind  iaggregate.FieldTermKind
	N     int
}

// GroupResult is one group's key plus its computed aggregate values.
type GroupResult struct {
	Key     []ivalue.Value
	Results map[string]iaggregate.FieldResult
}

// ComputeGroupAggregates runs each GroupAggregateSpec against every
// materialized group.
func ComputeGroupAggregates(groups []Group, specs []GroupAggregateSpec) ([]GroupResult, error) {
	out := make([]GroupResult, 0, len(groups))
	for _, g := range groups {
		results := make(map[string]iaggregate.FieldResult, len(specs))
		for _, spec := range specs {
			res, err := iaggregate.ComputeField(spec.Kind, spec.Field, g.Rows, spec.N)
			if err != nil {
				return nil, err
			}
			results[spec.Alias] = res
		}
		out = append(out, GroupResult{Key: g.Key, Results: results})
	}
	return out, nil
}

// FromLogical returns the grouping fields and the Budget carried by an
// ilogical.GroupSpec, for callers that build them directly from the
// logical plan.
func FromLogical(gs ilogical.GroupSpec) ([]string, Budget) {
	return gs.GroupFields, Budget{MaxGroups: gs.MaxGroups, MaxGroupBytes: gs.MaxGroupBytes}
}

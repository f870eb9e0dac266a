// Package iaggregate implements the aggregate engine (spec.md section
// 4.8): id-target terminals (count/exists/min/max/first/last) and
// field-target terminals (min_by/max_by/nth_by/median_by/sum_by/avg_by/
// min_max_by/count_distinct_by/top_k_by/bottom_k_by/values_by/
// first_value_by/last_value_by), run over the same ordered candidate
// stream internal/iexec produces. Determinism: every field-target
// terminal breaks ties on primary-key ascending order.
package iaggregate

import (
	"sort"

	"github.com/dragginzgame/icydb-sub000/internal/ierrkit"
	"github.com/dragginzgame/icydb-sub000/internal/irow"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
)

// IDTermKind enumerates the id-target aggregate terminals.
type IDTermKind uint8

const (
	IDCount IDTermKind = iota
	IDExists
	IDMin
	IDMax
	IDFirst
	IDLast
)

// FieldTermKind enumerates the field-target aggregate terminals.
type FieldTermKind uint8

const (
	FieldMinBy FieldTermKind = iota
	FieldMaxBy
	FieldNthBy
	FieldMedianBy
	FieldCountDistinctBy
	FieldSumBy
	FieldAvgBy
	FieldMinMaxBy
	FieldValuesBy
	FieldDistinctValuesBy
	FieldFirstValueBy
	FieldLastValueBy
	FieldTopKBy
	FieldBottomKBy
)

// Row pairs a decoded row with the primary-key value the engine uses
// for deterministic tie-breaking.
type Row struct {
	PK  ivalue.Value
	Row irow.Row
}

// IDResult is an id-target terminal's outcome. Exactly one field is
// meaningful per IDTermKind.
type IDResult struct {
	Count  uint64
	Exists bool
	PK     ivalue.Value
	Found  bool
}

// ComputeID evaluates an id-target terminal over rows, already ordered
// per the executable plan's direction. count/exists/first short-circuit
// as soon as the answer is known (spec.md section 4.8); min/max compare
// PKs, not the ordering key.
func ComputeID(kind IDTermKind, rows []Row) IDResult {
	switch kind {
	case IDCount:
		return IDResult{Count: uint64(len(rows))}
	case IDExists:
		return IDResult{Exists: len(rows) > 0}
	case IDFirst:
		if len(rows) == 0 {
			return IDResult{}
		}
		return IDResult{PK: rows[0].PK, Found: true}
	case IDLast:
		if len(rows) == 0 {
			return IDResult{}
		}
		return IDResult{PK: rows[len(rows)-1].PK, Found: true}
	case IDMin, IDMax:
		if len(rows) == 0 {
			return IDResult{}
		}
		best := rows[0].PK
		for _, r := range rows[1:] {
			c := ivalue.CompareCanonical(r.PK, best)
			if (kind == IDMin && c < 0) || (kind == IDMax && c > 0) {
				best = r.PK
			}
		}
		return IDResult{PK: best, Found: true}
	default:
		return IDResult{}
	}
}

// FieldResult is a field-target terminal's outcome.
type FieldResult struct {
	PK      ivalue.Value
	Found   bool
	Scalar  ivalue.Value
	Decimal ivalue.Decimal
	Count   uint64
	Values  []ivalue.Value
	Low     ivalue.Value
	High    ivalue.Value
	LowOK   bool
	HighOK  bool
}

// ValidateFieldTarget checks the field-target preconditions spec.md
// section 4.8 requires to hold BEFORE any scan-budget consumption:
// the field must resolve in schema, and ordering/numeric terminals
// require the matching scalar capability.
func ValidateFieldTarget(schema *ischema.SchemaInfo, kind FieldTermKind, field string) error {
	ft, ok := schema.Field(field)
	if !ok {
		return ierrkit.Unsupportedf(ierrkit.OriginQuery, "aggregate target field %q is not known to the schema", field)
	}
	if ft.Kind != ischema.FieldTypeScalar {
		return ierrkit.Unsupportedf(ierrkit.OriginQuery, "aggregate target field %q is not a scalar field", field)
	}
	switch kind {
	case FieldMinBy, FieldMaxBy, FieldNthBy, FieldMedianBy, FieldTopKBy, FieldBottomKBy:
		if !ft.Scalar.SupportsOrdering() {
			return ierrkit.Unsupportedf(ierrkit.OriginQuery, "aggregate target field %q does not support ordering", field)
		}
	case FieldSumBy, FieldAvgBy:
		if !ft.Scalar.SupportsArithmetic() {
			return ierrkit.Unsupportedf(ierrkit.OriginQuery, "aggregate target field %q is not numeric", field)
		}
	}
	return nil
}

// ComputeField evaluates a field-target terminal over rows already
// ordered by the executable plan's order (primary-key ascending used
// as the deterministic tie-break in every terminal below). n is only
// meaningful for NthBy/TopKBy/BottomKBy.
func ComputeField(kind FieldTermKind, field string, rows []Row, n int) (FieldResult, error) {
	projected := projectField(field, rows)
	sortByValueThenPK(projected)

	switch kind {
	case FieldMinBy:
		return firstProjected(projected), nil
	case FieldMaxBy:
		return lastProjected(projected), nil
	case FieldNthBy:
		if n < 0 || n >= len(projected) {
			return FieldResult{}, nil
		}
		p := projected[n]
		return FieldResult{PK: p.pk, Found: true, Scalar: p.value}, nil
	case FieldMedianBy:
		return computeMedian(projected), nil
	case FieldCountDistinctBy:
		return FieldResult{Count: countDistinctByCanonicalBytes(projected)}, nil
	case FieldSumBy:
		return computeSum(projected)
	case FieldAvgBy:
		return computeAvg(projected)
	case FieldMinMaxBy:
		lo := firstProjected(projected)
		hi := lastProjected(projected)
		return FieldResult{Low: lo.Scalar, LowOK: lo.Found, High: hi.Scalar, HighOK: hi.Found}, nil
	case FieldValuesBy:
		return FieldResult{Values: valuesOf(projected)}, nil
	case FieldDistinctValuesBy:
		return FieldResult{Values: distinctValuesOf(projected)}, nil
	case FieldFirstValueBy:
		return firstProjected(projected), nil
	case FieldLastValueBy:
		return lastProjected(projected), nil
	case FieldTopKBy:
		return FieldResult{Values: topValues(projected, n, true)}, nil
	case FieldBottomKBy:
		return FieldResult{Values: topValues(projected, n, false)}, nil
	default:
		return FieldResult{}, nil
	}
}

type projectedRow struct {
	pk      ivalue.Value
	value   ivalue.Value
	present bool
}

func projectField(field string, rows []Row) []projectedRow {
	out := make([]projectedRow, 0, len(rows))
	for _, r := range rows {
		cell := r.Row.Get(field)
		if cell.State != irow.FieldPresent {
			continue
		}
		out = append(out, projectedRow{pk: r.PK, value: cell.Value, present: true})
	}
	return out
}

// sortByValueThenPK establishes a total, deterministic order: by the
// projected value ascending, then by primary key ascending (spec.md
// section 4.8's tie-break rule).
func sortByValueThenPK(rows []projectedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		c := ivalue.CompareCanonical(rows[i].value, rows[j].value)
		if c != 0 {
			return c < 0
		}
		return ivalue.CompareCanonical(rows[i].pk, rows[j].pk) < 0
	})
}

func firstProjected(rows []projectedRow) FieldResult {
	if len(rows) == 0 {
		return FieldResult{}
	}
	return FieldResult{PK: rows[0].pk, Found: true, Scalar: rows[0].value}
}

func lastProjected(rows []projectedRow) FieldResult {
	if len(rows) == 0 {
		return FieldResult{}
	}
	r := rows[len(rows)-1]
	return FieldResult{PK: r.pk, Found: true, Scalar: r.value}
}

// computeMedian uses the lower-median policy over even windows (spec.md
// section 4.8) and is invariant to query direction since it always
// re-sorts by value first.
func computeMedian(rows []projectedRow) FieldResult {
	if len(rows) == 0 {
		return FieldResult{}
	}
	mid := (len(rows) - 1) / 2
	r := rows[mid]
	return FieldResult{PK: r.pk, Found: true, Scalar: r.value}
}

func countDistinctByCanonicalBytes(rows []projectedRow) uint64 {
	seen := map[string]bool{}
	for _, r := range rows {
		seen[string(ivalue.EncodeCanonical(r.value))] = true
	}
	return uint64(len(seen))
}

func computeSum(rows []projectedRow) (FieldResult, error) {
	sum := ivalue.Decimal{}
	for _, r := range rows {
		d, err := asDecimal(r.value)
		if err != nil {
			return FieldResult{}, err
		}
		sum, err = ivalue.Add(sum, d)
		if err != nil {
			return FieldResult{}, ierrkit.Wrap(ierrkit.ClassInternal, ierrkit.OriginExecutor, err, "sum_by overflow")
		}
	}
	return FieldResult{Decimal: sum, Found: len(rows) > 0}, nil
}

func computeAvg(rows []projectedRow) (FieldResult, error) {
	if len(rows) == 0 {
		return FieldResult{}, nil
	}
	sumRes, err := computeSum(rows)
	if err != nil {
		return FieldResult{}, err
	}
	count, _ := ivalue.NewDecimal(ivalue.Int128FromI64(int64(len(rows))), 0)
	avg, err := ivalue.Div(sumRes.Decimal, count, ivalue.DefaultDivisionScale)
	if err != nil {
		return FieldResult{}, ierrkit.Wrap(ierrkit.ClassInternal, ierrkit.OriginExecutor, err, "avg_by division failure")
	}
	return FieldResult{Decimal: avg, Found: true}, nil
}

func asDecimal(v ivalue.Value) (ivalue.Decimal, error) {
	switch v.Kind() {
	case ivalue.KindDecimal:
		return v.AsDecimal(), nil
	case ivalue.KindUint:
		return ivalue.NewDecimal(ivalue.Int128FromI64(int64(v.AsUint())), 0)
	case ivalue.KindInt:
		return ivalue.NewDecimal(ivalue.Int128FromI64(v.AsInt()), 0)
	default:
		return ivalue.Decimal{}, ierrkit.Unsupportedf(ierrkit.OriginQuery, "field kind %d is not arithmetic", v.Kind())
	}
}

func valuesOf(rows []projectedRow) []ivalue.Value {
	out := make([]ivalue.Value, len(rows))
	for i, r := range rows {
		out[i] = r.value
	}
	return out
}

func distinctValuesOf(rows []projectedRow) []ivalue.Value {
	seen := map[string]bool{}
	var out []ivalue.Value
	for _, r := range rows {
		k := string(ivalue.EncodeCanonical(r.value))
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r.value)
	}
	return out
}

// topValues returns the top/bottom n values (rows already sorted
// ascending by value then PK).
func topValues(rows []projectedRow, n int, top bool) []ivalue.Value {
	if n <= 0 || len(rows) == 0 {
		return nil
	}
	if n > len(rows) {
		n = len(rows)
	}
	out := make([]ivalue.Value, n)
	if top {
		for i := 0; i < n; i++ {
			out[i] = rows[len(rows)-1-i].value
		}
	} else {
		for i := 0; i < n; i++ {
			out[i] = rows[i].value
		}
	}
	return out
}

// Package ipushdown classifies whether a secondary-index ORDER BY can
// be served without a post-scan sort (spec.md section 4.5). The result
// is reported in cmd/icydb's debug trace; internal/iexec does not
// consult it when choosing a route.
package ipushdown

import (
	"github.com/dragginzgame/icydb-sub000/internal/iaccess"
	"github.com/dragginzgame/icydb-sub000/internal/ilogical"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
)

// ReasonKind is the closed set of eligibility outcomes.
type ReasonKind uint8

const (
	Eligible ReasonKind = iota
	NoOrderBy
	MissingPrimaryKeyTieBreak
	MixedDirectionNotEligible
	OrderFieldsDoNotMatchIndex
	AccessPathNotSingleIndexPrefix
	AccessPathIndexRangeUnsupported
	InvalidIndexPrefixBounds
)

// Result is the pushdown analyzer's classification.
type Result struct {
	Kind      ReasonKind
	IndexName string // valid when Kind == Eligible
	PrefixLen int     // valid when Kind == Eligible
	Field     string  // valid when Kind names a specific offending field
}

// Analyze implements spec.md section 4.5's eligibility rules.
func Analyze(schema *ischema.SchemaInfo, order []ilogical.OrderField, access iaccess.Plan) Result {
	if len(order) == 0 {
		return Result{Kind: NoOrderBy}
	}

	prefix, ok := access.SingleIndexPrefix()
	if !ok {
		if _, isRange := access.SingleIndexRange(); isRange {
			return Result{Kind: AccessPathIndexRangeUnsupported}
		}
		return Result{Kind: AccessPathNotSingleIndexPrefix}
	}

	idx, found := schema.IndexByName(prefix.IndexName)
	if !found {
		return Result{Kind: OrderFieldsDoNotMatchIndex}
	}
	if len(prefix.Values) > len(idx.Fields) {
		return Result{Kind: InvalidIndexPrefixBounds}
	}

	last := order[len(order)-1]
	if last.Field != schema.PrimaryKey() {
		return Result{Kind: MissingPrimaryKeyTieBreak, Field: schema.PrimaryKey()}
	}

	dir := order[0].Direction
	for _, of := range order {
		if of.Direction != dir {
			return Result{Kind: MixedDirectionNotEligible, Field: of.Field}
		}
	}

	stripped := order[:len(order)-1]
	prefixLen := len(prefix.Values)
	suffix := idx.Fields[prefixLen:]
	if !fieldsMatch(stripped, suffix) && !fieldsMatch(stripped, idx.Fields) {
		return Result{Kind: OrderFieldsDoNotMatchIndex}
	}

	return Result{Kind: Eligible, IndexName: idx.Name, PrefixLen: prefixLen}
}

func fieldsMatch(order []ilogical.OrderField, fields []string) bool {
	if len(order) != len(fields) {
		return false
	}
	for i, of := range order {
		if of.Field != fields[i] {
			return false
		}
	}
	return true
}

package ipushdown

import (
	"testing"

	"github.com/dragginzgame/icydb-sub000/internal/iaccess"
	"github.com/dragginzgame/icydb-sub000/internal/ilogical"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *ischema.SchemaInfo {
	t.Helper()
	si, err := ischema.BuildSchemaInfo(&ischema.EntityModel{
		EntityName: "order",
		PrimaryKey: "id",
		Fields: map[string]ischema.FieldKind{
			"id":          {Type: ischema.Scalar(ivalue.KindUlid)},
			"customer_id": {Type: ischema.Scalar(ivalue.KindUint)},
			"created_at":  {Type: ischema.Scalar(ivalue.KindTimestamp)},
		},
		Indexes: []ischema.IndexModel{
			{Name: "by_customer_created", Fields: []string{"customer_id", "created_at"}},
		},
	})
	require.NoError(t, err)
	return si
}

func TestAnalyzeNoOrderBy(t *testing.T) {
	si := testSchema(t)
	r := Analyze(si, nil, iaccess.PathPlan(iaccess.FullScan()))
	assert.Equal(t, NoOrderBy, r.Kind)
}

func TestAnalyzeNotSingleIndexPrefix(t *testing.T) {
	si := testSchema(t)
	order := []ilogical.OrderField{{Field: "id"}}
	r := Analyze(si, order, iaccess.PathPlan(iaccess.FullScan()))
	assert.Equal(t, AccessPathNotSingleIndexPrefix, r.Kind)
}

func TestAnalyzeIndexRangeUnsupported(t *testing.T) {
	si := testSchema(t)
	order := []ilogical.OrderField{{Field: "id"}}
	access := iaccess.PathPlan(iaccess.IndexRange("by_customer_created", nil, iaccess.Open(), iaccess.Open()))
	r := Analyze(si, order, access)
	assert.Equal(t, AccessPathIndexRangeUnsupported, r.Kind)
}

func TestAnalyzeMissingPrimaryKeyTieBreak(t *testing.T) {
	si := testSchema(t)
	order := []ilogical.OrderField{{Field: "created_at"}}
	access := iaccess.PathPlan(iaccess.IndexPrefix("by_customer_created", []ivalue.Value{ivalue.Uint(1)}))
	r := Analyze(si, order, access)
	assert.Equal(t, MissingPrimaryKeyTieBreak, r.Kind)
}

func TestAnalyzeMixedDirection(t *testing.T) {
	si := testSchema(t)
	order := []ilogical.OrderField{
		{Field: "created_at", Direction: ilogical.Asc},
		{Field: "id", Direction: ilogical.Desc},
	}
	access := iaccess.PathPlan(iaccess.IndexPrefix("by_customer_created", []ivalue.Value{ivalue.Uint(1)}))
	r := Analyze(si, order, access)
	assert.Equal(t, MixedDirectionNotEligible, r.Kind)
}

func TestAnalyzeEligibleWithPrefixSuffix(t *testing.T) {
	si := testSchema(t)
	order := []ilogical.OrderField{
		{Field: "created_at", Direction: ilogical.Asc},
		{Field: "id", Direction: ilogical.Asc},
	}
	access := iaccess.PathPlan(iaccess.IndexPrefix("by_customer_created", []ivalue.Value{ivalue.Uint(1)}))
	r := Analyze(si, order, access)
	require.Equal(t, Eligible, r.Kind)
	assert.Equal(t, "by_customer_created", r.IndexName)
	assert.Equal(t, 1, r.PrefixLen)
}

func TestAnalyzeEligibleWithFullIndexFieldList(t *testing.T) {
	si := testSchema(t)
	order := []ilogical.OrderField{
		{Field: "customer_id", Direction: ilogical.Asc},
		{Field: "created_at", Direction: ilogical.Asc},
		{Field: "id", Direction: ilogical.Asc},
	}
	access := iaccess.PathPlan(iaccess.IndexPrefix("by_customer_created", nil))
	r := Analyze(si, order, access)
	require.Equal(t, Eligible, r.Kind)
	assert.Equal(t, 0, r.PrefixLen)
}

func TestAnalyzeOrderFieldsDoNotMatchIndex(t *testing.T) {
	si := testSchema(t)
	order := []ilogical.OrderField{
		{Field: "customer_id", Direction: ilogical.Asc},
		{Field: "id", Direction: ilogical.Asc},
	}
	access := iaccess.PathPlan(iaccess.IndexPrefix("by_customer_created", nil))
	r := Analyze(si, order, access)
	assert.Equal(t, OrderFieldsDoNotMatchIndex, r.Kind)
}

func TestAnalyzeInvalidIndexPrefixBounds(t *testing.T) {
	si := testSchema(t)
	order := []ilogical.OrderField{{Field: "id"}}
	access := iaccess.PathPlan(iaccess.IndexPrefix("by_customer_created",
		[]ivalue.Value{ivalue.Uint(1), ivalue.Timestamp(1), ivalue.Uint(9)}))
	r := Analyze(si, order, access)
	assert.Equal(t, InvalidIndexPrefixBounds, r.Kind)
}

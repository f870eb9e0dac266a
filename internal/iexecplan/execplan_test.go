package iexecplan

import (
	"testing"

	"github.com/dragginzgame/icydb-sub000/internal/iaccess"
	"github.com/dragginzgame/icydb-sub000/internal/icursor"
	"github.com/dragginzgame/icydb-sub000/internal/ierrkit"
	"github.com/dragginzgame/icydb-sub000/internal/ilogical"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/istore"
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
			"rank":        {Type: ischema.Scalar(ivalue.KindUint)},
		},
		Indexes: []ischema.IndexModel{
			{Name: "by_customer_rank", Fields: []string{"customer_id", "rank"}},
		},
	})
	require.NoError(t, err)
	return si
}

func TestFreezeDirectionAscByDefault(t *testing.T) {
	sp := ilogical.ScalarPlan{Mode: ilogical.Load(nil, 0)}
	ep := Freeze("order", sp, iaccess.PathPlan(iaccess.FullScan()))
	assert.Equal(t, icursor.Asc, ep.Direction)
}

func TestFreezeDirectionDescWhenFirstOrderIsDesc(t *testing.T) {
	sp := ilogical.ScalarPlan{Order: []ilogical.OrderField{{Field: "id", Direction: ilogical.Desc}}}
	ep := Freeze("order", sp, iaccess.PathPlan(iaccess.FullScan()))
	assert.Equal(t, icursor.Desc, ep.Direction)
}

func TestFingerprintDeterministic(t *testing.T) {
	sp := ilogical.ScalarPlan{Order: []ilogical.OrderField{{Field: "id"}}}
	a := Freeze("order", sp, iaccess.PathPlan(iaccess.FullScan()))
	b := Freeze("order", sp, iaccess.PathPlan(iaccess.FullScan()))
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.ContinuationSignature, b.ContinuationSignature)
}

func TestContinuationSignatureIgnoresLimitOffset(t *testing.T) {
	limit1 := uint64(1)
	limit2 := uint64(99)
	sp1 := ilogical.ScalarPlan{Mode: ilogical.Load(&limit1, 0), Order: []ilogical.OrderField{{Field: "id"}}}
	sp2 := ilogical.ScalarPlan{Mode: ilogical.Load(&limit2, 5), Order: []ilogical.OrderField{{Field: "id"}}}
	a := Freeze("order", sp1, iaccess.PathPlan(iaccess.FullScan()))
	b := Freeze("order", sp2, iaccess.PathPlan(iaccess.FullScan()))
	assert.Equal(t, a.ContinuationSignature, b.ContinuationSignature)
	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

func TestRevalidateRejectsSignatureMismatch(t *testing.T) {
	si := testSchema(t)
	sp := ilogical.ScalarPlan{Order: []ilogical.OrderField{{Field: "id"}}}
	ep := Freeze("order", sp, iaccess.PathPlan(iaccess.FullScan()))
	token := icursor.ContinuationToken{Signature: ep.ContinuationSignature + 1, Direction: ep.Direction,
		Boundary: icursor.CursorBoundary{Slots: []icursor.Slot{icursor.PresentSlot(ivalue.UlidV(ivalue.Ulid{1}))}}}
	err := Revalidate(ep, si, token)
	require.Error(t, err)
	assert.True(t, ierrkit.Is(err, ierrkit.ClassInvariantViolation))
}

func TestRevalidateRejectsDirectionMismatch(t *testing.T) {
	si := testSchema(t)
	sp := ilogical.ScalarPlan{Order: []ilogical.OrderField{{Field: "id"}}}
	ep := Freeze("order", sp, iaccess.PathPlan(iaccess.FullScan()))
	token := icursor.ContinuationToken{Signature: ep.ContinuationSignature, Direction: icursor.Desc,
		Boundary: icursor.CursorBoundary{Slots: []icursor.Slot{icursor.PresentSlot(ivalue.UlidV(ivalue.Ulid{1}))}}}
	err := Revalidate(ep, si, token)
	require.Error(t, err)
}

func TestRevalidateAcceptsMatchingPkOnlyToken(t *testing.T) {
	si := testSchema(t)
	sp := ilogical.ScalarPlan{Order: []ilogical.OrderField{{Field: "id"}}}
	ep := Freeze("order", sp, iaccess.PathPlan(iaccess.FullScan()))
	token := icursor.ContinuationToken{Signature: ep.ContinuationSignature, Direction: ep.Direction,
		Boundary: icursor.CursorBoundary{Slots: []icursor.Slot{icursor.PresentSlot(ivalue.UlidV(ivalue.Ulid{1}))}}}
	require.NoError(t, Revalidate(ep, si, token))
}

func TestRevalidateIndexRangeAnchorMustMatchPlannedIndex(t *testing.T) {
	si := testSchema(t)
	cust := ivalue.Uint(7)
	access := iaccess.PathPlan(iaccess.IndexRange("by_customer_rank", []ivalue.Value{cust}, iaccess.Inclusive(ivalue.Uint(1)), iaccess.Exclusive(ivalue.Uint(100))))
	sp := ilogical.ScalarPlan{Order: []ilogical.OrderField{{Field: "rank"}, {Field: "id"}}}
	ep := Freeze("order", sp, access)

	wrongID := istore.ComputeIndexID("order", "some_other_index")
	pk := istore.EncodeRawKey(ivalue.UlidV(ivalue.Ulid{1}))
	anchorBytes := istore.EncodeRawIndexKey(wrongID, []ivalue.Value{cust, ivalue.Uint(5)}, pk)
	anchor := icursor.IndexRangeCursorAnchor(anchorBytes)
	token := icursor.ContinuationToken{
		Signature: ep.ContinuationSignature, Direction: ep.Direction,
		Boundary: icursor.CursorBoundary{Slots: []icursor.Slot{
			icursor.PresentSlot(ivalue.Uint(5)), icursor.PresentSlot(ivalue.UlidV(ivalue.Ulid{1})),
		}},
		Anchor: &anchor,
	}
	err := Revalidate(ep, si, token)
	require.Error(t, err)
}

func TestRevalidateIndexRangeAnchorWithinEnvelope(t *testing.T) {
	si := testSchema(t)
	cust := ivalue.Uint(7)
	access := iaccess.PathPlan(iaccess.IndexRange("by_customer_rank", []ivalue.Value{cust}, iaccess.Inclusive(ivalue.Uint(1)), iaccess.Exclusive(ivalue.Uint(100))))
	sp := ilogical.ScalarPlan{Order: []ilogical.OrderField{{Field: "rank"}, {Field: "id"}}}
	ep := Freeze("order", sp, access)

	correctID := istore.ComputeIndexID("order", "by_customer_rank")
	pkValue := ivalue.UlidV(ivalue.Ulid{1})
	pk := istore.EncodeRawKey(pkValue)
	anchorBytes := istore.EncodeRawIndexKey(correctID, []ivalue.Value{cust, ivalue.Uint(200)}, pk)
	anchor := icursor.IndexRangeCursorAnchor(anchorBytes)
	token := icursor.ContinuationToken{
		Signature: ep.ContinuationSignature, Direction: ep.Direction,
		Boundary: icursor.CursorBoundary{Slots: []icursor.Slot{
			icursor.PresentSlot(ivalue.Uint(200)), icursor.PresentSlot(pkValue),
		}},
		Anchor: &anchor,
	}
	err := Revalidate(ep, si, token)
	require.Error(t, err, "rank=200 lies outside the exclusive-100 envelope")
}

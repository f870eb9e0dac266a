package iaggregate

import (
	"testing"

	"github.com/dragginzgame/icydb-sub000/internal/irow"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowsFixture() []Row {
	mk := func(id, amount uint64) Row {
		return Row{
			PK: ivalue.Uint(id),
			Row: irow.Row{
				"amount": irow.Present(ivalue.Uint(amount)),
			},
		}
	}
	return []Row{mk(1, 30), mk(2, 10), mk(3, 20)}
}

func TestComputeIDCount(t *testing.T) {
	res := ComputeID(IDCount, rowsFixture())
	assert.Equal(t, uint64(3), res.Count)
}

func TestComputeIDMinMaxComparePK(t *testing.T) {
	rows := rowsFixture()
	min := ComputeID(IDMin, rows)
	max := ComputeID(IDMax, rows)
	assert.Equal(t, uint64(1), min.PK.AsUint())
	assert.Equal(t, uint64(3), max.PK.AsUint())
}

func TestComputeFieldMinByMaxBy(t *testing.T) {
	rows := rowsFixture()
	min, err := ComputeField(FieldMinBy, "amount", rows, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), min.Scalar.AsUint())

	max, err := ComputeField(FieldMaxBy, "amount", rows, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), max.Scalar.AsUint())
}

func TestComputeFieldSumByAndAvgBy(t *testing.T) {
	rows := rowsFixture()
	sum, err := ComputeField(FieldSumBy, "amount", rows, 0)
	require.NoError(t, err)
	assert.Equal(t, "60", sum.Decimal.String())

	avg, err := ComputeField(FieldAvgBy, "amount", rows, 0)
	require.NoError(t, err)
	expected, err := ivalue.ParseDecimal("20")
	require.NoError(t, err)
	assert.Equal(t, 0, ivalue.Cmp(avg.Decimal, expected))
}

func TestComputeFieldMedianByLowerMedianOnEvenWindow(t *testing.T) {
	rows := []Row{
		{PK: ivalue.Uint(1), Row: irow.Row{"amount": irow.Present(ivalue.Uint(10))}},
		{PK: ivalue.Uint(2), Row: irow.Row{"amount": irow.Present(ivalue.Uint(20))}},
		{PK: ivalue.Uint(3), Row: irow.Row{"amount": irow.Present(ivalue.Uint(30))}},
		{PK: ivalue.Uint(4), Row: irow.Row{"amount": irow.Present(ivalue.Uint(40))}},
	}
	res, err := ComputeField(FieldMedianBy, "amount", rows, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), res.Scalar.AsUint())
}

func TestComputeFieldTopKByDescending(t *testing.T) {
	rows := rowsFixture()
	res, err := ComputeField(FieldTopKBy, "amount", rows, 2)
	require.NoError(t, err)
	require.Len(t, res.Values, 2)
	assert.Equal(t, uint64(30), res.Values[0].AsUint())
	assert.Equal(t, uint64(20), res.Values[1].AsUint())
}

func TestValidateFieldTargetRejectsUnknownField(t *testing.T) {
	si, err := ischema.BuildSchemaInfo(&ischema.EntityModel{
		EntityName: "order",
		PrimaryKey: "id",
		Fields: map[string]ischema.FieldKind{
			"id": {Type: ischema.Scalar(ivalue.KindUint)},
		},
	})
	require.NoError(t, err)
	err = ValidateFieldTarget(si, FieldSumBy, "amount")
	require.Error(t, err)
}

func TestValidateFieldTargetRejectsNonNumericForSumBy(t *testing.T) {
	si, err := ischema.BuildSchemaInfo(&ischema.EntityModel{
		EntityName: "order",
		PrimaryKey: "id",
		Fields: map[string]ischema.FieldKind{
			"id":   {Type: ischema.Scalar(ivalue.KindUint)},
			"name": {Type: ischema.Scalar(ivalue.KindText)},
		},
	})
	require.NoError(t, err)
	err = ValidateFieldTarget(si, FieldSumBy, "name")
	require.Error(t, err)
}

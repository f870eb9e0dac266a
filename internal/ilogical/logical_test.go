package ilogical

import (
	"testing"

	"github.com/dragginzgame/icydb-sub000/internal/ierrkit"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *ischema.SchemaInfo {
	t.Helper()
	si, err := ischema.BuildSchemaInfo(&ischema.EntityModel{
		EntityName: "user",
		PrimaryKey: "id",
		Fields: map[string]ischema.FieldKind{
			"id":   {Type: ischema.Scalar(ivalue.KindUlid)},
			"name": {Type: ischema.Scalar(ivalue.KindText)},
			"tags": {Type: ischema.SetOf(ivalue.KindText)},
		},
	})
	require.NoError(t, err)
	return si
}

func TestValidateScalarOrderFieldMustResolve(t *testing.T) {
	si := testSchema(t)
	sp := ScalarPlan{Order: []OrderField{{Field: "nope"}}}
	err := Validate(si, ScalarLogical(sp))
	require.Error(t, err)
	assert.True(t, ierrkit.Is(err, ierrkit.ClassUnsupported))
}

func TestValidateScalarDescRequiresOrderable(t *testing.T) {
	si := testSchema(t)
	sp := ScalarPlan{Order: []OrderField{{Field: "tags", Direction: Desc}}}
	err := Validate(si, ScalarLogical(sp))
	require.Error(t, err)
}

func TestValidateScalarDistinctRequiresOrder(t *testing.T) {
	si := testSchema(t)
	sp := ScalarPlan{Distinct: true}
	err := Validate(si, ScalarLogical(sp))
	require.Error(t, err)

	sp.Order = []OrderField{{Field: "name"}}
	require.NoError(t, Validate(si, ScalarLogical(sp)))
}

func TestValidateGroupForbidsCursorPagination(t *testing.T) {
	si := testSchema(t)
	gp := GroupPlan{
		Scalar: ScalarPlan{Page: &Page{Cursor: []byte("x")}},
		Group:  GroupSpec{GroupFields: []string{"name"}},
	}
	err := Validate(si, GroupLogical(gp))
	require.Error(t, err)
	assert.True(t, ierrkit.Is(err, ierrkit.ClassInvariantViolation))
}

func TestValidateGroupFieldMustResolve(t *testing.T) {
	si := testSchema(t)
	gp := GroupPlan{Group: GroupSpec{GroupFields: []string{"nope"}}}
	err := Validate(si, GroupLogical(gp))
	require.Error(t, err)
}

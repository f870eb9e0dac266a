package ipredicate

import (
	"testing"

	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strict(ivalue.Value) ivalue.CoercionSpec {
	return ivalue.CoercionSpec{ID: ivalue.CoercionStrict}
}

func testSchema(t *testing.T) *ischema.SchemaInfo {
	t.Helper()
	si, err := ischema.BuildSchemaInfo(&ischema.EntityModel{
		EntityName: "user",
		PrimaryKey: "id",
		Fields: map[string]ischema.FieldKind{
			"id":    {Type: ischema.Scalar(ivalue.KindUlid)},
			"group": {Type: ischema.Scalar(ivalue.KindUint)},
			"name":  {Type: ischema.Scalar(ivalue.KindText)},
			"tags":  {Type: ischema.SetOf(ivalue.KindText)},
		},
		Indexes: []ischema.IndexModel{
			{Name: "by_group", Fields: []string{"group"}},
		},
	})
	require.NoError(t, err)
	return si
}

func TestNormalizeFlattensAndSorts(t *testing.T) {
	n := And{Children: []Node{
		Compare{Field: "b", Op: OpEq, Value: ivalue.Uint(1), Coercion: strict(ivalue.Uint(1))},
		And{Children: []Node{
			Compare{Field: "a", Op: OpEq, Value: ivalue.Uint(1), Coercion: strict(ivalue.Uint(1))},
		}},
	}}
	got := Normalize(n).(And)
	require.Len(t, got.Children, 2)
	assert.Equal(t, "a", got.Children[0].(Compare).Field)
	assert.Equal(t, "b", got.Children[1].(Compare).Field)
}

func TestNormalizeCollapsesSingletonAndEmpty(t *testing.T) {
	assert.Equal(t, True{}, Normalize(And{}))
	assert.Equal(t, False{}, Normalize(Or{}))
	c := Compare{Field: "a", Op: OpEq, Value: ivalue.Uint(1), Coercion: strict(ivalue.Uint(1))}
	assert.Equal(t, c, Normalize(And{Children: []Node{c}}))
}

func TestNormalizeDropsDoubleNegation(t *testing.T) {
	c := Compare{Field: "a", Op: OpEq, Value: ivalue.Uint(1), Coercion: strict(ivalue.Uint(1))}
	got := Normalize(Not{Child: Not{Child: c}})
	assert.Equal(t, c, got)
}

func TestNormalizeDeterministic(t *testing.T) {
	n := Or{Children: []Node{
		Compare{Field: "z", Op: OpEq, Value: ivalue.Uint(9), Coercion: strict(ivalue.Uint(9))},
		Compare{Field: "a", Op: OpEq, Value: ivalue.Uint(1), Coercion: strict(ivalue.Uint(1))},
	}}
	a := Normalize(n)
	b := Normalize(n)
	assert.Equal(t, a, b)
}

func TestValidateUnknownField(t *testing.T) {
	si := testSchema(t)
	err := Validate(si, Compare{Field: "nope", Op: OpEq, Value: ivalue.Uint(1), Coercion: strict(ivalue.Uint(1))})
	require.Error(t, err)
}

func TestValidateRangeRequiresOrdering(t *testing.T) {
	si := testSchema(t)
	err := Validate(si, Compare{Field: "tags", Op: OpGt, Value: ivalue.Text("a"), Coercion: strict(ivalue.Text("a"))})
	require.Error(t, err)
}

func TestValidateContainsRequiresCollection(t *testing.T) {
	si := testSchema(t)
	err := Validate(si, Compare{
		Field: "tags", Op: OpContains, Value: ivalue.Text("x"),
		Coercion: ivalue.CoercionSpec{ID: ivalue.CoercionCollectionElement},
	})
	require.NoError(t, err)

	err = Validate(si, Compare{
		Field: "name", Op: OpContains, Value: ivalue.Text("x"),
		Coercion: ivalue.CoercionSpec{ID: ivalue.CoercionCollectionElement},
	})
	require.Error(t, err)
}

func TestValidateInOpChecksElements(t *testing.T) {
	si := testSchema(t)
	list := ivalue.List([]ivalue.Value{ivalue.Uint(1), ivalue.Uint(2)})
	err := Validate(si, Compare{Field: "group", Op: OpIn, Value: list, Coercion: strict(list)})
	require.NoError(t, err)

	badList := ivalue.List([]ivalue.Value{ivalue.Text("x")})
	err = Validate(si, Compare{Field: "group", Op: OpIn, Value: badList, Coercion: strict(badList)})
	require.Error(t, err)
}

func TestValidateEmptinessRequiresTextOrCollection(t *testing.T) {
	si := testSchema(t)
	require.NoError(t, Validate(si, IsEmpty{Field: "tags"}))
	require.NoError(t, Validate(si, IsEmpty{Field: "name"}))
	require.Error(t, Validate(si, IsEmpty{Field: "group"}))
}

package isave

import (
	"testing"

	"github.com/dragginzgame/icydb-sub000/internal/ierrkit"
	"github.com/dragginzgame/icydb-sub000/internal/imetrics"
	"github.com/dragginzgame/icydb-sub000/internal/irow"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/istore"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCodec struct{}

func (fakeCodec) Decode(raw []byte) (irow.Row, error) { return irow.Row{}, nil }
func (fakeCodec) Encode(row irow.Row) ([]byte, error) { return []byte("encoded"), nil }
func (fakeCodec) PrimaryKey(row irow.Row, pkField string) (ivalue.Value, bool) {
	cell := row.Get(pkField)
	return cell.Value, cell.State == irow.FieldPresent
}

func setupRegistry(t *testing.T) (*ischema.SchemaInfo, *istore.Registry) {
	t.Helper()
	si, err := ischema.BuildSchemaInfo(&ischema.EntityModel{
		EntityName: "order",
		PrimaryKey: "id",
		Fields: map[string]ischema.FieldKind{
			"id":    {Type: ischema.Scalar(ivalue.KindUint)},
			"email": {Type: ischema.Scalar(ivalue.KindText)},
		},
		Indexes: []ischema.IndexModel{
			{Name: "by_email", Fields: []string{"email"}, Unique: true},
		},
	})
	require.NoError(t, err)

	registry := istore.NewRegistry()
	registry.RegisterData("order", istore.NewMemDataStore())
	registry.RegisterIndex("order", istore.NewMemIndexStore())
	return si, registry
}

func TestPreflightRejectsIdentityMismatch(t *testing.T) {
	si, registry := setupRegistry(t)
	op := RowOp{
		Kind: OpInsert,
		Key:  ivalue.Uint(1),
		Row: irow.Row{
			"id":    irow.Present(ivalue.Uint(2)),
			"email": irow.Present(ivalue.Text("a@example.com")),
		},
	}
	_, err := Preflight(registry, fakeCodec{}, si, []RowOp{op})
	require.Error(t, err)
	assert.True(t, ierrkit.Is(err, ierrkit.ClassUnsupported))
}

func TestPreflightAndApplyInsertsRowAndIndex(t *testing.T) {
	si, registry := setupRegistry(t)
	op := RowOp{
		Kind: OpInsert,
		Key:  ivalue.Uint(1),
		Row: irow.Row{
			"id":    irow.Present(ivalue.Uint(1)),
			"email": irow.Present(ivalue.Text("a@example.com")),
		},
	}
	prepared, err := Preflight(registry, fakeCodec{}, si, []RowOp{op})
	require.NoError(t, err)

	sink := &imetrics.CollectingSink{}
	result, err := Apply(registry, "order", prepared, Atomic, sink)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	require.Len(t, sink.Deltas, 1)
	assert.Equal(t, "by_email", sink.Deltas[0].IndexName)
	assert.Equal(t, uint64(1), sink.Deltas[0].Inserted)

	var stored bool
	registry.WithData("order", func(s istore.DataStore) {
		_, stored = s.Get(istore.EncodeRawKey(ivalue.Uint(1)))
	})
	assert.True(t, stored)
}

func TestApplyRejectsUniqueIndexConflict(t *testing.T) {
	si, registry := setupRegistry(t)
	first := RowOp{Kind: OpInsert, Key: ivalue.Uint(1), Row: irow.Row{
		"id": irow.Present(ivalue.Uint(1)), "email": irow.Present(ivalue.Text("dup@example.com")),
	}}
	second := RowOp{Kind: OpInsert, Key: ivalue.Uint(2), Row: irow.Row{
		"id": irow.Present(ivalue.Uint(2)), "email": irow.Present(ivalue.Text("dup@example.com")),
	}}

	prepared, err := Preflight(registry, fakeCodec{}, si, []RowOp{first})
	require.NoError(t, err)
	sink := &imetrics.CollectingSink{}
	_, err = Apply(registry, "order", prepared, Atomic, sink)
	require.NoError(t, err)

	prepared2, err := Preflight(registry, fakeCodec{}, si, []RowOp{second})
	require.NoError(t, err)
	sink2 := &imetrics.CollectingSink{}
	_, err = Apply(registry, "order", prepared2, Atomic, sink2)
	require.Error(t, err)
	assert.True(t, ierrkit.Is(err, ierrkit.ClassConflict))
	assert.Empty(t, sink2.Deltas, "a rolled-back atomic batch must never emit index deltas")
}

func TestPreflightRejectsMissingStrongRelation(t *testing.T) {
	si, err := ischema.BuildSchemaInfo(&ischema.EntityModel{
		EntityName: "order",
		PrimaryKey: "id",
		Fields: map[string]ischema.FieldKind{
			"id": {Type: ischema.Scalar(ivalue.KindUint)},
			"customer_id": {
				Type:     ischema.Scalar(ivalue.KindUint),
				Relation: &ischema.Relation{TargetPath: "customer", TargetEntity: "customer", KeyKind: ivalue.KindUint, Strength: ischema.RelationStrong},
			},
		},
		Indexes: []ischema.IndexModel{
			{Name: "by_customer", Fields: []string{"customer_id"}},
		},
	})
	require.NoError(t, err)

	registry := istore.NewRegistry()
	registry.RegisterData("order", istore.NewMemDataStore())
	registry.RegisterIndex("order", istore.NewMemIndexStore())
	registry.RegisterData("customer", istore.NewMemDataStore())

	op := RowOp{Kind: OpInsert, Key: ivalue.Uint(1), Row: irow.Row{
		"id":          irow.Present(ivalue.Uint(1)),
		"customer_id": irow.Present(ivalue.Uint(99)),
	}}
	_, err = Preflight(registry, fakeCodec{}, si, []RowOp{op})
	require.Error(t, err)
	assert.True(t, ierrkit.Is(err, ierrkit.ClassUnsupported))
}

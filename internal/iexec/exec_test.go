package iexec

import (
	"testing"

	"github.com/dragginzgame/icydb-sub000/internal/iaccess"
	"github.com/dragginzgame/icydb-sub000/internal/iexecplan"
	"github.com/dragginzgame/icydb-sub000/internal/ilogical"
	"github.com/dragginzgame/icydb-sub000/internal/imetrics"
	"github.com/dragginzgame/icydb-sub000/internal/ipredicate"
	"github.com/dragginzgame/icydb-sub000/internal/irow"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/istore"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityCodec is a trivial Codec for tests: rows are round-tripped
// in-process without a real byte encoding, since the wire codec is an
// external collaborator (spec.md section 1).
type identityCodec struct{ rows map[string]irow.Row }

func (c identityCodec) Decode(raw []byte) (irow.Row, error) { return c.rows[string(raw)], nil }
func (c identityCodec) Encode(row irow.Row) ([]byte, error) { return nil, nil }
func (c identityCodec) PrimaryKey(row irow.Row, pkField string) (ivalue.Value, bool) {
	cell := row.Get(pkField)
	return cell.Value, cell.State == irow.FieldPresent
}

func setupOrders(t *testing.T) (*ischema.SchemaInfo, *istore.Registry, identityCodec) {
	t.Helper()
	si, err := ischema.BuildSchemaInfo(&ischema.EntityModel{
		EntityName: "order",
		PrimaryKey: "id",
		Fields: map[string]ischema.FieldKind{
			"id":          {Type: ischema.Scalar(ivalue.KindUint)},
			"customer_id": {Type: ischema.Scalar(ivalue.KindUint)},
			"amount":      {Type: ischema.Scalar(ivalue.KindUint)},
		},
		Indexes: []ischema.IndexModel{
			{Name: "by_customer", Fields: []string{"customer_id"}},
		},
	})
	require.NoError(t, err)

	data := istore.NewMemDataStore()
	index := istore.NewMemIndexStore()
	registry := istore.NewRegistry()
	registry.RegisterData("order", data)
	registry.RegisterIndex("order", index)

	rows := map[string]irow.Row{}
	indexID := istore.ComputeIndexID("order", "by_customer")
	mk := func(id, cust, amount uint64) {
		row := irow.Row{
			"id":          irow.Present(ivalue.Uint(id)),
			"customer_id": irow.Present(ivalue.Uint(cust)),
			"amount":      irow.Present(ivalue.Uint(amount)),
		}
		pk := istore.EncodeRawKey(ivalue.Uint(id))
		raw := []byte{byte(id)}
		rows[string(raw)] = row
		data.Put(pk, raw)
		idxKey := istore.EncodeRawIndexKey(indexID, []ivalue.Value{ivalue.Uint(cust)}, pk)
		index.Insert(idxKey, pk)
	}
	mk(1, 100, 10)
	mk(2, 100, 20)
	mk(3, 200, 30)

	return si, registry, identityCodec{rows: rows}
}

func TestExecuteFullScanOrdersAscending(t *testing.T) {
	si, registry, codec := setupOrders(t)
	sp := ilogical.ScalarPlan{
		Mode:  ilogical.Load(nil, 0),
		Order: []ilogical.OrderField{{Field: "id"}},
	}
	ep := iexecplan.Freeze("order", sp, iaccess.PathPlan(iaccess.FullScan()))
	resp, err := Execute(registry, codec, si, ep, nil, imetrics.NoopSink{})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 3)
	assert.Equal(t, uint64(1), resp.Rows[0].Row.Get("id").Value.AsUint())
	assert.Equal(t, uint64(3), resp.Rows[2].Row.Get("id").Value.AsUint())
	assert.False(t, resp.HasMore)
}

func TestExecuteLimitEmitsContinuationCursor(t *testing.T) {
	si, registry, codec := setupOrders(t)
	limit := uint64(2)
	sp := ilogical.ScalarPlan{
		Mode:  ilogical.Load(&limit, 0),
		Order: []ilogical.OrderField{{Field: "id"}},
	}
	ep := iexecplan.Freeze("order", sp, iaccess.PathPlan(iaccess.FullScan()))
	resp, err := Execute(registry, codec, si, ep, nil, imetrics.NoopSink{})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 2)
	assert.True(t, resp.HasMore)
	assert.NotEmpty(t, resp.NextCursor)
}

func TestExecutePrimaryKeyFastPath(t *testing.T) {
	si, registry, codec := setupOrders(t)
	sp := ilogical.ScalarPlan{Order: []ilogical.OrderField{{Field: "id"}}}
	ep := iexecplan.Freeze("order", sp, iaccess.PathPlan(iaccess.ByKey(ivalue.Uint(2))))
	resp, err := Execute(registry, codec, si, ep, nil, imetrics.NoopSink{})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, uint64(20), resp.Rows[0].Row.Get("amount").Value.AsUint())
}

func TestExecuteIndexPrefixFiltersByEquality(t *testing.T) {
	si, registry, codec := setupOrders(t)
	sp := ilogical.ScalarPlan{
		Predicate: ipredicate.Compare{Field: "customer_id", Op: ipredicate.OpEq, Value: ivalue.Uint(100), Coercion: ivalue.CoercionSpec{ID: ivalue.CoercionStrict}},
		Order:     []ilogical.OrderField{{Field: "id"}},
	}
	access := iaccess.PathPlan(iaccess.IndexPrefix("by_customer", []ivalue.Value{ivalue.Uint(100)}))
	ep := iexecplan.Freeze("order", sp, access)
	resp, err := Execute(registry, codec, si, ep, nil, imetrics.NoopSink{})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 2)
}

// setupTagged seeds the spec.md section 8 worked example: tags
// {10, 10, 20, 25, 28, 40} over ids 1-6, indexed by "tag".
func setupTagged(t *testing.T) (*ischema.SchemaInfo, *istore.Registry, identityCodec) {
	t.Helper()
	si, err := ischema.BuildSchemaInfo(&ischema.EntityModel{
		EntityName: "tagged",
		PrimaryKey: "id",
		Fields: map[string]ischema.FieldKind{
			"id":  {Type: ischema.Scalar(ivalue.KindUint)},
			"tag": {Type: ischema.Scalar(ivalue.KindUint)},
		},
		Indexes: []ischema.IndexModel{
			{Name: "by_tag", Fields: []string{"tag"}},
		},
	})
	require.NoError(t, err)

	data := istore.NewMemDataStore()
	index := istore.NewMemIndexStore()
	registry := istore.NewRegistry()
	registry.RegisterData("tagged", data)
	registry.RegisterIndex("tagged", index)

	rows := map[string]irow.Row{}
	indexID := istore.ComputeIndexID("tagged", "by_tag")
	mk := func(id, tag uint64) {
		row := irow.Row{
			"id":  irow.Present(ivalue.Uint(id)),
			"tag": irow.Present(ivalue.Uint(tag)),
		}
		pk := istore.EncodeRawKey(ivalue.Uint(id))
		raw := []byte{byte(id)}
		rows[string(raw)] = row
		data.Put(pk, raw)
		idxKey := istore.EncodeRawIndexKey(indexID, []ivalue.Value{ivalue.Uint(tag)}, pk)
		index.Insert(idxKey, pk)
	}
	mk(1, 10)
	mk(2, 10)
	mk(3, 20)
	mk(4, 25)
	mk(5, 28)
	mk(6, 40)

	return si, registry, identityCodec{rows: rows}
}

func TestExecuteIndexRangeLimitPushdownBoundsScan(t *testing.T) {
	si, registry, codec := setupTagged(t)
	limit := uint64(2)
	sp := ilogical.ScalarPlan{
		Mode: ilogical.Load(&limit, 0),
		Order: []ilogical.OrderField{
			{Field: "tag", Direction: ilogical.Asc},
			{Field: "id", Direction: ilogical.Asc},
		},
	}
	access := iaccess.PathPlan(iaccess.IndexRange("by_tag", nil, iaccess.Inclusive(ivalue.Uint(10)), iaccess.Exclusive(ivalue.Uint(30))))
	ep := iexecplan.Freeze("tagged", sp, access)

	sink := &imetrics.CollectingSink{}
	resp, err := Execute(registry, codec, si, ep, nil, sink)
	require.NoError(t, err)

	var scanned uint64
	for _, rs := range sink.Rows {
		scanned += rs.RowsScanned
	}
	assert.Equal(t, uint64(3), scanned, "fetch = offset(0)+limit(2)+1")
	assert.True(t, resp.BoundedRangeTried)
	assert.True(t, resp.BoundedRangeOK)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, uint64(1), resp.Rows[0].Row.Get("id").Value.AsUint())
	assert.Equal(t, uint64(2), resp.Rows[1].Row.Get("id").Value.AsUint())
	assert.True(t, resp.HasMore)
}

func TestExecuteIndexRangeLimitPushdownRetriesOnUnderfill(t *testing.T) {
	si, registry, codec := setupTagged(t)
	limit := uint64(2)
	sp := ilogical.ScalarPlan{
		Mode: ilogical.Load(&limit, 0),
		Predicate: ipredicate.Compare{
			Field: "tag", Op: ipredicate.OpNe, Value: ivalue.Uint(20),
			Coercion: ivalue.CoercionSpec{ID: ivalue.CoercionStrict},
		},
		Order: []ilogical.OrderField{
			{Field: "tag", Direction: ilogical.Asc},
			{Field: "id", Direction: ilogical.Asc},
		},
	}
	access := iaccess.PathPlan(iaccess.IndexRange("by_tag", nil, iaccess.Inclusive(ivalue.Uint(10)), iaccess.Exclusive(ivalue.Uint(30))))
	ep := iexecplan.Freeze("tagged", sp, access)

	sink := &imetrics.CollectingSink{}
	resp, err := Execute(registry, codec, si, ep, nil, sink)
	require.NoError(t, err)

	var scanned uint64
	for _, rs := range sink.Rows {
		scanned += rs.RowsScanned
	}
	assert.Equal(t, uint64(5), scanned, "bounded fetch underfilled, falls back to the full range envelope")
	assert.Equal(t, uint64(1), resp.RejectedKeys, "tag=20 rejected against index components, no row fetch")
	assert.True(t, resp.BoundedRangeTried)
	assert.False(t, resp.BoundedRangeOK)
	require.Len(t, resp.Rows, 2)
	assert.True(t, resp.HasMore)
}

func TestExecuteKeyRangeScannedMatchesBoundsNotWholeStore(t *testing.T) {
	si, registry, codec := setupOrders(t)
	sp := ilogical.ScalarPlan{Order: []ilogical.OrderField{{Field: "id"}}}
	access := iaccess.PathPlan(iaccess.KeyRange(iaccess.Inclusive(ivalue.Uint(1)), iaccess.Inclusive(ivalue.Uint(2))))
	ep := iexecplan.Freeze("order", sp, access)

	sink := &imetrics.CollectingSink{}
	resp, err := Execute(registry, codec, si, ep, nil, sink)
	require.NoError(t, err)

	var scanned uint64
	for _, rs := range sink.Rows {
		scanned += rs.RowsScanned
	}
	assert.Equal(t, uint64(2), scanned)
	require.Len(t, resp.Rows, 2)
}

func TestExecuteInvertedKeyRangeScansNothing(t *testing.T) {
	si, registry, codec := setupOrders(t)
	sp := ilogical.ScalarPlan{Order: []ilogical.OrderField{{Field: "id"}}}
	access := iaccess.PathPlan(iaccess.KeyRange(iaccess.Inclusive(ivalue.Uint(3)), iaccess.Inclusive(ivalue.Uint(1))))
	ep := iexecplan.Freeze("order", sp, access)

	sink := &imetrics.CollectingSink{}
	resp, err := Execute(registry, codec, si, ep, nil, sink)
	require.NoError(t, err)

	var scanned uint64
	for _, rs := range sink.Rows {
		scanned += rs.RowsScanned
	}
	assert.Equal(t, uint64(0), scanned)
	assert.Empty(t, resp.Rows)
}

func TestExecuteZeroLimitShortCircuitsWithNoAccessWork(t *testing.T) {
	si, registry, codec := setupOrders(t)
	limit := uint64(0)
	sp := ilogical.ScalarPlan{
		Mode:  ilogical.Load(&limit, 0),
		Order: []ilogical.OrderField{{Field: "id"}},
	}
	ep := iexecplan.Freeze("order", sp, iaccess.PathPlan(iaccess.FullScan()))

	sink := &imetrics.CollectingSink{}
	resp, err := Execute(registry, codec, si, ep, nil, sink)
	require.NoError(t, err)
	assert.Empty(t, resp.Rows)
	assert.Empty(t, sink.Rows, "limit=0 performs no access work at all")
}

func TestExecuteDistinctSuppressesDuplicateRows(t *testing.T) {
	si, registry, codec := setupOrders(t)
	sp := ilogical.ScalarPlan{
		Distinct: true,
		Order:    []ilogical.OrderField{{Field: "customer_id"}},
	}
	access := iaccess.UnionPlan(
		iaccess.PathPlan(iaccess.ByKey(ivalue.Uint(1))),
		iaccess.PathPlan(iaccess.ByKey(ivalue.Uint(1))),
	)
	ep := iexecplan.Freeze("order", sp, access)
	resp, err := Execute(registry, codec, si, ep, nil, imetrics.NoopSink{})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
}

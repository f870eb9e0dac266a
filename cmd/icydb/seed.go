package main

import (
	"encoding/json"
	"fmt"

	"github.com/dragginzgame/icydb-sub000/internal/imetrics"
	"github.com/dragginzgame/icydb-sub000/internal/irow"
	"github.com/dragginzgame/icydb-sub000/internal/isave"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/istore"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
)

// jsonCodec is a minimal concrete irow.Codec: rows are marshaled to a
// field-name -> wireCell map. The real entity wire codec is an
// external collaborator (spec.md section 1); this one exists only so
// the demo CLI has something to Put/Get real bytes through.
type jsonCodec struct {
	pkField string
	fields  map[string]ivalue.Kind
}

type wireCell struct {
	Null bool        `json:"null,omitempty"`
	U    *uint64     `json:"u,omitempty"`
	T    *string     `json:"t,omitempty"`
	B    *bool       `json:"b,omitempty"`
}

func (c jsonCodec) Encode(row irow.Row) ([]byte, error) {
	out := map[string]wireCell{}
	for field, kind := range c.fields {
		cell := row.Get(field)
		switch cell.State {
		case irow.FieldMissing:
			continue
		case irow.FieldNull:
			out[field] = wireCell{Null: true}
		case irow.FieldPresent:
			wc, err := encodeCell(kind, cell.Value)
			if err != nil {
				return nil, err
			}
			out[field] = wc
		}
	}
	return json.Marshal(out)
}

func encodeCell(kind ivalue.Kind, v ivalue.Value) (wireCell, error) {
	switch kind {
	case ivalue.KindUint:
		u := v.AsUint()
		return wireCell{U: &u}, nil
	case ivalue.KindText:
		t := v.AsText()
		return wireCell{T: &t}, nil
	case ivalue.KindBool:
		b := v.AsBool()
		return wireCell{B: &b}, nil
	default:
		return wireCell{}, fmt.Errorf("jsonCodec: unsupported field kind %v", kind)
	}
}

func (c jsonCodec) Decode(raw []byte) (irow.Row, error) {
	var wire map[string]wireCell
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("jsonCodec: decoding row: %w", err)
	}
	row := irow.Row{}
	for field, kind := range c.fields {
		wc, ok := wire[field]
		if !ok {
			row[field] = irow.Missing()
			continue
		}
		if wc.Null {
			row[field] = irow.Null()
			continue
		}
		switch kind {
		case ivalue.KindUint:
			row[field] = irow.Present(ivalue.Uint(*wc.U))
		case ivalue.KindText:
			row[field] = irow.Present(ivalue.Text(*wc.T))
		case ivalue.KindBool:
			row[field] = irow.Present(ivalue.Bool(*wc.B))
		}
	}
	return row, nil
}

func (c jsonCodec) PrimaryKey(row irow.Row, pkField string) (ivalue.Value, bool) {
	cell := row.Get(pkField)
	return cell.Value, cell.State == irow.FieldPresent
}

// seedOrders builds the demo "order" entity schema, registers its
// in-memory stores, and inserts a handful of fixture rows through the
// real two-phase save pipeline (spec.md section 4.10), the same path
// the --insert flag uses for a new row.
func seedOrders() (*ischema.SchemaInfo, *istore.Registry, jsonCodec) {
	model := &ischema.EntityModel{
		EntityName: "order",
		PrimaryKey: "id",
		Fields: map[string]ischema.FieldKind{
			"id":          {Type: ischema.Scalar(ivalue.KindUint)},
			"customer_id": {Type: ischema.Scalar(ivalue.KindUint)},
			"amount":      {Type: ischema.Scalar(ivalue.KindUint)},
			"region":      {Type: ischema.Scalar(ivalue.KindText)},
			"vip":         {Type: ischema.Scalar(ivalue.KindBool)},
		},
		Indexes: []ischema.IndexModel{
			{Name: "by_customer", Fields: []string{"customer_id"}},
			{Name: "by_region", Fields: []string{"region"}},
		},
	}
	schema, err := ischema.BuildSchemaInfo(model)
	if err != nil {
		panic(fmt.Sprintf("icydb: building demo schema: %v", err))
	}

	registry := istore.NewRegistry()
	registry.RegisterData("order", istore.NewMemDataStore())
	registry.RegisterIndex("order", istore.NewMemIndexStore())

	codec := jsonCodec{
		pkField: "id",
		fields: map[string]ivalue.Kind{
			"id":          ivalue.KindUint,
			"customer_id": ivalue.KindUint,
			"amount":      ivalue.KindUint,
			"region":      ivalue.KindText,
			"vip":         ivalue.KindBool,
		},
	}

	seed := []struct {
		id, customer, amount uint64
		region                string
		vip                   bool
	}{
		{1, 100, 1000, "west", true},
		{2, 100, 2500, "west", true},
		{3, 200, 500, "east", false},
		{4, 200, 750, "east", false},
		{5, 300, 4200, "north", true},
		{6, 300, 300, "north", false},
	}
	ops := make([]isave.RowOp, 0, len(seed))
	for _, s := range seed {
		row := irow.Row{
			"id":          irow.Present(ivalue.Uint(s.id)),
			"customer_id": irow.Present(ivalue.Uint(s.customer)),
			"amount":      irow.Present(ivalue.Uint(s.amount)),
			"region":      irow.Present(ivalue.Text(s.region)),
			"vip":         irow.Present(ivalue.Bool(s.vip)),
		}
		ops = append(ops, isave.RowOp{Kind: isave.OpInsert, Key: ivalue.Uint(s.id), Row: row})
	}
	prepared, err := isave.Preflight(registry, codec, schema, ops)
	if err != nil {
		panic(fmt.Sprintf("icydb: seeding demo rows: %v", err))
	}
	if _, err := isave.Apply(registry, "order", prepared, isave.Atomic, imetrics.NoopSink{}); err != nil {
		panic(fmt.Sprintf("icydb: applying demo rows: %v", err))
	}

	return schema, registry, codec
}

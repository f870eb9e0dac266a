// Command icydb is a small demo CLI over the query pipeline: it seeds
// an in-memory "order" entity, turns command-line flags into a
// predicate, runs it through the planner, validator, executor and
// (optionally) the grouped-aggregate path, and prints the result.
// Modeled on sqldef's own cmd/*def main.go: parseOptions splits flag
// parsing from the run step, go-flags drives both.
package main

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/dragginzgame/icydb-sub000/internal/iaccess"
	"github.com/dragginzgame/icydb-sub000/internal/iaggregate"
	"github.com/dragginzgame/icydb-sub000/internal/iconfig"
	"github.com/dragginzgame/icydb-sub000/internal/icursor"
	"github.com/dragginzgame/icydb-sub000/internal/iexec"
	"github.com/dragginzgame/icydb-sub000/internal/iexecplan"
	"github.com/dragginzgame/icydb-sub000/internal/igroup"
	"github.com/dragginzgame/icydb-sub000/internal/ilog"
	"github.com/dragginzgame/icydb-sub000/internal/ilogical"
	"github.com/dragginzgame/icydb-sub000/internal/imetrics"
	"github.com/dragginzgame/icydb-sub000/internal/ipredicate"
	"github.com/dragginzgame/icydb-sub000/internal/iplanner"
	"github.com/dragginzgame/icydb-sub000/internal/ipushdown"
	"github.com/dragginzgame/icydb-sub000/internal/irow"
	"github.com/dragginzgame/icydb-sub000/internal/isave"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/istore"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
	"github.com/dragginzgame/icydb-sub000/internal/tracelog"
)

var version string

type options struct {
	Config     string `short:"c" long:"config" description:"Path to a YAML runtime config file" value-name:"filename"`
	CustomerID *uint64 `long:"customer-id" description:"Filter by exact customer_id"`
	Region     string `long:"region" description:"Filter by exact region"`
	MinAmount  *uint64 `long:"min-amount" description:"Filter by amount >= value"`
	MaxAmount  *uint64 `long:"max-amount" description:"Filter by amount <= value"`
	OrderBy    string `long:"order-by" description:"Order field: id, amount or customer_id" default:"id"`
	Desc       bool   `long:"desc" description:"Sort descending"`
	Distinct   bool   `long:"distinct" description:"Suppress duplicate rows (requires an order-by)"`
	Limit      uint64 `long:"limit" description:"Maximum rows to return" default:"10"`
	Offset     uint64 `long:"offset" description:"Rows to skip before the first returned row"`
	Cursor     string `long:"cursor" description:"Base64 continuation cursor from a previous page"`
	GroupBy    string `long:"group-by" description:"Group field (e.g. customer_id); switches to the grouped sum_by(amount) path"`
	Insert     string `long:"insert" description:"Insert a row before querying, e.g. id=7,customer_id=300,region=west,vip=true,amount=999"`
	Trace      bool   `long:"trace" description:"Print the query's execution trace to stderr"`
	Help       bool   `long:"help" description:"Show this help"`
	Version    bool   `long:"version" description:"Show this version"`
}

func parseOptions(args []string) options {
	var opts options
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[option...]"
	_, err := parser.ParseArgs(args)
	if err != nil {
		log.Fatal(err)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}
	return opts
}

func main() {
	ilog.Init()
	logger := ilog.For("cmd")
	opts := parseOptions(os.Args[1:])

	cfg := iconfig.Default()
	if opts.Config != "" {
		loaded, err := iconfig.Load(opts.Config)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}
	if opts.Trace {
		cfg.Trace.Enabled = true
	}

	schema, registry, codec := seedOrders()

	if opts.Insert != "" {
		if err := runInsert(registry, codec, schema, opts.Insert); err != nil {
			log.Fatal(err)
		}
		logger.Info("inserted row", "spec", opts.Insert)
	}

	if opts.GroupBy != "" {
		if err := runGrouped(schema, registry, codec, cfg, opts); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := runQuery(schema, registry, codec, cfg, opts); err != nil {
		log.Fatal(err)
	}
}

// buildPredicate turns the filter flags into a predicate tree (spec.md
// section 4.1). No flags set means "match all".
func buildPredicate(opts options) ipredicate.Node {
	var children []ipredicate.Node
	if opts.CustomerID != nil {
		children = append(children, ipredicate.Compare{
			Field: "customer_id", Op: ipredicate.OpEq, Value: ivalue.Uint(*opts.CustomerID),
			Coercion: ivalue.CoercionSpec{ID: ivalue.CoercionStrict},
		})
	}
	if opts.Region != "" {
		children = append(children, ipredicate.Compare{
			Field: "region", Op: ipredicate.OpEq, Value: ivalue.Text(opts.Region),
			Coercion: ivalue.CoercionSpec{ID: ivalue.CoercionStrict},
		})
	}
	if opts.MinAmount != nil {
		children = append(children, ipredicate.Compare{
			Field: "amount", Op: ipredicate.OpGte, Value: ivalue.Uint(*opts.MinAmount),
			Coercion: ivalue.CoercionSpec{ID: ivalue.CoercionStrict},
		})
	}
	if opts.MaxAmount != nil {
		children = append(children, ipredicate.Compare{
			Field: "amount", Op: ipredicate.OpLte, Value: ivalue.Uint(*opts.MaxAmount),
			Coercion: ivalue.CoercionSpec{ID: ivalue.CoercionStrict},
		})
	}
	switch len(children) {
	case 0:
		return ipredicate.True{}
	case 1:
		return children[0]
	default:
		return ipredicate.And{Children: children}
	}
}

func labelFor(access iaccess.Plan) tracelog.OptimizationLabel {
	switch access.Kind {
	case iaccess.PlanUnion:
		return tracelog.LabelUnion
	case iaccess.PlanIntersection:
		return tracelog.LabelIntersection
	}
	switch access.Leaf.Kind {
	case iaccess.PathByKey, iaccess.PathByKeys, iaccess.PathKeyRange:
		return tracelog.LabelPrimaryKey
	case iaccess.PathIndexPrefix:
		return tracelog.LabelIndexPrefix
	case iaccess.PathIndexRange:
		return tracelog.LabelIndexRange
	default:
		return tracelog.LabelFullScan
	}
}

func runQuery(schema *ischema.SchemaInfo, registry *istore.Registry, codec irow.Codec, cfg iconfig.Config, opts options) error {
	predicate := buildPredicate(opts)
	access := iplanner.Plan(schema, predicate)

	order := []ilogical.OrderField{{Field: opts.OrderBy}}
	if opts.Desc {
		order[0].Direction = ilogical.Desc
	}
	limit := opts.Limit
	sp := ilogical.ScalarPlan{
		Mode:      ilogical.Load(&limit, opts.Offset),
		Predicate: predicate,
		Order:     order,
		Distinct:  opts.Distinct,
	}
	if err := ilogical.Validate(schema, ilogical.ScalarLogical(sp)); err != nil {
		return err
	}

	ep := iexecplan.Freeze("order", sp, access)

	var token *icursor.ContinuationToken
	if opts.Cursor != "" {
		raw, err := base64.StdEncoding.DecodeString(opts.Cursor)
		if err != nil {
			return fmt.Errorf("icydb: decoding --cursor: %w", err)
		}
		decoded, err := iexecplan.PlanCursor(ep, schema, raw)
		if err != nil {
			return err
		}
		token = &decoded
	}

	sink := &imetrics.CollectingSink{}
	resp, err := iexec.Execute(registry, codec, schema, ep, token, sink)
	if err != nil {
		return err
	}

	for _, r := range resp.Rows {
		fmt.Println(formatRow(r.Row))
	}
	if resp.HasMore {
		fmt.Fprintf(os.Stderr, "next cursor: %s\n", base64.StdEncoding.EncodeToString(resp.NextCursor))
	}

	if cfg.Trace.Enabled {
		printer := tracelog.NewPrinter(true)
		var scanned uint64
		for _, rs := range sink.Rows {
			scanned += rs.RowsScanned
		}
		trace := tracelog.Trace{
			EntityPath:        "order",
			KeysScanned:       scanned,
			RejectedKeys:      resp.RejectedKeys,
			Optimization:      labelFor(access),
			Pushdown:          ipushdown.Analyze(schema, order, access),
			BoundedRangeTried: resp.BoundedRangeTried,
			BoundedRangeOK:    resp.BoundedRangeOK,
		}
		fmt.Fprintln(os.Stderr, printer.Render(trace))
	}
	return nil
}

func runGrouped(schema *ischema.SchemaInfo, registry *istore.Registry, codec irow.Codec, cfg iconfig.Config, opts options) error {
	predicate := buildPredicate(opts)
	access := iplanner.Plan(schema, predicate)

	sp := ilogical.ScalarPlan{Mode: ilogical.Load(nil, 0), Predicate: predicate}
	gs := ilogical.GroupSpec{
		GroupFields:   []string{opts.GroupBy},
		Aggregates:    []string{"sum_by(amount)"},
		MaxGroups:     cfg.GroupedExecution.BudgetFor("order").MaxGroups,
		MaxGroupBytes: cfg.GroupedExecution.BudgetFor("order").MaxGroupBytes,
	}
	gp := ilogical.GroupPlan{Scalar: sp, Group: gs}
	if err := ilogical.Validate(schema, ilogical.GroupLogical(gp)); err != nil {
		return err
	}

	ep := iexecplan.Freeze("order", sp, access)
	resp, err := iexec.Execute(registry, codec, schema, ep, nil, imetrics.NoopSink{})
	if err != nil {
		return err
	}

	rows := make([]iaggregate.Row, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		pk, _ := codec.PrimaryKey(r.Row, schema.PrimaryKey())
		rows = append(rows, iaggregate.Row{PK: pk, Row: r.Row})
	}

	fields, budget := igroup.FromLogical(gp.Group)
	groups, err := igroup.Materialize(fields, rows, budget)
	if err != nil {
		return err
	}
	results, err := igroup.ComputeGroupAggregates(groups, []igroup.GroupAggregateSpec{
		{Alias: "total_amount", Field: "amount", Kind: iaggregate.FieldSumBy},
	})
	if err != nil {
		return err
	}
	for _, g := range results {
		fmt.Printf("%s => total_amount=%s\n", formatKey(g.Key), g.Results["total_amount"].Decimal.String())
	}
	return nil
}

func runInsert(registry *istore.Registry, codec irow.Codec, schema *ischema.SchemaInfo, spec string) error {
	fields, err := parseInsertSpec(spec)
	if err != nil {
		return err
	}
	idCell := fields.Get("id")
	if idCell.State != irow.FieldPresent {
		return fmt.Errorf("icydb: --insert requires an id field")
	}
	ops := []isave.RowOp{{Kind: isave.OpInsert, Key: idCell.Value, Row: fields}}
	prepared, err := isave.Preflight(registry, codec, schema, ops)
	if err != nil {
		return err
	}
	result, err := isave.Apply(registry, "order", prepared, isave.Atomic, imetrics.NoopSink{})
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("icydb: insert failed: %v", result.Errors)
	}
	return nil
}

func parseInsertSpec(spec string) (irow.Row, error) {
	row := irow.Row{}
	for _, pair := range strings.Split(spec, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("icydb: malformed --insert field %q", pair)
		}
		field, raw := kv[0], kv[1]
		switch field {
		case "id", "customer_id", "amount":
			var n uint64
			if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
				return nil, fmt.Errorf("icydb: field %q must be a non-negative integer: %w", field, err)
			}
			row[field] = irow.Present(ivalue.Uint(n))
		case "region":
			row[field] = irow.Present(ivalue.Text(raw))
		case "vip":
			row[field] = irow.Present(ivalue.Bool(raw == "true"))
		default:
			return nil, fmt.Errorf("icydb: unknown field %q", field)
		}
	}
	return row, nil
}

func formatRow(row irow.Row) string {
	var b strings.Builder
	for _, field := range []string{"id", "customer_id", "amount", "region", "vip"} {
		cell := row.Get(field)
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%s", field, formatCell(cell))
	}
	return b.String()
}

func formatCell(cell irow.Cell) string {
	switch cell.State {
	case irow.FieldMissing:
		return "<missing>"
	case irow.FieldNull:
		return "<null>"
	default:
		switch cell.Value.Kind() {
		case ivalue.KindUint:
			return fmt.Sprintf("%d", cell.Value.AsUint())
		case ivalue.KindText:
			return cell.Value.AsText()
		case ivalue.KindBool:
			return fmt.Sprintf("%t", cell.Value.AsBool())
		default:
			return "<unsupported>"
		}
	}
}

func formatKey(key []ivalue.Value) string {
	parts := make([]string, len(key))
	for i, v := range key {
		if v.Kind() == ivalue.KindUint {
			parts[i] = fmt.Sprintf("%d", v.AsUint())
		} else {
			parts[i] = v.AsText()
		}
	}
	return strings.Join(parts, ",")
}

// Package iexec is the execution kernel (spec.md section 4.7): given a
// frozen ExecutablePlan, an optional decoded continuation cursor, and a
// read-only view of the data/index stores, it produces ordered rows and
// optionally a next cursor. Route selection (primary-key fast path,
// secondary-index path, full scan), index-range limit pushdown, and
// cursor emission all live here; the final predicate is always
// re-evaluated against the decoded row regardless of which access path
// narrowed the candidate set, since an AccessPlan is a pruning
// heuristic, not a proof of correctness (spec.md section 4.3's access
// paths are "at least as broad as the predicate", never "exactly").
package iexec

import (
	"sort"

	"github.com/dragginzgame/icydb-sub000/internal/iaccess"
	"github.com/dragginzgame/icydb-sub000/internal/icursor"
	"github.com/dragginzgame/icydb-sub000/internal/ierrkit"
	"github.com/dragginzgame/icydb-sub000/internal/iexecplan"
	"github.com/dragginzgame/icydb-sub000/internal/ilogical"
	"github.com/dragginzgame/icydb-sub000/internal/imetrics"
	"github.com/dragginzgame/icydb-sub000/internal/ipredicate"
	"github.com/dragginzgame/icydb-sub000/internal/irow"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/istore"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
)

// RowResult is one row in the response, paired with its storage key so
// the cursor emitter can build an anchor.
type RowResult struct {
	Key istore.RawKey
	Row irow.Row
}

// Response is the executor's output, including the debug-trace figures
// spec.md section 14 promises (rejected-key counts and whether a
// bounded index-range attempt sufficed).
type Response struct {
	Rows              []RowResult
	NextCursor        []byte
	HasMore           bool
	RejectedKeys      uint64
	BoundedRangeTried bool
	BoundedRangeOK    bool
}

// candidate is an internal scan unit, carrying the raw index key when
// produced by an IndexPrefix or IndexRange leaf; only a single
// IndexRange access plan turns it into a cursor anchor (spec.md section
// 4.6).
type candidate struct {
	key    istore.RawKey
	row    irow.Row
	anchor []byte
}

// scanContext carries the read-only inputs scanPath needs beyond the
// access path itself: the schema (to resolve an index's field order for
// the index-only predicate optimization) and the query's predicate (to
// decide whether that optimization applies and, when it does, to reject
// non-matching index entries without ever fetching their row bytes).
type scanContext struct {
	schema    *ischema.SchemaInfo
	predicate ipredicate.Node
}

// scanResult is what a scan/scanPath call physically did: the surviving
// candidates, how many index/data entries were examined (RowsScanned
// telemetry, spec.md section 5), how many were rejected by the
// index-only predicate check without a row fetch, and — for a budgeted
// IndexRange scan — whether every matching entry in the range was
// exhausted (no candidates remain beyond the budget).
type scanResult struct {
	candidates []candidate
	scanned    uint64
	rejected   uint64
	exhausted  bool
}

// Execute runs ep against registry, applying predicate, order, distinct,
// offset/limit and cursor boundary semantics, and emits a continuation
// cursor when more rows remain.
func Execute(
	registry *istore.Registry,
	codec irow.Codec,
	schema *ischema.SchemaInfo,
	ep *iexecplan.ExecutablePlan,
	token *icursor.ContinuationToken,
	sink imetrics.Sink,
) (*Response, error) {
	// A zero limit can never yield a row regardless of access shape:
	// short-circuit before touching any store (spec.md section 4.7).
	if ep.Mode.Limit != nil && *ep.Mode.Limit == 0 {
		return &Response{}, nil
	}

	var dataStore istore.DataStore
	var indexStore istore.IndexStore
	if !registry.WithData(ep.EntityPath, func(s istore.DataStore) { dataStore = s }) {
		return nil, ierrkit.Newf(ierrkit.ClassInvariantViolation, ierrkit.OriginStore, "no data store registered for entity path %q", ep.EntityPath)
	}
	registry.WithIndex(ep.EntityPath, func(s istore.IndexStore) { indexStore = s })

	ctx := scanContext{schema: schema, predicate: orTrue(ep.Predicate)}

	result, boundedTried, boundedOK, err := scanTop(dataStore, indexStore, codec, schema, ep, ctx)
	if err != nil {
		return nil, err
	}
	imetrics.NotifyRowsScanned(sink, imetrics.RowsScanned{EntityPath: ep.EntityPath, RowsScanned: result.scanned})

	filtered := filterCandidates(result.candidates, ctx.predicate)

	if err := sortCandidates(filtered, schema, ep.Order); err != nil {
		return nil, err
	}

	if ep.Distinct {
		filtered = distinctRows(filtered)
	}

	start := 0
	if token != nil {
		start, err = advancePastBoundary(filtered, schema, ep.Order, *token)
		if err != nil {
			return nil, err
		}
	}
	filtered = filtered[start:]

	// Offset is consumed on the first page only; a continuation cursor's
	// boundary already marks the resume point.
	var offset uint64
	if token == nil {
		offset = ep.Mode.Offset
	}
	if int(offset) > len(filtered) {
		filtered = nil
	} else {
		filtered = filtered[offset:]
	}

	hasMore := false
	if ep.Mode.Limit != nil {
		limit := *ep.Mode.Limit
		if uint64(len(filtered)) > limit {
			filtered = filtered[:limit]
			hasMore = true
		}
	}

	resp := &Response{
		Rows:              make([]RowResult, 0, len(filtered)),
		HasMore:           hasMore,
		RejectedKeys:      result.rejected,
		BoundedRangeTried: boundedTried,
		BoundedRangeOK:    boundedOK,
	}
	for _, c := range filtered {
		resp.Rows = append(resp.Rows, RowResult{Key: c.key, Row: c.row})
	}

	if hasMore && len(filtered) > 0 {
		last := filtered[len(filtered)-1]
		boundary, err := boundaryFor(last, schema, ep.Order)
		if err != nil {
			return nil, err
		}
		token := icursor.ContinuationToken{
			Signature: ep.ContinuationSignature,
			Direction: ep.Direction,
			Boundary:  boundary,
		}
		if _, isRange := ep.Access.SingleIndexRange(); isRange && last.anchor != nil {
			a := icursor.IndexRangeCursorAnchor(last.anchor)
			token.Anchor = &a
		}
		resp.NextCursor = icursor.Encode(token)
	}

	return resp, nil
}

// scanTop decides whether ep qualifies for index-range limit pushdown
// (spec.md section 4.7: access is a single IndexRange and the order is
// eligible) and, when it does, drives the bounded-then-unbounded-retry
// scan described there. Every other access shape falls through to the
// regular unbounded scan.
func scanTop(
	data istore.DataStore,
	index istore.IndexStore,
	codec irow.Codec,
	schema *ischema.SchemaInfo,
	ep *iexecplan.ExecutablePlan,
	ctx scanContext,
) (scanResult, bool, bool, error) {
	rangePath, isRange := ep.Access.SingleIndexRange()
	if !isRange || ep.Mode.Limit == nil || !rangeLimitEligible(schema, ep.Order, rangePath) {
		result, err := scan(ep.Access, data, index, codec, ctx)
		return result, false, false, err
	}

	fetch := ep.Mode.Offset + *ep.Mode.Limit + 1
	bounded, err := scanPath(rangePath, data, index, codec, ctx, &fetch)
	if err != nil {
		return scanResult{}, false, false, err
	}

	passed := filterCandidates(bounded.candidates, ctx.predicate)
	if uint64(len(passed)) < fetch && !bounded.exhausted {
		full, err := scanPath(rangePath, data, index, codec, ctx, nil)
		if err != nil {
			return scanResult{}, false, false, err
		}
		return full, true, false, nil
	}

	return bounded, true, true, nil
}

// rangeLimitEligible reports whether order lets a single IndexRange
// access serve a bounded fetch directly: the range's own field must be
// the order's sole leading key (ascending — the reference index store
// only iterates in ascending canonical order), tie-broken by the
// primary key, matching spec.md section 4.7's cross-reference to the
// section 4.5 pushdown eligibility notion but specialized to a ranged
// (rather than fully-pinned) index slot.
func rangeLimitEligible(schema *ischema.SchemaInfo, order []ilogical.OrderField, rangePath iaccess.Path) bool {
	if len(order) != 2 {
		return false
	}
	for _, of := range order {
		if of.Direction != ilogical.Asc {
			return false
		}
	}
	idx, ok := schema.IndexByName(rangePath.IndexName)
	if !ok || len(rangePath.Values) >= len(idx.Fields) {
		return false
	}
	rangeField := idx.Fields[len(rangePath.Values)]
	if order[0].Field != rangeField {
		return false
	}
	return order[1].Field == schema.PrimaryKey()
}

func orTrue(n ipredicate.Node) ipredicate.Node {
	if n == nil {
		return ipredicate.True{}
	}
	return n
}

// filterCandidates applies the query predicate and key-level dedup,
// the step every access shape runs through regardless of which route
// narrowed the candidate set (spec.md section 4.3).
func filterCandidates(cands []candidate, predicate ipredicate.Node) []candidate {
	dedup := map[string]bool{}
	out := make([]candidate, 0, len(cands))
	for _, c := range cands {
		k := string(c.key)
		if dedup[k] {
			continue
		}
		if !ipredicate.Evaluate(predicate, c.row) {
			continue
		}
		dedup[k] = true
		out = append(out, c)
	}
	return out
}

// scan routes the access plan to the relevant store lookups, returning
// every candidate row plus the total number of rows physically read
// (for RowsScanned telemetry, spec.md section 5).
func scan(plan iaccess.Plan, data istore.DataStore, index istore.IndexStore, codec irow.Codec, ctx scanContext) (scanResult, error) {
	switch plan.Kind {
	case iaccess.PlanPath:
		return scanPath(plan.Leaf, data, index, codec, ctx, nil)
	case iaccess.PlanUnion:
		var out []candidate
		var scanned, rejected uint64
		for _, c := range plan.Children {
			r, err := scan(c, data, index, codec, ctx)
			if err != nil {
				return scanResult{}, err
			}
			out = append(out, r.candidates...)
			scanned += r.scanned
			rejected += r.rejected
		}
		return scanResult{candidates: out, scanned: scanned, rejected: rejected, exhausted: true}, nil
	case iaccess.PlanIntersection:
		var sets [][]candidate
		var scanned, rejected uint64
		for _, c := range plan.Children {
			r, err := scan(c, data, index, codec, ctx)
			if err != nil {
				return scanResult{}, err
			}
			sets = append(sets, r.candidates)
			scanned += r.scanned
			rejected += r.rejected
		}
		return scanResult{candidates: intersectCandidates(sets), scanned: scanned, rejected: rejected, exhausted: true}, nil
	default:
		return scanResult{}, ierrkit.Newf(ierrkit.ClassInternal, ierrkit.OriginExecutor, "unknown access plan kind %d", plan.Kind)
	}
}

func intersectCandidates(sets [][]candidate) []candidate {
	if len(sets) == 0 {
		return nil
	}
	counts := map[string]int{}
	byKey := map[string]candidate{}
	for _, set := range sets {
		seen := map[string]bool{}
		for _, c := range set {
			k := string(c.key)
			if seen[k] {
				continue
			}
			seen[k] = true
			counts[k]++
			byKey[k] = c
		}
	}
	out := make([]candidate, 0, len(byKey))
	for k, c := range byKey {
		if counts[k] == len(sets) {
			out = append(out, c)
		}
	}
	return out
}

// scanPath runs one access-path leaf. budget, when non-nil, caps an
// IndexRange scan to that many matching index candidates (spec.md
// section 4.7's bounded fetch); every other path kind ignores it.
func scanPath(p iaccess.Path, data istore.DataStore, index istore.IndexStore, codec irow.Codec, ctx scanContext, budget *uint64) (scanResult, error) {
	switch p.Kind {
	case iaccess.PathFullScan:
		entries := data.Iter()
		out := make([]candidate, 0, len(entries))
		for _, e := range entries {
			row, err := codec.Decode(e.Row)
			if err != nil {
				return scanResult{}, wrapCorruption(err)
			}
			out = append(out, candidate{key: e.Key, row: row})
		}
		return scanResult{candidates: out, scanned: uint64(len(entries)), exhausted: true}, nil

	case iaccess.PathByKey:
		k := istore.EncodeRawKey(p.Key)
		row, found, err := getRow(data, codec, k)
		if err != nil {
			return scanResult{scanned: 1}, err
		}
		if !found {
			return scanResult{scanned: 1, exhausted: true}, nil
		}
		return scanResult{candidates: []candidate{{key: k, row: row}}, scanned: 1, exhausted: true}, nil

	case iaccess.PathByKeys:
		var out []candidate
		for _, kv := range p.Keys {
			k := istore.EncodeRawKey(kv)
			row, found, err := getRow(data, codec, k)
			if err != nil {
				return scanResult{scanned: uint64(len(p.Keys))}, err
			}
			if found {
				out = append(out, candidate{key: k, row: row})
			}
		}
		return scanResult{candidates: out, scanned: uint64(len(p.Keys)), exhausted: true}, nil

	case iaccess.PathKeyRange:
		// An inverted range (low > high) can never contain a key: short
		// circuit without touching the store at all (spec.md section 4.7's
		// primary-key fast path invariant).
		if rangeInverted(p.KeyLow, p.KeyHigh) {
			return scanResult{exhausted: true}, nil
		}
		entries := data.Iter()
		var out []candidate
		for _, e := range entries {
			if !rawKeyWithinBounds(e.Key, p.KeyLow, p.KeyHigh) {
				continue
			}
			row, err := codec.Decode(e.Row)
			if err != nil {
				return scanResult{}, wrapCorruption(err)
			}
			out = append(out, candidate{key: e.Key, row: row})
		}
		return scanResult{candidates: out, scanned: uint64(len(out)), exhausted: true}, nil

	case iaccess.PathIndexPrefix, iaccess.PathIndexRange:
		return scanIndexPath(p, data, index, codec, ctx, budget)

	default:
		return scanResult{}, ierrkit.Newf(ierrkit.ClassInternal, ierrkit.OriginExecutor, "unknown access path kind %d", p.Kind)
	}
}

// scanIndexPath walks the secondary index in canonical order, applying
// the prefix/range bound and — when every unresolved predicate field is
// covered by the index with Strict coercion (spec.md section 4.7's
// index-only predicate) — the residual predicate too, directly against
// the decoded index-key components, so a rejected candidate never pays
// for an entity-row fetch. budget, when non-nil, stops the scan once
// that many matching candidates have been considered, reporting whether
// the range was exhausted within budget.
func scanIndexPath(p iaccess.Path, data istore.DataStore, index istore.IndexStore, codec irow.Codec, ctx scanContext, budget *uint64) (scanResult, error) {
	if index == nil {
		return scanResult{}, ierrkit.New(ierrkit.ClassInvariantViolation, ierrkit.OriginIndex, "access plan requires an index store but none is registered")
	}

	var idxFields []string
	indexOnly := false
	if idx, ok := ctx.schema.IndexByName(p.IndexName); ok {
		idxFields = idx.Fields
		indexOnly = indexOnlyEligible(ctx.predicate, idxFields)
	}

	entries := index.Iter()
	res := scanResult{exhausted: true}
	var matched uint64
	for _, e := range entries {
		_, components, pk, err := istore.DecodeRawIndexKey(e.Key)
		if err != nil {
			return scanResult{}, wrapCorruption(err)
		}
		if len(components) < len(p.Values) {
			continue
		}
		prefixMatches := true
		for i, v := range p.Values {
			if ivalue.CompareCanonical(components[i], v) != 0 {
				prefixMatches = false
				break
			}
		}
		if !prefixMatches {
			continue
		}
		if p.Kind == iaccess.PathIndexRange {
			if len(components) <= len(p.Values) {
				continue
			}
			rangeComp := components[len(p.Values)]
			if !withinBound(rangeComp, p.RangeLow, p.RangeHigh) {
				continue
			}
		}

		if budget != nil && matched >= *budget {
			res.exhausted = false
			break
		}
		matched++

		if indexOnly {
			partial := indexComponentRow(idxFields, components)
			if !ipredicate.Evaluate(ctx.predicate, partial) {
				res.rejected++
				continue
			}
		}

		row, found, err := getRow(data, codec, pk)
		if err != nil {
			return scanResult{}, err
		}
		if !found {
			continue
		}
		res.candidates = append(res.candidates, candidate{key: pk, row: row, anchor: append([]byte{}, e.Key...)})
	}
	res.scanned = matched
	return res, nil
}

// indexOnlyEligible reports whether every field predicate refers to is
// in fields and, for Compare nodes, uses Strict coercion — the
// precondition spec.md section 4.7 sets for evaluating a residual
// predicate against index components instead of the decoded row.
func indexOnlyEligible(predicate ipredicate.Node, fields []string) bool {
	covered := make(map[string]bool, len(fields))
	for _, f := range fields {
		covered[f] = true
	}
	return predicateFieldsCovered(predicate, covered)
}

func predicateFieldsCovered(n ipredicate.Node, covered map[string]bool) bool {
	switch t := n.(type) {
	case nil:
		return true
	case ipredicate.True, ipredicate.False:
		return true
	case ipredicate.And:
		for _, c := range t.Children {
			if !predicateFieldsCovered(c, covered) {
				return false
			}
		}
		return true
	case ipredicate.Or:
		for _, c := range t.Children {
			if !predicateFieldsCovered(c, covered) {
				return false
			}
		}
		return true
	case ipredicate.Not:
		return predicateFieldsCovered(t.Child, covered)
	case ipredicate.Compare:
		return covered[t.Field] && t.Coercion.ID == ivalue.CoercionStrict
	case ipredicate.IsNull:
		return covered[t.Field]
	case ipredicate.IsMissing:
		return covered[t.Field]
	case ipredicate.IsEmpty:
		return covered[t.Field]
	case ipredicate.IsNotEmpty:
		return covered[t.Field]
	case ipredicate.TextContains:
		return covered[t.Field]
	case ipredicate.TextContainsCi:
		return covered[t.Field]
	case ipredicate.MapContainsKey:
		return covered[t.Field]
	case ipredicate.MapContainsValue:
		return covered[t.Field]
	case ipredicate.MapContainsEntry:
		return covered[t.Field]
	default:
		return false
	}
}

// indexComponentRow builds a partial row exposing only the fields an
// index covers, each Present from its decoded component. Every other
// field is Missing by omission — safe, since indexOnlyEligible already
// guarantees the predicate never looks at them.
func indexComponentRow(fields []string, components []ivalue.Value) irow.Row {
	row := make(irow.Row, len(fields))
	for i, f := range fields {
		if i >= len(components) {
			break
		}
		row[f] = irow.Present(components[i])
	}
	return row
}

func rangeInverted(low, high iaccess.Bound) bool {
	if low.Unbounded || high.Unbounded {
		return false
	}
	return compareBytes(istore.EncodeRawKey(low.Value), istore.EncodeRawKey(high.Value)) > 0
}

func getRow(data istore.DataStore, codec irow.Codec, k istore.RawKey) (irow.Row, bool, error) {
	raw, ok := data.Get(k)
	if !ok {
		return nil, false, nil
	}
	row, err := codec.Decode(raw)
	if err != nil {
		return nil, false, wrapCorruption(err)
	}
	return row, true, nil
}

func wrapCorruption(err error) error {
	return ierrkit.Wrap(ierrkit.ClassCorruption, ierrkit.OriginStore, err, "failed to decode stored row")
}

func rawKeyWithinBounds(k istore.RawKey, low, high iaccess.Bound) bool {
	if !low.Unbounded {
		lk := istore.EncodeRawKey(low.Value)
		c := compareBytes(k, lk)
		if c < 0 || (c == 0 && !low.Inclusive) {
			return false
		}
	}
	if !high.Unbounded {
		hk := istore.EncodeRawKey(high.Value)
		c := compareBytes(k, hk)
		if c > 0 || (c == 0 && !high.Inclusive) {
			return false
		}
	}
	return true
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func withinBound(v ivalue.Value, low, high iaccess.Bound) bool {
	if !low.Unbounded {
		c := ivalue.CompareCanonical(v, low.Value)
		if c < 0 || (c == 0 && !low.Inclusive) {
			return false
		}
	}
	if !high.Unbounded {
		c := ivalue.CompareCanonical(v, high.Value)
		if c > 0 || (c == 0 && !high.Inclusive) {
			return false
		}
	}
	return true
}

func sortCandidates(cs []candidate, schema *ischema.SchemaInfo, order []ilogical.OrderField) error {
	if len(order) == 0 {
		return nil
	}
	var sortErr error
	sort.SliceStable(cs, func(i, j int) bool {
		c, err := compareByOrder(cs[i].row, cs[j].row, schema, order)
		if err != nil {
			sortErr = err
		}
		return c < 0
	})
	return sortErr
}

func compareByOrder(a, b irow.Row, schema *ischema.SchemaInfo, order []ilogical.OrderField) (int, error) {
	for _, of := range order {
		ca, cb := a.Get(of.Field), b.Get(of.Field)
		c := compareCells(ca, cb)
		if of.Direction == ilogical.Desc {
			c = -c
		}
		if c != 0 {
			return c, nil
		}
	}
	return 0, nil
}

func compareCells(a, b irow.Cell) int {
	if a.State != irow.FieldPresent && b.State != irow.FieldPresent {
		return 0
	}
	if a.State != irow.FieldPresent {
		return -1
	}
	if b.State != irow.FieldPresent {
		return 1
	}
	return ivalue.CompareCanonical(a.Value, b.Value)
}

func distinctRows(cs []candidate) []candidate {
	seen := map[string]bool{}
	out := make([]candidate, 0, len(cs))
	for _, c := range cs {
		key := rowFingerprint(c.row)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

func rowFingerprint(row irow.Row) string {
	fields := make([]string, 0, len(row))
	for f := range row {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	buf := make([]byte, 0, 64)
	for _, f := range fields {
		c := row[f]
		buf = append(buf, f...)
		buf = append(buf, 0, byte(c.State))
		if c.State == irow.FieldPresent {
			buf = append(buf, ivalue.EncodeCanonical(c.Value)...)
		}
	}
	return string(buf)
}

func boundaryFor(c candidate, schema *ischema.SchemaInfo, order []ilogical.OrderField) (icursor.CursorBoundary, error) {
	slots := make([]icursor.Slot, len(order))
	for i, of := range order {
		cell := c.row.Get(of.Field)
		if cell.State != irow.FieldPresent {
			slots[i] = icursor.MissingSlot()
			continue
		}
		slots[i] = icursor.PresentSlot(cell.Value)
	}
	return icursor.CursorBoundary{Slots: slots}, nil
}

// advancePastBoundary returns the index of the first candidate strictly
// past the token's boundary tuple, honoring direction.
func advancePastBoundary(cs []candidate, schema *ischema.SchemaInfo, order []ilogical.OrderField, token icursor.ContinuationToken) (int, error) {
	for i, c := range cs {
		cmp := 0
		for s, of := range order {
			if s >= len(token.Boundary.Slots) {
				break
			}
			slot := token.Boundary.Slots[s]
			cell := c.row.Get(of.Field)
			var sc int
			switch {
			case !slot.Present && cell.State != irow.FieldPresent:
				sc = 0
			case !slot.Present:
				sc = 1
			case cell.State != irow.FieldPresent:
				sc = -1
			default:
				sc = ivalue.CompareCanonical(cell.Value, slot.Value)
			}
			if of.Direction == ilogical.Desc {
				sc = -sc
			}
			if sc != 0 {
				cmp = sc
				break
			}
		}
		if cmp > 0 {
			return i, nil
		}
	}
	return len(cs), nil
}

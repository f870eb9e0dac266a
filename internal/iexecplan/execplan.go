// Package iexecplan freezes a validated LogicalPlan + AccessPlan into
// an immutable ExecutablePlan: direction derivation, fingerprint,
// continuation signature, and cursor planning/revalidation (spec.md
// section 4.6).
package iexecplan

import (
	"hash/fnv"

	"github.com/dragginzgame/icydb-sub000/internal/iaccess"
	"github.com/dragginzgame/icydb-sub000/internal/icursor"
	"github.com/dragginzgame/icydb-sub000/internal/ierrkit"
	"github.com/dragginzgame/icydb-sub000/internal/ilogical"
	"github.com/dragginzgame/icydb-sub000/internal/ipredicate"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/istore"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
)

// ExecutablePlan is an immutable, entity-bound freezing of a scalar
// logical plan (spec.md section 4.6). Grouped plans never carry
// cursors, so only ScalarPlan is frozen here; internal/igroup consumes
// the logical GroupPlan directly.
type ExecutablePlan struct {
	EntityPath  string
	Access      iaccess.Plan
	Mode        ilogical.Mode
	Order       []ilogical.OrderField
	Distinct    bool
	Consistency ilogical.Consistency
	Predicate   ipredicate.Node

	Direction              icursor.Direction
	Fingerprint            uint64
	ContinuationSignature  uint64
}

// Freeze builds an ExecutablePlan from a validated ScalarPlan and its
// planned AccessPlan.
func Freeze(entityPath string, sp ilogical.ScalarPlan, access iaccess.Plan) *ExecutablePlan {
	direction := icursor.Asc
	if len(sp.Order) > 0 && sp.Order[0].Direction == ilogical.Desc {
		direction = icursor.Desc
	}
	ep := &ExecutablePlan{
		EntityPath:  entityPath,
		Access:      access,
		Mode:        sp.Mode,
		Order:       sp.Order,
		Distinct:    sp.Distinct,
		Consistency: sp.Consistency,
		Predicate:   sp.Predicate,
		Direction:   direction,
	}
	ep.Fingerprint = fingerprint(ep)
	ep.ContinuationSignature = continuationSignature(ep)
	return ep
}

func fingerprint(ep *ExecutablePlan) uint64 {
	h := fnv.New64a()
	writeModeKey(h, ep.Mode)
	writePredicateKey(h, ep.Predicate)
	writeOrderKey(h, ep.Order)
	writeBool(h, ep.Distinct)
	writeByte(h, byte(ep.Consistency))
	writeAccessKey(h, ep.Access)
	return h.Sum64()
}

// continuationSignature hashes entity path, access shape structure,
// order spec, distinct, consistency, and normalized predicate
// structure — but explicitly never limit/offset (spec.md section 4.6).
func continuationSignature(ep *ExecutablePlan) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(ep.EntityPath))
	writeAccessKey(h, ep.Access)
	writeOrderKey(h, ep.Order)
	writeBool(h, ep.Distinct)
	writeByte(h, byte(ep.Consistency))
	writePredicateKey(h, ipredicate.Normalize(orEmpty(ep.Predicate)))
	return h.Sum64()
}

func orEmpty(n ipredicate.Node) ipredicate.Node {
	if n == nil {
		return ipredicate.True{}
	}
	return n
}

type byteWriter interface {
	Write(p []byte) (int, error)
}

func writeByte(h byteWriter, b byte) { _, _ = h.Write([]byte{b}) }

func writeBool(h byteWriter, b bool) {
	if b {
		writeByte(h, 1)
	} else {
		writeByte(h, 0)
	}
}

func writeModeKey(h byteWriter, m ilogical.Mode) {
	writeU64 := func(v uint64) {
		for i := 7; i >= 0; i-- {
			writeByte(h, byte(v>>(8*uint(i))))
		}
	}
	writeByte(h, byte(m.Kind))
	if m.Limit != nil {
		writeByte(h, 1)
		writeU64(*m.Limit)
	} else {
		writeByte(h, 0)
	}
	writeU64(m.Offset)
}

func writeOrderKey(h byteWriter, order []ilogical.OrderField) {
	for _, of := range order {
		_, _ = h.Write([]byte(of.Field))
		writeByte(h, byte(of.Direction))
	}
}

func writeAccessKey(h byteWriter, p iaccess.Plan) {
	writeByte(h, byte(p.Kind))
	switch p.Kind {
	case iaccess.PlanPath:
		writePathKey(h, p.Leaf)
	default:
		for _, c := range p.Children {
			writeAccessKey(h, c)
		}
	}
}

func writePathKey(h byteWriter, p iaccess.Path) {
	writeByte(h, byte(p.Kind))
	_, _ = h.Write([]byte(p.IndexName))
	for _, v := range p.Values {
		_, _ = h.Write(ivalue.EncodeCanonical(v))
	}
	writeBoundKey(h, p.KeyLow)
	writeBoundKey(h, p.KeyHigh)
	writeBoundKey(h, p.RangeLow)
	writeBoundKey(h, p.RangeHigh)
	if p.Kind == iaccess.PathByKey {
		_, _ = h.Write(ivalue.EncodeCanonical(p.Key))
	}
	for _, k := range p.Keys {
		_, _ = h.Write(ivalue.EncodeCanonical(k))
	}
}

func writeBoundKey(h byteWriter, b iaccess.Bound) {
	if b.Unbounded {
		writeByte(h, 0)
		return
	}
	writeByte(h, 1)
	writeBool(h, b.Inclusive)
	_, _ = h.Write(ivalue.EncodeCanonical(b.Value))
}

func writePredicateKey(h byteWriter, n ipredicate.Node) {
	if n == nil {
		writeByte(h, 255)
		return
	}
	writeByte(h, byte(n.Kind()))
	switch t := n.(type) {
	case ipredicate.And:
		for _, c := range t.Children {
			writePredicateKey(h, c)
		}
	case ipredicate.Or:
		for _, c := range t.Children {
			writePredicateKey(h, c)
		}
	case ipredicate.Not:
		writePredicateKey(h, t.Child)
	case ipredicate.Compare:
		_, _ = h.Write([]byte(t.Field))
		writeByte(h, byte(t.Op))
		writeByte(h, byte(t.Coercion.ID))
		_, _ = h.Write(ivalue.EncodeCanonical(t.Value))
	case ipredicate.IsNull:
		_, _ = h.Write([]byte(t.Field))
	case ipredicate.IsMissing:
		_, _ = h.Write([]byte(t.Field))
	case ipredicate.IsEmpty:
		_, _ = h.Write([]byte(t.Field))
	case ipredicate.IsNotEmpty:
		_, _ = h.Write([]byte(t.Field))
	case ipredicate.TextContains:
		_, _ = h.Write([]byte(t.Field + "\x00" + t.Value))
	case ipredicate.TextContainsCi:
		_, _ = h.Write([]byte(t.Field + "\x00" + t.Value))
	case ipredicate.MapContainsKey:
		_, _ = h.Write([]byte(t.Field))
		_, _ = h.Write(ivalue.EncodeCanonical(t.Key))
	case ipredicate.MapContainsValue:
		_, _ = h.Write([]byte(t.Field))
		_, _ = h.Write(ivalue.EncodeCanonical(t.Value))
	case ipredicate.MapContainsEntry:
		_, _ = h.Write([]byte(t.Field))
		_, _ = h.Write(ivalue.EncodeCanonical(t.Key))
		_, _ = h.Write(ivalue.EncodeCanonical(t.Value))
	}
}

// PlanCursor decodes a continuation token and validates it against ep
// (spec.md section 4.6's cursor-planning steps 1-5).
func PlanCursor(ep *ExecutablePlan, schema *ischema.SchemaInfo, tokenBytes []byte) (icursor.ContinuationToken, error) {
	token, err := icursor.Decode(tokenBytes)
	if err != nil {
		return icursor.ContinuationToken{}, ierrkit.Wrap(ierrkit.ClassInvariantViolation, ierrkit.OriginQuery, err, "invalid continuation cursor payload")
	}
	if err := Revalidate(ep, schema, token); err != nil {
		return icursor.ContinuationToken{}, err
	}
	return token, nil
}

// Revalidate runs every cursor-planning check after decoding (signature,
// direction, boundary arity/type, index-range anchor) as invariant
// checks against an already-decoded token (used both by PlanCursor and
// by the executor when it is handed a PlannedCursor directly).
func Revalidate(ep *ExecutablePlan, schema *ischema.SchemaInfo, token icursor.ContinuationToken) error {
	if token.Signature != ep.ContinuationSignature {
		return ierrkit.InvariantViolation(ierrkit.OriginQuery, "continuation cursor signature mismatch")
	}
	if token.Direction != ep.Direction {
		return ierrkit.InvariantViolation(ierrkit.OriginQuery, "continuation cursor direction mismatch")
	}
	if len(token.Boundary.Slots) != len(ep.Order) {
		return ierrkit.InvariantViolation(ierrkit.OriginQuery, "continuation cursor boundary arity mismatch")
	}
	for i, of := range ep.Order {
		slot := token.Boundary.Slots[i]
		if !slot.Present {
			continue // nullable-missing semantics
		}
		ft, ok := schema.Field(of.Field)
		if !ok || ft.Kind != ischema.FieldTypeScalar || !ft.Scalar.MatchesValue(slot.Value) {
			return ierrkit.InvariantViolation(ierrkit.OriginQuery, "continuation cursor slot type mismatch")
		}
	}
	if len(ep.Order) == 1 && ep.Order[0].Field == schema.PrimaryKey() {
		if len(token.Boundary.Slots) != 1 || !token.Boundary.Slots[0].Present {
			return ierrkit.InvariantViolation(ierrkit.OriginQuery, "pk cursor slot must be present")
		}
	}

	rangePath, isRange := ep.Access.SingleIndexRange()
	if !isRange {
		return nil
	}
	if token.Anchor == nil {
		return ierrkit.InvariantViolation(ierrkit.OriginQuery, "index-range cursor requires an anchor")
	}
	indexID, components, pk, err := istore.DecodeRawIndexKey(istore.RawIndexKey(*token.Anchor))
	if err != nil {
		return ierrkit.Wrap(ierrkit.ClassInvariantViolation, ierrkit.OriginQuery, err, "malformed index-range cursor anchor")
	}
	expectedID := istore.ComputeIndexID(ep.EntityPath, rangePath.IndexName)
	if indexID != expectedID {
		return ierrkit.InvariantViolation(ierrkit.OriginQuery, "anchor index id does not match the planned index")
	}
	if len(components) != len(rangePath.Values)+1 {
		return ierrkit.InvariantViolation(ierrkit.OriginQuery, "anchor component count does not match the planned index prefix")
	}
	rangeComponent := components[len(components)-1]
	if !withinEnvelope(rangeComponent, rangePath.RangeLow, rangePath.RangeHigh) {
		return ierrkit.InvariantViolation(ierrkit.OriginQuery, "anchor range component lies outside the original range envelope")
	}
	pkSlot := token.Boundary.Slots[len(token.Boundary.Slots)-1]
	if !pkSlot.Present || !bytesEqual(istore.EncodeRawKey(pkSlot.Value), pk) {
		return ierrkit.InvariantViolation(ierrkit.OriginQuery, "anchor primary key does not match the boundary pk slot")
	}
	return nil
}

func withinEnvelope(v ivalue.Value, low, high iaccess.Bound) bool {
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

func bytesEqual(a, b istore.RawKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

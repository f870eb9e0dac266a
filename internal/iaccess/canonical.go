package iaccess

import (
	"bytes"
	"sort"

	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
)

// Canonicalize applies spec.md section 4.3's post-planning rules:
// sort+dedup ByKeys, flatten nested unions/intersections, drop
// FullScan children from intersections, collapse a union containing
// FullScan to FullScan, sort+dedup union/intersection children and
// collapse one-child nodes.
func Canonicalize(p Plan) Plan {
	switch p.Kind {
	case PlanPath:
		if p.Leaf.Kind == PathByKeys {
			p.Leaf.Keys = sortDedupValues(p.Leaf.Keys)
		}
		return p
	case PlanUnion:
		return canonicalizeUnion(p)
	case PlanIntersection:
		return canonicalizeIntersection(p)
	default:
		return p
	}
}

func canonicalizeUnion(p Plan) Plan {
	var flat []Plan
	for _, c := range p.Children {
		c = Canonicalize(c)
		if c.Kind == PlanUnion {
			flat = append(flat, c.Children...)
		} else {
			flat = append(flat, c)
		}
	}
	for _, c := range flat {
		if c.IsFullScan() {
			return PathPlan(FullScan())
		}
	}
	flat = sortDedupPlans(flat)
	if len(flat) == 1 {
		return flat[0]
	}
	return Plan{Kind: PlanUnion, Children: flat}
}

func canonicalizeIntersection(p Plan) Plan {
	var flat []Plan
	for _, c := range p.Children {
		c = Canonicalize(c)
		if c.Kind == PlanIntersection {
			flat = append(flat, c.Children...)
		} else {
			flat = append(flat, c)
		}
	}
	var kept []Plan
	for _, c := range flat {
		if !c.IsFullScan() {
			kept = append(kept, c)
		}
	}
	kept = sortDedupPlans(kept)
	if len(kept) == 0 {
		return PathPlan(FullScan())
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return Plan{Kind: PlanIntersection, Children: kept}
}

func sortDedupValues(vs []ivalue.Value) []ivalue.Value {
	out := append([]ivalue.Value{}, vs...)
	sort.Slice(out, func(i, j int) bool { return ivalue.CompareCanonical(out[i], out[j]) < 0 })
	deduped := out[:0]
	for i, v := range out {
		if i == 0 || ivalue.CompareCanonical(deduped[len(deduped)-1], v) != 0 {
			deduped = append(deduped, v)
		}
	}
	return deduped
}

// canonicalKey returns a byte key used to sort and dedupe Plan/Path
// nodes: variant tag, then concrete payload (spec.md section 4.3).
func canonicalKey(p Plan) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(p.Kind))
	switch p.Kind {
	case PlanPath:
		writePathKey(buf, p.Leaf)
	case PlanUnion, PlanIntersection:
		for _, c := range p.Children {
			ck := canonicalKey(c)
			buf.Write(ck)
		}
	}
	return buf.Bytes()
}

func writePathKey(buf *bytes.Buffer, p Path) {
	buf.WriteByte(byte(p.Kind))
	switch p.Kind {
	case PathByKey:
		buf.Write(ivalue.EncodeCanonical(p.Key))
	case PathByKeys:
		for _, k := range p.Keys {
			buf.Write(ivalue.EncodeCanonical(k))
		}
	case PathKeyRange:
		writeBoundKey(buf, p.KeyLow)
		writeBoundKey(buf, p.KeyHigh)
	case PathIndexPrefix:
		buf.WriteString(p.IndexName)
		for _, v := range p.Values {
			buf.Write(ivalue.EncodeCanonical(v))
		}
	case PathIndexRange:
		buf.WriteString(p.IndexName)
		for _, v := range p.Values {
			buf.Write(ivalue.EncodeCanonical(v))
		}
		writeBoundKey(buf, p.RangeLow)
		writeBoundKey(buf, p.RangeHigh)
	case PathFullScan:
	}
}

func writeBoundKey(buf *bytes.Buffer, b Bound) {
	if b.Unbounded {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	if b.Inclusive {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	buf.Write(ivalue.EncodeCanonical(b.Value))
}

func sortDedupPlans(plans []Plan) []Plan {
	type keyed struct {
		plan Plan
		key  []byte
	}
	ks := make([]keyed, len(plans))
	for i, p := range plans {
		ks[i] = keyed{plan: p, key: canonicalKey(p)}
	}
	sort.Slice(ks, func(i, j int) bool { return bytes.Compare(ks[i].key, ks[j].key) < 0 })
	var out []Plan
	for i, k := range ks {
		if i == 0 || !bytes.Equal(ks[i-1].key, k.key) {
			out = append(out, k.plan)
		}
	}
	return out
}

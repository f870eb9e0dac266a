package ipredicate

import (
	"bytes"
	"sort"

	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
)

// Normalize is the total, deterministic function spec.md section 4.1
// describes: flatten nested And/Or, canonically sort siblings, drop
// double negation, and collapse singleton/empty boolean nodes.
func Normalize(n Node) Node {
	switch t := n.(type) {
	case And:
		return normalizeAnd(t)
	case Or:
		return normalizeOr(t)
	case Not:
		child := Normalize(t.Child)
		if inner, ok := child.(Not); ok {
			return inner.Child
		}
		return Not{Child: child}
	default:
		return n
	}
}

func normalizeAnd(t And) Node {
	var flat []Node
	for _, c := range t.Children {
		c = Normalize(c)
		if ca, ok := c.(And); ok {
			flat = append(flat, ca.Children...)
		} else {
			flat = append(flat, c)
		}
	}
	flat = sortSiblings(flat)
	switch len(flat) {
	case 0:
		return True{}
	case 1:
		return flat[0]
	default:
		return And{Children: flat}
	}
}

func normalizeOr(t Or) Node {
	var flat []Node
	for _, c := range t.Children {
		c = Normalize(c)
		if co, ok := c.(Or); ok {
			flat = append(flat, co.Children...)
		} else {
			flat = append(flat, c)
		}
	}
	flat = sortSiblings(flat)
	switch len(flat) {
	case 0:
		return False{}
	case 1:
		return flat[0]
	default:
		return Or{Children: flat}
	}
}

// sortSiblings orders nodes by the canonical tuple spec.md section 4.1
// names: (field, op, coercion-id, canonical-value-bytes). Non-Compare
// nodes sort by NodeKind first so the order stays total regardless of
// node shape.
func sortSiblings(nodes []Node) []Node {
	out := append([]Node{}, nodes...)
	sort.SliceStable(out, func(i, j int) bool {
		return compareNodes(out[i], out[j]) < 0
	})
	return out
}

func compareNodes(a, b Node) int {
	if a.Kind() != b.Kind() {
		return int(a.Kind()) - int(b.Kind())
	}
	switch ta := a.(type) {
	case Compare:
		tb := b.(Compare)
		if c := cmpStr(ta.Field, tb.Field); c != 0 {
			return c
		}
		if c := int(ta.Op) - int(tb.Op); c != 0 {
			return c
		}
		if c := int(ta.Coercion.ID) - int(tb.Coercion.ID); c != 0 {
			return c
		}
		return bytes.Compare(ivalue.EncodeCanonical(ta.Value), ivalue.EncodeCanonical(tb.Value))
	case IsNull:
		return cmpStr(ta.Field, b.(IsNull).Field)
	case IsMissing:
		return cmpStr(ta.Field, b.(IsMissing).Field)
	case IsEmpty:
		return cmpStr(ta.Field, b.(IsEmpty).Field)
	case IsNotEmpty:
		return cmpStr(ta.Field, b.(IsNotEmpty).Field)
	case TextContains:
		tb := b.(TextContains)
		if c := cmpStr(ta.Field, tb.Field); c != 0 {
			return c
		}
		return cmpStr(ta.Value, tb.Value)
	case TextContainsCi:
		tb := b.(TextContainsCi)
		if c := cmpStr(ta.Field, tb.Field); c != 0 {
			return c
		}
		return cmpStr(ta.Value, tb.Value)
	case And:
		return cmpNodeSlice(ta.Children, b.(And).Children)
	case Or:
		return cmpNodeSlice(ta.Children, b.(Or).Children)
	case Not:
		return compareNodes(ta.Child, b.(Not).Child)
	case MapContainsKey:
		tb := b.(MapContainsKey)
		if c := cmpStr(ta.Field, tb.Field); c != 0 {
			return c
		}
		return bytes.Compare(ivalue.EncodeCanonical(ta.Key), ivalue.EncodeCanonical(tb.Key))
	case MapContainsValue:
		tb := b.(MapContainsValue)
		if c := cmpStr(ta.Field, tb.Field); c != 0 {
			return c
		}
		return bytes.Compare(ivalue.EncodeCanonical(ta.Value), ivalue.EncodeCanonical(tb.Value))
	case MapContainsEntry:
		tb := b.(MapContainsEntry)
		if c := cmpStr(ta.Field, tb.Field); c != 0 {
			return c
		}
		if c := bytes.Compare(ivalue.EncodeCanonical(ta.Key), ivalue.EncodeCanonical(tb.Key)); c != 0 {
			return c
		}
		return bytes.Compare(ivalue.EncodeCanonical(ta.Value), ivalue.EncodeCanonical(tb.Value))
	default:
		return 0
	}
}

func cmpNodeSlice(a, b []Node) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareNodes(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func cmpStr(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

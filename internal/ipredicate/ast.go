// Package ipredicate implements the predicate AST, its deterministic
// normalization and its schema validation (spec.md section 4.1, 4.2).
// The node shapes are grounded on sqldef/schema/ast.go's small
// statement-node pattern (one struct per DDL kind behind a shared
// interface), generalized from "one SQL statement kind" to "one
// boolean predicate kind".
package ipredicate

import "github.com/dragginzgame/icydb-sub000/internal/ivalue"

// CompareOp enumerates the comparison operators a Compare node may
// carry (spec.md section 4.1).
type CompareOp uint8

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	OpNotIn
	OpContains
	OpStartsWith
	OpEndsWith
)

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "Eq"
	case OpNe:
		return "Ne"
	case OpLt:
		return "Lt"
	case OpLte:
		return "Lte"
	case OpGt:
		return "Gt"
	case OpGte:
		return "Gte"
	case OpIn:
		return "In"
	case OpNotIn:
		return "NotIn"
	case OpContains:
		return "Contains"
	case OpStartsWith:
		return "StartsWith"
	case OpEndsWith:
		return "EndsWith"
	default:
		return "Unknown"
	}
}

// IsRangeOp reports whether op is one of the ordering comparisons the
// planner can turn into an index range (spec.md section 4.3).
func (op CompareOp) IsRangeOp() bool {
	switch op {
	case OpLt, OpLte, OpGt, OpGte:
		return true
	default:
		return false
	}
}

// NodeKind tags the concrete predicate node (a closed sum, modeled the
// way Go expresses closed sums: an interface with an unexported marker
// method implemented by each concrete node type).
type NodeKind uint8

const (
	NodeTrue NodeKind = iota
	NodeFalse
	NodeAnd
	NodeOr
	NodeNot
	NodeCompare
	NodeIsNull
	NodeIsMissing
	NodeIsEmpty
	NodeIsNotEmpty
	NodeTextContains
	NodeTextContainsCi
	NodeMapContainsKey
	NodeMapContainsValue
	NodeMapContainsEntry
)

// Node is the predicate AST's closed interface.
type Node interface {
	Kind() NodeKind
	isNode()
}

type True struct{}

func (True) Kind() NodeKind { return NodeTrue }
func (True) isNode()        {}

type False struct{}

func (False) Kind() NodeKind { return NodeFalse }
func (False) isNode()        {}

type And struct{ Children []Node }

func (And) Kind() NodeKind { return NodeAnd }
func (And) isNode()        {}

type Or struct{ Children []Node }

func (Or) Kind() NodeKind { return NodeOr }
func (Or) isNode()        {}

type Not struct{ Child Node }

func (Not) Kind() NodeKind { return NodeNot }
func (Not) isNode()        {}

// Compare is `field op value` with an explicit coercion id. Normalization
// never rewrites Coercion (spec.md section 4.1).
type Compare struct {
	Field    string
	Op       CompareOp
	Value    ivalue.Value
	Coercion ivalue.CoercionSpec
}

func (Compare) Kind() NodeKind { return NodeCompare }
func (Compare) isNode()        {}

type IsNull struct{ Field string }

func (IsNull) Kind() NodeKind { return NodeIsNull }
func (IsNull) isNode()        {}

type IsMissing struct{ Field string }

func (IsMissing) Kind() NodeKind { return NodeIsMissing }
func (IsMissing) isNode()        {}

type IsEmpty struct{ Field string }

func (IsEmpty) Kind() NodeKind { return NodeIsEmpty }
func (IsEmpty) isNode()        {}

type IsNotEmpty struct{ Field string }

func (IsNotEmpty) Kind() NodeKind { return NodeIsNotEmpty }
func (IsNotEmpty) isNode()        {}

type TextContains struct {
	Field string
	Value string
}

func (TextContains) Kind() NodeKind { return NodeTextContains }
func (TextContains) isNode()        {}

type TextContainsCi struct {
	Field string
	Value string
}

func (TextContainsCi) Kind() NodeKind { return NodeTextContainsCi }
func (TextContainsCi) isNode()        {}

type MapContainsKey struct {
	Field string
	Key   ivalue.Value
}

func (MapContainsKey) Kind() NodeKind { return NodeMapContainsKey }
func (MapContainsKey) isNode()        {}

type MapContainsValue struct {
	Field string
	Value ivalue.Value
}

func (MapContainsValue) Kind() NodeKind { return NodeMapContainsValue }
func (MapContainsValue) isNode()        {}

type MapContainsEntry struct {
	Field string
	Key   ivalue.Value
	Value ivalue.Value
}

func (MapContainsEntry) Kind() NodeKind { return NodeMapContainsEntry }
func (MapContainsEntry) isNode()        {}

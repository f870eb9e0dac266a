package ivalue

import (
	"fmt"
	"math"
	"math/big"
	"sort"

	"lukechampine.com/uint128"
)

// Ulid is a 16-byte lexicographically sortable identifier.
type Ulid [16]byte

// Subaccount is a 32-byte account discriminator.
type Subaccount [32]byte

// Principal is a variable-length (<=29 byte) canonical identity.
type Principal []byte

// Account pairs an owning Principal with an optional Subaccount.
type Account struct {
	Owner      Principal
	Subaccount *Subaccount
}

// MapEntry is one canonical (key, value) pair of a Map value.
type MapEntry struct {
	Key   Value
	Value Value
}

// Value is the closed tagged sum described in spec.md section 3. Only
// one of the payload fields is meaningful, selected by Kind.
type Value struct {
	kind Kind

	b    bool
	u64  uint64
	i64  int64
	u128 uint128.Uint128
	i128 Int128
	big  *big.Int
	f32  float32
	f64  float64
	dec  Decimal

	text string
	blob []byte

	ulid       Ulid
	principal  Principal
	account    Account
	subaccount Subaccount

	list []Value
	set  []Value
	m    []MapEntry
}

func (v Value) Kind() Kind { return v.kind }

func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func Unit() Value           { return Value{kind: KindUnit} }
func Uint(u uint64) Value   { return Value{kind: KindUint, u64: u} }
func Int(i int64) Value     { return Value{kind: KindInt, i64: i} }
func Uint128V(u uint128.Uint128) Value { return Value{kind: KindUint128, u128: u} }
func Int128V(i Int128) Value           { return Value{kind: KindInt128, i128: i} }

func UintBig(v *big.Int) Value { return Value{kind: KindUintBig, big: new(big.Int).Set(v)} }
func IntBig(v *big.Int) Value  { return Value{kind: KindIntBig, big: new(big.Int).Set(v)} }

// Float32V builds a Float32 value, rejecting NaN/Inf (spec.md invariant).
func Float32V(f float32) (Value, error) {
	if isNonFiniteF32(f) {
		return Value{}, fmt.Errorf("float32 value must be finite")
	}
	return Value{kind: KindFloat32, f32: f}, nil
}

func Float64V(f float64) (Value, error) {
	if isNonFiniteF64(f) {
		return Value{}, fmt.Errorf("float64 value must be finite")
	}
	return Value{kind: KindFloat64, f64: f}, nil
}

func isNonFiniteF64(f float64) bool { return math.IsNaN(f) || math.IsInf(f, 0) }
func isNonFiniteF32(f float32) bool { return isNonFiniteF64(float64(f)) }

func DecimalV(d Decimal) Value { return Value{kind: KindDecimal, dec: d} }

// Date is the number of days since the Unix epoch.
func Date(days int32) Value { return Value{kind: KindDate, i64: int64(days)} }

// Duration is a signed nanosecond count.
func Duration(nanos int64) Value { return Value{kind: KindDuration, i64: nanos} }

// Timestamp is nanoseconds since the Unix epoch.
func Timestamp(nanos int64) Value { return Value{kind: KindTimestamp, i64: nanos} }

// E8s is an 8-decimal fixed-point accounting unit (e.g. ICP e8s).
func E8s(v uint64) Value { return Value{kind: KindE8s, u64: v} }

// E18s is an 18-decimal fixed-point accounting unit (e.g. wei).
func E18s(v uint64) Value { return Value{kind: KindE18s, u64: v} }

func UlidV(u Ulid) Value            { return Value{kind: KindUlid, ulid: u} }
func PrincipalV(p Principal) Value  { return Value{kind: KindPrincipal, principal: append(Principal{}, p...)} }
func AccountV(a Account) Value      { return Value{kind: KindAccount, account: a} }
func SubaccountV(s Subaccount) Value { return Value{kind: KindSubaccount, subaccount: s} }
func Blob(b []byte) Value           { return Value{kind: KindBlob, blob: append([]byte{}, b...)} }
func Text(s string) Value           { return Value{kind: KindText, text: s} }
func Enum(variant string) Value     { return Value{kind: KindEnum, text: variant} }

func List(items []Value) Value {
	return Value{kind: KindList, list: append([]Value{}, items...)}
}

// Set canonicalizes items: strictly ordered by CompareCanonical and
// deduplicated (spec.md invariant).
func Set(items []Value) Value {
	items = append([]Value{}, items...)
	sort.Slice(items, func(i, j int) bool { return CompareCanonical(items[i], items[j]) < 0 })
	out := items[:0]
	for i, it := range items {
		if i == 0 || CompareCanonical(out[len(out)-1], it) != 0 {
			out = append(out, it)
		}
	}
	return Value{kind: KindSet, set: out}
}

// Map canonicalizes entries by key order (spec.md invariant). Later
// duplicate keys overwrite earlier ones, matching ordinary map
// construction semantics.
func Map(entries []MapEntry) Value {
	dedup := map[string]int{}
	result := make([]MapEntry, 0, len(entries))
	for _, e := range entries {
		k := string(EncodeCanonical(e.Key))
		if idx, ok := dedup[k]; ok {
			result[idx] = e
			continue
		}
		dedup[k] = len(result)
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		return CompareCanonical(result[i].Key, result[j].Key) < 0
	})
	return Value{kind: KindMap, m: result}
}

// AsBool, AsUint, ... are narrow accessors used by executors/aggregates
// once the Kind has already been checked.
func (v Value) AsBool() bool              { return v.b }
func (v Value) AsUint() uint64            { return v.u64 }
func (v Value) AsInt() int64              { return v.i64 }
func (v Value) AsUint128() uint128.Uint128 { return v.u128 }
func (v Value) AsInt128() Int128           { return v.i128 }
func (v Value) AsBig() *big.Int           { return v.big }
func (v Value) AsFloat32() float32        { return v.f32 }
func (v Value) AsFloat64() float64        { return v.f64 }
func (v Value) AsDecimal() Decimal        { return v.dec }
func (v Value) AsText() string            { return v.text }
func (v Value) AsBlob() []byte            { return v.blob }
func (v Value) AsUlid() Ulid              { return v.ulid }
func (v Value) AsPrincipal() Principal    { return v.principal }
func (v Value) AsAccount() Account        { return v.account }
func (v Value) AsSubaccount() Subaccount  { return v.subaccount }
func (v Value) AsList() []Value           { return v.list }
func (v Value) AsSet() []Value            { return v.set }
func (v Value) AsMap() []MapEntry         { return v.m }
func (v Value) AsDays() int32             { return int32(v.i64) }
func (v Value) AsNanos() int64            { return v.i64 }

// Equal is structural equality: same Kind and CompareCanonical == 0.
func Equal(a, b Value) bool {
	return a.kind == b.kind && CompareCanonical(a, b) == 0
}

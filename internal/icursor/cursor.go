// Package icursor implements the cursor model spec.md sections 3 and 6
// describe: CursorBoundary, IndexRangeCursorAnchor, ContinuationToken,
// and their self-describing binary encoding.
package icursor

import (
	"encoding/binary"
	"fmt"

	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
)

// Direction mirrors ilogical.Direction at the cursor-token boundary; it
// is duplicated rather than imported so icursor stays a leaf package
// with no dependency on the logical-plan layer above it.
type Direction uint8

const (
	Asc Direction = iota
	Desc
)

// Slot is one CursorBoundary entry: either Missing or Present(Value),
// ordering-driven (spec.md section 3).
type Slot struct {
	Present bool
	Value   ivalue.Value
}

func MissingSlot() Slot              { return Slot{} }
func PresentSlot(v ivalue.Value) Slot { return Slot{Present: true, Value: v} }

// CursorBoundary is the ordered tuple of per-order-field resume values.
type CursorBoundary struct {
	Slots []Slot
}

// IndexRangeCursorAnchor is the canonical raw index key of the
// last-returned row, used to resume index-range scans.
type IndexRangeCursorAnchor []byte

// ContinuationToken is the self-describing resume token the executor
// emits and the planner/executor decode on resume.
type ContinuationToken struct {
	Signature uint64
	Direction Direction
	Boundary  CursorBoundary
	Anchor    *IndexRangeCursorAnchor
}

// Encode produces the binary payload spec.md section 6 describes:
// signature, direction, length-prefixed boundary slots (each tagged
// Missing/Present with typed value), optional anchor.
func Encode(t ContinuationToken) []byte {
	buf := make([]byte, 0, 64)
	buf = appendU64(buf, t.Signature)
	buf = append(buf, byte(t.Direction))
	buf = appendU16(buf, uint16(len(t.Boundary.Slots)))
	for _, s := range t.Boundary.Slots {
		if !s.Present {
			buf = append(buf, 0)
			continue
		}
		buf = append(buf, 1)
		enc := ivalue.EncodeCanonical(s.Value)
		buf = appendU32(buf, uint32(len(enc)))
		buf = append(buf, enc...)
	}
	if t.Anchor == nil {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		buf = appendU32(buf, uint32(len(*t.Anchor)))
		buf = append(buf, (*t.Anchor)...)
	}
	return buf
}

// Decode is Encode's inverse. It fails with a plain error on malformed
// bytes; callers (internal/iexecplan) classify that as
// InvalidContinuationCursorPayload.
func Decode(b []byte) (ContinuationToken, error) {
	var t ContinuationToken
	if len(b) < 8+1+2 {
		return t, fmt.Errorf("icursor: payload too short")
	}
	t.Signature = binary.BigEndian.Uint64(b[:8])
	off := 8
	t.Direction = Direction(b[off])
	off++
	slotCount := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2

	slots := make([]Slot, 0, slotCount)
	for i := 0; i < slotCount; i++ {
		if off >= len(b) {
			return ContinuationToken{}, fmt.Errorf("icursor: truncated slot tag")
		}
		tag := b[off]
		off++
		if tag == 0 {
			slots = append(slots, MissingSlot())
			continue
		}
		if off+4 > len(b) {
			return ContinuationToken{}, fmt.Errorf("icursor: truncated slot length")
		}
		l := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if off+l > len(b) {
			return ContinuationToken{}, fmt.Errorf("icursor: truncated slot value")
		}
		v, _, err := ivalue.DecodeCanonical(b[off : off+l])
		if err != nil {
			return ContinuationToken{}, fmt.Errorf("icursor: decode slot value: %w", err)
		}
		off += l
		slots = append(slots, PresentSlot(v))
	}
	t.Boundary = CursorBoundary{Slots: slots}

	if off >= len(b) {
		return ContinuationToken{}, fmt.Errorf("icursor: truncated anchor tag")
	}
	hasAnchor := b[off] != 0
	off++
	if hasAnchor {
		if off+4 > len(b) {
			return ContinuationToken{}, fmt.Errorf("icursor: truncated anchor length")
		}
		l := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if off+l > len(b) {
			return ContinuationToken{}, fmt.Errorf("icursor: truncated anchor value")
		}
		anchor := IndexRangeCursorAnchor(append([]byte{}, b[off:off+l]...))
		t.Anchor = &anchor
		off += l
	}
	return t, nil
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

// Package istore implements the storage contract spec.md section 6
// names as an external collaborator (an ordered map `RawKey -> RawRow`
// and an ordered map `RawIndexKey -> RawKey` with a generation
// counter), plus an in-memory reference implementation used by tests
// and the cmd/icydb demo CLI. Canonical key encodings are grounded
// directly on internal/ivalue's canonical byte encoding.
package istore

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
)

// RawKey is the canonical primary-key byte encoding (spec.md section
// 6): tagged prefix per scalar type followed by that type's canonical
// bytes — exactly internal/ivalue's EncodeCanonical output.
type RawKey []byte

// RawRow is the opaque, already-serialized entity byte payload. The
// entity codec itself is an external collaborator (spec.md section 1).
type RawRow []byte

// IndexKeyKind tags the RawIndexKey's leading byte; spec.md section 6
// reserves room for future kinds alongside the one this module uses.
type IndexKeyKind uint8

const IndexKeyKindUser IndexKeyKind = 1

// RawIndexKey is the canonical secondary-index key encoding (spec.md
// section 6): kind byte, 16-byte IndexId, component count, each
// length-prefixed canonical component, then the length-prefixed PK.
type RawIndexKey []byte

// EncodeRawKey encodes a primary-key Value into its RawKey form.
func EncodeRawKey(pk ivalue.Value) RawKey {
	return RawKey(ivalue.EncodeCanonical(pk))
}

// ComputeIndexID derives the 16-byte IndexId from (entity_path,
// index_name); sha256 is the only hash in the retrieved corpus that
// gives a stable, collision-resistant fixed-width id without pulling
// in a dedicated ids/uuid library.
func ComputeIndexID(entityPath, indexName string) [16]byte {
	h := sha256.Sum256([]byte(entityPath + "\x00" + indexName))
	var id [16]byte
	copy(id[:], h[:16])
	return id
}

// EncodeRawIndexKey builds a RawIndexKey from its components and the
// owning row's primary key.
func EncodeRawIndexKey(indexID [16]byte, components []ivalue.Value, pk RawKey) RawIndexKey {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(IndexKeyKindUser))
	buf.Write(indexID[:])
	buf.WriteByte(byte(len(components)))
	for _, c := range components {
		enc := ivalue.EncodeCanonical(c)
		writeLen16(buf, len(enc))
		buf.Write(enc)
	}
	writeLen16(buf, len(pk))
	buf.Write(pk)
	return RawIndexKey(buf.Bytes())
}

func writeLen16(buf *bytes.Buffer, n int) {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(n))
	buf.Write(l[:])
}

// DecodeRawIndexKey is EncodeRawIndexKey's inverse, used by
// internal/iexecplan to revalidate an index-range cursor anchor.
func DecodeRawIndexKey(raw RawIndexKey) (indexID [16]byte, components []ivalue.Value, pk RawKey, err error) {
	b := []byte(raw)
	if len(b) < 1+16+1 {
		return indexID, nil, nil, fmt.Errorf("istore: truncated index key header")
	}
	off := 1
	copy(indexID[:], b[off:off+16])
	off += 16
	count := int(b[off])
	off++
	components = make([]ivalue.Value, 0, count)
	for i := 0; i < count; i++ {
		if off+2 > len(b) {
			return indexID, nil, nil, fmt.Errorf("istore: truncated index key component length")
		}
		l := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if off+l > len(b) {
			return indexID, nil, nil, fmt.Errorf("istore: truncated index key component")
		}
		v, _, derr := ivalue.DecodeCanonical(b[off : off+l])
		if derr != nil {
			return indexID, nil, nil, derr
		}
		components = append(components, v)
		off += l
	}
	if off+2 > len(b) {
		return indexID, nil, nil, fmt.Errorf("istore: truncated index key pk length")
	}
	l := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if off+l > len(b) {
		return indexID, nil, nil, fmt.Errorf("istore: truncated index key pk")
	}
	pk = RawKey(append([]byte{}, b[off:off+l]...))
	return indexID, components, pk, nil
}

// DataStore is the contract spec.md section 6 names for the data
// store: ordered map RawKey -> RawRow.
type DataStore interface {
	Get(k RawKey) (RawRow, bool)
	Put(k RawKey, v RawRow)
	Remove(k RawKey) bool
	// Iter yields entries in canonical ascending key order. Descending
	// traversal is the executor's responsibility, not the store's.
	Iter() []DataEntry
	Clear()
}

// DataEntry is one Iter result.
type DataEntry struct {
	Key RawKey
	Row RawRow
}

// IndexStore is the contract for the secondary-index store: ordered
// map RawIndexKey -> RawKey with a monotonic generation counter that
// detects interleaved mutation between preflight and apply.
type IndexStore interface {
	Get(k RawIndexKey) (RawKey, bool)
	Insert(k RawIndexKey, v RawKey)
	Remove(k RawIndexKey) bool
	Iter() []IndexEntry
	Clear()
	Generation() uint64
}

// IndexEntry is one IndexStore.Iter result.
type IndexEntry struct {
	Key   RawIndexKey
	Value RawKey
}

// MemDataStore is the in-memory reference DataStore: a key-sorted
// slice, binary-searched on every operation. Adequate for tests and
// the demo CLI; a production deployment supplies its own DataStore
// backed by the real byte-level storage engine (out of scope, spec.md
// section 1).
type MemDataStore struct {
	entries []DataEntry
}

func NewMemDataStore() *MemDataStore { return &MemDataStore{} }

func (s *MemDataStore) search(k RawKey) (int, bool) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return bytes.Compare(s.entries[i].Key, k) >= 0
	})
	if i < len(s.entries) && bytes.Equal(s.entries[i].Key, k) {
		return i, true
	}
	return i, false
}

func (s *MemDataStore) Get(k RawKey) (RawRow, bool) {
	i, ok := s.search(k)
	if !ok {
		return nil, false
	}
	return s.entries[i].Row, true
}

func (s *MemDataStore) Put(k RawKey, v RawRow) {
	i, ok := s.search(k)
	if ok {
		s.entries[i].Row = v
		return
	}
	s.entries = append(s.entries, DataEntry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = DataEntry{Key: k, Row: v}
}

func (s *MemDataStore) Remove(k RawKey) bool {
	i, ok := s.search(k)
	if !ok {
		return false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return true
}

func (s *MemDataStore) Iter() []DataEntry {
	out := make([]DataEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *MemDataStore) Clear() { s.entries = nil }

// MemIndexStore is the in-memory reference IndexStore.
type MemIndexStore struct {
	entries    []IndexEntry
	generation uint64
}

func NewMemIndexStore() *MemIndexStore { return &MemIndexStore{} }

func (s *MemIndexStore) search(k RawIndexKey) (int, bool) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return bytes.Compare(s.entries[i].Key, k) >= 0
	})
	if i < len(s.entries) && bytes.Equal(s.entries[i].Key, k) {
		return i, true
	}
	return i, false
}

func (s *MemIndexStore) Get(k RawIndexKey) (RawKey, bool) {
	i, ok := s.search(k)
	if !ok {
		return nil, false
	}
	return s.entries[i].Value, true
}

func (s *MemIndexStore) Insert(k RawIndexKey, v RawKey) {
	i, ok := s.search(k)
	s.generation++
	if ok {
		s.entries[i].Value = v
		return
	}
	s.entries = append(s.entries, IndexEntry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = IndexEntry{Key: k, Value: v}
}

func (s *MemIndexStore) Remove(k RawIndexKey) bool {
	i, ok := s.search(k)
	if !ok {
		return false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	s.generation++
	return true
}

func (s *MemIndexStore) Iter() []IndexEntry {
	out := make([]IndexEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *MemIndexStore) Clear() {
	s.entries = nil
	s.generation++
}

func (s *MemIndexStore) Generation() uint64 { return s.generation }

// Registry resolves entity paths to their data/index stores, and
// serializes access through with_data/with_data_mut/with_index/
// with_index_mut-style closures (spec.md section 5). The core is
// single-threaded cooperative and presumes a single-writer discipline
// supplied by the host, so these closures do not themselves lock;
// the mutex only guards the registry's own path->store maps against
// concurrent registration.
type Registry struct {
	mu     sync.Mutex
	data   map[string]DataStore
	index  map[string]IndexStore
}

func NewRegistry() *Registry {
	return &Registry{data: map[string]DataStore{}, index: map[string]IndexStore{}}
}

func (r *Registry) RegisterData(path string, s DataStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[path] = s
}

func (r *Registry) RegisterIndex(path string, s IndexStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index[path] = s
}

func (r *Registry) WithData(path string, fn func(DataStore)) bool {
	r.mu.Lock()
	s, ok := r.data[path]
	r.mu.Unlock()
	if !ok {
		return false
	}
	fn(s)
	return true
}

func (r *Registry) WithDataMut(path string, fn func(DataStore)) bool {
	return r.WithData(path, fn)
}

func (r *Registry) WithIndex(path string, fn func(IndexStore)) bool {
	r.mu.Lock()
	s, ok := r.index[path]
	r.mu.Unlock()
	if !ok {
		return false
	}
	fn(s)
	return true
}

func (r *Registry) WithIndexMut(path string, fn func(IndexStore)) bool {
	return r.WithIndex(path, fn)
}

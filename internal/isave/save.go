// Package isave implements the write-side two-phase commit window
// (spec.md section 4.10): preflight validation (canonical encoding,
// identity check, strong-relation existence, unique-index candidate
// tuples), a generation-guarded apply phase, and atomic/non-atomic
// batch rollback semantics.
package isave

import (
	"github.com/dragginzgame/icydb-sub000/internal/ierrkit"
	"github.com/dragginzgame/icydb-sub000/internal/imetrics"
	"github.com/dragginzgame/icydb-sub000/internal/irow"
	"github.com/dragginzgame/icydb-sub000/internal/ischema"
	"github.com/dragginzgame/icydb-sub000/internal/istore"
	"github.com/dragginzgame/icydb-sub000/internal/ivalue"
)

// OpKind labels a row write as an insert, update or replace. Preflight
// and Apply do not read it: every kind is written as a put keyed by the
// row's primary key, so an insert over an existing key overwrites that
// row and an update of a missing key creates it.
type OpKind uint8

const (
	OpInsert OpKind = iota
	OpUpdate
	OpReplace
)

// RowOp is one row-level write in a batch.
type RowOp struct {
	Kind OpKind
	Key  ivalue.Value
	Row  irow.Row
}

// Atomicity selects whether a batch rolls back wholly on first failure
// or commits the successful prefix.
type Atomicity uint8

const (
	Atomic Atomicity = iota
	NonAtomic
)

// preparedRow is one row that passed preflight, carrying the data it
// needs at apply time.
type preparedRow struct {
	op         RowOp
	dataKey    istore.RawKey
	encoded    istore.RawRow
	indexWrite []indexWrite
}

type indexWrite struct {
	indexName  string
	indexID    [16]byte
	components []ivalue.Value
	key        istore.RawIndexKey
	unique     bool
}

// Result reports per-row outcomes for a batch.
type Result struct {
	Applied int
	Failed  int
	Errors  []error
}

// Preflight runs spec.md section 4.10 step 1 over a batch of row
// operations against one entity, returning the prepared rows (still
// unapplied) or the first failure.
func Preflight(
	registry *istore.Registry,
	codec irow.Codec,
	schema *ischema.SchemaInfo,
	ops []RowOp,
) ([]preparedRow, error) {
	prepared := make([]preparedRow, 0, len(ops))
	for _, op := range ops {
		p, err := preflightOne(registry, codec, schema, op)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
	}
	return prepared, nil
}

func preflightOne(registry *istore.Registry, codec irow.Codec, schema *ischema.SchemaInfo, op RowOp) (preparedRow, error) {
	encodedBytes, err := codec.Encode(op.Row)
	if err != nil {
		return preparedRow{}, ierrkit.Wrap(ierrkit.ClassUnsupported, ierrkit.OriginStore, err, "row failed canonical encoding")
	}

	pkField := schema.PrimaryKey()
	idValue, ok := codec.PrimaryKey(op.Row, pkField)
	if !ok || ivalue.CompareCanonical(idValue, op.Key) != 0 {
		return preparedRow{}, ierrkit.Unsupportedf(ierrkit.OriginStore, "entity primary key does not match the row's id field")
	}

	for fieldName, fk := range schemaRelationFields(schema) {
		if fk.Relation == nil || fk.Relation.Strength != ischema.RelationStrong {
			continue
		}
		if fk.Relation.TargetPath == "" {
			return preparedRow{}, ierrkit.Internal(ierrkit.OriginStore, "strong relation target name invalid")
		}
		cell := op.Row.Get(fieldName)
		if cell.State != irow.FieldPresent {
			continue
		}
		targets := []ivalue.Value{cell.Value}
		if fk.Relation.IsSet {
			targets = cell.Value.AsSet()
		}
		for _, target := range targets {
			if err := verifyRelationExists(registry, fk.Relation.TargetPath, target); err != nil {
				return preparedRow{}, err
			}
		}
	}

	dataKey := istore.EncodeRawKey(op.Key)
	var writes []indexWrite
	for _, idx := range schema.Indexes() {
		values := make([]ivalue.Value, 0, len(idx.Fields))
		complete := true
		for _, f := range idx.Fields {
			cell := op.Row.Get(f)
			if cell.State != irow.FieldPresent {
				complete = false
				break
			}
			values = append(values, cell.Value)
		}
		if !complete {
			continue
		}
		indexID := istore.ComputeIndexID(schema.EntityName(), idx.Name)
		key := istore.EncodeRawIndexKey(indexID, values, dataKey)
		writes = append(writes, indexWrite{indexName: idx.Name, indexID: indexID, components: values, key: key, unique: idx.Unique})
	}

	return preparedRow{
		op:         op,
		dataKey:    dataKey,
		encoded:    istore.RawRow(encodedBytes),
		indexWrite: writes,
	}, nil
}

func schemaRelationFields(schema *ischema.SchemaInfo) map[string]ischema.FieldKind {
	out := map[string]ischema.FieldKind{}
	// SchemaInfo doesn't expose a direct field iterator, so this walks
	// the fields named by some index plus the primary key. A strong
	// relation on a field that appears in no index is not checked.
	for _, idx := range schema.Indexes() {
		for _, f := range idx.Fields {
			if fk, ok := schema.FieldKind(f); ok {
				out[f] = fk
			}
		}
	}
	if fk, ok := schema.FieldKind(schema.PrimaryKey()); ok {
		out[schema.PrimaryKey()] = fk
	}
	return out
}

func verifyRelationExists(registry *istore.Registry, targetPath string, target ivalue.Value) error {
	found := false
	ok := registry.WithData(targetPath, func(s istore.DataStore) {
		_, found = s.Get(istore.EncodeRawKey(target))
	})
	if !ok {
		return ierrkit.Internal(ierrkit.OriginStore, "strong relation target name invalid")
	}
	if !found {
		return ierrkit.Unsupported(ierrkit.OriginStore, "strong relation missing")
	}
	return nil
}

// Apply opens the commit window (snapshotting index-store generations),
// re-checks them at write time, and writes rows + index entries,
// honoring the batch's atomicity (spec.md section 4.10 steps 2-4).
// Index deltas are only ever handed to sink once the batch is known to
// have committed: an Atomic rollback discards every delta it would have
// produced, and a NonAtomic batch reports only the rows that actually
// landed (spec.md section 5).
func Apply(
	registry *istore.Registry,
	entityPath string,
	prepared []preparedRow,
	atomicity Atomicity,
	sink imetrics.Sink,
) (Result, error) {
	var dataStore istore.DataStore
	var indexStore istore.IndexStore
	if !registry.WithData(entityPath, func(s istore.DataStore) { dataStore = s }) {
		return Result{}, ierrkit.Internal(ierrkit.OriginStore, "no data store registered for entity path")
	}
	registry.WithIndex(entityPath, func(s istore.IndexStore) { indexStore = s })

	var generationAtOpen uint64
	if indexStore != nil {
		generationAtOpen = indexStore.Generation()
	}

	result := Result{}
	var applied []preparedRow
	deltas := map[string]*imetrics.IndexDelta{}

	for _, p := range prepared {
		if indexStore != nil && indexStore.Generation() != generationAtOpen {
			err := ierrkit.InvariantViolation(ierrkit.OriginCommit, "index store generation changed between preflight and apply")
			if atomicity == Atomic {
				rollback(dataStore, indexStore, applied)
				return Result{}, err
			}
			result.Failed++
			result.Errors = append(result.Errors, err)
			break
		}

		if err := checkUniqueConflicts(indexStore, p); err != nil {
			if atomicity == Atomic {
				rollback(dataStore, indexStore, applied)
				return Result{}, err
			}
			result.Failed++
			result.Errors = append(result.Errors, err)
			continue
		}

		dataStore.Put(p.dataKey, p.encoded)
		if indexStore != nil {
			for _, w := range p.indexWrite {
				indexStore.Insert(w.key, p.dataKey)
				d, ok := deltas[w.indexName]
				if !ok {
					d = &imetrics.IndexDelta{IndexName: w.indexName}
					deltas[w.indexName] = d
				}
				d.Inserted++
			}
		}
		applied = append(applied, p)
		result.Applied++
		if indexStore != nil {
			generationAtOpen = indexStore.Generation()
		}
	}

	for _, d := range deltas {
		imetrics.NotifyIndexDelta(sink, *d)
	}

	return result, nil
}

// checkUniqueConflicts scans for any existing index entry sharing a
// unique write's (indexID, components) but a different primary key.
// Equality can't be checked with a single Get: RawIndexKey embeds the
// owning row's PK in its suffix, so two rows with identical component
// values never collide on the raw key bytes themselves (spec.md
// section 6) — uniqueness has to be evaluated at the component level.
func checkUniqueConflicts(indexStore istore.IndexStore, p preparedRow) error {
	if indexStore == nil {
		return nil
	}
	for _, w := range p.indexWrite {
		if !w.unique {
			continue
		}
		for _, entry := range indexStore.Iter() {
			id, components, pk, err := istore.DecodeRawIndexKey(entry.Key)
			if err != nil || id != w.indexID {
				continue
			}
			if string(pk) == string(p.dataKey) {
				continue
			}
			if componentsEqual(components, w.components) {
				return ierrkit.Conflict(ierrkit.OriginIndex, "unique index violation on "+w.indexName)
			}
		}
	}
	return nil
}

func componentsEqual(a, b []ivalue.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if ivalue.CompareCanonical(a[i], b[i]) != 0 {
			return false
		}
	}
	return true
}

func rollback(dataStore istore.DataStore, indexStore istore.IndexStore, applied []preparedRow) {
	for _, p := range applied {
		dataStore.Remove(p.dataKey)
		if indexStore != nil {
			for _, w := range p.indexWrite {
				indexStore.Remove(w.key)
			}
		}
	}
}

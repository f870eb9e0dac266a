// Package imetrics carries the optional MetricsSink collaborator
// (spec.md section 5): rows-scanned counts and index insert/remove
// deltas. Failed pre-commit batches must never emit index deltas.
package imetrics

// RowsScanned is one query's final scan-budget accounting.
type RowsScanned struct {
	EntityPath  string
	RowsScanned uint64
}

// IndexDelta is one index mutation emitted only after a batch commits.
type IndexDelta struct {
	IndexName string
	Inserted  uint64
	Removed   uint64
}

// Sink receives the counters the executor and save pipeline produce.
// A nil Sink is valid everywhere a Sink is accepted; callers should
// guard with NotifyRowsScanned/NotifyIndexDelta rather than calling
// the interface methods directly on a possibly-nil Sink.
type Sink interface {
	RowsScanned(RowsScanned)
	IndexDelta(IndexDelta)
}

// NotifyRowsScanned calls sink.RowsScanned only if sink is non-nil.
func NotifyRowsScanned(sink Sink, rs RowsScanned) {
	if sink != nil {
		sink.RowsScanned(rs)
	}
}

// NotifyIndexDelta calls sink.IndexDelta only if sink is non-nil.
func NotifyIndexDelta(sink Sink, d IndexDelta) {
	if sink != nil {
		sink.IndexDelta(d)
	}
}

// NoopSink discards every notification; it is the default sink when a
// caller does not care about telemetry.
type NoopSink struct{}

func (NoopSink) RowsScanned(RowsScanned) {}
func (NoopSink) IndexDelta(IndexDelta)   {}

// CollectingSink accumulates notifications in memory; used by tests
// and the cmd/icydb demo CLI to print a trace summary.
type CollectingSink struct {
	Rows    []RowsScanned
	Deltas  []IndexDelta
}

func (s *CollectingSink) RowsScanned(rs RowsScanned) { s.Rows = append(s.Rows, rs) }
func (s *CollectingSink) IndexDelta(d IndexDelta)    { s.Deltas = append(s.Deltas, d) }

// Package tracelog renders debug traces for a single query's
// execution (spec.md section 14): keys-scanned accounting, the
// pushdown decision that was made, and the optimization label chosen
// by the planner. Rendering uses k0kubun/pp for the same readable,
// colorized struct dump the teacher's own debug tooling relies on.
package tracelog

import (
	"os"

	"github.com/k0kubun/pp/v3"
	"golang.org/x/term"

	"github.com/dragginzgame/icydb-sub000/internal/ipushdown"
)

// OptimizationLabel names the access strategy chosen for a query, a
// short human label surfaced in traces (distinct from the full
// iaccess.Plan tree, which is usually too verbose to print per-query).
type OptimizationLabel string

const (
	LabelFullScan      OptimizationLabel = "full_scan"
	LabelPrimaryKey    OptimizationLabel = "primary_key"
	LabelIndexPrefix   OptimizationLabel = "index_prefix"
	LabelIndexRange    OptimizationLabel = "index_range"
	LabelUnion         OptimizationLabel = "union"
	LabelIntersection  OptimizationLabel = "intersection"
)

// Trace accumulates one query's debug telemetry.
type Trace struct {
	EntityPath        string
	KeysScanned       uint64
	RejectedKeys      uint64
	Optimization      OptimizationLabel
	Pushdown          ipushdown.Result
	BoundedRangeTried bool
	BoundedRangeOK    bool
}

// Printer renders traces when enabled; a nil *Printer (or one built
// with Enabled=false) renders nothing, matching the teacher's own
// "trace only when asked" debug-output convention.
type Printer struct {
	Enabled bool
}

// NewPrinter builds a Printer, enabling pp's ANSI coloring only when
// stderr is an actual terminal (mirrors the teacher's own
// term.IsTerminal gate on interactive-only behavior, generalized from
// "should we prompt for a password" to "should we colorize").
func NewPrinter(enabled bool) *Printer {
	pp.SetColoringEnabled(term.IsTerminal(int(os.Stderr.Fd())))
	return &Printer{Enabled: enabled}
}

// Render returns the pp-formatted trace, or "" when printing is
// disabled.
func (p *Printer) Render(t Trace) string {
	if p == nil || !p.Enabled {
		return ""
	}
	return pp.Sprint(t)
}

package tracelog

import (
	"testing"

	"github.com/dragginzgame/icydb-sub000/internal/ipushdown"
	"github.com/stretchr/testify/assert"
)

func TestRenderDisabledPrinterReturnsEmpty(t *testing.T) {
	p := NewPrinter(false)
	out := p.Render(Trace{EntityPath: "order", KeysScanned: 3})
	assert.Empty(t, out)
}

func TestRenderEnabledPrinterIncludesFields(t *testing.T) {
	p := NewPrinter(true)
	out := p.Render(Trace{
		EntityPath:   "order",
		KeysScanned:  3,
		Optimization: LabelIndexRange,
		Pushdown:     ipushdown.Result{Kind: ipushdown.Eligible, IndexName: "by_tag", PrefixLen: 1},
	})
	assert.Contains(t, out, "order")
	assert.Contains(t, out, "by_tag")
}

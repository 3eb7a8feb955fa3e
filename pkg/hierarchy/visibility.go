package hierarchy

import (
	"math"

	"github.com/devicelab-dev/screenstate/pkg/core"
)

// paintEntry is one bounded node in paint order. subtreeEnd is the paint
// index just past the node's own descendants.
type paintEntry struct {
	node       *core.Node
	bounds     core.Bounds
	subtreeEnd int
}

// ComputeVisibility assigns an occlusion-aware visibility score to every
// clickable bounded node in the tree.
//
// Pre-order document position doubles as z-order: later siblings and their
// descendants paint on top of earlier nodes. A clickable node's score is the
// fraction of its own area not covered by any node painted after its own
// subtree, clamped to [0,1] and rounded to 3 decimals. A node's descendants
// are part of the same widget and never occlude it. Nodes with missing or
// malformed bounds take no part in the computation.
func ComputeVisibility(root *core.Node) {
	entries := collectPaintOrder(root)

	for _, e := range entries {
		if !e.node.BoolAttr(core.AttrClickable) {
			continue
		}

		own := e.bounds.Area()
		if own == 0 {
			v := 0.0
			e.node.Visibility = &v
			continue
		}

		covered := 0
		for _, later := range entries[e.subtreeEnd:] {
			covered += e.bounds.Intersect(later.bounds).Area()
		}

		visible := float64(own-covered) / float64(own)
		if visible < 0 {
			visible = 0
		}
		if visible > 1 {
			visible = 1
		}
		v := math.Round(visible*1000) / 1000
		e.node.Visibility = &v
	}
}

// collectPaintOrder lists bounded nodes in pre-order, which is ascending z-order.
func collectPaintOrder(root *core.Node) []paintEntry {
	var entries []paintEntry
	var walk func(n *core.Node)
	walk = func(n *core.Node) {
		if n == nil {
			return
		}
		idx := -1
		if b, ok := n.Bounds(); ok {
			idx = len(entries)
			entries = append(entries, paintEntry{node: n, bounds: b})
		}
		for _, child := range n.Children {
			walk(child)
		}
		if idx >= 0 {
			entries[idx].subtreeEnd = len(entries)
		}
	}
	walk(root)
	return entries
}

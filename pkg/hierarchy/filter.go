package hierarchy

import (
	"github.com/devicelab-dev/screenstate/pkg/core"
)

// defaultViewClass is stripped from kept nodes: it carries no signal.
const defaultViewClass = "android.view.View"

// Filter reduces a raw hierarchy to the nodes that matter for automation.
//
// A node is kept when it has identifying text, resource-id or content-desc,
// or when it is clickable, scrollable or focused. Nodes that are dropped but
// have kept descendants are flattened: the descendants are spliced into the
// parent's position, preserving document order. The root is always retained
// with its filtered children attached.
//
// Filter never mutates its input and is idempotent.
func Filter(root *core.Node) *core.Node {
	if root == nil {
		return nil
	}

	out := &core.Node{Attrs: copyAttrs(root.Attrs)}
	for _, child := range root.Children {
		out.Children = append(out.Children, filterNode(child)...)
	}
	return out
}

// filterNode returns the kept rendition of n, or its hoisted kept
// descendants when n itself is dropped.
func filterNode(n *core.Node) []*core.Node {
	var kept []*core.Node
	for _, child := range n.Children {
		kept = append(kept, filterNode(child)...)
	}

	if !isRelevant(n) {
		return kept
	}

	node := &core.Node{
		Attrs:    stripAttrs(n.Attrs),
		Children: kept,
	}
	return []*core.Node{node}
}

// isRelevant implements the keep predicate: identifying text/id/description,
// or an interactive state.
func isRelevant(n *core.Node) bool {
	if n.Attr(core.AttrText) != "" ||
		n.Attr(core.AttrResourceID) != "" ||
		n.Attr(core.AttrContentDesc) != "" {
		return true
	}
	return n.BoolAttr(core.AttrClickable) ||
		n.BoolAttr(core.AttrScrollable) ||
		n.BoolAttr(core.AttrFocused)
}

// stripAttrs drops attributes that carry no signal: empty values,
// false booleans and the default view class.
func stripAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		if v == "" || v == "false" {
			continue
		}
		if k == core.AttrClass && v == defaultViewClass {
			continue
		}
		out[k] = v
	}
	return out
}

func copyAttrs(attrs map[string]string) map[string]string {
	if attrs == nil {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

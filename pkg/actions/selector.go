package actions

import (
	"strings"

	"github.com/devicelab-dev/screenstate/pkg/core"
)

// Selector identifies a target element in an observed hierarchy.
// At least one field must be set.
type Selector struct {
	Text         string // Exact text or content-desc match
	ID           string // resource-id match, full or short form
	ContainsText string // Substring text match
	Index        int    // Pick the Nth match (0-based) instead of the best-visible one
	UseIndex     bool
}

// Empty reports whether no selector field is set.
func (s Selector) Empty() bool {
	return s.Text == "" && s.ID == "" && s.ContainsText == ""
}

// String renders the selector for error messages.
func (s Selector) String() string {
	switch {
	case s.Text != "":
		return "text=" + s.Text
	case s.ID != "":
		return "id=" + s.ID
	case s.ContainsText != "":
		return "contains=" + s.ContainsText
	default:
		return "<empty>"
	}
}

func (s Selector) matches(n *core.Node) bool {
	switch {
	case s.Text != "":
		return n.Attr(core.AttrText) == s.Text || n.Attr(core.AttrContentDesc) == s.Text
	case s.ID != "":
		id := n.Attr(core.AttrResourceID)
		return id == s.ID || strings.HasSuffix(id, "/"+s.ID)
	case s.ContainsText != "":
		return strings.Contains(n.Attr(core.AttrText), s.ContainsText)
	default:
		return false
	}
}

// Resolve finds the node matching the selector. When several elements match,
// the one with the highest visibility score wins; fully covered elements
// (score 0) are never picked over a visible match. Ties keep document order.
// With UseIndex set, the Nth match in document order is returned instead.
func Resolve(root *core.Node, sel Selector) *core.Node {
	var matches []*core.Node
	collect(root, sel, &matches)
	if len(matches) == 0 {
		return nil
	}

	if sel.UseIndex {
		if sel.Index < 0 || sel.Index >= len(matches) {
			return nil
		}
		return matches[sel.Index]
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if visibilityOf(m) > visibilityOf(best) {
			best = m
		}
	}
	return best
}

func collect(n *core.Node, sel Selector, out *[]*core.Node) {
	if n == nil {
		return
	}
	if sel.matches(n) {
		*out = append(*out, n)
	}
	for _, child := range n.Children {
		collect(child, sel, out)
	}
}

// visibilityOf treats unscored nodes as fully visible; only the z-order
// analyzer's explicit scores can demote a match.
func visibilityOf(n *core.Node) float64 {
	if n.Visibility == nil {
		return 1
	}
	return *n.Visibility
}

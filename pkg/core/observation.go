package core

import (
	"strconv"
	"strings"
	"time"
)

// Node is one element of a parsed UI hierarchy.
// All raw dump attributes are normalized into Attrs at parse time;
// no other code inspects the raw dump format.
type Node struct {
	Attrs      map[string]string `json:"attributes"`
	Children   []*Node           `json:"children,omitempty"`
	Visibility *float64          `json:"visibility,omitempty"` // set by the z-order analyzer for clickable nodes
}

// Attribute names used across packages.
const (
	AttrText        = "text"
	AttrResourceID  = "resource-id"
	AttrContentDesc = "content-desc"
	AttrClass       = "class"
	AttrBounds      = "bounds"
	AttrClickable   = "clickable"
	AttrScrollable  = "scrollable"
	AttrFocused     = "focused"
	AttrEnabled     = "enabled"
	AttrPackage     = "package"
)

// Attr returns the named attribute, or "" when absent.
func (n *Node) Attr(name string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// BoolAttr reports whether the named attribute is "true".
func (n *Node) BoolAttr(name string) bool {
	return n.Attr(name) == "true"
}

// Bounds parses the node's bounds attribute ("[x1,y1][x2,y2]").
// ok is false when the attribute is absent or malformed.
func (n *Node) Bounds() (Bounds, bool) {
	s := n.Attr(AttrBounds)
	if s == "" {
		return Bounds{}, false
	}
	s = strings.ReplaceAll(s, "][", ",")
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Bounds{}, false
	}

	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Bounds{}, false
		}
		vals[i] = v
	}

	return Bounds{
		X:      vals[0],
		Y:      vals[1],
		Width:  vals[2] - vals[0],
		Height: vals[3] - vals[1],
	}, true
}

// Clone returns a deep copy of the node tree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{}
	if n.Attrs != nil {
		c.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			c.Attrs[k] = v
		}
	}
	if n.Visibility != nil {
		v := *n.Visibility
		c.Visibility = &v
	}
	for _, child := range n.Children {
		c.Children = append(c.Children, child.Clone())
	}
	return c
}

// Equal reports structural equality of two node trees.
// Visibility scores are compared; attribute order is irrelevant.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if len(n.Attrs) != len(o.Attrs) || len(n.Children) != len(o.Children) {
		return false
	}
	for k, v := range n.Attrs {
		ov, ok := o.Attrs[k]
		if !ok || ov != v {
			return false
		}
	}
	if (n.Visibility == nil) != (o.Visibility == nil) {
		return false
	}
	if n.Visibility != nil && *n.Visibility != *o.Visibility {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// Observation is one complete snapshot of device UI state.
// Immutable once produced; the cache hands out clones, never its own instance.
type Observation struct {
	Timestamp      time.Time `json:"timestamp"`
	ScreenSize     Size      `json:"screenSize"`
	Insets         Insets    `json:"systemInsets"`
	Hierarchy      *Node     `json:"hierarchy,omitempty"`
	HierarchyErr   string    `json:"hierarchyError,omitempty"` // capture fault marker; set when Hierarchy is nil
	ScreenshotPath string    `json:"screenshotPath,omitempty"`
}

// Valid reports whether the observation carries a usable hierarchy.
func (o *Observation) Valid() bool {
	return o != nil && o.Hierarchy != nil && o.HierarchyErr == ""
}

// Clone returns a deep copy of the observation.
func (o *Observation) Clone() *Observation {
	if o == nil {
		return nil
	}
	c := *o
	c.Hierarchy = o.Hierarchy.Clone()
	return &c
}

// Token returns the cache token for this observation: its capture
// timestamp in milliseconds, as a string.
func (o *Observation) Token() string {
	return strconv.FormatInt(o.Timestamp.UnixMilli(), 10)
}

package hierarchy

import (
	"testing"

	"github.com/devicelab-dev/screenstate/pkg/core"
)

func node(attrs map[string]string, children ...*core.Node) *core.Node {
	return &core.Node{Attrs: attrs, Children: children}
}

func TestFilterFlattensUnlabeledContainer(t *testing.T) {
	// A TextView nested under an unlabeled LinearLayout is hoisted to the root
	raw := node(map[string]string{core.AttrClass: "android.widget.FrameLayout"},
		node(map[string]string{core.AttrClass: "android.widget.LinearLayout", core.AttrClickable: "false"},
			node(map[string]string{core.AttrClass: "android.widget.TextView", core.AttrText: "Hi", core.AttrClickable: "false"}),
		),
	)

	got := Filter(raw)
	if len(got.Children) != 1 {
		t.Fatalf("expected 1 direct child after flattening, got %d", len(got.Children))
	}
	child := got.Children[0]
	if child.Attr(core.AttrText) != "Hi" {
		t.Errorf("expected hoisted TextView, got %+v", child.Attrs)
	}
	if child.Attr(core.AttrClickable) != "" {
		t.Error("expected clickable=false to be stripped")
	}
}

func TestFilterKeepsInteractiveNodes(t *testing.T) {
	raw := node(map[string]string{core.AttrClass: "root"},
		node(map[string]string{core.AttrClickable: "true", core.AttrClass: defaultViewClass}),
		node(map[string]string{core.AttrScrollable: "true"}),
		node(map[string]string{core.AttrFocused: "true"}),
		node(map[string]string{core.AttrEnabled: "true"}), // no identity, not interactive
	)

	got := Filter(raw)
	if len(got.Children) != 3 {
		t.Fatalf("expected 3 kept children, got %d", len(got.Children))
	}
	if got.Children[0].Attr(core.AttrClass) != "" {
		t.Error("expected default view class to be stripped")
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	raw := node(map[string]string{core.AttrClass: "root"},
		node(map[string]string{core.AttrText: "A"}),
		node(nil, // dropped wrapper
			node(map[string]string{core.AttrText: "B"}),
			node(map[string]string{core.AttrText: "C"}),
		),
		node(map[string]string{core.AttrText: "D"}),
	)

	got := Filter(raw)
	var texts []string
	for _, c := range got.Children {
		texts = append(texts, c.Attr(core.AttrText))
	}
	want := []string{"A", "B", "C", "D"}
	for i := range want {
		if i >= len(texts) || texts[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, texts)
		}
	}
}

func TestFilterKeepsDescendantsUnderKeptNode(t *testing.T) {
	raw := node(map[string]string{core.AttrClass: "root"},
		node(map[string]string{core.AttrResourceID: "com.app:id/list", core.AttrScrollable: "true"},
			node(nil,
				node(map[string]string{core.AttrText: "Row 1", core.AttrClickable: "true"}),
			),
		),
	)

	got := Filter(raw)
	if len(got.Children) != 1 {
		t.Fatalf("expected 1 kept child, got %d", len(got.Children))
	}
	list := got.Children[0]
	if len(list.Children) != 1 || list.Children[0].Attr(core.AttrText) != "Row 1" {
		t.Errorf("expected row hoisted under the list, got %+v", list.Children)
	}
}

func TestFilterIdempotent(t *testing.T) {
	raw, err := Parse(sampleDump)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	once := Filter(raw)
	twice := Filter(once)
	if !once.Equal(twice) {
		t.Error("expected filter to be idempotent")
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	raw := node(map[string]string{core.AttrClass: "root"},
		node(map[string]string{core.AttrText: "A", core.AttrClickable: "false"}),
	)
	before := raw.Clone()

	Filter(raw)
	if !raw.Equal(before) {
		t.Error("expected input tree to be untouched")
	}
}

func TestFilterNil(t *testing.T) {
	if Filter(nil) != nil {
		t.Error("expected nil in, nil out")
	}
}

// Package hierarchy parses, filters and augments device UI hierarchy dumps.
package hierarchy

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/devicelab-dev/screenstate/pkg/core"
)

// Parse converts a uiautomator dump into a canonical node tree.
// Supports both dump formats:
//   - UIAutomator dump: <node> elements with a class attribute
//   - instrumented dumps: class name as the element tag
//
// All attributes are normalized into the node's attribute map here;
// nothing downstream looks at raw XML.
func Parse(xmlData string) (*core.Node, error) {
	decoder := xml.NewDecoder(strings.NewReader(xmlData))

	var roots []*core.Node
	foundHierarchy := false
	var parseElement func() (*core.Node, error)

	parseElement = func() (*core.Node, error) {
		for {
			token, err := decoder.Token()
			if err != nil {
				return nil, err
			}

			switch t := token.(type) {
			case xml.StartElement:
				// The hierarchy wrapper is not a node itself
				if t.Name.Local == "hierarchy" {
					foundHierarchy = true
					continue
				}

				node := &core.Node{Attrs: make(map[string]string, len(t.Attr)+1)}

				// Class name is the element tag unless a class attribute overrides it
				if t.Name.Local != "node" {
					node.Attrs[core.AttrClass] = t.Name.Local
				}
				for _, attr := range t.Attr {
					node.Attrs[attr.Name.Local] = attr.Value
				}

				for {
					child, err := parseElement()
					if err != nil || child == nil {
						break
					}
					node.Children = append(node.Children, child)
				}

				return node, nil

			case xml.EndElement:
				return nil, nil // End of current element
			}
		}
	}

	var parseErr error
	for {
		node, err := parseElement()
		if err != nil {
			if err != io.EOF {
				parseErr = err
			}
			break
		}
		if node != nil {
			roots = append(roots, node)
		}
	}

	if parseErr != nil && len(roots) == 0 {
		return nil, parseErr
	}
	if !foundHierarchy {
		return nil, fmt.Errorf("invalid dump: no hierarchy element found")
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("invalid dump: hierarchy is empty")
	}

	// Multiple top-level windows get a synthetic root so the tree stays single-rooted
	if len(roots) == 1 {
		return roots[0], nil
	}
	return &core.Node{
		Attrs:    map[string]string{core.AttrClass: "hierarchy"},
		Children: roots,
	}, nil
}

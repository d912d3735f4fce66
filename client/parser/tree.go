package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/clbanning/mxj/v2"
)

// TreeOptions configures the xml-tree backend.
type TreeOptions struct {
	// ExplicitArray wraps every child element in a slice, even single ones.
	ExplicitArray bool
	// Cast converts numeric and boolean text into float64 and bool.
	Cast bool
}

// Tree is the xml-tree backend.
type Tree struct {
	opts TreeOptions
}

// NewTree returns an xml-tree parser.
func NewTree(opts TreeOptions) *Tree {
	return &Tree{opts: opts}
}

// Name implements Parser.
func (t *Tree) Name() string { return NameTree }

// Parse implements Parser. The result is a map[string]any keyed by the
// document's root element.
func (t *Tree) Parse(body []byte) (any, error) {
	m, err := mxj.NewMapXml(body, t.opts.Cast)
	if err != nil {
		return nil, fmt.Errorf("xml-tree: %w", err)
	}
	if err := rootOnly(body); err != nil {
		return nil, fmt.Errorf("xml-tree: %w", err)
	}

	tree := map[string]any(m)
	if !t.opts.ExplicitArray {
		return tree, nil
	}

	out := make(map[string]any, len(tree))
	for k, v := range tree {
		out[k] = explicit(v)
	}

	return out, nil
}

// rootOnly checks that nothing but the root element is in body. mxj
// stops reading once the root element closes.
func rootOnly(body []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = mxj.XmlCharsetReader

	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			break
		}
	}
	if err := dec.Skip(); err != nil {
		return err
	}

	return trailing(dec)
}

// explicit wraps child elements in slices. Attribute and text keys
// ('-' and '#' prefixed) are left as scalars.
func explicit(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			if len(k) > 0 && (k[0] == '-' || k[0] == '#') {
				out[k] = child
				continue
			}
			if list, ok := child.([]any); ok {
				wrapped := make([]any, len(list))
				for i, item := range list {
					wrapped[i] = explicit(item)
				}
				out[k] = wrapped
				continue
			}
			out[k] = []any{explicit(child)}
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, item := range node {
			out[i] = explicit(item)
		}
		return out
	default:
		return v
	}
}

// Package parser turns XML response bodies into generic object trees.
//
// Two interchangeable backends are available, selected by name:
//
//   - [NameTree] ("xml-tree"): a map tree in which attributes are keyed with
//     a leading '-', mixed text is keyed "#text", and repeated siblings
//     collapse into a slice unless [TreeOptions.ExplicitArray] is set.
//   - [NameJSON] ("xml-to-json"): a JSON-oriented tree in which attributes are
//     plain keys and element text is keyed "$t". An attribute that shares
//     its name with a child element is keyed "@name" instead.
package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

const (
	NameTree = "xml-tree"
	NameJSON = "xml-to-json"
)

// ErrUnknownParser is returned by New for an unsupported backend name.
var ErrUnknownParser = errors.New("unknown parser")

// Parser converts a raw response body into a parsed tree.
type Parser interface {
	Parse(body []byte) (any, error)
	Name() string
}

// New returns the backend registered under name. An empty name selects
// NameTree. The legacy names "xml2js" and "xml2json" are accepted as aliases.
func New(name string, tree TreeOptions, json JSONOptions) (Parser, error) {
	switch name {
	case "", NameTree, "xml2js":
		return NewTree(tree), nil
	case NameJSON, "xml2json":
		return NewJSON(json), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownParser, name)
	}
}

// trailing consumes the rest of dec after the root element. Only
// whitespace, comments and processing instructions may follow it.
func trailing(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			return fmt.Errorf("element <%s> after root element", t.Name.Local)
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return errors.New("text after root element")
			}
		}
	}
}

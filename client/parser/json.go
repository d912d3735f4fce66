package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	textKey    = "$t"
	attrPrefix = "@"
)

// JSONOptions configures the xml-to-json backend.
type JSONOptions struct {
	// Coerce converts numeric and boolean values into float64 and bool.
	Coerce bool
	// KeepSpace disables trimming of surrounding whitespace in text.
	KeepSpace bool
	// ArrayNotation makes every child element a slice.
	ArrayNotation bool
}

// JSON is the xml-to-json backend.
type JSON struct {
	opts JSONOptions
}

// NewJSON returns an xml-to-json parser.
func NewJSON(opts JSONOptions) *JSON {
	return &JSON{opts: opts}
}

// Name implements Parser.
func (j *JSON) Name() string { return NameJSON }

// Parse implements Parser. The result is a map[string]any keyed by the
// document's root element.
func (j *JSON) Parse(body []byte) (any, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("xml-to-json: no root element")
			}
			return nil, fmt.Errorf("xml-to-json: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		node, err := j.element(dec, start)
		if err != nil {
			return nil, fmt.Errorf("xml-to-json: %w", err)
		}
		if err := trailing(dec); err != nil {
			return nil, fmt.Errorf("xml-to-json: %w", err)
		}

		return map[string]any{start.Name.Local: j.wrap(node)}, nil
	}
}

// element consumes tokens up to the matching end element of start.
// A child element sharing its name with an attribute keeps the plain
// key; the attribute moves to "@name".
func (j *JSON) element(dec *xml.Decoder, start xml.StartElement) (any, error) {
	node := make(map[string]any)
	attrs := make(map[string]bool, len(start.Attr))
	for _, attr := range start.Attr {
		node[attr.Name.Local] = j.value(attr.Value)
		attrs[attr.Name.Local] = true
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			child, err := j.element(dec, t)
			if err != nil {
				return nil, err
			}

			name := t.Name.Local
			if attrs[name] {
				node[attrPrefix+name] = node[name]
				delete(node, name)
				delete(attrs, name)
			}
			j.add(node, name, child)

		case xml.CharData:
			text.Write(t)

		case xml.EndElement:
			return j.finish(node, text.String()), nil
		}
	}
}

// finish folds collected text into node. An element with only text
// becomes that text.
func (j *JSON) finish(node map[string]any, text string) any {
	if !j.opts.KeepSpace {
		text = strings.TrimSpace(text)
	}

	if text == "" {
		return node
	}
	if len(node) == 0 {
		return j.value(text)
	}

	node[textKey] = j.value(text)
	return node
}

func (j *JSON) wrap(v any) any {
	if !j.opts.ArrayNotation {
		return v
	}
	if _, ok := v.([]any); ok {
		return v
	}
	return []any{v}
}

func (j *JSON) value(s string) any {
	if !j.opts.Coerce {
		return s
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// add sets key on node, turning repeated keys into a slice.
func (j *JSON) add(node map[string]any, key string, v any) {
	existing, ok := node[key]
	if !ok {
		if j.opts.ArrayNotation {
			v = []any{v}
		}
		node[key] = v
		return
	}

	if list, ok := existing.([]any); ok {
		node[key] = append(list, v)
		return
	}

	node[key] = []any{existing, v}
}

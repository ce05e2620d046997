package doctree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoRoot is returned when the input holds no element.
var ErrNoRoot = errors.New("no root element")

// Parse decodes well-formed XML into a node tree. Tag names and attribute
// keys are lower-cased; duplicate attribute keys keep their first value.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var root *Node
	var stack []*Node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Type: ElementNode, Tag: qualifiedName(t.Name)}
			for _, a := range t.Attr {
				key := qualifiedName(a.Name)
				if _, dup := n.Attr(key); dup {
					continue
				}
				n.Attrs = append(n.Attrs, Attr{Key: key, Val: a.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("decode xml: multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			parent := stack[len(stack)-1]
			data := string(t)
			// Merge adjacent character data so text nodes stay whole.
			if last := len(parent.Children) - 1; last >= 0 && parent.Children[last].Type == TextNode {
				parent.Children[last].Data += data
				continue
			}
			parent.Children = append(parent.Children, NewText(data))
		}
	}

	if root == nil {
		return nil, ErrNoRoot
	}
	return root, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}

// qualifiedName keeps undeclared prefixes as written; resolved namespace
// URLs are dropped.
func qualifiedName(n xml.Name) string {
	if n.Space == "" || strings.Contains(n.Space, "/") {
		return strings.ToLower(n.Local)
	}
	return strings.ToLower(n.Space + ":" + n.Local)
}

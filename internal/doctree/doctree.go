package doctree

import (
	"strings"
)

// NodeType distinguishes element nodes from character data.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
)

// Attr is a single attribute. Keys are lower-cased and unique within a node.
type Attr struct {
	Key string
	Val string
}

// Node is one node of a parsed transcript. Nodes carry no parent pointers;
// use an Index for ancestor lookups.
type Node struct {
	Type     NodeType
	Tag      string // lower-cased element name, empty for text
	Data     string // character data for text nodes
	Attrs    []Attr
	Children []*Node
}

// NewElement builds an element node that owns the given children.
func NewElement(tag string, children ...*Node) *Node {
	return &Node{Type: ElementNode, Tag: strings.ToLower(tag), Children: children}
}

// NewText builds a text node.
func NewText(data string) *Node {
	return &Node{Type: TextNode, Data: data}
}

// IsElement reports whether n is an element with one of the given tags.
// With no tags it reports whether n is any element.
func (n *Node) IsElement(tags ...string) bool {
	if n == nil || n.Type != ElementNode {
		return false
	}
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if n.Tag == t {
			return true
		}
	}
	return false
}

// Attr returns the value of attribute key and whether it was present.
func (n *Node) Attr(key string) (string, bool) {
	if n == nil {
		return "", false
	}
	key = strings.ToLower(key)
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Elements returns the direct element children of n.
func (n *Node) Elements() []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Type == ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the first direct element child with the given tag.
func (n *Node) Child(tag string) *Node {
	for _, c := range n.Children {
		if c.IsElement(tag) {
			return c
		}
	}
	return nil
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the subtree below the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Find returns the first descendant element (excluding n) with the given tag.
func (n *Node) Find(tag string) *Node {
	var found *Node
	for _, c := range n.Children {
		c.Walk(func(d *Node) bool {
			if found != nil {
				return false
			}
			if d.IsElement(tag) {
				found = d
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every descendant element (excluding n) with the given tag
// in document order.
func (n *Node) FindAll(tag string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		c.Walk(func(d *Node) bool {
			if d.IsElement(tag) {
				out = append(out, d)
			}
			return true
		})
	}
	return out
}

// Text returns the concatenated character data of n and its descendants.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	if n.Type == TextNode {
		return n.Data
	}
	var sb strings.Builder
	n.Walk(func(d *Node) bool {
		if d.Type == TextNode {
			sb.WriteString(d.Data)
		}
		return true
	})
	return sb.String()
}

// CollapseSpace folds runs of whitespace into single spaces and trims.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Index maps every node below a root to its parent. It is built once and
// read-only afterwards.
type Index struct {
	root    *Node
	parents map[*Node]*Node
}

// NewIndex builds the parent index for the tree rooted at root.
func NewIndex(root *Node) *Index {
	idx := &Index{root: root, parents: make(map[*Node]*Node)}
	var walk func(*Node)
	walk = func(p *Node) {
		for _, c := range p.Children {
			idx.parents[c] = p
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return idx
}

// Root returns the node the index was built from.
func (idx *Index) Root() *Node { return idx.root }

// Parent returns the parent of n, or nil for the root and unknown nodes.
func (idx *Index) Parent(n *Node) *Node {
	return idx.parents[n]
}

// Ancestors returns the parents of n from nearest to the root.
func (idx *Index) Ancestors(n *Node) []*Node {
	var out []*Node
	for p := idx.parents[n]; p != nil; p = idx.parents[p] {
		out = append(out, p)
	}
	return out
}

// FollowingSiblings returns the element siblings after n under its parent.
func (idx *Index) FollowingSiblings(n *Node) []*Node {
	p := idx.parents[n]
	if p == nil {
		return nil
	}
	var out []*Node
	seen := false
	for _, c := range p.Children {
		if c == n {
			seen = true
			continue
		}
		if seen && c.Type == ElementNode {
			out = append(out, c)
		}
	}
	return out
}

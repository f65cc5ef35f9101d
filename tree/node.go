// Package tree holds the read-only node tree a web page is turned into.
//
// Nodes live in an arena owned by a Tree. A node refers to its parent and
// children by arena index, so the parent link never owns anything.
package tree

import "strings"

// TextTag is the tag given to the pseudo-nodes that wrap text content.
const TextTag = "text"

// Attr is an HTML attribute of a node.
type Attr struct {
	Name  string
	Value string
}

// Kind tells element nodes from text pseudo-nodes.
type Kind uint8

const (
	KindTag Kind = iota
	KindText
)

// Node is a node of a page tree.
type Node struct {
	ID    int
	Kind  Kind
	Tag   string
	Depth int

	// Depth-first traversal stamps. InCollapsed does not advance when leaving a node.
	In, Out, InCollapsed int

	fullText    string
	hasFullText bool
	parent      int
	children    []int
	attrs       []Attr
	tree        *Tree
}

// Tree is an arena of nodes. The root is the node with ID 0.
type Tree struct {
	nodes []Node
}

// Root returns the root node, or nil for an empty tree.
func (t *Tree) Root() *Node {
	if len(t.nodes) == 0 {
		return nil
	}
	return &t.nodes[0]
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node with the given ID.
func (t *Tree) Node(id int) *Node { return &t.nodes[id] }

// FullText returns the normalized text of the subtree. ok is false when the
// text was too long to be treated as a single value.
func (n *Node) FullText() (text string, ok bool) {
	return n.fullText, n.hasFullText
}

// HasText reports whether the node carries a present, non-empty full text.
func (n *Node) HasText() bool {
	return n.hasFullText && n.fullText != ""
}

// Tree returns the tree owning the node.
func (n *Node) Tree() *Tree { return n.tree }

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node {
	if n.parent < 0 {
		return nil
	}
	return &n.tree.nodes[n.parent]
}

// Children returns the children in document order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	for i, id := range n.children {
		out[i] = &n.tree.nodes[id]
	}
	return out
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int { return len(n.children) }

// IsText reports whether n wraps text content.
func (n *Node) IsText() bool { return n.Kind == KindText }

// matchTag matches element nodes only, so an element named like TextTag
// (an SVG <text>) never matches the text pseudo-nodes beside it.
func matchTag(tag string, n *Node) bool {
	if n.Kind != KindTag {
		return false
	}
	return tag == "*" || tag == n.Tag
}

// TagChildren returns the element children in document order.
func (n *Node) TagChildren() []*Node { return n.ChildrenOfTag("*") }

// ChildrenOfTag returns the children with the given tag. The wildcard "*" matches every element child.
func (n *Node) ChildrenOfTag(tag string) []*Node {
	var out []*Node
	for _, id := range n.children {
		c := &n.tree.nodes[id]
		if matchTag(tag, c) {
			out = append(out, c)
		}
	}
	return out
}

// ChildOfTag returns the index-th (0-based) child with the given tag, or nil.
func (n *Node) ChildOfTag(tag string, index int) *Node {
	count := 0
	for _, id := range n.children {
		c := &n.tree.nodes[id]
		if !matchTag(tag, c) {
			continue
		}
		if count == index {
			return c
		}
		count++
	}
	return nil
}

// CountChildren returns the number of element children with exactly the given tag.
func (n *Node) CountChildren(tag string) int {
	if tag == "*" {
		return 0
	}
	count := 0
	for _, id := range n.children {
		if matchTag(tag, &n.tree.nodes[id]) {
			count++
		}
	}
	return count
}

// ChildIndex returns the 0-based position among the parent's children, or 0 for the root.
func (n *Node) ChildIndex() int {
	p := n.Parent()
	if p == nil {
		return 0
	}
	for i, id := range p.children {
		if id == n.ID {
			return i
		}
	}
	return -1
}

// ChildIndexOfSameTag returns the 0-based position among siblings of the
// same kind sharing the tag, or 0 for the root.
func (n *Node) ChildIndexOfSameTag() int {
	p := n.Parent()
	if p == nil {
		return 0
	}
	count := 0
	for _, id := range p.children {
		if sib := &n.tree.nodes[id]; sib.Kind != n.Kind || sib.Tag != n.Tag {
			continue
		}
		if id == n.ID {
			return count
		}
		count++
	}
	return -1
}

// Attr returns the attribute value, or "" when absent.
func (n *Node) Attr(name string) string {
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// AttrList splits a space separated attribute such as class.
func (n *Node) AttrList(name string) []string {
	v := n.Attr(name)
	if v == "" {
		return nil
	}
	return strings.Split(v, " ")
}

// Attrs returns the attributes in document order.
func (n *Node) Attrs() []Attr { return n.attrs }

// Walk visits the subtree rooted at n in pre-order. Returning false skips the children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, id := range n.children {
		n.tree.nodes[id].Walk(fn)
	}
}

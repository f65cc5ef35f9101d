// Package candidate enumerates selection paths over a page tree and groups
// the resulting node selections into candidates.
package candidate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ppasupat/web-entity-extractor-ACL2014/tree"
)

// Wildcard is the tag that matches any tag.
const Wildcard = "*"

// ErrPathMismatch means a path was replayed against a root it was not built from.
var ErrPathMismatch = errors.New("candidate: path does not match root")

// Entry is one step of a Path. Index is -1 when the step has no fixed index.
// A ranged step keeps the children of the tag in [Start, len-End).
type Entry struct {
	Tag    string
	Index  int
	Ranged bool
	Start  int
	End    int
}

// NewEntry returns an unindexed step.
func NewEntry(tag string) Entry {
	return Entry{Tag: tag, Index: -1}
}

// IndexedEntry returns a step selecting the index-th (0-based) child of the tag.
func IndexedEntry(tag string, index int) Entry {
	return Entry{Tag: tag, Index: index}
}

// RangeEntry returns a step trimming start children from the front and end from the back.
func RangeEntry(tag string, start, end int) Entry {
	return Entry{Tag: tag, Index: -1, Ranged: true, Start: start, End: end}
}

// Indexed reports whether the step restricts which children are selected.
func (e Entry) Indexed() bool {
	return e.Index >= 0 || e.Ranged
}

// NoIndex returns the step with its index or range removed.
func (e Entry) NoIndex() Entry {
	return NewEntry(e.Tag)
}

// MatchTag reports whether the step matches element n. Text nodes never match.
func (e Entry) MatchTag(n *tree.Node) bool {
	return !n.IsText() && (e.Tag == Wildcard || e.Tag == n.Tag)
}

func (e Entry) String() string {
	switch {
	case e.Ranged:
		var sb strings.Builder
		sb.WriteString(e.Tag)
		sb.WriteByte('[')
		if e.Start != 0 {
			sb.WriteString(strconv.Itoa(e.Start))
		}
		sb.WriteByte(':')
		if e.End != 0 {
			sb.WriteByte('-')
			sb.WriteString(strconv.Itoa(e.End))
		}
		sb.WriteByte(']')
		return sb.String()
	case e.Index >= 0:
		return e.Tag + "[" + strconv.Itoa(e.Index+1) + "]"
	default:
		return e.Tag
	}
}

// Path is an immutable sequence of steps from a root. Methods that change a
// step return a copy.
type Path []Entry

func (p Path) String() string {
	var sb strings.Builder
	for _, e := range p {
		sb.WriteByte('/')
		sb.WriteString(e.String())
	}
	return sb.String()
}

// Key returns a string that is equal for structurally equal paths.
func (p Path) Key() string { return p.String() }

// Equal reports structural equality.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Last returns the last step.
func (p Path) Last() Entry { return p[len(p)-1] }

// With returns a copy of p with step i replaced.
func (p Path) With(i int, e Entry) Path {
	q := make(Path, len(p))
	copy(q, p)
	q[i] = e
	return q
}

// Append returns a copy of p extended by e.
func (p Path) Append(e Entry) Path {
	q := make(Path, len(p), len(p)+1)
	copy(q, p)
	return append(q, e)
}

// Suffix returns the last n steps (all of them when n exceeds the length).
func (p Path) Suffix(n int) Path {
	return p[max(0, len(p)-n):]
}

// NoIndexString renders the path with indices and ranges dropped.
func (p Path) NoIndexString() string {
	var sb strings.Builder
	for _, e := range p {
		sb.WriteByte('/')
		sb.WriteString(e.Tag)
	}
	return sb.String()
}

// Execute replays p from root and returns the matched nodes that carry text, in document order.
func Execute(p Path, root *tree.Node) ([]*tree.Node, error) {
	if len(p) == 0 || !p[0].MatchTag(root) {
		return nil, fmt.Errorf("%w: node %q, path %s", ErrPathMismatch, root.Tag, p)
	}
	var out []*tree.Node
	execute(p, 0, root, &out)
	return out, nil
}

func execute(p Path, i int, n *tree.Node, out *[]*tree.Node) {
	if i == len(p)-1 {
		if n.HasText() {
			*out = append(*out, n)
		}
		return
	}
	next := p[i+1]
	switch {
	case next.Ranged:
		children := n.ChildrenOfTag(next.Tag)
		start, end := next.Start, len(children)-next.End
		if start >= end {
			return
		}
		for _, c := range children[start:end] {
			execute(p, i+1, c, out)
		}
	case next.Index >= 0:
		if c := n.ChildOfTag(next.Tag, next.Index); c != nil {
			execute(p, i+1, c, out)
		}
	default:
		for _, c := range n.ChildrenOfTag(next.Tag) {
			execute(p, i+1, c, out)
		}
	}
}

package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ppasupat/web-entity-extractor-ACL2014/candidate"
	"github.com/ppasupat/web-entity-extractor-ACL2014/feature"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/textutil"
	"github.com/ppasupat/web-entity-extractor-ACL2014/tree"
)

// Entity fires features on the entity strings of a group.
type Entity struct {
	CountEntities bool
}

func (Entity) Domain() string { return "entity" }

func (e Entity) ExtractGroup(g *candidate.Group, v feature.Vector) {
	const domain = "entity"
	entities := newCounter[string]()
	phraseShapes := newCounter[string]()
	wordShapes := newCounter[string]()
	numWords := newCounter[int]()
	for _, ent := range g.Entities {
		entities.add(ent)
		shape := textutil.PhraseShape(ent)
		phraseShapes.add(shape)
		words := strings.Split(shape, " ")
		for _, w := range words {
			wordShapes.add(w)
		}
		numWords.add(len(words))
	}
	if e.CountEntities {
		addQuantized(v, domain, "num-entities", float64(g.NumEntities()))
	}
	addEntropy(v, domain, "entity", entities)
	addDuplication(v, domain, "entity", entities)
	addVoting(v, domain, "phrase-shape", phraseShapes, defaultVoting)
	addVoting(v, domain, "word-shape", wordShapes, defaultVoting)
	addVoting(v, domain, "num-word", numWords, defaultVoting)
}

func (Entity) ExtractCandidate(*candidate.Candidate, feature.Vector) {}

// SelfOrAncestors votes on tag, id, class, number of children and child
// index of the selected nodes and of each ancestor level.
type SelfOrAncestors struct {
	MaxAncestorCount int
	Indexed          bool
}

func (SelfOrAncestors) Domain() string { return "self-or-ancestors" }

func (s SelfOrAncestors) ExtractGroup(g *candidate.Group, v feature.Vector) {
	const domain = "self-or-ancestors"
	current := distinctNodes(g.Nodes)
	for level := 0; level < s.MaxAncestorCount; level++ {
		tags := newCounter[string]()
		ids := newCounter[string]()
		classes := newCounter[string]()
		numChildren := newCounter[string]()
		childIndices := newCounter[int]()
		var parents []*tree.Node
		seen := make(map[*tree.Node]bool)
		for _, n := range current {
			tags.add(n.Tag)
			if id := n.Attr("id"); id != "" {
				ids.add(id)
			}
			if class := n.Attr("class"); class != "" {
				classes.add(class)
			}
			if k := n.NumChildren(); k <= 3 {
				numChildren.add(strconv.Itoa(k))
			} else {
				numChildren.add("many")
			}
			if p := n.Parent(); p != nil {
				childIndices.add(n.ChildIndex())
				if !seen[p] {
					seen[p] = true
					parents = append(parents, p)
				}
			}
		}
		if len(parents) == 0 {
			break
		}
		siblings := 0
		for _, p := range parents {
			siblings += p.NumChildren()
		}
		ratio := float64(len(current)) / float64(siblings)

		prefixes := []string{""}
		if s.Indexed {
			prefixes = append(prefixes, fmt.Sprintf("(n-%d)-", level))
		}
		for _, prefix := range prefixes {
			addVoting(v, domain, prefix+"tag", tags, defaultVoting)
			addVoting(v, domain, prefix+"id", ids, votingOpts{bagOfWords: true})
			addVoting(v, domain, prefix+"class", classes, votingOpts{bagOfWords: true})
			addVoting(v, domain, prefix+"num-children", numChildren, defaultVoting)
			addVoting(v, domain, prefix+"child-index", childIndices, votingOpts{})
			addPercent(v, domain, prefix+"children-of-parent", ratio)
			if len(parents) == 1 {
				v.Add(domain, prefix+"same-parent")
			}
		}
		current = parents
	}
}

func (SelfOrAncestors) ExtractCandidate(*candidate.Candidate, feature.Vector) {}

func distinctNodes(nodes []*tree.Node) []*tree.Node {
	seen := make(map[*tree.Node]bool, len(nodes))
	out := make([]*tree.Node, 0, len(nodes))
	for _, n := range nodes {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// NodeRange fires where the selection starts and ends within the page, and
// how much of it the selection spans.
type NodeRange struct{}

func (NodeRange) Domain() string { return "node-range" }

func (NodeRange) ExtractGroup(g *candidate.Group, v feature.Vector) {
	const domain = "node-range"
	if len(g.Nodes) == 0 {
		return
	}
	first, last := g.Nodes[0], g.Nodes[len(g.Nodes)-1]
	page := float64(first.Tree().Root().Out / 2)
	lo, hi := float64(first.InCollapsed), float64(last.InCollapsed)
	addPercent(v, domain, "length", (hi-lo)/page)
	addPercent(v, domain, "start", lo/page)
	addPercent(v, domain, "end", hi/page)
}

func (NodeRange) ExtractCandidate(*candidate.Candidate, feature.Vector) {}

// PathTail fires the last few steps of a candidate's path.
type PathTail struct {
	MaxAncestorCount int
}

func (PathTail) Domain() string { return "path-tail" }

func (PathTail) ExtractGroup(*candidate.Group, feature.Vector) {}

func (t PathTail) ExtractCandidate(c *candidate.Candidate, v feature.Vector) {
	const domain = "path-tail"
	p := c.Path
	for k := 1; k <= t.MaxAncestorCount && k <= len(p); k++ {
		v.Add(domain, p.Suffix(k).NoIndexString())
		e := p[len(p)-k]
		indexed := strconv.FormatBool(e.Index >= 0)
		prefix := fmt.Sprintf("(n-%d)-", k)
		v.Add(domain, prefix+"tag = "+e.Tag)
		v.Add(domain, prefix+"indexed = "+indexed)
		v.Add(domain, prefix+"tag-indexed = "+e.Tag+" "+indexed)
		v.Add(domain, "tail-tag = "+e.Tag)
		v.Add(domain, "tail-indexed = "+indexed)
		v.Add(domain, "tail-tag-indexed = "+e.Tag+" "+indexed)
	}
}

// CutRange fires on derived candidates how much was cut from their selection.
type CutRange struct{}

func (CutRange) Domain() string { return "cutrange" }

func (CutRange) ExtractGroup(*candidate.Group, feature.Vector) {}

func (CutRange) ExtractCandidate(c *candidate.Candidate, v feature.Vector) {
	if !c.Derived() || c.CutStart+c.CutEnd == 0 {
		return
	}
	tag := c.Path.Last().String()
	add := func(name string) {
		v.Add("cutrange", name)
		v.Add("cutrange", name+" | tag = "+tag)
	}
	add("has-cut")
	if c.CutStart == 1 && c.CutEnd == 0 {
		add("cut-first-only")
	}
	if c.CutStart == 0 && c.CutEnd == 1 {
		add("cut-last-only")
	}
	if c.CutStart > 0 {
		add("cut-front")
	}
	if c.CutEnd > 0 {
		add("cut-back")
	}
}

package candidate

import (
	"fmt"
	"log/slog"

	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/textutil"
	"github.com/ppasupat/web-entity-extractor-ACL2014/tree"
)

// Options controls path enumeration and group construction.
type Options struct {
	// Number of trailing path steps whose index may be dropped.
	MaxTweakDepth int
	// Selections must have more nodes than this to form a group.
	MinNumCandidateEntity    int
	UseAdvancedTreeTraverser bool
	// Maximum number of steps turned into wildcards (advanced only).
	AllowWildcards int
	// Maximum number of steps turned into end cuts (advanced only).
	AllowEndCuts int
	// Wildcards and end cuts apply only within this many trailing steps.
	MaxAdvancedTweakDepth int
	// Normalization level of predicted entities.
	LateNormalizeEntities int
}

// DefaultOptions returns the default enumeration options.
func DefaultOptions() Options {
	return Options{
		MaxTweakDepth:         8,
		MinNumCandidateEntity: 2,
		MaxAdvancedTweakDepth: 4,
		LateNormalizeEntities: textutil.LevelSimple,
	}
}

var blacklistedTags = map[string]bool{
	"html": true, "head": true, "body": true,
	"script": true, "noscript": true, "link": true, "style": true,
}

// Blacklisted reports whether paths should not end at n.
func Blacklisted(n *tree.Node) bool {
	return !n.HasText() || blacklistedTags[n.Tag]
}

// pathSet keeps distinct paths in insertion order.
type pathSet struct {
	seen  map[string]bool
	paths []Path
}

func newPathSet() *pathSet { return &pathSet{seen: make(map[string]bool)} }

func (s *pathSet) add(p Path) {
	k := p.Key()
	if s.seen[k] {
		return
	}
	s.seen[k] = true
	s.paths = append(s.paths, p)
}

// Enumerate runs the enumerator selected by opts.
func Enumerate(root *tree.Node, opts Options) []Path {
	if opts.UseAdvancedTreeTraverser {
		return EnumerateAdvanced(root, opts)
	}
	return EnumerateBasic(root, opts)
}

// EnumerateBasic returns the distinct paths to every non-blacklisted element
// under root, each with every combination of indices kept or dropped on the
// last MaxTweakDepth steps. The root step is never changed.
func EnumerateBasic(root *tree.Node, opts Options) []Path {
	set := newPathSet()
	var traverse func(n *tree.Node, p Path)
	traverse = func(n *tree.Node, p Path) {
		e := NewEntry(n.Tag)
		if parent := n.Parent(); parent != nil && parent.CountChildren(n.Tag) > 1 {
			e = IndexedEntry(n.Tag, n.ChildIndexOfSameTag())
		}
		p = p.Append(e)
		if !Blacklisted(n) {
			tweakIndices(p, 1, opts.MaxTweakDepth, set)
		}
		for _, c := range n.TagChildren() {
			traverse(c, p)
		}
	}
	traverse(root, nil)
	slog.Debug("Enumerated paths", "traverser", "basic", "paths", len(set.paths))
	return set.paths
}

func tweakIndices(p Path, depth, maxDepth int, set *pathSet) {
	n := len(p)
	if depth > maxDepth || depth >= n {
		set.add(p)
		return
	}
	tweakIndices(p, depth+1, maxDepth, set)
	if e := p[n-depth]; e.Index >= 0 {
		tweakIndices(p.With(n-depth, e.NoIndex()), depth+1, maxDepth, set)
	}
}

// rawStep describes a node on a root-to-node chain. Counts include only element siblings.
type rawStep struct {
	tag              string
	childIndex       int
	childIndexOfTag  int
	numSiblings      int
	numSiblingsOfTag int
}

func newRawStep(n *tree.Node) rawStep {
	s := rawStep{tag: n.Tag, numSiblings: 1, numSiblingsOfTag: 1}
	parent := n.Parent()
	if parent == nil {
		return s
	}
	s.numSiblings, s.numSiblingsOfTag = 0, 0
	for _, sib := range parent.TagChildren() {
		if sib == n {
			s.childIndex, s.childIndexOfTag = s.numSiblings, s.numSiblingsOfTag
		}
		s.numSiblings++
		if sib.Tag == n.Tag {
			s.numSiblingsOfTag++
		}
	}
	return s
}

func rawKey(chain []rawStep) string {
	return fmt.Sprint(chain)
}

// EnumerateAdvanced extends EnumerateBasic with wildcard steps and end cuts,
// bounded by AllowWildcards, AllowEndCuts and MaxAdvancedTweakDepth.
func EnumerateAdvanced(root *tree.Node, opts Options) []Path {
	var chains [][]rawStep
	seen := make(map[string]bool)
	var traverse func(n *tree.Node, chain []rawStep)
	traverse = func(n *tree.Node, chain []rawStep) {
		chain = append(chain[:len(chain):len(chain)], newRawStep(n))
		if !Blacklisted(n) {
			if k := rawKey(chain); !seen[k] {
				seen[k] = true
				chains = append(chains, chain)
			}
		}
		for _, c := range n.TagChildren() {
			traverse(c, chain)
		}
	}
	traverse(root, nil)

	set := newPathSet()
	for _, chain := range chains {
		p := make(Path, len(chain))
		for i, s := range chain {
			if s.numSiblingsOfTag == 1 {
				p[i] = NewEntry(s.tag)
			} else {
				p[i] = IndexedEntry(s.tag, s.childIndexOfTag)
			}
		}
		t := advancedTweaker{chain: chain, opts: opts, set: set}
		t.tweak(p, 1, 0, 0)
	}
	slog.Debug("Enumerated paths", "traverser", "advanced", "raw", len(chains), "paths", len(set.paths))
	return set.paths
}

type advancedTweaker struct {
	chain []rawStep
	opts  Options
	set   *pathSet
}

func (t *advancedTweaker) tweak(p Path, depth, wildcards, endCuts int) {
	n := len(p)
	if depth > t.opts.MaxTweakDepth || depth >= n {
		t.set.add(p)
		return
	}
	t.tweak(p, depth+1, wildcards, endCuts)
	i := n - depth
	e, raw := p[i], t.chain[i]
	if e.Index >= 0 {
		t.tweak(p.With(i, e.NoIndex()), depth+1, wildcards, endCuts)
	}
	if depth > t.opts.MaxAdvancedTweakDepth {
		return
	}
	if endCuts < t.opts.AllowEndCuts {
		count := raw.numSiblingsOfTag
		if e.Tag == Wildcard {
			count = raw.numSiblings
		}
		if count > 1 {
			t.tweak(p.With(i, RangeEntry(e.Tag, 1, 0)), depth+1, wildcards, endCuts+1)
			t.tweak(p.With(i, RangeEntry(e.Tag, 0, 1)), depth+1, wildcards, endCuts+1)
		}
	}
	if wildcards < t.opts.AllowWildcards && e.Tag != Wildcard {
		w := NewEntry(Wildcard)
		if raw.numSiblings > 1 {
			w = IndexedEntry(Wildcard, raw.childIndex)
		}
		t.tweak(p.With(i, w), depth, wildcards+1, endCuts)
	}
}

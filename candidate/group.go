package candidate

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/ppasupat/web-entity-extractor-ACL2014/feature"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/textutil"
	"github.com/ppasupat/web-entity-extractor-ACL2014/reward"
	"github.com/ppasupat/web-entity-extractor-ACL2014/tree"
)

// Group is a distinct node selection shared by one or more candidates.
type Group struct {
	Nodes []*tree.Node
	// Entities holds one normalized string per node, in selection order.
	Entities []string
	// Answer judges the entities. Nil when the page has no answer key.
	Answer reward.ExpectedAnswer

	candidates []*Candidate

	featureOnce sync.Once
	features    feature.Vector

	wordVecOnce sync.Once
	wordVec     []float64
}

// NewGroup normalizes the texts of nodes at level into the group's entities.
func NewGroup(nodes []*tree.Node, answer reward.ExpectedAnswer, level int) *Group {
	g := &Group{
		Nodes:    append([]*tree.Node(nil), nodes...),
		Entities: make([]string, len(nodes)),
		Answer:   answer,
	}
	for i, n := range nodes {
		text, _ := n.FullText()
		g.Entities[i] = textutil.Normalize(text, level)
	}
	return g
}

// NumEntities returns the selection size.
func (g *Group) NumEntities() int { return len(g.Entities) }

// Candidates returns the candidates of the group.
func (g *Group) Candidates() []*Candidate { return g.candidates }

// AddCandidate attaches a new candidate for path p executed from root.
func (g *Group) AddCandidate(p Path, root *tree.Node) *Candidate {
	c := &Candidate{Path: p, Root: root, Group: g}
	g.candidates = append(g.candidates, c)
	return c
}

// Reward returns the answer's reward for the entities, or 0 without an answer.
func (g *Group) Reward() float64 {
	if g.Answer == nil {
		return 0
	}
	return g.Answer.Reward(g.Entities)
}

// PopulateFeatures runs fill on a fresh vector the first time it is called.
func (g *Group) PopulateFeatures(fill func(v feature.Vector)) {
	g.featureOnce.Do(func() {
		v := make(feature.Vector)
		fill(v)
		g.features = v
	})
}

// Features returns the group's feature vector, nil before population.
func (g *Group) Features() feature.Vector { return g.features }

// AveragedWordVector computes the group's entity vector once with compute.
func (g *Group) AveragedWordVector(compute func(entities []string) []float64) []float64 {
	g.wordVecOnce.Do(func() { g.wordVec = compute(g.Entities) })
	return g.wordVec
}

// Sample renders a few entities for logs.
func (g *Group) Sample(limit int) string {
	return SampleEntities(g.Entities, limit)
}

// SampleEntities quotes up to limit entities, eliding the middle of longer lists.
func SampleEntities(entities []string, limit int) string {
	quote := func(ss []string) []string {
		out := make([]string, len(ss))
		for i, s := range ss {
			out[i] = strconv.Quote(s)
		}
		return out
	}
	n := len(entities)
	if limit <= 0 || n <= limit {
		return fmt.Sprintf("%d [%s]", n, strings.Join(quote(entities), ", "))
	}
	head := (limit + 1) / 2
	tail := limit - head
	parts := append(quote(entities[:head]), "...")
	parts = append(parts, quote(entities[n-tail:])...)
	return fmt.Sprintf("%d [%s]", n, strings.Join(parts, ", "))
}

// Candidate pairs a path with the group its selection belongs to.
type Candidate struct {
	Path  Path
	Root  *tree.Node
	Group *Group
	// Cut amounts of a derived candidate; its group holds the trimmed selection.
	CutStart, CutEnd int
	derived          bool

	featureOnce sync.Once
	features    feature.Vector
}

// PredictedEntities returns the group's entities. The slice is shared.
func (c *Candidate) PredictedEntities() []string { return c.Group.Entities }

// NumEntities returns the size of the selection.
func (c *Candidate) NumEntities() int { return c.Group.NumEntities() }

// Reward returns the group's reward.
func (c *Candidate) Reward() float64 { return c.Group.Reward() }

// Derived reports whether the candidate was cut from another one.
func (c *Candidate) Derived() bool { return c.derived }

// PopulateFeatures runs fill on a fresh vector the first time it is called.
func (c *Candidate) PopulateFeatures(fill func(v feature.Vector)) {
	c.featureOnce.Do(func() {
		v := make(feature.Vector)
		fill(v)
		c.features = v
	})
}

// Features returns the candidate's own feature vector, nil before population.
func (c *Candidate) Features() feature.Vector { return c.features }

// CombinedFeatures sums the candidate's and the group's features.
func (c *Candidate) CombinedFeatures() feature.Vector {
	return feature.Combine(c.features, c.Group.features)
}

// Pattern renders the path, followed by the kept range for derived candidates.
func (c *Candidate) Pattern() string {
	if !c.derived {
		return c.Path.String()
	}
	end := c.CutStart + c.NumEntities()
	return fmt.Sprintf("%s [%d:%d]", c.Path, c.CutStart, end)
}

func (c *Candidate) String() string { return c.Pattern() }

// Populator fills candidate and group features.
type Populator interface {
	PopulateGroup(g *Group)
	PopulateCandidate(c *Candidate)
}

// Set is the result of candidate generation for one page.
type Set struct {
	Groups     []*Group
	Candidates []*Candidate
}

// Generate enumerates paths on every tree, executes them, and collects
// candidates into distinct groups. Groups are keyed per tree by their
// ordered node selection. A nil populator leaves features unset.
func Generate(trees []*tree.Tree, answer reward.ExpectedAnswer, pop Populator, opts Options) (*Set, error) {
	s := &Set{}
	for _, t := range trees {
		root := t.Root()
		if root == nil {
			continue
		}
		byNodes := make(map[string]*Group)
		for _, p := range Enumerate(root, opts) {
			nodes, err := Execute(p, root)
			if err != nil {
				return nil, err
			}
			if len(nodes) <= opts.MinNumCandidateEntity {
				continue
			}
			key := selectionKey(nodes)
			g, ok := byNodes[key]
			if !ok {
				g = NewGroup(nodes, answer, opts.LateNormalizeEntities)
				byNodes[key] = g
				s.Groups = append(s.Groups, g)
			}
			s.Candidates = append(s.Candidates, g.AddCandidate(p, root))
		}
	}
	slog.Debug("Generated candidates", "candidates", len(s.Candidates), "groups", len(s.Groups))
	if pop != nil {
		for _, g := range s.Groups {
			pop.PopulateGroup(g)
		}
		for _, c := range s.Candidates {
			pop.PopulateCandidate(c)
		}
	}
	return s, nil
}

func selectionKey(nodes []*tree.Node) string {
	var sb strings.Builder
	for i, n := range nodes {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(n.ID))
	}
	return sb.String()
}

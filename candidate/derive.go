package candidate

import (
	"errors"
	"fmt"
)

// ErrUnknownDeriveType is returned for an unrecognized derived candidate type.
var ErrUnknownDeriveType = errors.New("candidate: unknown derived candidate type")

// DeriveFunc expands a candidate into related candidates.
type DeriveFunc func(c *Candidate, pop Populator, opts Options) []*Candidate

// DeriveByName returns the derive function registered under name.
func DeriveByName(name string) (DeriveFunc, error) {
	switch name {
	case "cutrange":
		return CutRange, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDeriveType, name)
}

const (
	maxFrontCut = 5
	maxBackCut  = 10
)

// CutRange derives candidates that drop a few nodes from the front or the
// back of c's selection, keeping more than MinNumCandidateEntity nodes. Each
// derived candidate gets its own group with features populated.
func CutRange(c *Candidate, pop Populator, opts Options) []*Candidate {
	nodes := c.Group.Nodes
	n := len(nodes)
	room := n - opts.MinNumCandidateEntity
	var out []*Candidate
	add := func(start, end int) {
		g := NewGroup(nodes[start:n-end], c.Group.Answer, opts.LateNormalizeEntities)
		d := g.AddCandidate(c.Path, c.Root)
		d.CutStart, d.CutEnd, d.derived = start, end, true
		out = append(out, d)
	}
	for i := 1; i < min(maxFrontCut, room); i++ {
		add(i, 0)
	}
	for i := 1; i < min(maxBackCut, room); i++ {
		add(0, i)
	}
	if pop != nil {
		for _, d := range out {
			pop.PopulateGroup(d.Group)
			pop.PopulateCandidate(d)
		}
	}
	return out
}

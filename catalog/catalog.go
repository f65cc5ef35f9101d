// Package catalog holds the feature extractors that describe candidates and
// groups, and runs them in registration order.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ppasupat/web-entity-extractor-ACL2014/candidate"
	"github.com/ppasupat/web-entity-extractor-ACL2014/feature"
)

// ErrUnknownDomain is returned for an unregistered feature domain.
var ErrUnknownDomain = errors.New("catalog: unknown feature domain")

// BasicDomain holds the bias feature. It is always on.
const BasicDomain = "basic"

// Extractor fires the features of one domain.
type Extractor interface {
	Domain() string
	ExtractGroup(g *candidate.Group, v feature.Vector)
	ExtractCandidate(c *candidate.Candidate, v feature.Vector)
}

// Options selects and tunes the extractors.
type Options struct {
	// Domains to run. Empty means every registered domain.
	Include []string
	// Domains to skip when Include is empty.
	Exclude []string
	// Number of ancestor levels the node and path features look at.
	MaxAncestorCount int
	// Fire "num-entities >= k" features on groups.
	CountEntities bool
	// Fire self-or-ancestors features with a per-level prefix as well.
	IndexedAncestorFeatures bool
}

// DefaultOptions returns the default catalog options.
func DefaultOptions() Options {
	return Options{MaxAncestorCount: 5}
}

// DefaultExtractors returns the registered extractors in order.
func DefaultExtractors(opts Options) []Extractor {
	return []Extractor{
		Entity{CountEntities: opts.CountEntities},
		SelfOrAncestors{MaxAncestorCount: opts.MaxAncestorCount, Indexed: opts.IndexedAncestorFeatures},
		NodeRange{},
		PathTail{MaxAncestorCount: opts.MaxAncestorCount},
		CutRange{},
	}
}

// Catalog runs a list of extractors. It implements candidate.Populator.
type Catalog struct {
	extractors []Extractor
}

// New keeps the extractors of DefaultExtractors allowed by opts.
func New(opts Options) (*Catalog, error) {
	all := DefaultExtractors(opts)
	known := make([]string, len(all))
	for i, e := range all {
		known[i] = e.Domain()
	}
	for _, d := range append(slices.Clone(opts.Include), opts.Exclude...) {
		if !slices.Contains(known, d) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, d)
		}
	}
	c := &Catalog{}
	for _, e := range all {
		d := e.Domain()
		if len(opts.Include) > 0 && !slices.Contains(opts.Include, d) {
			continue
		}
		if len(opts.Include) == 0 && slices.Contains(opts.Exclude, d) {
			continue
		}
		c.extractors = append(c.extractors, e)
	}
	slog.Debug("Feature catalog", "domains", c.Domains())
	return c, nil
}

// NewWith runs exactly the given extractors.
func NewWith(extractors ...Extractor) *Catalog {
	return &Catalog{extractors: extractors}
}

// Domains lists the active domains in order.
func (c *Catalog) Domains() []string {
	out := make([]string, len(c.extractors))
	for i, e := range c.extractors {
		out[i] = e.Domain()
	}
	return out
}

// PopulateGroup fires the bias and every group feature, once per group.
func (c *Catalog) PopulateGroup(g *candidate.Group) {
	g.PopulateFeatures(func(v feature.Vector) {
		v.Add(BasicDomain, "bias")
		for _, e := range c.extractors {
			e.ExtractGroup(g, v)
		}
	})
}

// PopulateCandidate fires every candidate feature, once per candidate.
func (c *Catalog) PopulateCandidate(cand *candidate.Candidate) {
	cand.PopulateFeatures(func(v feature.Vector) {
		for _, e := range c.extractors {
			e.ExtractCandidate(cand, v)
		}
	})
}

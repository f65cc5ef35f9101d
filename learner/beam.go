package learner

import (
	"github.com/ppasupat/web-entity-extractor-ACL2014/candidate"
	"github.com/ppasupat/web-entity-extractor-ACL2014/dataset"
	"github.com/ppasupat/web-entity-extractor-ACL2014/feature"
)

// BeamOptions controls beam expansion.
type BeamOptions struct {
	Size int
	// Iterations up to this one train on the plain candidate list.
	TrainStartIter int
	// Name of the candidate.DeriveFunc used to expand the beam.
	CandidateType string
}

// DefaultBeamOptions returns the default beam options.
func DefaultBeamOptions() BeamOptions {
	return BeamOptions{Size: 500, TrainStartIter: 1, CandidateType: "cutrange"}
}

// Beam is MaxEnt over an expanded candidate list: the best Size candidates
// under the current weights, each followed by the candidates derived from it.
type Beam struct {
	*MaxEnt
	opts     BeamOptions
	derive   candidate.DeriveFunc
	candOpts candidate.Options
	pop      candidate.Populator
	// Derived candidates of the training examples, kept only while Learn runs.
	derived map[*candidate.Candidate][]*candidate.Candidate
}

// NewBeam creates an untrained beam learner.
func NewBeam(cfg Config) (*Beam, error) {
	derive, err := candidate.DeriveByName(cfg.Beam.CandidateType)
	if err != nil {
		return nil, err
	}
	m, err := NewMaxEnt(cfg)
	if err != nil {
		return nil, err
	}
	m.name = "beam"
	b := &Beam{
		MaxEnt:   m,
		opts:     cfg.Beam,
		derive:   derive,
		candOpts: cfg.Candidates,
		pop:      cfg.Populator,
	}
	m.trainingCandidates = b.trainingList
	return b, nil
}

func (b *Beam) trainingList(ex *dataset.Example) []*candidate.Candidate {
	if b.trainIter <= b.opts.TrainStartIter {
		return b.baseCandidates(ex)
	}
	return b.beam(ex, b.expand)
}

// Learn trains like MaxEnt. Derived candidates are reused across the
// iterations of one call and released when it returns.
func (b *Beam) Learn(d *dataset.Dataset, extra feature.Matcher) error {
	b.derived = make(map[*candidate.Candidate][]*candidate.Candidate)
	defer func() { b.derived = nil }()
	return b.MaxEnt.Learn(d, extra)
}

func (b *Beam) beam(ex *dataset.Example, expand func(*candidate.Candidate) []*candidate.Candidate) []*candidate.Candidate {
	ranked := b.rank(ex, b.baseCandidates(ex))
	ranked = ranked[:min(b.opts.Size, len(ranked))]
	out := make([]*candidate.Candidate, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.Candidate)
		out = append(out, expand(s.Candidate)...)
	}
	return out
}

func (b *Beam) expand(c *candidate.Candidate) []*candidate.Candidate {
	if b.derived == nil {
		return b.deriveFresh(c)
	}
	if d, ok := b.derived[c]; ok {
		return d
	}
	d := b.deriveFresh(c)
	b.derived[c] = d
	return d
}

func (b *Beam) deriveFresh(c *candidate.Candidate) []*candidate.Candidate {
	return b.derive(c, b.pop, b.candOpts)
}

// Rank scores the expanded candidate list of ex. Nothing derived here is
// retained by the learner.
func (b *Beam) Rank(ex *dataset.Example) ([]Scored, error) {
	if b.params == nil {
		return nil, ErrNotTrained
	}
	return b.rank(ex, b.beam(ex, b.deriveFresh)), nil
}

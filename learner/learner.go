// Package learner ranks the candidates of an example with a trained model.
//
// Three learners are registered: "maxent" (a log-linear model trained by
// stochastic gradient ascent on the reward-weighted likelihood), "beam"
// (maxent whose training and ranking lists are expanded with derived
// candidates), and "baseline" (frequency of path suffixes seen on positive
// candidates).
package learner

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/ppasupat/web-entity-extractor-ACL2014/candidate"
	"github.com/ppasupat/web-entity-extractor-ACL2014/dataset"
	"github.com/ppasupat/web-entity-extractor-ACL2014/feature"
)

var (
	// ErrUnknownLearner is returned by New for an unregistered name.
	ErrUnknownLearner = errors.New("learner: unknown learner")
	// ErrNotTrained is returned when ranking before Learn or Load.
	ErrNotTrained = errors.New("learner: model is neither trained nor loaded")
)

// Learner trains on a dataset and ranks the candidates of an example.
// Learners are not safe for concurrent use.
type Learner interface {
	// Learn trains on d.Train. A non-nil matcher restricts the features used.
	Learn(d *dataset.Dataset, m feature.Matcher) error
	// Rank returns the candidates of ex sorted by descending score.
	Rank(ex *dataset.Example) ([]Scored, error)
	// SetTester installs a callback run after every training iteration.
	SetTester(t Tester)
	Save(path string) error
	Load(path string) error
}

// Scored is a candidate with its model score.
type Scored struct {
	Candidate *candidate.Candidate
	Score     float64
}

// Tester evaluates the learner while it trains.
type Tester interface {
	Run(iteration int) error
	Summarize()
}

// WordVectors averages embeddings over phrases.
type WordVectors interface {
	Dim() int
	Average(phrases []string) []float64
}

// Config gathers the options of every learner.
type Config struct {
	MaxEnt   MaxEntOptions
	Params   ParamsOptions
	Beam     BeamOptions
	Baseline BaselineOptions
	// Options and populator for derived candidates.
	Candidates candidate.Options
	Populator  candidate.Populator
	// WordVectors enables the bilinear query/entity term when not nil.
	WordVectors WordVectors
	// Quiet turns training progress logs down to debug level.
	Quiet bool
}

// DefaultConfig returns the default options of every learner.
func DefaultConfig() Config {
	return Config{
		MaxEnt:     DefaultMaxEntOptions(),
		Params:     DefaultParamsOptions(),
		Beam:       DefaultBeamOptions(),
		Baseline:   DefaultBaselineOptions(),
		Candidates: candidate.DefaultOptions(),
	}
}

// Names lists the registered learners.
var Names = []string{"maxent", "beam", "baseline"}

// New creates the learner registered under name.
func New(name string, cfg Config) (Learner, error) {
	switch name {
	case "maxent":
		return NewMaxEnt(cfg)
	case "beam", "beamsearch":
		return NewBeam(cfg)
	case "base", "baseline":
		return NewBaseline(cfg), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLearner, name)
}

// sortScored orders by descending score, keeping the input order of ties.
func sortScored(s []Scored) {
	slices.SortStableFunc(s, func(a, b Scored) int { return cmp.Compare(b.Score, a.Score) })
}

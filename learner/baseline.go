package learner

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/ppasupat/web-entity-extractor-ACL2014/candidate"
	"github.com/ppasupat/web-entity-extractor-ACL2014/dataset"
	"github.com/ppasupat/web-entity-extractor-ACL2014/feature"
)

// BaselineOptions controls the path frequency baseline.
type BaselineOptions struct {
	// Score only table columns (.../tr/td[1]) by their size. No training.
	OnlyTables   bool
	SuffixLength int
	// Score a known suffix by the candidate's entity count instead of its frequency.
	UseMaxSize     bool
	MaxNumPatterns int
}

// DefaultBaselineOptions returns the default baseline options.
func DefaultBaselineOptions() BaselineOptions {
	return BaselineOptions{SuffixLength: 5, MaxNumPatterns: 1000}
}

var (
	tableRow  = candidate.NewEntry("tr")
	tableCell = candidate.IndexedEntry("td", 0)
)

// Baseline remembers the path suffixes of positive training candidates and
// prefers candidates whose suffix was seen most often.
type Baseline struct {
	opts    BaselineOptions
	tester  Tester
	counts  map[string]float64
	trained bool
}

// NewBaseline creates an untrained baseline.
func NewBaseline(cfg Config) *Baseline {
	return &Baseline{opts: cfg.Baseline}
}

func (b *Baseline) SetTester(t Tester) { b.tester = t }

func (b *Baseline) suffix(c *candidate.Candidate) string {
	return c.Path.Suffix(b.opts.SuffixLength).NoIndexString()
}

// Learn counts suffixes. The matcher is ignored.
func (b *Baseline) Learn(d *dataset.Dataset, _ feature.Matcher) error {
	b.counts = make(map[string]float64)
	b.trained = true
	if b.opts.OnlyTables {
		slog.Info("Using only tables, no training")
	} else {
		d.CacheRewards()
		all := make(map[string]float64)
		for _, ex := range d.Train {
			for _, c := range ex.Candidates() {
				if c.Reward() > 0 {
					all[b.suffix(c)]++
				}
			}
		}
		top := sortedWeights(all)
		for _, w := range top[:min(b.opts.MaxNumPatterns, len(top))] {
			b.counts[w.Key] = w.Value
		}
		slog.Info("Found path patterns", "patterns", len(b.counts), "distinct", len(all))
	}
	if b.tester != nil {
		return b.tester.Run(1)
	}
	return nil
}

func (b *Baseline) score(c *candidate.Candidate) float64 {
	if b.opts.OnlyTables {
		p := c.Path
		n := len(p)
		if n >= 2 && p[n-2] == tableRow && p[n-1] == tableCell {
			return float64(c.NumEntities())
		}
		return 0
	}
	freq, ok := b.counts[b.suffix(c)]
	if !ok {
		return 0
	}
	if b.opts.UseMaxSize {
		return float64(c.NumEntities())
	}
	return freq
}

// Rank scores the candidates of ex.
func (b *Baseline) Rank(ex *dataset.Example) ([]Scored, error) {
	if !b.trained {
		return nil, ErrNotTrained
	}
	cands := ex.Candidates()
	out := make([]Scored, len(cands))
	for i, c := range cands {
		out[i] = Scored{Candidate: c, Score: b.score(c)}
	}
	sortScored(out)
	return out, nil
}

// Save writes "suffix<TAB>count" lines, most frequent first.
func (b *Baseline) Save(path string) error {
	if !b.trained {
		return ErrNotTrained
	}
	return saveFile(path, func(w io.Writer) error { return writeTSV(w, b.counts) })
}

// Load reads counts written by Save.
func (b *Baseline) Load(path string) error {
	return loadFile(path, func(r io.Reader) error {
		m, err := readTSV(r)
		if err != nil {
			return fmt.Errorf("read baseline patterns: %w", err)
		}
		for k, v := range m {
			if v < 0 || v != math.Trunc(v) {
				return fmt.Errorf("read baseline patterns: %q has count %v", k, v)
			}
		}
		b.counts = m
		b.trained = true
		return nil
	})
}

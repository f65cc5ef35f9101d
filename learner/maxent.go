package learner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/ppasupat/web-entity-extractor-ACL2014/candidate"
	"github.com/ppasupat/web-entity-extractor-ACL2014/dataset"
	"github.com/ppasupat/web-entity-extractor-ACL2014/feature"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/metrics"
)

// MaxEntOptions controls log-linear training.
type MaxEntOptions struct {
	NumTrainIters int
	// L2 regularization strength.
	Beta float64
	// L1 regularization strength, spread over the examples of an iteration.
	Lambda float64
	// Drop weights smaller than this in magnitude after training.
	PruneSmallFeaturesThreshold float64
	// Use only features seen in at least this many training examples.
	FeatureMinimumCount int
	// Train and rank on the first candidate of each group only.
	OnlyFirstCandidatePerGroup bool
}

// DefaultMaxEntOptions returns the default training options.
func DefaultMaxEntOptions() MaxEntOptions {
	return MaxEntOptions{NumTrainIters: 3, Beta: 0.01}
}

// WordVectorSuffix is appended to the params path to store the bilinear term.
const WordVectorSuffix = ".wordvec"

// MaxEnt scores a candidate by w . (candidate features + group features),
// plus the bilinear query/entity term when word vectors are configured,
// and trains w by maximizing the reward-weighted log-likelihood.
type MaxEnt struct {
	name       string
	opts       MaxEntOptions
	paramsOpts ParamsOptions
	vectors    WordVectors
	quiet      bool
	tester     Tester

	params   *Params
	bilinear *Bilinear

	trainIter int
	// training list of an example; replaced by Beam.
	trainingCandidates func(ex *dataset.Example) []*candidate.Candidate
}

// NewMaxEnt creates an untrained MaxEnt learner.
func NewMaxEnt(cfg Config) (*MaxEnt, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	m := &MaxEnt{
		name:       "maxent",
		opts:       cfg.MaxEnt,
		paramsOpts: cfg.Params,
		vectors:    cfg.WordVectors,
		quiet:      cfg.Quiet,
	}
	m.trainingCandidates = m.baseCandidates
	return m, nil
}

func (m *MaxEnt) SetTester(t Tester) { m.tester = t }

// Params returns the learned weights, nil before training.
func (m *MaxEnt) Params() *Params { return m.params }

func (m *MaxEnt) log(msg string, args ...any) {
	level := slog.LevelInfo
	if m.quiet {
		level = slog.LevelDebug
	}
	slog.Log(context.Background(), level, msg, args...)
}

// baseCandidates returns the generated candidates of ex.
func (m *MaxEnt) baseCandidates(ex *dataset.Example) []*candidate.Candidate {
	if !m.opts.OnlyFirstCandidatePerGroup {
		return ex.Candidates()
	}
	var out []*candidate.Candidate
	for _, g := range ex.Groups() {
		if cs := g.Candidates(); len(cs) > 0 {
			out = append(out, cs[0])
		}
	}
	return out
}

func (m *MaxEnt) score(ex *dataset.Example, c *candidate.Candidate, matcher feature.Matcher) float64 {
	s := c.Features().Dot(m.params, matcher) + c.Group.Features().Dot(m.params, matcher)
	if m.bilinear != nil {
		s += m.bilinear.Score(ex.PhraseVector(m.vectors.Average), c.Group.AveragedWordVector(m.vectors.Average))
	}
	return s
}

// Rank scores the candidates of ex.
func (m *MaxEnt) Rank(ex *dataset.Example) ([]Scored, error) {
	if m.params == nil {
		return nil, ErrNotTrained
	}
	return m.rank(ex, m.baseCandidates(ex)), nil
}

func (m *MaxEnt) rank(ex *dataset.Example, cands []*candidate.Candidate) []Scored {
	out := make([]Scored, len(cands))
	for i, c := range cands {
		out[i] = Scored{Candidate: c, Score: m.score(ex, c, nil)}
	}
	sortScored(out)
	return out
}

// Learn trains on d.Train with a fresh set of weights.
func (m *MaxEnt) Learn(d *dataset.Dataset, extra feature.Matcher) error {
	d.CacheRewards()
	var matcher feature.Matcher
	if m.opts.FeatureMinimumCount > 0 {
		pruner := feature.NewCountPruner()
		for _, ex := range d.Train {
			vs := make([]feature.Vector, 0, len(ex.Candidates()))
			for _, c := range ex.Candidates() {
				vs = append(vs, c.CombinedFeatures())
			}
			pruner.AddExample(vs...)
		}
		pruner.ApplyThreshold(m.opts.FeatureMinimumCount)
		m.log("Pruned rare features", "min_count", m.opts.FeatureMinimumCount, "kept", pruner.Len())
		matcher = pruner
	}
	if extra != nil {
		matcher = extra
	}

	var err error
	if m.params, err = NewParams(m.paramsOpts); err != nil {
		return err
	}
	m.bilinear = nil
	if m.vectors != nil {
		if m.bilinear, err = NewBilinear(m.vectors.Dim(), m.paramsOpts); err != nil {
			return err
		}
	}

	for m.trainIter = 1; m.trainIter <= m.opts.NumTrainIters; m.trainIter++ {
		start := time.Now()
		updated, skipped := 0, 0
		for _, ex := range d.Train {
			ok, err := m.gradientUpdate(ex, m.trainingCandidates(ex), matcher)
			if err != nil {
				metrics.GradientUpdates.WithLabelValues(metrics.Error).Inc()
				return fmt.Errorf("learner: example %s: %w", ex.ID, err)
			}
			if !ok {
				skipped++
				metrics.GradientUpdates.WithLabelValues("skipped").Inc()
				slog.Debug("Skip example", "example", ex.ID)
				continue
			}
			updated++
			metrics.GradientUpdates.WithLabelValues("updated").Inc()
			m.applyL1(m.opts.Lambda / float64(len(d.Train)))
		}
		metrics.IterationDuration.WithLabelValues(m.name).Observe(time.Since(start).Seconds())
		m.log("Finished iteration", "learner", m.name, "iteration", m.trainIter, "of", m.opts.NumTrainIters,
			"updated", updated, "skipped", skipped, "features", m.params.Len(), "elapsed", time.Since(start))
		if m.tester != nil {
			if err := m.tester.Run(m.trainIter); err != nil {
				return err
			}
		}
	}
	if m.tester != nil && !m.quiet {
		m.tester.Summarize()
	}
	if t := m.opts.PruneSmallFeaturesThreshold; t > 0 {
		n := m.params.Prune(t)
		m.log("Pruned small weights", "threshold", t, "pruned", n, "kept", m.params.Len())
	}
	return nil
}

func (m *MaxEnt) applyL1(cutoff float64) {
	m.params.ApplyL1(cutoff)
	if m.bilinear != nil {
		m.bilinear.applyL1(cutoff)
	}
}

// gradientUpdate takes one step on the candidates of an example. The
// gradient of the log-likelihood is sum_i f_i * (q_i - p_i), where p is the
// model distribution and q is p reweighted by the rewards. It reports false
// without updating when no candidate has a positive reward.
func (m *MaxEnt) gradientUpdate(ex *dataset.Example, cands []*candidate.Candidate, matcher feature.Matcher) (bool, error) {
	diff := m.expectationDiff(ex, cands, matcher)
	if diff == nil {
		return false, nil
	}
	grad := make(map[string]float64)
	for i, c := range cands {
		c.Group.Features().Increment(diff[i], grad, matcher)
		c.Features().Increment(diff[i], grad, matcher)
	}
	if m.opts.Beta != 0 {
		for k := range grad {
			grad[k] -= m.opts.Beta * m.params.Weight(k)
		}
	}
	if err := m.params.Update(grad); err != nil {
		return false, err
	}

	if m.bilinear != nil {
		g := m.bilinear.newGradient()
		x := ex.PhraseVector(m.vectors.Average)
		for i, c := range cands {
			g.add(x, c.Group.AveragedWordVector(m.vectors.Average), diff[i])
		}
		g.addL2(m.bilinear, m.opts.Beta)
		if err := m.bilinear.update(g); err != nil {
			return false, err
		}
	}
	return true, nil
}

// expectationDiff returns q_i - p_i for every candidate, or nil when either
// distribution has no mass.
func (m *MaxEnt) expectationDiff(ex *dataset.Example, cands []*candidate.Candidate, matcher feature.Matcher) []float64 {
	p := make([]float64, len(cands))
	q := make([]float64, len(cands))
	for i, c := range cands {
		p[i] = m.score(ex, c, matcher)
		q[i] = p[i] + math.Log(c.Reward())
	}
	if !expNormalize(p) || !expNormalize(q) {
		return nil
	}
	for i := range q {
		q[i] -= p[i]
	}
	return q
}

// expNormalize turns log weights into probabilities in place. It reports
// false when the weights have no mass.
func expNormalize(xs []float64) bool {
	mx := math.Inf(-1)
	for _, x := range xs {
		if x > mx {
			mx = x
		}
	}
	if math.IsInf(mx, 0) || math.IsNaN(mx) {
		return false
	}
	sum := 0.0
	for i, x := range xs {
		xs[i] = math.Exp(x - mx)
		sum += xs[i]
	}
	if sum == 0 || math.IsNaN(sum) {
		return false
	}
	for i := range xs {
		xs[i] /= sum
	}
	return true
}

// Contribution is the part of a score due to one feature.
type Contribution struct {
	Key    string
	Value  float64
	Weight float64
}

func (c Contribution) Product() float64 { return c.Value * c.Weight }

// FeatureDiff lists the features whose contributions differ between truth
// and pred, largest difference first.
func (m *MaxEnt) FeatureDiff(truth, pred *candidate.Candidate) []Contribution {
	if m.params == nil {
		return nil
	}
	diff := truth.CombinedFeatures()
	for k, v := range pred.CombinedFeatures() {
		diff[k] -= v
	}
	var out []Contribution
	for _, k := range diff.Keys() {
		c := Contribution{Key: k, Value: diff[k], Weight: m.params.Weight(k)}
		if c.Product() != 0 {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b Contribution) int {
		return cmp.Compare(math.Abs(b.Product()), math.Abs(a.Product()))
	})
	return out
}

// Save writes the weights to path and the bilinear term next to it.
func (m *MaxEnt) Save(path string) error {
	if m.params == nil {
		return ErrNotTrained
	}
	if err := m.params.Save(path); err != nil {
		return fmt.Errorf("learner: save params: %w", err)
	}
	if m.bilinear != nil {
		if err := saveFile(path+WordVectorSuffix, m.bilinear.Write); err != nil {
			return fmt.Errorf("learner: save word vector weights: %w", err)
		}
	}
	return nil
}

// Load reads weights written by Save.
func (m *MaxEnt) Load(path string) error {
	params, err := NewParams(m.paramsOpts)
	if err != nil {
		return err
	}
	if err := params.Load(path); err != nil {
		return fmt.Errorf("learner: load params: %w", err)
	}
	m.params = params
	m.bilinear = nil
	if m.vectors == nil {
		return nil
	}
	err = loadFile(path+WordVectorSuffix, func(r io.Reader) error {
		b, err := ReadBilinear(r, m.paramsOpts)
		if err != nil {
			return err
		}
		if b.Dim() != m.vectors.Dim() {
			return fmt.Errorf("word vector weights have dimension %d, vectors have %d", b.Dim(), m.vectors.Dim())
		}
		m.bilinear = b
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Model has no word vector weights", "path", path+WordVectorSuffix)
		return nil
	}
	if err != nil {
		return fmt.Errorf("learner: load word vector weights: %w", err)
	}
	return nil
}

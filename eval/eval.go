// Package eval measures how well a learner ranks the candidates of labeled
// examples.
//
// For every example the ranked list yields three candidates: pred (rank 1),
// firstTrue (the first likely correct one) and best (the most correct one).
// An example is a success when firstTrue is pred, a normal fail when
// firstTrue is further down, and a super fail when no candidate is likely
// correct.
package eval

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/ppasupat/web-entity-extractor-ACL2014/candidate"
	"github.com/ppasupat/web-entity-extractor-ACL2014/dataset"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/metrics"
	"github.com/ppasupat/web-entity-extractor-ACL2014/learner"
	"github.com/ppasupat/web-entity-extractor-ACL2014/reward"
)

// MaxK is the largest k reported for accuracy@k.
const MaxK = 10

// ErrNoAnswer is returned when evaluating an example without an answer key.
var ErrNoAnswer = errors.New("eval: example has no answer")

// CandidateStatistics is a candidate at a position of a ranked list.
type CandidateStatistics struct {
	Candidate *candidate.Candidate
	// 1-based position.
	Rank int
	// Number of distinct entity lists among the first Rank candidates.
	UniqueRank int
	Score      float64
}

// RankedStatistics annotates a ranked list with ranks and unique ranks.
func RankedStatistics(ranked []learner.Scored) []CandidateStatistics {
	out := make([]CandidateStatistics, len(ranked))
	seen := make(map[string]bool)
	for i, s := range ranked {
		seen[reward.ListKey(s.Candidate.PredictedEntities())] = true
		out[i] = CandidateStatistics{Candidate: s.Candidate, Rank: i + 1, UniqueRank: len(seen), Score: s.Score}
	}
	return out
}

// Outcome buckets an evaluated example.
type Outcome int

const (
	Success Outcome = iota
	NormalFail
	SuperFail
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NormalFail:
		return "normal_fail"
	case SuperFail:
		return "super_fail"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Case is one evaluated example. Candidate fields are nil when absent, and
// so are the scores computed from them.
type Case struct {
	Example *dataset.Example
	Outcome Outcome

	Pred, FirstTrue, Best *CandidateStatistics

	// Scores against the answer key.
	PredIR, FirstTrueIR, BestIR *reward.IRScore
	// Scores against the entities of Best.
	PredIROnBest, FirstTrueIROnBest *reward.IRScore
}

func irScore(a reward.ExpectedAnswer, s *CandidateStatistics) *reward.IRScore {
	if s == nil {
		return nil
	}
	score := a.IRScore(s.Candidate.PredictedEntities())
	return &score
}

func newCase(ex *dataset.Example, pred, firstTrue, best *CandidateStatistics) (*Case, error) {
	c := &Case{Example: ex, Pred: pred, FirstTrue: firstTrue, Best: best}
	switch {
	case firstTrue == nil:
		c.Outcome = SuperFail
	case firstTrue.Rank != 1:
		c.Outcome = NormalFail
	default:
		c.Outcome = Success
	}
	c.PredIR = irScore(ex.Answer, pred)
	c.FirstTrueIR = irScore(ex.Answer, firstTrue)
	c.BestIR = irScore(ex.Answer, best)
	if best != nil {
		opts := reward.DefaultOptions()
		opts.IRCriterion = "f1"
		onBest, err := reward.NewInjectiveMatch(reward.NearMatches(best.Candidate.PredictedEntities()...), opts)
		if err != nil {
			return nil, err
		}
		c.PredIROnBest = irScore(onBest, pred)
		c.FirstTrueIROnBest = irScore(onBest, firstTrue)
	}
	return c, nil
}

// Evaluator accumulates cases.
type Evaluator struct {
	Name    string
	learner learner.Learner

	NumExamples   int
	NumSuccess    int
	NumNormalFail int
	NumSuperFail  int
	NumFound      int
	// Sums of the F1 of pred against the answer key and against best.
	SumF1       float64
	SumF1OnBest float64

	Cases []*Case
	// Unique rank of firstTrue per example; math.MaxInt for super fails.
	firstTrueUniqueRanks map[int]int
}

// NewEvaluator returns an empty evaluator. The learner is used only to
// explain failures.
func NewEvaluator(name string, l learner.Learner) *Evaluator {
	return &Evaluator{Name: name, learner: l, firstTrueUniqueRanks: make(map[int]int)}
}

// Add records an example.
func (e *Evaluator) Add(ex *dataset.Example, pred, firstTrue, best *CandidateStatistics) (*Case, error) {
	c, err := newCase(ex, pred, firstTrue, best)
	if err != nil {
		return nil, err
	}
	e.NumExamples++
	switch c.Outcome {
	case SuperFail:
		e.NumSuperFail++
		e.firstTrueUniqueRanks[math.MaxInt]++
	case NormalFail:
		e.NumNormalFail++
		e.NumFound++
		e.firstTrueUniqueRanks[firstTrue.UniqueRank]++
	case Success:
		e.NumSuccess++
		e.NumFound++
		e.firstTrueUniqueRanks[firstTrue.UniqueRank]++
	}
	if c.PredIR != nil {
		e.SumF1 += c.PredIR.F1
	}
	if c.PredIROnBest != nil {
		e.SumF1OnBest += c.PredIROnBest.F1
	}
	e.Cases = append(e.Cases, c)
	metrics.Evaluations.WithLabelValues(c.Outcome.String()).Inc()
	return c, nil
}

// AccuracyAtK returns, for k in [0, maxK], the fraction of examples whose
// first likely correct list has unique rank at most k. Entry 0 is 0.
func (e *Evaluator) AccuracyAtK(maxK int) []float64 {
	acc := make([]float64, maxK+1)
	correct := 0
	for k := 1; k <= maxK; k++ {
		correct += e.firstTrueUniqueRanks[k]
		acc[k] = ratio(correct, e.NumExamples)
	}
	return acc
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// Statistics summarizes the evaluator.
func (e *Evaluator) Statistics() Statistics {
	return Statistics{
		NumExamples:   e.NumExamples,
		NumSuccess:    e.NumSuccess,
		NumNormalFail: e.NumNormalFail,
		NumSuperFail:  e.NumSuperFail,
		NumFound:      e.NumFound,
		Oracle:        ratio(e.NumFound, e.NumExamples),
		Accuracy:      ratio(e.NumSuccess, e.NumExamples),
		AccuracyFound: ratio(e.NumSuccess, e.NumFound),
		AvgF1:         safeDiv(e.SumF1, e.NumExamples),
		AvgF1OnBest:   safeDiv(e.SumF1OnBest, e.NumExamples),
		AccuracyAtK:   e.AccuracyAtK(MaxK),
	}
}

func safeDiv(x float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return x / float64(n)
}

// LogScores logs the aggregate scores.
func (e *Evaluator) LogScores() {
	s := e.Statistics()
	slog.Info("Evaluation", "suite", e.Name,
		"examples", s.NumExamples,
		"success", s.NumSuccess,
		"normal_fail", s.NumNormalFail,
		"super_fail", s.NumSuperFail,
		"oracle", percent(s.Oracle),
		"accuracy", percent(s.Accuracy),
		"accuracy_found", percent(s.AccuracyFound),
		"avg_f1", percent(s.AvgF1),
		"avg_f1_best", percent(s.AvgF1OnBest),
		"accuracy_at_k", formatPercents(s.AccuracyAtK[1:]))
}

const maxLoggedDiffs = 20

// featureDiffer is implemented by learners that can explain a score gap.
type featureDiffer interface {
	FeatureDiff(truth, pred *candidate.Candidate) []learner.Contribution
}

// LogDetails logs every failure at debug level.
func (e *Evaluator) LogDetails() {
	for _, c := range e.Cases {
		if c.Outcome == Success {
			continue
		}
		args := []any{"suite", e.Name, "outcome", c.Outcome.String(), "example", c.Example.String()}
		if c.Pred != nil {
			args = append(args, "pred", c.Pred.Candidate.Pattern(), "pred_ir", c.PredIR.String(),
				"pred_entities", c.Pred.Candidate.Group.Sample(6))
		}
		if c.FirstTrue != nil {
			args = append(args, "true", c.FirstTrue.Candidate.Pattern(), "true_rank", c.FirstTrue.Rank,
				"true_unique_rank", c.FirstTrue.UniqueRank, "true_ir", c.FirstTrueIR.String())
		}
		if c.Best != nil {
			args = append(args, "best", c.Best.Candidate.Pattern(), "best_ir", c.BestIR.String())
		}
		slog.Debug("Failed example", args...)

		fd, ok := e.learner.(featureDiffer)
		if !ok || c.Outcome != NormalFail {
			continue
		}
		diffs := fd.FeatureDiff(c.FirstTrue.Candidate, c.Pred.Candidate)
		for _, d := range diffs[:min(maxLoggedDiffs, len(diffs))] {
			slog.Debug("Feature difference (true - pred)", "example", c.Example.ID,
				"feature", d.Key, "value", d.Value, "weight", d.Weight, "product", d.Product())
		}
	}
}

// Options controls Test.
type Options struct {
	// Keep only candidates that contain the second target entity.
	UseSeed bool
}

// Test ranks every example with l and evaluates the rankings.
func Test(l learner.Learner, examples []*dataset.Example, name string, opts Options) (*Evaluator, error) {
	e := NewEvaluator(name, l)
	if len(examples) == 0 {
		slog.Warn("Cannot test on an empty list", "suite", name)
		return e, nil
	}
	for _, ex := range examples {
		if ex.Answer == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoAnswer, ex)
		}
		ranked, err := l.Rank(ex)
		if err != nil {
			return nil, fmt.Errorf("eval: rank %s: %w", ex, err)
		}
		if opts.UseSeed {
			ranked = filterSeed(ex.Answer, ranked)
		}
		stats := RankedStatistics(ranked)
		var pred, firstTrue, best *CandidateStatistics
		if len(stats) > 0 {
			pred = &stats[0]
		}
		lists := make([][]string, len(stats))
		for i, s := range stats {
			lists[i] = s.Candidate.PredictedEntities()
		}
		if i := reward.FindFirstTrue(ex.Answer, lists); i >= 0 {
			firstTrue = &stats[i]
		}
		if i := reward.FindBest(ex.Answer, lists); i >= 0 {
			best = &stats[i]
		}
		c, err := e.Add(ex, pred, firstTrue, best)
		if err != nil {
			return nil, err
		}
		slog.Debug("Evaluated example", "suite", name, "example", ex.ID,
			"candidates", len(ranked), "outcome", c.Outcome.String())
	}
	return e, nil
}

func filterSeed(a reward.ExpectedAnswer, ranked []learner.Scored) []learner.Scored {
	targets := a.Targets()
	if len(targets) < 2 {
		return ranked
	}
	seed := targets[1]
	var out []learner.Scored
	for _, s := range ranked {
		if reward.MatchAny(seed, s.Candidate.PredictedEntities()) {
			out = append(out, s)
		}
	}
	return out
}

package eval

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppasupat/web-entity-extractor-ACL2014/candidate"
	"github.com/ppasupat/web-entity-extractor-ACL2014/dataset"
	"github.com/ppasupat/web-entity-extractor-ACL2014/feature"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/storage"
	"github.com/ppasupat/web-entity-extractor-ACL2014/learner"
	"github.com/ppasupat/web-entity-extractor-ACL2014/reward"
)

var gold = []string{"Greece", "Germany", "France", "Spain", "Italy"}

func cand(entities ...string) *candidate.Candidate {
	g := &candidate.Group{Entities: entities}
	return g.AddCandidate(candidate.Path{candidate.NewEntry("li")}, nil)
}

// fixedLearner ranks every example by a preset list.
type fixedLearner map[*dataset.Example][]*candidate.Candidate

func (f fixedLearner) Learn(*dataset.Dataset, feature.Matcher) error { return nil }
func (f fixedLearner) SetTester(learner.Tester)                     {}
func (f fixedLearner) Save(string) error                            { return nil }
func (f fixedLearner) Load(string) error                            { return nil }

func (f fixedLearner) Rank(ex *dataset.Example) ([]learner.Scored, error) {
	var out []learner.Scored
	for i, c := range f[ex] {
		out = append(out, learner.Scored{Candidate: c, Score: -float64(i)})
	}
	return out, nil
}

func example(t *testing.T, phrase string) *dataset.Example {
	t.Helper()
	opts := reward.DefaultOptions()
	opts.IRCriterion = "f1"
	answer, err := reward.NewInjectiveMatch(reward.Strings(gold...), opts)
	require.NoError(t, err)
	return dataset.NewExample(phrase, storage.PageRef{}, answer)
}

func TestRankedStatistics(t *testing.T) {
	a1, a2, b := cand("x", "y", "z"), cand("x", "y", "z"), cand("u", "v", "w")
	stats := RankedStatistics([]learner.Scored{
		{Candidate: a1, Score: 3},
		{Candidate: a2, Score: 2},
		{Candidate: b, Score: 1},
	})
	require.Len(t, stats, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{stats[0].Rank, stats[1].Rank, stats[2].Rank})
	assert.Equal(t, []int{1, 1, 2}, []int{stats[0].UniqueRank, stats[1].UniqueRank, stats[2].UniqueRank})

	joined, split := cand("x\x00y", "z"), cand("x", "y\x00z")
	stats = RankedStatistics([]learner.Scored{
		{Candidate: joined, Score: 2},
		{Candidate: split, Score: 1},
	})
	assert.Equal(t, 2, stats[1].UniqueRank, "lists differing only at element boundaries are distinct")
	assert.Equal(t, 2.0, stats[1].Score)
}

func TestOutcomes(t *testing.T) {
	success, normal, super := example(t, "success"), example(t, "normal"), example(t, "super")
	nav := cand("Home", "About", "Contact")
	l := fixedLearner{
		success: {cand(gold...), nav},
		normal:  {nav, cand("Home", "About", "Contact"), cand(gold...)},
		super:   {cand("Greece", "Germany", "Peru"), nav},
	}
	e, err := Test(l, []*dataset.Example{success, normal, super}, "test", Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, e.NumExamples)
	assert.Equal(t, 1, e.NumSuccess)
	assert.Equal(t, 1, e.NumNormalFail)
	assert.Equal(t, 1, e.NumSuperFail)
	assert.Equal(t, 2, e.NumFound)

	require.Len(t, e.Cases, 3)
	assert.Equal(t, Success, e.Cases[0].Outcome)
	assert.Equal(t, NormalFail, e.Cases[1].Outcome)
	assert.Equal(t, 3, e.Cases[1].FirstTrue.Rank)
	assert.Equal(t, 2, e.Cases[1].FirstTrue.UniqueRank)
	assert.Equal(t, SuperFail, e.Cases[2].Outcome)
	assert.Nil(t, e.Cases[2].FirstTrue)
	assert.Nil(t, e.Cases[2].Best, "no list reaches the reward threshold")
	assert.Nil(t, e.Cases[2].PredIROnBest)

	s := e.Statistics()
	assert.InDelta(t, 1.0/3, s.Accuracy, 1e-12)
	assert.InDelta(t, 2.0/3, s.Oracle, 1e-12)
	assert.InDelta(t, 0.5, s.AccuracyFound, 1e-12)
	// F1 of pred: 1, 0, and 2 correct of 3 predicted and 5 gold.
	assert.InDelta(t, (1+0+0.5)/3, s.AvgF1, 1e-12)
	assert.InDelta(t, 1.0/3, s.AvgF1OnBest, 1e-12)

	acc := e.AccuracyAtK(MaxK)
	require.Len(t, acc, MaxK+1)
	assert.Zero(t, acc[0])
	assert.InDelta(t, 1.0/3, acc[1], 1e-12)
	assert.InDelta(t, 2.0/3, acc[2], 1e-12)
	for k := 1; k <= MaxK; k++ {
		assert.GreaterOrEqual(t, acc[k], acc[k-1])
	}
	assert.InDelta(t, 2.0/3, acc[MaxK], 1e-12)
	e.LogDetails()
}

func TestUseSeed(t *testing.T) {
	ex := example(t, "seeded")
	l := fixedLearner{ex: {cand("Home", "About", "Contact"), cand(gold...)}}

	e, err := Test(l, []*dataset.Example{ex}, "plain", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, e.NumNormalFail)

	e, err = Test(l, []*dataset.Example{ex}, "seeded", Options{UseSeed: true})
	require.NoError(t, err)
	assert.Equal(t, 1, e.NumSuccess)
}

func TestEmptyAndUnlabeled(t *testing.T) {
	e, err := Test(fixedLearner{}, nil, "empty", Options{})
	require.NoError(t, err)
	s := e.Statistics()
	assert.Zero(t, s.Accuracy)
	assert.Zero(t, s.AccuracyFound)

	ex := dataset.NewExample("q", storage.PageRef{}, nil)
	_, err = Test(fixedLearner{}, []*dataset.Example{ex}, "unlabeled", Options{})
	assert.ErrorIs(t, err, ErrNoAnswer)

	ex = example(t, "no candidates")
	e, err = Test(fixedLearner{}, []*dataset.Example{ex}, "none", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, e.NumSuperFail)
	assert.Nil(t, e.Cases[0].Pred)
	assert.Zero(t, e.AccuracyAtK(MaxK)[MaxK])
}

func TestSummarize(t *testing.T) {
	stats := []Statistics{
		{Accuracy: 0.5, Oracle: 1, AccuracyAtK: []float64{0, 0.5, 1}},
		{Accuracy: 1, Oracle: 1, AccuracyAtK: []float64{0, 1, 1}},
	}
	s := Summarize("test", stats)
	assert.Equal(t, 2, s.Folds)
	assert.InDelta(t, 0.75, s.Accuracy.Mean, 1e-12)
	assert.InDelta(t, 0.25, s.Accuracy.SD, 1e-12)
	assert.InDelta(t, 1, s.Oracle.Mean, 1e-12)
	assert.Zero(t, s.Oracle.SD)
	require.Len(t, s.AccuracyAtK, MaxK+1)
	assert.InDelta(t, 0.75, s.AccuracyAtK[1].Mean, 1e-12)
	assert.Zero(t, s.AccuracyAtK[MaxK].Mean)
	assert.Equal(t, "75.000% +- 25.000%", s.Accuracy.String())
	assert.False(t, math.IsNaN(Summarize("none", nil).Accuracy.SD))
	s.Log()
}

func TestIterativeTester(t *testing.T) {
	train, test := example(t, "train"), example(t, "test")
	l := fixedLearner{
		train: {cand(gold...)},
		test:  {cand("Home", "About", "Contact")},
	}
	tester := NewIterativeTester(l, dataset.New([]*dataset.Example{train}, []*dataset.Example{test}), Options{})
	tester.Quiet = true
	_, _, ok := tester.Last()
	assert.False(t, ok)

	require.NoError(t, tester.Run(1))
	require.NoError(t, tester.Run(2))
	tr, ts, ok := tester.Last()
	require.True(t, ok)
	assert.Equal(t, 1.0, tr.Accuracy)
	assert.Zero(t, ts.Oracle)

	var sb strings.Builder
	require.NoError(t, tester.WriteSummary(&sb))
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "tracc")
	assert.Equal(t, "      2 |  100.00  100.00  100.00 |    0.00    0.00    0.00", lines[2])
	tester.Summarize()
}

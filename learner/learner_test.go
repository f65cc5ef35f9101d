package learner

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppasupat/web-entity-extractor-ACL2014/candidate"
	"github.com/ppasupat/web-entity-extractor-ACL2014/catalog"
	"github.com/ppasupat/web-entity-extractor-ACL2014/dataset"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/storage"
	"github.com/ppasupat/web-entity-extractor-ACL2014/reward"
	"github.com/ppasupat/web-entity-extractor-ACL2014/tree"
	"github.com/ppasupat/web-entity-extractor-ACL2014/wordvec"
)

const page = `<html><body>
<div class="nav"><a>Home</a> <a>About us</a> <a>Contact</a> <a>Sitemap</a></div>
<h2>Countries in Europe</h2>
<ul class="countries">
  <li>Greece</li><li>Germany</li><li>France</li><li>Spain</li><li>Italy</li>
</ul>
<p>Visit <b>one</b> of them, <b>two</b> of them or <b>all</b> of them.</p>
</body></html>`

var countries = []string{"Greece", "Germany", "France", "Spain", "Italy"}

func testConfig(t *testing.T) Config {
	t.Helper()
	cat, err := catalog.New(catalog.DefaultOptions())
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Populator = cat
	return cfg
}

func countriesDataset(t *testing.T, cfg Config) (*dataset.Dataset, *dataset.Example) {
	t.Helper()
	opts := reward.DefaultOptions()
	opts.IRCriterion = "f1"
	answer, err := reward.NewInjectiveMatch(reward.NearMatches("Greece", "Germany", "France", "Spain", "Italy"), opts)
	require.NoError(t, err)
	ex := dataset.NewExample("european countries", storage.PageRef{URL: "http://countries.example.org"}, answer)
	x := &dataset.Extractor{Tree: tree.DefaultOptions(), Candidates: cfg.Candidates, Populator: cfg.Populator}
	require.NoError(t, x.ExtractHTML(ex, []byte(page)))
	return dataset.New([]*dataset.Example{ex}, []*dataset.Example{ex}), ex
}

type countingTester struct {
	runs       []int
	summarized bool
}

func (c *countingTester) Run(iteration int) error {
	c.runs = append(c.runs, iteration)
	return nil
}

func (c *countingTester) Summarize() { c.summarized = true }

func TestNew(t *testing.T) {
	cfg := testConfig(t)
	for _, name := range append(Names, "base", "beamsearch") {
		l, err := New(name, cfg)
		require.NoError(t, err, name)
		_, err = l.Rank(dataset.NewExample("q", storage.PageRef{}, nil))
		assert.ErrorIs(t, err, ErrNotTrained, name)
	}
	_, err := New("svm", cfg)
	assert.ErrorIs(t, err, ErrUnknownLearner)

	cfg.Beam.CandidateType = "endcut"
	_, err = New("beam", cfg)
	assert.ErrorIs(t, err, candidate.ErrUnknownDeriveType)

	cfg = testConfig(t)
	cfg.Params.DualAveraging = true
	cfg.Params.AdaptiveStepSize = false
	cfg.Params.StepSizeReduction = 0.5
	_, err = New("maxent", cfg)
	assert.ErrorIs(t, err, ErrDualAveraging)
}

func TestExpNormalize(t *testing.T) {
	xs := []float64{1, 2, math.Inf(-1), 3}
	require.True(t, expNormalize(xs))
	assert.InDelta(t, 1, xs[0]+xs[1]+xs[2]+xs[3], 1e-12)
	assert.Zero(t, xs[2])
	assert.Greater(t, xs[3], xs[1])

	assert.False(t, expNormalize([]float64{math.Inf(-1), math.Inf(-1)}))
	assert.False(t, expNormalize(nil))
}

func TestParamsAdaGrad(t *testing.T) {
	p, err := NewParams(DefaultParamsOptions())
	require.NoError(t, err)
	require.NoError(t, p.Update(map[string]float64{"a": 2, "tiny": 1e-9}))
	assert.InDelta(t, 1, p.Weight("a"), 1e-12)
	assert.Equal(t, 1, p.Len(), "tiny gradients are skipped")

	require.NoError(t, p.Update(map[string]float64{"a": 2}))
	assert.InDelta(t, 1+2/math.Sqrt(8), p.Weight("a"), 1e-12)
	assert.Equal(t, 2, p.NumUpdates())

	opts := DefaultParamsOptions()
	opts.DualAveraging = true
	p, err = NewParams(opts)
	require.NoError(t, err)
	require.NoError(t, p.Update(map[string]float64{"a": 2}))
	require.NoError(t, p.Update(map[string]float64{"a": 2}))
	assert.InDelta(t, 4/math.Sqrt(8), p.Weight("a"), 1e-12)

	opts = DefaultParamsOptions()
	opts.AdaptiveStepSize = false
	opts.StepSizeReduction = 1
	p, err = NewParams(opts)
	require.NoError(t, err)
	require.NoError(t, p.Update(map[string]float64{"a": 1}))
	require.NoError(t, p.Update(map[string]float64{"a": 1}))
	assert.InDelta(t, 1.5, p.Weight("a"), 1e-12)
}

func TestParamsNaN(t *testing.T) {
	p, err := NewParams(DefaultParamsOptions())
	require.NoError(t, err)
	err = p.Update(map[string]float64{"broken": math.NaN()})
	assert.ErrorIs(t, err, ErrNaN)
	assert.Contains(t, err.Error(), "broken")
}

func TestL1AndPrune(t *testing.T) {
	assert.InDelta(t, 0.3, L1Cut(0.5, 0.2), 1e-12)
	assert.InDelta(t, -0.3, L1Cut(-0.5, 0.2), 1e-12)
	assert.Zero(t, L1Cut(0.1, 0.2))

	p, err := NewParams(DefaultParamsOptions())
	require.NoError(t, err)
	require.NoError(t, p.Update(map[string]float64{"big": 3, "small": -0.01}))
	p.ApplyL1(0.5)
	assert.InDelta(t, 0.5, p.Weight("big"), 1e-12)
	assert.InDelta(t, -0.5, p.Weight("small"), 1e-12)

	p.weights["small"] = 0.001
	assert.Equal(t, 1, p.Prune(0.01))
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, []Weighted{{"big", 0.5}}, p.Top(5))
}

func TestRandomInit(t *testing.T) {
	opts := DefaultParamsOptions()
	opts.InitWeightsRandomly = true
	p1, _ := NewParams(opts)
	p2, _ := NewParams(opts)

	w := p1.Weight("x")
	assert.GreaterOrEqual(t, w, -1.0)
	assert.Less(t, w, 1.0)
	assert.Equal(t, w, p1.Weight("x"))
	assert.Equal(t, w, p2.Weight("x"), "draws depend only on seed and key")
	assert.NotEqual(t, w, p1.Weight("y"))
	assert.Equal(t, 2, p1.Len())

	opts.Seed = 2
	p3, _ := NewParams(opts)
	assert.NotEqual(t, w, p3.Weight("x"))
}

func TestParamsTSV(t *testing.T) {
	p, _ := NewParams(DefaultParamsOptions())
	p.weights = map[string]float64{"path :: b": 0.25, "entity :: a": -1.5, "basic :: bias": 2, "path :: a": 0.25}

	var buf bytes.Buffer
	require.NoError(t, p.Write(&buf))
	assert.Equal(t, "basic :: bias\t2\npath :: a\t0.25\npath :: b\t0.25\nentity :: a\t-1.5\n", buf.String())

	q, _ := NewParams(DefaultParamsOptions())
	require.NoError(t, q.Read(&buf))
	assert.Equal(t, p.weights, q.weights)

	tabbed, _ := NewParams(DefaultParamsOptions())
	tabbed.weights = map[string]float64{"self :: text=a\tb": 0.5}
	buf.Reset()
	require.NoError(t, tabbed.Write(&buf))
	require.NoError(t, q.Read(&buf))
	assert.Equal(t, tabbed.weights, q.weights)

	assert.Error(t, q.Read(strings.NewReader("no tab here\n")))
	assert.Error(t, q.Read(strings.NewReader("key\tNaNx\n")))
}

func TestBilinear(t *testing.T) {
	b, err := NewBilinear(2, DefaultParamsOptions())
	require.NoError(t, err)
	x, y := []float64{1, 0}, []float64{0, 2}
	assert.Zero(t, b.Score(x, y))
	assert.Zero(t, b.Score(nil, y))
	assert.Zero(t, b.Score(x, []float64{1}))

	g := b.newGradient()
	g.add(x, y, 0.5)
	g.addL2(b, 0.01)
	require.NoError(t, b.update(g))
	assert.InDelta(t, 2, b.Score(x, y), 1e-12)

	var buf bytes.Buffer
	require.NoError(t, b.Write(&buf))
	c, err := ReadBilinear(&buf, DefaultParamsOptions())
	require.NoError(t, err)
	assert.Equal(t, b.w, c.w)

	b.applyL1(2)
	assert.Zero(t, b.Score(x, y))

	_, err = ReadBilinear(strings.NewReader("dim\t2\n0\t5\t1\n"), DefaultParamsOptions())
	assert.Error(t, err)
}

func TestMaxEntLearns(t *testing.T) {
	cfg := testConfig(t)
	d, ex := countriesDataset(t, cfg)

	l, err := New("maxent", cfg)
	require.NoError(t, err)
	tester := &countingTester{}
	l.SetTester(tester)
	require.NoError(t, l.Learn(d, nil))
	assert.Equal(t, []int{1, 2, 3}, tester.runs)
	assert.True(t, tester.summarized)

	ranked, err := l.Rank(ex)
	require.NoError(t, err)
	require.Len(t, ranked, len(ex.Candidates()))
	assert.Equal(t, countries, ranked[0].Candidate.PredictedEntities())
	assert.Equal(t, 1.0, ranked[0].Candidate.Reward())
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}

	path := filepath.Join(t.TempDir(), "params")
	require.NoError(t, l.Save(path))
	loaded, err := New("maxent", cfg)
	require.NoError(t, err)
	require.NoError(t, loaded.Load(path))
	again, err := loaded.Rank(ex)
	require.NoError(t, err)
	assert.Same(t, ranked[0].Candidate, again[0].Candidate)
	assert.InDelta(t, ranked[0].Score, again[0].Score, 1e-9)

	m := l.(*MaxEnt)
	var wrong *candidate.Candidate
	for _, s := range ranked {
		if s.Candidate.Reward() == 0 {
			wrong = s.Candidate
			break
		}
	}
	require.NotNil(t, wrong)
	diff := m.FeatureDiff(ranked[0].Candidate, wrong)
	require.NotEmpty(t, diff)
	for i := 1; i < len(diff); i++ {
		assert.GreaterOrEqual(t, math.Abs(diff[i-1].Product()), math.Abs(diff[i].Product()))
	}
}

func TestMaxEntOptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxEnt.OnlyFirstCandidatePerGroup = true
	cfg.MaxEnt.FeatureMinimumCount = 1
	cfg.MaxEnt.Lambda = 0.001
	cfg.MaxEnt.PruneSmallFeaturesThreshold = 1e-4
	d, ex := countriesDataset(t, cfg)

	l, err := NewMaxEnt(cfg)
	require.NoError(t, err)
	require.NoError(t, l.Learn(d, nil))
	ranked, err := l.Rank(ex)
	require.NoError(t, err)
	assert.Len(t, ranked, len(ex.Groups()))
	assert.Equal(t, countries, ranked[0].Candidate.PredictedEntities())
	assert.Positive(t, l.Params().Len())
}

func TestMaxEntWordVectors(t *testing.T) {
	cfg := testConfig(t)
	cfg.WordVectors = wordvec.New(
		[]string{"unknown", "european", "countries", "greece", "germany", "france", "spain", "italy", "home"},
		[][]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 1}, {0, 1}, {0, 1}, {0, 1}, {1, -1}},
	)
	d, ex := countriesDataset(t, cfg)

	l, err := NewMaxEnt(cfg)
	require.NoError(t, err)
	require.NoError(t, l.Learn(d, nil))
	require.NotNil(t, l.bilinear)
	assert.NotZero(t, l.bilinear.Score(ex.PhraseVector(cfg.WordVectors.Average), []float64{0, 1}))

	path := filepath.Join(t.TempDir(), "params")
	require.NoError(t, l.Save(path))
	_, err = os.Stat(path + WordVectorSuffix)
	require.NoError(t, err)

	loaded, err := NewMaxEnt(cfg)
	require.NoError(t, err)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, l.bilinear.w, loaded.bilinear.w)

	require.NoError(t, os.Remove(path+WordVectorSuffix))
	require.NoError(t, loaded.Load(path))
	assert.Nil(t, loaded.bilinear)
}

func TestBeamExpands(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxEnt.NumTrainIters = 2
	d, ex := countriesDataset(t, cfg)

	l, err := New("beam", cfg)
	require.NoError(t, err)
	tester := &countingTester{}
	l.SetTester(tester)
	require.NoError(t, l.Learn(d, nil))
	assert.Equal(t, []int{1, 2}, tester.runs)

	ranked, err := l.Rank(ex)
	require.NoError(t, err)
	assert.Greater(t, len(ranked), len(ex.Candidates()))
	derived := 0
	for _, s := range ranked {
		if s.Candidate.Derived() {
			derived++
			assert.NotNil(t, s.Candidate.Features(), "derived candidates are populated")
		}
	}
	assert.Positive(t, derived)

	beam := l.(*Beam)
	assert.Nil(t, beam.derived, "training memo is released after Learn")
	for i := 0; i < 20; i++ {
		again, err := l.Rank(ex)
		require.NoError(t, err)
		require.Len(t, again, len(ranked))
		assert.Equal(t, ranked[0].Candidate.PredictedEntities(), again[0].Candidate.PredictedEntities())
		assert.InDelta(t, ranked[0].Score, again[0].Score, 1e-12)
	}
	assert.Empty(t, beam.derived, "ranking retains no derived candidates")

	cfg.Beam.Size = 1
	small, err := NewBeam(cfg)
	require.NoError(t, err)
	require.NoError(t, small.Learn(d, nil))
	ranked, err = small.Rank(ex)
	require.NoError(t, err)
	originals := 0
	for _, s := range ranked {
		if !s.Candidate.Derived() {
			originals++
		}
	}
	assert.Equal(t, 1, originals)
}

func TestBaseline(t *testing.T) {
	cfg := testConfig(t)
	d, ex := countriesDataset(t, cfg)

	b := NewBaseline(cfg)
	tester := &countingTester{}
	b.SetTester(tester)
	require.NoError(t, b.Learn(d, nil))
	assert.Equal(t, []int{1}, tester.runs)
	require.NotEmpty(t, b.counts)

	ranked, err := b.Rank(ex)
	require.NoError(t, err)
	assert.Positive(t, ranked[0].Score)
	assert.Positive(t, ranked[0].Candidate.Reward())
	assert.Zero(t, ranked[len(ranked)-1].Score)

	path := filepath.Join(t.TempDir(), "patterns")
	require.NoError(t, b.Save(path))
	loaded := NewBaseline(cfg)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, b.counts, loaded.counts)

	cfg.Baseline.MaxNumPatterns = 1
	one := NewBaseline(cfg)
	require.NoError(t, one.Learn(d, nil))
	assert.Len(t, one.counts, 1)
}

func TestBaselineTables(t *testing.T) {
	const table = `<html><body><table>
<tr><td>Greece</td><td>Athens</td></tr>
<tr><td>Germany</td><td>Berlin</td></tr>
<tr><td>France</td><td>Paris</td></tr>
<tr><td>Spain</td><td>Madrid</td></tr>
</table></body></html>`
	trees, err := tree.BuildString(table, tree.DefaultOptions())
	require.NoError(t, err)
	set, err := candidate.Generate(trees, nil, nil, candidate.DefaultOptions())
	require.NoError(t, err)
	ex := dataset.NewExample("countries", storage.PageRef{}, nil)
	ex.Trees, ex.Set = trees, set

	cfg := DefaultConfig()
	cfg.Baseline.OnlyTables = true
	b := NewBaseline(cfg)
	require.NoError(t, b.Learn(dataset.New(nil, nil), nil))
	ranked, err := b.Rank(ex)
	require.NoError(t, err)
	require.NotEmpty(t, ranked)
	top := ranked[0].Candidate
	assert.Equal(t, 4.0, ranked[0].Score)
	assert.Equal(t, []string{"Greece", "Germany", "France", "Spain"}, top.PredictedEntities())
}

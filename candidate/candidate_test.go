package candidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppasupat/web-entity-extractor-ACL2014/feature"
	"github.com/ppasupat/web-entity-extractor-ACL2014/reward"
	"github.com/ppasupat/web-entity-extractor-ACL2014/tree"
)

const countriesPage = `<html><head><title>Countries</title></head><body>
<h1>Countries of Europe</h1>
<ul>
  <li>Greece</li>
  <li>Germany</li>
  <li>France</li>
  <li>Spain</li>
  <li>Italy</li>
</ul>
<p>Last updated yesterday</p>
</body></html>`

var countries = []string{"Greece", "Germany", "France", "Spain", "Italy"}

func buildRoot(t *testing.T, page string) *tree.Node {
	t.Helper()
	trees, err := tree.BuildString(page, tree.DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, trees)
	return trees[0].Root()
}

func texts(nodes []*tree.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i], _ = n.FullText()
	}
	return out
}

func keys(paths []Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.Key()
	}
	return out
}

func listPath(last Entry) Path {
	return Path{NewEntry("html"), NewEntry("body"), NewEntry("ul"), last}
}

func TestRendering(t *testing.T) {
	tests := []struct {
		path Path
		want string
	}{
		{Path{NewEntry("html"), NewEntry("body"), IndexedEntry("div", 2), NewEntry("a")}, "/html/body/div[3]/a"},
		{listPath(RangeEntry("li", 1, 0)), "/html/body/ul/li[1:]"},
		{listPath(RangeEntry("li", 0, 1)), "/html/body/ul/li[:-1]"},
		{listPath(RangeEntry("li", 2, 3)), "/html/body/ul/li[2:-3]"},
		{listPath(IndexedEntry(Wildcard, 0)), "/html/body/ul/*[1]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.path.String())
	}

	p := listPath(IndexedEntry("li", 3))
	assert.Equal(t, "/html/body/ul/li", p.NoIndexString())
	assert.True(t, p.Last().Indexed())
	assert.False(t, p.Last().NoIndex().Indexed())
	assert.True(t, RangeEntry("li", 1, 0).Indexed())
}

func TestPathCopyOnWrite(t *testing.T) {
	p := listPath(IndexedEntry("li", 1))
	q := p.With(3, NewEntry("li"))
	r := p.Append(NewEntry("b"))

	assert.Equal(t, "/html/body/ul/li[2]", p.String())
	assert.Equal(t, "/html/body/ul/li", q.String())
	assert.Equal(t, "/html/body/ul/li[2]/b", r.String())
	assert.True(t, p.Equal(listPath(IndexedEntry("li", 1))))
	assert.False(t, p.Equal(q))
	assert.Len(t, p.Suffix(2), 2)
	assert.Len(t, p.Suffix(10), 4)
}

func TestExecute(t *testing.T) {
	root := buildRoot(t, countriesPage)

	tests := []struct {
		last Entry
		want []string
	}{
		{NewEntry("li"), countries},
		{IndexedEntry("li", 2), []string{"France"}},
		{IndexedEntry("li", 9), nil},
		{RangeEntry("li", 1, 0), countries[1:]},
		{RangeEntry("li", 0, 1), countries[:4]},
		{RangeEntry("li", 3, 2), nil},
		{NewEntry(Wildcard), countries},
		{IndexedEntry(Wildcard, 4), []string{"Italy"}},
	}
	for _, tt := range tests {
		p := listPath(tt.last)
		nodes, err := Execute(p, root)
		require.NoError(t, err, p.String())
		assert.Equal(t, len(tt.want), len(nodes), p.String())
		if len(tt.want) > 0 {
			assert.Equal(t, tt.want, texts(nodes), p.String())
		}

		again, err := Execute(p, root)
		require.NoError(t, err)
		assert.Equal(t, nodes, again, "execution is deterministic")
	}
}

func TestExecuteSkipsTextNodes(t *testing.T) {
	root := buildRoot(t, `<html><body><div><text>Alpha</text>stray words<text>Beta</text>more words<text>Gamma</text></div></body></html>`)

	p := Path{NewEntry("html"), NewEntry("body"), NewEntry("div"), NewEntry(tree.TextTag)}
	nodes, err := Execute(p, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, texts(nodes))
	for _, n := range nodes {
		assert.False(t, n.IsText())
	}

	nodes, err = Execute(Path{NewEntry("html"), NewEntry("body"), NewEntry("div"), IndexedEntry(tree.TextTag, 1)}, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta"}, texts(nodes))
}

func TestExecuteMismatch(t *testing.T) {
	root := buildRoot(t, countriesPage)
	_, err := Execute(Path{NewEntry("div"), NewEntry("li")}, root)
	assert.ErrorIs(t, err, ErrPathMismatch)

	_, err = Execute(nil, root)
	assert.ErrorIs(t, err, ErrPathMismatch)
}

func TestEnumerateBasic(t *testing.T) {
	root := buildRoot(t, countriesPage)
	paths := EnumerateBasic(root, DefaultOptions())
	got := keys(paths)

	assert.Contains(t, got, "/html/body/ul/li")
	assert.Contains(t, got, "/html/body/ul/li[1]")
	assert.Contains(t, got, "/html/body/ul/li[5]")
	assert.Contains(t, got, "/html/body/ul")
	assert.Contains(t, got, "/html/head/title")
	assert.NotContains(t, got, "/html/body")
	assert.NotContains(t, got, "/html")

	seen := make(map[string]bool)
	for _, k := range got {
		assert.False(t, seen[k], "duplicate path %s", k)
		seen[k] = true
	}
	assert.Equal(t, got, keys(EnumerateBasic(root, DefaultOptions())), "enumeration is repeatable")

	opts := DefaultOptions()
	opts.MaxTweakDepth = 0
	noTweak := keys(EnumerateBasic(root, opts))
	assert.NotContains(t, noTweak, "/html/body/ul/li")
	assert.Contains(t, noTweak, "/html/body/ul/li[3]")
}

func TestEnumerateAdvanced(t *testing.T) {
	root := buildRoot(t, countriesPage)

	plain := keys(EnumerateAdvanced(root, DefaultOptions()))
	assert.ElementsMatch(t, keys(EnumerateBasic(root, DefaultOptions())), plain,
		"without wildcards or end cuts both traversers agree")

	opts := DefaultOptions()
	opts.UseAdvancedTreeTraverser = true
	opts.AllowWildcards = 1
	opts.AllowEndCuts = 1
	got := keys(Enumerate(root, opts))

	assert.Contains(t, got, "/html/body/ul/li[1:]")
	assert.Contains(t, got, "/html/body/ul/li[:-1]")
	assert.Contains(t, got, "/html/body/ul/*")
	assert.Contains(t, got, "/html/body/ul/*[2]")
	assert.Contains(t, got, "/html/body/ul/*[1:]")
	assert.Contains(t, got, "/html/body/*/li")
	assert.Subset(t, got, plain)

	seen := make(map[string]bool)
	for _, k := range got {
		assert.False(t, seen[k], "duplicate path %s", k)
		seen[k] = true
	}
}

func TestGenerate(t *testing.T) {
	trees, err := tree.BuildString(countriesPage, tree.DefaultOptions())
	require.NoError(t, err)
	answer, err := reward.NewInjectiveMatch(reward.Strings(countries...), reward.DefaultOptions())
	require.NoError(t, err)

	set, err := Generate(trees, answer, nil, DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, set.Groups)

	distinct := make(map[string]bool)
	for _, g := range set.Groups {
		k := selectionKey(g.Nodes)
		assert.False(t, distinct[k], "groups share a selection")
		distinct[k] = true
		assert.Greater(t, g.NumEntities(), 2)
		assert.NotEmpty(t, g.Candidates())
	}

	var list *Candidate
	for _, c := range set.Candidates {
		assert.Contains(t, c.Group.Candidates(), c)
		if c.Path.String() == "/html/body/ul/li" {
			list = c
		}
	}
	require.NotNil(t, list)
	assert.Equal(t, countries, list.PredictedEntities())
	assert.Equal(t, 1.0, list.Reward())
	assert.Len(t, set.Groups, 1, "only the list selects more than two nodes")
}

type countingPopulator struct{ groups, candidates int }

func (p *countingPopulator) PopulateGroup(g *Group) {
	g.PopulateFeatures(func(v feature.Vector) {
		p.groups++
		v.Add("basic", "bias")
	})
}

func (p *countingPopulator) PopulateCandidate(c *Candidate) {
	c.PopulateFeatures(func(v feature.Vector) {
		p.candidates++
		v.Add("path-tail", "tail = "+c.Path.Last().Tag)
	})
}

func TestPopulateOnce(t *testing.T) {
	trees, err := tree.BuildString(countriesPage, tree.DefaultOptions())
	require.NoError(t, err)
	pop := &countingPopulator{}
	set, err := Generate(trees, nil, pop, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, len(set.Groups), pop.groups)
	assert.Equal(t, len(set.Candidates), pop.candidates)

	for _, c := range set.Candidates {
		pop.PopulateCandidate(c)
		pop.PopulateGroup(c.Group)
		combined := c.CombinedFeatures()
		assert.Equal(t, 1.0, combined["basic :: bias"])
		assert.Zero(t, c.Reward(), "no answer key")
	}
	assert.Equal(t, len(set.Groups), pop.groups)
	assert.Equal(t, len(set.Candidates), pop.candidates)
}

func TestCutRange(t *testing.T) {
	root := buildRoot(t, countriesPage)
	nodes, err := Execute(listPath(NewEntry("li")), root)
	require.NoError(t, err)
	g := NewGroup(nodes, nil, DefaultOptions().LateNormalizeEntities)
	c := g.AddCandidate(listPath(NewEntry("li")), root)

	derive, err := DeriveByName("cutrange")
	require.NoError(t, err)
	pop := &countingPopulator{}
	derived := derive(c, pop, DefaultOptions())

	var patterns []string
	for _, d := range derived {
		patterns = append(patterns, d.Pattern())
		assert.True(t, d.Derived())
		assert.NotNil(t, d.Features())
		assert.NotNil(t, d.Group.Features())
		assert.Greater(t, d.NumEntities(), 2)
	}
	assert.Equal(t, []string{
		"/html/body/ul/li [1:5]",
		"/html/body/ul/li [2:5]",
		"/html/body/ul/li [0:4]",
		"/html/body/ul/li [0:3]",
	}, patterns)
	assert.Equal(t, countries[1:], derived[0].PredictedEntities())
	assert.Equal(t, countries[:3], derived[3].PredictedEntities())
	assert.False(t, c.Derived())

	_, err = DeriveByName("endcut")
	assert.ErrorIs(t, err, ErrUnknownDeriveType)
}

func TestSampleEntities(t *testing.T) {
	assert.Equal(t, `2 ["a", "b"]`, SampleEntities([]string{"a", "b"}, 5))
	assert.Equal(t, `5 ["a", "b", ..., "e"]`, SampleEntities([]string{"a", "b", "c", "d", "e"}, 3))
}

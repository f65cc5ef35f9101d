package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppasupat/web-entity-extractor-ACL2014/candidate"
	"github.com/ppasupat/web-entity-extractor-ACL2014/feature"
	"github.com/ppasupat/web-entity-extractor-ACL2014/tree"
)

const page = `<html><body>
<div id="nav"><a>Home</a> <a>About</a></div>
<ul class="list main">
  <li>Greece</li>
  <li>Germany</li>
  <li>France</li>
  <li>Spain</li>
</ul>
</body></html>`

func listCandidate(t *testing.T) *candidate.Candidate {
	t.Helper()
	trees, err := tree.BuildString(page, tree.DefaultOptions())
	require.NoError(t, err)
	set, err := candidate.Generate(trees, nil, nil, candidate.DefaultOptions())
	require.NoError(t, err)
	for _, c := range set.Candidates {
		if c.Path.String() == "/html/body/ul/li" {
			return c
		}
	}
	t.Fatal("list candidate not found")
	return nil
}

func TestHelpers(t *testing.T) {
	v := make(feature.Vector)
	addQuantized(v, "d", "n", 5)
	assert.Equal(t, []string{"d :: n >= 1", "d :: n >= 2", "d :: n >= 4"}, v.Keys())

	v = make(feature.Vector)
	addPercent(v, "d", "p", 0.45)
	assert.Equal(t, []string{"d :: p >= 0%", "d :: p >= 20%", "d :: p >= 40%"}, v.Keys())

	c := newCounter[string]()
	for _, s := range []string{"a", "a", "b", "c", "c"} {
		c.add(s)
	}
	_, _, ok := c.majority()
	assert.False(t, ok, "tied majority")
	c.add("a")
	maj, count, ok := c.majority()
	assert.True(t, ok)
	assert.Equal(t, "a", maj)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, c.maxCount())
	assert.Greater(t, c.entropy(), 0.0)

	single := newCounter[int]()
	single.add(7)
	single.add(7)
	assert.Zero(t, single.entropy())

	v = make(feature.Vector)
	addVoting(v, "d", "tag", single, defaultVoting)
	assert.Equal(t, 1.0, v["d :: tag-identical"])
	assert.Equal(t, 1.0, v["d :: tag-majority = 7"])
	assert.Equal(t, 1.0, v["d :: tag-majority-ratio >= 100%"])
}

func TestCatalogPopulates(t *testing.T) {
	cat, err := New(DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"entity", "self-or-ancestors", "node-range", "path-tail", "cutrange"}, cat.Domains())

	c := listCandidate(t)
	cat.PopulateGroup(c.Group)
	cat.PopulateCandidate(c)

	g := c.Group.Features()
	assert.Equal(t, 1.0, g["basic :: bias"])
	assert.Equal(t, 1.0, g["self-or-ancestors :: tag-identical"])
	assert.Equal(t, 1.0, g["self-or-ancestors :: tag-majority = li"])
	assert.Equal(t, 3.0, g["self-or-ancestors :: same-parent"], "li, ul and body levels")
	assert.Equal(t, 1.0, g["self-or-ancestors :: class-majority ~ list"])
	assert.Equal(t, 1.0, g["entity :: phrase-shape-majority = Aa"])
	assert.Equal(t, 1.0, g["entity :: num-word-majority = 1"])
	assert.Equal(t, 1.0, g["node-range :: start >= 0%"])
	assert.Contains(t, g, "entity :: entity-max-duplication >= 1")

	f := c.Features()
	assert.Equal(t, 1.0, f["path-tail :: /li"])
	assert.Equal(t, 1.0, f["path-tail :: /ul/li"])
	assert.Equal(t, 1.0, f["path-tail :: (n-1)-tag = li"])
	assert.Equal(t, 1.0, f["path-tail :: (n-1)-indexed = false"])
	assert.Equal(t, 1.0, f["path-tail :: tail-tag = html"])
	for k := range f {
		assert.NotEqual(t, "cutrange", feature.Domain(k))
	}

	before := len(g)
	cat.PopulateGroup(c.Group)
	assert.Len(t, c.Group.Features(), before, "features are populated once")
}

func TestCutRangeFeatures(t *testing.T) {
	cat, err := New(DefaultOptions())
	require.NoError(t, err)
	c := listCandidate(t)
	opts := candidate.DefaultOptions()
	opts.MinNumCandidateEntity = 1
	derived := candidate.CutRange(c, cat, opts)
	require.NotEmpty(t, derived)

	first := derived[0]
	require.Equal(t, 1, first.CutStart)
	f := first.Features()
	assert.Equal(t, 1.0, f["cutrange :: has-cut"])
	assert.Equal(t, 1.0, f["cutrange :: cut-first-only | tag = li"])
	assert.Equal(t, 1.0, f["cutrange :: cut-front"])
	assert.NotContains(t, f, "cutrange :: cut-back")
	assert.NotNil(t, first.Group.Features())
}

func TestCatalogDomains(t *testing.T) {
	cat, err := New(Options{Include: []string{"path-tail"}, MaxAncestorCount: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"path-tail"}, cat.Domains())

	cat, err = New(Options{Exclude: []string{"entity", "cutrange"}, MaxAncestorCount: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"self-or-ancestors", "node-range", "path-tail"}, cat.Domains())

	_, err = New(Options{Include: []string{"hole"}})
	assert.ErrorIs(t, err, ErrUnknownDomain)

	only := NewWith(PathTail{MaxAncestorCount: 1})
	c := listCandidate(t)
	only.PopulateGroup(c.Group)
	assert.Equal(t, feature.Vector{"basic :: bias": 1}, c.Group.Features())
}

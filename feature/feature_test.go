package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type mapWeights map[string]float64

func (w mapWeights) Weight(key string) float64 { return w[key] }

func TestVectorAdd(t *testing.T) {
	v := make(Vector)
	v.Add("basic", "bias")
	v.Add("basic", "bias")
	v.AddValue("entity", "num", 0.5)
	v.AddWithBias("entity", "ratio", 2)

	assert.Equal(t, 2.0, v["basic :: bias"])
	assert.Equal(t, 0.5, v["entity :: num"])
	assert.Equal(t, 2.0, v["entity :: ratio"])
	assert.Equal(t, 1.0, v["entity :: ratio-bias"])
	assert.Equal(t, []string{"basic :: bias", "entity :: num", "entity :: ratio", "entity :: ratio-bias"}, v.Keys())
	assert.Equal(t, "entity", Domain("entity :: num"))
}

func TestVectorDotAndIncrement(t *testing.T) {
	v := Vector{"a :: x": 1, "b :: y": 2}
	w := mapWeights{"a :: x": 3, "b :: y": -1}

	assert.Equal(t, 1.0, v.Dot(w, nil))
	assert.Equal(t, 3.0, v.Dot(w, DomainPruner{Domain: "a", Allow: true}))

	acc := map[string]float64{"a :: x": 1}
	v.Increment(0.5, acc, All)
	assert.Equal(t, map[string]float64{"a :: x": 1.5, "b :: y": 1}, acc)
}

func TestCombine(t *testing.T) {
	got := Combine(Vector{"a :: x": 1}, Vector{"a :: x": 1, "b :: y": 1})
	assert.Equal(t, Vector{"a :: x": 2, "b :: y": 1}, got)
}

func TestMatchers(t *testing.T) {
	drop := DomainPruner{Domain: "path", Allow: false}
	assert.True(t, drop.Matches("basic :: bias"))
	assert.False(t, drop.Matches("path :: tail = /li"))
	assert.True(t, drop.Matches("node :: tag = li"))

	assert.True(t, Exact("a :: x").Matches("a :: x"))
	assert.False(t, Exact("a :: x").Matches("a :: y"))
	assert.False(t, Conjunction(All, Exact("a :: x")).Matches("a :: y"))
}

func TestCountPruner(t *testing.T) {
	p := NewCountPruner()
	p.AddExample(Vector{"a :: x": 1}, Vector{"a :: x": 1, "b :: y": 1})
	p.AddExample(Vector{"a :: x": 3})
	p.ApplyThreshold(2)

	assert.Equal(t, 1, p.Len())
	assert.True(t, p.Matches("a :: x"))
	assert.False(t, p.Matches("b :: y"))
}

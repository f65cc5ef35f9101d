package catalog

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/ppasupat/web-entity-extractor-ACL2014/feature"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/textutil"
)

// counter is a multiset that remembers first-insertion order.
type counter[T comparable] struct {
	counts map[T]int
	order  []T
	total  int
}

func newCounter[T comparable]() *counter[T] {
	return &counter[T]{counts: make(map[T]int)}
}

func (c *counter[T]) add(x T) {
	if _, ok := c.counts[x]; !ok {
		c.order = append(c.order, x)
	}
	c.counts[x]++
	c.total++
}

func (c *counter[T]) size() int     { return c.total }
func (c *counter[T]) distinct() int { return len(c.order) }

func (c *counter[T]) maxCount() int {
	m := 0
	for _, n := range c.counts {
		m = max(m, n)
	}
	return m
}

// majority returns the element with the strictly largest count.
func (c *counter[T]) majority() (T, int, bool) {
	var best T
	bestCount, tied := 0, false
	for _, x := range c.order {
		switch n := c.counts[x]; {
		case n > bestCount:
			best, bestCount, tied = x, n, false
		case n == bestCount:
			tied = true
		}
	}
	return best, bestCount, bestCount > 0 && !tied
}

func (c *counter[T]) entropy() float64 {
	if c.distinct() <= 1 {
		return 0
	}
	h := 0.0
	for _, n := range c.counts {
		p := float64(n) / float64(c.total)
		h -= p * math.Log(p)
	}
	return h
}

// addQuantized fires "name >= 1", "name >= 2", "name >= 4", ... up to value.
func addQuantized(v feature.Vector, domain, name string, value float64) {
	value = math.Min(value, math.MaxInt32)
	for i := 1; float64(i) <= value; i *= 2 {
		v.Add(domain, name+" >= "+strconv.Itoa(i))
	}
}

// addPercent fires "name >= 0%", "name >= 20%", ... up to value (a ratio).
func addPercent(v feature.Vector, domain, name string, value float64) {
	value = math.Min(value*100, 100)
	for i := 0; float64(i) <= value; i += 20 {
		v.Add(domain, name+" >= "+strconv.Itoa(i)+"%")
	}
}

func addBagOfWords(v feature.Vector, domain, name, value string) {
	bag := textutil.BagOfWords(value)
	words := make([]string, 0, len(bag))
	for w := range bag {
		words = append(words, w)
	}
	sort.Strings(words)
	for _, w := range words {
		v.Add(domain, name+" ~ "+w)
	}
}

func addEntropy[T comparable](v feature.Vector, domain, name string, c *counter[T]) {
	if h := c.entropy(); h > 0 && c.size() > 1 {
		v.AddValue(domain, name+"-normalized-entropy", h/math.Log(float64(c.size())))
	}
}

func addDuplication[T comparable](v feature.Vector, domain, name string, c *counter[T]) {
	addQuantized(v, domain, name+"-max-duplication", float64(c.maxCount()))
}

type votingOpts struct {
	bagOfWords bool
	// Fire the majority value even when the multiset has a single element.
	majorityIfSingle bool
}

var defaultVoting = votingOpts{majorityIfSingle: true}

// addVoting fires entropy, majority ratio, identical/single, and majority value features.
func addVoting[T comparable](v feature.Vector, domain, name string, c *counter[T], o votingOpts) {
	if c.size() == 0 {
		return
	}
	addEntropy(v, domain, name, c)
	maj, count, ok := c.majority()
	if !ok {
		return
	}
	ratio := float64(count) / float64(c.size())
	addPercent(v, domain, name+"-majority-ratio", ratio)
	if ratio >= 0.9 {
		if c.size() > 1 {
			v.Add(domain, name+"-identical")
		} else {
			v.Add(domain, name+"-single")
		}
	}
	switch {
	case o.bagOfWords:
		addBagOfWords(v, domain, name+"-majority", fmt.Sprint(maj))
	case c.size() > 1 || o.majorityIfSingle:
		v.Add(domain, name+"-majority = "+fmt.Sprint(maj))
	}
}

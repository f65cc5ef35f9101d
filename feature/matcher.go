package feature

import "strings"

// Matcher selects the features that take part in scoring and updates.
type Matcher interface {
	Matches(key string) bool
}

// MatcherFunc adapts a function to a Matcher.
type MatcherFunc func(key string) bool

func (f MatcherFunc) Matches(key string) bool { return f(key) }

// All matches every feature.
var All Matcher = MatcherFunc(func(string) bool { return true })

// Exact matches a single feature key.
func Exact(key string) Matcher {
	return MatcherFunc(func(k string) bool { return k == key })
}

// Conjunction matches the features matched by every matcher.
func Conjunction(ms ...Matcher) Matcher {
	return MatcherFunc(func(k string) bool {
		for _, m := range ms {
			if !m.Matches(k) {
				return false
			}
		}
		return true
	})
}

// DomainPruner keeps or drops the features of one domain. Features of the
// "basic" domain always match.
type DomainPruner struct {
	Domain string
	// Allow keeps only the domain when true and drops it when false.
	Allow bool
}

func (p DomainPruner) Matches(key string) bool {
	if strings.HasPrefix(key, "basic"+Separator) {
		return true
	}
	return strings.HasPrefix(key, p.Domain+Separator) == p.Allow
}

// CountPruner matches the features seen in at least a minimum number of examples.
type CountPruner struct {
	counts map[string]int
}

// NewCountPruner returns an empty CountPruner.
func NewCountPruner() *CountPruner {
	return &CountPruner{counts: make(map[string]int)}
}

// AddExample counts each distinct feature of the example's vectors once.
func (p *CountPruner) AddExample(vs ...Vector) {
	seen := make(map[string]struct{})
	for _, v := range vs {
		for k := range v {
			seen[k] = struct{}{}
		}
	}
	for k := range seen {
		p.counts[k]++
	}
}

// ApplyThreshold drops the features counted fewer than minCount times.
func (p *CountPruner) ApplyThreshold(minCount int) {
	for k, c := range p.counts {
		if c < minCount {
			delete(p.counts, k)
		}
	}
}

// Len returns the number of features kept.
func (p *CountPruner) Len() int { return len(p.counts) }

func (p *CountPruner) Matches(key string) bool {
	_, ok := p.counts[key]
	return ok
}

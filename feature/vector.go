// Package feature defines sparse feature vectors keyed by "domain :: name"
// strings and the matchers that select subsets of them.
package feature

import (
	"sort"
	"strings"
)

// Separator joins the domain and the name of a feature key.
const Separator = " :: "

// Key builds the feature key for a domain and a name.
func Key(domain, name string) string {
	return domain + Separator + name
}

// Domain returns the domain part of a feature key.
func Domain(key string) string {
	domain, _, _ := strings.Cut(key, Separator)
	return domain
}

// Vector is a sparse mapping from feature key to value. Adding the same
// indicator twice gives it weight 2.
type Vector map[string]float64

// Add adds the indicator feature domain :: name.
func (v Vector) Add(domain, name string) {
	v[Key(domain, name)]++
}

// AddValue adds a real valued feature.
func (v Vector) AddValue(domain, name string, value float64) {
	v[Key(domain, name)] += value
}

// AddWithBias adds a real valued feature together with its "-bias" indicator.
func (v Vector) AddWithBias(domain, name string, value float64) {
	v.AddValue(domain, name, value)
	v.Add(domain, name+"-bias")
}

// AddKey adds value to an already formed feature key.
func (v Vector) AddKey(key string, value float64) {
	v[key] += value
}

// AddVector adds the features of that selected by m (all features when m is nil).
func (v Vector) AddVector(that Vector, m Matcher) {
	for k, x := range that {
		if m == nil || m.Matches(k) {
			v[k] += x
		}
	}
}

// Increment adds factor times the selected features of v into acc.
func (v Vector) Increment(factor float64, acc map[string]float64, m Matcher) {
	for k, x := range v {
		if m == nil || m.Matches(k) {
			acc[k] += factor * x
		}
	}
}

// Weights is the read side of a weight table.
type Weights interface {
	Weight(key string) float64
}

// Dot returns the dot product between the selected features and w.
func (v Vector) Dot(w Weights, m Matcher) float64 {
	sum := 0.0
	for k, x := range v {
		if m == nil || m.Matches(k) {
			sum += w.Weight(k) * x
		}
	}
	return sum
}

// Keys returns the feature keys in sorted order.
func (v Vector) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Combine returns the sum of the given vectors as a new vector.
func Combine(vs ...Vector) Vector {
	out := make(Vector)
	for _, v := range vs {
		out.AddVector(v, nil)
	}
	return out
}

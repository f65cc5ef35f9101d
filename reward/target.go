// Package reward scores predicted entity lists against answer keys.
package reward

import (
	"strings"

	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/textutil"
)

// Target is one answer-key entity.
type Target interface {
	Match(predicted string) bool
	String() string
}

// MatchAny reports whether t matches any of the predicted entities.
func MatchAny(t Target, predicted []string) bool {
	for _, p := range predicted {
		if t.Match(p) {
			return true
		}
	}
	return false
}

// StringTarget matches the predicted entity exactly.
type StringTarget string

func (t StringTarget) Match(predicted string) bool { return string(t) == predicted }
func (t StringTarget) String() string              { return string(t) }

// SubstringTarget matches predicted entities containing it.
type SubstringTarget string

func (t SubstringTarget) Match(predicted string) bool { return strings.Contains(predicted, string(t)) }
func (t SubstringTarget) String() string              { return string(t) }

const (
	DefaultNearMatchMaxEditDistance = 2
	DefaultTargetNormalizeLevel     = textutil.LevelSimple
)

// NearMatchTarget matches exactly, or within a small edit distance of the normalized expected string.
type NearMatchTarget struct {
	Expected   string
	Normalized string
	MaxEdits   int
}

// NewNearMatch builds a NearMatchTarget with the default edit distance and normalization.
func NewNearMatch(expected string) NearMatchTarget {
	return NearMatchTarget{
		Expected:   expected,
		Normalized: textutil.Normalize(expected, DefaultTargetNormalizeLevel),
		MaxEdits:   DefaultNearMatchMaxEditDistance,
	}
}

func (t NearMatchTarget) Match(predicted string) bool {
	if t.Expected == predicted {
		return true
	}
	return textutil.WithinEditDistance(t.Normalized, predicted, t.MaxEdits)
}

func (t NearMatchTarget) String() string {
	if t.Expected == t.Normalized {
		return t.Expected
	}
	return t.Expected + " || " + t.Normalized
}

// PersonNameTarget matches the common written forms of a person name.
type PersonNameTarget struct {
	First, Mid, Last string
	patterns         []string
}

// NewPersonName builds a target for first/last, with an optional middle name
// ("" for none). A middle initial written "Q." is stored as "Q".
func NewPersonName(first, mid, last string) *PersonNameTarget {
	if len(mid) == 2 && mid[1] == '.' {
		mid = mid[:1]
	}
	t := &PersonNameTarget{First: first, Mid: mid, Last: last}
	f := initial(first)
	t.patterns = []string{
		first + " " + last,
		last + ", " + first,
		f + ". " + last,
		last + ", " + f + ".",
	}
	if mid != "" {
		if len([]rune(mid)) > 1 {
			t.patterns = append(t.patterns, first+" "+mid+" "+last, last+", "+first+" "+mid)
		}
		m := initial(mid)
		t.patterns = append(t.patterns, first+" "+m+". "+last, last+", "+first+" "+m+".")
	}
	return t
}

func initial(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

func (t *PersonNameTarget) Match(predicted string) bool {
	for _, p := range t.patterns {
		if p == predicted {
			return true
		}
	}
	return false
}

func (t *PersonNameTarget) String() string {
	if t.Mid != "" {
		return t.First + " " + t.Mid + " " + t.Last
	}
	return t.First + " " + t.Last
}

// Strings wraps each string in a StringTarget.
func Strings(ss ...string) []Target {
	out := make([]Target, len(ss))
	for i, s := range ss {
		out[i] = StringTarget(s)
	}
	return out
}

// NearMatches wraps each string in a NearMatchTarget.
func NearMatches(ss ...string) []Target {
	out := make([]Target, len(ss))
	for i, s := range ss {
		out[i] = NewNearMatch(s)
	}
	return out
}

// Substrings wraps each string in a SubstringTarget.
func Substrings(ss ...string) []Target {
	out := make([]Target, len(ss))
	for i, s := range ss {
		out[i] = SubstringTarget(s)
	}
	return out
}

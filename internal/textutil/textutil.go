// Package textutil provides text processing utilities for entity normalization and matching.
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalization levels used throughout the extractor.
const (
	LevelNone       = 0
	LevelWhitespace = 1
	LevelSimple     = 2
	LevelAggressive = 3
)

var tokenizeRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Tokenize extracts word tokens from text.
func Tokenize(text string) []string {
	return tokenizeRe.FindAllString(text, -1)
}

var multiSpaceRe = regexp.MustCompile(`\s+`)

// NormalizeWhitespaces collapses runs of whitespace into a single space and trims the result.
func NormalizeWhitespaces(text string) string {
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(text, " "))
}

// Normalize normalizes text according to level. Levels above LevelAggressive behave like it.
func Normalize(text string, level int) string {
	switch {
	case level <= LevelNone:
		return text
	case level == LevelWhitespace:
		return NormalizeWhitespaces(text)
	case level == LevelSimple:
		return SimpleNormalize(text)
	default:
		return AggressiveNormalize(text)
	}
}

var symbolReplacer = strings.NewReplacer(
	"‚", ",",
	"„", ",,",
	"·", ".",
	"…", "...",
	"ˆ", "^",
	"˜", "~",
	"‹", "<",
	"›", ">",
	"‘", "'", "’", "'", "´", "'", "`", "'",
	"“", `"`, "”", `"`, "«", `"`, "»", `"`,
	"•", "", "†", "", "‡", "",
	"‐", "-", "‑", "-", "–", "-", "—", "-",
)

var (
	combiningRe  = regexp.MustCompile(`[\x{0300}-\x{036F}]`)
	wideRe       = regexp.MustCompile(`[\x{2E00}-\x{10FFFF}]`)
	citationRe   = regexp.MustCompile(`\[(nb ?)?\d+\]`)
	trailStarRe  = regexp.MustCompile(`\*+$`)
	yearRe       = regexp.MustCompile(`\(\d* ?-? ?\d*\)`)
	outerQuoteRe = regexp.MustCompile(`^"(.*)"$`)
	numberOnlyRe = regexp.MustCompile(`^[0-9.]+$`)
	numberingRe  = regexp.MustCompile(`^\d+\.`)

	bracketRe    = regexp.MustCompile(`\[[^\]]*\]`)
	nonASCIIRe   = regexp.MustCompile(`[\x{007F}-\x{10FFFF}]`)
	dashTailRe   = regexp.MustCompile(` - .*$`)
	parenTailRe  = regexp.MustCompile(`\([^)]*\)$`)
)

// SimpleNormalize strips accents, unifies punctuation and removes citations,
// years in parentheses, outer quotes and list numbering.
func SimpleNormalize(text string) string {
	text = combiningRe.ReplaceAllString(norm.NFD.String(text), "")
	text = symbolReplacer.Replace(text)
	text = wideRe.ReplaceAllString(text, "")
	text = citationRe.ReplaceAllString(text, "")
	text = trailStarRe.ReplaceAllString(text, "")
	text = yearRe.ReplaceAllString(text, "")
	text = outerQuoteRe.ReplaceAllString(text, "$1")
	if !numberOnlyRe.MatchString(text) {
		text = numberingRe.ReplaceAllString(text, "")
	}
	return NormalizeWhitespaces(text)
}

// AggressiveNormalize applies SimpleNormalize, then drops bracketed text,
// non-ASCII characters, dash suffixes and a trailing parenthetical.
func AggressiveNormalize(text string) string {
	text = SimpleNormalize(text)
	text = bracketRe.ReplaceAllString(strings.TrimSpace(text), "")
	text = nonASCIIRe.ReplaceAllString(strings.TrimSpace(text), "")
	text = dashTailRe.ReplaceAllString(strings.TrimSpace(text), "")
	text = parenTailRe.ReplaceAllString(strings.TrimSpace(text), "")
	return NormalizeWhitespaces(text)
}

// WithinEditDistance reports whether a and b are within Levenshtein distance limit.
// Distances are counted in runes.
func WithinEditDistance(a, b string, limit int) bool {
	ra, rb := []rune(a), []rune(b)
	if limit < 0 || abs(len(ra)-len(rb)) > limit {
		return false
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, cur[j])
		}
		if rowMin > limit {
			return false
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)] <= limit
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// PhraseShape abstracts text into character classes: digits become 0, letters a or A,
// whitespace a single space; consecutive repeats collapse.
func PhraseShape(text string) string {
	var buf strings.Builder
	var last rune = -1
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			r = '0'
		case unicode.IsLetter(r):
			if unicode.IsLower(r) {
				r = 'a'
			} else {
				r = 'A'
			}
		case unicode.IsSpace(r):
			r = ' '
		}
		if r != last {
			buf.WriteRune(r)
		}
		last = r
	}
	return buf.String()
}

var (
	alphaOrNumericRe = regexp.MustCompile(`[a-z]+|[0-9]+`)
	alphanumericRe   = regexp.MustCompile(`[A-Za-z0-9]+`)
	digitsRe         = regexp.MustCompile(`[0-9]+`)
)

// AlphaOrNumericTokens lowercases text and splits it into runs of letters or digits.
func AlphaOrNumericTokens(text string) []string {
	return alphaOrNumericRe.FindAllString(strings.ToLower(text), -1)
}

// BagOfWords returns the distinct alphanumeric tokens of text with every number replaced by 0.
func BagOfWords(text string) map[string]struct{} {
	bag := make(map[string]struct{})
	for _, w := range alphanumericRe.FindAllString(digitsRe.ReplaceAllString(text, "0"), -1) {
		bag[w] = struct{}{}
	}
	return bag
}

// Package classify provides heuristic scoring for incident text:
// category prediction, toxicity assessment and risk scoring. These are
// the always-available fallbacks behind the remote ML scorer.
package classify

import (
	"math"
	"strings"
	"unicode"
)

// minTokenLength filters stopword-sized noise ("a", "of", "to") without
// needing a stopword list.
const minTokenLength = 3

// NormalizeText lowercases text and replaces every non-alphanumeric rune
// with a space, preserving word boundaries for keyword scanning.
func NormalizeText(text string) string {
	text = strings.ToLower(text)

	var result strings.Builder
	result.Grow(len(text))

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		} else {
			result.WriteByte(' ')
		}
	}

	return result.String()
}

// Tokens splits normalized text into tokens, dropping tokens shorter
// than three characters. Duplicates are preserved.
func Tokens(text string) []string {
	fields := strings.Fields(NormalizeText(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// TokenSet returns the deduplicated token set of text.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokens(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// Jaccard computes the Jaccard similarity of two token sets.
// Two empty sets score 0, not 1: no evidence is not a match.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

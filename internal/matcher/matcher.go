// Package matcher scores title similarity for validating external lookups.
//
// Titles are normalized before comparison and scored with the
// longest-matching-block ratio 2*M/T, where M is the number of characters in
// matching blocks and T the combined length of both titles.
package matcher

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// Default thresholds. Callers should take these from configuration.
const (
	// DefaultHighThreshold validates a direct re-query of a known title.
	DefaultHighThreshold = 0.9

	// DefaultLowThreshold validates lookups seeded from unstructured or
	// scraped citation strings.
	DefaultLowThreshold = 0.75
)

// stripped lists the punctuation and markup characters replaced by a space.
const stripped = `\^(){}<>$=*_~[]`

// Thresholds holds the two confidence levels used by callers.
type Thresholds struct {
	High float64
	Low  float64
}

// DefaultThresholds returns the default confidence levels.
func DefaultThresholds() Thresholds {
	return Thresholds{High: DefaultHighThreshold, Low: DefaultLowThreshold}
}

// Normalize lower-cases a title, replaces markup characters with spaces and
// collapses whitespace runs. Normalize(Normalize(s)) == Normalize(s).
func Normalize(title string) string {
	mapped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(stripped, r) || unicode.IsSpace(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, title)
	return strings.Join(strings.Fields(mapped), " ")
}

// Similarity returns the matching-block ratio of the normalized titles, in [0, 1].
// Two empty titles are considered identical.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}
	m := difflib.NewMatcher(splitRunes(na), splitRunes(nb))
	return m.Ratio()
}

// Matches reports whether Similarity(a, b) >= threshold.
func Matches(a, b string, threshold float64) bool {
	return Similarity(a, b) >= threshold
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

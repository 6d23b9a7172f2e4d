// Package match scores fuzzy wine-name references against free text.
// The rate, cellar and education handlers all resolve "the Opus One" or
// a half-remembered label through this one scorer, so the threshold and
// tie-break behave identically everywhere.
package match

import "strings"

// DefaultThreshold is the minimum fraction of a name's significant
// words that must appear in the text for a match.
const DefaultThreshold = 0.5

// significantWords returns the lowercased words of name longer than
// three characters. Short filler ("de", "la", "the") carries no signal.
func significantWords(name string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(name)) {
		if len(w) > 3 {
			words = append(words, w)
		}
	}
	return words
}

// Score returns the fraction of name's significant words present in
// text, or 0 if the name has none.
func Score(name, text string) float64 {
	words := significantWords(name)
	if len(words) == 0 {
		return 0
	}
	text = strings.ToLower(text)
	matches := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			matches++
		}
	}
	return float64(matches) / float64(len(words))
}

// Best returns the index of the named candidate with the highest score
// at or above threshold, or -1. Ties keep the earlier candidate, so
// callers passing candidates in recency order prefer the most recent.
func Best(names []string, text string, threshold float64) int {
	best := -1
	bestScore := 0.0
	for i, name := range names {
		s := Score(name, text)
		if s >= threshold && s > bestScore {
			best = i
			bestScore = s
		}
	}
	return best
}

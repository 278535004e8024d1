package classifier

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Distance returns the Levenshtein distance between a and b divided by the
// length of the longer string, both counted in runes. 0 means identical and
// 1 means nothing in common. Two empty strings are identical.
func Distance(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}

// MinDistance returns the smallest Distance between tag and any of tokens.
// It returns false when tokens is empty.
func MinDistance(tag string, tokens []string) (float64, bool) {
	if len(tokens) == 0 {
		return 0, false
	}
	best := Distance(tag, tokens[0])
	for _, token := range tokens[1:] {
		if d := Distance(tag, token); d < best {
			best = d
		}
	}
	return best, true
}

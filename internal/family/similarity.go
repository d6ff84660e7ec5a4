package family

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

const (
	// localPartScore applies when the partial entry is exactly the local
	// part of the complete address (domain missing entirely).
	localPartScore = 0.85
	// prefixFloor is the minimum score for an address truncated at some point.
	prefixFloor = 0.75
	// substringFloor is the minimum score when the local part and the
	// partial entry contain one another.
	substringFloor = 0.6
)

// Similarity scores two email identifiers in [0,1]. When exactly one side is
// a complete address, the other is treated as a truncated fragment of it.
func Similarity(a, b string) float64 {
	a, b = NormalizeEmail(a), NormalizeEmail(b)

	aComplete, bComplete := IsEmail(a), IsEmail(b)
	if aComplete == bComplete {
		return levenshteinRatio(a, b)
	}

	complete, partial := a, b
	if bComplete {
		complete, partial = b, a
	}
	return partialSimilarity(complete, partial)
}

func partialSimilarity(complete, partial string) float64 {
	local, _, _ := strings.Cut(complete, "@")

	switch {
	case partial == local:
		return localPartScore
	case strings.HasPrefix(complete, partial):
		ratio := float64(runeLen(partial)) / float64(runeLen(complete))
		return math.Max(prefixFloor, ratio)
	case strings.Contains(local, partial) || strings.Contains(partial, local):
		longest := max(runeLen(local), runeLen(partial))
		score := 1 - float64(editDistance(local, partial))/float64(longest)
		return math.Max(substringFloor, score)
	default:
		return levenshteinRatio(complete, partial)
	}
}

// levenshteinRatio is (longest - distance) / longest, or 1 for two empty strings.
func levenshteinRatio(a, b string) float64 {
	longest := max(runeLen(a), runeLen(b))
	if longest == 0 {
		return 1
	}
	return float64(longest-editDistance(a, b)) / float64(longest)
}

// editDistance is the unit-cost Levenshtein distance over runes.
func editDistance(a, b string) int {
	return levenshtein.Distance(a, b, nil)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

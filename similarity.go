package main

import "strings"

// answerSimilarity scores how alike two free-text answers are, in [0,1].
// Jaccard overlap of lowercased whitespace tokens, plus a small bonus when
// the agreement is substantive (many shared tokens) rather than a single
// incidental keyword. Symmetric in its arguments.
func answerSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}

	score := float64(intersection) / float64(union)

	// Length bonus: capped so a pile of shared stopwords can't dominate
	bonus := float64(intersection) / 10
	if bonus > 0.2 {
		bonus = 0.2
	}
	score += bonus

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}

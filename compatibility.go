package main

import (
	"fmt"
	"strings"
	"time"
)

// scoreCandidate combines shared-interest overlap and shared-answer
// similarity into one compatibility score for a candidate, with graceful
// degradation when either profile is sparse. The result always lands in
// [cfg.ScoreFloor, 1.0].
func scoreCandidate(subject *User, cand Candidate, cfg MatchConfig) MatchResult {
	subjectInterests := dedupeInterests(subject.Interests)
	candInterests := dedupeInterests(cand.Interests)

	shared := sharedInterests(subjectInterests, candInterests)
	denom := len(subjectInterests)
	if denom < 1 {
		denom = 1
	}
	interestScore := float64(len(shared)) / float64(denom)

	sharedAnswers := pairSharedAnswers(subject.Answers, cand.Answers)
	answerScore := 0.0
	if len(sharedAnswers) > 0 {
		total := 0.0
		for _, sa := range sharedAnswers {
			total += sa.Similarity
		}
		answerScore = total / float64(len(sharedAnswers))
	}

	// Proximity alone carries weak signal, so any two nearby people start
	// from a modest base. Signals replace the base only when present.
	score := cfg.BaseScore
	if len(subjectInterests) > 0 || len(candInterests) > 0 ||
		len(subject.Answers) > 0 || len(cand.Answers) > 0 {
		weightSum := 0.0
		weighted := 0.0
		if len(subjectInterests) > 0 || len(candInterests) > 0 {
			weighted += cfg.InterestWeight * interestScore
			weightSum += cfg.InterestWeight
		}
		if len(sharedAnswers) > 0 {
			weighted += cfg.AnswerWeight * answerScore
			weightSum += cfg.AnswerWeight
		}
		if weightSum > 0 {
			score = weighted / weightSum
		}
	}

	// Any concrete common ground beats none at all
	if len(shared) > 0 || len(sharedAnswers) > 0 {
		score += cfg.SharedSignalBonus
	}

	if score < cfg.ScoreFloor {
		score = cfg.ScoreFloor
	}
	if score > 1.0 {
		score = 1.0
	}

	return MatchResult{
		User:          cand.User,
		Score:         score,
		SharedAnswers: sharedAnswers,
		Insight:       generateInsight(shared, sharedAnswers, score),
		DistanceKm:    cand.DistanceKm,
		ComputedAt:    time.Now(),
	}
}

// dedupeInterests collapses duplicate tags case-insensitively while keeping
// the owner's original order and casing.
func dedupeInterests(interests []string) []string {
	seen := make(map[string]struct{}, len(interests))
	out := make([]string, 0, len(interests))
	for _, tag := range interests {
		key := strings.ToLower(strings.TrimSpace(tag))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(tag))
	}
	return out
}

// sharedInterests intersects two tag lists case-insensitively, ordered by
// the subject's list so insights cite the subject's leading interest.
func sharedInterests(subjectInterests, candInterests []string) []string {
	candSet := make(map[string]struct{}, len(candInterests))
	for _, tag := range candInterests {
		candSet[strings.ToLower(tag)] = struct{}{}
	}
	var shared []string
	for _, tag := range subjectInterests {
		if _, ok := candSet[strings.ToLower(tag)]; ok {
			shared = append(shared, tag)
		}
	}
	return shared
}

// pairSharedAnswers matches answers by prompt id across the two users and
// scores each pair. Only prompts answered by both parties appear.
func pairSharedAnswers(subjectAnswers, candAnswers []AnswerRecord) []SharedAnswer {
	byPrompt := make(map[string]AnswerRecord, len(candAnswers))
	for _, ans := range candAnswers {
		byPrompt[ans.PromptID] = ans
	}
	var pairs []SharedAnswer
	for _, mine := range subjectAnswers {
		theirs, ok := byPrompt[mine.PromptID]
		if !ok {
			continue
		}
		pairs = append(pairs, SharedAnswer{
			PromptText:      mine.PromptText,
			SubjectAnswer:   mine.AnswerText,
			CandidateAnswer: theirs.AnswerText,
			Similarity:      answerSimilarity(mine.AnswerText, theirs.AnswerText),
		})
	}
	return pairs
}

// generateInsight builds the one-line rationale shown with a match.
// Priority: concrete shared interests beat generic shared-values wording,
// which beats a score-banded fallback.
func generateInsight(shared []string, sharedAnswers []SharedAnswer, score float64) string {
	switch {
	case len(shared) > 0 && len(sharedAnswers) > 0:
		return fmt.Sprintf("You both enjoy %s and answered questions in a similar way", shared[0])
	case len(shared) >= 2:
		return fmt.Sprintf("You both enjoy %s and %s", shared[0], shared[1])
	case len(shared) == 1:
		return fmt.Sprintf("You both enjoy %s", shared[0])
	case len(sharedAnswers) > 0:
		return "You seem to share similar values and perspectives"
	case score >= 0.7:
		return "Strong potential for a great conversation"
	case score >= 0.5:
		return "You two might enjoy talking to each other"
	default:
		return "Different perspectives that could be intriguing"
	}
}

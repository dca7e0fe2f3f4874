package main

import "time"

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AnswerRecord is one free-text answer a user gave to a prompted question.
// The prompt text is denormalized so results can be rendered without a
// second lookup. Answers are owned by their user and ordered by creation.
type AnswerRecord struct {
	PromptID   string    `json:"prompt_id"`
	PromptText string    `json:"prompt_text"`
	AnswerText string    `json:"answer_text"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is a subject or candidate profile as decoded from the store.
// Location stays nil until the user has granted location access.
type User struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Age         int            `json:"age"`
	Bio         string         `json:"bio"`
	Interests   []string       `json:"interests"`
	Location    *Coordinate    `json:"location,omitempty"`
	Visible     bool           `json:"visible"`
	LastActive  time.Time      `json:"last_active"`
	Answers     []AnswerRecord `json:"answers"`
}

// Candidate is a retrieved user annotated with its exact distance from the
// subject and whether it has been active recently.
type Candidate struct {
	User
	DistanceKm float64 `json:"distance_km"`
	IsActive   bool    `json:"is_active"`
}

// SharedAnswer pairs the subject's and a candidate's answers to the same
// prompt, with their pairwise similarity.
type SharedAnswer struct {
	PromptText      string  `json:"prompt_text"`
	SubjectAnswer   string  `json:"subject_answer"`
	CandidateAnswer string  `json:"candidate_answer"`
	Similarity      float64 `json:"similarity"`
}

// MatchResult is the scored outcome for one candidate. It is derived fresh
// on every discovery run and never persisted.
type MatchResult struct {
	User          User           `json:"user"`
	Score         float64        `json:"score"`
	SharedAnswers []SharedAnswer `json:"shared_answers"`
	Insight       string         `json:"insight"`
	DistanceKm    float64        `json:"distance_km"`
	ComputedAt    time.Time      `json:"computed_at"`
}

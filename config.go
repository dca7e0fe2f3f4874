package main

import "time"

// MatchConfig holds every tuning knob of the discovery pipeline. The score
// floor and the shared-signal bonus are behavior-parity constants carried
// over from the original tuning; change them here, not inline.
type MatchConfig struct {
	// Candidate retrieval
	RadiusKm         float64       // search radius around the subject
	MaxCandidateDocs int           // store-side result cap per query
	ActiveWindow     time.Duration // last-active window for the isActive flag

	// Compatibility scoring
	BaseScore         float64 // starting compatibility for any two nearby people
	InterestWeight    float64 // blend weight of the shared-interest signal
	AnswerWeight      float64 // blend weight of the shared-answer signal
	SharedSignalBonus float64 // flat bonus for any concrete common ground
	ScoreFloor        float64 // never report compatibility below this

	// Aggregation
	MinScore   float64 // results below this are dropped
	MaxResults int     // ranked list cap

	// Orchestration
	DebounceInterval time.Duration // location-change coalescing window
	RefreshInterval  time.Duration // periodic refresh while subscribed
}

// DefaultMatchConfig returns the production defaults.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		RadiusKm:         50,
		MaxCandidateDocs: 100,
		ActiveWindow:     5 * time.Minute,

		BaseScore:         0.4,
		InterestWeight:    0.3,
		AnswerWeight:      0.7,
		SharedSignalBonus: 0.1,
		ScoreFloor:        0.35,

		MinScore:   0.3,
		MaxResults: 20,

		DebounceInterval: 5 * time.Second,
		RefreshInterval:  30 * time.Second,
	}
}

package main

import "sort"

// aggregateMatches filters out results below the minimum score, sorts by
// score descending (ties broken by ascending distance, then candidate id so
// the ordering is deterministic), and truncates to the result cap.
// Idempotent: aggregating an already-aggregated list returns it unchanged.
func aggregateMatches(results []MatchResult, cfg MatchConfig) []MatchResult {
	kept := make([]MatchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= cfg.MinScore {
			kept = append(kept, r)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		if kept[i].DistanceKm != kept[j].DistanceKm {
			return kept[i].DistanceKm < kept[j].DistanceKm
		}
		return kept[i].User.ID < kept[j].User.ID
	})

	if cfg.MaxResults > 0 && len(kept) > cfg.MaxResults {
		kept = kept[:cfg.MaxResults]
	}
	return kept
}

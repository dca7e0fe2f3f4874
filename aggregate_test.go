package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func matchWith(id string, score, distance float64) MatchResult {
	return MatchResult{User: User{ID: id}, Score: score, DistanceKm: distance}
}

func TestAggregateMatches(t *testing.T) {
	cfg := DefaultMatchConfig()

	t.Run("Filters below the minimum score", func(t *testing.T) {
		results := []MatchResult{
			matchWith("a", 0.9, 1),
			matchWith("b", 0.29, 2),
			matchWith("c", 0.3, 3),
		}
		got := aggregateMatches(results, cfg)
		require.Len(t, got, 2)
		for _, r := range got {
			require.GreaterOrEqual(t, r.Score, cfg.MinScore)
		}
	})

	t.Run("Sorts by score descending", func(t *testing.T) {
		results := []MatchResult{
			matchWith("low", 0.4, 1),
			matchWith("high", 0.95, 9),
			matchWith("mid", 0.6, 5),
		}
		got := aggregateMatches(results, cfg)
		require.Equal(t, []string{"high", "mid", "low"}, ids(got))
	})

	t.Run("Ties break by distance then id", func(t *testing.T) {
		results := []MatchResult{
			matchWith("far", 0.5, 20),
			matchWith("near", 0.5, 2),
			matchWith("zz", 0.5, 5),
			matchWith("aa", 0.5, 5),
		}
		got := aggregateMatches(results, cfg)
		require.Equal(t, []string{"near", "aa", "zz", "far"}, ids(got))
	})

	t.Run("Truncates to the result cap", func(t *testing.T) {
		small := cfg
		small.MaxResults = 3
		var results []MatchResult
		for i := 0; i < 10; i++ {
			results = append(results, matchWith(string(rune('a'+i)), 0.4+float64(i)*0.05, float64(i)))
		}
		got := aggregateMatches(results, small)
		require.Len(t, got, 3)
		require.InDelta(t, 0.85, got[0].Score, 1e-9)
	})

	t.Run("Idempotent on an already aggregated list", func(t *testing.T) {
		results := []MatchResult{
			matchWith("a", 0.9, 1),
			matchWith("b", 0.7, 2),
			matchWith("c", 0.7, 5),
			matchWith("d", 0.35, 3),
		}
		once := aggregateMatches(results, cfg)
		twice := aggregateMatches(once, cfg)
		require.Equal(t, once, twice)
	})

	t.Run("Empty input yields empty output", func(t *testing.T) {
		got := aggregateMatches(nil, cfg)
		require.Empty(t, got)
	})
}

func ids(results []MatchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.User.ID
	}
	return out
}

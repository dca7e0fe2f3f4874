package main

import (
	"context"
	"sort"
	"time"
)

// retrieveCandidates returns the visible users within cfg.RadiusKm of the
// subject, sorted by ascending distance. The store prefilters on latitude
// only; longitude and the exact great-circle radius are enforced here. The
// subject itself is excluded structurally, never scored.
func retrieveCandidates(ctx context.Context, store CandidateStore, subject *User, cfg MatchConfig) ([]Candidate, error) {
	if subject.Location == nil {
		return nil, ErrLocationUnavailable
	}

	box := boundingBoxAround(*subject.Location, cfg.RadiusKm)
	users, err := store.QueryVisibleByLatRange(ctx, box.MinLat, box.MaxLat, cfg.MaxCandidateDocs)
	if err != nil {
		return nil, &RetrievalError{Cause: err}
	}

	now := time.Now()
	candidates := make([]Candidate, 0, len(users))
	for _, u := range users {
		if u.ID == subject.ID {
			continue
		}
		if u.Location == nil {
			continue
		}
		if !box.containsLon(u.Location.Lon) {
			continue
		}
		d := distanceKm(*subject.Location, *u.Location)
		if d > cfg.RadiusKm {
			continue
		}
		candidates = append(candidates, Candidate{
			User:       u,
			DistanceKm: d,
			IsActive:   now.Sub(u.LastActive) <= cfg.ActiveWindow,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].DistanceKm < candidates[j].DistanceKm
	})
	return candidates, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeStore is an in-memory CandidateStore. The lat-range query applies the
// same store-side semantics as the real one: visibility equality plus a
// strict single-field latitude range with a result cap.
type fakeStore struct {
	mu         sync.Mutex
	users      map[string]*User
	queryErr   error
	queryDelay time.Duration
	queryCount int
	decodeFail map[string]bool
	events     chan StoreEvent
	closeOnce  sync.Once
}

func newFakeStore(users ...*User) *fakeStore {
	f := &fakeStore{users: make(map[string]*User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) QueryVisibleByLatRange(ctx context.Context, minLat, maxLat float64, limit int) ([]User, error) {
	f.mu.Lock()
	f.queryCount++
	delay := f.queryDelay
	err := f.queryErr
	var out []User
	if err == nil {
		for _, u := range f.users {
			if !u.Visible || u.Location == nil {
				continue
			}
			if u.Location.Lat <= minLat || u.Location.Lat >= maxLat {
				continue
			}
			if f.decodeFail[u.ID] {
				// Mirrors the real store: a row that fails to decode is
				// dropped without failing the whole query
				continue
			}
			out = append(out, *u)
			if len(out) == limit {
				break
			}
		}
	}
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return out, err
}

func (f *fakeStore) Subscribe(ctx context.Context) (<-chan StoreEvent, func(), error) {
	f.mu.Lock()
	if f.events == nil {
		f.events = make(chan StoreEvent, 8)
	}
	ch := f.events
	f.mu.Unlock()
	return ch, func() { f.closeOnce.Do(func() { close(ch) }) }, nil
}

// pushEvent feeds a change notification to whoever subscribed, the way the
// real listener forwards NOTIFY payloads.
func (f *fakeStore) pushEvent(userID string) {
	f.mu.Lock()
	ch := f.events
	f.mu.Unlock()
	if ch != nil {
		ch <- StoreEvent{UserID: userID}
	}
}

func (f *fakeStore) markDecodeFail(id string) {
	f.mu.Lock()
	if f.decodeFail == nil {
		f.decodeFail = make(map[string]bool)
	}
	f.decodeFail[id] = true
	f.mu.Unlock()
}

func (f *fakeStore) queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCount
}

func (f *fakeStore) setQueryErr(err error) {
	f.mu.Lock()
	f.queryErr = err
	f.mu.Unlock()
}

func userAt(id string, lat, lon float64) *User {
	return &User{
		ID:          id,
		DisplayName: id,
		Visible:     true,
		Location:    &Coordinate{Lat: lat, Lon: lon},
		LastActive:  time.Now(),
	}
}

func TestRetrieveCandidates(t *testing.T) {
	cfg := DefaultMatchConfig()
	subject := userAt("subject", 40.0, -74.0)

	t.Run("Requires a subject location", func(t *testing.T) {
		store := newFakeStore(userAt("other", 40.0, -74.0))
		_, err := retrieveCandidates(context.Background(), store, &User{ID: "subject"}, cfg)
		if !errors.Is(err, ErrLocationUnavailable) {
			t.Fatalf("expected ErrLocationUnavailable, got %v", err)
		}
	})

	t.Run("Subject is excluded structurally", func(t *testing.T) {
		store := newFakeStore(subject, userAt("near", 40.1, -74.0))
		cands, err := retrieveCandidates(context.Background(), store, subject, cfg)
		if err != nil {
			t.Fatal(err)
		}
		for _, c := range cands {
			if c.ID == subject.ID {
				t.Fatal("subject appeared in its own candidate list")
			}
		}
		if len(cands) != 1 {
			t.Fatalf("expected 1 candidate, got %d", len(cands))
		}
	})

	t.Run("Longitude outside the box is rejected client-side", func(t *testing.T) {
		// Same latitude as the subject so the store prefilter passes
		store := newFakeStore(userAt("lonOut", 40.0, -74.8))
		cands, err := retrieveCandidates(context.Background(), store, subject, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if len(cands) != 0 {
			t.Fatalf("expected no candidates, got %d", len(cands))
		}
	})

	t.Run("Inside the box but beyond the radius is rejected", func(t *testing.T) {
		// Diagonal corner case: ~61km away yet inside the bounding box,
		// which only the exact distance check catches
		store := newFakeStore(userAt("corner", 40.40, -73.50))
		cands, err := retrieveCandidates(context.Background(), store, subject, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if len(cands) != 0 {
			t.Fatalf("expected corner candidate to be filtered, got %d", len(cands))
		}
	})

	t.Run("Candidates without a location are skipped", func(t *testing.T) {
		noLoc := &User{ID: "noloc", Visible: true, LastActive: time.Now()}
		store := newFakeStore(noLoc, userAt("near", 40.05, -74.0))
		cands, err := retrieveCandidates(context.Background(), store, subject, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if len(cands) != 1 || cands[0].ID != "near" {
			t.Fatalf("expected only the located candidate, got %v", cands)
		}
	})

	t.Run("Sorted ascending by distance with annotations", func(t *testing.T) {
		mid := userAt("mid", 40.3, -74.0)
		mid.LastActive = time.Now().Add(-10 * time.Minute)
		store := newFakeStore(userAt("near", 40.1, -74.0), mid)

		cands, err := retrieveCandidates(context.Background(), store, subject, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if len(cands) != 2 {
			t.Fatalf("expected 2 candidates, got %d", len(cands))
		}
		if cands[0].ID != "near" || cands[1].ID != "mid" {
			t.Fatalf("expected near before mid, got %s, %s", cands[0].ID, cands[1].ID)
		}
		if cands[0].DistanceKm <= 0 || cands[0].DistanceKm > cfg.RadiusKm {
			t.Fatalf("unexpected distance %f", cands[0].DistanceKm)
		}
		if !cands[0].IsActive {
			t.Error("expected recently active candidate to be flagged active")
		}
		if cands[1].IsActive {
			t.Error("expected stale candidate to be flagged inactive")
		}
	})

	t.Run("Every returned candidate is within the radius", func(t *testing.T) {
		store := newFakeStore(
			userAt("a", 40.05, -74.0),
			userAt("b", 40.40, -73.50),
			userAt("c", 40.2, -74.3),
			userAt("d", 40.44, -74.0),
		)
		cands, err := retrieveCandidates(context.Background(), store, subject, cfg)
		if err != nil {
			t.Fatal(err)
		}
		for _, c := range cands {
			if c.DistanceKm > cfg.RadiusKm {
				t.Errorf("candidate %s at %fkm exceeds the %fkm radius", c.ID, c.DistanceKm, cfg.RadiusKm)
			}
		}
	})

	t.Run("Result set honors the candidate document cap", func(t *testing.T) {
		over := cfg.MaxCandidateDocs + 25
		users := make([]*User, 0, over)
		for i := 0; i < over; i++ {
			// All in range and well inside the radius
			users = append(users, userAt(fmt.Sprintf("u%03d", i), 40.0+float64(i%10)*0.01, -74.0))
		}
		store := newFakeStore(users...)
		cands, err := retrieveCandidates(context.Background(), store, subject, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if len(cands) != cfg.MaxCandidateDocs {
			t.Fatalf("expected exactly %d candidates, got %d", cfg.MaxCandidateDocs, len(cands))
		}
	})

	t.Run("A document that fails to decode is skipped, not fatal", func(t *testing.T) {
		store := newFakeStore(
			userAt("good-a", 40.05, -74.0),
			userAt("broken", 40.06, -74.0),
			userAt("good-b", 40.07, -74.0),
		)
		store.markDecodeFail("broken")
		cands, err := retrieveCandidates(context.Background(), store, subject, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if len(cands) != 2 {
			t.Fatalf("expected the two decodable candidates, got %d", len(cands))
		}
		for _, c := range cands {
			if c.ID == "broken" {
				t.Error("undecodable candidate leaked into the results")
			}
		}
	})

	t.Run("Store failure surfaces as a retrieval error", func(t *testing.T) {
		store := newFakeStore()
		store.setQueryErr(errors.New("connection reset"))
		_, err := retrieveCandidates(context.Background(), store, subject, cfg)
		var re *RetrievalError
		if !errors.As(err, &re) {
			t.Fatalf("expected RetrievalError, got %v", err)
		}
	})
}

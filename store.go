package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/lib/pq"
)

// ErrUserNotFound is returned by GetUser when no such user exists.
var ErrUserNotFound = errors.New("user not found")

// StoreEvent is one profile-change notification from the store.
type StoreEvent struct {
	UserID string
}

// CandidateStore is the boundary to the remote document store. The query
// primitive supports an equality filter (visible) plus a single-field range
// filter with a result limit; everything finer is enforced by the caller.
type CandidateStore interface {
	// GetUser loads one user with its answers.
	GetUser(ctx context.Context, id string) (*User, error)
	// QueryVisibleByLatRange returns visible users whose latitude falls
	// strictly between the bounds, capped at limit documents. Malformed
	// documents are skipped, not fatal.
	QueryVisibleByLatRange(ctx context.Context, minLat, maxLat float64, limit int) ([]User, error)
	// Subscribe opens a long-lived stream of profile-change events.
	// The returned cancel func tears the subscription down.
	Subscribe(ctx context.Context) (<-chan StoreEvent, func(), error)
}

const profileChannel = "profile_updates"

type postgresStore struct {
	db      *sql.DB
	connStr string
}

// NewPostgresStore wraps an open connection pool as a CandidateStore.
// connStr is kept for the LISTEN connection, which lib/pq manages separately
// from the pool.
func NewPostgresStore(db *sql.DB, connStr string) CandidateStore {
	return &postgresStore{db: db, connStr: connStr}
}

func (s *postgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	var lat, lon sql.NullFloat64
	var interestsRaw []byte
	err := s.db.QueryRowContext(ctx, `
        SELECT id, display_name, age, bio, interests, location_lat, location_lon, visible, last_active
        FROM users WHERE id = $1
    `, id).Scan(&u.ID, &u.DisplayName, &u.Age, &u.Bio, &interestsRaw, &lat, &lon, &u.Visible, &u.LastActive)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, err
	}
	u.Interests = parseStringArray(interestsRaw)
	if lat.Valid && lon.Valid {
		u.Location = &Coordinate{Lat: lat.Float64, Lon: lon.Float64}
	}

	answers, err := loadAnswers(ctx, s.db, []string{u.ID})
	if err != nil {
		return nil, err
	}
	u.Answers = answers[u.ID]
	return &u, nil
}

func (s *postgresStore) QueryVisibleByLatRange(ctx context.Context, minLat, maxLat float64, limit int) ([]User, error) {
	// Latitude-only range prefilter: a compound range over two fields is
	// not expressible as a single indexed query, so longitude and the true
	// radius are enforced by the caller.
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, display_name, age, bio, interests, location_lat, location_lon, visible, last_active
        FROM users
        WHERE visible = TRUE
          AND location_lat > $1
          AND location_lat < $2
        LIMIT $3
    `, minLat, maxLat, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var lat, lon sql.NullFloat64
		var interestsRaw []byte
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Age, &u.Bio, &interestsRaw, &lat, &lon, &u.Visible, &u.LastActive); err != nil {
			// A single malformed document never aborts the run
			log.Println("skipping malformed candidate document:", err)
			continue
		}
		u.Interests = parseStringArray(interestsRaw)
		if lat.Valid && lon.Valid {
			u.Location = &Coordinate{Lat: lat.Float64, Lon: lon.Float64}
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(users) > 0 {
		ids := make([]string, len(users))
		for i, u := range users {
			ids[i] = u.ID
		}
		answers, err := loadAnswers(ctx, s.db, ids)
		if err != nil {
			return nil, err
		}
		for i := range users {
			users[i].Answers = answers[users[i].ID]
		}
	}
	return users, nil
}

func (s *postgresStore) Subscribe(ctx context.Context) (<-chan StoreEvent, func(), error) {
	listener := pq.NewListener(s.connStr, 10*time.Second, time.Minute, nil)
	if err := listener.Listen(profileChannel); err != nil {
		listener.Close()
		return nil, nil, err
	}

	events := make(chan StoreEvent, 16)
	done := make(chan struct{})
	go func() {
		defer close(events)
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil {
					// lib/pq sends nil after a reconnect; nothing to forward
					continue
				}
				select {
				case events <- StoreEvent{UserID: n.Extra}:
				default:
					// Drop event if the consumer is behind
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		_ = listener.Close()
	}
	return events, cancel, nil
}

// notifyProfileChanged publishes a store notification so subscribed
// discovery sessions refresh.
func notifyProfileChanged(db *sql.DB, userID string) {
	if _, err := db.Exec(`SELECT pg_notify($1, $2)`, profileChannel, userID); err != nil {
		log.Println("pg_notify failed:", err)
	}
}

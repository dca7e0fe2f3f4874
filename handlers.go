package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
)

// matchesHandler runs the discovery pipeline for the authenticated subject
// and returns the ranked results.
func matchesHandler(svc *DiscoveryService) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(string)

		matches, err := svc.Discover(r.Context(), userID)
		if err != nil {
			status, code := discoveryErrorStatus(err)
			writeError(w, status, code)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]MatchResult{"matches": matches})
	})
}

func discoveryErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized, "not_authenticated"
	case errors.Is(err, ErrLocationUnavailable):
		return http.StatusConflict, "location_required"
	default:
		var re *RetrievalError
		if errors.As(err, &re) {
			log.Println("retrieval error:", re)
			return http.StatusBadGateway, "retrieval_failed"
		}
		return http.StatusInternalServerError, "discovery_error"
	}
}

// meLocationHandler updates the subject's coordinate and triggers a
// debounced refresh of its discovery session.
func meLocationHandler(db *sql.DB, svc *DiscoveryService) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut && r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(string)

		var coord Coordinate
		if err := json.NewDecoder(r.Body).Decode(&coord); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if coord.Lat < -90 || coord.Lat > 90 || coord.Lon < -180 || coord.Lon > 180 {
			writeError(w, http.StatusBadRequest, "invalid_coordinate")
			return
		}

		_, err := db.Exec(`
			UPDATE users SET location_lat = $1, location_lon = $2, last_active = NOW() WHERE id = $3
		`, coord.Lat, coord.Lon, userID)
		if err != nil {
			log.Println("Error updating location:", err)
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		notifyProfileChanged(db, userID)
		svc.Session(userID).NotifyLocationChanged()
		w.WriteHeader(http.StatusNoContent)
	})
}

// meProfileHandler reads or updates the subject's discoverable profile.
func meProfileHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(string)

		switch r.Method {
		case http.MethodGet:
			loaders := GetDataLoadersFromContext(r.Context())
			if loaders == nil {
				loaders = NewDataLoaders(db)
			}
			user, err := loaders.UserLoader.Load(r.Context(), userID)()
			if err != nil || user == nil {
				writeError(w, http.StatusNotFound, "not_found")
				return
			}
			writeJSON(w, http.StatusOK, user)

		case http.MethodPut, http.MethodPatch:
			type ProfileUpdate struct {
				DisplayName string   `json:"display_name"`
				Age         int      `json:"age"`
				Bio         string   `json:"bio"`
				Interests   []string `json:"interests"`
				Visible     *bool    `json:"visible"`
			}
			var req ProfileUpdate
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			if req.Interests == nil {
				req.Interests = []string{}
			}
			interestsJSON, err := json.Marshal(dedupeInterests(req.Interests))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_interests")
				return
			}
			visible := true
			if req.Visible != nil {
				visible = *req.Visible
			}
			_, err = db.Exec(`
				UPDATE users
				SET display_name = $1, age = $2, bio = $3, interests = $4, visible = $5
				WHERE id = $6
			`, strings.TrimSpace(req.DisplayName), req.Age, req.Bio, interestsJSON, visible, userID)
			if err != nil {
				log.Println("Error updating profile:", err)
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			notifyProfileChanged(db, userID)
			writeJSON(w, http.StatusOK, map[string]bool{"updated": true})

		default:
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
		}
	})
}

// meAnswersHandler is the input boundary from the question-management
// collaborator: it appends prompt answers to the subject's profile.
func meAnswersHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(string)

		switch r.Method {
		case http.MethodGet:
			answers, err := loadAnswers(r.Context(), db, []string{userID})
			if err != nil {
				log.Println("Error loading answers:", err)
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			list := answers[userID]
			if list == nil {
				list = []AnswerRecord{}
			}
			writeJSON(w, http.StatusOK, map[string][]AnswerRecord{"answers": list})

		case http.MethodPost:
			type AnswerRequest struct {
				PromptID   string `json:"prompt_id"`
				PromptText string `json:"prompt_text"`
				AnswerText string `json:"answer_text"`
			}
			var req AnswerRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			if strings.TrimSpace(req.PromptID) == "" || strings.TrimSpace(req.AnswerText) == "" {
				writeError(w, http.StatusBadRequest, "missing_fields")
				return
			}
			_, err := db.Exec(`
				INSERT INTO answers (user_id, prompt_id, prompt_text, answer_text, created_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (user_id, prompt_id)
				DO UPDATE SET prompt_text = EXCLUDED.prompt_text,
				              answer_text = EXCLUDED.answer_text,
				              created_at = EXCLUDED.created_at
			`, userID, req.PromptID, req.PromptText, req.AnswerText, time.Now())
			if err != nil {
				log.Println("Error saving answer:", err)
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			notifyProfileChanged(db, userID)
			writeJSON(w, http.StatusCreated, map[string]bool{"saved": true})

		default:
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
		}
	})
}

// usersHandler serves public profiles: GET /users/{id}
func usersHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 2 || parts[0] != "users" || parts[1] == "" {
			http.NotFound(w, r)
			return
		}
		id := parts[1]

		loaders := GetDataLoadersFromContext(r.Context())
		if loaders == nil {
			loaders = NewDataLoaders(db)
		}
		user, err := loaders.UserLoader.Load(r.Context(), id)()
		if err != nil {
			log.Println("Error loading user:", err)
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if user == nil || !user.Visible {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		active, _ := isActiveNow(db, id)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":           user.ID,
			"display_name": user.DisplayName,
			"age":          user.Age,
			"bio":          user.Bio,
			"interests":    user.Interests,
			"is_active":    active,
		})
	})
}

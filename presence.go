package main

import (
	"database/sql"
	"net/http"
)

// mePingHandler marks the authenticated user as active "now". Candidates are
// flagged active when their last heartbeat is inside the configured window.
func mePingHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(string)
		_, _ = db.Exec(`UPDATE users SET last_active = NOW() WHERE id = $1`, userID)
		w.WriteHeader(http.StatusNoContent)
	})
}

func isActiveNow(db *sql.DB, userID string) (bool, error) {
	var active bool
	err := db.QueryRow(`
		SELECT COALESCE(last_active > NOW() - INTERVAL '5 minutes', FALSE) AS active
        FROM users
        WHERE id = $1
	`, userID).Scan(&active)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return active, err
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
)

// JWT secret from environment variable or fallback
func getJWTSecret() []byte {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("your_secret_key_please_change_in_production")
}

var jwtSecret = getJWTSecret()

func main() {
	connStr := initDB()

	store := NewPostgresStore(db, connStr)
	discovery := NewDiscoveryService(store, DefaultMatchConfig())
	if err := discovery.Start(context.Background()); err != nil {
		log.Fatal("Cannot subscribe to store notifications:", err)
	}
	defer discovery.Close()

	mux := http.NewServeMux()

	// Core auth & user endpoints
	mux.Handle("/register", registerHandler(db))
	mux.Handle("/login", loginHandler(db))
	mux.Handle("/me/profile", meProfileHandler(db))
	mux.Handle("/me/answers", meAnswersHandler(db))
	mux.Handle("/me/location", meLocationHandler(db, discovery))

	// Ping: mark this user as active "now"
	mux.Handle("/me/ping", mePingHandler(db)) // POST

	// Discovery
	mux.Handle("/matches", matchesHandler(discovery)) // GET ranked matches

	// Public profiles
	mux.Handle("/users/", usersHandler(db))

	// WebSocket discovery feed: live state snapshots + client triggers
	mux.Handle("/ws/discovery", wsDiscoveryHandler(db, discovery))

	// Health check endpoint for Docker
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Batched user lookups share one query per request
	handler := DataLoaderMiddleware(db)(withCORS(mux))

	log.Default().Println("Starting Icebreaker Backend on port 8080...")
	http.ListenAndServe(":8080", handler)
}

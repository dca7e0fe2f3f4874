package main

import (
	"net/http"
	"os"
)

// Cross-Origin Resource Sharing headers so browser clients can reach the
// backend. The web client dev server runs on :3000 and the Expo web build
// on :19006; deployments set FRONTEND_ORIGIN for their real origin.

func withCORS(next http.Handler) http.Handler {
	allowed := map[string]bool{
		"http://localhost:3000":  true,
		"http://127.0.0.1:3000":  true,
		"http://localhost:19006": true,
	}
	fallback := os.Getenv("FRONTEND_ORIGIN")
	if fallback == "" {
		fallback = "http://localhost:3000"
	}
	allowed[fallback] = true

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", fallback)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

package main

import (
	"net/http/httptest"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Run("Issued token resolves back to the user", func(t *testing.T) {
		token, err := issueToken("user-123")
		if err != nil {
			t.Fatal("issueToken:", err)
		}
		id, ok := parseUserIDFromJWT(token)
		if !ok {
			t.Fatal("expected token to parse")
		}
		if id != "user-123" {
			t.Errorf("expected user-123, got %q", id)
		}
	})

	t.Run("Garbage token is rejected", func(t *testing.T) {
		if _, ok := parseUserIDFromJWT("not.a.token"); ok {
			t.Error("expected garbage token to fail")
		}
	})

	t.Run("Token signed with another secret is rejected", func(t *testing.T) {
		original := jwtSecret
		jwtSecret = []byte("a-different-secret")
		token, err := issueToken("user-123")
		if err != nil {
			t.Fatal("issueToken:", err)
		}
		jwtSecret = original

		if _, ok := parseUserIDFromJWT(token); ok {
			t.Error("expected token from another secret to fail")
		}
	})
}

func TestGetUserIDFromRequest(t *testing.T) {
	token, err := issueToken("user-456")
	if err != nil {
		t.Fatal("issueToken:", err)
	}

	t.Run("Valid Authorization header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		userID, ok := getUserIDFromRequest(req)
		if !ok {
			t.Error("Expected getUserIDFromRequest to succeed")
		}
		if userID != "user-456" {
			t.Errorf("Expected userID user-456, got %s", userID)
		}
	})

	t.Run("Valid token query parameter", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test?token="+token, nil)

		userID, ok := getUserIDFromRequest(req)
		if !ok {
			t.Error("Expected getUserIDFromRequest to succeed with query param")
		}
		if userID != "user-456" {
			t.Errorf("Expected userID user-456, got %s", userID)
		}
	})

	t.Run("No authentication", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)

		if _, ok := getUserIDFromRequest(req); ok {
			t.Error("Expected getUserIDFromRequest to fail")
		}
	})

	t.Run("Malformed Authorization header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "NotBearer "+token)

		if _, ok := getUserIDFromRequest(req); ok {
			t.Error("Expected getUserIDFromRequest to fail with malformed header")
		}
	})

	t.Run("Invalid token query parameter", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test?token=invalid_token", nil)

		if _, ok := getUserIDFromRequest(req); ok {
			t.Error("Expected getUserIDFromRequest to fail with invalid query token")
		}
	})
}

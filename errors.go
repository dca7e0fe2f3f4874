package main

import (
	"errors"
	"fmt"
)

// Discovery short-circuits on these before any store call.
var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrLocationUnavailable = errors.New("location required for discovery")
)

// RetrievalError wraps a store or network failure. It aborts the current
// discovery run; previously published results are kept.
type RetrievalError struct {
	Cause error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("candidate retrieval failed: %v", e.Cause)
}

func (e *RetrievalError) Unwrap() error { return e.Cause }

// userMessage maps a pipeline error to the human-readable message carried by
// the error state.
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "You need to be signed in to discover people nearby."
	case errors.Is(err, ErrLocationUnavailable):
		return "Turn on location access to discover people nearby."
	default:
		var re *RetrievalError
		if errors.As(err, &re) {
			return "Couldn't load people nearby. Check your connection and try again."
		}
		return "Something went wrong. Please try again."
	}
}

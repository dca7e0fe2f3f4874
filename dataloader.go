package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader/v7"
)

// DataLoaderContextKey is the key used to store dataloaders in context
type DataLoaderContextKey string

const dataLoaderKey DataLoaderContextKey = "dataloader"

// DataLoaders holds the batched loaders shared by request handlers.
type DataLoaders struct {
	UserLoader *dataloader.Loader[string, *User]
}

// NewDataLoaders creates new dataloaders with the database connection
func NewDataLoaders(db *sql.DB) *DataLoaders {
	return &DataLoaders{
		UserLoader: dataloader.NewBatchedLoader(userBatchFn(db), dataloader.WithWait[string, *User](16*time.Millisecond)),
	}
}

// DataLoaderMiddleware attaches fresh per-request loaders so batched lookups
// within one request share a single query without caching across requests.
func DataLoaderMiddleware(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithDataLoaders(r.Context(), NewDataLoaders(db))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetDataLoadersFromContext retrieves dataloaders from context
func GetDataLoadersFromContext(ctx context.Context) *DataLoaders {
	if dl, ok := ctx.Value(dataLoaderKey).(*DataLoaders); ok {
		return dl
	}
	return nil
}

// WithDataLoaders adds dataloaders to context
func WithDataLoaders(ctx context.Context, dl *DataLoaders) context.Context {
	return context.WithValue(ctx, dataLoaderKey, dl)
}

// userBatchFn creates a batch function for loading public user profiles
func userBatchFn(db *sql.DB) dataloader.BatchFunc[string, *User] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[*User] {
		results := make([]*dataloader.Result[*User], len(keys))

		keyMap := make(map[string]int, len(keys)) // userID -> index in results
		for i, key := range keys {
			keyMap[key] = i
			results[i] = &dataloader.Result[*User]{}
		}

		if len(keys) == 0 {
			return results
		}

		placeholders := make([]string, len(keys))
		args := make([]interface{}, len(keys))
		for i, key := range keys {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = key
		}

		query := fmt.Sprintf(`
			SELECT id, display_name, age, bio, interests, visible, last_active
			FROM users
			WHERE id IN (%s)
		`, joinPlaceholders(placeholders))

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			for i := range results {
				results[i].Error = err
			}
			return results
		}
		defer rows.Close()

		for rows.Next() {
			var u User
			var interestsRaw []byte
			if err := rows.Scan(&u.ID, &u.DisplayName, &u.Age, &u.Bio, &interestsRaw, &u.Visible, &u.LastActive); err != nil {
				for i := range results {
					if results[i].Data == nil && results[i].Error == nil {
						results[i].Error = err
					}
				}
				return results
			}
			u.Interests = parseStringArray(interestsRaw)

			if idx, ok := keyMap[u.ID]; ok {
				results[idx].Data = &u
			}
		}

		return results
	}
}

// loadAnswers fetches answer records for a set of users in one batched
// query, keyed by user id. A fresh loader per call keeps discovery runs from
// observing stale cached answers.
func loadAnswers(ctx context.Context, db *sql.DB, ids []string) (map[string][]AnswerRecord, error) {
	loader := dataloader.NewBatchedLoader(answerBatchFn(db), dataloader.WithWait[string, []AnswerRecord](0))
	thunk := loader.LoadMany(ctx, ids)
	values, errs := thunk()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	byUser := make(map[string][]AnswerRecord, len(ids))
	for i, id := range ids {
		byUser[id] = values[i]
	}
	return byUser, nil
}

// answerBatchFn creates a batch function for loading answer records
func answerBatchFn(db *sql.DB) dataloader.BatchFunc[string, []AnswerRecord] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[[]AnswerRecord] {
		results := make([]*dataloader.Result[[]AnswerRecord], len(keys))

		keyMap := make(map[string]int, len(keys)) // userID -> index in results
		for i, key := range keys {
			keyMap[key] = i
			results[i] = &dataloader.Result[[]AnswerRecord]{}
		}

		if len(keys) == 0 {
			return results
		}

		placeholders := make([]string, len(keys))
		args := make([]interface{}, len(keys))
		for i, key := range keys {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = key
		}

		query := fmt.Sprintf(`
			SELECT user_id, prompt_id, prompt_text, answer_text, created_at
			FROM answers
			WHERE user_id IN (%s)
			ORDER BY created_at
		`, joinPlaceholders(placeholders))

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			for i := range results {
				results[i].Error = err
			}
			return results
		}
		defer rows.Close()

		for rows.Next() {
			var userID string
			var rec AnswerRecord
			if err := rows.Scan(&userID, &rec.PromptID, &rec.PromptText, &rec.AnswerText, &rec.CreatedAt); err != nil {
				for i := range results {
					if results[i].Data == nil && results[i].Error == nil {
						results[i].Error = err
					}
				}
				return results
			}
			if idx, ok := keyMap[userID]; ok {
				results[idx].Data = append(results[idx].Data, rec)
			}
		}

		return results
	}
}

// Helper function to join placeholders for IN clause
func joinPlaceholders(placeholders []string) string {
	if len(placeholders) == 0 {
		return ""
	}
	result := placeholders[0]
	for i := 1; i < len(placeholders); i++ {
		result += ", " + placeholders[i]
	}
	return result
}

// Helper function to parse a JSON string array column
func parseStringArray(raw []byte) []string {
	var result []string
	if len(raw) == 0 {
		return result
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		// If JSON parsing fails, return empty array
		return []string{}
	}
	return result
}

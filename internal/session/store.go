package session

import (
	"context"
	"errors"

	"property-agent/internal/model"
)

var (
	// ErrSessionNotFound is returned for an id the store has never issued (or has lost).
	ErrSessionNotFound = errors.New("session not found")
)

// Store owns every conversation and its last search result. Callers always go
// through a session id; nothing returned by a Store aliases its internal state.
type Store interface {
	// Create registers an empty conversation and returns its id.
	Create(ctx context.Context) (string, error)
	// Lock holds sessionID exclusively until the returned func is called, for
	// every caller sharing the same backend.
	Lock(ctx context.Context, sessionID string) (func(), error)
	Load(ctx context.Context, sessionID string) (*model.ConversationState, error)
	Save(ctx context.Context, sessionID string, state *model.ConversationState) error
	// SaveQueryResult records the last compiled SQL. A nil results slice marks a failed search.
	SaveQueryResult(ctx context.Context, sessionID, sql string, results []model.Property) error
	LoadQueryResult(ctx context.Context, sessionID string) (*model.QueryResult, error)
	// Reset empties the conversation and forgets the last search, keeping the id.
	Reset(ctx context.Context, sessionID string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

func copyResults(results []model.Property) []model.Property {
	if results == nil {
		return nil
	}
	out := make([]model.Property, len(results))
	copy(out, results)
	return out
}

package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"property-agent/internal/model"
)

// MemoryStore keeps sessions in process memory. Sessions live until the
// process exits or they are reset.
type MemoryStore struct {
	mu              sync.RWMutex
	records         map[string]*model.SessionRecord
	optionalAllowed int
	locker          *Locker
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(optionalAllowed int) *MemoryStore {
	return &MemoryStore{
		records:         make(map[string]*model.SessionRecord),
		optionalAllowed: optionalAllowed,
		locker:          NewLocker(),
	}
}

func (s *MemoryStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = &model.SessionRecord{
		Conversation: *model.NewConversationState(id, s.optionalAllowed),
	}
	return id, nil
}

// Lock serializes callers working on sessionID within this process.
func (s *MemoryStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	return s.locker.Lock(sessionID), nil
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*model.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return rec.Conversation.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, sessionID string, state *model.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	rec.Conversation = *state.Clone()
	rec.Conversation.SessionID = sessionID
	return nil
}

func (s *MemoryStore) SaveQueryResult(ctx context.Context, sessionID, sql string, results []model.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	rec.GeneratedSQL = &sql
	rec.QueryResults = copyResults(results)
	return nil
}

func (s *MemoryStore) LoadQueryResult(ctx context.Context, sessionID string) (*model.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	result := &model.QueryResult{Results: copyResults(rec.QueryResults)}
	if rec.GeneratedSQL != nil {
		result.SQL = *rec.GeneratedSQL
	}
	return result, nil
}

func (s *MemoryStore) Reset(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	s.records[sessionID] = &model.SessionRecord{
		Conversation: *model.NewConversationState(sessionID, rec.Conversation.OptionalAllowed),
	}
	return nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

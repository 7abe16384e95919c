package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"property-agent/internal/config"
	"property-agent/internal/model"
)

// NewRedisClient creates a Redis client for the session backend
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})
}

const (
	defaultLockTTL    = 30 * time.Second
	lockRetryInterval = 20 * time.Millisecond
	maxTxRetries      = 100
)

// releaseLockScript deletes the lock only while it still holds our token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore persists each session as one JSON document, so conversations
// survive restarts and can be shared by several server replicas. Session keys
// never expire; lock keys expire after lockTTL.
type RedisStore struct {
	client          *redis.Client
	prefix          string
	optionalAllowed int
	lockTTL         time.Duration
}

// NewRedisStore creates a store on client. Keys are namespaced with prefix.
func NewRedisStore(client *redis.Client, prefix string, optionalAllowed int) *RedisStore {
	return &RedisStore{
		client:          client,
		prefix:          prefix,
		optionalAllowed: optionalAllowed,
		lockTTL:         defaultLockTTL,
	}
}

// Ping tests the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *RedisStore) lockKey(id string) string {
	return s.prefix + "lock:" + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "sessions"
}

func (s *RedisStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	rec := &model.SessionRecord{
		Conversation: *model.NewConversationState(id, s.optionalAllowed),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(id), data, 0)
		pipe.SAdd(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// Lock takes the per-session lock shared by every store on the same Redis.
// It polls until the lock is free or ctx is done. A holder that dies keeps
// the session locked for at most lockTTL.
func (s *RedisStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := s.lockKey(sessionID)
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()
	for {
		ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to lock session %s: %w", sessionID, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to lock session %s: %w", sessionID, ctx.Err())
		case <-ticker.C:
		}
	}

	return func() {
		// the request context may already be cancelled here
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = releaseLockScript.Run(ctx, s.client, []string{key}, token).Err()
	}, nil
}

func decodeRecord(id string, data []byte) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &rec, nil
}

func (s *RedisStore) load(ctx context.Context, id string) (*model.SessionRecord, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return decodeRecord(id, data)
}

// update applies fn to the stored record inside WATCH/MULTI, retrying when
// another writer changed the key first. A deleted session is never recreated.
func (s *RedisStore) update(ctx context.Context, id string, fn func(rec *model.SessionRecord)) error {
	key := s.sessionKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load session %s: %w", id, err)
		}
		rec, err := decodeRecord(id, data)
		if err != nil {
			return err
		}

		fn(rec)

		out, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode session %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			return fmt.Errorf("failed to save session %s: %w", id, err)
		}
		return err
	}
	return fmt.Errorf("failed to save session %s: %w", id, redis.TxFailedErr)
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*model.ConversationState, error) {
	rec, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &rec.Conversation, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, state *model.ConversationState) error {
	conv := state.Clone()
	conv.SessionID = sessionID
	return s.update(ctx, sessionID, func(rec *model.SessionRecord) {
		rec.Conversation = *conv
	})
}

func (s *RedisStore) SaveQueryResult(ctx context.Context, sessionID, sql string, results []model.Property) error {
	return s.update(ctx, sessionID, func(rec *model.SessionRecord) {
		rec.GeneratedSQL = &sql
		rec.QueryResults = results
	})
}

func (s *RedisStore) LoadQueryResult(ctx context.Context, sessionID string) (*model.QueryResult, error) {
	rec, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	result := &model.QueryResult{Results: rec.QueryResults}
	if rec.GeneratedSQL != nil {
		result.SQL = *rec.GeneratedSQL
	}
	return result, nil
}

func (s *RedisStore) Reset(ctx context.Context, sessionID string) error {
	return s.update(ctx, sessionID, func(rec *model.SessionRecord) {
		*rec = model.SessionRecord{
			Conversation: *model.NewConversationState(sessionID, rec.Conversation.OptionalAllowed),
		}
	})
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(n), nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

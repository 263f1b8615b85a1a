package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sitebot/backend/pkg/logger"
)

// RedisStore keeps sessions in Redis so widget conversations survive
// process restarts and multiple API instances. Expiry is native: every
// Touch resets the key's TTL, no sweep needed.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(host string, port int, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	logger.Info("Redis session store initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Touch(ctx context.Context, sessionID, chatbotID string) error {
	key := sessionKey(sessionID)
	now := time.Now()

	data, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var sess Session
		if err := json.Unmarshal(data, &sess); err == nil {
			sess.LastSeen = now
			return s.set(ctx, key, &sess)
		}
	} else if err != redis.Nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	return s.set(ctx, key, &Session{
		ID:        sessionID,
		ChatbotID: chatbotID,
		CreatedAt: now,
		LastSeen:  now,
	})
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) set(ctx context.Context, key string, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dinory-ai/internal/models"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ SessionRepository = (*RedisSessionRepository)(nil)

// RedisSessionRepository stores sessions as JSON values with a TTL, for
// deployments where sessions must survive a process restart. Mutate locks
// per key in-process; the service runs as a single instance per index.
type RedisSessionRepository struct {
	client   *redis.Client
	ttl      time.Duration
	keyLocks *keyedMutex
	logger   *zap.Logger
}

// NewRedisSessionRepository creates a Redis-backed session store.
func NewRedisSessionRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisSessionRepository {
	return &RedisSessionRepository{
		client:   client,
		ttl:      ttl,
		keyLocks: newKeyedMutex(),
		logger:   logger.Named("RedisSessionRepo"),
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("story_session:%s", id)
}

func (r *RedisSessionRepository) Get(ctx context.Context, id string) (*models.StorySession, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
		}
		r.logger.Error("Failed to get session from redis", zap.String("session_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var session models.StorySession
	if err := json.Unmarshal(data, &session); err != nil {
		r.logger.Error("Corrupted session data in redis", zap.String("session_id", id), zap.Error(err))
		return nil, fmt.Errorf("corrupted session data in redis for %s: %w", id, err)
	}
	return &session, nil
}

func (r *RedisSessionRepository) Save(ctx context.Context, session *models.StorySession) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session without id", models.ErrValidation)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(session.ID), data, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save session to redis", zap.String("session_id", session.ID), zap.Error(err))
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	r.logger.Debug("Session saved",
		zap.String("session_id", session.ID),
		zap.Duration("ttl", r.ttl),
	)
	return nil
}

func (r *RedisSessionRepository) Mutate(ctx context.Context, id string, fn func(*models.StorySession) error) (*models.StorySession, error) {
	lock := r.keyLocks.lock(id)
	defer lock.Unlock()

	session, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	if err := r.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		r.logger.Error("Failed to delete session from redis", zap.String("session_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

package session

import (
	"context"
	"time"

	"github.com/campus-agent/backend/internal/cache/redis"
)

// RedisStore keeps session history in Redis so multiple instances can share
// conversational state. Idle expiry rides on key TTLs instead of a sweep
// loop; every append or touch resets the clock.
type RedisStore struct {
	cache        *redis.Client
	timeout      time.Duration
	historyLimit int
}

func NewRedisStore(cache *redis.Client, timeout time.Duration, historyLimit int) *RedisStore {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &RedisStore{
		cache:        cache,
		timeout:      timeout,
		historyLimit: historyLimit,
	}
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]Turn, error) {
	var turns []Turn
	found, err := s.cache.GetSessionTurns(ctx, sessionID, &turns)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return turns, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	existing, err := s.History(ctx, sessionID)
	if err != nil {
		return err
	}

	existing = append(existing, turns...)
	if s.historyLimit > 0 && len(existing) > s.historyLimit {
		existing = existing[len(existing)-s.historyLimit:]
	}

	return s.cache.SetSessionTurns(ctx, sessionID, existing, s.timeout)
}

func (s *RedisStore) Touch(ctx context.Context, sessionID string) error {
	return s.cache.TouchSession(ctx, sessionID, s.timeout)
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.cache.DeleteSession(ctx, sessionID)
}

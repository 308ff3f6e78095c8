package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore is the atomic counter backend the limiter relies on.
// Implementations must be safe for concurrent use.
type CounterStore interface {
	// Incr atomically increments key and returns the post-increment value.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets the time-to-live on key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL returns the remaining time-to-live on key. A non-positive value
	// means the key is missing or carries no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// RedisStore implements CounterStore on top of a shared Redis client
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a CounterStore backed by Redis
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", key, err)
	}
	return count, nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set expiry on %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read ttl of %s: %w", key, err)
	}
	return ttl, nil
}

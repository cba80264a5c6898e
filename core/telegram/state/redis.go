package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/stickerbot/core/cache"
)

// RedisStore keeps JSON-encoded records in Redis so sessions survive restarts
// and can be shared between replicas. Each write refreshes the TTL.
type RedisStore[T any] struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore builds a Redis-backed store. A ttl <= 0 keeps records until deleted.
func NewRedisStore[T any](client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore[T] {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore[T]{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore[T]) key(k Key) string {
	return cache.Key(s.prefix, "session", k.Platform, k.Sender)
}

// Get loads and decodes the record for key.
func (s *RedisStore[T]) Get(ctx context.Context, key Key) (T, bool, error) {
	var zero T
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("state: redis get %s: %w", key, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return v, true, nil
}

// Set encodes and stores the record for key.
func (s *RedisStore[T]) Set(ctx context.Context, key Key, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("state: redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes the record for key.
func (s *RedisStore[T]) Delete(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("state: redis del %s: %w", key, err)
	}
	return nil
}

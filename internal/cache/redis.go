package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore implements Store on top of a shared Redis client.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redisClient *redis.Client, tracer trace.Tracer) *RedisStore {
	if redisClient == nil {
		panic("cache: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("leadrouter.internal.cache")
	}
	return &RedisStore{
		redis:  redisClient,
		tracer: tracer,
	}
}

// Get returns the value for key; the bool reports whether the key exists.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := s.tracer.Start(ctx, "cache.get")
	defer span.End()

	value, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		span.RecordError(err)
		return "", false, fmt.Errorf("cache: failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes value under key with the supplied TTL. A zero TTL persists
// the key indefinitely.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, span := s.tracer.Start(ctx, "cache.set")
	defer span.End()

	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("cache: failed to write %s: %w", key, err)
	}
	return nil
}

// SetNX writes value only when key is absent, returning whether the
// write happened. Used by the atomic dedup mode.
func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "cache.setnx")
	defer span.End()

	ok, err := s.redis.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("cache: failed to setnx %s: %w", key, err)
	}
	return ok, nil
}

package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/store-rating-api/internal/config"
)

// NewClient creates a Redis client from configuration.
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// Cmdable is the subset of redis.Cmdable a Store uses.
type Cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store keeps JSON-encoded values of type T under "<prefix>:<key>". Entries put with
// a ttl expire through Redis key expiry.
type Store[T any] struct {
	client Cmdable
	prefix string
}

func New[T any](client Cmdable, prefix string) *Store[T] {
	return &Store[T]{client: client, prefix: prefix}
}

func (s *Store[T]) key(k string) string { return s.prefix + ":" + k }

func (s *Store[T]) Put(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", s.prefix, err)
	}
	if err := s.client.Set(ctx, s.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("store %s: %w", s.prefix, err)
	}
	return nil
}

// PutIfAbsent stores value with SET NX. It reports false when the key already exists.
func (s *Store[T]) PutIfAbsent(ctx context.Context, key string, value T, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("marshal %s: %w", s.prefix, err)
	}
	ok, err := s.client.SetNX(ctx, s.key(key), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("store %s: %w", s.prefix, err)
	}
	return ok, nil
}

func (s *Store[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("get %s: %w", s.prefix, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("unmarshal %s: %w", s.prefix, err)
	}
	return v, true, nil
}

func (s *Store[T]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", s.prefix, err)
	}
	return nil
}

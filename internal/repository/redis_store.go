package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// redisStore keeps every value of a namespace as JSON in a single hash.
type redisStore[T any] struct {
	client *redis.Client
	hash   string
}

// NewRedisStore returns a Store backed by the hash "<prefix>:<namespace>".
func NewRedisStore[T any](client *redis.Client, prefix, namespace string) Store[T] {
	return &redisStore[T]{client: client, hash: prefix + ":" + namespace}
}

func (s *redisStore[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	raw, err := s.client.HGet(ctx, s.hash, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("decode %s/%s: %w", s.hash, key, err)
	}
	return v, nil
}

func (s *redisStore[T]) Put(ctx context.Context, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", s.hash, key, err)
	}
	return s.client.HSet(ctx, s.hash, key, raw).Err()
}

func (s *redisStore[T]) Delete(ctx context.Context, key string) error {
	return s.client.HDel(ctx, s.hash, key).Err()
}

func (s *redisStore[T]) Scan(ctx context.Context) ([]T, error) {
	all, err := s.client.HGetAll(ctx, s.hash).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		var v T
		if err := json.Unmarshal([]byte(all[k]), &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", s.hash, k, err)
		}
		out = append(out, v)
	}
	return out, nil
}

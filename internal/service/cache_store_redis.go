package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCacheStore(client redis.UniversalClient, prefix string) *RedisCacheStore {
	if prefix == "" {
		prefix = "auth_cache"
	}
	return &RedisCacheStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisCacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, nil
	}
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *RedisCacheStore) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *RedisCacheStore) Enabled() bool { return s.client != nil }

func (s *RedisCacheStore) key(key string) string {
	return s.prefix + ":" + key
}

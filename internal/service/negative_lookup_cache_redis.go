package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisNegativeLookupCacheStore shares remembered misses across instances.
// Keys are prefix:miss:<namespace>:<hashed id>; raw session ids never appear
// in key names.
type RedisNegativeLookupCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisNegativeLookupCacheStore(client redis.UniversalClient, prefix string) *RedisNegativeLookupCacheStore {
	if prefix == "" {
		prefix = "negative_lookup"
	}
	return &RedisNegativeLookupCacheStore{client: client, prefix: prefix}
}

func (s *RedisNegativeLookupCacheStore) Get(ctx context.Context, namespace, key string) (bool, error) {
	if s.client == nil {
		return false, nil
	}
	n, err := s.client.Exists(ctx, s.dataKey(namespace, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisNegativeLookupCacheStore) Set(ctx context.Context, namespace, key string, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.dataKey(namespace, key), "1", ttl).Err()
}

func (s *RedisNegativeLookupCacheStore) Forget(ctx context.Context, namespace, key string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.dataKey(namespace, key)).Err()
}

func (s *RedisNegativeLookupCacheStore) dataKey(namespace, key string) string {
	return s.prefix + ":miss:" + normalizeToken(namespace) + ":" + hashToken(key)
}

func normalizeToken(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "none"
	}
	return strings.NewReplacer(":", "_", " ", "_").Replace(v)
}

func hashToken(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:16])
}

package service

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CacheStore is the optional fast lookup layer in front of the session
// store. A disabled store reports every Get as a miss.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Enabled() bool
}

type NoopCacheStore struct{}

func NewNoopCacheStore() *NoopCacheStore {
	return &NoopCacheStore{}
}

func (s *NoopCacheStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *NoopCacheStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (s *NoopCacheStore) Delete(context.Context, string) error {
	return nil
}

func (s *NoopCacheStore) Enabled() bool { return false }

type InMemoryCacheStore struct {
	items *gocache.Cache
}

func NewInMemoryCacheStore(cleanupInterval time.Duration) *InMemoryCacheStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &InMemoryCacheStore{items: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (s *InMemoryCacheStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	raw, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (s *InMemoryCacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *InMemoryCacheStore) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

func (s *InMemoryCacheStore) Enabled() bool { return true }

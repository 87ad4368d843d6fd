package service

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const NegativeSessionNamespace = "session.not_found"

// NegativeLookupCacheStore remembers ids that were absent from the durable
// store. Forget must be called when an id becomes valid, otherwise a fresh
// session could be rejected until the entry expires.
type NegativeLookupCacheStore interface {
	Get(ctx context.Context, namespace, key string) (bool, error)
	Set(ctx context.Context, namespace, key string, ttl time.Duration) error
	Forget(ctx context.Context, namespace, key string) error
}

type NoopNegativeLookupCacheStore struct{}

func NewNoopNegativeLookupCacheStore() *NoopNegativeLookupCacheStore {
	return &NoopNegativeLookupCacheStore{}
}

func (*NoopNegativeLookupCacheStore) Get(context.Context, string, string) (bool, error) {
	return false, nil
}

func (*NoopNegativeLookupCacheStore) Set(context.Context, string, string, time.Duration) error {
	return nil
}

func (*NoopNegativeLookupCacheStore) Forget(context.Context, string, string) error { return nil }

type InMemoryNegativeLookupCacheStore struct {
	items *gocache.Cache
}

func NewInMemoryNegativeLookupCacheStore() *InMemoryNegativeLookupCacheStore {
	return &InMemoryNegativeLookupCacheStore{items: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (s *InMemoryNegativeLookupCacheStore) Get(_ context.Context, namespace, key string) (bool, error) {
	_, ok := s.items.Get(entryKey(namespace, key))
	return ok, nil
}

func (s *InMemoryNegativeLookupCacheStore) Set(_ context.Context, namespace, key string, ttl time.Duration) error {
	if ttl > 0 {
		s.items.Set(entryKey(namespace, key), struct{}{}, ttl)
	}
	return nil
}

func (s *InMemoryNegativeLookupCacheStore) Forget(_ context.Context, namespace, key string) error {
	s.items.Delete(entryKey(namespace, key))
	return nil
}

func entryKey(namespace, key string) string {
	return namespace + "|" + key
}

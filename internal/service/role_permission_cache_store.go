package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultRolePermissionCacheSize = 256

// RolePermissionCacheStore caches the action set granted to a role name.
type RolePermissionCacheStore interface {
	Get(ctx context.Context, roleName string) ([]string, bool, error)
	Set(ctx context.Context, roleName string, actions []string, ttl time.Duration) error
	InvalidateRole(ctx context.Context, roleName string) error
	InvalidateAll(ctx context.Context) error
}

type NoopRolePermissionCacheStore struct{}

func NewNoopRolePermissionCacheStore() *NoopRolePermissionCacheStore {
	return &NoopRolePermissionCacheStore{}
}

func (s *NoopRolePermissionCacheStore) Get(context.Context, string) ([]string, bool, error) {
	return nil, false, nil
}

func (s *NoopRolePermissionCacheStore) Set(context.Context, string, []string, time.Duration) error {
	return nil
}

func (s *NoopRolePermissionCacheStore) InvalidateRole(context.Context, string) error {
	return nil
}

func (s *NoopRolePermissionCacheStore) InvalidateAll(context.Context) error {
	return nil
}

// InMemoryRolePermissionCacheStore is a bounded LRU whose entries all share
// the ttl given at construction; the ttl passed to Set only gates writes.
type InMemoryRolePermissionCacheStore struct {
	mu          sync.RWMutex
	entries     *expirable.LRU[string, []string]
	globalEpoch uint64
	roleEpoch   map[string]uint64
}

func NewInMemoryRolePermissionCacheStore(size int, ttl time.Duration) *InMemoryRolePermissionCacheStore {
	if size <= 0 {
		size = defaultRolePermissionCacheSize
	}
	return &InMemoryRolePermissionCacheStore{
		entries:   expirable.NewLRU[string, []string](size, nil, ttl),
		roleEpoch: make(map[string]uint64),
	}
}

func (s *InMemoryRolePermissionCacheStore) Get(_ context.Context, roleName string) ([]string, bool, error) {
	actions, ok := s.entries.Get(s.cacheKey(roleName))
	if !ok {
		return nil, false, nil
	}
	return append([]string(nil), actions...), true, nil
}

func (s *InMemoryRolePermissionCacheStore) Set(_ context.Context, roleName string, actions []string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.entries.Add(s.cacheKey(roleName), append([]string(nil), actions...))
	return nil
}

func (s *InMemoryRolePermissionCacheStore) InvalidateRole(_ context.Context, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roleEpoch[roleName]++
	return nil
}

func (s *InMemoryRolePermissionCacheStore) InvalidateAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalEpoch++
	return nil
}

func (s *InMemoryRolePermissionCacheStore) cacheKey(roleName string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return buildRolePermissionCacheKey(s.globalEpoch, s.roleEpoch[roleName], roleName)
}

func buildRolePermissionCacheKey(globalEpoch, roleEpoch uint64, roleName string) string {
	return fmt.Sprintf("roleperm:g%d:r%d:role:%s", globalEpoch, roleEpoch, roleName)
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/observability"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/repository"
)

// CachedPermissionResolver answers "which actions does this role grant".
// Cache errors degrade to a repository read.
type CachedPermissionResolver struct {
	cacheStore RolePermissionCacheStore
	roles      repository.RoleRepository
	ttl        time.Duration
	logger     *slog.Logger
}

func NewCachedPermissionResolver(cacheStore RolePermissionCacheStore, roles repository.RoleRepository, ttl time.Duration, logger *slog.Logger) *CachedPermissionResolver {
	if cacheStore == nil {
		cacheStore = NewNoopRolePermissionCacheStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedPermissionResolver{
		cacheStore: cacheStore,
		roles:      roles,
		ttl:        ttl,
		logger:     logger,
	}
}

// ResolvePermissions returns the sorted actions granted to roleName. An
// unknown role grants nothing.
func (r *CachedPermissionResolver) ResolvePermissions(ctx context.Context, roleName string) ([]string, error) {
	if r.ttl > 0 {
		cached, ok, err := r.cacheStore.Get(ctx, roleName)
		switch {
		case err != nil:
			r.logger.WarnContext(ctx, "role permission cache read failed", "role", roleName, "error", err)
		case ok:
			observability.RecordCacheEvent(ctx, "role_permissions", "hit")
			return cached, nil
		}
		observability.RecordCacheEvent(ctx, "role_permissions", "miss")
	}

	role, err := r.roles.FindByName(ctx, roleName)
	if err != nil && !errors.Is(err, repository.ErrRoleNotFound) {
		return nil, translate("resolve_permissions", roleName, err)
	}
	actions := []string{}
	if role != nil {
		seen := make(map[string]struct{}, len(role.Permissions))
		for _, p := range role.Permissions {
			if _, ok := seen[p.Action]; ok {
				continue
			}
			seen[p.Action] = struct{}{}
			actions = append(actions, p.Action)
		}
		sort.Strings(actions)
	}
	if r.ttl > 0 {
		if err := r.cacheStore.Set(ctx, roleName, actions, r.ttl); err != nil {
			r.logger.WarnContext(ctx, "role permission cache write failed", "role", roleName, "error", err)
		}
	}
	return actions, nil
}

func (r *CachedPermissionResolver) InvalidateRole(ctx context.Context, roleName string) error {
	return r.cacheStore.InvalidateRole(ctx, roleName)
}

func (r *CachedPermissionResolver) InvalidateAll(ctx context.Context) error {
	return r.cacheStore.InvalidateAll(ctx)
}

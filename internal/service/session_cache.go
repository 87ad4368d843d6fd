package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/observability"
)

const DefaultSessionCacheTTL = time.Hour

// SessionCache keeps user snapshots keyed by session id. Cache failures are
// logged and reported as misses; the durable store stays authoritative.
type SessionCache struct {
	store  CacheStore
	ttl    time.Duration
	logger *slog.Logger
}

func NewSessionCache(store CacheStore, ttl time.Duration, logger *slog.Logger) *SessionCache {
	if store == nil {
		store = NewNoopCacheStore()
	}
	if ttl <= 0 {
		ttl = DefaultSessionCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionCache{store: store, ttl: ttl, logger: logger}
}

func (c *SessionCache) Enabled() bool { return c.store.Enabled() }

func (c *SessionCache) GetCachedSession(ctx context.Context, sessionID string) *domain.User {
	if !c.store.Enabled() {
		return nil
	}
	raw, ok, err := c.store.Get(ctx, sessionCacheKey(sessionID))
	if err != nil {
		c.logger.WarnContext(ctx, "session cache read failed", "error", err)
		observability.RecordCacheEvent(ctx, "session", "error")
		return nil
	}
	if !ok {
		observability.RecordCacheEvent(ctx, "session", "miss")
		return nil
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		c.logger.WarnContext(ctx, "session cache entry unreadable", "error", err)
		_ = c.store.Delete(ctx, sessionCacheKey(sessionID))
		observability.RecordCacheEvent(ctx, "session", "error")
		return nil
	}
	observability.RecordCacheEvent(ctx, "session", "hit")
	return &user
}

// SetCachedSession stores user under sessionID. A zero ttl uses the cache
// default.
func (c *SessionCache) SetCachedSession(ctx context.Context, sessionID string, user *domain.User, ttl time.Duration) {
	if !c.store.Enabled() || user == nil {
		return
	}
	if ttl == 0 {
		ttl = c.ttl
	}
	if ttl < 0 {
		return
	}
	payload, err := json.Marshal(user)
	if err != nil {
		c.logger.WarnContext(ctx, "session cache encode failed", "error", err)
		return
	}
	if err := c.store.Set(ctx, sessionCacheKey(sessionID), payload, ttl); err != nil {
		c.logger.WarnContext(ctx, "session cache write failed", "error", err)
		observability.RecordCacheEvent(ctx, "session", "error")
	}
}

func (c *SessionCache) DeleteCachedSession(ctx context.Context, sessionID string) {
	if !c.store.Enabled() {
		return
	}
	if err := c.store.Delete(ctx, sessionCacheKey(sessionID)); err != nil {
		c.logger.WarnContext(ctx, "session cache delete failed", "error", err)
		observability.RecordCacheEvent(ctx, "session", "error")
	}
}

func sessionCacheKey(sessionID string) string {
	return "session:" + sessionID
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/observability"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/repository"
)

const (
	DefaultSessionTTL  = time.Hour
	DefaultNegativeTTL = 30 * time.Second
)

type SessionManagerConfig struct {
	DefaultTTL  time.Duration
	NegativeTTL time.Duration
}

type SessionView struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsCurrent bool      `json:"is_current"`
}

// SessionManager owns session lifecycle. The durable store is authoritative;
// the cache only shortcuts ValidateSession.
type SessionManager struct {
	sessions    repository.SessionRepository
	users       repository.UserRepository
	cache       *SessionCache
	negative    NegativeLookupCacheStore
	defaultTTL  time.Duration
	negativeTTL time.Duration
	logger      *slog.Logger
	now         Clock
	newID       func() string
	lookups     singleflight.Group
}

func NewSessionManager(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	cache *SessionCache,
	negative NegativeLookupCacheStore,
	cfg SessionManagerConfig,
	logger *slog.Logger,
) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewSessionCache(nil, 0, logger)
	}
	if negative == nil {
		negative = NewNoopNegativeLookupCacheStore()
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultSessionTTL
	}
	if cfg.NegativeTTL < 0 {
		cfg.NegativeTTL = 0
	}
	return &SessionManager{
		sessions:    sessions,
		users:       users,
		cache:       cache,
		negative:    negative,
		defaultTTL:  cfg.DefaultTTL,
		negativeTTL: cfg.NegativeTTL,
		logger:      logger,
		now:         systemClock,
		newID:       uuid.NewString,
	}
}

// CreateSession returns the live session for (userID, deviceID), extended
// to now+ttl, or a fresh one when none is live. A zero ttl means the
// default; extended doubles it.
func (m *SessionManager) CreateSession(ctx context.Context, userID, deviceID string, ttl time.Duration, extended bool) (*domain.Session, error) {
	userID = strings.TrimSpace(userID)
	deviceID = strings.TrimSpace(deviceID)
	if userID == "" {
		return nil, missing("user_id")
	}
	if deviceID == "" {
		return nil, missing("device_id")
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	if extended {
		ttl *= 2
	}
	now := m.now()
	candidate := &domain.Session{
		ID:        m.newID(),
		UserID:    userID,
		DeviceID:  deviceID,
		ExpiresAt: now.Add(ttl),
	}
	session, renewed, err := m.sessions.UpsertActiveForDevice(ctx, candidate, now)
	if err != nil {
		observability.RecordSessionOperation(ctx, "create", "error")
		return nil, &PersistenceError{Op: "create_session", Key: userID + "/" + deviceID, Err: err}
	}
	outcome := "created"
	if renewed {
		outcome = "renewed"
	}
	observability.RecordSessionOperation(ctx, "create", outcome)
	if err := m.negative.Forget(ctx, NegativeSessionNamespace, session.ID); err != nil {
		m.logger.WarnContext(ctx, "negative cache forget failed", "op", "forget", "key", session.ID, "error", err)
	}
	m.logger.DebugContext(ctx, "session stored", "user_id", userID, "device_id", deviceID, "outcome", outcome)
	return session, nil
}

// ValidateSession resolves a session id to its user. A missing or expired
// session yields (nil, nil); only store failures are errors.
func (m *SessionManager) ValidateSession(ctx context.Context, sessionID string) (*domain.User, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, nil
	}
	if user := m.cache.GetCachedSession(ctx, sessionID); user != nil {
		observability.RecordSessionOperation(ctx, "validate", "cache_hit")
		return user, nil
	}
	if m.negativeTTL > 0 {
		hit, err := m.negative.Get(ctx, NegativeSessionNamespace, sessionID)
		if err != nil {
			m.logger.WarnContext(ctx, "negative lookup cache read failed", "error", err)
		}
		if hit {
			observability.RecordSessionOperation(ctx, "validate", "negative_hit")
			return nil, nil
		}
	}

	// The shared lookup outlives any single caller; each caller only stops
	// waiting when its own context ends.
	lookup := m.lookups.DoChan(sessionID, func() (any, error) {
		return m.loadSessionUser(context.WithoutCancel(ctx), sessionID)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		observability.RecordSessionOperation(ctx, "validate", "error")
		return nil, &PersistenceError{Op: "find_session", Key: sessionID, Err: ctx.Err()}
	case res = <-lookup:
	}
	if res.Err != nil {
		observability.RecordSessionOperation(ctx, "validate", "error")
		return nil, res.Err
	}
	user, _ := res.Val.(*domain.User)
	if user == nil {
		observability.RecordSessionOperation(ctx, "validate", "invalid")
		return nil, nil
	}
	observability.RecordSessionOperation(ctx, "validate", "valid")
	copied := *user
	return &copied, nil
}

func (m *SessionManager) loadSessionUser(ctx context.Context, sessionID string) (*domain.User, error) {
	now := m.now()
	session, err := m.sessions.FindByID(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		m.rememberMissing(ctx, sessionID)
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "find_session", Key: sessionID, Err: err}
	}
	if session.Expired(now) {
		m.rememberMissing(ctx, sessionID)
		return nil, nil
	}
	user, err := m.users.FindByID(ctx, session.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "find_session_user", Key: session.UserID, Err: err}
	}
	if user.Blocked {
		return nil, nil
	}
	m.cache.SetCachedSession(ctx, sessionID, user, m.cacheTTL(session, now))
	return user, nil
}

// cacheTTL never lets a cache entry outlive the session it mirrors.
func (m *SessionManager) cacheTTL(session *domain.Session, now time.Time) time.Duration {
	remaining := session.ExpiresAt.Sub(now)
	if limit := m.cache.ttl; limit < remaining {
		return limit
	}
	return remaining
}

func (m *SessionManager) rememberMissing(ctx context.Context, sessionID string) {
	if m.negativeTTL <= 0 {
		return
	}
	if err := m.negative.Set(ctx, NegativeSessionNamespace, sessionID, m.negativeTTL); err != nil {
		m.logger.WarnContext(ctx, "negative lookup cache write failed", "error", err)
	}
}

// DestroySession removes the session from the store and the cache. Both
// removals are attempted; destroying an unknown id is not an error.
func (m *SessionManager) DestroySession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return missing("session_id")
	}
	deleted, err := m.sessions.Delete(ctx, sessionID)
	m.cache.DeleteCachedSession(ctx, sessionID)
	if err != nil {
		observability.RecordSessionOperation(ctx, "destroy", "error")
		return &PersistenceError{Op: "destroy_session", Key: sessionID, Err: err}
	}
	outcome := "destroyed"
	if !deleted {
		outcome = "absent"
	}
	observability.RecordSessionOperation(ctx, "destroy", outcome)
	return nil
}

// CleanupExpiredSessions deletes every session whose expiry has passed.
// Cache entries are left to their own ttl, which is capped at the session
// expiry.
func (m *SessionManager) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := m.sessions.CleanupExpired(ctx, m.now())
	if err != nil {
		observability.RecordSessionOperation(ctx, "cleanup", "error")
		return 0, &PersistenceError{Op: "cleanup_sessions", Err: err}
	}
	observability.RecordSessionOperation(ctx, "cleanup", "success")
	if n > 0 {
		m.logger.InfoContext(ctx, "expired sessions removed", "count", n)
	}
	return n, nil
}

// InvalidateAllUserSessions removes every session of userID and evicts each
// from the cache.
func (m *SessionManager) InvalidateAllUserSessions(ctx context.Context, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, missing("user_id")
	}
	ids, err := m.sessions.DeleteByUserID(ctx, userID)
	if err != nil {
		observability.RecordSessionOperation(ctx, "invalidate_user", "error")
		return 0, &PersistenceError{Op: "invalidate_user_sessions", Key: userID, Err: err}
	}
	for _, id := range ids {
		m.cache.DeleteCachedSession(ctx, id)
	}
	observability.RecordSessionOperation(ctx, "invalidate_user", "success")
	return len(ids), nil
}

func (m *SessionManager) ListActiveSessions(ctx context.Context, userID, currentSessionID string) ([]SessionView, error) {
	sessions, err := m.sessions.ListActiveByUserID(ctx, userID, m.now())
	if err != nil {
		return nil, &PersistenceError{Op: "list_sessions", Key: userID, Err: err}
	}
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			ID:        session.ID,
			DeviceID:  session.DeviceID,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
			IsCurrent: session.ID == currentSessionID,
		})
	}
	return views, nil
}

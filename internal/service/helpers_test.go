package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/repository"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/security"

	"gorm.io/gorm"
)

const testSigningSecret = "test-signing-secret-with-32-bytes!!"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingHasher wraps a cheap argon2id hasher and counts Verify calls.
type countingHasher struct {
	inner    *security.Argon2Hasher
	verifies atomic.Int32
	upgrade  bool
}

func newCountingHasher(t *testing.T) *countingHasher {
	t.Helper()
	inner, err := security.NewArgon2Hasher(security.PasswordConfig{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return &countingHasher{inner: inner}
}

func (h *countingHasher) Hash(plaintext string) (string, error) { return h.inner.Hash(plaintext) }

func (h *countingHasher) Verify(encoded, plaintext string) (bool, error) {
	h.verifies.Add(1)
	return h.inner.Verify(encoded, plaintext)
}

func (h *countingHasher) NeedsUpgrade(encoded string) bool {
	return h.upgrade || h.inner.NeedsUpgrade(encoded)
}

type testEnv struct {
	db          *gorm.DB
	clock       *fakeClock
	hasher      *countingHasher
	users       repository.UserRepository
	sessionRepo repository.SessionRepository
	tokenRepo   repository.TokenRepository
	roleRepo    repository.RoleRepository
	permRepo    repository.PermissionRepository
	cache       *SessionCache
	negative    *InMemoryNegativeLookupCacheStore
	sessions    *SessionManager
	tokens      *TokenManager
	roles       *RoleRegistry
	auth        *AuthService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repository.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// newTestEnv wires the managers over sqlite with an in-memory session cache.
// Pass a nil store to run with caching disabled.
func newTestEnv(t *testing.T, store CacheStore) *testEnv {
	t.Helper()
	db := newTestDB(t)
	env := &testEnv{
		db:          db,
		clock:       newFakeClock(),
		hasher:      newCountingHasher(t),
		users:       repository.NewUserRepository(db),
		sessionRepo: repository.NewSessionRepository(db),
		tokenRepo:   repository.NewTokenRepository(db),
		roleRepo:    repository.NewRoleRepository(db),
		permRepo:    repository.NewPermissionRepository(db),
		negative:    NewInMemoryNegativeLookupCacheStore(),
	}
	env.cache = NewSessionCache(store, time.Hour, nil)
	env.sessions = NewSessionManager(env.sessionRepo, env.users, env.cache, env.negative, SessionManagerConfig{NegativeTTL: time.Minute}, nil)
	env.sessions.now = env.clock.Now
	env.tokens = NewTokenManager(env.tokenRepo, env.users, security.NewTokenSigner("sveltycms-auth-test", testSigningSecret), time.Hour, nil)
	env.tokens.now = env.clock.Now
	resolver := NewCachedPermissionResolver(NewInMemoryRolePermissionCacheStore(16, time.Minute), env.roleRepo, time.Minute, nil)
	env.roles = NewRoleRegistry(env.roleRepo, env.permRepo, resolver, nil)
	env.auth = NewAuthService(env.users, env.hasher, LockoutPolicy{Threshold: 5, Duration: 30 * time.Minute}, env.sessions, env.tokens, env.roles, false, nil)
	env.auth.now = env.clock.Now
	return env
}

func (e *testEnv) createUser(t *testing.T, email, password string) *domain.User {
	t.Helper()
	u, err := e.auth.CreateUser(context.Background(), NewUserInput{Email: email, Password: password})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

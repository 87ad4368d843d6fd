package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/repository"
)

func TestLoginLocksAfterFiveFailuresWithoutHashing(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createUser(t, "locked@example.com", "correct-horse")

	for i := 1; i <= 4; i++ {
		if _, err := env.auth.Login(ctx, "locked@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, err)
		}
	}
	_, err := env.auth.Login(ctx, "locked@example.com", "wrong")
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected lockout on fifth failure, got %v", err)
	}
	if locked.Remaining != 30*time.Minute {
		t.Fatalf("expected 30m lockout, got %s", locked.Remaining)
	}

	before := env.hasher.verifies.Load()
	if _, err := env.auth.Login(ctx, "locked@example.com", "correct-horse"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected sixth attempt to be locked, got %v", err)
	}
	if env.hasher.verifies.Load() != before {
		t.Fatal("expected no hashing while locked")
	}

	env.clock.Advance(31 * time.Minute)
	user, err := env.auth.Login(ctx, "LOCKED@example.com ", "correct-horse")
	if err != nil {
		t.Fatalf("expected login after window, got %v", err)
	}
	if user.FailedAttempts != 0 || user.LockoutUntil != nil {
		t.Fatalf("expected lockout state reset, got %+v", user)
	}
	stored, err := env.users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.FailedAttempts != 0 || stored.LockoutUntil != nil {
		t.Fatalf("expected stored lockout state reset, got attempts=%d until=%v", stored.FailedAttempts, stored.LockoutUntil)
	}
}

func TestLoginConcurrentFailuresHashAtMostThreshold(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user := env.createUser(t, "burst@example.com", "correct-horse")

	const attempts = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		invalid int
		locked  int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.auth.Login(ctx, "burst@example.com", "wrong")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrAccountLocked):
				locked++
			case errors.Is(err, ErrInvalidCredentials):
				invalid++
			default:
				t.Errorf("unexpected login error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := env.hasher.verifies.Load(); got != 5 {
		t.Fatalf("expected exactly 5 password checks, got %d", got)
	}
	if invalid != 4 || locked != attempts-4 {
		t.Fatalf("expected 4 invalid and %d locked, got invalid=%d locked=%d", attempts-4, invalid, locked)
	}
	stored, err := env.users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.FailedAttempts != 5 || stored.LockoutUntil == nil {
		t.Fatalf("expected 5 recorded failures and a lockout, got attempts=%d until=%v", stored.FailedAttempts, stored.LockoutUntil)
	}
}

func TestLoginSuccessAfterFourFailuresResetsCounter(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createUser(t, "u1@example.com", "right")

	for i := 0; i < 4; i++ {
		if _, err := env.auth.Login(ctx, "u1@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	user, err := env.auth.Login(ctx, "u1@example.com", "right")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.FailedAttempts != 0 {
		t.Fatalf("expected failedAttempts 0, got %d", user.FailedAttempts)
	}
	if user.LastAuthMethod != domain.AuthMethodPassword || user.LastActiveAt == nil {
		t.Fatalf("expected login bookkeeping, got %+v", user)
	}
}

func TestLoginUnknownEmailIsIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.auth.Login(context.Background(), "nobody@example.com", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLoginRejectsBlockedAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user := env.createUser(t, "blocked@example.com", "pw")
	blocked := true
	if _, err := env.auth.UpdateUserAttributes(ctx, user.ID, UserAttributes{Blocked: &blocked}); err != nil {
		t.Fatalf("block: %v", err)
	}
	if _, err := env.auth.Login(ctx, "blocked@example.com", "pw"); !errors.Is(err, ErrAccountBlocked) {
		t.Fatalf("expected blocked, got %v", err)
	}
}

func TestLoginUpgradesOutdatedHash(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user := env.createUser(t, "upgrade@example.com", "pw")

	env.hasher.upgrade = true
	if _, err := env.auth.Login(ctx, "upgrade@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	env.hasher.upgrade = false
	stored, err := env.users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.PasswordHash == user.PasswordHash {
		t.Fatal("expected hash to be rewritten")
	}
	if _, err := env.auth.Login(ctx, "upgrade@example.com", "pw"); err != nil {
		t.Fatalf("login with upgraded hash: %v", err)
	}
}

func TestCreateUserNormalizesAndRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	user, err := env.auth.CreateUser(ctx, NewUserInput{Email: "  Mixed@Example.COM ", Password: "pw"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Email != "mixed@example.com" || user.Role != domain.RoleUser {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash == "" || user.PasswordHash == "pw" {
		t.Fatal("expected password to be hashed")
	}
	if _, err := env.auth.CreateUser(ctx, NewUserInput{Email: "mixed@example.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	if _, err := env.auth.CreateUser(ctx, NewUserInput{Email: " "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	n, err := env.auth.GetUserCount(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one user, got %d, %v", n, err)
	}
	page, err := env.auth.GetAllUsers(ctx, repository.PageRequest{Page: 1, PageSize: 10})
	if err != nil || len(page.Items) != 1 {
		t.Fatalf("expected one listed user, got %+v, %v", page, err)
	}
}

func TestUpdateUserAttributesPasswordChangeRevokesSessions(t *testing.T) {
	env := newTestEnv(t, NewInMemoryCacheStore(time.Minute))
	ctx := context.Background()
	user := env.createUser(t, "change@example.com", "old-pw")

	session, err := env.auth.CreateSession(ctx, user.ID, "laptop", time.Hour, false)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if got, _ := env.auth.ValidateSession(ctx, session.ID); got == nil {
		t.Fatal("expected live session")
	}

	newPassword := "new-pw"
	empty := ""
	updated, err := env.auth.UpdateUserAttributes(ctx, user.ID, UserAttributes{Password: &newPassword, Email: &empty})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Email != "change@example.com" {
		t.Fatalf("expected empty email to leave address unchanged, got %q", updated.Email)
	}
	if got, _ := env.auth.ValidateSession(ctx, session.ID); got != nil {
		t.Fatal("expected password change to end sessions")
	}
	if _, err := env.auth.Login(ctx, "change@example.com", "old-pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to fail, got %v", err)
	}
	if _, err := env.auth.Login(ctx, "change@example.com", "new-pw"); err != nil {
		t.Fatalf("expected new password to work, got %v", err)
	}
}

func TestUpdateUserAttributesRejectsTakenEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createUser(t, "first@example.com", "")
	second := env.createUser(t, "second@example.com", "")

	email := "FIRST@example.com"
	if _, err := env.auth.UpdateUserAttributes(ctx, second.ID, UserAttributes{Email: &email}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}
	if _, err := env.auth.UpdateUserAttributes(ctx, "missing", UserAttributes{}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestDeleteUserRemovesSessionsAndTokens(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user := env.createUser(t, "gone@example.com", "")

	session, err := env.auth.CreateSession(ctx, user.ID, "phone", time.Hour, false)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := env.auth.CreateToken(ctx, user.ID, time.Hour, domain.TokenTypeReset); err != nil {
		t.Fatalf("create token: %v", err)
	}
	if err := env.auth.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if got, _ := env.auth.ValidateSession(ctx, session.ID); got != nil {
		t.Fatal("expected session to be gone")
	}
	tokens, err := env.auth.GetAllTokens(ctx)
	if err != nil || len(tokens) != 0 {
		t.Fatalf("expected tokens removed, got %v, %v", tokens, err)
	}
	if _, err := env.auth.GetUserByID(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestLogOutDestroysSession(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user := env.createUser(t, "bye@example.com", "")

	session, err := env.auth.CreateSession(ctx, user.ID, "desk", time.Hour, false)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := env.auth.LogOut(ctx, session.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := env.auth.LogOut(ctx, session.ID); err != nil {
		t.Fatalf("expected repeated logout to be harmless, got %v", err)
	}
	if got, _ := env.auth.ValidateSession(ctx, session.ID); got != nil {
		t.Fatal("expected session to be invalid after logout")
	}
}

func TestCreateSessionCookieAttributes(t *testing.T) {
	env := newTestEnv(t, nil)
	session := &domain.Session{ID: "sess-1"}

	cookie := env.auth.CreateSessionCookie(session)
	if cookie.Name != SessionCookieName || cookie.Value != "sess-1" || cookie.Path != "/" {
		t.Fatalf("unexpected cookie: %+v", cookie)
	}
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode || cookie.Secure {
		t.Fatalf("unexpected cookie flags: %+v", cookie)
	}
	if !cookie.Expires.Equal(env.clock.Now().Add(365 * 24 * time.Hour)) {
		t.Fatalf("expected one year expiry, got %s", cookie.Expires)
	}

	env.auth.production = true
	if !env.auth.CreateSessionCookie(session).Secure {
		t.Fatal("expected secure cookie in production")
	}
}

func TestClearSessionCookieExpiresClientCopy(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.auth.ClearSessionCookie()
	if cookie.Name != SessionCookieName || cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Fatalf("unexpected clearing cookie: %+v", cookie)
	}
}

func TestGetUserByEmailNormalizesLookup(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createUser(t, "lookup@example.com", "pw")

	got, err := env.auth.GetUserByEmail(context.Background(), "  LOOKUP@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, got.ID)
	}
	if _, err := env.auth.GetUserByEmail(context.Background(), "missing@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func FuzzNormalizeEmail(f *testing.F) {
	for _, seed := range []string{"", " A@B.c ", "user@example.com", "\tMiXeD@Host\n"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		out := normalizeEmail(in)
		if normalizeEmail(out) != out {
			t.Fatalf("normalizeEmail not idempotent for %q", in)
		}
	})
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/observability"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/repository"
)

const (
	SessionCookieName   = "auth_sessions"
	SessionCookieMaxAge = 365 * 24 * time.Hour
)

type NewUserInput struct {
	Email        string
	Password     string
	Role         string
	Username     string
	Avatar       string
	IsRegistered bool
}

// UserAttributes is a partial update; nil fields are left unchanged. An
// empty Email is treated as unset.
type UserAttributes struct {
	Email        *string
	Password     *string
	Role         *string
	Username     *string
	Avatar       *string
	IsRegistered *bool
	Blocked      *bool
}

// AuthService is the entry point for the HTTP layer and the CLI. It composes
// the hasher, the lockout policy and the session, token and role managers.
type AuthService struct {
	users      repository.UserRepository
	hasher     CredentialHasher
	lockout    LockoutPolicy
	sessions   *SessionManager
	tokens     *TokenManager
	roles      *RoleRegistry
	production bool
	logger     *slog.Logger
	now        Clock
}

func NewAuthService(
	users repository.UserRepository,
	hasher CredentialHasher,
	lockout LockoutPolicy,
	sessions *SessionManager,
	tokens *TokenManager,
	roles *RoleRegistry,
	production bool,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:      users,
		hasher:     hasher,
		lockout:    lockout,
		sessions:   sessions,
		tokens:     tokens,
		roles:      roles,
		production: production,
		logger:     logger,
		now:        systemClock,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) CreateUser(ctx context.Context, in NewUserInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, missing("email")
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, translate("find_user_by_email", email, err)
	}
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = domain.RoleUser
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Role:         role,
		Username:     strings.TrimSpace(in.Username),
		Avatar:       in.Avatar,
		IsRegistered: in.IsRegistered,
	}
	if in.Password != "" {
		hash, err := s.hash(in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, translate("create_user", email, err)
	}
	observability.Audit(ctx, "user.created", "user_id", user.ID, "role", role)
	return user, nil
}

// UpdateUserAttributes applies attrs. A new password is re-hashed and ends
// every session of the user, as does blocking the account.
func (s *AuthService) UpdateUserAttributes(ctx context.Context, userID string, attrs UserAttributes) (*domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, missing("user_id")
	}
	columns := make(map[string]any)
	if attrs.Email != nil {
		if email := normalizeEmail(*attrs.Email); email != "" {
			existing, err := s.users.FindByEmail(ctx, email)
			switch {
			case err == nil && existing.ID != userID:
				return nil, ErrEmailTaken
			case err != nil && !errors.Is(err, repository.ErrUserNotFound):
				return nil, translate("find_user_by_email", email, err)
			}
			columns["email"] = email
		}
	}
	if attrs.Password != nil {
		if *attrs.Password == "" {
			return nil, &ValidationError{Field: "password", Message: "must not be empty"}
		}
		hash, err := s.hash(*attrs.Password)
		if err != nil {
			return nil, err
		}
		columns["password_hash"] = hash
		columns["last_auth_method"] = domain.AuthMethodPassword
	}
	if attrs.Role != nil {
		if role := strings.TrimSpace(*attrs.Role); role != "" {
			columns["role"] = role
		}
	}
	if attrs.Username != nil {
		columns["username"] = strings.TrimSpace(*attrs.Username)
	}
	if attrs.Avatar != nil {
		columns["avatar"] = *attrs.Avatar
	}
	if attrs.IsRegistered != nil {
		columns["is_registered"] = *attrs.IsRegistered
	}
	if attrs.Blocked != nil {
		columns["blocked"] = *attrs.Blocked
	}
	if err := s.users.UpdateAttributes(ctx, userID, columns); err != nil {
		return nil, translate("update_user", userID, err)
	}

	revoke := attrs.Password != nil || (attrs.Blocked != nil && *attrs.Blocked)
	if revoke {
		if _, err := s.sessions.InvalidateAllUserSessions(ctx, userID); err != nil {
			return nil, err
		}
	}
	if attrs.Password != nil {
		observability.Audit(ctx, "user.password_changed", "user_id", userID)
	}
	return s.GetUserByID(ctx, userID)
}

// DeleteUser removes the user together with its sessions and tokens.
func (s *AuthService) DeleteUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return missing("user_id")
	}
	if _, err := s.sessions.InvalidateAllUserSessions(ctx, userID); err != nil {
		return err
	}
	if _, err := s.tokens.DeleteUserTokens(ctx, userID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return translate("delete_user", userID, err)
	}
	observability.Audit(ctx, "user.deleted", "user_id", userID)
	return nil
}

func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, translate("get_user", userID, err)
	}
	return user, nil
}

func (s *AuthService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = normalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, translate("get_user_by_email", email, err)
	}
	return user, nil
}

func (s *AuthService) GetAllUsers(ctx context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error) {
	page, err := s.users.ListPaged(ctx, req)
	if err != nil {
		return page, translate("list_users", "", err)
	}
	return page, nil
}

func (s *AuthService) GetUserCount(ctx context.Context) (int64, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return 0, translate("count_users", "", err)
	}
	return n, nil
}

// Login verifies email and password against the lockout policy. Unknown
// accounts and wrong passwords both report ErrInvalidCredentials; an open
// lockout window reports *AccountLockedError without hashing.
func (s *AuthService) Login(ctx context.Context, email, password string) (user *domain.User, err error) {
	ctx, end := observability.StartSpan(ctx, "auth.login", attribute.String("auth.method", domain.AuthMethodPassword))
	defer func() {
		end(err)
		observability.RecordAuthLogin(ctx, loginStatus(err))
	}()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err = s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, translate("find_user_by_email", email, err)
	}
	if user.Blocked {
		observability.Audit(ctx, "auth.login.blocked", "user_id", user.ID)
		return nil, ErrAccountBlocked
	}

	now := s.now()
	var verdict error
	// The attempt counts as failed before the hasher runs; only a verified
	// password resets it.
	claimed, err := s.users.UpdateLocked(ctx, user.ID, func(u *domain.User) (map[string]any, error) {
		state := LockoutStateOf(u)
		if _, err := s.lockout.Evaluate(state, LoginAttempted, now); err != nil {
			return nil, err
		}
		next, v := s.lockout.Evaluate(state, LoginFailed, now)
		verdict = v
		return next.columns(), nil
	})
	var locked *AccountLockedError
	switch {
	case errors.As(err, &locked):
		observability.Audit(ctx, "auth.login.locked", "user_id", user.ID)
		return nil, err
	case errors.Is(err, repository.ErrUserNotFound):
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, translate("record_login_attempt", user.ID, err)
	}
	user = claimed

	ok := false
	if user.HasPassword() {
		ok, err = s.hasher.Verify(user.PasswordHash, password)
		if err != nil {
			return nil, &HashingError{Err: err}
		}
	}
	if !ok {
		observability.Audit(ctx, "auth.login.failed", "user_id", user.ID, "failed_attempts", user.FailedAttempts+1)
		return nil, verdict
	}

	next, _ := s.lockout.Evaluate(LockoutStateOf(user), LoginSucceeded, now)
	columns := next.columns()
	columns["last_auth_method"] = domain.AuthMethodPassword
	columns["last_active_at"] = now
	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		if upgraded, err := s.hasher.Hash(password); err != nil {
			s.logger.WarnContext(ctx, "password hash upgrade failed", "user_id", user.ID, "error", err)
		} else {
			columns["password_hash"] = upgraded
			user.PasswordHash = upgraded
		}
	}
	if err := s.users.UpdateAttributes(ctx, user.ID, columns); err != nil {
		return nil, translate("record_login", user.ID, err)
	}
	next.apply(user)
	user.LastAuthMethod = domain.AuthMethodPassword
	user.LastActiveAt = &now
	observability.Audit(ctx, "auth.login.succeeded", "user_id", user.ID)
	return user, nil
}

func loginStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAccountLocked):
		return "locked"
	case errors.Is(err, ErrAccountBlocked):
		return "blocked"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	}
	return "error"
}

// LogOut destroys the session behind sessionID.
func (s *AuthService) LogOut(ctx context.Context, sessionID string) error {
	err := s.sessions.DestroySession(ctx, sessionID)
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordAuthLogout(ctx, status)
	return err
}

// CreateSessionCookie builds the cookie carrying the session id. Secure is
// set only in production.
func (s *AuthService) CreateSessionCookie(session *domain.Session) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  s.now().Add(SessionCookieMaxAge),
		HttpOnly: true,
		Secure:   s.production,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie expires the session cookie on the client.
func (s *AuthService) ClearSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.production,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *AuthService) hash(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", &HashingError{Err: err}
	}
	return hash, nil
}

func (s *AuthService) CreateSession(ctx context.Context, userID, deviceID string, ttl time.Duration, extended bool) (*domain.Session, error) {
	return s.sessions.CreateSession(ctx, userID, deviceID, ttl, extended)
}

func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (*domain.User, error) {
	return s.sessions.ValidateSession(ctx, sessionID)
}

func (s *AuthService) DestroySession(ctx context.Context, sessionID string) error {
	return s.sessions.DestroySession(ctx, sessionID)
}

func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.CleanupExpiredSessions(ctx)
}

func (s *AuthService) InvalidateAllUserSessions(ctx context.Context, userID string) (int, error) {
	return s.sessions.InvalidateAllUserSessions(ctx, userID)
}

func (s *AuthService) ListActiveSessions(ctx context.Context, userID, currentSessionID string) ([]SessionView, error) {
	return s.sessions.ListActiveSessions(ctx, userID, currentSessionID)
}

func (s *AuthService) CreateToken(ctx context.Context, userID string, ttl time.Duration, tokenType string) (string, error) {
	return s.tokens.CreateToken(ctx, userID, ttl, tokenType)
}

func (s *AuthService) ValidateToken(ctx context.Context, token, userID, tokenType string) (TokenValidation, error) {
	return s.tokens.ValidateToken(ctx, token, userID, tokenType)
}

func (s *AuthService) ConsumeToken(ctx context.Context, token, userID, tokenType string) (TokenConsumption, error) {
	return s.tokens.ConsumeToken(ctx, token, userID, tokenType)
}

func (s *AuthService) GetAllTokens(ctx context.Context) ([]domain.Token, error) {
	return s.tokens.AllTokens(ctx)
}

func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.CleanupExpiredTokens(ctx)
}

func (s *AuthService) Roles() *RoleRegistry {
	return s.roles
}

func (s *AuthService) HasPermission(ctx context.Context, user *domain.User, action string) (bool, error) {
	if user == nil {
		return false, nil
	}
	return s.roles.HasPermission(ctx, user.Role, action)
}

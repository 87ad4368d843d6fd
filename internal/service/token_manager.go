package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/observability"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/repository"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/security"
)

const DefaultTokenTTL = time.Hour

// Every rejection reports the same reason so callers cannot tell which check
// failed.
const (
	TokenReasonValid    = "token is valid"
	TokenReasonInvalid  = "invalid or expired token"
	TokenReasonConsumed = "token consumed"
)

type TokenValidation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

type TokenConsumption struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

type TokenManager struct {
	tokens     repository.TokenRepository
	users      repository.UserRepository
	signer     *security.TokenSigner
	defaultTTL time.Duration
	logger     *slog.Logger
	now        Clock
}

func NewTokenManager(tokens repository.TokenRepository, users repository.UserRepository, signer *security.TokenSigner, defaultTTL time.Duration, logger *slog.Logger) *TokenManager {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTokenTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenManager{
		tokens:     tokens,
		users:      users,
		signer:     signer,
		defaultTTL: defaultTTL,
		logger:     logger,
		now:        systemClock,
	}
}

// CreateToken issues a single-use token of tokenType for userID.
func (m *TokenManager) CreateToken(ctx context.Context, userID string, ttl time.Duration, tokenType string) (string, error) {
	userID = strings.TrimSpace(userID)
	tokenType = strings.TrimSpace(tokenType)
	if userID == "" {
		return "", missing("user_id")
	}
	if tokenType == "" {
		return "", missing("type")
	}
	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		observability.RecordTokenOperation(ctx, "create", "error")
		return "", translate("find_token_user", userID, err)
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	now := m.now()
	expiresAt := now.Add(ttl)
	raw, err := m.signer.Sign(user.ID, tokenType, now, expiresAt)
	if err != nil {
		observability.RecordTokenOperation(ctx, "create", "error")
		return "", err
	}
	record := &domain.Token{
		Token:     raw,
		UserID:    user.ID,
		Email:     user.Email,
		Type:      tokenType,
		ExpiresAt: expiresAt,
	}
	if err := m.tokens.Create(ctx, record); err != nil {
		observability.RecordTokenOperation(ctx, "create", "error")
		return "", &PersistenceError{Op: "create_token", Key: userID, Err: err}
	}
	observability.RecordTokenOperation(ctx, "create", "success")
	return raw, nil
}

// ValidateToken checks existence, owner, type and expiry without consuming.
func (m *TokenManager) ValidateToken(ctx context.Context, token, userID, tokenType string) (TokenValidation, error) {
	invalid := TokenValidation{Valid: false, Reason: TokenReasonInvalid}
	now := m.now()
	if !m.signatureMatches(token, userID, tokenType, now) {
		observability.RecordTokenOperation(ctx, "validate", "invalid")
		return invalid, nil
	}
	record, err := m.tokens.Find(ctx, token)
	if errors.Is(err, repository.ErrTokenNotFound) {
		observability.RecordTokenOperation(ctx, "validate", "invalid")
		return invalid, nil
	}
	if err != nil {
		observability.RecordTokenOperation(ctx, "validate", "error")
		return invalid, &PersistenceError{Op: "find_token", Key: userID, Err: err}
	}
	if record.UserID != userID || record.Type != tokenType || record.Expired(now) {
		observability.RecordTokenOperation(ctx, "validate", "invalid")
		return invalid, nil
	}
	observability.RecordTokenOperation(ctx, "validate", "valid")
	return TokenValidation{Valid: true, Reason: TokenReasonValid}, nil
}

// ConsumeToken validates and deletes the token in one store transaction. It
// succeeds at most once per token; every other outcome is ErrTokenInvalid.
func (m *TokenManager) ConsumeToken(ctx context.Context, token, userID, tokenType string) (TokenConsumption, error) {
	failed := TokenConsumption{Status: false, Message: TokenReasonInvalid}
	now := m.now()
	if !m.signatureMatches(token, userID, tokenType, now) {
		observability.RecordTokenOperation(ctx, "consume", "invalid")
		return failed, ErrTokenInvalid
	}
	_, err := m.tokens.Consume(ctx, token, userID, tokenType, now)
	switch {
	case errors.Is(err, repository.ErrTokenNotFound), errors.Is(err, repository.ErrTokenExpired):
		observability.RecordTokenOperation(ctx, "consume", "invalid")
		return failed, ErrTokenInvalid
	case err != nil:
		observability.RecordTokenOperation(ctx, "consume", "error")
		return failed, &PersistenceError{Op: "consume_token", Key: userID, Err: err}
	}
	observability.RecordTokenOperation(ctx, "consume", "success")
	observability.Audit(ctx, "token.consumed", "user_id", userID, "type", tokenType)
	return TokenConsumption{Status: true, Message: TokenReasonConsumed}, nil
}

func (m *TokenManager) signatureMatches(token, userID, tokenType string, now time.Time) bool {
	if token == "" || userID == "" || tokenType == "" {
		return false
	}
	claims, err := m.signer.Parse(token, tokenType, now)
	if err != nil {
		return false
	}
	return claims.Subject == userID
}

func (m *TokenManager) AllTokens(ctx context.Context) ([]domain.Token, error) {
	tokens, err := m.tokens.List(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list_tokens", Err: err}
	}
	return tokens, nil
}

func (m *TokenManager) DeleteUserTokens(ctx context.Context, userID string) (int64, error) {
	n, err := m.tokens.DeleteByUserID(ctx, userID)
	if err != nil {
		return 0, &PersistenceError{Op: "delete_user_tokens", Key: userID, Err: err}
	}
	return n, nil
}

func (m *TokenManager) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	n, err := m.tokens.CleanupExpired(ctx, m.now())
	if err != nil {
		observability.RecordTokenOperation(ctx, "cleanup", "error")
		return 0, &PersistenceError{Op: "cleanup_tokens", Err: err}
	}
	observability.RecordTokenOperation(ctx, "cleanup", "success")
	if n > 0 {
		m.logger.InfoContext(ctx, "expired tokens removed", "count", n)
	}
	return n, nil
}

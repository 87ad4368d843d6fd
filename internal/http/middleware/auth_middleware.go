package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/http/response"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/service"
)

type contextKey string

const (
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session_id"
)

type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID string) (*domain.User, error)
}

// SessionMiddleware resolves the session cookie (or a bearer session id) to
// a user and rejects the request when there is none.
func SessionMiddleware(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := sessionIDFromRequest(r)
			if sessionID == "" {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
				return
			}
			user, err := validator.ValidateSession(r.Context(), sessionID)
			if err != nil {
				response.Error(w, r, http.StatusServiceUnavailable, "SESSION_UNAVAILABLE", "session lookup unavailable", nil)
				return
			}
			if user == nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired session", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), user, sessionID)))
		})
	}
}

func sessionIDFromRequest(r *http.Request) string {
	if c, err := r.Cookie(service.SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func WithSession(ctx context.Context, user *domain.User, sessionID string) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, sessionContextKey, sessionID)
}

func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userContextKey).(*domain.User)
	return u, ok && u != nil
}

func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionContextKey).(string)
	return id
}

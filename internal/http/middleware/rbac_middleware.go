package middleware

import (
	"context"
	"net/http"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/http/response"
)

type PermissionChecker interface {
	HasPermission(ctx context.Context, user *domain.User, action string) (bool, error)
}

// RequirePermission must run after SessionMiddleware.
func RequirePermission(checker PermissionChecker, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
				return
			}
			allowed, err := checker.HasPermission(r.Context(), user, action)
			if err != nil {
				response.Error(w, r, http.StatusServiceUnavailable, "RBAC_UNAVAILABLE", "permission resolution unavailable", nil)
				return
			}
			if !allowed {
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient permission", map[string]string{"required": action})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

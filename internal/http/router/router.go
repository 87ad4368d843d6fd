package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/http/handler"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/http/middleware"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/http/response"
)

type Dependencies struct {
	AuthHandler      *handler.AuthHandler
	AdminHandler     *handler.AdminHandler
	Sessions         middleware.SessionValidator
	Permissions      middleware.PermissionChecker
	LoginRateLimiter LoginRateLimiterFunc
	Readiness        ReadinessFunc
	Logger           *slog.Logger
	EnableOTelHTTP   bool
}

type LoginRateLimiterFunc func(http.Handler) http.Handler

// ReadinessFunc reports whether backing stores are reachable.
type ReadinessFunc func(ctx context.Context) error

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger(dep.Logger))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
		if err := dep.Readiness(r.Context()); err != nil {
			response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]string{"error": err.Error()})
			return
		}
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	})

	requireSession := middleware.SessionMiddleware(dep.Sessions)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if dep.LoginRateLimiter != nil {
				r.With(dep.LoginRateLimiter).Post("/login", dep.AuthHandler.Login)
			} else {
				r.Post("/login", dep.AuthHandler.Login)
			}
			r.With(requireSession).Post("/logout", dep.AuthHandler.Logout)
		})

		r.With(requireSession).Get("/me", dep.AuthHandler.Me)
		r.With(requireSession).Get("/me/sessions", dep.AuthHandler.Sessions)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireSession)
			r.With(middleware.RequirePermission(dep.Permissions, domain.ActionRead)).Get("/roles", dep.AdminHandler.ListRoles)
			r.With(middleware.RequirePermission(dep.Permissions, domain.ActionWrite)).Get("/users", dep.AdminHandler.ListUsers)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}

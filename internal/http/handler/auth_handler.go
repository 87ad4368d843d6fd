package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/http/middleware"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/http/response"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/service"
)

const maxBodyBytes = 1 << 20

type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{auth: auth, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
	Extended bool   `json:"extended"`
}

type sessionPayload struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		deviceID = deviceFingerprint(r)
	}
	session, err := h.auth.CreateSession(r.Context(), user.ID, deviceID, 0, req.Extended)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	http.SetCookie(w, h.auth.CreateSessionCookie(session))
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user": user,
		"session": sessionPayload{
			ID:        session.ID,
			ExpiresAt: session.ExpiresAt,
		},
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromContext(r.Context())
	if err := h.auth.LogOut(r.Context(), sessionID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	http.SetCookie(w, h.auth.ClearSessionCookie())
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}

func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	views, err := h.auth.ListActiveSessions(r.Context(), user.ID, middleware.SessionIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, views)
}

func (h *AuthHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *service.AccountLockedError
	var invalid *service.ValidationError
	switch {
	case errors.As(err, &locked):
		seconds := int(math.Ceil(locked.Remaining.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
		response.Error(w, r, http.StatusLocked, "ACCOUNT_LOCKED", locked.Error(), map[string]int{"retry_after_seconds": seconds})
	case errors.As(err, &invalid):
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", invalid.Error(), map[string]string{"field": invalid.Field})
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
	case errors.Is(err, service.ErrAccountBlocked):
		response.Error(w, r, http.StatusForbidden, "ACCOUNT_BLOCKED", "account is blocked", nil)
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrRoleNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// deviceFingerprint stands in for a missing device id so that repeated logins
// from the same client reuse one session row.
func deviceFingerprint(r *http.Request) string {
	sum := sha256.Sum256([]byte(r.UserAgent()))
	return "ua-" + hex.EncodeToString(sum[:8])
}

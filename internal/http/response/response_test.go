package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestErrorEnvelopeAndHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rr := httptest.NewRecorder()

	Error(rr, req, http.StatusLocked, "ACCOUNT_LOCKED", "try again later", map[string]int{"retry_after_seconds": 30})

	if rr.Code != http.StatusLocked {
		t.Fatalf("expected 423, got %d", rr.Code)
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store, got %q", rr.Header().Get("Cache-Control"))
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string         `json:"code"`
			Details map[string]int `json:"details"`
		} `json:"error"`
		Meta struct {
			RequestID string `json:"request_id"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error.Code != "ACCOUNT_LOCKED" || body.Error.Details["retry_after_seconds"] != 30 {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
	if body.Meta.RequestID != "req-42" {
		t.Fatalf("expected request id from header, got %q", body.Meta.RequestID)
	}
}

func TestJSONWithoutRequestID(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil), http.StatusOK, map[string]string{"status": "ok"})
	var body struct {
		Success bool `json:"success"`
		Meta    struct {
			RequestID string `json:"request_id"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Meta.RequestID != "req-unknown" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

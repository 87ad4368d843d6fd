package observability

import (
	"context"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

// Audit writes a security event through the default logger. Events raised
// inside a span carry its trace id.
func Audit(ctx context.Context, event string, attrs ...any) {
	base := make([]any, 0, len(attrs)+4)
	base = append(base, "event", event)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		base = append(base, "trace_id", sc.TraceID().String())
	}
	base = append(base, attrs...)
	slog.Default().Log(ctx, slog.LevelInfo, "audit", base...)
}

func AuditRequest(r *http.Request, event string, attrs ...any) {
	base := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimiddleware.GetReqID(r.Context()),
	}
	Audit(r.Context(), event, append(base, attrs...)...)
}

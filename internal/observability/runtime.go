package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/config"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Runtime owns the telemetry providers started for the process. Any of them
// may be nil when its exporter is disabled.
type Runtime struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
	LoggerProvider *sdklog.LoggerProvider
}

func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*Runtime, error) {
	rt := &Runtime{LoggerProvider: lp}
	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		return nil, errors.Join(err, rt.Shutdown(ctx))
	}
	rt.MeterProvider = mp
	tp, err := InitTracing(ctx, cfg, logger)
	if err != nil {
		return nil, errors.Join(err, rt.Shutdown(ctx))
	}
	rt.TracerProvider = tp
	logger.Info("telemetry initialized",
		"metrics_export", cfg.OTELMetricsEnabled,
		"tracing_export", cfg.OTELTracingEnabled,
		"logs_export", lp != nil,
	)
	return rt, nil
}

// Shutdown flushes every started provider, in reverse start order, and
// reports all failures.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.TracerProvider != nil {
		if err := r.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if r.MeterProvider != nil {
		if err := r.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if r.LoggerProvider != nil {
		if err := r.LoggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/config"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/observability"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/service"
)

const defaultShutdownTimeout = 20 * time.Second

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Auth          *service.AuthService
	Observability *observability.Runtime

	ShutdownTimeout time.Duration
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, auth *service.AuthService, runtime *observability.Runtime) *App {
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return &App{
		Config:          cfg,
		Logger:          logger,
		Server:          server,
		Auth:            auth,
		Observability:   runtime,
		ShutdownTimeout: timeout,
	}
}

// Run serves HTTP until ctx is cancelled or the listener fails, then drains
// in-flight requests and flushes telemetry.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.ShutdownTimeout)
	defer cancel()
	a.Logger.Info("shutting down", "timeout", a.ShutdownTimeout)
	return errors.Join(serveErr, a.Shutdown(shutdownCtx))
}

func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := a.Observability.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("observability shutdown: %w", err))
	}
	return errors.Join(errs...)
}

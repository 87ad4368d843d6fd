//go:build wireinject

package di

import (
	"context"
	"log/slog"

	"github.com/google/wire"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/app"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/config"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/http/handler"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/http/router"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/repository"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/service"

	sdklog "go.opentelemetry.io/otel/sdk/log"
)

var repositorySet = wire.NewSet(
	provideDB,
	repository.NewUserRepository,
	repository.NewSessionRepository,
	repository.NewTokenRepository,
	repository.NewRoleRepository,
	repository.NewPermissionRepository,
)

var cacheSet = wire.NewSet(
	provideRedis,
	provideCacheStore,
	provideNegativeLookupStore,
	provideRolePermissionStore,
)

var serviceSet = wire.NewSet(
	provideHasher,
	provideTokenSigner,
	provideLockoutPolicy,
	provideSessionCache,
	provideSessionManager,
	provideTokenManager,
	providePermissionResolver,
	service.NewRoleRegistry,
	provideAuthService,
)

var httpSet = wire.NewSet(
	handler.NewAuthHandler,
	provideAdminHandler,
	provideLoginRateLimiter,
	provideReadiness,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

func InitializeApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*app.App, func(), error) {
	wire.Build(repositorySet, cacheSet, serviceSet, httpSet, provideObservabilityRuntime, app.New)
	return nil, nil, nil
}

func InitializeAuthService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service.AuthService, func(), error) {
	wire.Build(repositorySet, cacheSet, serviceSet)
	return nil, nil, nil
}

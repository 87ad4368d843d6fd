package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/config"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/http/handler"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/http/middleware"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/http/router"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/observability"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/repository"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/security"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/service"

	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const (
	rolePermissionLRUSize      = 256
	memoryCacheCleanupInterval = time.Minute
)

func provideDB(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := repository.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, cleanup, nil
}

// provideRedis returns a nil client when the cache is disabled; every store
// built on it then degrades to a miss.
func provideRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if !cfg.UsesRedis() {
		return nil, func() {}, nil
	}
	client := newRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable at startup, cache reads will miss", "addr", cfg.RedisAddr, "error", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// newRedisClient accepts a comma separated REDIS_ADDR; more than one address
// yields a cluster client.
func newRedisClient(addrs, password string, db int) redis.UniversalClient {
	var list []string
	for _, a := range strings.Split(addrs, ",") {
		if a = strings.TrimSpace(a); a != "" {
			list = append(list, a)
		}
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    list,
		Password: password,
		DB:       db,
	})
}

func provideCacheStore(cfg *config.Config, client redis.UniversalClient) service.CacheStore {
	if cfg.UsesMemoryCache() {
		return service.NewInMemoryCacheStore(memoryCacheCleanupInterval)
	}
	if client == nil {
		return service.NewNoopCacheStore()
	}
	return service.NewRedisCacheStore(client, cfg.CachePrefix+":session_cache")
}

func provideNegativeLookupStore(cfg *config.Config, client redis.UniversalClient) service.NegativeLookupCacheStore {
	if cfg.UsesMemoryCache() {
		return service.NewInMemoryNegativeLookupCacheStore()
	}
	if client == nil {
		return service.NewNoopNegativeLookupCacheStore()
	}
	return service.NewRedisNegativeLookupCacheStore(client, cfg.CachePrefix+":negative_lookup")
}

// provideRolePermissionStore keeps resolved permissions in process when no
// redis is configured, since role data changes rarely and is local to one
// database.
func provideRolePermissionStore(cfg *config.Config, client redis.UniversalClient) service.RolePermissionCacheStore {
	if client == nil {
		return service.NewInMemoryRolePermissionCacheStore(rolePermissionLRUSize, cfg.RBACCacheTTL)
	}
	return service.NewRedisRolePermissionCacheStore(client, cfg.CachePrefix+":role_perm")
}

func provideHasher(cfg *config.Config) (service.CredentialHasher, error) {
	h, err := security.NewArgon2Hasher(security.PasswordConfig{
		Memory:      cfg.PasswordMemoryKiB,
		Time:        cfg.PasswordIterations,
		Parallelism: cfg.PasswordParallelism,
		SaltLength:  cfg.PasswordSaltLength,
		KeyLength:   cfg.PasswordKeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("password policy: %w", err)
	}
	return h, nil
}

func provideTokenSigner(cfg *config.Config) *security.TokenSigner {
	return security.NewTokenSigner(cfg.TokenIssuer, cfg.TokenSigningSecret)
}

func provideLockoutPolicy(cfg *config.Config) service.LockoutPolicy {
	return service.LockoutPolicy{Threshold: cfg.LockoutThreshold, Duration: cfg.LockoutDuration}
}

func provideSessionCache(cfg *config.Config, store service.CacheStore, logger *slog.Logger) *service.SessionCache {
	return service.NewSessionCache(store, cfg.SessionCacheTTL, logger)
}

func provideSessionManager(
	cfg *config.Config,
	sessions repository.SessionRepository,
	users repository.UserRepository,
	cache *service.SessionCache,
	negative service.NegativeLookupCacheStore,
	logger *slog.Logger,
) *service.SessionManager {
	return service.NewSessionManager(sessions, users, cache, negative, service.SessionManagerConfig{
		DefaultTTL:  cfg.SessionTTL,
		NegativeTTL: cfg.NegativeCacheTTL,
	}, logger)
}

func provideTokenManager(tokens repository.TokenRepository, users repository.UserRepository, signer *security.TokenSigner, logger *slog.Logger) *service.TokenManager {
	return service.NewTokenManager(tokens, users, signer, service.DefaultTokenTTL, logger)
}

func providePermissionResolver(cfg *config.Config, store service.RolePermissionCacheStore, roles repository.RoleRepository, logger *slog.Logger) service.PermissionResolver {
	return service.NewCachedPermissionResolver(store, roles, cfg.RBACCacheTTL, logger)
}

func provideAuthService(
	cfg *config.Config,
	users repository.UserRepository,
	hasher service.CredentialHasher,
	lockout service.LockoutPolicy,
	sessions *service.SessionManager,
	tokens *service.TokenManager,
	roles *service.RoleRegistry,
	logger *slog.Logger,
) *service.AuthService {
	return service.NewAuthService(users, hasher, lockout, sessions, tokens, roles, cfg.IsProduction(), logger)
}

// provideLoginRateLimiter shares counters through redis when the cache is
// on. A zero limit disables limiting.
func provideLoginRateLimiter(cfg *config.Config, client redis.UniversalClient) router.LoginRateLimiterFunc {
	if cfg.LoginRateLimitPerMinute <= 0 {
		return nil
	}
	var limiter middleware.Limiter
	if client != nil {
		limiter = middleware.NewRedisFixedWindowLimiter(client, cfg.CachePrefix+":rate_limit")
	}
	return middleware.NewRateLimiter(limiter, cfg.LoginRateLimitPerMinute, time.Minute, middleware.FailOpen, "login").Middleware()
}

func provideReadiness(db *gorm.DB, client redis.UniversalClient) router.ReadinessFunc {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if client != nil {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}

func provideAdminHandler(auth *service.AuthService, authHandler *handler.AuthHandler) *handler.AdminHandler {
	return handler.NewAdminHandler(auth, authHandler)
}

func provideRouterDependencies(
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	adminHandler *handler.AdminHandler,
	auth *service.AuthService,
	limiter router.LoginRateLimiterFunc,
	readiness router.ReadinessFunc,
	logger *slog.Logger,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:      authHandler,
		AdminHandler:     adminHandler,
		Sessions:         auth,
		Permissions:      auth,
		LoginRateLimiter: limiter,
		Readiness:        readiness,
		Logger:           logger,
		EnableOTelHTTP:   cfg.OTELTracingEnabled || cfg.OTELMetricsEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func provideObservabilityRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*observability.Runtime, error) {
	return observability.InitRuntime(ctx, cfg, logger, lp)
}

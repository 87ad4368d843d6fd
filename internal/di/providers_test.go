package di

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/config"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/service"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestCacheProvidersWithCacheDisabled(t *testing.T) {
	cfg := &config.Config{CachePrefix: "auth", RBACCacheTTL: time.Minute}
	client, cleanup, err := provideRedis(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("provide redis: %v", err)
	}
	defer cleanup()
	if client != nil {
		t.Fatal("expected no redis client when cache is disabled")
	}
	if _, ok := provideCacheStore(cfg, client).(*service.NoopCacheStore); !ok {
		t.Fatal("expected noop session cache store")
	}
	if _, ok := provideNegativeLookupStore(cfg, client).(*service.NoopNegativeLookupCacheStore); !ok {
		t.Fatal("expected noop negative lookup store")
	}
	if _, ok := provideRolePermissionStore(cfg, client).(*service.InMemoryRolePermissionCacheStore); !ok {
		t.Fatal("expected in-process role permission store")
	}
}

func TestCacheProvidersWithMemoryBackend(t *testing.T) {
	cfg := &config.Config{CacheEnabled: true, CacheBackend: config.CacheBackendMemory, CachePrefix: "auth", RBACCacheTTL: time.Minute}
	client, cleanup, err := provideRedis(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("provide redis: %v", err)
	}
	defer cleanup()
	if client != nil {
		t.Fatal("expected no redis client for the memory backend")
	}

	store, ok := provideCacheStore(cfg, client).(*service.InMemoryCacheStore)
	if !ok || !store.Enabled() {
		t.Fatal("expected enabled in-process session cache store")
	}
	if err := store.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, hit, _ := store.Get(context.Background(), "k"); !hit || string(got) != "v" {
		t.Fatalf("expected cached value, got %q hit=%v", got, hit)
	}
	if _, ok := provideNegativeLookupStore(cfg, client).(*service.InMemoryNegativeLookupCacheStore); !ok {
		t.Fatal("expected in-process negative lookup store")
	}
}

func TestCacheProvidersWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{CacheEnabled: true, RedisAddr: mr.Addr(), CachePrefix: "auth", LoginRateLimitPerMinute: 1}
	client, cleanup, err := provideRedis(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("provide redis: %v", err)
	}
	defer cleanup()

	store := provideCacheStore(cfg, client)
	if !store.Enabled() {
		t.Fatal("expected redis cache store to be enabled")
	}
	if err := store.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("auth:session_cache:k") {
		t.Fatalf("expected prefixed key, have %v", mr.Keys())
	}

	limiter := provideLoginRateLimiter(cfg, client)
	if limiter == nil {
		t.Fatal("expected login rate limiter")
	}
	h := limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, rr.Code)
		}
	}
}

func TestLoginRateLimiterDisabledAtZero(t *testing.T) {
	if provideLoginRateLimiter(&config.Config{}, nil) != nil {
		t.Fatal("expected no limiter for a zero limit")
	}
}

func TestHasherProviderRejectsWeakPolicy(t *testing.T) {
	if _, err := provideHasher(&config.Config{PasswordMemoryKiB: 16, PasswordIterations: 1, PasswordParallelism: 1, PasswordSaltLength: 16, PasswordKeyLength: 32}); err == nil {
		t.Fatal("expected policy validation error")
	}
}

func TestNewRedisClientSplitsAddresses(t *testing.T) {
	single := newRedisClient(" localhost:6379 ", "", 0)
	defer single.Close()
	if _, ok := single.(*redis.Client); !ok {
		t.Fatalf("expected single-node client, got %T", single)
	}
	cluster := newRedisClient("a:7000, b:7001,", "", 0)
	defer cluster.Close()
	if _, ok := cluster.(*redis.ClusterClient); !ok {
		t.Fatalf("expected cluster client, got %T", cluster)
	}
}

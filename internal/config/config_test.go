package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

const testSecret = "abcdefghijklmnopqrstuvwxyz0123456789"

func TestLoadFromDefaults(t *testing.T) {
	t.Setenv("TOKEN_SIGNING_SECRET", testSecret)

	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SessionTTL != time.Hour {
		t.Fatalf("expected 1h session ttl, got %s", cfg.SessionTTL)
	}
	if cfg.SessionCacheTTL != time.Hour {
		t.Fatalf("expected 1h cache ttl, got %s", cfg.SessionCacheTTL)
	}
	if cfg.LockoutThreshold != 5 || cfg.LockoutDuration != 30*time.Minute {
		t.Fatalf("unexpected lockout policy: %d %s", cfg.LockoutThreshold, cfg.LockoutDuration)
	}
	if cfg.PasswordMemoryKiB != 4096 || cfg.PasswordIterations != 2 || cfg.PasswordParallelism != 2 || cfg.PasswordSaltLength != 16 {
		t.Fatalf("unexpected password policy: %+v", cfg)
	}
	if cfg.CacheEnabled || cfg.CacheBackend != CacheBackendRedis {
		t.Fatalf("expected cache disabled with redis backend by default, got %v %q", cfg.CacheEnabled, cfg.CacheBackend)
	}
	if cfg.IsProduction() {
		t.Fatal("expected development profile by default")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("TOKEN_SIGNING_SECRET", testSecret)
	t.Setenv("APP_ENV", "Production")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("LOCKOUT_THRESHOLD", "3")
	t.Setenv("SESSION_TTL", "2h")

	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production profile")
	}
	if !cfg.CacheEnabled || cfg.LockoutThreshold != 3 || cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadFromMemoryCacheNeedsNoRedis(t *testing.T) {
	t.Setenv("TOKEN_SIGNING_SECRET", testSecret)
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CACHE_BACKEND", " Memory ")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.UsesMemoryCache() || cfg.UsesRedis() {
		t.Fatalf("expected in-process cache, got backend=%q", cfg.CacheBackend)
	}
}

func TestLoadFromErrors(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{name: "missing secret", env: map[string]string{}, wantMsg: "validate config:"},
		{name: "bad duration", env: map[string]string{"TOKEN_SIGNING_SECRET": testSecret, "SESSION_TTL": "soon"}, wantMsg: "parse SESSION_TTL"},
		{name: "bad driver", env: map[string]string{"TOKEN_SIGNING_SECRET": testSecret, "DATABASE_DRIVER": "mongo"}, wantMsg: "DATABASE_DRIVER"},
		{name: "bad cache backend", env: map[string]string{"TOKEN_SIGNING_SECRET": testSecret, "CACHE_BACKEND": "memcached"}, wantMsg: "CACHE_BACKEND"},
		{name: "bad threshold", env: map[string]string{"TOKEN_SIGNING_SECRET": testSecret, "LOCKOUT_THRESHOLD": "0"}, wantMsg: "LOCKOUT_THRESHOLD"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TOKEN_SIGNING_SECRET", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadFrom(viper.New())
			if err == nil {
				t.Fatal("expected load error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("expected %q in error, got %v", tc.wantMsg, err)
			}
		})
	}
}

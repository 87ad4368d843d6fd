package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

type Config struct {
	Env      string
	HTTPAddr string

	DatabaseDriver string
	DatabaseURL    string

	CacheEnabled     bool
	CacheBackend     string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	CachePrefix      string
	SessionTTL       time.Duration
	SessionCacheTTL  time.Duration
	NegativeCacheTTL time.Duration
	RBACCacheTTL     time.Duration

	LockoutThreshold int
	LockoutDuration  time.Duration

	LoginRateLimitPerMinute int

	PasswordMemoryKiB   uint32
	PasswordIterations  uint32
	PasswordParallelism uint8
	PasswordSaltLength  uint32
	PasswordKeyLength   uint32

	TokenSigningSecret string
	TokenIssuer        string

	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELServiceName           string
	OTELEnvironment           string
	OTELMetricsExportInterval time.Duration

	ShutdownTimeout time.Duration
}

// UsesRedis reports whether the cache stores and the login limiter share a
// redis deployment. An unset backend means redis.
func (c *Config) UsesRedis() bool {
	return c.CacheEnabled && c.CacheBackend != CacheBackendMemory
}

// UsesMemoryCache reports whether the cache stores live in process.
func (c *Config) UsesMemoryCache() bool {
	return c.CacheEnabled && c.CacheBackend == CacheBackendMemory
}

func (c *Config) IsProduction() bool {
	return normalizeConfigProfile(c.Env) == "production"
}

func (c *Config) IsDevelopment() bool {
	p := normalizeConfigProfile(c.Env)
	return p == "development" || p == "unknown"
}

var defaults = map[string]any{
	"APP_ENV":                      "development",
	"HTTP_ADDR":                    ":8080",
	"DATABASE_DRIVER":              "sqlite",
	"DATABASE_URL":                 "file:auth.db?cache=shared",
	"CACHE_ENABLED":                "false",
	"CACHE_BACKEND":                CacheBackendRedis,
	"REDIS_ADDR":                   "localhost:6379",
	"REDIS_PASSWORD":               "",
	"REDIS_DB":                     "0",
	"CACHE_PREFIX":                 "auth",
	"SESSION_TTL":                  "1h",
	"SESSION_CACHE_TTL":            "1h",
	"NEGATIVE_CACHE_TTL":           "30s",
	"RBAC_CACHE_TTL":               "5m",
	"LOCKOUT_THRESHOLD":            "5",
	"LOCKOUT_DURATION":             "30m",
	"LOGIN_RATE_LIMIT_PER_MINUTE":  "20",
	"PASSWORD_MEMORY_KIB":          "4096",
	"PASSWORD_ITERATIONS":          "2",
	"PASSWORD_PARALLELISM":         "2",
	"PASSWORD_SALT_LENGTH":         "16",
	"PASSWORD_KEY_LENGTH":          "32",
	"TOKEN_SIGNING_SECRET":         "",
	"TOKEN_ISSUER":                 "sveltycms-auth",
	"OTEL_METRICS_ENABLED":         "false",
	"OTEL_TRACING_ENABLED":         "false",
	"OTEL_LOGS_ENABLED":            "false",
	"OTEL_EXPORTER_OTLP_ENDPOINT":  "localhost:4317",
	"OTEL_EXPORTER_OTLP_INSECURE":  "true",
	"OTEL_SERVICE_NAME":            "sveltycms-auth",
	"OTEL_METRICS_EXPORT_INTERVAL": "15s",
	"SHUTDOWN_TIMEOUT":             "20s",
}

// Load reads .env, an optional config.yml and the process environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return LoadFrom(v)
}

// LoadFrom builds a Config from an already prepared viper instance. Defaults
// and environment binding are applied here.
func LoadFrom(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg, err := parse(v)
	if err == nil {
		err = cfg.validate()
	}
	profile := v.GetString("APP_ENV")
	if err != nil {
		recordConfigValidationEvent(context.Background(), profile, "error", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(context.Background(), profile, "success", "none")
	return cfg, nil
}

func parse(v *viper.Viper) (*Config, error) {
	p := &parser{v: v}
	cfg := &Config{
		Env:                      strings.TrimSpace(v.GetString("APP_ENV")),
		HTTPAddr:                 v.GetString("HTTP_ADDR"),
		DatabaseDriver:           strings.ToLower(strings.TrimSpace(v.GetString("DATABASE_DRIVER"))),
		DatabaseURL:              strings.TrimSpace(v.GetString("DATABASE_URL")),
		CacheEnabled:             p.boolean("CACHE_ENABLED"),
		CacheBackend:             strings.ToLower(strings.TrimSpace(v.GetString("CACHE_BACKEND"))),
		RedisAddr:                v.GetString("REDIS_ADDR"),
		RedisPassword:            v.GetString("REDIS_PASSWORD"),
		RedisDB:                  p.integer("REDIS_DB"),
		CachePrefix:              v.GetString("CACHE_PREFIX"),
		SessionTTL:               p.duration("SESSION_TTL"),
		SessionCacheTTL:          p.duration("SESSION_CACHE_TTL"),
		NegativeCacheTTL:         p.duration("NEGATIVE_CACHE_TTL"),
		RBACCacheTTL:             p.duration("RBAC_CACHE_TTL"),
		LockoutThreshold:         p.integer("LOCKOUT_THRESHOLD"),
		LockoutDuration:          p.duration("LOCKOUT_DURATION"),
		PasswordMemoryKiB:        uint32(p.integer("PASSWORD_MEMORY_KIB")),
		PasswordIterations:       uint32(p.integer("PASSWORD_ITERATIONS")),
		PasswordParallelism:      uint8(p.integer("PASSWORD_PARALLELISM")),
		PasswordSaltLength:       uint32(p.integer("PASSWORD_SALT_LENGTH")),
		PasswordKeyLength:        uint32(p.integer("PASSWORD_KEY_LENGTH")),
		TokenSigningSecret:       v.GetString("TOKEN_SIGNING_SECRET"),
		TokenIssuer:              v.GetString("TOKEN_ISSUER"),
		OTELMetricsEnabled:       p.boolean("OTEL_METRICS_ENABLED"),
		OTELTracingEnabled:       p.boolean("OTEL_TRACING_ENABLED"),
		OTELLogsEnabled:          p.boolean("OTEL_LOGS_ENABLED"),
		OTELExporterOTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTELExporterOTLPInsecure: p.boolean("OTEL_EXPORTER_OTLP_INSECURE"),
		OTELServiceName:          v.GetString("OTEL_SERVICE_NAME"),
		ShutdownTimeout:          p.duration("SHUTDOWN_TIMEOUT"),
	}
	cfg.OTELMetricsExportInterval = p.duration("OTEL_METRICS_EXPORT_INTERVAL")
	cfg.LoginRateLimitPerMinute = p.integer("LOGIN_RATE_LIMIT_PER_MINUTE")
	cfg.OTELEnvironment = normalizeConfigProfile(cfg.Env)
	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var problems []string
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver))
	}
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	switch c.CacheBackend {
	case CacheBackendRedis, CacheBackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("CACHE_BACKEND must be redis or memory, got %q", c.CacheBackend))
	}
	if c.UsesRedis() && strings.TrimSpace(c.RedisAddr) == "" {
		problems = append(problems, "REDIS_ADDR is required when CACHE_ENABLED=true and CACHE_BACKEND=redis")
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "SESSION_TTL must be positive")
	}
	if c.LoginRateLimitPerMinute < 0 {
		problems = append(problems, "LOGIN_RATE_LIMIT_PER_MINUTE must be >= 0")
	}
	if c.LockoutThreshold < 1 {
		problems = append(problems, "LOCKOUT_THRESHOLD must be >= 1")
	}
	if c.LockoutDuration <= 0 {
		problems = append(problems, "LOCKOUT_DURATION must be positive")
	}
	if len(c.TokenSigningSecret) < 32 {
		problems = append(problems, "TOKEN_SIGNING_SECRET must be at least 32 bytes")
	}
	if c.PasswordIterations < 1 || c.PasswordParallelism < 1 || c.PasswordMemoryKiB < 1024 {
		problems = append(problems, "password policy requires iterations >= 1, parallelism >= 1, memory >= 1024 KiB")
	}
	if len(problems) > 0 {
		return fmt.Errorf("validate config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// parser keeps the first conversion failure so parse can stay a flat literal.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) raw(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
	}
}

func (p *parser) duration(key string) time.Duration {
	d, err := time.ParseDuration(p.raw(key))
	if err != nil {
		p.fail(key, err)
	}
	return d
}

func (p *parser) integer(key string) int {
	n, err := strconv.Atoi(p.raw(key))
	if err != nil {
		p.fail(key, err)
	}
	return n
}

func (p *parser) boolean(key string) bool {
	b, err := strconv.ParseBool(p.raw(key))
	if err != nil {
		p.fail(key, err)
	}
	return b
}

package config

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	configMetricsOnce sync.Once
	configCounter     metric.Int64Counter
)

// recordConfigValidationEvent counts each Load outcome. The counter binds to
// whatever meter provider is global at first use.
func recordConfigValidationEvent(ctx context.Context, profile, outcome, errorClass string) {
	configMetricsOnce.Do(func() {
		counter, err := otel.Meter("sveltycms-auth/config").Int64Counter(
			"config.validation.events",
			metric.WithDescription("Configuration load attempts by profile and outcome"),
		)
		if err == nil {
			configCounter = counter
		}
	})
	if configCounter == nil {
		return
	}
	configCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", normalizeConfigProfile(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", errorClass),
	))
}

var profileAliases = map[string]string{
	"prod":    "production",
	"live":    "production",
	"dev":     "development",
	"local":   "development",
	"testing": "test",
	"stage":   "staging",
}

// normalizeConfigProfile folds APP_ENV spellings onto one profile name;
// anything blank is "unknown".
func normalizeConfigProfile(profile string) string {
	v := strings.TrimSpace(strings.ToLower(profile))
	if v == "" {
		return "unknown"
	}
	if alias, ok := profileAliases[v]; ok {
		return alias
	}
	return v
}

func classifyConfigLoadError(err error) string {
	if err == nil {
		return "none"
	}
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "validate config:"):
		return "validation"
	case strings.HasPrefix(msg, "parse "):
		return "parse"
	case strings.HasPrefix(msg, "load .env:"):
		return "dotenv"
	case strings.HasPrefix(msg, "read config file:"):
		return "config_file"
	default:
		return "load"
	}
}

// Package config holds the settings of cmd/abacctl, the demo CLI that
// exercises the abac library end to end. It follows the same shape as a
// typical service config layer: a plain struct, a DefaultConfig() constructor,
// and context carrier functions, but scaled down to what a one-shot CLI
// needs (no listener/TLS/datastore settings apply here).
package config

import (
	"context"
	"os"
	"strings"
)

type contextKey struct{}

// WithContext returns a new context carrying cfg.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config stored by WithContext, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

// Config holds the resolved settings for one abacctl invocation.
type Config struct {
	// Universe is the resource type universe, e.g. []string{"user", "todo"};
	// ABACCTL_UNIVERSE supplies it as a comma-separated list.
	Universe []string

	// PolicyDir is a directory of *.json policy documents to load.
	PolicyDir string

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string

	// Debug enables the structured evaluation trace on stdout.
	Debug bool
}

// DefaultConfig returns a Config with the CLI's baseline defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "warn",
	}
}

// ApplyEnv overlays ABACCTL_* environment variables onto cfg, for parity
// with flags that were not passed explicitly.
func (c *Config) ApplyEnv() {
	if raw := strings.TrimSpace(os.Getenv("ABACCTL_UNIVERSE")); raw != "" {
		c.Universe = splitCSV(raw)
	}
	applyStringEnv("ABACCTL_POLICY_DIR", &c.PolicyDir)
	applyStringEnv("ABACCTL_LOG_LEVEL", &c.LogLevel)
}

func applyStringEnv(key string, dest *string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	*dest = raw
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		v := strings.TrimSpace(part)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

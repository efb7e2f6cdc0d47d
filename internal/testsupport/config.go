package testsupport

import (
	"path/filepath"
	"testing"

	"trustlabel/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Paths.AuthSecret = "test-secret"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithAutoAssign toggles automatic assignment on the test config.
func WithAutoAssign(enabled bool, strategy string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Queue.AutoAssign = enabled
		if strategy != "" {
			cfg.Queue.AutoAssignStrategy = strategy
		}
	}
}

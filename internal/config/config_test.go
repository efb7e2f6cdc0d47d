package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"trustlabel/internal/config"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
api_bind = "127.0.0.1:9000"
auth_secret = "s3cret"

[queue]
auto_assign = true
auto_assign_strategy = "WORKLOAD_BALANCED"

[queue.sla_hours]
urgent = 2

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, found, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !found || resolved != path {
		t.Fatalf("expected file at %s to be found, got %s found=%v", path, resolved, found)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9000" {
		t.Fatalf("unexpected api_bind %q", cfg.Paths.APIBind)
	}
	if !cfg.Queue.AutoAssign || cfg.Queue.AutoAssignStrategy != "WORKLOAD_BALANCED" {
		t.Fatalf("unexpected queue settings %+v", cfg.Queue)
	}
	if cfg.Queue.SLAHours.Urgent != 2 || cfg.Queue.SLAHours.Normal != 0 {
		t.Fatalf("unexpected sla overrides %+v", cfg.Queue.SLAHours)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging format %q", cfg.Logging.Format)
	}
	// Unset values keep their defaults.
	if cfg.Notifier.SendBuffer <= 0 || cfg.Notifier.PingIntervalSeconds <= 0 {
		t.Fatalf("expected notifier defaults, got %+v", cfg.Notifier)
	}
}

func TestLoadMissingExplicitPathFails(t *testing.T) {
	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := config.Default()
	cfg.Queue.AutoAssignStrategy = "COIN_FLIP"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown strategy")
	}
}

func TestValidateRejectsNegativeSLAHours(t *testing.T) {
	cfg := config.Default()
	cfg.Queue.SLAHours.High = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for negative sla hours")
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown log format")
	}
}

func TestValidateRequiresDataDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = "  "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing data dir")
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}

	// The sample itself must parse.
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "deep", "data")
	cfg.Paths.LogDir = filepath.Join(base, "deep", "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist: %v", dir, err)
		}
	}
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	AuthSecret string `toml:"auth_secret"`
}

// Queue contains queue behavior settings.
type Queue struct {
	AutoAssign              bool     `toml:"auto_assign"`
	AutoAssignStrategy      string   `toml:"auto_assign_strategy"`
	DefaultEstimatedMinutes int      `toml:"default_estimated_minutes"`
	SLAHours                SLAHours `toml:"sla_hours"`
}

// SLAHours overrides the due-date window per priority, in hours. A zero field
// keeps the built-in window for that priority.
type SLAHours struct {
	Urgent int `toml:"urgent"`
	High   int `toml:"high"`
	Normal int `toml:"normal"`
	Low    int `toml:"low"`
}

// Notifier contains real-time fan-out settings.
type Notifier struct {
	SendBuffer          int `toml:"send_buffer"`
	EventBuffer         int `toml:"event_buffer"`
	PingIntervalSeconds int `toml:"ping_interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration for the trustlabel daemon and CLI.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Queue    Queue    `toml:"queue"`
	Notifier Notifier `toml:"notifier"`
	Logging  Logging  `toml:"logging"`
}

// DefaultPath returns the expected config file location.
func DefaultPath() string {
	return expandPath("~/.config/trustlabel/config.toml")
}

// Load reads configuration from the given path, falling back to the default
// location and then to built-in defaults when no file exists. It returns the
// config, the path that was consulted, and whether a file was found.
func Load(path string) (*Config, string, bool, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultPath()
	} else {
		resolved = expandPath(resolved)
	}

	cfg := Default()
	raw, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && strings.TrimSpace(path) == "" {
			if err := cfg.Validate(); err != nil {
				return nil, resolved, false, err
			}
			return &cfg, resolved, false, nil
		}
		return nil, resolved, false, fmt.Errorf("read config %s: %w", resolved, err)
	}

	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, resolved, true, fmt.Errorf("parse config %s: %w", resolved, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, resolved, true, err
	}
	return &cfg, resolved, true, nil
}

// WriteSample writes the annotated sample config to the given path.
func WriteSample(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Paths.DataDir = expandPath(c.Paths.DataDir)
	c.Paths.LogDir = expandPath(c.Paths.LogDir)
	if c.Queue.DefaultEstimatedMinutes <= 0 {
		c.Queue.DefaultEstimatedMinutes = defaultEstimatedMinutes
	}
	if c.Notifier.SendBuffer <= 0 {
		c.Notifier.SendBuffer = defaultSendBuffer
	}
	if c.Notifier.EventBuffer <= 0 {
		c.Notifier.EventBuffer = defaultEventBuffer
	}
	if c.Notifier.PingIntervalSeconds <= 0 {
		c.Notifier.PingIntervalSeconds = defaultPingIntervalSeconds
	}
}

// Validate checks settings that would otherwise fail at a confusing distance.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("config: paths.data_dir is required")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("config: paths.api_bind is required")
	}
	switch strings.ToUpper(strings.TrimSpace(c.Queue.AutoAssignStrategy)) {
	case "", "ROUND_ROBIN", "EXPERTISE_BASED", "WORKLOAD_BALANCED":
	default:
		return fmt.Errorf("config: unknown auto_assign_strategy %q", c.Queue.AutoAssignStrategy)
	}
	for name, hours := range map[string]int{
		"urgent": c.Queue.SLAHours.Urgent,
		"high":   c.Queue.SLAHours.High,
		"normal": c.Queue.SLAHours.Normal,
		"low":    c.Queue.SLAHours.Low,
	} {
		if hours < 0 {
			return fmt.Errorf("config: queue.sla_hours.%s must not be negative", name)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: unknown logging format %q", c.Logging.Format)
	}
	return nil
}

// EnsureDirectories creates the data and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/"))
}

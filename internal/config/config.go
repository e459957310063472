// Package config loads and validates the optional .hangcheck YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up from the working directory upward.
const FileName = ".hangcheck"

// TimeoutEnv overrides the configured timeout when set to a valid duration.
const TimeoutEnv = "HANGCHECK_TIMEOUT"

// Default values for the supervisor.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
	DefaultKillGrace    = 2 * time.Second
	DefaultMaxOutput    = 1 << 20 // 1 MB
	DefaultLogLevel     = "info"
)

// Config holds the parsed .hangcheck configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version         int      `yaml:"version"`
	Operation       string   `yaml:"operation"`     // default operation to probe
	Command         []string `yaml:"command"`       // argv for the "command" operation
	RawTimeout      string   `yaml:"timeout"`       // e.g. "10s"
	RawPollInterval string   `yaml:"poll_interval"` // e.g. "100ms"
	RawKillGrace    string   `yaml:"kill_grace"`    // e.g. "2s"
	RawMaxOutput    int      `yaml:"max_output"`    // bytes
	LogLevel        string   `yaml:"log_level"`     // debug, info, warn, error
}

// Timeout returns the deadline for one probe. HANGCHECK_TIMEOUT takes
// precedence over the file.
func (c *Config) Timeout() time.Duration {
	if d, ok := parsePositive(os.Getenv(TimeoutEnv)); ok {
		return d
	}
	if d, ok := parsePositive(c.RawTimeout); ok {
		return d
	}
	return DefaultTimeout
}

// PollInterval returns how often the supervisor checks the child.
func (c *Config) PollInterval() time.Duration {
	if d, ok := parsePositive(c.RawPollInterval); ok {
		return d
	}
	return DefaultPollInterval
}

// KillGrace returns how long a forced kill may take to be confirmed.
func (c *Config) KillGrace() time.Duration {
	if d, ok := parsePositive(c.RawKillGrace); ok {
		return d
	}
	return DefaultKillGrace
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// OperationOr returns the configured operation, or fallback if none is set.
func (c *Config) OperationOr(fallback string) string {
	if c.Operation != "" {
		return c.Operation
	}
	return fallback
}

// Level returns the configured log level, or the default.
func (c *Config) Level() string {
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return DefaultLogLevel
}

// Validate rejects values that parse but cannot be used.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"timeout":       c.RawTimeout,
		"poll_interval": c.RawPollInterval,
		"kill_grace":    c.RawKillGrace,
	} {
		if raw == "" {
			continue
		}
		if _, ok := parsePositive(raw); !ok {
			return fmt.Errorf("%s: %q is not a positive duration", name, raw)
		}
	}
	if c.RawMaxOutput < 0 {
		return fmt.Errorf("max_output: must not be negative, got %d", c.RawMaxOutput)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: unknown level %q", c.LogLevel)
	}
	return nil
}

func parsePositive(raw string) (time.Duration, bool) {
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// LoadResult holds the parsed config and where it came from.
type LoadResult struct {
	Config *Config
	Path   string // empty when no file was found
}

// Load finds the nearest .hangcheck file by walking upward from dir.
// If none exists, a default Config is returned.
func Load(dir string) (*LoadResult, error) {
	path, err := findConfig(dir)
	if err != nil {
		return &LoadResult{Config: &Config{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}

// findConfig walks upward from dir looking for FileName.
func findConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}

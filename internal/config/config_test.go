package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FromDirectory(t *testing.T) {
	t.Setenv(TimeoutEnv, "")
	dir := t.TempDir()
	path := writeConfig(t, dir, "version: 1\ntimeout: 30s\noperation: ed25519\n")

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Path != path {
		t.Errorf("Path = %q, want %q", res.Path, path)
	}
	if res.Config.Version != 1 {
		t.Errorf("Config.Version = %d, want 1", res.Config.Version)
	}
	if got := res.Config.Timeout(); got != 30*time.Second {
		t.Errorf("Timeout() = %s, want 30s", got)
	}
	if got := res.Config.OperationOr("x"); got != "ed25519" {
		t.Errorf("OperationOr = %q, want ed25519", got)
	}
}

func TestLoad_FromSubdirectory(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "version: 2\ncommand: [\"uname\", \"-a\"]\n")

	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Load(sub)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Config.Version != 2 {
		t.Errorf("Config.Version = %d, want 2", res.Config.Version)
	}
	if len(res.Config.Command) != 2 || res.Config.Command[0] != "uname" {
		t.Errorf("Config.Command = %q", res.Config.Command)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv(TimeoutEnv, "")
	dir := t.TempDir()

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Path != "" {
		t.Errorf("Path = %q, want empty", res.Path)
	}
	cfg := res.Config
	if cfg.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %s, want default", cfg.Timeout())
	}
	if cfg.PollInterval() != DefaultPollInterval {
		t.Errorf("PollInterval() = %s, want default", cfg.PollInterval())
	}
	if cfg.KillGrace() != DefaultKillGrace {
		t.Errorf("KillGrace() = %s, want default", cfg.KillGrace())
	}
	if cfg.MaxOutputBytes() != DefaultMaxOutput {
		t.Errorf("MaxOutputBytes() = %d, want default", cfg.MaxOutputBytes())
	}
	if cfg.Level() != DefaultLogLevel {
		t.Errorf("Level() = %q, want default", cfg.Level())
	}
	if cfg.OperationOr("fallback") != "fallback" {
		t.Errorf("OperationOr should fall back")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "timeout: [\n", "parsing"},
		{"bad timeout", "timeout: soon\n", "timeout"},
		{"negative poll", "poll_interval: -1s\n", "poll_interval"},
		{"negative max output", "max_output: -5\n", "max_output"},
		{"bad level", "log_level: loud\n", "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.body)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestTimeout_EnvOverride(t *testing.T) {
	t.Setenv(TimeoutEnv, "3s")
	cfg := &Config{RawTimeout: "1m"}
	if got := cfg.Timeout(); got != 3*time.Second {
		t.Errorf("Timeout() = %s, want 3s from %s", got, TimeoutEnv)
	}

	t.Setenv(TimeoutEnv, "garbage")
	if got := cfg.Timeout(); got != time.Minute {
		t.Errorf("Timeout() = %s, want file value when env is invalid", got)
	}
}

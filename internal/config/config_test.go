package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tmux.SessionPrefix != "preclear_disk_" {
		t.Errorf("got prefix %q", cfg.Tmux.SessionPrefix)
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preclear.yaml")
	data := "paths:\n  state_dir: /tmp/preclear-state\ncache:\n  temperature_ttl: 60s\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.StateDir != "/tmp/preclear-state" {
		t.Errorf("state_dir not applied: %q", cfg.Paths.StateDir)
	}
	if cfg.GetTemperatureTTL() != time.Minute {
		t.Errorf("got ttl %v", cfg.GetTemperatureTTL())
	}
	if cfg.MetadataFile() != "/tmp/preclear-state/state.ini" {
		t.Errorf("got metadata file %q", cfg.MetadataFile())
	}
	if cfg.Paths.ByIDDir != "/dev/disk/by-id" {
		t.Errorf("unset field lost its default: %q", cfg.Paths.ByIDDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty script", func(c *Config) { c.Paths.ScriptFile = "" }, "script_file"},
		{"empty state dir", func(c *Config) { c.Paths.StateDir = "" }, "state_dir"},
		{"bad geometry", func(c *Config) { c.Tmux.Width = 0 }, "geometry"},
		{"prefix with colon", func(c *Config) { c.Tmux.SessionPrefix = "pre:clear" }, "session prefix"},
		{"bad duration", func(c *Config) { c.Preclear.ConfirmTimeout = "soon" }, "preclear.confirm_timeout"},
		{"negative duration", func(c *Config) { c.Cache.TemperatureTTL = "-1s" }, "negative"},
		{"no marker", func(c *Config) { c.Preclear.ConfirmMarker = "" }, "confirm marker"},
		{"no classes", func(c *Config) { c.Preclear.DeviceClasses = nil }, "device class"},
		{"bad level", func(c *Config) { c.Logging.Level = "TRACE" }, "log level"},
		{"reporting without path", func(c *Config) { c.Reporting.LocalPath = "" }, "local_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preclear.yaml")
	cfg := Default()
	cfg.Tmux.Width = 120
	cfg.Reporting.Enabled = false

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Tmux.Width != 120 || loaded.Reporting.Enabled {
		t.Errorf("round trip lost values: %+v", loaded.Tmux)
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := Default()
	cfg.Preclear.PollInterval = "0s"
	cfg.Preclear.ConfirmTimeout = ""

	if got := cfg.GetPollInterval(); got != time.Second {
		t.Errorf("zero poll interval should fall back to 1s, got %v", got)
	}
	if got := cfg.GetConfirmTimeout(); got != 30*time.Second {
		t.Errorf("got confirm timeout %v", got)
	}
}

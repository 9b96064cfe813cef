package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected default address: %s", cfg.Server.Address)
	}
	if cfg.Correlation.Window() != 30*time.Minute {
		t.Fatalf("unexpected default window: %s", cfg.Correlation.Window())
	}
	if cfg.Cache.Enabled {
		t.Fatalf("cache should be disabled by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9999"
correlation:
  timeWindowMinutes: 45
feed:
  baseURL: "http://feed:9090"
  interval: 5s
logging:
  level: debug
  json: true
cache:
  enabled: true
  addr: "valkey:6379"
  incidentTTL: 1h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":9999" {
		t.Fatalf("address not applied: %s", cfg.Server.Address)
	}
	if cfg.Correlation.Window() != 45*time.Minute {
		t.Fatalf("window not applied: %s", cfg.Correlation.Window())
	}
	if cfg.Feed.BaseURL != "http://feed:9090" || cfg.Feed.Interval != 5*time.Second {
		t.Fatalf("feed config not applied: %+v", cfg.Feed)
	}
	if !cfg.Logging.JSON || cfg.Logging.Level != "debug" {
		t.Fatalf("logging config not applied: %+v", cfg.Logging)
	}
	if !cfg.Cache.Enabled || cfg.Cache.IncidentTTL != time.Hour {
		t.Fatalf("cache config not applied: %+v", cfg.Cache)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MIRADOR_CORRELATE_SERVER_ADDRESS", ":7777")
	t.Setenv("MIRADOR_CORRELATE_TIME_WINDOW_MINUTES", "10")
	t.Setenv("MIRADOR_CORRELATE_CACHE_ENABLED", "true")
	t.Setenv("MIRADOR_CORRELATE_CACHE_ADDR", "valkey:6379")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":7777" {
		t.Fatalf("env override missed: %s", cfg.Server.Address)
	}
	if cfg.Correlation.TimeWindowMinutes != 10 {
		t.Fatalf("window override missed: %d", cfg.Correlation.TimeWindowMinutes)
	}
	if !cfg.Cache.Enabled || cfg.Cache.Addr != "valkey:6379" {
		t.Fatalf("cache override missed: %+v", cfg.Cache)
	}
}

func TestLoadRejectsNonPositiveWindow(t *testing.T) {
	path := writeConfig(t, `
correlation:
  timeWindowMinutes: 0
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
redis:
  addr: localhost:6379
difficulty:
  hardThreshold: 90
  mediumThreshold: 70
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Difficulty.HardThreshold != 90 || cfg.Difficulty.MediumThreshold != 70 {
		t.Fatalf("unexpected thresholds %+v", cfg.Difficulty)
	}
	if cfg.Performance.Window != 5 || cfg.Performance.DefaultAverage != 50 {
		t.Fatalf("defaults lost: %+v", cfg.Performance)
	}
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	path := writeConfig(t, `
difficulty:
  hardThreshold: 50
  mediumThreshold: 70
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Leaderboard.DefaultLimit != 10 {
		t.Fatalf("unexpected default limit %d", cfg.Leaderboard.DefaultLimit)
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := TTLDuration("garbage", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for bad input, got %s", got)
	}
	if got := TTLDuration("45s", time.Minute); got != 45*time.Second {
		t.Fatalf("expected 45s, got %s", got)
	}
}

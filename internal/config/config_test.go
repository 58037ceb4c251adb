package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadReadsYAMLAndValidates(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
logLevel: debug
databaseURL: postgres://localhost/tutor
dataDir: /tmp/tutor-data
chatRateLimitPerMinute: 30
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ChatRateLimitPerMinute != 30 {
		t.Fatalf("unexpected rate limit: %d", cfg.ChatRateLimitPerMinute)
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
dataDir: /tmp/tutor-data
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing databaseURL")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
databaseURL: postgres://localhost/tutor
dataDir: /tmp/tutor-data
`)
	t.Setenv("TUTOR_PORT", "9090")
	t.Setenv("REDIS_ADDR", "localhost:6390")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("env override not applied: %q", cfg.Port)
	}
	if cfg.RedisAddr != "localhost:6390" {
		t.Fatalf("redis env override not applied: %q", cfg.RedisAddr)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BackendURL != "http://localhost:5000/api" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.GetActivitySyncInterval() != time.Minute {
		t.Errorf("activity interval = %v, want 1m", cfg.GetActivitySyncInterval())
	}
	if cfg.GetMaxUploadBytes() != 100*1024*1024 {
		t.Errorf("max upload = %d", cfg.GetMaxUploadBytes())
	}
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("BACKEND_URL", "https://api.example.com/api")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("MAX_UPLOAD_MB", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BackendURL != "https://api.example.com/api" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if !cfg.RedisEnabled || cfg.GetRedisAddr() != "localhost:6380" {
		t.Errorf("redis = %v %q", cfg.RedisEnabled, cfg.GetRedisAddr())
	}
	if cfg.MaxUploadMB != 100 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.MaxUploadMB)
	}
}

func TestLoadConfigFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workspace.yaml")
	content := "backend_url: http://backend:5000/api\nmax_upload_mb: 5\nlog_format: console\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("BACKEND_URL", "http://ignored")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BackendURL != "http://backend:5000/api" || cfg.MaxUploadMB != 5 || cfg.LogFormat != "console" {
		t.Errorf("overlay not applied: %+v", cfg)
	}
	if cfg.ServicePort != "8080" {
		t.Errorf("untouched key changed: %q", cfg.ServicePort)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := LoadConfig(); err != nil {
		t.Errorf("missing config file should be ignored: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{BackendURL: "", MaxUploadMB: 0, UploadChunkSizeMB: 1, ActivitySyncIntervalSec: 60}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject empty backend URL and zero upload limit")
	}
	cfg = &Config{BackendURL: "http://x", MaxUploadMB: 1, UploadChunkSizeMB: 1, ActivitySyncIntervalSec: 60}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

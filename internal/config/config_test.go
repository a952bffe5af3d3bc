package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"CHECKERS_CONFIG", "PORT", "BIND_ADDR", "ADMIN_PORT", "REDIS_URL", "DATABASE_URL",
	"ALLOWED_ORIGINS", "PING_INTERVAL_SEC", "WRITE_TIMEOUT_SEC",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 3030 || cfg.BindAddr != "0.0.0.0" || cfg.AdminPort != 0 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.PingInterval != 30*time.Second || cfg.WriteTimeout != 10*time.Second {
		t.Fatalf("timeouts = %v %v", cfg.PingInterval, cfg.WriteTimeout)
	}
	if cfg.Addr() != "0.0.0.0:3030" || cfg.AdminAddr() != "" {
		t.Fatalf("addrs = %q %q", cfg.Addr(), cfg.AdminAddr())
	}
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "4000")
	t.Setenv("ADMIN_PORT", "4001")
	t.Setenv("BIND_ADDR", "127.0.0.1")
	t.Setenv("REDIS_URL", " redis://localhost:6379/0 ")
	t.Setenv("ALLOWED_ORIGINS", "example.com, ,*.example.org")
	t.Setenv("PING_INTERVAL_SEC", "abc")
	t.Setenv("WRITE_TIMEOUT_SEC", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 4000 || cfg.AdminAddr() != "127.0.0.1:4001" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("redis = %q", cfg.RedisURL)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "*.example.org" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.PingInterval != 30*time.Second {
		t.Fatalf("invalid ping interval not ignored: %v", cfg.PingInterval)
	}
	if cfg.WriteTimeout != 3*time.Second {
		t.Fatalf("write timeout = %v", cfg.WriteTimeout)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "checkers.yaml")
	body := `port: 5000
admin_port: 5001
database_url: postgres://u:p@db/checkers
allowed_origins: [a.test, b.test]
ping_interval_sec: 15
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CHECKERS_CONFIG", path)
	t.Setenv("PORT", "6000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 6000 {
		t.Fatalf("env did not override file: %d", cfg.Port)
	}
	if cfg.AdminPort != 5001 || cfg.DatabaseURL != "postgres://u:p@db/checkers" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.PingInterval != 15*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadBadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [nope"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CHECKERS_CONFIG", path)
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed yaml")
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHECKERS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadRejectsSharedPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("ADMIN_PORT", "7000")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when admin and game ports collide")
	}
}

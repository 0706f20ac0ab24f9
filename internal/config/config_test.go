package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"learnsync/internal/gateway"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEARNSYNC_CONFIG_DIR", dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dir != dir || cfg.DataDir != dir {
		t.Fatalf("dirs = %q, %q", cfg.Dir, cfg.DataDir)
	}
	if cfg.SSOTimeout != 3*time.Minute {
		t.Fatalf("sso timeout = %s", cfg.SSOTimeout)
	}
	if cfg.RoamingPrefix != gateway.DefaultLearnBase+gateway.RoamingPath {
		t.Fatalf("roaming prefix = %q", cfg.RoamingPrefix)
	}
	if cfg.SecureBackend != SecureKeyring || cfg.FetchConcurrency != 4 {
		t.Fatalf("cfg = %#v", cfg)
	}
	if cfg.DBPath() != filepath.Join(dir, "state.sqlite") {
		t.Fatalf("db path = %q", cfg.DBPath())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEARNSYNC_SSO_TIMEOUT", "45s")
	t.Setenv("LEARNSYNC_PORTAL_LEARNBASE", "http://127.0.0.1:9000/")
	t.Setenv("LEARNSYNC_FETCH_CONCURRENCY", "2")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SSOTimeout != 45*time.Second || cfg.FetchConcurrency != 2 {
		t.Fatalf("cfg = %#v", cfg)
	}
	if cfg.RoamingPrefix != "http://127.0.0.1:9000"+gateway.RoamingPath {
		t.Fatalf("roaming prefix = %q", cfg.RoamingPrefix)
	}
}

func TestLoadDotEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	// Registers cleanup of whatever .env sets; godotenv skips variables
	// that are already present, so unset it again.
	t.Setenv("LEARNSYNC_SECURE_PASSPHRASE", "")
	_ = os.Unsetenv("LEARNSYNC_SECURE_PASSPHRASE")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LEARNSYNC_SECURE_PASSPHRASE=hunter2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("secure:\n  backend: file\nlog:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SecureBackend != SecureFile || cfg.LogLevel != "debug" {
		t.Fatalf("cfg = %#v", cfg)
	}
	if cfg.SecurePassphrase != "hunter2" {
		t.Fatalf("passphrase from .env not applied")
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEARNSYNC_SECURE_BACKEND", "vault")
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for unknown backend")
	}

	t.Setenv("LEARNSYNC_SECURE_BACKEND", "file")
	t.Setenv("LEARNSYNC_SECURE_PASSPHRASE", "")
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for file backend without passphrase")
	}
}

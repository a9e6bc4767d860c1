package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"secondhand/internal/config"
)

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_TTL", "2h")
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9090" || cfg.JWTTTL != 2*time.Hour {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.MediaURL != "/media" || cfg.LoginRateMax != 5 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadClientFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := "base_url: http://market.test/api\ntimeout: 3s\nstate_path: " + filepath.Join(dir, "s.db") + "\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SECONDHAND_TIMEOUT", "7s")

	cfg, err := config.LoadClient(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseURL != "http://market.test/api" {
		t.Fatalf("file value lost: %q", cfg.BaseURL)
	}
	if cfg.Timeout != 7*time.Second {
		t.Fatalf("env should override file, got %v", cfg.Timeout)
	}
	if cfg.StatePath != filepath.Join(dir, "s.db") {
		t.Fatalf("state path %q", cfg.StatePath)
	}
}

func TestLoadClientMissingFile(t *testing.T) {
	cfg, err := config.LoadClient(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseURL != "http://localhost:8080/api" || cfg.Timeout != 10*time.Second {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

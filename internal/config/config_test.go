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
	if errWrite := os.WriteFile(path, []byte(content), 0600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return path
}

func TestLoad_ParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
database-dsn: "sqlite://boxhub.db"
jwt:
  secret: "s3cret"
  expiry: 24h
redis:
  enabled: true
  addr: "127.0.0.1:6379"
  prefix: "boxhub:"
spider:
  candidates:
    - "https://jars.example.com/spider.jar"
static:
  ad-filter-hosts:
    - "ads.example.com"
  vendor-parse-urls:
    - "https://parse.example.com/?url="
block-words:
  - "casino"
`)

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("Load: %v", errLoad)
	}
	if cfg.Listen != ":9090" {
		t.Fatalf("unexpected listen: %q", cfg.Listen)
	}
	if cfg.JWT.Secret != "s3cret" || cfg.JWT.Expiry != 24*time.Hour {
		t.Fatalf("unexpected jwt config: %+v", cfg.JWT)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "127.0.0.1:6379" {
		t.Fatalf("unexpected redis config: %+v", cfg.Redis)
	}
	if len(cfg.Spider.Candidates) != 1 {
		t.Fatalf("unexpected spider candidates: %v", cfg.Spider.Candidates)
	}
	if len(cfg.Static.AdFilterHosts) != 1 || len(cfg.Static.VendorParseURLs) != 1 {
		t.Fatalf("unexpected static config: %+v", cfg.Static)
	}
	if len(cfg.BlockWords) != 1 || cfg.BlockWords[0] != "casino" {
		t.Fatalf("unexpected block words: %v", cfg.BlockWords)
	}
}

func TestLoadDatabaseDSN_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "database-dsn: \"sqlite://from-file.db\"\n")

	t.Setenv(EnvDBConnection, "postgres://user:pass@db:5432/boxhub")
	dsn, errLoad := LoadDatabaseDSN(path)
	if errLoad != nil {
		t.Fatalf("LoadDatabaseDSN: %v", errLoad)
	}
	if dsn != "postgres://user:pass@db:5432/boxhub" {
		t.Fatalf("expected env DSN to win, got %q", dsn)
	}
}

func TestLoadDatabaseDSN_NestedFallback(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: \"sqlite://nested.db\"\n")

	t.Setenv(EnvDBConnection, "")
	dsn, errLoad := LoadDatabaseDSN(path)
	if errLoad != nil {
		t.Fatalf("LoadDatabaseDSN: %v", errLoad)
	}
	if dsn != "sqlite://nested.db" {
		t.Fatalf("unexpected dsn: %q", dsn)
	}
}

func TestLoadDatabaseDSN_MissingEverywhere(t *testing.T) {
	path := writeConfig(t, "listen: \":8318\"\n")

	t.Setenv(EnvDBConnection, "")
	if _, errLoad := LoadDatabaseDSN(path); errLoad != ErrMissingDatabaseDSN {
		t.Fatalf("expected ErrMissingDatabaseDSN, got %v", errLoad)
	}
}

func TestLoadJWTConfig_EnvOverridesAndDefaults(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: \"file-secret\"\n")

	t.Setenv(EnvJWTSecret, "env-secret")
	t.Setenv(EnvJWTExpiry, "12h")
	cfg, errLoad := LoadJWTConfig(path)
	if errLoad != nil {
		t.Fatalf("LoadJWTConfig: %v", errLoad)
	}
	if cfg.Secret != "env-secret" {
		t.Fatalf("expected env secret to win, got %q", cfg.Secret)
	}
	if cfg.Expiry != 12*time.Hour {
		t.Fatalf("unexpected expiry: %v", cfg.Expiry)
	}

	t.Setenv(EnvJWTSecret, "")
	t.Setenv(EnvJWTExpiry, "")
	cfg, errLoad = LoadJWTConfig(path)
	if errLoad != nil {
		t.Fatalf("LoadJWTConfig: %v", errLoad)
	}
	if cfg.Secret != "file-secret" {
		t.Fatalf("unexpected secret: %q", cfg.Secret)
	}
	if cfg.Expiry != defaultJWTExpiry {
		t.Fatalf("expected default expiry, got %v", cfg.Expiry)
	}
}

func TestResolveConfigPath_Default(t *testing.T) {
	got := ResolveConfigPath("")
	if got == "" || !filepath.IsAbs(got) {
		t.Fatalf("expected an absolute default config path, got %q", got)
	}
	got = ResolveConfigPath(" custom.yaml ")
	if filepath.Base(got) != "custom.yaml" || !filepath.IsAbs(got) {
		t.Fatalf("unexpected resolved path: %q", got)
	}
}

package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestEnsureFileWritesDefaultsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.yaml")

	created, err := EnsureFile(path)
	if err != nil || !created {
		t.Fatalf("EnsureFile created=%v err=%v", created, err)
	}
	created, err = EnsureFile(path)
	if err != nil || created {
		t.Fatalf("second EnsureFile created=%v err=%v", created, err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := Default()
	if cfg.Storage.Backend != BackendSQLite || cfg.Server.ListenAddr != d.Server.ListenAddr {
		t.Fatalf("cfg=%+v", cfg)
	}
	if !filepath.IsAbs(cfg.Storage.DBPath) {
		t.Fatalf("db_path=%s, want absolute", cfg.Storage.DBPath)
	}
	if cfg.Reconcile.LoadTimeout() != 10*time.Second {
		t.Fatalf("load timeout=%v", cfg.Reconcile.LoadTimeout())
	}
}

func TestLoadEnvOverridesAndPlaceholders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Storage.Backend = BackendSupabase
	cfg.Supabase.URL = "https://demo.supabase.co"
	cfg.Supabase.APIKey = "${FOLIO_TEST_ANON_KEY}"
	if err := WriteFile(path, cfg); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("FOLIO_TEST_ANON_KEY", "anon-123")
	t.Setenv("FOLIO_SERVER_RATE_LIMIT_BURST", "3")

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Supabase.APIKey != "anon-123" {
		t.Fatalf("api_key=%q, want expanded placeholder", got.Supabase.APIKey)
	}
	if got.Server.RateLimitBurst != 3 {
		t.Fatalf("burst=%d, want env override 3", got.Server.RateLimitBurst)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		edit func(*Config)
		ok   bool
	}{
		{"default", func(*Config) {}, true},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "mysql" }, false},
		{"supabase without key", func(c *Config) { c.Storage.Backend = BackendSupabase; c.Supabase.URL = "https://x" }, false},
		{"negative timeout", func(c *Config) { c.Reconcile.LoadTimeoutMs = -1 }, false},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.edit(cfg)
		if err := cfg.Validate(); (err == nil) != tc.ok {
			t.Fatalf("%s: err=%v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}

func TestLoadMissingExplicitFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Name != "folio" || cfg.Storage.Backend != BackendSQLite {
		t.Fatalf("cfg=%+v", cfg.App)
	}
}

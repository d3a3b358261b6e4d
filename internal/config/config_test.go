package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rankbridge/rankbridge/internal/config"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Server.Addr != config.DefaultHTTPAddr {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Postgres.Port != config.DefaultPGPort || cfg.Postgres.SSLMode != config.DefaultPGSSLMode {
		t.Fatalf("unexpected postgres defaults: %+v", cfg.Postgres)
	}
	if cfg.Verification.CodeLength != config.DefaultCodeLength {
		t.Fatalf("unexpected code length: %d", cfg.Verification.CodeLength)
	}
	if !cfg.Sync.AutoSyncEnabled {
		t.Fatalf("expected auto sync on by default")
	}
	if cfg.OAuth.Enabled() {
		t.Fatalf("oauth must be disabled without credentials")
	}
}

func TestLoadOverridesAndKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[log]
level = "debug"

[discord]
token = "abc"
application_id = "123"

[roblox]
api_key = "key"
default_group_id = 7

[oauth]
client_id = "cid"
client_secret = "secret"

[sync]
cooldown_seconds = 60
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log level: %s", cfg.Log.Level)
	}
	if cfg.Discord.Token != "abc" || cfg.Discord.ApplicationID != "123" {
		t.Fatalf("unexpected discord config: %+v", cfg.Discord)
	}
	if cfg.Roblox.DefaultGroupID != 7 {
		t.Fatalf("unexpected group id: %d", cfg.Roblox.DefaultGroupID)
	}
	if !cfg.OAuth.Enabled() {
		t.Fatalf("oauth must be enabled with credentials")
	}
	if cfg.OAuth.TokenURL != config.DefaultTokenURL {
		t.Fatalf("unexpected token url: %s", cfg.OAuth.TokenURL)
	}
	if cfg.Sync.CooldownSeconds != 60 {
		t.Fatalf("unexpected cooldown: %d", cfg.Sync.CooldownSeconds)
	}
	if cfg.Sync.CommandCooldownSeconds != config.DefaultCommandCooldownSec {
		t.Fatalf("unexpected command cooldown: %d", cfg.Sync.CommandCooldownSeconds)
	}
	if cfg.Roblox.OpenCloudBaseURL != config.DefaultOpenCloudBaseURL {
		t.Fatalf("unexpected open cloud url: %s", cfg.Roblox.OpenCloudBaseURL)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[log\nlevel"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

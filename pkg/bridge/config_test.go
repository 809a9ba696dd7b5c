// Copyright 2024-2026 Aiku AI

package bridge

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
database:
  type: sqlite3
  uri: /data/bridge.db
logging:
  level: debug
telegram:
  token: tg-token
pipes:
  - listen:
      adapter: OneBot V11
      id: "12345"
    target:
      adapter: Telegram
      id: "-100987"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.URI != "/data/bridge.db" {
		t.Errorf("Database.URI: got %q, want %q", cfg.Database.URI, "/data/bridge.db")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Telegram.Token != "tg-token" {
		t.Errorf("Telegram.Token: got %q, want %q", cfg.Telegram.Token, "tg-token")
	}
	if len(cfg.Pipes) != 1 {
		t.Fatalf("Pipes: got %d, want 1", len(cfg.Pipes))
	}
	pipe := cfg.Pipes[0]
	if pipe.Listen.Adapter != "OneBot V11" || pipe.Listen.ID != "12345" {
		t.Errorf("Pipes[0].Listen: got %v", pipe.Listen)
	}
	if pipe.Target.Adapter != "Telegram" || pipe.Target.ID != "-100987" {
		t.Errorf("Pipes[0].Target: got %v", pipe.Target)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, "{}\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.Type != "sqlite3" {
		t.Errorf("default Database.Type: got %q, want %q", cfg.Database.Type, "sqlite3")
	}
	if cfg.Database.URI == "" {
		t.Error("default Database.URI is empty")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig on missing file failed: %v", err)
	}
	if cfg.Database.Type != "sqlite3" {
		t.Errorf("defaults not applied for missing file: %v", cfg.Database)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("PIPEBRIDGE_DB_URI", "/env/override.db")
	path := writeConfigFile(t, "database:\n  uri: /file/value.db\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.URI != "/env/override.db" {
		t.Errorf("env override: got %q, want %q", cfg.Database.URI, "/env/override.db")
	}
}

func TestLoadConfigRejectsBadDatabaseType(t *testing.T) {
	path := writeConfigFile(t, "database:\n  type: oracle\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig accepted unsupported database type")
	}
}

func TestLoadConfigRejectsIncompletePipe(t *testing.T) {
	path := writeConfigFile(t, `
pipes:
  - listen:
      adapter: Telegram
    target:
      adapter: Discord
      id: "1"
`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig accepted pipe without listen id")
	}
}

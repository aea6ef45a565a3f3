package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Watcher.PollInterval != 20*time.Second {
		t.Errorf("Watcher.PollInterval = %s, want 20s", cfg.Watcher.PollInterval)
	}
	if cfg.Messaging.SubscriberBufferSize != 64 {
		t.Errorf("Messaging.SubscriberBufferSize = %d, want 64", cfg.Messaging.SubscriberBufferSize)
	}
	if cfg.Devices.CPUBusyThreshold != 85.0 {
		t.Errorf("Devices.CPUBusyThreshold = %.1f, want 85.0", cfg.Devices.CPUBusyThreshold)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("LoadOrDefault with missing file did not return defaults")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server:\n  port: 9090\nwatcher:\n  poll_interval: 5s\naliases:\n  fast: command foo --quick\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Watcher.PollInterval != 5*time.Second {
		t.Errorf("Watcher.PollInterval = %s, want 5s", cfg.Watcher.PollInterval)
	}
	if cfg.Aliases["fast"] != "command foo --quick" {
		t.Errorf("Aliases[fast] = %q, want %q", cfg.Aliases["fast"], "command foo --quick")
	}
	// Fields the file does not set keep the values of the defaulted struct
	// yaml.Unmarshal decodes into: MaxConnections was not overridden, so it
	// still carries the default.
	if cfg.Server.MaxConnections != 1000 {
		t.Errorf("Server.MaxConnections = %d, want 1000 (unset field keeps default)", cfg.Server.MaxConnections)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load of a missing file returned nil error")
	}
}

func TestLoadFillsPersistencePathWhenUnset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Persistence.DatabasePath == "" {
		t.Error("DatabasePath left empty when not configured")
	}
}

func TestDiffDetectsWatcherChange(t *testing.T) {
	old := defaultConfig()
	updated := defaultConfig()
	updated.Watcher.PollInterval = 2 * time.Second

	changes := Diff(old, updated)
	if len(changes) != 1 {
		t.Fatalf("Diff returned %d changes, want 1: %v", len(changes), changes)
	}
}

func TestDiffDetectsAliasChanges(t *testing.T) {
	old := defaultConfig()
	old.Aliases = map[string]string{"a": "command one"}
	updated := defaultConfig()
	updated.Aliases = map[string]string{"a": "command two", "b": "command three"}

	changes := Diff(old, updated)
	if len(changes) != 2 {
		t.Fatalf("Diff returned %d changes, want 2: %v", len(changes), changes)
	}
}

func TestDiffNoChanges(t *testing.T) {
	old := defaultConfig()
	updated := defaultConfig()

	if changes := Diff(old, updated); len(changes) != 0 {
		t.Errorf("Diff of identical configs = %v, want empty", changes)
	}
}

func TestDefaultConfigPathIsUnderAppName(t *testing.T) {
	path := DefaultConfigPath()
	if filepath.Base(filepath.Dir(path)) != "atsconsole" {
		t.Errorf("DefaultConfigPath() = %q, want parent dir 'atsconsole'", path)
	}
}

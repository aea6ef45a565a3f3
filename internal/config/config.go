// Package config loads the console's YAML configuration file and exposes
// the live, safe-to-reload subset of it to the running process.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Watcher     WatcherConfig     `yaml:"watcher"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Messaging   MessagingConfig   `yaml:"messaging"`
	Devices     DeviceConfig      `yaml:"devices"`
	Aliases     map[string]string `yaml:"aliases"`
}

// ServerConfig controls the HTTP/WebSocket control surface.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AuthToken      string   `yaml:"auth_token"`
	MaxConnections int      `yaml:"max_connections"`
}

// WatcherConfig controls the command-file poller's cadence and the
// top-level command files it watches.
type WatcherConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	CommandFiles []string      `yaml:"command_files"`
}

// PersistenceConfig points at the session-persistence SQLite database.
type PersistenceConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// MessagingConfig tunes the messaging fabric's delivery pool.
type MessagingConfig struct {
	// SubscriberBufferSize is the depth of MessagingManager's per-call
	// reception queue and the size of each session's plugin notification
	// pool.
	SubscriberBufferSize int `yaml:"subscriber_buffer_size"`

	// BatchWindow is compared by Diff but not read by MessagingManager,
	// which coalesces only batches already queued and never waits for more.
	BatchWindow time.Duration `yaml:"batch_window"`
}

// DeviceConfig tunes the device-pool resource sampler used by job creation.
type DeviceConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	CPUBusyThreshold float64       `yaml:"cpu_busy_threshold"`
}

func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if cfg.Persistence.DatabasePath == "" {
		cfg.Persistence.DatabasePath = filepath.Join(defaultStateDir(), "atsconsole", "sessions.db")
	}

	return cfg, nil
}

// LoadOrDefault loads config from path, or returns the default config if
// path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return Load(path)
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "127.0.0.1",
			MaxConnections: 1000,
		},
		Watcher: WatcherConfig{
			PollInterval: 20 * time.Second,
		},
		Persistence: PersistenceConfig{
			DatabasePath: filepath.Join(defaultStateDir(), "atsconsole", "sessions.db"),
		},
		Messaging: MessagingConfig{
			SubscriberBufferSize: 64,
			BatchWindow:          50 * time.Millisecond,
		},
		Devices: DeviceConfig{
			PollInterval:     5 * time.Second,
			CPUBusyThreshold: 85.0,
		},
		Aliases: map[string]string{},
	}
}

func defaultStateDir() string {
	if value := os.Getenv("XDG_STATE_HOME"); value != "" {
		return value
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".local", "state")
}

// Diff compares two configs and returns human-readable descriptions of
// what changed. Only sections that are safe to reload at runtime are
// compared (aliases, watcher cadence, messaging tuning, device thresholds).
func Diff(old, new *Config) []string {
	var changes []string

	if old.Watcher.PollInterval != new.Watcher.PollInterval {
		changes = append(changes, fmt.Sprintf("watcher.poll_interval: %s → %s", old.Watcher.PollInterval, new.Watcher.PollInterval))
	}

	if old.Messaging.SubscriberBufferSize != new.Messaging.SubscriberBufferSize {
		changes = append(changes, fmt.Sprintf("messaging.subscriber_buffer_size: %d → %d", old.Messaging.SubscriberBufferSize, new.Messaging.SubscriberBufferSize))
	}
	if old.Messaging.BatchWindow != new.Messaging.BatchWindow {
		changes = append(changes, fmt.Sprintf("messaging.batch_window: %s → %s", old.Messaging.BatchWindow, new.Messaging.BatchWindow))
	}

	if old.Devices.PollInterval != new.Devices.PollInterval {
		changes = append(changes, fmt.Sprintf("devices.poll_interval: %s → %s", old.Devices.PollInterval, new.Devices.PollInterval))
	}
	if old.Devices.CPUBusyThreshold != new.Devices.CPUBusyThreshold {
		changes = append(changes, fmt.Sprintf("devices.cpu_busy_threshold: %.1f → %.1f", old.Devices.CPUBusyThreshold, new.Devices.CPUBusyThreshold))
	}

	for k, v := range new.Aliases {
		if ov, ok := old.Aliases[k]; !ok {
			changes = append(changes, fmt.Sprintf("aliases: added %s=%q", k, v))
		} else if ov != v {
			changes = append(changes, fmt.Sprintf("aliases: %s changed %q → %q", k, ov, v))
		}
	}
	for k := range old.Aliases {
		if _, ok := new.Aliases[k]; !ok {
			changes = append(changes, fmt.Sprintf("aliases: removed %s", k))
		}
	}

	slices.Sort(changes)
	return changes
}

func defaultConfigDir() string {
	if value := os.Getenv("XDG_CONFIG_HOME"); value != "" {
		return value
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config")
}

// DefaultConfigPath returns the default XDG-compliant config file path.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "atsconsole", "config.yaml")
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPollInterval    = 50 * time.Millisecond
	MinPollInterval        = 10 * time.Millisecond
	DefaultEventBuffer     = 256
	DefaultSubscriberQueue = 64
	DefaultLogLevel        = "info"
)

// Config is the effective winwatch configuration.
type Config struct {
	PollInterval Duration `yaml:"poll_interval"`
	PruneStale   bool     `yaml:"prune_stale"`
	LogLevel     string   `yaml:"log_level"`

	// Display and XAuthority override the X11 environment; empty values use
	// $DISPLAY and $XAUTHORITY.
	Display    string `yaml:"display,omitempty"`
	XAuthority string `yaml:"xauthority,omitempty"`

	// MetricsListen is the address of the Prometheus endpoint. Empty
	// disables it.
	MetricsListen string `yaml:"metrics_listen,omitempty"`

	// EventBuffer is how many recent events the daemon keeps for
	// RECENT_EVENTS and the MCP recent_events tool.
	EventBuffer int `yaml:"event_buffer"`

	// SubscriberQueue is the per-client queue length for streamed events.
	// Events for a client whose queue is full are dropped.
	SubscriberQueue int `yaml:"subscriber_queue"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:    Duration(DefaultPollInterval),
		PruneStale:      true,
		LogLevel:        DefaultLogLevel,
		EventBuffer:     DefaultEventBuffer,
		SubscriberQueue: DefaultSubscriberQueue,
	}
}

func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "winwatch", "config.yaml"), nil
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	if c.PollInterval.Std() < MinPollInterval {
		return &ValidationError{Path: "poll_interval", Err: fmt.Errorf("poll_interval must be >= %s", MinPollInterval)}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return &ValidationError{Path: "log_level", Err: err}
	}
	if c.EventBuffer < 0 {
		return &ValidationError{Path: "event_buffer", Err: fmt.Errorf("event_buffer must be >= 0")}
	}
	if c.SubscriberQueue < 1 {
		return &ValidationError{Path: "subscriber_queue", Err: fmt.Errorf("subscriber_queue must be >= 1")}
	}
	if addr := strings.TrimSpace(c.MetricsListen); addr != "" && !strings.Contains(addr, ":") {
		return &ValidationError{Path: "metrics_listen", Err: fmt.Errorf("metrics_listen must be host:port, got %q", c.MetricsListen)}
	}
	return nil
}

// SlogLevel returns the configured log level. Validate guarantees it parses.
func (c *Config) SlogLevel() slog.Level {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLogLevel accepts debug, info, warn (or warning) and error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the original YAML.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo validates and writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

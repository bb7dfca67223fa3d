package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a Go duration string ("50ms").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a string like \"50ms\"")
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// RawConfig mirrors Config with pointer fields so that unset keys can be
// told apart from zero values when layering the file and environment.
type RawConfig struct {
	PollInterval    *Duration `yaml:"poll_interval"`
	PruneStale      *bool     `yaml:"prune_stale"`
	LogLevel        *string   `yaml:"log_level"`
	Display         *string   `yaml:"display"`
	XAuthority      *string   `yaml:"xauthority"`
	MetricsListen   *string   `yaml:"metrics_listen"`
	EventBuffer     *int      `yaml:"event_buffer"`
	SubscriberQueue *int      `yaml:"subscriber_queue"`
}

// merge overlays non-nil fields of other on top of r.
func (r RawConfig) merge(other RawConfig) RawConfig {
	out := r
	if other.PollInterval != nil {
		out.PollInterval = other.PollInterval
	}
	if other.PruneStale != nil {
		out.PruneStale = other.PruneStale
	}
	if other.LogLevel != nil {
		out.LogLevel = other.LogLevel
	}
	if other.Display != nil {
		out.Display = other.Display
	}
	if other.XAuthority != nil {
		out.XAuthority = other.XAuthority
	}
	if other.MetricsListen != nil {
		out.MetricsListen = other.MetricsListen
	}
	if other.EventBuffer != nil {
		out.EventBuffer = other.EventBuffer
	}
	if other.SubscriberQueue != nil {
		out.SubscriberQueue = other.SubscriberQueue
	}
	return out
}

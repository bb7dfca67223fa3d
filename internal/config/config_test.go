package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.PollInterval.Std() != 50*time.Millisecond {
		t.Fatalf("expected 50ms poll interval, got %s", cfg.PollInterval)
	}
	if !cfg.PruneStale {
		t.Fatal("expected prune_stale to default to true")
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.EventBuffer != DefaultEventBuffer || len(res.Files) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "# empty\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.LogLevel != DefaultLogLevel {
		t.Fatalf("expected log_level %q, got %q", DefaultLogLevel, res.Config.LogLevel)
	}
}

func TestLoadFromPath_AllKeys(t *testing.T) {
	data := strings.Join([]string{
		"poll_interval: 250ms",
		"prune_stale: false",
		"log_level: debug",
		"display: \":1\"",
		"xauthority: \"/tmp/test-xauth\"",
		"metrics_listen: \"127.0.0.1:9464\"",
		"event_buffer: 10",
		"subscriber_queue: 4",
		"",
	}, "\n")
	path := writeConfig(t, t.TempDir(), "config.yaml", data)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.PollInterval.Std() != 250*time.Millisecond {
		t.Fatalf("poll_interval = %s", cfg.PollInterval)
	}
	if cfg.PruneStale {
		t.Fatal("prune_stale = true")
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("SlogLevel() = %v", cfg.SlogLevel())
	}
	if cfg.Display != ":1" || cfg.XAuthority != "/tmp/test-xauth" {
		t.Fatalf("display/xauthority = %q/%q", cfg.Display, cfg.XAuthority)
	}
	if cfg.MetricsListen != "127.0.0.1:9464" || cfg.EventBuffer != 10 || cfg.SubscriberQueue != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	val, src, err := Explain(res, "display")
	if err != nil {
		t.Fatalf("explain display: %v", err)
	}
	if val != ":1" {
		t.Fatalf("expected explain display :1, got %#v", val)
	}
	if src.Kind != SourceFile || src.Line != 4 {
		t.Fatalf("expected display source at line 4, got %#v", src)
	}

	_, src, err = Explain(res, "poll_interval")
	if err != nil || src.Kind != SourceFile {
		t.Fatalf("explain poll_interval: %#v, %v", src, err)
	}
}

func TestExplain_DefaultSourceAndUnknownKey(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "log_level: warn\n")
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	val, src, err := Explain(res, "event_buffer")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != DefaultEventBuffer || src.Kind != SourceDefault {
		t.Fatalf("Explain(event_buffer) = %#v, %#v", val, src)
	}
	if FormatSource(src) != "default" {
		t.Fatalf("FormatSource = %q", FormatSource(src))
	}

	if _, _, err := Explain(res, "hotkey"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "unknown_key: 1\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown_key") && !strings.Contains(err.Error(), "field") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_InvalidDuration(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "poll_interval: fast\n")

	_, err := LoadFromPath(path)
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("expected invalid duration error, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorsHaveSourceContext(t *testing.T) {
	tests := []struct {
		name string
		data string
		path string
	}{
		{"interval too short", "poll_interval: 1ms\n", "poll_interval"},
		{"bad log level", "log_level: loud\n", "log_level"},
		{"negative buffer", "event_buffer: -1\n", "event_buffer"},
		{"empty queue", "subscriber_queue: 0\n", "subscriber_queue"},
		{"bad listen addr", "metrics_listen: localhost\n", "metrics_listen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := writeConfig(t, t.TempDir(), "config.yaml", tt.data)
			_, err := LoadFromPath(file)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Path != tt.path {
				t.Fatalf("Path = %q, want %q", verr.Path, tt.path)
			}
			if !strings.HasPrefix(err.Error(), file+":1:") {
				t.Fatalf("expected file:line:col prefix, got %v", err)
			}
		})
	}
}

func TestLoadFromPath_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "event_buffer: 7\nlog_level: warn\n")
	t.Setenv("WINWATCH_EVENT_BUFFER", "9")
	t.Setenv("WINWATCH_PRUNE_STALE", "false")
	t.Setenv("WINWATCH_POLL_INTERVAL", " 100ms ")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.EventBuffer != 9 || res.Config.PruneStale || res.Config.PollInterval.Std() != 100*time.Millisecond {
		t.Fatalf("env overrides not applied: %+v", res.Config)
	}
	if res.Config.LogLevel != "warn" {
		t.Fatalf("log_level = %q, want file value", res.Config.LogLevel)
	}

	tests := []struct {
		key  string
		want string
	}{
		{"event_buffer", "env WINWATCH_EVENT_BUFFER"},
		{"log_level", path + ":2:12"},
		{"subscriber_queue", "default"},
	}
	for _, tt := range tests {
		_, src, err := Explain(res, tt.key)
		if err != nil {
			t.Fatalf("Explain(%q): %v", tt.key, err)
		}
		if got := FormatSource(src); got != tt.want {
			t.Fatalf("source of %s = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoadFromPath_EnvErrors(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
		want  string
	}{
		{"bad duration", "WINWATCH_POLL_INTERVAL", "soon", "invalid duration"},
		{"bad bool", "WINWATCH_PRUNE_STALE", "maybe", "invalid bool"},
		{"bad int", "WINWATCH_SUBSCRIBER_QUEUE", "many", "invalid integer"},
		{"fails validation", "WINWATCH_LOG_LEVEL", "loud", "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			_, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.HasPrefix(err.Error(), tt.env+":") || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %s prefix and %q", err, tt.env, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"trace", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("ParseLogLevel(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.PollInterval = Duration(120 * time.Millisecond)
	cfg.MetricsListen = ":9464"

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load saved config: %v", err)
	}
	if res.Config.PollInterval != cfg.PollInterval || res.Config.MetricsListen != ":9464" {
		t.Fatalf("round trip mismatch: %+v", res.Config)
	}
}

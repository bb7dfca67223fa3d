package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
	SourceEnv     SourceKind = "env"
)

// Source records where an effective value came from.
type Source struct {
	Kind   SourceKind
	Name   string // env variable, or "defaults"
	File   string
	Line   int
	Column int
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // key -> source of the effective value
	Files   []string          // loaded files
}

// EnvPrefix prefixes environment overrides: poll_interval is read from
// WINWATCH_POLL_INTERVAL.
const EnvPrefix = "WINWATCH_"

// Load reads the configuration from the standard location and returns an
// effective config ready for use by the daemon.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources loads config and returns per-key sources for introspection.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath applies defaults, then path, then WINWATCH_* environment
// overrides. A missing file yields defaults.
func LoadFromPath(path string) (*LoadResult, error) {
	res := &LoadResult{Sources: map[string]Source{}}
	var raw RawConfig

	exists, err := pathExists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		fileRaw, sources, canon, err := readFile(path)
		if err != nil {
			return nil, err
		}
		raw = raw.merge(fileRaw)
		for key, src := range sources {
			res.Sources[key] = src
		}
		res.Files = append(res.Files, canon)
	}

	envRaw, envSources, err := readEnv()
	if err != nil {
		return nil, err
	}
	raw = raw.merge(envRaw)
	for key, src := range envSources {
		res.Sources[key] = src
	}

	cfg, err := BuildEffectiveConfig(raw)
	if err != nil {
		return nil, attachSourceContext(err, res.Sources)
	}
	if err := cfg.Validate(); err != nil {
		return nil, attachSourceContext(err, res.Sources)
	}
	res.Config = cfg
	return res, nil
}

func readFile(path string) (RawConfig, map[string]Source, string, error) {
	canon := canonicalPath(path)
	data, err := os.ReadFile(canon)
	if err != nil {
		return RawConfig{}, nil, "", fmt.Errorf("%s: failed to read: %w", canon, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return RawConfig{}, nil, "", fmt.Errorf("%s: failed to parse yaml: %w", canon, err)
	}

	var raw RawConfig
	if err := decodeStrictYAML(data, &raw); err != nil {
		return RawConfig{}, nil, "", fmt.Errorf("%s: %w", canon, err)
	}
	return raw, collectSources(&doc, canon), canon, nil
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// envOverrides is filled by envconfig from WINWATCH_<KEY> variables. Fields
// stay nil when the variable is unset.
type envOverrides struct {
	PollInterval    *string `split_words:"true"`
	PruneStale      *string `split_words:"true"`
	LogLevel        *string `split_words:"true"`
	Display         *string
	Xauthority      *string
	MetricsListen   *string `split_words:"true"`
	EventBuffer     *string `split_words:"true"`
	SubscriberQueue *string `split_words:"true"`
}

// EnvName returns the environment variable overriding key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

func readEnv() (RawConfig, map[string]Source, error) {
	var env envOverrides
	if err := envconfig.Process(strings.TrimSuffix(EnvPrefix, "_"), &env); err != nil {
		return RawConfig{}, nil, fmt.Errorf("environment: %w", err)
	}

	var raw RawConfig
	sources := map[string]Source{}
	fields := []struct {
		key   string
		value *string
		set   func(string) error
	}{
		{"poll_interval", env.PollInterval, func(v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid duration %q", v)
			}
			raw.PollInterval = ptr(Duration(d))
			return nil
		}},
		{"prune_stale", env.PruneStale, func(v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid bool %q", v)
			}
			raw.PruneStale = &b
			return nil
		}},
		{"log_level", env.LogLevel, func(v string) error { raw.LogLevel = &v; return nil }},
		{"display", env.Display, func(v string) error { raw.Display = &v; return nil }},
		{"xauthority", env.Xauthority, func(v string) error { raw.XAuthority = &v; return nil }},
		{"metrics_listen", env.MetricsListen, func(v string) error { raw.MetricsListen = &v; return nil }},
		{"event_buffer", env.EventBuffer, func(v string) error { return setInt(&raw.EventBuffer, v) }},
		{"subscriber_queue", env.SubscriberQueue, func(v string) error { return setInt(&raw.SubscriberQueue, v) }},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		src := Source{Kind: SourceEnv, Name: EnvName(f.key)}
		if err := f.set(strings.TrimSpace(*f.value)); err != nil {
			return RawConfig{}, nil, &ValidationError{Path: f.key, Source: src, Err: err}
		}
		sources[f.key] = src
	}
	return raw, sources, nil
}

func setInt(dst **int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid integer %q", v)
	}
	*dst = &n
	return nil
}

func ptr[T any](v T) *T { return &v }

func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// collectSources maps each top-level key to its value's position.
func collectSources(doc *yaml.Node, file string) map[string]Source {
	out := make(map[string]Source)
	node := doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return out
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		val := node.Content[i+1]
		out[node.Content[i].Value] = Source{
			Kind:   SourceFile,
			File:   file,
			Line:   val.Line,
			Column: val.Column,
		}
	}
	return out
}

func attachSourceContext(err error, sources map[string]Source) error {
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return verr
}

package config

import (
	"fmt"
	"strings"
)

// Explain returns the effective value at the given YAML key and its source.
//
// Supported keys:
//
//	poll_interval
//	prune_stale
//	log_level
//	display
//	xauthority
//	metrics_listen
//	event_buffer
//	subscriber_queue
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}

	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	switch path {
	case "poll_interval":
		return cfg.PollInterval.String(), nil
	case "prune_stale":
		return cfg.PruneStale, nil
	case "log_level":
		return cfg.LogLevel, nil
	case "display":
		return cfg.Display, nil
	case "xauthority":
		return cfg.XAuthority, nil
	case "metrics_listen":
		return cfg.MetricsListen, nil
	case "event_buffer":
		return cfg.EventBuffer, nil
	case "subscriber_queue":
		return cfg.SubscriberQueue, nil
	default:
		return nil, fmt.Errorf("unknown config path %q", path)
	}
}

// FormatSource renders src for CLI output.
func FormatSource(src Source) string {
	switch src.Kind {
	case SourceFile:
		return fmt.Sprintf("%s:%d:%d", src.File, src.Line, src.Column)
	case SourceEnv:
		return "env " + src.Name
	case SourceDefault:
		return "default"
	default:
		return string(src.Kind)
	}
}

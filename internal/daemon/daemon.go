// Package daemon wires the watcher engine to its long-running surfaces: the
// IPC socket, the recent-event buffer, metrics and periodic reconciliation.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/winwatch/internal/config"
	"github.com/1broseidon/winwatch/internal/ipc"
	"github.com/1broseidon/winwatch/internal/metrics"
	"github.com/1broseidon/winwatch/internal/platform"
	"github.com/1broseidon/winwatch/internal/watcher"
)

// Options configures a Daemon beyond the loaded configuration.
type Options struct {
	// ConfigPath is re-read by Reload. Empty uses the default location.
	ConfigPath string
	// SocketPath overrides the IPC socket location.
	SocketPath string
	// SweepInterval defaults to DefaultSweepInterval.
	SweepInterval time.Duration
	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer
}

// Daemon owns one engine and everything serving it.
type Daemon struct {
	opts Options

	cfgMu sync.Mutex
	cfg   *config.Config

	level      *slog.LevelVar
	logger     *slog.Logger
	engine     *watcher.Engine
	metrics    *metrics.Metrics
	recent     *ipc.Recent
	server     *ipc.Server
	reconciler *Reconciler
}

// New builds a daemon around backend. Nothing runs until Run.
func New(cfg *config.Config, backend platform.Backend, opts Options) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	level := new(slog.LevelVar)
	level.Set(cfg.SlogLevel())
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

	m := metrics.New()
	engine, err := watcher.New(platform.Probe(backend),
		watcher.WithInterval(cfg.PollInterval.Std()),
		watcher.WithLogger(logger),
		watcher.WithObserver(m),
		watcher.WithPruneStale(cfg.PruneStale),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	recent := ipc.NewRecent(cfg.EventBuffer)
	server, err := ipc.NewServer(engine, ipc.ServerConfig{
		SocketPath: opts.SocketPath,
		QueueSize:  cfg.SubscriberQueue,
		Recent:     recent,
		Metrics:    m,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &Daemon{
		opts:    opts,
		cfg:     cfg,
		level:   level,
		logger:  logger,
		engine:  engine,
		metrics: m,
		recent:  recent,
		server:  server,
		reconciler: NewReconciler(ReconcilerConfig{
			Interval: opts.SweepInterval,
			Logger:   logger,
		}, engine),
	}, nil
}

// Engine returns the daemon's watcher.
func (d *Daemon) Engine() *watcher.Engine { return d.engine }

// Logger returns the daemon's logger. Its level follows Reload.
func (d *Daemon) Logger() *slog.Logger { return d.logger }

// Config returns the configuration currently in effect.
func (d *Daemon) Config() *config.Config {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	return d.cfg
}

// Run serves until ctx is cancelled or the metrics server fails. Polling
// starts immediately: the recent-event recorder is the daemon's own
// subscription and holds an engine interest for the daemon's lifetime.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.server.Start(); err != nil {
		return err
	}

	recorder := d.engine.SubscribeAll(func(ev watcher.Event) {
		d.recent.Add(ipc.NewEventRecord(ev))
	})

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	cfg := d.Config()
	if cfg.MetricsListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.metrics.Serve(runCtx, cfg.MetricsListen, d.logger); err != nil {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.reconciler.Run(runCtx)
	}()

	d.logger.Info("winwatch daemon running",
		"socket", d.server.SocketPath(),
		"interval", d.engine.Interval(),
		"capabilities", d.engine.Capabilities().Names())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	cancel()
	d.server.Stop()
	recorder.Unsubscribe()
	d.engine.Stop()
	wg.Wait()
	d.logger.Info("winwatch daemon stopped")
	return runErr
}

// Reload re-reads the configuration file. The log level applies at once;
// the returned keys changed but only take effect after a restart.
func (d *Daemon) Reload() ([]string, error) {
	var cfg *config.Config
	if d.opts.ConfigPath == "" {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		res, err := config.LoadFromPath(d.opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = res.Config
	}

	d.cfgMu.Lock()
	old := d.cfg
	d.cfg = cfg
	d.cfgMu.Unlock()

	d.level.Set(cfg.SlogLevel())
	pending := RestartRequired(old, cfg)
	d.logger.Info("config reloaded", "log_level", cfg.LogLevel, "restart_required", pending)
	return pending, nil
}

// RestartRequired lists the keys that differ between old and cur and are
// only read at startup.
func RestartRequired(old, cur *config.Config) []string {
	var keys []string
	add := func(changed bool, key string) {
		if changed {
			keys = append(keys, key)
		}
	}
	add(old.PollInterval != cur.PollInterval, "poll_interval")
	add(old.PruneStale != cur.PruneStale, "prune_stale")
	add(old.Display != cur.Display, "display")
	add(old.XAuthority != cur.XAuthority, "xauthority")
	add(old.MetricsListen != cur.MetricsListen, "metrics_listen")
	add(old.EventBuffer != cur.EventBuffer, "event_buffer")
	add(old.SubscriberQueue != cur.SubscriberQueue, "subscriber_queue")
	return keys
}

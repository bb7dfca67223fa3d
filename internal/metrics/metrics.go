// Package metrics exports watcher activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1broseidon/winwatch/internal/platform"
	"github.com/1broseidon/winwatch/internal/watcher"
)

// Metrics holds the winwatch collectors. It implements watcher.Observer.
type Metrics struct {
	registry *prometheus.Registry

	Ticks          prometheus.Counter
	TickDuration   prometheus.Histogram
	Events         *prometheus.CounterVec
	TrackedWindows prometheus.Gauge
	WindowErrors   prometheus.Counter
	Subscribers    prometheus.Gauge
	DroppedEvents  prometheus.Counter
}

var _ watcher.Observer = (*Metrics)(nil)

// New creates collectors on a private registry, alongside the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Name: "winwatch_ticks_total",
			Help: "Total number of polling ticks",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "winwatch_tick_duration_seconds",
			Help:    "Time spent querying the platform per tick",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winwatch_events_total",
			Help: "Window events emitted, by type",
		}, []string{"type"}),
		TrackedWindows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "winwatch_tracked_windows",
			Help: "Number of windows currently tracked",
		}),
		WindowErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "winwatch_window_errors_total",
			Help: "Per-window platform query failures",
		}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "winwatch_ipc_subscribers",
			Help: "Number of connected IPC event subscribers",
		}),
		DroppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "winwatch_ipc_dropped_events_total",
			Help: "Events dropped because a subscriber queue was full",
		}),
	}
}

func (m *Metrics) TickCompleted(d time.Duration, tracked int) {
	m.Ticks.Inc()
	m.TickDuration.Observe(d.Seconds())
	m.TrackedWindows.Set(float64(tracked))
}

func (m *Metrics) EventEmitted(t watcher.EventType) {
	m.Events.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) WindowError(platform.WindowID, error) {
	m.WindowErrors.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

package daemon

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often the reconciler checks tracked windows.
const DefaultSweepInterval = 10 * time.Second

// Sweeper evicts tracked windows that no longer exist.
type Sweeper interface {
	Sweep() int
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically drops tracked windows whose handles went stale
// without a query ever failing, such as a window id the platform reused.
type Reconciler struct {
	interval time.Duration
	sweeper  Sweeper
	logger   *slog.Logger
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, sweeper Sweeper) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &Reconciler{
		interval: interval,
		sweeper:  sweeper,
		logger:   cfg.Logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Debug("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile()
		}
	}
}

// reconcile performs a single reconciliation pass.
func (r *Reconciler) reconcile() int {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	n := r.sweeper.Sweep()
	if n > 0 {
		r.logger.Info("reconciler: evicted stale windows", "count", n)
	}
	return n
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow() int {
	return r.reconcile()
}

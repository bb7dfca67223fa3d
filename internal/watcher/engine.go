// Package watcher polls the platform for window changes and publishes them
// to subscribers.
package watcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1broseidon/winwatch/internal/platform"
	"github.com/1broseidon/winwatch/internal/window"
)

// DefaultInterval is the polling period.
const DefaultInterval = 50 * time.Millisecond

// Option configures an Engine.
type Option func(*Engine)

// WithInterval overrides the polling period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers an observer for tick, event and error counts.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithPruneStale controls whether windows whose queries fail with
// platform.ErrInvalidWindow are dropped from tracking.
func WithPruneStale(prune bool) Option {
	return func(e *Engine) { e.pruneStale = prune }
}

// Engine is the change-detection engine. It is idle until the first
// subscriber registers, then polls until Stop.
type Engine struct {
	caps       *platform.Capabilities
	interval   time.Duration
	logger     *slog.Logger
	observer   Observer
	pruneStale bool

	subMu    sync.Mutex
	handlers map[EventType][]*subscription
	interest int

	lifeMu    sync.Mutex
	run       *run
	startedAt time.Time

	// Tick state. Written only by the polling goroutine while a run is
	// active; stateMu guards readers such as Tracked.
	stateMu       sync.Mutex
	lastActivated platform.WindowID
	positions     map[platform.WindowID]platform.Rect
	visibility    map[platform.WindowID]bool
	tracked       map[platform.WindowID]*window.Window
	order         []platform.WindowID
}

type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	// loopID is the polling goroutine's id; handlers run on it.
	loopID atomic.Uint64
}

// New creates an idle engine. A nil capability set means the platform
// failed to load.
func New(caps *platform.Capabilities, opts ...Option) (*Engine, error) {
	if caps == nil || caps.Backend == nil {
		return nil, platform.ErrUnavailable
	}

	e := &Engine{
		caps:       caps,
		interval:   DefaultInterval,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer:   nopObserver{},
		pruneStale: true,
		handlers:   make(map[EventType][]*subscription),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resetState()
	return e, nil
}

// Capabilities returns the platform capability set the engine uses.
func (e *Engine) Capabilities() *platform.Capabilities { return e.caps }

// Interval returns the polling period.
func (e *Engine) Interval() time.Duration { return e.interval }

// Running reports whether the engine is polling.
func (e *Engine) Running() bool {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	return e.run != nil
}

// StartedAt returns when polling last started, or the zero time when idle.
func (e *Engine) StartedAt() time.Time {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.run == nil {
		return time.Time{}
	}
	return e.startedAt
}

// Start begins polling. It is a no-op when already running. The currently
// active window becomes the activation baseline without an event.
func (e *Engine) Start() {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.run != nil {
		return
	}

	e.stateMu.Lock()
	e.lastActivated = e.activeID()
	e.stateMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	e.run = r
	e.startedAt = time.Now()

	e.logger.Info("watcher started", "interval", e.interval, "capabilities", e.caps.Names())
	go e.loop(r)
}

// Stop cancels polling and clears all tracked state. It waits for an
// in-flight tick, so once Stop returns no further handler is invoked. When
// called from a handler the remaining events of the current tick are dropped.
func (e *Engine) Stop() {
	e.lifeMu.Lock()
	r := e.run
	e.lifeMu.Unlock()
	if r == nil {
		return
	}

	r.cancel()
	// A handler calling Stop runs on the polling goroutine, which cannot
	// be waited for from there.
	if goroutineID() != r.loopID.Load() {
		<-r.done
	}

	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.run != r {
		// A concurrent Stop already finished this run.
		return
	}
	e.stateMu.Lock()
	e.resetStateLocked()
	e.stateMu.Unlock()
	e.run = nil
	e.logger.Info("watcher stopped")
}

// Tracked returns every tracked window in first-seen order.
func (e *Engine) Tracked() []*window.Window {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	out := make([]*window.Window, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.tracked[id])
	}
	return out
}

// Sweep evicts tracked windows the platform reports as gone and returns how
// many were removed. Only a definite answer evicts: IsWindow returning false,
// or an error wrapping platform.ErrInvalidWindow. It does nothing when stale
// pruning is disabled.
func (e *Engine) Sweep() int {
	if !e.pruneStale {
		return 0
	}

	e.stateMu.Lock()
	ids := slices.Clone(e.order)
	e.stateMu.Unlock()

	var stale []platform.WindowID
	for _, id := range ids {
		alive, err := e.caps.Backend.IsWindow(id)
		switch {
		case err == nil && !alive, errors.Is(err, platform.ErrInvalidWindow):
			stale = append(stale, id)
		case err != nil:
			e.logger.Debug("watcher: sweep query failed", "window_id", id, "error", err)
		}
	}
	if len(stale) == 0 {
		return 0
	}

	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	removed := 0
	for _, id := range stale {
		if _, ok := e.tracked[id]; ok {
			e.untrackLocked(id)
			removed++
		}
	}
	return removed
}

func (e *Engine) loop(r *run) {
	defer close(r.done)
	r.loopID.Store(goroutineID())

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			e.tick(r.ctx)
		}
	}
}

func (e *Engine) resetState() {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.resetStateLocked()
}

func (e *Engine) resetStateLocked() {
	e.lastActivated = 0
	e.positions = make(map[platform.WindowID]platform.Rect)
	e.visibility = make(map[platform.WindowID]bool)
	e.tracked = make(map[platform.WindowID]*window.Window)
	e.order = nil
}

// activeID returns the active window, treating failures as none.
func (e *Engine) activeID() platform.WindowID {
	id, err := e.caps.Backend.ActiveWindow()
	if err != nil {
		e.logger.Debug("watcher: active window query failed", "error", err)
		return 0
	}
	return id
}

// goroutineID parses the current goroutine's id from its stack header,
// "goroutine 123 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(field, ' '); i > 0 {
		field = field[:i]
	}
	id, _ := strconv.ParseUint(string(field), 10, 64)
	return id
}

package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/1broseidon/winwatch/internal/platform"
	"github.com/1broseidon/winwatch/internal/window"
)

// tick runs one detection pass and delivers its events in order:
// new-window, window-activated, then per-window diffs in first-seen order.
func (e *Engine) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	events, tracked := e.detect()
	e.observer.TickCompleted(time.Since(start), tracked)

	e.dispatch(ctx, events)
}

func (e *Engine) detect() (events []Event, tracked int) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	defer func() {
		if err := recover(); err != nil {
			e.logger.Error("watcher: tick panic recovered", "error", err)
			events = nil
		}
		tracked = len(e.order)
	}()

	// No active window usually means focus is mid-transition.
	id := e.activeID()
	if id == 0 {
		return nil, 0
	}

	now := time.Now()
	w, known := e.tracked[id]
	if !known {
		created, err := window.New(e.caps, id)
		if err != nil {
			e.observer.WindowError(id, err)
			e.logger.Warn("watcher: failed to open active window", "window_id", id, "error", err)
			return nil, 0
		}
		w = created
		e.tracked[id] = w
		e.order = append(e.order, id)
		events = append(events, Event{Type: EventNewWindow, Window: w, Time: now})
	}

	if e.lastActivated != 0 && e.lastActivated != id {
		events = append(events, Event{Type: EventWindowActivated, Window: w, Time: now})
	}
	e.lastActivated = id

	var stale []platform.WindowID
	for _, wid := range e.order {
		diff, err := e.diffWindow(e.tracked[wid], now)
		events = append(events, diff...)
		if err == nil {
			continue
		}

		e.observer.WindowError(wid, err)
		if e.pruneStale && errors.Is(err, platform.ErrInvalidWindow) {
			stale = append(stale, wid)
			continue
		}
		e.logger.Warn("watcher: window query failed", "window_id", wid, "error", err)
	}

	for _, wid := range stale {
		e.untrackLocked(wid)
		e.logger.Debug("watcher: pruned stale window", "window_id", wid)
	}
	return events, 0
}

// diffWindow compares one window against its last snapshot. A failing or
// panicking query only affects this window.
func (e *Engine) diffWindow(w *window.Window, now time.Time) (events []Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			events = nil
			err = fmt.Errorf("window %d: panic: %v", w.ID, r)
		}
	}()

	bounds, err := w.Bounds()
	if err != nil {
		return nil, err
	}
	// Empty readings are stored but never reported.
	if prev, ok := e.positions[w.ID]; ok && !bounds.IsEmpty() && bounds != prev {
		events = append(events, Event{Type: EventBoundsChange, Window: w, Bounds: bounds, Time: now})
	}
	e.positions[w.ID] = bounds

	visible, err := w.IsVisible()
	if err != nil {
		return events, err
	}
	if prev, ok := e.visibility[w.ID]; ok && prev != visible {
		events = append(events, Event{Type: EventVisibilityChange, Window: w, Visible: visible, Time: now})
	}
	e.visibility[w.ID] = visible

	return events, nil
}

func (e *Engine) untrackLocked(id platform.WindowID) {
	delete(e.tracked, id)
	delete(e.positions, id)
	delete(e.visibility, id)
	for i, wid := range e.order {
		if wid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, events []Event) {
	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}
		e.observer.EventEmitted(ev.Type)

		for _, sub := range e.subscribers(ev.Type) {
			if ctx.Err() != nil {
				return
			}
			e.deliver(ctx, sub, ev)
		}
	}
}

func (e *Engine) deliver(ctx context.Context, sub *subscription, ev Event) {
	if ctx.Err() != nil || !sub.active.Load() {
		return
	}
	defer func() {
		if err := recover(); err != nil {
			e.logger.Error("watcher: handler panic recovered", "event", ev.Type, "window_id", ev.Window.ID, "error", err)
		}
	}()
	sub.handler(ev)
}

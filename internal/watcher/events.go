package watcher

import (
	"time"

	"github.com/1broseidon/winwatch/internal/platform"
	"github.com/1broseidon/winwatch/internal/window"
)

// EventType names a change the engine reports.
type EventType string

const (
	EventNewWindow        EventType = "new-window"
	EventWindowActivated  EventType = "window-activated"
	EventBoundsChange     EventType = "window-bounds-change"
	EventVisibilityChange EventType = "window-visibility-change"
)

// EventTypes lists every event type in emission order.
var EventTypes = []EventType{
	EventNewWindow,
	EventWindowActivated,
	EventBoundsChange,
	EventVisibilityChange,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Event is one detected change. Bounds is set for EventBoundsChange and
// Visible for EventVisibilityChange.
type Event struct {
	Type    EventType
	Window  *window.Window
	Bounds  platform.Rect
	Visible bool
	Time    time.Time
}

// Handler receives events on the engine's polling goroutine. Handlers must
// not block; a slow handler delays the next tick.
type Handler func(Event)

// Observer is notified about engine activity, typically to export metrics.
type Observer interface {
	TickCompleted(d time.Duration, tracked int)
	EventEmitted(t EventType)
	WindowError(id platform.WindowID, err error)
}

type nopObserver struct{}

func (nopObserver) TickCompleted(time.Duration, int)     {}
func (nopObserver) EventEmitted(EventType)               {}
func (nopObserver) WindowError(platform.WindowID, error) {}

// Package window provides live handles to OS windows and monitors.
//
// A Window caches only what the platform reports when the handle is created.
// Every accessor re-queries the backend.
package window

import (
	"errors"
	"fmt"
	"math"

	"github.com/1broseidon/winwatch/internal/platform"
)

// DefaultIconSize is used when Icon is called with size 0.
const DefaultIconSize = 64

var iconSizes = map[int]bool{16: true, 32: true, 64: true, 256: true}

// Window is a handle to one OS window.
type Window struct {
	ID           platform.WindowID
	ProcessID    int
	Layer        int
	Path         string
	BundleID     string
	InitialTitle string

	caps *platform.Capabilities
}

// BoundsPatch carries the fields SetBounds should change. Nil fields keep
// their current value.
type BoundsPatch struct {
	X      *int
	Y      *int
	Width  *int
	Height *int
}

// Apply merges p over r.
func (p BoundsPatch) Apply(r platform.Rect) platform.Rect {
	if p.X != nil {
		r.X = *p.X
	}
	if p.Y != nil {
		r.Y = *p.Y
	}
	if p.Width != nil {
		r.Width = *p.Width
	}
	if p.Height != nil {
		r.Height = *p.Height
	}
	return r
}

// PatchFrom returns a patch that sets every field of r.
func PatchFrom(r platform.Rect) BoundsPatch {
	return BoundsPatch{X: &r.X, Y: &r.Y, Width: &r.Width, Height: &r.Height}
}

// OwnerRef names the owner passed to SetOwner: a window, a raw id, or none.
type OwnerRef struct {
	id platform.WindowID
}

// OwnerWindow refers to w. A nil window means no owner.
func OwnerWindow(w *Window) OwnerRef {
	if w == nil {
		return NoOwner()
	}
	return OwnerRef{id: w.ID}
}

// OwnerID refers to a raw window id.
func OwnerID(id platform.WindowID) OwnerRef { return OwnerRef{id: id} }

// NoOwner clears the owner relationship.
func NoOwner() OwnerRef { return OwnerRef{} }

// ID returns the referenced id, 0 for none.
func (o OwnerRef) ID() platform.WindowID { return o.id }

// New creates a handle for id with a single InitWindow query.
func New(caps *platform.Capabilities, id platform.WindowID) (*Window, error) {
	if caps == nil || caps.Backend == nil {
		return nil, platform.ErrUnavailable
	}

	info, err := caps.Backend.InitWindow(id)
	if err != nil {
		return nil, fmt.Errorf("init window %d: %w", id, err)
	}

	return &Window{
		ID:           id,
		ProcessID:    info.ProcessID,
		Layer:        info.Layer,
		Path:         info.Path,
		BundleID:     info.BundleID,
		InitialTitle: info.Name,
		caps:         caps,
	}, nil
}

func (w *Window) String() string {
	return fmt.Sprintf("window %d (%q pid=%d)", w.ID, w.InitialTitle, w.ProcessID)
}

// Bounds returns the current bounds in logical pixels.
func (w *Window) Bounds() (platform.Rect, error) {
	r, err := w.caps.Backend.WindowBounds(w.ID)
	if err != nil {
		return platform.Rect{}, err
	}
	if !w.caps.ScaleBounds {
		return r, nil
	}

	sf, err := w.scaleFactor()
	if err != nil {
		return platform.Rect{}, err
	}
	return mapRect(r, func(v float64) float64 { return v / sf }), nil
}

// SetBounds merges patch over the current bounds and moves the window.
// Without a move/resize primitive it does nothing.
func (w *Window) SetBounds(patch BoundsPatch) error {
	if w.caps.Bounds == nil {
		return nil
	}

	current, err := w.Bounds()
	if err != nil {
		return err
	}
	next := patch.Apply(current)

	if w.caps.ScaleBounds {
		sf, err := w.scaleFactor()
		if err != nil {
			return err
		}
		next = mapRect(next, func(v float64) float64 { return v * sf })
	}
	return w.caps.Bounds.SetWindowBounds(w.ID, next)
}

// Title returns the current title.
func (w *Window) Title() (string, error) {
	return w.caps.Backend.WindowTitle(w.ID)
}

// Monitor returns the monitor showing the window, or the null monitor when
// the platform cannot tell.
func (w *Window) Monitor() (Monitor, error) {
	if w.caps.MonitorOf == nil {
		return NullMonitor(), nil
	}
	info, err := w.caps.MonitorOf.MonitorFromWindow(w.ID)
	if err != nil {
		return NullMonitor(), err
	}
	return NewMonitor(info), nil
}

func (w *Window) Show() error     { return w.show(platform.ShowNormal) }
func (w *Window) Hide() error     { return w.show(platform.ShowHidden) }
func (w *Window) Minimize() error { return w.show(platform.ShowMinimize) }
func (w *Window) Restore() error  { return w.show(platform.ShowRestore) }
func (w *Window) Maximize() error { return w.show(platform.ShowMaximize) }

func (w *Window) show(mode platform.ShowMode) error {
	if w.caps.Show == nil {
		return nil
	}
	return w.caps.Show.ShowWindow(w.ID, mode)
}

// BringToTop activates and raises the window.
func (w *Window) BringToTop() error {
	return w.caps.Backend.BringToTop(w.ID, w.ProcessID)
}

// Redraw forces a repaint.
func (w *Window) Redraw() error {
	if w.caps.Redraw == nil {
		return nil
	}
	return w.caps.Redraw.RedrawWindow(w.ID)
}

// IsWindow reports whether the handle has an executable path and the
// platform still knows the id. Backend failures read as false.
func (w *Window) IsWindow() bool {
	if w == nil || w.caps == nil || w.Path == "" {
		return false
	}
	ok, err := w.caps.Backend.IsWindow(w.ID)
	return err == nil && ok
}

// IsVisible defaults to true when the platform cannot report visibility.
func (w *Window) IsVisible() (bool, error) {
	if w.caps.Visibility == nil {
		return true, nil
	}
	return w.caps.Visibility.IsWindowVisible(w.ID)
}

// ToggleTransparency enables or disables per-window transparency.
func (w *Window) ToggleTransparency(enabled bool) error {
	if w.caps.Transparency == nil {
		return nil
	}
	return w.caps.Transparency.ToggleWindowTransparency(w.ID, enabled)
}

// SetOpacity sets opacity in [0, 1].
func (w *Window) SetOpacity(opacity float64) error {
	if w.caps.Opacity == nil {
		return nil
	}
	if opacity < 0 || opacity > 1 || math.IsNaN(opacity) {
		return fmt.Errorf("opacity %v out of range [0, 1]", opacity)
	}
	return w.caps.Opacity.SetWindowOpacity(w.ID, opacity)
}

// Opacity defaults to 1 when unsupported.
func (w *Window) Opacity() (float64, error) {
	if w.caps.Opacity == nil {
		return 1, nil
	}
	return w.caps.Opacity.WindowOpacity(w.ID)
}

// Icon returns a PNG icon of size x size pixels. Size 0 selects
// DefaultIconSize.
func (w *Window) Icon(size int) ([]byte, error) {
	if size == 0 {
		size = DefaultIconSize
	}
	if !iconSizes[size] {
		return nil, fmt.Errorf("icon size %d: must be 16, 32, 64 or 256", size)
	}
	if w.caps.Icons == nil {
		return nil, fmt.Errorf("icon for window %d: %w", w.ID, platform.ErrUnsupported)
	}
	return w.caps.Icons.WindowIcon(w.ID, w.Path, size)
}

// SetOwner sets or clears the OS-level owner.
func (w *Window) SetOwner(owner OwnerRef) error {
	if w.caps.Owner == nil {
		return nil
	}
	return w.caps.Owner.SetWindowOwner(w.ID, owner.id)
}

// Owner returns the owning window, or nil when there is none or the
// platform cannot tell.
func (w *Window) Owner() (*Window, error) {
	if w.caps.Owner == nil {
		return nil, nil
	}
	id, err := w.caps.Owner.WindowOwner(w.ID)
	if err != nil || id == 0 {
		return nil, err
	}
	return New(w.caps, id)
}

func (w *Window) scaleFactor() (float64, error) {
	m, err := w.Monitor()
	if err != nil && !errors.Is(err, platform.ErrInvalidWindow) {
		// The window exists but no monitor claims it; treat as unscaled.
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return m.ScaleFactor(), nil
}

// mapRect applies fn to every field and floors the result.
func mapRect(r platform.Rect, fn func(float64) float64) platform.Rect {
	scale := func(v int) int { return int(math.Floor(fn(float64(v)))) }
	return platform.Rect{
		X:      scale(r.X),
		Y:      scale(r.Y),
		Width:  scale(r.Width),
		Height: scale(r.Height),
	}
}

package watcher

import (
	"errors"

	"github.com/1broseidon/winwatch/internal/platform"
	"github.com/1broseidon/winwatch/internal/window"
)

// ActiveWindow returns a handle for the focused window.
func (e *Engine) ActiveWindow() (*window.Window, error) {
	id, err := e.caps.Backend.ActiveWindow()
	if err != nil {
		return nil, err
	}
	return window.New(e.caps, id)
}

// Windows returns handles for every window that still passes IsWindow.
// Windows destroyed between enumeration and inspection are skipped.
func (e *Engine) Windows() ([]*window.Window, error) {
	ids, err := e.caps.Backend.Windows()
	if err != nil {
		return nil, err
	}

	out := make([]*window.Window, 0, len(ids))
	for _, id := range ids {
		w, err := window.New(e.caps, id)
		if err != nil {
			if !errors.Is(err, platform.ErrInvalidWindow) {
				e.logger.Debug("watcher: skipping window", "window_id", id, "error", err)
			}
			continue
		}
		if w.IsWindow() {
			out = append(out, w)
		}
	}
	return out, nil
}

// Monitors lists displays; empty when the platform cannot enumerate them.
func (e *Engine) Monitors() ([]window.Monitor, error) {
	if e.caps.Monitors == nil {
		return nil, nil
	}
	infos, err := e.caps.Monitors.Monitors()
	if err != nil {
		return nil, err
	}
	out := make([]window.Monitor, 0, len(infos))
	for _, info := range infos {
		out = append(out, window.NewMonitor(info))
	}
	return out, nil
}

// PrimaryMonitor returns the primary display, or the null monitor when
// there is none.
func (e *Engine) PrimaryMonitor() (window.Monitor, error) {
	monitors, err := e.Monitors()
	if err != nil {
		return window.NullMonitor(), err
	}
	for _, m := range monitors {
		if m.IsPrimary() {
			return m, nil
		}
	}
	return window.NullMonitor(), nil
}

// RequestAccessibility asks for window introspection permissions. Platforms
// that need none report true.
func (e *Engine) RequestAccessibility() (bool, error) {
	if e.caps.Access == nil {
		return true, nil
	}
	return e.caps.Access.RequestAccessibility()
}

// CreateProcess launches path with cmd and returns the pid, or 0 when the
// platform cannot launch processes.
func (e *Engine) CreateProcess(path, cmd string) (int, error) {
	if e.caps.Process == nil {
		return 0, nil
	}
	return e.caps.Process.CreateProcess(path, cmd)
}

//go:build linux

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/1broseidon/winwatch/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
)

// LinuxBackend wraps an X11 connection behind the platform Backend interface.
type LinuxBackend struct {
	conn *x11.Connection
}

var (
	_ Backend            = (*LinuxBackend)(nil)
	_ BoundsSetter       = (*LinuxBackend)(nil)
	_ MonitorLocator     = (*LinuxBackend)(nil)
	_ MonitorLister      = (*LinuxBackend)(nil)
	_ ShowController     = (*LinuxBackend)(nil)
	_ Redrawer           = (*LinuxBackend)(nil)
	_ VisibilityReporter = (*LinuxBackend)(nil)
	_ OpacityController  = (*LinuxBackend)(nil)
	_ OwnerController    = (*LinuxBackend)(nil)
	_ ProcessCreator     = (*LinuxBackend)(nil)
	_ IconSource         = (*LinuxBackend)(nil)
)

// NewBackend opens the platform backend for this OS.
func NewBackend(opts Options) (Backend, error) {
	return NewLinuxBackendFromDisplay(opts.Display, opts.XAuthority)
}

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn}
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay(display, xauthority string) (*LinuxBackend, error) {
	conn, err := x11.NewConnection(display, xauthority)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to X11: %v", ErrUnavailable, err)
	}
	return &LinuxBackend{conn: conn}, nil
}

// Close closes the underlying X11 connection.
func (b *LinuxBackend) Close() error {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
	return nil
}

// InitWindow reads the static attributes of a window.
func (b *LinuxBackend) InitWindow(id WindowID) (WindowInfo, error) {
	conn, win, err := b.window(id)
	if err != nil {
		return WindowInfo{}, err
	}

	pid := conn.WindowPID(win)
	return WindowInfo{
		ProcessID: pid,
		Path:      executablePath(pid),
		BundleID:  conn.WindowClass(win),
		Layer:     stackingLayer(conn.WindowStates(win)),
		Name:      conn.WindowTitle(win),
	}, nil
}

// WindowBounds returns the window rectangle in root coordinates.
func (b *LinuxBackend) WindowBounds(id WindowID) (Rect, error) {
	conn, win, err := b.window(id)
	if err != nil {
		return Rect{}, err
	}
	geom, err := conn.WindowGeometry(win)
	if err != nil {
		return Rect{}, b.queryError(id, err)
	}
	return Rect{X: geom.X, Y: geom.Y, Width: geom.Width, Height: geom.Height}, nil
}

// WindowTitle returns the current window title.
func (b *LinuxBackend) WindowTitle(id WindowID) (string, error) {
	conn, win, err := b.window(id)
	if err != nil {
		return "", err
	}
	return conn.WindowTitle(win), nil
}

// IsWindow reports whether id still names a live window.
func (b *LinuxBackend) IsWindow(id WindowID) (bool, error) {
	conn, err := b.connection()
	if err != nil {
		return false, err
	}
	return id != 0 && conn.Exists(xproto.Window(id)), nil
}

// ActiveWindow returns the currently active/focused window ID.
func (b *LinuxBackend) ActiveWindow() (WindowID, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}

	wid, err := conn.ActiveWindow()
	if err != nil {
		return 0, err
	}
	return WindowID(wid), nil
}

// Windows lists normal top-level client windows in ascending id order.
func (b *LinuxBackend) Windows() ([]WindowID, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	clients, err := conn.ClientList()
	if err != nil {
		return nil, err
	}

	ids := make([]WindowID, 0, len(clients))
	for _, win := range clients {
		if !conn.IsNormalWindow(win) {
			continue
		}
		ids = append(ids, WindowID(win))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// BringToTop activates and raises the window. The pid is not needed on X11.
func (b *LinuxBackend) BringToTop(id WindowID, _ int) error {
	conn, win, err := b.window(id)
	if err != nil {
		return err
	}
	return conn.FocusWindow(win)
}

// SetWindowBounds moves and resizes a window.
func (b *LinuxBackend) SetWindowBounds(id WindowID, bounds Rect) error {
	conn, win, err := b.window(id)
	if err != nil {
		return err
	}
	return conn.MoveResizeWindow(win, bounds.X, bounds.Y, bounds.Width, bounds.Height)
}

// MonitorFromWindow returns the monitor holding the window's center.
func (b *LinuxBackend) MonitorFromWindow(id WindowID) (MonitorInfo, error) {
	conn, win, err := b.window(id)
	if err != nil {
		return MonitorInfo{}, err
	}
	mon, err := conn.MonitorForWindow(win)
	if err != nil {
		return MonitorInfo{}, err
	}
	return b.monitorInfo(*mon), nil
}

// Monitors returns all active displays ordered by id.
func (b *LinuxBackend) Monitors() ([]MonitorInfo, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	monitors, err := conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	out := make([]MonitorInfo, 0, len(monitors))
	for _, m := range monitors {
		out = append(out, b.monitorInfo(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ShowWindow applies a presentation state.
func (b *LinuxBackend) ShowWindow(id WindowID, mode ShowMode) error {
	conn, win, err := b.window(id)
	if err != nil {
		return err
	}

	switch mode {
	case ShowNormal:
		conn.MapWindow(win)
		return nil
	case ShowHidden:
		conn.UnmapWindow(win)
		return nil
	case ShowMinimize:
		return conn.Iconify(win)
	case ShowRestore:
		return conn.Restore(win)
	case ShowMaximize:
		return conn.Maximize(win)
	default:
		return fmt.Errorf("unknown show mode %q", mode)
	}
}

// RedrawWindow forces an expose of the whole window.
func (b *LinuxBackend) RedrawWindow(id WindowID) error {
	conn, win, err := b.window(id)
	if err != nil {
		return err
	}
	return conn.Redraw(win)
}

// IsWindowVisible reports whether the window is mapped and not hidden.
func (b *LinuxBackend) IsWindowVisible(id WindowID) (bool, error) {
	conn, win, err := b.window(id)
	if err != nil {
		return false, err
	}
	visible, err := conn.IsViewable(win)
	if err != nil {
		return false, b.queryError(id, err)
	}
	return visible, nil
}

// SetWindowOpacity writes the compositor opacity hint.
func (b *LinuxBackend) SetWindowOpacity(id WindowID, opacity float64) error {
	conn, win, err := b.window(id)
	if err != nil {
		return err
	}
	return conn.SetOpacity(win, opacity)
}

// WindowOpacity reads the compositor opacity hint.
func (b *LinuxBackend) WindowOpacity(id WindowID) (float64, error) {
	conn, win, err := b.window(id)
	if err != nil {
		return 1, err
	}
	return conn.Opacity(win), nil
}

// SetWindowOwner sets WM_TRANSIENT_FOR.
func (b *LinuxBackend) SetWindowOwner(id WindowID, owner WindowID) error {
	conn, win, err := b.window(id)
	if err != nil {
		return err
	}
	return conn.SetTransientFor(win, xproto.Window(owner))
}

// WindowOwner reads WM_TRANSIENT_FOR.
func (b *LinuxBackend) WindowOwner(id WindowID) (WindowID, error) {
	conn, win, err := b.window(id)
	if err != nil {
		return 0, err
	}
	return WindowID(conn.TransientFor(win)), nil
}

// CreateProcess starts path with the whitespace-separated arguments in cmd.
func (b *LinuxBackend) CreateProcess(path string, cmd string) (int, error) {
	c := exec.Command(path, strings.Fields(cmd)...)
	if err := c.Start(); err != nil {
		return 0, err
	}
	go c.Wait()
	return c.Process.Pid, nil
}

// WindowIcon returns the window's _NET_WM_ICON as PNG. X11 icons live on the
// window rather than the executable, so path is unused.
func (b *LinuxBackend) WindowIcon(id WindowID, _ string, size int) ([]byte, error) {
	conn, win, err := b.window(id)
	if err != nil {
		return nil, err
	}
	return conn.IconPNG(win, size)
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("%w: x11 backend connection is nil", ErrUnavailable)
	}
	return b.conn, nil
}

func (b *LinuxBackend) window(id WindowID) (*x11.Connection, xproto.Window, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, 0, err
	}
	win := xproto.Window(id)
	if id == 0 || !conn.Exists(win) {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidWindow, id)
	}
	return conn, win, nil
}

// queryError maps an X error on a window that vanished mid-query to
// ErrInvalidWindow.
func (b *LinuxBackend) queryError(id WindowID, err error) error {
	if !b.conn.Exists(xproto.Window(id)) {
		return fmt.Errorf("%w: %d", ErrInvalidWindow, id)
	}
	return err
}

func (b *LinuxBackend) monitorInfo(m x11.Monitor) MonitorInfo {
	bounds := Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height}
	wa := b.conn.WorkArea(m)
	return MonitorInfo{
		ID:          m.ID,
		Name:        m.Name,
		Bounds:      bounds,
		WorkArea:    Rect{X: wa.X, Y: wa.Y, Width: wa.Width, Height: wa.Height},
		ScaleFactor: 1,
		Primary:     m.Primary,
	}
}

// stackingLayer maps EWMH stacking hints onto a signed layer value:
// above windows are 1, below windows are -1, everything else 0.
func stackingLayer(states []string) int {
	for _, s := range states {
		switch s {
		case "_NET_WM_STATE_ABOVE":
			return 1
		case "_NET_WM_STATE_BELOW":
			return -1
		}
	}
	return 0
}

func executablePath(pid int) string {
	if pid <= 0 {
		return ""
	}
	path, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return ""
	}
	return path
}

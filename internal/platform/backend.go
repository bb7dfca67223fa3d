package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned when no window-system backend can be loaded
	// on this machine (unsupported OS or the display connection failed).
	ErrUnavailable = errors.New("window manager backend unavailable")

	// ErrInvalidWindow is returned when an id no longer (or never did)
	// resolve to a live window.
	ErrInvalidWindow = errors.New("invalid window id")

	// ErrUnsupported is returned by operations that have no sensible default
	// when the backend lacks the capability.
	ErrUnsupported = errors.New("operation not supported on this platform")
)

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsEmpty reports whether the rectangle carries no data at all.
// A zero-sized rect at the origin is what backends return when a window
// has no geometry to report.
func (r Rect) IsEmpty() bool {
	return r == Rect{}
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// WindowInfo is the static description captured when a window handle is created.
type WindowInfo struct {
	ProcessID int
	Path      string
	BundleID  string
	Layer     int
	Name      string
}

// MonitorInfo describes a physical display.
type MonitorInfo struct {
	ID          int
	Name        string
	Bounds      Rect
	WorkArea    Rect
	ScaleFactor float64
	Primary     bool
}

// ShowMode selects a window presentation state.
type ShowMode string

const (
	ShowNormal   ShowMode = "show"
	ShowHidden   ShowMode = "hide"
	ShowMinimize ShowMode = "minimize"
	ShowRestore  ShowMode = "restore"
	ShowMaximize ShowMode = "maximize"
)

// Backend abstracts the window-system primitives every platform must provide.
type Backend interface {
	InitWindow(id WindowID) (WindowInfo, error)
	WindowBounds(id WindowID) (Rect, error)
	WindowTitle(id WindowID) (string, error)
	IsWindow(id WindowID) (bool, error)
	ActiveWindow() (WindowID, error)
	Windows() ([]WindowID, error)
	BringToTop(id WindowID, pid int) error
}

// BoundsSetter moves and resizes windows.
type BoundsSetter interface {
	SetWindowBounds(id WindowID, bounds Rect) error
}

// MonitorLocator resolves the monitor a window is displayed on.
type MonitorLocator interface {
	MonitorFromWindow(id WindowID) (MonitorInfo, error)
}

// MonitorLister enumerates displays.
type MonitorLister interface {
	Monitors() ([]MonitorInfo, error)
}

// ShowController changes a window's presentation state.
type ShowController interface {
	ShowWindow(id WindowID, mode ShowMode) error
}

// Redrawer forces a repaint of a window.
type Redrawer interface {
	RedrawWindow(id WindowID) error
}

// VisibilityReporter reports whether a window is currently visible.
type VisibilityReporter interface {
	IsWindowVisible(id WindowID) (bool, error)
}

// TransparencyController toggles per-window transparency support.
type TransparencyController interface {
	ToggleWindowTransparency(id WindowID, enabled bool) error
}

// OpacityController reads and writes window opacity in the range [0, 1].
type OpacityController interface {
	SetWindowOpacity(id WindowID, opacity float64) error
	WindowOpacity(id WindowID) (float64, error)
}

// OwnerController manages OS-level owner/transient relationships.
// An owner id of 0 means "no owner".
type OwnerController interface {
	SetWindowOwner(id WindowID, owner WindowID) error
	WindowOwner(id WindowID) (WindowID, error)
}

// AccessibilityRequester asks the OS for the permissions window
// introspection needs.
type AccessibilityRequester interface {
	RequestAccessibility() (bool, error)
}

// ProcessCreator launches a program and returns its pid.
type ProcessCreator interface {
	CreateProcess(path string, cmd string) (int, error)
}

// IconSource returns a PNG-encoded icon of size x size pixels for a window.
// Backends may use either the window itself or the executable at path.
type IconSource interface {
	WindowIcon(id WindowID, path string, size int) ([]byte, error)
}

// PhysicalPixels is implemented by backends whose bounds are reported in
// physical pixels and need dividing by the monitor scale factor.
type PhysicalPixels interface {
	ReportsPhysicalPixels() bool
}

// Options configures how a backend connects to the window system.
type Options struct {
	// Display overrides $DISPLAY on X11.
	Display string
	// XAuthority overrides $XAUTHORITY on X11.
	XAuthority string
}

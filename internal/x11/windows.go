package x11

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xgraphics"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

const opacityProperty = "_NET_WM_WINDOW_OPACITY"

// Geometry is a window's position relative to the root window.
type Geometry struct {
	X      int
	Y      int
	Width  int
	Height int
}

// ActiveWindow returns the window named by _NET_ACTIVE_WINDOW, or 0.
func (c *Connection) ActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}

// ClientList returns the top-level windows managed by the window manager.
func (c *Connection) ClientList() ([]xproto.Window, error) {
	return ewmh.ClientListGet(c.XUtil)
}

// Exists reports whether the server still knows about windowID.
func (c *Connection) Exists(windowID xproto.Window) bool {
	_, err := xproto.GetWindowAttributes(c.XUtil.Conn(), windowID).Reply()
	return err == nil
}

// WindowGeometry returns the window rectangle in root coordinates.
func (c *Connection) WindowGeometry(windowID xproto.Window) (Geometry, error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return Geometry{}, err
	}

	translate, err := xproto.TranslateCoordinates(
		c.XUtil.Conn(),
		windowID,
		c.Root,
		0, 0,
	).Reply()
	if err != nil {
		return Geometry{}, err
	}

	return Geometry{
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}

// WindowTitle prefers _NET_WM_NAME and falls back to WM_NAME.
func (c *Connection) WindowTitle(windowID xproto.Window) string {
	title, err := ewmh.WmNameGet(c.XUtil, windowID)
	if err == nil {
		title = strings.TrimSpace(title)
		if title != "" {
			return title
		}
	}

	title, err = icccm.WmNameGet(c.XUtil, windowID)
	if err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}

// WindowPID returns _NET_WM_PID, or 0 when the client does not set it.
func (c *Connection) WindowPID(windowID xproto.Window) int {
	pid, err := ewmh.WmPidGet(c.XUtil, windowID)
	if err != nil {
		return 0
	}
	return int(pid)
}

// WindowClass returns the WM_CLASS class part.
func (c *Connection) WindowClass(windowID xproto.Window) string {
	wmClass, err := icccm.WmClassGet(c.XUtil, windowID)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(wmClass.Class)
}

// WindowStates returns the _NET_WM_STATE atoms set on the window.
func (c *Connection) WindowStates(windowID xproto.Window) []string {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return nil
	}
	return states
}

// HasState reports whether state is among the window's _NET_WM_STATE atoms.
func (c *Connection) HasState(windowID xproto.Window, state string) bool {
	for _, s := range c.WindowStates(windowID) {
		if s == state {
			return true
		}
	}
	return false
}

// IsViewable reports whether the window is mapped and not hidden by the WM.
func (c *Connection) IsViewable(windowID xproto.Window) (bool, error) {
	attrs, err := xproto.GetWindowAttributes(c.XUtil.Conn(), windowID).Reply()
	if err != nil {
		return false, err
	}
	if attrs.MapState != xproto.MapStateViewable {
		return false, nil
	}
	return !c.HasState(windowID, "_NET_WM_STATE_HIDDEN"), nil
}

// MoveResizeWindow moves and resizes a window to the specified geometry
func (c *Connection) MoveResizeWindow(windowID xproto.Window, x, y, width, height int) error {
	// Maximized windows ignore move requests on most window managers.
	c.setMaximized(windowID, false)

	if err := ewmh.MoveresizeWindow(c.XUtil, windowID, x, y, width, height); err != nil {
		xwindow.New(c.XUtil, windowID).MoveResize(x, y, width, height)
	}
	return nil
}

// MapWindow maps (shows) a window.
func (c *Connection) MapWindow(windowID xproto.Window) {
	xwindow.New(c.XUtil, windowID).Map()
}

// UnmapWindow unmaps (hides) a window.
func (c *Connection) UnmapWindow(windowID xproto.Window) {
	xwindow.New(c.XUtil, windowID).Unmap()
}

// Maximize asks the window manager to maximize in both directions.
func (c *Connection) Maximize(windowID xproto.Window) error {
	return c.setMaximized(windowID, true)
}

func (c *Connection) setMaximized(windowID xproto.Window, on bool) error {
	action := ewmh.StateRemove
	if on {
		action = ewmh.StateAdd
	} else if !c.HasState(windowID, "_NET_WM_STATE_MAXIMIZED_HORZ") &&
		!c.HasState(windowID, "_NET_WM_STATE_MAXIMIZED_VERT") {
		return nil
	}
	if err := ewmh.WmStateReq(c.XUtil, windowID, action, "_NET_WM_STATE_MAXIMIZED_HORZ"); err != nil {
		return err
	}
	return ewmh.WmStateReq(c.XUtil, windowID, action, "_NET_WM_STATE_MAXIMIZED_VERT")
}

// Redraw clears the whole window and asks the client to repaint.
func (c *Connection) Redraw(windowID xproto.Window) error {
	return xproto.ClearAreaChecked(c.XUtil.Conn(), true, windowID, 0, 0, 0, 0).Check()
}

// Opacity returns _NET_WM_WINDOW_OPACITY scaled to [0, 1]. Windows without
// the property are fully opaque.
func (c *Connection) Opacity(windowID xproto.Window) float64 {
	val, err := xprop.PropValNum(xprop.GetProperty(c.XUtil, windowID, opacityProperty))
	if err != nil {
		return 1
	}
	return float64(val) / float64(0xFFFFFFFF)
}

// SetOpacity writes _NET_WM_WINDOW_OPACITY. Compositors read it from the
// client window.
func (c *Connection) SetOpacity(windowID xproto.Window, opacity float64) error {
	if opacity < 0 {
		opacity = 0
	}
	if opacity >= 1 {
		return c.deleteProperty(windowID, opacityProperty)
	}
	return xprop.ChangeProp32(c.XUtil, windowID, opacityProperty, "CARDINAL", uint(opacity*float64(0xFFFFFFFF)))
}

// TransientFor returns the WM_TRANSIENT_FOR owner, or 0.
func (c *Connection) TransientFor(windowID xproto.Window) xproto.Window {
	owner, err := icccm.WmTransientForGet(c.XUtil, windowID)
	if err != nil {
		return 0
	}
	return owner
}

// SetTransientFor sets WM_TRANSIENT_FOR; owner 0 removes the relationship.
func (c *Connection) SetTransientFor(windowID, owner xproto.Window) error {
	if owner == 0 {
		return c.deleteProperty(windowID, "WM_TRANSIENT_FOR")
	}
	return icccm.WmTransientForSet(c.XUtil, windowID, owner)
}

// IconPNG returns the _NET_WM_ICON closest to size, scaled and PNG encoded.
func (c *Connection) IconPNG(windowID xproto.Window, size int) ([]byte, error) {
	img, err := xgraphics.FindIcon(c.XUtil, windowID, size, size)
	if err != nil {
		return nil, fmt.Errorf("find icon: %w", err)
	}
	defer img.Destroy()

	var buf bytes.Buffer
	if err := img.WritePng(&buf); err != nil {
		return nil, fmt.Errorf("encode icon: %w", err)
	}
	return buf.Bytes(), nil
}

// IsNormalWindow checks if a window is a normal application window
func (c *Connection) IsNormalWindow(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		return true
	}

	for _, t := range types {
		switch t {
		case "_NET_WM_WINDOW_TYPE_NORMAL", "_NET_WM_WINDOW_TYPE_DIALOG":
			return true
		case "_NET_WM_WINDOW_TYPE_DESKTOP",
			"_NET_WM_WINDOW_TYPE_DOCK",
			"_NET_WM_WINDOW_TYPE_SPLASH",
			"_NET_WM_WINDOW_TYPE_NOTIFICATION":
			return false
		}
	}
	return len(types) == 0
}

func (c *Connection) deleteProperty(windowID xproto.Window, name string) error {
	atom, err := xprop.Atm(c.XUtil, name)
	if err != nil {
		return err
	}
	return xproto.DeletePropertyChecked(c.XUtil.Conn(), windowID, atom).Check()
}

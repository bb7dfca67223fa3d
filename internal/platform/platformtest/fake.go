// Package platformtest provides an in-memory platform backend for tests.
package platformtest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/1broseidon/winwatch/internal/platform"
)

// Window is the scripted state of one fake window.
type Window struct {
	Info        platform.WindowInfo
	Bounds      platform.Rect
	Title       string
	Visible     bool
	Opacity     float64
	Owner       platform.WindowID
	MonitorID   int
	Transparent bool
	LastShow    platform.ShowMode
	Redraws     int

	// BoundsErr is returned by WindowBounds when set.
	BoundsErr error
	// PanicOnBounds makes WindowBounds panic.
	PanicOnBounds bool
}

// Fake implements platform.Backend and every optional capability.
type Fake struct {
	mu sync.Mutex

	windows  map[platform.WindowID]*Window
	active   platform.WindowID
	monitors []platform.MonitorInfo

	physical    bool
	access      bool
	nextPID     int
	launched    []string
	activations []platform.WindowID
	icon        []byte
	isWindowErr error
	onIsWindow  func(platform.WindowID)
}

var (
	_ platform.Backend                = (*Fake)(nil)
	_ platform.BoundsSetter           = (*Fake)(nil)
	_ platform.MonitorLocator         = (*Fake)(nil)
	_ platform.MonitorLister          = (*Fake)(nil)
	_ platform.ShowController         = (*Fake)(nil)
	_ platform.Redrawer               = (*Fake)(nil)
	_ platform.VisibilityReporter     = (*Fake)(nil)
	_ platform.TransparencyController = (*Fake)(nil)
	_ platform.OpacityController      = (*Fake)(nil)
	_ platform.OwnerController        = (*Fake)(nil)
	_ platform.AccessibilityRequester = (*Fake)(nil)
	_ platform.ProcessCreator         = (*Fake)(nil)
	_ platform.IconSource             = (*Fake)(nil)
	_ platform.PhysicalPixels         = (*Fake)(nil)
)

// New returns an empty fake with access granted and no monitors.
func New() *Fake {
	return &Fake{
		windows: make(map[platform.WindowID]*Window),
		access:  true,
		nextPID: 1000,
		icon:    []byte("\x89PNG"),
	}
}

// AddWindow registers a live window. Unset opacity defaults to 1.
func (f *Fake) AddWindow(id platform.WindowID, w Window) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w.Opacity == 0 {
		w.Opacity = 1
	}
	if w.Info.Name == "" {
		w.Info.Name = w.Title
	}
	f.windows[id] = &w
}

// RemoveWindow destroys a window; later queries fail with ErrInvalidWindow.
func (f *Fake) RemoveWindow(id platform.WindowID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.windows, id)
}

// SetActive sets the id ActiveWindow reports. 0 means no active window.
func (f *Fake) SetActive(id platform.WindowID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = id
}

// SetBounds updates a window's reported bounds.
func (f *Fake) SetBounds(id platform.WindowID, r platform.Rect) {
	f.update(id, func(w *Window) { w.Bounds = r })
}

// SetVisible updates a window's reported visibility.
func (f *Fake) SetVisible(id platform.WindowID, visible bool) {
	f.update(id, func(w *Window) { w.Visible = visible })
}

// SetTitle updates a window's reported title.
func (f *Fake) SetTitle(id platform.WindowID, title string) {
	f.update(id, func(w *Window) { w.Title = title })
}

// FailBounds makes WindowBounds return err for id; nil clears it.
func (f *Fake) FailBounds(id platform.WindowID, err error) {
	f.update(id, func(w *Window) { w.BoundsErr = err })
}

// FailIsWindow makes IsWindow return err for every id; nil clears it.
func (f *Fake) FailIsWindow(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isWindowErr = err
}

// OnIsWindow registers fn to run, outside the fake's lock, at the start of
// every IsWindow call.
func (f *Fake) OnIsWindow(fn func(platform.WindowID)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onIsWindow = fn
}

// PanicBounds makes WindowBounds panic for id.
func (f *Fake) PanicBounds(id platform.WindowID, panics bool) {
	f.update(id, func(w *Window) { w.PanicOnBounds = panics })
}

// SetMonitors replaces the monitor list.
func (f *Fake) SetMonitors(monitors ...platform.MonitorInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.monitors = append([]platform.MonitorInfo(nil), monitors...)
}

// SetPhysicalPixels controls ReportsPhysicalPixels.
func (f *Fake) SetPhysicalPixels(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.physical = on
}

// SetAccessibility controls what RequestAccessibility returns.
func (f *Fake) SetAccessibility(granted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = granted
}

// SetIcon sets the bytes WindowIcon returns.
func (f *Fake) SetIcon(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.icon = data
}

// Snapshot returns a copy of a window's current state.
func (f *Fake) Snapshot(id platform.WindowID) (Window, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.windows[id]
	if !ok {
		return Window{}, false
	}
	return *w, true
}

// Launched returns the "path cmd" strings passed to CreateProcess.
func (f *Fake) Launched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.launched...)
}

// Activations returns the ids passed to BringToTop.
func (f *Fake) Activations() []platform.WindowID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.WindowID(nil), f.activations...)
}

func (f *Fake) update(id platform.WindowID, fn func(*Window)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.windows[id]; ok {
		fn(w)
	}
}

// lookup must be called with f.mu held.
func (f *Fake) lookup(id platform.WindowID) (*Window, error) {
	w, ok := f.windows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", platform.ErrInvalidWindow, id)
	}
	return w, nil
}

func (f *Fake) InitWindow(id platform.WindowID) (platform.WindowInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.lookup(id)
	if err != nil {
		return platform.WindowInfo{}, err
	}
	info := w.Info
	info.Name = w.Title
	return info, nil
}

func (f *Fake) WindowBounds(id platform.WindowID) (platform.Rect, error) {
	f.mu.Lock()
	w, err := f.lookup(id)
	if err != nil {
		f.mu.Unlock()
		return platform.Rect{}, err
	}
	bounds, boundsErr, panics := w.Bounds, w.BoundsErr, w.PanicOnBounds
	f.mu.Unlock()

	if panics {
		panic(fmt.Sprintf("fake: bounds query for %d", id))
	}
	if boundsErr != nil {
		return platform.Rect{}, boundsErr
	}
	return bounds, nil
}

func (f *Fake) WindowTitle(id platform.WindowID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.lookup(id)
	if err != nil {
		return "", err
	}
	return w.Title, nil
}

func (f *Fake) IsWindow(id platform.WindowID) (bool, error) {
	f.mu.Lock()
	hook := f.onIsWindow
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isWindowErr != nil {
		return false, f.isWindowErr
	}
	_, ok := f.windows[id]
	return ok, nil
}

func (f *Fake) ActiveWindow() (platform.WindowID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

// Windows lists live windows in ascending id order.
func (f *Fake) Windows() ([]platform.WindowID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]platform.WindowID, 0, len(f.windows))
	for id := range f.windows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *Fake) BringToTop(id platform.WindowID, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.lookup(id); err != nil {
		return err
	}
	f.active = id
	f.activations = append(f.activations, id)
	return nil
}

func (f *Fake) SetWindowBounds(id platform.WindowID, bounds platform.Rect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.lookup(id)
	if err != nil {
		return err
	}
	w.Bounds = bounds
	return nil
}

func (f *Fake) MonitorFromWindow(id platform.WindowID) (platform.MonitorInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.lookup(id)
	if err != nil {
		return platform.MonitorInfo{}, err
	}
	for _, m := range f.monitors {
		if m.ID == w.MonitorID {
			return m, nil
		}
	}
	return platform.MonitorInfo{}, fmt.Errorf("fake: no monitor %d", w.MonitorID)
}

func (f *Fake) Monitors() ([]platform.MonitorInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.MonitorInfo(nil), f.monitors...), nil
}

func (f *Fake) ShowWindow(id platform.WindowID, mode platform.ShowMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.lookup(id)
	if err != nil {
		return err
	}
	w.LastShow = mode
	switch mode {
	case platform.ShowHidden, platform.ShowMinimize:
		w.Visible = false
	default:
		w.Visible = true
	}
	return nil
}

func (f *Fake) RedrawWindow(id platform.WindowID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.lookup(id)
	if err != nil {
		return err
	}
	w.Redraws++
	return nil
}

func (f *Fake) IsWindowVisible(id platform.WindowID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.lookup(id)
	if err != nil {
		return false, err
	}
	return w.Visible, nil
}

func (f *Fake) ToggleWindowTransparency(id platform.WindowID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.lookup(id)
	if err != nil {
		return err
	}
	w.Transparent = enabled
	return nil
}

func (f *Fake) SetWindowOpacity(id platform.WindowID, opacity float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.lookup(id)
	if err != nil {
		return err
	}
	w.Opacity = opacity
	return nil
}

func (f *Fake) WindowOpacity(id platform.WindowID) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.lookup(id)
	if err != nil {
		return 1, err
	}
	return w.Opacity, nil
}

func (f *Fake) SetWindowOwner(id platform.WindowID, owner platform.WindowID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.lookup(id)
	if err != nil {
		return err
	}
	w.Owner = owner
	return nil
}

func (f *Fake) WindowOwner(id platform.WindowID) (platform.WindowID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.lookup(id)
	if err != nil {
		return 0, err
	}
	return w.Owner, nil
}

func (f *Fake) RequestAccessibility() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access, nil
}

func (f *Fake) CreateProcess(path string, cmd string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPID++
	f.launched = append(f.launched, path+" "+cmd)
	return f.nextPID, nil
}

func (f *Fake) WindowIcon(id platform.WindowID, path string, size int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.lookup(id); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("fake: no executable for %d", id)
	}
	return append([]byte(nil), f.icon...), nil
}

func (f *Fake) ReportsPhysicalPixels() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.physical
}

// Minimal exposes only the required Backend methods of a Fake, so every
// optional capability probes as absent.
type Minimal struct {
	F *Fake
}

var _ platform.Backend = Minimal{}

func (m Minimal) InitWindow(id platform.WindowID) (platform.WindowInfo, error) {
	return m.F.InitWindow(id)
}

func (m Minimal) WindowBounds(id platform.WindowID) (platform.Rect, error) {
	return m.F.WindowBounds(id)
}

func (m Minimal) WindowTitle(id platform.WindowID) (string, error) {
	return m.F.WindowTitle(id)
}

func (m Minimal) IsWindow(id platform.WindowID) (bool, error) { return m.F.IsWindow(id) }

func (m Minimal) ActiveWindow() (platform.WindowID, error) { return m.F.ActiveWindow() }

func (m Minimal) Windows() ([]platform.WindowID, error) { return m.F.Windows() }

func (m Minimal) BringToTop(id platform.WindowID, pid int) error { return m.F.BringToTop(id, pid) }

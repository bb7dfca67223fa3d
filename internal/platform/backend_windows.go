//go:build windows

package platform

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	gdi32  = windows.NewLazySystemDLL("gdi32.dll")
	shcore = windows.NewLazySystemDLL("shcore.dll")

	procGetForegroundWindow        = user32.NewProc("GetForegroundWindow")
	procGetWindowRect              = user32.NewProc("GetWindowRect")
	procSetWindowPos               = user32.NewProc("SetWindowPos")
	procGetWindowTextW             = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW       = user32.NewProc("GetWindowTextLengthW")
	procGetWindowThreadProcessId   = user32.NewProc("GetWindowThreadProcessId")
	procIsWindow                   = user32.NewProc("IsWindow")
	procIsWindowVisible            = user32.NewProc("IsWindowVisible")
	procShowWindow                 = user32.NewProc("ShowWindow")
	procSetForegroundWindow        = user32.NewProc("SetForegroundWindow")
	procBringWindowToTop           = user32.NewProc("BringWindowToTop")
	procRedrawWindow               = user32.NewProc("RedrawWindow")
	procGetWindowLongPtrW          = user32.NewProc("GetWindowLongPtrW")
	procSetWindowLongPtrW          = user32.NewProc("SetWindowLongPtrW")
	procSetLayeredWindowAttributes = user32.NewProc("SetLayeredWindowAttributes")
	procGetLayeredWindowAttributes = user32.NewProc("GetLayeredWindowAttributes")
	procGetWindow                  = user32.NewProc("GetWindow")
	procEnumWindows                = user32.NewProc("EnumWindows")
	procEnumDisplayMonitors        = user32.NewProc("EnumDisplayMonitors")
	procMonitorFromWindow          = user32.NewProc("MonitorFromWindow")
	procGetMonitorInfoW            = user32.NewProc("GetMonitorInfoW")
	procPrivateExtractIconsW       = user32.NewProc("PrivateExtractIconsW")
	procDestroyIcon                = user32.NewProc("DestroyIcon")
	procGetIconInfo                = user32.NewProc("GetIconInfo")
	procGetDIBits                  = gdi32.NewProc("GetDIBits")
	procCreateCompatibleDC         = gdi32.NewProc("CreateCompatibleDC")
	procDeleteDC                   = gdi32.NewProc("DeleteDC")
	procDeleteObject               = gdi32.NewProc("DeleteObject")
	procGetDpiForMonitor           = shcore.NewProc("GetDpiForMonitor")
)

const (
	swHide     = 0
	swMaximize = 3
	swShow     = 5
	swMinimize = 6
	swRestore  = 9

	swpNoZOrder   = 0x0004
	swpNoActivate = 0x0010

	rdwInvalidate   = 0x0001
	rdwErase        = 0x0004
	rdwAllChildren  = 0x0080
	rdwFrame        = 0x0400
	wsExLayered     = 0x00080000
	wsExTopmost     = 0x00000008
	lwaAlpha        = 0x2
	gwOwner         = 4
	monitorNearest  = 2
	monitorPrimary  = 1
	mdtEffectiveDPI = 0
	defaultDPI      = 96

	processQueryLimitedInformation = 0x1000
)

// GWL_EXSTYLE and GWLP_HWNDPARENT are negative indices.
var (
	gwlExStyle     int32 = -20
	gwlpHwndParent int32 = -8
)

type monitorInfoEx struct {
	cbSize    uint32
	rcMonitor windows.Rect
	rcWork    windows.Rect
	dwFlags   uint32
	szDevice  [32]uint16
}

type iconInfo struct {
	fIcon    int32
	xHotspot uint32
	yHotspot uint32
	hbmMask  windows.Handle
	hbmColor windows.Handle
}

type bitmapInfoHeader struct {
	biSize          uint32
	biWidth         int32
	biHeight        int32
	biPlanes        uint16
	biBitCount      uint16
	biCompression   uint32
	biSizeImage     uint32
	biXPelsPerMeter int32
	biYPelsPerMeter int32
	biClrUsed       uint32
	biClrImportant  uint32
}

// Enumeration callbacks are created once; windows.NewCallback has a hard
// process-wide limit.
var (
	enumMu            sync.Mutex
	enumWindowsResult []WindowID
	enumMonitorResult []uintptr

	enumWindowsCallback = windows.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		enumWindowsResult = append(enumWindowsResult, WindowID(hwnd))
		return 1
	})
	enumMonitorsCallback = windows.NewCallback(func(hmon uintptr, _ uintptr, _ uintptr, _ uintptr) uintptr {
		enumMonitorResult = append(enumMonitorResult, hmon)
		return 1
	})
)

// WindowsBackend implements the platform primitives on Win32.
type WindowsBackend struct{}

var (
	_ Backend                = (*WindowsBackend)(nil)
	_ BoundsSetter           = (*WindowsBackend)(nil)
	_ MonitorLocator         = (*WindowsBackend)(nil)
	_ MonitorLister          = (*WindowsBackend)(nil)
	_ ShowController         = (*WindowsBackend)(nil)
	_ Redrawer               = (*WindowsBackend)(nil)
	_ VisibilityReporter     = (*WindowsBackend)(nil)
	_ TransparencyController = (*WindowsBackend)(nil)
	_ OpacityController      = (*WindowsBackend)(nil)
	_ OwnerController        = (*WindowsBackend)(nil)
	_ ProcessCreator         = (*WindowsBackend)(nil)
	_ IconSource             = (*WindowsBackend)(nil)
	_ PhysicalPixels         = (*WindowsBackend)(nil)
)

// NewBackend opens the platform backend for this OS.
func NewBackend(_ Options) (Backend, error) {
	if err := user32.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &WindowsBackend{}, nil
}

// ReportsPhysicalPixels is true: Win32 bounds are in device pixels.
func (b *WindowsBackend) ReportsPhysicalPixels() bool { return true }

// InitWindow reads the owning process and the current title.
func (b *WindowsBackend) InitWindow(id WindowID) (WindowInfo, error) {
	hwnd, err := checkWindow(id)
	if err != nil {
		return WindowInfo{}, err
	}

	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))

	layer := 0
	if exStyle, _, _ := procGetWindowLongPtrW.Call(hwnd, uintptr(gwlExStyle)); exStyle&wsExTopmost != 0 {
		layer = 1
	}

	return WindowInfo{
		ProcessID: int(pid),
		Path:      processPath(pid),
		Layer:     layer,
		Name:      windowText(hwnd),
	}, nil
}

// WindowBounds returns the outer window rectangle in device pixels.
func (b *WindowsBackend) WindowBounds(id WindowID) (Rect, error) {
	hwnd, err := checkWindow(id)
	if err != nil {
		return Rect{}, err
	}
	var r windows.Rect
	if ret, _, callErr := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&r))); ret == 0 {
		return Rect{}, fmt.Errorf("GetWindowRect: %w", callErr)
	}
	return rectFromWin(r), nil
}

// WindowTitle returns the window text.
func (b *WindowsBackend) WindowTitle(id WindowID) (string, error) {
	hwnd, err := checkWindow(id)
	if err != nil {
		return "", err
	}
	return windowText(hwnd), nil
}

// IsWindow reports whether the handle names a live window.
func (b *WindowsBackend) IsWindow(id WindowID) (bool, error) {
	ret, _, _ := procIsWindow.Call(uintptr(id))
	return ret != 0, nil
}

// ActiveWindow returns the foreground window, or 0 while focus is changing.
func (b *WindowsBackend) ActiveWindow() (WindowID, error) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	return WindowID(hwnd), nil
}

// Windows returns every top-level window in z-order.
func (b *WindowsBackend) Windows() ([]WindowID, error) {
	enumMu.Lock()
	defer enumMu.Unlock()

	enumWindowsResult = enumWindowsResult[:0]
	if ret, _, callErr := procEnumWindows.Call(enumWindowsCallback, 0); ret == 0 {
		return nil, fmt.Errorf("EnumWindows: %w", callErr)
	}
	out := make([]WindowID, len(enumWindowsResult))
	copy(out, enumWindowsResult)
	return out, nil
}

// BringToTop makes the window the foreground window.
func (b *WindowsBackend) BringToTop(id WindowID, _ int) error {
	hwnd, err := checkWindow(id)
	if err != nil {
		return err
	}
	procSetForegroundWindow.Call(hwnd)
	procBringWindowToTop.Call(hwnd)
	return nil
}

// SetWindowBounds moves and resizes the window in device pixels.
func (b *WindowsBackend) SetWindowBounds(id WindowID, bounds Rect) error {
	hwnd, err := checkWindow(id)
	if err != nil {
		return err
	}
	ret, _, callErr := procSetWindowPos.Call(
		hwnd, 0,
		uintptr(int32(bounds.X)), uintptr(int32(bounds.Y)),
		uintptr(int32(bounds.Width)), uintptr(int32(bounds.Height)),
		swpNoZOrder|swpNoActivate,
	)
	if ret == 0 {
		return fmt.Errorf("SetWindowPos: %w", callErr)
	}
	return nil
}

// MonitorFromWindow returns the monitor nearest to the window.
func (b *WindowsBackend) MonitorFromWindow(id WindowID) (MonitorInfo, error) {
	hwnd, err := checkWindow(id)
	if err != nil {
		return MonitorInfo{}, err
	}
	hmon, _, _ := procMonitorFromWindow.Call(hwnd, monitorNearest)
	if hmon == 0 {
		return MonitorInfo{}, fmt.Errorf("no monitor for window %d", id)
	}
	return monitorInfo(hmon)
}

// Monitors enumerates attached displays.
func (b *WindowsBackend) Monitors() ([]MonitorInfo, error) {
	enumMu.Lock()
	enumMonitorResult = enumMonitorResult[:0]
	ret, _, callErr := procEnumDisplayMonitors.Call(0, 0, enumMonitorsCallback, 0)
	handles := make([]uintptr, len(enumMonitorResult))
	copy(handles, enumMonitorResult)
	enumMu.Unlock()
	if ret == 0 {
		return nil, fmt.Errorf("EnumDisplayMonitors: %w", callErr)
	}

	out := make([]MonitorInfo, 0, len(handles))
	for _, hmon := range handles {
		info, err := monitorInfo(hmon)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// ShowWindow maps a ShowMode onto ShowWindow nCmdShow values.
func (b *WindowsBackend) ShowWindow(id WindowID, mode ShowMode) error {
	hwnd, err := checkWindow(id)
	if err != nil {
		return err
	}
	var cmd uintptr
	switch mode {
	case ShowNormal:
		cmd = swShow
	case ShowHidden:
		cmd = swHide
	case ShowMinimize:
		cmd = swMinimize
	case ShowRestore:
		cmd = swRestore
	case ShowMaximize:
		cmd = swMaximize
	default:
		return fmt.Errorf("unknown show mode %q", mode)
	}
	procShowWindow.Call(hwnd, cmd)
	return nil
}

// RedrawWindow invalidates the window including its frame and children.
func (b *WindowsBackend) RedrawWindow(id WindowID) error {
	hwnd, err := checkWindow(id)
	if err != nil {
		return err
	}
	procRedrawWindow.Call(hwnd, 0, 0, rdwInvalidate|rdwErase|rdwFrame|rdwAllChildren)
	return nil
}

// IsWindowVisible reports the WS_VISIBLE state.
func (b *WindowsBackend) IsWindowVisible(id WindowID) (bool, error) {
	hwnd, err := checkWindow(id)
	if err != nil {
		return false, err
	}
	ret, _, _ := procIsWindowVisible.Call(hwnd)
	return ret != 0, nil
}

// ToggleWindowTransparency sets or clears WS_EX_LAYERED.
func (b *WindowsBackend) ToggleWindowTransparency(id WindowID, enabled bool) error {
	hwnd, err := checkWindow(id)
	if err != nil {
		return err
	}
	style, _, _ := procGetWindowLongPtrW.Call(hwnd, uintptr(gwlExStyle))
	if enabled {
		style |= wsExLayered
	} else {
		style &^= wsExLayered
	}
	procSetWindowLongPtrW.Call(hwnd, uintptr(gwlExStyle), style)
	return nil
}

// SetWindowOpacity sets the layered-window alpha. The window must have
// transparency enabled.
func (b *WindowsBackend) SetWindowOpacity(id WindowID, opacity float64) error {
	hwnd, err := checkWindow(id)
	if err != nil {
		return err
	}
	alpha := uintptr(clampUnit(opacity) * 255)
	if ret, _, callErr := procSetLayeredWindowAttributes.Call(hwnd, 0, alpha, lwaAlpha); ret == 0 {
		return fmt.Errorf("SetLayeredWindowAttributes: %w", callErr)
	}
	return nil
}

// WindowOpacity reads the layered-window alpha; non-layered windows are opaque.
func (b *WindowsBackend) WindowOpacity(id WindowID) (float64, error) {
	hwnd, err := checkWindow(id)
	if err != nil {
		return 1, err
	}
	var (
		key   uint32
		alpha byte
		flags uint32
	)
	ret, _, _ := procGetLayeredWindowAttributes.Call(hwnd,
		uintptr(unsafe.Pointer(&key)),
		uintptr(unsafe.Pointer(&alpha)),
		uintptr(unsafe.Pointer(&flags)))
	if ret == 0 || flags&lwaAlpha == 0 {
		return 1, nil
	}
	return float64(alpha) / 255, nil
}

// SetWindowOwner rewrites GWLP_HWNDPARENT; 0 clears the owner.
func (b *WindowsBackend) SetWindowOwner(id WindowID, owner WindowID) error {
	hwnd, err := checkWindow(id)
	if err != nil {
		return err
	}
	procSetWindowLongPtrW.Call(hwnd, uintptr(gwlpHwndParent), uintptr(owner))
	return nil
}

// WindowOwner returns GW_OWNER, or 0.
func (b *WindowsBackend) WindowOwner(id WindowID) (WindowID, error) {
	hwnd, err := checkWindow(id)
	if err != nil {
		return 0, err
	}
	owner, _, _ := procGetWindow.Call(hwnd, gwOwner)
	return WindowID(owner), nil
}

// CreateProcess launches path with cmd as its command line.
func (b *WindowsBackend) CreateProcess(path string, cmd string) (int, error) {
	app, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	cmdLine, err := windows.UTF16PtrFromString(syscall.EscapeArg(path) + " " + cmd)
	if err != nil {
		return 0, err
	}

	var (
		si windows.StartupInfo
		pi windows.ProcessInformation
	)
	si.Cb = uint32(unsafe.Sizeof(si))
	if err := windows.CreateProcess(app, cmdLine, nil, nil, false, 0, nil, nil, &si, &pi); err != nil {
		return 0, fmt.Errorf("CreateProcess %s: %w", path, err)
	}
	windows.CloseHandle(pi.Thread)
	windows.CloseHandle(pi.Process)
	return int(pi.ProcessId), nil
}

// WindowIcon extracts the first icon of the executable at path.
func (b *WindowsBackend) WindowIcon(_ WindowID, path string, size int) ([]byte, error) {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}

	var (
		hIcon  uintptr
		iconID uint32
	)
	ret, _, _ := procPrivateExtractIconsW.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		0,
		uintptr(size), uintptr(size),
		uintptr(unsafe.Pointer(&hIcon)),
		uintptr(unsafe.Pointer(&iconID)),
		1, 0,
	)
	if ret == 0 || ret == 0xFFFFFFFF || hIcon == 0 {
		return nil, fmt.Errorf("no icon in %s", path)
	}
	defer procDestroyIcon.Call(hIcon)

	var info iconInfo
	if ret, _, callErr := procGetIconInfo.Call(hIcon, uintptr(unsafe.Pointer(&info))); ret == 0 {
		return nil, fmt.Errorf("GetIconInfo: %w", callErr)
	}
	defer procDeleteObject.Call(uintptr(info.hbmMask))
	defer procDeleteObject.Call(uintptr(info.hbmColor))

	img, err := bitmapToImage(info.hbmColor, size)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode icon: %w", err)
	}
	return buf.Bytes(), nil
}

// bitmapToImage reads a size x size 32bpp bitmap top-down and converts
// BGRA to RGBA.
func bitmapToImage(hbm windows.Handle, size int) (image.Image, error) {
	hdc, _, _ := procCreateCompatibleDC.Call(0)
	if hdc == 0 {
		return nil, fmt.Errorf("CreateCompatibleDC failed")
	}
	defer procDeleteDC.Call(hdc)

	// BITMAPINFO is a header followed by a color table that BI_RGB at
	// 32bpp leaves empty; pad for safety.
	var bmi struct {
		header bitmapInfoHeader
		colors [4]uint32
	}
	bmi.header.biSize = uint32(unsafe.Sizeof(bmi.header))
	bmi.header.biWidth = int32(size)
	bmi.header.biHeight = -int32(size)
	bmi.header.biPlanes = 1
	bmi.header.biBitCount = 32

	pix := make([]byte, size*size*4)
	ret, _, _ := procGetDIBits.Call(hdc, uintptr(hbm), 0, uintptr(size),
		uintptr(unsafe.Pointer(&pix[0])), uintptr(unsafe.Pointer(&bmi)), 0)
	if ret == 0 {
		return nil, fmt.Errorf("GetDIBits failed")
	}

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	hasAlpha := false
	for i := 0; i < len(pix); i += 4 {
		img.Pix[i+0] = pix[i+2]
		img.Pix[i+1] = pix[i+1]
		img.Pix[i+2] = pix[i+0]
		img.Pix[i+3] = pix[i+3]
		if pix[i+3] != 0 {
			hasAlpha = true
		}
	}
	// Legacy icons carry no alpha channel.
	if !hasAlpha {
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 0xFF
		}
	}
	return img, nil
}

func checkWindow(id WindowID) (uintptr, error) {
	hwnd := uintptr(id)
	if ret, _, _ := procIsWindow.Call(hwnd); hwnd == 0 || ret == 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidWindow, id)
	}
	return hwnd, nil
}

func windowText(hwnd uintptr) string {
	n, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

func processPath(pid uint32) string {
	if pid == 0 {
		return ""
	}
	h, err := windows.OpenProcess(processQueryLimitedInformation, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return ""
	}
	return windows.UTF16ToString(buf[:size])
}

func monitorInfo(hmon uintptr) (MonitorInfo, error) {
	var mi monitorInfoEx
	mi.cbSize = uint32(unsafe.Sizeof(mi))
	if ret, _, callErr := procGetMonitorInfoW.Call(hmon, uintptr(unsafe.Pointer(&mi))); ret == 0 {
		return MonitorInfo{}, fmt.Errorf("GetMonitorInfoW: %w", callErr)
	}

	scale := 1.0
	if procGetDpiForMonitor.Find() == nil {
		var dpiX, dpiY uint32
		ret, _, _ := procGetDpiForMonitor.Call(hmon, mdtEffectiveDPI,
			uintptr(unsafe.Pointer(&dpiX)), uintptr(unsafe.Pointer(&dpiY)))
		// S_OK
		if ret == 0 && dpiX > 0 {
			scale = float64(dpiX) / defaultDPI
		}
	}

	return MonitorInfo{
		ID:          int(hmon),
		Name:        windows.UTF16ToString(mi.szDevice[:]),
		Bounds:      rectFromWin(mi.rcMonitor),
		WorkArea:    rectFromWin(mi.rcWork),
		ScaleFactor: scale,
		Primary:     mi.dwFlags&monitorPrimary != 0,
	}, nil
}

func rectFromWin(r windows.Rect) Rect {
	return Rect{
		X:      int(r.Left),
		Y:      int(r.Top),
		Width:  int(r.Right - r.Left),
		Height: int(r.Bottom - r.Top),
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

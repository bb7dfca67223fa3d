package window

import "github.com/1broseidon/winwatch/internal/platform"

// Monitor is a physical display. The zero value is not valid; use
// NewMonitor or NullMonitor.
type Monitor struct {
	info platform.MonitorInfo
	null bool
}

// NewMonitor wraps a platform descriptor. A non-positive scale factor is
// treated as 1.
func NewMonitor(info platform.MonitorInfo) Monitor {
	if info.ScaleFactor <= 0 {
		info.ScaleFactor = 1
	}
	return Monitor{info: info}
}

// NullMonitor stands in when the platform cannot introspect monitors. It has
// a scale factor of 1 and is never primary.
func NullMonitor() Monitor {
	return Monitor{info: platform.MonitorInfo{ID: -1, ScaleFactor: 1}, null: true}
}

func (m Monitor) ID() int                 { return m.info.ID }
func (m Monitor) Name() string            { return m.info.Name }
func (m Monitor) Bounds() platform.Rect   { return m.info.Bounds }
func (m Monitor) WorkArea() platform.Rect { return m.info.WorkArea }
func (m Monitor) IsPrimary() bool         { return !m.null && m.info.Primary }

// IsNull reports whether m is the null monitor.
func (m Monitor) IsNull() bool { return m.null }

// ScaleFactor is the ratio of physical to logical pixels.
func (m Monitor) ScaleFactor() float64 {
	if m.null || m.info.ScaleFactor <= 0 {
		return 1
	}
	return m.info.ScaleFactor
}

// Info returns the underlying descriptor.
func (m Monitor) Info() platform.MonitorInfo { return m.info }

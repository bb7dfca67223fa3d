package ipc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/1broseidon/winwatch/internal/platform"
	"github.com/1broseidon/winwatch/internal/watcher"
	"github.com/1broseidon/winwatch/internal/window"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandGetStatus       CommandType = "GET_STATUS"
	CommandListWindows     CommandType = "LIST_WINDOWS"
	CommandGetActiveWindow CommandType = "GET_ACTIVE_WINDOW"
	CommandGetMonitors     CommandType = "GET_MONITORS"
	CommandRecentEvents    CommandType = "RECENT_EVENTS"
	// CommandSubscribe keeps the connection open. After the OK response
	// every event is written as one EventRecord per line.
	CommandSubscribe CommandType = "SUBSCRIBE"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	Running        bool     `json:"running"`
	TrackedWindows int      `json:"tracked_windows"`
	Subscribers    int      `json:"subscribers"`
	UptimeSeconds  int64    `json:"uptime_seconds"`
	PollIntervalMS int64    `json:"poll_interval_ms"`
	Capabilities   []string `json:"capabilities"`
}

// WindowData describes one window as seen at request time.
type WindowData struct {
	ID       uint32        `json:"id"`
	PID      int           `json:"pid"`
	Path     string        `json:"path"`
	BundleID string        `json:"bundle_id,omitempty"`
	Layer    int           `json:"layer"`
	Title    string        `json:"title"`
	Bounds   platform.Rect `json:"bounds"`
	Visible  bool          `json:"visible"`
	Monitor  int           `json:"monitor"`
}

// WindowsData represents the data returned by LIST_WINDOWS
type WindowsData struct {
	Windows []WindowData `json:"windows"`
}

// MonitorData describes one display.
type MonitorData struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Bounds      platform.Rect `json:"bounds"`
	WorkArea    platform.Rect `json:"work_area"`
	ScaleFactor float64       `json:"scale_factor"`
	Primary     bool          `json:"primary"`
}

// MonitorsData represents the data returned by GET_MONITORS
type MonitorsData struct {
	Monitors []MonitorData `json:"monitors"`
}

// RecentEventsPayload filters RECENT_EVENTS. Zero values mean "all".
type RecentEventsPayload struct {
	Limit int    `json:"limit,omitempty"`
	Type  string `json:"type,omitempty"`
}

// EventsData represents the data returned by RECENT_EVENTS
type EventsData struct {
	Events []EventRecord `json:"events"`
}

// SubscribePayload restricts a SUBSCRIBE stream to the listed event types.
type SubscribePayload struct {
	Types []string `json:"types,omitempty"`
}

// SubscribeData acknowledges a SUBSCRIBE request.
type SubscribeData struct {
	Types []string `json:"types"`
	Queue int      `json:"queue"`
}

// EventRecord is the wire form of a watcher event.
type EventRecord struct {
	Type     string         `json:"type"`
	WindowID uint32         `json:"window_id"`
	Title    string         `json:"title"`
	PID      int            `json:"pid"`
	Path     string         `json:"path"`
	Bounds   *platform.Rect `json:"bounds,omitempty"`
	Visible  *bool          `json:"visible,omitempty"`
	Time     time.Time      `json:"time"`
}

// NewEventRecord converts ev. The title is read at conversion time and
// falls back to the title captured when the window was first seen.
func NewEventRecord(ev watcher.Event) EventRecord {
	rec := EventRecord{
		Type: string(ev.Type),
		Time: ev.Time,
	}
	if w := ev.Window; w != nil {
		rec.WindowID = uint32(w.ID)
		rec.PID = w.ProcessID
		rec.Path = w.Path
		rec.Title = w.InitialTitle
		if title, err := w.Title(); err == nil && title != "" {
			rec.Title = title
		}
	}
	switch ev.Type {
	case watcher.EventBoundsChange:
		bounds := ev.Bounds
		rec.Bounds = &bounds
	case watcher.EventVisibilityChange:
		visible := ev.Visible
		rec.Visible = &visible
	}
	return rec
}

// NewWindowData snapshots w. Failed queries leave the zero value (or the
// initial title) in place; the window may have gone away mid-request.
func NewWindowData(w *window.Window) WindowData {
	data := WindowData{
		ID:       uint32(w.ID),
		PID:      w.ProcessID,
		Path:     w.Path,
		BundleID: w.BundleID,
		Layer:    w.Layer,
		Title:    w.InitialTitle,
		Visible:  true,
		Monitor:  -1,
	}
	if title, err := w.Title(); err == nil {
		data.Title = title
	}
	if bounds, err := w.Bounds(); err == nil {
		data.Bounds = bounds
	}
	if visible, err := w.IsVisible(); err == nil {
		data.Visible = visible
	}
	if m, err := w.Monitor(); err == nil {
		data.Monitor = m.ID()
	}
	return data
}

// NewMonitorData converts m.
func NewMonitorData(m window.Monitor) MonitorData {
	return MonitorData{
		ID:          m.ID(),
		Name:        m.Name(),
		Bounds:      m.Bounds(),
		WorkArea:    m.WorkArea(),
		ScaleFactor: m.ScaleFactor(),
		Primary:     m.IsPrimary(),
	}
}

// ParseEventTypes validates names. An empty list selects every type.
func ParseEventTypes(names []string) ([]watcher.EventType, error) {
	if len(names) == 0 {
		return watcher.EventTypes, nil
	}
	out := make([]watcher.EventType, 0, len(names))
	for _, name := range names {
		t := watcher.EventType(name)
		if !t.Valid() {
			return nil, fmt.Errorf("unknown event type %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
	}

	return &Response{
		Status: "OK",
		Data:   rawData,
	}, nil
}

// NewErrorResponse creates an error response
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a JSON request
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal serializes a response to JSON
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

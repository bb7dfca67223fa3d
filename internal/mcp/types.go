package mcp

import "github.com/1broseidon/winwatch/internal/ipc"

// EmptyInput is the input for tools that take no arguments.
type EmptyInput struct{}

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct {
	VisibleOnly   bool   `json:"visible_only,omitempty" jsonschema:"Only return windows that are currently visible"`
	TitleContains string `json:"title_contains,omitempty" jsonschema:"Case-insensitive substring the window title must contain"`
	PathContains  string `json:"path_contains,omitempty" jsonschema:"Case-insensitive substring the executable path must contain"`
}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	Windows []ipc.WindowData `json:"windows"`
	Total   int              `json:"total"`
}

// ActiveWindowOutput is the output for the get_active_window tool.
type ActiveWindowOutput struct {
	Window ipc.WindowData `json:"window"`
}

// ListMonitorsOutput is the output for the list_monitors tool.
type ListMonitorsOutput struct {
	Monitors []ipc.MonitorData `json:"monitors"`
	Primary  *int              `json:"primary,omitempty"`
}

// RecentEventsInput is the input for the recent_events tool.
type RecentEventsInput struct {
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of events to return, newest kept (default: 50)"`
	Type     string `json:"type,omitempty" jsonschema:"Only return one event type: new-window, window-activated, window-bounds-change or window-visibility-change"`
	WindowID uint32 `json:"window_id,omitempty" jsonschema:"Only return events for this window id"`
}

// RecentEventsOutput is the output for the recent_events tool.
type RecentEventsOutput struct {
	Events []ipc.EventRecord `json:"events"`
}

// StatusOutput is the output for the get_status tool.
type StatusOutput struct {
	Status ipc.StatusData `json:"status"`
}

package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/winwatch/internal/ipc"
	"github.com/1broseidon/winwatch/internal/watcher"
)

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	status, err := s.source.GetStatus()
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{Status: *status}, nil
}

func (s *Server) handleListWindows(_ context.Context, _ *mcpsdk.CallToolRequest, args ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	windows, err := s.source.ListWindows()
	if err != nil {
		return nil, ListWindowsOutput{}, err
	}

	title := strings.ToLower(args.TitleContains)
	path := strings.ToLower(args.PathContains)
	out := ListWindowsOutput{Windows: make([]ipc.WindowData, 0, len(windows)), Total: len(windows)}
	for _, w := range windows {
		if args.VisibleOnly && !w.Visible {
			continue
		}
		if title != "" && !strings.Contains(strings.ToLower(w.Title), title) {
			continue
		}
		if path != "" && !strings.Contains(strings.ToLower(w.Path), path) {
			continue
		}
		out.Windows = append(out.Windows, w)
	}
	return nil, out, nil
}

func (s *Server) handleGetActiveWindow(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ActiveWindowOutput, error) {
	w, err := s.source.ActiveWindow()
	if err != nil {
		return nil, ActiveWindowOutput{}, fmt.Errorf("no active window: %w", err)
	}
	return nil, ActiveWindowOutput{Window: *w}, nil
}

func (s *Server) handleListMonitors(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ListMonitorsOutput, error) {
	monitors, err := s.source.GetMonitors()
	if err != nil {
		return nil, ListMonitorsOutput{}, err
	}
	out := ListMonitorsOutput{Monitors: monitors}
	if out.Monitors == nil {
		out.Monitors = []ipc.MonitorData{}
	}
	for _, m := range monitors {
		if m.Primary {
			id := m.ID
			out.Primary = &id
			break
		}
	}
	return nil, out, nil
}

func (s *Server) handleRecentEvents(_ context.Context, _ *mcpsdk.CallToolRequest, args RecentEventsInput) (*mcpsdk.CallToolResult, RecentEventsOutput, error) {
	if args.Limit < 0 {
		return nil, RecentEventsOutput{}, fmt.Errorf("limit must be >= 0")
	}
	if args.Type != "" && !watcher.EventType(args.Type).Valid() {
		return nil, RecentEventsOutput{}, fmt.Errorf("unknown event type %q", args.Type)
	}
	limit := args.Limit
	if limit == 0 {
		limit = defaultEventLimit
	}

	// Filtering by window happens here, so fetch everything and trim after.
	fetch := limit
	if args.WindowID != 0 {
		fetch = 0
	}
	events, err := s.source.RecentEvents(fetch, args.Type)
	if err != nil {
		return nil, RecentEventsOutput{}, err
	}

	out := make([]ipc.EventRecord, 0, len(events))
	for _, ev := range events {
		if args.WindowID != 0 && ev.WindowID != args.WindowID {
			continue
		}
		out = append(out, ev)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return nil, RecentEventsOutput{Events: out}, nil
}

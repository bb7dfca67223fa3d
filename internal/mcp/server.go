// Package mcp exposes the daemon's window view to MCP clients over stdio.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/winwatch/internal/ipc"
)

const (
	ServerName    = "winwatch"
	ServerVersion = "0.1.0"

	defaultEventLimit = 50
)

// Source answers the queries behind the tools. *ipc.Client implements it
// against a running daemon.
type Source interface {
	GetStatus() (*ipc.StatusData, error)
	ListWindows() ([]ipc.WindowData, error)
	ActiveWindow() (*ipc.WindowData, error)
	GetMonitors() ([]ipc.MonitorData, error)
	RecentEvents(limit int, eventType string) ([]ipc.EventRecord, error)
}

var _ Source = (*ipc.Client)(nil)

// Server is the MCP server for window queries.
type Server struct {
	mcpServer *mcpsdk.Server
	source    Source
}

// NewServer creates an MCP server that reads from source.
func NewServer(source Source) *Server {
	s := &Server{source: source}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// RunTransport serves on an arbitrary transport.
func (s *Server) RunTransport(ctx context.Context, t mcpsdk.Transport) error {
	return s.mcpServer.Run(ctx, t)
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report whether the winwatch daemon is polling, how many windows it tracks, its poll interval and the platform capabilities it detected.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List open windows with process id, executable path, title, bounds, visibility and monitor. Optionally filter by visibility, title or path.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_active_window",
		Description: "Return the window that currently has focus.",
	}, s.handleGetActiveWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_monitors",
		Description: "List displays with bounds, work area and scale factor, and identify the primary one.",
	}, s.handleListMonitors)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "recent_events",
		Description: "Return the most recent window events the daemon observed (new-window, window-activated, window-bounds-change, window-visibility-change), oldest first.",
	}, s.handleRecentEvents)
}

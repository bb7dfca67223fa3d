// Package tui implements "winwatch top", a live terminal view of the
// daemon's windows, monitors and event stream.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/winwatch/internal/ipc"
)

// Source is the daemon state the TUI polls.
type Source interface {
	GetStatus() (*ipc.StatusData, error)
	ListWindows() ([]ipc.WindowData, error)
	GetMonitors() ([]ipc.MonitorData, error)
}

var _ Source = (*ipc.Client)(nil)

// Run shows the TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, client *ipc.Client) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(client), tea.WithAltScreen(), tea.WithContext(ctx))

	streamErr := make(chan error, 1)
	go func() {
		streamErr <- client.Subscribe(ctx, nil, func(rec ipc.EventRecord) error {
			p.Send(eventMsg(rec))
			return nil
		})
	}()

	_, err := p.Run()
	cancel()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if err := <-streamErr; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("event stream: %w", err)
	}
	return nil
}

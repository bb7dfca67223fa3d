package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/winwatch/internal/ipc"
	"github.com/1broseidon/winwatch/internal/platform"
)

type fakeSource struct {
	windows  []ipc.WindowData
	monitors []ipc.MonitorData
	err      error
}

func (f *fakeSource) GetStatus() (*ipc.StatusData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ipc.StatusData{Running: true, TrackedWindows: len(f.windows), PollIntervalMS: 50}, nil
}

func (f *fakeSource) ListWindows() ([]ipc.WindowData, error) { return f.windows, f.err }
func (f *fakeSource) GetMonitors() ([]ipc.MonitorData, error) { return f.monitors, f.err }

func sized(t *testing.T, m model) model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return next.(model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_RefreshPopulatesTabs(t *testing.T) {
	src := &fakeSource{
		windows: []ipc.WindowData{
			{ID: 1, PID: 10, Title: "xterm", Visible: true},
			{ID: 2, PID: 20, Title: "Firefox", Visible: false},
		},
		monitors: []ipc.MonitorData{{ID: 0, Name: "eDP-1", ScaleFactor: 2, Primary: true}},
	}
	m := sized(t, newModel(src))

	msg := m.refresh()()
	next, _ := m.Update(msg)
	m = next.(model)

	if m.status == nil || m.status.TrackedWindows != 2 {
		t.Fatalf("status = %+v", m.status)
	}
	if n := len(m.windows.Items()); n != 2 {
		t.Fatalf("window items = %d, want 2", n)
	}
	view := m.View()
	if !strings.Contains(view, "xterm") || !strings.Contains(view, "daemon connected") {
		t.Fatalf("windows view missing content:\n%s", view)
	}

	next, _ = m.Update(key("2"))
	m = next.(model)
	if m.activeTab != TabMonitors || !strings.Contains(m.View(), "eDP-1") {
		t.Fatalf("monitors tab = %v:\n%s", m.activeTab, m.View())
	}
}

func TestModel_RefreshErrorKeepsLastSnapshot(t *testing.T) {
	src := &fakeSource{windows: []ipc.WindowData{{ID: 1, Title: "xterm", Visible: true}}}
	m := sized(t, newModel(src))
	next, _ := m.Update(m.refresh()())
	m = next.(model)

	src.err = errors.New("failed to connect to daemon")
	next, _ = m.Update(m.refresh()())
	m = next.(model)

	if m.lastErr == "" {
		t.Fatal("expected lastErr after failed refresh")
	}
	if len(m.windows.Items()) != 1 {
		t.Fatal("failed refresh dropped the previous windows")
	}
	if !strings.Contains(m.View(), "daemon not reachable") {
		t.Fatalf("status bar does not show the error:\n%s", m.View())
	}
}

func TestModel_TabNavigation(t *testing.T) {
	tests := []struct {
		keys []string
		want Tab
	}{
		{nil, TabWindows},
		{[]string{"tab"}, TabMonitors},
		{[]string{"tab", "tab", "tab"}, TabWindows},
		{[]string{"shift+tab"}, TabEvents},
		{[]string{"3", "1"}, TabWindows},
		{[]string{"3"}, TabEvents},
	}
	for _, tt := range tests {
		m := sized(t, newModel(&fakeSource{}))
		for _, k := range tt.keys {
			next, _ := m.Update(key(k))
			m = next.(model)
		}
		if m.activeTab != tt.want {
			t.Fatalf("keys %v: tab = %v, want %v", tt.keys, m.activeTab, tt.want)
		}
	}
}

func TestModel_QuitKeys(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		m := sized(t, newModel(&fakeSource{}))
		_, cmd := m.Update(key(k))
		if cmd == nil {
			t.Fatalf("%s: no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("%s did not quit", k)
		}
	}
}

func TestModel_EventsAreCapped(t *testing.T) {
	m := sized(t, newModel(&fakeSource{}))
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	for i := 0; i < maxEvents+10; i++ {
		next, _ := m.Update(eventMsg{Type: "window-bounds-change", WindowID: uint32(i + 1), Bounds: &platform.Rect{Width: 10, Height: 10}, Time: ts})
		m = next.(model)
	}
	if len(m.events) != maxEvents {
		t.Fatalf("events = %d, want %d", len(m.events), maxEvents)
	}
	if m.events[0].WindowID != 11 {
		t.Fatalf("oldest kept event = %d, want 11", m.events[0].WindowID)
	}

	next, _ := m.Update(key("3"))
	m = next.(model)
	view := m.View()
	if !strings.Contains(view, "window-bounds-change") || !strings.Contains(view, "10x10+0+0") {
		t.Fatalf("events view:\n%s", view)
	}
}

func TestEventDetail(t *testing.T) {
	shown, hidden := true, false
	tests := []struct {
		ev   ipc.EventRecord
		want string
	}{
		{ipc.EventRecord{Title: "xterm"}, "xterm"},
		{ipc.EventRecord{Title: "xterm", Visible: &shown}, "shown  xterm"},
		{ipc.EventRecord{Title: "xterm", Visible: &hidden}, "hidden  xterm"},
		{ipc.EventRecord{Title: "xterm", Bounds: &platform.Rect{X: 1, Y: 2, Width: 3, Height: 4}}, "3x4+1+2  xterm"},
	}
	for _, tt := range tests {
		if got := eventDetail(tt.ev); got != tt.want {
			t.Fatalf("eventDetail(%+v) = %q, want %q", tt.ev, got, tt.want)
		}
	}
}

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/winwatch/internal/ipc"
)

const (
	refreshInterval = 2 * time.Second
	maxEvents       = 500
)

// windowItem implements list.Item for the Windows tab.
type windowItem struct {
	data ipc.WindowData
}

func (i windowItem) Title() string {
	title := i.data.Title
	if title == "" {
		title = "(untitled)"
	}
	if !i.data.Visible {
		title += " [hidden]"
	}
	return title
}

func (i windowItem) Description() string {
	return fmt.Sprintf("0x%08x  pid %d  %s  %s", i.data.ID, i.data.PID, i.data.Bounds, i.data.Path)
}

func (i windowItem) FilterValue() string { return i.data.Title + " " + i.data.Path }

// snapshotMsg carries one refresh of daemon state.
type snapshotMsg struct {
	status   *ipc.StatusData
	windows  []ipc.WindowData
	monitors []ipc.MonitorData
	err      error
}

// eventMsg delivers one streamed event.
type eventMsg ipc.EventRecord

type tickMsg struct{}

// model is the root bubbletea model for the TUI.
type model struct {
	source Source

	activeTab Tab
	windows   list.Model
	monitors  []ipc.MonitorData
	events    []ipc.EventRecord
	status    *ipc.StatusData
	lastErr   string

	width  int
	height int
}

func newModel(source Source) model {
	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Windows"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	return model{
		source:    source,
		activeTab: TabWindows,
		windows:   l,
	}
}

func (m model) refresh() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		var msg snapshotMsg
		msg.status, msg.err = source.GetStatus()
		if msg.err != nil {
			return msg
		}
		if msg.windows, msg.err = source.ListWindows(); msg.err != nil {
			return msg
		}
		msg.monitors, msg.err = source.GetMonitors()
		return msg
	}
}

func scheduleTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

// contentHeight returns the height available for tab content.
func (m model) contentHeight() int {
	// status bar (1) + tab bar (2 with margin) + help bar (1)
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), scheduleTick())
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.windows.SetSize(m.width, m.contentHeight())
		return m, nil

	case snapshotMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
			return m, nil
		}
		m.lastErr = ""
		m.status = msg.status
		m.monitors = msg.monitors
		items := make([]list.Item, 0, len(msg.windows))
		for _, w := range msg.windows {
			items = append(items, windowItem{data: w})
		}
		return m, m.windows.SetItems(items)

	case tickMsg:
		return m, tea.Batch(m.refresh(), scheduleTick())

	case eventMsg:
		m.events = append(m.events, ipc.EventRecord(msg))
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		// The filter input consumes keys while it is open.
		if m.activeTab == TabWindows && m.windows.SettingFilter() {
			break
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1":
			m.activeTab = TabWindows
			return m, nil
		case "2":
			m.activeTab = TabMonitors
			return m, nil
		case "3":
			m.activeTab = TabEvents
			return m, nil
		case "r":
			return m, m.refresh()
		}
	}

	if m.activeTab == TabWindows {
		var cmd tea.Cmd
		m.windows, cmd = m.windows.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.status, m.lastErr, m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.activeTab, m.width)

	usedHeight := lipgloss.Height(statusBar) + lipgloss.Height(tabBar) + lipgloss.Height(helpBar)
	contentHeight := m.height - usedHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	switch m.activeTab {
	case TabWindows:
		content = m.windows.View()
	case TabMonitors:
		content = renderMonitors(m.monitors, m.width, contentHeight)
	case TabEvents:
		content = renderEvents(m.events, m.width, contentHeight)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		content,
		helpBar,
	)
}

func renderMonitors(monitors []ipc.MonitorData, width, height int) string {
	style := lipgloss.NewStyle().Width(width).Height(height).Padding(0, 1)
	if len(monitors) == 0 {
		return style.Render(dimStyle.Render("no monitors reported"))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-4s %-12s %-20s %-20s %s\n", "ID", "NAME", "BOUNDS", "WORK AREA", "SCALE")
	for _, mon := range monitors {
		line := fmt.Sprintf("%-4d %-12s %-20s %-20s %.2f", mon.ID, mon.Name, mon.Bounds, mon.WorkArea, mon.ScaleFactor)
		if mon.Primary {
			line = lipgloss.NewStyle().Bold(true).Render(line + "  primary")
		}
		b.WriteString(line + "\n")
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

// renderEvents shows the newest events that fit in height, oldest first.
func renderEvents(events []ipc.EventRecord, width, height int) string {
	style := lipgloss.NewStyle().Width(width).Height(height).Padding(0, 1)
	if len(events) == 0 {
		return style.Render(dimStyle.Render("waiting for events..."))
	}

	if len(events) > height {
		events = events[len(events)-height:]
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		typ := lipgloss.NewStyle().Foreground(eventColors[ev.Type]).Render(fmt.Sprintf("%-24s", ev.Type))
		line := fmt.Sprintf("%s  %s 0x%08x  %s",
			ev.Time.Local().Format("15:04:05.000"), typ, ev.WindowID, eventDetail(ev))
		lines = append(lines, line)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func eventDetail(ev ipc.EventRecord) string {
	switch {
	case ev.Bounds != nil:
		return ev.Bounds.String() + "  " + ev.Title
	case ev.Visible != nil && *ev.Visible:
		return "shown  " + ev.Title
	case ev.Visible != nil:
		return "hidden  " + ev.Title
	default:
		return ev.Title
	}
}

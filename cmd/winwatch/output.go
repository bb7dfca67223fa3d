package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/1broseidon/winwatch/internal/ipc"
)

func printWindowTable(w io.Writer, windows []ipc.WindowData) {
	fmt.Fprintf(w, "%-10s %-7s %-8s %-20s %s\n", "ID", "PID", "VISIBLE", "BOUNDS", "TITLE")
	for _, win := range windows {
		fmt.Fprintf(w, "0x%08x %-7d %-8v %-20s %s\n", win.ID, win.PID, win.Visible, win.Bounds.String(), win.Title)
	}
}

func printMonitorTable(w io.Writer, monitors []ipc.MonitorData) {
	fmt.Fprintf(w, "%-4s %-12s %-20s %-6s %s\n", "ID", "NAME", "BOUNDS", "SCALE", "PRIMARY")
	for _, m := range monitors {
		fmt.Fprintf(w, "%-4d %-12s %-20s %-6.2f %v\n", m.ID, m.Name, m.Bounds.String(), m.ScaleFactor, m.Primary)
	}
}

// formatEventLine renders rec for a terminal, truncated to width columns
// when width > 0.
func formatEventLine(rec ipc.EventRecord, width int) string {
	var detail string
	switch {
	case rec.Bounds != nil:
		detail = rec.Bounds.String()
	case rec.Visible != nil:
		if *rec.Visible {
			detail = "shown"
		} else {
			detail = "hidden"
		}
	}

	line := fmt.Sprintf("%s  %-24s 0x%08x  pid %-7d %-18s %s",
		rec.Time.Local().Format("15:04:05.000"), rec.Type, rec.WindowID, rec.PID, detail, rec.Title)
	line = strings.TrimRight(line, " ")
	if r := []rune(line); width > 1 && len(r) > width {
		line = string(r[:width-1]) + "…"
	}
	return line
}

func formatUptime(seconds int64) string {
	return (time.Duration(seconds) * time.Second).String()
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/winwatch/internal/config"
	"github.com/1broseidon/winwatch/internal/ipc"
	"github.com/1broseidon/winwatch/internal/platform"
)

func TestParseWindowID(t *testing.T) {
	tests := []struct {
		in      string
		want    platform.WindowID
		wantErr bool
	}{
		{"42", 42, false},
		{"0x2a", 42, false},
		{"0X0480000A", 0x0480000a, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"0x1ffffffff", 0, true},
		{"xterm", 0, true},
	}
	for _, tt := range tests {
		got, err := parseWindowID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseWindowID(%q) err=%v, wantErr=%v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("parseWindowID(%q)=%d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSplitTypes(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"new-window", []string{"new-window"}},
		{" new-window , window-activated,,", []string{"new-window", "window-activated"}},
	}
	for _, tt := range tests {
		if got := splitTypes(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("splitTypes(%q)=%v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatEventLine(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	hidden := false

	tests := []struct {
		name     string
		rec      ipc.EventRecord
		width    int
		contains []string
	}{
		{
			name:     "bounds",
			rec:      ipc.EventRecord{Type: "window-bounds-change", WindowID: 0x2a, PID: 7, Title: "xterm", Bounds: &platform.Rect{X: 1, Y: 2, Width: 3, Height: 4}, Time: ts},
			contains: []string{"03:04:05.000", "window-bounds-change", "0x0000002a", "pid 7", "xterm"},
		},
		{
			name:     "visibility",
			rec:      ipc.EventRecord{Type: "window-visibility-change", WindowID: 1, Visible: &hidden, Time: ts},
			contains: []string{"hidden"},
		},
		{
			name:     "new window",
			rec:      ipc.EventRecord{Type: "new-window", WindowID: 1, Title: "Firefox", Time: ts},
			contains: []string{"new-window", "Firefox"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := formatEventLine(tt.rec, tt.width)
			for _, want := range tt.contains {
				if !strings.Contains(line, want) {
					t.Fatalf("line %q missing %q", line, want)
				}
			}
		})
	}

	long := ipc.EventRecord{Type: "new-window", WindowID: 1, Title: strings.Repeat("x", 200), Time: ts}
	line := formatEventLine(long, 60)
	if n := len([]rune(line)); n != 60 {
		t.Fatalf("truncated line has %d runes, want 60", n)
	}
	if !strings.HasSuffix(line, "…") {
		t.Fatalf("truncated line %q lacks ellipsis", line)
	}
}

func TestPrintTables(t *testing.T) {
	var buf bytes.Buffer
	printWindowTable(&buf, []ipc.WindowData{
		{ID: 0x2a, PID: 7, Title: "xterm", Visible: true, Bounds: platform.Rect{Width: 640, Height: 480}},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "0x0000002a") || !strings.HasSuffix(lines[1], "xterm") {
		t.Fatalf("window table:\n%s", buf.String())
	}

	buf.Reset()
	printMonitorTable(&buf, []ipc.MonitorData{{ID: 1, Name: "eDP-1", ScaleFactor: 2, Primary: true}})
	if !strings.Contains(buf.String(), "eDP-1") || !strings.Contains(buf.String(), "2.00") {
		t.Fatalf("monitor table:\n%s", buf.String())
	}
}

func TestRunConfigInitWritesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if rc := runConfig([]string{"init"}); rc != 0 {
		t.Fatalf("runConfig init rc=%d, want 0", rc)
	}
	path := filepath.Join(home, ".config", "winwatch", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if rc := runConfig([]string{"init"}); rc != 1 {
		t.Fatalf("second init rc=%d, want 1", rc)
	}
	if rc := runConfig([]string{"init", "--force"}); rc != 0 {
		t.Fatalf("init --force rc=%d, want 0", rc)
	}

	res, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if res.Config.PollInterval != config.DefaultConfig().PollInterval {
		t.Fatalf("poll_interval=%s, want default", res.Config.PollInterval)
	}
	if rc := runConfig([]string{"validate", "--path", path}); rc != 0 {
		t.Fatalf("validate rc=%d, want 0", rc)
	}
}

func TestRunConfigUnknownSubcommand(t *testing.T) {
	if rc := runConfig([]string{"bogus"}); rc != 2 {
		t.Fatalf("rc=%d, want 2", rc)
	}
}

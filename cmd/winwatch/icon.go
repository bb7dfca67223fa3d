package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/term"

	"github.com/1broseidon/winwatch/internal/platform"
	"github.com/1broseidon/winwatch/internal/window"
)

func runIcon(args []string) int {
	fs := flag.NewFlagSet("icon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/winwatch/config.yaml)")
	size := fs.Int("size", window.DefaultIconSize, "Icon size: 16, 32, 64 or 256")
	out := fs.String("o", "", "Output file (default: stdout)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winwatch icon [--size N] [-o FILE] <window-id>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Write a window's icon as PNG. Window ids may be decimal or 0x-prefixed hex.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	id, err := parseWindowID(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if *out == "" && term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "refusing to write PNG data to a terminal; use -o FILE or redirect stdout")
		return 2
	}

	cfg, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeBackend()

	w, err := window.New(platform.Probe(backend), id)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	data, err := w.Icon(*size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", w, err)
		return 1
	}

	if *out == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}
	if err := os.WriteFile(*out, data, 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func parseWindowID(s string) (platform.WindowID, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid window id %q", s)
	}
	return platform.WindowID(n), nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/1broseidon/winwatch/internal/ipc"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jsonOut := fs.Bool("json", false, "Output JSON lines even on a terminal")
	types := fs.String("type", "", "Comma-separated event types (default: all)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winwatch watch [--json] [--type TYPES]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Stream window events from the daemon until interrupted.")
		fmt.Fprintln(os.Stderr, "Prints a table on a terminal and JSON lines otherwise.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Event types: new-window, window-activated, window-bounds-change,")
		fmt.Fprintln(os.Stderr, "             window-visibility-change")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	selected := splitTypes(*types)
	if _, err := ipc.ParseEventTypes(selected); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fd := int(os.Stdout.Fd())
	tty := !*jsonOut && term.IsTerminal(fd)
	enc := json.NewEncoder(os.Stdout)

	err := ipc.NewClient().Subscribe(ctx, selected, func(rec ipc.EventRecord) error {
		if !tty {
			return enc.Encode(rec)
		}
		width := 0
		if w, _, err := term.GetSize(fd); err == nil {
			width = w
		}
		_, err := fmt.Println(formatEventLine(rec, width))
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func splitTypes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

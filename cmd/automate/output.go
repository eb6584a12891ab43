package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kalambet/automate/internal/api"
	"github.com/kalambet/automate/internal/storage"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// userOut receives all human-facing messages. Stdout is kept for data
// (settings JSON, config listings, MCP frames).
var userOut io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func emit(color, symbol, format string, args []any) {
	fmt.Fprintln(userOut, colorize(color, symbol+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { emit(colorGreen, "✓", format, args) }
func printError(format string, args ...any)   { emit(colorRed, "✗", format, args) }
func printWarning(format string, args ...any) { emit(colorYellow, "⚠", format, args) }
func printStep(format string, args ...any)    { emit(colorCyan, "→", format, args) }

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(userOut, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

func shortcutLabel(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// printShortcutTaken reports a shortcut nobody but its holder may use.
// holder is "" when the caller does not know it.
func printShortcutTaken(accel, holder string) {
	if holder == "" {
		printWarning("Shortcut %s is not available", shortcutLabel(accel))
		return
	}
	printWarning("Shortcut %s is held by %s", shortcutLabel(accel), holder)
}

// printSaveOutcome reports the answer to a settings submission and
// returns errNotSaved unless a row was actually written. A nil ack means
// the shortcut was refused.
func printSaveOutcome(accel string, ack *storage.WriteAck) error {
	switch {
	case ack == nil:
		printShortcutTaken(accel, "")
		printStep("Nothing was saved; pick another shortcut")
		return errNotSaved
	case ack.Changes == 0:
		printWarning("Shortcut accepted but no settings row was updated; the database may need repair")
		return errNotSaved
	default:
		printSuccess("Saved settings (%d row changed)", ack.Changes)
		return nil
	}
}

func printShortcutStatus(st api.ShortcutStatus) {
	printStatus("Shortcut", "%s", st.Canonical)
	if st.Registerable {
		if st.Owner != "" {
			printStatus("Held by", "%s", st.Owner)
		}
		printSuccess("Available")
		return
	}
	printShortcutTaken(st.Canonical, st.Owner)
}

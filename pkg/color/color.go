// Package color provides terminal color output support for savify.
// It respects the NO_COLOR environment variable (https://no-color.org/).
package color

import (
	"os"
	"sync"

	fcolor "github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var initOnce sync.Once

// Init initializes the color system based on environment and flags.
// fatih/color already honours NO_COLOR, TERM=dumb and a non-TTY stdout;
// the flag adds an explicit opt-out.
func Init(noColorFlag bool) {
	initOnce.Do(func() {
		if noColorFlag {
			fcolor.NoColor = true
		}
	})
}

// Enabled returns true if color output is enabled.
func Enabled() bool {
	Init(false)
	return !fcolor.NoColor
}

// Disable turns off color output.
func Disable() {
	fcolor.NoColor = true
}

// Enable turns on color output.
func Enable() {
	fcolor.NoColor = false
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var (
	green   = fcolor.New(fcolor.FgGreen)
	red     = fcolor.New(fcolor.FgRed)
	yellow  = fcolor.New(fcolor.FgYellow)
	cyan    = fcolor.New(fcolor.FgCyan)
	blue    = fcolor.New(fcolor.FgBlue)
	bold    = fcolor.New(fcolor.Bold)
	faint   = fcolor.New(fcolor.Faint)
	removed = fcolor.New(fcolor.FgRed)
	added   = fcolor.New(fcolor.FgGreen)
)

// Success formats a success message in green.
func Success(s string) string {
	return green.Sprint(s)
}

// Successf formats a success message with printf-style arguments.
func Successf(format string, args ...any) string {
	return green.Sprintf(format, args...)
}

// Error formats an error message in red.
func Error(s string) string {
	return red.Sprint(s)
}

// Warning formats a warning message in yellow.
func Warning(s string) string {
	return yellow.Sprint(s)
}

// Info formats an informational message in cyan.
func Info(s string) string {
	return cyan.Sprint(s)
}

// SnapshotID formats a snapshot ID in cyan.
func SnapshotID(s string) string {
	return cyan.Sprint(s)
}

// Line formats a history line identifier in blue.
func Line(s string) string {
	return blue.Sprint(s)
}

// Header formats a header in bold.
func Header(s string) string {
	return bold.Sprint(s)
}

// Dim formats dimmed text (for secondary information).
func Dim(s string) string {
	return faint.Sprint(s)
}

// Highlight highlights important text in yellow.
func Highlight(s string) string {
	return yellow.Sprint(s)
}

// Removed formats a deleted diff line.
func Removed(s string) string {
	return removed.Sprint(s)
}

// Added formats an inserted diff line.
func Added(s string) string {
	return added.Sprint(s)
}

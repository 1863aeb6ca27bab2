// Package notify provides leveled console progress reporting for the
// CLI: one line per pipeline stage with its counts, plus success and
// failure notices. Alerts go to stderr so piped stdout stays clean.
package notify

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/crosspoll/harmonizer/internal/cmd/globals"
)

// Level represents the severity of a notification.
type Level int

const (
	// LevelError indicates a failure.
	LevelError Level = iota
	// LevelWarning indicates a potential issue or important notice.
	LevelWarning
	// LevelInfo indicates general progress messages.
	LevelInfo
	// LevelSuccess indicates successful completion of an operation.
	LevelSuccess
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// icon returns the console icon for the level.
func (l Level) icon() string {
	switch l {
	case LevelError:
		return "✗"
	case LevelWarning:
		return "⚠"
	case LevelInfo:
		return "•"
	case LevelSuccess:
		return "✓"
	default:
		return "?"
	}
}

// Notifier writes progress notifications.
type Notifier struct {
	writer io.Writer
	quiet  bool
}

// New creates a Notifier writing to stderr.
func New() *Notifier {
	return &Notifier{writer: os.Stderr}
}

// NewFromCommand creates a Notifier configured from a Cobra command's
// global flags; --quiet silences everything below warning level.
func NewFromCommand(cmd *cobra.Command) *Notifier {
	n := New()
	if flags, err := globals.Parse(cmd); err == nil {
		n.quiet = flags.Quiet
	}
	return n
}

// WithWriter overrides the output writer, mainly for tests.
func (n *Notifier) WithWriter(w io.Writer) *Notifier {
	n.writer = w
	return n
}

// Notify writes one notification line.
func (n *Notifier) Notify(level Level, format string, args ...any) {
	if n.quiet && level > LevelWarning {
		return
	}
	fmt.Fprintf(n.writer, "%s %s\n", level.icon(), fmt.Sprintf(format, args...))
}

// Stage reports one pipeline stage's completion with its counts.
func (n *Notifier) Stage(name string, counts map[string]int) {
	if n.quiet {
		return
	}
	line := name
	for _, k := range sortedCountKeys(counts) {
		line += fmt.Sprintf("  %s=%d", k, counts[k])
	}
	n.Notify(LevelInfo, "%s", line)
}

// Success reports successful completion.
func (n *Notifier) Success(format string, args ...any) {
	n.Notify(LevelSuccess, format, args...)
}

// Warning reports a potential issue. Warnings survive --quiet.
func (n *Notifier) Warning(format string, args ...any) {
	fmt.Fprintf(n.writer, "%s %s\n", LevelWarning.icon(), fmt.Sprintf(format, args...))
}

// Error reports a failure. Errors survive --quiet.
func (n *Notifier) Error(format string, args ...any) {
	fmt.Fprintf(n.writer, "%s %s\n", LevelError.icon(), fmt.Sprintf(format, args...))
}

// sortedCountKeys returns count keys in sorted order for stable output.
func sortedCountKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

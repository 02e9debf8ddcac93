// Package ui is the operator-facing terminal layer: status lines, spinners,
// prompts and tables.
package ui

// Status is a long-running step shown to the operator. Exactly one of
// Succeed or Fail should be called.
type Status interface {
	Succeed(format string, args ...any)
	Fail(format string, args ...any)
}

// UI abstracts terminal interaction so commands can be driven by scripted
// input in tests.
//
//   - TerminalUI writes to stdout and reads from stdin.
//   - RecordingUI captures every call and serves scripted answers.
//
// Implementations must be safe for concurrent use: fetchers report progress
// from their own goroutines.
type UI interface {
	Info(format string, args ...any)
	Success(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)

	// Section prints a separator centred around title.
	Section(title string)

	// Table renders a bordered table with a header row.
	Table(headers []string, rows [][]string)

	// Task starts a status line (a spinner on terminals) for msg.
	Task(msg string) Status

	// Ask prints label and reads a line, looping until validate returns nil.
	// An empty answer yields def. A nil validator accepts anything.
	Ask(label, def string, validate func(string) error) string

	// Confirm asks a yes/no question.
	Confirm(prompt string, defaultYes bool) bool

	// Select prints numbered options and returns the 0-based indexes the
	// operator picked, in option order.
	Select(prompt string, options []string) []int
}

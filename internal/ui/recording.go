package ui

import (
	"fmt"
	"strings"
	"sync"
)

// Entry records a single UI call for test assertions.
type Entry struct {
	Method string
	Value  string
}

// RecordingUI implements UI for tests. Output is captured as entries and
// prompts are answered from scripted inputs in order. Running out of inputs,
// or feeding an input the validator rejects, panics: the script is wrong.
type RecordingUI struct {
	mu      sync.Mutex
	entries []Entry
	inputs  []string
	next    int
}

func NewRecordingUI(scriptedInputs ...string) *RecordingUI {
	return &RecordingUI{inputs: scriptedInputs}
}

func (r *RecordingUI) record(method, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Method: method, Value: value})
}

func (r *RecordingUI) nextInput(caller string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.inputs) {
		panic(fmt.Sprintf("RecordingUI: no scripted input left for %s (consumed %d so far)", caller, r.next))
	}
	input := r.inputs[r.next]
	r.next++
	return input
}

func (r *RecordingUI) Info(format string, args ...any) {
	r.record("Info", fmt.Sprintf(format, args...))
}

func (r *RecordingUI) Success(format string, args ...any) {
	r.record("Success", fmt.Sprintf(format, args...))
}

func (r *RecordingUI) Warn(format string, args ...any) {
	r.record("Warn", fmt.Sprintf(format, args...))
}

func (r *RecordingUI) Error(format string, args ...any) {
	r.record("Error", fmt.Sprintf(format, args...))
}

func (r *RecordingUI) Section(title string) {
	r.record("Section", title)
}

func (r *RecordingUI) Table(headers []string, rows [][]string) {
	lines := []string{strings.Join(headers, " | ")}
	for _, row := range rows {
		lines = append(lines, strings.Join(row, " | "))
	}
	r.record("Table", strings.Join(lines, "\n"))
}

func (r *RecordingUI) Task(msg string) Status {
	r.record("Task", msg)
	return &recordingTask{ui: r}
}

type recordingTask struct {
	ui *RecordingUI
}

func (t *recordingTask) Succeed(format string, args ...any) {
	t.ui.record("Succeed", fmt.Sprintf(format, args...))
}

func (t *recordingTask) Fail(format string, args ...any) {
	t.ui.record("Fail", fmt.Sprintf(format, args...))
}

func (r *RecordingUI) Ask(label, def string, validate func(string) error) string {
	r.record("Ask", label)
	input := strings.TrimSpace(r.nextInput("Ask"))
	if input == "" {
		input = def
	}
	if validate != nil {
		if err := validate(input); err != nil {
			panic(fmt.Sprintf("RecordingUI: scripted input %q failed validation in Ask(%q): %s", input, label, err))
		}
	}
	return input
}

// Confirm accepts "y"/"yes" and "n"/"no"; an empty input takes the default.
func (r *RecordingUI) Confirm(prompt string, defaultYes bool) bool {
	r.record("Confirm", prompt)
	input := strings.ToLower(strings.TrimSpace(r.nextInput("Confirm")))
	if input == "" {
		return defaultYes
	}
	return input == "y" || input == "yes"
}

func (r *RecordingUI) Select(prompt string, options []string) []int {
	r.record("Select", prompt)
	input := r.nextInput("Select")
	picked, err := ParseSelection(input, options)
	if err != nil {
		panic(fmt.Sprintf("RecordingUI: scripted input %q invalid for Select(%q): %s", input, prompt, err))
	}
	return picked
}

// Entries returns all recorded calls in order.
func (r *RecordingUI) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Messages returns the values recorded for method.
func (r *RecordingUI) Messages(method string) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Method == method {
			out = append(out, e.Value)
		}
	}
	return out
}

// HasMessage reports whether any entry contains substr, case-insensitively.
func (r *RecordingUI) HasMessage(substr string) bool {
	lower := strings.ToLower(substr)
	for _, e := range r.Entries() {
		if strings.Contains(strings.ToLower(e.Value), lower) {
			return true
		}
	}
	return false
}

// Remaining reports how many scripted inputs were not consumed.
func (r *RecordingUI) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inputs) - r.next
}

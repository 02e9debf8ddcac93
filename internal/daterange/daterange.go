// Package daterange holds the optional time window used to filter
// reimbursable transactions.
package daterange

import (
	"fmt"
	"strings"
	"time"
)

// Window is an open interval (Start, End). A zero bound is unbounded.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) HasStart() bool { return !w.Start.IsZero() }
func (w Window) HasEnd() bool   { return !w.End.IsZero() }

// Contains reports whether t lies strictly inside the window. Instants equal
// to a bound are outside.
func (w Window) Contains(t time.Time) bool {
	if w.HasStart() && !t.After(w.Start) {
		return false
	}
	if w.HasEnd() && !t.Before(w.End) {
		return false
	}
	return true
}

// UnixStart returns the start bound in whole seconds since the epoch.
func (w Window) UnixStart() (int64, bool) {
	if !w.HasStart() {
		return 0, false
	}
	return w.Start.Unix(), true
}

// UnixEnd returns the end bound in whole seconds since the epoch.
func (w Window) UnixEnd() (int64, bool) {
	if !w.HasEnd() {
		return 0, false
	}
	return w.End.Unix(), true
}

func (w Window) Validate() error {
	if w.HasStart() && w.HasEnd() && !w.Start.Before(w.End) {
		return fmt.Errorf("start %s is not before end %s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

// Describe renders the bounds for bundle metadata, e.g.
// ", starting at 2024-01-01 00:00:00 UTC, ending at ...".
func (w Window) Describe() string {
	var b strings.Builder
	if w.HasStart() {
		b.WriteString(", starting at ")
		b.WriteString(w.Start.Format(displayLayout))
	}
	if w.HasEnd() {
		b.WriteString(", ending at ")
		b.WriteString(w.End.Format(displayLayout))
	}
	return b.String()
}

const displayLayout = "2006-01-02 15:04:05 MST"

var layouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Parse reads an instant in one of the accepted layouts. Layouts without a
// zone are interpreted in loc.
func Parse(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC 3339", raw)
}

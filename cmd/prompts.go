package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/filipviz/juicy-reimburser/internal/daterange"
	"github.com/filipviz/juicy-reimburser/internal/reimburse"
	"github.com/filipviz/juicy-reimburser/internal/ui"
)

var sourceOptions = []string{"Safe", "Juicebox", "Other (manual entry)"}

const (
	sourceSafe = iota
	sourceJuicebox
	sourceManual
)

type options struct {
	sources   []string
	safe      string
	projectID uint64
	start     string
	end       string

	builder    string
	csv        string
	report     string
	bundleName string

	workers  int
	maxPages int
	dedupe   bool
	costMode string
	timeout  time.Duration
}

// parseSources maps --source values onto option indexes.
func parseSources(values []string) ([]int, error) {
	var picked []int
	for _, v := range values {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "safe":
			picked = append(picked, sourceSafe)
		case "juicebox", "jb":
			picked = append(picked, sourceJuicebox)
		case "manual", "other":
			picked = append(picked, sourceManual)
		default:
			return nil, fmt.Errorf("unknown source %q (want safe, juicebox or manual)", v)
		}
	}
	return picked, nil
}

// resolve turns flags into a run request. When --source is absent every
// input the operator did not pass as a flag is asked for.
func (o *options) resolve(u ui.UI, changed func(string) bool, loc *time.Location) (reimburse.Request, daterange.Window, error) {
	var req reimburse.Request
	interactive := !changed("source")

	var picked []int
	if interactive {
		for len(picked) == 0 {
			picked = u.Select("Which transactions should be reimbursed?", sourceOptions)
			if len(picked) == 0 {
				u.Warn("Select at least one source.")
			}
		}
	} else {
		var err error
		if picked, err = parseSources(o.sources); err != nil {
			return req, daterange.Window{}, err
		}
		if len(picked) == 0 {
			return req, daterange.Window{}, fmt.Errorf("--source needs at least one of safe, juicebox or manual")
		}
	}

	for _, i := range picked {
		switch i {
		case sourceSafe:
			req.Safe = o.safe
			if interactive && !changed("safe") {
				req.Safe = u.Ask("Safe ENS/address?", o.safe, nil)
			}
			if req.Safe == "" {
				return req, daterange.Window{}, fmt.Errorf("no Safe ENS/address given")
			}
		case sourceJuicebox:
			req.Juicebox = true
			req.ProjectID = o.projectID
			if interactive && !changed("project") {
				raw := u.Ask("Juicebox project ID?", strconv.FormatUint(o.projectID, 10), func(s string) error {
					_, err := strconv.ParseUint(s, 10, 64)
					return err
				})
				req.ProjectID, _ = strconv.ParseUint(raw, 10, 64)
			}
		case sourceManual:
			req.Manual = true
		}
	}
	window, err := o.window(u, interactive && !changed("start") && !changed("end"), loc)
	if err != nil {
		return req, daterange.Window{}, err
	}
	return req, window, nil
}

func (o *options) window(u ui.UI, ask bool, loc *time.Location) (daterange.Window, error) {
	start, end := o.start, o.end
	if ask {
		validate := func(s string) error {
			_, err := daterange.Parse(s, loc)
			return err
		}
		for _, i := range u.Select("Date range bounds (empty for all time)?", []string{"Start date", "End date"}) {
			if i == 0 {
				start = u.Ask("Start date (YYYY-MM-DD or RFC 3339)?", "", validate)
			} else {
				end = u.Ask("End date (YYYY-MM-DD or RFC 3339)?", "", validate)
			}
		}
	}

	var w daterange.Window
	var err error
	if start != "" {
		if w.Start, err = daterange.Parse(start, loc); err != nil {
			return w, fmt.Errorf("start: %w", err)
		}
	}
	if end != "" {
		if w.End, err = daterange.Parse(end, loc); err != nil {
			return w, fmt.Errorf("end: %w", err)
		}
	}
	return w, w.Validate()
}

package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/logrusorgru/aurora"
	runewidth "github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	sectionWidth = 50
	promptPrefix = "> "
)

// TerminalUI is the production UI. Colours and spinners are enabled only
// when stdout is a terminal.
type TerminalUI struct {
	mu   sync.Mutex
	out  io.Writer
	in   *bufio.Reader
	au   aurora.Aurora
	tty  bool
	spin *spinner.Spinner
}

func NewTerminalUI() *TerminalUI {
	tty := term.IsTerminal(int(os.Stdout.Fd()))
	return &TerminalUI{
		out: os.Stdout,
		in:  bufio.NewReader(os.Stdin),
		au:  aurora.NewAurora(tty),
		tty: tty,
	}
}

func (u *TerminalUI) writeLine(line string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.writeLineLocked(line)
}

func (u *TerminalUI) writeLineLocked(line string) {
	if u.spin != nil {
		u.spin.Lock()
		defer u.spin.Unlock()
		fmt.Fprint(u.out, "\r\033[K")
	}
	fmt.Fprintln(u.out, line)
}

func (u *TerminalUI) Info(format string, args ...any) {
	u.writeLine(fmt.Sprintf(format, args...))
}

func (u *TerminalUI) Success(format string, args ...any) {
	u.writeLine(u.au.Green(fmt.Sprintf(format, args...)).String())
}

func (u *TerminalUI) Warn(format string, args ...any) {
	u.writeLine(u.au.Yellow(fmt.Sprintf(format, args...)).String())
}

func (u *TerminalUI) Error(format string, args ...any) {
	u.writeLine(u.au.Red(fmt.Sprintf(format, args...)).String())
}

func (u *TerminalUI) Section(title string) {
	titled := " " + title + " "
	bars := sectionWidth - runewidth.StringWidth(titled)
	if bars < 6 {
		bars = 6
	}
	left := bars / 2
	line := strings.Repeat("=", left) + titled + strings.Repeat("=", bars-left)
	u.writeLine("\n" + u.au.Bold(line).String() + "\n")
}

// Task starts a spinner for msg. Only one spinner runs at a time; tasks
// started while another spins are printed as plain lines.
func (u *TerminalUI) Task(msg string) Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	t := &terminalTask{ui: u, msg: msg}
	if !u.tty || u.spin != nil {
		u.writeLineLocked(u.au.Faint("… " + msg).String())
		return t
	}
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(u.out))
	s.Suffix = " " + msg
	s.Start()
	u.spin = s
	t.spin = s
	return t
}

type terminalTask struct {
	ui   *TerminalUI
	msg  string
	spin *spinner.Spinner
	once sync.Once
}

func (t *terminalTask) finish(line string) {
	t.once.Do(func() {
		u := t.ui
		u.mu.Lock()
		defer u.mu.Unlock()
		if t.spin != nil {
			t.spin.Stop()
			u.spin = nil
			fmt.Fprintln(u.out, line)
			return
		}
		u.writeLineLocked(line)
	})
}

func (t *terminalTask) Succeed(format string, args ...any) {
	t.finish(t.ui.au.Green("✓ " + fmt.Sprintf(format, args...)).String())
}

func (t *terminalTask) Fail(format string, args ...any) {
	t.finish(t.ui.au.Red("✗ " + fmt.Sprintf(format, args...)).String())
}

// readLine exits the process once stdin is exhausted: there is nobody left
// to answer the prompt.
func (u *TerminalUI) readLine() string {
	text, err := u.in.ReadString('\n')
	if err != nil && text == "" {
		fmt.Fprintln(u.out, u.au.Red("\n✗ input closed"))
		os.Exit(1)
	}
	return strings.TrimRight(text, "\r\n")
}

func (u *TerminalUI) Ask(label, def string, validate func(string) error) string {
	if def != "" {
		label = fmt.Sprintf("%s %s", label, u.au.Faint("("+def+")"))
	}
	for {
		u.mu.Lock()
		fmt.Fprintf(u.out, "%s %s\n%s", u.au.Green("?"), u.au.Bold(label), promptPrefix)
		input := strings.TrimSpace(u.readLine())
		u.mu.Unlock()
		if input == "" {
			input = def
		}
		if validate == nil {
			return input
		}
		err := validate(input)
		if err == nil {
			return input
		}
		u.Error("%s", err)
	}
}

func (u *TerminalUI) Confirm(prompt string, defaultYes bool) bool {
	options := "[Y/n]"
	if !defaultYes {
		options = "[y/N]"
	}
	input := u.Ask(prompt+" "+options, "", func(s string) error {
		switch strings.ToLower(s) {
		case "", "y", "yes", "n", "no":
			return nil
		}
		return fmt.Errorf("please enter y or n")
	})
	switch strings.ToLower(input) {
	case "":
		return defaultYes
	case "y", "yes":
		return true
	}
	return false
}

func (u *TerminalUI) Select(prompt string, options []string) []int {
	for i, opt := range options {
		u.Info("  %d. %s", i+1, opt)
	}
	input := u.Ask(fmt.Sprintf("%s (comma separated, e.g. 1,3)", prompt), "", func(s string) error {
		_, err := ParseSelection(s, options)
		return err
	})
	picked, _ := ParseSelection(input, options)
	return picked
}

// ParseSelection reads a comma separated list of 1-based numbers or option
// names. An empty answer selects nothing.
func ParseSelection(input string, options []string) ([]int, error) {
	set := make(map[int]struct{})
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			if n < 1 || n > len(options) {
				return nil, fmt.Errorf("%d is not between 1 and %d", n, len(options))
			}
			set[n-1] = struct{}{}
			continue
		}
		found := false
		for i, opt := range options {
			if strings.EqualFold(part, opt) {
				set[i] = struct{}{}
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%q is not one of the options", part)
		}
	}
	picked := make([]int, 0, len(set))
	for i := range set {
		picked = append(picked, i)
	}
	sort.Ints(picked)
	return picked, nil
}

// Table renders a bordered table. Column widths ignore ANSI escapes so
// coloured cells stay aligned.
func (u *TerminalUI) Table(headers []string, rows [][]string) {
	ncols := len(headers)
	for _, r := range rows {
		if len(r) > ncols {
			ncols = len(r)
		}
	}
	if ncols == 0 {
		return
	}
	cellWidth := func(s string) int {
		return runewidth.StringWidth(ansi.Strip(s))
	}
	widths := make([]int, ncols)
	for i, h := range headers {
		widths[i] = cellWidth(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row); i++ {
			if w := cellWidth(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}
	pad := func(s string, w int) string {
		if visible := cellWidth(s); visible < w {
			return s + strings.Repeat(" ", w-visible)
		}
		return s
	}

	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	border := func(s string) string { return borderStyle.Render(s) }
	dashes := make([]string, ncols)
	for i, w := range widths {
		dashes[i] = strings.Repeat("─", w+2)
	}
	renderRow := func(cells []string) string {
		parts := make([]string, ncols)
		for i := 0; i < ncols; i++ {
			val := ""
			if i < len(cells) {
				val = cells[i]
			}
			parts[i] = " " + pad(val, widths[i]) + " "
		}
		return border("│") + strings.Join(parts, border("│")) + border("│")
	}

	var b strings.Builder
	b.WriteString(border("┌"+strings.Join(dashes, "┬")+"┐") + "\n")
	if len(headers) > 0 {
		b.WriteString(renderRow(headers) + "\n")
		b.WriteString(border("├"+strings.Join(dashes, "┼")+"┤") + "\n")
	}
	for _, row := range rows {
		b.WriteString(renderRow(row) + "\n")
	}
	b.WriteString(border("└" + strings.Join(dashes, "┴") + "┘"))
	u.writeLine(b.String())
}

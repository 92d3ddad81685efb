// Package report prints diagnostics for people: a banner per diagnostic,
// the offending source line with a caret, and a closing summary.
package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"

	"github.com/funvibe/resolvekit/internal/diagnostics"
)

var (
	ErrorColorFG = pterm.FgRed
	ErrorStyleBG = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	WarnColorFG  = pterm.FgYellow
	WarnStyleBG  = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	InfoColorFG  = pterm.FgLightGreen
)

const bannerWidth = 50

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes diagnostics to w. Source lines are shown for files whose
// contents were registered with AddSource.
type Printer struct {
	w       io.Writer
	color   bool
	sources map[string][]string
}

// NewPrinter returns a printer; color enables ANSI styling.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color, sources: make(map[string][]string)}
}

// ForFile returns a printer for f, colored when f is a terminal.
func ForFile(f *os.File) *Printer {
	return NewPrinter(f, IsTerminal(f))
}

// AddSource registers the text of path for source excerpts.
func (p *Printer) AddSource(path string, data []byte) {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	p.sources[path] = lines
}

// Print writes every diagnostic followed by a summary line. Nothing is
// written for an empty list.
func (p *Printer) Print(diags []*diagnostics.DiagnosticError) {
	if len(diags) == 0 {
		return
	}
	for _, d := range diags {
		p.printOne(d)
	}
	fmt.Fprintln(p.w, Summary(diags))
}

func (p *Printer) printOne(d *diagnostics.DiagnosticError) {
	label := d.Code.Kind() + " Error"
	bg, fg := ErrorStyleBG, ErrorColorFG
	if d.Code.IsWarning() {
		label = d.Code.Kind() + " Warning"
		bg, fg = WarnStyleBG, WarnColorFG
	}

	name := filepath.Base(d.File)
	if d.File == "" {
		name = "<unknown>"
	}
	dashes := bannerWidth - len(label) - len(name) - 1
	if dashes < 3 {
		dashes = 3
	}
	fmt.Fprintf(p.w, "-- %s %s %s\n", p.style(bg, label), strings.Repeat("-", dashes), p.paint(InfoColorFG, name))

	loc := d.Pos.String()
	if d.File != "" {
		loc = d.File + ":" + loc
	}
	fmt.Fprintf(p.w, "%s %s: %s\n", loc, d.Code, p.paint(fg, d.Message))
	if len(d.Candidates) > 0 {
		fmt.Fprintf(p.w, "  candidates:\n")
		for _, c := range d.Candidates {
			fmt.Fprintf(p.w, "    %s\n", c)
		}
	}
	p.excerpt(d, fg)
	fmt.Fprintln(p.w)
}

func (p *Printer) excerpt(d *diagnostics.DiagnosticError, fg pterm.Color) {
	lines := p.sources[d.File]
	if d.Pos.Line < 1 || d.Pos.Line > len(lines) {
		return
	}
	line := strings.ReplaceAll(lines[d.Pos.Line-1], "\t", "    ")
	num := strconv.Itoa(d.Pos.Line)
	fmt.Fprintf(p.w, "%s | %s\n", p.paint(InfoColorFG, num), line)
	col := d.Pos.Column
	if col < 1 {
		col = 1
	}
	fmt.Fprintf(p.w, "%s | %s%s\n", strings.Repeat(" ", len(num)), strings.Repeat(" ", col-1), p.paint(fg, "^"))
}

func (p *Printer) paint(c pterm.Color, s string) string {
	if !p.color {
		return s
	}
	return c.Sprint(s)
}

func (p *Printer) style(st *pterm.Style, s string) string {
	if !p.color {
		return s
	}
	return st.Sprint(s)
}

// Summary counts errors and warnings, e.g. "2 errors, 1 warning".
func Summary(diags []*diagnostics.DiagnosticError) string {
	var errs, warns int
	for _, d := range diags {
		if d.Code.IsWarning() {
			warns++
		} else {
			errs++
		}
	}
	return plural(errs, "error") + ", " + plural(warns, "warning")
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}

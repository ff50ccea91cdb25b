// Package diag implements ChronoScript's structured diagnostic
// reporting, adapted from the teacher's internal/errors reporter
// (Rust-like caret diagnostics colorized with github.com/fatih/color),
// generalized from Kanso's semantic-analysis error codes to spec §7's
// five error kinds: lexical/preprocessor, parse, compile, link, and
// runtime.
package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"chronoscript/token"
)

// Kind is one of spec §7's error kinds.
type Kind string

const (
	Lexical  Kind = "lexical"
	Parse    Kind = "parse"
	Compile  Kind = "compile"
	Link     Kind = "link"  // non-fatal: an unresolved call logged as a warning
	Runtime  Kind = "runtime"
)

// Diagnostic is one reported error or warning.
type Diagnostic struct {
	Kind     Kind
	Message  string
	Pos      token.Position
	Warning  bool // spec §7: link warnings are non-fatal
}

// Reporter accumulates diagnostics for one compile and renders them in
// the teacher's caret style. Mirrors ErrorReporter's per-file
// (filename, source, lines) construction.
type Reporter struct {
	filename string
	lines    []string
	errors   []Diagnostic
}

func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Report records a diagnostic; spec §7's "increment an error counter"
// policy for parse/compile errors is this: every non-warning Report
// call counts toward ErrorCount.
func (r *Reporter) Report(d Diagnostic) {
	r.errors = append(r.errors, d)
}

// ErrorCount returns the number of non-warning diagnostics reported so
// far (spec §7: "no module is produced if the counter is non-zero").
func (r *Reporter) ErrorCount() int {
	n := 0
	for _, d := range r.errors {
		if !d.Warning {
			n++
		}
	}
	return n
}

func (r *Reporter) Diagnostics() []Diagnostic { return r.errors }

// Print renders every accumulated diagnostic to stdout in the
// teacher's caret-diagnostic format.
func (r *Reporter) Print() {
	for _, d := range r.errors {
		fmt.Print(r.format(d))
	}
}

func (r *Reporter) format(d Diagnostic) string {
	var b strings.Builder
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	levelColor := color.New(color.FgRed, color.Bold).SprintFunc()
	label := "error"
	if d.Warning {
		levelColor = color.New(color.FgYellow, color.Bold).SprintFunc()
		label = "warning"
	}

	b.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(label), d.Kind, d.Message))

	width := lineNumberWidth(d.Pos.Line)
	indent := strings.Repeat(" ", width)
	b.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), r.filename, d.Pos.Line, d.Pos.Column))
	b.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if d.Pos.Line > 0 && d.Pos.Line <= len(r.lines) {
		line := r.lines[d.Pos.Line-1]
		b.WriteString(fmt.Sprintf("%s %s %s\n", bold(pad(d.Pos.Line, width)), dim("│"), line))
		caret := strings.Repeat(" ", max0(d.Pos.Column-1)) + levelColor("^")
		b.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), caret))
	}
	b.WriteString("\n")
	return b.String()
}

func lineNumberWidth(line int) int {
	w := len(fmt.Sprintf("%d", line))
	if w < 3 {
		w = 3
	}
	return w
}

func pad(n, width int) string { return fmt.Sprintf("%*d", width, n) }

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Formatter renders results for humans or machines.
type Formatter interface {
	Format(w io.Writer, results []FileResult) error
}

// ColorMode controls ANSI styling.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// FormatOptions configures formatters.
type FormatOptions struct {
	// Color selects styling. Auto styles terminals only.
	Color ColorMode

	// Root, when set, makes displayed paths relative to it.
	Root string

	// Theme is the chroma style used by the codeframe formatter.
	Theme string

	// Context is the number of lines shown around a codeframe finding.
	Context int
}

// FormatterNames lists the registered formatter names.
var FormatterNames = []string{"stylish", "compact", "json", "codeframe"}

// NewFormatter returns the named formatter.
func NewFormatter(name string, opts FormatOptions) (Formatter, error) {
	if opts.Context <= 0 {
		opts.Context = 2
	}
	if opts.Theme == "" {
		opts.Theme = "dracula"
	}
	switch name {
	case "", "stylish":
		return &stylishFormatter{opts: opts}, nil
	case "compact":
		return &compactFormatter{opts: opts}, nil
	case "json":
		return jsonFormatter{}, nil
	case "codeframe":
		return &codeframeFormatter{opts: opts}, nil
	default:
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownFormatter, name, strings.Join(FormatterNames, ", "))
	}
}

// Formatter returns the named formatter configured with the runner's
// format options.
func (r *Runner) Formatter(name string) (Formatter, error) {
	return NewFormatter(name, r.formatOpts)
}

// =============================================================================
// STYLING
// =============================================================================

// ColorProfile returns the termenv profile for w under mode.
func ColorProfile(w io.Writer, mode ColorMode) termenv.Profile {
	switch mode {
	case ColorNever:
		return termenv.Ascii
	case ColorAlways:
		return termenv.ANSI256
	}
	f, ok := w.(*os.File)
	if !ok {
		return termenv.Ascii
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return termenv.Ascii
	}
	return termenv.NewOutput(f).EnvColorProfile()
}

type palette struct {
	renderer *lipgloss.Renderer
	path     lipgloss.Style
	dim      lipgloss.Style
	err      lipgloss.Style
	warn     lipgloss.Style
	info     lipgloss.Style
	summary  lipgloss.Style
	marker   lipgloss.Style
}

func newPalette(w io.Writer, mode ColorMode) palette {
	re := lipgloss.NewRenderer(w)
	re.SetColorProfile(ColorProfile(w, mode))
	return palette{
		renderer: re,
		path:     re.NewStyle().Underline(true),
		dim:      re.NewStyle().Foreground(lipgloss.Color("8")),
		err:      re.NewStyle().Foreground(lipgloss.Color("1")),
		warn:     re.NewStyle().Foreground(lipgloss.Color("3")),
		info:     re.NewStyle().Foreground(lipgloss.Color("6")),
		summary:  re.NewStyle().Bold(true),
		marker:   re.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

func (p palette) severity(s Severity) lipgloss.Style {
	switch s {
	case SeverityError:
		return p.err
	case SeverityWarning:
		return p.warn
	default:
		return p.info
	}
}

func displayPath(path, root string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}

type totals struct {
	errors, warnings, fixableErrors, fixableWarnings int
}

func sum(results []FileResult) totals {
	var t totals
	for _, r := range results {
		t.errors += r.ErrorCount
		t.warnings += r.WarningCount
		t.fixableErrors += r.FixableErrorCount
		t.fixableWarnings += r.FixableWarningCount
	}
	return t
}

// =============================================================================
// STYLISH
// =============================================================================

type stylishFormatter struct {
	opts FormatOptions
}

// Format groups findings under each file, followed by a problem summary.
func (f *stylishFormatter) Format(w io.Writer, results []FileResult) error {
	p := newPalette(w, f.opts.Color)
	var b strings.Builder

	for _, res := range results {
		if len(res.Findings) == 0 {
			continue
		}
		b.WriteString("\n" + p.path.Render(displayPath(res.FilePath, f.opts.Root)) + "\n")

		locWidth, sevWidth, msgWidth := 0, 0, 0
		for _, fd := range res.Findings {
			locWidth = max(locWidth, len(fd.Location()))
			sevWidth = max(sevWidth, len(fd.Severity.String()))
			msgWidth = max(msgWidth, len(fd.Message))
		}
		for _, fd := range res.Findings {
			loc := fd.Location()
			sev := fd.Severity.String()
			fmt.Fprintf(&b, "  %s%s  %s%s  %s%s  %s\n",
				p.dim.Render(loc), strings.Repeat(" ", locWidth-len(loc)),
				p.severity(fd.Severity).Render(sev), strings.Repeat(" ", sevWidth-len(sev)),
				fd.Message, strings.Repeat(" ", msgWidth-len(fd.Message)),
				p.dim.Render(fd.Rule),
			)
		}
	}

	t := sum(results)
	if problems := t.errors + t.warnings; problems > 0 {
		style := p.warn
		if t.errors > 0 {
			style = p.err
		}
		line := fmt.Sprintf("✖ %s (%s, %s)", plural(problems, "problem"), plural(t.errors, "error"), plural(t.warnings, "warning"))
		b.WriteString("\n" + style.Inherit(p.summary).Render(line) + "\n")
		if t.fixableErrors+t.fixableWarnings > 0 {
			fmt.Fprintf(&b, "  %s and %s potentially fixable by the linter.\n",
				plural(t.fixableErrors, "error"), plural(t.fixableWarnings, "warning"))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// =============================================================================
// COMPACT
// =============================================================================

type compactFormatter struct {
	opts FormatOptions
}

// Format writes one finding per line.
func (f *compactFormatter) Format(w io.Writer, results []FileResult) error {
	p := newPalette(w, f.opts.Color)
	var b strings.Builder
	total := 0
	for _, res := range results {
		path := displayPath(res.FilePath, f.opts.Root)
		for _, fd := range res.Findings {
			total++
			sev := fd.Severity.String()
			fmt.Fprintf(&b, "%s: line %d, col %d, %s - %s",
				path, fd.Line, fd.Column,
				p.severity(fd.Severity).Render(strings.ToUpper(sev[:1])+sev[1:]),
				fd.Message,
			)
			if fd.Rule != "" {
				fmt.Fprintf(&b, " (%s)", fd.Rule)
			}
			b.WriteString("\n")
		}
	}
	if total > 0 {
		fmt.Fprintf(&b, "\n%s\n", plural(total, "problem"))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// =============================================================================
// JSON
// =============================================================================

type jsonFormatter struct{}

// Format writes the results as a JSON array.
func (jsonFormatter) Format(w io.Writer, results []FileResult) error {
	if results == nil {
		results = []FileResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// =============================================================================
// CODEFRAME
// =============================================================================

type codeframeFormatter struct {
	opts FormatOptions
}

// Format prints each finding with the surrounding source, highlighted.
//
// Description:
//
//	Context lines come from the file on disk when its line at the finding
//	still matches the finding's Source. Otherwise, as when staged content
//	was linted, only the Source line is shown.
func (f *codeframeFormatter) Format(w io.Writer, results []FileResult) error {
	p := newPalette(w, f.opts.Color)
	var b strings.Builder

	for _, res := range results {
		if len(res.Findings) == 0 {
			continue
		}
		var disk []string
		if data, err := os.ReadFile(res.FilePath); err == nil {
			disk = splitLines(data)
		}
		path := displayPath(res.FilePath, f.opts.Root)

		for _, fd := range res.Findings {
			fmt.Fprintf(&b, "%s: %s", p.severity(fd.Severity).Render(fd.Severity.String()), fd.Message)
			if fd.Rule != "" {
				b.WriteString(" " + p.dim.Render("("+fd.Rule+")"))
			}
			fmt.Fprintf(&b, " at %s:\n", p.path.Render(path+":"+fd.Location()))

			first, lines := f.frame(disk, fd)
			highlighted := highlightLines(res.FilePath, lines, f.opts.Theme, p.renderer)
			width := len(strconv.Itoa(first + len(lines) - 1))
			for i, hl := range highlighted {
				n := first + i
				gutter := fmt.Sprintf("%*d |", width, n)
				if n == fd.Line {
					b.WriteString(p.marker.Render(">") + " " + gutter + " " + hl + "\n")
					if fd.Column > 0 {
						pad := "  " + strings.Repeat(" ", width) + " |" + strings.Repeat(" ", fd.Column)
						b.WriteString(pad + p.marker.Render("^") + "\n")
					}
					continue
				}
				b.WriteString("  " + p.dim.Render(gutter) + " " + hl + "\n")
			}
			b.WriteString("\n")
		}
	}

	t := sum(results)
	if t.errors+t.warnings > 0 {
		fmt.Fprintf(&b, "%s and %s found.\n", plural(t.errors, "error"), plural(t.warnings, "warning"))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// frame returns the first line number and the lines to show.
func (f *codeframeFormatter) frame(disk []string, fd Finding) (int, []string) {
	if fd.Line < 1 {
		return 1, nil
	}
	if fd.Line > len(disk) || (fd.Source != "" && disk[fd.Line-1] != fd.Source) {
		if fd.Source == "" {
			return fd.Line, nil
		}
		return fd.Line, []string{fd.Source}
	}
	start := max(1, fd.Line-f.opts.Context)
	end := min(len(disk), fd.Line+f.opts.Context)
	return start, disk[start-1 : end]
}

// highlightLines syntax-highlights lines as a unit so multi-line tokens
// keep their colour.
func highlightLines(filename string, lines []string, theme string, re *lipgloss.Renderer) []string {
	lexer := lexerForFile(filename)
	if lexer == nil || len(lines) == 0 {
		return lines
	}
	iterator, err := lexer.Tokenise(nil, strings.Join(lines, "\n"))
	if err != nil {
		return lines
	}
	style := styles.Get(theme)
	if style == nil {
		style = styles.Fallback
	}

	out := make([]string, 0, len(lines))
	var current strings.Builder
	for _, token := range iterator.Tokens() {
		parts := strings.Split(token.Value, "\n")
		for i, part := range parts {
			if i > 0 {
				out = append(out, current.String())
				current.Reset()
			}
			if part == "" {
				continue
			}
			entry := style.Get(token.Type)
			if entry.Colour.IsSet() {
				current.WriteString(re.NewStyle().Foreground(lipgloss.Color(entry.Colour.String())).Render(part))
			} else {
				current.WriteString(part)
			}
		}
	}
	out = append(out, current.String())
	for len(out) < len(lines) {
		out = append(out, "")
	}
	return out[:len(lines)]
}

func lexerForFile(filename string) chroma.Lexer {
	lexer := lexers.Match(filepath.Base(filename))
	if lexer == nil {
		if ext := filepath.Ext(filename); ext != "" {
			lexer = lexers.Match("file" + ext)
		}
	}
	if lexer != nil {
		lexer = chroma.Coalesce(lexer)
	}
	return lexer
}

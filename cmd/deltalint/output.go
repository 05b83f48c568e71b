// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/lint"
)

// Exit codes for CLI commands.
const (
	CLIExitSuccess     = 0 // No retained errors, or not gating
	CLIExitFindings    = 1 // Retained errors with --ci
	CLIExitError       = 2 // Configuration, revision, consistency or lint failure
	CLIExitUnsupported = 3 // Partially staged files with a working-tree target
)

// errFindingsGate signals retained errors under --ci. It is not printed.
var errFindingsGate = errors.New("errors found on changed lines")

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return CLIExitSuccess
	case errors.Is(err, errFindingsGate):
		return CLIExitFindings
	case errors.Is(err, errs.ErrUnsupported):
		return CLIExitUnsupported
	default:
		return CLIExitError
	}
}

// styles renders CLI messages for w.
type styles struct {
	err     lipgloss.Style
	warn    lipgloss.Style
	hint    lipgloss.Style
	command lipgloss.Style
}

func newStyles(w io.Writer) styles {
	re := lipgloss.NewRenderer(w)
	re.SetColorProfile(lint.ColorProfile(w, lint.ColorMode(flagColor)))
	return styles{
		err:     re.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		warn:    re.NewStyle().Foreground(lipgloss.Color("3")),
		hint:    re.NewStyle().Faint(true),
		command: re.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

// printError writes a failed command's error. Unsupported configurations
// are reported with their hint instead of the wrapped chain.
func printError(w io.Writer, err error) {
	if errors.Is(err, errFindingsGate) {
		return
	}
	st := newStyles(w)

	var e *errs.Error
	if errors.Is(err, errs.ErrUnsupported) && errors.As(err, &e) {
		msg := e.Op
		if e.Path != "" {
			msg += " " + e.Path
		}
		fmt.Fprintln(w, st.err.Render("deltalint: "+msg))
	} else {
		fmt.Fprintln(w, st.err.Render("deltalint: "+err.Error()))
	}
	if hint := errs.HintOf(err); hint != "" {
		fmt.Fprintln(w, st.hint.Render(hint))
	}
}

// printIgnoreStats reports how many findings were filtered and how to see
// them.
func printIgnoreStats(w io.Writer, errorCount, warningCount int, command string) {
	st := newStyles(w)

	var msg string
	switch {
	case errorCount == 1:
		msg = st.err.Render("1 error")
	case errorCount > 1:
		msg = st.err.Render(fmt.Sprintf("%d errors", errorCount))
	}
	if errorCount > 0 && warningCount > 0 {
		msg += " and "
	}
	switch {
	case warningCount == 1:
		msg += st.warn.Render("1 warning")
	case warningCount > 1:
		msg += st.warn.Render(fmt.Sprintf("%d warnings", warningCount))
	}

	verb := "were"
	if errorCount+warningCount == 1 {
		verb = "was"
	}
	fmt.Fprintf(w, "Ignored %s that %s found outside the added or modified lines.\n", msg, verb)
	fmt.Fprintf(w, "(Run %s to show all errors and warnings.)\n\n", st.command.Render(command))
}

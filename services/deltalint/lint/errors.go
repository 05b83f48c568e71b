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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLinterNotInstalled means the linter binary is not on PATH.
	ErrLinterNotInstalled = errors.New("linter not installed")

	// ErrLinterTimeout means one invocation outran LinterConfig.Timeout.
	ErrLinterTimeout = errors.New("linter timeout")

	// ErrLinterFailed means the process failed and wrote nothing to stdout.
	ErrLinterFailed = errors.New("linter execution failed")

	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrParseOutput means stdout was not the JSON shape the parser expects.
	ErrParseOutput = errors.New("failed to parse linter output")

	ErrUnknownFormatter = errors.New("unknown formatter")

	// ErrNeedsCheckout means the linter type-checks whole packages and the
	// text must be linted through LintCheckout instead of LintText.
	ErrNeedsCheckout = errors.New("linter needs a checkout of the package")

	// ErrOutsideCheckout means a CheckoutFile path escapes the checkout.
	ErrOutsideCheckout = errors.New("path outside checkout root")
)

// LinterError is a failure of one linter invocation.
//
// Thread Safety: Immutable after creation.
type LinterError struct {
	// Linter is the command that failed (e.g., "golangci-lint").
	Linter string

	// Language is the language being linted (e.g., "go").
	Language string

	// Path is the logical file path when a single file was being linted.
	// Empty for batch runs.
	Path string

	// Err is the cause, usually one of the Err* sentinels.
	Err error

	// Output is the trimmed stderr of the process, if any.
	Output string
}

// Error renders "linter (language) path: cause: stderr".
func (e *LinterError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", e.Linter, e.Language)
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if e.Output != "" {
		b.WriteString(": ")
		b.WriteString(e.Output)
	}
	return b.String()
}

// Unwrap exposes the cause to errors.Is/As.
func (e *LinterError) Unwrap() error {
	return e.Err
}

// NewLinterError creates a LinterError for a batch run.
func NewLinterError(linter, language string, err error) *LinterError {
	return &LinterError{
		Linter:   linter,
		Language: language,
		Err:      err,
	}
}

// WithOutput returns a copy with the stderr output set.
func (e *LinterError) WithOutput(output string) *LinterError {
	c := *e
	c.Output = output
	return &c
}

// WithPath returns a copy naming the file being linted.
func (e *LinterError) WithPath(path string) *LinterError {
	c := *e
	c.Path = path
	return &c
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package errs defines the error taxonomy shared by the deltalint pipeline.
//
// Every failure that leaves a pipeline phase carries exactly one kind. Callers
// branch on the kind with errors.Is and still reach the underlying cause.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds.
var (
	// ErrConfiguration indicates bad or missing user input detected before any
	// repository access (for example, no resolvable revision at all).
	ErrConfiguration = errors.New("configuration error")

	// ErrRevision indicates the backend could not resolve a revision, open the
	// repository, or find a commit, tree or blob.
	ErrRevision = errors.New("revision error")

	// ErrUnsupported indicates a repository state the tool declines to handle.
	ErrUnsupported = errors.New("unsupported configuration")

	// ErrInvariant indicates an internal consistency violation. It never
	// results from user input.
	ErrInvariant = errors.New("internal consistency error")

	// ErrLintExecution indicates the analysis engine failed.
	ErrLintExecution = errors.New("lint execution error")
)

// Error is a classified pipeline failure.
//
// Thread Safety: Immutable after creation.
type Error struct {
	// Kind is one of the Err* kinds above.
	Kind error

	// Op names the operation that failed (e.g., "resolve old revision").
	Op string

	// Path is the repository path involved, if any.
	Path string

	// Err is the underlying cause. May be nil.
	Err error

	// Hint is user guidance printed alongside the message.
	Hint string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	} else {
		b.WriteString(e.Kind.Error())
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// WithPath returns a copy of the error with Path set.
func (e *Error) WithPath(path string) *Error {
	c := *e
	c.Path = path
	return &c
}

// WithHint returns a copy of the error with Hint set.
func (e *Error) WithHint(hint string) *Error {
	c := *e
	c.Hint = hint
	return &c
}

// Configuration creates an ErrConfiguration error with a formatted message.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: ErrConfiguration, Op: fmt.Sprintf(format, args...)}
}

// Revision wraps a backend resolution failure.
func Revision(op string, err error) *Error {
	return &Error{Kind: ErrRevision, Op: op, Err: err}
}

// Unsupported creates an ErrUnsupported error.
func Unsupported(op string, err error) *Error {
	return &Error{Kind: ErrUnsupported, Op: op, Err: err}
}

// Invariant creates an ErrInvariant error with a formatted message.
func Invariant(format string, args ...any) *Error {
	return &Error{Kind: ErrInvariant, Op: fmt.Sprintf(format, args...)}
}

// LintExecution wraps an analysis engine failure.
func LintExecution(op string, err error) *Error {
	return &Error{Kind: ErrLintExecution, Op: op, Err: err}
}

// KindOf returns the taxonomy kind of err, or nil when err is unclassified.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// HintOf returns the first hint found in err's chain.
func HintOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Hint
	}
	return ""
}

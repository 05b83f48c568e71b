// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vcs

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the vcs package.
var (
	// ErrNotRepository indicates no repository was found at or above a path.
	ErrNotRepository = errors.New("not a git repository")

	// ErrUnknownRevision indicates a revision spec could not be resolved.
	ErrUnknownRevision = errors.New("unknown revision")

	// ErrNoMergeBase indicates two commits share no history.
	ErrNoMergeBase = errors.New("no merge base")

	// ErrPathNotFound indicates a tree has no file at the requested path.
	ErrPathNotFound = errors.New("path not found in tree")

	// ErrEntryNotFound indicates the index has no entry for a path and stage.
	ErrEntryNotFound = errors.New("index entry not found")

	// ErrBinary indicates hunks were requested for a binary file.
	ErrBinary = errors.New("binary file")
)

// GitError describes a failed git subprocess.
//
// Thread Safety: Immutable after creation.
type GitError struct {
	// Args are the git arguments (without the leading "git").
	Args []string

	// ExitCode is the process exit code (-1 if unknown).
	ExitCode int

	// Stderr is the trimmed standard error output.
	Stderr string

	// Err is the underlying exec error.
	Err error
}

// Error implements the error interface.
func (e *GitError) Error() string {
	cmd := "git " + strings.Join(e.Args, " ")
	if e.Stderr != "" {
		return fmt.Sprintf("%s (exit %d): %s", cmd, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s (exit %d): %v", cmd, e.ExitCode, e.Err)
}

// Unwrap returns the underlying error.
func (e *GitError) Unwrap() error {
	return e.Err
}

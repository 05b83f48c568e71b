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
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// gitCLI runs git subprocesses inside a working tree.
//
// # Description
//
// Used for the operations that read the working tree and index through git's
// own machinery (stat cache, clean/smudge filters, ignore rules): index and
// workdir diffs, status, untracked listing.
//
// # Thread Safety
//
// Safe for concurrent use.
type gitCLI struct {
	dir     string
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// baseArgs pins output-affecting configuration so user settings cannot
// change what we parse.
var baseArgs = []string{
	"-c", "core.quotePath=false",
	"-c", "diff.noprefix=false",
	"-c", "diff.mnemonicPrefix=false",
	"-c", "color.ui=never",
}

// run executes git and returns stdout.
func (g *gitCLI) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	full := append(append([]string{}, baseArgs...), args...)
	cmd := exec.CommandContext(ctx, g.binary, full...)
	cmd.Dir = g.dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	g.logger.Debug("git command",
		slog.String("args", strings.Join(args, " ")),
		slog.Duration("duration", time.Since(start)),
		slog.Int("stdout_bytes", stdout.Len()),
	)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("git %s: timeout after %v", args[0], g.timeout)
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &GitError{
			Args:     args,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}

	return stdout.Bytes(), nil
}

// diffArgs builds the common flags for a patch-producing diff.
func diffArgs(opts DiffOptions) []string {
	args := []string{
		"diff",
		"--no-color",
		"--no-ext-diff",
		"--no-textconv",
		"--unified=0",
		"--src-prefix=a/",
		"--dst-prefix=b/",
	}
	if opts.DetectRenames {
		args = append(args, "--find-renames")
	} else {
		args = append(args, "--no-renames")
	}
	return args
}

// splitNUL splits NUL-terminated git output into records.
func splitNUL(out []byte) []string {
	parts := strings.Split(string(out), "\x00")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

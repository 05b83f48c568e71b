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
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/deltalint/services/deltalint"
	"github.com/AleutianAI/deltalint/services/deltalint/config"
	"github.com/AleutianAI/deltalint/services/deltalint/content"
	"github.com/AleutianAI/deltalint/services/deltalint/delta"
	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/filter"
	"github.com/AleutianAI/deltalint/services/deltalint/lint"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs/vcstest"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, CLIExitSuccess},
		{"gate", errFindingsGate, CLIExitFindings},
		{"unsupported", errs.Unsupported("lint", nil), CLIExitUnsupported},
		{"configuration", errs.Configuration("bad"), CLIExitError},
		{"revision", errs.Revision("resolve", errors.New("nope")), CLIExitError},
		{"invariant", errs.Invariant("broken"), CLIExitError},
		{"lint execution", errs.LintExecution("lint", errors.New("crash")), CLIExitError},
		{"plain", errors.New("io"), CLIExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestPrintIgnoreStats(t *testing.T) {
	tests := []struct {
		errors, warnings int
		want             string
	}{
		{1, 0, "Ignored 1 error that was found outside the added or modified lines.\n"},
		{0, 1, "Ignored 1 warning that was found outside the added or modified lines.\n"},
		{2, 1, "Ignored 2 errors and 1 warning that were found outside the added or modified lines.\n"},
		{1, 3, "Ignored 1 error and 3 warnings that were found outside the added or modified lines.\n"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.errors, tt.warnings), func(t *testing.T) {
			var buf bytes.Buffer
			printIgnoreStats(&buf, tt.errors, tt.warnings, "deltalint diff --all")
			want := tt.want + "(Run deltalint diff --all to show all errors and warnings.)\n\n"
			assert.Equal(t, want, buf.String())
		})
	}
}

func TestPrintError(t *testing.T) {
	t.Run("unsupported shows hint", func(t *testing.T) {
		var buf bytes.Buffer
		err := errs.Unsupported("cannot lint the working tree: partially staged file", nil).
			WithPath("baz.js").
			WithHint(content.PartiallyStagedHint)
		printError(&buf, err)
		assert.Equal(t,
			"deltalint: cannot lint the working tree: partially staged file baz.js\n"+content.PartiallyStagedHint+"\n",
			buf.String())
	})

	t.Run("gate is silent", func(t *testing.T) {
		var buf bytes.Buffer
		printError(&buf, errFindingsGate)
		assert.Empty(t, buf.String())
	})

	t.Run("other errors print the chain", func(t *testing.T) {
		var buf bytes.Buffer
		printError(&buf, fmt.Errorf("outer: %w", errors.New("inner")))
		assert.Equal(t, "deltalint: outer: inner\n", buf.String())
	})
}

func TestRerunCommand(t *testing.T) {
	assert.Equal(t, "deltalint --all", rerunCommand(nil))
	assert.Equal(t, "deltalint diff HEAD~3 --all", rerunCommand([]string{"/usr/local/bin/deltalint", "diff", "HEAD~3"}))
	assert.Equal(t, "deltalint show --all -- src", rerunCommand([]string{"deltalint", "show", "--", "src"}))
}

func TestSplitArgs(t *testing.T) {
	cmd := &cobra.Command{}
	require.NoError(t, cmd.Flags().Parse([]string{"main...HEAD", "--", "src", "lib/a.go"}))

	positional, paths := splitArgs(cmd, cmd.Flags().Args())
	assert.Equal(t, []string{"main...HEAD"}, positional)
	assert.Equal(t, []string{"src", "lib/a.go"}, paths)

	plain := &cobra.Command{}
	require.NoError(t, plain.Flags().Parse([]string{"A", "B"}))
	positional, paths = splitArgs(plain, plain.Flags().Args())
	assert.Equal(t, []string{"A", "B"}, positional)
	assert.Nil(t, paths)
}

func TestRepoPathspecs(t *testing.T) {
	root := filepath.FromSlash("/work/repo")
	cwd := filepath.Join(root, "pkg")

	specs, err := repoPathspecs(root, cwd, []string{"a.go", "../cmd", filepath.Join(root, "docs")})
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg/a.go", "cmd", "docs"}, specs)

	_, err = repoPathspecs(root, cwd, []string{"../../elsewhere"})
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestDetectBaseBranch(t *testing.T) {
	b := vcstest.New("/repo")
	_, err := detectBaseBranch(context.Background(), b)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	assert.NotEmpty(t, errs.HintOf(err))

	b.AddCommit("master", "m1", "t1")
	got, err := detectBaseBranch(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "master", got)

	b.AddCommit("origin/HEAD", "o1", "t2")
	got, err = detectBaseBranch(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "origin/HEAD", got)
}

// =============================================================================
// Reporting
// =============================================================================

func testSession() *session {
	cfg := config.Default()
	cfg.Format = "compact"
	return &session{
		cfg:    cfg,
		runner: lint.NewRunner(lint.WithFormatOptions(lint.FormatOptions{Color: lint.ColorNever})),
	}
}

func reportResult(retained, filtered int) *deltalint.Result {
	path := filepath.FromSlash("/repo/a.js")
	var findings []lint.Finding
	for i := 0; i < retained; i++ {
		findings = append(findings, lint.Finding{Rule: "no-undef", Severity: lint.SeverityError, Message: "x is not defined", Line: i + 1, Column: 1})
	}
	res := lint.NewFileResult(path, findings)
	return &deltalint.Result{
		Delta: delta.New(delta.Entry{Path: path, RelPath: "a.js", Kind: vcs.ChangeAdded, Lines: delta.AllLines}),
		Report: &filter.Report{
			Results:            []lint.FileResult{res},
			ErrorCount:         res.ErrorCount,
			FilteredErrorCount: filtered,
		},
	}
}

func TestReport(t *testing.T) {
	defer func(ci bool) { flagCI = ci }(flagCI)

	t.Run("nothing retained prints nothing", func(t *testing.T) {
		flagCI = true
		var buf bytes.Buffer
		err := testSession().report(&buf, reportResult(0, 2), []string{"deltalint", "diff"})
		require.NoError(t, err)
		assert.Empty(t, buf.String())
	})

	t.Run("empty delta", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, testSession().report(&buf, &deltalint.Result{}, nil))
		assert.Empty(t, buf.String())
	})

	t.Run("findings with ignore stats", func(t *testing.T) {
		flagCI = false
		var buf bytes.Buffer
		err := testSession().report(&buf, reportResult(1, 2), []string{"deltalint", "diff"})
		require.NoError(t, err)
		out := buf.String()
		assert.Contains(t, out, "x is not defined")
		assert.Contains(t, out, "Ignored 2 errors that were found outside the added or modified lines.")
		assert.Contains(t, out, "(Run deltalint diff --all to show all errors and warnings.)")
	})

	t.Run("ci gates on errors", func(t *testing.T) {
		flagCI = true
		var buf bytes.Buffer
		err := testSession().report(&buf, reportResult(1, 0), []string{"deltalint", "diff"})
		assert.ErrorIs(t, err, errFindingsGate)
		assert.NotContains(t, buf.String(), "Ignored")
	})
}

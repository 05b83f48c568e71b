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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/deltalint/services/deltalint"
	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/revision"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
)

// baseCandidates are tried in order when no base branch is configured.
var baseCandidates = []string{"origin/HEAD", "main", "master"}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runDiff(cmd *cobra.Command, args []string) error {
	commits, paths := splitArgs(cmd, args)
	sel, err := revision.ParseDiffArgs(commits, diffCached)
	if err != nil {
		return err
	}
	return runSelector(cmd, sel, paths)
}

func runShow(cmd *cobra.Command, args []string) error {
	commits, paths := splitArgs(cmd, args)
	sel, err := revision.ParseShowArgs(commits)
	if err != nil {
		return err
	}
	return runSelector(cmd, sel, paths)
}

func runBase(cmd *cobra.Command, args []string) error {
	names, paths := splitArgs(cmd, args)
	if len(names) > 1 {
		return errs.Configuration("base expects at most one branch, got %d", len(names))
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, paths)
	if err != nil {
		return err
	}
	defer s.Close()

	branch := baseBranch
	if len(names) == 1 {
		branch = names[0]
	}
	if branch == "" {
		branch = s.cfg.BaseBranch
	}
	if branch == "" {
		branch, err = detectBaseBranch(ctx, s.repo)
		if err != nil {
			return err
		}
		s.logger.Debug("Detected base branch", "branch", branch)
	}

	return s.lintSelector(cmd, revision.BaseSelector(branch))
}

func runPatch(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return errs.Configuration("open patch: %v", err)
		}
		defer f.Close()
		in = f
	}

	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.linter.LintPatch(cmd.Context(), in)
	if err != nil {
		return err
	}
	return s.report(cmd.OutOrStdout(), res, os.Args)
}

// runSelector opens a session and lints one selection.
func runSelector(cmd *cobra.Command, sel revision.Selector, paths []string) error {
	s, err := openSession(cmd.Context(), paths)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.lintSelector(cmd, sel)
}

// lintSelector resolves, lints and reports.
func (s *session) lintSelector(cmd *cobra.Command, sel revision.Selector) error {
	ctx := cmd.Context()

	ep, err := s.linter.Endpoints(ctx, sel)
	if err != nil {
		return err
	}
	if flagDebug {
		printEndpoints(cmd.ErrOrStderr(), ep)
	}

	res, err := s.linter.RunEndpoints(ctx, ep)
	if err != nil {
		return err
	}
	return s.report(cmd.OutOrStdout(), res, os.Args)
}

// report renders a result and decides the gate.
//
// # Description
//
// Nothing is printed when no error or warning was retained. Otherwise the
// formatter output is followed by the ignore stats when findings were
// filtered. With --ci, retained errors yield errFindingsGate.
func (s *session) report(w io.Writer, res *deltalint.Result, argv []string) error {
	if res.Empty() || !res.Report.HasProblems() {
		return nil
	}
	r := res.Report

	formatter, err := s.runner.Formatter(s.cfg.Format)
	if err != nil {
		return errs.Configuration("%v", err)
	}
	if err := formatter.Format(w, r.Results); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if r.HasFiltered() {
		printIgnoreStats(w, r.FilteredErrorCount, r.FilteredWarningCount, rerunCommand(argv))
	}

	if flagCI && r.ErrorCount > 0 {
		return errFindingsGate
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// splitArgs separates positional arguments from the paths after "--".
func splitArgs(cmd *cobra.Command, args []string) (positional, paths []string) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return args, nil
	}
	return args[:dash], args[dash:]
}

// detectBaseBranch returns the first candidate that resolves.
func detectBaseBranch(ctx context.Context, backend vcs.Backend) (string, error) {
	for _, name := range baseCandidates {
		if _, err := backend.ResolveCommit(ctx, name); err == nil {
			return name, nil
		} else if !errors.Is(err, vcs.ErrUnknownRevision) {
			return "", errs.Revision("detect base branch", err)
		}
	}
	return "", errs.Configuration("no base branch found (tried %s); pass one or set base_branch",
		strings.Join(baseCandidates, ", ")).
		WithHint("Run `deltalint base <branch>` or add base_branch to .deltalint.yaml.")
}

// rerunCommand rebuilds the invocation with --all added before any "--".
func rerunCommand(argv []string) string {
	if len(argv) == 0 {
		return "deltalint --all"
	}
	parts := []string{filepath.Base(argv[0])}
	rest := argv[1:]
	for i, a := range rest {
		if a == "--" {
			parts = append(parts, rest[:i]...)
			parts = append(parts, "--all")
			parts = append(parts, rest[i:]...)
			return strings.Join(parts, " ")
		}
	}
	parts = append(parts, rest...)
	parts = append(parts, "--all")
	return strings.Join(parts, " ")
}

func printEndpoints(w io.Writer, ep *revision.Endpoints) {
	newCommit := "-"
	if ep.New != nil {
		newCommit = ep.New.ID
	}
	fmt.Fprintf(w, "%s\nold commit: %s\nnew commit: %s\nmerge base applied: %t\n",
		ep.Selector, ep.Old.ID, newCommit, ep.MergeBaseApplied)
}

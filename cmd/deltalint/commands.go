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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/deltalint/services/deltalint/lint"
)

// --- Global Command Variables ---
var (
	flagAll       bool   // Select every line of modified files
	flagCI        bool   // Exit 1 when errors remain
	flagDebug     bool   // Debug logging and endpoint dump
	flagGlob      string // Overrides the configured glob
	flagFormat    string // Overrides the configured formatter
	flagConfig    string // Explicit config file
	flagUntracked bool   // Lint untracked files in working-tree diffs
	flagColor     string // auto, always or never
	flagDir       string // Run as if started in this directory

	diffCached    bool
	baseBranch    string
	watchCached   bool
	watchDebounce time.Duration
	watchInterval time.Duration
	initForce     bool
	initDefaults  bool

	rootCmd = &cobra.Command{
		Use:   "deltalint",
		Short: "Lint only the lines you changed",
		Long: `deltalint runs the linters of a repository and reports only the
findings on lines a change added, so quality gates flag new problems
instead of pre-existing debt.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// --- Revision Selection ---
	diffCmd = &cobra.Command{
		Use:   "diff [commits...] [-- paths...]",
		Short: "Lint the lines added between commits, the index or the working tree",
		Long: `Lint the lines added between two points in history.

  deltalint diff                 HEAD against the working tree
  deltalint diff --cached        HEAD against the index
  deltalint diff A               A against HEAD (the index with --cached)
  deltalint diff A B             A against B
  deltalint diff A..B            A against B
  deltalint diff A...B           the merge base of A and B against B`,
		RunE: runDiff, // Defined in cmd_lint.go
	}

	showCmd = &cobra.Command{
		Use:   "show [commit] [-- paths...]",
		Short: "Lint the lines a commit added relative to its first parent",
		RunE:  runShow, // Defined in cmd_lint.go
	}

	baseCmd = &cobra.Command{
		Use:   "base [branch] [-- paths...]",
		Short: "Lint the lines HEAD added since it forked from a base branch",
		Long: `Lint the lines HEAD added since its merge base with a base branch.

The branch defaults to base_branch from the config file, then to the first
of origin/HEAD, main and master that exists.`,
		RunE: runBase, // Defined in cmd_lint.go
	}

	patchCmd = &cobra.Command{
		Use:   "patch [file|-]",
		Short: "Lint the lines a unified diff adds, reading files from disk",
		Long: `Lint the lines a unified diff adds. The patch must already be applied
to the working tree. With no argument or "-" the patch is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPatch, // Defined in cmd_lint.go
	}

	// --- Utilities ---
	watchCmd = &cobra.Command{
		Use:   "watch [-- paths...]",
		Short: "Re-lint the working tree whenever a tracked file, the index or HEAD changes",
		RunE:  runWatch, // Defined in cmd_watch.go
	}

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a .deltalint.yaml to the repository root",
		Args:  cobra.NoArgs,
		RunE:  runInit, // Defined in cmd_init.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version and the detected linters",
		Args:  cobra.NoArgs,
		RunE:  runVersion, // Defined in cmd_init.go
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flagAll, "all", "a", false, "Report findings on every line of changed files")
	pf.BoolVar(&flagCI, "ci", false, "Exit with status 1 when errors remain")
	pf.BoolVar(&flagDebug, "debug", false, "Log at debug level and print the resolved revisions")
	pf.StringVar(&flagGlob, "glob", "", "Only lint paths matching this glob (default: every extension a linter handles)")
	pf.StringVar(&flagFormat, "format", "", "Result format: stylish, compact, json or codeframe")
	pf.StringVar(&flagConfig, "config", "", "Config file (default: .deltalint.yaml at the repository root)")
	pf.BoolVar(&flagUntracked, "include-untracked", false, "Lint untracked files in working-tree diffs")
	pf.StringVar(&flagColor, "color", string(lint.ColorAuto), "Colorize output: auto, always or never")
	pf.StringVarP(&flagDir, "dir", "C", ".", "Run as if started in this directory")

	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().BoolVar(&diffCached, "cached", false, "Compare against the index instead of the working tree")
	diffCmd.Flags().BoolVar(&diffCached, "staged", false, "Synonym for --cached")

	rootCmd.AddCommand(showCmd)

	rootCmd.AddCommand(baseCmd)
	baseCmd.Flags().StringVar(&baseBranch, "branch", "", "Base branch (overrides base_branch)")

	rootCmd.AddCommand(patchCmd)

	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchCached, "cached", false, "Lint the index instead of the working tree")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "Quiet period before a change triggers a run")
	watchCmd.Flags().DurationVar(&watchInterval, "min-interval", 2*time.Second, "Minimum time between runs")

	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false, "Write defaults without prompting")

	rootCmd.AddCommand(versionCmd)
}

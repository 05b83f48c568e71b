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
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/deltalint/services/deltalint/config"
	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/lint"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
)

// runInit writes .deltalint.yaml to the repository root.
//
// # Description
//
// On a terminal the user is asked for the base branch, the output format
// and the untracked/required-linter switches. Otherwise, or with
// --defaults, the defaults are written unchanged. An existing file is kept
// unless --force is given.
//
// # Exit Codes
//
//	0 - Config written
//	2 - Not a repository, file exists, or the form was aborted
func runInit(cmd *cobra.Command, _ []string) error {
	repo, err := vcs.Open(flagDir)
	if err != nil {
		return errs.Revision("open repository", err)
	}
	path := filepath.Join(repo.Root(), config.FileNames[0])
	if existing := config.Find(repo.Root()); existing != "" && !initForce {
		return errs.Configuration("%s already exists", existing).
			WithHint("Pass --force to overwrite it.")
	}

	cfg := config.Default()
	if branch, err := detectBaseBranch(cmd.Context(), repo); err == nil {
		cfg.BaseBranch = branch
	}

	if !initDefaults && isTerminal(cmd.InOrStdin()) {
		if err := promptConfig(cfg); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return errs.Configuration("init aborted")
			}
			return fmt.Errorf("prompt: %w", err)
		}
	}

	if err := cfg.Write(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

// promptConfig edits cfg through an interactive form.
func promptConfig(cfg *config.Config) error {
	formats := make([]huh.Option[string], 0, len(lint.FormatterNames))
	for _, name := range lint.FormatterNames {
		formats = append(formats, huh.NewOption(name, name))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Base branch").
				Description("Compared against by `deltalint base`. Leave empty to auto-detect.").
				Value(&cfg.BaseBranch),
			huh.NewSelect[string]().
				Title("Output format").
				Options(formats...).
				Value(&cfg.Format),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Lint untracked files in working-tree diffs?").
				Value(&cfg.IncludeUntracked),
			huh.NewConfirm().
				Title("Fail when a needed linter is not installed?").
				Value(&cfg.RequireLinters),
		),
	)
	return form.Run()
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// runVersion prints the build version and the linters found on PATH.
func runVersion(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "deltalint %s\n", version)

	runner := lint.NewRunner(lint.WithLogger(slog.New(slog.DiscardHandler)))
	if repo, err := vcs.Open(flagDir); err == nil {
		if cfg, err := config.Load(config.Find(repo.Root()), os.Getenv); err == nil {
			_ = cfg.Apply(runner.Configs(), runner.Policies())
		}
	}
	available := runner.DetectAvailableLinters(cmd.Context())

	languages := make([]string, 0, len(available))
	for lang := range available {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	for _, lang := range languages {
		c := runner.Configs().Get(lang)
		status := "not installed"
		if c.Available {
			status = c.Version
			if status == "" {
				status = "installed"
			}
		}
		fmt.Fprintf(out, "  %-12s %-16s %s\n", lang, c.Command, status)
	}
	return nil
}

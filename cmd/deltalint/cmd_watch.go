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
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/revision"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
)

// runWatch re-lints the staged or working-tree diff whenever git touches
// the index, HEAD or branch refs. Without --cached, edits to files that are
// not ignored trigger a run as well.
//
// # Description
//
// Change bursts are debounced by the watcher and runs are additionally
// rate limited, so a rebase rewriting many refs yields a handful of runs
// rather than hundreds. A failed run is printed and watching continues;
// only setup failures end the command. Ctrl-C exits cleanly.
func runWatch(cmd *cobra.Command, args []string) error {
	_, paths := splitArgs(cmd, args)
	sel, err := revision.ParseDiffArgs(nil, watchCached)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, paths)
	if err != nil {
		return err
	}
	defer s.Close()

	gitDir, err := s.repo.GitDir(ctx)
	if err != nil {
		return errs.Revision("locate git directory", err)
	}

	triggers := make(chan struct{}, 1)
	notify := func() {
		select {
		case triggers <- struct{}{}:
		default:
		}
	}
	var watcher *vcs.IndexWatcher
	if watchCached {
		watcher, err = vcs.NewIndexWatcher(gitDir, watchDebounce, notify, s.logger.Slog())
	} else {
		watcher, err = vcs.NewWorktreeWatcher(s.repo.Root(), gitDir, watchDebounce, notify, s.logger.Slog())
	}
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watcher.Start(watchCtx)
	defer func() {
		if err := watcher.Stop(); err != nil {
			s.logger.Debug("Watcher stop failed", slog.String("error", err.Error()))
		}
	}()

	limiter := rate.NewLimiter(rate.Every(watchInterval), 1)
	out := cmd.OutOrStdout()

	s.watchOnce(cmd, sel, out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-triggers:
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			s.watchOnce(cmd, sel, out)
		}
	}
}

// watchOnce runs one lint and prints its outcome under a timestamp.
func (s *session) watchOnce(cmd *cobra.Command, sel revision.Selector, out io.Writer) {
	st := newStyles(out)
	fmt.Fprintln(out, st.hint.Render(fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), sel)))

	err := s.lintSelector(cmd, sel)
	if err != nil && !errors.Is(err, context.Canceled) {
		printError(cmd.ErrOrStderr(), err)
	}
}

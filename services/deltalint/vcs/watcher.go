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
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultDebounce is the quiet period before a burst of git writes is
// reported as one change.
const DefaultDebounce = 300 * time.Millisecond

// IndexWatcher watches the staging area, HEAD and branch refs for changes,
// and optionally the working tree.
//
// # Description
//
// git updates the index by writing index.lock and renaming it over index, so
// the git directory itself is watched and events are filtered by name.
// fsnotify does not recurse, so refs/heads and, in working-tree mode, every
// directory not excluded by .gitignore get their own watch; directories
// created later are added as they appear. Bursts (git add of many files, a
// commit touching index + HEAD + refs, a save-all in an editor) are
// collapsed into a single callback after a debounce period.
//
// # Thread Safety
//
// Safe for concurrent use. Start should only be called once.
type IndexWatcher struct {
	gitDir   string
	worktree string
	watcher  *fsnotify.Watcher
	callback func()
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	timer    *time.Timer
	patterns []gitignore.Pattern
}

// watchedNames are the git directory entries whose change triggers a rerun.
var watchedNames = map[string]bool{
	"index":       true,
	"HEAD":        true,
	"packed-refs": true,
}

// NewIndexWatcher creates a watcher for the given git directory.
//
// # Inputs
//
//   - gitDir: Absolute path of the git directory.
//   - debounce: Quiet period; DefaultDebounce when zero.
//   - callback: Invoked once per debounced burst.
//   - logger: Logger; slog.Default() when nil.
//
// # Outputs
//
//   - *IndexWatcher: Ready-to-start watcher.
//   - error: Non-nil if the fsnotify watcher cannot be created.
func NewIndexWatcher(gitDir string, debounce time.Duration, callback func(), logger *slog.Logger) (*IndexWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &IndexWatcher{
		gitDir:   gitDir,
		watcher:  watcher,
		callback: callback,
		debounce: debounce,
		logger:   logger,
	}, nil
}

// NewWorktreeWatcher creates a watcher that also fires on edits to files
// under root that .gitignore does not exclude. Use it when the linted
// content comes from the working tree.
func NewWorktreeWatcher(root, gitDir string, debounce time.Duration, callback func(), logger *slog.Logger) (*IndexWatcher, error) {
	w, err := NewIndexWatcher(gitDir, debounce, callback, logger)
	if err != nil {
		return nil, err
	}
	w.worktree = root
	return w, nil
}

// Start watches until ctx is cancelled. It blocks; run it in a goroutine.
func (w *IndexWatcher) Start(ctx context.Context) {
	if err := w.watcher.Add(w.gitDir); err != nil {
		w.logger.Warn("Failed to watch git directory",
			"path", w.gitDir,
			"error", err)
		return
	}

	refsPath := filepath.Join(w.gitDir, "refs", "heads")
	if _, err := os.Stat(refsPath); err == nil {
		w.addTree(refsPath)
	}
	if w.worktree != "" {
		w.addTree(w.worktree)
	}

	w.logger.Debug("Started watching git index",
		"git_dir", w.gitDir,
		"worktree", w.worktree,
		"watches", len(w.watcher.WatchList()))

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Git index watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Debug("Git index watcher stopping")
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		}
	}
}

// addTree watches dir and every directory below it that is not excluded.
// A .gitignore is read before the directory's children are visited, so its
// patterns apply to them.
func (w *IndexWatcher) addTree(dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.excluded(path, true) {
			return filepath.SkipDir
		}
		if w.inWorktree(path) {
			w.loadIgnore(path)
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Debug("Failed to watch directory",
				"path", path,
				"error", err)
		}
		return nil
	})
	if err != nil {
		w.logger.Debug("Failed to walk directory", "path", dir, "error", err)
	}
}

// loadIgnore adds the patterns of dir/.gitignore, scoped to dir.
func (w *IndexWatcher) loadIgnore(dir string) {
	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return
	}
	domain := w.components(dir)

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		w.patterns = append(w.patterns, gitignore.ParsePattern(line, domain))
	}
}

// handleEvent schedules the callback for relevant events and starts
// watching directories created under a watched tree.
func (w *IndexWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 && w.inWatchedTree(event.Name) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.excluded(event.Name, true) {
			w.addTree(event.Name)
		}
	}
	if !w.relevant(event) {
		return
	}

	w.logger.Debug("Git state changed", "path", event.Name, "op", event.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.callback)
}

// relevant filters out lock files, unrelated git directory entries and
// ignored working-tree paths.
func (w *IndexWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	if filepath.Ext(event.Name) == ".lock" {
		return false
	}
	if rel, ok := under(w.gitDir, event.Name); ok {
		rel = filepath.ToSlash(rel)
		return watchedNames[rel] || strings.HasPrefix(rel, "refs/heads/")
	}
	if !w.inWorktree(event.Name) {
		return false
	}
	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}
	return !w.excluded(event.Name, isDir)
}

// excluded reports whether a working-tree path is a git directory or
// matched by a loaded .gitignore pattern.
func (w *IndexWatcher) excluded(path string, isDir bool) bool {
	if !w.inWorktree(path) {
		return false
	}
	parts := w.components(path)
	for _, p := range parts {
		if p == ".git" {
			return true
		}
	}

	w.mu.Lock()
	patterns := w.patterns
	w.mu.Unlock()
	return gitignore.NewMatcher(patterns).Match(parts, isDir)
}

// inWorktree reports whether path lies in the watched working tree and
// outside the git directory.
func (w *IndexWatcher) inWorktree(path string) bool {
	if w.worktree == "" {
		return false
	}
	if _, ok := under(w.gitDir, path); ok {
		return false
	}
	_, ok := under(w.worktree, path)
	return ok
}

// inWatchedTree reports whether path lies in a recursively watched tree.
func (w *IndexWatcher) inWatchedTree(path string) bool {
	if _, ok := under(filepath.Join(w.gitDir, "refs", "heads"), path); ok {
		return true
	}
	return w.inWorktree(path)
}

// components splits a working-tree path into its slash-free parts.
func (w *IndexWatcher) components(path string) []string {
	rel, ok := under(w.worktree, path)
	if !ok || rel == "." {
		return nil
	}
	return strings.Split(filepath.ToSlash(rel), "/")
}

// under returns path relative to root when path is root or below it.
func under(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || !filepath.IsLocal(rel) {
		return "", false
	}
	return rel, true
}

// Stop releases the watcher. Safe to call multiple times.
func (w *IndexWatcher) Stop() error {
	return w.watcher.Close()
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vcstest provides an in-memory vcs.Backend for tests.
package vcstest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
)

// DiffKey identifies a canned diff result.
type DiffKey struct {
	// Old is the old tree id.
	Old string

	// New is the new tree id, or "INDEX" / "WORKDIR".
	New string
}

// Backend is a scripted vcs.Backend.
//
// # Description
//
// Every map is consulted verbatim; missing entries produce the same sentinel
// errors the git-backed implementation returns. Calls are recorded so tests
// can assert that no repository access happened.
//
// # Thread Safety
//
// Safe for concurrent use once configured.
type Backend struct {
	RootDir    string
	Commits    map[string]vcs.Commit
	MergeBases map[[2]string]string
	Diffs      map[DiffKey][]*vcs.Change
	Trees      map[string]map[string][]byte
	Index      map[string][]byte
	Statuses   map[string]vcs.FileStatus

	// DiffErr, when set, is returned from every diff call.
	DiffErr error
	// WriteErr, when set, is returned from WriteTree and WriteIndex.
	WriteErr error

	mu    sync.Mutex
	calls []string
}

// New returns an empty backend rooted at root.
func New(root string) *Backend {
	return &Backend{
		RootDir:    root,
		Commits:    make(map[string]vcs.Commit),
		MergeBases: make(map[[2]string]string),
		Diffs:      make(map[DiffKey][]*vcs.Change),
		Trees:      make(map[string]map[string][]byte),
		Index:      make(map[string][]byte),
		Statuses:   make(map[string]vcs.FileStatus),
	}
}

// AddCommit registers spec (and the commit id itself) as resolving to a
// commit with the given tree.
func (b *Backend) AddCommit(spec, id, tree string) vcs.Commit {
	c := vcs.Commit{ID: id, TreeID: tree}
	b.Commits[spec] = c
	b.Commits[id] = c
	return c
}

// SetFile stores content at path inside tree.
func (b *Backend) SetFile(tree, path, content string) {
	if b.Trees[tree] == nil {
		b.Trees[tree] = make(map[string][]byte)
	}
	b.Trees[tree][path] = []byte(content)
}

// Calls returns the recorded method calls.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *Backend) record(format string, args ...any) {
	b.mu.Lock()
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
	b.mu.Unlock()
}

// Root implements vcs.Backend.
func (b *Backend) Root() string { return b.RootDir }

// ResolveCommit implements vcs.Backend.
func (b *Backend) ResolveCommit(_ context.Context, spec string) (vcs.Commit, error) {
	b.record("ResolveCommit %s", spec)
	c, ok := b.Commits[spec]
	if !ok {
		return vcs.Commit{}, fmt.Errorf("%w: %s", vcs.ErrUnknownRevision, spec)
	}
	return c, nil
}

// MergeBase implements vcs.Backend.
func (b *Backend) MergeBase(_ context.Context, x, y string) (string, error) {
	b.record("MergeBase %s %s", x, y)
	if mb, ok := b.MergeBases[[2]string{x, y}]; ok {
		return mb, nil
	}
	if mb, ok := b.MergeBases[[2]string{y, x}]; ok {
		return mb, nil
	}
	return "", vcs.ErrNoMergeBase
}

func (b *Backend) diff(oldTree, newTree string) ([]*vcs.Change, error) {
	b.record("Diff %s %s", oldTree, newTree)
	if b.DiffErr != nil {
		return nil, b.DiffErr
	}
	return b.Diffs[DiffKey{Old: oldTree, New: newTree}], nil
}

// DiffTrees implements vcs.Backend.
func (b *Backend) DiffTrees(_ context.Context, oldTree, newTree string, _ vcs.DiffOptions) ([]*vcs.Change, error) {
	return b.diff(oldTree, newTree)
}

// DiffTreeToIndex implements vcs.Backend.
func (b *Backend) DiffTreeToIndex(_ context.Context, oldTree string, _ vcs.DiffOptions) ([]*vcs.Change, error) {
	return b.diff(oldTree, "INDEX")
}

// DiffTreeToWorkdir implements vcs.Backend.
func (b *Backend) DiffTreeToWorkdir(_ context.Context, oldTree string, opts vcs.DiffOptions) ([]*vcs.Change, error) {
	changes, err := b.diff(oldTree, "WORKDIR")
	if err != nil || opts.IncludeUntracked {
		return changes, err
	}
	tracked := make([]*vcs.Change, 0, len(changes))
	for _, c := range changes {
		if c.Kind != vcs.ChangeUntracked {
			tracked = append(tracked, c)
		}
	}
	return tracked, nil
}

// BlobAtPath implements vcs.Backend.
func (b *Backend) BlobAtPath(_ context.Context, treeID, path string) ([]byte, error) {
	b.record("BlobAtPath %s %s", treeID, path)
	content, ok := b.Trees[treeID][path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vcs.ErrPathNotFound, path)
	}
	return content, nil
}

// IndexEntry implements vcs.Backend. Blob ids are "index:<path>".
func (b *Backend) IndexEntry(_ context.Context, path string, stage int) (vcs.IndexEntry, error) {
	b.record("IndexEntry %s %d", path, stage)
	if _, ok := b.Index[path]; !ok || stage != 0 {
		return vcs.IndexEntry{}, fmt.Errorf("%w: %s", vcs.ErrEntryNotFound, path)
	}
	return vcs.IndexEntry{Path: path, Stage: stage, BlobID: "index:" + path}, nil
}

// ReadBlob implements vcs.Backend.
func (b *Backend) ReadBlob(_ context.Context, id string) ([]byte, error) {
	b.record("ReadBlob %s", id)
	if path, ok := strings.CutPrefix(id, "index:"); ok {
		if content, ok := b.Index[path]; ok {
			return content, nil
		}
	}
	return nil, fmt.Errorf("%w: blob %s", vcs.ErrPathNotFound, id)
}

// Status implements vcs.Backend.
func (b *Backend) Status(_ context.Context, paths []string) (map[string]vcs.FileStatus, error) {
	b.record("Status %d", len(paths))
	out := make(map[string]vcs.FileStatus)
	for _, p := range paths {
		if st, ok := b.Statuses[p]; ok && st != 0 {
			out[p] = st
		}
	}
	return out, nil
}

// WriteTree implements vcs.Backend.
func (b *Backend) WriteTree(_ context.Context, treeID, dir string) error {
	b.record("WriteTree %s", treeID)
	if b.WriteErr != nil {
		return b.WriteErr
	}
	files, ok := b.Trees[treeID]
	if !ok {
		return fmt.Errorf("%w: tree %s", vcs.ErrPathNotFound, treeID)
	}
	return writeFiles(dir, files)
}

// WriteIndex implements vcs.Backend.
func (b *Backend) WriteIndex(_ context.Context, dir string) error {
	b.record("WriteIndex")
	if b.WriteErr != nil {
		return b.WriteErr
	}
	return writeFiles(dir, b.Index)
}

func writeFiles(dir string, files map[string][]byte) error {
	for path, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, content, 0o644); err != nil {
			return err
		}
	}
	return nil
}

var _ vcs.Backend = (*Backend)(nil)

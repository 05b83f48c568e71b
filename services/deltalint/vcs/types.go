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
	"sync"
)

// =============================================================================
// BACKEND CAPABILITY
// =============================================================================

// Backend is the version-control capability consumed by the pipeline.
//
// # Description
//
// Paths passed to and returned from a Backend are repository-relative and
// slash-separated. Commit and tree identifiers are full hex object names.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the pipeline fans out
// blob reads and hunk loads.
type Backend interface {
	// Root returns the absolute path of the working tree root.
	Root() string

	// ResolveCommit resolves a revision spec ("HEAD", "main~", a hash) to a commit.
	ResolveCommit(ctx context.Context, spec string) (Commit, error)

	// MergeBase returns the nearest common ancestor of two commits.
	MergeBase(ctx context.Context, a, b string) (string, error)

	// DiffTrees diffs two trees.
	DiffTrees(ctx context.Context, oldTree, newTree string, opts DiffOptions) ([]*Change, error)

	// DiffTreeToIndex diffs a tree against the staging area.
	DiffTreeToIndex(ctx context.Context, oldTree string, opts DiffOptions) ([]*Change, error)

	// DiffTreeToWorkdir diffs a tree against the working tree.
	DiffTreeToWorkdir(ctx context.Context, oldTree string, opts DiffOptions) ([]*Change, error)

	// BlobAtPath reads the blob at path inside a tree. Returns ErrPathNotFound
	// when the tree has no such file.
	BlobAtPath(ctx context.Context, treeID, path string) ([]byte, error)

	// IndexEntry returns the index entry for path at stage. Returns
	// ErrEntryNotFound when the path is not staged at that stage.
	IndexEntry(ctx context.Context, path string, stage int) (IndexEntry, error)

	// ReadBlob reads a blob by object id.
	ReadBlob(ctx context.Context, id string) ([]byte, error)

	// Status reports staged/unstaged status bits for the given paths.
	// Clean paths are absent from the result.
	Status(ctx context.Context, paths []string) (map[string]FileStatus, error)

	// WriteTree writes every file of a tree under dir, mirroring the
	// repository layout.
	WriteTree(ctx context.Context, treeID, dir string) error

	// WriteIndex writes every stage-0 index entry under dir, mirroring the
	// repository layout.
	WriteIndex(ctx context.Context, dir string) error
}

// =============================================================================
// OBJECTS
// =============================================================================

// Commit is a resolved commit and its root tree.
type Commit struct {
	ID     string
	TreeID string
}

// Short returns an abbreviated commit id for display.
func (c Commit) Short() string {
	if len(c.ID) > 10 {
		return c.ID[:10]
	}
	return c.ID
}

// IndexEntry is one staging-area entry.
type IndexEntry struct {
	Path   string
	Stage  int
	BlobID string
}

// DiffOptions controls diff computation.
type DiffOptions struct {
	// DetectRenames enables rename/similarity detection.
	DetectRenames bool

	// IncludeUntracked lists untracked, non-ignored files in workdir diffs.
	IncludeUntracked bool
}

// =============================================================================
// CHANGES
// =============================================================================

// ChangeKind classifies a changed path.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota
	ChangeAdded
	ChangeDeleted
	ChangeRenamed
	ChangeUntracked
)

// String returns the lowercase name of the kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeModified:
		return "modified"
	case ChangeAdded:
		return "added"
	case ChangeDeleted:
		return "deleted"
	case ChangeRenamed:
		return "renamed"
	case ChangeUntracked:
		return "untracked"
	default:
		return "unknown"
	}
}

// Line is one hunk line. A line number of -1 means the side has no line.
type Line struct {
	OldLineno int
	NewLineno int
	Content   string
}

// Added reports whether the line is a pure insertion on the new side.
func (l Line) Added() bool {
	return l.OldLineno < 0 && l.NewLineno > 0
}

// Hunk is a contiguous changed region of one file.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// HunkLoader produces the hunks of a change on demand.
type HunkLoader func(ctx context.Context) ([]Hunk, error)

// Change is one changed path in a diff.
//
// # Description
//
// Hunks are loaded lazily on the first call to Hunks and cached. Path is the
// new-side path; OldPath differs from Path only for renames and deletions.
//
// # Thread Safety
//
// Hunks is safe for concurrent use.
type Change struct {
	Path    string
	OldPath string
	Kind    ChangeKind
	Binary  bool

	load  HunkLoader
	once  sync.Once
	hunks []Hunk
	err   error
}

// NewChange creates a change whose hunks come from load. A nil load means the
// change has no hunks.
func NewChange(path, oldPath string, kind ChangeKind, load HunkLoader) *Change {
	return &Change{
		Path:    path,
		OldPath: oldPath,
		Kind:    kind,
		load:    load,
	}
}

// NewChangeWithHunks creates a change with hunks already parsed.
func NewChangeWithHunks(path, oldPath string, kind ChangeKind, hunks []Hunk) *Change {
	return NewChange(path, oldPath, kind, func(context.Context) ([]Hunk, error) {
		return hunks, nil
	})
}

// Hunks returns the change's hunks, loading them on first use.
func (c *Change) Hunks(ctx context.Context) ([]Hunk, error) {
	c.once.Do(func() {
		if c.load == nil {
			return
		}
		c.hunks, c.err = c.load(ctx)
	})
	return c.hunks, c.err
}

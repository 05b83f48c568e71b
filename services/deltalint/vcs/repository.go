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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	fdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository is the Backend over a local git repository.
//
// # Description
//
// Object reads (revisions, commits, trees, blobs, merge bases, the index
// file) go through go-git. Operations that must see the working tree the way
// git itself does (index/workdir diffs, status, untracked files) run the git
// CLI and parse its output.
//
// # Thread Safety
//
// Safe for concurrent use. go-git object access is serialised internally.
type Repository struct {
	repo   *git.Repository
	root   string
	cli    *gitCLI
	logger *slog.Logger

	mu sync.Mutex
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
		r.cli.logger = logger
	}
}

// WithGitBinary overrides the git executable (default "git" on PATH).
func WithGitBinary(path string) Option {
	return func(r *Repository) {
		r.cli.binary = path
	}
}

// WithTimeout bounds each git subprocess.
func WithTimeout(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.cli.timeout = d
		}
	}
}

// Open discovers the repository containing path.
//
// # Description
//
// Walks up from path to the enclosing working tree (linked worktrees
// included). Bare repositories are rejected because the pipeline needs a
// working tree root to anchor absolute paths.
//
// # Inputs
//
//   - path: Any directory inside the working tree.
//   - opts: Optional configuration.
//
// # Outputs
//
//   - *Repository: Opened repository.
//   - error: ErrNotRepository when discovery fails.
func Open(path string, opts ...Option) (*Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, abs)
		}
		return nil, fmt.Errorf("opening repository at %s: %w", abs, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotRepository, abs, err)
	}
	root := wt.Filesystem.Root()

	r := &Repository{
		repo:   repo,
		root:   root,
		logger: slog.Default(),
		cli: &gitCLI{
			dir:     root,
			binary:  "git",
			timeout: 60 * time.Second,
			logger:  slog.Default(),
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	r.logger.Debug("Opened repository", slog.String("root", root))
	return r, nil
}

// Root returns the working tree root.
func (r *Repository) Root() string {
	return r.root
}

// SetLogger replaces the logger. Call before the repository is shared.
func (r *Repository) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	r.logger = logger
	r.cli.logger = logger
}

// GitDir returns the absolute path of the repository's git directory.
func (r *Repository) GitDir(ctx context.Context) (string, error) {
	out, err := r.cli.run(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ResolveCommit resolves spec to a commit and its tree.
func (r *Repository) ResolveCommit(ctx context.Context, spec string) (Commit, error) {
	if err := ctx.Err(); err != nil {
		return Commit{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	hash, err := r.repo.ResolveRevision(plumbing.Revision(spec))
	if err != nil {
		return Commit{}, fmt.Errorf("%w %q: %v", ErrUnknownRevision, spec, err)
	}

	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return Commit{}, fmt.Errorf("%w %q: reading commit %s: %v", ErrUnknownRevision, spec, hash, err)
	}

	return Commit{ID: commit.Hash.String(), TreeID: commit.TreeHash.String()}, nil
}

// MergeBase returns the best common ancestor of commits a and b.
func (r *Repository) MergeBase(ctx context.Context, a, b string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ca, err := r.repo.CommitObject(plumbing.NewHash(a))
	if err != nil {
		return "", fmt.Errorf("reading commit %s: %w", a, err)
	}
	cb, err := r.repo.CommitObject(plumbing.NewHash(b))
	if err != nil {
		return "", fmt.Errorf("reading commit %s: %w", b, err)
	}

	bases, err := ca.MergeBase(cb)
	if err != nil {
		return "", fmt.Errorf("merge base of %s and %s: %w", a, b, err)
	}
	if len(bases) == 0 {
		return "", fmt.Errorf("%w: %s and %s", ErrNoMergeBase, a, b)
	}
	return bases[0].Hash.String(), nil
}

// =============================================================================
// TREE DIFFS
// =============================================================================

// DiffTrees diffs two trees with go-git. Hunks are computed lazily.
func (r *Repository) DiffTrees(ctx context.Context, oldTree, newTree string, opts DiffOptions) ([]*Change, error) {
	r.mu.Lock()
	changes, err := r.diffTreesLocked(ctx, oldTree, newTree, opts)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]*Change, 0, len(changes))
	for _, tc := range changes {
		action, err := tc.Action()
		if err != nil {
			return nil, fmt.Errorf("classifying change: %w", err)
		}

		var kind ChangeKind
		path, oldPath := tc.To.Name, tc.From.Name
		switch action {
		case merkletrie.Insert:
			kind = ChangeAdded
			oldPath = ""
		case merkletrie.Delete:
			kind = ChangeDeleted
			path = tc.From.Name
		default:
			kind = ChangeModified
			if oldPath != path {
				kind = ChangeRenamed
			}
		}

		tc := tc
		out = append(out, NewChange(path, oldPath, kind, func(ctx context.Context) ([]Hunk, error) {
			return r.treeChangeHunks(ctx, tc)
		}))
	}

	r.logger.Debug("Diffed trees",
		slog.String("old_tree", oldTree),
		slog.String("new_tree", newTree),
		slog.Int("changes", len(out)),
	)
	return out, nil
}

func (r *Repository) diffTreesLocked(ctx context.Context, oldTree, newTree string, opts DiffOptions) (object.Changes, error) {
	a, err := r.repo.TreeObject(plumbing.NewHash(oldTree))
	if err != nil {
		return nil, fmt.Errorf("reading tree %s: %w", oldTree, err)
	}
	b, err := r.repo.TreeObject(plumbing.NewHash(newTree))
	if err != nil {
		return nil, fmt.Errorf("reading tree %s: %w", newTree, err)
	}

	treeOpts := *object.DefaultDiffTreeOptions
	treeOpts.DetectRenames = opts.DetectRenames

	changes, err := object.DiffTreeWithOptions(ctx, a, b, &treeOpts)
	if err != nil {
		return nil, fmt.Errorf("diffing trees %s..%s: %w", oldTree, newTree, err)
	}
	return changes, nil
}

// treeChangeHunks computes the hunks of one tree change.
func (r *Repository) treeChangeHunks(ctx context.Context, tc *object.Change) ([]Hunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	patch, err := tc.PatchContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing patch: %w", err)
	}

	filePatches := patch.FilePatches()
	if len(filePatches) == 0 {
		return nil, nil
	}
	fp := filePatches[0]
	if fp.IsBinary() {
		return nil, ErrBinary
	}
	return hunksFromChunks(fp.Chunks()), nil
}

// hunksFromChunks groups consecutive non-equal chunks into hunks and numbers
// their lines. Equal chunks only advance both counters.
func hunksFromChunks(chunks []fdiff.Chunk) []Hunk {
	var hunks []Hunk
	var cur *Hunk
	oldLn, newLn := 1, 1

	flush := func() {
		if cur != nil {
			hunks = append(hunks, *cur)
			cur = nil
		}
	}

	for _, chunk := range chunks {
		lines := splitLines(chunk.Content())
		switch chunk.Type() {
		case fdiff.Equal:
			flush()
			oldLn += len(lines)
			newLn += len(lines)
		case fdiff.Add:
			if cur == nil {
				cur = &Hunk{OldStart: oldLn, NewStart: newLn}
			}
			for _, l := range lines {
				cur.Lines = append(cur.Lines, Line{OldLineno: -1, NewLineno: newLn, Content: l})
				cur.NewLines++
				newLn++
			}
		case fdiff.Delete:
			if cur == nil {
				cur = &Hunk{OldStart: oldLn, NewStart: newLn}
			}
			for _, l := range lines {
				cur.Lines = append(cur.Lines, Line{OldLineno: oldLn, NewLineno: -1, Content: l})
				cur.OldLines++
				oldLn++
			}
		}
	}
	flush()

	return hunks
}

// splitLines splits chunk content into lines without terminators.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\n")
	}
	return lines
}

// =============================================================================
// INDEX AND WORKDIR DIFFS
// =============================================================================

// DiffTreeToIndex diffs oldTree against the index via `git diff --cached`.
func (r *Repository) DiffTreeToIndex(ctx context.Context, oldTree string, opts DiffOptions) ([]*Change, error) {
	args := append(diffArgs(opts), "--cached", oldTree, "--")
	out, err := r.cli.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseUnifiedDiff(out)
}

// DiffTreeToWorkdir diffs oldTree against the working tree via `git diff`.
func (r *Repository) DiffTreeToWorkdir(ctx context.Context, oldTree string, opts DiffOptions) ([]*Change, error) {
	args := append(diffArgs(opts), oldTree, "--")
	out, err := r.cli.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	changes, err := parseUnifiedDiff(out)
	if err != nil {
		return nil, err
	}

	if opts.IncludeUntracked {
		untracked, err := r.untracked(ctx)
		if err != nil {
			return nil, err
		}
		for _, path := range untracked {
			changes = append(changes, NewChange(path, "", ChangeUntracked, nil))
		}
	}
	return changes, nil
}

// untracked lists untracked files that are not ignored.
func (r *Repository) untracked(ctx context.Context) ([]string, error) {
	out, err := r.cli.run(ctx, "ls-files", "--others", "--exclude-standard", "-z")
	if err != nil {
		return nil, err
	}
	return splitNUL(out), nil
}

// =============================================================================
// BLOBS AND INDEX
// =============================================================================

// BlobAtPath reads the file at path in the given tree.
func (r *Repository) BlobAtPath(ctx context.Context, treeID, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tree, err := r.repo.TreeObject(plumbing.NewHash(treeID))
	if err != nil {
		return nil, fmt.Errorf("reading tree %s: %w", treeID, err)
	}

	file, err := tree.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) ||
			errors.Is(err, object.ErrDirectoryNotFound) ||
			errors.Is(err, object.ErrEntryNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		return nil, fmt.Errorf("reading %s in tree %s: %w", path, treeID, err)
	}

	rd, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening blob for %s: %w", path, err)
	}
	defer rd.Close()

	return io.ReadAll(rd)
}

// ReadBlob reads a blob by id.
func (r *Repository) ReadBlob(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	blob, err := r.repo.BlobObject(plumbing.NewHash(id))
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", id, err)
	}

	rd, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening blob %s: %w", id, err)
	}
	defer rd.Close()

	return io.ReadAll(rd)
}

// IndexEntry looks up path in the index at the given stage (0 for a normal,
// fully merged entry).
func (r *Repository) IndexEntry(ctx context.Context, path string, stage int) (IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return IndexEntry{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx, err := r.repo.Storer.Index()
	if err != nil {
		return IndexEntry{}, fmt.Errorf("reading index: %w", err)
	}

	for _, e := range idx.Entries {
		if e.Name == path && int(e.Stage) == stage {
			return IndexEntry{Path: e.Name, Stage: stage, BlobID: e.Hash.String()}, nil
		}
	}
	return IndexEntry{}, fmt.Errorf("%w: %s (stage %d)", ErrEntryNotFound, path, stage)
}

// Status runs `git status` and returns the bits of the requested paths.
// An empty paths slice returns every non-clean path.
func (r *Repository) Status(ctx context.Context, paths []string) (map[string]FileStatus, error) {
	out, err := r.cli.run(ctx,
		"status", "--porcelain=v1", "-z",
		"--untracked-files=no", "--ignore-submodules=all",
	)
	if err != nil {
		return nil, err
	}

	all, err := parsePorcelainStatus(out)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return all, nil
	}

	result := make(map[string]FileStatus, len(paths))
	for _, p := range paths {
		if st, ok := all[p]; ok {
			result[p] = st
		}
	}
	return result, nil
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// WriteTree writes every file of a tree under dir.
//
// # Description
//
// Linters that type-check whole packages cannot run on one file's text, so
// the pipeline gives them a full copy of the tree instead. Executable bits
// and symbolic links are kept; submodules are skipped.
//
// # Inputs
//
//   - ctx: Checked between files.
//   - treeID: Tree to write.
//   - dir: Existing destination directory.
//
// # Outputs
//
//   - error: Non-nil when the tree cannot be read or a file cannot be written.
func (r *Repository) WriteTree(ctx context.Context, treeID, dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tree, err := r.repo.TreeObject(plumbing.NewHash(treeID))
	if err != nil {
		return fmt.Errorf("reading tree %s: %w", treeID, err)
	}

	count := 0
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rd, err := f.Reader()
		if err != nil {
			return fmt.Errorf("opening blob for %s: %w", f.Name, err)
		}
		defer rd.Close()
		count++
		return writeSnapshotFile(dir, f.Name, f.Mode, rd)
	})
	if err != nil {
		return err
	}

	r.logger.Debug("Wrote tree snapshot",
		slog.String("tree", treeID),
		slog.String("dir", dir),
		slog.Int("files", count))
	return nil
}

// WriteIndex writes the staged content of every stage-0 entry under dir.
// Intent-to-add entries have no content yet and are skipped.
func (r *Repository) WriteIndex(ctx context.Context, dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, err := r.repo.Storer.Index()
	if err != nil {
		return fmt.Errorf("reading index: %w", err)
	}

	count := 0
	for _, e := range idx.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.Stage != 0 || e.Mode == filemode.Submodule || e.IntentToAdd || e.Hash.IsZero() {
			continue
		}
		blob, err := r.repo.BlobObject(e.Hash)
		if err != nil {
			return fmt.Errorf("reading staged blob for %s: %w", e.Name, err)
		}
		rd, err := blob.Reader()
		if err != nil {
			return fmt.Errorf("opening staged blob for %s: %w", e.Name, err)
		}
		err = writeSnapshotFile(dir, e.Name, e.Mode, rd)
		rd.Close()
		if err != nil {
			return err
		}
		count++
	}

	r.logger.Debug("Wrote index snapshot",
		slog.String("dir", dir),
		slog.Int("files", count))
	return nil
}

// writeSnapshotFile writes one blob at its slash-separated path under dir.
func writeSnapshotFile(dir, name string, mode filemode.FileMode, rd io.Reader) error {
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", name, err)
	}

	data, err := io.ReadAll(rd)
	if err != nil {
		return fmt.Errorf("reading blob for %s: %w", name, err)
	}
	if mode == filemode.Symlink {
		return os.Symlink(string(data), path)
	}

	perm := os.FileMode(0o644)
	if mode == filemode.Executable {
		perm = 0o755
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// Compile-time interface check.
var _ Backend = (*Repository)(nil)

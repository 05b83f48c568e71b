// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package content decides where the text to analyse comes from.
//
// # Description
//
// Three strategies exist:
//
//   - Disk: the new side is the index or the working tree and no delta file
//     is partially staged, so the files on disk are exactly what is compared.
//   - Index: the new side is the index and some file is partially staged;
//     the stage-0 blobs are read instead of the files on disk.
//   - Commit: both sides are commits; blobs are read from both trees so the
//     filter can compare findings across them.
//
// A working-tree target with partially staged files is refused with
// errs.ErrUnsupported.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/deltalint/services/deltalint/delta"
	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/revision"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
)

// =============================================================================
// TYPES
// =============================================================================

// Strategy is how contents were obtained.
type Strategy int

const (
	// StrategyDisk analyses files directly from the filesystem.
	StrategyDisk Strategy = iota

	// StrategyIndex analyses staged blobs.
	StrategyIndex

	// StrategyCommit analyses blobs of the old and new commits.
	StrategyCommit
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyDisk:
		return "disk"
	case StrategyIndex:
		return "index"
	case StrategyCommit:
		return "commit"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Source is the text of one file together with the path it is reported as.
type Source struct {
	// Path is the absolute path findings are keyed by.
	Path string

	// RelPath is the slash-separated repository path the text was read
	// from. It differs from Path's relative form for the old side of a
	// rename.
	RelPath string

	// Text is the file content.
	Text []byte
}

// Contents is the resolved input of the analysis engine.
type Contents struct {
	Strategy Strategy

	// Paths lists the absolute delta paths in delta order. For StrategyDisk
	// these are linted directly from the filesystem.
	Paths []string

	// New holds new-side text for StrategyIndex and StrategyCommit.
	New []Source

	// Old holds old-side text for StrategyCommit. Files absent from the old
	// tree are omitted.
	Old []Source
}

// =============================================================================
// RESOLVER
// =============================================================================

// PartiallyStagedHint accompanies the unsupported-configuration error.
const PartiallyStagedHint = "Stage or stash the remaining changes, or lint the staged state with --cached."

// Resolver resolves analysis input for a delta.
//
// Thread Safety: Safe for concurrent use.
type Resolver struct {
	backend     vcs.Backend
	concurrency int
	logger      *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithConcurrency bounds parallel blob reads. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver over backend.
func NewResolver(backend vcs.Backend, opts ...Option) *Resolver {
	r := &Resolver{
		backend:     backend,
		concurrency: runtime.GOMAXPROCS(0),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve picks a strategy for d and reads the required text.
//
// # Inputs
//
//   - ctx: Context for backend calls.
//   - ep: Resolved endpoints.
//   - d: Non-nil delta.
//
// # Outputs
//
//   - *Contents: Resolved input.
//   - error: errs.ErrUnsupported for a working-tree target with partially
//     staged files; errs.ErrInvariant for a commit target without a new
//     commit; errs.ErrRevision for failed status or blob reads.
func (r *Resolver) Resolve(ctx context.Context, ep *revision.Endpoints, d *delta.Delta) (*Contents, error) {
	entries := d.Entries()
	paths := d.Paths()

	switch ep.Target {
	case revision.TargetIndex, revision.TargetWorkdir:
		partial, err := r.partiallyStaged(ctx, entries)
		if err != nil {
			return nil, err
		}
		if len(partial) == 0 {
			r.logger.Debug("Resolved contents", slog.String("strategy", StrategyDisk.String()), slog.Int("files", len(paths)))
			return &Contents{Strategy: StrategyDisk, Paths: paths}, nil
		}
		if ep.Target == revision.TargetWorkdir {
			e := errs.Unsupported("cannot lint the working tree: partially staged file", nil).
				WithPath(partial[0]).
				WithHint(PartiallyStagedHint)
			return nil, e
		}
		sources, err := r.indexSources(ctx, entries)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("Resolved contents",
			slog.String("strategy", StrategyIndex.String()),
			slog.Int("files", len(sources)),
			slog.Any("partially_staged", partial),
		)
		return &Contents{Strategy: StrategyIndex, Paths: paths, New: sources}, nil

	case revision.TargetCommit:
		if ep.New == nil {
			return nil, errs.Invariant("commit target without a new commit")
		}
		newSources, err := r.treeSources(ctx, ep.New.TreeID, entries, false)
		if err != nil {
			return nil, err
		}
		oldSources, err := r.treeSources(ctx, ep.Old.TreeID, entries, true)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("Resolved contents",
			slog.String("strategy", StrategyCommit.String()),
			slog.Int("new_files", len(newSources)),
			slog.Int("old_files", len(oldSources)),
		)
		return &Contents{Strategy: StrategyCommit, Paths: paths, New: newSources, Old: oldSources}, nil

	default:
		return nil, errs.Invariant("no content strategy for target %s", ep.Target)
	}
}

// partiallyStaged returns the repository-relative delta paths that have both
// staged and unstaged modifications.
func (r *Resolver) partiallyStaged(ctx context.Context, entries []delta.Entry) ([]string, error) {
	rel := make([]string, 0, len(entries))
	for _, e := range entries {
		rel = append(rel, e.RelPath)
	}
	status, err := r.backend.Status(ctx, rel)
	if err != nil {
		return nil, errs.Revision("read status", err)
	}

	var partial []string
	for _, p := range rel {
		if status[p].PartiallyStaged() {
			partial = append(partial, p)
		}
	}
	return partial, nil
}

// indexSources reads the stage-0 blob of every entry. Entries missing from
// the index are skipped.
func (r *Resolver) indexSources(ctx context.Context, entries []delta.Entry) ([]Source, error) {
	return r.fanOut(ctx, entries, func(ctx context.Context, e delta.Entry) (*Source, error) {
		ie, err := r.backend.IndexEntry(ctx, e.RelPath, 0)
		if errors.Is(err, vcs.ErrEntryNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, errs.Revision("read index entry", err).WithPath(e.RelPath)
		}
		text, err := r.backend.ReadBlob(ctx, ie.BlobID)
		if err != nil {
			return nil, errs.Revision("read staged blob", err).WithPath(e.RelPath)
		}
		return &Source{Path: e.Path, RelPath: e.RelPath, Text: text}, nil
	})
}

// treeSources reads every entry from a tree. Files absent from the tree are
// omitted. On the old side renamed files are read from their old path and
// added files are skipped without a lookup.
func (r *Resolver) treeSources(ctx context.Context, treeID string, entries []delta.Entry, oldSide bool) ([]Source, error) {
	return r.fanOut(ctx, entries, func(ctx context.Context, e delta.Entry) (*Source, error) {
		rel := e.RelPath
		if oldSide {
			if e.OldRelPath == "" {
				return nil, nil
			}
			rel = e.OldRelPath
		}
		text, err := r.backend.BlobAtPath(ctx, treeID, rel)
		if errors.Is(err, vcs.ErrPathNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, errs.Revision("read blob", err).WithPath(rel)
		}
		return &Source{Path: e.Path, RelPath: rel, Text: text}, nil
	})
}

// fanOut runs read for every entry with bounded parallelism. Each task owns
// one slot; nil results are dropped and input order is kept.
func (r *Resolver) fanOut(ctx context.Context, entries []delta.Entry, read func(context.Context, delta.Entry) (*Source, error)) ([]Source, error) {
	slots := make([]*Source, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, e := range entries {
		g.Go(func() error {
			s, err := read(gctx, e)
			if err != nil {
				return err
			}
			slots[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Source, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

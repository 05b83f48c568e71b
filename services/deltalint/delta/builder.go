// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package delta

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
)

// Builder turns change lists into Deltas.
//
// Thread Safety: Safe for concurrent use.
type Builder struct {
	concurrency int
	logger      *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithConcurrency bounds parallel hunk loads. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a builder. Concurrency defaults to GOMAXPROCS.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		concurrency: runtime.GOMAXPROCS(0),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build computes the Delta of changes.
//
// # Description
//
// Deleted and binary entries carry nothing to analyse and are skipped.
// Added and untracked entries select every line. Modified and renamed
// entries select every line in full-file mode, otherwise the new-side line
// numbers of their pure insertions. Hunks are loaded in parallel; the first
// failure cancels the rest.
//
// # Inputs
//
//   - ctx: Context for hunk loading.
//   - root: Absolute repository root the relative paths are joined to.
//   - changes: Filtered changes from the extractor.
//   - fullFile: Select every line of modified files.
//
// # Outputs
//
//   - *Delta: The delta, or nil when nothing remains.
//   - error: errs.ErrRevision when a hunk cannot be loaded.
func (b *Builder) Build(ctx context.Context, root string, changes []*vcs.Change, fullFile bool) (*Delta, error) {
	slots := make([]*Entry, len(changes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, c := range changes {
		if c.Kind == vcs.ChangeDeleted || c.Binary {
			continue
		}
		g.Go(func() error {
			sel, ok, err := selectLines(gctx, c, fullFile)
			if err != nil {
				return errs.Revision(fmt.Sprintf("load hunks of %s", c.Path), err)
			}
			if !ok {
				return nil
			}
			slots[i] = &Entry{
				Path:       filepath.Join(root, filepath.FromSlash(c.Path)),
				RelPath:    c.Path,
				OldRelPath: c.OldPath,
				Kind:       c.Kind,
				Lines:      sel,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(slots))
	for _, e := range slots {
		if e != nil {
			entries = append(entries, *e)
		}
	}

	d := New(entries...)
	b.logger.Debug("Built delta",
		slog.Int("changes", len(changes)),
		slog.Int("files", d.Len()),
		slog.Bool("full_file", fullFile),
	)
	return d, nil
}

// selectLines computes one change's selection. ok is false when the change
// turns out to be binary.
func selectLines(ctx context.Context, c *vcs.Change, fullFile bool) (Selection, bool, error) {
	switch c.Kind {
	case vcs.ChangeAdded, vcs.ChangeUntracked:
		return AllLines, true, nil
	}
	if fullFile {
		return AllLines, true, nil
	}

	hunks, err := c.Hunks(ctx)
	if errors.Is(err, vcs.ErrBinary) {
		return Selection{}, false, nil
	}
	if err != nil {
		return Selection{}, false, err
	}
	return AddedLines(hunks), true, nil
}

// AddedLines collects the new-side numbers of lines with no old-side number.
func AddedLines(hunks []vcs.Hunk) Selection {
	var lines []int
	for _, h := range hunks {
		for _, l := range h.Lines {
			if l.Added() {
				lines = append(lines, l.NewLineno)
			}
		}
	}
	return Lines(lines...)
}

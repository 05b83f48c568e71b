// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package changes extracts the file-level changes between two resolved
// endpoints.
//
// # Description
//
// The Extractor selects one diff handler per comparison target (tree vs tree,
// tree vs index, tree vs working tree) once, always enables rename detection,
// and drops entries that do not match the caller's path filter before they
// reach the delta builder. ParsePatch produces the same change list from a
// unified diff read from a file or stdin.
package changes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/revision"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
)

// handler produces the raw change list for one target kind.
type handler func(ctx context.Context, ep *revision.Endpoints, opts vcs.DiffOptions) ([]*vcs.Change, error)

// Extractor computes filtered change lists.
//
// Thread Safety: Safe for concurrent use.
type Extractor struct {
	backend          vcs.Backend
	handlers         map[revision.Target]handler
	includeUntracked bool
	logger           *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithUntracked lists untracked, non-ignored files in working-tree diffs.
func WithUntracked(include bool) Option {
	return func(e *Extractor) {
		e.includeUntracked = include
	}
}

// NewExtractor creates an extractor over backend.
func NewExtractor(backend vcs.Backend, opts ...Option) *Extractor {
	e := &Extractor{
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.handlers = map[revision.Target]handler{
		revision.TargetCommit:  e.treeToTree,
		revision.TargetIndex:   e.treeToIndex,
		revision.TargetWorkdir: e.treeToWorkdir,
	}
	return e
}

// Extract diffs the endpoints and applies filter.
//
// # Inputs
//
//   - ctx: Context for backend calls.
//   - ep: Resolved endpoints.
//   - filter: Path filter. Nil keeps every entry.
//
// # Outputs
//
//   - []*vcs.Change: Matching changes in backend order. Deleted entries are
//     kept; the delta builder skips them.
//   - error: errs.ErrInvariant for an unknown target or a commit target
//     without a new commit; errs.ErrRevision when the backend diff fails.
func (e *Extractor) Extract(ctx context.Context, ep *revision.Endpoints, filter *Filter) ([]*vcs.Change, error) {
	h, ok := e.handlers[ep.Target]
	if !ok {
		return nil, errs.Invariant("no diff handler for target %s", ep.Target)
	}

	opts := vcs.DiffOptions{
		DetectRenames:    true,
		IncludeUntracked: e.includeUntracked,
	}
	all, err := h(ctx, ep, opts)
	if err != nil {
		return nil, err
	}

	kept := filter.Apply(all)
	e.logger.Debug("Extracted changes",
		slog.String("target", ep.Target.String()),
		slog.Int("changes", len(all)),
		slog.Int("kept", len(kept)),
	)
	return kept, nil
}

func (e *Extractor) treeToTree(ctx context.Context, ep *revision.Endpoints, opts vcs.DiffOptions) ([]*vcs.Change, error) {
	if ep.New == nil {
		return nil, errs.Invariant("commit target without a new commit")
	}
	changes, err := e.backend.DiffTrees(ctx, ep.Old.TreeID, ep.New.TreeID, opts)
	if err != nil {
		return nil, errs.Revision(fmt.Sprintf("diff %s..%s", ep.Old.Short(), ep.New.Short()), err)
	}
	return changes, nil
}

func (e *Extractor) treeToIndex(ctx context.Context, ep *revision.Endpoints, opts vcs.DiffOptions) ([]*vcs.Change, error) {
	changes, err := e.backend.DiffTreeToIndex(ctx, ep.Old.TreeID, opts)
	if err != nil {
		return nil, errs.Revision(fmt.Sprintf("diff %s against the index", ep.Old.Short()), err)
	}
	return changes, nil
}

func (e *Extractor) treeToWorkdir(ctx context.Context, ep *revision.Endpoints, opts vcs.DiffOptions) ([]*vcs.Change, error) {
	changes, err := e.backend.DiffTreeToWorkdir(ctx, ep.Old.TreeID, opts)
	if err != nil {
		return nil, errs.Revision(fmt.Sprintf("diff %s against the working tree", ep.Old.Short()), err)
	}
	return changes, nil
}

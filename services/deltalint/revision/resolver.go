// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package revision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
)

// Target is what the new endpoint is compared as.
type Target int

const (
	// TargetCommit compares two commits' trees.
	TargetCommit Target = iota

	// TargetIndex compares the old tree against the staging area.
	TargetIndex

	// TargetWorkdir compares the old tree against the working tree.
	TargetWorkdir
)

// String returns the target's name.
func (t Target) String() string {
	switch t {
	case TargetCommit:
		return "commit"
	case TargetIndex:
		return "index"
	case TargetWorkdir:
		return "workdir"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// TargetOf maps a new-side ref to its comparison target.
func TargetOf(r Ref) Target {
	switch r.Kind() {
	case KindIndex:
		return TargetIndex
	case KindWorkdir:
		return TargetWorkdir
	default:
		return TargetCommit
	}
}

// Endpoints are the resolved old and new sides of a comparison.
type Endpoints struct {
	// Selector is the request that produced these endpoints.
	Selector Selector

	// Old is always a concrete commit.
	Old vcs.Commit

	// New is nil when Target is TargetIndex or TargetWorkdir.
	New *vcs.Commit

	// Target selects the diff shape and content strategy.
	Target Target

	// MergeBaseApplied is true when Old was replaced by a merge base.
	MergeBaseApplied bool
}

// Resolver resolves selectors against a backend.
//
// Thread Safety: Safe for concurrent use.
type Resolver struct {
	backend vcs.Backend
	logger  *slog.Logger
}

// NewResolver creates a resolver. A nil logger uses slog.Default().
func NewResolver(backend vcs.Backend, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{backend: backend, logger: logger}
}

// Resolve resolves (old, new) to concrete commits.
//
// # Description
//
// When old is nil, old becomes new's first parent (spec + "~"), so a single
// commit is shown against its parent. When findMergeBase is set and new is a
// commit, old is replaced by the merge base of the pair unless the merge
// base already is old. Only the old side is ever replaced.
//
// # Inputs
//
//   - ctx: Context for backend calls.
//   - old: Old endpoint, or nil.
//   - newRef: New endpoint; Index and Workdir resolve no commit.
//   - findMergeBase: Apply three-dot semantics.
//
// # Outputs
//
//   - *Endpoints: Resolved endpoints.
//   - error: errs.ErrConfiguration when neither side names a commit (checked
//     before any backend access); errs.ErrRevision when the backend cannot
//     resolve a revision or merge base.
func (r *Resolver) Resolve(ctx context.Context, old *Ref, newRef Ref, findMergeBase bool) (*Endpoints, error) {
	sel := Selector{Old: old, New: newRef, FindMergeBase: findMergeBase}

	newSpec, newConcrete := newRef.Spec()

	var oldSpec string
	if old == nil {
		if !newConcrete {
			return nil, errs.Configuration("cannot diff %s against its parent: at least one revision must name a commit", newRef)
		}
		oldSpec = newSpec + "~"
	} else {
		spec, ok := old.Spec()
		if !ok {
			return nil, errs.Configuration("old revision must name a commit, got %s", old)
		}
		oldSpec = spec
	}

	ep := &Endpoints{Selector: sel, Target: TargetOf(newRef)}

	oldCommit, err := r.backend.ResolveCommit(ctx, oldSpec)
	if err != nil {
		return nil, errs.Revision(fmt.Sprintf("resolve old revision %q", oldSpec), err)
	}
	ep.Old = oldCommit

	if newConcrete {
		newCommit, err := r.backend.ResolveCommit(ctx, newSpec)
		if err != nil {
			return nil, errs.Revision(fmt.Sprintf("resolve new revision %q", newSpec), err)
		}
		ep.New = &newCommit
	}

	if findMergeBase && ep.New != nil {
		base, err := r.backend.MergeBase(ctx, ep.Old.ID, ep.New.ID)
		if err != nil {
			return nil, errs.Revision(fmt.Sprintf("merge base of %s and %s", oldSpec, newSpec), err)
		}
		if base != ep.Old.ID {
			baseCommit, err := r.backend.ResolveCommit(ctx, base)
			if err != nil {
				return nil, errs.Revision(fmt.Sprintf("resolve merge base %s", base), err)
			}
			ep.Old = baseCommit
			ep.MergeBaseApplied = true
		}
	}

	r.logger.Debug("Resolved revisions",
		slog.String("selector", sel.String()),
		slog.String("old_commit", ep.Old.ID),
		slog.String("target", ep.Target.String()),
		slog.Bool("merge_base_applied", ep.MergeBaseApplied),
	)
	return ep, nil
}

// ResolveSelector resolves a parsed selector.
func (r *Resolver) ResolveSelector(ctx context.Context, sel Selector) (*Endpoints, error) {
	return r.Resolve(ctx, sel.Old, sel.New, sel.FindMergeBase)
}

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
	"fmt"
	"strings"

	"github.com/AleutianAI/deltalint/services/deltalint/errs"
)

// Selector is a parsed revision selection: the input of Resolve.
type Selector struct {
	// Old is the old endpoint. Nil means "first parent of New".
	Old *Ref

	// New is the new endpoint.
	New Ref

	// FindMergeBase replaces Old with the merge base of Old and New.
	FindMergeBase bool
}

// String renders the selector for debug output.
func (s Selector) String() string {
	old := "<parent>"
	if s.Old != nil {
		old = s.Old.String()
	}
	return fmt.Sprintf("old=%s new=%s find_merge_base=%t", old, s.New, s.FindMergeBase)
}

// ParseDiffArgs interprets the arguments of `diff`.
//
// # Description
//
//   - no commits: HEAD against the index (cached) or the working tree
//   - "A...B": A and B, diffing from their merge base
//   - "A..B": A and B literally
//   - "A B": A and B literally
//   - "A": A against HEAD, or against the index when cached
//
// An empty side of a range means HEAD.
//
// # Outputs
//
//   - Selector: Parsed selection.
//   - error: errs.ErrConfiguration for malformed argument lists.
func ParseDiffArgs(commits []string, cached bool) (Selector, error) {
	switch len(commits) {
	case 0:
		old := Head
		if cached {
			return Selector{Old: &old, New: Index}, nil
		}
		return Selector{Old: &old, New: Workdir}, nil

	case 1:
		arg := commits[0]
		if oldID, newID, ok := strings.Cut(arg, "..."); ok {
			if cached {
				return Selector{}, errs.Configuration("--cached cannot be combined with range %q", arg)
			}
			old := ID(oldID)
			return Selector{Old: &old, New: ID(newID), FindMergeBase: true}, nil
		}
		if oldID, newID, ok := strings.Cut(arg, ".."); ok {
			if cached {
				return Selector{}, errs.Configuration("--cached cannot be combined with range %q", arg)
			}
			old := ID(oldID)
			return Selector{Old: &old, New: ID(newID)}, nil
		}
		if arg == "" {
			return Selector{}, errs.Configuration("empty revision argument")
		}
		old := ID(arg)
		if cached {
			return Selector{Old: &old, New: Index}, nil
		}
		return Selector{Old: &old, New: Head}, nil

	case 2:
		if cached {
			return Selector{}, errs.Configuration("--cached takes at most one commit")
		}
		for _, arg := range commits {
			if arg == "" || strings.Contains(arg, "..") {
				return Selector{}, errs.Configuration("invalid revision %q in two-commit form", arg)
			}
		}
		old := ID(commits[0])
		return Selector{Old: &old, New: ID(commits[1])}, nil

	default:
		return Selector{}, errs.Configuration("expected at most two commits, got %d", len(commits))
	}
}

// ParseShowArgs interprets the arguments of `show`: a single commit (HEAD
// when omitted) diffed against its first parent.
func ParseShowArgs(args []string) (Selector, error) {
	switch len(args) {
	case 0:
		return Selector{New: Head}, nil
	case 1:
		if args[0] == "" || strings.Contains(args[0], "..") {
			return Selector{}, errs.Configuration("show expects a single commit, got %q", args[0])
		}
		return Selector{New: ID(args[0])}, nil
	default:
		return Selector{}, errs.Configuration("show expects at most one commit, got %d", len(args))
	}
}

// BaseSelector diffs HEAD against its merge base with a base branch.
func BaseSelector(base string) Selector {
	old := ID(base)
	return Selector{Old: &old, New: Head, FindMergeBase: true}
}

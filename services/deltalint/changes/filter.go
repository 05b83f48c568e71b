// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package changes

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
)

// Filter keeps changes whose path matches a glob and, when pathspecs are
// given, lies under at least one of them.
//
// Thread Safety: Immutable after creation.
type Filter struct {
	glob      string
	pathspecs []string
}

// NewFilter validates glob and normalises pathspecs.
//
// # Inputs
//
//   - glob: doublestar pattern matched against the repository-relative path.
//     Empty matches everything.
//   - pathspecs: Repository-relative files or directories. "." and empty
//     entries match everything.
//
// # Outputs
//
//   - *Filter: Ready filter.
//   - error: errs.ErrConfiguration for a malformed glob or a pathspec that
//     escapes the repository.
func NewFilter(glob string, pathspecs []string) (*Filter, error) {
	if glob != "" && !doublestar.ValidatePattern(glob) {
		return nil, errs.Configuration("invalid glob %q", glob)
	}

	f := &Filter{glob: glob}
	for _, spec := range pathspecs {
		clean := path.Clean(strings.ReplaceAll(spec, "\\", "/"))
		if clean == "." || clean == "" {
			f.pathspecs = nil
			break
		}
		if clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
			return nil, errs.Configuration("pathspec %q is outside the repository", spec)
		}
		f.pathspecs = append(f.pathspecs, clean)
	}
	return f, nil
}

// Glob returns the configured glob.
func (f *Filter) Glob() string {
	if f == nil {
		return ""
	}
	return f.glob
}

// Match reports whether a repository-relative path passes the filter.
func (f *Filter) Match(relPath string) bool {
	if f == nil {
		return true
	}
	if f.glob != "" {
		// Validated in NewFilter, so the error is always nil.
		ok, _ := doublestar.Match(f.glob, relPath)
		if !ok {
			return false
		}
	}
	if len(f.pathspecs) == 0 {
		return true
	}
	for _, spec := range f.pathspecs {
		if relPath == spec || strings.HasPrefix(relPath, spec+"/") {
			return true
		}
	}
	return false
}

// Apply returns the changes whose new-side path matches, in input order.
func (f *Filter) Apply(changes []*vcs.Change) []*vcs.Change {
	out := make([]*vcs.Change, 0, len(changes))
	for _, c := range changes {
		if f.Match(c.Path) {
			out = append(out, c)
		}
	}
	return out
}

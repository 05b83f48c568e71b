// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package delta reduces file-level changes to the lines they introduced.
//
// # Description
//
// A Delta maps absolute file paths to a Selection. New and untracked files
// select every line; modified and renamed files select the new-side numbers
// of pure insertions (hunk lines with no old-side number), unless full-file
// mode is requested. An empty change set yields no Delta at all, which the
// pipeline treats as "nothing to analyse".
package delta

import (
	"sort"

	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
)

// Entry is one file of a Delta.
type Entry struct {
	// Path is the absolute filesystem path; it is also the Delta key.
	Path string `json:"path"`

	// RelPath is the repository-relative, slash-separated new-side path.
	RelPath string `json:"rel_path"`

	// OldRelPath is the old-side path. It equals RelPath unless the file
	// was renamed, and is empty for added and untracked files.
	OldRelPath string `json:"old_rel_path,omitempty"`

	// Kind is the change classification.
	Kind vcs.ChangeKind `json:"-"`

	// Lines is the selected line set.
	Lines Selection `json:"lines"`
}

// Delta is the immutable per-invocation mapping of changed files.
//
// Thread Safety: Immutable after Build returns.
type Delta struct {
	entries map[string]Entry
	paths   []string
}

// New builds a Delta from entries. Later entries with a duplicate path
// replace earlier ones. Returns nil when entries is empty.
func New(entries ...Entry) *Delta {
	if len(entries) == 0 {
		return nil
	}
	d := &Delta{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		d.entries[e.Path] = e
	}
	d.paths = make([]string, 0, len(d.entries))
	for p := range d.entries {
		d.paths = append(d.paths, p)
	}
	sort.Strings(d.paths)
	return d
}

// Get returns the entry for an absolute path.
func (d *Delta) Get(path string) (Entry, bool) {
	if d == nil {
		return Entry{}, false
	}
	e, ok := d.entries[path]
	return e, ok
}

// Selection returns the line selection for an absolute path.
func (d *Delta) Selection(path string) (Selection, bool) {
	e, ok := d.Get(path)
	return e.Lines, ok
}

// Paths returns the absolute paths in sorted order.
func (d *Delta) Paths() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.paths...)
}

// Entries returns the entries sorted by path.
func (d *Delta) Entries() []Entry {
	if d == nil {
		return nil
	}
	out := make([]Entry, 0, len(d.paths))
	for _, p := range d.paths {
		out = append(out, d.entries[p])
	}
	return out
}

// Len returns the number of files.
func (d *Delta) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

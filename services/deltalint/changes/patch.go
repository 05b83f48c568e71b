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
	"io"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
)

// ParsePatch reads a unified diff and returns its changes, filtered.
//
// # Description
//
// The patch is treated as already applied to the working tree: new-side line
// numbers refer to the files on disk. Both git-style and plain unified diffs
// are accepted. Binary entries are returned with Binary set and no hunks.
//
// # Inputs
//
//   - r: Patch text.
//   - filter: Path filter. Nil keeps every entry.
//
// # Outputs
//
//   - []*vcs.Change: Changes in patch order.
//   - error: errs.ErrConfiguration when the patch cannot be parsed.
func ParsePatch(r io.Reader, filter *Filter) ([]*vcs.Change, error) {
	files, _, err := gitdiff.Parse(r)
	if err != nil {
		return nil, errs.Configuration("parsing patch: %v", err)
	}

	out := make([]*vcs.Change, 0, len(files))
	for _, f := range files {
		c, err := changeFromPatchFile(f)
		if err != nil {
			return nil, err
		}
		if filter.Match(c.Path) {
			out = append(out, c)
		}
	}
	return out, nil
}

func changeFromPatchFile(f *gitdiff.File) (*vcs.Change, error) {
	oldName := patchName(f.OldName)
	newName := patchName(f.NewName)

	kind := vcs.ChangeModified
	path, oldPath := newName, oldName
	switch {
	case f.IsNew:
		kind = vcs.ChangeAdded
		oldPath = ""
	case f.IsDelete:
		kind = vcs.ChangeDeleted
		path = oldName
	case f.IsRename || (oldName != "" && newName != "" && oldName != newName):
		kind = vcs.ChangeRenamed
	}
	if path == "" {
		return nil, errs.Configuration("patch entry without a file name")
	}

	hunks := make([]vcs.Hunk, 0, len(f.TextFragments))
	for _, frag := range f.TextFragments {
		hunks = append(hunks, hunkFromFragment(frag))
	}

	c := vcs.NewChangeWithHunks(path, oldPath, kind, hunks)
	c.Binary = f.IsBinary
	return c, nil
}

// hunkFromFragment numbers fragment lines the way git does: context lines
// advance both sides, deletions only the old side, additions only the new.
func hunkFromFragment(frag *gitdiff.TextFragment) vcs.Hunk {
	h := vcs.Hunk{
		OldStart: int(frag.OldPosition),
		OldLines: int(frag.OldLines),
		NewStart: int(frag.NewPosition),
		NewLines: int(frag.NewLines),
		Lines:    make([]vcs.Line, 0, len(frag.Lines)),
	}

	oldLine, newLine := h.OldStart, h.NewStart
	for _, l := range frag.Lines {
		content := strings.TrimSuffix(l.Line, "\n")
		switch l.Op {
		case gitdiff.OpAdd:
			h.Lines = append(h.Lines, vcs.Line{OldLineno: -1, NewLineno: newLine, Content: content})
			newLine++
		case gitdiff.OpDelete:
			h.Lines = append(h.Lines, vcs.Line{OldLineno: oldLine, NewLineno: -1, Content: content})
			oldLine++
		default:
			h.Lines = append(h.Lines, vcs.Line{OldLineno: oldLine, NewLineno: newLine, Content: content})
			oldLine++
			newLine++
		}
	}
	return h
}

// patchName maps the null device to "". gitdiff has already dropped the
// a/ and b/ prefixes.
func patchName(name string) string {
	if name == "/dev/null" {
		return ""
	}
	return name
}

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
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

const devNull = "/dev/null"

// parseUnifiedDiff converts `git diff` output into changes with hunks.
func parseUnifiedDiff(out []byte) ([]*Change, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, nil
	}

	fileDiffs, err := diff.ParseMultiFileDiff(out)
	if err != nil {
		return nil, fmt.Errorf("parsing git diff output: %w", err)
	}

	changes := make([]*Change, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		changes = append(changes, changeFromFileDiff(fd))
	}
	return changes, nil
}

// changeFromFileDiff classifies one file diff. Extended git headers win over
// the ---/+++ names, which are absent for pure renames and binary files.
func changeFromFileDiff(fd *diff.FileDiff) *Change {
	oldName := stripDiffPrefix(fd.OrigName, "a/")
	newName := stripDiffPrefix(fd.NewName, "b/")

	if oldName == "" && newName == "" && len(fd.Extended) > 0 {
		oldName, newName = parseGitHeader(fd.Extended[0])
	}

	kind := ChangeModified
	binary := false
	for _, ext := range fd.Extended {
		switch {
		case strings.HasPrefix(ext, "new file mode"):
			kind = ChangeAdded
		case strings.HasPrefix(ext, "deleted file mode"):
			kind = ChangeDeleted
		case strings.HasPrefix(ext, "rename from "):
			oldName = unquotePath(strings.TrimPrefix(ext, "rename from "))
			kind = ChangeRenamed
		case strings.HasPrefix(ext, "rename to "):
			newName = unquotePath(strings.TrimPrefix(ext, "rename to "))
			kind = ChangeRenamed
		case strings.HasPrefix(ext, "Binary files "), ext == "GIT binary patch":
			binary = true
		}
	}

	switch {
	case oldName == devNull:
		kind = ChangeAdded
	case newName == devNull:
		kind = ChangeDeleted
	}

	path, oldPath := newName, oldName
	switch kind {
	case ChangeAdded:
		oldPath = ""
	case ChangeDeleted:
		path = oldName
	}

	hunks := make([]Hunk, 0, len(fd.Hunks))
	for _, h := range fd.Hunks {
		hunks = append(hunks, hunkFromBody(h))
	}

	c := NewChangeWithHunks(path, oldPath, kind, hunks)
	c.Binary = binary
	return c
}

// hunkFromBody numbers the lines of a unified hunk body.
func hunkFromBody(h *diff.Hunk) Hunk {
	out := Hunk{
		OldStart: int(h.OrigStartLine),
		OldLines: int(h.OrigLines),
		NewStart: int(h.NewStartLine),
		NewLines: int(h.NewLines),
	}

	oldLn, newLn := out.OldStart, out.NewStart
	for _, raw := range bytes.SplitAfter(h.Body, []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		text := strings.TrimSuffix(string(raw[1:]), "\n")
		switch raw[0] {
		case ' ':
			out.Lines = append(out.Lines, Line{OldLineno: oldLn, NewLineno: newLn, Content: text})
			oldLn++
			newLn++
		case '-':
			out.Lines = append(out.Lines, Line{OldLineno: oldLn, NewLineno: -1, Content: text})
			oldLn++
		case '+':
			out.Lines = append(out.Lines, Line{OldLineno: -1, NewLineno: newLn, Content: text})
			newLn++
		}
	}
	return out
}

// parseGitHeader extracts the two paths of a "diff --git a/x b/y" line.
func parseGitHeader(line string) (string, string) {
	rest := strings.TrimPrefix(line, "diff --git ")
	if rest == line {
		return "", ""
	}
	idx := strings.Index(rest, " b/")
	if idx < 0 {
		return "", ""
	}
	return stripDiffPrefix(rest[:idx], "a/"), stripDiffPrefix(rest[idx+1:], "b/")
}

func stripDiffPrefix(name, prefix string) string {
	name = unquotePath(name)
	if name == devNull {
		return name
	}
	return strings.TrimPrefix(name, prefix)
}

// unquotePath undoes git's C-style quoting of unusual path names.
func unquotePath(name string) string {
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		if s, err := strconv.Unquote(name); err == nil {
			return s
		}
	}
	return name
}

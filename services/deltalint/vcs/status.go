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
	"fmt"
)

// FileStatus is a set of staged and unstaged status bits for one path.
type FileStatus uint16

const (
	StatusIndexNew FileStatus = 1 << iota
	StatusIndexModified
	StatusIndexDeleted
	StatusIndexRenamed
	StatusIndexTypeChange
	StatusWorktreeNew
	StatusWorktreeModified
	StatusWorktreeDeleted
	StatusWorktreeTypeChange
	StatusConflicted
)

const (
	stagedBits   = StatusIndexNew | StatusIndexModified | StatusIndexRenamed | StatusIndexTypeChange
	unstagedBits = StatusWorktreeModified | StatusWorktreeDeleted | StatusWorktreeTypeChange
)

// Has reports whether every bit of flag is set.
func (s FileStatus) Has(flag FileStatus) bool {
	return s&flag == flag
}

// Staged reports whether the index differs from HEAD for this path.
func (s FileStatus) Staged() bool {
	return s&stagedBits != 0
}

// Unstaged reports whether the working tree differs from the index.
func (s FileStatus) Unstaged() bool {
	return s&unstagedBits != 0
}

// PartiallyStaged reports whether the path has both staged and unstaged
// modifications, so neither disk nor HEAD holds the staged content alone.
func (s FileStatus) PartiallyStaged() bool {
	return s.Staged() && s.Unstaged()
}

// String renders the status in porcelain XY form.
func (s FileStatus) String() string {
	x, y := byte(' '), byte(' ')
	switch {
	case s.Has(StatusConflicted):
		return "UU"
	case s.Has(StatusIndexNew):
		x = 'A'
	case s.Has(StatusIndexModified):
		x = 'M'
	case s.Has(StatusIndexDeleted):
		x = 'D'
	case s.Has(StatusIndexRenamed):
		x = 'R'
	case s.Has(StatusIndexTypeChange):
		x = 'T'
	}
	switch {
	case s.Has(StatusWorktreeNew):
		return "??"
	case s.Has(StatusWorktreeModified):
		y = 'M'
	case s.Has(StatusWorktreeDeleted):
		y = 'D'
	case s.Has(StatusWorktreeTypeChange):
		y = 'T'
	}
	return string([]byte{x, y})
}

// parsePorcelainStatus parses `git status --porcelain=v1 -z` output.
func parsePorcelainStatus(out []byte) (map[string]FileStatus, error) {
	records := splitNUL(out)
	result := make(map[string]FileStatus, len(records))

	for i := 0; i < len(records); i++ {
		rec := records[i]
		if len(rec) < 4 || rec[2] != ' ' {
			return nil, fmt.Errorf("malformed status record %q", rec)
		}
		x, y, path := rec[0], rec[1], rec[3:]

		// Renames and copies carry the source path in the next record.
		if x == 'R' || x == 'C' || y == 'R' || y == 'C' {
			i++
		}

		result[path] = statusFromCodes(x, y)
	}
	return result, nil
}

// statusFromCodes maps porcelain XY codes to status bits.
func statusFromCodes(x, y byte) FileStatus {
	if isConflict(x, y) {
		return StatusConflicted
	}

	var st FileStatus
	switch x {
	case 'A', 'C':
		st |= StatusIndexNew
	case 'M':
		st |= StatusIndexModified
	case 'D':
		st |= StatusIndexDeleted
	case 'R':
		st |= StatusIndexRenamed
	case 'T':
		st |= StatusIndexTypeChange
	}
	switch y {
	case '?':
		st |= StatusWorktreeNew
	case 'M':
		st |= StatusWorktreeModified
	case 'D':
		st |= StatusWorktreeDeleted
	case 'T':
		st |= StatusWorktreeTypeChange
	}
	return st
}

func isConflict(x, y byte) bool {
	if x == 'U' || y == 'U' {
		return true
	}
	return (x == 'D' && y == 'D') || (x == 'A' && y == 'A')
}

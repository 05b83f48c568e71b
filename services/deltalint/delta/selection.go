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
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Selection is the set of new-side line numbers considered changed in one
// file, or every line.
//
// # Description
//
// The zero value is an empty explicit selection: the file was touched but
// no line was inserted, so every finding in it is filtered. Line numbers are
// 1-based, sorted and unique.
//
// # Thread Safety
//
// Immutable after creation.
type Selection struct {
	all   bool
	lines []int
}

// AllLines selects every line of a file.
var AllLines = Selection{all: true}

// Lines creates an explicit selection. Non-positive numbers are dropped and
// duplicates collapse.
func Lines(lines ...int) Selection {
	out := make([]int, 0, len(lines))
	for _, l := range lines {
		if l > 0 {
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return Selection{lines: slices.Compact(out)}
}

// All reports whether the selection covers every line.
func (s Selection) All() bool {
	return s.all
}

// Contains reports whether line is selected.
func (s Selection) Contains(line int) bool {
	if s.all {
		return true
	}
	_, found := slices.BinarySearch(s.lines, line)
	return found
}

// Len returns the number of explicit lines, or -1 for AllLines.
func (s Selection) Len() int {
	if s.all {
		return -1
	}
	return len(s.lines)
}

// Numbers returns a copy of the explicit lines. Nil for AllLines.
func (s Selection) Numbers() []int {
	if s.all {
		return nil
	}
	return slices.Clone(s.lines)
}

// String renders the selection as "all" or in compact range notation
// ("5,7-8,12"). An empty selection renders as "none".
func (s Selection) String() string {
	if s.all {
		return "all"
	}
	if len(s.lines) == 0 {
		return "none"
	}

	parts := make([]string, 0, len(s.lines))
	for i := 0; i < len(s.lines); i++ {
		start := s.lines[i]
		end := start
		for i+1 < len(s.lines) && s.lines[i+1] == end+1 {
			i++
			end = s.lines[i]
		}
		if start == end {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, end))
		}
	}
	return strings.Join(parts, ",")
}

// MarshalJSON encodes the compact string form.
func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

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
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
)

// =============================================================================
// Selection
// =============================================================================

func TestSelection(t *testing.T) {
	s := Lines(12, 5, 7, 8, 5, 0, -1)
	assert.Equal(t, []int{5, 7, 8, 12}, s.Numbers())
	assert.Equal(t, 4, s.Len())
	assert.True(t, s.Contains(7))
	assert.False(t, s.Contains(6))
	assert.False(t, s.All())
	assert.Equal(t, "5,7-8,12", s.String())

	assert.True(t, AllLines.Contains(99999))
	assert.Equal(t, -1, AllLines.Len())
	assert.Nil(t, AllLines.Numbers())
	assert.Equal(t, "all", AllLines.String())

	var empty Selection
	assert.False(t, empty.Contains(1))
	assert.Equal(t, "none", empty.String())

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `"5,7-8,12"`, string(raw))
}

func TestSelection_NumbersIsACopy(t *testing.T) {
	s := Lines(1, 2)
	n := s.Numbers()
	n[0] = 100
	assert.True(t, s.Contains(1))
}

// =============================================================================
// Builder
// =============================================================================

// hunk builds a hunk from (old, new) line-number pairs; 0 means absent.
func hunk(pairs ...[2]int) vcs.Hunk {
	h := vcs.Hunk{}
	for _, p := range pairs {
		l := vcs.Line{OldLineno: p[0], NewLineno: p[1]}
		if p[0] == 0 {
			l.OldLineno = -1
		}
		if p[1] == 0 {
			l.NewLineno = -1
		}
		h.Lines = append(h.Lines, l)
	}
	return h
}

func TestBuilder_Build(t *testing.T) {
	root := filepath.FromSlash("/repo")
	// bar.js: old line 10 replaced by new line 10, line 20 unchanged context.
	bar := vcs.NewChangeWithHunks("src/bar.js", "src/bar.js", vcs.ChangeModified, []vcs.Hunk{
		hunk([2]int{9, 9}, [2]int{10, 0}, [2]int{0, 10}, [2]int{11, 11}),
	})
	foo := vcs.NewChange("foo.js", "", vcs.ChangeAdded, nil)
	untracked := vcs.NewChange("tmp.js", "", vcs.ChangeUntracked, nil)
	gone := vcs.NewChange("gone.js", "gone.js", vcs.ChangeDeleted, nil)
	moved := vcs.NewChangeWithHunks("to.js", "from.js", vcs.ChangeRenamed, []vcs.Hunk{
		hunk([2]int{20, 20}, [2]int{0, 21}),
	})
	deletionsOnly := vcs.NewChangeWithHunks("trim.js", "trim.js", vcs.ChangeModified, []vcs.Hunk{
		hunk([2]int{3, 0}, [2]int{4, 0}),
	})

	d, err := NewBuilder().Build(context.Background(), root, []*vcs.Change{bar, foo, untracked, gone, moved, deletionsOnly}, false)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 5, d.Len())

	sel, ok := d.Selection(filepath.Join(root, "src", "bar.js"))
	require.True(t, ok)
	assert.Equal(t, []int{10}, sel.Numbers())

	sel, ok = d.Selection(filepath.Join(root, "foo.js"))
	require.True(t, ok)
	assert.True(t, sel.All())

	sel, ok = d.Selection(filepath.Join(root, "tmp.js"))
	require.True(t, ok)
	assert.True(t, sel.All())

	_, ok = d.Get(filepath.Join(root, "gone.js"))
	assert.False(t, ok)

	e, ok := d.Get(filepath.Join(root, "to.js"))
	require.True(t, ok)
	assert.Equal(t, "from.js", e.OldRelPath)
	assert.Equal(t, "to.js", e.RelPath)
	assert.Equal(t, []int{21}, e.Lines.Numbers())

	sel, ok = d.Selection(filepath.Join(root, "trim.js"))
	require.True(t, ok)
	assert.Equal(t, 0, sel.Len())

	assert.Equal(t, d.Paths(), func() []string {
		var out []string
		for _, e := range d.Entries() {
			out = append(out, e.Path)
		}
		return out
	}())
}

func TestBuilder_FullFileMode(t *testing.T) {
	c := vcs.NewChange("a.js", "a.js", vcs.ChangeModified, func(context.Context) ([]vcs.Hunk, error) {
		return nil, errors.New("hunks must not be read in full-file mode")
	})
	d, err := NewBuilder().Build(context.Background(), "/r", []*vcs.Change{c}, true)
	require.NoError(t, err)
	sel, ok := d.Selection(filepath.Join("/r", "a.js"))
	require.True(t, ok)
	assert.True(t, sel.All())
}

func TestBuilder_AddedIgnoresMode(t *testing.T) {
	for _, full := range []bool{false, true} {
		t.Run(fmt.Sprintf("full=%t", full), func(t *testing.T) {
			c := vcs.NewChange("n.js", "", vcs.ChangeAdded, nil)
			d, err := NewBuilder().Build(context.Background(), "/r", []*vcs.Change{c}, full)
			require.NoError(t, err)
			sel, _ := d.Selection(filepath.Join("/r", "n.js"))
			assert.True(t, sel.All())
		})
	}
}

func TestBuilder_Empty(t *testing.T) {
	d, err := NewBuilder().Build(context.Background(), "/r", nil, false)
	require.NoError(t, err)
	assert.Nil(t, d)

	gone := vcs.NewChange("gone.js", "gone.js", vcs.ChangeDeleted, nil)
	d, err = NewBuilder().Build(context.Background(), "/r", []*vcs.Change{gone}, false)
	require.NoError(t, err)
	assert.Nil(t, d, "deletions alone leave nothing to analyse")
	assert.Equal(t, 0, d.Len())
	assert.Nil(t, d.Paths())
}

func TestBuilder_Binary(t *testing.T) {
	flagged := vcs.NewChange("img.png", "img.png", vcs.ChangeModified, nil)
	flagged.Binary = true
	lazy := vcs.NewChange("blob.bin", "blob.bin", vcs.ChangeModified, func(context.Context) ([]vcs.Hunk, error) {
		return nil, vcs.ErrBinary
	})
	d, err := NewBuilder().Build(context.Background(), "/r", []*vcs.Change{flagged, lazy}, false)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestBuilder_HunkError(t *testing.T) {
	cause := errors.New("object missing")
	c := vcs.NewChange("a.js", "a.js", vcs.ChangeModified, func(context.Context) ([]vcs.Hunk, error) {
		return nil, cause
	})
	_, err := NewBuilder(WithConcurrency(1)).Build(context.Background(), "/r", []*vcs.Change{c}, false)
	assert.ErrorIs(t, err, errs.ErrRevision)
	assert.ErrorIs(t, err, cause)
}

// Every pure insertion is selected and nothing else.
func TestAddedLines_CountsPureInsertions(t *testing.T) {
	h := hunk(
		[2]int{1, 1},
		[2]int{2, 0},
		[2]int{0, 2},
		[2]int{0, 3},
		[2]int{3, 4},
		[2]int{0, 5},
	)
	sel := AddedLines([]vcs.Hunk{h})
	assert.Equal(t, []int{2, 3, 5}, sel.Numbers())
}

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
	"context"
	"testing"

	fdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Unified diff parsing
// =============================================================================

const modifiedDiff = `diff --git a/src/bar.js b/src/bar.js
index 3b18e51..a042389 100644
--- a/src/bar.js
+++ b/src/bar.js
@@ -10 +10 @@ function bar() {
-  return old;
+  return fresh;
@@ -14,0 +15,2 @@ function baz() {
+  one();
+  two();
@@ -30,2 +31,0 @@ function qux() {
-  gone();
-  gone();
`

func TestParseUnifiedDiff_Modified(t *testing.T) {
	changes, err := parseUnifiedDiff([]byte(modifiedDiff))
	require.NoError(t, err)
	require.Len(t, changes, 1)

	c := changes[0]
	assert.Equal(t, "src/bar.js", c.Path)
	assert.Equal(t, "src/bar.js", c.OldPath)
	assert.Equal(t, ChangeModified, c.Kind)

	hunks, err := c.Hunks(context.Background())
	require.NoError(t, err)
	require.Len(t, hunks, 3)

	assert.Equal(t, []Line{
		{OldLineno: 10, NewLineno: -1, Content: "  return old;"},
		{OldLineno: -1, NewLineno: 10, Content: "  return fresh;"},
	}, hunks[0].Lines)

	var added []int
	for _, h := range hunks {
		for _, l := range h.Lines {
			if l.Added() {
				added = append(added, l.NewLineno)
			}
		}
	}
	assert.Equal(t, []int{10, 15, 16}, added)
}

func TestParseUnifiedDiff_Kinds(t *testing.T) {
	raw := `diff --git a/new.js b/new.js
new file mode 100644
index 0000000..e69de29
--- /dev/null
+++ b/new.js
@@ -0,0 +1,2 @@
+a
+b
diff --git a/old.js b/old.js
deleted file mode 100644
index e69de29..0000000
--- a/old.js
+++ /dev/null
@@ -1 +0,0 @@
-a
diff --git a/from.js b/to.js
similarity 90%
rename from from.js
rename to to.js
index 1111111..2222222 100644
--- a/from.js
+++ b/to.js
@@ -3 +3 @@
-x
+y
`
	changes, err := parseUnifiedDiff([]byte(raw))
	require.NoError(t, err)
	require.Len(t, changes, 3)

	assert.Equal(t, ChangeAdded, changes[0].Kind)
	assert.Equal(t, "new.js", changes[0].Path)
	assert.Empty(t, changes[0].OldPath)

	assert.Equal(t, ChangeDeleted, changes[1].Kind)
	assert.Equal(t, "old.js", changes[1].Path)

	assert.Equal(t, ChangeRenamed, changes[2].Kind)
	assert.Equal(t, "to.js", changes[2].Path)
	assert.Equal(t, "from.js", changes[2].OldPath)
}

func TestParseUnifiedDiff_Empty(t *testing.T) {
	changes, err := parseUnifiedDiff([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestParseGitHeader(t *testing.T) {
	a, b := parseGitHeader("diff --git a/dir/x y.js b/dir/x y.js")
	assert.Equal(t, "dir/x y.js", a)
	assert.Equal(t, "dir/x y.js", b)

	a, b = parseGitHeader("index 123..456")
	assert.Empty(t, a)
	assert.Empty(t, b)
}

func TestUnquotePath(t *testing.T) {
	assert.Equal(t, "tab\there.js", unquotePath(`"tab\there.js"`))
	assert.Equal(t, "plain.js", unquotePath("plain.js"))
}

// =============================================================================
// go-git chunk numbering
// =============================================================================

type fakeChunk struct {
	content string
	op      fdiff.Operation
}

func (c fakeChunk) Content() string       { return c.content }
func (c fakeChunk) Type() fdiff.Operation { return c.op }

func TestHunksFromChunks(t *testing.T) {
	chunks := []fdiff.Chunk{
		fakeChunk{"a\nb\n", fdiff.Equal},
		fakeChunk{"c\n", fdiff.Delete},
		fakeChunk{"C\nD\n", fdiff.Add},
		fakeChunk{"e\n", fdiff.Equal},
		fakeChunk{"f", fdiff.Add},
	}

	hunks := hunksFromChunks(chunks)
	require.Len(t, hunks, 2)

	assert.Equal(t, Hunk{
		OldStart: 3, OldLines: 1, NewStart: 3, NewLines: 2,
		Lines: []Line{
			{OldLineno: 3, NewLineno: -1, Content: "c"},
			{OldLineno: -1, NewLineno: 3, Content: "C"},
			{OldLineno: -1, NewLineno: 4, Content: "D"},
		},
	}, hunks[0])

	assert.Equal(t, []Line{{OldLineno: -1, NewLineno: 6, Content: "f"}}, hunks[1].Lines)
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(""))
	assert.Equal(t, []string{"a", "b"}, splitLines("a\nb\n"))
	assert.Equal(t, []string{"a", "b"}, splitLines("a\nb"))
	assert.Equal(t, []string{""}, splitLines("\n"))
}

// =============================================================================
// Change laziness
// =============================================================================

func TestChange_HunksLoadedOnce(t *testing.T) {
	calls := 0
	c := NewChange("a.js", "a.js", ChangeModified, func(context.Context) ([]Hunk, error) {
		calls++
		return []Hunk{{NewStart: 1}}, nil
	})

	_, err := c.Hunks(context.Background())
	require.NoError(t, err)
	_, err = c.Hunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	empty := NewChange("b.js", "", ChangeUntracked, nil)
	hunks, err := empty.Hunks(context.Background())
	require.NoError(t, err)
	assert.Nil(t, hunks)
}

func TestChangeKind_String(t *testing.T) {
	assert.Equal(t, "added", ChangeAdded.String())
	assert.Equal(t, "renamed", ChangeRenamed.String())
	assert.Equal(t, "untracked", ChangeUntracked.String())
	assert.Equal(t, "unknown", ChangeKind(42).String())
}

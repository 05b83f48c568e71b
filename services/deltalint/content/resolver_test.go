// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package content

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/deltalint/services/deltalint/delta"
	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/revision"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs/vcstest"
)

const root = "/repo"

func abs(rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

func entry(rel, oldRel string, kind vcs.ChangeKind) delta.Entry {
	return delta.Entry{Path: abs(rel), RelPath: rel, OldRelPath: oldRel, Kind: kind, Lines: delta.AllLines}
}

func localEndpoints(target revision.Target) *revision.Endpoints {
	return &revision.Endpoints{Old: vcs.Commit{ID: "c1", TreeID: "t1"}, Target: target}
}

func commitEndpoints() *revision.Endpoints {
	return &revision.Endpoints{
		Old:    vcs.Commit{ID: "c1", TreeID: "t1"},
		New:    &vcs.Commit{ID: "c2", TreeID: "t2"},
		Target: revision.TargetCommit,
	}
}

func TestResolve_DiskWhenClean(t *testing.T) {
	b := vcstest.New(root)
	b.Statuses["a.js"] = vcs.StatusIndexModified
	b.Statuses["b.js"] = vcs.StatusWorktreeModified
	d := delta.New(entry("a.js", "a.js", vcs.ChangeModified), entry("b.js", "b.js", vcs.ChangeModified))

	for _, target := range []revision.Target{revision.TargetIndex, revision.TargetWorkdir} {
		t.Run(target.String(), func(t *testing.T) {
			c, err := NewResolver(b).Resolve(context.Background(), localEndpoints(target), d)
			require.NoError(t, err)
			assert.Equal(t, StrategyDisk, c.Strategy)
			assert.Equal(t, []string{abs("a.js"), abs("b.js")}, c.Paths)
			assert.Empty(t, c.New)
		})
	}
}

func TestResolve_IndexWithPartiallyStaged(t *testing.T) {
	b := vcstest.New(root)
	b.Statuses["baz.js"] = vcs.StatusIndexModified | vcs.StatusWorktreeModified
	b.Index["baz.js"] = []byte("staged\n")
	b.Index["a.js"] = []byte("a\n")
	d := delta.New(
		entry("a.js", "a.js", vcs.ChangeModified),
		entry("baz.js", "baz.js", vcs.ChangeModified),
		entry("unstaged.js", "unstaged.js", vcs.ChangeModified),
	)

	c, err := NewResolver(b, WithConcurrency(2)).Resolve(context.Background(), localEndpoints(revision.TargetIndex), d)
	require.NoError(t, err)
	assert.Equal(t, StrategyIndex, c.Strategy)
	require.Len(t, c.New, 2, "entries missing from the index are skipped")
	assert.Equal(t, Source{Path: abs("a.js"), RelPath: "a.js", Text: []byte("a\n")}, c.New[0])
	assert.Equal(t, Source{Path: abs("baz.js"), RelPath: "baz.js", Text: []byte("staged\n")}, c.New[1])
}

func TestResolve_WorkdirWithPartiallyStaged(t *testing.T) {
	b := vcstest.New(root)
	b.Statuses["baz.js"] = vcs.StatusIndexModified | vcs.StatusWorktreeModified
	d := delta.New(entry("baz.js", "baz.js", vcs.ChangeModified))

	_, err := NewResolver(b).Resolve(context.Background(), localEndpoints(revision.TargetWorkdir), d)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrUnsupported)
	assert.Equal(t, PartiallyStagedHint, errs.HintOf(err))
	assert.Contains(t, err.Error(), "baz.js")
	for _, call := range b.Calls() {
		assert.NotContains(t, call, "ReadBlob", "no content may be read")
	}
}

func TestResolve_Commit(t *testing.T) {
	b := vcstest.New(root)
	b.SetFile("t2", "mod.js", "new mod\n")
	b.SetFile("t1", "mod.js", "old mod\n")
	b.SetFile("t2", "added.js", "added\n")
	b.SetFile("t2", "to.js", "moved\n")
	b.SetFile("t1", "from.js", "before move\n")
	d := delta.New(
		entry("mod.js", "mod.js", vcs.ChangeModified),
		entry("added.js", "", vcs.ChangeAdded),
		entry("to.js", "from.js", vcs.ChangeRenamed),
	)

	c, err := NewResolver(b).Resolve(context.Background(), commitEndpoints(), d)
	require.NoError(t, err)
	assert.Equal(t, StrategyCommit, c.Strategy)

	require.Len(t, c.New, 3)
	assert.Equal(t, abs("added.js"), c.New[0].Path)
	assert.Equal(t, abs("mod.js"), c.New[1].Path)
	assert.Equal(t, abs("to.js"), c.New[2].Path)

	require.Len(t, c.Old, 2)
	assert.Equal(t, Source{Path: abs("mod.js"), RelPath: "mod.js", Text: []byte("old mod\n")}, c.Old[0])
	assert.Equal(t, Source{Path: abs("to.js"), RelPath: "from.js", Text: []byte("before move\n")}, c.Old[1],
		"renamed files read the old path but report the new one")
}

func TestResolve_CommitMissingPathOmitted(t *testing.T) {
	b := vcstest.New(root)
	b.SetFile("t2", "a.js", "a\n")
	d := delta.New(entry("a.js", "a.js", vcs.ChangeModified))

	c, err := NewResolver(b).Resolve(context.Background(), commitEndpoints(), d)
	require.NoError(t, err)
	assert.Len(t, c.New, 1)
	assert.Empty(t, c.Old)
}

func TestResolve_CommitWithoutNew(t *testing.T) {
	b := vcstest.New(root)
	d := delta.New(entry("a.js", "a.js", vcs.ChangeModified))
	ep := commitEndpoints()
	ep.New = nil

	_, err := NewResolver(b).Resolve(context.Background(), ep, d)
	assert.ErrorIs(t, err, errs.ErrInvariant)
	assert.Empty(t, b.Calls())
}

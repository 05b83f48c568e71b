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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/deltalint/services/deltalint/errs"
)

func refPtr(r Ref) *Ref { return &r }

func TestRef(t *testing.T) {
	assert.Equal(t, Head, ID(""))
	assert.Equal(t, Head, ID("HEAD"))
	assert.Equal(t, KindID, ID("main").Kind())

	spec, ok := ID("main").Spec()
	assert.True(t, ok)
	assert.Equal(t, "main", spec)

	spec, ok = Head.Spec()
	assert.True(t, ok)
	assert.Equal(t, "HEAD", spec)

	_, ok = Index.Spec()
	assert.False(t, ok)
	assert.False(t, Workdir.Concrete())
	assert.Equal(t, "INDEX", Index.String())
	assert.Equal(t, "WORKDIR", Workdir.String())
}

func TestParseDiffArgs(t *testing.T) {
	tests := []struct {
		name    string
		commits []string
		cached  bool
		want    Selector
	}{
		{"no args", nil, false, Selector{Old: refPtr(Head), New: Workdir}},
		{"no args cached", nil, true, Selector{Old: refPtr(Head), New: Index}},
		{"single commit", []string{"main"}, false, Selector{Old: refPtr(ID("main")), New: Head}},
		{"single commit cached", []string{"main"}, true, Selector{Old: refPtr(ID("main")), New: Index}},
		{"two dot", []string{"a..b"}, false, Selector{Old: refPtr(ID("a")), New: ID("b")}},
		{"three dot", []string{"a...b"}, false, Selector{Old: refPtr(ID("a")), New: ID("b"), FindMergeBase: true}},
		{"three dot open end", []string{"main..."}, false, Selector{Old: refPtr(ID("main")), New: Head, FindMergeBase: true}},
		{"two dot open start", []string{"..topic"}, false, Selector{Old: refPtr(Head), New: ID("topic")}},
		{"two commits", []string{"a", "b"}, false, Selector{Old: refPtr(ID("a")), New: ID("b")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDiffArgs(tt.commits, tt.cached)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDiffArgs_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		commits []string
		cached  bool
	}{
		{"range with cached", []string{"a...b"}, true},
		{"two dot with cached", []string{"a..b"}, true},
		{"two commits with cached", []string{"a", "b"}, true},
		{"range in two commit form", []string{"a..b", "c"}, false},
		{"too many", []string{"a", "b", "c"}, false},
		{"empty", []string{""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDiffArgs(tt.commits, tt.cached)
			assert.ErrorIs(t, err, errs.ErrConfiguration)
		})
	}
}

func TestParseShowArgs(t *testing.T) {
	sel, err := ParseShowArgs(nil)
	require.NoError(t, err)
	assert.Nil(t, sel.Old)
	assert.Equal(t, Head, sel.New)

	sel, err = ParseShowArgs([]string{"abc123"})
	require.NoError(t, err)
	assert.Equal(t, ID("abc123"), sel.New)

	_, err = ParseShowArgs([]string{"a..b"})
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	_, err = ParseShowArgs([]string{"a", "b"})
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestBaseSelector(t *testing.T) {
	sel := BaseSelector("main")
	require.NotNil(t, sel.Old)
	assert.Equal(t, ID("main"), *sel.Old)
	assert.Equal(t, Head, sel.New)
	assert.True(t, sel.FindMergeBase)
	assert.Contains(t, sel.String(), "find_merge_base=true")
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package errs

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsKindAndCause(t *testing.T) {
	err := Revision("resolve revision \"nope\"", fs.ErrNotExist)

	assert.ErrorIs(t, err, ErrRevision)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, "resolve revision \"nope\": file does not exist", err.Error())
}

func TestError_WrappedStillClassified(t *testing.T) {
	inner := Invariant("no delta entry for %s", "/repo/a.js")
	wrapped := fmt.Errorf("filter: %w", inner)

	assert.ErrorIs(t, wrapped, ErrInvariant)
	assert.Equal(t, ErrInvariant, KindOf(wrapped))
	assert.Nil(t, KindOf(errors.New("plain")))
}

func TestError_PathAndHint(t *testing.T) {
	base := Unsupported("partially staged files", nil)
	err := base.WithPath("src/baz.js").WithHint("stage or stash the remaining changes")

	assert.Equal(t, "partially staged files src/baz.js", err.Error())
	assert.Equal(t, "stage or stash the remaining changes", HintOf(fmt.Errorf("x: %w", err)))
	assert.Empty(t, base.Path, "WithPath must not mutate the receiver")
}

func TestConfiguration_Message(t *testing.T) {
	err := Configuration("at least one revision must be given")

	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, "at least one revision must be given", err.Error())
}

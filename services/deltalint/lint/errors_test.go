// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinterError_Error(t *testing.T) {
	base := NewLinterError("ruff", "python", ErrLinterFailed)

	tests := []struct {
		name string
		err  *LinterError
		want string
	}{
		{"batch", base, "ruff (python): linter execution failed"},
		{"single file", base.WithPath("src/app.py"), "ruff (python) src/app.py: linter execution failed"},
		{"stderr", base.WithOutput("boom"), "ruff (python): linter execution failed: boom"},
		{"file and stderr", base.WithOutput("boom").WithPath("src/app.py"), "ruff (python) src/app.py: linter execution failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.ErrorIs(t, tt.err, ErrLinterFailed)
		})
	}

	assert.Empty(t, base.Path, "WithPath returns a copy")
	assert.Empty(t, base.Output, "WithOutput returns a copy")
}

func TestLinterError_Wrapped(t *testing.T) {
	err := fmt.Errorf("lint: %w", NewLinterError("golangci-lint", "go", ErrNeedsCheckout).WithPath("pkg/a.go"))

	var le *LinterError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "pkg/a.go", le.Path)
	assert.ErrorIs(t, err, ErrNeedsCheckout)
}

func TestRunner_LintTextErrorNamesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "src", "app.py")
	fx := &fakeExec{handler: func(c fakeCall) ([]byte, []byte, error) {
		return nil, []byte("ruff: crashed"), errors.New("exit status 2")
	}}
	r := newTestRunner(t, dir, fx)

	_, err := r.LintText(context.Background(), []byte("x\n"), path)
	require.Error(t, err)

	var le *LinterError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, path, le.Path)
	assert.Equal(t, "ruff", le.Linter)
	assert.Contains(t, err.Error(), "ruff (python) "+path+": ")
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/deltalint/services/deltalint/delta"
	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/lint"
)

func finding(rule string, sev lint.Severity, line, col int, source string) lint.Finding {
	return lint.Finding{Rule: rule, Severity: sev, Line: line, Column: col, Source: source}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name             string
		sel              delta.Selection
		findings         []lint.Finding
		wantLines        []int
		wantErrors       int
		wantWarnings     int
		wantFilteredErrs int
		wantFilteredWarn int
	}{
		{
			name:       "added file keeps everything",
			sel:        delta.AllLines,
			findings:   []lint.Finding{finding("no-undef", lint.SeverityError, 2, 1, "x")},
			wantLines:  []int{2},
			wantErrors: 1,
		},
		{
			name: "modified file keeps only added lines",
			sel:  delta.Lines(10),
			findings: []lint.Finding{
				finding("no-undef", lint.SeverityError, 10, 1, "a"),
				finding("no-undef", lint.SeverityError, 20, 1, "b"),
			},
			wantLines:        []int{10},
			wantErrors:       1,
			wantFilteredErrs: 1,
		},
		{
			name: "full-file mode retains pre-existing errors",
			sel:  delta.AllLines,
			findings: []lint.Finding{
				finding("eqeqeq", lint.SeverityError, 3, 5, "a == b"),
				finding("eqeqeq", lint.SeverityError, 8, 5, "c == d"),
			},
			wantLines:  []int{3, 8},
			wantErrors: 2,
		},
		{
			name: "warnings and info",
			sel:  delta.Lines(1),
			findings: []lint.Finding{
				finding("semi", lint.SeverityWarning, 1, 9, "x"),
				finding("semi", lint.SeverityWarning, 2, 9, "y"),
				finding("style", lint.SeverityInfo, 3, 1, "z"),
			},
			wantLines:        []int{1},
			wantWarnings:     1,
			wantFilteredWarn: 1,
		},
		{
			name: "empty selection removes everything",
			sel:  delta.Lines(),
			findings: []lint.Finding{
				finding("a", lint.SeverityError, 1, 1, ""),
				finding("b", lint.SeverityWarning, 2, 1, ""),
			},
			wantFilteredErrs: 1,
			wantFilteredWarn: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := delta.New(delta.Entry{Path: "/repo/f.js", RelPath: "f.js", Lines: tt.sel})
			in := []lint.FileResult{lint.NewFileResult("/repo/f.js", tt.findings)}

			report, err := Filter(in, d)
			require.NoError(t, err)
			require.Len(t, report.Results, 1)

			var lines []int
			for _, f := range report.Results[0].Findings {
				lines = append(lines, f.Line)
			}
			assert.Equal(t, tt.wantLines, lines)
			assert.Equal(t, tt.wantErrors, report.ErrorCount)
			assert.Equal(t, tt.wantWarnings, report.WarningCount)
			assert.Equal(t, tt.wantFilteredErrs, report.FilteredErrorCount)
			assert.Equal(t, tt.wantFilteredWarn, report.FilteredWarningCount)
			assert.Equal(t, tt.wantErrors, report.Results[0].ErrorCount)
			assert.Equal(t, tt.wantWarnings, report.Results[0].WarningCount)
		})
	}
}

func TestFilter_FixableCounts(t *testing.T) {
	findings := []lint.Finding{
		{Rule: "a", Severity: lint.SeverityError, Line: 1, Fixable: true},
		{Rule: "b", Severity: lint.SeverityError, Line: 5, Fixable: true},
		{Rule: "c", Severity: lint.SeverityWarning, Line: 6, Fixable: true},
		{Rule: "d", Severity: lint.SeverityWarning, Line: 7},
	}
	d := delta.New(delta.Entry{Path: "/r/a.py", Lines: delta.Lines(1)})

	report, err := Filter([]lint.FileResult{lint.NewFileResult("/r/a.py", findings)}, d)
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, 1, res.FixableErrorCount)
	assert.Equal(t, 0, res.FixableWarningCount)
	assert.Equal(t, 1, report.FilteredFixableErrorCount)
	assert.Equal(t, 1, report.FilteredFixableWarningCount)
	assert.Equal(t, 2, report.FilteredWarningCount)
	assert.True(t, report.HasProblems())
	assert.True(t, report.HasFiltered())
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	d := delta.New(delta.Entry{Path: "/r/a.js", Lines: delta.Lines(2)})
	in := []lint.FileResult{lint.NewFileResult("/r/a.js", []lint.Finding{
		finding("x", lint.SeverityError, 1, 1, ""),
		finding("x", lint.SeverityError, 2, 1, ""),
	})}

	first, err := Filter(in, d)
	require.NoError(t, err)
	second, err := Filter(in, d)
	require.NoError(t, err)

	assert.Equal(t, first, second, "filtering is idempotent")
	assert.Len(t, in[0].Findings, 2)
	assert.Equal(t, 2, in[0].ErrorCount)
}

func TestFilter_MissingFromDelta(t *testing.T) {
	d := delta.New(delta.Entry{Path: "/r/a.js", Lines: delta.AllLines})
	_, err := Filter([]lint.FileResult{lint.NewFileResult("/r/b.js", nil)}, d)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvariant))

	_, err = Filter([]lint.FileResult{lint.NewFileResult("/r/a.js", nil)}, nil)
	assert.True(t, errors.Is(err, errs.ErrInvariant))
}

func TestFilterDrift(t *testing.T) {
	path := "/repo/src/app.js"
	d := delta.New(delta.Entry{Path: path, RelPath: "src/app.js", OldRelPath: "src/app.js", Lines: delta.Lines(12)})

	oldResults := []lint.FileResult{lint.NewFileResult(path, []lint.Finding{
		finding("no-console", lint.SeverityError, 3, 5, "    console.log(a)"),
		finding("eqeqeq", lint.SeverityWarning, 9, 7, "if (a == b) {"),
	})}
	newResults := []lint.FileResult{lint.NewFileResult(path, []lint.Finding{
		// moved from line 3: equivalent, stays filtered
		finding("no-console", lint.SeverityError, 5, 5, "    console.log(a)"),
		// same rule and source, different column: new
		finding("eqeqeq", lint.SeverityWarning, 11, 9, "if (a == b) {"),
		// on an added line
		finding("no-undef", lint.SeverityError, 12, 1, "z()"),
		// not on an added line and never seen before
		finding("no-undef", lint.SeverityError, 20, 1, "y()"),
	})}

	report, err := FilterDrift(oldResults, newResults, d)
	require.NoError(t, err)

	var kept []string
	for _, f := range report.Results[0].Findings {
		kept = append(kept, f.Source)
	}
	assert.Equal(t, []string{"if (a == b) {", "z()", "y()"}, kept)
	assert.Equal(t, 2, report.ErrorCount)
	assert.Equal(t, 1, report.WarningCount)
	assert.Equal(t, 1, report.FilteredErrorCount)
	assert.Equal(t, 0, report.FilteredWarningCount)

	plain, err := Filter(newResults, d)
	require.NoError(t, err)
	assert.Equal(t, 1, plain.ErrorCount, "the plain filter never re-surfaces")
	assert.Equal(t, 2, plain.FilteredErrorCount)
}

func TestFilterDrift_NoOldResult(t *testing.T) {
	path := "/repo/new.js"
	d := delta.New(delta.Entry{Path: path, Lines: delta.Lines(1)})
	newResults := []lint.FileResult{lint.NewFileResult(path, []lint.Finding{
		finding("a", lint.SeverityError, 4, 1, "x"),
	})}

	report, err := FilterDrift(nil, newResults, d)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ErrorCount)
	assert.Equal(t, 0, report.FilteredErrorCount)
}

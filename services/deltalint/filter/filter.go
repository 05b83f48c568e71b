// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filter narrows analysis results to the lines of a delta.
//
// # Description
//
// Filter keeps the findings that sit on selected lines and counts the rest.
// FilterDrift additionally re-surfaces filtered findings that have no
// equivalent in the old tree's results, so problems that merely moved
// because of unrelated edits stay hidden while genuinely new ones do not.
//
// # Thread Safety
//
// Both functions are pure. Inputs are never modified.
package filter

import (
	"github.com/AleutianAI/deltalint/services/deltalint/delta"
	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/lint"
)

// Report is the filtered result set with aggregate counts.
type Report struct {
	// Results holds one new record per analysed file, in input order.
	Results []lint.FileResult `json:"results"`

	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`

	FilteredErrorCount          int `json:"filtered_error_count"`
	FilteredWarningCount        int `json:"filtered_warning_count"`
	FilteredFixableErrorCount   int `json:"filtered_fixable_error_count"`
	FilteredFixableWarningCount int `json:"filtered_fixable_warning_count"`
}

// HasProblems reports whether any error or warning was retained.
func (r *Report) HasProblems() bool {
	return r != nil && (r.ErrorCount > 0 || r.WarningCount > 0)
}

// HasFiltered reports whether any error or warning was removed.
func (r *Report) HasFiltered() bool {
	return r != nil && (r.FilteredErrorCount > 0 || r.FilteredWarningCount > 0)
}

// Filter keeps findings on the delta's selected lines.
//
// Description:
//
//	Files selecting all lines keep every finding. Otherwise findings off
//	the selection are removed and counted by severity and fixability.
//	Removed informational findings are not counted.
//
// Inputs:
//
//	results - Engine results; every FilePath must be a delta key
//	d - The delta the results were produced from
//
// Outputs:
//
//	*Report - New result records plus aggregate counts
//	error - errs.ErrInvariant when a result's file is missing from d
func Filter(results []lint.FileResult, d *delta.Delta) (*Report, error) {
	return filter(results, d, nil)
}

// FilterDrift is Filter for two analysis runs.
//
// Description:
//
//	A finding that Filter would remove is kept when the old results for the
//	same file hold no equivalent finding. Equivalent means the same rule,
//	source text and column; the line is ignored because it is exactly what
//	unrelated edits shift. Files with no old result did not previously
//	exist, so none of their findings have an equivalent.
//
// Inputs:
//
//	oldResults - Results for the old tree, reported under new-side paths
//	newResults - Results for the new tree
//	d - The delta
//
// Outputs:
//
//	*Report - New result records plus aggregate counts
//	error - errs.ErrInvariant when a new result's file is missing from d
func FilterDrift(oldResults, newResults []lint.FileResult, d *delta.Delta) (*Report, error) {
	old := make(map[string][]lint.Finding, len(oldResults))
	for _, r := range oldResults {
		old[r.FilePath] = append(old[r.FilePath], r.Findings...)
	}
	return filter(newResults, d, old)
}

// filter implements both variants; old is nil for the plain one.
func filter(results []lint.FileResult, d *delta.Delta, old map[string][]lint.Finding) (*Report, error) {
	report := &Report{Results: make([]lint.FileResult, 0, len(results))}

	for _, res := range results {
		sel, ok := d.Selection(res.FilePath)
		if !ok {
			return nil, errs.Invariant("analysis result for %s is missing from the delta", res.FilePath)
		}

		out := lint.FileResult{
			FilePath:            res.FilePath,
			Findings:            make([]lint.Finding, 0, len(res.Findings)),
			ErrorCount:          res.ErrorCount,
			WarningCount:        res.WarningCount,
			FixableErrorCount:   res.FixableErrorCount,
			FixableWarningCount: res.FixableWarningCount,
		}

		var removedErrors, removedWarnings, removedFixableErrors, removedFixableWarnings int
		for _, f := range res.Findings {
			if sel.All() || sel.Contains(f.Line) {
				out.Findings = append(out.Findings, f)
				continue
			}
			if old != nil && !hasEquivalent(old[res.FilePath], f) {
				out.Findings = append(out.Findings, f)
				continue
			}
			switch f.Severity {
			case lint.SeverityError:
				removedErrors++
				if f.Fixable {
					removedFixableErrors++
				}
			case lint.SeverityWarning:
				removedWarnings++
				if f.Fixable {
					removedFixableWarnings++
				}
			}
		}

		out.ErrorCount -= removedErrors
		out.WarningCount -= removedWarnings
		out.FixableErrorCount -= removedFixableErrors
		out.FixableWarningCount -= removedFixableWarnings

		report.ErrorCount += out.ErrorCount
		report.WarningCount += out.WarningCount
		report.FilteredErrorCount += removedErrors
		report.FilteredWarningCount += removedWarnings
		report.FilteredFixableErrorCount += removedFixableErrors
		report.FilteredFixableWarningCount += removedFixableWarnings
		report.Results = append(report.Results, out)
	}
	return report, nil
}

// hasEquivalent reports whether old holds a finding with the same rule,
// source and column as f.
func hasEquivalent(old []lint.Finding, f lint.Finding) bool {
	for _, o := range old {
		if o.Rule == f.Rule && o.Source == f.Source && o.Column == f.Column {
			return true
		}
	}
	return false
}

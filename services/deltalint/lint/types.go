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
	"encoding/json"
	"fmt"
	"strconv"
)

// =============================================================================
// SEVERITY
// =============================================================================

// Severity represents the severity level of a finding.
type Severity int

const (
	// SeverityInfo represents informational/style findings. They are never
	// counted as errors or warnings.
	SeverityInfo Severity = iota

	// SeverityWarning represents findings that do not fail a gate.
	SeverityWarning

	// SeverityError represents findings that fail a gate.
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the severity as its name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts a severity name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("severity must be a string: %w", err)
	}
	*s = SeverityFromString(name)
	return nil
}

// SeverityFromString parses a severity string.
//
// Description:
//
//	Parses common severity strings from different linters.
//	Unknown values default to SeverityWarning.
//
// Inputs:
//
//	s - Severity string (e.g., "error", "warning", "info")
//
// Outputs:
//
//	Severity - The parsed severity level
func SeverityFromString(s string) Severity {
	switch s {
	case "error", "err", "fatal", "critical":
		return SeverityError
	case "warning", "warn":
		return SeverityWarning
	case "info", "note", "style", "hint":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// =============================================================================
// FINDING
// =============================================================================

// Finding is one analysis message.
//
// Thread Safety: Immutable after creation. Filters copy findings, they
// never modify them in place.
type Finding struct {
	// Rule is the linter rule that triggered (e.g., "errcheck", "E501").
	Rule string `json:"rule"`

	// RuleURL is a link to documentation for the rule.
	RuleURL string `json:"rule_url,omitempty"`

	// Severity is the severity level after policy.
	Severity Severity `json:"severity"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Line is the 1-indexed line number.
	Line int `json:"line"`

	// Column is the 1-indexed column. 0 when the linter gives none.
	Column int `json:"column,omitempty"`

	// EndLine is the ending line for multi-line findings.
	EndLine int `json:"end_line,omitempty"`

	// EndColumn is the ending column.
	EndColumn int `json:"end_column,omitempty"`

	// Fixable reports whether an automatic fix is available.
	Fixable bool `json:"fixable"`

	// Source is the text of the line the finding points at.
	Source string `json:"source,omitempty"`

	// Suggestion is a suggested fix if available.
	Suggestion string `json:"suggestion,omitempty"`

	// Linter is the name of the linter that produced the finding.
	Linter string `json:"linter,omitempty"`
}

// Location returns "line:col", or "line" without a column.
func (f *Finding) Location() string {
	if f.Column > 0 {
		return strconv.Itoa(f.Line) + ":" + strconv.Itoa(f.Column)
	}
	return strconv.Itoa(f.Line)
}

// rawFinding is a parsed finding still carrying the file it was reported
// against.
type rawFinding struct {
	File string
	Finding
}

// =============================================================================
// FILE RESULT
// =============================================================================

// FileResult is the analysis result of one file.
//
// Thread Safety: Treat as immutable once returned by an Engine.
type FileResult struct {
	// FilePath is the absolute path the file is reported as.
	FilePath string `json:"file_path"`

	// Findings are ordered by line, then column.
	Findings []Finding `json:"findings"`

	ErrorCount          int `json:"error_count"`
	WarningCount        int `json:"warning_count"`
	FixableErrorCount   int `json:"fixable_error_count"`
	FixableWarningCount int `json:"fixable_warning_count"`
}

// NewFileResult builds a result and computes its counts from findings.
func NewFileResult(path string, findings []Finding) FileResult {
	if findings == nil {
		findings = []Finding{}
	}
	r := FileResult{FilePath: path, Findings: findings}
	for _, f := range findings {
		switch f.Severity {
		case SeverityError:
			r.ErrorCount++
			if f.Fixable {
				r.FixableErrorCount++
			}
		case SeverityWarning:
			r.WarningCount++
			if f.Fixable {
				r.FixableWarningCount++
			}
		}
	}
	return r
}

// HasProblems reports whether the result holds errors or warnings.
func (r *FileResult) HasProblems() bool {
	return r.ErrorCount > 0 || r.WarningCount > 0
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the static-analysis capability consumed by the pipeline.
type Engine interface {
	// LintFiles analyses files from disk. Results are returned for every
	// path a linter handled, in input order.
	LintFiles(ctx context.Context, paths []string) ([]FileResult, error)

	// LintText analyses text as if it were the file at path.
	LintText(ctx context.Context, text []byte, path string) (FileResult, error)

	// Formatter returns the named result formatter.
	Formatter(name string) (Formatter, error)
}

// CheckoutFile names one file of a checkout.
type CheckoutFile struct {
	// RelPath is the slash-separated path inside the checkout.
	RelPath string

	// Path is the logical path results are reported against.
	Path string
}

// CheckoutEngine is implemented by engines whose linters need a file's
// whole package, not just its text.
type CheckoutEngine interface {
	Engine

	// NeedsCheckout reports whether path must be linted with LintCheckout.
	NeedsCheckout(path string) bool

	// LintCheckout analyses files of a repository state written to dir,
	// which mirrors the repository layout. Results are keyed by the
	// logical paths, in input order.
	LintCheckout(ctx context.Context, dir string, files []CheckoutFile) ([]FileResult, error)
}

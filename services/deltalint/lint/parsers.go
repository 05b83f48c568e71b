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
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// GOLANGCI-LINT PARSER
// =============================================================================

// golangciOutput represents the JSON output from golangci-lint.
type golangciOutput struct {
	Issues []golangciIssue `json:"Issues"`
}

type golangciIssue struct {
	FromLinter  string           `json:"FromLinter"`
	Text        string           `json:"Text"`
	Severity    string           `json:"Severity"`
	SourceLines []string         `json:"SourceLines"`
	Pos         golangciPosition `json:"Pos"`
	LineRange   *golangciRange   `json:"LineRange,omitempty"`
	Replacement *golangciReplace `json:"Replacement,omitempty"`
}

type golangciPosition struct {
	Filename string `json:"Filename"`
	Line     int    `json:"Line"`
	Column   int    `json:"Column"`
}

type golangciRange struct {
	From int `json:"From"`
	To   int `json:"To"`
}

type golangciReplace struct {
	NeedOnlyDelete bool            `json:"NeedOnlyDelete"`
	NewLines       []string        `json:"NewLines"`
	Inline         *golangciInline `json:"Inline,omitempty"`
}

type golangciInline struct {
	StartCol  int    `json:"StartCol"`
	Length    int    `json:"Length"`
	NewString string `json:"NewString"`
}

// parseGolangCIOutput parses JSON output from golangci-lint.
//
// Description:
//
//	golangci-lint produces a JSON object with an "Issues" array. Each issue
//	carries the linter name, message, position, the offending source lines
//	and an optional replacement.
func parseGolangCIOutput(data []byte) ([]rawFinding, error) {
	var output golangciOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("parsing golangci-lint output: %w", err)
	}

	findings := make([]rawFinding, 0, len(output.Issues))
	for _, gi := range output.Issues {
		f := rawFinding{
			File: gi.Pos.Filename,
			Finding: Finding{
				Rule:     gi.FromLinter,
				Severity: mapGolangCISeverity(gi.Severity),
				Message:  gi.Text,
				Line:     gi.Pos.Line,
				Column:   gi.Pos.Column,
				Linter:   "golangci-lint",
			},
		}
		if len(gi.SourceLines) > 0 {
			f.Source = gi.SourceLines[0]
		}
		if gi.LineRange != nil && gi.LineRange.To > gi.LineRange.From {
			f.EndLine = gi.LineRange.To
		}
		if gi.Replacement != nil {
			f.Fixable = true
			switch {
			case gi.Replacement.Inline != nil:
				f.Suggestion = fmt.Sprintf("Replace with: %s", gi.Replacement.Inline.NewString)
			case len(gi.Replacement.NewLines) > 0:
				f.Suggestion = fmt.Sprintf("Replace with: %s", strings.Join(gi.Replacement.NewLines, "\n"))
			case gi.Replacement.NeedOnlyDelete:
				f.Suggestion = "Delete the line"
			}
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// mapGolangCISeverity maps golangci-lint severity; it is often unset.
func mapGolangCISeverity(s string) Severity {
	switch strings.ToLower(s) {
	case "error":
		return SeverityError
	case "info":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// =============================================================================
// RUFF PARSER
// =============================================================================

type ruffIssue struct {
	Code        *string      `json:"code"`
	EndLocation ruffLocation `json:"end_location"`
	Filename    string       `json:"filename"`
	Fix         *ruffFix     `json:"fix"`
	Location    ruffLocation `json:"location"`
	Message     string       `json:"message"`
	URL         *string      `json:"url"`
}

type ruffLocation struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

type ruffFix struct {
	Applicability string `json:"applicability"`
	Message       string `json:"message"`
}

// parseRuffOutput parses the JSON array produced by ruff check. Syntax
// errors have a null code and are reported as errors.
func parseRuffOutput(data []byte) ([]rawFinding, error) {
	var issues []ruffIssue
	if err := json.Unmarshal(data, &issues); err != nil {
		return nil, fmt.Errorf("parsing ruff output: %w", err)
	}

	findings := make([]rawFinding, 0, len(issues))
	for _, ri := range issues {
		f := rawFinding{
			File: ri.Filename,
			Finding: Finding{
				Message:   ri.Message,
				Line:      ri.Location.Row,
				Column:    ri.Location.Column,
				EndLine:   ri.EndLocation.Row,
				EndColumn: ri.EndLocation.Column,
				Linter:    "ruff",
			},
		}
		if ri.Code != nil {
			f.Rule = *ri.Code
			f.Severity = mapRuffSeverity(*ri.Code)
		} else {
			f.Rule = "syntax-error"
			f.Severity = SeverityError
		}
		if ri.URL != nil {
			f.RuleURL = *ri.URL
		}
		if ri.Fix != nil {
			f.Fixable = ri.Fix.Applicability == "safe" || ri.Fix.Applicability == "always"
			f.Suggestion = ri.Fix.Message
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// mapRuffSeverity maps Ruff rule code families to a severity.
func mapRuffSeverity(code string) Severity {
	if code == "" {
		return SeverityWarning
	}
	switch strings.ToUpper(code[:1]) {
	case "E", "F", "S":
		return SeverityError
	case "I", "D":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// =============================================================================
// ESLINT PARSER
// =============================================================================

type eslintFile struct {
	FilePath string          `json:"filePath"`
	Messages []eslintMessage `json:"messages"`
	Source   string          `json:"source"`
}

type eslintMessage struct {
	RuleID      *string            `json:"ruleId"`
	Severity    int                `json:"severity"` // 1 = warning, 2 = error
	Fatal       bool               `json:"fatal"`
	Message     string             `json:"message"`
	Line        int                `json:"line"`
	Column      int                `json:"column"`
	EndLine     int                `json:"endLine"`
	EndColumn   int                `json:"endColumn"`
	Source      string             `json:"source"`
	Fix         *json.RawMessage   `json:"fix"`
	Suggestions []eslintSuggestion `json:"suggestions"`
}

type eslintSuggestion struct {
	Desc string `json:"desc"`
}

// parseESLintOutput parses the JSON array of file results from eslint.
//
// Description:
//
//	Fixable follows ESLint's own accounting: only messages with a fix count,
//	suggestions do not. Fatal parse errors have no rule id.
func parseESLintOutput(data []byte) ([]rawFinding, error) {
	var files []eslintFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("parsing eslint output: %w", err)
	}

	var findings []rawFinding
	for _, file := range files {
		for _, msg := range file.Messages {
			f := rawFinding{
				File: file.FilePath,
				Finding: Finding{
					Severity:  mapESLintSeverity(msg.Severity),
					Message:   msg.Message,
					Line:      msg.Line,
					Column:    msg.Column,
					EndLine:   msg.EndLine,
					EndColumn: msg.EndColumn,
					Source:    msg.Source,
					Fixable:   msg.Fix != nil,
					Linter:    "eslint",
				},
			}
			if msg.RuleID != nil {
				f.Rule = *msg.RuleID
			}
			if msg.Fatal {
				f.Severity = SeverityError
			}
			if len(msg.Suggestions) > 0 {
				f.Suggestion = msg.Suggestions[0].Desc
			}
			findings = append(findings, f)
		}
	}
	return findings, nil
}

// mapESLintSeverity maps ESLint numeric severity to our Severity.
func mapESLintSeverity(severity int) Severity {
	switch severity {
	case 2:
		return SeverityError
	case 1:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// =============================================================================
// PARSER REGISTRY
// =============================================================================

// parserFunc parses linter output into findings.
type parserFunc func(data []byte) ([]rawFinding, error)

// parsers maps linter commands to parser functions.
var parsers = map[string]parserFunc{
	"golangci-lint": parseGolangCIOutput,
	"ruff":          parseRuffOutput,
	"eslint":        parseESLintOutput,
}

// parserFor returns the parser for a linter command. Commands given as
// paths resolve by base name.
func parserFor(command string) parserFunc {
	if p, ok := parsers[command]; ok {
		return p
	}
	base := command
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".exe")
	return parsers[base]
}

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
	"testing"
)

func TestParseGolangCIOutput(t *testing.T) {
	t.Run("valid output with issues", func(t *testing.T) {
		output := []byte(`{
			"Issues": [
				{
					"FromLinter": "errcheck",
					"Text": "Error return value of 'file.Close' is not checked",
					"Severity": "warning",
					"SourceLines": ["\tfile.Close()"],
					"Pos": {"Filename": "main.go", "Line": 42, "Column": 2}
				},
				{
					"FromLinter": "staticcheck",
					"Text": "this value of 'err' is never used",
					"Pos": {"Filename": "main.go", "Line": 50, "Column": 5},
					"LineRange": {"From": 50, "To": 52}
				},
				{
					"FromLinter": "gofmt",
					"Text": "File is not gofmt-ed",
					"Severity": "error",
					"Pos": {"Filename": "pkg/util.go", "Line": 7, "Column": 1},
					"Replacement": {"NewLines": ["x := 1"]}
				}
			]
		}`)

		issues, err := parseGolangCIOutput(output)
		if err != nil {
			t.Fatalf("parseGolangCIOutput: %v", err)
		}
		if len(issues) != 3 {
			t.Fatalf("Expected 3 issues, got %d", len(issues))
		}

		if issues[0].Rule != "errcheck" {
			t.Errorf("Issue 0 Rule = %q, want errcheck", issues[0].Rule)
		}
		if issues[0].Source != "\tfile.Close()" {
			t.Errorf("Issue 0 Source = %q, want the first source line", issues[0].Source)
		}
		if issues[0].Fixable {
			t.Error("Issue 0 should not be fixable")
		}
		if issues[1].EndLine != 52 {
			t.Errorf("Issue 1 EndLine = %d, want 52", issues[1].EndLine)
		}
		if issues[1].Severity != SeverityWarning {
			t.Errorf("Issue 1 Severity = %v, want warning for unset severity", issues[1].Severity)
		}
		if !issues[2].Fixable || issues[2].Severity != SeverityError {
			t.Errorf("Issue 2 = %+v, want fixable error", issues[2])
		}
		if issues[2].File != "pkg/util.go" {
			t.Errorf("Issue 2 File = %q, want pkg/util.go", issues[2].File)
		}
	})

	t.Run("empty issues", func(t *testing.T) {
		issues, err := parseGolangCIOutput([]byte(`{"Issues": []}`))
		if err != nil {
			t.Fatalf("parseGolangCIOutput: %v", err)
		}
		if len(issues) != 0 {
			t.Errorf("Expected 0 issues, got %d", len(issues))
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := parseGolangCIOutput([]byte(`{not json`)); err == nil {
			t.Error("Expected error for invalid JSON")
		}
	})
}

func TestParseRuffOutput(t *testing.T) {
	output := []byte(`[
		{
			"code": "F401",
			"filename": "/repo/app.py",
			"message": "'os' imported but unused",
			"location": {"row": 1, "column": 8},
			"end_location": {"row": 1, "column": 10},
			"fix": {"applicability": "safe", "message": "Remove unused import"},
			"url": "https://docs.astral.sh/ruff/rules/unused-import"
		},
		{
			"code": "E711",
			"filename": "/repo/app.py",
			"message": "Comparison to None",
			"location": {"row": 4, "column": 6},
			"end_location": {"row": 4, "column": 10},
			"fix": {"applicability": "unsafe", "message": "Replace with is"},
			"url": null
		},
		{
			"code": null,
			"filename": "/repo/broken.py",
			"message": "SyntaxError: unexpected indent",
			"location": {"row": 3, "column": 1},
			"end_location": {"row": 3, "column": 2},
			"fix": null,
			"url": null
		}
	]`)

	issues, err := parseRuffOutput(output)
	if err != nil {
		t.Fatalf("parseRuffOutput: %v", err)
	}
	if len(issues) != 3 {
		t.Fatalf("Expected 3 issues, got %d", len(issues))
	}

	if issues[0].Rule != "F401" || issues[0].Severity != SeverityError {
		t.Errorf("Issue 0 = %s/%v, want F401/error", issues[0].Rule, issues[0].Severity)
	}
	if !issues[0].Fixable {
		t.Error("Issue 0 with a safe fix should be fixable")
	}
	if issues[0].RuleURL == "" {
		t.Error("Issue 0 RuleURL should be set")
	}
	if issues[1].Fixable {
		t.Error("Issue 1 with an unsafe fix should not be fixable")
	}
	if issues[1].Column != 6 || issues[1].EndColumn != 10 {
		t.Errorf("Issue 1 columns = %d-%d, want 6-10", issues[1].Column, issues[1].EndColumn)
	}
	if issues[2].Rule != "syntax-error" || issues[2].Severity != SeverityError {
		t.Errorf("Issue 2 = %s/%v, want syntax-error/error", issues[2].Rule, issues[2].Severity)
	}
}

func TestParseESLintOutput(t *testing.T) {
	output := []byte(`[
		{
			"filePath": "/repo/src/bar.js",
			"messages": [
				{"ruleId": "no-undef", "severity": 2, "message": "'x' is not defined.", "line": 10, "column": 3},
				{"ruleId": "semi", "severity": 1, "message": "Missing semicolon.", "line": 20, "column": 14,
				 "fix": {"range": [100, 100], "text": ";"}},
				{"ruleId": "no-unused-vars", "severity": 1, "message": "'y' is assigned a value but never used.",
				 "line": 21, "column": 7, "suggestions": [{"desc": "Remove 'y'."}]}
			]
		},
		{
			"filePath": "/repo/src/broken.js",
			"messages": [
				{"ruleId": null, "fatal": true, "severity": 2, "message": "Parsing error: Unexpected token", "line": 2, "column": 1}
			]
		},
		{"filePath": "/repo/src/clean.js", "messages": []}
	]`)

	issues, err := parseESLintOutput(output)
	if err != nil {
		t.Fatalf("parseESLintOutput: %v", err)
	}
	if len(issues) != 4 {
		t.Fatalf("Expected 4 issues, got %d", len(issues))
	}

	if issues[0].Severity != SeverityError || issues[0].File != "/repo/src/bar.js" {
		t.Errorf("Issue 0 = %+v", issues[0])
	}
	if !issues[1].Fixable || issues[1].Severity != SeverityWarning {
		t.Errorf("Issue 1 should be a fixable warning, got %+v", issues[1])
	}
	if issues[2].Fixable {
		t.Error("Suggestions alone should not make a finding fixable")
	}
	if issues[2].Suggestion != "Remove 'y'." {
		t.Errorf("Issue 2 Suggestion = %q", issues[2].Suggestion)
	}
	if issues[3].Rule != "" || issues[3].Severity != SeverityError {
		t.Errorf("Issue 3 = %+v, want fatal error without rule", issues[3])
	}
}

func TestParserFor(t *testing.T) {
	tests := []struct {
		command string
		found   bool
	}{
		{"golangci-lint", true},
		{"/usr/local/bin/ruff", true},
		{`C:\tools\eslint.exe`, true},
		{"node_modules/.bin/eslint", true},
		{"pylint", false},
	}
	for _, tt := range tests {
		if got := parserFor(tt.command) != nil; got != tt.found {
			t.Errorf("parserFor(%q) found = %v, want %v", tt.command, got, tt.found)
		}
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lint is the static-analysis engine behind deltalint.
//
// It runs established external linters (golangci-lint, ruff, eslint) over
// files on disk or over raw text with a logical path, and normalises their
// JSON output into per-file results the delta filter can reconcile with
// changed lines.
//
// # Supported Linters
//
//	| Language   | Linter         | Input                       |
//	|------------|----------------|-----------------------------|
//	| Go         | golangci-lint  | package directories, or a   |
//	|            |                | checkout for text           |
//	| Python     | Ruff           | files, or stdin for text    |
//	| TypeScript | ESLint         | files, or stdin for text    |
//	| JavaScript | ESLint         | files, or stdin for text    |
//
// Linters without stdin support lint text through a temp file whose path is
// remapped to the logical path. golangci-lint needs the whole module, so text
// for Go files is linted with LintCheckout from a copy of the repository
// state the text came from.
//
// # Severity Mapping
//
// Linter severities are mapped to error, warning or info. A RulePolicy then
// overrides them by rule prefix: Ignore drops the finding, BlockOn makes it an
// error, WarnOn a warning. Per-file counts are recomputed afterwards.
//
// # Usage
//
//	runner := lint.NewRunner(lint.WithWorkingDir(root))
//	runner.DetectAvailableLinters(ctx)
//
//	results, err := runner.LintFiles(ctx, []string{"/repo/main.go"})
//	result, err := runner.LintText(ctx, []byte("x = 1\n"), "/repo/app.py")
//
// # Thread Safety
//
// All exported types are safe for concurrent use.
package lint

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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesRule(t *testing.T) {
	tests := []struct {
		rule, pattern string
		want          bool
	}{
		{"errcheck", "errcheck", true},
		{"sa1000", "sa", true},
		{"errcheck/assert", "errcheck", true},
		{"sarif", "sa", false},
		{"errcheck", "err", false},
		{"e501", "e5", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesRule(tt.rule, tt.pattern), "%s vs %s", tt.rule, tt.pattern)
	}
}

func TestRulePolicy_Apply(t *testing.T) {
	policy := &RulePolicy{
		BlockOn: []string{"F"},
		WarnOn:  []string{"E"},
		Ignore:  []string{"E501"},
	}
	in := []Finding{
		{Rule: "F401", Severity: SeverityWarning, Line: 1},
		{Rule: "E711", Severity: SeverityError, Line: 2},
		{Rule: "E501", Severity: SeverityError, Line: 3},
		{Rule: "N802", Severity: SeverityInfo, Line: 4},
	}

	out := policy.Apply(in)
	require.Len(t, out, 3)
	assert.Equal(t, SeverityError, out[0].Severity)
	assert.Equal(t, SeverityWarning, out[1].Severity)
	assert.Equal(t, SeverityInfo, out[2].Severity, "unlisted rules keep the linter severity")

	assert.Equal(t, SeverityWarning, in[0].Severity, "input is not modified")
	assert.Len(t, in, 4)

	var nilPolicy *RulePolicy
	assert.Equal(t, in, nilPolicy.Apply(in))
}

func TestPolicyRegistry(t *testing.T) {
	r := NewPolicyRegistry()
	assert.Same(t, r.Get("typescript"), r.Get("javascript"))
	assert.Nil(t, r.Get("rust"))

	custom := &RulePolicy{Ignore: []string{"no-console"}}
	r.Register("javascript", custom)
	assert.Same(t, custom, r.Get("javascript"))
	assert.True(t, r.Get("javascript").ShouldIgnore("no-console"))
}

func TestConfigRegistry(t *testing.T) {
	r := NewConfigRegistry()

	assert.Equal(t, []string{"go", "javascript", "python", "typescript"}, r.Languages())
	assert.Equal(t, "typescript", r.LanguageFor("src/app.TSX"))
	assert.Equal(t, "javascript", r.LanguageFor("index.mjs"))
	assert.Equal(t, "", r.LanguageFor("Makefile"))

	glob := r.DefaultGlob()
	assert.Contains(t, glob, ".go")
	assert.Contains(t, glob, ".cjs")

	t.Run("get returns a clone", func(t *testing.T) {
		cfg := r.Get("go")
		cfg.Args[0] = "mutated"
		assert.Equal(t, "run", r.Get("go").Args[0])
	})

	t.Run("register rebuilds extensions", func(t *testing.T) {
		r := NewConfigRegistry()
		js := r.Get("javascript")
		js.Extensions = []string{".js"}
		js.Timeout = time.Second
		r.Register(js)
		assert.Equal(t, "", r.LanguageFor("a.cjs"))
		assert.Equal(t, "javascript", r.LanguageFor("a.js"))
		assert.Equal(t, time.Second, r.Get("javascript").Timeout)
	})
}

func TestLinterConfig_EffectiveArgs(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantArg string
	}{
		{"unknown version", "", "--output.json.path=stdout"},
		{"current", "v2.1.6", "--output.json.path=stdout"},
		{"legacy", "v1.64.8", "--out-format=json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGoConfig.Clone()
			cfg.Version = tt.version
			args, _ := cfg.EffectiveArgs()
			assert.Contains(t, args, tt.wantArg)
		})
	}

	t.Run("legacy stdin args", func(t *testing.T) {
		cfg := DefaultPythonConfig.Clone()
		cfg.Version = "v0.0.280"
		_, stdin := cfg.EffectiveArgs()
		assert.Contains(t, stdin, "--format=json")
	})
}

func TestNewFileResult(t *testing.T) {
	res := NewFileResult("/a.go", []Finding{
		{Severity: SeverityError, Fixable: true},
		{Severity: SeverityError},
		{Severity: SeverityWarning, Fixable: true},
		{Severity: SeverityInfo, Fixable: true},
	})
	assert.Equal(t, 2, res.ErrorCount)
	assert.Equal(t, 1, res.FixableErrorCount)
	assert.Equal(t, 1, res.WarningCount)
	assert.Equal(t, 1, res.FixableWarningCount)
	assert.True(t, res.HasProblems())

	empty := NewFileResult("/b.go", nil)
	assert.NotNil(t, empty.Findings)
	assert.False(t, empty.HasProblems())
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, SeverityError, SeverityFromString("fatal"))
	assert.Equal(t, SeverityInfo, SeverityFromString("hint"))
	assert.Equal(t, SeverityWarning, SeverityFromString("???"))
	assert.Equal(t, "warning", SeverityWarning.String())

	f := Finding{Line: 3}
	assert.Equal(t, "3", f.Location())
	f.Column = 7
	assert.Equal(t, "3:7", f.Location())
}

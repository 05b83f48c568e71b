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
	"strings"
	"sync"
)

// =============================================================================
// RULE POLICY
// =============================================================================

// RulePolicy overrides linter severities by rule.
//
// Description:
//
//	Rules are matched case-insensitively by exact name, by hierarchy
//	("errcheck" matches "errcheck/assert") or by code prefix ("SA" matches
//	"SA1000"). Ignore wins over BlockOn, which wins over WarnOn. Rules in no
//	list keep the severity the linter reported.
//
// Thread Safety: Treat as immutable after creation.
type RulePolicy struct {
	// BlockOn are rules reported as errors.
	BlockOn []string `yaml:"block_on" json:"block_on"`

	// WarnOn are rules reported as warnings.
	WarnOn []string `yaml:"warn_on" json:"warn_on"`

	// Ignore are rules dropped entirely.
	Ignore []string `yaml:"ignore" json:"ignore"`
}

// ShouldBlock returns true if the rule matches a BlockOn pattern.
func (p *RulePolicy) ShouldBlock(rule string) bool {
	return matchesAny(rule, p.BlockOn)
}

// ShouldWarn returns true if the rule matches a WarnOn pattern.
func (p *RulePolicy) ShouldWarn(rule string) bool {
	return matchesAny(rule, p.WarnOn)
}

// ShouldIgnore returns true if the rule matches an Ignore pattern.
func (p *RulePolicy) ShouldIgnore(rule string) bool {
	return matchesAny(rule, p.Ignore)
}

// Apply returns findings with policy severities. Ignored findings are
// dropped. The input slice is not modified.
func (p *RulePolicy) Apply(findings []Finding) []Finding {
	if p == nil {
		return findings
	}

	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		switch {
		case p.ShouldIgnore(f.Rule):
			continue
		case p.ShouldBlock(f.Rule):
			f.Severity = SeverityError
		case p.ShouldWarn(f.Rule):
			f.Severity = SeverityWarning
		}
		out = append(out, f)
	}
	return out
}

func matchesAny(rule string, patterns []string) bool {
	if rule == "" {
		return false
	}
	rule = strings.ToLower(rule)
	for _, pattern := range patterns {
		if matchesRule(rule, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// matchesRule checks if a rule matches a pattern.
// Examples:
//   - "errcheck" matches "errcheck"
//   - "SA1000" matches "SA" (prefix followed by a digit)
//   - "errcheck/assert" matches "errcheck" (hierarchy)
func matchesRule(rule, pattern string) bool {
	if rule == pattern {
		return true
	}
	if strings.HasPrefix(rule, pattern+"/") {
		return true
	}
	if strings.HasPrefix(rule, pattern) && len(rule) > len(pattern) {
		next := rule[len(pattern)]
		if next >= '0' && next <= '9' {
			return true
		}
	}
	return false
}

// =============================================================================
// DEFAULT POLICIES
// =============================================================================

// DefaultGoPolicy blocks on correctness and security findings and drops
// formatting and complexity metrics.
var DefaultGoPolicy = RulePolicy{
	BlockOn: []string{
		"errcheck",
		"typecheck",
		"staticcheck",
		"SA",
		"gosec",
		"G",
		"nilness",
		"nilerr",
	},
	WarnOn: []string{
		"ineffassign",
		"unused",
		"govet",
		"shadow",
		"prealloc",
		"unconvert",
		"unparam",
	},
	Ignore: []string{
		"lll",
		"gofmt",
		"goimports",
		"whitespace",
		"wsl",
		"gocyclo",
		"gocognit",
		"funlen",
	},
}

// DefaultPythonPolicy maps Ruff code families.
//
// Description:
//
//	F (Pyflakes) and S (bandit) block. E and W (pycodestyle), C90 (mccabe)
//	and I (isort) warn. Line length, whitespace and blank-line rules are
//	ignored because reformatting touches unrelated lines.
var DefaultPythonPolicy = RulePolicy{
	BlockOn: []string{"F", "S", "PGH"},
	WarnOn:  []string{"E", "W", "C90", "I"},
	Ignore:  []string{"E501", "W291", "W293", "E302", "E303", "D"},
}

// DefaultTSPolicy applies to both TypeScript and JavaScript. ESLint
// severities are kept for rules not listed.
var DefaultTSPolicy = RulePolicy{
	BlockOn: []string{
		"no-undef",
		"no-eval",
		"no-implied-eval",
		"@typescript-eslint/no-unsafe",
	},
	WarnOn: []string{
		"eqeqeq",
		"no-console",
		"prefer-const",
		"complexity",
	},
}

// =============================================================================
// POLICY REGISTRY
// =============================================================================

// PolicyRegistry manages policies for different languages.
//
// Thread Safety: Safe for concurrent use after initialization.
type PolicyRegistry struct {
	mu       sync.RWMutex
	policies map[string]*RulePolicy
}

// NewPolicyRegistry creates a new registry with default policies.
func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{
		policies: map[string]*RulePolicy{
			"go":         &DefaultGoPolicy,
			"python":     &DefaultPythonPolicy,
			"typescript": &DefaultTSPolicy,
			"javascript": &DefaultTSPolicy,
		},
	}
}

// Get returns the policy for a language, or nil.
//
// Thread Safety: Safe for concurrent use.
func (r *PolicyRegistry) Get(language string) *RulePolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policies[language]
}

// Register adds or replaces the policy for a language.
//
// Thread Safety: Safe for concurrent use.
func (r *PolicyRegistry) Register(language string, policy *RulePolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[language] = policy
}

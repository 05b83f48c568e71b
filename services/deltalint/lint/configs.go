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
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"
)

// PathPlaceholder is replaced by the logical file path in StdinArgs.
const PathPlaceholder = "{path}"

// Target is what a linter is invoked on.
type Target string

const (
	// TargetFiles passes file paths.
	TargetFiles Target = "files"

	// TargetPackages passes package directories; findings for files that
	// were not requested are discarded.
	TargetPackages Target = "packages"
)

// =============================================================================
// LINTER CONFIG
// =============================================================================

// VersionArgs replaces a linter's arguments for versions older than Below.
type VersionArgs struct {
	// Below is a semantic version ("v2.0.0"). The entry applies when the
	// detected version sorts before it.
	Below string

	// Args replaces LinterConfig.Args.
	Args []string

	// StdinArgs replaces LinterConfig.StdinArgs when non-nil.
	StdinArgs []string
}

// LinterConfig configures how to run a specific linter.
//
// Thread Safety: Treat as immutable after creation.
type LinterConfig struct {
	// Language is the language this linter handles (e.g., "go", "python").
	Language string

	// Command is the linter executable name (e.g., "golangci-lint").
	Command string

	// Args are the arguments placed before the file list. They must select
	// JSON output and a zero exit code when findings exist.
	Args []string

	// StdinArgs, when non-empty, lint text read from stdin. PathPlaceholder
	// is replaced by the logical path.
	StdinArgs []string

	// Extensions are file extensions this linter handles (e.g., ".go").
	Extensions []string

	// Timeout is the maximum time to wait for one invocation.
	Timeout time.Duration

	// Target selects file or package invocation.
	Target Target

	// Legacy lists argument sets for older linter releases, ordered by
	// ascending Below.
	Legacy []VersionArgs

	// Available indicates whether the linter binary was found in PATH.
	// Set by DetectAvailableLinters.
	Available bool

	// Version is the detected semantic version, "" when unknown.
	Version string
}

// Clone returns a deep copy of the config.
func (c *LinterConfig) Clone() *LinterConfig {
	clone := *c
	clone.Args = slices.Clone(c.Args)
	clone.StdinArgs = slices.Clone(c.StdinArgs)
	clone.Extensions = slices.Clone(c.Extensions)
	clone.Legacy = make([]VersionArgs, len(c.Legacy))
	for i, l := range c.Legacy {
		clone.Legacy[i] = VersionArgs{
			Below:     l.Below,
			Args:      slices.Clone(l.Args),
			StdinArgs: slices.Clone(l.StdinArgs),
		}
	}
	return &clone
}

// EffectiveArgs returns the file and stdin arguments for the detected
// version. Unknown versions use the current arguments.
func (c *LinterConfig) EffectiveArgs() (args, stdinArgs []string) {
	args, stdinArgs = c.Args, c.StdinArgs
	if !semver.IsValid(c.Version) {
		return args, stdinArgs
	}
	for _, l := range c.Legacy {
		if semver.Compare(c.Version, l.Below) < 0 {
			args = l.Args
			if l.StdinArgs != nil {
				stdinArgs = l.StdinArgs
			}
			return args, stdinArgs
		}
	}
	return args, stdinArgs
}

// =============================================================================
// DEFAULT LINTER CONFIGS
// =============================================================================

// DefaultGoConfig is the configuration for golangci-lint.
//
// Description:
//
//	golangci-lint needs whole packages to type-check, so it runs per
//	package directory. Releases before v2 use the --out-format flag.
var DefaultGoConfig = LinterConfig{
	Language: "go",
	Command:  "golangci-lint",
	Args: []string{
		"run",
		"--output.json.path=stdout",
		"--show-stats=false",
		"--issues-exit-code=0",
	},
	Extensions: []string{".go"},
	Timeout:    2 * time.Minute,
	Target:     TargetPackages,
	Legacy: []VersionArgs{{
		Below: "v2.0.0",
		Args: []string{
			"run",
			"--out-format=json",
			"--issues-exit-code=0",
		},
	}},
}

// DefaultPythonConfig is the configuration for Ruff.
var DefaultPythonConfig = LinterConfig{
	Language: "python",
	Command:  "ruff",
	Args: []string{
		"check",
		"--output-format=json",
		"--exit-zero",
	},
	StdinArgs: []string{
		"check",
		"--output-format=json",
		"--exit-zero",
		"--stdin-filename", PathPlaceholder,
		"-",
	},
	Extensions: []string{".py", ".pyi"},
	Timeout:    30 * time.Second,
	Target:     TargetFiles,
	Legacy: []VersionArgs{{
		Below: "v0.0.291",
		Args: []string{
			"check",
			"--format=json",
			"--exit-zero",
		},
		StdinArgs: []string{
			"check",
			"--format=json",
			"--exit-zero",
			"--stdin-filename", PathPlaceholder,
			"-",
		},
	}},
}

// DefaultTSConfig is the configuration for ESLint on TypeScript.
//
// Description:
//
//	ESLint requires a project config (eslint.config.js or .eslintrc) to
//	know about TypeScript.
var DefaultTSConfig = LinterConfig{
	Language: "typescript",
	Command:  "eslint",
	Args: []string{
		"--format=json",
		"--no-error-on-unmatched-pattern",
	},
	StdinArgs: []string{
		"--format=json",
		"--stdin",
		"--stdin-filename", PathPlaceholder,
	},
	Extensions: []string{".ts", ".tsx", ".mts", ".cts"},
	Timeout:    60 * time.Second,
	Target:     TargetFiles,
}

// DefaultJSConfig is the configuration for ESLint on JavaScript.
var DefaultJSConfig = LinterConfig{
	Language: "javascript",
	Command:  "eslint",
	Args: []string{
		"--format=json",
		"--no-error-on-unmatched-pattern",
	},
	StdinArgs: []string{
		"--format=json",
		"--stdin",
		"--stdin-filename", PathPlaceholder,
	},
	Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
	Timeout:    60 * time.Second,
	Target:     TargetFiles,
}

// =============================================================================
// CONFIG REGISTRY
// =============================================================================

// ConfigRegistry manages linter configurations for different languages.
//
// Thread Safety: Safe for concurrent use after initialization.
type ConfigRegistry struct {
	mu      sync.RWMutex
	configs map[string]*LinterConfig

	// extensionMap maps file extensions to languages for quick lookup.
	extensionMap map[string]string
}

// NewConfigRegistry creates a new registry with default configurations.
func NewConfigRegistry() *ConfigRegistry {
	r := &ConfigRegistry{
		configs:      make(map[string]*LinterConfig),
		extensionMap: make(map[string]string),
	}
	r.Register(&DefaultGoConfig)
	r.Register(&DefaultPythonConfig)
	r.Register(&DefaultTSConfig)
	r.Register(&DefaultJSConfig)
	return r
}

// Register adds or replaces a linter configuration.
//
// Description:
//
//	Stores a clone of config and rebuilds the extension map so extensions
//	dropped from a replaced config no longer resolve to its language.
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) Register(config *LinterConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[config.Language] = config.Clone()

	r.extensionMap = make(map[string]string)
	langs := make([]string, 0, len(r.configs))
	for lang := range r.configs {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		for _, ext := range r.configs[lang].Extensions {
			r.extensionMap[strings.ToLower(ext)] = lang
		}
	}
}

// Get returns a clone of the configuration for a language, or nil.
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) Get(language string) *LinterConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, ok := r.configs[language]
	if !ok {
		return nil
	}
	return config.Clone()
}

// LanguageFor returns the language handling filePath, or "".
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) LanguageFor(filePath string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.extensionMap[strings.ToLower(filepath.Ext(filePath))]
}

// Languages returns all registered language names, sorted.
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]string, 0, len(r.configs))
	for lang := range r.configs {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Extensions returns every handled extension, sorted.
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extensionMap))
	for ext := range r.extensionMap {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DefaultGlob returns a doublestar glob matching every handled extension,
// e.g. "**/*{.go,.py}".
func (r *ConfigRegistry) DefaultGlob() string {
	return "**/*{" + strings.Join(r.Extensions(), ",") + "}"
}

// setDetected records availability and version for a language.
func (r *ConfigRegistry) setDetected(language string, available bool, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if config, ok := r.configs[language]; ok {
		config.Available = available
		config.Version = version
	}
}

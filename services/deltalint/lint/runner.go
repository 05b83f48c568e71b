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
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// versionProbeTimeout bounds each "--version" call during detection.
const versionProbeTimeout = 10 * time.Second

var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+`)

// execFunc runs one process and returns its captured output.
type execFunc func(ctx context.Context, dir string, stdin []byte, name string, args ...string) (stdout, stderr []byte, err error)

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes external linters and processes their output. It
// implements Engine.
//
// Description:
//
//	Files are grouped by language and each language runs as one batch
//	invocation; batches run in parallel. Linter output is parsed, the
//	language's rule policy is applied and per-file counts are computed from
//	the adjusted findings.
//
// Thread Safety: Safe for concurrent use after DetectAvailableLinters.
type Runner struct {
	configs        *ConfigRegistry
	policies       *PolicyRegistry
	workingDir     string
	requireLinters bool
	concurrency    int
	formatOpts     FormatOptions
	logger         *slog.Logger

	run      execFunc
	lookPath func(string) (string, error)
}

// Option configures the Runner.
type Option func(*Runner)

// WithWorkingDir sets the working directory for linter execution.
func WithWorkingDir(dir string) Option {
	return func(r *Runner) {
		r.workingDir = dir
	}
}

// WithConfigs sets a custom config registry.
func WithConfigs(configs *ConfigRegistry) Option {
	return func(r *Runner) {
		r.configs = configs
	}
}

// WithPolicies sets a custom policy registry.
func WithPolicies(policies *PolicyRegistry) Option {
	return func(r *Runner) {
		r.policies = policies
	}
}

// WithRequireLinters makes a missing linter a LinterError instead of a
// logged warning.
func WithRequireLinters(require bool) Option {
	return func(r *Runner) {
		r.requireLinters = require
	}
}

// WithConcurrency bounds the number of linter processes run at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithFormatOptions sets the options handed to formatters.
func WithFormatOptions(opts FormatOptions) Option {
	return func(r *Runner) {
		r.formatOpts = opts
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner with the default configurations and
// policies. Call DetectAvailableLinters before linting.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		configs:     NewConfigRegistry(),
		policies:    NewPolicyRegistry(),
		concurrency: runtime.GOMAXPROCS(0),
		logger:      slog.Default(),
		run:         runCommand,
		lookPath:    exec.LookPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Configs returns the config registry for customization.
func (r *Runner) Configs() *ConfigRegistry {
	return r.configs
}

// Policies returns the policy registry for customization.
func (r *Runner) Policies() *PolicyRegistry {
	return r.policies
}

// DetectAvailableLinters checks which linters are installed.
//
// Description:
//
//	Probes PATH for each configured linter and asks it for its version,
//	which selects version-specific arguments. A linter whose version cannot
//	be read is still available and uses its current arguments.
//
// Inputs:
//
//	ctx - Context for the version probes
//
// Outputs:
//
//	map[string]bool - Language to availability
//
// Thread Safety: Safe for concurrent use.
func (r *Runner) DetectAvailableLinters(ctx context.Context) map[string]bool {
	result := make(map[string]bool)
	versions := make(map[string]string)

	for _, lang := range r.configs.Languages() {
		config := r.configs.Get(lang)
		if config == nil {
			continue
		}

		if _, err := r.lookPath(config.Command); err != nil {
			r.configs.setDetected(lang, false, "")
			result[lang] = false
			r.logger.Warn("Linter not installed",
				slog.String("language", lang),
				slog.String("command", config.Command),
			)
			continue
		}

		version, probed := versions[config.Command]
		if !probed {
			version = r.probeVersion(ctx, config.Command)
			versions[config.Command] = version
		}
		r.configs.setDetected(lang, true, version)
		result[lang] = true
		r.logger.Debug("Linter available",
			slog.String("language", lang),
			slog.String("command", config.Command),
			slog.String("version", version),
		)
	}
	return result
}

func (r *Runner) probeVersion(ctx context.Context, command string) string {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	stdout, _, err := r.run(ctx, r.workingDir, nil, command, "--version")
	if err != nil {
		return ""
	}
	match := versionPattern.Find(stdout)
	if match == nil {
		return ""
	}
	return "v" + string(match)
}

// IsAvailable returns whether a linter was detected for a language.
func (r *Runner) IsAvailable(language string) bool {
	config := r.configs.Get(language)
	return config != nil && config.Available
}

// Handles reports whether some registered linter covers the file.
func (r *Runner) Handles(path string) bool {
	return r.configs.LanguageFor(path) != ""
}

// =============================================================================
// LINT FILES
// =============================================================================

// LintFiles lints files from disk.
//
// Description:
//
//	Results are returned for every path whose linter ran, in input order.
//	Paths with no registered linter, or whose linter is missing and not
//	required, produce no result. Each result's FilePath is the path as
//	given.
//
// Inputs:
//
//	ctx - Context for cancellation
//	paths - Absolute paths, or paths relative to the working directory
//
// Outputs:
//
//	[]FileResult - One result per handled path
//	error - A LinterError when a linter fails or a required one is missing
//
// Thread Safety: Safe for concurrent use.
func (r *Runner) LintFiles(ctx context.Context, paths []string) ([]FileResult, error) {
	groups := make(map[string][]string)
	var langs []string
	for _, p := range paths {
		lang := r.configs.LanguageFor(p)
		if lang == "" {
			continue
		}
		if _, ok := groups[lang]; !ok {
			langs = append(langs, lang)
		}
		groups[lang] = append(groups[lang], p)
	}

	byPath := make([]map[string]FileResult, len(langs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, lang := range langs {
		g.Go(func() error {
			results, err := r.lintBatch(gctx, lang, groups[lang])
			if err != nil {
				return err
			}
			byPath[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]FileResult, 0, len(paths))
	for _, p := range paths {
		for _, m := range byPath {
			if res, ok := m[p]; ok {
				out = append(out, res)
				break
			}
		}
	}
	return out, nil
}

// lintBatch runs one language's linter over files and returns results
// keyed by the given path.
func (r *Runner) lintBatch(ctx context.Context, lang string, files []string) (map[string]FileResult, error) {
	ctx, span := startLintSpan(ctx, "lint.Runner.LintFiles", lang, len(files))
	defer span.End()
	start := time.Now()

	config := r.configs.Get(lang)
	if config == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	if !config.Available {
		setLintSpanResult(span, 0, 0, false)
		return nil, r.unavailable(config)
	}

	// given path by cleaned absolute path
	requested := make(map[string]string, len(files))
	for _, f := range files {
		requested[r.abs(f)] = f
	}

	args, _ := config.EffectiveArgs()
	args = slices.Clone(args)
	if config.Target == TargetPackages {
		args = append(args, r.packageArgs(files)...)
	} else {
		for _, f := range files {
			args = append(args, r.abs(f))
		}
	}

	output, err := r.executeLinter(ctx, config, nil, args)
	if err != nil {
		recordLintMetrics(ctx, lang, time.Since(start), len(files), 0, false)
		return nil, err
	}
	raw, err := r.parseOutput(config, output)
	if err != nil {
		recordLintMetrics(ctx, lang, time.Since(start), len(files), 0, false)
		return nil, err
	}

	grouped := make(map[string][]Finding, len(files))
	for _, rf := range raw {
		if rf.File == "" {
			continue
		}
		given, ok := requested[r.abs(rf.File)]
		if !ok {
			continue
		}
		grouped[given] = append(grouped[given], rf.Finding)
	}

	policy := r.policies.Get(lang)
	results := make(map[string]FileResult, len(files))
	errCount, warnCount := 0, 0
	for _, given := range requested {
		findings := policy.Apply(grouped[given])
		attachSourceFromFile(findings, r.abs(given))
		sortFindings(findings)
		res := NewFileResult(given, findings)
		errCount += res.ErrorCount
		warnCount += res.WarningCount
		results[given] = res
	}

	setLintSpanResult(span, errCount, warnCount, true)
	recordLintMetrics(ctx, lang, time.Since(start), len(files), len(raw), true)
	r.logger.Debug("Lint batch completed",
		slog.String("language", lang),
		slog.String("linter", config.Command),
		slog.Int("files", len(files)),
		slog.Int("findings", len(raw)),
		slog.Duration("duration", time.Since(start)),
	)
	return results, nil
}

// packageArgs returns the unique package directories of files, relative
// to the working directory where possible.
func (r *Runner) packageArgs(files []string) []string {
	base := r.abs(".")
	seen := make(map[string]bool)
	var dirs []string
	for _, f := range files {
		dir := filepath.Dir(r.abs(f))
		if seen[dir] {
			continue
		}
		seen[dir] = true

		arg := dir
		if rel, err := filepath.Rel(base, dir); err == nil && !strings.HasPrefix(rel, "..") {
			if rel == "." {
				arg = "."
			} else {
				arg = "." + string(filepath.Separator) + rel
			}
		}
		dirs = append(dirs, arg)
	}
	slices.Sort(dirs)
	return dirs
}

// =============================================================================
// LINT TEXT
// =============================================================================

// LintText lints text as if it were the file at path.
//
// Description:
//
//	Text goes to the linter on stdin when it supports a stdin filename.
//	Otherwise it is written to a temporary directory under the file's base
//	name and every finding is reported against path. A path with no
//	registered linter, or whose linter is missing and not required, yields
//	an empty result. Package linters cannot type-check a lone file and
//	return ErrNeedsCheckout; see LintCheckout.
//
// Inputs:
//
//	ctx - Context for cancellation
//	text - File content
//	path - Logical path used for language detection and reporting
//
// Outputs:
//
//	FileResult - The result for path
//	error - A LinterError on linter failure
//
// Thread Safety: Safe for concurrent use.
func (r *Runner) LintText(ctx context.Context, text []byte, path string) (FileResult, error) {
	lang := r.configs.LanguageFor(path)
	if lang == "" {
		return NewFileResult(path, nil), nil
	}
	if config := r.configs.Get(lang); config.Available && config.Target == TargetPackages {
		return FileResult{}, NewLinterError(config.Command, lang, ErrNeedsCheckout).WithPath(path)
	}

	ctx, span := startLintSpan(ctx, "lint.Runner.LintText", lang, 1)
	defer span.End()
	start := time.Now()

	config := r.configs.Get(lang)
	if !config.Available {
		setLintSpanResult(span, 0, 0, false)
		if err := r.unavailable(config); err != nil {
			return FileResult{}, err
		}
		return NewFileResult(path, nil), nil
	}

	args, stdinArgs := config.EffectiveArgs()
	var (
		output []byte
		err    error
	)
	if len(stdinArgs) > 0 {
		output, err = r.executeLinter(ctx, config, text, expandPlaceholder(stdinArgs, r.abs(path)))
	} else {
		output, err = r.lintTempFile(ctx, config, args, text, path)
	}
	if err != nil {
		recordLintMetrics(ctx, lang, time.Since(start), 1, 0, false)
		return FileResult{}, withPath(err, path)
	}

	raw, err := r.parseOutput(config, output)
	if err != nil {
		recordLintMetrics(ctx, lang, time.Since(start), 1, 0, false)
		return FileResult{}, withPath(err, path)
	}

	findings := make([]Finding, 0, len(raw))
	for _, rf := range raw {
		findings = append(findings, rf.Finding)
	}
	findings = r.policies.Get(lang).Apply(findings)
	attachSource(findings, splitLines(text))
	sortFindings(findings)

	res := NewFileResult(path, findings)
	setLintSpanResult(span, res.ErrorCount, res.WarningCount, true)
	recordLintMetrics(ctx, lang, time.Since(start), 1, len(raw), true)
	return res, nil
}

// withPath names the linted file on a LinterError.
func withPath(err error, path string) error {
	var le *LinterError
	if errors.As(err, &le) {
		return le.WithPath(path)
	}
	return err
}

func (r *Runner) lintTempFile(ctx context.Context, config *LinterConfig, args []string, text []byte, path string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "deltalint-*")
	if err != nil {
		return nil, NewLinterError(config.Command, config.Language, fmt.Errorf("%w: %v", ErrLinterFailed, err))
	}
	defer os.RemoveAll(dir)

	tmp := filepath.Join(dir, filepath.Base(path))
	if err := os.WriteFile(tmp, text, 0o600); err != nil {
		return nil, NewLinterError(config.Command, config.Language, fmt.Errorf("%w: %v", ErrLinterFailed, err))
	}

	args = append(slices.Clone(args), tmp)
	return r.executeLinter(ctx, config, nil, args)
}

// =============================================================================
// LINT CHECKOUT
// =============================================================================

// NeedsCheckout reports whether path's linter runs on packages. Such files
// are linted with LintCheckout when their content is not on disk.
func (r *Runner) NeedsCheckout(path string) bool {
	lang := r.configs.LanguageFor(path)
	if lang == "" {
		return false
	}
	config := r.configs.Get(lang)
	return config.Available && config.Target == TargetPackages
}

// LintCheckout lints files from a copy of a repository state.
//
// Description:
//
//	The batch runs with dir as working directory, so package linters see
//	sibling files, go.mod and the rest of the module exactly as they were
//	in that state. Results and their sources come from the copy and are
//	reported against each file's logical path.
//
// Inputs:
//
//	ctx - Context for cancellation
//	dir - Root of the copy
//	files - Files to lint, by path inside the copy and logical path
//
// Outputs:
//
//	[]FileResult - One result per handled file, keyed by logical path
//	error - ErrOutsideCheckout for a path escaping dir, or a LinterError
//
// Thread Safety: Safe for concurrent use.
func (r *Runner) LintCheckout(ctx context.Context, dir string, files []CheckoutFile) ([]FileResult, error) {
	local := make([]string, len(files))
	logical := make(map[string]string, len(files))
	for i, f := range files {
		rel := filepath.FromSlash(f.RelPath)
		if !filepath.IsLocal(rel) {
			return nil, fmt.Errorf("%w: %s", ErrOutsideCheckout, f.RelPath)
		}
		local[i] = filepath.Join(dir, rel)
		logical[local[i]] = f.Path
	}

	sub := *r
	sub.workingDir = dir

	results, err := sub.LintFiles(ctx, local)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].FilePath = logical[results[i].FilePath]
	}
	return results, nil
}

// =============================================================================
// EXECUTION
// =============================================================================

// executeLinter runs the linter with its timeout and returns stdout.
func (r *Runner) executeLinter(ctx context.Context, config *LinterConfig, stdin []byte, args []string) ([]byte, error) {
	cmdCtx := ctx
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	stdout, stderr, err := r.run(cmdCtx, r.workingDir, stdin, config.Command, args...)

	if errors.Is(err, exec.ErrNotFound) {
		return nil, NewLinterError(config.Command, config.Language, ErrLinterNotInstalled)
	}
	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, NewLinterError(config.Command, config.Language, ErrLinterTimeout).
			WithOutput(string(stderr))
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Some linters exit non-zero when they find issues. Only a run with
	// no stdout is a failure.
	if err != nil && len(bytes.TrimSpace(stdout)) == 0 {
		return nil, NewLinterError(config.Command, config.Language, fmt.Errorf("%w: %v", ErrLinterFailed, err)).
			WithOutput(strings.TrimSpace(string(stderr)))
	}
	return stdout, nil
}

func (r *Runner) parseOutput(config *LinterConfig, output []byte) ([]rawFinding, error) {
	if len(bytes.TrimSpace(output)) == 0 {
		return nil, nil
	}
	parser := parserFor(config.Command)
	if parser == nil {
		return nil, NewLinterError(config.Command, config.Language,
			fmt.Errorf("%w: no parser for %s", ErrParseOutput, config.Command))
	}
	raw, err := parser(output)
	if err != nil {
		return nil, NewLinterError(config.Command, config.Language, fmt.Errorf("%w: %v", ErrParseOutput, err))
	}
	return raw, nil
}

// unavailable returns the error for a missing linter, or nil after
// logging when linters are optional.
func (r *Runner) unavailable(config *LinterConfig) error {
	if r.requireLinters {
		return NewLinterError(config.Command, config.Language, ErrLinterNotInstalled)
	}
	r.logger.Warn("Skipping files, linter not installed",
		slog.String("language", config.Language),
		slog.String("command", config.Command),
	)
	return nil
}

func (r *Runner) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	if r.workingDir != "" {
		return filepath.Join(r.workingDir, p)
	}
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return filepath.Clean(p)
}

func runCommand(ctx context.Context, dir string, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// =============================================================================
// HELPERS
// =============================================================================

func expandPlaceholder(args []string, path string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, PathPlaceholder, path)
	}
	return out
}

func splitLines(text []byte) []string {
	lines := strings.Split(string(text), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// attachSource fills empty Source fields from lines.
func attachSource(findings []Finding, lines []string) {
	for i := range findings {
		f := &findings[i]
		if f.Source == "" && f.Line >= 1 && f.Line <= len(lines) {
			f.Source = lines[f.Line-1]
		}
	}
}

// attachSourceFromFile reads the file only when a finding lacks Source.
func attachSourceFromFile(findings []Finding, path string) {
	missing := slices.ContainsFunc(findings, func(f Finding) bool { return f.Source == "" })
	if !missing {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	attachSource(findings, splitLines(data))
}

func sortFindings(findings []Finding) {
	slices.SortStableFunc(findings, func(a, b Finding) int {
		if a.Line != b.Line {
			return a.Line - b.Line
		}
		return a.Column - b.Column
	})
}

var _ CheckoutEngine = (*Runner)(nil)

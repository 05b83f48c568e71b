// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package deltalint narrows linter output to the lines a change added.
//
// # Description
//
// A Linter holds the process-scoped collaborators of one invocation: the
// version-control backend, the analysis engine and the repository root.
// A run flows through the subpackages in a fixed order:
//
//	revision -> changes -> delta -> content -> lint.Engine -> filter
//
// Every phase fails the run on the first error. A change set that leaves
// nothing to analyse short-circuits before the engine is invoked.
//
// # Thread Safety
//
// A Linter is safe for concurrent use once constructed. Nothing it holds
// is mutated after New returns.
package deltalint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/deltalint/services/deltalint/changes"
	"github.com/AleutianAI/deltalint/services/deltalint/content"
	"github.com/AleutianAI/deltalint/services/deltalint/delta"
	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/filter"
	"github.com/AleutianAI/deltalint/services/deltalint/lint"
	"github.com/AleutianAI/deltalint/services/deltalint/revision"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Linter.
type Options struct {
	// Glob restricts the change set to matching repository-relative paths.
	// Empty matches everything.
	Glob string

	// Pathspecs further restrict the change set to these paths or
	// directories.
	Pathspecs []string

	// FullFile selects every line of modified files.
	FullFile bool

	// IncludeUntracked lists untracked files in working-tree diffs.
	IncludeUntracked bool

	// Concurrency bounds per-file fan-out. 0 means GOMAXPROCS.
	Concurrency int

	// RunID correlates logs and spans of one invocation.
	RunID string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// =============================================================================
// LINTER
// =============================================================================

// Linter is the pipeline context of one invocation.
//
// Thread Safety: Safe for concurrent use.
type Linter struct {
	backend vcs.Backend
	engine  lint.Engine
	root    string

	revisions *revision.Resolver
	extractor *changes.Extractor
	builder   *delta.Builder
	contents  *content.Resolver
	paths     *changes.Filter

	fullFile    bool
	concurrency int
	runID       string
	logger      *slog.Logger
}

// Result is the outcome of one run.
type Result struct {
	// Endpoints is nil for patch runs.
	Endpoints *revision.Endpoints

	// Delta is nil when the change set left nothing to analyse.
	Delta *delta.Delta

	// Strategy is how the analysed text was obtained.
	Strategy content.Strategy

	// Report is nil when Delta is nil.
	Report *filter.Report
}

// Empty reports whether the run had nothing to analyse.
func (r *Result) Empty() bool {
	return r == nil || r.Delta == nil
}

// New creates a Linter.
//
// Description:
//
//	The repository root is taken from the backend. The glob and pathspecs
//	are compiled once here so a bad pattern fails before any repository
//	access.
//
// Inputs:
//
//	backend - Version-control backend, shared read-only
//	engine - Analysis engine, shared read-only
//	opts - Pipeline options
//
// Outputs:
//
//	*Linter - Ready to run
//	error - errs.ErrConfiguration for a nil collaborator or a bad glob
func New(backend vcs.Backend, engine lint.Engine, opts Options) (*Linter, error) {
	if backend == nil {
		return nil, errs.Configuration("no version-control backend")
	}
	if engine == nil {
		return nil, errs.Configuration("no analysis engine")
	}
	paths, err := changes.NewFilter(opts.Glob, opts.Pathspecs)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RunID != "" {
		logger = logger.With(slog.String("run_id", opts.RunID))
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	return &Linter{
		backend:   backend,
		engine:    engine,
		root:      backend.Root(),
		revisions: revision.NewResolver(backend, logger),
		extractor: changes.NewExtractor(backend,
			changes.WithLogger(logger),
			changes.WithUntracked(opts.IncludeUntracked),
		),
		builder: delta.NewBuilder(
			delta.WithConcurrency(concurrency),
			delta.WithLogger(logger),
		),
		contents: content.NewResolver(backend,
			content.WithConcurrency(concurrency),
			content.WithLogger(logger),
		),
		paths:       paths,
		fullFile:    opts.FullFile,
		concurrency: concurrency,
		runID:       opts.RunID,
		logger:      logger,
	}, nil
}

// Root returns the absolute repository root.
func (l *Linter) Root() string {
	return l.root
}

// Engine returns the analysis engine.
func (l *Linter) Engine() lint.Engine {
	return l.engine
}

// =============================================================================
// PHASES
// =============================================================================

// Endpoints resolves a selector to concrete commits.
func (l *Linter) Endpoints(ctx context.Context, sel revision.Selector) (*revision.Endpoints, error) {
	ctx, span := startPhaseSpan(ctx, "deltalint.Endpoints", l.runID)
	defer span.End()

	ep, err := l.revisions.ResolveSelector(ctx, sel)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("deltalint.target", ep.Target.String()),
		attribute.Bool("deltalint.merge_base_applied", ep.MergeBaseApplied),
	)
	return ep, nil
}

// Delta extracts the change set between endpoints and reduces it to line
// selections. A nil Delta with a nil error means nothing is left to
// analyse.
func (l *Linter) Delta(ctx context.Context, ep *revision.Endpoints) (*delta.Delta, error) {
	ctx, span := startPhaseSpan(ctx, "deltalint.Delta", l.runID)
	defer span.End()

	list, err := l.extractor.Extract(ctx, ep, l.paths)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	d, err := l.builder.Build(ctx, l.root, list, l.fullFile)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("deltalint.changes", len(list)),
		attribute.Int("deltalint.delta_files", d.Len()),
	)
	return d, nil
}

// Lint analyses the delta's files and filters the results.
//
// Description:
//
//	The content strategy decides how the engine is called:
//
//	  - disk: LintFiles over the delta paths, then Filter
//	  - index: LintText over the staged blobs, then Filter
//	  - commit: LintText over both trees, then FilterDrift
//
// Inputs:
//
//	ctx - Context for backend reads and linter processes
//	ep - Resolved endpoints
//	d - Non-nil delta built from ep
//
// Outputs:
//
//	*filter.Report - Filtered results with aggregate counts
//	content.Strategy - The strategy used
//	error - errs.ErrUnsupported for partially staged files with a
//	working-tree target, errs.ErrLintExecution for engine failures,
//	errs.ErrInvariant for pipeline inconsistencies
func (l *Linter) Lint(ctx context.Context, ep *revision.Endpoints, d *delta.Delta) (*filter.Report, content.Strategy, error) {
	if d == nil {
		return nil, content.StrategyDisk, errs.Invariant("lint called without a delta")
	}

	ctx, span := startPhaseSpan(ctx, "deltalint.Lint", l.runID)
	defer span.End()

	c, err := l.contents.Resolve(ctx, ep, d)
	if err != nil {
		failSpan(span, err)
		return nil, content.StrategyDisk, err
	}
	span.SetAttributes(attribute.String("deltalint.strategy", c.Strategy.String()))

	var report *filter.Report
	switch c.Strategy {
	case content.StrategyDisk:
		report, err = l.lintDisk(ctx, c.Paths, d)
	case content.StrategyIndex:
		report, err = l.lintIndex(ctx, c, d)
	case content.StrategyCommit:
		report, err = l.lintCommit(ctx, ep, c, d)
	default:
		err = errs.Invariant("unknown content strategy %s", c.Strategy)
	}
	if err != nil {
		failSpan(span, err)
		return nil, c.Strategy, err
	}

	span.SetAttributes(
		attribute.Int("deltalint.error_count", report.ErrorCount),
		attribute.Int("deltalint.warning_count", report.WarningCount),
		attribute.Int("deltalint.filtered_error_count", report.FilteredErrorCount),
		attribute.Int("deltalint.filtered_warning_count", report.FilteredWarningCount),
	)
	return report, c.Strategy, nil
}

func (l *Linter) lintDisk(ctx context.Context, paths []string, d *delta.Delta) (*filter.Report, error) {
	results, err := l.engine.LintFiles(ctx, paths)
	if err != nil {
		return nil, lintError("lint files", err)
	}
	return filter.Filter(results, d)
}

func (l *Linter) lintIndex(ctx context.Context, c *content.Contents, d *delta.Delta) (*filter.Report, error) {
	results, err := l.lintSources(ctx, c.New, l.backend.WriteIndex)
	if err != nil {
		return nil, err
	}
	return filter.Filter(results, d)
}

// lintCommit analyses both trees concurrently and reconciles them.
func (l *Linter) lintCommit(ctx context.Context, ep *revision.Endpoints, c *content.Contents, d *delta.Delta) (*filter.Report, error) {
	if ep.New == nil {
		return nil, errs.Invariant("commit strategy without a new commit")
	}
	var oldResults, newResults []lint.FileResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		newResults, err = l.lintSources(gctx, c.New, l.treeWriter(ep.New.TreeID))
		return err
	})
	g.Go(func() error {
		var err error
		oldResults, err = l.lintSources(gctx, c.Old, l.treeWriter(ep.Old.TreeID))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filter.FilterDrift(oldResults, newResults, d)
}

// snapshotWriter writes the repository state the sources were read from
// into a directory.
type snapshotWriter func(ctx context.Context, dir string) error

func (l *Linter) treeWriter(treeID string) snapshotWriter {
	return func(ctx context.Context, dir string) error {
		return l.backend.WriteTree(ctx, treeID, dir)
	}
}

// lintSources lints every source and returns the results in source order.
//
// Description:
//
//	Sources the engine can lint as text run through LintText with bounded
//	parallelism. Sources whose linter needs the whole package are linted
//	together from one checkout of the state written by write.
func (l *Linter) lintSources(ctx context.Context, sources []content.Source, write snapshotWriter) ([]lint.FileResult, error) {
	slots := make([]lint.FileResult, len(sources))

	var checkout []int
	fromCheckout := make([]bool, len(sources))
	ce, _ := l.engine.(lint.CheckoutEngine)
	if ce != nil {
		for i, s := range sources {
			if ce.NeedsCheckout(s.Path) {
				checkout = append(checkout, i)
				fromCheckout[i] = true
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	if len(checkout) > 0 {
		g.Go(func() error {
			return l.lintCheckout(gctx, ce, sources, checkout, write, slots)
		})
	}
	for i, s := range sources {
		if fromCheckout[i] {
			continue
		}
		g.Go(func() error {
			res, err := l.engine.LintText(gctx, s.Text, s.Path)
			if err != nil {
				return lintError(fmt.Sprintf("lint text of %s", s.Path), err)
			}
			slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slots, nil
}

// lintCheckout writes the snapshot to a temporary directory and lints the
// sources at idx from it, filling their slots. A source the engine
// returns no result for gets an empty one.
func (l *Linter) lintCheckout(ctx context.Context, ce lint.CheckoutEngine, sources []content.Source, idx []int, write snapshotWriter, slots []lint.FileResult) error {
	dir, err := os.MkdirTemp("", "deltalint-checkout-*")
	if err != nil {
		return fmt.Errorf("create checkout directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			l.logger.Warn("Failed to remove checkout", slog.String("dir", dir), slog.String("error", err.Error()))
		}
	}()

	if err := write(ctx, dir); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errs.Revision("write checkout", err)
	}

	files := make([]lint.CheckoutFile, len(idx))
	for j, i := range idx {
		files[j] = lint.CheckoutFile{RelPath: sources[i].RelPath, Path: sources[i].Path}
	}
	l.logger.Debug("Linting from checkout", slog.String("dir", dir), slog.Int("files", len(files)))

	results, err := ce.LintCheckout(ctx, dir, files)
	if err != nil {
		return lintError("lint checkout", err)
	}
	byPath := make(map[string]lint.FileResult, len(results))
	for _, r := range results {
		byPath[r.FilePath] = r
	}
	for _, i := range idx {
		res, ok := byPath[sources[i].Path]
		if !ok {
			res = lint.NewFileResult(sources[i].Path, nil)
		}
		slots[i] = res
	}
	return nil
}

// =============================================================================
// RUNS
// =============================================================================

// Run executes the whole pipeline for a selector.
//
// Description:
//
//	Resolves endpoints, builds the delta and, when the delta is non-empty,
//	lints and filters. The returned Result carries the endpoints even when
//	the delta is empty so callers can report what was compared.
//
// Inputs:
//
//	ctx - Context for the run
//	sel - Parsed revision selector
//
// Outputs:
//
//	*Result - Endpoints, delta and report
//	error - The first phase error
func (l *Linter) Run(ctx context.Context, sel revision.Selector) (*Result, error) {
	start := time.Now()
	ctx, span := startPhaseSpan(ctx, "deltalint.Run", l.runID)
	defer span.End()
	span.SetAttributes(attribute.String("deltalint.selector", sel.String()))

	ep, err := l.Endpoints(ctx, sel)
	if err != nil {
		failSpan(span, err)
		recordRun(ctx, "revision", time.Since(start), nil, err)
		return nil, err
	}

	res, err := l.runEndpoints(ctx, ep)
	if err != nil {
		failSpan(span, err)
	}
	recordRun(ctx, "revision", time.Since(start), res, err)
	return res, err
}

// RunEndpoints executes the pipeline for already resolved endpoints.
func (l *Linter) RunEndpoints(ctx context.Context, ep *revision.Endpoints) (*Result, error) {
	start := time.Now()
	res, err := l.runEndpoints(ctx, ep)
	recordRun(ctx, "revision", time.Since(start), res, err)
	return res, err
}

func (l *Linter) runEndpoints(ctx context.Context, ep *revision.Endpoints) (*Result, error) {
	res := &Result{Endpoints: ep}

	d, err := l.Delta(ctx, ep)
	if err != nil {
		return nil, err
	}
	if d == nil {
		l.logger.Info("No changed files to lint", slog.String("target", ep.Target.String()))
		return res, nil
	}
	res.Delta = d

	report, strategy, err := l.Lint(ctx, ep, d)
	if err != nil {
		return nil, err
	}
	res.Strategy = strategy
	res.Report = report

	l.logger.Debug("Lint complete",
		slog.Int("files", d.Len()),
		slog.String("strategy", strategy.String()),
		slog.Int("errors", report.ErrorCount),
		slog.Int("warnings", report.WarningCount),
		slog.Int("filtered_errors", report.FilteredErrorCount),
		slog.Int("filtered_warnings", report.FilteredWarningCount),
	)
	return res, nil
}

// LintPatch lints the files a unified diff touches, as found on disk, and
// keeps the findings on the lines the patch adds.
//
// Description:
//
//	The patch is assumed to be applied to the working tree already. Files
//	the patch names but that are missing on disk are skipped.
//
// Inputs:
//
//	ctx - Context for the run
//	r - Unified diff text
//
// Outputs:
//
//	*Result - Endpoints is always nil
//	error - errs.ErrConfiguration for an unparseable patch,
//	errs.ErrLintExecution for engine failures
func (l *Linter) LintPatch(ctx context.Context, r io.Reader) (*Result, error) {
	start := time.Now()
	ctx, span := startPhaseSpan(ctx, "deltalint.LintPatch", l.runID)
	defer span.End()

	res, err := l.lintPatch(ctx, r)
	if err != nil {
		failSpan(span, err)
	}
	recordRun(ctx, "patch", time.Since(start), res, err)
	return res, err
}

func (l *Linter) lintPatch(ctx context.Context, r io.Reader) (*Result, error) {
	list, err := changes.ParsePatch(r, l.paths)
	if err != nil {
		return nil, err
	}
	d, err := l.builder.Build(ctx, l.root, list, l.fullFile)
	if err != nil {
		return nil, err
	}
	res := &Result{Strategy: content.StrategyDisk}
	if d == nil {
		l.logger.Info("Patch touches no lintable files")
		return res, nil
	}
	res.Delta = d

	paths := make([]string, 0, d.Len())
	for _, p := range d.Paths() {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				l.logger.Warn("Skipping patched file missing on disk", slog.String("path", p))
				continue
			}
			return nil, errs.Revision("stat patched file", err).WithPath(p)
		}
		paths = append(paths, p)
	}

	report, err := l.lintDisk(ctx, paths, d)
	if err != nil {
		return nil, err
	}
	res.Report = report
	return res, nil
}

// lintError classifies an engine failure. Context cancellation passes
// through unchanged.
func lintError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, errs.ErrLintExecution) {
		return err
	}
	return errs.LintExecution(op, err)
}

// failSpan marks a span as failed.
func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

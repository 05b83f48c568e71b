// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/deltalint/pkg/logging"
	"github.com/AleutianAI/deltalint/services/deltalint"
	"github.com/AleutianAI/deltalint/services/deltalint/config"
	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/lint"
	"github.com/AleutianAI/deltalint/services/deltalint/telemetry"
	"github.com/AleutianAI/deltalint/services/deltalint/vcs"
)

// =============================================================================
// SESSION
// =============================================================================

// session is everything one invocation sets up before linting.
type session struct {
	runID  string
	cfg    *config.Config
	logger *logging.Logger
	repo   *vcs.Repository
	runner *lint.Runner
	linter *deltalint.Linter

	shutdown func(context.Context) error
}

// openSession opens the repository, loads configuration and wires the
// pipeline.
//
// # Description
//
// Order matters: the repository root locates the config file, the config
// configures logging and telemetry, and the linter registry is adjusted by
// the config before availability is detected. Flags win over the file.
//
// # Inputs
//
//   - ctx: Context for linter detection and telemetry exporters.
//   - pathspecs: User paths restricting the change set, relative to the
//     current directory.
//
// # Outputs
//
//   - *session: Must be closed.
//   - error: errs.ErrRevision when no repository is found,
//     errs.ErrConfiguration for config, flag or pathspec problems.
func openSession(ctx context.Context, pathspecs []string) (*session, error) {
	s := &session{runID: uuid.NewString()}

	repo, err := vcs.Open(flagDir)
	if err != nil {
		return nil, errs.Revision("open repository", err)
	}
	s.repo = repo

	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = config.Find(repo.Root())
	}
	cfg, err := config.Load(cfgPath, os.Getenv)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg); err != nil {
		return nil, err
	}
	s.cfg = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, errs.Configuration("log level: %v", err)
	}
	if flagDebug {
		level = logging.LevelDebug
	}
	base := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: "deltalint",
		JSON:    cfg.Log.JSON,
	})
	s.logger = base.With("run_id", s.runID)
	slog.SetDefault(s.logger.Slog())
	repo.SetLogger(s.logger.Slog())

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "deltalint",
		ServiceVersion: version,
		RunID:          s.runID,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		MetricsFile:    cfg.Telemetry.MetricsFile,
	})
	if err != nil {
		_ = base.Close()
		return nil, errs.Configuration("telemetry: %v", err)
	}
	s.shutdown = shutdown

	cwd, err := filepath.Abs(flagDir)
	if err != nil {
		cwd = repo.Root()
	}
	s.runner = lint.NewRunner(
		lint.WithWorkingDir(repo.Root()),
		lint.WithRequireLinters(cfg.RequireLinters),
		lint.WithConcurrency(cfg.Concurrency),
		lint.WithFormatOptions(lint.FormatOptions{
			Color: lint.ColorMode(flagColor),
			Root:  cwd,
		}),
		lint.WithLogger(s.logger.Slog()),
	)
	if err := cfg.Apply(s.runner.Configs(), s.runner.Policies()); err != nil {
		s.Close()
		return nil, err
	}
	s.runner.DetectAvailableLinters(ctx)

	glob := cfg.Glob
	if glob == "" {
		glob = s.runner.Configs().DefaultGlob()
	}
	specs, err := repoPathspecs(repo.Root(), cwd, pathspecs)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.linter, err = deltalint.New(repo, s.runner, deltalint.Options{
		Glob:             glob,
		Pathspecs:        specs,
		FullFile:         flagAll,
		IncludeUntracked: cfg.IncludeUntracked,
		Concurrency:      cfg.Concurrency,
		RunID:            s.runID,
		Logger:           s.logger.Slog(),
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	s.logger.Debug("Session ready",
		slog.String("root", repo.Root()),
		slog.String("config", cfgPath),
		slog.String("glob", glob),
		slog.Any("pathspecs", specs),
	)
	return s, nil
}

// Close flushes telemetry and closes the log file.
func (s *session) Close() {
	if s.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.shutdown(ctx); err != nil {
			s.logger.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
		cancel()
		s.shutdown = nil
	}
	if s.logger != nil {
		_ = s.logger.Close()
	}
}

// applyFlags lets explicitly set flags override the config file.
func applyFlags(cfg *config.Config) error {
	if flagGlob != "" {
		cfg.Glob = flagGlob
	}
	if flagFormat != "" {
		cfg.Format = flagFormat
	}
	if flagUntracked {
		cfg.IncludeUntracked = true
	}
	switch lint.ColorMode(flagColor) {
	case lint.ColorAuto, lint.ColorAlways, lint.ColorNever:
	default:
		return errs.Configuration("--color must be auto, always or never, got %q", flagColor)
	}
	return cfg.Validate()
}

// repoPathspecs turns user paths into repository-relative slash paths.
func repoPathspecs(root, cwd string, paths []string) ([]string, error) {
	specs := make([]string, 0, len(paths))
	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(cwd, p)
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, errs.Configuration("path %q is outside the repository %s", p, root)
		}
		specs = append(specs, filepath.ToSlash(rel))
	}
	return specs, nil
}

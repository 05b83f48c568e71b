// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deltalint

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/deltalint/services/deltalint/errs"
)

// Package-level tracer and meter for pipeline runs.
var (
	tracer = otel.Tracer("deltalint")
	meter  = otel.Meter("deltalint")
)

var (
	runLatency       metric.Float64Histogram
	runTotal         metric.Int64Counter
	deltaFiles       metric.Int64Histogram
	findingsRetained metric.Int64Counter
	findingsFiltered metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"deltalint_run_duration_seconds",
			metric.WithDescription("Duration of pipeline runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"deltalint_runs_total",
			metric.WithDescription("Total number of pipeline runs by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		deltaFiles, err = meter.Int64Histogram(
			"deltalint_delta_files",
			metric.WithDescription("Number of files in the delta of a run"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		findingsRetained, err = meter.Int64Counter(
			"deltalint_findings_retained_total",
			metric.WithDescription("Errors and warnings kept on changed lines"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		findingsFiltered, err = meter.Int64Counter(
			"deltalint_findings_filtered_total",
			metric.WithDescription("Errors and warnings removed as outside changed lines"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startPhaseSpan creates a span for one pipeline phase.
func startPhaseSpan(ctx context.Context, name, runID string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	if runID != "" {
		span.SetAttributes(attribute.String("deltalint.run_id", runID))
	}
	return ctx, span
}

// outcome names the result of a run for metric attributes.
func outcome(res *Result, err error) string {
	switch {
	case err != nil:
		return kindName(errs.KindOf(err))
	case res.Empty():
		return "empty"
	default:
		return "ok"
	}
}

func kindName(kind error) string {
	switch kind {
	case errs.ErrConfiguration:
		return "configuration"
	case errs.ErrRevision:
		return "revision"
	case errs.ErrUnsupported:
		return "unsupported"
	case errs.ErrInvariant:
		return "invariant"
	case errs.ErrLintExecution:
		return "lint_execution"
	default:
		return "error"
	}
}

// recordRun records metrics for one pipeline run.
func recordRun(ctx context.Context, mode string, duration time.Duration, res *Result, err error) {
	if initErr := initMetrics(); initErr != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome(res, err)),
	)
	runLatency.Record(ctx, duration.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)

	if err != nil || res.Empty() {
		return
	}
	modeAttr := metric.WithAttributes(attribute.String("mode", mode))
	deltaFiles.Record(ctx, int64(res.Delta.Len()), modeAttr)
	if r := res.Report; r != nil {
		findingsRetained.Add(ctx, int64(r.ErrorCount+r.WarningCount), modeAttr)
		findingsFiltered.Add(ctx, int64(r.FilteredErrorCount+r.FilteredWarningCount), modeAttr)
	}
}

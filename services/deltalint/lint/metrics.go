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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for linter invocations.
var (
	tracer = otel.Tracer("deltalint.lint")
	meter  = otel.Meter("deltalint.lint")
)

var (
	invocationLatency metric.Float64Histogram
	invocationTotal   metric.Int64Counter
	filesLinted       metric.Int64Counter
	findingsReported  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		invocationLatency, err = meter.Float64Histogram(
			"deltalint_linter_duration_seconds",
			metric.WithDescription("Duration of linter invocations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		invocationTotal, err = meter.Int64Counter(
			"deltalint_linter_invocations_total",
			metric.WithDescription("Total number of linter invocations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesLinted, err = meter.Int64Counter(
			"deltalint_files_linted_total",
			metric.WithDescription("Total number of files handed to a linter"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		findingsReported, err = meter.Int64Counter(
			"deltalint_linter_findings_total",
			metric.WithDescription("Findings reported by linters before delta filtering"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startLintSpan creates a span for one linter invocation.
func startLintSpan(ctx context.Context, name, language string, files int) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("lint.language", language),
			attribute.Int("lint.files", files),
		),
	)
}

// setLintSpanResult sets the result attributes on a lint span.
func setLintSpanResult(span trace.Span, errorCount, warningCount int, linterAvailable bool) {
	span.SetAttributes(
		attribute.Int("lint.error_count", errorCount),
		attribute.Int("lint.warning_count", warningCount),
		attribute.Bool("lint.linter_available", linterAvailable),
	)
}

// recordLintMetrics records metrics for one linter invocation.
func recordLintMetrics(ctx context.Context, language string, duration time.Duration, files, findings int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("success", success),
	)
	invocationLatency.Record(ctx, duration.Seconds(), attrs)
	invocationTotal.Add(ctx, 1, attrs)

	if success {
		langAttr := metric.WithAttributes(attribute.String("language", language))
		filesLinted.Add(ctx, int64(files), langAttr)
		findingsReported.Add(ctx, int64(findings), langAttr)
	}
}

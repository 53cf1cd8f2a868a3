// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package license

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for license operations.
var (
	tracer = otel.Tracer("curator.license")
	meter  = otel.Meter("curator.license")
)

// Metrics for license operations.
var (
	resolveTotal       metric.Int64Counter
	resolveLatency     metric.Float64Histogram
	assignmentsChanged metric.Int64Counter
	invalidatedTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		resolveTotal, err = meter.Int64Counter(
			"curator_license_resolve_total",
			metric.WithDescription("Total number of license resolutions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		resolveLatency, err = meter.Float64Histogram(
			"curator_license_resolve_duration_seconds",
			metric.WithDescription("Duration of license resolutions"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		assignmentsChanged, err = meter.Int64Counter(
			"curator_license_assignments_changed_total",
			metric.WithDescription("License assignments ended or created"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		invalidatedTotal, err = meter.Int64Counter(
			"curator_license_invalidated_objects_total",
			metric.WithDescription("Objects whose resolved license was invalidated"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordResolve records a completed resolution. outcome is one of "direct",
// "inherited", "none", or "error".
func recordResolve(ctx context.Context, outcome string, cached bool, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("cached", cached),
	)
	resolveTotal.Add(ctx, 1, attrs)
	resolveLatency.Record(ctx, duration.Seconds(), attrs)
}

// recordAssignmentChange records ended or created assignments.
func recordAssignmentChange(ctx context.Context, change string, n int) {
	if err := initMetrics(); err != nil || n == 0 {
		return
	}
	assignmentsChanged.Add(ctx, int64(n), metric.WithAttributes(attribute.String("change", change)))
}

// recordInvalidated records how many objects were invalidated.
func recordInvalidated(ctx context.Context, n int) {
	if err := initMetrics(); err != nil {
		return
	}
	invalidatedTotal.Add(ctx, int64(n))
}

// startLicenseSpan creates a span for a license operation.
func startLicenseSpan(ctx context.Context, operation string, id int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "License."+operation,
		trace.WithAttributes(
			attribute.String("license.operation", operation),
			attribute.Int64("license.object_id", id),
		),
	)
}

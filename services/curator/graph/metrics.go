// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("curator.graph")
	meter  = otel.Meter("curator.graph")
)

// Metrics for graph operations.
var (
	fetchLatency      metric.Float64Histogram
	fetchTotal        metric.Int64Counter
	fetchPushCount    metric.Int64Histogram
	hierarchyInvalid  metric.Int64Counter
	cyclesDetected    metric.Int64Counter
	buildLatency      metric.Float64Histogram
	buildObjects      metric.Int64Counter
	propagationChange metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		fetchLatency, err = meter.Float64Histogram(
			"curator_graph_fetch_duration_seconds",
			metric.WithDescription("Duration of graph traversals"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fetchTotal, err = meter.Int64Counter(
			"curator_graph_fetch_total",
			metric.WithDescription("Total number of graph traversals"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fetchPushCount, err = meter.Int64Histogram(
			"curator_graph_fetch_push_count",
			metric.WithDescription("Objects processed per traversal"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		hierarchyInvalid, err = meter.Int64Counter(
			"curator_graph_hierarchy_violations_total",
			metric.WithDescription("Total number of edges violating the type hierarchy"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cyclesDetected, err = meter.Int64Counter(
			"curator_graph_cycles_total",
			metric.WithDescription("Total number of traversals that reached their root again"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildLatency, err = meter.Float64Histogram(
			"curator_graph_build_duration_seconds",
			metric.WithDescription("Duration of whole-repository graph database builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildObjects, err = meter.Int64Counter(
			"curator_graph_build_objects_total",
			metric.WithDescription("Objects visited by graph database builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		propagationChange, err = meter.Int64Counter(
			"curator_graph_propagation_changes_total",
			metric.WithDescription("Node state changes made by propagation"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordFetch records metrics for a completed traversal.
func recordFetch(ctx context.Context, mode Mode, duration time.Duration, r *Result, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode.String()),
		attribute.Bool("success", success),
		attribute.Bool("truncated", r.Truncated),
	)
	fetchTotal.Add(ctx, 1, attrs)
	fetchLatency.Record(ctx, duration.Seconds(), attrs)
	fetchPushCount.Record(ctx, int64(r.PushCount), metric.WithAttributes(attribute.String("mode", mode.String())))
	if r.InvalidEdges > 0 {
		hierarchyInvalid.Add(ctx, int64(r.InvalidEdges))
	}
	if !r.NoCycles {
		cyclesDetected.Add(ctx, 1)
	}
}

// recordBuild records metrics for a completed database build.
func recordBuild(ctx context.Context, duration time.Duration, br *BuildResult, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	buildLatency.Record(ctx, duration.Seconds(), attrs)
	if br == nil {
		return
	}
	buildObjects.Add(ctx, int64(br.ObjectsSeen), metric.WithAttributes(attribute.String("outcome", "seen")))
	buildObjects.Add(ctx, int64(br.ObjectsFailed), metric.WithAttributes(attribute.String("outcome", "failed")))
}

// recordPropagation records the number of state changes from one pass.
func recordPropagation(ctx context.Context, changes int) {
	if err := initMetrics(); err != nil {
		return
	}
	propagationChange.Add(ctx, int64(changes))
}

// startFetchSpan creates a span for a traversal.
func startFetchSpan(ctx context.Context, rootID int64, mode Mode) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Graph.Fetch",
		trace.WithAttributes(
			attribute.Int64("graph.root_id", rootID),
			attribute.String("graph.mode", mode.String()),
		),
	)
}

// startBuildSpan creates a span for a database operation.
func startBuildSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Database."+operation,
		trace.WithAttributes(attribute.String("graph.operation", operation)),
	)
}

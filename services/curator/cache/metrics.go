// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for cache operations.
var (
	tracer = otel.Tracer("curator.cache")
	meter  = otel.Meter("curator.cache")
)

// Metrics for cache operations.
var (
	cacheHits          metric.Int64Counter
	cacheMisses        metric.Int64Counter
	cacheInvalidations metric.Int64Counter
	cacheBuildLatency  metric.Float64Histogram
	cacheBuildTotal    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheHits, err = meter.Int64Counter(
			"curator_cache_hits_total",
			metric.WithDescription("Total number of cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"curator_cache_misses_total",
			metric.WithDescription("Total number of cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheInvalidations, err = meter.Int64Counter(
			"curator_cache_invalidations_total",
			metric.WithDescription("Total number of resolved-license entries invalidated"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheBuildLatency, err = meter.Float64Histogram(
			"curator_cache_build_duration_seconds",
			metric.WithDescription("Duration of cache builds, including retries"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheBuildTotal, err = meter.Int64Counter(
			"curator_cache_build_total",
			metric.WithDescription("Total number of cache builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordCacheHit records a cache hit metric.
func recordCacheHit(ctx context.Context, name string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", name)))
}

// recordCacheMiss records a cache miss metric.
func recordCacheMiss(ctx context.Context, name string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", name)))
}

// recordCacheInvalidations records resolved-license invalidations.
func recordCacheInvalidations(ctx context.Context, name string, n int) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheInvalidations.Add(ctx, int64(n), metric.WithAttributes(attribute.String("cache", name)))
}

// recordCacheBuild records a completed build attempt sequence.
func recordCacheBuild(ctx context.Context, name string, duration time.Duration, attempts int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("cache", name),
		attribute.Int("attempts", attempts),
		attribute.Bool("success", success),
	)
	cacheBuildTotal.Add(ctx, 1, attrs)
	cacheBuildLatency.Record(ctx, duration.Seconds(), attrs)
}

// startCacheSpan creates a span for a cache operation.
func startCacheSpan(ctx context.Context, operation, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Cache."+operation,
		trace.WithAttributes(
			attribute.String("cache.operation", operation),
			attribute.String("cache.name", name),
		),
	)
}

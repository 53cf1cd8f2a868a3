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
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

// Default configuration values.
const (
	// DefaultMaxAttempts is how many times a failing build is tried.
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the pause between failed build attempts.
	DefaultRetryDelay = 50 * time.Millisecond

	// DefaultBuildTimeout bounds one shared build, across all attempts.
	DefaultBuildTimeout = 2 * time.Minute
)

// BuildFunc bulk-loads the value of a Lazy cache.
type BuildFunc[T any] func(ctx context.Context) (T, error)

// LazyOptions configures a Lazy cache.
type LazyOptions struct {
	// Name labels logs, spans, and metrics.
	Name string

	// MaxAttempts is the number of build attempts before giving up.
	MaxAttempts int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration

	// BuildTimeout bounds a shared build. Zero means no bound.
	BuildTimeout time.Duration

	// Logger receives retry and failure logs. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultLazyOptions returns sensible defaults.
func DefaultLazyOptions() LazyOptions {
	return LazyOptions{
		Name:         "lazy",
		MaxAttempts:  DefaultMaxAttempts,
		RetryDelay:   DefaultRetryDelay,
		BuildTimeout: DefaultBuildTimeout,
	}
}

// LazyOption is a functional option for configuring a Lazy cache.
type LazyOption func(*LazyOptions)

// WithName sets the cache name.
func WithName(name string) LazyOption {
	return func(o *LazyOptions) {
		o.Name = name
	}
}

// WithMaxAttempts sets the number of build attempts. Values below 1 are
// treated as 1.
func WithMaxAttempts(n int) LazyOption {
	return func(o *LazyOptions) {
		o.MaxAttempts = n
	}
}

// WithRetryDelay sets the pause between failed attempts.
func WithRetryDelay(d time.Duration) LazyOption {
	return func(o *LazyOptions) {
		o.RetryDelay = d
	}
}

// WithBuildTimeout bounds a shared build. Zero disables the bound.
func WithBuildTimeout(d time.Duration) LazyOption {
	return func(o *LazyOptions) {
		o.BuildTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) LazyOption {
	return func(o *LazyOptions) {
		o.Logger = l
	}
}

// Lazy is a lazily built, explicitly flushable singleton value.
//
// Description:
//
//	Lazy holds one value of type T that is built on first use by a BuildFunc.
//	Concurrent first readers share a single in-flight build. The build runs
//	detached from the cancellation of the caller that started it, bounded by
//	BuildTimeout; each caller stops waiting when its own ctx is done. Failed builds
//	are retried up to MaxAttempts times; the final failure is logged at
//	Error and returned wrapped in ErrCacheBuildFailed. Failures are not
//	cached: the next Get tries again.
//
// Thread Safety:
//
//	Lazy is safe for concurrent use.
//
// Example:
//
//	ids := cache.NewLazy(func(ctx context.Context) (map[int64]string, error) {
//	    return loadNames(ctx)
//	}, cache.WithName("names"))
//	names, err := ids.Get(ctx)
type Lazy[T any] struct {
	mu      sync.RWMutex
	value   T
	built   bool
	builtAt time.Time

	flight  singleflight.Group
	build   BuildFunc[T]
	options LazyOptions
	logger  *slog.Logger

	builds atomic.Int64
}

// NewLazy creates a Lazy cache around build.
func NewLazy[T any](build BuildFunc[T], opts ...LazyOption) *Lazy[T] {
	options := DefaultLazyOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.MaxAttempts < 1 {
		options.MaxAttempts = 1
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Lazy[T]{
		build:   build,
		options: options,
		logger:  logger.With(slog.String("cache", options.Name)),
	}
}

// Get returns the cached value, building it if needed.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	if v, ok := l.Peek(); ok {
		recordCacheHit(ctx, l.options.Name)
		return v, nil
	}
	recordCacheMiss(ctx, l.options.Name)
	return l.load(ctx)
}

// Peek returns the cached value without building it.
func (l *Lazy[T]) Peek() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.built
}

// Flush drops the cached value and rebuilds it immediately.
func (l *Lazy[T]) Flush(ctx context.Context) (T, error) {
	l.Clear()
	l.flight.Forget("build")
	return l.load(ctx)
}

// Clear drops the cached value. The next Get rebuilds it.
func (l *Lazy[T]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero T
	l.value = zero
	l.built = false
	l.builtAt = time.Time{}
}

// Builds returns the number of successful builds so far.
func (l *Lazy[T]) Builds() int64 {
	return l.builds.Load()
}

// BuiltAt returns when the current value was built, or the zero time.
func (l *Lazy[T]) BuiltAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.builtAt
}

func (l *Lazy[T]) load(ctx context.Context) (T, error) {
	var zero T
	if l.build == nil {
		return zero, ErrNilLoader
	}

	ch := l.flight.DoChan("build", func() (any, error) {
		if v, ok := l.Peek(); ok {
			return v, nil
		}
		buildCtx, cancel := l.detach(ctx)
		defer cancel()
		v, err := l.buildWithRetry(buildCtx)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.value = v
		l.built = true
		l.builtAt = time.Now()
		l.mu.Unlock()
		l.builds.Add(1)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("waiting for %s: %w", l.options.Name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// detach returns a context that keeps the values of ctx but not its
// cancellation, bounded by BuildTimeout.
func (l *Lazy[T]) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if l.options.BuildTimeout > 0 {
		return context.WithTimeout(base, l.options.BuildTimeout)
	}
	return context.WithCancel(base)
}

func (l *Lazy[T]) buildWithRetry(ctx context.Context) (T, error) {
	ctx, span := startCacheSpan(ctx, "Build", l.options.Name)
	defer span.End()

	start := time.Now()
	var zero T
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= l.options.MaxAttempts; attempt++ {
		attempts = attempt
		v, err := l.build(ctx)
		if err == nil {
			span.SetAttributes(attribute.Int("cache.attempts", attempt))
			recordCacheBuild(ctx, l.options.Name, time.Since(start), attempt, true)
			return v, nil
		}
		lastErr = err
		l.logger.Warn("cache build attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", l.options.MaxAttempts),
			slog.String("error", err.Error()),
		)
		if ctx.Err() != nil || attempt == l.options.MaxAttempts {
			break
		}
		if l.options.RetryDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(l.options.RetryDelay):
			}
		}
	}

	recordCacheBuild(ctx, l.options.Name, time.Since(start), attempts, false)
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "build failed")
	l.logger.Error("cache build failed",
		slog.Int("attempts", attempts),
		slog.String("error", lastErr.Error()),
	)
	return zero, fmt.Errorf("%w: %s after %d attempts: %w", ErrCacheBuildFailed, l.options.Name, attempts, lastErr)
}

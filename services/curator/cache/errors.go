// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides the lazily built identity and license caches used by
// the object-graph engine.
//
// All caches share one lifecycle, implemented by Lazy:
//   - The first Get builds the value by bulk-loading from persistence.
//   - Concurrent first readers share one in-flight build (singleflight).
//   - A failed build is retried up to MaxAttempts times before giving up.
//   - Flush drops the value and rebuilds eagerly.
//   - Clear drops the value; the next Get rebuilds.
//
// # Thread Safety
//
// Every exported type in this package is safe for concurrent use. A rebuild is
// not atomic with respect to readers: a reader arriving during Clear and the
// following build waits on the in-flight build.
package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrCacheBuildFailed is returned when a cache build fails on every attempt.
	ErrCacheBuildFailed = errors.New("cache build failed")

	// ErrNilLoader is returned when a cache is used without a loader.
	ErrNilLoader = errors.New("cache loader must not be nil")
)

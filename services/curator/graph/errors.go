// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph walks and materializes the repository object graph.
//
// The package has three layers:
//   - Fetch walks the graph from one root in Ancestors, Descendants, or
//     Both mode, validating every edge against the type hierarchy and
//     collecting the reachable objects into a Result.
//   - Entry is the per-object node state of a Database: parent and child
//     edges plus state derived by propagation.
//   - Database materializes an Entry for every object in the repository by
//     running Fetch once per object, then propagates derived state to a
//     fixed point.
//
// # Termination
//
// Traversal uses an explicit work queue with a visited set. It is further
// bounded by a maximum depth (default 32) and a push limit (default 500).
// Hitting either bound truncates the result; it is not an error.
//
// # Structural Irregularities
//
// Hierarchy violations and cycles back to the root are not errors. They clear
// Result.ValidHierarchy and Result.NoCycles, and the walk continues.
//
// # Thread Safety
//
// Fetch is safe for concurrent use. A Database is built by a single goroutine
// and is read-only afterwards; callers replace it whole rather than mutating
// it.
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrNilRepository is returned when Fetch or NewDatabase is called
	// without a repository.
	ErrNilRepository = errors.New("repository must not be nil")

	// ErrInvalidMode is returned for a traversal mode outside
	// Ancestors, Descendants, and Both.
	ErrInvalidMode = errors.New("invalid traversal mode")

	// ErrBuildCancelled is returned when a Database build is cancelled.
	ErrBuildCancelled = errors.New("graph database build cancelled")

	// ErrListingFailed marks a per-type bulk listing that failed during a
	// Database build. The build continues with the other types.
	ErrListingFailed = errors.New("object listing failed")

	// ErrRootResolution is returned when the root object cannot be
	// resolved because the repository failed.
	ErrRootResolution = errors.New("resolving traversal root")
)

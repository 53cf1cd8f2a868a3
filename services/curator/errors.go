// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package curator

import "errors"

// Sentinel errors for the curator service.
var (
	// ErrNilRepository indicates the service was created without its
	// persistence collaborators.
	ErrNilRepository = errors.New("repository and license store are required")

	// ErrRateLimited indicates a rebuild was refused by the rebuild limit.
	ErrRateLimited = errors.New("graph database rebuild rate limited")

	// ErrNoSnapshotStore indicates snapshot persistence is not configured.
	ErrNoSnapshotStore = errors.New("snapshot store not configured")

	// ErrObjectNotFound indicates the requested object does not exist.
	ErrObjectNotFound = errors.New("object not found")
)

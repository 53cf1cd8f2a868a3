// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package license resolves and mutates the effective license of repository
// objects.
//
// An object is governed by its own active assignment when it has one. If
// several are active, the most restrictive wins. Otherwise the object
// inherits the most restrictive license resolved for any of its parents,
// recursively. An object with no license anywhere above it is unlicensed,
// which is reported as a nil resolution rather than an error.
//
// Resolved licenses are cached per object in a cache.LicenseCache. The
// Manager keeps that cache consistent: changing the assignments of an object
// invalidates the object and every descendant, since their inherited
// license may have changed.
package license

import "errors"

// Sentinel errors for license operations.
var (
	// ErrNilStore is returned when a Resolver is built without its
	// collaborators.
	ErrNilStore = errors.New("license store and repository must not be nil")

	// ErrLicenseNotFound is returned when assigning a license id that does
	// not exist.
	ErrLicenseNotFound = errors.New("license not found")
)

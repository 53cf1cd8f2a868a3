// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "time"

// License is a usage license. Higher RestrictLevel is more restrictive.
type License struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	RestrictLevel int    `json:"restrict_level"`
}

// LicenseAssignment attaches a License to a SystemObject for an optional
// window. A nil DateStart is always started; a nil DateEnd never ends.
type LicenseAssignment struct {
	ID              int64      `json:"id"`
	LicenseID       int64      `json:"license_id"`
	SystemObjectID  *int64     `json:"system_object_id,omitempty"`
	CreatedByUserID *int64     `json:"created_by_user_id,omitempty"`
	DateStart       *time.Time `json:"date_start,omitempty"`
	DateEnd         *time.Time `json:"date_end,omitempty"`
}

// IsActive reports whether now falls inside the assignment window.
//
// The window is half-open: DateStart is inclusive, DateEnd is exclusive, so
// an assignment ended "now" is no longer active.
func (a *LicenseAssignment) IsActive(now time.Time) bool {
	if a == nil {
		return false
	}
	return WindowActive(a.DateStart, a.DateEnd, now)
}

// WindowActive applies the assignment window rule to bare bounds.
func WindowActive(start, end *time.Time, now time.Time) bool {
	if start != nil && now.Before(*start) {
		return false
	}
	if end != nil && !now.Before(*end) {
		return false
	}
	return true
}

// LicenseResolution is the effective license governing an object.
//
// It is computed, never persisted. Inherited is false when the assignment
// is attached to the object itself; Source is the universal id carrying the
// assignment.
type LicenseResolution struct {
	License    *License           `json:"license"`
	Assignment *LicenseAssignment `json:"assignment"`
	Inherited  bool               `json:"inherited"`
	Source     int64              `json:"source"`
}

// AsInherited returns a copy of r marked as inherited.
func (r *LicenseResolution) AsInherited() *LicenseResolution {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Inherited = true
	return &cp
}

// MoreRestrictive reports whether r should win over other. Ties keep other,
// so the first resolution encountered wins.
func (r *LicenseResolution) MoreRestrictive(other *LicenseResolution) bool {
	if r == nil || r.License == nil {
		return false
	}
	if other == nil || other.License == nil {
		return true
	}
	return r.License.RestrictLevel > other.License.RestrictLevel
}

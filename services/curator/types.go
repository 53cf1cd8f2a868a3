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

import (
	"time"

	"github.com/AleutianAI/Curator/services/curator/graph"
	"github.com/AleutianAI/Curator/services/curator/model"
)

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by GET /v1/curator/health.
type HealthResponse struct {
	Status  string     `json:"status"`
	Version string     `json:"version"`
	EpochID string     `json:"epoch_id,omitempty"`
	Objects int        `json:"objects"`
	BuiltAt *time.Time `json:"built_at,omitempty"`
}

// ChildrenResponse is returned by GET /v1/curator/objects/:id/children.
type ChildrenResponse struct {
	ID       int64   `json:"id"`
	Children []Child `json:"children"`
}

// LicenseResponse is returned by GET /v1/curator/objects/:id/license.
type LicenseResponse struct {
	ID         int64                    `json:"id"`
	Licensed   bool                     `json:"licensed"`
	Resolution *model.LicenseResolution `json:"resolution,omitempty"`
}

// SetLicenseRequest is the body of PUT /v1/curator/objects/:id/license.
type SetLicenseRequest struct {
	// LicenseID is the license to assign.
	LicenseID int64 `json:"license_id" binding:"required,gt=0"`

	// DateStart is the inclusive start of the window. Nil means always.
	DateStart *time.Time `json:"date_start"`

	// DateEnd is the exclusive end of the window. Nil means never.
	DateEnd *time.Time `json:"date_end"`
}

// SetLicenseResponse reports the created assignment. Assignment is nil
// when the requested window is not active now.
type SetLicenseResponse struct {
	ID         int64                    `json:"id"`
	Active     bool                     `json:"active"`
	Assignment *model.LicenseAssignment `json:"assignment,omitempty"`
}

// ClearLicenseResponse reports how many assignments were ended.
type ClearLicenseResponse struct {
	ID    int64 `json:"id"`
	Ended int   `json:"ended"`
}

// RebuildResponse is returned by POST /v1/curator/graphdb/rebuild.
type RebuildResponse struct {
	Build  *graph.BuildResult `json:"build"`
	Errors []string           `json:"errors,omitempty"`
}

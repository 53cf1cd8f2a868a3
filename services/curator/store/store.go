// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store defines the persistence collaborators consumed by the
// object-graph engine.
//
// The graph, cache, and license packages depend only on these interfaces.
// Implementations live in sub-packages:
//
//   - gormstore: relational storage through GORM (Postgres, SQLite)
//   - memstore: in-memory storage with call counters, for tests and fixtures
//
// # Errors
//
// Single-record lookups return an error wrapping ErrNotFound when the record
// does not exist. Listing methods return an empty slice, never ErrNotFound.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/AleutianAI/Curator/services/curator/model"
)

// ErrNotFound is returned when a single-record lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// Relation selects a side of the master/derived cross-reference table.
type Relation int

const (
	// RelationDerived lists objects derived from the given object (children).
	RelationDerived Relation = iota

	// RelationMasters lists objects the given object derives from (parents).
	RelationMasters
)

// String returns "derived" or "masters".
func (r Relation) String() string {
	if r == RelationMasters {
		return "masters"
	}
	return "derived"
}

// IdentityReader reads SystemObject identity records.
type IdentityReader interface {
	// ListSystemObjects returns every identity record.
	ListSystemObjects(ctx context.Context) ([]*model.SystemObject, error)

	// GetSystemObject returns the identity record with universal id id.
	GetSystemObject(ctx context.Context, id int64) (*model.SystemObject, error)

	// GetSystemObjectByKey returns the identity record wrapping key.
	GetSystemObjectByKey(ctx context.Context, key model.ObjectKey) (*model.SystemObject, error)
}

// ObjectReader reads typed entities.
type ObjectReader interface {
	// ResolveObject resolves a universal id to its identity record and
	// concrete typed entity.
	ResolveObject(ctx context.Context, id int64) (*model.SystemObject, model.Object, error)

	// ListObjects returns every entity of type t.
	ListObjects(ctx context.Context, t model.ObjectType) ([]model.Object, error)

	// GetObject returns the entity identified by key.
	GetObject(ctx context.Context, key model.ObjectKey) (model.Object, error)

	// ListSubjectsByUnit returns subjects owned by a unit.
	ListSubjectsByUnit(ctx context.Context, unitID int64) ([]*model.Subject, error)

	// ListActorsByUnit returns actors attached to a unit.
	ListActorsByUnit(ctx context.Context, unitID int64) ([]*model.Actor, error)

	// ListProjectDocumentation returns documentation of a project.
	ListProjectDocumentation(ctx context.Context, projectID int64) ([]*model.ProjectDocumentation, error)

	// ListAssetsByOwner returns assets whose owner is the universal id ownerID.
	ListAssetsByOwner(ctx context.Context, ownerID int64) ([]*model.Asset, error)

	// ListAssetVersions returns the versions of an asset.
	ListAssetVersions(ctx context.Context, assetID int64) ([]*model.AssetVersion, error)

	// ListCaptureDataFiles returns the files of a capture data set.
	ListCaptureDataFiles(ctx context.Context, captureDataID int64) ([]*model.CaptureDataFile, error)
}

// RelationReader reads the explicit master/derived cross-reference table.
type RelationReader interface {
	// ListRelated returns universal ids related to id on the given side.
	ListRelated(ctx context.Context, id int64, rel Relation) ([]int64, error)
}

// Repository is the full read-side collaborator of the graph engine.
type Repository interface {
	IdentityReader
	ObjectReader
	RelationReader
}

// LicenseStore reads and writes licenses and their assignments.
type LicenseStore interface {
	// ListLicenses returns every license.
	ListLicenses(ctx context.Context) ([]*model.License, error)

	// GetLicense returns the license with the given id.
	GetLicense(ctx context.Context, id int64) (*model.License, error)

	// ListLicenseAssignments returns all assignments attached to the
	// universal id, active or not.
	ListLicenseAssignments(ctx context.Context, systemObjectID int64) ([]*model.LicenseAssignment, error)

	// CreateLicenseAssignment persists a new assignment and sets its ID.
	CreateLicenseAssignment(ctx context.Context, a *model.LicenseAssignment) error

	// UpdateLicenseAssignment persists changes to an existing assignment.
	UpdateLicenseAssignment(ctx context.Context, a *model.LicenseAssignment) error
}

// ActiveAssignments filters assignments down to those active at now.
func ActiveAssignments(assignments []*model.LicenseAssignment, now time.Time) []*model.LicenseAssignment {
	out := make([]*model.LicenseAssignment, 0, len(assignments))
	for _, a := range assignments {
		if a.IsActive(now) {
			out = append(out, a)
		}
	}
	return out
}

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

import (
	"fmt"
	"time"
)

// Object is implemented by every typed entity.
type Object interface {
	// ObjectType returns the type tag of the entity.
	ObjectType() ObjectType

	// TypedID returns the id in the entity's own table.
	TypedID() int64

	// DisplayName returns a human-readable label for listings.
	DisplayName() string
}

// KeyOf returns the typed key of an Object.
func KeyOf(o Object) ObjectKey {
	return ObjectKey{Type: o.ObjectType(), TypedID: o.TypedID()}
}

// Unit is an owning museum or research unit.
type Unit struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	ARKPrefix    string `json:"ark_prefix"`
}

func (u *Unit) ObjectType() ObjectType { return ObjectTypeUnit }
func (u *Unit) TypedID() int64         { return u.ID }
func (u *Unit) DisplayName() string    { return u.Name }

// Project groups digitisation work.
type Project struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (p *Project) ObjectType() ObjectType { return ObjectTypeProject }
func (p *Project) TypedID() int64         { return p.ID }
func (p *Project) DisplayName() string    { return p.Name }

// Subject is a collection object belonging to a Unit.
type Subject struct {
	ID               int64  `json:"id"`
	UnitID           int64  `json:"unit_id"`
	AssetThumbnailID *int64 `json:"asset_thumbnail_id,omitempty"`
	Name             string `json:"name"`
}

func (s *Subject) ObjectType() ObjectType { return ObjectTypeSubject }
func (s *Subject) TypedID() int64         { return s.ID }
func (s *Subject) DisplayName() string    { return s.Name }

// Item is a media group of a Subject.
type Item struct {
	ID               int64  `json:"id"`
	AssetThumbnailID *int64 `json:"asset_thumbnail_id,omitempty"`
	Name             string `json:"name"`
	EntireSubject    bool   `json:"entire_subject"`
}

func (i *Item) ObjectType() ObjectType { return ObjectTypeItem }
func (i *Item) TypedID() int64         { return i.ID }
func (i *Item) DisplayName() string    { return i.Name }

// CaptureData is a raw capture set (photogrammetry, CT, ...).
type CaptureData struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	CaptureMethod    int64     `json:"capture_method"`
	DateCaptured     time.Time `json:"date_captured"`
	AssetThumbnailID *int64    `json:"asset_thumbnail_id,omitempty"`
}

func (c *CaptureData) ObjectType() ObjectType { return ObjectTypeCaptureData }
func (c *CaptureData) TypedID() int64         { return c.ID }
func (c *CaptureData) DisplayName() string    { return c.Name }

// CaptureDataFile links a CaptureData to one of its asset files and records
// the file's variant type.
type CaptureDataFile struct {
	ID            int64  `json:"id"`
	CaptureDataID int64  `json:"capture_data_id"`
	AssetID       int64  `json:"asset_id"`
	VariantType   *int64 `json:"variant_type,omitempty"`
}

// Model is a processed 3D model.
type Model struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Purpose          *int64 `json:"purpose,omitempty"`
	FileType         *int64 `json:"file_type,omitempty"`
	AssetThumbnailID *int64 `json:"asset_thumbnail_id,omitempty"`
}

func (m *Model) ObjectType() ObjectType { return ObjectTypeModel }
func (m *Model) TypedID() int64         { return m.ID }
func (m *Model) DisplayName() string    { return m.Name }

// Scene is a presentation scene assembled from models.
type Scene struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	AssetThumbnailID *int64 `json:"asset_thumbnail_id,omitempty"`
}

func (s *Scene) ObjectType() ObjectType { return ObjectTypeScene }
func (s *Scene) TypedID() int64         { return s.ID }
func (s *Scene) DisplayName() string    { return s.Name }

// IntermediaryFile is a working file produced between capture and model.
type IntermediaryFile struct {
	ID          int64     `json:"id"`
	DateCreated time.Time `json:"date_created"`
}

func (f *IntermediaryFile) ObjectType() ObjectType { return ObjectTypeIntermediaryFile }
func (f *IntermediaryFile) TypedID() int64         { return f.ID }
func (f *IntermediaryFile) DisplayName() string {
	return fmt.Sprintf("Intermediary File %d", f.ID)
}

// ProjectDocumentation is a document attached to a Project.
type ProjectDocumentation struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (d *ProjectDocumentation) ObjectType() ObjectType { return ObjectTypeProjectDocumentation }
func (d *ProjectDocumentation) TypedID() int64         { return d.ID }
func (d *ProjectDocumentation) DisplayName() string    { return d.Name }

// Asset is a stored file. OwnerID is the universal id of the object the
// asset belongs to, when known.
type Asset struct {
	ID         int64  `json:"id"`
	FileName   string `json:"file_name"`
	StorageKey string `json:"storage_key"`
	AssetType  int64  `json:"asset_type"`
	OwnerID    *int64 `json:"owner_id,omitempty"`
}

func (a *Asset) ObjectType() ObjectType { return ObjectTypeAsset }
func (a *Asset) TypedID() int64         { return a.ID }
func (a *Asset) DisplayName() string    { return a.FileName }

// AssetVersion is one stored revision of an Asset.
type AssetVersion struct {
	ID          int64  `json:"id"`
	AssetID     int64  `json:"asset_id"`
	Version     int    `json:"version"`
	FileName    string `json:"file_name"`
	StorageSize int64  `json:"storage_size"`
	Ingested    bool   `json:"ingested"`
}

func (v *AssetVersion) ObjectType() ObjectType { return ObjectTypeAssetVersion }
func (v *AssetVersion) TypedID() int64         { return v.ID }
func (v *AssetVersion) DisplayName() string {
	return fmt.Sprintf("%s v%d", v.FileName, v.Version)
}

// Actor is a person or organisation that performed work.
type Actor struct {
	ID               int64  `json:"id"`
	IndividualName   string `json:"individual_name"`
	OrganizationName string `json:"organization_name"`
	UnitID           *int64 `json:"unit_id,omitempty"`
}

func (a *Actor) ObjectType() ObjectType { return ObjectTypeActor }
func (a *Actor) TypedID() int64         { return a.ID }
func (a *Actor) DisplayName() string {
	if a.IndividualName != "" {
		return a.IndividualName
	}
	return a.OrganizationName
}

// Stakeholder is a party with an interest in a Unit or Project.
type Stakeholder struct {
	ID               int64  `json:"id"`
	IndividualName   string `json:"individual_name"`
	OrganizationName string `json:"organization_name"`
	EmailAddress     string `json:"email_address"`
}

func (s *Stakeholder) ObjectType() ObjectType { return ObjectTypeStakeholder }
func (s *Stakeholder) TypedID() int64         { return s.ID }
func (s *Stakeholder) DisplayName() string {
	if s.IndividualName != "" {
		return s.IndividualName
	}
	return s.OrganizationName
}

// SystemObjectXref is an explicit master/derived link between two objects,
// independent of the implicit type hierarchy.
type SystemObjectXref struct {
	ID        int64 `json:"id"`
	MasterID  int64 `json:"master_id"`
	DerivedID int64 `json:"derived_id"`
}

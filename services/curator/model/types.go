// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the repository object model shared by the graph,
// cache, and license packages.
//
// Every repository entity (Unit, Project, Subject, Item, CaptureData, Model,
// Scene, IntermediaryFile, ProjectDocumentation, Asset, AssetVersion, Actor,
// Stakeholder) is wrapped by exactly one SystemObject, which gives it a
// universal id. The SystemObject is a tagged union: its Type selects which
// typed table TypedID refers to.
//
// # Ownership Model
//
// Values in this package are plain data. The persistence layer creates and
// mutates them; the graph engine treats them as read-only.
package model

import (
	"fmt"
	"strings"
)

// ObjectType tags the concrete entity a SystemObject wraps.
//
// The numeric order is the display order used for sorted children listings.
type ObjectType int

const (
	// ObjectTypeUnknown indicates an unrecognised or unset type.
	ObjectTypeUnknown ObjectType = iota

	ObjectTypeUnit
	ObjectTypeProject
	ObjectTypeSubject
	ObjectTypeItem
	ObjectTypeCaptureData
	ObjectTypeModel
	ObjectTypeScene
	ObjectTypeIntermediaryFile
	ObjectTypeProjectDocumentation
	ObjectTypeAsset
	ObjectTypeAssetVersion
	ObjectTypeActor
	ObjectTypeStakeholder

	// NumObjectTypes is the number of object types, for array sizing.
	NumObjectTypes
)

var objectTypeNames = [NumObjectTypes]string{
	ObjectTypeUnknown:              "unknown",
	ObjectTypeUnit:                 "unit",
	ObjectTypeProject:              "project",
	ObjectTypeSubject:              "subject",
	ObjectTypeItem:                 "item",
	ObjectTypeCaptureData:          "capture_data",
	ObjectTypeModel:                "model",
	ObjectTypeScene:                "scene",
	ObjectTypeIntermediaryFile:     "intermediary_file",
	ObjectTypeProjectDocumentation: "project_documentation",
	ObjectTypeAsset:                "asset",
	ObjectTypeAssetVersion:         "asset_version",
	ObjectTypeActor:                "actor",
	ObjectTypeStakeholder:          "stakeholder",
}

// String returns the snake_case name of the type.
func (t ObjectType) String() string {
	if t < 0 || t >= NumObjectTypes {
		return "unknown"
	}
	return objectTypeNames[t]
}

// Valid reports whether t is one of the thirteen concrete types.
func (t ObjectType) Valid() bool {
	return t > ObjectTypeUnknown && t < NumObjectTypes
}

// ParseObjectType converts a name produced by String back to an ObjectType.
//
// Matching is case-insensitive and accepts both "capture_data" and
// "capturedata". Unrecognised names return ObjectTypeUnknown and an error.
func ParseObjectType(s string) (ObjectType, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "")
	for t := ObjectTypeUnit; t < NumObjectTypes; t++ {
		if strings.ReplaceAll(objectTypeNames[t], "_", "") == norm {
			return t, nil
		}
	}
	return ObjectTypeUnknown, fmt.Errorf("unknown object type %q", s)
}

// MarshalText encodes the type as its name.
func (t ObjectType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a name produced by MarshalText. "unknown" decodes to
// ObjectTypeUnknown.
func (t *ObjectType) UnmarshalText(b []byte) error {
	if string(b) == "unknown" {
		*t = ObjectTypeUnknown
		return nil
	}
	parsed, err := ParseObjectType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// AllObjectTypes returns the concrete types in display order.
func AllObjectTypes() []ObjectType {
	types := make([]ObjectType, 0, NumObjectTypes-1)
	for t := ObjectTypeUnit; t < NumObjectTypes; t++ {
		types = append(types, t)
	}
	return types
}

// ObjectKey identifies a typed entity by its type and typed id.
type ObjectKey struct {
	Type    ObjectType `json:"type"`
	TypedID int64      `json:"typed_id"`
}

// String renders the key as "type:id".
func (k ObjectKey) String() string {
	return fmt.Sprintf("%s:%d", k.Type, k.TypedID)
}

// SystemObject is the universal identity record wrapping one typed entity.
//
// Exactly one typed reference exists per SystemObject; it is carried as the
// (Type, TypedID) pair instead of thirteen nullable columns.
type SystemObject struct {
	// ID is the universal id.
	ID int64 `json:"id"`

	// Type selects the typed table.
	Type ObjectType `json:"type"`

	// TypedID is the id in the typed table.
	TypedID int64 `json:"typed_id"`

	// Retired marks objects removed from active use.
	Retired bool `json:"retired"`
}

// Key returns the typed key of the wrapped entity.
func (so SystemObject) Key() ObjectKey {
	return ObjectKey{Type: so.Type, TypedID: so.TypedID}
}

// IDAndType pairs a universal id with its type. It is the edge endpoint
// recorded by traversals and the graph database.
type IDAndType struct {
	ID   int64      `json:"id"`
	Type ObjectType `json:"type"`
}

// String renders the pair as "id(type)".
func (i IDAndType) String() string {
	return fmt.Sprintf("%d(%s)", i.ID, i.Type)
}

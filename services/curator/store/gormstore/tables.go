// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gormstore

import (
	"gorm.io/gorm"

	"github.com/AleutianAI/Curator/services/curator/model"
)

const (
	tableSystemObjects      = "system_objects"
	tableXrefs              = "system_object_xrefs"
	tableCaptureDataFiles   = "capture_data_files"
	tableLicenses           = "licenses"
	tableLicenseAssignments = "license_assignments"
)

// systemObjectRow is the persisted identity record.
type systemObjectRow struct {
	ID         int64 `gorm:"primaryKey"`
	ObjectType int   `gorm:"not null;uniqueIndex:idx_system_object_typed"`
	TypedID    int64 `gorm:"not null;uniqueIndex:idx_system_object_typed"`
	Retired    bool  `gorm:"not null;default:false"`
}

func (systemObjectRow) TableName() string { return tableSystemObjects }

func toSystemObjectRow(so *model.SystemObject) systemObjectRow {
	return systemObjectRow{ID: so.ID, ObjectType: int(so.Type), TypedID: so.TypedID, Retired: so.Retired}
}

func (r systemObjectRow) toModel() *model.SystemObject {
	return &model.SystemObject{ID: r.ID, Type: model.ObjectType(r.ObjectType), TypedID: r.TypedID, Retired: r.Retired}
}

// xrefRow is the persisted master/derived link.
type xrefRow struct {
	ID        int64 `gorm:"primaryKey"`
	MasterID  int64 `gorm:"not null;index"`
	DerivedID int64 `gorm:"not null;index"`
}

func (xrefRow) TableName() string { return tableXrefs }

// objectTable binds an object type to its table and row constructors.
type objectTable struct {
	name string
	row  func() any
	all  func(tx *gorm.DB) ([]model.Object, error)
	one  func(tx *gorm.DB) (model.Object, error)
}

var objectTables = [model.NumObjectTypes]objectTable{
	model.ObjectTypeUnit:                 bind[model.Unit]("units"),
	model.ObjectTypeProject:              bind[model.Project]("projects"),
	model.ObjectTypeSubject:              bind[model.Subject]("subjects"),
	model.ObjectTypeItem:                 bind[model.Item]("items"),
	model.ObjectTypeCaptureData:          bind[model.CaptureData]("capture_data"),
	model.ObjectTypeModel:                bind[model.Model]("models"),
	model.ObjectTypeScene:                bind[model.Scene]("scenes"),
	model.ObjectTypeIntermediaryFile:     bind[model.IntermediaryFile]("intermediary_files"),
	model.ObjectTypeProjectDocumentation: bind[model.ProjectDocumentation]("project_documentation"),
	model.ObjectTypeAsset:                bind[model.Asset]("assets"),
	model.ObjectTypeAssetVersion:         bind[model.AssetVersion]("asset_versions"),
	model.ObjectTypeActor:                bind[model.Actor]("actors"),
	model.ObjectTypeStakeholder:          bind[model.Stakeholder]("stakeholders"),
}

// objectPtr constrains PT to be *T and a model.Object.
type objectPtr[T any] interface {
	*T
	model.Object
}

func bind[T any, PT objectPtr[T]](name string) objectTable {
	return objectTable{
		name: name,
		row:  func() any { return PT(new(T)) },
		all: func(tx *gorm.DB) ([]model.Object, error) {
			var rows []*T
			if err := tx.Table(name).Order("id").Find(&rows).Error; err != nil {
				return nil, err
			}
			out := make([]model.Object, len(rows))
			for i, r := range rows {
				out[i] = PT(r)
			}
			return out, nil
		},
		one: func(tx *gorm.DB) (model.Object, error) {
			row := new(T)
			if err := tx.Table(name).First(row).Error; err != nil {
				return nil, err
			}
			return PT(row), nil
		},
	}
}

// findTyped loads rows of a concrete type from table with the given filter.
func findTyped[T any](tx *gorm.DB, table, query string, args ...any) ([]*T, error) {
	var rows []*T
	if err := tx.Table(table).Where(query, args...).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

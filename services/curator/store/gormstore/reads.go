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
	"context"
	"fmt"

	"github.com/AleutianAI/Curator/services/curator/model"
	"github.com/AleutianAI/Curator/services/curator/store"
)

// ListSystemObjects implements store.IdentityReader.
func (s *Store) ListSystemObjects(ctx context.Context) ([]*model.SystemObject, error) {
	var rows []systemObjectRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing system objects: %w", err)
	}
	out := make([]*model.SystemObject, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// GetSystemObject implements store.IdentityReader.
func (s *Store) GetSystemObject(ctx context.Context, id int64) (*model.SystemObject, error) {
	var row systemObjectRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("system object %d", id))
	}
	return row.toModel(), nil
}

// GetSystemObjectByKey implements store.IdentityReader.
func (s *Store) GetSystemObjectByKey(ctx context.Context, key model.ObjectKey) (*model.SystemObject, error) {
	var row systemObjectRow
	err := s.db.WithContext(ctx).
		Where("object_type = ? AND typed_id = ?", int(key.Type), key.TypedID).
		First(&row).Error
	if err != nil {
		return nil, notFound(err, "system object for "+key.String())
	}
	return row.toModel(), nil
}

// ResolveObject implements store.ObjectReader.
func (s *Store) ResolveObject(ctx context.Context, id int64) (*model.SystemObject, model.Object, error) {
	so, err := s.GetSystemObject(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	obj, err := s.GetObject(ctx, so.Key())
	if err != nil {
		return nil, nil, err
	}
	return so, obj, nil
}

// ListObjects implements store.ObjectReader.
func (s *Store) ListObjects(ctx context.Context, t model.ObjectType) ([]model.Object, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("listing objects: invalid type %d", int(t))
	}
	objs, err := objectTables[t].all(s.db.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", t, err)
	}
	return objs, nil
}

// GetObject implements store.ObjectReader.
func (s *Store) GetObject(ctx context.Context, key model.ObjectKey) (model.Object, error) {
	if !key.Type.Valid() {
		return nil, fmt.Errorf("%s: %w", key, store.ErrNotFound)
	}
	obj, err := objectTables[key.Type].one(s.db.WithContext(ctx).Where("id = ?", key.TypedID))
	if err != nil {
		return nil, notFound(err, key.String())
	}
	return obj, nil
}

// ListSubjectsByUnit implements store.ObjectReader.
func (s *Store) ListSubjectsByUnit(ctx context.Context, unitID int64) ([]*model.Subject, error) {
	rows, err := findTyped[model.Subject](s.db.WithContext(ctx),
		objectTables[model.ObjectTypeSubject].name, "unit_id = ?", unitID)
	if err != nil {
		return nil, fmt.Errorf("listing subjects of unit %d: %w", unitID, err)
	}
	return rows, nil
}

// ListActorsByUnit implements store.ObjectReader.
func (s *Store) ListActorsByUnit(ctx context.Context, unitID int64) ([]*model.Actor, error) {
	rows, err := findTyped[model.Actor](s.db.WithContext(ctx),
		objectTables[model.ObjectTypeActor].name, "unit_id = ?", unitID)
	if err != nil {
		return nil, fmt.Errorf("listing actors of unit %d: %w", unitID, err)
	}
	return rows, nil
}

// ListProjectDocumentation implements store.ObjectReader.
func (s *Store) ListProjectDocumentation(ctx context.Context, projectID int64) ([]*model.ProjectDocumentation, error) {
	rows, err := findTyped[model.ProjectDocumentation](s.db.WithContext(ctx),
		objectTables[model.ObjectTypeProjectDocumentation].name, "project_id = ?", projectID)
	if err != nil {
		return nil, fmt.Errorf("listing documentation of project %d: %w", projectID, err)
	}
	return rows, nil
}

// ListAssetsByOwner implements store.ObjectReader.
func (s *Store) ListAssetsByOwner(ctx context.Context, ownerID int64) ([]*model.Asset, error) {
	rows, err := findTyped[model.Asset](s.db.WithContext(ctx),
		objectTables[model.ObjectTypeAsset].name, "owner_id = ?", ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing assets of owner %d: %w", ownerID, err)
	}
	return rows, nil
}

// ListAssetVersions implements store.ObjectReader.
func (s *Store) ListAssetVersions(ctx context.Context, assetID int64) ([]*model.AssetVersion, error) {
	rows, err := findTyped[model.AssetVersion](s.db.WithContext(ctx),
		objectTables[model.ObjectTypeAssetVersion].name, "asset_id = ?", assetID)
	if err != nil {
		return nil, fmt.Errorf("listing versions of asset %d: %w", assetID, err)
	}
	return rows, nil
}

// ListCaptureDataFiles implements store.ObjectReader.
func (s *Store) ListCaptureDataFiles(ctx context.Context, captureDataID int64) ([]*model.CaptureDataFile, error) {
	rows, err := findTyped[model.CaptureDataFile](s.db.WithContext(ctx),
		tableCaptureDataFiles, "capture_data_id = ?", captureDataID)
	if err != nil {
		return nil, fmt.Errorf("listing files of capture data %d: %w", captureDataID, err)
	}
	return rows, nil
}

// ListRelated implements store.RelationReader.
func (s *Store) ListRelated(ctx context.Context, id int64, rel store.Relation) ([]int64, error) {
	match, pluck := "master_id = ?", "derived_id"
	if rel == store.RelationMasters {
		match, pluck = "derived_id = ?", "master_id"
	}
	ids := make([]int64, 0)
	err := s.db.WithContext(ctx).Model(&xrefRow{}).Where(match, id).Order("id").Pluck(pluck, &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing %s of %d: %w", rel, id, err)
	}
	return ids, nil
}

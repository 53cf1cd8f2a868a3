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

// ListLicenses implements store.LicenseStore.
func (s *Store) ListLicenses(ctx context.Context) ([]*model.License, error) {
	var rows []*model.License
	if err := s.db.WithContext(ctx).Table(tableLicenses).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing licenses: %w", err)
	}
	return rows, nil
}

// GetLicense implements store.LicenseStore.
func (s *Store) GetLicense(ctx context.Context, id int64) (*model.License, error) {
	var l model.License
	if err := s.db.WithContext(ctx).Table(tableLicenses).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("license %d", id))
	}
	return &l, nil
}

// ListLicenseAssignments implements store.LicenseStore.
func (s *Store) ListLicenseAssignments(ctx context.Context, systemObjectID int64) ([]*model.LicenseAssignment, error) {
	rows, err := findTyped[model.LicenseAssignment](s.db.WithContext(ctx),
		tableLicenseAssignments, "system_object_id = ?", systemObjectID)
	if err != nil {
		return nil, fmt.Errorf("listing license assignments of %d: %w", systemObjectID, err)
	}
	return rows, nil
}

// CreateLicenseAssignment implements store.LicenseStore.
func (s *Store) CreateLicenseAssignment(ctx context.Context, a *model.LicenseAssignment) error {
	a.ID = 0
	if err := s.db.WithContext(ctx).Table(tableLicenseAssignments).Create(a).Error; err != nil {
		return fmt.Errorf("creating license assignment: %w", err)
	}
	return nil
}

// UpdateLicenseAssignment implements store.LicenseStore.
func (s *Store) UpdateLicenseAssignment(ctx context.Context, a *model.LicenseAssignment) error {
	tx := s.db.WithContext(ctx).Table(tableLicenseAssignments).
		Where("id = ?", a.ID).
		Updates(map[string]any{
			"license_id":         a.LicenseID,
			"system_object_id":   a.SystemObjectID,
			"created_by_user_id": a.CreatedByUserID,
			"date_start":         a.DateStart,
			"date_end":           a.DateEnd,
		})
	if tx.Error != nil {
		return fmt.Errorf("updating license assignment %d: %w", a.ID, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("license assignment %d: %w", a.ID, store.ErrNotFound)
	}
	return nil
}

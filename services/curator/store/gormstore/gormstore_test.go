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
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AleutianAI/Curator/services/curator/model"
	"github.com/AleutianAI/Curator/services/curator/store"
	"github.com/AleutianAI/Curator/services/curator/store/memstore"
)

const fixtureYAML = `
objects:
  - {ref: nmnh, type: unit, name: NMNH}
  - {ref: proj, type: project, name: Skulls}
  - {ref: doc, type: project_documentation, name: Plan, project: proj}
  - {ref: skull, type: subject, name: Skull, unit: nmnh, thumbnail: thumb}
  - {ref: item, type: item, name: Skull Scan}
  - {ref: cd, type: capture_data, name: Photogrammetry, capture_method: 2}
  - {ref: thumb, type: asset, name: skull.jpg, owner: skull}
  - {ref: thumb-v1, type: asset_version, name: skull.jpg, asset: thumb, version: 1}
  - {ref: tech, type: actor, name: Tech, unit: nmnh}
relations:
  - {master: nmnh, derived: skull}
  - {master: skull, derived: item}
  - {master: item, derived: cd}
capture_files:
  - {capture_data: cd, asset: thumb, variant_type: 4}
licenses:
  - {id: 1, name: CC0, restrict_level: 10}
  - {id: 2, name: Restricted, restrict_level: 50}
assignments:
  - {license: 2, object: skull}
`

func setupTestDB(t *testing.T) (*Store, map[string]int64) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s := New(db)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	f, err := memstore.ParseFixture([]byte(fixtureYAML))
	require.NoError(t, err)
	mem := memstore.New()
	refs, err := f.Apply(mem)
	require.NoError(t, err)
	require.NoError(t, s.Import(ctx, mem.Dump()))
	return s, refs
}

func TestStore_IdentityRoundTrip(t *testing.T) {
	s, refs := setupTestDB(t)
	ctx := context.Background()

	all, err := s.ListSystemObjects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 9)

	so, err := s.GetSystemObject(ctx, refs["skull"])
	require.NoError(t, err)
	assert.Equal(t, model.ObjectTypeSubject, so.Type)

	byKey, err := s.GetSystemObjectByKey(ctx, so.Key())
	require.NoError(t, err)
	assert.Equal(t, so.ID, byKey.ID)

	_, err = s.GetSystemObject(ctx, 9999)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestStore_ResolveObject(t *testing.T) {
	s, refs := setupTestDB(t)
	ctx := context.Background()

	so, obj, err := s.ResolveObject(ctx, refs["skull"])
	require.NoError(t, err)
	subject, ok := obj.(*model.Subject)
	require.True(t, ok)
	assert.Equal(t, "Skull", subject.Name)
	assert.Equal(t, so.TypedID, subject.ID)
	require.NotNil(t, subject.AssetThumbnailID)

	_, _, err = s.ResolveObject(ctx, 4242)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ListObjects(t *testing.T) {
	s, _ := setupTestDB(t)

	units, err := s.ListObjects(context.Background(), model.ObjectTypeUnit)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "NMNH", units[0].DisplayName())

	scenes, err := s.ListObjects(context.Background(), model.ObjectTypeScene)
	require.NoError(t, err)
	assert.Empty(t, scenes)

	_, err = s.ListObjects(context.Background(), model.ObjectTypeUnknown)
	assert.Error(t, err)
}

func TestStore_ImplicitLinkQueries(t *testing.T) {
	s, refs := setupTestDB(t)
	ctx := context.Background()

	unitSO, err := s.GetSystemObject(ctx, refs["nmnh"])
	require.NoError(t, err)

	subjects, err := s.ListSubjectsByUnit(ctx, unitSO.TypedID)
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, "Skull", subjects[0].Name)

	actors, err := s.ListActorsByUnit(ctx, unitSO.TypedID)
	require.NoError(t, err)
	assert.Len(t, actors, 1)

	projSO, err := s.GetSystemObject(ctx, refs["proj"])
	require.NoError(t, err)
	docs, err := s.ListProjectDocumentation(ctx, projSO.TypedID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	assets, err := s.ListAssetsByOwner(ctx, refs["skull"])
	require.NoError(t, err)
	require.Len(t, assets, 1)

	versions, err := s.ListAssetVersions(ctx, assets[0].ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	cdSO, err := s.GetSystemObject(ctx, refs["cd"])
	require.NoError(t, err)
	files, err := s.ListCaptureDataFiles(ctx, cdSO.TypedID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NotNil(t, files[0].VariantType)
	assert.Equal(t, int64(4), *files[0].VariantType)
}

func TestStore_ListRelated(t *testing.T) {
	s, refs := setupTestDB(t)
	ctx := context.Background()

	derived, err := s.ListRelated(ctx, refs["skull"], store.RelationDerived)
	require.NoError(t, err)
	assert.Equal(t, []int64{refs["item"]}, derived)

	masters, err := s.ListRelated(ctx, refs["skull"], store.RelationMasters)
	require.NoError(t, err)
	assert.Equal(t, []int64{refs["nmnh"]}, masters)

	none, err := s.ListRelated(ctx, refs["tech"], store.RelationDerived)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_LicenseAssignments(t *testing.T) {
	s, refs := setupTestDB(t)
	ctx := context.Background()

	licenses, err := s.ListLicenses(ctx)
	require.NoError(t, err)
	assert.Len(t, licenses, 2)

	l, err := s.GetLicense(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 50, l.RestrictLevel)

	_, err = s.GetLicense(ctx, 77)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assignments, err := s.ListLicenseAssignments(ctx, refs["skull"])
	require.NoError(t, err)
	require.Len(t, assignments, 1)

	end := time.Now().UTC()
	a := assignments[0]
	a.DateEnd = &end
	require.NoError(t, s.UpdateLicenseAssignment(ctx, a))

	reloaded, err := s.ListLicenseAssignments(ctx, refs["skull"])
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	require.NotNil(t, reloaded[0].DateEnd)
	assert.False(t, reloaded[0].IsActive(end.Add(time.Second)))

	soID := refs["item"]
	created := &model.LicenseAssignment{LicenseID: 1, SystemObjectID: &soID}
	require.NoError(t, s.CreateLicenseAssignment(ctx, created))
	assert.NotZero(t, created.ID)

	missing := &model.LicenseAssignment{ID: 555, LicenseID: 1}
	assert.ErrorIs(t, s.UpdateLicenseAssignment(ctx, missing), store.ErrNotFound)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(
		postgres.New(postgres.Config{
			Conn:                 sqlDB,
			PreferSimpleProtocol: true,
		}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	return New(db), mock
}

func TestStore_GetSystemObject_Postgres(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "system_objects" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "object_type", "typed_id", "retired"}).
			AddRow(7, int(model.ObjectTypeModel), 3, false))

	so, err := s.GetSystemObject(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), so.ID)
	assert.Equal(t, model.ObjectTypeModel, so.Type)
	assert.Equal(t, int64(3), so.TypedID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetSystemObject_PostgresNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "system_objects"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "object_type", "typed_id", "retired"}))

	_, err := s.GetSystemObject(context.Background(), 8)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListRelated_PostgresError(t *testing.T) {
	s, mock := newMockStore(t)

	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "master_id" FROM "system_object_xrefs"`)).
		WillReturnError(boom)

	_, err := s.ListRelated(context.Background(), 1, store.RelationMasters)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DSN = ":memory:"
	cfg.MaxOpenConns = 1
	db, err := Open(cfg)
	require.NoError(t, err)
	s := New(db)
	assert.NoError(t, s.Ping(context.Background()))
}

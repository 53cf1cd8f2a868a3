// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Curator/services/curator/cache"
	"github.com/AleutianAI/Curator/services/curator/model"
	"github.com/AleutianAI/Curator/services/curator/store/memstore"
)

const scanFixture = `
objects:
  - {ref: u, type: unit, name: NMNH}
  - {ref: p, type: project, name: Skulls}
  - {ref: s, type: subject, name: Skull, unit: u}
  - {ref: i, type: item, name: Skull Scan}
  - {ref: cd, type: capture_data, name: Photogrammetry, capture_method: 2}
  - {ref: m, type: model, name: Mesh, purpose: 1, file_type: 7}
  - {ref: raw, type: asset, name: raw.zip, owner: cd}
relations:
  - {master: u, derived: p}
  - {master: p, derived: s}
  - {master: s, derived: i}
  - {master: i, derived: cd}
  - {master: cd, derived: m}
capture_files:
  - {capture_data: cd, asset: raw, variant_type: 4}
`

func buildScan(t *testing.T) (*Database, *memstore.Store, map[string]int64, *BuildResult) {
	t.Helper()
	s, refs := loadFixture(t, scanFixture)
	db, err := NewDatabase(s, nil)
	require.NoError(t, err)
	br, err := db.Build(context.Background())
	require.NoError(t, err)
	return db, s, refs, br
}

func TestDatabase_BuildStructure(t *testing.T) {
	db, s, refs, br := buildScan(t)

	assert.Equal(t, 7, db.Len())
	assert.Equal(t, 7, br.ObjectsSeen)
	assert.Equal(t, 7, br.ObjectsExpanded)
	assert.Zero(t, br.ObjectsFailed)
	assert.Equal(t, 1, br.Traversals)
	assert.Zero(t, br.InvalidHierarchy)
	assert.Zero(t, br.Cycles)
	assert.Empty(t, br.Errors)
	assert.NotEmpty(t, db.EpochID())
	assert.Equal(t, db.EpochID(), br.EpochID)
	assert.False(t, db.BuiltAt().IsZero())

	// Every object is resolved exactly once across the whole build.
	assert.Equal(t, 7, s.Calls("ResolveObject"))

	assert.Equal(t, []model.IDAndType{
		{ID: refs["p"], Type: model.ObjectTypeProject},
		{ID: refs["s"], Type: model.ObjectTypeSubject},
	}, db.Children(refs["u"]))
	assert.Equal(t, []model.IDAndType{
		{ID: refs["u"], Type: model.ObjectTypeUnit},
		{ID: refs["p"], Type: model.ObjectTypeProject},
	}, db.Parents(refs["s"]))
	assert.Empty(t, db.Children(9999))

	e, ok := db.Entry(refs["cd"])
	require.True(t, ok)
	assert.Equal(t, "Photogrammetry", e.Name)
	assert.IsType(t, &model.CaptureData{}, e.Object())
}

func TestDatabase_Propagation(t *testing.T) {
	db, _, refs, br := buildScan(t)
	assert.Positive(t, br.PropagationChanges)

	cd, _ := db.Entry(refs["cd"])
	assert.Equal(t, []int64{refs["u"]}, cd.Units.Sorted())
	assert.Equal(t, []int64{refs["p"]}, cd.Projects.Sorted())
	assert.Equal(t, []int64{refs["s"]}, cd.Subjects.Sorted())
	assert.Equal(t, []int64{refs["i"]}, cd.Items.Sorted())
	assert.Equal(t, []int64{4}, cd.VariantTypes.Sorted())

	item, _ := db.Entry(refs["i"])
	assert.True(t, item.Items.Has(refs["i"]), "own identity")
	assert.Equal(t, []int64{refs["s"]}, item.Subjects.Sorted())
	assert.Equal(t, []int64{2}, item.CaptureMethods.Sorted())
	assert.Equal(t, []int64{1}, item.ModelPurposes.Sorted())

	unit, _ := db.Entry(refs["u"])
	assert.Equal(t, []model.ObjectType{
		model.ObjectTypeProject, model.ObjectTypeSubject, model.ObjectTypeItem,
		model.ObjectTypeCaptureData, model.ObjectTypeModel, model.ObjectTypeAsset,
	}, unit.DescendantTypes.Types())
	assert.Equal(t, []int64{7}, unit.ModelFileTypes.Sorted())
	assert.Equal(t, []int64{4}, unit.VariantTypes.Sorted())
	assert.Empty(t, unit.Projects)

	mesh, _ := db.Entry(refs["m"])
	assert.Empty(t, mesh.CaptureMethods, "attributes only flow upwards")
	assert.Equal(t, []int64{refs["i"]}, mesh.Items.Sorted())

	raw, _ := db.Entry(refs["raw"])
	assert.Equal(t, []int64{refs["u"]}, raw.Units.Sorted())
}

func TestDatabase_PropagationIsIdempotent(t *testing.T) {
	db, _, _, _ := buildScan(t)
	assert.Zero(t, db.Propagate(context.Background()))
	assert.Zero(t, db.Propagate(context.Background()))
}

// resetDerived clears all propagated state and reloads per-object attributes.
func resetDerived(t *testing.T, db *Database) {
	t.Helper()
	db.mu.Lock()
	for _, e := range db.entries {
		fresh := newEntry(e.ID, e.Type)
		fresh.Parents, fresh.Children = e.Parents, e.Children
		e.Units, e.Projects, e.Subjects, e.Items = fresh.Units, fresh.Projects, fresh.Subjects, fresh.Items
		e.CaptureMethods, e.VariantTypes = fresh.CaptureMethods, fresh.VariantTypes
		e.ModelPurposes, e.ModelFileTypes = fresh.ModelPurposes, fresh.ModelFileTypes
		e.DescendantTypes = model.TypeSet{}
	}
	db.mu.Unlock()
	require.NoError(t, db.extractAttributes(context.Background()))
}

func TestDatabase_PropagationOrderIndependent(t *testing.T) {
	forward, _, _, _ := buildScan(t)
	reverse, _, _, _ := buildScan(t)
	resetDerived(t, reverse)

	reverse.mu.Lock()
	order := reverse.sortedIDsLocked()
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	changes := reverse.propagateLocked(context.Background(), order)
	reverse.mu.Unlock()
	assert.Positive(t, changes)

	want, err := json.Marshal(forward.Snapshot().Entries)
	require.NoError(t, err)
	got, err := json.Marshal(reverse.Snapshot().Entries)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestDatabase_SharedChildRecordsEveryParent(t *testing.T) {
	s := memstore.New()
	i1 := s.AddObject(&model.Item{Name: "left"}).ID
	i2 := s.AddObject(&model.Item{Name: "right"}).ID
	m := s.AddObject(&model.Model{Name: "merged"}).ID
	s.Link(i1, m)
	s.Link(i2, m)

	db, err := NewDatabase(s, cache.NewSystemObjectCache(s))
	require.NoError(t, err)
	br, err := db.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, br.Traversals)
	assert.Equal(t, 3, s.Calls("ResolveObject"))
	assert.Len(t, db.Parents(m), 2)

	mesh, _ := db.Entry(m)
	assert.Equal(t, []int64{i1, i2}, mesh.Items.Sorted())
}

func TestDatabase_PushCapKeepsEveryEdge(t *testing.T) {
	s := memstore.New()
	unit := s.AddObject(&model.Unit{Name: "NMNH"})
	subjects := make([]int64, 600)
	for i := range subjects {
		subjects[i] = s.AddObject(&model.Subject{Name: fmt.Sprintf("Subject %03d", i)}).ID
		s.Link(unit.ID, subjects[i])
	}

	db, err := NewDatabase(s, nil)
	require.NoError(t, err)
	br, err := db.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 601, br.ObjectsExpanded)
	assert.Zero(t, br.InvalidHierarchy)
	assert.Len(t, db.Children(unit.ID), 600)
	assert.Len(t, db.Descendants(unit.ID, 0), 600)

	for _, id := range []int64{subjects[0], subjects[499], subjects[599]} {
		assert.Equal(t, []model.IDAndType{{ID: unit.ID, Type: model.ObjectTypeUnit}}, db.Parents(id))
		e, ok := db.Entry(id)
		require.True(t, ok)
		assert.True(t, e.Units.Has(unit.ID), "subject %d", id)
	}
}

func TestDatabase_ListingFailure(t *testing.T) {
	s, _ := loadFixture(t, scanFixture)
	boom := errors.New("table locked")
	s.FailOn("ListObjects", boom)

	db, err := NewDatabase(s, nil)
	require.NoError(t, err)
	br, err := db.Build(context.Background())
	require.NoError(t, err)

	assert.Len(t, br.Errors, len(model.AllObjectTypes()))
	for _, e := range br.Errors {
		assert.ErrorIs(t, e, ErrListingFailed)
		assert.ErrorIs(t, e, boom)
	}
	assert.Zero(t, db.Len())
}

func TestDatabase_PerObjectFailure(t *testing.T) {
	s, _ := loadFixture(t, scanFixture)
	s.FailOn("ResolveObject", errors.New("row decode failed"))

	db, err := NewDatabase(s, nil)
	require.NoError(t, err)
	br, err := db.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, br.ObjectsFailed)
	assert.Zero(t, br.ObjectsExpanded)
}

func TestDatabase_Cancelled(t *testing.T) {
	s, _ := loadFixture(t, scanFixture)
	db, err := NewDatabase(s, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = db.Build(ctx)
	assert.ErrorIs(t, err, ErrBuildCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDatabase_Descendants(t *testing.T) {
	db, _, refs, _ := buildScan(t)

	assert.Equal(t, []int64{refs["p"], refs["s"], refs["i"], refs["cd"], refs["m"], refs["raw"]},
		db.Descendants(refs["u"], 0))
	assert.Equal(t, []int64{refs["p"], refs["s"]}, db.Descendants(refs["u"], 1))
	assert.Empty(t, db.Descendants(refs["raw"], 0))
}

func TestDatabase_SnapshotRestore(t *testing.T) {
	db, s, refs, _ := buildScan(t)

	data, err := json.Marshal(db.Snapshot())
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	restored, err := NewDatabase(s, nil)
	require.NoError(t, err)
	restored.Restore(&snap)

	assert.Equal(t, db.EpochID(), restored.EpochID())
	assert.Equal(t, db.Len(), restored.Len())
	assert.Equal(t, db.Children(refs["u"]), restored.Children(refs["u"]))
	cd, ok := restored.Entry(refs["cd"])
	require.True(t, ok)
	assert.True(t, cd.Units.Has(refs["u"]))
	assert.Nil(t, cd.Object())

	typ, expanded := restored.expandedType(refs["m"])
	assert.True(t, expanded)
	assert.Equal(t, model.ObjectTypeModel, typ)
	assert.Zero(t, restored.Propagate(context.Background()))
}

func TestNewDatabase_NilRepository(t *testing.T) {
	_, err := NewDatabase(nil, nil)
	assert.ErrorIs(t, err, ErrNilRepository)
}

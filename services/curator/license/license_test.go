// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package license

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Curator/services/curator/cache"
	"github.com/AleutianAI/Curator/services/curator/graph"
	"github.com/AleutianAI/Curator/services/curator/model"
	"github.com/AleutianAI/Curator/services/curator/store/memstore"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const chainFixture = `
objects:
  - {ref: u, type: unit, name: NMNH}
  - {ref: p, type: project, name: Skulls}
  - {ref: s, type: subject, name: Skull}
  - {ref: i, type: item, name: Skull Scan}
  - {ref: cd, type: capture_data, name: Photogrammetry}
relations:
  - {master: u, derived: p}
  - {master: p, derived: s}
  - {master: s, derived: i}
  - {master: i, derived: cd}
licenses:
  - {id: 1, name: Open, restrict_level: 1}
  - {id: 2, name: Internal, restrict_level: 2}
  - {id: 5, name: Restricted, restrict_level: 5}
  - {id: 9, name: Embargo, restrict_level: 9}
assignments:
  - {license: 2, object: p}
`

type scenario struct {
	store    *memstore.Store
	refs     map[string]int64
	ids      *cache.SystemObjectCache
	licenses *cache.LicenseCache
	resolver *Resolver
	manager  *Manager
}

func newScenario(t *testing.T) *scenario {
	t.Helper()
	f, err := memstore.ParseFixture([]byte(chainFixture))
	require.NoError(t, err)
	s := memstore.New()
	refs, err := f.Apply(s)
	require.NoError(t, err)

	ids := cache.NewSystemObjectCache(s)
	licenses := cache.NewLicenseCache(s)
	r, err := NewResolver(s, ids, licenses, s, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return &scenario{
		store:    s,
		refs:     refs,
		ids:      ids,
		licenses: licenses,
		resolver: r,
		manager:  NewManager(r),
	}
}

func (sc *scenario) assign(licenseID int64, ref string, end *time.Time) *model.LicenseAssignment {
	id := sc.refs[ref]
	return sc.store.AddAssignment(&model.LicenseAssignment{LicenseID: licenseID, SystemObjectID: &id, DateEnd: end})
}

func TestResolve_MostRestrictiveAncestor(t *testing.T) {
	sc := newScenario(t)

	res, err := sc.resolver.Resolve(context.Background(), sc.refs["cd"])
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, int64(2), res.License.ID)
	assert.True(t, res.Inherited)
	assert.Equal(t, sc.refs["p"], res.Source)
}

func TestResolve_DirectPrecedence(t *testing.T) {
	sc := newScenario(t)
	sc.assign(5, "p", nil)
	sc.assign(2, "cd", nil)

	res, err := sc.resolver.Resolve(context.Background(), sc.refs["cd"])
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, int64(2), res.License.ID)
	assert.False(t, res.Inherited)
	assert.Equal(t, sc.refs["cd"], res.Source)
}

func TestResolve_HighestActiveDirectWinsFirstOnTies(t *testing.T) {
	sc := newScenario(t)
	sc.assign(5, "cd", nil)
	first := sc.assign(9, "cd", nil)
	sc.assign(9, "cd", nil)

	res, err := sc.resolver.Resolve(context.Background(), sc.refs["cd"])
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.License.ID)
	assert.Equal(t, first.ID, res.Assignment.ID)
}

func TestResolve_IgnoresEndedAssignments(t *testing.T) {
	sc := newScenario(t)
	ended := testNow.Add(-time.Hour)
	sc.assign(9, "cd", &ended)

	res, err := sc.resolver.Resolve(context.Background(), sc.refs["cd"])
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.License.ID)
	assert.True(t, res.Inherited)
}

func TestResolve_MostRestrictiveParent(t *testing.T) {
	sc := newScenario(t)
	other := sc.store.AddObject(&model.Item{Name: "Other Scan"}).ID
	mesh := sc.store.AddObject(&model.Model{Name: "Merged"}).ID
	sc.store.Link(sc.refs["cd"], mesh)
	sc.store.Link(other, mesh)
	sc.store.AddAssignment(&model.LicenseAssignment{LicenseID: 9, SystemObjectID: &other})

	res, err := sc.resolver.Resolve(context.Background(), mesh)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, int64(9), res.License.ID)
	assert.True(t, res.Inherited)
	assert.Equal(t, other, res.Source)
}

func TestResolve_NearestDirectHidesHigherAncestor(t *testing.T) {
	sc := newScenario(t)
	sc.assign(1, "i", nil)

	res, err := sc.resolver.Resolve(context.Background(), sc.refs["cd"])
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.License.ID)
	assert.Equal(t, sc.refs["i"], res.Source)
}

func TestResolve_CachedSecondCall(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()

	first, err := sc.resolver.Resolve(ctx, sc.refs["cd"])
	require.NoError(t, err)
	sc.store.ResetCalls()

	second, err := sc.resolver.Resolve(ctx, sc.refs["cd"])
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Zero(t, sc.store.TotalCalls())
}

func TestResolve_Unlicensed(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()

	res, err := sc.resolver.Resolve(ctx, sc.refs["u"])
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Zero(t, sc.licenses.Resolutions())

	res, err = sc.resolver.Resolve(ctx, 4040)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolve_CycleTerminates(t *testing.T) {
	sc := newScenario(t)
	m1 := sc.store.AddObject(&model.Model{}).ID
	m2 := sc.store.AddObject(&model.Model{}).ID
	sc.store.Link(m1, m2)
	sc.store.Link(m2, m1)

	res, err := sc.resolver.Resolve(context.Background(), m1)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolve_StoreFailure(t *testing.T) {
	sc := newScenario(t)
	boom := errors.New("assignments unavailable")
	sc.store.FailOn("ListLicenseAssignments", boom)

	_, err := sc.resolver.Resolve(context.Background(), sc.refs["cd"])
	assert.ErrorIs(t, err, boom)
}

func TestResolve_WithDatabase(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	db, err := graph.NewDatabase(sc.store, sc.ids)
	require.NoError(t, err)
	_, err = db.Build(ctx)
	require.NoError(t, err)
	sc.store.ResetCalls()

	res, err := sc.resolver.Resolve(ctx, sc.refs["cd"], WithDatabase(db))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.License.ID)
	assert.Zero(t, sc.store.Calls("ListRelated"))
	assert.Zero(t, sc.store.Calls("ResolveObject"))

	_, err = sc.manager.ClearAssignment(ctx, sc.refs["p"], false, WithDatabase(db))
	require.NoError(t, err)
	assert.Zero(t, sc.store.Calls("ResolveObject"))

	res, err = sc.resolver.Resolve(ctx, sc.refs["cd"], WithDatabase(db))
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolve_WithDatabaseBeyondPushCap(t *testing.T) {
	s := memstore.New()
	unit := s.AddObject(&model.Unit{Name: "NMNH"})
	var last int64
	for i := 0; i < 600; i++ {
		last = s.AddObject(&model.Subject{Name: "Skull"}).ID
		s.Link(unit.ID, last)
	}
	lic := s.AddLicense(&model.License{Name: "Internal", RestrictLevel: 2})
	unitID := unit.ID
	s.AddAssignment(&model.LicenseAssignment{LicenseID: lic.ID, SystemObjectID: &unitID})

	ctx := context.Background()
	ids := cache.NewSystemObjectCache(s)
	licenses := cache.NewLicenseCache(s)
	r, err := NewResolver(s, ids, licenses, s, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	db, err := graph.NewDatabase(s, ids)
	require.NoError(t, err)
	_, err = db.Build(ctx)
	require.NoError(t, err)

	res, err := r.Resolve(ctx, last, WithDatabase(db))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Inherited)
	assert.Equal(t, unit.ID, res.Source)
	assert.Equal(t, lic.ID, res.License.ID)

	n, err := NewManager(r).ClearAssignment(ctx, unit.ID, false, WithDatabase(db))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, cached := licenses.Resolution(ctx, last)
	assert.False(t, cached)
}

func TestClearAssignment_InvalidatesDescendants(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()

	res, err := sc.resolver.Resolve(ctx, sc.refs["cd"])
	require.NoError(t, err)
	require.NotNil(t, res)
	_, cached := sc.licenses.Resolution(ctx, sc.refs["cd"])
	require.True(t, cached)

	n, err := sc.manager.ClearAssignment(ctx, sc.refs["p"], false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, cached = sc.licenses.Resolution(ctx, sc.refs["cd"])
	assert.False(t, cached)

	res, err = sc.resolver.Resolve(ctx, sc.refs["cd"])
	require.NoError(t, err)
	assert.Nil(t, res)

	assignments, err := sc.store.ListLicenseAssignments(ctx, sc.refs["p"])
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	require.NotNil(t, assignments[0].DateEnd)
	assert.True(t, assignments[0].DateEnd.Equal(testNow))
}

func TestClearAssignment_ClearAll(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	ended := testNow.Add(-24 * time.Hour)
	sc.assign(9, "p", &ended)

	n, err := sc.manager.ClearAssignment(ctx, sc.refs["p"], false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = sc.manager.ClearAssignment(ctx, sc.refs["p"], true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSetAssignment(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()

	_, err := sc.resolver.Resolve(ctx, sc.refs["cd"])
	require.NoError(t, err)

	a, err := sc.manager.SetAssignment(ctx, sc.refs["i"], 9, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.NotZero(t, a.ID)

	direct, ok := sc.licenses.Resolution(ctx, sc.refs["i"])
	require.True(t, ok)
	assert.Equal(t, int64(9), direct.License.ID)
	assert.False(t, direct.Inherited)

	res, err := sc.resolver.Resolve(ctx, sc.refs["cd"])
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.License.ID)
	assert.True(t, res.Inherited)

	_, err = sc.manager.SetAssignment(ctx, sc.refs["i"], 1, nil, nil)
	require.NoError(t, err)
	res, err = sc.resolver.Resolve(ctx, sc.refs["cd"])
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.License.ID)

	active, err := sc.resolver.Direct(ctx, sc.refs["i"])
	require.NoError(t, err)
	assert.Equal(t, int64(1), active.License.ID)
}

func TestSetAssignment_InactiveWindow(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	start := testNow.Add(24 * time.Hour)

	a, err := sc.manager.SetAssignment(ctx, sc.refs["p"], 5, &start, nil)
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Zero(t, sc.store.Calls("CreateLicenseAssignment"))

	res, err := sc.resolver.Resolve(ctx, sc.refs["cd"])
	require.NoError(t, err)
	assert.Nil(t, res, "existing assignment was ended")
}

func TestSetAssignment_UnknownLicense(t *testing.T) {
	sc := newScenario(t)
	_, err := sc.manager.SetAssignment(context.Background(), sc.refs["p"], 77, nil, nil)
	assert.ErrorIs(t, err, ErrLicenseNotFound)
}

func TestNewResolver_RequiresCollaborators(t *testing.T) {
	_, err := NewResolver(nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNilStore)
}

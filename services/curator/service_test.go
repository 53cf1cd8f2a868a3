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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Curator/services/curator/graph"
	"github.com/AleutianAI/Curator/services/curator/model"
	"github.com/AleutianAI/Curator/services/curator/storage/badger"
	"github.com/AleutianAI/Curator/services/curator/store/memstore"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const serviceFixture = `
objects:
  - {ref: u, type: unit, name: NMNH}
  - {ref: s, type: subject, name: Skull, unit: u}
  - {ref: i, type: item, name: Skull Scan}
  - {ref: m2, type: model, name: Beta}
  - {ref: cd, type: capture_data, name: Photogrammetry, capture_method: 2}
  - {ref: m1, type: model, name: Alpha}
relations:
  - {master: u, derived: s}
  - {master: s, derived: i}
  - {master: i, derived: m2}
  - {master: i, derived: cd}
  - {master: i, derived: m1}
licenses:
  - {id: 1, name: CC0, restrict_level: 10}
  - {id: 2, name: Restricted, restrict_level: 50}
assignments:
  - {license: 2, object: s}
`

func newTestService(t *testing.T, cfg ServiceConfig, opts ...Option) (*Service, *memstore.Store, map[string]int64) {
	t.Helper()
	f, err := memstore.ParseFixture([]byte(serviceFixture))
	require.NoError(t, err)
	mem := memstore.New()
	refs, err := f.Apply(mem)
	require.NoError(t, err)

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	svc, err := NewService(cfg, mem, mem, opts...)
	require.NoError(t, err)
	return svc, mem, refs
}

func TestNewService_NilCollaborators(t *testing.T) {
	_, err := NewService(DefaultServiceConfig(), nil, memstore.New())
	assert.ErrorIs(t, err, ErrNilRepository)
}

func TestService_ChildrenOfOrdering(t *testing.T) {
	svc, _, refs := newTestService(t, DefaultServiceConfig())
	ctx := context.Background()

	want := []Child{
		{ID: refs["cd"], Type: model.ObjectTypeCaptureData, Name: "Photogrammetry"},
		{ID: refs["m1"], Type: model.ObjectTypeModel, Name: "Alpha"},
		{ID: refs["m2"], Type: model.ObjectTypeModel, Name: "Beta"},
	}

	viaTraversal, err := svc.ChildrenOf(ctx, refs["i"])
	require.NoError(t, err)
	assert.Equal(t, want, viaTraversal)

	_, err = svc.Rebuild(ctx)
	require.NoError(t, err)
	viaDatabase, err := svc.ChildrenOf(ctx, refs["i"])
	require.NoError(t, err)
	assert.Equal(t, want, viaDatabase)

	leaf, err := svc.ChildrenOf(ctx, refs["m1"])
	require.NoError(t, err)
	assert.NotNil(t, leaf)
	assert.Empty(t, leaf)

	_, err = svc.ChildrenOf(ctx, 9999)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestService_RebuildInstallsEpoch(t *testing.T) {
	svc, _, refs := newTestService(t, DefaultServiceConfig())
	assert.Nil(t, svc.Database())
	_, ok := svc.GraphEntry(refs["cd"])
	assert.False(t, ok)

	br, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	require.NotNil(t, svc.Database())
	assert.Equal(t, br.EpochID, svc.Database().EpochID())
	assert.Equal(t, 6, svc.Database().Len())

	e, ok := svc.GraphEntry(refs["cd"])
	require.True(t, ok)
	assert.True(t, e.Units.Has(refs["u"]))
	assert.True(t, e.Items.Has(refs["i"]))
}

func TestService_RebuildRateLimit(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.RebuildPerMinute = 1
	svc, _, _ := newTestService(t, cfg)
	ctx := context.Background()

	_, err := svc.Rebuild(ctx)
	require.NoError(t, err)
	first := svc.Database()

	_, err = svc.Rebuild(ctx)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Same(t, first, svc.Database())

	svc.SetRebuildLimit(0)
	_, err = svc.Rebuild(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, svc.Database())
}

func TestService_RebuildFailureKeepsEpoch(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultServiceConfig())
	ctx := context.Background()
	_, err := svc.Rebuild(ctx)
	require.NoError(t, err)
	before := svc.Database()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.Rebuild(cancelled)
	assert.ErrorIs(t, err, graph.ErrBuildCancelled)
	assert.Same(t, before, svc.Database())
}

func TestService_SnapshotRoundTrip(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	snaps, err := badger.NewSnapshotStore(db)
	require.NoError(t, err)

	svc, _, refs := newTestService(t, DefaultServiceConfig(), WithSnapshotStore(snaps))
	ctx := context.Background()
	br, err := svc.Rebuild(ctx)
	require.NoError(t, err)

	restarted, _, _ := newTestService(t, DefaultServiceConfig(), WithSnapshotStore(snaps))
	meta, err := restarted.RestoreLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, br.EpochID, meta.EpochID)
	assert.Equal(t, br.EpochID, restarted.Database().EpochID())

	e, ok := restarted.GraphEntry(refs["s"])
	require.True(t, ok)
	assert.Equal(t, "Skull", e.Name)
	assert.True(t, e.DescendantTypes.Has(model.ObjectTypeModel))

	bare, _, _ := newTestService(t, DefaultServiceConfig())
	_, err = bare.RestoreLatest(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshotStore)
}

func TestService_Integrity(t *testing.T) {
	svc, _, refs := newTestService(t, DefaultServiceConfig())

	report, err := svc.Integrity(context.Background(), refs["i"])
	require.NoError(t, err)
	assert.True(t, report.ValidHierarchy)
	assert.True(t, report.NoCycles)
	assert.False(t, report.Truncated)
	assert.Equal(t, 1, report.Counts[model.ObjectTypeUnit])
	assert.Equal(t, 2, report.Counts[model.ObjectTypeModel])

	_, err = svc.Integrity(context.Background(), 4242)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestService_LicenseLifecycle(t *testing.T) {
	svc, _, refs := newTestService(t, DefaultServiceConfig())
	ctx := context.Background()
	cd := refs["cd"]

	res, err := svc.ResolveLicense(ctx, cd)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, int64(2), res.License.ID)
	assert.True(t, res.Inherited)

	a, err := svc.SetLicense(ctx, cd, 1, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, a)

	res, err = svc.ResolveLicense(ctx, cd)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.License.ID)
	assert.False(t, res.Inherited)

	n, err := svc.ClearLicense(ctx, cd, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err = svc.ResolveLicense(ctx, cd)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.License.ID)
}

func TestService_WarmAndFlush(t *testing.T) {
	svc, mem, _ := newTestService(t, DefaultServiceConfig())
	ctx := context.Background()

	require.NoError(t, svc.Warm(ctx))
	require.NoError(t, svc.Warm(ctx))
	assert.Equal(t, 1, mem.Calls("ListSystemObjects"))
	assert.Equal(t, 1, mem.Calls("ListLicenses"))

	require.NoError(t, svc.FlushCaches(ctx))
	assert.Equal(t, 2, mem.Calls("ListSystemObjects"))
	assert.Equal(t, 2, mem.Calls("ListLicenses"))
}

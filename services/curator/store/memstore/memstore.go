// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memstore is an in-memory implementation of store.Repository and
// store.LicenseStore.
//
// Every read and write is counted per method, so tests can assert how many
// fetches a cache or traversal issued. Failures can be injected per method
// with FailOn.
//
// Thread Safety:
//
//	Store is safe for concurrent use.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/Curator/services/curator/model"
	"github.com/AleutianAI/Curator/services/curator/store"
)

var (
	_ store.Repository   = (*Store)(nil)
	_ store.LicenseStore = (*Store)(nil)
)

// Store holds repository records in maps.
type Store struct {
	mu            sync.RWMutex
	objects       map[model.ObjectKey]model.Object
	systemObjects map[int64]*model.SystemObject
	byKey         map[model.ObjectKey]int64
	xrefs         []model.SystemObjectXref
	captureFiles  []*model.CaptureDataFile
	licenses      map[int64]*model.License
	assignments   map[int64]*model.LicenseAssignment

	nextTyped      [model.NumObjectTypes]int64
	nextSO         int64
	nextXref       int64
	nextFile       int64
	nextAssignment int64

	callsMu  sync.Mutex
	calls    map[string]int
	failures map[string]error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		objects:       make(map[model.ObjectKey]model.Object),
		systemObjects: make(map[int64]*model.SystemObject),
		byKey:         make(map[model.ObjectKey]int64),
		licenses:      make(map[int64]*model.License),
		assignments:   make(map[int64]*model.LicenseAssignment),
		calls:         make(map[string]int),
		failures:      make(map[string]error),
	}
}

// -----------------------------------------------------------------------------
// Instrumentation
// -----------------------------------------------------------------------------

// Calls returns how many times method was invoked.
func (s *Store) Calls(method string) int {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	return s.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (s *Store) TotalCalls() int {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// ResetCalls zeroes all call counters.
func (s *Store) ResetCalls() {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	s.calls = make(map[string]int)
}

// FailOn makes every later call to method return err. A nil err clears it.
func (s *Store) FailOn(method string, err error) {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

func (s *Store) record(method string) error {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	s.calls[method]++
	return s.failures[method]
}

// -----------------------------------------------------------------------------
// Population
// -----------------------------------------------------------------------------

// AddObject stores o and wraps it in a new SystemObject.
//
// A zero typed id is replaced with the next id for the type. The returned
// SystemObject carries the assigned universal id.
func (s *Store) AddObject(o model.Object) *model.SystemObject {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := o.ObjectType()
	id := o.TypedID()
	if id == 0 {
		s.nextTyped[t]++
		id = s.nextTyped[t]
		setTypedID(o, id)
	} else if id > s.nextTyped[t] {
		s.nextTyped[t] = id
	}

	s.nextSO++
	so := &model.SystemObject{ID: s.nextSO, Type: t, TypedID: id}
	key := so.Key()
	s.objects[key] = o
	s.systemObjects[so.ID] = so
	s.byKey[key] = so.ID
	return so
}

// Retire marks the object with universal id id as retired.
func (s *Store) Retire(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if so, ok := s.systemObjects[id]; ok {
		so.Retired = true
	}
}

// Link records an explicit master/derived relationship.
func (s *Store) Link(masterID, derivedID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextXref++
	s.xrefs = append(s.xrefs, model.SystemObjectXref{ID: s.nextXref, MasterID: masterID, DerivedID: derivedID})
}

// AddCaptureDataFile records a capture data file row.
func (s *Store) AddCaptureDataFile(f *model.CaptureDataFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFile++
	if f.ID == 0 {
		f.ID = s.nextFile
	}
	s.captureFiles = append(s.captureFiles, f)
}

// AddLicense stores a license. A zero ID is replaced with the next free id.
func (s *Store) AddLicense(l *model.License) *model.License {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		l.ID = int64(len(s.licenses) + 1)
		for s.licenses[l.ID] != nil {
			l.ID++
		}
	}
	cp := *l
	s.licenses[l.ID] = &cp
	return l
}

// AddAssignment stores a license assignment without counting a call.
func (s *Store) AddAssignment(a *model.LicenseAssignment) *model.LicenseAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertAssignment(a)
	return a
}

func (s *Store) insertAssignment(a *model.LicenseAssignment) {
	s.nextAssignment++
	if a.ID == 0 {
		a.ID = s.nextAssignment
	}
	cp := *a
	s.assignments[a.ID] = &cp
}

// Objects returns every stored object in universal id order.
func (s *Store) Objects() []*model.SystemObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.SystemObject, 0, len(s.systemObjects))
	for _, so := range s.systemObjects {
		cp := *so
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Xrefs returns the explicit relationships in insertion order.
func (s *Store) Xrefs() []model.SystemObjectXref {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.SystemObjectXref(nil), s.xrefs...)
}

// -----------------------------------------------------------------------------
// store.IdentityReader
// -----------------------------------------------------------------------------

// ListSystemObjects implements store.IdentityReader.
func (s *Store) ListSystemObjects(ctx context.Context) ([]*model.SystemObject, error) {
	if err := s.record("ListSystemObjects"); err != nil {
		return nil, err
	}
	return s.Objects(), nil
}

// GetSystemObject implements store.IdentityReader.
func (s *Store) GetSystemObject(ctx context.Context, id int64) (*model.SystemObject, error) {
	if err := s.record("GetSystemObject"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	so, ok := s.systemObjects[id]
	if !ok {
		return nil, fmt.Errorf("system object %d: %w", id, store.ErrNotFound)
	}
	cp := *so
	return &cp, nil
}

// GetSystemObjectByKey implements store.IdentityReader.
func (s *Store) GetSystemObjectByKey(ctx context.Context, key model.ObjectKey) (*model.SystemObject, error) {
	if err := s.record("GetSystemObjectByKey"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("system object for %s: %w", key, store.ErrNotFound)
	}
	cp := *s.systemObjects[id]
	return &cp, nil
}

// -----------------------------------------------------------------------------
// store.ObjectReader
// -----------------------------------------------------------------------------

// ResolveObject implements store.ObjectReader.
func (s *Store) ResolveObject(ctx context.Context, id int64) (*model.SystemObject, model.Object, error) {
	if err := s.record("ResolveObject"); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	so, ok := s.systemObjects[id]
	if !ok {
		return nil, nil, fmt.Errorf("system object %d: %w", id, store.ErrNotFound)
	}
	obj, ok := s.objects[so.Key()]
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", so.Key(), store.ErrNotFound)
	}
	cp := *so
	return &cp, obj, nil
}

// ListObjects implements store.ObjectReader.
func (s *Store) ListObjects(ctx context.Context, t model.ObjectType) ([]model.Object, error) {
	if err := s.record("ListObjects"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Object, 0)
	for key, o := range s.objects {
		if key.Type == t {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypedID() < out[j].TypedID() })
	return out, nil
}

// GetObject implements store.ObjectReader.
func (s *Store) GetObject(ctx context.Context, key model.ObjectKey) (model.Object, error) {
	if err := s.record("GetObject"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, store.ErrNotFound)
	}
	return o, nil
}

// ListSubjectsByUnit implements store.ObjectReader.
func (s *Store) ListSubjectsByUnit(ctx context.Context, unitID int64) ([]*model.Subject, error) {
	if err := s.record("ListSubjectsByUnit"); err != nil {
		return nil, err
	}
	return collect(s, model.ObjectTypeSubject, func(o *model.Subject) bool { return o.UnitID == unitID }), nil
}

// ListActorsByUnit implements store.ObjectReader.
func (s *Store) ListActorsByUnit(ctx context.Context, unitID int64) ([]*model.Actor, error) {
	if err := s.record("ListActorsByUnit"); err != nil {
		return nil, err
	}
	return collect(s, model.ObjectTypeActor, func(o *model.Actor) bool {
		return o.UnitID != nil && *o.UnitID == unitID
	}), nil
}

// ListProjectDocumentation implements store.ObjectReader.
func (s *Store) ListProjectDocumentation(ctx context.Context, projectID int64) ([]*model.ProjectDocumentation, error) {
	if err := s.record("ListProjectDocumentation"); err != nil {
		return nil, err
	}
	return collect(s, model.ObjectTypeProjectDocumentation, func(o *model.ProjectDocumentation) bool {
		return o.ProjectID == projectID
	}), nil
}

// ListAssetsByOwner implements store.ObjectReader.
func (s *Store) ListAssetsByOwner(ctx context.Context, ownerID int64) ([]*model.Asset, error) {
	if err := s.record("ListAssetsByOwner"); err != nil {
		return nil, err
	}
	return collect(s, model.ObjectTypeAsset, func(o *model.Asset) bool {
		return o.OwnerID != nil && *o.OwnerID == ownerID
	}), nil
}

// ListAssetVersions implements store.ObjectReader.
func (s *Store) ListAssetVersions(ctx context.Context, assetID int64) ([]*model.AssetVersion, error) {
	if err := s.record("ListAssetVersions"); err != nil {
		return nil, err
	}
	return collect(s, model.ObjectTypeAssetVersion, func(o *model.AssetVersion) bool {
		return o.AssetID == assetID
	}), nil
}

// ListCaptureDataFiles implements store.ObjectReader.
func (s *Store) ListCaptureDataFiles(ctx context.Context, captureDataID int64) ([]*model.CaptureDataFile, error) {
	if err := s.record("ListCaptureDataFiles"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.CaptureDataFile, 0)
	for _, f := range s.captureFiles {
		if f.CaptureDataID == captureDataID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

// collect returns objects of type t whose concrete type is T and which match
// keep, ordered by typed id.
func collect[T model.Object](s *Store, t model.ObjectType, keep func(T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0)
	for key, o := range s.objects {
		if key.Type != t {
			continue
		}
		typed, ok := o.(T)
		if ok && keep(typed) {
			out = append(out, typed)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypedID() < out[j].TypedID() })
	return out
}

// -----------------------------------------------------------------------------
// store.RelationReader
// -----------------------------------------------------------------------------

// ListRelated implements store.RelationReader.
func (s *Store) ListRelated(ctx context.Context, id int64, rel store.Relation) ([]int64, error) {
	if err := s.record("ListRelated"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, 0)
	for _, x := range s.xrefs {
		switch {
		case rel == store.RelationDerived && x.MasterID == id:
			out = append(out, x.DerivedID)
		case rel == store.RelationMasters && x.DerivedID == id:
			out = append(out, x.MasterID)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// store.LicenseStore
// -----------------------------------------------------------------------------

// ListLicenses implements store.LicenseStore.
func (s *Store) ListLicenses(ctx context.Context) ([]*model.License, error) {
	if err := s.record("ListLicenses"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.License, 0, len(s.licenses))
	for _, l := range s.licenses {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetLicense implements store.LicenseStore.
func (s *Store) GetLicense(ctx context.Context, id int64) (*model.License, error) {
	if err := s.record("GetLicense"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.licenses[id]
	if !ok {
		return nil, fmt.Errorf("license %d: %w", id, store.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

// ListLicenseAssignments implements store.LicenseStore.
func (s *Store) ListLicenseAssignments(ctx context.Context, systemObjectID int64) ([]*model.LicenseAssignment, error) {
	if err := s.record("ListLicenseAssignments"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.LicenseAssignment, 0)
	for _, a := range s.assignments {
		if a.SystemObjectID != nil && *a.SystemObjectID == systemObjectID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateLicenseAssignment implements store.LicenseStore.
func (s *Store) CreateLicenseAssignment(ctx context.Context, a *model.LicenseAssignment) error {
	if err := s.record("CreateLicenseAssignment"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = 0
	s.insertAssignment(a)
	return nil
}

// UpdateLicenseAssignment implements store.LicenseStore.
func (s *Store) UpdateLicenseAssignment(ctx context.Context, a *model.LicenseAssignment) error {
	if err := s.record("UpdateLicenseAssignment"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[a.ID]; !ok {
		return fmt.Errorf("license assignment %d: %w", a.ID, store.ErrNotFound)
	}
	cp := *a
	s.assignments[a.ID] = &cp
	return nil
}

// setTypedID writes id into the ID field of the concrete entity.
func setTypedID(o model.Object, id int64) {
	switch v := o.(type) {
	case *model.Unit:
		v.ID = id
	case *model.Project:
		v.ID = id
	case *model.Subject:
		v.ID = id
	case *model.Item:
		v.ID = id
	case *model.CaptureData:
		v.ID = id
	case *model.Model:
		v.ID = id
	case *model.Scene:
		v.ID = id
	case *model.IntermediaryFile:
		v.ID = id
	case *model.ProjectDocumentation:
		v.ID = id
	case *model.Asset:
		v.ID = id
	case *model.AssetVersion:
		v.ID = id
	case *model.Actor:
		v.ID = id
	case *model.Stakeholder:
		v.ID = id
	}
}

// Dump is a point-in-time copy of every record in a Store.
type Dump struct {
	SystemObjects []*model.SystemObject
	Objects       []model.Object
	Xrefs         []model.SystemObjectXref
	CaptureFiles  []*model.CaptureDataFile
	Licenses      []*model.License
	Assignments   []*model.LicenseAssignment
}

// Dump copies out all records, ordered by id. Objects follow the order of
// SystemObjects.
func (s *Store) Dump() Dump {
	d := Dump{SystemObjects: s.Objects(), Xrefs: s.Xrefs()}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, so := range d.SystemObjects {
		d.Objects = append(d.Objects, s.objects[so.Key()])
	}
	for _, f := range s.captureFiles {
		cp := *f
		d.CaptureFiles = append(d.CaptureFiles, &cp)
	}
	for _, l := range s.licenses {
		cp := *l
		d.Licenses = append(d.Licenses, &cp)
	}
	sort.Slice(d.Licenses, func(i, j int) bool { return d.Licenses[i].ID < d.Licenses[j].ID })
	for _, a := range s.assignments {
		cp := *a
		d.Assignments = append(d.Assignments, &cp)
	}
	sort.Slice(d.Assignments, func(i, j int) bool { return d.Assignments[i].ID < d.Assignments[j].ID })
	return d
}

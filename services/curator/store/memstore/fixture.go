// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memstore

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/Curator/services/curator/model"
)

// Fixture is a YAML description of a repository graph.
//
// Objects are named by a ref that other entries use to point at them.
// References may point forward; they are resolved after every object exists.
//
// Example:
//
//	objects:
//	  - {ref: nmnh, type: unit, name: NMNH}
//	  - {ref: skull, type: subject, name: Skull, unit: nmnh}
//	  - {ref: skull-item, type: item, name: Skull Scan}
//	relations:
//	  - {master: skull, derived: skull-item}
//	licenses:
//	  - {id: 1, name: CC0, restrict_level: 10}
//	assignments:
//	  - {license: 1, object: skull}
type Fixture struct {
	Objects      []FixtureObject      `yaml:"objects"`
	Relations    []FixtureRelation    `yaml:"relations"`
	CaptureFiles []FixtureCaptureFile `yaml:"capture_files"`
	Licenses     []FixtureLicense     `yaml:"licenses"`
	Assignments  []FixtureAssignment  `yaml:"assignments"`
}

// FixtureObject describes one entity. Only the fields relevant to Type are read.
type FixtureObject struct {
	Ref           string `yaml:"ref"`
	Type          string `yaml:"type"`
	Name          string `yaml:"name"`
	Retired       bool   `yaml:"retired"`
	Unit          string `yaml:"unit"`
	Project       string `yaml:"project"`
	Owner         string `yaml:"owner"`
	Asset         string `yaml:"asset"`
	Thumbnail     string `yaml:"thumbnail"`
	CaptureMethod int64  `yaml:"capture_method"`
	Purpose       *int64 `yaml:"purpose"`
	FileType      *int64 `yaml:"file_type"`
	Version       int    `yaml:"version"`
}

// FixtureRelation is an explicit master/derived link between two refs.
type FixtureRelation struct {
	Master  string `yaml:"master"`
	Derived string `yaml:"derived"`
}

// FixtureCaptureFile links a capture data ref to an asset ref.
type FixtureCaptureFile struct {
	CaptureData string `yaml:"capture_data"`
	Asset       string `yaml:"asset"`
	VariantType *int64 `yaml:"variant_type"`
}

// FixtureLicense describes a license.
type FixtureLicense struct {
	ID            int64  `yaml:"id"`
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	RestrictLevel int    `yaml:"restrict_level"`
}

// FixtureAssignment attaches a license id to an object ref.
type FixtureAssignment struct {
	License int64      `yaml:"license"`
	Object  string     `yaml:"object"`
	Start   *time.Time `yaml:"start"`
	End     *time.Time `yaml:"end"`
}

// ParseFixture decodes a YAML fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return &f, nil
}

// LoadFixtureFile reads a fixture file into a new Store.
//
// Outputs:
//
//	*Store - The populated store.
//	map[string]int64 - Universal ids keyed by fixture ref.
//	error - Non-nil if the file cannot be read or references are invalid.
func LoadFixtureFile(path string) (*Store, map[string]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading fixture: %w", err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, nil, err
	}
	s := New()
	refs, err := f.Apply(s)
	if err != nil {
		return nil, nil, err
	}
	return s, refs, nil
}

// Apply inserts the fixture into s and returns universal ids by ref.
func (f *Fixture) Apply(s *Store) (map[string]int64, error) {
	refs := make(map[string]int64, len(f.Objects))
	typed := make(map[string]model.Object, len(f.Objects))

	for i, fo := range f.Objects {
		if fo.Ref == "" {
			return nil, fmt.Errorf("object %d: missing ref", i)
		}
		if _, dup := refs[fo.Ref]; dup {
			return nil, fmt.Errorf("object %q: duplicate ref", fo.Ref)
		}
		t, err := model.ParseObjectType(fo.Type)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", fo.Ref, err)
		}
		o := newObject(t, fo)
		so := s.AddObject(o)
		if fo.Retired {
			s.Retire(so.ID)
		}
		refs[fo.Ref] = so.ID
		typed[fo.Ref] = o
	}

	lookup := func(owner, field, ref string) (int64, model.Object, error) {
		id, ok := refs[ref]
		if !ok {
			return 0, nil, fmt.Errorf("object %q: %s references unknown ref %q", owner, field, ref)
		}
		return id, typed[ref], nil
	}

	for _, fo := range f.Objects {
		if err := linkObject(typed[fo.Ref], fo, lookup); err != nil {
			return nil, err
		}
	}

	for _, r := range f.Relations {
		master, _, err := lookup("relation", "master", r.Master)
		if err != nil {
			return nil, err
		}
		derived, _, err := lookup("relation", "derived", r.Derived)
		if err != nil {
			return nil, err
		}
		s.Link(master, derived)
	}

	for _, cf := range f.CaptureFiles {
		_, cd, err := lookup("capture_file", "capture_data", cf.CaptureData)
		if err != nil {
			return nil, err
		}
		_, asset, err := lookup("capture_file", "asset", cf.Asset)
		if err != nil {
			return nil, err
		}
		s.AddCaptureDataFile(&model.CaptureDataFile{
			CaptureDataID: cd.TypedID(),
			AssetID:       asset.TypedID(),
			VariantType:   cf.VariantType,
		})
	}

	for _, fl := range f.Licenses {
		s.AddLicense(&model.License{
			ID:            fl.ID,
			Name:          fl.Name,
			Description:   fl.Description,
			RestrictLevel: fl.RestrictLevel,
		})
	}

	for _, fa := range f.Assignments {
		id, _, err := lookup("assignment", "object", fa.Object)
		if err != nil {
			return nil, err
		}
		soID := id
		s.AddAssignment(&model.LicenseAssignment{
			LicenseID:      fa.License,
			SystemObjectID: &soID,
			DateStart:      fa.Start,
			DateEnd:        fa.End,
		})
	}

	return refs, nil
}

func newObject(t model.ObjectType, fo FixtureObject) model.Object {
	switch t {
	case model.ObjectTypeUnit:
		return &model.Unit{Name: fo.Name}
	case model.ObjectTypeProject:
		return &model.Project{Name: fo.Name}
	case model.ObjectTypeSubject:
		return &model.Subject{Name: fo.Name}
	case model.ObjectTypeItem:
		return &model.Item{Name: fo.Name}
	case model.ObjectTypeCaptureData:
		return &model.CaptureData{Name: fo.Name, CaptureMethod: fo.CaptureMethod}
	case model.ObjectTypeModel:
		return &model.Model{Name: fo.Name, Purpose: fo.Purpose, FileType: fo.FileType}
	case model.ObjectTypeScene:
		return &model.Scene{Name: fo.Name}
	case model.ObjectTypeIntermediaryFile:
		return &model.IntermediaryFile{}
	case model.ObjectTypeProjectDocumentation:
		return &model.ProjectDocumentation{Name: fo.Name}
	case model.ObjectTypeAsset:
		return &model.Asset{FileName: fo.Name}
	case model.ObjectTypeAssetVersion:
		return &model.AssetVersion{FileName: fo.Name, Version: fo.Version}
	case model.ObjectTypeActor:
		return &model.Actor{IndividualName: fo.Name}
	default:
		return &model.Stakeholder{IndividualName: fo.Name}
	}
}

type refLookup func(owner, field, ref string) (int64, model.Object, error)

// linkObject resolves the reference fields of fo into o.
func linkObject(o model.Object, fo FixtureObject, lookup refLookup) error {
	thumb := func() (*int64, error) {
		if fo.Thumbnail == "" {
			return nil, nil
		}
		_, a, err := lookup(fo.Ref, "thumbnail", fo.Thumbnail)
		if err != nil {
			return nil, err
		}
		id := a.TypedID()
		return &id, nil
	}

	var err error
	switch v := o.(type) {
	case *model.Subject:
		if fo.Unit != "" {
			var u model.Object
			if _, u, err = lookup(fo.Ref, "unit", fo.Unit); err != nil {
				return err
			}
			v.UnitID = u.TypedID()
		}
		v.AssetThumbnailID, err = thumb()
	case *model.Item:
		v.AssetThumbnailID, err = thumb()
	case *model.CaptureData:
		v.AssetThumbnailID, err = thumb()
	case *model.Model:
		v.AssetThumbnailID, err = thumb()
	case *model.Scene:
		v.AssetThumbnailID, err = thumb()
	case *model.Actor:
		if fo.Unit != "" {
			var u model.Object
			if _, u, err = lookup(fo.Ref, "unit", fo.Unit); err != nil {
				return err
			}
			id := u.TypedID()
			v.UnitID = &id
		}
	case *model.ProjectDocumentation:
		if fo.Project != "" {
			var p model.Object
			if _, p, err = lookup(fo.Ref, "project", fo.Project); err != nil {
				return err
			}
			v.ProjectID = p.TypedID()
		}
	case *model.Asset:
		if fo.Owner != "" {
			var owner int64
			if owner, _, err = lookup(fo.Ref, "owner", fo.Owner); err != nil {
				return err
			}
			v.OwnerID = &owner
		}
	case *model.AssetVersion:
		if fo.Asset != "" {
			var a model.Object
			if _, a, err = lookup(fo.Ref, "asset", fo.Asset); err != nil {
				return err
			}
			v.AssetID = a.TypedID()
		}
	}
	return err
}

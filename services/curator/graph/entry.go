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
	"encoding/json"
	"sort"

	"github.com/AleutianAI/Curator/services/curator/model"
)

// IDSet is a set of int64 values. It encodes to JSON as a sorted array.
type IDSet map[int64]struct{}

// Add inserts v and reports whether the set changed.
func (s IDSet) Add(v int64) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

// Has reports whether v is in the set.
func (s IDSet) Has(v int64) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []int64 {
	out := make([]int64, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array into the set.
func (s *IDSet) UnmarshalJSON(b []byte) error {
	var vals []int64
	if err := json.Unmarshal(b, &vals); err != nil {
		return err
	}
	set := make(IDSet, len(vals))
	for _, v := range vals {
		set[v] = struct{}{}
	}
	*s = set
	return nil
}

// Entry is the materialized state of one object in a Database.
//
// Description:
//
//	Parents and Children hold every edge recorded by any traversal that
//	touched the object. The remaining sets are filled by propagation:
//	Units, Projects, Subjects, and Items hold the ancestor identities of
//	the object (itself included when it has one of those types), while
//	DescendantTypes and the capture/model attribute sets describe the
//	object and everything below it.
//
// Thread Safety:
//
//	Entries are mutated only while their Database is being built. Callers
//	must treat returned entries as read-only.
type Entry struct {
	ID      int64            `json:"id"`
	Type    model.ObjectType `json:"type"`
	TypedID int64            `json:"typed_id"`
	Retired bool             `json:"retired"`
	Name    string           `json:"name"`

	Parents  map[int64]model.ObjectType `json:"parents"`
	Children map[int64]model.ObjectType `json:"children"`

	Units    IDSet `json:"units"`
	Projects IDSet `json:"projects"`
	Subjects IDSet `json:"subjects"`
	Items    IDSet `json:"items"`

	DescendantTypes model.TypeSet `json:"descendant_types"`
	CaptureMethods  IDSet         `json:"capture_methods"`
	VariantTypes    IDSet         `json:"variant_types"`
	ModelPurposes   IDSet         `json:"model_purposes"`
	ModelFileTypes  IDSet         `json:"model_file_types"`

	object   model.Object
	expanded bool
}

func newEntry(id int64, t model.ObjectType) *Entry {
	return &Entry{
		ID:             id,
		Type:           t,
		Parents:        make(map[int64]model.ObjectType),
		Children:       make(map[int64]model.ObjectType),
		Units:          make(IDSet),
		Projects:       make(IDSet),
		Subjects:       make(IDSet),
		Items:          make(IDSet),
		CaptureMethods: make(IDSet),
		VariantTypes:   make(IDSet),
		ModelPurposes:  make(IDSet),
		ModelFileTypes: make(IDSet),
	}
}

// IDAndType returns the entry's endpoint form.
func (e *Entry) IDAndType() model.IDAndType {
	return model.IDAndType{ID: e.ID, Type: e.Type}
}

// Object returns the typed object captured when the entry was expanded.
// Entries restored from a snapshot have none.
func (e *Entry) Object() model.Object {
	return e.object
}

// State is the information one object contributes to propagation.
type State struct {
	// Source is the object the state was extracted from.
	Source model.IDAndType

	CaptureMethod *int64
	VariantTypes  []int64
	ModelPurpose  *int64
	ModelFileType *int64
}

// direction is where a node sits relative to the source of a State.
type direction int

const (
	dirSelf direction = iota
	// dirChild marks a descendant of the source. It receives the source's
	// identity.
	dirChild
	// dirParent marks an ancestor of the source. It receives the source's
	// type and attributes.
	dirParent
)

// apply merges s into the entry and reports whether anything changed.
func (e *Entry) apply(s State, dir direction) bool {
	changed := false
	if dir == dirSelf || dir == dirChild {
		if set := e.identitySet(s.Source.Type); set != nil && set.Add(s.Source.ID) {
			changed = true
		}
	}
	if dir == dirSelf || dir == dirParent {
		if dir == dirParent && s.Source.Type.Valid() && !e.DescendantTypes[s.Source.Type] {
			e.DescendantTypes[s.Source.Type] = true
			changed = true
		}
		if s.CaptureMethod != nil && e.CaptureMethods.Add(*s.CaptureMethod) {
			changed = true
		}
		for _, v := range s.VariantTypes {
			if e.VariantTypes.Add(v) {
				changed = true
			}
		}
		if s.ModelPurpose != nil && e.ModelPurposes.Add(*s.ModelPurpose) {
			changed = true
		}
		if s.ModelFileType != nil && e.ModelFileTypes.Add(*s.ModelFileType) {
			changed = true
		}
	}
	return changed
}

// identitySet returns the ancestor identity set for t, or nil if objects of
// type t are not tracked as ancestors.
func (e *Entry) identitySet(t model.ObjectType) IDSet {
	switch t {
	case model.ObjectTypeUnit:
		return e.Units
	case model.ObjectTypeProject:
		return e.Projects
	case model.ObjectTypeSubject:
		return e.Subjects
	case model.ObjectTypeItem:
		return e.Items
	default:
		return nil
	}
}

// ensureSets allocates any set left nil by decoding.
func (e *Entry) ensureSets() {
	if e.Parents == nil {
		e.Parents = make(map[int64]model.ObjectType)
	}
	if e.Children == nil {
		e.Children = make(map[int64]model.ObjectType)
	}
	for _, set := range []*IDSet{&e.Units, &e.Projects, &e.Subjects, &e.Items,
		&e.CaptureMethods, &e.VariantTypes, &e.ModelPurposes, &e.ModelFileTypes} {
		if *set == nil {
			*set = make(IDSet)
		}
	}
}

// sortedEndpoints returns the map as IDAndType values ordered by id.
func sortedEndpoints(m map[int64]model.ObjectType) []model.IDAndType {
	out := make([]model.IDAndType, 0, len(m))
	for id, t := range m {
		out = append(out, model.IDAndType{ID: id, Type: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

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
	"sort"

	"github.com/AleutianAI/Curator/services/curator/model"
)

// Edge is a parent-to-child relationship observed during a traversal.
type Edge struct {
	Parent model.IDAndType `json:"parent"`
	Child  model.IDAndType `json:"child"`
}

// Result is the outcome of one traversal.
//
// Description:
//
//	Objects holds every reachable object, grouped by type, each at most once.
//	Relations holds every edge observed, each at most once. ValidHierarchy
//	and NoCycles start true and are cleared by the first violation.
//
// Thread Safety:
//
//	Result is not safe for concurrent mutation. It is owned by the caller
//	once Fetch returns.
type Result struct {
	// RootID is the universal id the traversal started from.
	RootID int64 `json:"root_id"`

	// Mode is the traversal mode.
	Mode Mode `json:"mode"`

	// Objects are the reachable objects per type, in discovery order.
	Objects map[model.ObjectType][]model.Object `json:"objects"`

	// Relations are the observed parent-to-child edges, in discovery order.
	Relations []Edge `json:"relations"`

	// ValidHierarchy is false if any edge violates the type hierarchy.
	ValidHierarchy bool `json:"valid_hierarchy"`

	// NoCycles is false if the walk reached the root again.
	NoCycles bool `json:"no_cycles"`

	// PushCount is the number of objects processed.
	PushCount int `json:"push_count"`

	// Truncated is true if the push bound dropped an object or the walk
	// reached an object at the depth bound, whose relatives are not queried.
	Truncated bool `json:"truncated"`

	// InvalidEdges counts hierarchy violations.
	InvalidEdges int `json:"invalid_edges"`

	// LookupFailures counts ids that could not be resolved.
	LookupFailures int `json:"lookup_failures"`

	seenObjects map[int64]struct{}
	seenEdges   map[Edge]struct{}
}

func newResult(rootID int64, mode Mode) *Result {
	return &Result{
		RootID:         rootID,
		Mode:           mode,
		Objects:        make(map[model.ObjectType][]model.Object),
		Relations:      make([]Edge, 0),
		ValidHierarchy: true,
		NoCycles:       true,
		seenObjects:    make(map[int64]struct{}),
		seenEdges:      make(map[Edge]struct{}),
	}
}

func (r *Result) addObject(id int64, obj model.Object) {
	if _, ok := r.seenObjects[id]; ok {
		return
	}
	r.seenObjects[id] = struct{}{}
	t := obj.ObjectType()
	r.Objects[t] = append(r.Objects[t], obj)
}

func (r *Result) addEdge(e Edge) bool {
	if _, ok := r.seenEdges[e]; ok {
		return false
	}
	r.seenEdges[e] = struct{}{}
	r.Relations = append(r.Relations, e)
	return true
}

// Contains reports whether the object with universal id id was reached.
func (r *Result) Contains(id int64) bool {
	_, ok := r.seenObjects[id]
	return ok
}

// ObjectsOf returns the reached objects of type t.
func (r *Result) ObjectsOf(t model.ObjectType) []model.Object {
	return r.Objects[t]
}

// Count returns the number of distinct objects reached.
func (r *Result) Count() int {
	return len(r.seenObjects)
}

// Counts returns the number of reached objects per type.
func (r *Result) Counts() map[model.ObjectType]int {
	out := make(map[model.ObjectType]int, len(r.Objects))
	for t, objs := range r.Objects {
		out[t] = len(objs)
	}
	return out
}

// IDs returns the universal ids of every reached object, sorted.
func (r *Result) IDs() []int64 {
	ids := make([]int64, 0, len(r.seenObjects))
	for id := range r.seenObjects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ParentsOf returns the direct parents of id observed by the traversal.
func (r *Result) ParentsOf(id int64) []model.IDAndType {
	out := make([]model.IDAndType, 0)
	for _, e := range r.Relations {
		if e.Child.ID == id {
			out = append(out, e.Parent)
		}
	}
	return out
}

// ChildrenOf returns the direct children of id observed by the traversal.
func (r *Result) ChildrenOf(id int64) []model.IDAndType {
	out := make([]model.IDAndType, 0)
	for _, e := range r.Relations {
		if e.Parent.ID == id {
			out = append(out, e.Child)
		}
	}
	return out
}

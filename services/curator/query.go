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
	"fmt"
	"sort"
	"time"

	"github.com/AleutianAI/Curator/services/curator/graph"
	"github.com/AleutianAI/Curator/services/curator/license"
	"github.com/AleutianAI/Curator/services/curator/model"
)

// Child is one direct child of an object.
type Child struct {
	ID   int64            `json:"id"`
	Type model.ObjectType `json:"type"`
	Name string           `json:"name"`
}

// IntegrityReport summarizes a two-way traversal around one object.
type IntegrityReport struct {
	RootID         int64                    `json:"root_id"`
	ValidHierarchy bool                     `json:"valid_hierarchy"`
	NoCycles       bool                     `json:"no_cycles"`
	PushCount      int                      `json:"push_count"`
	Truncated      bool                     `json:"truncated"`
	InvalidEdges   int                      `json:"invalid_edges"`
	LookupFailures int                      `json:"lookup_failures"`
	Counts         map[model.ObjectType]int `json:"counts"`
}

func (s *Service) exists(ctx context.Context, id int64) error {
	_, ok, err := s.ids.LookupByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrObjectNotFound, id)
	}
	return nil
}

// ChildrenOf returns the direct children of id ordered by type, then name,
// then id.
//
// Description:
//
//	Served from the current graph database when it knows id. Otherwise a
//	depth-1 descendants traversal answers the question.
//
// Outputs:
//
//	[]Child - The children. Empty, never nil, for a leaf.
//	error - ErrObjectNotFound for an unknown id, or a traversal failure.
func (s *Service) ChildrenOf(ctx context.Context, id int64) ([]Child, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}

	var out []Child
	if db := s.Database(); db != nil {
		if _, ok := db.Entry(id); ok {
			for _, c := range db.Children(id) {
				child := Child{ID: c.ID, Type: c.Type}
				if e, ok := db.Entry(c.ID); ok {
					child.Name = e.Name
				}
				out = append(out, child)
			}
			sortChildren(out)
			return nonNil(out), nil
		}
	}

	opts := append(s.fetchOptions(), graph.WithMaxDepth(1))
	res, err := graph.Fetch(ctx, s.repo, s.ids, id, graph.ModeDescendants, opts...)
	if err != nil {
		return nil, err
	}
	names := make(map[model.ObjectKey]string, res.Count())
	for _, objs := range res.Objects {
		for _, o := range objs {
			names[model.KeyOf(o)] = o.DisplayName()
		}
	}
	for _, c := range res.ChildrenOf(id) {
		child := Child{ID: c.ID, Type: c.Type}
		info, ok, err := s.ids.LookupByID(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			child.Name = names[info.Key()]
		}
		out = append(out, child)
	}
	sortChildren(out)
	return nonNil(out), nil
}

func sortChildren(cs []Child) {
	sort.Slice(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

func nonNil(cs []Child) []Child {
	if cs == nil {
		return []Child{}
	}
	return cs
}

// Graph runs a traversal from id. A positive depth overrides the
// configured maximum depth.
func (s *Service) Graph(ctx context.Context, id int64, mode graph.Mode, depth int) (*graph.Result, error) {
	opts := s.fetchOptions()
	if depth > 0 {
		opts = append(opts, graph.WithMaxDepth(depth))
	}
	return graph.Fetch(ctx, s.repo, s.ids, id, mode, opts...)
}

// Integrity walks both directions from id and reports whether the
// neighborhood respects the hierarchy and is acyclic.
func (s *Service) Integrity(ctx context.Context, id int64) (*IntegrityReport, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	res, err := graph.Fetch(ctx, s.repo, s.ids, id, graph.ModeBoth, s.fetchOptions()...)
	if err != nil {
		return nil, err
	}
	return &IntegrityReport{
		RootID:         id,
		ValidHierarchy: res.ValidHierarchy,
		NoCycles:       res.NoCycles,
		PushCount:      res.PushCount,
		Truncated:      res.Truncated,
		InvalidEdges:   res.InvalidEdges,
		LookupFailures: res.LookupFailures,
		Counts:         res.Counts(),
	}, nil
}

// GraphEntry returns the node state of id in the current graph database.
func (s *Service) GraphEntry(id int64) (*graph.Entry, bool) {
	db := s.Database()
	if db == nil {
		return nil, false
	}
	return db.Entry(id)
}

// ResolveLicense returns the effective license of id, or nil if it is
// unlicensed.
func (s *Service) ResolveLicense(ctx context.Context, id int64) (*model.LicenseResolution, error) {
	return s.manager.Resolver().Resolve(ctx, id, license.WithDatabase(s.Database()))
}

// ClearLicense ends the assignments of id. See license.Manager.ClearAssignment.
func (s *Service) ClearLicense(ctx context.Context, id int64, clearAll bool) (int, error) {
	return s.manager.ClearAssignment(ctx, id, clearAll, license.WithDatabase(s.Database()))
}

// SetLicense assigns licenseID to id. See license.Manager.SetAssignment.
func (s *Service) SetLicense(ctx context.Context, id, licenseID int64, start, end *time.Time) (*model.LicenseAssignment, error) {
	return s.manager.SetAssignment(ctx, id, licenseID, start, end, license.WithDatabase(s.Database()))
}

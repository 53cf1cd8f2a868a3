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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/Curator/services/curator/cache"
	"github.com/AleutianAI/Curator/services/curator/model"
	"github.com/AleutianAI/Curator/services/curator/store"
)

// frame is one pending unit of work in the traversal queue.
type frame struct {
	id      int64
	related *model.IDAndType
	depth   int
}

// walker carries the state of one traversal. It is never shared.
type walker struct {
	repo    store.Repository
	ids     *cache.SystemObjectCache
	options FetchOptions
	logger  *slog.Logger
	result  *Result

	pass    Mode
	visited map[int64]model.ObjectType
	queue   []frame
}

// Fetch walks the object graph from rootID.
//
// Description:
//
//	Performs an iterative breadth-first walk from rootID. Every object
//	reached is resolved through repo, checked against the type hierarchy
//	relative to the object it was reached from, and added to the result.
//	Its relatives are gathered from the implicit links of its type and from
//	the explicit master/derived table, then queued one level deeper.
//	ModeBoth runs the ancestor walk and then the descendant walk with a
//	fresh visited set.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	repo - Persistence collaborator. Must not be nil.
//	ids - Identity cache used to translate typed ids. May be nil, in which
//	      case repo is queried directly.
//	rootID - Universal id to start from.
//	mode - Traversal direction.
//	opts - WithMaxDepth, WithPushLimit, WithDatabase, WithLogger.
//
// Outputs:
//
//	*Result - Reached objects, observed edges, and diagnostic flags. A root
//	          that does not exist yields an empty, successful result.
//	error - ErrNilRepository, ErrInvalidMode, ErrRootResolution when the
//	        repository fails resolving the root, or the context error if
//	        cancelled (with the partial result).
//
// Thread Safety:
//
//	Safe for concurrent use, except that a shared Database must only be
//	used by one traversal at a time.
func Fetch(ctx context.Context, repo store.Repository, ids *cache.SystemObjectCache, rootID int64, mode Mode, opts ...FetchOption) (*Result, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}
	options := applyFetchOptions(opts)

	ctx, span := startFetchSpan(ctx, rootID, mode)
	defer span.End()
	start := time.Now()

	w := &walker{
		repo:    repo,
		ids:     ids,
		options: options,
		logger:  options.Logger.With(slog.Int64("root_id", rootID), slog.String("mode", mode.String())),
		result:  newResult(rootID, mode),
	}

	var err error
	switch mode {
	case ModeBoth:
		if err = w.run(ctx, ModeAncestors); err == nil {
			err = w.run(ctx, ModeDescendants)
		}
	default:
		err = w.run(ctx, mode)
	}

	r := w.result
	span.SetAttributes(
		attribute.Int("graph.push_count", r.PushCount),
		attribute.Int("graph.objects", r.Count()),
		attribute.Bool("graph.valid_hierarchy", r.ValidHierarchy),
		attribute.Bool("graph.no_cycles", r.NoCycles),
		attribute.Bool("graph.truncated", r.Truncated),
	)
	recordFetch(ctx, mode, time.Since(start), r, err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrRootResolution) {
			return nil, err
		}
		return r, err
	}
	return r, nil
}

// run performs one directional pass from the root.
func (w *walker) run(ctx context.Context, pass Mode) error {
	w.pass = pass
	w.visited = make(map[int64]model.ObjectType)
	w.queue = []frame{{id: w.result.RootID, depth: w.options.MaxDepth}}
	db := w.options.Database
	checkCounter := 0

	for len(w.queue) > 0 {
		checkCounter++
		if checkCounter%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				w.result.Truncated = true
				return err
			}
		}

		f := w.queue[0]
		w.queue = w.queue[1:]

		if f.related != nil && f.id == w.result.RootID {
			w.result.NoCycles = false
			w.result.ValidHierarchy = false
			w.logger.Debug("cycle back to root",
				slog.Int64("from", f.related.ID),
				slog.String("from_type", f.related.Type.String()),
			)
			continue
		}

		if w.result.PushCount >= w.options.PushLimit {
			w.result.Truncated = true
			if db != nil && f.related != nil {
				w.recordDroppedEdge(ctx, f)
			}
			continue
		}
		w.result.PushCount++

		if db != nil {
			if t, ok := db.expandedType(f.id); ok {
				w.checkEdge(f, t)
				w.recordEdge(f, t)
				continue
			}
		}
		if t, ok := w.visited[f.id]; ok {
			w.checkEdge(f, t)
			w.recordEdge(f, t)
			continue
		}

		so, obj, err := w.repo.ResolveObject(ctx, f.id)
		if err != nil {
			if f.related == nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w %d: %w", ErrRootResolution, f.id, err)
			}
			w.lookupFailed(f.id, "resolve", err)
			continue
		}
		t := so.Type
		w.visited[f.id] = t
		w.checkEdge(f, t)
		w.result.addObject(so.ID, obj)

		w.recordEdge(f, t)

		// Objects at the depth bound are not expanded, so their relatives
		// are not queried and Truncated is set without knowing whether any
		// exist.
		if f.depth <= 0 {
			w.result.Truncated = true
			continue
		}
		next := w.gather(ctx, so, obj)
		if db != nil {
			db.markExpanded(so, obj)
		}
		if len(next) == 0 {
			continue
		}
		self := &model.IDAndType{ID: so.ID, Type: t}
		for _, id := range next {
			w.queue = append(w.queue, frame{id: id, related: self, depth: f.depth - 1})
		}
	}
	return nil
}

// gather returns the universal ids related to so in the current direction,
// deduplicated and in discovery order.
func (w *walker) gather(ctx context.Context, so *model.SystemObject, obj model.Object) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	add := func(id int64) {
		if id == so.ID {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, l := range gatherImplicit(ctx, w, so, obj) {
		if l.key == nil {
			add(l.id)
			continue
		}
		if id, ok := w.universalID(ctx, *l.key); ok {
			add(id)
		}
	}

	rel := store.RelationDerived
	if w.pass == ModeAncestors {
		rel = store.RelationMasters
	}
	related, err := w.repo.ListRelated(ctx, so.ID, rel)
	if err != nil {
		w.lookupFailed(so.ID, rel.String(), err)
	}
	for _, id := range related {
		add(id)
	}
	return out
}

// universalID translates a typed key to a universal id.
func (w *walker) universalID(ctx context.Context, key model.ObjectKey) (int64, bool) {
	if w.ids != nil {
		info, found, err := w.ids.LookupByTypedID(ctx, key)
		if err != nil {
			w.lookupFailed(0, "identity "+key.String(), err)
			return 0, false
		}
		if !found {
			w.logger.Warn("implicit link target missing", slog.String("key", key.String()))
			return 0, false
		}
		return info.ID, true
	}
	so, err := w.repo.GetSystemObjectByKey(ctx, key)
	if err != nil {
		w.lookupFailed(0, "identity "+key.String(), err)
		return 0, false
	}
	return so.ID, true
}

// checkEdge validates the edge between f.related and a node of type t.
func (w *walker) checkEdge(f frame, t model.ObjectType) {
	if f.related == nil {
		return
	}
	var ok bool
	if w.pass == ModeAncestors {
		ok = model.ValidChild(t, f.related.Type)
	} else {
		ok = model.ValidParent(t, f.related.Type)
	}
	if ok {
		return
	}
	w.result.ValidHierarchy = false
	w.result.InvalidEdges++
	w.logger.Debug("hierarchy violation",
		slog.Int64("id", f.id),
		slog.String("type", t.String()),
		slog.Int64("related_id", f.related.ID),
		slog.String("related_type", f.related.Type.String()),
	)
}

// edge orients the edge between f.related and a node of type t for the
// current pass.
func (w *walker) edge(f frame, t model.ObjectType) Edge {
	node := model.IDAndType{ID: f.id, Type: t}
	if w.pass == ModeAncestors {
		return Edge{Parent: node, Child: *f.related}
	}
	return Edge{Parent: *f.related, Child: node}
}

// recordEdge stores the edge between f.related and f.id on the result and
// on the shared database.
func (w *walker) recordEdge(f frame, t model.ObjectType) {
	if f.related == nil {
		return
	}
	e := w.edge(f, t)
	w.result.addEdge(e)
	if db := w.options.Database; db != nil {
		db.addEdge(e)
	}
}

// recordDroppedEdge stores the edge of a frame cut by the push cap on the
// shared database only. The frame's object is not expanded here; the build
// expands it as a root of its own.
func (w *walker) recordDroppedEdge(ctx context.Context, f frame) {
	t, ok := w.typeOf(ctx, f.id)
	if !ok {
		return
	}
	w.checkEdge(f, t)
	w.options.Database.addEdge(w.edge(f, t))
}

// typeOf returns the type of id from the shared database, the identity
// cache, or the repository, in that order.
func (w *walker) typeOf(ctx context.Context, id int64) (model.ObjectType, bool) {
	if db := w.options.Database; db != nil {
		if t, ok := db.knownType(id); ok {
			return t, true
		}
	}
	if w.ids != nil {
		info, found, err := w.ids.LookupByID(ctx, id)
		if err != nil {
			w.lookupFailed(id, "identity", err)
			return model.ObjectTypeUnknown, false
		}
		if !found {
			return model.ObjectTypeUnknown, false
		}
		return info.Type, true
	}
	so, err := w.repo.GetSystemObject(ctx, id)
	if err != nil {
		w.lookupFailed(id, "identity", err)
		return model.ObjectTypeUnknown, false
	}
	return so.Type, true
}

// lookupFailed logs a failed resolution or relation fetch. The affected
// branch is skipped.
func (w *walker) lookupFailed(id int64, what string, err error) {
	w.result.LookupFailures++
	w.logger.Warn("graph lookup failed",
		slog.Int64("id", id),
		slog.String("lookup", what),
		slog.String("error", err.Error()),
	)
}

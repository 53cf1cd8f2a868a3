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
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/Curator/services/curator/model"
)

// Propagate spreads every node's state through the graph until no node
// changes.
//
// Description:
//
//	The state of each node (see State) is applied to the node itself, then
//	breadth-first to its descendants and to its ancestors, each bounded by
//	the propagation depth. A branch stops at the first node the state does
//	not change, so a second call on a converged database returns 0. The
//	result does not depend on the order nodes are processed in.
//
// Outputs:
//
//	int - The number of node changes made.
func (db *Database) Propagate(ctx context.Context) int {
	ctx, span := startBuildSpan(ctx, "Propagate")
	defer span.End()
	start := time.Now()

	db.mu.Lock()
	changes := db.propagateLocked(ctx, db.sortedIDsLocked())
	db.mu.Unlock()

	span.SetAttributes(attribute.Int("graph.propagation_changes", changes))
	recordPropagation(ctx, changes)
	db.logger.Debug("propagation complete",
		slog.Int("changes", changes),
		slog.Duration("duration", time.Since(start)),
	)
	return changes
}

// propagateLocked applies the state of each id in order. States are all
// extracted before any is applied. Caller holds db.mu.
func (db *Database) propagateLocked(ctx context.Context, order []int64) int {
	states := make([]State, 0, len(order))
	for _, id := range order {
		if e, ok := db.entries[id]; ok {
			states = append(states, extractState(e))
		}
	}

	changes := 0
	for i, s := range states {
		if i%contextCheckInterval == 0 && ctx.Err() != nil {
			return changes
		}
		changes += db.applyGraphState(s)
	}
	return changes
}

// extractState returns what e contributes to propagation.
func extractState(e *Entry) State {
	s := State{Source: e.IDAndType()}
	switch obj := e.object.(type) {
	case *model.CaptureData:
		method := obj.CaptureMethod
		s.CaptureMethod = &method
		s.VariantTypes = e.VariantTypes.Sorted()
	case *model.Model:
		s.ModelPurpose = obj.Purpose
		s.ModelFileType = obj.FileType
	}
	return s
}

// applyGraphState applies s to its source, then to the source's
// descendants and ancestors. Caller holds db.mu.
func (db *Database) applyGraphState(s State) int {
	src, ok := db.entries[s.Source.ID]
	if !ok {
		return 0
	}
	changes := 0
	if src.apply(s, dirSelf) {
		changes++
	}
	changes += db.spreadLocked(s, dirChild)
	changes += db.spreadLocked(s, dirParent)
	return changes
}

// spreadLocked walks from the source of s in one direction, applying s to
// each node reached and expanding only from nodes that changed.
func (db *Database) spreadLocked(s State, dir direction) int {
	type queueItem struct {
		id    int64
		depth int
	}
	maxDepth := db.options.PropagationDepth
	queue := []queueItem{{id: s.Source.ID}}
	changes := 0

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.depth >= maxDepth {
			continue
		}
		e, ok := db.entries[item.id]
		if !ok {
			continue
		}
		next := e.Children
		if dir == dirParent {
			next = e.Parents
		}
		for _, n := range sortedEndpoints(next) {
			if n.ID == s.Source.ID {
				continue
			}
			target, ok := db.entries[n.ID]
			if !ok {
				continue
			}
			if !target.apply(s, dir) {
				continue
			}
			changes++
			queue = append(queue, queueItem{id: n.ID, depth: item.depth + 1})
		}
	}
	return changes
}

// sortedIDsLocked returns every entry id in ascending order. Caller holds
// db.mu.
func (db *Database) sortedIDsLocked() []int64 {
	ids := make([]int64, 0, len(db.entries))
	for id := range db.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

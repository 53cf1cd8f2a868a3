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
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/Curator/services/curator/cache"
	"github.com/AleutianAI/Curator/services/curator/model"
	"github.com/AleutianAI/Curator/services/curator/store"
)

// DefaultPropagationDepth bounds how far one node's state travels.
const DefaultPropagationDepth = 32

// DatabaseOptions configures a Database.
type DatabaseOptions struct {
	// PropagationDepth bounds state propagation in each direction.
	PropagationDepth int

	// Fetch are applied to every traversal run by Build.
	Fetch []FetchOption

	// Logger receives build diagnostics.
	Logger *slog.Logger
}

// DatabaseOption is a functional option for configuring a Database.
type DatabaseOption func(*DatabaseOptions)

// WithPropagationDepth sets the propagation bound. If d <= 0, uses default
// (32).
func WithPropagationDepth(d int) DatabaseOption {
	return func(o *DatabaseOptions) {
		if d <= 0 {
			d = DefaultPropagationDepth
		}
		o.PropagationDepth = d
	}
}

// WithFetchOptions sets the options used for each traversal during Build.
func WithFetchOptions(opts ...FetchOption) DatabaseOption {
	return func(o *DatabaseOptions) {
		o.Fetch = append(o.Fetch, opts...)
	}
}

// WithDatabaseLogger sets the logger.
func WithDatabaseLogger(l *slog.Logger) DatabaseOption {
	return func(o *DatabaseOptions) {
		o.Logger = l
	}
}

// BuildResult summarizes one Database build.
type BuildResult struct {
	EpochID            string        `json:"epoch_id"`
	ObjectsSeen        int           `json:"objects_seen"`
	ObjectsExpanded    int           `json:"objects_expanded"`
	ObjectsFailed      int           `json:"objects_failed"`
	Traversals         int           `json:"traversals"`
	InvalidHierarchy   int           `json:"invalid_hierarchy"`
	Cycles             int           `json:"cycles"`
	PropagationChanges int           `json:"propagation_changes"`
	Duration           time.Duration `json:"duration"`
	Errors             []error       `json:"-"`
}

// Database is a materialized Entry for every object in the repository.
//
// Description:
//
//	Build runs a Descendants traversal from every object, sharing the
//	database between traversals so that each object is expanded once while
//	every edge touching it is still recorded. Derived state is then
//	propagated to a fixed point.
//
// Thread Safety:
//
//	Build must be called by one goroutine. Lookups are safe for concurrent
//	use, including during Build, but observe a partially built graph until
//	Build returns. Callers swap whole databases rather than rebuilding one
//	that is being served.
type Database struct {
	repo    store.Repository
	ids     *cache.SystemObjectCache
	options DatabaseOptions
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[int64]*Entry
	epochID string
	builtAt time.Time
}

// NewDatabase creates an empty database.
//
// ids may be nil, in which case identity lookups go to repo.
func NewDatabase(repo store.Repository, ids *cache.SystemObjectCache, opts ...DatabaseOption) (*Database, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	options := DatabaseOptions{PropagationDepth: DefaultPropagationDepth}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Database{
		repo:    repo,
		ids:     ids,
		options: options,
		logger:  options.Logger,
		entries: make(map[int64]*Entry),
	}, nil
}

// Build materializes the whole repository.
//
// Description:
//
//	Lists every object of every type and runs a Descendants traversal from
//	each one not yet expanded. A listing failure is recorded in
//	BuildResult.Errors (wrapping ErrListingFailed) and the other types are
//	still processed. A per-object failure is logged and counted. Finally
//	every node's state is extracted and propagated.
//
// Inputs:
//
//	ctx - Context for cancellation.
//
// Outputs:
//
//	*BuildResult - Summary of the build.
//	error - ErrBuildCancelled if ctx is cancelled.
func (db *Database) Build(ctx context.Context) (*BuildResult, error) {
	ctx, span := startBuildSpan(ctx, "Build")
	defer span.End()
	start := time.Now()

	db.mu.Lock()
	db.entries = make(map[int64]*Entry)
	db.epochID = uuid.NewString()
	db.builtAt = time.Time{}
	epoch := db.epochID
	db.mu.Unlock()

	br := &BuildResult{EpochID: epoch}
	logger := db.logger.With(slog.String("epoch_id", epoch))
	logger.Info("building graph database")

	fetchOpts := append([]FetchOption{WithLogger(db.logger)}, db.options.Fetch...)
	fetchOpts = append(fetchOpts, WithDatabase(db))

	for _, t := range model.AllObjectTypes() {
		objs, err := db.repo.ListObjects(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return db.cancelled(ctx, span, start, br)
			}
			listErr := fmt.Errorf("%w: %s: %w", ErrListingFailed, t, err)
			br.Errors = append(br.Errors, listErr)
			logger.Error("listing objects failed",
				slog.String("type", t.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, obj := range objs {
			if err := ctx.Err(); err != nil {
				return db.cancelled(ctx, span, start, br)
			}
			br.ObjectsSeen++
			key := model.KeyOf(obj)
			id, ok := db.universalID(ctx, key)
			if !ok {
				br.ObjectsFailed++
				logger.Warn("object has no system object", slog.String("key", key.String()))
				continue
			}
			if _, expanded := db.expandedType(id); expanded {
				continue
			}

			r, err := Fetch(ctx, db.repo, db.ids, id, ModeDescendants, fetchOpts...)
			br.Traversals++
			if err != nil {
				if ctx.Err() != nil {
					return db.cancelled(ctx, span, start, br)
				}
				br.ObjectsFailed++
				logger.Warn("graph traversal failed",
					slog.Int64("id", id),
					slog.String("error", err.Error()),
				)
				continue
			}
			if !r.ValidHierarchy {
				br.InvalidHierarchy++
			}
			if !r.NoCycles {
				br.Cycles++
			}
		}
	}

	if err := db.extractAttributes(ctx); err != nil {
		return db.cancelled(ctx, span, start, br)
	}
	br.PropagationChanges = db.Propagate(ctx)
	if ctx.Err() != nil {
		return db.cancelled(ctx, span, start, br)
	}

	db.mu.Lock()
	db.builtAt = time.Now()
	for _, e := range db.entries {
		if e.expanded {
			br.ObjectsExpanded++
		}
	}
	db.mu.Unlock()

	br.Duration = time.Since(start)
	span.SetAttributes(
		attribute.String("graph.epoch_id", epoch),
		attribute.Int("graph.objects_seen", br.ObjectsSeen),
		attribute.Int("graph.objects_failed", br.ObjectsFailed),
		attribute.Int("graph.propagation_changes", br.PropagationChanges),
	)
	recordBuild(ctx, br.Duration, br, len(br.Errors) == 0)

	logger.Info("graph database built",
		slog.Int("entries", db.Len()),
		slog.Int("objects_seen", br.ObjectsSeen),
		slog.Int("objects_failed", br.ObjectsFailed),
		slog.Int("traversals", br.Traversals),
		slog.Int("invalid_hierarchy", br.InvalidHierarchy),
		slog.Int("cycles", br.Cycles),
		slog.Int("propagation_changes", br.PropagationChanges),
		slog.Int("listing_errors", len(br.Errors)),
		slog.Duration("duration", br.Duration),
	)
	return br, nil
}

func (db *Database) cancelled(ctx context.Context, span trace.Span, start time.Time, br *BuildResult) (*BuildResult, error) {
	err := fmt.Errorf("%w: %w", ErrBuildCancelled, ctx.Err())
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	br.Duration = time.Since(start)
	recordBuild(ctx, br.Duration, br, false)
	return br, err
}

// universalID translates a typed key through the identity cache, or the
// repository when no cache is configured.
func (db *Database) universalID(ctx context.Context, key model.ObjectKey) (int64, bool) {
	if db.ids != nil {
		info, found, err := db.ids.LookupByTypedID(ctx, key)
		if err != nil || !found {
			return 0, false
		}
		return info.ID, true
	}
	so, err := db.repo.GetSystemObjectByKey(ctx, key)
	if err != nil {
		return 0, false
	}
	return so.ID, true
}

// extractAttributes loads the per-object attributes that are not carried on
// the typed object itself.
func (db *Database) extractAttributes(ctx context.Context) error {
	db.mu.RLock()
	var captures []*Entry
	for _, e := range db.entries {
		if e.Type == model.ObjectTypeCaptureData && e.expanded {
			captures = append(captures, e)
		}
	}
	db.mu.RUnlock()

	for _, e := range captures {
		if err := ctx.Err(); err != nil {
			return err
		}
		files, err := db.repo.ListCaptureDataFiles(ctx, e.TypedID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			db.logger.Warn("listing capture data files failed",
				slog.Int64("id", e.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		db.mu.Lock()
		for _, f := range files {
			if f.VariantType != nil {
				e.VariantTypes.Add(*f.VariantType)
			}
		}
		db.mu.Unlock()
	}
	return nil
}

// expandedType reports the type of id if it has been fully expanded.
func (db *Database) expandedType(id int64) (model.ObjectType, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.entries[id]
	if !ok || !e.expanded {
		return model.ObjectTypeUnknown, false
	}
	return e.Type, true
}

// markExpanded records that so has been resolved and its relatives queued.
func (db *Database) markExpanded(so *model.SystemObject, obj model.Object) {
	db.mu.Lock()
	defer db.mu.Unlock()
	e := db.entryLocked(so.ID, so.Type)
	e.Type = so.Type
	e.TypedID = so.TypedID
	e.Retired = so.Retired
	e.Name = obj.DisplayName()
	e.object = obj
	e.expanded = true
}

// knownType reports the type of id if any traversal has seen it.
func (db *Database) knownType(id int64) (model.ObjectType, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.entries[id]
	if !ok || !e.Type.Valid() {
		return model.ObjectTypeUnknown, false
	}
	return e.Type, true
}

// addEdge records a parent-to-child edge on both endpoints.
func (db *Database) addEdge(edge Edge) {
	db.mu.Lock()
	defer db.mu.Unlock()
	parent := db.entryLocked(edge.Parent.ID, edge.Parent.Type)
	child := db.entryLocked(edge.Child.ID, edge.Child.Type)
	parent.Children[child.ID] = edge.Child.Type
	child.Parents[parent.ID] = edge.Parent.Type
}

func (db *Database) entryLocked(id int64, t model.ObjectType) *Entry {
	e, ok := db.entries[id]
	if !ok {
		e = newEntry(id, t)
		db.entries[id] = e
	}
	return e
}

// EpochID returns the id of the current build.
func (db *Database) EpochID() string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.epochID
}

// BuiltAt returns when the last build completed. Zero until then.
func (db *Database) BuiltAt() time.Time {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.builtAt
}

// Len returns the number of entries.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.entries)
}

// Entry returns the entry for id.
func (db *Database) Entry(id int64) (*Entry, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.entries[id]
	return e, ok
}

// Children returns the direct children of id ordered by id.
func (db *Database) Children(id int64) []model.IDAndType {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.entries[id]
	if !ok {
		return []model.IDAndType{}
	}
	return sortedEndpoints(e.Children)
}

// Parents returns the direct parents of id ordered by id.
func (db *Database) Parents(id int64) []model.IDAndType {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.entries[id]
	if !ok {
		return []model.IDAndType{}
	}
	return sortedEndpoints(e.Parents)
}

// Descendants returns every id reachable from id through child edges within
// maxDepth levels, excluding id itself, in breadth-first order. If
// maxDepth <= 0, uses the propagation depth.
func (db *Database) Descendants(id int64, maxDepth int) []int64 {
	if maxDepth <= 0 {
		maxDepth = db.options.PropagationDepth
	}
	db.mu.RLock()
	defer db.mu.RUnlock()

	type queueItem struct {
		id    int64
		depth int
	}
	visited := map[int64]bool{id: true}
	queue := []queueItem{{id: id}}
	out := make([]int64, 0)

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
		for _, child := range sortedEndpoints(e.Children) {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			out = append(out, child.ID)
			queue = append(queue, queueItem{id: child.ID, depth: item.depth + 1})
		}
	}
	return out
}

// Snapshot is the serializable form of a built Database.
type Snapshot struct {
	EpochID string    `json:"epoch_id"`
	BuiltAt time.Time `json:"built_at"`
	Entries []*Entry  `json:"entries"`
}

// Snapshot returns the entries ordered by id. The entries are shared with
// the database.
func (db *Database) Snapshot() *Snapshot {
	db.mu.RLock()
	defer db.mu.RUnlock()
	s := &Snapshot{
		EpochID: db.epochID,
		BuiltAt: db.builtAt,
		Entries: make([]*Entry, 0, len(db.entries)),
	}
	for _, id := range db.sortedIDsLocked() {
		s.Entries = append(s.Entries, db.entries[id])
	}
	return s
}

// Restore replaces the contents of the database with a snapshot. Restored
// entries count as expanded.
func (db *Database) Restore(s *Snapshot) {
	entries := make(map[int64]*Entry, len(s.Entries))
	for _, e := range s.Entries {
		e.ensureSets()
		e.expanded = true
		entries[e.ID] = e
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.entries = entries
	db.epochID = s.EpochID
	db.builtAt = s.BuiltAt
}

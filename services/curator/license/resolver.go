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
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/Curator/services/curator/cache"
	"github.com/AleutianAI/Curator/services/curator/graph"
	"github.com/AleutianAI/Curator/services/curator/model"
	"github.com/AleutianAI/Curator/services/curator/store"
)

// Options configures a Resolver.
type Options struct {
	// Clock returns the current time for assignment windows.
	Clock func() time.Time

	// Fetch are applied to the traversals the resolver runs.
	Fetch []graph.FetchOption

	// Logger receives resolution diagnostics.
	Logger *slog.Logger
}

// Option is a functional option for configuring a Resolver.
type Option func(*Options)

// WithClock sets the clock used to evaluate assignment windows.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Clock = now
	}
}

// WithFetchOptions sets options for the traversals run by the resolver.
func WithFetchOptions(opts ...graph.FetchOption) Option {
	return func(o *Options) {
		o.Fetch = append(o.Fetch, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// CallOptions configures one Resolve, ClearAssignment, or SetAssignment
// call.
type CallOptions struct {
	// Database, when set, supplies parents and descendants instead of
	// running traversals.
	Database *graph.Database
}

// CallOption is a functional option for a single call.
type CallOption func(*CallOptions)

// WithDatabase answers structural questions from a built graph database.
func WithDatabase(db *graph.Database) CallOption {
	return func(o *CallOptions) {
		o.Database = db
	}
}

func applyCallOptions(opts []CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Resolver computes the effective license of an object.
//
// Thread Safety:
//
//	Resolver is safe for concurrent use.
type Resolver struct {
	repo     store.Repository
	ids      *cache.SystemObjectCache
	licenses *cache.LicenseCache
	store    store.LicenseStore
	options  Options
	logger   *slog.Logger
}

// NewResolver creates a resolver.
//
// Inputs:
//
//	repo - Object graph collaborator. Must not be nil.
//	ids - Identity cache for traversals. May be nil.
//	licenses - License and resolution cache. Must not be nil.
//	st - Assignment store. Must not be nil.
func NewResolver(repo store.Repository, ids *cache.SystemObjectCache, licenses *cache.LicenseCache, st store.LicenseStore, opts ...Option) (*Resolver, error) {
	if repo == nil || licenses == nil || st == nil {
		return nil, ErrNilStore
	}
	options := Options{Clock: time.Now}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Resolver{
		repo:     repo,
		ids:      ids,
		licenses: licenses,
		store:    st,
		options:  options,
		logger:   options.Logger,
	}, nil
}

// Resolve returns the license governing the object with universal id id.
//
// Description:
//
//	Returns the cached resolution if present. Otherwise the object's own
//	active assignments are checked first; the most restrictive wins and
//	ties keep the first. Failing that, each parent is resolved in turn
//	(its own assignment, else its parents) and the most restrictive parent
//	license is returned marked as inherited. Non-nil results are cached.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	id - Universal id of the object.
//	opts - WithDatabase to read parents from a built graph database.
//
// Outputs:
//
//	*model.LicenseResolution - The effective license, or nil if the
//	                           object is unlicensed.
//	error - Non-nil only if a collaborator failed.
func (r *Resolver) Resolve(ctx context.Context, id int64, opts ...CallOption) (*model.LicenseResolution, error) {
	ctx, span := startLicenseSpan(ctx, "Resolve", id)
	defer span.End()
	start := time.Now()

	if cached, ok := r.licenses.Resolution(ctx, id); ok {
		span.SetAttributes(attribute.Bool("license.cached", true))
		recordResolve(ctx, outcomeOf(cached), true, time.Since(start))
		return cached, nil
	}

	call := applyCallOptions(opts)
	res, err := r.resolve(ctx, id, call, make(map[int64]*model.LicenseResolution), 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordResolve(ctx, "error", false, time.Since(start))
		return nil, err
	}
	if res != nil {
		r.licenses.SetResolution(id, res)
		span.SetAttributes(
			attribute.Int64("license.id", res.License.ID),
			attribute.Bool("license.inherited", res.Inherited),
		)
	}
	recordResolve(ctx, outcomeOf(res), false, time.Since(start))
	return res, nil
}

func outcomeOf(res *model.LicenseResolution) string {
	switch {
	case res == nil:
		return "none"
	case res.Inherited:
		return "inherited"
	default:
		return "direct"
	}
}

// resolve is the recursive step. memo holds every id visited in this call;
// an id still being resolved maps to nil, which breaks cycles.
func (r *Resolver) resolve(ctx context.Context, id int64, call CallOptions, memo map[int64]*model.LicenseResolution, depth int) (*model.LicenseResolution, error) {
	if res, ok := memo[id]; ok {
		return res, nil
	}
	memo[id] = nil
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	direct, err := r.Direct(ctx, id)
	if err != nil {
		return nil, err
	}
	if direct != nil {
		memo[id] = direct
		return direct, nil
	}
	if depth >= graph.MaxTraversalDepth {
		r.logger.Warn("license resolution depth exceeded", slog.Int64("id", id))
		return nil, nil
	}

	parents, err := r.parents(ctx, id, call)
	if err != nil {
		return nil, err
	}

	var best *model.LicenseResolution
	for _, p := range parents {
		pr, ok := r.licenses.Resolution(ctx, p)
		if !ok {
			pr, err = r.resolve(ctx, p, call, memo, depth+1)
			if err != nil {
				return nil, err
			}
		}
		if pr.MoreRestrictive(best) {
			best = pr
		}
	}
	if best == nil {
		return nil, nil
	}
	res := best.AsInherited()
	memo[id] = res
	return res, nil
}

// Direct returns the most restrictive active assignment attached to id
// itself, or nil if there is none. Assignments naming an unknown license are
// logged and ignored.
func (r *Resolver) Direct(ctx context.Context, id int64) (*model.LicenseResolution, error) {
	assignments, err := r.store.ListLicenseAssignments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing license assignments of %d: %w", id, err)
	}

	var best *model.LicenseResolution
	for _, a := range store.ActiveAssignments(assignments, r.options.Clock()) {
		lic, err := r.licenses.License(ctx, a.LicenseID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				r.logger.Warn("assignment references unknown license",
					slog.Int64("id", id),
					slog.Int64("assignment_id", a.ID),
					slog.Int64("license_id", a.LicenseID),
				)
				continue
			}
			return nil, fmt.Errorf("loading license %d: %w", a.LicenseID, err)
		}
		candidate := &model.LicenseResolution{License: lic, Assignment: a, Source: id}
		if candidate.MoreRestrictive(best) {
			best = candidate
		}
	}
	return best, nil
}

// parents returns the universal ids of the direct parents of id.
func (r *Resolver) parents(ctx context.Context, id int64, call CallOptions) ([]int64, error) {
	var found []model.IDAndType
	if call.Database != nil {
		if _, ok := call.Database.Entry(id); ok {
			found = call.Database.Parents(id)
		}
	}
	if found == nil {
		opts := append([]graph.FetchOption{graph.WithLogger(r.logger)}, r.options.Fetch...)
		opts = append(opts, graph.WithMaxDepth(1))
		res, err := graph.Fetch(ctx, r.repo, r.ids, id, graph.ModeAncestors, opts...)
		if err != nil {
			return nil, err
		}
		found = res.ParentsOf(id)
	}
	ids := make([]int64, len(found))
	for i, p := range found {
		ids[i] = p.ID
	}
	return ids, nil
}

// descendants returns the universal ids below id.
func (r *Resolver) descendants(ctx context.Context, id int64, call CallOptions) ([]int64, error) {
	if call.Database != nil {
		if _, ok := call.Database.Entry(id); ok {
			return call.Database.Descendants(id, 0), nil
		}
	}
	opts := append([]graph.FetchOption{graph.WithLogger(r.logger)}, r.options.Fetch...)
	res, err := graph.Fetch(ctx, r.repo, r.ids, id, graph.ModeDescendants, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, res.Count())
	for _, d := range res.IDs() {
		if d != id {
			out = append(out, d)
		}
	}
	return out, nil
}

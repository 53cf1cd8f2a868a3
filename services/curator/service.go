// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package curator wires the object graph engine into a service: identity
// and license caches, the current graph database epoch, the license
// manager, and the HTTP surface that exposes them.
package curator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/Curator/services/curator/cache"
	"github.com/AleutianAI/Curator/services/curator/graph"
	"github.com/AleutianAI/Curator/services/curator/license"
	"github.com/AleutianAI/Curator/services/curator/storage/badger"
	"github.com/AleutianAI/Curator/services/curator/store"
	"github.com/AleutianAI/Curator/services/curator/telemetry"
)

// ServiceConfig configures the curator service.
type ServiceConfig struct {
	// MaxDepth bounds traversals.
	// Default: 32
	MaxDepth int

	// PushLimit caps queue pushes per traversal pass.
	// Default: 500
	PushLimit int

	// PropagationDepth bounds state propagation in the graph database.
	// Default: 32
	PropagationDepth int

	// CacheAttempts is the number of cache build attempts.
	// Default: 3
	CacheAttempts int

	// CacheRetryDelay is the pause between cache build attempts.
	// Default: 100ms
	CacheRetryDelay time.Duration

	// RebuildPerMinute limits graph database rebuilds. Zero means no limit.
	// Default: 2
	RebuildPerMinute int
}

// DefaultServiceConfig returns the default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxDepth:         graph.DefaultMaxDepth,
		PushLimit:        graph.DefaultPushLimit,
		PropagationDepth: graph.DefaultPropagationDepth,
		CacheAttempts:    cache.DefaultMaxAttempts,
		CacheRetryDelay:  cache.DefaultRetryDelay,
		RebuildPerMinute: 2,
	}
}

// Option configures a Service.
type Option func(*Service)

// WithSnapshotStore persists every rebuilt graph database to st.
func WithSnapshotStore(st *badger.SnapshotStore) Option {
	return func(s *Service) {
		s.snapshots = st
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithClock replaces time.Now for license windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.clock = now
	}
}

// Service is the composition root of the curator.
//
// Thread Safety:
//
//	Service is safe for concurrent use. The current graph database is
//	swapped atomically; readers keep the epoch they loaded.
type Service struct {
	config    ServiceConfig
	repo      store.Repository
	licStore  store.LicenseStore
	ids       *cache.SystemObjectCache
	licenses  *cache.LicenseCache
	manager   *license.Manager
	snapshots *badger.SnapshotStore
	logger    *slog.Logger
	clock     func() time.Time

	current  atomic.Pointer[graph.Database]
	rebuilds singleflight.Group
	limiter  *rate.Limiter
}

// NewService creates a service over the given collaborators.
//
// Inputs:
//
//	cfg - Service configuration. Zero fields take their defaults.
//	repo - Object graph persistence. Must not be nil.
//	licStore - License persistence. Must not be nil.
//	opts - Optional snapshot store, logger, and clock.
//
// Outputs:
//
//	*Service - The service. No graph database is loaded yet.
//	error - ErrNilRepository if a collaborator is missing.
func NewService(cfg ServiceConfig, repo store.Repository, licStore store.LicenseStore, opts ...Option) (*Service, error) {
	if repo == nil || licStore == nil {
		return nil, ErrNilRepository
	}
	def := DefaultServiceConfig()
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.PushLimit <= 0 {
		cfg.PushLimit = def.PushLimit
	}
	if cfg.PropagationDepth <= 0 {
		cfg.PropagationDepth = def.PropagationDepth
	}
	if cfg.CacheAttempts <= 0 {
		cfg.CacheAttempts = def.CacheAttempts
	}
	if cfg.CacheRetryDelay <= 0 {
		cfg.CacheRetryDelay = def.CacheRetryDelay
	}

	s := &Service{
		config:   cfg,
		repo:     repo,
		licStore: licStore,
		logger:   slog.Default(),
		clock:    time.Now,
		limiter:  rate.NewLimiter(rebuildLimit(cfg.RebuildPerMinute)),
	}
	for _, opt := range opts {
		opt(s)
	}

	lazy := []cache.LazyOption{
		cache.WithMaxAttempts(cfg.CacheAttempts),
		cache.WithRetryDelay(cfg.CacheRetryDelay),
		cache.WithLogger(s.logger),
	}
	s.ids = cache.NewSystemObjectCache(repo, lazy...)
	s.licenses = cache.NewLicenseCache(licStore, lazy...)

	resolver, err := license.NewResolver(repo, s.ids, s.licenses, licStore,
		license.WithClock(s.clock),
		license.WithFetchOptions(s.fetchOptions()...),
		license.WithLogger(s.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("creating license resolver: %w", err)
	}
	s.manager = license.NewManager(resolver)
	return s, nil
}

func rebuildLimit(perMinute int) (rate.Limit, int) {
	if perMinute <= 0 {
		return rate.Inf, 1
	}
	return rate.Every(time.Minute / time.Duration(perMinute)), perMinute
}

// SetRebuildLimit changes the rebuild limit. Zero removes it.
func (s *Service) SetRebuildLimit(perMinute int) {
	limit, burst := rebuildLimit(perMinute)
	s.limiter.SetLimit(limit)
	s.limiter.SetBurst(burst)
}

func (s *Service) fetchOptions() []graph.FetchOption {
	return []graph.FetchOption{
		graph.WithMaxDepth(s.config.MaxDepth),
		graph.WithPushLimit(s.config.PushLimit),
		graph.WithLogger(s.logger),
	}
}

// Database returns the current graph database epoch, or nil before the
// first rebuild or restore.
func (s *Service) Database() *graph.Database {
	return s.current.Load()
}

// Manager returns the license manager.
func (s *Service) Manager() *license.Manager {
	return s.manager
}

// Warm loads the identity and license caches concurrently.
func (s *Service) Warm(ctx context.Context) error {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.ids.Warm(gctx); err != nil {
			return fmt.Errorf("warming identity cache: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.licenses.Warm(gctx); err != nil {
			return fmt.Errorf("warming license cache: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("caches warmed",
		slog.Int("system_objects", s.ids.Len()),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// FlushCaches reloads the identity and license caches and drops every
// resolved license.
func (s *Service) FlushCaches(ctx context.Context) error {
	return errors.Join(s.ids.Flush(ctx), s.licenses.Flush(ctx))
}

// Rebuild builds a new graph database epoch from the repository and makes
// it current.
//
// Description:
//
//	Concurrent calls share one build. A call refused by the rebuild limit
//	returns ErrRateLimited. On success the new epoch replaces the current
//	one, cached license resolutions are dropped, and the epoch is saved to
//	the snapshot store if one is configured. A failed or cancelled build
//	leaves the current epoch in place.
//
// Outputs:
//
//	*graph.BuildResult - Build summary. Non-nil on build errors too.
//	error - ErrRateLimited, or the build error.
func (s *Service) Rebuild(ctx context.Context) (*graph.BuildResult, error) {
	if !s.limiter.Allow() {
		return nil, ErrRateLimited
	}
	v, err, shared := s.rebuilds.Do("rebuild", func() (any, error) {
		return s.rebuild(ctx)
	})
	br, _ := v.(*graph.BuildResult)
	if shared {
		s.logger.Debug("graph database rebuild shared")
	}
	return br, err
}

func (s *Service) rebuild(ctx context.Context) (*graph.BuildResult, error) {
	logger := telemetry.LoggerWithTrace(ctx, s.logger)
	db, err := graph.NewDatabase(s.repo, s.ids,
		graph.WithPropagationDepth(s.config.PropagationDepth),
		graph.WithFetchOptions(s.fetchOptions()...),
		graph.WithDatabaseLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	br, err := db.Build(ctx)
	if err != nil {
		return br, err
	}

	s.current.Store(db)
	s.licenses.Clear()
	logger.Info("graph database epoch installed",
		slog.String("epoch_id", br.EpochID),
		slog.Int("objects", db.Len()),
	)

	if s.snapshots != nil {
		if _, err := s.snapshots.Save(ctx, db.Snapshot()); err != nil {
			logger.Warn("saving graph database snapshot failed",
				slog.String("epoch_id", br.EpochID),
				slog.String("error", err.Error()),
			)
		}
	}
	return br, nil
}

// RestoreLatest installs the most recent saved graph database epoch.
//
// Outputs:
//
//	*badger.SnapshotMeta - Metadata of the restored snapshot.
//	error - ErrNoSnapshotStore, badger.ErrSnapshotNotFound, or a load
//	        failure.
func (s *Service) RestoreLatest(ctx context.Context) (*badger.SnapshotMeta, error) {
	if s.snapshots == nil {
		return nil, ErrNoSnapshotStore
	}
	snap, meta, err := s.snapshots.Latest(ctx)
	if err != nil {
		return nil, err
	}
	db, err := graph.NewDatabase(s.repo, s.ids,
		graph.WithPropagationDepth(s.config.PropagationDepth),
		graph.WithFetchOptions(s.fetchOptions()...),
		graph.WithDatabaseLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	db.Restore(snap)
	s.current.Store(db)
	s.logger.Info("graph database restored from snapshot",
		slog.String("epoch_id", meta.EpochID),
		slog.Int("objects", meta.Entries),
		slog.Time("built_at", meta.BuiltAt),
	)
	return meta, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AleutianAI/Curator/services/curator"
	"github.com/AleutianAI/Curator/services/curator/config"
	"github.com/AleutianAI/Curator/services/curator/storage/badger"
	"github.com/AleutianAI/Curator/services/curator/store"
	"github.com/AleutianAI/Curator/services/curator/store/gormstore"
	"github.com/AleutianAI/Curator/services/curator/store/memstore"
)

// stores bundles the persistence collaborators of one command run.
type stores struct {
	repo     store.Repository
	licenses store.LicenseStore
	close    func() error
}

// openStores opens the fixture given with --fixture, or the configured
// database.
func openStores(ctx context.Context) (*stores, error) {
	if fixturePath != "" {
		mem, _, err := memstore.LoadFixtureFile(fixturePath)
		if err != nil {
			return nil, err
		}
		return &stores{repo: mem, licenses: mem, close: func() error { return nil }}, nil
	}

	db, err := gormstore.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	st := gormstore.New(db)
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if err := st.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &stores{repo: st, licenses: st, close: sqlDB.Close}, nil
}

func serviceConfig(c *config.Config) curator.ServiceConfig {
	return curator.ServiceConfig{
		MaxDepth:         c.Graph.MaxDepth,
		PushLimit:        c.Graph.PushLimit,
		PropagationDepth: c.Graph.PropagationDepth,
		CacheAttempts:    c.Cache.MaxAttempts,
		CacheRetryDelay:  c.Cache.RetryDelay,
		RebuildPerMinute: c.Server.RebuildPerMinute,
	}
}

// openSnapshots opens the snapshot store when snapshots are enabled. The
// returned store is nil otherwise.
func openSnapshots(c *config.Config) (*badger.SnapshotStore, func() error, error) {
	if !c.Snapshot.Enabled {
		return nil, func() error { return nil }, nil
	}
	bcfg := badger.DefaultConfig(expandHome(c.Snapshot.Dir))
	bcfg.Logger = slog.Default()
	db, err := badger.Open(bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening snapshot store: %w", err)
	}
	st, err := badger.NewSnapshotStore(db,
		badger.WithKeep(c.Snapshot.Keep),
		badger.WithSnapshotLogger(slog.Default()),
	)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return st, db.Close, nil
}

// newService opens stores, and snapshots if enabled, and builds the
// service. The returned func releases everything.
func newService(ctx context.Context) (*curator.Service, func(), error) {
	st, err := openStores(ctx)
	if err != nil {
		return nil, nil, err
	}
	snaps, closeSnaps, err := openSnapshots(cfg)
	if err != nil {
		_ = st.close()
		return nil, nil, err
	}
	opts := []curator.Option{curator.WithLogger(slog.Default())}
	if snaps != nil {
		opts = append(opts, curator.WithSnapshotStore(snaps))
	}
	svc, err := curator.NewService(serviceConfig(cfg), st.repo, st.licenses, opts...)
	if err != nil {
		_ = closeSnaps()
		_ = st.close()
		return nil, nil, err
	}
	release := func() {
		if err := errors.Join(closeSnaps(), st.close()); err != nil {
			slog.Warn("closing stores failed", slog.String("error", err.Error()))
		}
	}
	return svc, release, nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

func parseObjectID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid object id %q", s)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

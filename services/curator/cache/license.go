// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/AleutianAI/Curator/services/curator/model"
	"github.com/AleutianAI/Curator/services/curator/store"
)

type licenseIndex struct {
	mu   sync.RWMutex
	byID map[int64]*model.License
}

func (x *licenseIndex) get(id int64) (*model.License, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	l, ok := x.byID[id]
	return l, ok
}

func (x *licenseIndex) put(l *model.License) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.byID[l.ID] = l
}

// LicenseCache holds licenses by id and resolved licenses by universal id.
//
// Description:
//
//	Licenses are bulk-loaded lazily like every other cache in this package.
//	Resolved licenses are filled on demand by the license resolver and
//	invalidated by the license manager; only non-nil resolutions are stored.
//
// Thread Safety:
//
//	LicenseCache is safe for concurrent use. Returned values must not be
//	mutated.
type LicenseCache struct {
	store    store.LicenseStore
	licenses *Lazy[*licenseIndex]

	resMu       sync.RWMutex
	resolutions map[int64]*model.LicenseResolution
}

// NewLicenseCache creates a license cache backed by s.
func NewLicenseCache(s store.LicenseStore, opts ...LazyOption) *LicenseCache {
	c := &LicenseCache{
		store:       s,
		resolutions: make(map[int64]*model.LicenseResolution),
	}
	opts = append([]LazyOption{WithName("license")}, opts...)
	c.licenses = NewLazy(c.load, opts...)
	return c
}

func (c *LicenseCache) load(ctx context.Context) (*licenseIndex, error) {
	if c.store == nil {
		return nil, ErrNilLoader
	}
	all, err := c.store.ListLicenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing licenses: %w", err)
	}
	idx := &licenseIndex{byID: make(map[int64]*model.License, len(all))}
	for _, l := range all {
		idx.put(l)
	}
	return idx, nil
}

// License returns the license with the given id.
//
// A miss falls back to a single fetch and backfills the cache. An unknown id
// returns an error wrapping store.ErrNotFound.
func (c *LicenseCache) License(ctx context.Context, id int64) (*model.License, error) {
	idx, err := c.licenses.Get(ctx)
	if err != nil {
		return nil, err
	}
	if l, ok := idx.get(id); ok {
		return l, nil
	}
	recordCacheMiss(ctx, c.licenses.options.Name)
	l, err := c.store.GetLicense(ctx, id)
	if err != nil {
		return nil, err
	}
	idx.put(l)
	return l, nil
}

// Resolution returns the cached resolved license for a universal id.
func (c *LicenseCache) Resolution(ctx context.Context, id int64) (*model.LicenseResolution, bool) {
	c.resMu.RLock()
	r, ok := c.resolutions[id]
	c.resMu.RUnlock()
	if ok {
		recordCacheHit(ctx, "license_resolution")
	} else {
		recordCacheMiss(ctx, "license_resolution")
	}
	return r, ok
}

// SetResolution caches r for id. A nil r removes the entry.
func (c *LicenseCache) SetResolution(id int64, r *model.LicenseResolution) {
	c.resMu.Lock()
	defer c.resMu.Unlock()
	if r == nil {
		delete(c.resolutions, id)
		return
	}
	c.resolutions[id] = r
}

// InvalidateResolutions drops the resolved licenses of ids and returns how
// many entries were present.
func (c *LicenseCache) InvalidateResolutions(ctx context.Context, ids ...int64) int {
	c.resMu.Lock()
	n := 0
	for _, id := range ids {
		if _, ok := c.resolutions[id]; ok {
			delete(c.resolutions, id)
			n++
		}
	}
	c.resMu.Unlock()
	if n > 0 {
		recordCacheInvalidations(ctx, "license_resolution", n)
	}
	return n
}

// Resolutions returns the number of cached resolved licenses.
func (c *LicenseCache) Resolutions() int {
	c.resMu.RLock()
	defer c.resMu.RUnlock()
	return len(c.resolutions)
}

// Warm loads the license table if it is not loaded yet.
func (c *LicenseCache) Warm(ctx context.Context) error {
	_, err := c.licenses.Get(ctx)
	return err
}

// Flush drops all resolved licenses and reloads the license table.
func (c *LicenseCache) Flush(ctx context.Context) error {
	c.dropResolutions()
	_, err := c.licenses.Flush(ctx)
	return err
}

// Clear drops everything. The next access reloads lazily.
func (c *LicenseCache) Clear() {
	c.dropResolutions()
	c.licenses.Clear()
}

func (c *LicenseCache) dropResolutions() {
	c.resMu.Lock()
	defer c.resMu.Unlock()
	c.resolutions = make(map[int64]*model.LicenseResolution)
}

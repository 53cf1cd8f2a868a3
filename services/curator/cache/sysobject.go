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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AleutianAI/Curator/services/curator/model"
	"github.com/AleutianAI/Curator/services/curator/store"
)

// DefaultMissTTL is how long a lookup that found no object is remembered.
const DefaultMissTTL = 30 * time.Second

// SystemObjectInfo is the cached identity of one object.
type SystemObjectInfo struct {
	ID      int64            `json:"id"`
	Type    model.ObjectType `json:"type"`
	TypedID int64            `json:"typed_id"`
	Retired bool             `json:"retired"`
}

// Key returns the typed key.
func (i SystemObjectInfo) Key() model.ObjectKey {
	return model.ObjectKey{Type: i.Type, TypedID: i.TypedID}
}

func infoOf(so *model.SystemObject) SystemObjectInfo {
	return SystemObjectInfo{ID: so.ID, Type: so.Type, TypedID: so.TypedID, Retired: so.Retired}
}

// identityIndex is the built value of a SystemObjectCache.
type identityIndex struct {
	mu    sync.RWMutex
	byKey map[model.ObjectKey]SystemObjectInfo
	byID  map[int64]SystemObjectInfo

	// Expiry times of lookups that found nothing.
	missingKeys map[model.ObjectKey]time.Time
	missingIDs  map[int64]time.Time
}

func newIdentityIndex(size int) *identityIndex {
	return &identityIndex{
		byKey:       make(map[model.ObjectKey]SystemObjectInfo, size),
		byID:        make(map[int64]SystemObjectInfo, size),
		missingKeys: make(map[model.ObjectKey]time.Time),
		missingIDs:  make(map[int64]time.Time),
	}
}

func (x *identityIndex) put(info SystemObjectInfo) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.byKey[info.Key()] = info
	x.byID[info.ID] = info
	delete(x.missingKeys, info.Key())
	delete(x.missingIDs, info.ID)
}

func (x *identityIndex) markKeyMissing(key model.ObjectKey, until time.Time) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.missingKeys[key] = until
}

func (x *identityIndex) markIDMissing(id int64, until time.Time) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.missingIDs[id] = until
}

func (x *identityIndex) keyMissing(key model.ObjectKey, now time.Time) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	until, ok := x.missingKeys[key]
	return ok && now.Before(until)
}

func (x *identityIndex) idMissing(id int64, now time.Time) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	until, ok := x.missingIDs[id]
	return ok && now.Before(until)
}

func (x *identityIndex) getByKey(key model.ObjectKey) (SystemObjectInfo, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	info, ok := x.byKey[key]
	return info, ok
}

func (x *identityIndex) getByID(id int64) (SystemObjectInfo, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	info, ok := x.byID[id]
	return info, ok
}

func (x *identityIndex) len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byID)
}

// SystemObjectCache translates between typed keys and universal ids.
//
// Description:
//
//	The cache is built by one bulk listing of identity records. Lookups that
//	miss fall back to a single-record fetch and backfill both directions, so
//	objects created after the build are found without a flush. A fallback
//	that finds nothing is remembered for DefaultMissTTL, so dangling links
//	do not cost a fetch on every traversal; an object created in that window
//	becomes visible when the entry expires or the cache is flushed.
//
// Thread Safety:
//
//	SystemObjectCache is safe for concurrent use.
type SystemObjectCache struct {
	repo    store.IdentityReader
	lazy    *Lazy[*identityIndex]
	missTTL time.Duration
	now     func() time.Time
}

// NewSystemObjectCache creates an identity cache backed by repo.
func NewSystemObjectCache(repo store.IdentityReader, opts ...LazyOption) *SystemObjectCache {
	c := &SystemObjectCache{repo: repo, missTTL: DefaultMissTTL, now: time.Now}
	opts = append([]LazyOption{WithName("system_object")}, opts...)
	c.lazy = NewLazy(c.load, opts...)
	return c
}

func (c *SystemObjectCache) load(ctx context.Context) (*identityIndex, error) {
	if c.repo == nil {
		return nil, ErrNilLoader
	}
	all, err := c.repo.ListSystemObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing system objects: %w", err)
	}
	idx := newIdentityIndex(len(all))
	for _, so := range all {
		idx.put(infoOf(so))
	}
	return idx, nil
}

// LookupByTypedID returns the identity of the entity with the given key.
//
// Outputs:
//
//	SystemObjectInfo - The identity, valid when found is true.
//	bool - False if no such object exists.
//	error - Non-nil if the cache cannot be built or the fallback fetch fails.
func (c *SystemObjectCache) LookupByTypedID(ctx context.Context, key model.ObjectKey) (SystemObjectInfo, bool, error) {
	idx, err := c.lazy.Get(ctx)
	if err != nil {
		return SystemObjectInfo{}, false, err
	}
	if info, ok := idx.getByKey(key); ok {
		return info, true, nil
	}
	now := c.now()
	if idx.keyMissing(key, now) {
		return SystemObjectInfo{}, false, nil
	}

	recordCacheMiss(ctx, c.lazy.options.Name)
	so, err := c.repo.GetSystemObjectByKey(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			idx.markKeyMissing(key, now.Add(c.missTTL))
			return SystemObjectInfo{}, false, nil
		}
		return SystemObjectInfo{}, false, err
	}
	info := infoOf(so)
	idx.put(info)
	return info, true, nil
}

// LookupByID returns the identity of the object with universal id id.
func (c *SystemObjectCache) LookupByID(ctx context.Context, id int64) (SystemObjectInfo, bool, error) {
	idx, err := c.lazy.Get(ctx)
	if err != nil {
		return SystemObjectInfo{}, false, err
	}
	if info, ok := idx.getByID(id); ok {
		return info, true, nil
	}
	now := c.now()
	if idx.idMissing(id, now) {
		return SystemObjectInfo{}, false, nil
	}

	recordCacheMiss(ctx, c.lazy.options.Name)
	so, err := c.repo.GetSystemObject(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			idx.markIDMissing(id, now.Add(c.missTTL))
			return SystemObjectInfo{}, false, nil
		}
		return SystemObjectInfo{}, false, err
	}
	info := infoOf(so)
	idx.put(info)
	return info, true, nil
}

// Warm builds the cache if it is not built yet.
func (c *SystemObjectCache) Warm(ctx context.Context) error {
	_, err := c.lazy.Get(ctx)
	return err
}

// Len returns the number of cached identities, or 0 if not built.
func (c *SystemObjectCache) Len() int {
	idx, ok := c.lazy.Peek()
	if !ok {
		return 0
	}
	return idx.len()
}

// Flush drops the cache and rebuilds it.
func (c *SystemObjectCache) Flush(ctx context.Context) error {
	_, err := c.lazy.Flush(ctx)
	return err
}

// Clear drops the cache. The next lookup rebuilds it.
func (c *SystemObjectCache) Clear() {
	c.lazy.Clear()
}

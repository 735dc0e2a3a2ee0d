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
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/WorkflowLens/services/lens/graph"
)

// BuildFunc is the function signature for building a graph. The raw
// workflow bytes travel in the closure; the cache only sees the digest.
type BuildFunc func(ctx context.Context) (*graph.Graph, error)

// GraphCache provides LRU caching for normalized graphs keyed by content
// digest.
//
// Thread Safety:
//
//	GraphCache is safe for concurrent use.
type GraphCache struct {
	mu           sync.RWMutex
	entries      map[string]*CacheEntry
	lru          *list.List
	flight       singleflight.Group
	failedBuilds map[string]*failedBuild
	options      CacheOptions

	// Stats
	hits       int64
	misses     int64
	evictions  int64
	buildCount int64
	errorCount int64
}

// NewGraphCache creates a new GraphCache with the given options.
func NewGraphCache(opts ...CacheOption) *GraphCache {
	options := DefaultCacheOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &GraphCache{
		entries:      make(map[string]*CacheEntry),
		lru:          list.New(),
		failedBuilds: make(map[string]*failedBuild),
		options:      options,
	}
}

// Get retrieves a cached graph by digest.
//
// Returns the graph and whether it was found. Expired entries count as
// misses and are removed.
func (c *GraphCache) Get(ctx context.Context, digest string) (*graph.Graph, bool) {
	start := time.Now()

	c.mu.RLock()
	entry, ok := c.entries[digest]
	if !ok {
		c.mu.RUnlock()
		atomic.AddInt64(&c.misses, 1)
		recordCacheMiss(ctx)
		recordCacheGetLatency(ctx, time.Since(start), false)
		return nil, false
	}

	if c.isExpired(entry) {
		c.mu.RUnlock()
		c.removeExpired(digest)
		atomic.AddInt64(&c.misses, 1)
		recordCacheMiss(ctx)
		recordCacheGetLatency(ctx, time.Since(start), false)
		return nil, false
	}

	g := entry.Graph
	c.mu.RUnlock()

	// Update LRU (separate lock operation)
	c.touch(entry)

	atomic.AddInt64(&c.hits, 1)
	recordCacheHit(ctx)
	recordCacheGetLatency(ctx, time.Since(start), true)
	return g, true
}

// GetOrBuild retrieves a cached graph or builds a new one.
//
// Uses singleflight to deduplicate concurrent builds for the same digest.
// Build errors are cached for ErrorCacheTTL to prevent retry storms.
func (c *GraphCache) GetOrBuild(ctx context.Context, digest string, build BuildFunc) (*graph.Graph, error) {
	if build == nil {
		return nil, ErrNilBuild
	}

	// Check cache first (fast path)
	if g, ok := c.Get(ctx, digest); ok {
		return g, nil
	}

	// Check for cached error
	if fb := c.getCachedError(digest); fb != nil {
		return nil, &ErrBuildFailed{
			Err:      fb.err,
			FailedAt: fb.failedAt,
			RetryAt:  fb.retryAt,
		}
	}

	ctx, span := startCacheSpan(ctx, "GetOrBuild", digest)
	defer span.End()

	// Singleflight: only one build per digest
	result, err, _ := c.flight.Do(digest, func() (interface{}, error) {
		entry, err := c.buildAndCache(ctx, digest, build)
		if err != nil {
			c.cacheError(digest, err)
			atomic.AddInt64(&c.errorCount, 1)
			return nil, err
		}
		return entry, nil
	})
	if err != nil {
		return nil, err
	}

	entry := result.(*CacheEntry)
	return entry.Graph, nil
}

// buildAndCache builds a graph and adds it to the cache.
func (c *GraphCache) buildAndCache(ctx context.Context, digest string, build BuildFunc) (*CacheEntry, error) {
	g, err := build(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	entry := &CacheEntry{
		Digest:          digest,
		Graph:           g,
		BuiltAtMilli:    now,
		LastAccessMilli: now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if entry was added while we were building
	if existing, ok := c.entries[digest]; ok {
		return existing, nil
	}

	// Evict if needed
	c.evictIfNeeded(ctx)

	// Add to cache
	entry.lruElement = c.lru.PushFront(digest)
	c.entries[digest] = entry
	atomic.AddInt64(&c.buildCount, 1)
	recordCacheBuild(ctx)

	return entry, nil
}

// Invalidate removes the entry for digest. Removing an absent digest is a
// no-op. Readers that already hold the graph keep a valid pointer.
func (c *GraphCache) Invalidate(digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[digest]; ok {
		c.removeEntryLocked(digest, entry)
	}
}

// Clear removes all entries from the cache.
func (c *GraphCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for digest, entry := range c.entries {
		c.removeEntryLocked(digest, entry)
	}
}

// Stats returns current cache statistics.
func (c *GraphCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		EntryCount: len(c.entries),
		Hits:       atomic.LoadInt64(&c.hits),
		Misses:     atomic.LoadInt64(&c.misses),
		Evictions:  atomic.LoadInt64(&c.evictions),
		BuildCount: atomic.LoadInt64(&c.buildCount),
		ErrorCount: atomic.LoadInt64(&c.errorCount),
		MaxEntries: c.options.MaxEntries,
		MaxAge:     c.options.MaxAge,
	}
}

// isExpired checks if an entry has exceeded its TTL.
func (c *GraphCache) isExpired(entry *CacheEntry) bool {
	if c.options.MaxAge == 0 {
		return false
	}
	age := time.Since(time.UnixMilli(entry.BuiltAtMilli))
	return age > c.options.MaxAge
}

// touch moves an entry to the front of the LRU list and stamps the access
// time.
func (c *GraphCache) touch(entry *CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.lruElement != nil {
		c.lru.MoveToFront(entry.lruElement)
	}
	entry.LastAccessMilli = time.Now().UnixMilli()
}

// removeExpired removes an expired entry from the cache. Rechecks expiry
// under the write lock in case a rebuild won the race.
func (c *GraphCache) removeExpired(digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[digest]; ok && c.isExpired(entry) {
		c.removeEntryLocked(digest, entry)
	}
}

// removeEntryLocked removes an entry (must hold write lock).
func (c *GraphCache) removeEntryLocked(digest string, entry *CacheEntry) {
	if entry.lruElement != nil {
		c.lru.Remove(entry.lruElement)
		entry.lruElement = nil
	}
	delete(c.entries, digest)
}

// evictIfNeeded evicts the least recently used entries until the cache is
// under its entry limit.
//
// Entries are immutable, so eviction never waits on readers.
//
// Assumptions:
//
//	Caller holds the write lock on c.mu.
func (c *GraphCache) evictIfNeeded(ctx context.Context) {
	for len(c.entries) >= c.options.MaxEntries {
		e := c.lru.Back()
		if e == nil {
			return
		}

		digest := e.Value.(string)
		if entry, ok := c.entries[digest]; ok {
			c.removeEntryLocked(digest, entry)
		} else {
			c.lru.Remove(e)
		}
		atomic.AddInt64(&c.evictions, 1)
		recordCacheEviction(ctx)
	}
}

// getCachedError returns a cached build error if one exists and hasn't expired.
func (c *GraphCache) getCachedError(digest string) *failedBuild {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fb, ok := c.failedBuilds[digest]
	if !ok {
		return nil
	}

	// Check if error has expired
	if time.Now().After(fb.retryAt) {
		// Clean up in a separate goroutine to avoid lock escalation
		go c.clearCachedError(digest)
		return nil
	}

	return fb
}

// cacheError stores a build error.
func (c *GraphCache) cacheError(digest string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.failedBuilds[digest] = &failedBuild{
		err:      err,
		failedAt: now,
		retryAt:  now.Add(c.options.ErrorCacheTTL),
	}
}

// clearCachedError removes a cached error.
func (c *GraphCache) clearCachedError(digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.failedBuilds, digest)
}

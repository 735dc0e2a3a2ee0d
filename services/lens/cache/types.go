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
	"time"

	"github.com/AleutianAI/WorkflowLens/services/lens/graph"
)

// Default configuration values.
const (
	// DefaultMaxEntries is the default maximum number of cached graphs.
	// Workflow graphs are small (kilobytes), so the default is generous.
	DefaultMaxEntries = 128

	// DefaultMaxAge is the default TTL for cached entries.
	DefaultMaxAge = 30 * time.Minute

	// DefaultErrorCacheTTL is how long build errors are cached.
	DefaultErrorCacheTTL = 5 * time.Second
)

// CacheEntry represents a cached graph with its metadata.
//
// Entries are immutable once built; only the cache's own bookkeeping
// fields change afterwards, always under the cache lock.
type CacheEntry struct {
	// Digest is the content digest of the raw workflow bytes.
	// Format: full SHA256 (64 hex chars).
	Digest string

	// Graph is the cached canonical graph.
	Graph *graph.Graph

	// BuiltAtMilli is when the graph was built.
	BuiltAtMilli int64

	// LastAccessMilli is when the entry was last accessed.
	LastAccessMilli int64

	// lruElement is the position in the LRU list.
	lruElement *list.Element
}

// CacheStats contains statistics about the cache.
type CacheStats struct {
	// EntryCount is the number of entries in the cache.
	EntryCount int

	// Hits is the number of cache hits.
	Hits int64

	// Misses is the number of cache misses.
	Misses int64

	// Evictions is the number of entries evicted.
	Evictions int64

	// BuildCount is the number of graphs built.
	BuildCount int64

	// ErrorCount is the number of build errors.
	ErrorCount int64

	// MaxEntries is the configured maximum entries.
	MaxEntries int

	// MaxAge is the configured TTL.
	MaxAge time.Duration
}

// HitRate returns the cache hit rate as a percentage.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// CacheOptions configures GraphCache behavior.
type CacheOptions struct {
	// MaxEntries is the maximum number of cached graphs.
	MaxEntries int

	// MaxAge is the TTL for cached entries. Zero disables expiry.
	MaxAge time.Duration

	// ErrorCacheTTL is how long build errors are cached.
	ErrorCacheTTL time.Duration
}

// DefaultCacheOptions returns sensible defaults.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		MaxEntries:    DefaultMaxEntries,
		MaxAge:        DefaultMaxAge,
		ErrorCacheTTL: DefaultErrorCacheTTL,
	}
}

// CacheOption is a functional option for configuring GraphCache.
type CacheOption func(*CacheOptions)

// WithMaxEntries sets the maximum number of cached entries.
func WithMaxEntries(n int) CacheOption {
	return func(o *CacheOptions) {
		if n > 0 {
			o.MaxEntries = n
		}
	}
}

// WithMaxAge sets the TTL for cached entries.
func WithMaxAge(d time.Duration) CacheOption {
	return func(o *CacheOptions) {
		if d > 0 {
			o.MaxAge = d
		}
	}
}

// WithErrorCacheTTL sets how long build errors are cached.
func WithErrorCacheTTL(d time.Duration) CacheOption {
	return func(o *CacheOptions) {
		if d > 0 {
			o.ErrorCacheTTL = d
		}
	}
}

// failedBuild represents a cached build error.
type failedBuild struct {
	err      error
	failedAt time.Time
	retryAt  time.Time
}

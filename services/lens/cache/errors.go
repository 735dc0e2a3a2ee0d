// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides ephemeral caching of normalized workflow graphs
// with LRU eviction.
//
// Graphs are keyed by the content digest of the raw workflow bytes and are
// always rebuildable from those bytes. The cache is a performance
// optimization, not a source of truth.
//
// # Design Principles
//
// Cached graphs are immutable once built, so entries carry no reference
// counts: a reader that obtained a graph keeps using its pointer safely
// after eviction, and the garbage collector reclaims the entry when the
// last reader finishes.
//
// # Thread Safety
//
// GraphCache is safe for concurrent use.
package cache

import (
	"errors"
	"fmt"
	"time"
)

// ErrNilBuild is returned when GetOrBuild is called without a build
// function.
var ErrNilBuild = errors.New("build function is required")

// ErrBuildFailed wraps a build error with timing information.
//
// When a build fails, the error is cached to prevent retry storms.
// This error type includes when the failure occurred and when
// a retry is allowed.
type ErrBuildFailed struct {
	// Err is the underlying build error.
	Err error

	// FailedAt is when the build failed.
	FailedAt time.Time

	// RetryAt is when a retry is allowed.
	RetryAt time.Time
}

// Error implements the error interface.
func (e *ErrBuildFailed) Error() string {
	return fmt.Sprintf("build failed at %v (retry after %v): %v",
		e.FailedAt.Format(time.RFC3339), e.RetryAt.Format(time.RFC3339), e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ErrBuildFailed) Unwrap() error {
	return e.Err
}

// CanRetry returns true if the retry time has passed.
func (e *ErrBuildFailed) CanRetry() bool {
	return time.Now().After(e.RetryAt)
}

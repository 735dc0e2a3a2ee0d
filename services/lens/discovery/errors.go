// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package discovery finds sampler and text-bearing nodes in a canonical
// workflow graph.
//
// Both passes walk the graph backward from an anchor node (the neighborhood
// feeding into it) and return ranked, serializable result records. What
// counts as "sampler-like" and what counts as "negative conditioning" are
// policies, not engine logic: callers inject a SamplerClassifier and a
// NegativeDetector, and the defaults come from the rules registry
// (rules.yaml, embedded at build time and overridable on disk).
//
// Thread Safety:
//
//	All exported functions are pure with respect to the graph and safe for
//	concurrent use. The rules registry is loaded once behind a mutex.
package discovery

import "errors"

// Sentinel errors for discovery validation.
var (
	// ErrNegativeLength is returned when a discovery pass is requested
	// with a negative minimum text length. Omitting WithMinTextLength
	// means the rules registry default; a negative bound is always a
	// caller bug.
	ErrNegativeLength = errors.New("negative min text length")
)

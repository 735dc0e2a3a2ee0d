// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph converts loosely-typed workflow documents into canonical
// node graphs and answers traversal queries over them.
//
// The graph package contains types for representing a generative workflow
// as a directed graph where nodes are workflow steps (samplers, loaders,
// text encoders) and edges represent data flow from producer to consumer.
//
// # Input Tolerance
//
// Workflow documents arrive in whatever shape the authoring tool emitted:
// node ids may be strings or integers, link sections may be sparse, null-
// padded, or missing entirely, and records may omit any field. Normalization
// never fails on malformed data — unrecognized shapes degrade to an empty
// graph and dangling link endpoints are synthesized as empty nodes. The only
// errors this package returns are validation errors for impossible query
// arguments (unknown direction, negative depth).
//
// # Ownership Model
//
// A Graph owns its NodeRecords:
//   - NodeRecords MUST NOT be mutated after normalization returns
//   - Accessors return the stored records without copying (for memory
//     efficiency); callers treat them as read-only
//
// # Thread Safety
//
// A Graph is immutable after construction. Normalize builds the complete
// structure before returning, and no exported method mutates it, so a Graph
// can be shared and queried from multiple goroutines without locking.
//
// # Lifecycle
//
// A typical graph lifecycle:
//  1. Build with Normalize(raw) or NormalizeDocument(doc)
//  2. Query with Walk(), Trace(), Node(), adjacency accessors
//  3. Discard (or share read-only through a cache)
package graph

import "errors"

// Sentinel errors for traversal validation.
var (
	// ErrInvalidDirection is returned when a traversal is requested with a
	// Direction value outside the recognized set. Direction is a closed
	// enum; anything else is a programming error, not a data error.
	ErrInvalidDirection = errors.New("invalid traversal direction")

	// ErrNegativeDepth is returned when a traversal is requested with a
	// negative maximum depth. Omitting WithMaxDepth means unbounded; a
	// negative bound is always a caller bug.
	ErrNegativeDepth = errors.New("negative max depth")
)

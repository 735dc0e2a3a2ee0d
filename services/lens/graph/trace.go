// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

// Trace performs a traversal from start and joins each visited node with
// its class tag, producing the serializable trace map.
//
// Description:
//
//	Delegates to Walk, then enriches every visited node with the class
//	tag looked up from the node map (empty string for nodes synthesized
//	from dangling references). Every key in the returned map is a string
//	node id; every Parents slice is non-nil so it serializes as [].
//
// Inputs:
//
//	start - Anchor node id
//	dir - DirectionForward or DirectionBackward
//	opts - Traversal options (WithMaxDepth; default unbounded)
//
// Outputs:
//
//	map[string]TraceEntry - One entry per visited node
//	error - ErrInvalidDirection or ErrNegativeDepth on bad arguments
func (g *Graph) Trace(start string, dir Direction, opts ...WalkOption) (map[string]TraceEntry, error) {
	walk, err := g.Walk(start, dir, opts...)
	if err != nil {
		return nil, err
	}
	trace := make(map[string]TraceEntry, len(walk.Order))
	for _, id := range walk.Order {
		trace[id] = TraceEntry{
			Distance:  walk.Distances[id],
			ClassType: g.ClassOf(id),
			Parents:   walk.Parents[id],
		}
	}
	return trace, nil
}

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

import "fmt"

// WalkOptions configures traversal behavior.
type WalkOptions struct {
	// MaxDepth bounds the maximum distance explored when Bounded is true.
	// Nodes at the bound are reported but their edges are not expanded;
	// nodes beyond it are never visited.
	MaxDepth int

	// Bounded records whether a depth bound applies. The zero value walks
	// the entire reachable neighborhood.
	Bounded bool
}

// DefaultWalkOptions returns an unbounded traversal configuration.
func DefaultWalkOptions() WalkOptions {
	return WalkOptions{}
}

// WalkOption is a functional option for configuring traversals.
type WalkOption func(*WalkOptions)

// WithMaxDepth bounds the traversal to d hops from the start node.
//
// Negative values are rejected by Walk with ErrNegativeDepth. Omit the
// option entirely for an unbounded walk.
func WithMaxDepth(d int) WalkOption {
	return func(o *WalkOptions) {
		o.MaxDepth = d
		o.Bounded = true
	}
}

// applyWalkOptions applies functional options and returns the configured
// options.
func applyWalkOptions(opts []WalkOption) WalkOptions {
	options := DefaultWalkOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Walk performs a breadth-first traversal from start.
//
// Description:
//
//	Standard level-by-level expansion from a single-element frontier at
//	distance 0, iterative (not recursive) to handle deep graphs without
//	stack overflow. A visited-set blocks re-enqueueing, so traversal
//	terminates on cyclic graphs and every reported distance is the true
//	shortest hop count under the chosen direction.
//
//	Parent links are recorded for backward walks only: when an edge lands
//	on a node exactly one level deeper, the expanding node is appended to
//	that node's parent list. Adjacency lists are deduplicated and each
//	node is dequeued once, so each parent appears at most once, in
//	first-discovered order. The start node's parent list is always empty.
//
//	A start node absent from the graph is still a valid anchor: the result
//	contains only the start at distance 0 with no neighborhood.
//
// Inputs:
//
//	start - Anchor node id
//	dir - DirectionForward or DirectionBackward
//	opts - Traversal options (WithMaxDepth; default unbounded)
//
// Outputs:
//
//	*WalkResult - Visit order, distances, and parent links
//	error - ErrInvalidDirection or ErrNegativeDepth on bad arguments
func (g *Graph) Walk(start string, dir Direction, opts ...WalkOption) (*WalkResult, error) {
	if err := dir.Validate(); err != nil {
		return nil, err
	}
	options := applyWalkOptions(opts)
	if options.Bounded && options.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth %d: %w", options.MaxDepth, ErrNegativeDepth)
	}

	result := &WalkResult{
		Start:     start,
		Order:     make([]string, 0),
		Distances: make(map[string]int),
		Parents:   make(map[string][]string),
	}

	type queueItem struct {
		nodeID string
		depth  int
	}
	queue := []queueItem{{start, 0}}
	visited := map[string]bool{start: true}
	result.Distances[start] = 0
	result.Parents[start] = []string{}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		result.Order = append(result.Order, item.nodeID)

		if options.Bounded && item.depth >= options.MaxDepth {
			continue
		}

		for _, next := range g.neighbors(item.nodeID, dir) {
			if visited[next] {
				// Re-examined edge. Record a co-parent when it lands
				// exactly one level deeper; the start node never
				// qualifies because its distance is 0.
				if dir == DirectionBackward && result.Distances[next] == item.depth+1 {
					result.Parents[next] = append(result.Parents[next], item.nodeID)
				}
				continue
			}
			visited[next] = true
			result.Distances[next] = item.depth + 1
			if dir == DirectionBackward {
				result.Parents[next] = []string{item.nodeID}
			} else {
				result.Parents[next] = []string{}
			}
			queue = append(queue, queueItem{next, item.depth + 1})
		}
	}

	return result, nil
}

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

import (
	"fmt"
	"sort"
)

// Direction selects which adjacency a traversal follows.
type Direction int

const (
	// DirectionForward follows producer→consumer edges (data flow order).
	DirectionForward Direction = iota

	// DirectionBackward follows consumer→producer edges (toward upstream
	// sources). Discovery passes walk backward from their anchor.
	DirectionBackward
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	default:
		return "unknown"
	}
}

// Validate returns ErrInvalidDirection if d is not a recognized direction.
func (d Direction) Validate() error {
	switch d {
	case DirectionForward, DirectionBackward:
		return nil
	default:
		return fmt.Errorf("direction %d: %w", int(d), ErrInvalidDirection)
	}
}

// ParseDirection converts the wire form ("forward", "backward") to a
// Direction. Unrecognized values return ErrInvalidDirection.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "forward":
		return DirectionForward, nil
	case "backward":
		return DirectionBackward, nil
	default:
		return 0, fmt.Errorf("direction %q: %w", s, ErrInvalidDirection)
	}
}

// NodeRecord is the canonical, read-only view of one workflow node.
//
// Records are owned by their Graph and must not be mutated after
// normalization. Nodes synthesized from dangling link references have the
// zero value: empty class tag, nil inputs, nil widgets.
type NodeRecord struct {
	// ClassType is the node's declared class tag ("" when absent or
	// synthesized). The source field is class_type, falling back to type
	// for roster-layout records.
	ClassType string

	// Inputs maps input-field name to raw value. Values are heterogeneous:
	// scalars, strings, nested structures, or producer links of the form
	// [node-id, slot].
	Inputs map[string]any

	// Widgets holds widget values in positional order. Heterogeneous and
	// positionally significant; populated from widgets_values.
	Widgets []any
}

// Graph is the canonical, immutable view of a workflow document.
//
// Node ids are always strings regardless of how the source document typed
// them. Adjacency lists are deterministically ordered and deduplicated, and
// every id appearing in an adjacency list is also a key in the node map.
type Graph struct {
	// nodes maps node id to its record. Unexported to prevent mutation.
	nodes map[string]*NodeRecord

	// forward maps producer id to ordered consumer ids.
	forward map[string][]string

	// backward maps consumer id to ordered producer ids.
	backward map[string][]string

	// edgeCount is the number of distinct directed edges.
	edgeCount int
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of distinct directed edges in the graph.
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// Node returns the record for id and whether it exists.
//
// The returned record is the graph's own storage; callers must treat it as
// read-only.
func (g *Graph) Node(id string) (*NodeRecord, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// ClassOf returns the class tag for id, or "" when the node is absent or
// was synthesized from a dangling reference.
func (g *Graph) ClassOf(id string) string {
	if n, ok := g.nodes[id]; ok {
		return n.ClassType
	}
	return ""
}

// NodeIDs returns all node ids in ascending lexicographic order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Successors returns a copy of the ordered consumer ids downstream of id.
func (g *Graph) Successors(id string) []string {
	return copyIDs(g.forward[id])
}

// Predecessors returns a copy of the ordered producer ids upstream of id.
func (g *Graph) Predecessors(id string) []string {
	return copyIDs(g.backward[id])
}

// neighbors returns the adjacency list for id under the given direction.
// Internal callers receive the backing slice and must not mutate it.
func (g *Graph) neighbors(id string, dir Direction) []string {
	if dir == DirectionForward {
		return g.forward[id]
	}
	return g.backward[id]
}

func copyIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Stats summarizes graph size for logging.
type Stats struct {
	// Nodes is the total node count, synthesized nodes included.
	Nodes int `json:"nodes"`

	// Edges is the distinct directed edge count.
	Edges int `json:"edges"`
}

// Stats returns node and edge counts.
func (g *Graph) Stats() Stats {
	return Stats{Nodes: len(g.nodes), Edges: g.edgeCount}
}

// WalkResult holds the outcome of a single breadth-first traversal.
type WalkResult struct {
	// Start is the anchor node id the walk began from. Always present in
	// Order and Distances even when absent from the graph.
	Start string

	// Order lists visited node ids in dequeue order (level by level).
	Order []string

	// Distances maps each visited node id to its shortest hop count from
	// the start under the traversal direction.
	Distances map[string]int

	// Parents maps each visited node id to its immediate predecessors in
	// first-discovered order. Recorded for backward walks only; the start
	// node's entry is always empty. Forward walks leave every entry empty.
	Parents map[string][]string
}

// TraceEntry is the serializable per-node summary produced by Trace.
type TraceEntry struct {
	// Distance is the hop count from the anchor node; 0 for the anchor.
	Distance int `json:"distance"`

	// ClassType is the node's class tag ("" for synthesized nodes).
	ClassType string `json:"class_type"`

	// Parents lists immediate predecessors in first-discovered order.
	// Empty for forward traversals and for the anchor itself. Never nil,
	// so the entry serializes as [].
	Parents []string `json:"parents"`
}

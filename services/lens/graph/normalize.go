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
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Normalize parses raw JSON bytes and builds the canonical graph.
//
// Description:
//
//	Decodes the document and delegates to NormalizeDocument. Two layouts
//	are recognized:
//
//	  keyed  — the top-level object maps node-id to record; producer links
//	           are input values shaped [node-id, slot].
//	  roster — the top-level object carries a "nodes" collection (list or
//	           mapping) and a "links" list of
//	           [link-id, src, src-slot, dst, dst-slot, type] arrays.
//
//	Anything else degrades to an empty graph. The only error condition is
//	bytes that are not valid JSON at all.
//
// Inputs:
//
//	raw - Raw workflow document bytes
//
// Outputs:
//
//	*Graph - Canonical graph (possibly empty, never nil)
//	error - Non-nil only when raw is not valid JSON
func Normalize(raw []byte) (*Graph, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode workflow document: %w", err)
	}
	return NormalizeDocument(doc), nil
}

// NormalizeDocument builds the canonical graph from an already-decoded
// workflow document.
//
// Description:
//
//	Tolerates every malformed shape the wild produces: non-object
//	documents, missing or null link sections, sparse link arrays, records
//	without class tags, node ids typed as numbers. Malformed pieces are
//	skipped; a missing link section yields nodes with empty adjacency;
//	dangling link endpoints are synthesized as empty records so adjacency
//	lists only ever reference known ids. Never fails.
//
// Inputs:
//
//	doc - Decoded document (typically map[string]any from encoding/json)
//
// Outputs:
//
//	*Graph - Canonical graph (possibly empty, never nil)
func NormalizeDocument(doc any) *Graph {
	b := newBuilder()
	if m, ok := doc.(map[string]any); ok {
		if nodes, ok := m["nodes"]; ok {
			b.addRoster(nodes)
			b.addLinks(m["links"])
		} else {
			b.addKeyed(m)
		}
	}
	return b.finish()
}

// builder accumulates nodes and deduplicated edges during normalization.
type builder struct {
	nodes    map[string]*NodeRecord
	forward  map[string][]string
	backward map[string][]string
	seen     map[[2]string]bool
	edges    int
}

func newBuilder() *builder {
	return &builder{
		nodes:    make(map[string]*NodeRecord),
		forward:  make(map[string][]string),
		backward: make(map[string][]string),
		seen:     make(map[[2]string]bool),
	}
}

// addKeyed ingests the keyed layout: node-id → record, with producer links
// embedded in input values. Ids and input fields are visited in sorted order
// so adjacency construction is reproducible.
func (b *builder) addKeyed(m map[string]any) {
	for _, id := range sortedKeys(m) {
		if id == "" {
			continue
		}
		rec, ok := m[id].(map[string]any)
		if !ok {
			continue
		}
		b.nodes[id] = parseRecord(rec)
		inputs, ok := rec["inputs"].(map[string]any)
		if !ok {
			continue
		}
		for _, field := range sortedKeys(inputs) {
			if src, ok := linkSource(inputs[field]); ok {
				b.addEdge(src, id)
			}
		}
	}
}

// addRoster ingests the roster layout's node collection, which may be a
// list of records carrying their own id or a mapping keyed by id.
func (b *builder) addRoster(nodes any) {
	switch n := nodes.(type) {
	case []any:
		for _, e := range n {
			rec, ok := e.(map[string]any)
			if !ok {
				continue
			}
			id, ok := coerceID(rec["id"])
			if !ok {
				continue
			}
			b.nodes[id] = parseRecord(rec)
		}
	case map[string]any:
		for _, id := range sortedKeys(n) {
			if id == "" {
				continue
			}
			rec, ok := n[id].(map[string]any)
			if !ok {
				continue
			}
			b.nodes[id] = parseRecord(rec)
		}
	}
}

// addLinks ingests a roster link section. Entries may be null, truncated,
// or otherwise malformed; those are skipped. A mapping-shaped section is
// visited in sorted key order for reproducibility.
func (b *builder) addLinks(links any) {
	switch l := links.(type) {
	case []any:
		for _, e := range l {
			b.addLinkEntry(e)
		}
	case map[string]any:
		for _, k := range sortedKeys(l) {
			b.addLinkEntry(l[k])
		}
	}
}

// addLinkEntry derives one edge from a [link-id, src, src-slot, dst, ...]
// array. Slots and trailing type tags are ignored.
func (b *builder) addLinkEntry(e any) {
	arr, ok := e.([]any)
	if !ok || len(arr) < 4 {
		return
	}
	src, ok := coerceID(arr[1])
	if !ok {
		return
	}
	dst, ok := coerceID(arr[3])
	if !ok {
		return
	}
	b.addEdge(src, dst)
}

// addEdge records a producer→consumer edge once; duplicates are dropped.
func (b *builder) addEdge(src, dst string) {
	key := [2]string{src, dst}
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.forward[src] = append(b.forward[src], dst)
	b.backward[dst] = append(b.backward[dst], src)
	b.edges++
}

// finish synthesizes empty records for dangling link endpoints and seals
// the graph.
func (b *builder) finish() *Graph {
	for key := range b.seen {
		if _, ok := b.nodes[key[0]]; !ok {
			b.nodes[key[0]] = &NodeRecord{}
		}
		if _, ok := b.nodes[key[1]]; !ok {
			b.nodes[key[1]] = &NodeRecord{}
		}
	}
	return &Graph{
		nodes:     b.nodes,
		forward:   b.forward,
		backward:  b.backward,
		edgeCount: b.edges,
	}
}

// parseRecord extracts the canonical fields from one raw node record.
//
// The class tag comes from class_type, falling back to type. A mapping
// inputs section is stored as-is; a list-shaped section (roster port
// descriptors) contributes only entries carrying both a name and a literal
// value, first occurrence winning. Widget values are kept positionally.
func parseRecord(rec map[string]any) *NodeRecord {
	node := &NodeRecord{}
	if s, ok := rec["class_type"].(string); ok {
		node.ClassType = s
	} else if s, ok := rec["type"].(string); ok {
		node.ClassType = s
	}
	switch in := rec["inputs"].(type) {
	case map[string]any:
		node.Inputs = in
	case []any:
		for _, e := range in {
			port, ok := e.(map[string]any)
			if !ok {
				continue
			}
			name, ok := port["name"].(string)
			if !ok || name == "" {
				continue
			}
			val, ok := port["value"]
			if !ok {
				continue
			}
			if node.Inputs == nil {
				node.Inputs = make(map[string]any)
			}
			if _, dup := node.Inputs[name]; !dup {
				node.Inputs[name] = val
			}
		}
	}
	if w, ok := rec["widgets_values"].([]any); ok {
		node.Widgets = w
	}
	return node
}

// linkSource reports whether v is a producer link of the form
// [node-id, slot] and returns the producer id when it is.
func linkSource(v any) (string, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return "", false
	}
	id, ok := coerceID(arr[0])
	if !ok {
		return "", false
	}
	if !isSlot(arr[1]) {
		return "", false
	}
	return id, true
}

// isSlot reports whether v is an integral slot index.
func isSlot(v any) bool {
	switch t := v.(type) {
	case float64:
		return t == math.Trunc(t) && !math.IsInf(t, 0)
	case int, int64:
		return true
	case json.Number:
		_, err := t.Int64()
		return err == nil
	default:
		return false
	}
}

// coerceID normalizes a node id to string form. Source documents type ids
// as strings or numbers interchangeably; downstream code only ever sees
// strings.
func coerceID(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		if t != math.Trunc(t) || math.IsNaN(t) || t < math.MinInt64 || t > math.MaxInt64 {
			return "", false
		}
		return strconv.FormatInt(int64(t), 10), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return strconv.FormatInt(n, 10), true
		}
		return "", false
	default:
		return "", false
	}
}

// sortedKeys returns m's keys in ascending order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

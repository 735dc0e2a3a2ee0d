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
	"reflect"
	"testing"
)

// =============================================================================
// Normalizer Test Fixtures
// =============================================================================

// keyedChainJSON is the keyed form of the linear chain A→B→C: the loader
// feeds the text encoder, the text encoder feeds the sampler.
const keyedChainJSON = `{
	"A": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "v1-5.safetensors"}},
	"B": {"class_type": "CLIPTextEncode", "inputs": {"text": "a cat sitting on a mat", "clip": ["A", 1]}},
	"C": {"class_type": "KSampler", "inputs": {"positive": ["B", 0], "seed": 42, "steps": 20}}
}`

// chainGraph normalizes keyedChainJSON.
func chainGraph(t *testing.T) *Graph {
	t.Helper()

	g, err := Normalize([]byte(keyedChainJSON))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	return g
}

// rosterDoc returns a decoded roster-layout document with the value types
// encoding/json produces (float64 ids, []any collections). The links
// section contains a null hole, a short stub, and a non-array entry.
func rosterDoc() map[string]any {
	return map[string]any{
		"nodes": []any{
			map[string]any{
				"id":             float64(1),
				"type":           "CheckpointLoaderSimple",
				"widgets_values": []any{"v1-5.safetensors"},
			},
			map[string]any{
				"id":             float64(2),
				"type":           "CLIPTextEncode",
				"widgets_values": []any{"a cat sitting on a mat"},
			},
			map[string]any{
				"id":             float64(3),
				"type":           "KSampler",
				"widgets_values": []any{float64(42), "fixed", float64(20)},
			},
			"not a record",
			map[string]any{"type": "Orphan"},
		},
		"links": []any{
			[]any{float64(1), float64(1), float64(0), float64(2), float64(0), "CLIP"},
			nil,
			[]any{float64(2), float64(2), float64(0), float64(3), float64(1), "CONDITIONING"},
			[]any{float64(9)},
			"garbage",
		},
	}
}

// =============================================================================
// Keyed Layout
// =============================================================================

func TestNormalize_KeyedLayout(t *testing.T) {
	g := chainGraph(t)

	if g.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", g.Len())
	}
	if g.EdgeCount() != 2 {
		t.Fatalf("EdgeCount() = %d, want 2", g.EdgeCount())
	}

	node, ok := g.Node("C")
	if !ok {
		t.Fatal("Node(C) not found")
	}
	if node.ClassType != "KSampler" {
		t.Errorf("Node(C).ClassType = %q, want %q", node.ClassType, "KSampler")
	}
	if node.Inputs["seed"] != float64(42) {
		t.Errorf("Node(C).Inputs[seed] = %v, want 42", node.Inputs["seed"])
	}

	if got := g.Successors("A"); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("Successors(A) = %v, want [B]", got)
	}
	if got := g.Predecessors("C"); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("Predecessors(C) = %v, want [B]", got)
	}
}

func TestNormalize_KeyedLiteralArraysAreNotLinks(t *testing.T) {
	// Two-element arrays only count as producer links when they are
	// [id, slot]; string pairs and non-integral slots stay literal values.
	doc := map[string]any{
		"1": map[string]any{
			"class_type": "ImageBatch",
			"inputs": map[string]any{
				"pair":  []any{"a", "b"},
				"ratio": []any{"2", 0.5},
				"src":   []any{"2", float64(0)},
			},
		},
		"2": map[string]any{"class_type": "LoadImage"},
	}
	g := NormalizeDocument(doc)

	if g.EdgeCount() != 1 {
		t.Fatalf("EdgeCount() = %d, want 1 (only the [id, slot] value)", g.EdgeCount())
	}
	if got := g.Predecessors("1"); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("Predecessors(1) = %v, want [2]", got)
	}
}

func TestNormalize_DuplicateLinksDeduplicated(t *testing.T) {
	doc := map[string]any{
		"1": map[string]any{"class_type": "LoadImage"},
		"2": map[string]any{
			"class_type": "ImageBlend",
			"inputs": map[string]any{
				"image1": []any{"1", 0},
				"image2": []any{"1", 0},
			},
		},
	}
	g := NormalizeDocument(doc)

	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1", g.EdgeCount())
	}
	if got := g.Successors("1"); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("Successors(1) = %v, want [2]", got)
	}
}

// =============================================================================
// Roster Layout
// =============================================================================

func TestNormalize_RosterLayout(t *testing.T) {
	g := NormalizeDocument(rosterDoc())

	// Three identified records; the string entry and the id-less record
	// are skipped.
	if g.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", g.Len())
	}
	if g.EdgeCount() != 2 {
		t.Fatalf("EdgeCount() = %d, want 2 (null/short/garbage links skipped)", g.EdgeCount())
	}

	node, ok := g.Node("3")
	if !ok {
		t.Fatal("Node(3) not found; numeric ids must normalize to strings")
	}
	if node.ClassType != "KSampler" {
		t.Errorf("Node(3).ClassType = %q, want %q", node.ClassType, "KSampler")
	}
	if len(node.Widgets) != 3 {
		t.Errorf("Node(3).Widgets length = %d, want 3", len(node.Widgets))
	}

	if got := g.Predecessors("3"); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("Predecessors(3) = %v, want [2]", got)
	}
}

func TestNormalize_RosterNodesAsMapping(t *testing.T) {
	doc := map[string]any{
		"nodes": map[string]any{
			"10": map[string]any{"class_type": "VAEDecode"},
			"11": map[string]any{"type": "SaveImage"},
		},
	}
	g := NormalizeDocument(doc)

	if g.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", g.Len())
	}
	if got := g.ClassOf("11"); got != "SaveImage" {
		t.Errorf("ClassOf(11) = %q, want %q (type fallback)", got, "SaveImage")
	}
	if g.EdgeCount() != 0 {
		t.Errorf("EdgeCount() = %d, want 0 (links section absent)", g.EdgeCount())
	}
}

func TestNormalize_RosterPortInputs(t *testing.T) {
	// List-shaped inputs contribute only entries carrying a literal value.
	doc := map[string]any{
		"nodes": []any{
			map[string]any{
				"id":   float64(7),
				"type": "CLIPTextEncode",
				"inputs": []any{
					map[string]any{"name": "clip", "link": float64(4)},
					map[string]any{"name": "text", "value": "an oil painting of a lighthouse"},
					map[string]any{"value": "nameless"},
					"junk",
				},
			},
		},
	}
	g := NormalizeDocument(doc)

	node, ok := g.Node("7")
	if !ok {
		t.Fatal("Node(7) not found")
	}
	if len(node.Inputs) != 1 {
		t.Fatalf("Inputs length = %d, want 1 (port descriptors without values skipped)", len(node.Inputs))
	}
	if got := node.Inputs["text"]; got != "an oil painting of a lighthouse" {
		t.Errorf("Inputs[text] = %v, want the literal string", got)
	}
}

// =============================================================================
// Degradation
// =============================================================================

func TestNormalize_GarbageShapesDegradeToEmpty(t *testing.T) {
	docs := []any{
		nil,
		"just a string",
		float64(17),
		[]any{"a", "b"},
		map[string]any{"nodes": "not a collection"},
	}
	for _, doc := range docs {
		g := NormalizeDocument(doc)
		if g == nil {
			t.Fatalf("NormalizeDocument(%v) = nil, want empty graph", doc)
		}
		if g.Len() != 0 || g.EdgeCount() != 0 {
			t.Errorf("NormalizeDocument(%v) = %d nodes / %d edges, want empty", doc, g.Len(), g.EdgeCount())
		}
	}
}

func TestNormalize_InvalidJSON(t *testing.T) {
	if _, err := Normalize([]byte("{not json")); err == nil {
		t.Fatal("Normalize() error = nil, want decode error")
	}
}

func TestNormalize_DanglingReferenceSynthesized(t *testing.T) {
	doc := map[string]any{
		"5": map[string]any{
			"class_type": "ImageUpscale",
			"inputs":     map[string]any{"image": []any{"99", 0}},
		},
	}
	g := NormalizeDocument(doc)

	node, ok := g.Node("99")
	if !ok {
		t.Fatal("Node(99) not found; dangling endpoints must be synthesized")
	}
	if node.ClassType != "" {
		t.Errorf("synthesized ClassType = %q, want empty", node.ClassType)
	}
	if got := g.Successors("99"); !reflect.DeepEqual(got, []string{"5"}) {
		t.Errorf("Successors(99) = %v, want [5]", got)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	a := NormalizeDocument(rosterDoc())
	b := NormalizeDocument(rosterDoc())

	if !reflect.DeepEqual(a.NodeIDs(), b.NodeIDs()) {
		t.Errorf("NodeIDs() differ across runs: %v vs %v", a.NodeIDs(), b.NodeIDs())
	}
	for _, id := range a.NodeIDs() {
		if !reflect.DeepEqual(a.Successors(id), b.Successors(id)) {
			t.Errorf("Successors(%s) differ across runs", id)
		}
		if !reflect.DeepEqual(a.Predecessors(id), b.Predecessors(id)) {
			t.Errorf("Predecessors(%s) differ across runs", id)
		}
	}
}

// =============================================================================
// Id Coercion
// =============================================================================

func TestCoerceID(t *testing.T) {
	cases := []struct {
		in   any
		want string
		ok   bool
	}{
		{"42", "42", true},
		{"KSampler", "KSampler", true},
		{"", "", false},
		{float64(7), "7", true},
		{float64(7.5), "", false},
		{int(3), "3", true},
		{int64(12), "12", true},
		{true, "", false},
		{nil, "", false},
	}
	for _, tc := range cases {
		got, ok := coerceID(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("coerceID(%v) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assemble merges the lens engine's trace and discovery results
// into a single metadata document per workflow.
//
// The assembler owns the document keys and the anchor-resolution policy;
// the engine underneath knows nothing about either. Documents are keyed by
// the SHA256 digest of the raw workflow bytes so identical documents
// assemble to identical keys.
package assemble

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/WorkflowLens/services/lens/discovery"
	"github.com/AleutianAI/WorkflowLens/services/lens/graph"
)

var assembleTracer = otel.Tracer("lens.assemble")

// Digest returns the canonical content digest of a raw workflow document.
//
// Uses full SHA256 (64 hex chars) to eliminate collision risk.
func Digest(raw []byte) string {
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])
}

// Assemble normalizes raw workflow bytes and builds the full metadata
// document.
//
// Description:
//
//	Convenience wrapper around AssembleGraph: computes the content digest,
//	normalizes the document, and assembles over the result. Only invalid
//	JSON fails; malformed workflow shapes degrade to an empty graph and a
//	minimal document.
//
// Inputs:
//
//	ctx - Context for tracing
//	raw - Raw workflow document bytes
//	opts - Assembly options
//
// Outputs:
//
//	*Document - Assembled document, never nil on success
//	error - JSON decode errors or traversal validation errors
func Assemble(ctx context.Context, raw []byte, opts ...Option) (*Document, error) {
	g, err := graph.Normalize(raw)
	if err != nil {
		return nil, err
	}
	return AssembleGraph(ctx, g, Digest(raw), opts...)
}

// AssembleGraph builds the metadata document over an existing canonical
// graph.
//
// Description:
//
//	Resolves the anchor (explicit via WithAnchor, otherwise the
//	best-ranked sampler-like node in the whole graph), then runs the
//	backward trace, sampler discovery, and text discovery from it and
//	merges the three results. A graph with no resolvable anchor yields a
//	minimal document with empty results rather than an error.
//
// Inputs:
//
//	ctx - Context for tracing
//	g - Canonical graph (shared read-only; never mutated)
//	digest - Content digest to stamp on the document
//	opts - Assembly options
//
// Outputs:
//
//	*Document - Assembled document, never nil on success
//	error - Traversal validation errors only
func AssembleGraph(ctx context.Context, g *graph.Graph, digest string, opts ...Option) (*Document, error) {
	_, span := assembleTracer.Start(ctx, "assemble.Document")
	defer span.End()
	span.SetAttributes(
		attribute.String("digest", digest),
		attribute.Int("nodes", g.Len()),
	)

	options := applyOptions(opts)

	doc := &Document{
		Digest:           digest,
		Graph:            g.Stats(),
		Trace:            make(map[string]graph.TraceEntry),
		Samplers:         make([]discovery.SamplerCandidate, 0),
		Texts:            make([]discovery.TextNodeRef, 0),
		AssembledAtMilli: time.Now().UnixMilli(),
	}

	anchor := options.Anchor
	if anchor == "" {
		anchor = ResolveAnchor(g)
	}
	if anchor == "" {
		span.SetAttributes(attribute.Bool("anchor_resolved", false))
		return doc, nil
	}
	doc.Anchor = anchor
	doc.AnchorClass = g.ClassOf(anchor)
	span.SetAttributes(attribute.String("anchor", anchor))

	trace, err := g.Trace(anchor, graph.DirectionBackward, options.walkOptions()...)
	if err != nil {
		return nil, err
	}
	doc.Trace = trace

	samplers, err := discovery.FindSamplerCandidates(g, anchor, options.discoveryOptions()...)
	if err != nil {
		return nil, err
	}
	doc.Samplers = samplers

	texts, err := discovery.DiscoverTextNodes(g, anchor, options.discoveryOptions()...)
	if err != nil {
		return nil, err
	}
	doc.Texts = texts
	doc.Prompt, doc.NegativePrompt = Prompts(texts)

	span.SetAttributes(
		attribute.Int("trace_nodes", len(doc.Trace)),
		attribute.Int("samplers", len(doc.Samplers)),
		attribute.Int("texts", len(doc.Texts)),
	)
	return doc, nil
}

// ResolveAnchor scans the whole graph for the best-ranked sampler-like
// node under the rules registry.
//
// Nodes are ranked by classifier priority descending, then node id
// ascending. Returns "" when nothing classifies.
func ResolveAnchor(g *graph.Graph) string {
	return ResolveAnchorWith(g, nil)
}

// ResolveAnchorWith is ResolveAnchor with an injected classifier. A nil
// classifier means the rules registry.
func ResolveAnchorWith(g *graph.Graph, classifier discovery.SamplerClassifier) string {
	if classifier == nil {
		rules, err := discovery.GetRules(context.Background())
		if err != nil {
			return ""
		}
		classifier = rules
	}

	best := ""
	bestPriority := 0
	for _, id := range g.NodeIDs() {
		priority, ok := classifier.Classify(g.ClassOf(id))
		if !ok {
			continue
		}
		if best == "" || priority > bestPriority {
			best = id
			bestPriority = priority
		}
	}
	return best
}

// Prompts picks the positive and negative prompt from ordered text refs.
//
// Each side takes the first ref in ref order (distance, then node id) with
// the matching negative flag, then the longest text within that ref
// (lexicographically smallest field name on equal length). Absent sides
// return "".
func Prompts(refs []discovery.TextNodeRef) (positive, negative string) {
	for _, ref := range refs {
		if ref.IsNegative {
			if negative == "" {
				negative = longestText(ref)
			}
		} else {
			if positive == "" {
				positive = longestText(ref)
			}
		}
		if positive != "" && negative != "" {
			break
		}
	}
	return positive, negative
}

// longestText returns the longest field value in one ref, breaking length
// ties by ascending field name.
func longestText(ref discovery.TextNodeRef) string {
	fields := make([]string, 0, len(ref.Texts))
	for field := range ref.Texts {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	best := ""
	for _, field := range fields {
		if len(ref.Texts[field]) > len(best) {
			best = ref.Texts[field]
		}
	}
	return best
}

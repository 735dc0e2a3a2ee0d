// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assemble

import (
	"github.com/AleutianAI/WorkflowLens/services/lens/discovery"
	"github.com/AleutianAI/WorkflowLens/services/lens/graph"
)

// Document is the assembled metadata document for one workflow.
//
// Every field is composed of primitive values, mappings, and sequences, so
// the document serializes directly into a JSON metadata store.
type Document struct {
	// Digest is the SHA256 hex digest of the raw workflow bytes.
	Digest string `json:"digest"`

	// Anchor is the resolved anchor node id ("" when no sampler-like node
	// exists anywhere in the graph).
	Anchor string `json:"anchor"`

	// AnchorClass is the anchor node's class tag.
	AnchorClass string `json:"anchor_class"`

	// Graph summarizes the canonical graph size.
	Graph graph.Stats `json:"graph"`

	// Trace maps node id to its backward trace entry from the anchor.
	Trace map[string]graph.TraceEntry `json:"trace"`

	// Samplers lists ranked sampler candidates upstream of the anchor.
	Samplers []discovery.SamplerCandidate `json:"samplers"`

	// Texts lists text-bearing nodes upstream of the anchor, ordered by
	// distance then node id.
	Texts []discovery.TextNodeRef `json:"texts"`

	// Prompt is the extracted positive prompt ("" when none was found).
	Prompt string `json:"prompt"`

	// NegativePrompt is the extracted negative prompt ("" when none was
	// found).
	NegativePrompt string `json:"negative_prompt"`

	// AssembledAtMilli is when the document was built (Unix milliseconds
	// UTC).
	AssembledAtMilli int64 `json:"assembled_at_milli"`
}

// Options configures document assembly.
type Options struct {
	// Anchor pins the anchor node id. Empty means resolve automatically
	// by scanning for the best-ranked sampler-like node.
	Anchor string

	// MaxDepth bounds every traversal when DepthBounded is true.
	MaxDepth int

	// DepthBounded records whether a depth bound applies.
	DepthBounded bool

	// MinTextLength overrides the text threshold when MinLengthSet is
	// true.
	MinTextLength int

	// MinLengthSet records whether WithMinTextLength was supplied.
	MinLengthSet bool

	// Observer, when non-nil, receives discovery events from both passes.
	Observer discovery.Observer
}

// Option is a functional option for configuring assembly.
type Option func(*Options)

// WithAnchor pins the anchor node id instead of resolving one.
func WithAnchor(id string) Option {
	return func(o *Options) {
		o.Anchor = id
	}
}

// WithMaxDepth bounds every traversal to d hops from the anchor.
func WithMaxDepth(d int) Option {
	return func(o *Options) {
		o.MaxDepth = d
		o.DepthBounded = true
	}
}

// WithMinTextLength sets the qualifying threshold for text fields.
func WithMinTextLength(n int) Option {
	return func(o *Options) {
		o.MinTextLength = n
		o.MinLengthSet = true
	}
}

// WithObserver registers a discovery callback for both passes.
func WithObserver(fn discovery.Observer) Option {
	return func(o *Options) {
		o.Observer = fn
	}
}

// applyOptions applies functional options and returns the configured
// options.
func applyOptions(opts []Option) Options {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// discoveryOptions converts assembly options to discovery options.
func (o Options) discoveryOptions() []discovery.Option {
	var opts []discovery.Option
	if o.DepthBounded {
		opts = append(opts, discovery.WithMaxDepth(o.MaxDepth))
	}
	if o.MinLengthSet {
		opts = append(opts, discovery.WithMinTextLength(o.MinTextLength))
	}
	if o.Observer != nil {
		opts = append(opts, discovery.WithObserver(o.Observer))
	}
	return opts
}

// walkOptions converts assembly options to traversal options.
func (o Options) walkOptions() []graph.WalkOption {
	if o.DepthBounded {
		return []graph.WalkOption{graph.WithMaxDepth(o.MaxDepth)}
	}
	return nil
}

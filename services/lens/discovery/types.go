// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import "fmt"

// Field source tags for TextNodeRef.Sources.
const (
	// SourceInput marks a text field harvested from a node's inputs.
	SourceInput = "input"

	// SourceWidget marks a text field harvested from a node's widget
	// values. Widget fields use synthetic names of the form widget_<i>.
	SourceWidget = "widget"
)

// SamplerCandidate is one ranked sampler-discovery result.
//
// Candidates are totally ordered by priority descending, then distance
// ascending, then node id ascending.
type SamplerCandidate struct {
	// NodeID is the candidate's node id.
	NodeID string `json:"node_id"`

	// Distance is the backward hop count from the anchor.
	Distance int `json:"distance"`

	// ClassType is the candidate's class tag.
	ClassType string `json:"class_type"`

	// Priority is the classifier's ranking score; higher ranks earlier.
	Priority int `json:"priority"`
}

// TextNodeRef is one text-discovery result: a node that contributed at
// least one qualifying text field. All qualifying fields for one node are
// merged into a single ref.
type TextNodeRef struct {
	// NodeID is the contributing node's id.
	NodeID string `json:"node_id"`

	// ClassType is the contributing node's class tag.
	ClassType string `json:"class_type"`

	// Distance is the backward hop count from the anchor at first visit.
	Distance int `json:"distance"`

	// IsNegative reports whether the negative-conditioning heuristic
	// matched this node.
	IsNegative bool `json:"is_negative"`

	// Texts maps field name to the qualifying string value.
	Texts map[string]string `json:"texts"`

	// Sources maps field name to SourceInput or SourceWidget.
	Sources map[string]string `json:"sources"`
}

// SamplerClassifier decides whether a class tag names a sampler-like node
// and how strongly. Injected policy; the engine never hardcodes class
// names.
type SamplerClassifier interface {
	// Classify returns the ranking priority for classType and whether the
	// class is sampler-like at all.
	Classify(classType string) (priority int, ok bool)
}

// ClassifierFunc adapts a plain function to SamplerClassifier.
type ClassifierFunc func(classType string) (int, bool)

// Classify implements SamplerClassifier.
func (f ClassifierFunc) Classify(classType string) (int, bool) {
	return f(classType)
}

// NegativeDetector decides whether a text-bearing node feeds negative
// conditioning, given its class tag and the field names that contributed
// text. Injected policy.
type NegativeDetector interface {
	// Negative reports whether the node looks like a negative prompt
	// source.
	Negative(classType string, fields []string) bool
}

// DetectorFunc adapts a plain function to NegativeDetector.
type DetectorFunc func(classType string, fields []string) bool

// Negative implements NegativeDetector.
func (f DetectorFunc) Negative(classType string, fields []string) bool {
	return f(classType, fields)
}

// EventKind labels a discovery finding.
type EventKind string

const (
	// EventSampler marks a sampler-like classification.
	EventSampler EventKind = "sampler"

	// EventText marks a node that contributed qualifying text fields.
	EventText EventKind = "text"
)

// Event describes one discovered node, reported to an Observer as the pass
// runs.
type Event struct {
	// Kind is the finding type.
	Kind EventKind

	// NodeID is the discovered node's id.
	NodeID string

	// ClassType is the discovered node's class tag.
	ClassType string

	// Distance is the backward hop count from the anchor.
	Distance int

	// Priority is the classifier score. Sampler findings only.
	Priority int

	// Fields lists the qualifying field names. Text findings only.
	Fields []string
}

// Observer receives one Event per discovered node. Optional; used by the
// service layer for discovery-mode debug logging.
type Observer func(Event)

// Options configures the discovery passes.
type Options struct {
	// MaxDepth bounds the backward walk when DepthBounded is true.
	MaxDepth int

	// DepthBounded records whether a depth bound applies. The zero value
	// walks the anchor's entire backward neighborhood.
	DepthBounded bool

	// MinTextLength is the qualifying threshold for text fields when
	// MinLengthSet is true; otherwise the rules registry default applies.
	// Length is measured in bytes.
	MinTextLength int

	// MinLengthSet records whether WithMinTextLength was supplied.
	MinLengthSet bool

	// Classifier decides sampler-likeness. Nil means the rules registry.
	Classifier SamplerClassifier

	// Detector decides the negative flag. Nil means the rules registry.
	Detector NegativeDetector

	// Observer, when non-nil, receives one Event per discovered node.
	Observer Observer
}

// Option is a functional option for configuring discovery passes.
type Option func(*Options)

// WithMaxDepth bounds the backward walk to d hops from the anchor.
//
// Negative values are rejected with graph.ErrNegativeDepth. Omit the
// option entirely for an unbounded walk.
func WithMaxDepth(d int) Option {
	return func(o *Options) {
		o.MaxDepth = d
		o.DepthBounded = true
	}
}

// WithMinTextLength sets the qualifying threshold for text fields.
//
// Negative values are rejected with ErrNegativeLength. Zero disables the
// guard entirely.
func WithMinTextLength(n int) Option {
	return func(o *Options) {
		o.MinTextLength = n
		o.MinLengthSet = true
	}
}

// WithClassifier injects the sampler-likeness policy.
func WithClassifier(c SamplerClassifier) Option {
	return func(o *Options) {
		o.Classifier = c
	}
}

// WithDetector injects the negative-conditioning policy.
func WithDetector(d NegativeDetector) Option {
	return func(o *Options) {
		o.Detector = d
	}
}

// WithObserver registers a per-node discovery callback.
func WithObserver(fn Observer) Option {
	return func(o *Options) {
		o.Observer = fn
	}
}

// applyOptions applies functional options and validates the supplied
// bounds. Depth validation is left to the traversal engine.
func applyOptions(opts []Option) (Options, error) {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	if options.MinLengthSet && options.MinTextLength < 0 {
		return options, fmt.Errorf("min text length %d: %w", options.MinTextLength, ErrNegativeLength)
	}
	return options, nil
}

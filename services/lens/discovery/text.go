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

import (
	"fmt"
	"sort"
	"time"

	"github.com/AleutianAI/WorkflowLens/services/lens/graph"
)

// DiscoverTextNodes walks backward from start and harvests qualifying text
// fields from each visited node.
//
// Description:
//
//	Performs a backward traversal bounded by WithMaxDepth and scans every
//	visited node for string fields of at least the minimum byte length:
//	input fields first (in sorted name order), then widget values (under
//	synthetic names widget_<i>). All qualifying fields for one node merge
//	into a single TextNodeRef; duplicate field names keep the first-seen
//	value. Nodes with no qualifying field are omitted entirely. The
//	negative flag is computed once per node by the injected
//	NegativeDetector (the rules registry by default).
//
//	Results are ordered by distance ascending, then node id ascending.
//
// Inputs:
//
//	g - Canonical graph to search
//	start - Anchor node id
//	opts - Discovery options (WithMaxDepth, WithMinTextLength,
//	       WithDetector, WithObserver)
//
// Outputs:
//
//	[]TextNodeRef - Ordered refs, possibly empty, never nil
//	error - Validation errors only (graph.ErrNegativeDepth,
//	        ErrNegativeLength)
func DiscoverTextNodes(g *graph.Graph, start string, opts ...Option) ([]TextNodeRef, error) {
	options, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	detector := options.Detector
	minLength := options.MinTextLength
	if detector == nil || !options.MinLengthSet {
		rules := defaultRules()
		if detector == nil {
			detector = rules
		}
		if !options.MinLengthSet {
			minLength = rules.MinTextLength()
		}
	}

	startTime := time.Now()
	defer func() {
		discoveryLatency.WithLabelValues("text").Observe(time.Since(startTime).Seconds())
	}()
	discoveryPasses.WithLabelValues("text").Inc()

	walk, err := g.Walk(start, graph.DirectionBackward, walkOptions(options)...)
	if err != nil {
		return nil, err
	}

	refs := make([]TextNodeRef, 0)
	for _, id := range walk.Order {
		node, ok := g.Node(id)
		if !ok {
			continue
		}

		texts := make(map[string]string)
		sources := make(map[string]string)
		fields := make([]string, 0, 4)

		for _, field := range sortedFieldNames(node.Inputs) {
			value, ok := node.Inputs[field].(string)
			if !ok || len(value) < minLength {
				continue
			}
			if _, dup := texts[field]; dup {
				continue
			}
			texts[field] = value
			sources[field] = SourceInput
			fields = append(fields, field)
		}

		for i, widget := range node.Widgets {
			value, ok := widget.(string)
			if !ok || len(value) < minLength {
				continue
			}
			field := fmt.Sprintf("widget_%d", i)
			if _, dup := texts[field]; dup {
				continue
			}
			texts[field] = value
			sources[field] = SourceWidget
			fields = append(fields, field)
		}

		if len(texts) == 0 {
			continue
		}

		ref := TextNodeRef{
			NodeID:     id,
			ClassType:  node.ClassType,
			Distance:   walk.Distances[id],
			IsNegative: detector.Negative(node.ClassType, fields),
			Texts:      texts,
			Sources:    sources,
		}
		refs = append(refs, ref)
		if options.Observer != nil {
			options.Observer(Event{
				Kind:      EventText,
				NodeID:    id,
				ClassType: node.ClassType,
				Distance:  ref.Distance,
				Fields:    fields,
			})
		}
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Distance != refs[j].Distance {
			return refs[i].Distance < refs[j].Distance
		}
		return refs[i].NodeID < refs[j].NodeID
	})

	discoveryFindings.WithLabelValues("text").Observe(float64(len(refs)))
	return refs, nil
}

// sortedFieldNames returns the input field names in ascending order.
func sortedFieldNames(inputs map[string]any) []string {
	if len(inputs) == 0 {
		return nil
	}
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

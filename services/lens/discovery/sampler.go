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
	"sort"
	"time"

	"github.com/AleutianAI/WorkflowLens/services/lens/graph"
)

// FindSamplerCandidates walks backward from start and ranks sampler-like
// nodes.
//
// Description:
//
//	Performs a backward traversal bounded by WithMaxDepth, classifies each
//	visited node's class tag via the injected SamplerClassifier (the rules
//	registry by default), and returns candidates ordered by priority
//	descending, then distance ascending, then node id ascending. An anchor
//	with no sampler-like neighborhood yields an empty, non-nil slice.
//
// Inputs:
//
//	g - Canonical graph to search
//	start - Anchor node id (absent ids are valid and yield no candidates
//	        unless the anchor itself classifies)
//	opts - Discovery options (WithMaxDepth, WithClassifier, WithObserver)
//
// Outputs:
//
//	[]SamplerCandidate - Ranked candidates, possibly empty, never nil
//	error - Validation errors only (graph.ErrNegativeDepth,
//	        ErrNegativeLength)
func FindSamplerCandidates(g *graph.Graph, start string, opts ...Option) ([]SamplerCandidate, error) {
	options, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	classifier := options.Classifier
	if classifier == nil {
		classifier = defaultRules()
	}

	startTime := time.Now()
	defer func() {
		discoveryLatency.WithLabelValues("sampler").Observe(time.Since(startTime).Seconds())
	}()
	discoveryPasses.WithLabelValues("sampler").Inc()

	walk, err := g.Walk(start, graph.DirectionBackward, walkOptions(options)...)
	if err != nil {
		return nil, err
	}

	candidates := make([]SamplerCandidate, 0)
	for _, id := range walk.Order {
		class := g.ClassOf(id)
		priority, ok := classifier.Classify(class)
		if !ok {
			continue
		}
		candidate := SamplerCandidate{
			NodeID:    id,
			Distance:  walk.Distances[id],
			ClassType: class,
			Priority:  priority,
		}
		candidates = append(candidates, candidate)
		if options.Observer != nil {
			options.Observer(Event{
				Kind:      EventSampler,
				NodeID:    id,
				ClassType: class,
				Distance:  candidate.Distance,
				Priority:  priority,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return a.NodeID < b.NodeID
	})

	discoveryFindings.WithLabelValues("sampler").Observe(float64(len(candidates)))
	return candidates, nil
}

// walkOptions converts discovery options to traversal options.
func walkOptions(options Options) []graph.WalkOption {
	if options.DepthBounded {
		return []graph.WalkOption{graph.WithMaxDepth(options.MaxDepth)}
	}
	return nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lens

import (
	"encoding/json"

	"github.com/AleutianAI/WorkflowLens/services/lens/assemble"
	"github.com/AleutianAI/WorkflowLens/services/lens/cache"
	"github.com/AleutianAI/WorkflowLens/services/lens/discovery"
	"github.com/AleutianAI/WorkflowLens/services/lens/graph"
)

// TraceRequest is the request body for POST /v1/lens/trace.
type TraceRequest struct {
	// Workflow is the raw workflow document JSON. Required.
	Workflow json.RawMessage `json:"workflow" binding:"required"`

	// Start is the node id to trace from. Empty means resolve the
	// best-ranked sampler-like node automatically.
	Start string `json:"start"`

	// Direction is "forward" or "backward". Default: "backward".
	Direction string `json:"direction"`

	// MaxDepth bounds the traversal depth. Omitted means unbounded.
	MaxDepth *int `json:"max_depth"`
}

// TraceResponse is the response for POST /v1/lens/trace.
type TraceResponse struct {
	// Digest is the SHA256 hex digest of the workflow bytes.
	Digest string `json:"digest"`

	// Start is the node id the trace began from ("" when no start was
	// given and no sampler-like node exists).
	Start string `json:"start"`

	// Direction is the traversal direction that was applied.
	Direction string `json:"direction"`

	// Graph summarizes the canonical graph size.
	Graph graph.Stats `json:"graph"`

	// Trace maps visited node id to its trace entry. Empty when no start
	// node could be resolved.
	Trace map[string]graph.TraceEntry `json:"trace"`
}

// SamplersRequest is the request body for POST /v1/lens/samplers.
type SamplersRequest struct {
	// Workflow is the raw workflow document JSON. Required.
	Workflow json.RawMessage `json:"workflow" binding:"required"`

	// Start is the node id to search upstream from. Empty means resolve
	// the best-ranked sampler-like node automatically.
	Start string `json:"start"`

	// MaxDepth bounds the backward walk. Omitted means unbounded.
	MaxDepth *int `json:"max_depth"`
}

// SamplersResponse is the response for POST /v1/lens/samplers.
type SamplersResponse struct {
	// Digest is the SHA256 hex digest of the workflow bytes.
	Digest string `json:"digest"`

	// Start is the node id the search began from.
	Start string `json:"start"`

	// Graph summarizes the canonical graph size.
	Graph graph.Stats `json:"graph"`

	// Samplers lists ranked sampler candidates, best first.
	Samplers []discovery.SamplerCandidate `json:"samplers"`
}

// TextsRequest is the request body for POST /v1/lens/texts.
type TextsRequest struct {
	// Workflow is the raw workflow document JSON. Required.
	Workflow json.RawMessage `json:"workflow" binding:"required"`

	// Start is the node id to search upstream from. Empty means resolve
	// the best-ranked sampler-like node automatically.
	Start string `json:"start"`

	// MaxDepth bounds the backward walk. Omitted means unbounded.
	MaxDepth *int `json:"max_depth"`

	// MinLength is the qualifying byte length for text fields. Omitted
	// means the rules registry default.
	MinLength *int `json:"min_length"`
}

// TextsResponse is the response for POST /v1/lens/texts.
type TextsResponse struct {
	// Digest is the SHA256 hex digest of the workflow bytes.
	Digest string `json:"digest"`

	// Start is the node id the search began from.
	Start string `json:"start"`

	// Graph summarizes the canonical graph size.
	Graph graph.Stats `json:"graph"`

	// Texts lists text-bearing nodes ordered by distance then node id.
	Texts []discovery.TextNodeRef `json:"texts"`
}

// MetadataRequest is the request body for POST /v1/lens/metadata.
type MetadataRequest struct {
	// Workflow is the raw workflow document JSON. Required.
	Workflow json.RawMessage `json:"workflow" binding:"required"`

	// Anchor pins the anchor node id. Empty means resolve automatically.
	Anchor string `json:"anchor"`

	// MaxDepth bounds every traversal. Omitted means unbounded.
	MaxDepth *int `json:"max_depth"`

	// MinLength is the qualifying byte length for text fields. Omitted
	// means the rules registry default.
	MinLength *int `json:"min_length"`

	// Persist controls whether the assembled document is written to the
	// store. Default: true when a store is configured.
	Persist *bool `json:"persist"`
}

// MetadataResponse is the response for POST /v1/lens/metadata and
// GET /v1/lens/metadata/:digest.
type MetadataResponse struct {
	// Document is the assembled metadata document.
	Document *assemble.Document `json:"document"`

	// Stored is true when the document is persisted in the store.
	Stored bool `json:"stored"`
}

// StatsResponse is the response for GET /v1/lens/stats.
type StatsResponse struct {
	// Cache reports graph cache counters.
	Cache cache.CacheStats `json:"cache"`

	// HitRate is the cache hit rate as a percentage.
	HitRate float64 `json:"hit_rate"`
}

// HealthResponse is the response for GET /v1/lens/health.
type HealthResponse struct {
	// Status is "healthy" or "degraded".
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /v1/lens/ready.
type ReadyResponse struct {
	// Ready is true if the service is ready to accept requests.
	Ready bool `json:"ready"`

	// CachedGraphs is the number of graphs in the service cache.
	CachedGraphs int `json:"cached_graphs"`

	// StoreOK is true if a document store is attached.
	StoreOK bool `json:"store_ok"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

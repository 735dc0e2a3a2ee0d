// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lens provides the WorkflowLens HTTP service for workflow metadata
// extraction.
//
// The service exposes endpoints for:
//   - Tracing workflow graphs from an anchor node
//   - Ranking sampler candidates upstream of the anchor
//   - Discovering text-bearing nodes and prompt fields
//   - Assembling and persisting metadata documents
package lens

import (
	"context"
	"fmt"
	"time"

	"github.com/AleutianAI/WorkflowLens/services/lens/assemble"
	"github.com/AleutianAI/WorkflowLens/services/lens/cache"
	"github.com/AleutianAI/WorkflowLens/services/lens/discovery"
	"github.com/AleutianAI/WorkflowLens/services/lens/graph"
	"github.com/AleutianAI/WorkflowLens/services/lens/storage/badger"
	"github.com/AleutianAI/WorkflowLens/services/lens/telemetry"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// serviceTracerName is the tracer name for service-level spans.
const serviceTracerName = "lens.service"

// ServiceConfig configures the lens service.
type ServiceConfig struct {
	// MaxWorkflowBytes is the maximum accepted workflow size in bytes.
	// Default: 8MB
	MaxWorkflowBytes int64

	// CacheMaxEntries is the maximum number of cached graphs.
	// Default: cache.DefaultMaxEntries
	CacheMaxEntries int

	// CacheMaxAge is how long cached graphs live before rebuild.
	// Default: cache.DefaultMaxAge
	CacheMaxAge time.Duration
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxWorkflowBytes: 8 * 1024 * 1024, // 8MB
		CacheMaxEntries:  cache.DefaultMaxEntries,
		CacheMaxAge:      cache.DefaultMaxAge,
	}
}

// Service is the lens service.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Graph normalization is deduplicated
//	per digest and the resulting graphs are shared read-only.
type Service struct {
	config ServiceConfig
	graphs *cache.GraphCache

	// store is the optional document store for assembled metadata.
	store *badger.Store
}

// NewService creates a new lens service.
//
// Description:
//
//	Creates a service with the given configuration. The service starts
//	with an empty graph cache and no document store; attach one with
//	WithStore to enable metadata persistence.
//
// Inputs:
//
//	config - Service configuration
//
// Outputs:
//
//	*Service - The configured service
func NewService(config ServiceConfig) *Service {
	var opts []cache.CacheOption
	if config.CacheMaxEntries > 0 {
		opts = append(opts, cache.WithMaxEntries(config.CacheMaxEntries))
	}
	if config.CacheMaxAge > 0 {
		opts = append(opts, cache.WithMaxAge(config.CacheMaxAge))
	}
	return &Service{
		config: config,
		graphs: cache.NewGraphCache(opts...),
	}
}

// WithStore attaches a document store for metadata persistence.
func (s *Service) WithStore(store *badger.Store) *Service {
	s.store = store
	return s
}

// Trace normalizes the workflow and walks its graph from the start node.
//
// Description:
//
//	Resolves the start node (explicit, or the best-ranked sampler-like
//	node), then runs a breadth-first traversal in the requested direction.
//	An unresolvable start yields an empty trace, not an error.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing
//	req - Trace request
//
// Outputs:
//
//	*TraceResponse - Per-node distances, class tags, and parent links
//	error - Non-nil on validation failure or invalid workflow JSON
func (s *Service) Trace(ctx context.Context, req *TraceRequest) (_ *TraceResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, serviceTracerName, "Service.Trace")
	defer func() { endSpan(span, err) }()

	digest, err := s.admitWorkflow(req.Workflow)
	if err != nil {
		return nil, err
	}
	dir, err := parseDirection(req.Direction)
	if err != nil {
		return nil, err
	}
	g, err := s.graphFor(ctx, digest, req.Workflow)
	if err != nil {
		return nil, err
	}

	resp := &TraceResponse{
		Digest:    digest,
		Start:     resolveStart(g, req.Start),
		Direction: dir.String(),
		Graph:     g.Stats(),
		Trace:     map[string]graph.TraceEntry{},
	}
	if resp.Start == "" {
		return resp, nil
	}

	trace, err := g.Trace(resp.Start, dir, walkOptions(req.MaxDepth)...)
	if err != nil {
		return nil, err
	}
	resp.Trace = trace
	telemetry.SetSpanAttributes(span,
		attribute.String("digest", digest),
		attribute.String("direction", resp.Direction),
		attribute.Int("visited", len(resp.Trace)))
	return resp, nil
}

// Samplers ranks sampler candidates upstream of the start node.
//
// Description:
//
//	Walks backward from the start node and classifies every visited node
//	against the sampler rules, ordered by priority, distance, node id.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing
//	req - Samplers request
//
// Outputs:
//
//	*SamplersResponse - Ranked candidates (empty slice when none match)
//	error - Non-nil on validation failure or invalid workflow JSON
func (s *Service) Samplers(ctx context.Context, req *SamplersRequest) (_ *SamplersResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, serviceTracerName, "Service.Samplers")
	defer func() { endSpan(span, err) }()

	digest, err := s.admitWorkflow(req.Workflow)
	if err != nil {
		return nil, err
	}
	g, err := s.graphFor(ctx, digest, req.Workflow)
	if err != nil {
		return nil, err
	}

	resp := &SamplersResponse{
		Digest:   digest,
		Start:    resolveStart(g, req.Start),
		Graph:    g.Stats(),
		Samplers: []discovery.SamplerCandidate{},
	}
	if resp.Start == "" {
		return resp, nil
	}

	candidates, err := discovery.FindSamplerCandidates(g, resp.Start, discoveryOptions(req.MaxDepth, nil)...)
	if err != nil {
		return nil, err
	}
	resp.Samplers = candidates
	telemetry.SetSpanAttributes(span,
		attribute.String("digest", digest),
		attribute.Int("candidates", len(resp.Samplers)))
	return resp, nil
}

// Texts discovers text-bearing nodes upstream of the start node.
//
// Description:
//
//	Walks backward from the start node and collects every node carrying a
//	string field at least MinLength bytes long, ordered by distance then
//	node id, with negative-branch detection per node.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing
//	req - Texts request
//
// Outputs:
//
//	*TextsResponse - Ordered text refs (empty slice when none qualify)
//	error - Non-nil on validation failure or invalid workflow JSON
func (s *Service) Texts(ctx context.Context, req *TextsRequest) (_ *TextsResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, serviceTracerName, "Service.Texts")
	defer func() { endSpan(span, err) }()

	digest, err := s.admitWorkflow(req.Workflow)
	if err != nil {
		return nil, err
	}
	g, err := s.graphFor(ctx, digest, req.Workflow)
	if err != nil {
		return nil, err
	}

	resp := &TextsResponse{
		Digest: digest,
		Start:  resolveStart(g, req.Start),
		Graph:  g.Stats(),
		Texts:  []discovery.TextNodeRef{},
	}
	if resp.Start == "" {
		return resp, nil
	}

	refs, err := discovery.DiscoverTextNodes(g, resp.Start, discoveryOptions(req.MaxDepth, req.MinLength)...)
	if err != nil {
		return nil, err
	}
	resp.Texts = refs
	telemetry.SetSpanAttributes(span,
		attribute.String("digest", digest),
		attribute.Int("texts", len(resp.Texts)))
	return resp, nil
}

// Metadata assembles the full metadata document for a workflow.
//
// Description:
//
//	Runs the trace, sampler, and text passes from the resolved anchor and
//	merges them into one document. When a store is attached and the
//	request does not opt out, the document is persisted under its digest.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing
//	req - Metadata request
//
// Outputs:
//
//	*MetadataResponse - The assembled document and whether it was stored
//	error - Non-nil on validation, assembly, or persistence failure
func (s *Service) Metadata(ctx context.Context, req *MetadataRequest) (_ *MetadataResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, serviceTracerName, "Service.Metadata")
	defer func() { endSpan(span, err) }()

	digest, err := s.admitWorkflow(req.Workflow)
	if err != nil {
		return nil, err
	}
	g, err := s.graphFor(ctx, digest, req.Workflow)
	if err != nil {
		return nil, err
	}

	var opts []assemble.Option
	if req.Anchor != "" {
		opts = append(opts, assemble.WithAnchor(req.Anchor))
	}
	if req.MaxDepth != nil {
		opts = append(opts, assemble.WithMaxDepth(*req.MaxDepth))
	}
	if req.MinLength != nil {
		opts = append(opts, assemble.WithMinTextLength(*req.MinLength))
	}

	doc, err := assemble.AssembleGraph(ctx, g, digest, opts...)
	if err != nil {
		return nil, err
	}

	resp := &MetadataResponse{Document: doc}
	if s.store != nil && (req.Persist == nil || *req.Persist) {
		if err := s.store.Put(ctx, doc); err != nil {
			return nil, fmt.Errorf("persisting document %s: %w", digest, err)
		}
		resp.Stored = true
	}
	telemetry.SetSpanAttributes(span,
		attribute.String("digest", digest),
		attribute.String("anchor", doc.Anchor),
		attribute.Bool("stored", resp.Stored))
	return resp, nil
}

// GetMetadata fetches a previously assembled document from the store.
//
// Outputs:
//
//	*assemble.Document - The stored document
//	error - ErrStoreNotConfigured without a store, badger.ErrNotFound on
//	        an unknown digest
func (s *Service) GetMetadata(ctx context.Context, digest string) (*assemble.Document, error) {
	if s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	return s.store.Get(ctx, digest)
}

// GraphCount returns the number of graphs in the cache.
func (s *Service) GraphCount() int {
	return s.graphs.Stats().EntryCount
}

// CacheStats returns graph cache counters.
func (s *Service) CacheStats() cache.CacheStats {
	return s.graphs.Stats()
}

// StoreConfigured reports whether a document store is attached.
func (s *Service) StoreConfigured() bool {
	return s.store != nil
}

// admitWorkflow validates the raw workflow bytes and returns their digest.
func (s *Service) admitWorkflow(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmptyWorkflow
	}
	if s.config.MaxWorkflowBytes > 0 && int64(len(raw)) > s.config.MaxWorkflowBytes {
		return "", fmt.Errorf("workflow is %d bytes (limit %d): %w",
			len(raw), s.config.MaxWorkflowBytes, ErrWorkflowTooLarge)
	}
	return assemble.Digest(raw), nil
}

// graphFor returns the canonical graph for the digest, normalizing and
// caching it on first use. Concurrent requests for the same digest share
// one build.
func (s *Service) graphFor(ctx context.Context, digest string, raw []byte) (*graph.Graph, error) {
	return s.graphs.GetOrBuild(ctx, digest, func(ctx context.Context) (*graph.Graph, error) {
		g, err := graph.Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
		}
		return g, nil
	})
}

// resolveStart returns the requested start node, or the best-ranked
// sampler-like node when none was given.
func resolveStart(g *graph.Graph, requested string) string {
	if requested != "" {
		return requested
	}
	return assemble.ResolveAnchor(g)
}

// parseDirection parses the wire direction string, defaulting to backward.
func parseDirection(s string) (graph.Direction, error) {
	if s == "" {
		return graph.DirectionBackward, nil
	}
	return graph.ParseDirection(s)
}

// walkOptions converts an optional depth bound to traversal options.
func walkOptions(maxDepth *int) []graph.WalkOption {
	if maxDepth == nil {
		return nil
	}
	return []graph.WalkOption{graph.WithMaxDepth(*maxDepth)}
}

// endSpan closes out an operation span, recording the outcome first.
func endSpan(span oteltrace.Span, err error) {
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetSpanOK(span)
	}
	span.End()
}

// discoveryOptions converts optional request bounds to discovery options.
func discoveryOptions(maxDepth, minLength *int) []discovery.Option {
	var opts []discovery.Option
	if maxDepth != nil {
		opts = append(opts, discovery.WithMaxDepth(*maxDepth))
	}
	if minLength != nil {
		opts = append(opts, discovery.WithMinTextLength(*minLength))
	}
	return opts
}

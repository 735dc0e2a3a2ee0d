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
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/WorkflowLens/services/lens/discovery"
	"github.com/AleutianAI/WorkflowLens/services/lens/graph"
	"github.com/AleutianAI/WorkflowLens/services/lens/storage/badger"
	"github.com/AleutianAI/WorkflowLens/services/lens/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ServiceVersion is the lens service version.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the lens service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleTrace handles POST /v1/lens/trace.
//
// Description:
//
//	Normalizes the workflow and walks its graph from the start node,
//	returning per-node distances, class tags, and backward parent links.
//
// Request Body:
//
//	TraceRequest
//
// Response:
//
//	200 OK: TraceResponse
//	400 Bad Request: Validation error
//	413 Request Entity Too Large: Workflow exceeds the size limit
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleTrace(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := loggerFor(c, requestID, "HandleTrace")

	var req TraceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.svc.Trace(c.Request.Context(), &req)
	if err != nil {
		statusCode, errCode := workflowErrorStatus(err, "TRACE_FAILED")

		logger.Error("Trace failed", "error", err)
		c.JSON(statusCode, ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
		return
	}

	logger.Info("Trace complete",
		"digest", resp.Digest,
		"start", resp.Start,
		"direction", resp.Direction,
		"nodes", len(resp.Trace))

	c.JSON(http.StatusOK, resp)
}

// HandleSamplers handles POST /v1/lens/samplers.
//
// Description:
//
//	Ranks sampler candidates upstream of the start node by priority,
//	distance, and node id.
//
// Request Body:
//
//	SamplersRequest
//
// Response:
//
//	200 OK: SamplersResponse
//	400 Bad Request: Validation error
//	413 Request Entity Too Large: Workflow exceeds the size limit
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleSamplers(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := loggerFor(c, requestID, "HandleSamplers")

	var req SamplersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.svc.Samplers(c.Request.Context(), &req)
	if err != nil {
		statusCode, errCode := workflowErrorStatus(err, "SAMPLERS_FAILED")

		logger.Error("Sampler discovery failed", "error", err)
		c.JSON(statusCode, ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
		return
	}

	logger.Info("Sampler discovery complete",
		"digest", resp.Digest,
		"start", resp.Start,
		"candidates", len(resp.Samplers))

	c.JSON(http.StatusOK, resp)
}

// HandleTexts handles POST /v1/lens/texts.
//
// Description:
//
//	Discovers text-bearing nodes upstream of the start node, ordered by
//	distance then node id, with negative-branch detection per node.
//
// Request Body:
//
//	TextsRequest
//
// Response:
//
//	200 OK: TextsResponse
//	400 Bad Request: Validation error
//	413 Request Entity Too Large: Workflow exceeds the size limit
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleTexts(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := loggerFor(c, requestID, "HandleTexts")

	var req TextsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.svc.Texts(c.Request.Context(), &req)
	if err != nil {
		statusCode, errCode := workflowErrorStatus(err, "TEXTS_FAILED")

		logger.Error("Text discovery failed", "error", err)
		c.JSON(statusCode, ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
		return
	}

	logger.Info("Text discovery complete",
		"digest", resp.Digest,
		"start", resp.Start,
		"texts", len(resp.Texts))

	c.JSON(http.StatusOK, resp)
}

// HandleMetadata handles POST /v1/lens/metadata.
//
// Description:
//
//	Assembles the full metadata document for a workflow and persists it
//	under its digest when a store is attached.
//
// Request Body:
//
//	MetadataRequest
//
// Response:
//
//	200 OK: MetadataResponse
//	400 Bad Request: Validation error
//	413 Request Entity Too Large: Workflow exceeds the size limit
//	500 Internal Server Error: Processing or persistence error
func (h *Handlers) HandleMetadata(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := loggerFor(c, requestID, "HandleMetadata")

	var req MetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.svc.Metadata(c.Request.Context(), &req)
	if err != nil {
		statusCode, errCode := workflowErrorStatus(err, "METADATA_FAILED")

		logger.Error("Metadata assembly failed", "error", err)
		c.JSON(statusCode, ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
		return
	}

	logger.Info("Metadata assembled",
		"digest", resp.Document.Digest,
		"anchor", resp.Document.Anchor,
		"samplers", len(resp.Document.Samplers),
		"texts", len(resp.Document.Texts),
		"stored", resp.Stored)

	c.JSON(http.StatusOK, resp)
}

// HandleGetMetadata handles GET /v1/lens/metadata/:digest.
//
// Description:
//
//	Fetches a previously assembled document from the store by workflow
//	digest.
//
// Path Parameters:
//
//	digest: SHA256 hex digest of the workflow (required)
//
// Response:
//
//	200 OK: MetadataResponse
//	404 Not Found: No document stored under the digest
//	503 Service Unavailable: No document store configured
func (h *Handlers) HandleGetMetadata(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := loggerFor(c, requestID, "HandleGetMetadata")

	digest := c.Param("digest")

	doc, err := h.svc.GetMetadata(c.Request.Context(), digest)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errCode := "METADATA_LOOKUP_FAILED"

		if errors.Is(err, ErrStoreNotConfigured) {
			statusCode = http.StatusServiceUnavailable
			errCode = "STORE_NOT_CONFIGURED"
		} else if errors.Is(err, badger.ErrNotFound) {
			statusCode = http.StatusNotFound
			errCode = "DOCUMENT_NOT_FOUND"
		}

		logger.Error("Metadata lookup failed", "digest", digest, "error", err)
		c.JSON(statusCode, ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
		return
	}

	logger.Info("Metadata fetched", "digest", digest)

	c.JSON(http.StatusOK, MetadataResponse{Document: doc, Stored: true})
}

// HandleStats handles GET /v1/lens/stats.
//
// Description:
//
//	Returns graph cache counters. Used for debugging and integration
//	tests.
//
// Response:
//
//	200 OK: StatsResponse
func (h *Handlers) HandleStats(c *gin.Context) {
	stats := h.svc.CacheStats()
	c.JSON(http.StatusOK, StatsResponse{
		Cache:   stats,
		HitRate: stats.HitRate(),
	})
}

// HandleHealth handles GET /v1/lens/health.
//
// Description:
//
//	Returns service health status. Always returns 200 if the service
//	is running.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/lens/ready.
//
// Description:
//
//	Returns the readiness status of the service. Returns 503 Service
//	Unavailable when the discovery rules registry failed to load.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true) - Service is fully ready
//	503 Service Unavailable: ReadyResponse (Ready=false) - Rules unavailable
func (h *Handlers) HandleReady(c *gin.Context) {
	_, rulesErr := discovery.GetRules(c.Request.Context())

	resp := ReadyResponse{
		Ready:        rulesErr == nil,
		CachedGraphs: h.svc.GraphCount(),
		StoreOK:      h.svc.StoreConfigured(),
	}

	if !resp.Ready {
		c.Header("Retry-After", "30")
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// workflowErrorStatus maps a workflow operation error to an HTTP status and
// error code. The fallback code applies to unclassified errors (status 500).
func workflowErrorStatus(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, ErrEmptyWorkflow):
		return http.StatusBadRequest, "EMPTY_WORKFLOW"
	case errors.Is(err, ErrWorkflowTooLarge):
		return http.StatusRequestEntityTooLarge, "WORKFLOW_TOO_LARGE"
	case errors.Is(err, ErrInvalidWorkflow):
		return http.StatusBadRequest, "INVALID_WORKFLOW"
	case errors.Is(err, graph.ErrInvalidDirection):
		return http.StatusBadRequest, "INVALID_DIRECTION"
	case errors.Is(err, graph.ErrNegativeDepth):
		return http.StatusBadRequest, "NEGATIVE_DEPTH"
	case errors.Is(err, discovery.ErrNegativeLength):
		return http.StatusBadRequest, "NEGATIVE_MIN_LENGTH"
	default:
		return http.StatusInternalServerError, fallback
	}
}

// loggerFor returns a request-scoped logger carrying the request id,
// handler name, and (when tracing middleware is active) the trace id.
func loggerFor(c *gin.Context, requestID, handler string) *slog.Logger {
	logger := slog.With("request_id", requestID, "handler", handler)
	if traceID := telemetry.TraceID(c.Request.Context()); traceID != "" {
		logger = logger.With("trace_id", traceID)
	}
	return logger
}

// getOrCreateRequestID extracts the request ID from headers or creates one.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

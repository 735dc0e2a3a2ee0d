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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all lens routes with the router.
//
// Description:
//
//	Registers all /v1/lens/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Workflow Endpoints:
//
//	POST /v1/lens/trace - Trace the workflow graph from a node
//	POST /v1/lens/samplers - Rank sampler candidates
//	POST /v1/lens/texts - Discover text-bearing nodes
//	POST /v1/lens/metadata - Assemble (and persist) a metadata document
//	GET  /v1/lens/metadata/:digest - Fetch a persisted document
//
// Health Endpoints:
//
//	GET  /v1/lens/health - Health check
//	GET  /v1/lens/ready - Readiness check
//	GET  /v1/lens/stats - Graph cache statistics
//
// Example:
//
//	service := lens.NewService(lens.DefaultServiceConfig())
//	handlers := lens.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	lens.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	lens := rg.Group("/lens")
	{
		// Workflow queries
		lens.POST("/trace", handlers.HandleTrace)
		lens.POST("/samplers", handlers.HandleSamplers)
		lens.POST("/texts", handlers.HandleTexts)

		// Metadata documents
		lens.POST("/metadata", handlers.HandleMetadata)
		lens.GET("/metadata/:digest", handlers.HandleGetMetadata)

		// Health checks
		lens.GET("/health", handlers.HandleHealth)
		lens.GET("/ready", handlers.HandleReady)
		lens.GET("/stats", handlers.HandleStats)
	}
}

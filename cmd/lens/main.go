// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command lens starts the WorkflowLens API server.
//
// WorkflowLens provides read-only analysis of generative-workflow graphs:
//   - Canonical graph normalization from raw workflow JSON
//   - Breadth-first traces with direction and depth control
//   - Sampler-candidate ranking and prompt-text discovery
//   - Assembled metadata documents, optionally persisted in BadgerDB
//
// Usage:
//
//	go run ./cmd/lens
//	go run ./cmd/lens -port 9090
//	go run ./cmd/lens -data-dir /var/lib/lens
//	go run ./cmd/lens -ephemeral
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/lens/health
//
//	# Trace a workflow backward from its sampler
//	curl -X POST http://localhost:8080/v1/lens/trace \
//	  -H "Content-Type: application/json" \
//	  -d '{"workflow": {"3": {"class_type": "KSampler", "inputs": {}}}}'
//
//	# Assemble the full metadata document
//	curl -X POST http://localhost:8080/v1/lens/metadata \
//	  -H "Content-Type: application/json" \
//	  -d @workflow_request.json
//
// Telemetry is configured through the standard OTel environment variables
// (OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT).
// With the default Prometheus metric exporter, metrics are scraped from
// GET /metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/WorkflowLens/services/lens"
	"github.com/AleutianAI/WorkflowLens/services/lens/storage/badger"
	"github.com/AleutianAI/WorkflowLens/services/lens/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	dataDir := flag.String("data-dir", "",
		"Directory for the metadata document store (empty disables persistence)")
	ephemeral := flag.Bool("ephemeral", false,
		"Keep the document store in memory only")
	flag.Parse()

	// Structured JSON logging for the containerized deployment
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Set Gin mode
	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdown, err := telemetry.Init(context.Background(), telemetry.DefaultConfig())
	if err != nil {
		slog.Error("Failed to initialize telemetry", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create service with default config
	svc := lens.NewService(lens.DefaultServiceConfig())

	store, err := openStore(*dataDir, *ephemeral)
	if err != nil {
		slog.Error("Failed to open document store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if store != nil {
		svc.WithStore(store)
		slog.Info("Document store attached",
			slog.String("path", store.Path()),
			slog.Bool("in_memory", store.InMemory()))
	} else {
		slog.Info("Document persistence disabled (no -data-dir)")
	}

	router := setupRouter(svc, *debug)

	// Print startup banner
	printBanner(*port, store != nil)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down WorkflowLens server")
		if store != nil {
			if err := store.Close(); err != nil {
				slog.Error("Failed to close document store", slog.String("error", err.Error()))
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			slog.Error("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
		os.Exit(0)
	}()

	// Start server
	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting WorkflowLens server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// setupRouter builds the Gin engine with middleware and all lens routes.
func setupRouter(svc *lens.Service, debug bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if debug {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware("lens"))

	v1 := router.Group("/v1")
	lens.RegisterRoutes(v1, lens.NewHandlers(svc))

	// Prometheus scrape endpoint (nil when the metric exporter is not
	// prometheus)
	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	return router
}

// openStore opens the document store per the persistence flags. Returns
// nil when persistence is disabled.
func openStore(dataDir string, ephemeral bool) (*badger.Store, error) {
	switch {
	case ephemeral:
		return badger.NewStore(badger.InMemoryConfig())
	case dataDir != "":
		cfg := badger.DefaultConfig()
		cfg.Path = dataDir
		cfg.Logger = slog.Default()
		return badger.NewStore(cfg)
	default:
		return nil, nil
	}
}

func printBanner(port int, storeEnabled bool) {
	storeStatus := "DISABLED (set -data-dir or -ephemeral to enable)"
	if storeEnabled {
		storeStatus = "ENABLED"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                      WORKFLOWLENS SERVER                          ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Read-only analysis of generative-workflow graphs.                ║
║  Document Store: %-48s ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/lens/health                   │  ║
║  │                                                             │  ║
║  │ # Trace a workflow graph                                    │  ║
║  │ curl -X POST http://localhost:%d/v1/lens/trace \          │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"workflow": <your workflow JSON>}'                   │  ║
║  │                                                             │  ║
║  │ # Assemble the full metadata document                       │  ║
║  │ curl -X POST http://localhost:%d/v1/lens/metadata \       │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"workflow": <your workflow JSON>}'                   │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── Queries: /trace, /samplers, /texts                           ║
║  ├── Documents: /metadata, /metadata/:digest                      ║
║  └── Ops: /health, /ready, /stats, /metrics                       ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, storeStatus, port, port, port)
}

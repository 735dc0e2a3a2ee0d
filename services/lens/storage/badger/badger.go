// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger provides the embedded document store for assembled
// workflow metadata.
//
// BadgerDB gives local embedded storage with low-latency access (~100µs).
// Records are keyed by content digest, so writes are idempotent: storing
// the metadata of identical workflow bytes lands on the same key.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
// This package follows Apache 2.0 guidelines for attribution and usage.
package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the document store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent stores.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Default: 5 minutes. Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	// Default: 0.5 (GC when 50% of value log is garbage).
	GCDiscardRatio float64
}

// DefaultConfig returns sensible defaults for production use.
//
// Description:
//
//	Returns a Config with:
//	- SyncWrites enabled for durability
//	- 5-minute GC interval
//	- 50% discard ratio threshold
//
// Outputs:
//
//	Config - Ready-to-use production configuration
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration optimized for testing.
//
// Description:
//
//	Returns a Config with:
//	- InMemory mode enabled (no disk I/O)
//	- SyncWrites disabled (faster tests)
//	- GC disabled
//
// Outputs:
//
//	Config - Ready-to-use test configuration
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		GCInterval: 0, // disabled
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// open creates the underlying BadgerDB handle for cfg.
//
// Description:
//
//	Opens a BadgerDB database at the configured path, or in memory when
//	InMemory is true. Creates the directory if it doesn't exist. Documents
//	are single-version records, so multi-version retention stays disabled.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*badger.DB - The opened database. Caller owns the Close.
//	error - Non-nil if the path is invalid or the database cannot open.
func open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Ensure directory exists
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	// Configure logging
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil) // Disable BadgerDB's internal logging
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	return db, nil
}

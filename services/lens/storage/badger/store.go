// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/WorkflowLens/services/lens/assemble"
)

// docPrefix namespaces document records so future key families can share
// the same database.
const docPrefix = "doc:"

// ErrNotFound is returned when no document exists for a digest.
var ErrNotFound = errors.New("document not found")

// Store persists assembled metadata documents keyed by content digest.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	path     string
	inMemory bool

	gcRatio float64
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewStore opens the document store described by cfg.
//
// Description:
//
//	Opens the underlying BadgerDB and, for persistent stores with a
//	positive GCInterval, starts a value log garbage collection loop that
//	runs until Close.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The opened store. Call Close() when done.
//	error - Non-nil if the configuration is invalid or the database
//	        cannot open.
func NewStore(cfg Config) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:       db,
		logger:   cfg.Logger,
		path:     cfg.Path,
		inMemory: cfg.InMemory,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		if cfg.GCDiscardRatio < 0 || cfg.GCDiscardRatio > 1 {
			db.Close()
			return nil, errors.New("gc discard ratio must be between 0 and 1")
		}
		s.gcRatio = cfg.GCDiscardRatio
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		go s.runGC(cfg.GCInterval)
	}

	return s, nil
}

// Put stores doc under its content digest, overwriting any previous
// record for the same digest.
//
// Inputs:
//
//	ctx - Context for cancellation
//	doc - Document to persist. Digest must be non-empty.
//
// Outputs:
//
//	error - Non-nil on missing digest, encoding failure, or write failure.
func (s *Store) Put(ctx context.Context, doc *assemble.Document) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if doc == nil || doc.Digest == "" {
		return errors.New("document digest is required")
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.Digest, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(docKey(doc.Digest), data)
	})
	if err != nil {
		return fmt.Errorf("store document %s: %w", doc.Digest, err)
	}
	return nil
}

// Get loads the document stored under digest.
//
// Inputs:
//
//	ctx - Context for cancellation
//	digest - Content digest of the wanted document
//
// Outputs:
//
//	*assemble.Document - The stored document
//	error - ErrNotFound when no record exists for digest
func (s *Store) Get(ctx context.Context, digest string) (*assemble.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if digest == "" {
		return nil, errors.New("digest is required")
	}

	var doc assemble.Document
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(digest))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("document %s: %w", digest, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", digest, err)
	}
	return &doc, nil
}

// Delete removes the document stored under digest. Deleting an absent
// digest is a no-op.
func (s *Store) Delete(ctx context.Context, digest string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if digest == "" {
		return errors.New("digest is required")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(docKey(digest))
	})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", digest, err)
	}
	return nil
}

// Digests lists the digest of every stored document in key order.
//
// Outputs:
//
//	[]string - Digests in ascending byte order; empty and non-nil when the
//	           store holds nothing
//	error - Non-nil on iteration failure
func (s *Store) Digests(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	digests := make([]string, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(docPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			digests = append(digests, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return digests, nil
}

// Close stops garbage collection and closes the database. The store must
// not be used afterwards.
func (s *Store) Close() error {
	if s.stopCh != nil {
		close(s.stopCh)
		<-s.doneCh
	}
	return s.db.Close()
}

// Path returns the store directory, or empty string for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// InMemory returns true if this store has no disk persistence.
func (s *Store) InMemory() bool {
	return s.inMemory
}

// runGC triggers value log garbage collection on a fixed interval until
// Close.
func (s *Store) runGC(interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when nothing needed
			// collecting.
			err := s.db.RunValueLogGC(s.gcRatio)
			if err == nil {
				if s.logger != nil {
					s.logger.Debug("badger value log GC completed")
				}
			} else if !errors.Is(err, badger.ErrNoRewrite) {
				if s.logger != nil {
					s.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
				}
			}
		}
	}
}

// docKey builds the storage key for a digest.
func docKey(digest string) []byte {
	return []byte(docPrefix + digest)
}

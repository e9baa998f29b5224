// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registryproxy

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Cache is a TTL'd byte cache over BadgerDB.
//
// In-memory by default; a CacheDir switches to disk so metadata survives
// proxy restarts. Expiry uses Badger's native entry TTLs — no sweeper
// goroutine to get wrong.
//
// # Thread Safety
//
// Safe for concurrent use; Badger handles its own locking.
type Cache struct {
	db  *badger.DB
	log *slog.Logger
}

// NewCache opens the cache. dir == "" means in-memory.
func NewCache(dir string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		opts = badger.DefaultOptions(dir).WithSyncWrites(false)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &Cache{db: db, log: logger}, nil
}

// Get returns the cached value, or found=false when absent or expired.
func (c *Cache) Get(key string) (value []byte, found bool) {
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.log.Warn("cache read failed", "key", key, "error", err.Error())
		}
		return nil, false
	}
	return value, true
}

// Set stores a value with the given TTL. Failures are logged, not
// returned — a broken cache degrades to upstream fetches.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err.Error())
	}
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

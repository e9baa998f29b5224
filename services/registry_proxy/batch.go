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
	"context"
	"encoding/json"
	"sync"
)

// numBatchWorkers is the fan-out width for batch metadata fetches.
const numBatchWorkers = 8

// maxBatchNames bounds a single batch request.
const maxBatchNames = 100

// batchEntry is one slot in a batch response: the package's metadata or
// a per-name error, never both.
type batchEntry struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
	Err  string          `json:"error,omitempty"`
}

// fetchBatch resolves metadata for every name through fn with a fixed
// worker pool, preserving input order in the result. Individual
// failures land in their slot's error field; they never fail the batch.
func fetchBatch(ctx context.Context, names []string, fn func(ctx context.Context, name string) ([]byte, error)) []batchEntry {
	results := make([]batchEntry, len(names))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < numBatchWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				name := names[i]
				data, err := fn(ctx, name)
				if err != nil {
					results[i] = batchEntry{Name: name, Err: err.Error()}
					continue
				}
				results[i] = batchEntry{Name: name, Data: data}
			}
		}()
	}

	for i := range names {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registryproxy

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchBatch_OrderPreservedWithErrorSlots(t *testing.T) {
	names := []string{"a", "b", "c", "d"}

	results := fetchBatch(context.Background(), names, func(_ context.Context, name string) ([]byte, error) {
		if name == "c" {
			return nil, errors.New("boom")
		}
		return []byte(`{"name":"` + name + `"}`), nil
	})

	require.Len(t, results, 4)
	for i, name := range names {
		assert.Equal(t, name, results[i].Name, "input order preserved")
	}
	assert.Empty(t, results[0].Err)
	assert.Equal(t, "boom", results[2].Err)
	assert.Nil(t, results[2].Data, "error slots carry no data")
	assert.JSONEq(t, `{"name":"d"}`, string(results[3].Data))
}

func TestFetchBatch_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32

	names := make([]string, 50)
	for i := range names {
		names[i] = fmt.Sprintf("pkg-%d", i)
	}

	fetchBatch(context.Background(), names, func(_ context.Context, _ string) ([]byte, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		return []byte("{}"), nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(numBatchWorkers))
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registryproxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatestStable(t *testing.T) {
	tests := []struct {
		name     string
		versions []string
		want     string
	}{
		{
			name:     "plain ordering",
			versions: []string{"1.0.0", "1.2.0", "1.10.0", "1.9.9"},
			want:     "1.10.0",
		},
		{
			name:     "prereleases skipped",
			versions: []string{"2.0.0-beta.3", "1.5.0", "2.0.0-rc.1"},
			want:     "1.5.0",
		},
		{
			name:     "all prereleases",
			versions: []string{"1.0.0-alpha", "1.0.0-beta"},
			want:     "",
		},
		{
			name:     "garbage skipped",
			versions: []string{"not-a-version", "0.0.1", ""},
			want:     "0.0.1",
		},
		{
			name:     "empty input",
			versions: nil,
			want:     "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, latestStable(tt.versions))
		})
	}
}

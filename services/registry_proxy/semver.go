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

import "golang.org/x/mod/semver"

// latestStable returns the highest non-prerelease version from the
// list, or "" when none qualifies.
//
// npm publishes bare versions ("1.2.3"); x/mod/semver wants the "v"
// prefix, so it is added for comparison and stripped on the way out.
// Invalid version strings are skipped — registries contain garbage.
func latestStable(versions []string) string {
	best := ""
	for _, raw := range versions {
		v := "v" + raw
		if !semver.IsValid(v) || semver.Prerelease(v) != "" {
			continue
		}
		if best == "" || semver.Compare(v, "v"+best) > 0 {
			best = raw
		}
	}
	return best
}

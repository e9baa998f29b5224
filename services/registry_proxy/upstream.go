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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// maxUpstreamBody caps how much of an upstream response we will buffer.
// The npm metadata document for a large package runs a few MB; 32 MB is
// far past anything legitimate.
const maxUpstreamBody = 32 << 20

// upstreamClient fetches from the public registry with a token-bucket
// rate limit and singleflight collapsing of identical concurrent
// requests (a page of search results fans out to the same hot packages).
type upstreamClient struct {
	http         *http.Client
	registryURL  string
	downloadsURL string
	limiter      *rate.Limiter
	group        singleflight.Group
}

// upstreamError carries the upstream status for pass-through.
type upstreamError struct {
	Status int
	URL    string
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.Status, e.URL)
}

func newUpstreamClient(cfg Config) *upstreamClient {
	return &upstreamClient{
		http:         &http.Client{Timeout: 30 * time.Second},
		registryURL:  strings.TrimRight(cfg.RegistryURL, "/"),
		downloadsURL: strings.TrimRight(cfg.DownloadsURL, "/"),
		limiter:      rate.NewLimiter(rate.Limit(cfg.UpstreamRPS), cfg.UpstreamRPS),
	}
}

// FetchPackage retrieves the metadata document for one package.
func (u *upstreamClient) FetchPackage(ctx context.Context, name string) ([]byte, error) {
	return u.fetch(ctx, u.registryURL+"/"+escapePackageName(name))
}

// Search passes a query through to the registry search endpoint.
func (u *upstreamClient) Search(ctx context.Context, q string, size, from int) ([]byte, error) {
	v := url.Values{}
	v.Set("text", q)
	if size > 0 {
		v.Set("size", fmt.Sprint(size))
	}
	if from > 0 {
		v.Set("from", fmt.Sprint(from))
	}
	return u.fetch(ctx, u.registryURL+"/-/v1/search?"+v.Encode())
}

// Downloads retrieves download counts for a package over a period
// (e.g. "last-week").
func (u *upstreamClient) Downloads(ctx context.Context, period, name string) ([]byte, error) {
	return u.fetch(ctx, u.downloadsURL+"/point/"+url.PathEscape(period)+"/"+escapePackageName(name))
}

// fetch is the shared GET path: singleflight per URL, rate limit, body
// cap, non-200 mapped to upstreamError.
func (u *upstreamClient) fetch(ctx context.Context, fullURL string) ([]byte, error) {
	body, err, _ := u.group.Do(fullURL, func() (any, error) {
		if err := u.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := u.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, &upstreamError{Status: resp.StatusCode, URL: fullURL}
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

// escapePackageName encodes a package name for a registry URL path.
// Scoped names keep their "@" and encode the slash: @acme/ui becomes
// @acme%2Fui, matching what the registry expects.
func escapePackageName(name string) string {
	return strings.ReplaceAll(name, "/", "%2F")
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/AleutianAI/RegistryDeck/services/connector/engine"
	"github.com/AleutianAI/RegistryDeck/services/connector/store"
)

// connectorClient talks to a running connector over its localhost HTTP
// API. Every response travels in the {success, data|error} envelope.
type connectorClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newConnectorClient(cfg Config) *connectorClient {
	return &connectorClient{
		baseURL: cfg.ConnectorURL,
		token:   cfg.Token,
		// Execute shells out to npm per operation; give batches room.
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

// connectorState mirrors the GET /state payload.
type connectorState struct {
	NpmUser     string            `json:"npmUser"`
	Operations  []store.Operation `json:"operations"`
	HasOtp      bool              `json:"hasOtp"`
	ConnectedAt *string           `json:"connectedAt"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// do performs one authenticated request and unmarshals the envelope's
// data into out (when out is non-nil).
func (c *connectorClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connector unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("connector returned status %d: %s", resp.StatusCode, string(raw))
	}
	if !env.Success {
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("unauthorized: check the token (registrydeck token show)")
		}
		return fmt.Errorf("%s", env.Error)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("parsing response data: %w", err)
		}
	}
	return nil
}

func (c *connectorClient) State(ctx context.Context) (connectorState, error) {
	var st connectorState
	err := c.do(ctx, http.MethodGet, "/state", nil, &st)
	return st, err
}

func (c *connectorClient) Approve(ctx context.Context, id string) (store.Operation, error) {
	var op store.Operation
	err := c.do(ctx, http.MethodPost, "/approve?id="+url.QueryEscape(id), nil, &op)
	return op, err
}

func (c *connectorClient) ApproveAll(ctx context.Context) (int, error) {
	var data struct {
		Approved int `json:"approved"`
	}
	err := c.do(ctx, http.MethodPost, "/approve-all", nil, &data)
	return data.Approved, err
}

func (c *connectorClient) Retry(ctx context.Context, id string) (store.Operation, error) {
	var op store.Operation
	err := c.do(ctx, http.MethodPost, "/retry?id="+url.QueryEscape(id), nil, &op)
	return op, err
}

func (c *connectorClient) Remove(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/operations?id="+url.QueryEscape(id), nil, nil)
}

func (c *connectorClient) ClearAll(ctx context.Context) (int, error) {
	var data struct {
		Removed int `json:"removed"`
	}
	err := c.do(ctx, http.MethodDelete, "/operations/all", nil, &data)
	return data.Removed, err
}

// Execute runs the approved queue. otp may be empty; the connector
// falls back to its armed OTP holder.
func (c *connectorClient) Execute(ctx context.Context, otp string) (engine.BatchOutcome, error) {
	var outcome engine.BatchOutcome
	var body any
	if otp != "" {
		body = map[string]string{"otp": otp}
	}
	err := c.do(ctx, http.MethodPost, "/execute", body, &outcome)
	return outcome, err
}

func (c *connectorClient) Mirror(ctx context.Context) (engine.MirrorSnapshot, error) {
	var snap engine.MirrorSnapshot
	err := c.do(ctx, http.MethodGet, "/mirror", nil, &snap)
	return snap, err
}

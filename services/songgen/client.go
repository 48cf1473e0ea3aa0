// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package songgen is the client for the external song-generation provider.
//
// # Description
//
// The provider executes long-running generation jobs that return up to two
// audio variations. This package exposes the REST surface (submit, status,
// primary switch, timing metadata, credits) and a websocket push stream for
// unsolicited status frames. Every failure crossing this seam is classified
// through the faults taxonomy.
//
// The API key is held in a memguard enclave so it never sits in plain heap
// memory between requests.
package songgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/awnumar/memguard"

	"github.com/AleutianAI/AleutianStudio/services/studio/faults"
	"github.com/AleutianAI/AleutianStudio/services/studio/quota"
	"github.com/AleutianAI/AleutianStudio/services/studio/tasksync"
	"github.com/AleutianAI/AleutianStudio/services/studio/variation"
)

// maxResponseBytes bounds provider response bodies.
const maxResponseBytes = 1 * 1024 * 1024 // 1MB

// SubmitRequest is a song-generation job submission.
type SubmitRequest struct {
	// Lyrics is the text to sing. Required.
	Lyrics string `json:"lyrics"`

	// Style is a free-form style caption (genre, mood, tempo).
	Style string `json:"style,omitempty"`

	// DurationSec is the requested audio length.
	DurationSec int `json:"duration_sec,omitempty"`

	// Regenerate marks the submission against the regeneration quota
	// counter instead of the generation one.
	Regenerate bool `json:"regenerate,omitempty"`
}

// SubmitResponse is the provider's acknowledgment of an accepted job.
type SubmitResponse struct {
	TaskID string `json:"task_id"`
}

// switchPrimaryRequest is the PATCH body for a primary-variation change.
type switchPrimaryRequest struct {
	Index int `json:"index"`
}

// switchPrimaryResponse mirrors the provider's PATCH reply.
type switchPrimaryResponse struct {
	Success      bool `json:"success"`
	PrimaryIndex int  `json:"primary_index"`
}

// creditsResponse is the provider's quota read.
type creditsResponse struct {
	Remaining int   `json:"remaining"`
	Total     int   `json:"total"`
	ResetAt   int64 `json:"reset_at"` // unix seconds
}

// timingResponse is the word-level alignment read for one variation.
type timingResponse struct {
	AudioID string                 `json:"audio_id"`
	Words   []variation.WordTiming `json:"words"`
}

// Client talks to the provider's REST API.
//
// Client implements tasksync.StatusFetcher, variation.TimingFetcher, and
// quota.CreditsReader.
//
// # Thread Safety
//
// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	key     *memguard.Enclave // nil when the provider needs no auth
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a provider client. apiKey may be empty for providers
// without auth; when set it is sealed into an enclave immediately and the
// caller's copy should not be retained.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	if apiKey != "" {
		c.key = memguard.NewEnclave([]byte(apiKey))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// authorize attaches the bearer token from the enclave, if configured.
func (c *Client) authorize(req *http.Request) error {
	if c.key == nil {
		return nil
	}
	buf, err := c.key.Open()
	if err != nil {
		return faults.Wrap(faults.CategoryAuth, "open api key enclave", err)
	}
	defer buf.Destroy()
	req.Header.Set("Authorization", "Bearer "+buf.String())
	return nil
}

// doJSON issues a request with a JSON body (nil allowed) and decodes the
// JSON response into out (nil allowed). Non-2xx statuses come back as
// classified faults.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req); err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return faults.Wrap(faults.Classify(err), method+" "+path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("provider request finished",
		"method", method, "path", path,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		f := &faults.Fault{
			Category: faults.FromStatusCode(resp.StatusCode),
			Message:  fmt.Sprintf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data))),
		}
		if f.Category == faults.CategoryRateLimit {
			f.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return f
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return faults.Wrap(faults.CategoryServerError, "decode provider response", err)
	}
	return nil
}

func parseRetryAfter(header string) time.Time {
	if header == "" {
		return time.Time{}
	}
	if secs, err := time.ParseDuration(header + "s"); err == nil {
		return time.Now().UTC().Add(secs)
	}
	if t, err := http.ParseTime(header); err == nil {
		return t
	}
	return time.Time{}
}

// Submit dispatches a generation job. A returned task id means the provider
// accepted the job and the relevant quota counter was consumed.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if strings.TrimSpace(req.Lyrics) == "" {
		return "", faults.New(faults.CategoryInvalidInput, "lyrics must not be empty")
	}

	var resp SubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/generations", req, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", faults.New(faults.CategoryServerError, "provider accepted the job without a task id")
	}
	c.logger.Info("generation job accepted",
		"task_id", resp.TaskID, "regenerate", req.Regenerate)
	return resp.TaskID, nil
}

// TaskStatus reads one task's current status. Implements the
// synchronizer's poll source; the response shape matches push frames.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (tasksync.TaskUpdate, error) {
	var u tasksync.TaskUpdate
	if err := c.doJSON(ctx, http.MethodGet, "/v1/generations/"+taskID, nil, &u); err != nil {
		return tasksync.TaskUpdate{}, err
	}
	if _, err := tasksync.ParseStatus(string(u.Status)); err != nil {
		return tasksync.TaskUpdate{}, faults.Wrap(faults.CategoryServerError, "invalid status in poll response", err)
	}
	return u, nil
}

// SwitchPrimary tells the provider which variation the caller prefers.
func (c *Client) SwitchPrimary(ctx context.Context, taskID string, index int) (int, error) {
	var resp switchPrimaryResponse
	err := c.doJSON(ctx, http.MethodPatch,
		"/v1/generations/"+taskID+"/variations/primary",
		switchPrimaryRequest{Index: index}, &resp)
	if err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, faults.New(faults.CategoryServerError, "provider rejected the primary switch")
	}
	return resp.PrimaryIndex, nil
}

// VariationTiming fetches word-level alignment for one variation's audio.
// Implements the variation selector's metadata fetch.
func (c *Client) VariationTiming(ctx context.Context, audioID string) ([]variation.WordTiming, error) {
	var resp timingResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/audio/"+audioID+"/timing", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Words, nil
}

// Credits reads the remaining quota for a counter. Implements the rate
// gate's provider read.
func (c *Client) Credits(ctx context.Context, counter quota.Counter) (quota.RateLimitState, error) {
	var resp creditsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/credits?counter="+counter.String(), nil, &resp); err != nil {
		return quota.RateLimitState{}, err
	}
	return quota.RateLimitState{
		Remaining: resp.Remaining,
		Total:     resp.Total,
		ResetAt:   time.Unix(resp.ResetAt, 0).UTC(),
	}, nil
}

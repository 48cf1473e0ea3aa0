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
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianStudio/cmd/studio/config"
	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
	"github.com/AleutianAI/AleutianStudio/services/studio/tasksync"
)

// apiClient talks to a running studio service.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// newAPIClient builds a client from the loaded config.
func newAPIClient() *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(config.Global.Server.URL, "/"),
		token:   config.Global.Server.Token,
		http: &http.Client{
			Timeout: time.Duration(config.Global.Server.TimeoutSeconds) * time.Second,
		},
	}
}

// apiError is a non-2xx response decoded into the service's error body.
type apiError struct {
	Status int
	Body   datatypes.ErrorResponse
}

func (e *apiError) Error() string {
	if e.Body.Error != "" {
		return fmt.Sprintf("%s (%d %s)", e.Body.Error, e.Status, e.Body.Category)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// do sends a JSON request and decodes the response into out (if non-nil).
func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("studio service unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr.Body)
		return apiErr
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *apiClient) GenerateLyrics(ctx context.Context, content string, regenerate bool) (datatypes.GenerateLyricsResponse, error) {
	path := "/v1/lyrics"
	if regenerate {
		path = "/v1/lyrics/regenerate"
	}
	var out datatypes.GenerateLyricsResponse
	err := c.do(ctx, http.MethodPost, path,
		datatypes.GenerateLyricsRequest{Content: content}, &out)
	return out, err
}

func (c *apiClient) ListVersions(ctx context.Context) (datatypes.VersionsResponse, error) {
	var out datatypes.VersionsResponse
	err := c.do(ctx, http.MethodGet, "/v1/versions", nil, &out)
	return out, err
}

func (c *apiClient) SetActiveVersion(ctx context.Context, versionID string) (datatypes.VersionsResponse, error) {
	var out datatypes.VersionsResponse
	err := c.do(ctx, http.MethodPut, "/v1/versions/active",
		datatypes.SetActiveRequest{VersionID: versionID}, &out)
	return out, err
}

func (c *apiClient) DeleteVersion(ctx context.Context, versionID string) (datatypes.VersionsResponse, error) {
	var out datatypes.VersionsResponse
	err := c.do(ctx, http.MethodDelete, "/v1/versions/"+url.PathEscape(versionID), nil, &out)
	return out, err
}

func (c *apiClient) EditVersion(ctx context.Context, versionID, text string) (datatypes.VersionsResponse, error) {
	var out datatypes.VersionsResponse
	err := c.do(ctx, http.MethodPatch, "/v1/versions/"+url.PathEscape(versionID)+"/text",
		datatypes.EditLyricsRequest{Text: text}, &out)
	return out, err
}

func (c *apiClient) CreateSong(ctx context.Context, params map[string]any) (datatypes.CreateSongResponse, error) {
	var out datatypes.CreateSongResponse
	err := c.do(ctx, http.MethodPost, "/v1/songs",
		datatypes.CreateSongRequest{Params: params}, &out)
	return out, err
}

func (c *apiClient) GetTask(ctx context.Context, taskID string) (datatypes.TaskResponse, error) {
	var out datatypes.TaskResponse
	err := c.do(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(taskID), nil, &out)
	return out, err
}

func (c *apiClient) SwitchPrimary(ctx context.Context, taskID string, index int) (datatypes.SwitchPrimaryResponse, error) {
	var out datatypes.SwitchPrimaryResponse
	err := c.do(ctx, http.MethodPatch,
		"/v1/tasks/"+url.PathEscape(taskID)+"/variations/primary",
		datatypes.SwitchPrimaryRequest{Index: &index}, &out)
	return out, err
}

func (c *apiClient) GetQuota(ctx context.Context, counter string) (datatypes.QuotaResponse, error) {
	var out datatypes.QuotaResponse
	path := "/v1/quota"
	if counter != "" {
		path += "?counter=" + url.QueryEscape(counter)
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// taskEvent is one frame from the task events websocket: either a task
// snapshot or a watchdog timeout notice.
type taskEvent struct {
	TaskID     string               `json:"task_id"`
	Status     string               `json:"status"`
	Progress   int                  `json:"progress"`
	Variations []tasksync.Variation `json:"variations"`
	Error      string               `json:"error"`
	Timeout    bool                 `json:"timeout"`
	Message    string               `json:"message"`
}

// DialEvents opens the task events websocket and streams frames onto the
// returned channel. The channel closes when the bridge ends; the caller
// cancels by closing ctx.
func (c *apiClient) DialEvents(ctx context.Context, taskID string) (<-chan taskEvent, error) {
	wsURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/v1/tasks/" + taskID + "/events"

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("unknown task %q: the service only streams tasks it is tracking", taskID)
		}
		return nil, fmt.Errorf("connect to event stream: %w", err)
	}

	events := make(chan taskEvent, 16)
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var ev taskEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	return events, nil
}

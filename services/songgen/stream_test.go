// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package songgen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStudio/services/studio/tasksync"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newPushServer serves one websocket session: reads the subscribe frame,
// then emits the given frames.
func newPushServer(t *testing.T, frames []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/events" {
			http.NotFound(w, r)
			return
		}
		ws, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer ws.Close()

		var sub subscribeMessage
		require.NoError(t, ws.ReadJSON(&sub))
		require.Equal(t, "subscribe", sub.Action)

		for _, frame := range frames {
			frame["task_id"] = sub.TaskID
			require.NoError(t, ws.WriteJSON(frame))
		}
		// Hold the connection open briefly so the client reads everything.
		time.Sleep(50 * time.Millisecond)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamDialAndFrames(t *testing.T) {
	srv := newPushServer(t, []map[string]any{
		{"status": "processing", "progress": 30},
		{"status": "exploded", "progress": 31}, // malformed, skipped
		{"status": "completed", "progress": 100},
	})
	defer srv.Close()

	d := NewStreamDialer(wsURL(srv), "", nil)
	stream, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, stream.Subscribe(context.Background(), "task-42"))

	u, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tasksync.StatusProcessing, u.Status)
	assert.Equal(t, "task-42", u.TaskID)

	// The malformed frame is skipped, not surfaced.
	u, err = stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tasksync.StatusCompleted, u.Status)
	assert.False(t, u.ReceivedAt.IsZero())
}

func TestStreamNextHonorsContext(t *testing.T) {
	srv := newPushServer(t, nil) // subscribes, then sends nothing
	defer srv.Close()

	d := NewStreamDialer(wsURL(srv), "", nil)
	stream, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, stream.Subscribe(context.Background(), "task-42"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamDialAuthHeader(t *testing.T) {
	gotAuth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.Close()
	}))
	defer srv.Close()

	d := NewStreamDialer(wsURL(srv), "ws-key", nil)
	stream, err := d.Dial(context.Background())
	require.NoError(t, err)
	stream.Close()

	assert.Equal(t, "Bearer ws-key", <-gotAuth)
}

func TestStreamDialRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := NewStreamDialer(wsURL(srv), "", nil)
	_, err := d.Dial(context.Background())
	assert.Error(t, err)
}

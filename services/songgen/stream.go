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
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianStudio/services/studio/faults"
	"github.com/AleutianAI/AleutianStudio/services/studio/tasksync"
)

// subscribeMessage is the frame sent after (re)connect to register interest
// in a task. Reconnects must re-send it; the server keeps no subscription
// state across connections.
type subscribeMessage struct {
	Action string `json:"action"`
	TaskID string `json:"task_id"`
}

// StreamDialer dials the provider's push websocket. Implements
// tasksync.StreamDialer.
type StreamDialer struct {
	wsURL  string
	key    *memguard.Enclave
	logger *slog.Logger

	// HandshakeTimeout bounds the websocket upgrade.
	HandshakeTimeout time.Duration
}

// NewStreamDialer creates a dialer for the provider's push endpoint.
// wsURL uses the ws:// or wss:// scheme.
func NewStreamDialer(wsURL, apiKey string, logger *slog.Logger) *StreamDialer {
	if logger == nil {
		logger = slog.Default()
	}
	d := &StreamDialer{
		wsURL:            strings.TrimSuffix(wsURL, "/"),
		logger:           logger,
		HandshakeTimeout: 10 * time.Second,
	}
	if apiKey != "" {
		d.key = memguard.NewEnclave([]byte(apiKey))
	}
	return d
}

// Dial opens one push connection. Each reconnect dials afresh.
func (d *StreamDialer) Dial(ctx context.Context) (tasksync.PushStream, error) {
	header := http.Header{}
	if d.key != nil {
		buf, err := d.key.Open()
		if err != nil {
			return nil, faults.Wrap(faults.CategoryAuth, "open api key enclave", err)
		}
		header.Set("Authorization", "Bearer "+buf.String())
		buf.Destroy()
	}

	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, d.wsURL+"/v1/events", header)
	if err != nil {
		if resp != nil {
			return nil, faults.Wrap(faults.FromStatusCode(resp.StatusCode),
				fmt.Sprintf("websocket dial rejected with %d", resp.StatusCode), err)
		}
		return nil, faults.Wrap(faults.Classify(err), "websocket dial", err)
	}

	d.logger.Debug("push stream connected", "url", d.wsURL)
	return &pushStream{conn: conn, logger: d.logger}, nil
}

// pushStream is one live websocket connection to the provider.
type pushStream struct {
	conn   *websocket.Conn
	logger *slog.Logger
}

// Subscribe registers interest in a task on this connection.
func (s *pushStream) Subscribe(ctx context.Context, taskID string) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	}
	msg := subscribeMessage{Action: "subscribe", TaskID: taskID}
	if err := s.conn.WriteJSON(msg); err != nil {
		return faults.Wrap(faults.CategoryNetwork, "send subscribe frame", err)
	}
	_ = s.conn.SetWriteDeadline(time.Time{})
	return nil
}

// Next blocks until the next status frame arrives or the stream breaks.
//
// The websocket read itself cannot select on ctx, so cancellation is
// enforced by closing the connection from a watcher goroutine; the pending
// read then returns with an error.
func (s *pushStream) Next(ctx context.Context) (tasksync.TaskUpdate, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.conn.Close()
		case <-stop:
		}
	}()

	for {
		var u tasksync.TaskUpdate
		if err := s.conn.ReadJSON(&u); err != nil {
			if ctx.Err() != nil {
				return tasksync.TaskUpdate{}, ctx.Err()
			}
			return tasksync.TaskUpdate{}, faults.Wrap(faults.CategoryNetwork, "read push frame", err)
		}
		// A malformed frame is not worth churning the connection over.
		if _, err := tasksync.ParseStatus(string(u.Status)); err != nil {
			s.logger.Warn("skipping push frame with invalid status",
				"task_id", u.TaskID, "status", string(u.Status))
			continue
		}
		u.ReceivedAt = time.Now().UTC()
		return u, nil
	}
}

// Close tears the connection down.
func (s *pushStream) Close() error {
	return s.conn.Close()
}

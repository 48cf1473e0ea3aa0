// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tasksync

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a generation task.
//
// Statuses follow a total order for reconciliation purposes:
// queued < processing < {completed, failed, expired}. The three terminal
// statuses share a rank; once any of them is applied the task is immutable.
type Status string

const (
	// StatusQueued means the provider accepted the task but has not started it.
	StatusQueued Status = "queued"

	// StatusProcessing means the provider is generating audio.
	StatusProcessing Status = "processing"

	// StatusCompleted means the task finished and variations are available.
	StatusCompleted Status = "completed"

	// StatusFailed means the provider gave up on the task.
	StatusFailed Status = "failed"

	// StatusExpired means the task aged out before completing.
	StatusExpired Status = "expired"
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s ends the task lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// Rank returns the position of s in the reconciliation order.
// Higher ranks supersede lower ones; equal ranks merge monotonically.
func (s Status) Rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed, StatusExpired:
		return 2
	default:
		return -1
	}
}

// ParseStatus validates a wire status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown task status %q", raw)
	}
	return s, nil
}

// Source identifies which update channel produced a TaskUpdate.
type Source string

const (
	// SourcePush marks frames from the provider's websocket stream.
	SourcePush Source = "push"

	// SourcePoll marks responses from the interval status poller.
	SourcePoll Source = "poll"
)

// Variation is one of up to two audio artifacts produced by a task.
type Variation struct {
	AudioURL string `json:"audio_url"`
	AudioID  string `json:"audio_id"`
	Index    int    `json:"index"`
}

// TaskUpdate is one status observation from either source. Push frames and
// poll responses share this shape.
type TaskUpdate struct {
	TaskID     string      `json:"task_id"`
	Status     Status      `json:"status"`
	Progress   int         `json:"progress"`
	Variations []Variation `json:"variations,omitempty"`
	Error      string      `json:"error,omitempty"`

	// Source and ReceivedAt are local bookkeeping, not wire fields.
	Source     Source    `json:"-"`
	ReceivedAt time.Time `json:"-"`
}

// GenerationTask is the reconciled view of one task.
type GenerationTask struct {
	TaskID     string      `json:"task_id"`
	Status     Status      `json:"status"`
	Progress   int         `json:"progress"`
	Variations []Variation `json:"variations,omitempty"`
	Error      string      `json:"error,omitempty"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// ConnState is the push channel's connection lifecycle state.
type ConnState int32

const (
	// ConnDisconnected is the initial state before any dial attempt.
	ConnDisconnected ConnState = iota

	// ConnConnecting means the first dial is in flight.
	ConnConnecting

	// ConnConnected means frames are flowing.
	ConnConnected

	// ConnReconnecting means an unexpected drop triggered backoff retries.
	ConnReconnecting

	// ConnFailed means the reconnect attempt cap was exhausted. Only an
	// explicit Reconnect call leaves this state.
	ConnFailed
)

// String returns the string representation of ConnState.
func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnReconnecting:
		return "reconnecting"
	case ConnFailed:
		return "failed"
	default:
		return "unknown"
	}
}

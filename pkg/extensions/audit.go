// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"time"
)

// AuditEvent represents a security-relevant event for compliance logging.
//
// Events are categorized by type for filtering and alerting. The studio
// emits, among others:
//   - "studio.version_deleted": a lyric version was removed from history
//   - "studio.song_submitted": lyrics were dispatched for song generation
//   - "studio.primary_switched": the primary variation changed
//
// Example:
//
//	event := AuditEvent{
//	    EventType:    "studio.song_submitted",
//	    Timestamp:    time.Now().UTC(),
//	    UserID:       authInfo.UserID,
//	    Action:       "create",
//	    ResourceType: "task",
//	    ResourceID:   taskID,
//	    Outcome:      "success",
//	}
type AuditEvent struct {
	// EventType categorizes the event for filtering and alerting.
	// Format: "category.action" (e.g., "studio.song_submitted")
	EventType string

	// Timestamp is when the event occurred (always UTC).
	// If zero, implementations should set it to time.Now().UTC().
	Timestamp time.Time

	// UserID identifies who performed the action.
	// Use "system" for automated actions, "anonymous" if unknown.
	UserID string

	// Action describes what operation was attempted.
	// Common values: "create", "read", "update", "delete"
	Action string

	// ResourceType is the category of resource involved.
	// Examples: "version", "task", "song"
	ResourceType string

	// ResourceID is the specific resource instance. Optional.
	ResourceID string

	// Outcome indicates the result of the action.
	// Values: "success", "failure", "blocked", "error", "superseded"
	Outcome string

	// Metadata holds additional event-specific data, such as the
	// variation index of a primary switch or the error message of a
	// failed dispatch.
	Metadata map[string]any
}

// AuditLogger records security-relevant events for compliance and
// analysis.
//
// Implementations must be safe for concurrent use and should return
// quickly; buffer internally if the backing store is slow. The default
// NopAuditLogger discards all events. Enterprise versions send events
// to SIEM systems or compliance databases.
type AuditLogger interface {
	// Log records an event. Implementations should set Timestamp when
	// it is zero and must not block the request path.
	Log(ctx context.Context, event AuditEvent) error

	// Flush ensures all buffered events are persisted. Called before
	// shutdown; sync implementations may treat it as a no-op.
	Flush(ctx context.Context) error
}

// NopAuditLogger is the default audit logger for open source.
// It discards all events.
type NopAuditLogger struct{}

// Log discards the event and returns nil.
func (l *NopAuditLogger) Log(_ context.Context, _ AuditEvent) error {
	return nil
}

// Flush is a no-op since nothing is buffered.
func (l *NopAuditLogger) Flush(_ context.Context) error {
	return nil
}

var _ AuditLogger = (*NopAuditLogger)(nil)

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the studio service HTTP endpoints.
//
// Handlers are thin: request validation, a call into the core (workspace,
// synchronizer, selector, gate), and a response. All domain rules live in
// the core packages.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianStudio/pkg/extensions"
	"github.com/AleutianAI/AleutianStudio/services/llm"
	"github.com/AleutianAI/AleutianStudio/services/songgen"
	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
	"github.com/AleutianAI/AleutianStudio/services/studio/faults"
	"github.com/AleutianAI/AleutianStudio/services/studio/middleware"
	"github.com/AleutianAI/AleutianStudio/services/studio/observability"
	"github.com/AleutianAI/AleutianStudio/services/studio/quota"
	"github.com/AleutianAI/AleutianStudio/services/studio/tasksync"
	"github.com/AleutianAI/AleutianStudio/services/studio/variation"
	"github.com/AleutianAI/AleutianStudio/services/studio/workspace"
)

// LyricsGenerator produces lyric text from prompt content.
type LyricsGenerator interface {
	Generate(ctx context.Context, req llm.LyricsRequest) (llm.LyricsResult, error)
}

// SongSubmitter dispatches a song-generation job to the provider.
type SongSubmitter interface {
	Submit(ctx context.Context, req songgen.SubmitRequest) (string, error)
}

// Deps carries everything the handlers need. Constructed once by the
// service shell and shared across requests.
type Deps struct {
	Workspace *workspace.Workspace
	Pipeline  LyricsGenerator
	Songs     SongSubmitter
	Sync      *tasksync.Synchronizer
	Selector  *variation.Selector
	Gate      *quota.Gate
	Audit     extensions.AuditLogger
	Filter    extensions.MessageFilter
	Metrics   *observability.StudioMetrics
	Logger    *slog.Logger

	// BaseCtx bounds background work spawned by handlers, like task
	// subscriptions, to the service lifetime. The request context dies
	// with the response, so work that outlives the request must hang off
	// this one instead. Nil falls back to context.Background().
	BaseCtx context.Context
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// baseContext returns the service-lifetime context for background work.
func (d *Deps) baseContext() context.Context {
	if d.BaseCtx != nil {
		return d.BaseCtx
	}
	return context.Background()
}

// respondFault maps a classified error onto an HTTP status and the uniform
// error body.
func respondFault(c *gin.Context, err error) {
	category := faults.CategoryOf(err)
	body := datatypes.ErrorResponse{
		Error:    err.Error(),
		Category: string(category),
	}

	status := http.StatusInternalServerError
	switch category {
	case faults.CategoryInvalidInput:
		status = http.StatusBadRequest
	case faults.CategoryAuth:
		status = http.StatusUnauthorized
	case faults.CategoryRateLimit:
		status = http.StatusTooManyRequests
		var f *faults.Fault
		if errors.As(err, &f) && !f.RetryAfter.IsZero() {
			secs := int(time.Until(f.RetryAfter).Seconds())
			if secs > 0 {
				body.RetryAfterSeconds = secs
				c.Header("Retry-After", strconv.Itoa(secs))
			}
		}
	case faults.CategoryTimeout:
		status = http.StatusGatewayTimeout
	case faults.CategoryNetwork, faults.CategoryServerError:
		status = http.StatusBadGateway
	}

	c.JSON(status, body)
}

// auditUser resolves the acting user for audit events.
func auditUser(c *gin.Context) string {
	if info := middleware.GetAuthInfo(c); info != nil && info.UserID != "" {
		return info.UserID
	}
	return "anonymous"
}

// audit records an event, swallowing logger failures (auditing must never
// fail a request).
func (d *Deps) audit(ctx context.Context, event extensions.AuditEvent) {
	if d.Audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := d.Audit.Log(ctx, event); err != nil {
		d.logger().Warn("audit log failed", "event_type", event.EventType, "error", err)
	}
}

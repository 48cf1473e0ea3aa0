// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianStudio/pkg/extensions"
	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
	"github.com/AleutianAI/AleutianStudio/services/studio/faults"
)

// ListVersions handles GET /v1/versions.
func ListVersions(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		hist := d.Workspace.History()
		c.JSON(http.StatusOK, datatypes.VersionsResponse{
			Fingerprint: d.Workspace.Fingerprint(),
			ActiveID:    hist.ActiveID(),
			Versions:    hist.Versions(),
		})
	}
}

// SetActiveVersion handles PUT /v1/versions/active.
//
// An unknown id is not an error at this layer: the history falls back to
// the newest version and the response reports what actually became active.
func SetActiveVersion(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.SetActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondFault(c, faults.Wrap(faults.CategoryInvalidInput, "decode request", err))
			return
		}
		if err := req.Validate(); err != nil {
			respondFault(c, faults.Wrap(faults.CategoryInvalidInput, "validate request", err))
			return
		}

		d.Workspace.SetActiveVersion(req.VersionID)
		c.JSON(http.StatusOK, gin.H{"active_id": d.Workspace.History().ActiveID()})
	}
}

// DeleteVersion handles DELETE /v1/versions/:id.
func DeleteVersion(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !d.Workspace.DeleteVersion(id) {
			respondFault(c, faults.New(faults.CategoryInvalidInput, "version not found: "+id))
			return
		}

		d.audit(c.Request.Context(), extensions.AuditEvent{
			EventType:    "studio.version_deleted",
			UserID:       auditUser(c),
			Action:       "delete",
			ResourceType: "version",
			ResourceID:   id,
			Outcome:      "success",
		})
		c.JSON(http.StatusOK, gin.H{"active_id": d.Workspace.History().ActiveID()})
	}
}

// EditVersion handles PATCH /v1/versions/:id/text.
//
// Edits apply only to the active version; a non-active id is rejected so a
// stale client cannot silently mutate history.
func EditVersion(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		var req datatypes.EditLyricsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondFault(c, faults.Wrap(faults.CategoryInvalidInput, "decode request", err))
			return
		}
		if err := req.Validate(); err != nil {
			respondFault(c, faults.Wrap(faults.CategoryInvalidInput, "validate request", err))
			return
		}

		if !d.Workspace.UpdateVersionEdits(id, req.Text) {
			respondFault(c, faults.New(faults.CategoryInvalidInput,
				"version is not active or does not exist: "+id))
			return
		}

		active, _ := d.Workspace.History().Active()
		c.JSON(http.StatusOK, active)
	}
}

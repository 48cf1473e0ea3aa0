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
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianStudio/pkg/extensions"
	"github.com/AleutianAI/AleutianStudio/services/songgen"
	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
	"github.com/AleutianAI/AleutianStudio/services/studio/faults"
	"github.com/AleutianAI/AleutianStudio/services/studio/tasksync"
)

// CreateSong handles POST /v1/songs.
//
// # Description
//
// Submits the workspace's active lyric text (user edits win over the
// generated text) to the provider and subscribes the synchronizer to the
// returned task. The response carries only the task handle; progress flows
// through GET /v1/tasks/:id and the events websocket.
func CreateSong(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateSongRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondFault(c, faults.Wrap(faults.CategoryInvalidInput, "decode request", err))
			return
		}

		lyrics := d.Workspace.History().ActiveText()
		if lyrics == "" {
			respondFault(c, faults.New(faults.CategoryInvalidInput,
				"no active lyric version to sing"))
			return
		}

		ctx := c.Request.Context()
		style, _ := req.Params["style"].(string)
		taskID, err := d.Songs.Submit(ctx, songgen.SubmitRequest{
			Lyrics: lyrics,
			Style:  style,
		})
		if err != nil {
			respondFault(c, err)
			return
		}

		// The subscription's push and poll loops outlive this request, so
		// they must not inherit the request context — net/http cancels it
		// the moment the response is written.
		if _, err := d.Sync.Subscribe(d.baseContext(), taskID); err != nil {
			// Submission succeeded; losing the subscription is a server
			// problem, not the caller's.
			d.logger().Error("subscribe after submit failed", "task_id", taskID, "error", err)
			respondFault(c, faults.Wrap(faults.CategoryServerError, "track task", err))
			return
		}
		if d.Metrics != nil {
			d.Metrics.ActiveSubscriptions.Inc()
		}

		d.audit(ctx, extensions.AuditEvent{
			EventType:    "studio.song_submitted",
			UserID:       auditUser(c),
			Action:       "create",
			ResourceType: "task",
			ResourceID:   taskID,
			Outcome:      "success",
		})
		c.JSON(http.StatusAccepted, datatypes.CreateSongResponse{TaskID: taskID})
	}
}

// GetTask handles GET /v1/tasks/:id.
func GetTask(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("id")
		task, err := d.Sync.Task(taskID)
		if err != nil {
			if errors.Is(err, tasksync.ErrNotSubscribed) {
				respondFault(c, faults.New(faults.CategoryInvalidInput,
					"unknown task: "+taskID))
				return
			}
			respondFault(c, err)
			return
		}

		c.JSON(http.StatusOK, taskResponse(d, task))
	}
}

// SwitchPrimary handles PATCH /v1/tasks/:id/variations/primary.
//
// The switch is optimistic: the local primary changes immediately and the
// provider write settles in the background. The response reflects the
// local state; a later provider failure surfaces through the selector's
// result channel and the audit log.
func SwitchPrimary(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("id")

		var req datatypes.SwitchPrimaryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondFault(c, faults.Wrap(faults.CategoryInvalidInput, "decode request", err))
			return
		}
		if err := req.Validate(); err != nil {
			respondFault(c, faults.Wrap(faults.CategoryInvalidInput, "validate request", err))
			return
		}

		// The settle work outlives this request, so it must not inherit the
		// request context.
		resultCh, err := d.Selector.SwitchPrimary(context.Background(), taskID, *req.Index)
		if err != nil {
			if d.Metrics != nil {
				d.Metrics.RecordPrimarySwitch("error")
			}
			respondFault(c, err)
			return
		}

		user := auditUser(c)
		go func() {
			settleErr, delivered := <-resultCh
			outcome := switchOutcome(delivered, settleErr)
			if d.Metrics != nil {
				d.Metrics.RecordPrimarySwitch(outcome)
			}
			if settleErr != nil {
				d.logger().Warn("primary switch settle failed",
					"task_id", taskID, "error", settleErr)
			}
			// The request is long gone by the time the switch settles.
			d.audit(context.Background(), extensions.AuditEvent{
				EventType:    "studio.primary_switched",
				UserID:       user,
				Action:       "update",
				ResourceType: "task",
				ResourceID:   taskID,
				Outcome:      outcome,
			})
		}()

		c.JSON(http.StatusOK, datatypes.SwitchPrimaryResponse{
			TaskID:       taskID,
			PrimaryIndex: d.Selector.Primary(taskID),
		})
	}
}

func switchOutcome(delivered bool, err error) string {
	if !delivered {
		return "superseded"
	}
	if err != nil {
		return "error"
	}
	return "success"
}

func taskResponse(d *Deps, task tasksync.GenerationTask) datatypes.TaskResponse {
	return datatypes.TaskResponse{
		TaskID:       task.TaskID,
		Status:       task.Status,
		Progress:     task.Progress,
		Variations:   task.Variations,
		PrimaryIndex: d.Selector.Primary(task.TaskID),
		Error:        task.Error,
		UpdatedAt:    task.UpdatedAt,
	}
}

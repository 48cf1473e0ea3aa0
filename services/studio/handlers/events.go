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
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianStudio/services/studio/tasksync"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TaskEvents handles GET /v1/tasks/:id/events.
//
// # Description
//
// Bridges one task's reconciled state onto a client websocket. The client
// receives a snapshot immediately on connect, then every applied update,
// and finally a timeout notice if the watchdog fires. Frames are task
// snapshots, not raw provider updates, so the client sees the same ordered
// view the rest of the studio sees.
//
// The bridge ends when the client disconnects, the subscription closes, or
// the task reaches a terminal state (the terminal snapshot is delivered
// first).
func TaskEvents(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("id")
		sub, ok := d.Sync.Subscription(taskID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown task: " + taskID})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			d.logger().Error("websocket upgrade failed", "task_id", taskID, "error", err)
			return
		}
		defer ws.Close()

		// Serialize writes: listener callbacks and this handler both write.
		frames := make(chan tasksync.GenerationTask, 16)
		listenerID := sub.Listen(func(task tasksync.GenerationTask) {
			select {
			case frames <- task:
			default:
				// Slow client; it will catch up from the next snapshot.
			}
		})
		defer sub.Unlisten(listenerID)

		// Detect client disconnect. Inbound frames are ignored.
		clientGone := make(chan struct{})
		go func() {
			defer close(clientGone)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		// Snapshot first, so a late subscriber starts consistent.
		if err := ws.WriteJSON(sub.Task()); err != nil {
			return
		}

		// Timeout fires at most once; nil disables the case afterwards.
		timeoutCh := sub.Timeout()

		for {
			select {
			case task := <-frames:
				if err := ws.WriteJSON(task); err != nil {
					d.logger().Debug("events client write failed",
						"task_id", taskID, "error", err)
					return
				}
				if task.Status.IsTerminal() {
					return
				}
			case <-timeoutCh:
				timeoutCh = nil
				if err := ws.WriteJSON(gin.H{
					"task_id": taskID,
					"timeout": true,
					"message": "no terminal status within the watchdog window",
				}); err != nil {
					return
				}
				// Keep the bridge open: a late terminal update still flows.
			case <-sub.Done():
				return
			case <-clientGone:
				return
			}
		}
	}
}

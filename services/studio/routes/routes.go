// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes wires the studio service's HTTP surface.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianStudio/pkg/extensions"
	"github.com/AleutianAI/AleutianStudio/services/studio/handlers"
	"github.com/AleutianAI/AleutianStudio/services/studio/middleware"
	"github.com/AleutianAI/AleutianStudio/services/studio/quota"
)

// SetupRoutes registers all studio endpoints on the router.
func SetupRoutes(router *gin.Engine, deps *handlers.Deps, opts extensions.ServiceOptions) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(opts.AuthProvider))
	{
		v1.POST("/lyrics", handlers.GenerateLyrics(deps, quota.CounterGeneration))
		v1.POST("/lyrics/regenerate", handlers.GenerateLyrics(deps, quota.CounterRegeneration))

		v1.GET("/versions", handlers.ListVersions(deps))
		v1.PUT("/versions/active", handlers.SetActiveVersion(deps))
		v1.DELETE("/versions/:id", handlers.DeleteVersion(deps))
		v1.PATCH("/versions/:id/text", handlers.EditVersion(deps))

		v1.POST("/songs", handlers.CreateSong(deps))

		tasks := v1.Group("/tasks")
		{
			tasks.GET("/:id", handlers.GetTask(deps))
			tasks.GET("/:id/events", handlers.TaskEvents(deps))
			tasks.PATCH("/:id/variations/primary", handlers.SwitchPrimary(deps))
		}

		v1.GET("/quota", handlers.GetQuota(deps))
	}
}

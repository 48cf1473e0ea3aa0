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

	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
	"github.com/AleutianAI/AleutianStudio/services/studio/faults"
	"github.com/AleutianAI/AleutianStudio/services/studio/quota"
)

// GetQuota handles GET /v1/quota?counter=generation|regeneration.
//
// Serves the cached state when fresh; otherwise refreshes from the
// provider. The default counter is generation.
func GetQuota(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		counter := quota.CounterGeneration
		switch c.Query("counter") {
		case "", string(quota.CounterGeneration):
		case string(quota.CounterRegeneration):
			counter = quota.CounterRegeneration
		default:
			respondFault(c, faults.New(faults.CategoryInvalidInput,
				"unknown counter: "+c.Query("counter")))
			return
		}

		state, err := d.Gate.Refresh(c.Request.Context(), counter)
		if err != nil {
			// A stale cache beats an error page.
			if cached, ok := d.Gate.State(counter); ok {
				state = cached
			} else {
				respondFault(c, err)
				return
			}
		}

		c.JSON(http.StatusOK, datatypes.QuotaResponse{
			Counter:   counter.String(),
			Remaining: state.Remaining,
			Total:     state.Total,
			ResetAt:   state.ResetAt,
		})
	}
}

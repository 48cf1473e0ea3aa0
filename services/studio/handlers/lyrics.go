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

	"github.com/AleutianAI/AleutianStudio/services/llm"
	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
	"github.com/AleutianAI/AleutianStudio/services/studio/faults"
	"github.com/AleutianAI/AleutianStudio/services/studio/quota"
)

// GenerateLyrics handles POST /v1/lyrics and POST /v1/lyrics/regenerate.
//
// # Description
//
// Checks the rate gate for the counter, runs the lyrics pipeline, commits
// the result into the workspace (which handles fingerprint-change resets),
// and only then consumes quota. A failed pipeline call never decrements
// the counter.
func GenerateLyrics(d *Deps, counter quota.Counter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.GenerateLyricsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondFault(c, faults.Wrap(faults.CategoryInvalidInput, "decode request", err))
			return
		}
		if err := req.Validate(); err != nil {
			respondFault(c, faults.Wrap(faults.CategoryInvalidInput, "validate request", err))
			return
		}

		ctx := c.Request.Context()

		content := req.Content
		if d.Filter != nil {
			fr, err := d.Filter.FilterInput(ctx, content)
			if err != nil {
				respondFault(c, faults.Wrap(faults.CategoryServerError, "content filter", err))
				return
			}
			if fr.WasBlocked {
				respondFault(c, faults.New(faults.CategoryInvalidInput,
					"content blocked: "+fr.BlockReason))
				return
			}
			content = fr.Filtered
		}

		if err := d.Gate.Check(ctx, counter); err != nil {
			if d.Metrics != nil && faults.CategoryOf(err) == faults.CategoryRateLimit {
				d.Metrics.RecordQuotaDenied(counter.String())
			}
			respondFault(c, err)
			return
		}

		result, err := d.Pipeline.Generate(ctx, llm.LyricsRequest{
			Content: content,
			Params:  req.Params,
		})
		if err != nil {
			if d.Metrics != nil {
				d.Metrics.RecordLyricsRequest(counter.String(), false)
			}
			respondFault(c, faults.Wrap(faults.Classify(err), "lyrics generation", err))
			return
		}

		text := result.Text
		if d.Filter != nil {
			fr, err := d.Filter.FilterOutput(ctx, text)
			if err != nil {
				respondFault(c, faults.Wrap(faults.CategoryServerError, "content filter", err))
				return
			}
			if fr.WasBlocked {
				respondFault(c, faults.New(faults.CategoryServerError,
					"generated lyrics blocked: "+fr.BlockReason))
				return
			}
			text = fr.Filtered
		}

		version := d.Workspace.CommitGeneration(result.Fingerprint, text)
		d.Gate.Consumed(counter)
		if d.Metrics != nil {
			d.Metrics.RecordLyricsRequest(counter.String(), true)
		}

		c.JSON(http.StatusCreated, datatypes.GenerateLyricsResponse{
			Fingerprint: result.Fingerprint,
			Version:     version,
		})
	}
}

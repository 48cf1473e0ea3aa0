// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request and response types for the studio
// service HTTP API.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianStudio/services/llm"
	"github.com/AleutianAI/AleutianStudio/services/studio/history"
	"github.com/AleutianAI/AleutianStudio/services/studio/tasksync"
)

const (
	// MaxLyricsBytes is the maximum size of lyric text or prompt content in
	// a single request. Byte length, not rune count.
	MaxLyricsBytes = 32 * 1024 // 32KB

	// MaxVariationIndex is the highest valid variation index. Song
	// generation produces at most two variations.
	MaxVariationIndex = 1
)

// studioValidate validates studio datatypes.
var studioValidate *validator.Validate

func init() {
	studioValidate = validator.New()
	_ = studioValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxLyricsBytes
}

// =============================================================================
// Lyrics
// =============================================================================

// GenerateLyricsRequest asks the lyrics pipeline for a new version.
// The same type serves generation and regeneration; the route decides which
// quota counter applies.
type GenerateLyricsRequest struct {
	// Content is the prompt: theme, style notes, partial lyrics.
	Content string `json:"content" validate:"required,maxbytes"`

	// Params tunes the backend. Optional.
	Params llm.GenerationParams `json:"params"`
}

// Validate checks field constraints.
func (r *GenerateLyricsRequest) Validate() error {
	return studioValidate.Struct(r)
}

// GenerateLyricsResponse returns the committed version.
type GenerateLyricsResponse struct {
	Fingerprint string          `json:"fingerprint"`
	Version     history.Version `json:"version"`
}

// EditLyricsRequest applies a user edit to the active version.
type EditLyricsRequest struct {
	Text string `json:"text" validate:"required,maxbytes"`
}

// Validate checks field constraints.
func (r *EditLyricsRequest) Validate() error {
	return studioValidate.Struct(r)
}

// SetActiveRequest switches the active version pointer.
type SetActiveRequest struct {
	VersionID string `json:"version_id" validate:"required,uuid4"`
}

// Validate checks field constraints.
func (r *SetActiveRequest) Validate() error {
	return studioValidate.Struct(r)
}

// VersionsResponse lists the history, oldest first.
type VersionsResponse struct {
	Fingerprint string            `json:"fingerprint"`
	ActiveID    string            `json:"active_id"`
	Versions    []history.Version `json:"versions"`
}

// =============================================================================
// Songs and tasks
// =============================================================================

// CreateSongRequest submits the active lyric text for song generation.
type CreateSongRequest struct {
	// Params forwards provider-side knobs (style, tempo). Optional.
	Params map[string]any `json:"params"`
}

// CreateSongResponse returns the provider task handle.
type CreateSongResponse struct {
	TaskID string `json:"task_id"`
}

// TaskResponse is a point-in-time snapshot of one generation task.
type TaskResponse struct {
	TaskID       string               `json:"task_id"`
	Status       tasksync.Status      `json:"status"`
	Progress     int                  `json:"progress"`
	Variations   []tasksync.Variation `json:"variations"`
	PrimaryIndex int                  `json:"primary_index"`
	Error        string               `json:"error,omitempty"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// SwitchPrimaryRequest selects which variation plays by default.
// Index is a pointer so 0 is distinguishable from absent.
type SwitchPrimaryRequest struct {
	Index *int `json:"index" validate:"required"`
}

// Validate checks field constraints, including the variation range.
func (r *SwitchPrimaryRequest) Validate() error {
	if err := studioValidate.Struct(r); err != nil {
		return err
	}
	return nil
}

// SwitchPrimaryResponse acknowledges the optimistic switch.
type SwitchPrimaryResponse struct {
	TaskID       string `json:"task_id"`
	PrimaryIndex int    `json:"primary_index"`
}

// =============================================================================
// Quota
// =============================================================================

// QuotaResponse reports one counter's remaining budget.
type QuotaResponse struct {
	Counter   string    `json:"counter"`
	Remaining int       `json:"remaining"`
	Total     int       `json:"total"`
	ResetAt   time.Time `json:"reset_at"`
}

// ErrorResponse is the uniform error body for all studio endpoints.
type ErrorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
	// RetryAfterSeconds is set for rate-limit errors.
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"errors"
)

// ErrMessageBlocked is returned when content is rejected by the filter.
// Enterprise implementations should wrap this error with the reason.
var ErrMessageBlocked = errors.New("message blocked by filter")

// FilterResult contains the outcome of a filter operation.
type FilterResult struct {
	// Original is the input text before filtering.
	Original string

	// Filtered is the text after filtering transformations.
	// If WasModified is false, this equals Original.
	Filtered string

	// WasModified indicates if any transformations were applied.
	WasModified bool

	// WasBlocked indicates if the text was completely rejected.
	// If true, Filtered must not be used.
	WasBlocked bool

	// BlockReason explains why the text was blocked (if WasBlocked).
	BlockReason string
}

// MessageFilter screens lyric content on the way into and out of the
// generation pipeline.
//
// Implementations must be safe for concurrent use. Text flows through
// at two points:
//
//  1. FilterInput: the user's prompt, before the lyrics backend sees it
//     (policy violations, PII in prompt content)
//  2. FilterOutput: the generated lyrics, before they enter the version
//     history (leaked secrets, disallowed content)
//
// Filters either transform content and let it through, or block it
// entirely by setting WasBlocked and BlockReason. The default
// NopMessageFilter passes everything through unchanged.
type MessageFilter interface {
	// FilterInput processes prompt content before generation.
	// A non-nil error means the filter itself failed, not that the
	// content was blocked.
	FilterInput(ctx context.Context, message string) (*FilterResult, error)

	// FilterOutput processes generated lyrics before they are stored.
	FilterOutput(ctx context.Context, message string) (*FilterResult, error)
}

// NopMessageFilter is the default filter for open source. It passes all
// content through unchanged.
type NopMessageFilter struct{}

// FilterInput returns the message unchanged.
func (f *NopMessageFilter) FilterInput(_ context.Context, message string) (*FilterResult, error) {
	return &FilterResult{Original: message, Filtered: message}, nil
}

// FilterOutput returns the message unchanged.
func (f *NopMessageFilter) FilterOutput(_ context.Context, message string) (*FilterResult, error) {
	return &FilterResult{Original: message, Filtered: message}, nil
}

var _ MessageFilter = (*NopMessageFilter)(nil)

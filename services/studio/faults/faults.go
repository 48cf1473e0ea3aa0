// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package faults classifies transport and protocol failures into a fixed
// taxonomy with retry policy.
//
// # Description
//
// Every error that crosses a network seam (song provider, lyrics pipeline,
// persistence) is mapped to exactly one Category. Each category carries a
// retryability flag and a suggested backoff hint so callers can surface a
// retry affordance without inspecting raw transport errors.
//
// # Thread Safety
//
// All types in this package are immutable after creation.
package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Category categorizes a failure for retry and presentation logic.
// Using typed enums instead of raw strings enables compile-time checking.
type Category string

const (
	// CategoryNetwork means the request never completed at the transport layer.
	CategoryNetwork Category = "network"

	// CategoryTimeout means the operation exceeded its time budget.
	CategoryTimeout Category = "timeout"

	// CategoryRateLimit means the provider quota is exhausted.
	CategoryRateLimit Category = "rate_limit"

	// CategoryInvalidInput means the request was rejected as malformed.
	CategoryInvalidInput Category = "invalid_input"

	// CategoryServerError means the provider failed internally.
	CategoryServerError Category = "server_error"

	// CategoryAuth means authentication or authorization failed.
	CategoryAuth Category = "auth"

	// CategoryUnknown means the failure could not be classified.
	CategoryUnknown Category = "unknown"
)

// String returns the string representation of Category.
func (c Category) String() string {
	if c == "" {
		return "unknown"
	}
	return string(c)
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryNetwork, CategoryTimeout, CategoryRateLimit,
		CategoryInvalidInput, CategoryServerError, CategoryAuth, CategoryUnknown:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether a user-initiated retry can succeed without
// correcting the request first. RateLimit is retryable only after the
// provider's reset time; use Fault.RetryAfter for that window.
func (c Category) IsRetryable() bool {
	switch c {
	case CategoryNetwork, CategoryTimeout, CategoryServerError:
		return true
	default:
		return false
	}
}

// BackoffHint returns a suggested wait before retrying. Zero means no
// meaningful hint (non-retryable categories).
func (c Category) BackoffHint() time.Duration {
	switch c {
	case CategoryNetwork:
		return 1 * time.Second
	case CategoryTimeout:
		return 5 * time.Second
	case CategoryServerError:
		return 10 * time.Second
	default:
		return 0
	}
}

// Fault is a classified failure. It wraps the underlying cause so callers
// can still use errors.Is/errors.As against the original error chain.
type Fault struct {
	// Category is the taxonomy entry for this failure.
	Category Category

	// Message is a short human-readable description.
	Message string

	// RetryAfter is the earliest time a retry can succeed. Only set for
	// CategoryRateLimit, where it mirrors the provider's reset time.
	RetryAfter time.Time

	// Cause is the underlying error, nil for locally generated faults.
	Cause error
}

// New creates a Fault with the given category and message.
func New(category Category, message string) *Fault {
	return &Fault{Category: category, Message: message}
}

// Wrap classifies err under the given category, preserving the chain.
func Wrap(category Category, message string, err error) *Fault {
	return &Fault{Category: category, Message: message, Cause: err}
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Category, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Category, f.Message)
}

// Unwrap returns the underlying cause.
func (f *Fault) Unwrap() error {
	return f.Cause
}

// Retryable reports whether the caller may retry now. A rate-limited fault
// becomes retryable once RetryAfter has elapsed.
func (f *Fault) Retryable(now time.Time) bool {
	if f.Category == CategoryRateLimit {
		return !f.RetryAfter.IsZero() && now.After(f.RetryAfter)
	}
	return f.Category.IsRetryable()
}

// CategoryOf extracts the category from an error chain. Unclassified errors
// map to CategoryUnknown; nil maps to the empty category.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Category
	}
	return CategoryUnknown
}

// FromStatusCode maps an HTTP status code to a category.
//
// Inputs:
//   - code: HTTP response status code.
//
// Outputs:
//   - Category: the taxonomy entry. 2xx codes map to CategoryUnknown
//     because a successful status is not a failure signal.
func FromStatusCode(code int) Category {
	switch {
	case code == http.StatusTooManyRequests:
		return CategoryRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return CategoryAuth
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return CategoryTimeout
	case code >= 400 && code < 500:
		return CategoryInvalidInput
	case code >= 500:
		return CategoryServerError
	default:
		return CategoryUnknown
	}
}

// Classify maps an arbitrary error to a category by inspecting the chain.
//
// Description:
//
//	Recognizes context deadline breaches, net.Error timeouts, transport
//	errors, and already-classified *Fault values. Anything else is Unknown.
func Classify(err error) Category {
	if err == nil {
		return ""
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	if errors.Is(err, context.Canceled) {
		return CategoryNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryNetwork
	}
	return CategoryUnknown
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tasksync

import (
	"math/rand"
	"time"
)

// ReconnectConfig configures push-channel reconnect behavior with capped
// exponential backoff. This is internal recovery for the stream itself,
// never a data-mutation retry.
type ReconnectConfig struct {
	// MaxAttempts is the number of consecutive failed dials tolerated
	// before the channel enters the failed state. Default: 5
	MaxAttempts int

	// InitialBackoff is the wait before the first redial. Default: 500ms
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between redials. Default: 30s
	MaxBackoff time.Duration

	// BackoffFactor is the exponential multiplier. Default: 2.0
	BackoffFactor float64

	// JitterFactor is the maximum jitter as a fraction of the backoff (0-1).
	// Adds randomness to prevent thundering herd. Default: 0.2
	JitterFactor float64
}

// DefaultReconnectConfig returns sensible defaults for push reconnects.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.2,
	}
}

// Validate checks if the reconnect configuration is usable.
func (c ReconnectConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return ErrInvalidConfig
	}
	if c.InitialBackoff <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxBackoff < c.InitialBackoff {
		return ErrInvalidConfig
	}
	if c.BackoffFactor < 1.0 {
		return ErrInvalidConfig
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return ErrInvalidConfig
	}
	return nil
}

// backoffFor returns the jittered wait before redial attempt n (0-based).
func (c ReconnectConfig) backoffFor(attempt int) time.Duration {
	backoff := c.InitialBackoff
	for i := 0; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * c.BackoffFactor)
		if backoff >= c.MaxBackoff {
			backoff = c.MaxBackoff
			break
		}
	}
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	if c.JitterFactor > 0 {
		jitter := time.Duration(rand.Float64() * c.JitterFactor * float64(backoff))
		backoff += jitter
	}
	return backoff
}

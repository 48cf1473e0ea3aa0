// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package quota enforces provider rate limits locally before any
// quota-consuming request is attempted.
//
// # Description
//
// The Gate caches the last known RateLimitState per counter (generation and
// regeneration draw on independent counters). When the cached remaining
// count is zero, attempts are rejected locally with the cached reset time —
// no network call is made. Only requests actually dispatched to and accepted
// by the provider count against quota: local validation failures and
// transport failures never decrement the cache.
//
// Refreshing the cache is a simple provider read, deduplicated through
// singleflight so concurrent callers share one request.
//
// # Thread Safety
//
// Gate is safe for concurrent use.
package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianStudio/services/studio/faults"
)

// Counter names a quota pool. Generation and regeneration are independent.
type Counter string

const (
	// CounterGeneration covers initial lyric/song generation requests.
	CounterGeneration Counter = "generation"

	// CounterRegeneration covers regeneration requests.
	CounterRegeneration Counter = "regeneration"
)

// String returns the string representation of Counter.
func (c Counter) String() string {
	return string(c)
}

// RateLimitState is the provider's view of one quota pool, read-only from
// this package's perspective beyond caching.
type RateLimitState struct {
	Remaining int       `json:"remaining"`
	Total     int       `json:"total"`
	ResetAt   time.Time `json:"reset_at"`

	// FetchedAt is when the state was read from the provider.
	FetchedAt time.Time `json:"fetched_at"`
}

// Stale reports whether the cached state is older than maxAge.
func (s RateLimitState) Stale(now time.Time, maxAge time.Duration) bool {
	return s.FetchedAt.IsZero() || now.Sub(s.FetchedAt) > maxAge
}

// CreditsReader is the provider endpoint that reports quota state.
type CreditsReader interface {
	Credits(ctx context.Context, counter Counter) (RateLimitState, error)
}

// Gate is the local quota enforcement point.
type Gate struct {
	mu     sync.RWMutex
	states map[Counter]RateLimitState

	reader CreditsReader
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time

	// maxAge bounds how long a cached state is trusted before Check
	// triggers a refresh.
	maxAge time.Duration
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithMaxAge sets how long cached quota state is trusted. Default: 30s.
func WithMaxAge(d time.Duration) GateOption {
	return func(g *Gate) {
		g.maxAge = d
	}
}

// WithLogger sets the gate's logger.
func WithLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

// NewGate creates a Gate backed by the given provider reader.
func NewGate(reader CreditsReader, opts ...GateOption) *Gate {
	g := &Gate{
		states: make(map[Counter]RateLimitState),
		reader: reader,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		maxAge: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check validates that a quota-consuming attempt may proceed.
//
// # Description
//
// Refreshes the cache when stale, then rejects locally with a RateLimit
// fault carrying the cached reset time if the counter is exhausted. A
// passing Check does not reserve quota; call Consumed after the provider
// accepts the dispatch.
//
// # Outputs
//
//   - error: nil to proceed, *faults.Fault (RateLimit) when exhausted, or
//     a classified fault when the refresh itself failed with no usable cache.
func (g *Gate) Check(ctx context.Context, counter Counter) error {
	state, ok := g.cached(counter)
	if !ok || state.Stale(g.now(), g.maxAge) {
		refreshed, err := g.Refresh(ctx, counter)
		if err != nil {
			if !ok {
				return err
			}
			// Refresh failed but we hold a previous state; trust it rather
			// than blocking the user on a transient provider error.
			g.logger.Warn("quota refresh failed, using cached state",
				"counter", counter.String(), "error", err)
		} else {
			state = refreshed
		}
	}

	if state.Remaining <= 0 {
		g.logger.Info("rejecting attempt locally, quota exhausted",
			"counter", counter.String(), "reset_at", state.ResetAt)
		return &faults.Fault{
			Category:   faults.CategoryRateLimit,
			Message:    counter.String() + " quota exhausted",
			RetryAfter: state.ResetAt,
		}
	}
	return nil
}

// Consumed records that the provider accepted a dispatched request.
// Only accepted dispatches decrement the cached remaining count.
func (g *Gate) Consumed(counter Counter) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok := g.states[counter]
	if !ok {
		return
	}
	if state.Remaining > 0 {
		state.Remaining--
	}
	g.states[counter] = state
}

// Refresh reads the counter's state from the provider and caches it.
// Concurrent refreshes of the same counter collapse into one request.
func (g *Gate) Refresh(ctx context.Context, counter Counter) (RateLimitState, error) {
	v, err, _ := g.group.Do(string(counter), func() (any, error) {
		state, err := g.reader.Credits(ctx, counter)
		if err != nil {
			return RateLimitState{}, err
		}
		state.FetchedAt = g.now()

		g.mu.Lock()
		g.states[counter] = state
		g.mu.Unlock()

		g.logger.Debug("refreshed quota state",
			"counter", counter.String(), "remaining", state.Remaining,
			"total", state.Total, "reset_at", state.ResetAt)
		return state, nil
	})
	if err != nil {
		return RateLimitState{}, err
	}
	return v.(RateLimitState), nil
}

// State returns the cached state for a counter.
func (g *Gate) State(counter Counter) (RateLimitState, bool) {
	return g.cached(counter)
}

func (g *Gate) cached(counter Counter) (RateLimitState, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	state, ok := g.states[counter]
	return state, ok
}

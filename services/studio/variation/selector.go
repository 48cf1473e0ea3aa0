// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package variation tracks which of a task's generated artifacts is the
// primary one.
//
// # Description
//
// A completed generation task carries up to two variations. The Selector
// holds those variations per task plus the persisted primary selection
// (default index 0). Switching the primary is optimistic: the in-memory
// value updates immediately, then a background fetch of variation-specific
// timing metadata and a write-through persistence call follow. Each switch
// issues a request token; if a second switch lands before the first fetch
// resolves, the stale result is discarded on arrival — last request wins.
//
// # Thread Safety
//
// Selector is safe for concurrent use.
package variation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianStudio/services/studio/faults"
	"github.com/AleutianAI/AleutianStudio/services/studio/tasksync"
)

// WordTiming is one word-level alignment entry for a variation's audio.
type WordTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TimingFetcher retrieves word-level timing metadata for one variation.
type TimingFetcher interface {
	VariationTiming(ctx context.Context, audioID string) ([]WordTiming, error)
}

// SelectionStore persists the primary selection write-through.
type SelectionStore interface {
	SavePrimarySelection(ctx context.Context, taskID string, index int) error
}

// taskVariations is the per-task selection state.
type taskVariations struct {
	variations []tasksync.Variation
	primary    int
	// fetchToken invalidates in-flight timing fetches; only the result
	// carrying the latest token is kept.
	fetchToken uint64
	timings    []WordTiming
}

// Selector holds variations and primary selections for completed tasks.
type Selector struct {
	mu     sync.Mutex
	tasks  map[string]*taskVariations
	fetch  TimingFetcher
	store  SelectionStore
	logger *slog.Logger

	// wg tracks background fetch/persist goroutines for clean shutdown.
	wg sync.WaitGroup
}

// NewSelector creates a Selector. fetch and store may be nil, in which case
// the corresponding background step is skipped.
func NewSelector(fetch TimingFetcher, store SelectionStore, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		tasks:  make(map[string]*taskVariations),
		fetch:  fetch,
		store:  store,
		logger: logger,
	}
}

// SetVariations registers a completed task's artifacts. The primary defaults
// to index 0. Calling it again for the same task replaces the artifact list
// but keeps the current primary when still in range.
func (s *Selector) SetVariations(taskID string, vars []tasksync.Variation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tv, ok := s.tasks[taskID]
	if !ok {
		tv = &taskVariations{}
		s.tasks[taskID] = tv
	}
	tv.variations = make([]tasksync.Variation, len(vars))
	copy(tv.variations, vars)
	if tv.primary >= len(tv.variations) {
		tv.primary = 0
	}
}

// RestoreSelection seeds a persisted primary index, e.g. on session load.
// Out-of-range values are ignored once variations are known.
func (s *Selector) RestoreSelection(taskID string, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tv, ok := s.tasks[taskID]
	if !ok {
		tv = &taskVariations{}
		s.tasks[taskID] = tv
	}
	if len(tv.variations) == 0 || (index >= 0 && index < len(tv.variations)) {
		tv.primary = index
	}
}

// Primary returns the current primary index for a task (default 0).
func (s *Selector) Primary(taskID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tv, ok := s.tasks[taskID]; ok {
		return tv.primary
	}
	return 0
}

// Variations returns a copy of the task's artifact list.
func (s *Selector) Variations(taskID string) []tasksync.Variation {
	s.mu.Lock()
	defer s.mu.Unlock()

	tv, ok := s.tasks[taskID]
	if !ok {
		return nil
	}
	out := make([]tasksync.Variation, len(tv.variations))
	copy(out, tv.variations)
	return out
}

// Timings returns the word-level alignment for the current primary, nil
// until a fetch has resolved.
func (s *Selector) Timings(taskID string) []WordTiming {
	s.mu.Lock()
	defer s.mu.Unlock()

	tv, ok := s.tasks[taskID]
	if !ok || tv.timings == nil {
		return nil
	}
	out := make([]WordTiming, len(tv.timings))
	copy(out, tv.timings)
	return out
}

// SwitchPrimary makes index the primary variation for a task.
//
// # Description
//
// Validates the index, then applies the change optimistically: the local
// primary updates before the timing fetch and the write-through persistence
// call run in the background. A failed persistence write keeps the
// optimistic local value and surfaces as a recoverable fault through the
// returned error channel; the in-memory selection is never rolled back.
//
// # Inputs
//
//   - ctx: bounds the background fetch and persistence work.
//   - taskID: the completed task whose primary is switching.
//   - index: target variation index, 0 <= index < len(variations).
//
// # Outputs
//
//   - <-chan error: resolves once the background work settles. Receives nil
//     on success, a *faults.Fault on a recoverable persistence failure, and
//     closes without a value when the result went stale (token mismatch) or
//     the call was a no-op.
//   - error: immediate validation failure (InvalidInput), nil otherwise.
func (s *Selector) SwitchPrimary(ctx context.Context, taskID string, index int) (<-chan error, error) {
	s.mu.Lock()

	tv, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return nil, faults.New(faults.CategoryInvalidInput,
			fmt.Sprintf("no variations registered for task %s", taskID))
	}
	if index < 0 || index >= len(tv.variations) {
		n := len(tv.variations)
		s.mu.Unlock()
		return nil, faults.New(faults.CategoryInvalidInput,
			fmt.Sprintf("variation index %d out of range [0,%d)", index, n))
	}

	result := make(chan error, 1)
	if tv.primary == index {
		// Idempotent: switching to the current primary does nothing.
		s.mu.Unlock()
		close(result)
		return result, nil
	}

	tv.primary = index
	tv.fetchToken++
	token := tv.fetchToken
	audioID := tv.variations[index].AudioID
	s.mu.Unlock()

	s.logger.Info("switched primary variation",
		"task_id", taskID, "index", index, "audio_id", audioID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(result)
		s.settleSwitch(ctx, taskID, index, audioID, token, result)
	}()
	return result, nil
}

// settleSwitch runs the background half of a switch: timing fetch, stale
// check, persistence.
func (s *Selector) settleSwitch(ctx context.Context, taskID string, index int,
	audioID string, token uint64, result chan<- error) {

	var timings []WordTiming
	var fetchErr error
	if s.fetch != nil {
		timings, fetchErr = s.fetch.VariationTiming(ctx, audioID)
	}

	s.mu.Lock()
	tv, ok := s.tasks[taskID]
	if !ok || tv.fetchToken != token {
		s.mu.Unlock()
		s.logger.Debug("discarding stale timing fetch result",
			"task_id", taskID, "index", index, "token", token)
		return
	}
	if fetchErr == nil && timings != nil {
		tv.timings = timings
	}
	s.mu.Unlock()

	if fetchErr != nil {
		// Timing metadata is an enhancement; the switch itself stands.
		s.logger.Warn("timing metadata fetch failed",
			"task_id", taskID, "audio_id", audioID, "error", fetchErr)
	}

	if s.store == nil {
		result <- nil
		return
	}
	start := time.Now()
	if err := s.store.SavePrimarySelection(ctx, taskID, index); err != nil {
		s.logger.Warn("primary selection persistence failed, keeping optimistic value",
			"task_id", taskID, "index", index,
			"elapsed", time.Since(start), "error", err)
		result <- faults.Wrap(faults.CategoryServerError,
			"persist primary selection", err)
		return
	}
	result <- nil
}

// Selections returns the full taskID -> primary index map, for persistence.
func (s *Selector) Selections() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.tasks))
	for id, tv := range s.tasks {
		out[id] = tv.primary
	}
	return out
}

// Wait blocks until all background switch work has settled. Intended for
// shutdown and tests.
func (s *Selector) Wait() {
	s.wg.Wait()
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package variation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/AleutianAI/AleutianStudio/services/studio/faults"
	"github.com/AleutianAI/AleutianStudio/services/studio/tasksync"
)

type fakeTimingFetcher struct {
	mu      sync.Mutex
	calls   []string
	err     error
	blockCh chan struct{} // when non-nil, fetches block until closed
}

func (f *fakeTimingFetcher) VariationTiming(ctx context.Context, audioID string) ([]WordTiming, error) {
	f.mu.Lock()
	f.calls = append(f.calls, audioID)
	block := f.blockCh
	err := f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []WordTiming{{Word: "la", Start: 0, End: 0.4}}, nil
}

func (f *fakeTimingFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSelectionStore struct {
	mu    sync.Mutex
	saved map[string]int
	err   error
}

func newFakeSelectionStore() *fakeSelectionStore {
	return &fakeSelectionStore{saved: make(map[string]int)}
}

func (s *fakeSelectionStore) SavePrimarySelection(ctx context.Context, taskID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved[taskID] = index
	return nil
}

func twoVariations() []tasksync.Variation {
	return []tasksync.Variation{
		{AudioURL: "https://cdn/a0.mp3", AudioID: "a0", Index: 0},
		{AudioURL: "https://cdn/a1.mp3", AudioID: "a1", Index: 1},
	}
}

func TestSwitchPrimary(t *testing.T) {
	t.Run("valid switch updates primary and persists", func(t *testing.T) {
		fetcher := &fakeTimingFetcher{}
		store := newFakeSelectionStore()
		sel := NewSelector(fetcher, store, nil)
		sel.SetVariations("task-1", twoVariations())

		result, err := sel.SwitchPrimary(context.Background(), "task-1", 1)
		if err != nil {
			t.Fatalf("SwitchPrimary failed: %v", err)
		}
		if sel.Primary("task-1") != 1 {
			t.Error("primary should update optimistically")
		}
		if err := <-result; err != nil {
			t.Errorf("background settle failed: %v", err)
		}

		store.mu.Lock()
		saved := store.saved["task-1"]
		store.mu.Unlock()
		if saved != 1 {
			t.Errorf("persisted index = %d, want 1", saved)
		}
		if fetcher.callCount() != 1 {
			t.Errorf("timing fetches = %d, want 1", fetcher.callCount())
		}
		if len(sel.Timings("task-1")) == 0 {
			t.Error("timings should be stored after fetch resolves")
		}
	})

	t.Run("out of range index is invalid input", func(t *testing.T) {
		sel := NewSelector(nil, nil, nil)
		sel.SetVariations("task-1", twoVariations())

		_, err := sel.SwitchPrimary(context.Background(), "task-1", 2)
		if faults.CategoryOf(err) != faults.CategoryInvalidInput {
			t.Errorf("category = %v, want invalid_input", faults.CategoryOf(err))
		}
		_, err = sel.SwitchPrimary(context.Background(), "task-1", -1)
		if faults.CategoryOf(err) != faults.CategoryInvalidInput {
			t.Errorf("category = %v, want invalid_input", faults.CategoryOf(err))
		}
	})

	t.Run("unknown task is invalid input", func(t *testing.T) {
		sel := NewSelector(nil, nil, nil)
		_, err := sel.SwitchPrimary(context.Background(), "nope", 0)
		if faults.CategoryOf(err) != faults.CategoryInvalidInput {
			t.Errorf("category = %v, want invalid_input", faults.CategoryOf(err))
		}
	})

	t.Run("same index is a no-op", func(t *testing.T) {
		fetcher := &fakeTimingFetcher{}
		store := newFakeSelectionStore()
		sel := NewSelector(fetcher, store, nil)
		sel.SetVariations("task-1", twoVariations())

		result, err := sel.SwitchPrimary(context.Background(), "task-1", 0)
		if err != nil {
			t.Fatalf("SwitchPrimary failed: %v", err)
		}
		if _, open := <-result; open {
			t.Error("no-op switch should close the result channel without a value")
		}
		if fetcher.callCount() != 0 {
			t.Error("no-op switch must not fetch timing metadata")
		}
	})
}

func TestSwitchPrimaryLastRequestWins(t *testing.T) {
	fetcher := &fakeTimingFetcher{blockCh: make(chan struct{})}
	store := newFakeSelectionStore()
	sel := NewSelector(fetcher, store, nil)
	sel.SetVariations("task-1", twoVariations())

	// First switch: fetch for index 1 blocks in flight.
	first, err := sel.SwitchPrimary(context.Background(), "task-1", 1)
	if err != nil {
		t.Fatalf("first SwitchPrimary failed: %v", err)
	}

	// Second switch before the first fetch resolves.
	second, err := sel.SwitchPrimary(context.Background(), "task-1", 0)
	if err != nil {
		t.Fatalf("second SwitchPrimary failed: %v", err)
	}

	// Unblock the in-flight fetches; the first result is now stale.
	close(fetcher.blockCh)
	if _, open := <-first; open {
		t.Error("stale switch should close its result channel without a value")
	}
	if err := <-second; err != nil {
		t.Errorf("winning switch settle failed: %v", err)
	}

	if sel.Primary("task-1") != 0 {
		t.Errorf("primary = %d, want 0 (last request wins)", sel.Primary("task-1"))
	}
	store.mu.Lock()
	saved := store.saved["task-1"]
	store.mu.Unlock()
	if saved != 0 {
		t.Errorf("persisted index = %d, want 0", saved)
	}
}

func TestSwitchPrimaryPersistFailureKeepsOptimisticValue(t *testing.T) {
	store := newFakeSelectionStore()
	store.err = errors.New("badger: disk full")
	sel := NewSelector(nil, store, nil)
	sel.SetVariations("task-1", twoVariations())

	result, err := sel.SwitchPrimary(context.Background(), "task-1", 1)
	if err != nil {
		t.Fatalf("SwitchPrimary failed: %v", err)
	}

	settleErr := <-result
	if faults.CategoryOf(settleErr) != faults.CategoryServerError {
		t.Errorf("settle category = %v, want server_error", faults.CategoryOf(settleErr))
	}
	if sel.Primary("task-1") != 1 {
		t.Error("failed persistence must not roll back the in-memory selection")
	}
}

func TestRestoreSelection(t *testing.T) {
	sel := NewSelector(nil, nil, nil)
	sel.SetVariations("task-1", twoVariations())

	sel.RestoreSelection("task-1", 1)
	if sel.Primary("task-1") != 1 {
		t.Errorf("Primary = %d, want restored 1", sel.Primary("task-1"))
	}

	sel.RestoreSelection("task-1", 5)
	if sel.Primary("task-1") != 1 {
		t.Error("out-of-range restore should be ignored")
	}
}

func TestSetVariationsKeepsPrimaryInRange(t *testing.T) {
	sel := NewSelector(nil, nil, nil)
	sel.SetVariations("task-1", twoVariations())
	sel.RestoreSelection("task-1", 1)

	// Replacing with a single variation forces the primary back to 0.
	sel.SetVariations("task-1", twoVariations()[:1])
	if sel.Primary("task-1") != 0 {
		t.Errorf("Primary = %d, want 0 after shrink", sel.Primary("task-1"))
	}
}

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
	"sync"
	"time"
)

// DropReason explains why an update was not applied to the slot.
type DropReason string

const (
	// DropNone means the update was applied.
	DropNone DropReason = ""

	// DropTerminal means a terminal status was already applied.
	DropTerminal DropReason = "terminal"

	// DropLowerRank means the update's status rank is below the stored rank.
	DropLowerRank DropReason = "lower_rank"

	// DropStale means the update carried nothing newer at the same rank.
	DropStale DropReason = "stale"

	// DropWrongTask means the update's task id does not match the slot.
	DropWrongTask DropReason = "wrong_task"
)

// taskSlot holds the reconciled state of one task.
//
// The push and poll sources both write here concurrently. Correctness rests
// on the rank-ordered apply rule being commutative and idempotent, not on
// arrival order; the mutex only prevents data races on the struct fields.
type taskSlot struct {
	mu   sync.RWMutex
	task GenerationTask
}

func newTaskSlot(taskID string) *taskSlot {
	return &taskSlot{
		task: GenerationTask{TaskID: taskID, Status: StatusQueued},
	}
}

// apply reconciles one incoming update against the stored state.
//
// # Description
//
// The update is applied iff its status rank is >= the stored rank, and never
// after a terminal status has been stored. At equal rank the merge is
// monotonic: progress may only grow, and variations are adopted only when
// the update carries any. A late lower-rank arrival is dropped silently so
// callers never observe a visible regression.
//
// # Outputs
//
//   - bool: true if the stored state changed.
//   - DropReason: why the update was discarded (DropNone when applied).
func (s *taskSlot) apply(u TaskUpdate) (bool, DropReason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.TaskID != s.task.TaskID {
		return false, DropWrongTask
	}
	if s.task.Status.IsTerminal() {
		return false, DropTerminal
	}

	cur := s.task.Status.Rank()
	next := u.Status.Rank()
	if next < cur {
		return false, DropLowerRank
	}

	if next > cur {
		s.task.Status = u.Status
		s.task.Progress = u.Progress
		if len(u.Variations) > 0 {
			s.task.Variations = u.Variations
		}
		s.task.Error = u.Error
		s.task.UpdatedAt = s.receivedOrNow(u)
		return true, DropNone
	}

	// Equal rank: merge monotonically.
	changed := false
	if u.Progress > s.task.Progress {
		s.task.Progress = u.Progress
		changed = true
	}
	if len(u.Variations) > 0 && len(s.task.Variations) == 0 {
		s.task.Variations = u.Variations
		changed = true
	}
	if !changed {
		return false, DropStale
	}
	s.task.UpdatedAt = s.receivedOrNow(u)
	return true, DropNone
}

func (s *taskSlot) receivedOrNow(u TaskUpdate) time.Time {
	if !u.ReceivedAt.IsZero() {
		return u.ReceivedAt
	}
	return time.Now().UTC()
}

// snapshot returns a copy of the reconciled state.
func (s *taskSlot) snapshot() GenerationTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.task
	if len(s.task.Variations) > 0 {
		out.Variations = make([]Variation, len(s.task.Variations))
		copy(out.Variations, s.task.Variations)
	}
	return out
}

// terminal reports whether a terminal status has been applied.
func (s *taskSlot) terminal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.task.Status.IsTerminal()
}

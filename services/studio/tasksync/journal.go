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

import "sync"

// Journal is a fixed-size circular buffer of applied task updates.
//
// # Description
//
// Provides O(1) push and bounded memory usage. When full, the oldest update
// is overwritten. Each subscription keeps one journal so late websocket
// clients can replay the recent update history on attach.
//
// # Thread Safety
//
// Journal is safe for concurrent use.
type Journal struct {
	mu    sync.RWMutex
	data  []TaskUpdate
	head  int // Next write position
	count int // Current number of elements
	cap   int // Maximum capacity
}

// NewJournal creates a journal holding at most capacity updates.
// A non-positive capacity defaults to 64.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = 64
	}
	return &Journal{
		data: make([]TaskUpdate, capacity),
		cap:  capacity,
	}
}

// Push appends an update, overwriting the oldest entry when full.
func (j *Journal) Push(u TaskUpdate) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.data[j.head] = u
	j.head = (j.head + 1) % j.cap
	if j.count < j.cap {
		j.count++
	}
}

// Items returns the retained updates, oldest first.
func (j *Journal) Items() []TaskUpdate {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]TaskUpdate, 0, j.count)
	start := j.head - j.count
	if start < 0 {
		start += j.cap
	}
	for i := 0; i < j.count; i++ {
		out = append(out, j.data[(start+i)%j.cap])
	}
	return out
}

// Len returns the number of retained updates.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.count
}

// Cap returns the journal capacity.
func (j *Journal) Cap() int {
	return j.cap
}

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

import "testing"

func TestJournalPushAndItems(t *testing.T) {
	j := NewJournal(3)

	if j.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", j.Len())
	}

	j.Push(update(StatusQueued, 0))
	j.Push(update(StatusProcessing, 20))
	items := j.Items()
	if len(items) != 2 {
		t.Fatalf("len(Items()) = %d, want 2", len(items))
	}
	if items[0].Status != StatusQueued || items[1].Status != StatusProcessing {
		t.Errorf("items out of order: %v", items)
	}
}

func TestJournalOverwritesOldest(t *testing.T) {
	j := NewJournal(3)

	for _, p := range []int{10, 20, 30, 40, 50} {
		j.Push(update(StatusProcessing, p))
	}

	items := j.Items()
	if len(items) != 3 {
		t.Fatalf("len = %d, want cap 3", len(items))
	}
	want := []int{30, 40, 50}
	for i, p := range want {
		if items[i].Progress != p {
			t.Errorf("items[%d].Progress = %d, want %d", i, items[i].Progress, p)
		}
	}
}

func TestJournalDefaultCapacity(t *testing.T) {
	j := NewJournal(0)
	if j.Cap() != 64 {
		t.Errorf("Cap() = %d, want default 64", j.Cap())
	}
}

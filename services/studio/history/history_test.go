// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"fmt"
	"testing"
	"time"
)

// tickingClock returns a clock that advances one second per call, so every
// version gets a distinct CreatedAt.
func tickingClock() func() time.Time {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func newTestManager() *Manager {
	return NewManager(WithClock(tickingClock()))
}

func TestAddVersion(t *testing.T) {
	t.Run("each add grows by one and becomes active", func(t *testing.T) {
		m := newTestManager()
		for i := 1; i <= MaxVersions; i++ {
			v := m.AddVersion(fmt.Sprintf("lyrics %d", i))
			if m.Len() != i {
				t.Fatalf("Len() = %d, want %d", m.Len(), i)
			}
			if m.ActiveID() != v.ID {
				t.Fatalf("ActiveID() = %q, want %q", m.ActiveID(), v.ID)
			}
		}
	})

	t.Run("cap holds at MaxVersions", func(t *testing.T) {
		m := newTestManager()
		for i := 0; i < MaxVersions+5; i++ {
			m.AddVersion(fmt.Sprintf("lyrics %d", i))
			if m.Len() > MaxVersions {
				t.Fatalf("Len() = %d exceeds cap", m.Len())
			}
		}
		if m.Len() != MaxVersions {
			t.Fatalf("Len() = %d, want %d", m.Len(), MaxVersions)
		}
	})

	t.Run("eleventh add evicts the oldest entry", func(t *testing.T) {
		m := newTestManager()
		first := m.AddVersion("lyrics 0")
		for i := 1; i < MaxVersions; i++ {
			m.AddVersion(fmt.Sprintf("lyrics %d", i))
		}

		m.AddVersion("lyrics 10")
		if m.Len() != MaxVersions {
			t.Fatalf("Len() = %d, want %d", m.Len(), MaxVersions)
		}
		for _, v := range m.Versions() {
			if v.ID == first.ID {
				t.Error("oldest version should have been evicted")
			}
		}
	})
}

func TestSetActiveVersion(t *testing.T) {
	t.Run("present id moves only the pointer", func(t *testing.T) {
		m := newTestManager()
		v1 := m.AddVersion("A")
		m.AddVersion("B")

		before := m.Versions()
		m.SetActiveVersion(v1.ID)
		after := m.Versions()

		if m.ActiveID() != v1.ID {
			t.Errorf("ActiveID() = %q, want %q", m.ActiveID(), v1.ID)
		}
		if len(before) != len(after) {
			t.Fatalf("length changed: %d -> %d", len(before), len(after))
		}
		for i := range before {
			if before[i].ID != after[i].ID {
				t.Errorf("element %d identity changed: %q -> %q", i, before[i].ID, after[i].ID)
			}
		}
	})

	t.Run("absent id falls back to newest", func(t *testing.T) {
		m := newTestManager()
		m.AddVersion("A")
		v2 := m.AddVersion("B")

		m.SetActiveVersion("no-such-id")
		if m.ActiveID() != v2.ID {
			t.Errorf("ActiveID() = %q, want newest %q", m.ActiveID(), v2.ID)
		}
		if m.Len() != 2 {
			t.Errorf("Len() = %d, want 2", m.Len())
		}
	})

	t.Run("empty collection is a no-op", func(t *testing.T) {
		m := newTestManager()
		m.SetActiveVersion("anything")
		if m.ActiveID() != "" {
			t.Errorf("ActiveID() = %q, want empty", m.ActiveID())
		}
	})
}

func TestDeleteVersion(t *testing.T) {
	t.Run("deleting active promotes newest survivor", func(t *testing.T) {
		m := newTestManager()
		m.AddVersion("A")
		v2 := m.AddVersion("B")
		v3 := m.AddVersion("C")

		if !m.DeleteVersion(v3.ID) {
			t.Fatal("DeleteVersion returned false for present id")
		}
		if m.ActiveID() != v2.ID {
			t.Errorf("ActiveID() = %q, want newest survivor %q", m.ActiveID(), v2.ID)
		}
	})

	t.Run("deleting non-active keeps pointer", func(t *testing.T) {
		m := newTestManager()
		v1 := m.AddVersion("A")
		v2 := m.AddVersion("B")

		m.DeleteVersion(v1.ID)
		if m.ActiveID() != v2.ID {
			t.Errorf("ActiveID() = %q, want %q", m.ActiveID(), v2.ID)
		}
	})

	t.Run("deleting the sole version empties state", func(t *testing.T) {
		m := newTestManager()
		v1 := m.AddVersion("A")

		m.DeleteVersion(v1.ID)
		if m.Len() != 0 {
			t.Errorf("Len() = %d, want 0", m.Len())
		}
		if m.ActiveID() != "" {
			t.Errorf("ActiveID() = %q, want empty", m.ActiveID())
		}
	})

	t.Run("absent id returns false", func(t *testing.T) {
		m := newTestManager()
		m.AddVersion("A")
		if m.DeleteVersion("no-such-id") {
			t.Error("DeleteVersion should return false for absent id")
		}
		if m.Len() != 1 {
			t.Errorf("Len() = %d, want 1", m.Len())
		}
	})
}

func TestAddDeleteScenario(t *testing.T) {
	m := newTestManager()

	v1 := m.AddVersion("A")
	if m.Len() != 1 || m.ActiveID() != v1.ID {
		t.Fatalf("after add A: len=%d active=%q", m.Len(), m.ActiveID())
	}

	v2 := m.AddVersion("B")
	if m.Len() != 2 || m.ActiveID() != v2.ID {
		t.Fatalf("after add B: len=%d active=%q", m.Len(), m.ActiveID())
	}

	m.DeleteVersion(v2.ID)
	if m.Len() != 1 || m.ActiveID() != v1.ID {
		t.Fatalf("after delete B: len=%d active=%q, want [A] active A", m.Len(), m.ActiveID())
	}
}

func TestUpdateVersionEdits(t *testing.T) {
	t.Run("edit on active sets flag and override", func(t *testing.T) {
		m := newTestManager()
		v := m.AddVersion("original")

		if !m.UpdateVersionEdits(v.ID, "edited") {
			t.Fatal("edit on active version should apply")
		}
		got, _ := m.Active()
		if !got.IsEdited || got.EditedText != "edited" {
			t.Errorf("got IsEdited=%v EditedText=%q", got.IsEdited, got.EditedText)
		}
		if got.Text != "original" {
			t.Errorf("original text mutated: %q", got.Text)
		}
		if m.ActiveText() != "edited" {
			t.Errorf("ActiveText() = %q, want edited override", m.ActiveText())
		}
	})

	t.Run("identical text does not set flag", func(t *testing.T) {
		m := newTestManager()
		v := m.AddVersion("same")

		m.UpdateVersionEdits(v.ID, "same")
		got, _ := m.Active()
		if got.IsEdited {
			t.Error("IsEdited should remain false when text matches the original")
		}
	})

	t.Run("flag is sticky", func(t *testing.T) {
		m := newTestManager()
		v := m.AddVersion("original")

		m.UpdateVersionEdits(v.ID, "edited")
		m.UpdateVersionEdits(v.ID, "original")
		got, _ := m.Active()
		if !got.IsEdited {
			t.Error("IsEdited is sticky and should survive editing back to the original")
		}
	})

	t.Run("edit on non-active id is ignored", func(t *testing.T) {
		m := newTestManager()
		v1 := m.AddVersion("A")
		m.AddVersion("B")

		if m.UpdateVersionEdits(v1.ID, "edited") {
			t.Error("edit on a non-active version should be ignored")
		}
	})
}

func TestReset(t *testing.T) {
	m := newTestManager()
	m.AddVersion("A")
	m.AddVersion("B")

	m.Reset()
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
	if m.ActiveID() != "" {
		t.Errorf("ActiveID() = %q, want empty", m.ActiveID())
	}
}

func TestSnapshotRestore(t *testing.T) {
	t.Run("round trip preserves state", func(t *testing.T) {
		m := newTestManager()
		v1 := m.AddVersion("A")
		m.AddVersion("B")
		m.SetActiveVersion(v1.ID)
		m.UpdateVersionEdits(v1.ID, "A edited")

		snap := m.Snapshot()

		restored := NewManager()
		restored.Restore(snap)

		if restored.ActiveID() != v1.ID {
			t.Errorf("ActiveID() = %q, want %q", restored.ActiveID(), v1.ID)
		}
		orig := m.Versions()
		got := restored.Versions()
		if len(got) != len(orig) {
			t.Fatalf("len = %d, want %d", len(got), len(orig))
		}
		for i := range orig {
			if got[i] != orig[i] {
				t.Errorf("version %d mismatch: %+v != %+v", i, got[i], orig[i])
			}
		}
	})

	t.Run("dangling active id falls back to newest", func(t *testing.T) {
		m := newTestManager()
		m.AddVersion("A")
		v2 := m.AddVersion("B")
		snap := m.Snapshot()
		snap.ActiveID = "dangling"

		restored := NewManager()
		restored.Restore(snap)
		if restored.ActiveID() != v2.ID {
			t.Errorf("ActiveID() = %q, want newest %q", restored.ActiveID(), v2.ID)
		}
	})
}

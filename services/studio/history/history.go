// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history manages a bounded collection of generated lyric versions.
//
// # Description
//
// The Manager owns an ordered collection of up to MaxVersions lyric versions
// plus a single active pointer. Invariants enforced at every operation
// boundary:
//
//   - If the collection is non-empty, exactly one version is active.
//   - If the collection is empty, no version is active.
//   - The collection never exceeds MaxVersions entries; the oldest entry
//     (smallest CreatedAt) is evicted first.
//
// All operations are synchronous and touch only in-memory state; persistence
// is the caller's concern via Snapshot/Restore.
//
// # Thread Safety
//
// Manager is safe for concurrent use.
package history

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxVersions is the capacity of the version collection. Inserting beyond
// this evicts the entry with the smallest CreatedAt.
const MaxVersions = 10

// Version is one generated lyric text plus its edit state.
type Version struct {
	// ID uniquely identifies the version (UUID v4).
	ID string `json:"id"`

	// Text is the originally generated content. Never mutated after creation.
	Text string `json:"text"`

	// CreatedAt is when the version was committed, UTC.
	CreatedAt time.Time `json:"created_at"`

	// IsEdited reports whether the user has ever diverged from Text.
	// Sticky: editing back to the original does not clear it.
	IsEdited bool `json:"is_edited"`

	// EditedText is the user's override of Text. Empty unless IsEdited.
	EditedText string `json:"edited_text,omitempty"`
}

// EffectiveText returns the edited override when present, else the
// original generated text.
func (v Version) EffectiveText() string {
	if v.IsEdited {
		return v.EditedText
	}
	return v.Text
}

// Snapshot is the serializable state of a Manager, used for the session
// store round-trip. Timestamps and edit flags survive save/load exactly.
type Snapshot struct {
	Versions []Version `json:"versions"`
	ActiveID string    `json:"active_id"`
}

// Manager holds the bounded version collection and the active pointer.
type Manager struct {
	mu       sync.RWMutex
	versions []Version // oldest-first by CreatedAt
	activeID string
	logger   *slog.Logger

	// now is swappable for tests that need distinct timestamps.
	now func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for fallback warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock overrides the timestamp source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates an empty version history manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		versions: make([]Version, 0, MaxVersions),
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddVersion commits a new version with a fresh id and current timestamp,
// makes it active, and evicts the oldest entry when the collection would
// exceed MaxVersions. It always succeeds.
//
// Outputs:
//
//	Version - A copy of the committed version.
func (m *Manager) AddVersion(text string) Version {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := Version{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: m.now(),
	}
	m.versions = append(m.versions, v)
	m.activeID = v.ID

	if len(m.versions) > MaxVersions {
		m.evictOldestLocked()
	}
	return v
}

// evictOldestLocked removes the entry with the smallest CreatedAt.
// Caller must hold mu.
func (m *Manager) evictOldestLocked() {
	oldest := 0
	for i := 1; i < len(m.versions); i++ {
		if m.versions[i].CreatedAt.Before(m.versions[oldest].CreatedAt) {
			oldest = i
		}
	}
	evicted := m.versions[oldest]
	m.versions = append(m.versions[:oldest], m.versions[oldest+1:]...)
	m.logger.Debug("evicted oldest lyric version",
		"version_id", evicted.ID, "created_at", evicted.CreatedAt)
}

// SetActiveVersion moves the active pointer to the given id. The collection
// length and contents are never changed by this call.
//
// If id is not present, the manager logs a warning and falls back to the
// most recently created version rather than failing.
func (m *Manager) SetActiveVersion(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.versions) == 0 {
		return
	}
	for _, v := range m.versions {
		if v.ID == id {
			m.activeID = id
			return
		}
	}

	newest := m.newestLocked()
	m.logger.Warn("requested active version not found, falling back to newest",
		"requested_id", id, "fallback_id", newest.ID)
	m.activeID = newest.ID
}

// newestLocked returns the version with the maximum CreatedAt.
// Caller must hold mu and guarantee a non-empty collection.
func (m *Manager) newestLocked() Version {
	newest := m.versions[0]
	for _, v := range m.versions[1:] {
		if v.CreatedAt.After(newest.CreatedAt) {
			newest = v
		}
	}
	return newest
}

// DeleteVersion removes the entry with the given id.
//
// If the removed entry was active and survivors remain, the survivor with
// the maximum CreatedAt becomes active. If no entries remain, the active
// pointer clears.
//
// Outputs:
//
//	bool - True if the id was found and removed.
func (m *Manager) DeleteVersion(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, v := range m.versions {
		if v.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	wasActive := m.activeID == id
	m.versions = append(m.versions[:idx], m.versions[idx+1:]...)

	if len(m.versions) == 0 {
		m.activeID = ""
		return true
	}
	if wasActive {
		m.activeID = m.newestLocked().ID
	}
	return true
}

// UpdateVersionEdits stores text as the active version's edit override.
//
// Only the active version accepts edits; calls against any other id are
// ignored. IsEdited is set whenever text differs from the original
// generated text, and stays set for the version's lifetime even if the
// user edits back to the original (sticky by product decision).
//
// Outputs:
//
//	bool - True if the edit was applied to the active version.
func (m *Manager) UpdateVersionEdits(id, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" || id != m.activeID {
		return false
	}
	for i := range m.versions {
		if m.versions[i].ID != id {
			continue
		}
		m.versions[i].EditedText = text
		if text != m.versions[i].Text {
			m.versions[i].IsEdited = true
		}
		return true
	}
	return false
}

// Reset clears the collection and the active pointer. Called when the
// underlying input fingerprint changes.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.versions = m.versions[:0]
	m.activeID = ""
}

// Versions returns a copy of the collection, oldest-first by insertion.
func (m *Manager) Versions() []Version {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Version, len(m.versions))
	copy(out, m.versions)
	return out
}

// Len returns the number of versions held.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.versions)
}

// ActiveID returns the id of the active version, empty when the
// collection is empty.
func (m *Manager) ActiveID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID
}

// Active returns a copy of the active version.
//
// Outputs:
//
//	Version - The active version (zero value when none).
//	bool - True if a version is active.
func (m *Manager) Active() (Version, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, v := range m.versions {
		if v.ID == m.activeID {
			return v, true
		}
	}
	return Version{}, false
}

// ActiveText returns the active version's effective text (edit override
// wins). Empty when the collection is empty.
func (m *Manager) ActiveText() string {
	v, ok := m.Active()
	if !ok {
		return ""
	}
	return v.EffectiveText()
}

// Snapshot captures the current state for persistence.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := make([]Version, len(m.versions))
	copy(versions, m.versions)
	return Snapshot{Versions: versions, ActiveID: m.activeID}
}

// Restore replaces the manager's state with a previously captured snapshot.
//
// Description:
//
//	The snapshot is validated against the package invariants: a collection
//	larger than MaxVersions is trimmed oldest-first, and an active id that
//	does not point into the collection falls back to the newest entry.
func (m *Manager) Restore(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.versions = make([]Version, len(snap.Versions))
	copy(m.versions, snap.Versions)
	for len(m.versions) > MaxVersions {
		m.evictOldestLocked()
	}

	if len(m.versions) == 0 {
		m.activeID = ""
		return
	}

	m.activeID = ""
	for _, v := range m.versions {
		if v.ID == snap.ActiveID {
			m.activeID = snap.ActiveID
			break
		}
	}
	if m.activeID == "" {
		m.activeID = m.newestLocked().ID
		m.logger.Warn("restored snapshot had dangling active id, using newest",
			"snapshot_active_id", snap.ActiveID, "active_id", m.activeID)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workspace binds the in-memory version history to the persistent
// session store.
//
// # Description
//
// A Workspace tracks the studio's current prompt fingerprint and the version
// history attached to it. Mutations go through the Workspace so every change
// is followed by an asynchronous write-behind save; the UI thread (or HTTP
// handler) never waits on BadgerDB.
//
// When a generation arrives with a different fingerprint than the current
// one, the previous history is persisted under its old key and the workspace
// starts a fresh history for the new fingerprint. Histories are never lost
// by a fingerprint switch, only parked.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package workspace

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianStudio/services/studio/history"
	"github.com/AleutianAI/AleutianStudio/services/studio/storage"
)

// persistTimeout bounds one background save.
const persistTimeout = 5 * time.Second

// Workspace is the studio's mutable working state: one fingerprint, one
// version history, and a write-behind link to the session store.
type Workspace struct {
	mu          sync.RWMutex
	fingerprint string
	hist        *history.Manager

	store  *storage.SessionStore
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates an empty workspace. Call Load to resume a persisted session.
func New(store *storage.SessionStore, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		hist:   history.NewManager(),
		store:  store,
		logger: logger,
	}
}

// Load restores the last active session from the store, if any.
func (w *Workspace) Load(ctx context.Context) error {
	fingerprint, err := w.store.LoadCurrentFingerprint(ctx)
	if err != nil {
		return err
	}
	if fingerprint == "" {
		return nil
	}
	snap, err := w.store.LoadSession(ctx, fingerprint)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.fingerprint = fingerprint
	w.hist.Restore(snap)
	w.logger.Info("resumed session", "fingerprint", fingerprint, "versions", w.hist.Len())
	return nil
}

// Fingerprint returns the current prompt fingerprint ("" before the first
// generation).
func (w *Workspace) Fingerprint() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fingerprint
}

// History exposes the current version history for read operations.
// Mutations must go through the Workspace so they get persisted.
func (w *Workspace) History() *history.Manager {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.hist
}

// CommitGeneration records a successful generation or regeneration.
//
// # Description
//
// If the fingerprint differs from the current one, the old history is parked
// under its key and a fresh history starts; otherwise the text is appended
// to the existing history. Either way the new version becomes active.
//
// # Outputs
//   - history.Version: The committed version.
func (w *Workspace) CommitGeneration(fingerprint, text string) history.Version {
	w.mu.Lock()
	if fingerprint != w.fingerprint {
		if w.fingerprint != "" {
			w.saveLocked(w.fingerprint, w.hist.Snapshot())
			w.logger.Info("fingerprint changed, starting fresh history",
				"old", w.fingerprint, "new", fingerprint)
		}
		w.fingerprint = fingerprint
		w.hist = history.NewManager()
	}
	v := w.hist.AddVersion(text)
	snap := w.hist.Snapshot()
	fp := w.fingerprint
	w.mu.Unlock()

	w.saveCurrent(fp)
	w.save(fp, snap)
	return v
}

// SetActiveVersion switches the active pointer and persists.
func (w *Workspace) SetActiveVersion(id string) {
	w.mu.Lock()
	w.hist.SetActiveVersion(id)
	snap := w.hist.Snapshot()
	fp := w.fingerprint
	w.mu.Unlock()
	w.save(fp, snap)
}

// DeleteVersion removes a version and persists.
func (w *Workspace) DeleteVersion(id string) bool {
	w.mu.Lock()
	ok := w.hist.DeleteVersion(id)
	snap := w.hist.Snapshot()
	fp := w.fingerprint
	w.mu.Unlock()
	if ok {
		w.save(fp, snap)
	}
	return ok
}

// UpdateVersionEdits applies a user edit to the active version and persists.
func (w *Workspace) UpdateVersionEdits(id, text string) bool {
	w.mu.Lock()
	ok := w.hist.UpdateVersionEdits(id, text)
	snap := w.hist.Snapshot()
	fp := w.fingerprint
	w.mu.Unlock()
	if ok {
		w.save(fp, snap)
	}
	return ok
}

// Reset clears the history and removes the stored session.
func (w *Workspace) Reset(ctx context.Context) error {
	w.mu.Lock()
	fp := w.fingerprint
	w.hist.Reset()
	w.mu.Unlock()

	if fp == "" {
		return nil
	}
	return w.store.DeleteSession(ctx, fp)
}

// Flush blocks until all pending write-behind saves have completed.
func (w *Workspace) Flush() {
	w.wg.Wait()
}

func (w *Workspace) save(fingerprint string, snap history.Snapshot) {
	if fingerprint == "" {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := w.store.SaveSession(ctx, fingerprint, snap); err != nil {
			w.logger.Error("session write-behind failed",
				"fingerprint", fingerprint, "error", err)
		}
	}()
}

// saveLocked persists synchronously while w.mu is held. Only used on the
// fingerprint-switch path where the old snapshot must land before the
// history is replaced.
func (w *Workspace) saveLocked(fingerprint string, snap history.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := w.store.SaveSession(ctx, fingerprint, snap); err != nil {
		w.logger.Error("parking previous session failed",
			"fingerprint", fingerprint, "error", err)
	}
}

func (w *Workspace) saveCurrent(fingerprint string) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := w.store.SaveCurrentFingerprint(ctx, fingerprint); err != nil {
			w.logger.Error("current fingerprint save failed", "error", err)
		}
	}()
}

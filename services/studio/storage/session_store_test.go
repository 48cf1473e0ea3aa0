// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStudio/services/studio/history"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSessionStore(db)
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createdAt := time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC)
	snap := history.Snapshot{
		Versions: []history.Version{
			{
				ID:        "v1",
				Text:      "verse one",
				CreatedAt: createdAt,
			},
			{
				ID:         "v2",
				Text:       "verse two",
				CreatedAt:  createdAt.Add(time.Minute),
				IsEdited:   true,
				EditedText: "verse two, edited",
			},
		},
		ActiveID: "v1",
	}

	require.NoError(t, store.SaveSession(ctx, "fp-abc", snap))

	loaded, err := store.LoadSession(ctx, "fp-abc")
	require.NoError(t, err)

	// Deep equality including timestamps, edit flags, and overrides.
	assert.Equal(t, snap.ActiveID, loaded.ActiveID)
	require.Len(t, loaded.Versions, 2)
	assert.Equal(t, snap.Versions[0], loaded.Versions[0])
	assert.Equal(t, snap.Versions[1], loaded.Versions[1])
	assert.True(t, loaded.Versions[0].CreatedAt.Equal(createdAt))
	assert.True(t, loaded.Versions[1].IsEdited)
	assert.Equal(t, "verse two, edited", loaded.Versions[1].EditedText)
}

func TestLoadSessionNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LoadSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, "fp-abc", history.Snapshot{ActiveID: ""}))
	require.NoError(t, store.DeleteSession(ctx, "fp-abc"))

	_, err := store.LoadSession(ctx, "fp-abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveSessionValidation(t *testing.T) {
	store := newTestStore(t)
	err := store.SaveSession(context.Background(), "", history.Snapshot{})
	assert.Error(t, err)
}

func TestPrimarySelectionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SavePrimarySelection(ctx, "task-1", 1))
	require.NoError(t, store.SavePrimarySelection(ctx, "task-2", 0))

	index, err := store.LoadPrimarySelection(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, 1, index)

	// Missing entries default to index 0.
	index, err = store.LoadPrimarySelection(ctx, "task-never-seen")
	require.NoError(t, err)
	assert.Equal(t, 0, index)

	all, err := store.LoadSelections(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"task-1": 1, "task-2": 0}, all)
}

func TestSessionOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := history.Snapshot{ActiveID: "v1", Versions: []history.Version{{ID: "v1", Text: "a", CreatedAt: time.Now().UTC()}}}
	second := history.Snapshot{ActiveID: "v2", Versions: []history.Version{{ID: "v2", Text: "b", CreatedAt: time.Now().UTC()}}}

	require.NoError(t, store.SaveSession(ctx, "fp", first))
	require.NoError(t, store.SaveSession(ctx, "fp", second))

	loaded, err := store.LoadSession(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, "v2", loaded.ActiveID)
}

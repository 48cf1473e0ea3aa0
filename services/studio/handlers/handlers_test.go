// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStudio/services/llm"
	"github.com/AleutianAI/AleutianStudio/services/songgen"
	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
	"github.com/AleutianAI/AleutianStudio/services/studio/faults"
	"github.com/AleutianAI/AleutianStudio/services/studio/quota"
	"github.com/AleutianAI/AleutianStudio/services/studio/storage"
	"github.com/AleutianAI/AleutianStudio/services/studio/tasksync"
	"github.com/AleutianAI/AleutianStudio/services/studio/variation"
	"github.com/AleutianAI/AleutianStudio/services/studio/workspace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakePipeline returns canned lyrics or an error.
type fakePipeline struct {
	text string
	err  error
}

func (f *fakePipeline) Generate(_ context.Context, req llm.LyricsRequest) (llm.LyricsResult, error) {
	if f.err != nil {
		return llm.LyricsResult{}, f.err
	}
	return llm.LyricsResult{Text: f.text, Fingerprint: llm.Fingerprint(req.Content)}, nil
}

// fakeSubmitter records the last submission.
type fakeSubmitter struct {
	taskID string
	err    error
	got    songgen.SubmitRequest
}

func (f *fakeSubmitter) Submit(_ context.Context, req songgen.SubmitRequest) (string, error) {
	f.got = req
	if f.err != nil {
		return "", f.err
	}
	return f.taskID, nil
}

// fakeCredits is a CreditsReader with a fixed state.
type fakeCredits struct {
	state quota.RateLimitState
	err   error
}

func (f *fakeCredits) Credits(_ context.Context, _ quota.Counter) (quota.RateLimitState, error) {
	if f.err != nil {
		return quota.RateLimitState{}, f.err
	}
	s := f.state
	s.FetchedAt = time.Now().UTC()
	return s, nil
}

// fakeStatus serves poll responses for the synchronizer.
type fakeStatus struct {
	mu     sync.Mutex
	update tasksync.TaskUpdate
}

func (f *fakeStatus) set(u tasksync.TaskUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.update = u
}

func (f *fakeStatus) TaskStatus(_ context.Context, taskID string) (tasksync.TaskUpdate, error) {
	f.mu.Lock()
	u := f.update
	f.mu.Unlock()
	u.TaskID = taskID
	u.Source = tasksync.SourcePoll
	u.ReceivedAt = time.Now().UTC()
	return u, nil
}

type testEnv struct {
	deps      *Deps
	router    *gin.Engine
	pipeline  *fakePipeline
	submitter *fakeSubmitter
	credits   *fakeCredits
	status    *fakeStatus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := storage.NewSessionStore(db)

	pipeline := &fakePipeline{text: "la la la"}
	submitter := &fakeSubmitter{taskID: "task-1"}
	credits := &fakeCredits{state: quota.RateLimitState{Remaining: 5, Total: 10}}

	status := &fakeStatus{update: tasksync.TaskUpdate{Status: tasksync.StatusQueued}}
	syncer, err := tasksync.New(tasksync.Config{
		Fetcher:      status,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(syncer.Close)

	deps := &Deps{
		Workspace: workspace.New(store, nil),
		Pipeline:  pipeline,
		Songs:     submitter,
		Sync:      syncer,
		Selector:  variation.NewSelector(nil, store, nil),
		Gate:      quota.NewGate(credits),
	}

	router := gin.New()
	router.POST("/v1/lyrics", GenerateLyrics(deps, quota.CounterGeneration))
	router.POST("/v1/lyrics/regenerate", GenerateLyrics(deps, quota.CounterRegeneration))
	router.GET("/v1/versions", ListVersions(deps))
	router.PUT("/v1/versions/active", SetActiveVersion(deps))
	router.DELETE("/v1/versions/:id", DeleteVersion(deps))
	router.PATCH("/v1/versions/:id/text", EditVersion(deps))
	router.POST("/v1/songs", CreateSong(deps))
	router.GET("/v1/tasks/:id", GetTask(deps))
	router.PATCH("/v1/tasks/:id/variations/primary", SwitchPrimary(deps))
	router.GET("/v1/quota", GetQuota(deps))

	return &testEnv{
		deps:      deps,
		router:    router,
		pipeline:  pipeline,
		submitter: submitter,
		credits:   credits,
		status:    status,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestGenerateLyrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/lyrics",
		datatypes.GenerateLyricsRequest{Content: "a song about rain"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp datatypes.GenerateLyricsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "la la la", resp.Version.Text)
	assert.NotEmpty(t, resp.Fingerprint)
	assert.Equal(t, resp.Version.ID, env.deps.Workspace.History().ActiveID())
}

func TestGenerateLyricsEmptyContent(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/v1/lyrics", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateLyricsQuotaExhausted(t *testing.T) {
	env := newTestEnv(t)
	env.credits.state = quota.RateLimitState{
		Remaining: 0,
		Total:     10,
		ResetAt:   time.Now().Add(time.Hour).UTC(),
	}

	w := env.do(t, http.MethodPost, "/v1/lyrics",
		datatypes.GenerateLyricsRequest{Content: "a song"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(faults.CategoryRateLimit), resp.Category)
	assert.Greater(t, resp.RetryAfterSeconds, 0)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestGenerateLyricsPipelineFailureDoesNotConsumeQuota(t *testing.T) {
	env := newTestEnv(t)
	env.pipeline.err = faults.New(faults.CategoryServerError, "backend down")

	w := env.do(t, http.MethodPost, "/v1/lyrics/regenerate",
		datatypes.GenerateLyricsRequest{Content: "a song"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	// A failed call must not decrement the counter.
	state, ok := env.deps.Gate.State(quota.CounterRegeneration)
	require.True(t, ok)
	assert.Equal(t, 5, state.Remaining)
}

func TestVersionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Two generations, same prompt, same fingerprint.
	env.pipeline.text = "take one"
	w := env.do(t, http.MethodPost, "/v1/lyrics",
		datatypes.GenerateLyricsRequest{Content: "a song"})
	require.Equal(t, http.StatusCreated, w.Code)
	var first datatypes.GenerateLyricsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	env.pipeline.text = "take two"
	w = env.do(t, http.MethodPost, "/v1/lyrics",
		datatypes.GenerateLyricsRequest{Content: "a song"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/v1/versions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list datatypes.VersionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Versions, 2)
	assert.NotEqual(t, first.Version.ID, list.ActiveID)

	// Switch active back to the first version.
	w = env.do(t, http.MethodPut, "/v1/versions/active",
		datatypes.SetActiveRequest{VersionID: first.Version.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.Version.ID, env.deps.Workspace.History().ActiveID())

	// Edit the active version.
	w = env.do(t, http.MethodPatch, "/v1/versions/"+first.Version.ID+"/text",
		datatypes.EditLyricsRequest{Text: "take one, polished"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "take one, polished", env.deps.Workspace.History().ActiveText())

	// Editing a non-active version is rejected.
	other := list.Versions[1].ID
	if other == first.Version.ID {
		other = list.Versions[0].ID
	}
	w = env.do(t, http.MethodPatch, "/v1/versions/"+other+"/text",
		datatypes.EditLyricsRequest{Text: "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Delete the active version; the newest survivor takes over.
	w = env.do(t, http.MethodDelete, "/v1/versions/"+first.Version.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.deps.Workspace.History().Len())
}

func TestDeleteUnknownVersion(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodDelete, "/v1/versions/not-a-version", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSong(t *testing.T) {
	env := newTestEnv(t)

	// No lyrics yet.
	w := env.do(t, http.MethodPost, "/v1/songs", datatypes.CreateSongRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.do(t, http.MethodPost, "/v1/lyrics",
		datatypes.GenerateLyricsRequest{Content: "a song"})

	w = env.do(t, http.MethodPost, "/v1/songs",
		datatypes.CreateSongRequest{Params: map[string]any{"style": "folk"}})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp datatypes.CreateSongResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, "la la la", env.submitter.got.Lyrics)
	assert.Equal(t, "folk", env.submitter.got.Style)

	// The synchronizer now tracks the task.
	w = env.do(t, http.MethodGet, "/v1/tasks/task-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var task datatypes.TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.Equal(t, "task-1", task.TaskID)
}

func TestCreateSongTrackingOutlivesRequest(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/v1/lyrics",
		datatypes.GenerateLyricsRequest{Content: "a song"})

	// Submit with an explicitly cancellable request context and cancel it
	// right after the response, the way net/http does once a handler
	// returns.
	ctx, cancel := context.WithCancel(context.Background())
	body, err := json.Marshal(datatypes.CreateSongRequest{})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/songs",
		bytes.NewReader(body)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)
	cancel()

	// The subscription's poll loop must keep running and pick up provider
	// progress long after the request context died.
	env.status.set(tasksync.TaskUpdate{Status: tasksync.StatusProcessing, Progress: 50})
	require.Eventually(t, func() bool {
		task, err := env.deps.Sync.Task("task-1")
		return err == nil &&
			task.Status == tasksync.StatusProcessing && task.Progress == 50
	}, 2*time.Second, 10*time.Millisecond,
		"task tracking died with the request context")
}

func TestCreateSongUsesEditedText(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/v1/lyrics",
		datatypes.GenerateLyricsRequest{Content: "a song"})
	var gen datatypes.GenerateLyricsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gen))

	env.do(t, http.MethodPatch, "/v1/versions/"+gen.Version.ID+"/text",
		datatypes.EditLyricsRequest{Text: "my own words"})

	w = env.do(t, http.MethodPost, "/v1/songs", datatypes.CreateSongRequest{})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "my own words", env.submitter.got.Lyrics)
}

func TestGetTaskUnknown(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/v1/tasks/nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSwitchPrimary(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Selector.SetVariations("task-9", []tasksync.Variation{
		{AudioURL: "https://cdn/a0.mp3", AudioID: "a0", Index: 0},
		{AudioURL: "https://cdn/a1.mp3", AudioID: "a1", Index: 1},
	})

	idx := 1
	w := env.do(t, http.MethodPatch, "/v1/tasks/task-9/variations/primary",
		datatypes.SwitchPrimaryRequest{Index: &idx})
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.SwitchPrimaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.PrimaryIndex)

	// Out of range.
	idx = 2
	w = env.do(t, http.MethodPatch, "/v1/tasks/task-9/variations/primary",
		datatypes.SwitchPrimaryRequest{Index: &idx})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing index.
	w = env.do(t, http.MethodPatch, "/v1/tasks/task-9/variations/primary",
		map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.deps.Selector.Wait()
}

func TestGetQuota(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/quota?counter=regeneration", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.QuotaResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "regeneration", resp.Counter)
	assert.Equal(t, 5, resp.Remaining)
	assert.Equal(t, 10, resp.Total)

	w = env.do(t, http.MethodGet, "/v1/quota?counter=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheck(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

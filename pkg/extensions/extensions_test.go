// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"strings"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if _, ok := opts.AuthProvider.(*NopAuthProvider); !ok {
		t.Error("DefaultOptions().AuthProvider should be *NopAuthProvider")
	}
	if _, ok := opts.AuthzProvider.(*NopAuthzProvider); !ok {
		t.Error("DefaultOptions().AuthzProvider should be *NopAuthzProvider")
	}
	if _, ok := opts.AuditLogger.(*NopAuditLogger); !ok {
		t.Error("DefaultOptions().AuditLogger should be *NopAuditLogger")
	}
	if _, ok := opts.MessageFilter.(*NopMessageFilter); !ok {
		t.Error("DefaultOptions().MessageFilter should be *NopMessageFilter")
	}
	if _, ok := opts.ArtifactArchiver.(*NopArtifactArchiver); !ok {
		t.Error("DefaultOptions().ArtifactArchiver should be *NopArtifactArchiver")
	}
}

func TestServiceOptions_FluentChaining(t *testing.T) {
	customAuth := &mockAuthProvider{userID: "producer-1"}
	customAudit := &recordingAuditLogger{}
	customFilter := &blockingFilter{}
	customArchiver := &NopArtifactArchiver{}

	original := DefaultOptions()
	opts := original.
		WithAuth(customAuth).
		WithAudit(customAudit).
		WithFilter(customFilter).
		WithArchiver(customArchiver)

	if opts.AuthProvider != customAuth {
		t.Error("chained WithAuth should set AuthProvider")
	}
	if opts.AuditLogger != customAudit {
		t.Error("chained WithAudit should set AuditLogger")
	}
	if opts.MessageFilter != customFilter {
		t.Error("chained WithFilter should set MessageFilter")
	}
	if opts.ArtifactArchiver != customArchiver {
		t.Error("chained WithArchiver should set ArtifactArchiver")
	}

	// With* returns copies; the original keeps its defaults.
	if _, ok := original.AuthProvider.(*NopAuthProvider); !ok {
		t.Error("original options should be unchanged after chaining")
	}
}

func TestAuthInfo_HasRole(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		checkFor string
		want     bool
	}{
		{"has matching role", []string{"admin", "producer"}, "producer", true},
		{"no matching role", []string{"producer"}, "admin", false},
		{"empty roles", []string{}, "admin", false},
		{"nil roles", nil, "admin", false},
		{"case sensitive", []string{"Admin"}, "admin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := &AuthInfo{UserID: "u", Roles: tt.roles}
			if got := info.HasRole(tt.checkFor); got != tt.want {
				t.Errorf("HasRole(%q) = %v, want %v", tt.checkFor, got, tt.want)
			}
		})
	}
}

func TestNopAuthProvider_Validate(t *testing.T) {
	provider := &NopAuthProvider{}
	ctx := context.Background()

	for _, token := range []string{"", "any-token", "eyJhbGciOiJSUzI1NiJ9.x.y"} {
		info, err := provider.Validate(ctx, token)
		if err != nil {
			t.Fatalf("Validate(%q) returned error: %v", token, err)
		}
		if info.UserID != "local-user" {
			t.Errorf("UserID = %q, want local-user", info.UserID)
		}
		if !info.HasRole("admin") {
			t.Error("local user should have the admin role")
		}
	}
}

func TestNopAuthzProvider_AllowsEverything(t *testing.T) {
	provider := &NopAuthzProvider{}

	err := provider.Authorize(context.Background(), AuthzRequest{
		User:         &AuthInfo{UserID: "anyone"},
		Action:       "delete",
		ResourceType: "version",
		ResourceID:   "v-123",
	})
	if err != nil {
		t.Errorf("Authorize() returned error: %v", err)
	}
	if err := provider.Authorize(context.Background(), AuthzRequest{}); err != nil {
		t.Errorf("Authorize() with empty request returned error: %v", err)
	}
}

func TestNopAuditLogger(t *testing.T) {
	logger := &NopAuditLogger{}
	ctx := context.Background()

	if err := logger.Log(ctx, AuditEvent{EventType: "studio.song_submitted"}); err != nil {
		t.Errorf("Log() returned error: %v", err)
	}
	if err := logger.Log(ctx, AuditEvent{}); err != nil {
		t.Errorf("Log() with empty event returned error: %v", err)
	}
	if err := logger.Flush(ctx); err != nil {
		t.Errorf("Flush() returned error: %v", err)
	}
}

func TestNopMessageFilter_PassesThrough(t *testing.T) {
	filter := &NopMessageFilter{}
	ctx := context.Background()

	for _, msg := range []string{"", "verse one about the sea", "  \t\n "} {
		in, err := filter.FilterInput(ctx, msg)
		if err != nil {
			t.Fatalf("FilterInput(%q) returned error: %v", msg, err)
		}
		if in.Filtered != msg || in.WasModified || in.WasBlocked {
			t.Errorf("FilterInput(%q) should pass through unchanged, got %+v", msg, in)
		}

		out, err := filter.FilterOutput(ctx, msg)
		if err != nil {
			t.Fatalf("FilterOutput(%q) returned error: %v", msg, err)
		}
		if out.Filtered != msg || out.WasModified || out.WasBlocked {
			t.Errorf("FilterOutput(%q) should pass through unchanged, got %+v", msg, out)
		}
	}
}

func TestBlockingFilter_ContractShape(t *testing.T) {
	// Verifies the blocked-result contract a custom filter is expected
	// to follow: WasBlocked set, BlockReason populated.
	filter := &blockingFilter{}

	result, err := filter.FilterInput(context.Background(), "explicit content")
	if err != nil {
		t.Fatalf("FilterInput returned error: %v", err)
	}
	if !result.WasBlocked {
		t.Error("WasBlocked should be true")
	}
	if result.BlockReason == "" {
		t.Error("BlockReason should be set when WasBlocked is true")
	}
}

func TestNopImplementations_ConcurrentSafety(t *testing.T) {
	authProvider := &NopAuthProvider{}
	auditLogger := &NopAuditLogger{}
	messageFilter := &NopMessageFilter{}

	ctx := context.Background()
	const goroutines = 100
	done := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = authProvider.Validate(ctx, "token")
			_ = auditLogger.Log(ctx, AuditEvent{EventType: "studio.test"})
			_, _ = messageFilter.FilterInput(ctx, "chorus")
			_, _ = messageFilter.FilterOutput(ctx, "chorus")
		}()
	}
	for i := 0; i < goroutines; i++ {
		<-done
	}
}

// --- test doubles ---

type mockAuthProvider struct {
	userID string
}

func (p *mockAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{UserID: p.userID}, nil
}

type recordingAuditLogger struct {
	events []AuditEvent
}

func (l *recordingAuditLogger) Log(_ context.Context, event AuditEvent) error {
	l.events = append(l.events, event)
	return nil
}

func (l *recordingAuditLogger) Flush(_ context.Context) error { return nil }

// blockingFilter blocks anything containing "explicit".
type blockingFilter struct{}

func (f *blockingFilter) FilterInput(_ context.Context, message string) (*FilterResult, error) {
	if strings.Contains(message, "explicit") {
		return &FilterResult{
			Original:    message,
			WasBlocked:  true,
			BlockReason: "content policy",
		}, nil
	}
	return &FilterResult{Original: message, Filtered: message}, nil
}

func (f *blockingFilter) FilterOutput(ctx context.Context, message string) (*FilterResult, error) {
	return f.FilterInput(ctx, message)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines interfaces for enterprise functionality.
//
// This package provides extension points that allow AleutianEnterprise
// to add capabilities without modifying the core AleutianStudio codebase.
// The open source version uses no-op defaults for all interfaces.
//
// # Extension Categories
//
//   - auth.go: Authentication and authorization (AuthProvider, AuthzProvider)
//   - audit.go: Compliance audit logging (AuditLogger)
//   - filter.go: Lyric content filtering (MessageFilter)
//   - archiver.go: Completed-song artifact archival (ArtifactArchiver)
//
// # Usage
//
// The open source studio runs with no-op implementations:
//
//	opts := extensions.DefaultOptions()
//	svc, err := studio.New(cfg, &opts)
//
// Enterprise builds inject concrete implementations:
//
//	opts := extensions.DefaultOptions().
//	    WithAuth(enterprise.NewOktaProvider(cfg)).
//	    WithAudit(enterprise.NewSplunkAuditor(cfg)).
//	    WithArchiver(archiver)
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// Pass this to studio.New to enable enterprise features. All fields are
// optional; nil values are replaced with no-op defaults.
type ServiceOptions struct {
	// AuthProvider validates authentication tokens.
	// Default: NopAuthProvider (always returns a valid local user)
	AuthProvider AuthProvider

	// AuthzProvider checks authorization permissions.
	// Default: NopAuthzProvider (always allows all actions)
	AuthzProvider AuthzProvider

	// AuditLogger records security-relevant events.
	// Default: NopAuditLogger (discards all events)
	AuditLogger AuditLogger

	// MessageFilter screens lyric prompts and generated text.
	// Default: NopMessageFilter (passes through unchanged)
	MessageFilter MessageFilter

	// ArtifactArchiver stores completed-task audio artifacts.
	// Default: NopArtifactArchiver (discards all artifacts)
	ArtifactArchiver ArtifactArchiver
}

// DefaultOptions returns ServiceOptions with no-op defaults.
//
// This is the configuration used by the open source version: all
// operations allowed, no audit trail, no filtering, no archival.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider:     &NopAuthProvider{},
		AuthzProvider:    &NopAuthzProvider{},
		AuditLogger:      &NopAuditLogger{},
		MessageFilter:    &NopMessageFilter{},
		ArtifactArchiver: &NopArtifactArchiver{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
// Useful for fluent configuration.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAuthz returns a copy of opts with the given AuthzProvider.
func (opts ServiceOptions) WithAuthz(provider AuthzProvider) ServiceOptions {
	opts.AuthzProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}

// WithFilter returns a copy of opts with the given MessageFilter.
func (opts ServiceOptions) WithFilter(filter MessageFilter) ServiceOptions {
	opts.MessageFilter = filter
	return opts
}

// WithArchiver returns a copy of opts with the given ArtifactArchiver.
func (opts ServiceOptions) WithArchiver(archiver ArtifactArchiver) ServiceOptions {
	opts.ArtifactArchiver = archiver
	return opts
}

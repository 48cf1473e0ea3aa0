// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

// StudioConfig holds the CLI's persistent settings.
type StudioConfig struct {
	Server ServerConfig `yaml:"server"`
	Editor EditorConfig `yaml:"editor"`
}

// ServerConfig points the CLI at a running studio service.
type ServerConfig struct {
	// URL is the studio service base URL.
	URL string `yaml:"url"`

	// Token is an optional bearer token sent with every request.
	Token string `yaml:"token"`

	// TimeoutSeconds bounds each API call. Lyric generation can take a
	// while on local backends, so the default is generous.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// EditorConfig controls `studio lyrics edit`.
type EditorConfig struct {
	// WorkFile is where the active lyric text is written for editing.
	// Empty means a file under the user's config directory.
	WorkFile string `yaml:"work_file"`

	// DebounceMs batches rapid editor saves before syncing.
	DebounceMs int `yaml:"debounce_ms"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() StudioConfig {
	return StudioConfig{
		Server: ServerConfig{
			URL:            "http://localhost:12250",
			TimeoutSeconds: 300,
		},
		Editor: EditorConfig{
			DebounceMs: 500,
		},
	}
}

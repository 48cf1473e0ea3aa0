// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"io"
	"time"
)

// Artifact describes one generated output worth keeping: typically the
// primary variation's audio for a completed song task.
type Artifact struct {
	// TaskID is the generation task that produced the artifact.
	TaskID string

	// AudioID is the provider's id for the audio object.
	AudioID string

	// Name is a suggested object name (e.g. "task-42/primary.mp3").
	Name string

	// ContentType is the MIME type, e.g. "audio/mpeg".
	ContentType string

	// CreatedAt is when the task completed (UTC).
	CreatedAt time.Time

	// Metadata holds additional attributes stored alongside the object.
	Metadata map[string]string
}

// ArtifactArchiver stores completed-task artifacts in durable storage.
//
// Implementations must be safe for concurrent use. Archiving runs off the
// request path; implementations may take seconds but should respect ctx.
//
// # Open Source Behavior
//
// The default NopArtifactArchiver discards artifacts. Local deployments
// keep audio on the provider's CDN and don't need an archive.
//
// # Enterprise Implementation
//
// Enterprise deployments archive every completed song for retention and
// licensing review, e.g. GCSArchiver below, or an S3/Azure equivalent.
type ArtifactArchiver interface {
	// Archive stores one artifact. The reader supplies the object bytes
	// and is fully consumed on success.
	Archive(ctx context.Context, artifact Artifact, r io.Reader) error
}

// NopArtifactArchiver is the default archiver for open source. It discards
// all artifacts without reading them.
//
// Thread-safe: this implementation has no mutable state.
type NopArtifactArchiver struct{}

// Archive discards the artifact.
func (a *NopArtifactArchiver) Archive(_ context.Context, _ Artifact, _ io.Reader) error {
	return nil
}

// Compile-time interface compliance check.
var _ ArtifactArchiver = (*NopArtifactArchiver)(nil)

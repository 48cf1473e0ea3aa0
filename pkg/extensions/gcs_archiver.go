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
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSArchiver archives artifacts to a Google Cloud Storage bucket.
//
// Objects are written under "<prefix>/<artifact.Name>" with the artifact
// metadata attached as object metadata. Writes are bounded by uploadTimeout
// on top of the caller's context.
//
// # Thread Safety
//
// Safe for concurrent use; the underlying client is connection-pooled.
type GCSArchiver struct {
	client *storage.Client
	bucket string
	prefix string

	uploadTimeout time.Duration
}

// NewGCSArchiver creates an archiver over a bucket. Credentials resolve
// through Application Default Credentials unless opts override them.
func NewGCSArchiver(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSArchiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("extensions: bucket must not be empty")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSArchiver{
		client:        client,
		bucket:        bucket,
		prefix:        prefix,
		uploadTimeout: 2 * time.Minute,
	}, nil
}

// Archive uploads one artifact.
func (a *GCSArchiver) Archive(ctx context.Context, artifact Artifact, r io.Reader) error {
	if artifact.Name == "" {
		return fmt.Errorf("extensions: artifact name must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, a.uploadTimeout)
	defer cancel()

	name := artifact.Name
	if a.prefix != "" {
		name = a.prefix + "/" + name
	}

	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = artifact.ContentType
	w.Metadata = map[string]string{
		"task_id":  artifact.TaskID,
		"audio_id": artifact.AudioID,
	}
	for k, v := range artifact.Metadata {
		w.Metadata[k] = v
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload artifact %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize artifact %s: %w", name, err)
	}
	return nil
}

// Close releases the underlying client.
func (a *GCSArchiver) Close() error {
	return a.client.Close()
}

var _ ArtifactArchiver = (*GCSArchiver)(nil)

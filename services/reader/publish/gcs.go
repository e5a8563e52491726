// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package publish

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSPublisher uploads bundle artifacts to a bucket. Every analysis
// lands in its own folder keyed by project name and build timestamp, so
// history accumulates instead of being overwritten.
type GCSPublisher struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSPublisher dials GCS. A credentials file is optional; without one
// the client falls back to application default credentials.
func NewGCSPublisher(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSPublisher, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	return &GCSPublisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Publish uploads every artifact under
// <prefix>/<project>/<built-at-milli>/.
func (p *GCSPublisher) Publish(ctx context.Context, bundle *Bundle) error {
	if err := bundle.validate(); err != nil {
		return err
	}

	arts, err := bundle.artifacts()
	if err != nil {
		return err
	}

	folder := path.Join(p.prefix, bundle.Project(),
		strconv.FormatInt(bundle.Result.BuiltAtMilli, 10))
	for _, art := range arts {
		if err := p.upload(ctx, path.Join(folder, art.name), art); err != nil {
			return err
		}
	}

	slog.Info("analysis artifacts uploaded",
		slog.String("bucket", p.bucket),
		slog.String("folder", folder),
		slog.Int("objects", len(arts)))
	return nil
}

func (p *GCSPublisher) upload(ctx context.Context, objectPath string, art artifact) error {
	writer := p.client.Bucket(p.bucket).Object(objectPath).NewWriter(ctx)
	writer.ContentType = art.contentType
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := writer.Write(art.data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing object %s: %w", objectPath, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing writer for %s: %w", objectPath, err)
	}
	return nil
}

// Close releases the underlying storage client.
func (p *GCSPublisher) Close() error {
	return p.client.Close()
}

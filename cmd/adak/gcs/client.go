// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gcs uploads relay backups to Google Cloud Storage for
// off-box retention.
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// backupPrefix is where backup objects land inside the bucket.
const backupPrefix = "backups"

// Client wraps a GCS bucket for backup uploads.
type Client struct {
	storageClient *storage.Client
	ProjectID     string
	BucketName    string
}

// NewClient authenticates against GCS with a service account key file.
func NewClient(ctx context.Context, projectID, bucketName, saKeyPath string) (*Client, error) {
	if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("service account key not found at path: %s. Please ensure you have the correct key and it is accessible", saKeyPath)
	}

	storageClient, err := storage.NewClient(ctx, option.WithCredentialsFile(saKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &Client{
		storageClient: storageClient,
		ProjectID:     projectID,
		BucketName:    bucketName,
	}, nil
}

// UploadBackup copies a local backup file to
// gs://<bucket>/backups/<basename> and returns the object path.
func (c *Client) UploadBackup(ctx context.Context, localPath string) (string, error) {
	localFile, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open the local backup: %s: %w", localPath, err)
	}
	defer localFile.Close()

	objectPath := path.Join(backupPrefix, path.Base(localPath))
	obj := c.storageClient.Bucket(c.BucketName).Object(objectPath)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/octet-stream"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, localFile); err != nil {
		return "", fmt.Errorf("failed to copy backup %s to GCS object %s: %w", localPath, objectPath, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for %s: %w", objectPath, err)
	}
	return objectPath, nil
}

// Close releases the underlying storage client.
func (c *Client) Close() error {
	return c.storageClient.Close()
}

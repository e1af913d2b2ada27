// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/AleutianAI/adak/cmd/adak/gcs"
	"github.com/AleutianAI/adak/pkg/ux"
)

// BackupOptions configures one backup run.
type BackupOptions struct {
	// OutPath is the local destination file. Empty picks a timestamped
	// name in the working directory.
	OutPath string

	// GCS upload, enabled when Bucket is set.
	Bucket    string
	SAKeyPath string
	ProjectID string
}

// defaultBackupName mirrors the relay's stream filename.
func defaultBackupName() string {
	return fmt.Sprintf("adak-%s.badger", time.Now().UTC().Format("20060102T150405Z"))
}

// runBackup downloads the relay's backup stream to a local file, then
// optionally ships it to GCS.
//
// # Description
//
// The download writes to a .partial file first and renames on success,
// so an interrupted stream never leaves a plausible-looking backup
// behind.
func runBackup(ctx context.Context, admin *AdminClient, opts BackupOptions) error {
	outPath := opts.OutPath
	if outPath == "" {
		outPath = defaultBackupName()
	}

	partial := outPath + ".partial"
	f, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("create %s: %w", partial, err)
	}

	spin := ux.NewSpinner("Downloading backup from the relay")
	spin.Start()
	n, err := admin.DownloadBackup(ctx, f)
	closeErr := f.Close()
	if err != nil {
		spin.StopWithError("Backup download failed")
		os.Remove(partial)
		return err
	}
	if closeErr != nil {
		spin.StopWithError("Backup download failed")
		os.Remove(partial)
		return fmt.Errorf("flush %s: %w", partial, closeErr)
	}
	spin.Stop()
	if err := os.Rename(partial, outPath); err != nil {
		return fmt.Errorf("finalize backup: %w", err)
	}
	ux.Success(fmt.Sprintf("Backup saved to %s (%d bytes)", outPath, n))

	if opts.Bucket == "" {
		return nil
	}
	return uploadBackup(ctx, outPath, opts)
}

// uploadBackup pushes a finished backup file to the configured bucket.
func uploadBackup(ctx context.Context, localPath string, opts BackupOptions) error {
	if opts.SAKeyPath == "" {
		return fmt.Errorf("--bucket requires --sa-key")
	}

	client, err := gcs.NewClient(ctx, opts.ProjectID, opts.Bucket, opts.SAKeyPath)
	if err != nil {
		return err
	}
	defer client.Close()

	spin := ux.NewSpinner(fmt.Sprintf("Uploading %s to gs://%s", localPath, opts.Bucket))
	spin.Start()
	objectPath, err := client.UploadBackup(ctx, localPath)
	if err != nil {
		spin.StopWithError("Upload failed")
		return err
	}
	spin.StopWithSuccess(fmt.Sprintf("Uploaded to gs://%s/%s", opts.Bucket, objectPath))
	return nil
}

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
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/adak/services/relay/hub"
	"github.com/AleutianAI/adak/services/relay/store"
)

// AdminDeps carries the collaborators of the admin endpoints.
type AdminDeps struct {
	Store  *store.Store
	Hub    *hub.Hub
	Logger *slog.Logger
}

// ListUsers returns all registered users, credential material excluded.
//
// GET /v1/admin/users
func ListUsers(deps AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := deps.Store.ListUsers(c.Request.Context())
		if err != nil {
			deps.Logger.Error("list users failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"users": users,
			"count": len(users),
		})
	}
}

// ListActive returns the currently connected usernames.
//
// GET /v1/admin/active
func ListActive(deps AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := deps.Hub.Active()
		c.JSON(http.StatusOK, gin.H{
			"active": active,
			"count":  len(active),
		})
	}
}

// GetHistory returns recent room history, newest first.
//
// GET /v1/admin/history?limit=N
func GetHistory(deps AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := store.DefaultHistoryLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid limit %q", raw)})
				return
			}
			limit = parsed
		}

		messages, err := deps.Store.RecentHistory(c.Request.Context(), limit)
		if err != nil {
			deps.Logger.Error("history read failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"messages": messages,
			"count":    len(messages),
		})
	}
}

// ImportUsers migrates a legacy username,password CSV posted as the
// request body.
//
// POST /v1/admin/users/import
func ImportUsers(deps AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := deps.Store.ImportCSV(c.Request.Context(), c.Request.Body)
		if err != nil {
			deps.Logger.Error("csv import failed", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "partial": result})
			return
		}
		deps.Logger.Info("csv import complete",
			slog.Int("imported", result.Imported),
			slog.Int("skipped", result.Skipped))
		c.JSON(http.StatusOK, result)
	}
}

// StreamBackup streams a consistent badger backup of the whole store.
//
// POST /v1/admin/backup
func StreamBackup(deps AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename := fmt.Sprintf("adak-%s.badger", time.Now().UTC().Format("20060102T150405Z"))
		c.Header("Content-Type", "application/octet-stream")
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

		since, err := deps.Store.Backup(c.Writer)
		if err != nil {
			// Headers are gone; all we can do is log and cut the stream.
			deps.Logger.Error("backup stream failed", slog.String("error", err.Error()))
			c.Abort()
			return
		}
		deps.Logger.Info("backup streamed", slog.Uint64("version", since))
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/adak/services/relay/handlers"
	"github.com/AleutianAI/adak/services/relay/middleware"
)

// SetupRoutes registers every relay endpoint on the engine.
//
//   - GET  /health               liveness
//   - GET  /ws/chat              the chat session (WebSocket upgrade)
//   - GET  /metrics              Prometheus scrape target
//   - GET  /v1/admin/users       registered users
//   - POST /v1/admin/users/import  legacy CSV migration
//   - GET  /v1/admin/active      connected usernames
//   - GET  /v1/admin/history     recent room history
//   - POST /v1/admin/backup      badger backup stream
func SetupRoutes(router *gin.Engine, chat handlers.ChatDeps, adm handlers.AdminDeps, adminToken string) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ws/chat", handlers.HandleChatWebSocket(chat))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := router.Group("/v1/admin")
	admin.Use(middleware.AdminAuth(adminToken))
	{
		admin.GET("/users", handlers.ListUsers(adm))
		admin.POST("/users/import", handlers.ImportUsers(adm))
		admin.GET("/active", handlers.ListActive(adm))
		admin.GET("/history", handlers.GetHistory(adm))
		admin.POST("/backup", handlers.StreamBackup(adm))
	}
}

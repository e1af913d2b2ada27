// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the relay service.
//
// # Authentication Flow
//
// The admin middleware extracts a bearer token from the Authorization
// header and compares it with the configured admin token:
//
//	Request
//	   │
//	   ▼
//	AdminAuth
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► Constant-time compare against the configured token
//	   │
//	   └─► 401 on mismatch, 503 when no token is configured
//
// Fail closed: with no admin token configured, the admin API does not
// exist. There is no unauthenticated admin mode.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminAuth creates a middleware guarding the admin route group.
//
// # Inputs
//
//   - token: The configured admin token. Empty disables the admin API
//     (all requests get 503).
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for use with a route group.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "admin API disabled",
			})
			return
		}

		presented := extractBearerToken(c)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}

		c.Next()
	}
}

// extractBearerToken extracts the token from the Authorization header.
// Returns empty string if the header is missing or malformed. The
// "Bearer" prefix is case-insensitive per RFC 7235.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// adminRequest runs one request through AdminAuth and returns the
// recorder.
func adminRequest(token, authHeader string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(AdminAuth(token))
	router.GET("/guarded", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		authHeader string
		wantStatus int
	}{
		{
			name:       "valid token",
			token:      "sekret",
			authHeader: "Bearer sekret",
			wantStatus: http.StatusOK,
		},
		{
			name:       "case-insensitive scheme",
			token:      "sekret",
			authHeader: "bearer sekret",
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong token",
			token:      "sekret",
			authHeader: "Bearer wrong",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			token:      "sekret",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			token:      "sekret",
			authHeader: "sekret",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			token:      "sekret",
			authHeader: "Basic sekret",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "no token configured fails closed",
			token:      "",
			authHeader: "Bearer anything",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "no token configured and no header",
			token:      "",
			authHeader: "",
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := adminRequest(tt.token, tt.authHeader)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

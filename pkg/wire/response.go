// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package wire

import "fmt"

// ResponseStatus classifies a ServerResponse.
type ResponseStatus string

const (
	// StatusSuccess acknowledges a request (login, register, /users).
	StatusSuccess ResponseStatus = "success"

	// StatusError reports a failed request or rejected message.
	StatusError ResponseStatus = "error"

	// StatusInfo carries unsolicited notices (presence changes, MOTD).
	StatusInfo ResponseStatus = "info"
)

// ServerResponse is the payload for TypeResponse envelopes.
type ServerResponse struct {
	Status  ResponseStatus `json:"status" validate:"required,oneof=success error info"`
	Content string         `json:"content" validate:"required"`
}

// Validate checks the response against the wire rules.
func (r *ServerResponse) Validate() error {
	return wireValidate.Struct(r)
}

// DisplayString renders the response for a terminal: "[SERVER] content".
func (r *ServerResponse) DisplayString() string {
	return fmt.Sprintf("[SERVER] %s", r.Content)
}

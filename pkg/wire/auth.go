// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package wire

// AuthAction selects between the two auth operations.
type AuthAction string

const (
	ActionLogin    AuthAction = "login"
	ActionRegister AuthAction = "register"
)

// AuthRequest is the payload for TypeAuth envelopes. The password travels
// in clear inside the frame; deployments that leave localhost must put TLS
// in front of the relay.
type AuthRequest struct {
	Action   AuthAction `json:"action" validate:"required,oneof=login register"`
	Username string     `json:"username" validate:"required,username"`
	Password string     `json:"password" validate:"required,passwordbytes"`
}

// Validate checks the request against the wire rules.
func (r *AuthRequest) Validate() error {
	return wireValidate.Struct(r)
}

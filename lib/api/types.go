/*
Copyright 2024 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"github.com/gravitational/session-client/lib/credentials"
)

// SessionRequest is the body of POST /sessions.
type SessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is the body returned by POST /sessions.
type SessionResponse struct {
	User         *credentials.UserProfile `json:"user"`
	Token        string                   `json:"token"`
	RefreshToken string                   `json:"refresh_token"`
}

// Complete reports whether the response carries a profile and both tokens.
func (r *SessionResponse) Complete() bool {
	return r != nil && r.User != nil && !r.User.IsEmpty() && r.Token != "" && r.RefreshToken != ""
}

// RefreshRequest is the body of POST /sessions/refresh-token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserUpdate is the body of PUT /users.
type UserUpdate struct {
	Name        string `json:"name"`
	Password    string `json:"password,omitempty"`
	OldPassword string `json:"old_password,omitempty"`
}

// Exercise is a single exercise of a muscle group.
type Exercise struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Group       string `json:"group"`
	Series      int    `json:"series"`
	Repetitions int    `json:"repetitions"`
	Demo        string `json:"demo,omitempty"`
	Thumb       string `json:"thumb,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

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

// Package credentials persists the signed-in user's profile and token pair
// across process restarts.
package credentials

// UserProfile is the authenticated identity as returned by the API.
// Fields are passed through unvalidated. The zero value means "no user".
type UserProfile struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// IsEmpty reports whether the profile is the "no user" sentinel.
func (p UserProfile) IsEmpty() bool {
	return p == UserProfile{}
}

// TokenPair is the bearer credential issued on sign-in.
type TokenPair struct {
	// Token is the short-lived access token sent as "Authorization: Bearer".
	Token string `json:"token"`
	// RefreshToken is used by the transport to obtain a new access token.
	RefreshToken string `json:"refresh_token"`
}

// IsComplete reports whether both halves of the pair are present.
func (p TokenPair) IsComplete() bool {
	return p.Token != "" && p.RefreshToken != ""
}

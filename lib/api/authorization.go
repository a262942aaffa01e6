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
	"sync"

	"github.com/gravitational/trace"
	"golang.org/x/oauth2"
)

// AuthorizationState is the access token attached to every outgoing request.
// The session manager is its only writer.
type AuthorizationState struct {
	mu    sync.RWMutex
	token string
}

// NewAuthorizationState returns an empty state: requests go out unauthenticated.
func NewAuthorizationState() *AuthorizationState {
	return &AuthorizationState{}
}

// Set installs token as the default bearer credential.
func (a *AuthorizationState) Set(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = token
}

// Clear removes the default bearer credential.
func (a *AuthorizationState) Clear() {
	a.Set("")
}

// Get returns the installed access token or an empty string.
func (a *AuthorizationState) Get() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// Header returns the value of the Authorization header, if any.
func (a *AuthorizationState) Header() string {
	if token := a.Get(); token != "" {
		return "Bearer " + token
	}
	return ""
}

// Token implements oauth2.TokenSource so plain net/http clients built with
// oauth2.NewClient share the session credential.
func (a *AuthorizationState) Token() (*oauth2.Token, error) {
	token := a.Get()
	if token == "" {
		return nil, trace.NotFound("no access token installed")
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

var _ oauth2.TokenSource = (*AuthorizationState)(nil)

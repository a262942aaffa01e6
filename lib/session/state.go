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

package session

import (
	"time"

	"github.com/gravitational/session-client/lib/credentials"
)

// Phase is the lifecycle stage of a session.
type Phase int

const (
	// PhaseUninitialized is the phase before Restore ran.
	PhaseUninitialized Phase = iota
	// PhaseRestoring is the phase while persisted credentials are being read.
	PhaseRestoring
	// PhaseAuthenticated means a profile and an access token are installed.
	PhaseAuthenticated
	// PhaseUnauthenticated means there is no session.
	PhaseUnauthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseRestoring:
		return "restoring"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// State is a snapshot of the session.
type State struct {
	// Phase is the lifecycle stage.
	Phase Phase
	// Profile is the signed-in user or the empty profile.
	Profile credentials.UserProfile
	// StorageInProgress is true while any operation touches the credential store.
	StorageInProgress bool
	// RefreshedToken is set once the access token was rotated during this session.
	RefreshedToken bool
	// Epoch is bumped by every sign-in and sign-out. Storage writes started in
	// an earlier epoch are discarded.
	Epoch uint64
	// ChangedAt is the time of the last change.
	ChangedAt time.Time
}

// Authenticated reports whether a user is signed in.
func (s State) Authenticated() bool {
	return s.Phase == PhaseAuthenticated
}

// Loading reports whether the session is not settled yet.
func (s State) Loading() bool {
	return s.Phase == PhaseUninitialized || s.Phase == PhaseRestoring
}

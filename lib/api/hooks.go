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
	"context"
	"sync"

	"github.com/gravitational/session-client/lib/credentials"
)

// Disposable cancels a registration. Calling it more than once is safe.
type Disposable func()

// RefreshHandler supplies the refresh token and receives the rotated pair.
type RefreshHandler interface {
	// RefreshToken returns the refresh token of the current session, if any.
	RefreshToken() string
	// TokensRefreshed is called after the API issued a new token pair.
	TokensRefreshed(ctx context.Context, pair credentials.TokenPair) error
}

// Hooks lets the session layer react to transport events without inspecting
// every response.
type Hooks struct {
	mu           sync.Mutex
	nextID       uint64
	invalidation map[uint64]func()
	refreshID    uint64
	refresh      RefreshHandler
}

// NewHooks returns an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{invalidation: make(map[uint64]func())}
}

// RegisterInvalidationListener registers fn to run whenever the API rejects
// the current credentials.
func (h *Hooks) RegisterInvalidationListener(fn func()) Disposable {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.invalidation[id] = fn

	return disposeOnce(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.invalidation, id)
	})
}

// RegisterRefreshHandler installs the handler used for token rotation,
// replacing any previous one.
func (h *Hooks) RegisterRefreshHandler(handler RefreshHandler) Disposable {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.refreshID, h.refresh = id, handler

	return disposeOnce(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.refreshID == id {
			h.refreshID, h.refresh = 0, nil
		}
	})
}

// Invalidate runs every registered invalidation listener. Listeners run
// outside of the registry lock.
func (h *Hooks) Invalidate() {
	h.mu.Lock()
	listeners := make([]func(), 0, len(h.invalidation))
	for _, fn := range h.invalidation {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func (h *Hooks) refreshHandler() RefreshHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refresh
}

func disposeOnce(fn func()) Disposable {
	var once sync.Once
	return func() { once.Do(fn) }
}

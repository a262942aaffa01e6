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

	"github.com/gravitational/trace"
	"golang.org/x/exp/slices"

	"github.com/gravitational/session-client/lib/logger"
)

// Messages the API uses for a token that can be renewed with the refresh token.
var refreshableMessages = []string{"token.expired", "token.invalid"}

// handleRejection reacts to a 401 returned for a request sent with token.
// It returns true when the request should be retried with the current token.
// Any other outcome fires the invalidation listeners exactly once.
func (c *Client) handleRejection(ctx context.Context, apiErr *Error, token string) bool {
	log := logger.Get(ctx)

	if !slices.Contains(refreshableMessages, apiErr.Message) {
		log.Debugf("Credentials rejected: %s", apiErr.Message)
		c.hooks.Invalidate()
		return false
	}

	// Someone else already rotated the token while this request was in flight.
	if current := c.auth.Get(); current != "" && current != token {
		return true
	}

	handler := c.hooks.refreshHandler()
	if handler == nil {
		log.Debug("No refresh handler registered, invalidating session")
		c.hooks.Invalidate()
		return false
	}

	// Concurrent rejections share a single refresh. Only the caller that ran
	// the refresh fires the invalidation listeners.
	_, err, _ := c.refresh.Do(token, func() (interface{}, error) {
		if err := c.refreshTokens(ctx, handler); err != nil {
			log.WithError(err).Warn("Failed to refresh access token")
			c.hooks.Invalidate()
			return nil, trace.Wrap(err)
		}
		return nil, nil
	})
	return err == nil
}

func (c *Client) refreshTokens(ctx context.Context, handler RefreshHandler) error {
	refreshToken := handler.RefreshToken()
	if refreshToken == "" {
		return trace.NotFound("no refresh token available")
	}
	pair, err := c.RefreshSession(ctx, refreshToken)
	if err != nil {
		return trace.Wrap(err)
	}
	if err := handler.TokensRefreshed(ctx, *pair); err != nil {
		return trace.Wrap(err)
	}
	logger.Get(ctx).Debug("Access token refreshed")
	return nil
}

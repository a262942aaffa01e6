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
	"net/http"
	"net/url"
	"strings"

	"github.com/gravitational/trace"

	"github.com/gravitational/session-client/lib/credentials"
)

// CreateSession exchanges email and password for a profile and a token pair.
func (c *Client) CreateSession(ctx context.Context, email, password string) (*SessionResponse, error) {
	var result SessionResponse
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "sessions",
		body:      SessionRequest{Email: email, Password: password},
		result:    &result,
		anonymous: true,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &result, nil
}

// RefreshSession exchanges a refresh token for a new token pair.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*credentials.TokenPair, error) {
	var result credentials.TokenPair
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      buildURLPath("sessions", "refresh-token"),
		body:      RefreshRequest{RefreshToken: refreshToken},
		result:    &result,
		anonymous: true,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if result.Token == "" {
		return nil, trace.BadParameter("refresh response carries no access token")
	}
	// Servers that do not rotate refresh tokens keep the old one valid.
	if result.RefreshToken == "" {
		result.RefreshToken = refreshToken
	}
	return &result, nil
}

// ListGroups returns the muscle groups.
func (c *Client) ListGroups(ctx context.Context) ([]string, error) {
	var result []string
	err := c.do(ctx, request{method: http.MethodGet, path: "groups", result: &result})
	return result, trace.Wrap(err)
}

// ListExercisesByGroup returns the exercises of a group.
func (c *Client) ListExercisesByGroup(ctx context.Context, group string) ([]Exercise, error) {
	if group == "" {
		return nil, trace.BadParameter("missing group")
	}
	var result []Exercise
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   buildURLPath("exercises", "bygroup", group),
		result: &result,
	})
	return result, trace.Wrap(err)
}

// GetExercise returns a single exercise.
func (c *Client) GetExercise(ctx context.Context, id string) (*Exercise, error) {
	if id == "" {
		return nil, trace.BadParameter("missing exercise id")
	}
	var result Exercise
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   buildURLPath("exercises", id),
		result: &result,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &result, nil
}

// UpdateUser changes the name and optionally the password of the signed-in user.
func (c *Client) UpdateUser(ctx context.Context, update UserUpdate) error {
	if update.Name == "" {
		return trace.BadParameter("missing name")
	}
	if update.Password != "" && update.OldPassword == "" {
		return trace.BadParameter("changing the password requires the old password")
	}
	return trace.Wrap(c.do(ctx, request{method: http.MethodPut, path: "users", body: update}))
}

func buildURLPath(args ...string) string {
	pathArgs := make([]string, len(args))
	for i, arg := range args {
		pathArgs[i] = url.PathEscape(arg)
	}
	return strings.Join(pathArgs, "/")
}

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

package fakeapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/session-client/lib/credentials"
)

func get(t *testing.T, url, token string) (*http.Response, map[string]interface{}, []interface{}) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	obj, _ := body.(map[string]interface{})
	list, _ := body.([]interface{})
	return resp, obj, list
}

func TestExerciseRoutes(t *testing.T) {
	srv := New()
	t.Cleanup(srv.Close)
	srv.AddUser(credentials.UserProfile{ID: "u1", Email: "a@b.com"}, "secret")
	pair := srv.IssueTokens("a@b.com")

	resp, _, list := get(t, srv.URL()+"/exercises/bygroup/back", pair.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 2)

	resp, obj, _ := get(t, srv.URL()+"/exercises/3", pair.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Curl", obj["name"])

	resp, _, _ = get(t, srv.URL()+"/exercises/404", pair.Token)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, obj, _ = get(t, srv.URL()+"/exercises/3", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "token.invalid", obj["message"])
}

func TestExpiredAndRevokedTokens(t *testing.T) {
	srv := New()
	t.Cleanup(srv.Close)
	expired, revoked := srv.IssueTokens("a@b.com"), srv.IssueTokens("a@b.com")
	srv.Expire(expired.Token)
	srv.Revoke(revoked.Token)

	_, obj, _ := get(t, srv.URL()+"/groups", expired.Token)
	require.Equal(t, MessageExpired, obj["message"])
	_, obj, _ = get(t, srv.URL()+"/groups", revoked.Token)
	require.Equal(t, MessageRevoked, obj["message"])
}

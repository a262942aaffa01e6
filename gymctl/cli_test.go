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

package main

import (
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"

	"github.com/gravitational/session-client/lib/credentials"
)

func newParser(t *testing.T, cli *CLI) *kong.Kong {
	parser, err := kong.New(
		cli,
		kong.UsageOnError(),
		kong.Configuration(KongTOMLResolver),
		kong.Name(appName),
		kong.Description(appDescription),
	)
	require.NoError(t, err)
	return parser
}

func TestCLIConfig(t *testing.T) {
	testCases := []struct {
		name        string
		args        []string
		wantCommand string
		wantAPI     APIConfig
		wantStorage StorageConfig
		wantLog     LogConfig
	}{
		{
			name:        "defaults",
			args:        []string{"whoami"},
			wantCommand: "whoami",
			wantAPI: APIConfig{
				APIURL:     "http://localhost:3333",
				APITimeout: 10 * time.Second,
			},
			wantStorage: StorageConfig{
				StorageBackend:   "diskv",
				StorageNamespace: "gymignite.",
			},
			wantLog: LogConfig{LogSeverity: "warn", LogOutput: "stderr"},
		},
		{
			name:        "config file",
			args:        []string{"groups", "--config", "testdata/config.toml"},
			wantCommand: "groups",
			wantAPI: APIConfig{
				APIURL:       "https://gym.example.com",
				APITimeout:   30 * time.Second,
				APIRateLimit: 5,
			},
			wantStorage: StorageConfig{
				StorageBackend:   "file",
				StoragePath:      "/var/lib/gymctl/credentials.json",
				StorageNamespace: "test.",
			},
			wantLog: LogConfig{LogSeverity: "debug", LogOutput: "stdout"},
		},
		{
			name:        "flags override config file",
			args:        []string{"exercises", "--group", "back", "--config", "testdata/config.toml", "--api-url", "http://127.0.0.1:3333", "--storage-backend", "memory"},
			wantCommand: "exercises",
			wantAPI: APIConfig{
				APIURL:       "http://127.0.0.1:3333",
				APITimeout:   30 * time.Second,
				APIRateLimit: 5,
			},
			wantStorage: StorageConfig{
				StorageBackend:   "memory",
				StoragePath:      "/var/lib/gymctl/credentials.json",
				StorageNamespace: "test.",
			},
			wantLog: LogConfig{LogSeverity: "debug", LogOutput: "stdout"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cli := CLI{}
			kctx, err := newParser(t, &cli).Parse(tc.args)
			require.NoError(t, err)

			require.Equal(t, tc.wantCommand, kctx.Command())
			require.Equal(t, tc.wantAPI, cli.APIConfig)
			require.Equal(t, tc.wantStorage, cli.StorageConfig)
			require.Equal(t, tc.wantLog, cli.LogConfig)
		})
	}
}

func TestCLICommands(t *testing.T) {
	cli := CLI{}
	parser := newParser(t, &cli)

	kctx, err := parser.Parse([]string{"login", "-e", "a@b.com", "-p", "secret"})
	require.NoError(t, err)
	require.Equal(t, "login", kctx.Command())
	require.Equal(t, LoginCmdConfig{Email: "a@b.com", Password: "secret"}, cli.Login)

	kctx, err = parser.Parse([]string{"exercise", "42"})
	require.NoError(t, err)
	require.Equal(t, "exercise <id>", kctx.Command())
	require.Equal(t, "42", cli.Exercise.ID)

	kctx, err = parser.Parse([]string{"update-profile", "--name", "Ann B."})
	require.NoError(t, err)
	require.Equal(t, "update-profile", kctx.Command())
	require.Equal(t, "Ann B.", cli.UpdateProfile.Name)

	_, err = parser.Parse([]string{"whoami", "--storage-backend", "sqlite"})
	require.Error(t, err)
}

func TestCredentialsConfig(t *testing.T) {
	cli := CLI{StorageConfig: StorageConfig{StorageBackend: "memory"}}
	conf, err := cli.CredentialsConfig()
	require.NoError(t, err)
	require.Equal(t, credentials.BackendMemory, conf.Backend)
	require.Equal(t, credentials.DefaultNamespace, conf.Namespace)

	cli = CLI{StorageConfig: StorageConfig{StorageBackend: "file", StoragePath: "/tmp/creds.json", StorageNamespace: "a/b"}}
	_, err = cli.CredentialsConfig()
	require.True(t, trace.IsBadParameter(err))
}

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

package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
)

type backendFactory func(t *testing.T) Backend

func backendFactories(t *testing.T) map[string]backendFactory {
	return map[string]backendFactory{
		BackendMemory: func(t *testing.T) Backend {
			return NewMemoryBackend()
		},
		BackendDiskv: func(t *testing.T) Backend {
			b, err := NewDiskvBackend(filepath.Join(t.TempDir(), "state"))
			require.NoError(t, err)
			return b
		},
		BackendFile: func(t *testing.T) Backend {
			b, err := NewFileBackend(filepath.Join(t.TempDir(), "credentials.json"))
			require.NoError(t, err)
			return b
		},
	}
}

func TestStoreRecords(t *testing.T) {
	ctx := context.Background()

	for name, factory := range backendFactories(t) {
		factory := factory
		t.Run(name, func(t *testing.T) {
			store := NewStore(factory(t), DefaultNamespace)

			profile, err := store.Profile.Get(ctx)
			require.NoError(t, err)
			require.Nil(t, profile, "empty store must report an absent profile")

			first := UserProfile{ID: "1", Name: "A"}
			second := UserProfile{ID: "1", Name: "B", Email: "b@example.com"}
			require.NoError(t, store.Profile.Save(ctx, first))
			require.NoError(t, store.Profile.Save(ctx, second))

			profile, err = store.Profile.Get(ctx)
			require.NoError(t, err)
			require.Equal(t, second, *profile)

			pair := TokenPair{Token: "t1", RefreshToken: "r1"}
			require.NoError(t, store.Tokens.Save(ctx, pair))
			tokens, err := store.Tokens.Get(ctx)
			require.NoError(t, err)
			require.Equal(t, pair, *tokens)

			require.NoError(t, store.Profile.Remove(ctx))
			profile, err = store.Profile.Get(ctx)
			require.NoError(t, err)
			require.Nil(t, profile)

			// The token record is keyed independently.
			tokens, err = store.Tokens.Get(ctx)
			require.NoError(t, err)
			require.Equal(t, pair, *tokens)

			require.NoError(t, store.Tokens.Remove(ctx))
			require.NoError(t, store.Tokens.Remove(ctx), "removing an absent record must be a no-op")
			require.NoError(t, store.Profile.Remove(ctx))
		})
	}
}

func TestStoreDurability(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	reopen := map[string]func() Backend{
		BackendDiskv: func() Backend {
			b, err := NewDiskvBackend(filepath.Join(dir, "diskv"))
			require.NoError(t, err)
			return b
		},
		BackendFile: func() Backend {
			b, err := NewFileBackend(filepath.Join(dir, "file", "credentials.json"))
			require.NoError(t, err)
			return b
		},
	}

	for name, open := range reopen {
		open := open
		t.Run(name, func(t *testing.T) {
			store := NewStore(open(), DefaultNamespace)
			require.NoError(t, store.Profile.Save(ctx, UserProfile{ID: "42", Name: "Rodrigo"}))
			require.NoError(t, store.Tokens.Save(ctx, TokenPair{Token: "t", RefreshToken: "r"}))

			// A fresh backend instance simulates a process restart.
			restarted := NewStore(open(), DefaultNamespace)
			profile, err := restarted.Profile.Get(ctx)
			require.NoError(t, err)
			require.Equal(t, UserProfile{ID: "42", Name: "Rodrigo"}, *profile)
			tokens, err := restarted.Tokens.Get(ctx)
			require.NoError(t, err)
			require.Equal(t, TokenPair{Token: "t", RefreshToken: "r"}, *tokens)
		})
	}
}

func TestFileBackendPermissions(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "credentials.json")
	backend, err := NewFileBackend(filename)
	require.NoError(t, err)
	require.NoError(t, backend.Write(context.Background(), "gymignite.token", []byte(`{"token":"t"}`)))

	info, err := os.Stat(filename)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestCorruptedRecord(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := NewStore(backend, "test.")

	require.NoError(t, backend.Write(ctx, store.Profile.Key(), []byte("{not json")))
	_, err := store.Profile.Get(ctx)
	require.True(t, trace.IsBadParameter(err), "got %v", err)
}

func TestCorruptedFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(filename, []byte("garbage"), 0600))

	backend, err := NewFileBackend(filename)
	require.NoError(t, err)
	_, err = backend.Read(context.Background(), "gymignite.user")
	require.True(t, trace.IsBadParameter(err), "got %v", err)
}

func TestStoreNamespace(t *testing.T) {
	store := NewStore(NewMemoryBackend(), DefaultNamespace)
	require.Equal(t, "gymignite.user", store.Profile.Key())
	require.Equal(t, "gymignite.token", store.Tokens.Key())
}

func TestConfigCheckAndSetDefaults(t *testing.T) {
	testCases := []struct {
		name    string
		in      Config
		want    Config
		wantErr bool
	}{
		{
			name:    "diskv requires a path",
			in:      Config{},
			wantErr: true,
		},
		{
			name: "diskv defaults",
			in:   Config{Path: "/var/lib/gymctl"},
			want: Config{Backend: BackendDiskv, Path: "/var/lib/gymctl", Namespace: DefaultNamespace},
		},
		{
			name: "memory needs no path",
			in:   Config{Backend: BackendMemory, Namespace: "test."},
			want: Config{Backend: BackendMemory, Namespace: "test."},
		},
		{
			name:    "unknown backend",
			in:      Config{Backend: "keychain", Path: "x"},
			wantErr: true,
		},
		{
			name:    "namespace with separator",
			in:      Config{Backend: BackendMemory, Namespace: "a/b"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.CheckAndSetDefaults()
			if tc.wantErr {
				require.True(t, trace.IsBadParameter(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, tc.in)
		})
	}
}

func TestNewBackend(t *testing.T) {
	backend, err := NewBackend(Config{Backend: BackendFile, Path: filepath.Join(t.TempDir(), "c.json")})
	require.NoError(t, err)
	require.IsType(t, &FileBackend{}, backend)

	backend, err = NewBackend(Config{Backend: BackendMemory})
	require.NoError(t, err)
	require.IsType(t, &MemoryBackend{}, backend)
}

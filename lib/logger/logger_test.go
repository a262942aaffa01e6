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

package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestConfigCheckAndSetDefaults(t *testing.T) {
	conf := Config{}
	require.NoError(t, conf.CheckAndSetDefaults())
	require.Equal(t, "stderr", conf.Output)
	require.Equal(t, "warn", conf.Severity)

	conf = Config{Severity: "loud"}
	err := conf.CheckAndSetDefaults()
	require.True(t, trace.IsBadParameter(err))
}

func TestSetupWritesToFile(t *testing.T) {
	defer log.SetOutput(os.Stderr)
	defer log.SetLevel(log.InfoLevel)

	path := filepath.Join(t.TempDir(), "gymctl.log")
	require.NoError(t, Setup(Config{Output: path, Severity: "debug"}))
	require.Equal(t, log.DebugLevel, log.GetLevel())

	log.Debug("session restored")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "session restored")
}

func TestContextLogger(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, Standard(), Get(ctx))

	ctx, entry := WithField(ctx, "op", "sign_in")
	require.Equal(t, entry, Get(ctx))
	require.Equal(t, "sign_in", entry.(*log.Entry).Data["op"])

	ctx, entry = WithFields(ctx, log.Fields{"epoch": 2})
	data := entry.(*log.Entry).Data
	require.Equal(t, "sign_in", data["op"])
	require.Equal(t, 2, data["epoch"])
	require.Equal(t, entry, Get(ctx))
}

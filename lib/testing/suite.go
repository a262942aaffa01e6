package testing

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/gravitational/session-client/lib/credentials"
	"github.com/gravitational/session-client/lib/logger"
	"github.com/gravitational/session-client/lib/testing/fakeapi"
)

// Suite carries the per-test context, temporary storage and the fake API.
type Suite struct {
	suite.Suite
	ctx context.Context
}

// SetContext sets a per-test context with a timeout and a test-scoped logger.
func (s *Suite) SetContext(timeout time.Duration) context.Context {
	t := s.T()
	t.Helper()

	require.Nil(t, s.ctx, "Context cannot be set twice")

	ctx, _ := logger.WithField(context.Background(), "test", t.Name())
	ctx, cancel := context.WithTimeout(ctx, timeout)
	t.Cleanup(func() {
		cancel()
		s.ctx = nil
	})
	s.ctx = ctx
	return ctx
}

// Ctx returns the per-test context, creating one with a 5s timeout if needed.
func (s *Suite) Ctx() context.Context {
	t := s.T()
	t.Helper()

	if ctx := s.ctx; ctx != nil {
		return ctx
	}
	return s.SetContext(5 * time.Second)
}

// TempPath returns a path inside a per-test temporary directory.
func (s *Suite) TempPath(name string) string {
	t := s.T()
	t.Helper()

	dir, err := os.MkdirTemp("", "session-client-")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, os.RemoveAll(dir))
	})
	return filepath.Join(dir, name)
}

// NewStore returns a credential store on a fresh backend of the given kind.
func (s *Suite) NewStore(backend string) (*credentials.Store, credentials.Backend) {
	t := s.T()
	t.Helper()

	conf := credentials.Config{Backend: backend}
	if backend != credentials.BackendMemory {
		conf.Path = s.TempPath("credentials")
	}
	b, err := credentials.NewBackend(conf)
	require.NoError(t, err)
	return credentials.NewStore(b, credentials.DefaultNamespace), b
}

// StartFakeAPI starts a fake API that is stopped when the test ends.
func (s *Suite) StartFakeAPI() *fakeapi.Server {
	t := s.T()
	t.Helper()

	srv := fakeapi.New()
	t.Cleanup(srv.Close)
	return srv
}

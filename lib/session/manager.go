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

// Package session keeps the signed-in user, the credential store and the
// transport authorization consistent with each other.
package session

import (
	"context"
	"sync"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/gravitational/session-client/lib/api"
	"github.com/gravitational/session-client/lib/credentials"
	"github.com/gravitational/session-client/lib/logger"
)

// ErrSuperseded is returned by an operation whose session was signed out or
// replaced while it was running. Such an operation leaves no trace in the store.
var ErrSuperseded error = &trace.CompareFailedError{
	Message: "session changed while the operation was in progress",
}

// Authenticator exchanges user credentials for a session.
type Authenticator interface {
	CreateSession(ctx context.Context, email, password string) (*api.SessionResponse, error)
}

// Config holds the manager collaborators.
type Config struct {
	// Store persists the profile and the token pair.
	Store *credentials.Store
	// Authorization is the transport credential.
	Authorization *api.AuthorizationState
	// API creates sessions.
	API Authenticator
	// Hooks reports rejected credentials and token rotations.
	Hooks *api.Hooks
	// Clock stamps state changes.
	Clock clockwork.Clock
	// Log is used where no request context exists.
	Log log.FieldLogger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Store == nil || c.Store.Profile == nil || c.Store.Tokens == nil {
		return trace.BadParameter("missing credential store")
	}
	if c.Authorization == nil {
		return trace.BadParameter("missing authorization state")
	}
	if c.API == nil {
		return trace.BadParameter("missing API client")
	}
	if c.Hooks == nil {
		return trace.BadParameter("missing hooks")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = logger.Standard()
	}
	return nil
}

// Manager owns the session state.
type Manager struct {
	conf Config

	// mu guards state, tokens and the transport authorization.
	mu          sync.Mutex
	state       State
	tokens      credentials.TokenPair
	signOuts    uint64
	storageOps  int
	nextID      uint64
	subscribers map[uint64]func(State)
	seq         uint64

	// notifyMu orders snapshot delivery. Acquired after mu is released.
	notifyMu  sync.Mutex
	delivered uint64

	// storeMu serializes credential store critical sections. Acquired before mu.
	storeMu sync.Mutex

	startMu   sync.Mutex
	disposers []api.Disposable
}

// NewManager returns a manager in PhaseUninitialized.
func NewManager(conf Config) (*Manager, error) {
	if err := conf.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	m := &Manager{
		conf:        conf,
		subscribers: make(map[uint64]func(State)),
	}
	m.state.ChangedAt = conf.Clock.Now()
	return m, nil
}

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe calls fn with a snapshot after state changes. Snapshots are
// delivered in order; one superseded by a newer snapshot before delivery is
// skipped. fn must not call methods that change the session.
func (m *Manager) Subscribe(fn func(State)) api.Disposable {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subscribers, id)
		})
	}
}

// Start registers the manager with the transport hooks. Calling it again
// replaces the previous registration.
func (m *Manager) Start() {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.disposeLocked()
	m.disposers = []api.Disposable{
		m.conf.Hooks.RegisterInvalidationListener(m.onInvalidated),
		m.conf.Hooks.RegisterRefreshHandler(m),
	}
}

// Close removes the registrations made by Start.
func (m *Manager) Close() {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	m.disposeLocked()
}

func (m *Manager) disposeLocked() {
	for _, dispose := range m.disposers {
		dispose()
	}
	m.disposers = nil
}

func (m *Manager) onInvalidated() {
	m.conf.Log.Info("Credentials were rejected by the API, signing out")
	if err := m.SignOut(context.Background()); err != nil {
		m.conf.Log.WithError(err).Error("Failed to sign out after credentials were rejected")
	}
}

// Restore loads persisted credentials. It may be called once.
func (m *Manager) Restore(ctx context.Context) error {
	log := logger.Get(ctx)

	m.mu.Lock()
	if m.state.Phase != PhaseUninitialized {
		phase := m.state.Phase
		m.mu.Unlock()
		return trace.CompareFailed("cannot restore a session in phase %v", phase)
	}
	m.state.Phase = PhaseRestoring
	m.beginStorageLocked()
	m.unlockAndNotify()

	m.storeMu.Lock()
	profile, pair, err := m.load(ctx)
	m.storeMu.Unlock()

	m.mu.Lock()
	m.endStorageLocked()
	// A sign-in or sign-out that ran meanwhile takes precedence.
	if m.state.Phase == PhaseRestoring {
		if err == nil && profile != nil && pair != nil {
			m.installLocked(*profile, *pair)
			log.WithField("user", profile.Email).Debug("Session restored")
		} else {
			m.clearLocked()
			log.Debug("No session to restore")
		}
	}
	m.unlockAndNotify()

	if err != nil {
		return trace.Wrap(err, "restoring session")
	}
	return nil
}

func (m *Manager) load(ctx context.Context) (*credentials.UserProfile, *credentials.TokenPair, error) {
	profile, err := m.conf.Store.Profile.Get(ctx)
	if err != nil {
		return nil, nil, trace.Wrap(err)
	}
	pair, err := m.conf.Store.Tokens.Get(ctx)
	if err != nil {
		return nil, nil, trace.Wrap(err)
	}
	if profile == nil || pair == nil || pair.Token == "" {
		return nil, nil, nil
	}
	return profile, pair, nil
}

// SignIn creates a session for email and password. A response without a
// profile or without both tokens is ignored.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	log := logger.Get(ctx).WithField("user", email)

	m.mu.Lock()
	signOuts := m.signOuts
	m.mu.Unlock()

	resp, err := m.conf.API.CreateSession(ctx, email, password)
	if err != nil {
		return trace.Wrap(err)
	}
	if !resp.Complete() {
		log.Debug("Sign-in response is incomplete, ignoring")
		return nil
	}
	pair := credentials.TokenPair{Token: resp.Token, RefreshToken: resp.RefreshToken}

	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.Lock()
	if m.signOuts != signOuts {
		m.mu.Unlock()
		log.Debug("Sign-in was superseded by a sign-out")
		return ErrSuperseded
	}
	m.beginStorageLocked()
	m.unlockAndNotify()

	err = m.persist(ctx, *resp.User, pair)

	m.mu.Lock()
	m.endStorageLocked()
	// A sign-out that ran during persist is waiting on storeMu to erase
	// the records; the session must stay signed out.
	superseded := err == nil && m.signOuts != signOuts
	if err == nil && !superseded {
		m.state.Epoch++
		m.installLocked(*resp.User, pair)
	}
	m.unlockAndNotify()

	if err != nil {
		return trace.Wrap(err)
	}
	if superseded {
		log.Debug("Sign-in was superseded by a sign-out")
		return ErrSuperseded
	}
	log.Debug("Signed in")
	return nil
}

// persist writes both records. A failure leaves neither behind.
func (m *Manager) persist(ctx context.Context, profile credentials.UserProfile, pair credentials.TokenPair) error {
	if err := m.conf.Store.Profile.Save(ctx, profile); err != nil {
		return trace.Wrap(err)
	}
	if err := m.conf.Store.Tokens.Save(ctx, pair); err != nil {
		return trace.NewAggregate(err, m.conf.Store.Profile.Remove(ctx))
	}
	return nil
}

// SignOut ends the session. It is safe to call without a session.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.signOuts++
	m.state.Epoch++
	m.clearLocked()
	m.beginStorageLocked()
	m.unlockAndNotify()

	m.storeMu.Lock()
	profileErr := m.conf.Store.Profile.Remove(ctx)
	tokensErr := m.conf.Store.Tokens.Remove(ctx)
	m.storeMu.Unlock()

	m.mu.Lock()
	m.endStorageLocked()
	m.unlockAndNotify()

	if err := trace.NewAggregate(profileErr, tokensErr); err != nil {
		return trace.Wrap(err)
	}
	logger.Get(ctx).Debug("Signed out")
	return nil
}

// UpdateUserProfile publishes profile and then persists it. The published
// profile is kept even when persisting fails.
func (m *Manager) UpdateUserProfile(ctx context.Context, profile credentials.UserProfile) error {
	m.mu.Lock()
	if m.state.Phase != PhaseAuthenticated {
		phase := m.state.Phase
		m.mu.Unlock()
		return trace.CompareFailed("cannot update the profile in phase %v", phase)
	}
	epoch := m.state.Epoch
	m.state.Profile = profile
	m.beginStorageLocked()
	m.unlockAndNotify()

	err := m.saveIfCurrent(epoch, func() error {
		return m.conf.Store.Profile.Save(ctx, profile)
	})
	if err != nil {
		return trace.Wrap(err)
	}
	logger.Get(ctx).WithField("user", profile.Email).Debug("Profile updated")
	return nil
}

// RefreshToken returns the refresh token of the current session.
func (m *Manager) RefreshToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != PhaseAuthenticated {
		return ""
	}
	return m.tokens.RefreshToken
}

// TokensRefreshed installs a rotated token pair and persists it.
func (m *Manager) TokensRefreshed(ctx context.Context, pair credentials.TokenPair) error {
	m.mu.Lock()
	if m.state.Phase != PhaseAuthenticated {
		m.mu.Unlock()
		return trace.CompareFailed("no session to install refreshed tokens into")
	}
	epoch := m.state.Epoch
	m.tokens = pair
	m.conf.Authorization.Set(pair.Token)
	m.state.RefreshedToken = true
	m.beginStorageLocked()
	m.unlockAndNotify()

	err := m.saveIfCurrent(epoch, func() error {
		return m.conf.Store.Tokens.Save(ctx, pair)
	})
	if err != nil {
		return trace.Wrap(err)
	}
	logger.Get(ctx).Debug("Refreshed tokens stored")
	return nil
}

// saveIfCurrent runs save unless a sign-in or sign-out happened after epoch.
// It ends the storage operation begun by the caller.
func (m *Manager) saveIfCurrent(epoch uint64, save func() error) error {
	m.storeMu.Lock()
	var err error
	if m.State().Epoch != epoch {
		err = ErrSuperseded
	} else {
		err = save()
	}
	m.storeMu.Unlock()

	m.mu.Lock()
	m.endStorageLocked()
	m.unlockAndNotify()
	return err
}

func (m *Manager) installLocked(profile credentials.UserProfile, pair credentials.TokenPair) {
	m.tokens = pair
	m.conf.Authorization.Set(pair.Token)
	m.state.Profile = profile
	m.state.Phase = PhaseAuthenticated
	m.state.RefreshedToken = false
}

func (m *Manager) clearLocked() {
	m.tokens = credentials.TokenPair{}
	m.conf.Authorization.Clear()
	m.state.Profile = credentials.UserProfile{}
	m.state.Phase = PhaseUnauthenticated
	m.state.RefreshedToken = false
}

func (m *Manager) beginStorageLocked() {
	m.storageOps++
	m.state.StorageInProgress = true
}

func (m *Manager) endStorageLocked() {
	m.storageOps--
	m.state.StorageInProgress = m.storageOps > 0
}

// unlockAndNotify stamps the state, releases mu and delivers the snapshot to
// subscribers outside of the lock.
func (m *Manager) unlockAndNotify() {
	m.state.ChangedAt = m.conf.Clock.Now()
	m.seq++
	seq, snapshot := m.seq, m.state
	subscribers := make([]func(State), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subscribers = append(subscribers, fn)
	}
	m.mu.Unlock()

	m.deliver(seq, snapshot, subscribers)
}

// deliver hands snapshot to subscribers unless a newer one was delivered.
func (m *Manager) deliver(seq uint64, snapshot State, subscribers []func(State)) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	if seq <= m.delivered {
		return
	}
	m.delivered = seq
	for _, fn := range subscribers {
		fn(snapshot)
	}
}

var _ api.RefreshHandler = (*Manager)(nil)

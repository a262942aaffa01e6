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

// Package fakeapi is an in-process stand-in for the gym API used by tests.
package fakeapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/julienschmidt/httprouter"
	log "github.com/sirupsen/logrus"

	"github.com/gravitational/session-client/lib/credentials"
)

const (
	// MessageExpired is returned for an access token that can be refreshed.
	MessageExpired = "token.expired"
	// MessageRevoked is returned for an access token that cannot be refreshed.
	MessageRevoked = "token.revoked"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Exercise mirrors the API exercise resource.
type Exercise struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Group       string `json:"group"`
	Series      int    `json:"series"`
	Repetitions int    `json:"repetitions"`
}

type account struct {
	password string
	profile  credentials.UserProfile
}

// Server is a fake gym API.
type Server struct {
	srv *httptest.Server

	mu            sync.Mutex
	accounts      map[string]*account
	accessTokens  map[string]string
	refreshTokens map[string]string
	expired       map[string]bool
	revoked       map[string]bool
	exercises     []Exercise
	omitRefresh   bool
	failRefresh   bool
	sessionsGate  chan struct{}

	refreshCalls  int32
	sessionCalls  int32
	requestIDs    sync.Map
	authorization chan string
}

// New starts a fake API seeded with a few exercises.
func New() *Server {
	router := httprouter.New()
	s := &Server{
		accounts:      make(map[string]*account),
		accessTokens:  make(map[string]string),
		refreshTokens: make(map[string]string),
		expired:       make(map[string]bool),
		revoked:       make(map[string]bool),
		exercises: []Exercise{
			{ID: "1", Name: "Pulley", Group: "back", Series: 3, Repetitions: 12},
			{ID: "2", Name: "Rowing", Group: "back", Series: 4, Repetitions: 10},
			{ID: "3", Name: "Curl", Group: "biceps", Series: 3, Repetitions: 15},
		},
		authorization: make(chan string, 100),
	}

	router.POST("/sessions", s.createSession)
	router.POST("/sessions/refresh-token", s.refreshSession)
	router.GET("/groups", s.authenticated(s.listGroups))
	// httprouter cannot hold both /exercises/bygroup/:group and /exercises/:id.
	router.GET("/exercises/*path", s.authenticated(s.routeExercises))
	router.PUT("/users", s.authenticated(s.updateUser))

	s.srv = httptest.NewServer(router)
	return s
}

// URL is the base URL of the server.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close stops the server.
func (s *Server) Close() {
	s.srv.Close()
}

// AddUser registers an account.
func (s *Server) AddUser(profile credentials.UserProfile, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[profile.Email] = &account{password: password, profile: profile}
}

// Profile returns the server-side profile of an account.
func (s *Server) Profile(email string) credentials.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[email]; ok {
		return acc.profile
	}
	return credentials.UserProfile{}
}

// IssueTokens creates a valid token pair for email without a sign-in.
func (s *Server) IssueTokens(email string) credentials.TokenPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(email)
}

// Expire makes token fail with MessageExpired.
func (s *Server) Expire(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired[token] = true
}

// Revoke makes token fail with MessageRevoked.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// OmitRefreshToken makes POST /sessions leave out the refresh token.
func (s *Server) OmitRefreshToken(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitRefresh = omit
}

// FailRefresh makes POST /sessions/refresh-token reject every refresh token.
func (s *Server) FailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// HoldSessions blocks POST /sessions until the returned function is called.
func (s *Server) HoldSessions() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.sessionsGate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// RefreshCalls is the number of refresh requests served.
func (s *Server) RefreshCalls() int {
	return int(atomic.LoadInt32(&s.refreshCalls))
}

// SessionCalls is the number of sign-in requests received.
func (s *Server) SessionCalls() int {
	return int(atomic.LoadInt32(&s.sessionCalls))
}

// HasRequestID reports whether a request carried the given X-Request-Id.
func (s *Server) HasRequestID(id string) bool {
	_, ok := s.requestIDs.Load(id)
	return ok
}

// Authorization returns the channel of Authorization headers seen by
// authenticated endpoints.
func (s *Server) Authorization() <-chan string {
	return s.authorization
}

func (s *Server) issueLocked(email string) credentials.TokenPair {
	pair := credentials.TokenPair{Token: uuid.NewString(), RefreshToken: uuid.NewString()}
	s.accessTokens[pair.Token] = email
	s.refreshTokens[pair.RefreshToken] = email
	return pair
}

func (s *Server) createSession(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	atomic.AddInt32(&s.sessionCalls, 1)
	s.trackRequestID(r)

	s.mu.Lock()
	gate := s.sessionsGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[req.Email]
	if !ok || acc.password != req.Password {
		writeError(rw, http.StatusUnauthorized, "E-mail e/ou senha incorreta.")
		return
	}
	pair := s.issueLocked(req.Email)
	resp := map[string]interface{}{
		"user":  acc.profile,
		"token": pair.Token,
	}
	if !s.omitRefresh {
		resp["refresh_token"] = pair.RefreshToken
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) refreshSession(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	atomic.AddInt32(&s.refreshCalls, 1)
	s.trackRequestID(r)

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.refreshTokens[req.RefreshToken]
	if !ok || s.failRefresh {
		writeError(rw, http.StatusUnauthorized, "refresh_token.invalid")
		return
	}
	delete(s.refreshTokens, req.RefreshToken)
	writeJSON(rw, http.StatusOK, s.issueLocked(email))
}

type authenticatedHandle func(rw http.ResponseWriter, r *http.Request, ps httprouter.Params, email string)

func (s *Server) authenticated(handle authenticatedHandle) httprouter.Handle {
	return func(rw http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s.trackRequestID(r)
		header := r.Header.Get("Authorization")
		select {
		case s.authorization <- header:
		default:
		}
		token := strings.TrimPrefix(header, "Bearer ")

		s.mu.Lock()
		email, ok := s.accessTokens[token]
		expired, revoked := s.expired[token], s.revoked[token]
		s.mu.Unlock()

		switch {
		case header == "" || !ok:
			writeError(rw, http.StatusUnauthorized, "token.invalid")
		case revoked:
			writeError(rw, http.StatusUnauthorized, MessageRevoked)
		case expired:
			writeError(rw, http.StatusUnauthorized, MessageExpired)
		default:
			handle(rw, r, ps, email)
		}
	}
}

func (s *Server) listGroups(rw http.ResponseWriter, _ *http.Request, _ httprouter.Params, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	groups := []string{}
	for _, exercise := range s.exercises {
		if !seen[exercise.Group] {
			seen[exercise.Group] = true
			groups = append(groups, exercise.Group)
		}
	}
	writeJSON(rw, http.StatusOK, groups)
}

func (s *Server) routeExercises(rw http.ResponseWriter, _ *http.Request, ps httprouter.Params, _ string) {
	parts := strings.Split(strings.Trim(ps.ByName("path"), "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "bygroup":
		s.listExercises(rw, parts[1])
	case len(parts) == 1 && parts[0] != "":
		s.getExercise(rw, parts[0])
	default:
		writeError(rw, http.StatusNotFound, "not found")
	}
}

func (s *Server) listExercises(rw http.ResponseWriter, group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exercises := []Exercise{}
	for _, exercise := range s.exercises {
		if exercise.Group == group {
			exercises = append(exercises, exercise)
		}
	}
	writeJSON(rw, http.StatusOK, exercises)
}

func (s *Server) getExercise(rw http.ResponseWriter, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, exercise := range s.exercises {
		if exercise.ID == id {
			writeJSON(rw, http.StatusOK, exercise)
			return
		}
	}
	writeError(rw, http.StatusNotFound, "Exercício não encontrado.")
}

func (s *Server) updateUser(rw http.ResponseWriter, r *http.Request, _ httprouter.Params, email string) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(rw, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[email]; ok {
		acc.profile.Name = req.Name
	}
	rw.WriteHeader(http.StatusOK)
}

func (s *Server) trackRequestID(r *http.Request) {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		s.requestIDs.Store(id, struct{}{})
	}
}

func writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode fake API response")
	}
}

func writeError(rw http.ResponseWriter, status int, message string) {
	writeJSON(rw, status, map[string]string{"status": "error", "message": message})
}

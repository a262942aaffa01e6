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
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/gravitational/trace"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"

	"github.com/gravitational/session-client/lib/api"
	"github.com/gravitational/session-client/lib/credentials"
	"github.com/gravitational/session-client/lib/logger"
	"github.com/gravitational/session-client/lib/session"
)

// maxConcurrentLoads bounds parallel API calls of a single command.
const maxConcurrentLoads = 4

// App wires the credential store, the API client and the session manager.
type App struct {
	out     io.Writer
	client  *api.Client
	manager *session.Manager
}

// NewApp builds the application from the CLI flags and registers the
// session manager with the transport.
func NewApp(cli *CLI, out io.Writer) (*App, error) {
	storageConf, err := cli.CredentialsConfig()
	if err != nil {
		return nil, trace.Wrap(err)
	}
	backend, err := credentials.NewBackend(storageConf)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	auth := api.NewAuthorizationState()
	hooks := api.NewHooks()
	client, err := api.NewClient(cli.APIClientConfig(), auth, hooks)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	manager, err := session.NewManager(session.Config{
		Store:         credentials.NewStore(backend, storageConf.Namespace),
		Authorization: auth,
		API:           client,
		Hooks:         hooks,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	manager.Start()

	return &App{out: out, client: client, manager: manager}, nil
}

// Close unregisters the session manager.
func (a *App) Close() {
	a.manager.Close()
}

// Restore loads the stored session. A broken store leaves the user signed out.
func (a *App) Restore(ctx context.Context) {
	if err := a.manager.Restore(ctx); err != nil {
		logger.Get(ctx).WithError(err).Warn("Failed to restore the stored session")
	}
}

func (a *App) requireSession() (credentials.UserProfile, error) {
	state := a.manager.State()
	if !state.Authenticated() {
		return credentials.UserProfile{}, trace.AccessDenied("not signed in, run gymctl login")
	}
	return state.Profile, nil
}

// Login signs in with email and password.
func (a *App) Login(ctx context.Context, email, password string) error {
	if err := a.manager.SignIn(ctx, email, password); err != nil {
		if api.IsUnauthorized(err) {
			return trace.AccessDenied("invalid e-mail or password")
		}
		return trace.Wrap(err)
	}
	state := a.manager.State()
	if !state.Authenticated() {
		return trace.BadParameter("the API returned an incomplete session")
	}
	fmt.Fprintf(a.out, "Signed in as %s <%s>\n", state.Profile.Name, state.Profile.Email)
	return nil
}

// Logout signs out.
func (a *App) Logout(ctx context.Context) error {
	if err := a.manager.SignOut(ctx); err != nil {
		return trace.Wrap(err)
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

// Whoami prints the signed-in user.
func (a *App) Whoami(ctx context.Context) error {
	profile, err := a.requireSession()
	if err != nil {
		return trace.Wrap(err)
	}
	fmt.Fprintf(a.out, "ID:    %s\nName:  %s\nEmail: %s\n", profile.ID, profile.Name, profile.Email)
	if profile.Avatar != "" {
		fmt.Fprintf(a.out, "Avatar: %s\n", profile.Avatar)
	}
	return nil
}

// Groups prints the muscle groups with the number of exercises in each.
func (a *App) Groups(ctx context.Context) error {
	if _, err := a.requireSession(); err != nil {
		return trace.Wrap(err)
	}
	groups, err := a.client.ListGroups(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	exercises, err := a.loadExercises(ctx, groups)
	if err != nil {
		return trace.Wrap(err)
	}

	table := newTable(a.out, "Group", "Exercises")
	for _, group := range groups {
		table.Append([]string{group, strconv.Itoa(len(exercises[group]))})
	}
	table.Render()
	return nil
}

// Exercises prints the exercises of group, or of every group when it is empty.
func (a *App) Exercises(ctx context.Context, group string) error {
	if _, err := a.requireSession(); err != nil {
		return trace.Wrap(err)
	}
	groups := []string{group}
	if group == "" {
		var err error
		if groups, err = a.client.ListGroups(ctx); err != nil {
			return trace.Wrap(err)
		}
	}
	exercises, err := a.loadExercises(ctx, groups)
	if err != nil {
		return trace.Wrap(err)
	}

	table := newTable(a.out, "ID", "Name", "Group", "Series", "Repetitions")
	for _, group := range groups {
		for _, exercise := range exercises[group] {
			table.Append([]string{
				exercise.ID,
				exercise.Name,
				exercise.Group,
				strconv.Itoa(exercise.Series),
				strconv.Itoa(exercise.Repetitions),
			})
		}
	}
	table.Render()
	return nil
}

// Exercise prints a single exercise.
func (a *App) Exercise(ctx context.Context, id string) error {
	if _, err := a.requireSession(); err != nil {
		return trace.Wrap(err)
	}
	exercise, err := a.client.GetExercise(ctx, id)
	if err != nil {
		return trace.Wrap(err)
	}
	fmt.Fprintf(a.out, "%s (%s): %d series x %d repetitions\n",
		exercise.Name, exercise.Group, exercise.Series, exercise.Repetitions)
	return nil
}

// UpdateProfile changes the display name and optionally the password.
func (a *App) UpdateProfile(ctx context.Context, update api.UserUpdate) error {
	profile, err := a.requireSession()
	if err != nil {
		return trace.Wrap(err)
	}
	if err := a.client.UpdateUser(ctx, update); err != nil {
		return trace.Wrap(err)
	}
	profile.Name = update.Name
	if err := a.manager.UpdateUserProfile(ctx, profile); err != nil {
		return trace.Wrap(err)
	}
	fmt.Fprintf(a.out, "Profile updated: %s <%s>\n", profile.Name, profile.Email)
	return nil
}

// loadExercises fetches the exercises of every group concurrently.
func (a *App) loadExercises(ctx context.Context, groups []string) (map[string][]api.Exercise, error) {
	var mu sync.Mutex
	result := make(map[string][]api.Exercise, len(groups))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			exercises, err := a.client.ListExercisesByGroup(ctx, group)
			if err != nil {
				return trace.Wrap(err, "loading exercises of %q", group)
			}
			sort.Slice(exercises, func(i, j int) bool { return exercises[i].Name < exercises[j].Name })
			mu.Lock()
			result[group] = exercises
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, trace.Wrap(err)
	}
	return result, nil
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	return table
}

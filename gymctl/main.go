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
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/gravitational/trace"
	"github.com/manifoldco/promptui"

	"github.com/gravitational/session-client/lib/api"
	"github.com/gravitational/session-client/lib/logger"
)

const (
	appName        = "gymctl"
	appDescription = "Signs in to the gym API and browses exercises"
)

func main() {
	logger.Init()

	var cli CLI
	kctx := kong.Parse(
		&cli,
		kong.UsageOnError(),
		kong.Configuration(KongTOMLResolver),
		kong.Name(appName),
		kong.Description(appDescription),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, kctx.Command(), &cli)
	cancel()
	if err != nil && cli.Debug {
		fmt.Fprintln(os.Stderr, trace.DebugReport(err))
	}
	kctx.FatalIfErrorf(err)
}

func run(ctx context.Context, command string, cli *CLI) error {
	if command == "version" {
		fmt.Printf("%s %s %s\n", appName, Version, Gitref)
		return nil
	}

	logConf := cli.LoggerConfig()
	if err := logger.Setup(logConf); err != nil {
		return trace.Wrap(err)
	}
	ctx, _ = logger.WithField(ctx, "command", command)

	app, err := NewApp(cli, os.Stdout)
	if err != nil {
		return trace.Wrap(err)
	}
	defer app.Close()

	app.Restore(ctx)

	switch command {
	case "login":
		email, password, err := promptCredentials(cli.Login)
		if err != nil {
			return trace.Wrap(err)
		}
		return app.Login(ctx, email, password)
	case "logout":
		return app.Logout(ctx)
	case "whoami":
		return app.Whoami(ctx)
	case "groups":
		return app.Groups(ctx)
	case "exercises":
		return app.Exercises(ctx, cli.Exercises.Group)
	case "exercise <id>":
		return app.Exercise(ctx, cli.Exercise.ID)
	case "update-profile":
		return app.UpdateProfile(ctx, api.UserUpdate{
			Name:        cli.UpdateProfile.Name,
			Password:    cli.UpdateProfile.Password,
			OldPassword: cli.UpdateProfile.OldPassword,
		})
	default:
		return trace.BadParameter("unknown command %q", command)
	}
}

// promptCredentials asks for the values missing from the login flags.
func promptCredentials(conf LoginCmdConfig) (string, string, error) {
	email, password := conf.Email, conf.Password
	if email == "" {
		prompt := promptui.Prompt{
			Label: "E-mail",
			Validate: func(s string) error {
				if s == "" {
					return trace.BadParameter("e-mail is required")
				}
				return nil
			},
		}
		var err error
		if email, err = prompt.Run(); err != nil {
			return "", "", trace.Wrap(err)
		}
	}
	if password == "" {
		prompt := promptui.Prompt{Label: "Password", Mask: '*'}
		var err error
		if password, err = prompt.Run(); err != nil {
			return "", "", trace.Wrap(err)
		}
	}
	return email, password, nil
}

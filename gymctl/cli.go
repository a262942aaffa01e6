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
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gravitational/trace"

	"github.com/gravitational/session-client/lib/api"
	"github.com/gravitational/session-client/lib/credentials"
	"github.com/gravitational/session-client/lib/logger"
)

// APIConfig is the gym API connection configuration
type APIConfig struct {
	// APIURL is the base URL of the API
	APIURL string `help:"Gym API base URL" name:"api-url" default:"http://localhost:3333" env:"GYMCTL_API_URL"`

	// APITimeout bounds every API request
	APITimeout time.Duration `help:"API request timeout" name:"api-timeout" default:"10s" env:"GYMCTL_API_TIMEOUT"`

	// APIRateLimit is the number of requests per second allowed for one endpoint
	APIRateLimit uint64 `help:"Requests per second per endpoint, 0 disables throttling" name:"api-rate-limit" default:"0" env:"GYMCTL_API_RATE_LIMIT"`
}

// StorageConfig is the credential store configuration
type StorageConfig struct {
	// StorageBackend selects the credential backend
	StorageBackend string `help:"Credential storage backend" name:"storage-backend" enum:"diskv,file,memory" default:"diskv" env:"GYMCTL_STORAGE_BACKEND"`

	// StoragePath is the diskv directory or the credentials file
	StoragePath string `help:"Credential storage location, defaults to the user config directory" name:"storage-path" env:"GYMCTL_STORAGE_PATH"`

	// StorageNamespace prefixes the stored record keys
	StorageNamespace string `help:"Credential record key prefix" name:"storage-namespace" default:"gymignite." env:"GYMCTL_STORAGE_NAMESPACE"`
}

// LogConfig is the logging configuration
type LogConfig struct {
	// LogSeverity is the minimum severity of log entries
	LogSeverity string `help:"Log severity" name:"log-severity" enum:"debug,info,warn,warning,error" default:"warn" env:"GYMCTL_LOG_SEVERITY"`

	// LogOutput is stderr, stdout or a file path
	LogOutput string `help:"Log output: stderr, stdout or a file path" name:"log-output" default:"stderr" env:"GYMCTL_LOG_OUTPUT"`
}

// LoginCmdConfig holds the login command options
type LoginCmdConfig struct {
	// Email is prompted for when empty
	Email string `help:"Account e-mail" short:"e"`

	// Password is prompted for when empty
	Password string `help:"Account password" short:"p"`
}

// ExercisesCmdConfig holds the exercises command options
type ExercisesCmdConfig struct {
	// Group limits the listing to a muscle group
	Group string `help:"Muscle group, all groups when empty" short:"g"`
}

// ExerciseCmdConfig holds the exercise command options
type ExerciseCmdConfig struct {
	// ID is the exercise to show
	ID string `arg:"true" help:"Exercise ID" required:"true"`
}

// UpdateProfileCmdConfig holds the update-profile command options
type UpdateProfileCmdConfig struct {
	// Name is the new display name
	Name string `help:"New display name" required:"true"`

	// Password is the new password
	Password string `help:"New password"`

	// OldPassword is required to change the password
	OldPassword string `help:"Current password, required with --password" name:"old-password"`
}

// CLI represents command structure
type CLI struct {
	// Config is the path to configuration file
	Config kong.ConfigFlag `help:"Path to TOML configuration file" optional:"true" type:"existingfile" env:"GYMCTL_CONFIG"`

	// Debug prints debug reports on errors
	Debug bool `help:"Print debug report on errors" short:"d"`

	APIConfig
	StorageConfig
	LogConfig

	// Version is the version print command
	Version struct{} `cmd:"true" help:"Print gymctl version"`

	// Login signs in
	Login LoginCmdConfig `cmd:"true" help:"Sign in and store the session"`

	// Logout signs out
	Logout struct{} `cmd:"true" help:"Sign out and forget the stored session"`

	// Whoami prints the signed-in user
	Whoami struct{} `cmd:"true" help:"Print the signed-in user"`

	// Groups lists muscle groups
	Groups struct{} `cmd:"true" help:"List muscle groups"`

	// Exercises lists exercises
	Exercises ExercisesCmdConfig `cmd:"true" help:"List exercises"`

	// Exercise shows one exercise
	Exercise ExerciseCmdConfig `cmd:"true" help:"Show an exercise"`

	// UpdateProfile changes the display name or password
	UpdateProfile UpdateProfileCmdConfig `cmd:"true" name:"update-profile" help:"Update the signed-in user profile"`
}

// APIClientConfig converts the flags into the API client configuration
func (c *CLI) APIClientConfig() api.Config {
	return api.Config{
		URL:          c.APIURL,
		Timeout:      c.APITimeout,
		RateLimit:    c.APIRateLimit,
		RateInterval: time.Second,
	}
}

// CredentialsConfig converts the flags into the storage configuration
func (c *CLI) CredentialsConfig() (credentials.Config, error) {
	conf := credentials.Config{
		Backend:   c.StorageBackend,
		Path:      c.StoragePath,
		Namespace: c.StorageNamespace,
	}
	if conf.Path == "" && conf.Backend != credentials.BackendMemory {
		dir, err := os.UserConfigDir()
		if err != nil {
			return conf, trace.Wrap(err, "cannot determine the default storage path, set --storage-path")
		}
		name := "credentials"
		if conf.Backend == credentials.BackendFile {
			name = "credentials.json"
		}
		conf.Path = filepath.Join(dir, "gymctl", name)
	}
	if err := conf.CheckAndSetDefaults(); err != nil {
		return conf, trace.Wrap(err)
	}
	return conf, nil
}

// LoggerConfig converts the flags into the logger configuration
func (c *CLI) LoggerConfig() logger.Config {
	return logger.Config{Output: c.LogOutput, Severity: c.LogSeverity}
}

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
	"io"
	"os"
	"strings"

	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Config is the [log] section of the gymctl configuration.
type Config struct {
	Output   string `toml:"output"`
	Severity string `toml:"severity"`
}

type contextKey struct{}

// Init sets up logger for a typical CLI scenario until configuration
// file is parsed.
func Init() {
	log.SetFormatter(&log.TextFormatter{
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
	})
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
}

// CheckAndSetDefaults fills in output and severity when they are unset.
func (conf *Config) CheckAndSetDefaults() error {
	if conf.Output == "" {
		conf.Output = "stderr"
	}
	if conf.Severity == "" {
		conf.Severity = "warn"
	}
	if _, err := log.ParseLevel(conf.Severity); err != nil {
		return trace.BadParameter("unsupported log severity %q", conf.Severity)
	}
	return nil
}

// Setup configures the standard logger from the config.
func Setup(conf Config) error {
	if err := conf.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}

	out, err := openOutput(conf.Output)
	if err != nil {
		return trace.Wrap(err)
	}
	log.SetOutput(out)

	level, err := log.ParseLevel(conf.Severity)
	if err != nil {
		return trace.Wrap(err)
	}
	log.SetLevel(level)
	return nil
}

func openOutput(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "stderr", "error", "2":
		return os.Stderr, nil
	case "stdout", "out", "1":
		return os.Stdout, nil
	}
	// Otherwise treat it as a file path.
	file, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0640)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	return file, nil
}

// Standard returns the process-wide logger.
func Standard() log.FieldLogger {
	return log.StandardLogger()
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger log.FieldLogger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// WithField derives a logger with an extra field and stores it in the context.
func WithField(ctx context.Context, key string, value interface{}) (context.Context, log.FieldLogger) {
	logger := Get(ctx).WithField(key, value)
	return WithLogger(ctx, logger), logger
}

// WithFields derives a logger with extra fields and stores it in the context.
func WithFields(ctx context.Context, fields log.Fields) (context.Context, log.FieldLogger) {
	logger := Get(ctx).WithFields(fields)
	return WithLogger(ctx, logger), logger
}

// Get returns the logger stored in the context or the standard one.
func Get(ctx context.Context) log.FieldLogger {
	if logger, ok := ctx.Value(contextKey{}).(log.FieldLogger); ok && logger != nil {
		return logger
	}
	return Standard()
}

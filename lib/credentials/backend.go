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
	"strings"

	"github.com/gravitational/trace"
)

const (
	// BackendDiskv keeps every record in its own file under a directory.
	BackendDiskv = "diskv"
	// BackendFile keeps all records in a single JSON document.
	BackendFile = "file"
	// BackendMemory keeps records in process memory only.
	BackendMemory = "memory"

	// DefaultNamespace prefixes every record key.
	DefaultNamespace = "gymignite."
)

// Backend is an opaque durable key-value service.
type Backend interface {
	// Read returns the value stored under key or a trace.NotFound error.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write replaces the value stored under key.
	Write(ctx context.Context, key string, data []byte) error
	// Erase removes key. Erasing a missing key is not an error.
	Erase(ctx context.Context, key string) error
}

// Config selects and configures a Backend.
type Config struct {
	// Backend is one of "diskv", "file" or "memory".
	Backend string `toml:"backend"`
	// Path is a directory for diskv and a file name for the file backend.
	Path string `toml:"path"`
	// Namespace prefixes the record keys.
	Namespace string `toml:"namespace"`
}

// CheckAndSetDefaults validates the storage configuration.
func (c *Config) CheckAndSetDefaults() error {
	if c.Backend == "" {
		c.Backend = BackendDiskv
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if strings.ContainsAny(c.Namespace, `/\`) {
		return trace.BadParameter("storage namespace %q must not contain path separators", c.Namespace)
	}
	switch c.Backend {
	case BackendDiskv, BackendFile:
		if c.Path == "" {
			return trace.BadParameter("storage path is required for the %q backend", c.Backend)
		}
	case BackendMemory:
	default:
		return trace.BadParameter("unsupported storage backend %q", c.Backend)
	}
	return nil
}

// NewBackend builds the backend described by the config.
func NewBackend(c Config) (Backend, error) {
	if err := c.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	switch c.Backend {
	case BackendDiskv:
		return NewDiskvBackend(c.Path)
	case BackendFile:
		return NewFileBackend(c.Path)
	default:
		return NewMemoryBackend(), nil
	}
}

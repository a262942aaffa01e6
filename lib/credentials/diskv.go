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

	"github.com/gravitational/trace"
	"github.com/peterbourgon/diskv/v3"
)

// cacheSizeMaxBytes is enough for a profile and a token pair.
const cacheSizeMaxBytes = 16 * 1024

// DiskvBackend stores each record in its own file.
type DiskvBackend struct {
	dv *diskv.Diskv
}

// NewDiskvBackend opens (or creates) a diskv store rooted at dir.
func NewDiskvBackend(dir string) (*DiskvBackend, error) {
	if dir == "" {
		return nil, trace.BadParameter("missing diskv directory")
	}

	// Simplest transform function: put all the data files into the base dir.
	flatTransform := func(s string) []string { return []string{} }

	dv := diskv.New(diskv.Options{
		BasePath:     dir,
		TempDir:      dir + ".tmp",
		Transform:    flatTransform,
		CacheSizeMax: cacheSizeMaxBytes,
		PathPerm:     0700,
		FilePerm:     0600,
	})
	return &DiskvBackend{dv: dv}, nil
}

// Read implements Backend.
func (b *DiskvBackend) Read(_ context.Context, key string) ([]byte, error) {
	if !b.dv.Has(key) {
		return nil, trace.NotFound("record %q not found", key)
	}
	data, err := b.dv.Read(key)
	if os.IsNotExist(err) {
		return nil, trace.NotFound("record %q not found", key)
	}
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	return data, nil
}

// Write implements Backend.
func (b *DiskvBackend) Write(_ context.Context, key string, data []byte) error {
	return trace.ConvertSystemError(b.dv.Write(key, data))
}

// Erase implements Backend.
func (b *DiskvBackend) Erase(_ context.Context, key string) error {
	if !b.dv.Has(key) {
		return nil
	}
	err := b.dv.Erase(key)
	if os.IsNotExist(err) {
		return nil
	}
	return trace.ConvertSystemError(err)
}

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
	"path/filepath"
	"sync"

	"github.com/gravitational/trace"
)

// FileBackend keeps every record in one JSON document. Writes replace the
// document atomically. Access is serialized within the process only, there is
// no cross-process file locking.
type FileBackend struct {
	filename string

	mu sync.Mutex
}

// NewFileBackend returns a backend persisting into filename.
func NewFileBackend(filename string) (*FileBackend, error) {
	if filename == "" {
		return nil, trace.BadParameter("missing credentials file name")
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	return &FileBackend{filename: filename}, nil
}

// Read implements Backend.
func (f *FileBackend) Read(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, trace.Wrap(err)
	}
	value, ok := doc[key]
	if !ok {
		return nil, trace.NotFound("record %q not found", key)
	}
	return []byte(value), nil
}

// Write implements Backend.
func (f *FileBackend) Write(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return trace.Wrap(err)
	}
	doc[key] = string(data)
	return trace.Wrap(f.store(doc))
}

// Erase implements Backend.
func (f *FileBackend) Erase(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return trace.Wrap(err)
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return trace.Wrap(f.store(doc))
}

func (f *FileBackend) load() (map[string]string, error) {
	payload, err := os.ReadFile(f.filename)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}

	doc := map[string]string{}
	if len(payload) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, trace.BadParameter("credentials file %q is corrupted: %v", f.filename, err)
	}
	return doc, nil
}

func (f *FileBackend) store(doc map[string]string) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return trace.Wrap(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.filename), filepath.Base(f.filename)+".*")
	if err != nil {
		return trace.ConvertSystemError(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return trace.ConvertSystemError(err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return trace.ConvertSystemError(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return trace.ConvertSystemError(err)
	}
	if err := tmp.Close(); err != nil {
		return trace.ConvertSystemError(err)
	}
	return trace.ConvertSystemError(os.Rename(tmp.Name(), f.filename))
}

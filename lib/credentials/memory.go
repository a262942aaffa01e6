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
	"sync"

	"github.com/gravitational/trace"
)

// MemoryBackend keeps records in memory. It is not durable and is meant for
// tests and one-shot CLI invocations.
type MemoryBackend struct {
	records map[string][]byte
	lock    sync.RWMutex
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string][]byte)}
}

// Read implements Backend.
func (m *MemoryBackend) Read(_ context.Context, key string) ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	data, ok := m.records[key]
	if !ok {
		return nil, trace.NotFound("record %q not found", key)
	}
	return append([]byte(nil), data...), nil
}

// Write implements Backend.
func (m *MemoryBackend) Write(_ context.Context, key string, data []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.records[key] = append([]byte(nil), data...)
	return nil
}

// Erase implements Backend.
func (m *MemoryBackend) Erase(_ context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.records, key)
	return nil
}

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

	"github.com/gravitational/trace"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	userKey  = "user"
	tokenKey = "token"
)

// Record is a single typed entry of the store. Saves overwrite the whole
// value, there are no partial updates.
type Record[T any] struct {
	backend Backend
	key     string
}

// NewRecord binds a record to a backend key.
func NewRecord[T any](backend Backend, key string) *Record[T] {
	return &Record[T]{backend: backend, key: key}
}

// Key returns the backend key of the record.
func (r *Record[T]) Key() string {
	return r.key
}

// Save replaces the stored value.
func (r *Record[T]) Save(ctx context.Context, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(r.backend.Write(ctx, r.key, data))
}

// Get returns the stored value, or nil when the record is absent.
func (r *Record[T]) Get(ctx context.Context) (*T, error) {
	data, err := r.backend.Read(ctx, r.key)
	if trace.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, trace.Wrap(err)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, trace.BadParameter("record %q is corrupted: %v", r.key, err)
	}
	return &value, nil
}

// Remove deletes the record. Removing an absent record is a no-op.
func (r *Record[T]) Remove(ctx context.Context) error {
	return trace.Wrap(r.backend.Erase(ctx, r.key))
}

// Store holds the two session records. It enforces no consistency between
// them; callers write and remove them together.
type Store struct {
	Profile *Record[UserProfile]
	Tokens  *Record[TokenPair]
}

// NewStore returns a store whose keys are prefixed with namespace.
func NewStore(backend Backend, namespace string) *Store {
	return &Store{
		Profile: NewRecord[UserProfile](backend, namespace+userKey),
		Tokens:  NewRecord[TokenPair](backend, namespace+tokenKey),
	}
}

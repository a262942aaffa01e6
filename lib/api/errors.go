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

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gravitational/trace"
	"github.com/tidwall/gjson"
)

// Error is a non-2xx response of the API.
type Error struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Message is the "message" field of the response body.
	Message string
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code to the matching trace error so that
// trace.IsAccessDenied, trace.IsNotFound and friends recognize API errors.
func (e *Error) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return &trace.BadParameterError{Message: e.Message}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &trace.AccessDeniedError{Message: e.Message}
	case http.StatusNotFound:
		return &trace.NotFoundError{Message: e.Message}
	case http.StatusConflict:
		return &trace.AlreadyExistsError{Message: e.Message}
	case http.StatusTooManyRequests:
		return &trace.LimitExceededError{Message: e.Message}
	}
	return nil
}

func newError(statusCode int, body []byte) *Error {
	message := gjson.GetBytes(body, "message").String()
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &Error{StatusCode: statusCode, Message: message}
}

// AsError extracts an API error from err.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(trace.Unwrap(err), &apiErr) {
		return apiErr, true
	}
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.StatusCode == http.StatusUnauthorized
}
